package hookset

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/joho/godotenv"

	"github.com/sarchlab/stagehand/hooks"
)

// EnvVar declares one environment variable for the run.
type EnvVar struct {
	Key   string
	Value string
}

// EnvFile declares a dotenv file whose variables apply for the run.
type EnvFile struct {
	Path string
}

// EnvHook applies environment variables before the application starts and
// restores the previous environment after the suite. Files apply before
// individually declared variables; within each group, later declarations win
// per key.
type EnvHook struct {
	hooks.Base

	lock    sync.Mutex
	files   []string
	vars    []EnvVar
	applied map[string]string
	// previous remembers the pre-run state of every key this hook
	// touched; nil entries mean the key was absent.
	previous map[string]*string
}

// NewEnvHook creates an EnvHook with the given priority.
func NewEnvHook(priority int) *EnvHook {
	return &EnvHook{Base: hooks.NewBase(priority)}
}

// AddVar records one variable. Called during setup.
func (h *EnvHook) AddVar(v EnvVar) error {
	if v.Key == "" {
		return fmt.Errorf("env hook: %w: empty key", ErrBadOptions)
	}

	h.lock.Lock()
	defer h.lock.Unlock()

	h.vars = append(h.vars, v)

	return nil
}

// AddFile records one dotenv file. Called during setup.
func (h *EnvHook) AddFile(path string) error {
	if path == "" {
		return fmt.Errorf("env hook: %w: empty path", ErrBadOptions)
	}

	h.lock.Lock()
	defer h.lock.Unlock()

	h.files = append(h.files, path)

	return nil
}

// BeforeStart applies the declared files and variables to the process
// environment, remembering prior values for restoration.
func (h *EnvHook) BeforeStart(_ context.Context) error {
	h.lock.Lock()
	defer h.lock.Unlock()

	h.applied = make(map[string]string)
	h.previous = make(map[string]*string)

	for _, path := range h.files {
		fileVars, err := godotenv.Read(path)
		if err != nil {
			return fmt.Errorf("env hook: reading %s: %w", path, err)
		}

		for k, v := range fileVars {
			if err := h.apply(k, v); err != nil {
				return err
			}
		}
	}

	for _, v := range h.vars {
		if err := h.apply(v.Key, v.Value); err != nil {
			return err
		}
	}

	return nil
}

func (h *EnvHook) apply(key, value string) error {
	if _, touched := h.previous[key]; !touched {
		if prior, ok := os.LookupEnv(key); ok {
			h.previous[key] = &prior
		} else {
			h.previous[key] = nil
		}
	}

	if err := os.Setenv(key, value); err != nil {
		return fmt.Errorf("env hook: setting %s: %w", key, err)
	}

	h.applied[key] = value

	return nil
}

// AfterTests restores every touched key to its pre-run state.
func (h *EnvHook) AfterTests(_ context.Context) error {
	h.lock.Lock()
	defer h.lock.Unlock()

	for key, prior := range h.previous {
		var err error
		if prior == nil {
			err = os.Unsetenv(key)
		} else {
			err = os.Setenv(key, *prior)
		}

		if err != nil {
			return fmt.Errorf("env hook: restoring %s: %w", key, err)
		}
	}

	h.previous = nil
	h.applied = nil

	return nil
}

// Use returns the variables applied for this run.
func (h *EnvHook) Use() (map[string]string, error) {
	h.lock.Lock()
	defer h.lock.Unlock()

	if h.applied == nil {
		return nil, fmt.Errorf("env hook: %w", ErrNotStarted)
	}

	out := make(map[string]string, len(h.applied))
	for k, v := range h.applied {
		out[k] = v
	}

	return out, nil
}

// EnvModule wraps an EnvHook as a library module.
func EnvModule(h *EnvHook) Module {
	return Module{
		Name: ModuleEnv,
		Hook: h,
		Setup: func(opts any) error {
			switch o := opts.(type) {
			case EnvVar:
				return h.AddVar(o)
			case EnvFile:
				return h.AddFile(o.Path)
			default:
				return fmt.Errorf(
					"env hook: %w: want EnvVar or EnvFile, got %T",
					ErrBadOptions, opts)
			}
		},
		Return: func() (any, error) {
			return h.Use()
		},
	}
}
