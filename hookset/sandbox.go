package hookset

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/sarchlab/stagehand/hooks"
)

// SandboxOptions configures the filesystem sandbox.
type SandboxOptions struct {
	// Root is the directory to create the sandbox under. Empty uses the
	// system temp directory.
	Root string
}

// SandboxHook manages a scratch directory for the run: created before start,
// wiped between tests, removed after the suite.
type SandboxHook struct {
	hooks.Base

	lock       sync.Mutex
	configured bool
	root       string
	path       string
}

// NewSandboxHook creates a SandboxHook with the given priority.
func NewSandboxHook(priority int) *SandboxHook {
	return &SandboxHook{Base: hooks.NewBase(priority)}
}

// Configure enables the sandbox.
func (h *SandboxHook) Configure(opts SandboxOptions) error {
	h.lock.Lock()
	defer h.lock.Unlock()

	h.configured = true
	h.root = opts.Root

	return nil
}

// BeforeStart creates the sandbox directory.
func (h *SandboxHook) BeforeStart(_ context.Context) error {
	h.lock.Lock()
	defer h.lock.Unlock()

	if !h.configured {
		return nil
	}

	path, err := os.MkdirTemp(h.root, "stagehand-sandbox-*")
	if err != nil {
		return fmt.Errorf("sandbox hook: creating sandbox: %w", err)
	}
	h.path = path

	return nil
}

// AfterEachTest wipes the sandbox contents so the next test starts clean.
// The directory itself stays, so paths captured by the test body remain
// valid across tests.
func (h *SandboxHook) AfterEachTest(_ context.Context) error {
	h.lock.Lock()
	defer h.lock.Unlock()

	if h.path == "" {
		return nil
	}

	entries, err := os.ReadDir(h.path)
	if err != nil {
		return fmt.Errorf("sandbox hook: reading sandbox: %w", err)
	}

	for _, e := range entries {
		if err := os.RemoveAll(filepath.Join(h.path, e.Name())); err != nil {
			return fmt.Errorf("sandbox hook: wiping sandbox: %w", err)
		}
	}

	return nil
}

// AfterTests removes the sandbox directory.
func (h *SandboxHook) AfterTests(_ context.Context) error {
	h.lock.Lock()
	defer h.lock.Unlock()

	if h.path == "" {
		return nil
	}

	path := h.path
	h.path = ""

	if err := os.RemoveAll(path); err != nil {
		return fmt.Errorf("sandbox hook: removing sandbox: %w", err)
	}

	return nil
}

// Use returns the sandbox path.
func (h *SandboxHook) Use() (string, error) {
	h.lock.Lock()
	defer h.lock.Unlock()

	if !h.configured {
		return "", fmt.Errorf("sandbox hook: %w", ErrNotConfigured)
	}
	if h.path == "" {
		return "", fmt.Errorf("sandbox hook: %w", ErrNotStarted)
	}

	return h.path, nil
}

// SandboxModule wraps a SandboxHook as a library module.
func SandboxModule(h *SandboxHook) Module {
	return Module{
		Name: ModuleSandbox,
		Hook: h,
		Setup: func(opts any) error {
			o, ok := opts.(SandboxOptions)
			if !ok {
				return fmt.Errorf(
					"sandbox hook: %w: want SandboxOptions, got %T",
					ErrBadOptions, opts)
			}

			return h.Configure(o)
		},
		Return: func() (any, error) {
			return h.Use()
		},
	}
}
