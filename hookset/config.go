package hookset

import (
	"context"
	"fmt"
	"sync"

	"github.com/spf13/viper"

	"github.com/sarchlab/stagehand/app"
	"github.com/sarchlab/stagehand/hooks"
)

// ConfigHook collects configuration overrides during setup and exposes the
// merged result at runtime. Merging is deep: repeated setup calls accumulate
// and later values win per key, so overriding `app.port` never discards a
// sibling `logging.level`.
type ConfigHook struct {
	hooks.Base

	lock      sync.Mutex
	overrides []map[string]any
	merged    *viper.Viper
	started   bool
}

// NewConfigHook creates a ConfigHook with the given priority.
func NewConfigHook(priority int) *ConfigHook {
	return &ConfigHook{Base: hooks.NewBase(priority)}
}

// Apply records one set of overrides. Called during setup, before boot.
func (h *ConfigHook) Apply(overrides map[string]any) error {
	if overrides == nil {
		return fmt.Errorf("config hook: %w: overrides must not be nil",
			ErrBadOptions)
	}

	h.lock.Lock()
	defer h.lock.Unlock()

	h.overrides = append(h.overrides, overrides)

	return nil
}

// BeforeStart merges all recorded overrides, in application order.
func (h *ConfigHook) BeforeStart(_ context.Context) error {
	h.lock.Lock()
	defer h.lock.Unlock()

	v := viper.New()
	for _, o := range h.overrides {
		if err := v.MergeConfigMap(o); err != nil {
			return fmt.Errorf("config hook: merging overrides: %w", err)
		}
	}
	h.merged = v

	return nil
}

// AfterStart marks the merged configuration as servable.
func (h *ConfigHook) AfterStart(_ context.Context, _ *app.View) error {
	h.lock.Lock()
	defer h.lock.Unlock()

	h.started = true

	return nil
}

// AfterTests discards the per-run merge so a reused hook never leaks state
// into the next run.
func (h *ConfigHook) AfterTests(_ context.Context) error {
	h.lock.Lock()
	defer h.lock.Unlock()

	h.started = false

	return nil
}

// Overrides returns the merged override map handed to the application's
// start operation. Nil when nothing was configured.
func (h *ConfigHook) Overrides() map[string]any {
	h.lock.Lock()
	defer h.lock.Unlock()

	if h.merged == nil || len(h.overrides) == 0 {
		return nil
	}

	return h.merged.AllSettings()
}

// Use returns the merged configuration. It fails before the application has
// started.
func (h *ConfigHook) Use() (*viper.Viper, error) {
	h.lock.Lock()
	defer h.lock.Unlock()

	if !h.started || h.merged == nil {
		return nil, fmt.Errorf("config hook: %w", ErrNotStarted)
	}

	return h.merged, nil
}

// ConfigModule wraps a ConfigHook as a library module.
func ConfigModule(h *ConfigHook) Module {
	return Module{
		Name: ModuleConfig,
		Hook: h,
		Setup: func(opts any) error {
			m, ok := opts.(map[string]any)
			if !ok {
				return fmt.Errorf(
					"config hook: %w: want map[string]any, got %T",
					ErrBadOptions, opts)
			}

			return h.Apply(m)
		},
		Return: func() (any, error) {
			return h.Use()
		},
	}
}
