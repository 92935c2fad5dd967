package hookset

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/sarchlab/stagehand/hooks"
)

// A StartFunc brings up one piece of ephemeral infrastructure and returns
// its handle.
type StartFunc func(ctx context.Context) (any, error)

// A StopFunc tears one piece of infrastructure down again.
type StopFunc func(ctx context.Context, handle any) error

// An InfraSpec declares one named piece of ephemeral infrastructure, e.g. a
// database container. The runtime that actually provisions it lives in the
// Start and Stop functions the caller supplies; the hook only sequences
// them.
type InfraSpec struct {
	Name  string
	Start StartFunc
	Stop  StopFunc
}

// An InfraSet holds the handles of the running infrastructure resources.
type InfraSet struct {
	handles map[string]any
}

// Get returns the handle of the resource registered under name.
func (s *InfraSet) Get(name string) (any, error) {
	h, ok := s.handles[name]
	if !ok {
		return nil, fmt.Errorf("infra hook: no resource named %q", name)
	}

	return h, nil
}

// Names returns the names of the running resources.
func (s *InfraSet) Names() []string {
	out := make([]string, 0, len(s.handles))
	for name := range s.handles {
		out = append(out, name)
	}

	return out
}

// InfraHook starts declared infrastructure before the application boots and
// stops it, in reverse order, after the suite. Specs accumulate across setup
// calls.
type InfraHook struct {
	hooks.Base

	lock    sync.Mutex
	specs   []InfraSpec
	started []startedResource
	set     *InfraSet
}

type startedResource struct {
	spec   InfraSpec
	handle any
}

// NewInfraHook creates an InfraHook with the given priority.
func NewInfraHook(priority int) *InfraHook {
	return &InfraHook{Base: hooks.NewBase(priority)}
}

// Declare records one spec. Called during setup.
func (h *InfraHook) Declare(spec InfraSpec) error {
	if spec.Name == "" {
		return fmt.Errorf("infra hook: %w: spec has no name", ErrBadOptions)
	}
	if spec.Start == nil {
		return fmt.Errorf("infra hook: %w: spec %q has no start function",
			ErrBadOptions, spec.Name)
	}

	h.lock.Lock()
	defer h.lock.Unlock()

	for _, s := range h.specs {
		if s.Name == spec.Name {
			return fmt.Errorf("infra hook: resource %q declared twice",
				spec.Name)
		}
	}

	h.specs = append(h.specs, spec)

	return nil
}

// BeforeStart starts every declared resource in declaration order. On
// failure, resources already started are stopped again before the error is
// returned.
func (h *InfraHook) BeforeStart(ctx context.Context) error {
	h.lock.Lock()
	defer h.lock.Unlock()

	handles := make(map[string]any)
	for _, spec := range h.specs {
		handle, err := spec.Start(ctx)
		if err != nil {
			h.stopStartedLocked(ctx)
			return fmt.Errorf("infra hook: starting %q: %w", spec.Name, err)
		}

		h.started = append(h.started, startedResource{spec, handle})
		handles[spec.Name] = handle
	}

	if len(handles) > 0 {
		h.set = &InfraSet{handles: handles}
	}

	return nil
}

// AfterTests stops every running resource in reverse start order. A failing
// stop does not prevent the stops after it; the errors are joined.
func (h *InfraHook) AfterTests(ctx context.Context) error {
	h.lock.Lock()
	defer h.lock.Unlock()

	err := h.stopStartedLocked(ctx)
	h.set = nil

	return err
}

func (h *InfraHook) stopStartedLocked(ctx context.Context) error {
	var errs []error

	for i := len(h.started) - 1; i >= 0; i-- {
		r := h.started[i]
		if r.spec.Stop == nil {
			continue
		}

		if err := r.spec.Stop(ctx, r.handle); err != nil {
			errs = append(errs,
				fmt.Errorf("stopping %q: %w", r.spec.Name, err))
		}
	}

	h.started = nil

	if len(errs) > 0 {
		return fmt.Errorf("infra hook: %w", errors.Join(errs...))
	}

	return nil
}

// Use returns the set of running resources.
func (h *InfraHook) Use() (*InfraSet, error) {
	h.lock.Lock()
	defer h.lock.Unlock()

	if len(h.specs) == 0 {
		return nil, fmt.Errorf("infra hook: %w", ErrNotConfigured)
	}
	if h.set == nil {
		return nil, fmt.Errorf("infra hook: %w", ErrNotStarted)
	}

	return h.set, nil
}

// InfraModule wraps an InfraHook as a library module.
func InfraModule(h *InfraHook) Module {
	return Module{
		Name: ModuleInfra,
		Hook: h,
		Setup: func(opts any) error {
			spec, ok := opts.(InfraSpec)
			if !ok {
				return fmt.Errorf(
					"infra hook: %w: want InfraSpec, got %T",
					ErrBadOptions, opts)
			}

			return h.Declare(spec)
		},
		Return: func() (any, error) {
			return h.Use()
		},
	}
}
