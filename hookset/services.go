package hookset

import (
	"context"
	"fmt"
	"sync"

	"github.com/sarchlab/stagehand/app"
	"github.com/sarchlab/stagehand/hooks"
)

// A Resolver looks up services and repositories in the application's
// dependency-injection container, translating the container's tagged results
// into errors that name the exact failure mode.
type Resolver struct {
	container app.Container
}

// Service returns the service registered under name.
func (r *Resolver) Service(name string) (any, error) {
	return r.resolve(name, app.KindService)
}

// Repository returns the repository registered under name.
func (r *Resolver) Repository(name string) (any, error) {
	return r.resolve(name, app.KindRepository)
}

func (r *Resolver) resolve(name string, kind app.Kind) (any, error) {
	res := r.container.Resolve(name, kind)

	switch res.Status {
	case app.Found:
		return res.Instance, nil
	case app.NotRegistered:
		return nil, fmt.Errorf(
			"%q is not registered in the application container", name)
	case app.WrongKind:
		return nil, fmt.Errorf(
			"%q is registered, but not as a %s", name, kind)
	default:
		return nil, fmt.Errorf(
			"container returned unknown status %d for %q",
			res.Status, name)
	}
}

// ServicesHook captures the application's container and hands out a
// Resolver. Return-only.
type ServicesHook struct {
	hooks.Base

	lock      sync.Mutex
	container app.Container
}

// NewServicesHook creates a ServicesHook with the given priority.
func NewServicesHook(priority int) *ServicesHook {
	return &ServicesHook{Base: hooks.NewBase(priority)}
}

// AfterStart captures the container.
func (h *ServicesHook) AfterStart(_ context.Context, view *app.View) error {
	h.lock.Lock()
	defer h.lock.Unlock()

	h.container = view.Container

	return nil
}

// AfterTests releases the container.
func (h *ServicesHook) AfterTests(_ context.Context) error {
	h.lock.Lock()
	defer h.lock.Unlock()

	h.container = nil

	return nil
}

// Use returns the resolver.
func (h *ServicesHook) Use() (*Resolver, error) {
	h.lock.Lock()
	defer h.lock.Unlock()

	if h.container == nil {
		return nil, fmt.Errorf("services hook: %w", ErrNotStarted)
	}

	return &Resolver{container: h.container}, nil
}

// ServicesModule wraps a ServicesHook as a library module.
func ServicesModule(h *ServicesHook) Module {
	return Module{
		Name: ModuleServices,
		Hook: h,
		Return: func() (any, error) {
			return h.Use()
		},
	}
}
