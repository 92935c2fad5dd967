package hookset

import (
	"context"
	"fmt"
	"sync"

	"github.com/sarchlab/stagehand/app"
	"github.com/sarchlab/stagehand/hooks"
)

// ViewHook captures the view of the started application and hands it to test
// bodies. Return-only; there is nothing to configure.
type ViewHook struct {
	hooks.Base

	lock sync.Mutex
	view *app.View
}

// NewViewHook creates a ViewHook with the given priority.
func NewViewHook(priority int) *ViewHook {
	return &ViewHook{Base: hooks.NewBase(priority)}
}

// AfterStart captures the view.
func (h *ViewHook) AfterStart(_ context.Context, view *app.View) error {
	h.lock.Lock()
	defer h.lock.Unlock()

	h.view = view

	return nil
}

// AfterTests releases the view; the application is about to stop.
func (h *ViewHook) AfterTests(_ context.Context) error {
	h.lock.Lock()
	defer h.lock.Unlock()

	h.view = nil

	return nil
}

// Use returns the captured view.
func (h *ViewHook) Use() (*app.View, error) {
	h.lock.Lock()
	defer h.lock.Unlock()

	if h.view == nil {
		return nil, fmt.Errorf("app-view hook: %w", ErrNotStarted)
	}

	return h.view, nil
}

// ViewModule wraps a ViewHook as a library module.
func ViewModule(h *ViewHook) Module {
	return Module{
		Name: ModuleAppView,
		Hook: h,
		Return: func() (any, error) {
			return h.Use()
		},
	}
}
