package hookset

import (
	"context"
	"fmt"
	"sync"

	"github.com/sarchlab/stagehand/app"
	"github.com/sarchlab/stagehand/hooks"
)

// AddressHook resolves the address the application listens on. Return-only.
type AddressHook struct {
	hooks.Base

	lock sync.Mutex
	addr string
}

// NewAddressHook creates an AddressHook with the given priority.
func NewAddressHook(priority int) *AddressHook {
	return &AddressHook{Base: hooks.NewBase(priority)}
}

// AfterStart resolves and stores the address.
func (h *AddressHook) AfterStart(_ context.Context, view *app.View) error {
	h.lock.Lock()
	defer h.lock.Unlock()

	h.addr = view.Addr()

	return nil
}

// AfterTests forgets the address.
func (h *AddressHook) AfterTests(_ context.Context) error {
	h.lock.Lock()
	defer h.lock.Unlock()

	h.addr = ""

	return nil
}

// Use returns the host:port of the running application.
func (h *AddressHook) Use() (string, error) {
	h.lock.Lock()
	defer h.lock.Unlock()

	if h.addr == "" {
		return "", fmt.Errorf("address hook: %w", ErrNotStarted)
	}

	return h.addr, nil
}

// AddressModule wraps an AddressHook as a library module.
func AddressModule(h *AddressHook) Module {
	return Module{
		Name: ModuleAddress,
		Hook: h,
		Return: func() (any, error) {
			return h.Use()
		},
	}
}
