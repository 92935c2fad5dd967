package hookset

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sarchlab/stagehand/hooks"
)

// A TimeTeller can be used to get the current virtual time.
type TimeTeller interface {
	Now() time.Time
}

// A VirtualClock is a manually advanced clock. Tests move it forward with
// Advance; nothing else does.
type VirtualClock struct {
	lock sync.RWMutex
	now  time.Time
}

// NewVirtualClock creates a clock frozen at start.
func NewVirtualClock(start time.Time) *VirtualClock {
	return &VirtualClock{now: start}
}

// Now returns the current virtual time.
func (c *VirtualClock) Now() time.Time {
	c.lock.RLock()
	defer c.lock.RUnlock()

	return c.now
}

// Advance moves the clock forward by d.
func (c *VirtualClock) Advance(d time.Duration) {
	c.lock.Lock()
	defer c.lock.Unlock()

	c.now = c.now.Add(d)
}

// Set moves the clock to an absolute time.
func (c *VirtualClock) Set(t time.Time) {
	c.lock.Lock()
	defer c.lock.Unlock()

	c.now = t
}

// ClockHook installs a virtual clock for the run. The clock must exist
// before any hook that schedules time-dependent behavior, hence the low
// default priority in the built-in library.
type ClockHook struct {
	hooks.Base

	lock       sync.Mutex
	configured bool
	start      time.Time
	clock      *VirtualClock
}

// NewClockHook creates a ClockHook with the given priority.
func NewClockHook(priority int) *ClockHook {
	return &ClockHook{Base: hooks.NewBase(priority)}
}

// Configure enables the clock, starting at the given time.
func (h *ClockHook) Configure(start time.Time) error {
	h.lock.Lock()
	defer h.lock.Unlock()

	h.configured = true
	h.start = start

	return nil
}

// BeforeStart creates the clock when configured.
func (h *ClockHook) BeforeStart(_ context.Context) error {
	h.lock.Lock()
	defer h.lock.Unlock()

	if h.configured {
		h.clock = NewVirtualClock(h.start)
	}

	return nil
}

// BeforeEachTest rewinds the clock to the configured start so each test sees
// the same time.
func (h *ClockHook) BeforeEachTest(_ context.Context) error {
	h.lock.Lock()
	defer h.lock.Unlock()

	if h.clock != nil {
		h.clock.Set(h.start)
	}

	return nil
}

// Use returns the virtual clock.
func (h *ClockHook) Use() (*VirtualClock, error) {
	h.lock.Lock()
	defer h.lock.Unlock()

	if !h.configured {
		return nil, fmt.Errorf("clock hook: %w", ErrNotConfigured)
	}
	if h.clock == nil {
		return nil, fmt.Errorf("clock hook: %w", ErrNotStarted)
	}

	return h.clock, nil
}

// ClockModule wraps a ClockHook as a library module.
func ClockModule(h *ClockHook) Module {
	return Module{
		Name: ModuleClock,
		Hook: h,
		Setup: func(opts any) error {
			start, ok := opts.(time.Time)
			if !ok {
				return fmt.Errorf(
					"clock hook: %w: want time.Time, got %T",
					ErrBadOptions, opts)
			}

			return h.Configure(start)
		},
		Return: func() (any, error) {
			return h.Use()
		},
	}
}
