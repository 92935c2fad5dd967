// Package hooks implements the lifecycle engine: the Hook contract and the
// Manager that runs hook phases in priority order.
package hooks

import (
	"context"
	"sync"

	"github.com/sarchlab/stagehand/app"
)

// A Hook is a pluggable unit of lifecycle behavior. A hook implements any
// subset of the six phase methods; the rest stay no-ops through an embedded
// Base. Phase methods may block and report failure through their error.
type Hook interface {
	// Priority is the ordering key of the hook. Lower priorities run
	// earlier within every phase. The priority never changes after
	// construction.
	Priority() int

	BeforeStart(ctx context.Context) error
	AfterStart(ctx context.Context, view *app.View) error
	BeforeTests(ctx context.Context) error
	AfterTests(ctx context.Context) error
	BeforeEachTest(ctx context.Context) error
	AfterEachTest(ctx context.Context) error
}

// Base provides the priority and the private keyed state store that concrete
// hooks build on, plus no-op implementations of all six phases. Embed it by
// value and override the phases the hook cares about.
//
// The state store belongs to the embedding hook alone. Other hooks must not
// reach into it; cross-hook coordination goes through the application view.
// Hooks with a fixed shape of state should prefer their own typed fields and
// keep the store for genuinely dynamic keys.
type Base struct {
	priority int

	stateLock sync.RWMutex
	state     map[string]any
}

// NewBase creates a Base with the given priority.
func NewBase(priority int) Base {
	return Base{priority: priority}
}

// Priority returns the ordering key of the hook.
func (b *Base) Priority() int {
	return b.priority
}

// State returns the value stored under key, and whether the key is present.
func (b *Base) State(key string) (any, bool) {
	b.stateLock.RLock()
	defer b.stateLock.RUnlock()

	v, ok := b.state[key]

	return v, ok
}

// SetState stores value under key, overwriting any prior value.
func (b *Base) SetState(key string, value any) {
	b.stateLock.Lock()
	defer b.stateLock.Unlock()

	if b.state == nil {
		b.state = make(map[string]any)
	}

	b.state[key] = value
}

// BeforeStart does nothing.
func (b *Base) BeforeStart(ctx context.Context) error { return nil }

// AfterStart does nothing.
func (b *Base) AfterStart(ctx context.Context, view *app.View) error { return nil }

// BeforeTests does nothing.
func (b *Base) BeforeTests(ctx context.Context) error { return nil }

// AfterTests does nothing.
func (b *Base) AfterTests(ctx context.Context) error { return nil }

// BeforeEachTest does nothing.
func (b *Base) BeforeEachTest(ctx context.Context) error { return nil }

// AfterEachTest does nothing.
func (b *Base) AfterEachTest(ctx context.Context) error { return nil }
