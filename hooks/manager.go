package hooks

import (
	"context"
	"sort"

	"github.com/sarchlab/stagehand/app"
)

// A Manager keeps an ordered collection of hooks and runs their phases.
//
// Hooks run strictly one at a time, in ascending priority order, with ties
// broken by registration order. Sequential execution is a correctness
// requirement rather than a simplification: hooks routinely depend on state
// established by earlier-priority hooks, so a phase never starts a hook
// before the previous hook's phase method has fully returned.
type Manager struct {
	hooks []Hook
}

// NewManager creates an empty Manager.
func NewManager() *Manager {
	return &Manager{}
}

// Add registers a hook and re-sorts the collection by priority. The sort is
// stable, so hooks with equal priority keep their registration order. Adding
// the same instance twice makes it run twice; that is a caller error the
// manager does not guard against.
//
// Hooks must only be added before phase execution begins.
func (m *Manager) Add(h Hook) {
	m.hooks = append(m.hooks, h)
	sort.SliceStable(m.hooks, func(i, j int) bool {
		return m.hooks[i].Priority() < m.hooks[j].Priority()
	})
}

// Hooks returns the registered hooks in execution order.
func (m *Manager) Hooks() []Hook {
	return m.hooks
}

// RunBeforeStart runs every hook's BeforeStart in order, stopping at the
// first failure. The failing hook's error is returned unwrapped; hooks after
// it do not run for this phase.
func (m *Manager) RunBeforeStart(ctx context.Context) error {
	for _, h := range m.hooks {
		if err := h.BeforeStart(ctx); err != nil {
			return err
		}
	}

	return nil
}

// RunAfterStart runs every hook's AfterStart in order, passing the view of
// the started application, stopping at the first failure.
func (m *Manager) RunAfterStart(ctx context.Context, view *app.View) error {
	for _, h := range m.hooks {
		if err := h.AfterStart(ctx, view); err != nil {
			return err
		}
	}

	return nil
}

// RunBeforeTests runs every hook's BeforeTests in order, stopping at the
// first failure.
func (m *Manager) RunBeforeTests(ctx context.Context) error {
	for _, h := range m.hooks {
		if err := h.BeforeTests(ctx); err != nil {
			return err
		}
	}

	return nil
}

// RunAfterTests runs every hook's AfterTests in order, stopping at the first
// failure.
func (m *Manager) RunAfterTests(ctx context.Context) error {
	for _, h := range m.hooks {
		if err := h.AfterTests(ctx); err != nil {
			return err
		}
	}

	return nil
}

// RunBeforeEachTest runs every hook's BeforeEachTest in order, stopping at
// the first failure.
func (m *Manager) RunBeforeEachTest(ctx context.Context) error {
	for _, h := range m.hooks {
		if err := h.BeforeEachTest(ctx); err != nil {
			return err
		}
	}

	return nil
}

// RunAfterEachTest runs every hook's AfterEachTest in order, stopping at the
// first failure.
func (m *Manager) RunAfterEachTest(ctx context.Context) error {
	for _, h := range m.hooks {
		if err := h.AfterEachTest(ctx); err != nil {
			return err
		}
	}

	return nil
}
