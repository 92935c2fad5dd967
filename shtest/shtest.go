// Package shtest adapts the driver to the standard testing package. It is
// deliberately thin: a Suite launches the driver once, wraps each subtest in
// the per-test phases, and shuts the driver down when the enclosing test
// finishes.
package shtest

import (
	"context"
	"testing"

	"github.com/sarchlab/stagehand/app"
	"github.com/sarchlab/stagehand/driver"
	"github.com/sarchlab/stagehand/hookset"
)

// A Suite runs tests against one launched application.
type Suite struct {
	t   *testing.T
	d   *driver.Driver
	ret hookset.ReturnHooks
}

// An Option adjusts the underlying driver builder.
type Option func(driver.Builder) driver.Builder

// WithLibrary replaces the built-in hook library.
func WithLibrary(lib *hookset.Library) Option {
	return func(b driver.Builder) driver.Builder {
		return b.WithLibrary(lib)
	}
}

// NewSuite launches a driver for the application and registers its shutdown
// with t.Cleanup. A setup or boot failure fails the test immediately; when
// the failure happened after the application booted, teardown still runs.
func NewSuite(
	t *testing.T,
	a app.App,
	setup func(hookset.SetupHooks) error,
	opts ...Option,
) *Suite {
	t.Helper()

	b := driver.MakeBuilder().
		WithApp(a).
		WithSetup(setup).
		WithoutForcedExit()
	for _, o := range opts {
		b = o(b)
	}

	d := b.Build()

	t.Cleanup(func() {
		if err := d.Shutdown(context.Background()); err != nil {
			t.Errorf("suite teardown: %v", err)
		}
	})

	ret, err := d.Launch(context.Background())
	if err != nil {
		t.Fatalf("suite setup: %v", err)
	}

	return &Suite{t: t, d: d, ret: ret}
}

// Hooks returns the runtime accessor surface.
func (s *Suite) Hooks() hookset.ReturnHooks {
	return s.ret
}

// Driver returns the underlying driver.
func (s *Suite) Driver() *driver.Driver {
	return s.d
}

// Run runs fn as a subtest wrapped in the per-test phases. A per-test phase
// failure fails that subtest only; the suite continues.
func (s *Suite) Run(name string, fn func(t *testing.T)) bool {
	return s.t.Run(name, func(t *testing.T) {
		defer func() {
			if err := s.d.AfterTest(context.Background()); err != nil {
				t.Errorf("after test: %v", err)
			}
		}()

		if err := s.d.BeforeTest(context.Background()); err != nil {
			t.Fatalf("before test: %v", err)
		}

		fn(t)
	})
}
