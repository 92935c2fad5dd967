// Package driver orchestrates a test suite: it collects setup, sequences the
// application boot with the hook phases, runs the per-test phases, and tears
// everything down at the end, including the emergency path for fatal errors.
package driver

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/sarchlab/stagehand/app"
	"github.com/sarchlab/stagehand/emergency"
	"github.com/sarchlab/stagehand/hooks"
	"github.com/sarchlab/stagehand/hookset"
	"github.com/sarchlab/stagehand/recording"
)

// A Driver ties one application instance to one hook manager and walks both
// through the suite lifecycle. Create drivers with MakeBuilder; one driver
// serves one suite.
type Driver struct {
	id          string
	application app.App
	setup       func(hookset.SetupHooks) error
	library     *hookset.Library
	manager     *hooks.Manager
	registry    *emergency.Registry
	recorder    recording.Recorder
	logger      zerolog.Logger

	lock          sync.Mutex
	state         State
	view          *app.View
	inTest        bool
	emergencyDone bool
}

// ID returns the unique id of this driver.
func (d *Driver) ID() string {
	return d.id
}

// State returns the current lifecycle state.
func (d *Driver) State() State {
	d.lock.Lock()
	defer d.lock.Unlock()

	return d.state
}

// View returns the view of the started application, or nil before start.
func (d *Driver) View() *app.View {
	d.lock.Lock()
	defer d.lock.Unlock()

	return d.view
}

// Hooks returns the runtime accessor surface. Valid once Launch succeeded.
func (d *Driver) Hooks() hookset.ReturnHooks {
	return d.library.ReturnHooks()
}

// Launch runs the suite setup: setup collection, the before-start phase, the
// application boot, the after-start phase, and the before-tests phase, in
// that order. It returns the runtime accessor surface.
//
// A failure before the application starts aborts with the application never
// booted. A failure after the application started leaves the driver in a
// state where Shutdown still runs the after-tests phase and stops the
// application; callers must call Shutdown in both the success and the
// late-failure case.
func (d *Driver) Launch(ctx context.Context) (hookset.ReturnHooks, error) {
	if s := d.State(); s != Created {
		return nil, fmt.Errorf("driver already launched (state %s)", s)
	}

	if err := d.collectSetup(); err != nil {
		return nil, err
	}

	if err := d.runBeforeStart(ctx); err != nil {
		return nil, err
	}

	if err := d.startApp(ctx); err != nil {
		return nil, err
	}

	// From here on a crash leaves a running application behind, so the
	// driver must be reachable by the emergency path.
	d.registry.Register(d)

	if err := d.runAfterStart(ctx); err != nil {
		return nil, err
	}

	if err := d.runBeforeTests(ctx); err != nil {
		return nil, err
	}

	return d.library.ReturnHooks(), nil
}

func (d *Driver) collectSetup() error {
	if d.setup != nil {
		if err := d.setup(d.library.SetupHooks()); err != nil {
			d.record("setup", "failed", err.Error())
			return fmt.Errorf("collecting setup: %w", err)
		}
	}

	d.setState(SetupCollected)
	d.record("setup", "ok", "")

	return nil
}

func (d *Driver) runBeforeStart(ctx context.Context) error {
	if err := d.manager.RunBeforeStart(ctx); err != nil {
		d.record("beforeStart", "failed", err.Error())
		return err
	}

	d.setState(BeforeStartRun)
	d.record("beforeStart", "ok", "")

	return nil
}

func (d *Driver) startApp(ctx context.Context) error {
	view, err := d.application.Start(ctx, d.library.StartOverrides())
	if err != nil {
		d.record("start", "failed", err.Error())
		return fmt.Errorf("starting application: %w", err)
	}

	d.lock.Lock()
	d.view = view
	d.state = AppStarted
	d.lock.Unlock()

	d.record("start", "ok", "")
	d.logger.Debug().Str("addr", view.Addr()).Msg("application started")

	return nil
}

func (d *Driver) runAfterStart(ctx context.Context) error {
	if err := d.manager.RunAfterStart(ctx, d.View()); err != nil {
		d.record("afterStart", "failed", err.Error())
		return err
	}

	d.setState(AfterStartRun)
	d.record("afterStart", "ok", "")

	return nil
}

func (d *Driver) runBeforeTests(ctx context.Context) error {
	if err := d.manager.RunBeforeTests(ctx); err != nil {
		d.record("beforeTests", "failed", err.Error())
		return err
	}

	d.setState(BeforeTestsRun)
	d.record("beforeTests", "ok", "")

	return nil
}

// BeforeTest runs the before-each-test phase. A failure fails the current
// test only; the driver remains usable for the next test.
func (d *Driver) BeforeTest(ctx context.Context) error {
	d.lock.Lock()
	if d.state != BeforeTestsRun && d.state != BetweenTests {
		s := d.state
		d.lock.Unlock()
		return fmt.Errorf("cannot begin a test in state %s", s)
	}
	d.state = TestRunning
	d.inTest = true
	d.lock.Unlock()

	if err := d.manager.RunBeforeEachTest(ctx); err != nil {
		d.record("beforeEachTest", "failed", err.Error())
		return err
	}

	return nil
}

// AfterTest runs the after-each-test phase. A failure fails the current test
// only; the next test's BeforeTest still runs.
func (d *Driver) AfterTest(ctx context.Context) error {
	d.lock.Lock()
	d.state = BetweenTests
	d.inTest = false
	d.lock.Unlock()

	if err := d.manager.RunAfterEachTest(ctx); err != nil {
		d.record("afterEachTest", "failed", err.Error())
		return err
	}

	return nil
}

// Shutdown runs the after-tests phase, stops the application, and
// deregisters from the emergency registry. It runs every step even when an
// earlier one fails and returns the joined errors; teardown never panics and
// never skips a step.
func (d *Driver) Shutdown(ctx context.Context) error {
	d.lock.Lock()
	if d.state == Terminated || d.state == EmergencyCleanup {
		d.lock.Unlock()
		return nil
	}
	started := d.view != nil
	d.state = AfterTestsRun
	d.lock.Unlock()

	var errs []error

	if err := d.manager.RunAfterTests(ctx); err != nil {
		d.logger.Error().Err(err).Msg("after-tests phase failed")
		d.record("afterTests", "failed", err.Error())
		errs = append(errs, err)
	} else {
		d.record("afterTests", "ok", "")
	}

	if started {
		if err := d.application.Stop(ctx); err != nil {
			d.logger.Error().Err(err).Msg("stopping application failed")
			d.record("stop", "failed", err.Error())
			errs = append(errs, fmt.Errorf("stopping application: %w", err))
		} else {
			d.record("stop", "ok", "")
		}
	}

	d.registry.Deregister(d)

	d.lock.Lock()
	d.view = nil
	d.state = Terminated
	d.lock.Unlock()
	d.record("terminated", "ok", "")

	return errors.Join(errs...)
}

// EmergencyCleanup is the one-shot teardown the emergency registry invokes
// on a fatal process error. It finishes the in-flight test's after-each
// phase if one was running, then runs the after-tests phase and stops the
// application. Every failure is swallowed and recorded; a broken step must
// not keep the steps after it from running.
func (d *Driver) EmergencyCleanup(cause error) {
	d.lock.Lock()
	if d.emergencyDone {
		d.lock.Unlock()
		return
	}
	d.emergencyDone = true
	wasInTest := d.inTest
	started := d.view != nil
	d.state = EmergencyCleanup
	d.inTest = false
	d.lock.Unlock()

	d.logger.Error().Err(cause).Msg("running emergency cleanup")

	ctx := context.Background()

	if wasInTest {
		d.emergencyStep(ctx, "afterEachTest", d.manager.RunAfterEachTest)
	}

	d.emergencyStep(ctx, "afterTests", d.manager.RunAfterTests)

	if started {
		d.emergencyStep(ctx, "stop", d.application.Stop)
	}

	if d.recorder != nil {
		d.recorder.Flush()
	}
}

func (d *Driver) emergencyStep(
	ctx context.Context,
	name string,
	step func(context.Context) error,
) {
	defer func() {
		if p := recover(); p != nil {
			d.logger.Error().
				Interface("panic", p).
				Str("step", name).
				Msg("emergency cleanup step panicked")
			d.recordCleanup(name, fmt.Sprintf("panicked: %v", p))
		}
	}()

	if err := step(ctx); err != nil {
		d.logger.Error().Err(err).Str("step", name).
			Msg("emergency cleanup step failed")
		d.recordCleanup(name, "failed: "+err.Error())
		return
	}

	d.recordCleanup(name, "ok")
}

func (d *Driver) setState(s State) {
	d.lock.Lock()
	defer d.lock.Unlock()

	d.state = s
}

func (d *Driver) record(phase, status, note string) {
	if d.recorder == nil {
		return
	}

	d.recorder.RecordPhase(d.id, phase, status, note)
}

func (d *Driver) recordCleanup(step, detail string) {
	if d.recorder == nil {
		return
	}

	d.recorder.RecordCleanup(d.id, step, detail)
}

// Launch builds a driver for the application with the default library, runs
// the suite setup, and returns the runtime surface together with the driver
// for the per-test phases and Shutdown.
func Launch(
	ctx context.Context,
	a app.App,
	setup func(hookset.SetupHooks) error,
) (hookset.ReturnHooks, *Driver, error) {
	d := MakeBuilder().WithApp(a).WithSetup(setup).Build()

	ret, err := d.Launch(ctx)

	return ret, d, err
}
