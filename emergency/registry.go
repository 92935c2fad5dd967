// Package emergency implements the process-wide one-shot teardown path that
// fires on fatal, untracked errors: termination signals and panics escaping
// user goroutines. The registry is an explicit singleton with an
// install/uninstall lifecycle so the engine's own tests can drive it without
// touching real process state.
package emergency

import (
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/tebeka/atexit"
)

// A Cleaner is notified when the emergency path fires. Drivers implement it.
// EmergencyCleanup must swallow its own failures; a broken teardown step
// must not stop the steps after it.
type Cleaner interface {
	EmergencyCleanup(cause error)
}

// A Registry tracks the active drivers of this process and tears all of them
// down exactly once when a fatal error is reported.
type Registry struct {
	lock sync.Mutex

	installed bool
	triggered bool
	cleaners  []Cleaner
	log       []string

	forcedExit bool
	exit       func(code int)

	sigCh  chan os.Signal
	logger zerolog.Logger
}

// NewRegistry creates a Registry that terminates the process on trigger.
func NewRegistry() *Registry {
	return &Registry{
		forcedExit: true,
		exit:       atexit.Exit,
		logger:     zerolog.New(os.Stderr).With().Timestamp().Logger(),
	}
}

var (
	globalOnce sync.Once
	global     *Registry
)

// Global returns the process-wide registry shared by all drivers.
func Global() *Registry {
	globalOnce.Do(func() {
		global = NewRegistry()
	})

	return global
}

// Install wires the registry to the process: SIGINT and SIGTERM trigger the
// emergency path. Installing twice is a no-op.
func (r *Registry) Install() {
	r.lock.Lock()
	defer r.lock.Unlock()

	if r.installed {
		return
	}

	r.installed = true
	r.sigCh = make(chan os.Signal, 1)
	signal.Notify(r.sigCh, os.Interrupt, syscall.SIGTERM)

	go func(ch chan os.Signal) {
		sig, ok := <-ch
		if !ok {
			return
		}

		r.Trigger(fmt.Errorf("received signal %s", sig))
	}(r.sigCh)
}

// Uninstall detaches the registry from the process signals.
func (r *Registry) Uninstall() {
	r.lock.Lock()
	defer r.lock.Unlock()

	if !r.installed {
		return
	}

	r.installed = false
	signal.Stop(r.sigCh)
	close(r.sigCh)
	r.sigCh = nil
}

// Register adds a cleaner to notify on emergency. Cleaners are notified in
// registration order.
func (r *Registry) Register(c Cleaner) {
	r.lock.Lock()
	defer r.lock.Unlock()

	r.cleaners = append(r.cleaners, c)
}

// Deregister removes a cleaner.
func (r *Registry) Deregister(c Cleaner) {
	r.lock.Lock()
	defer r.lock.Unlock()

	for i, registered := range r.cleaners {
		if registered == c {
			r.cleaners = append(r.cleaners[:i], r.cleaners[i+1:]...)
			return
		}
	}
}

// DisableForcedExit keeps the process alive after the emergency teardown.
func (r *Registry) DisableForcedExit() {
	r.lock.Lock()
	defer r.lock.Unlock()

	r.forcedExit = false
}

// SetExit replaces the exit function. Only tests use this.
func (r *Registry) SetExit(exit func(code int)) {
	r.lock.Lock()
	defer r.lock.Unlock()

	r.exit = exit
}

// SetLogger replaces the logger used to report the cause and the teardown
// progress.
func (r *Registry) SetLogger(logger zerolog.Logger) {
	r.lock.Lock()
	defer r.lock.Unlock()

	r.logger = logger
}

// Trigger runs the emergency teardown exactly once. Every registered cleaner
// is notified; a panicking cleaner is recorded and does not stop the
// cleaners after it. Unless forced exit is disabled, the process then
// terminates with exit code 1. Later triggers do nothing.
func (r *Registry) Trigger(cause error) {
	r.lock.Lock()
	if r.triggered {
		r.lock.Unlock()
		return
	}
	r.triggered = true
	cleaners := make([]Cleaner, len(r.cleaners))
	copy(cleaners, r.cleaners)
	logger := r.logger
	forcedExit := r.forcedExit
	exit := r.exit
	r.lock.Unlock()

	logger.Error().Err(cause).Msg("emergency cleanup triggered")

	for i, c := range cleaners {
		r.runCleaner(i, c, cause, logger)
	}

	r.appendLog("emergency cleanup finished")

	if forcedExit {
		exit(1)
	}
}

func (r *Registry) runCleaner(
	i int,
	c Cleaner,
	cause error,
	logger zerolog.Logger,
) {
	defer func() {
		if p := recover(); p != nil {
			logger.Error().
				Interface("panic", p).
				Int("cleaner", i).
				Msg("cleaner panicked during emergency cleanup")
			r.appendLog(fmt.Sprintf("cleaner %d panicked: %v", i, p))
		}
	}()

	c.EmergencyCleanup(cause)
	r.appendLog(fmt.Sprintf("cleaner %d done", i))
}

func (r *Registry) appendLog(step string) {
	r.lock.Lock()
	defer r.lock.Unlock()

	r.log = append(r.log, step)
}

// CleanupLog returns the ordered list of completed teardown steps. For
// diagnostics only.
func (r *Registry) CleanupLog() []string {
	r.lock.Lock()
	defer r.lock.Unlock()

	out := make([]string, len(r.log))
	copy(out, r.log)

	return out
}

// Triggered reports whether the emergency path already fired.
func (r *Registry) Triggered() bool {
	r.lock.Lock()
	defer r.lock.Unlock()

	return r.triggered
}

// Reset clears the trigger guard, the cleaners, and the log, and restores
// forced exit. It exists so the engine's own test suite can isolate cases;
// production code never calls it.
func (r *Registry) Reset() {
	r.lock.Lock()
	defer r.lock.Unlock()

	r.triggered = false
	r.cleaners = nil
	r.log = nil
	r.forcedExit = true
	r.exit = atexit.Exit
}

// Recover converts a panic in the calling goroutine into an emergency
// trigger. Defer it at the top of goroutines whose failure should tear the
// suite down:
//
//	go func() {
//		defer emergency.Global().Recover()
//		...
//	}()
func (r *Registry) Recover() {
	if p := recover(); p != nil {
		r.Trigger(fmt.Errorf("uncaught panic: %v", p))
	}
}
