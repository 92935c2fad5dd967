package driver

import (
	"os"

	"github.com/rs/xid"
	"github.com/rs/zerolog"

	"github.com/sarchlab/stagehand/app"
	"github.com/sarchlab/stagehand/emergency"
	"github.com/sarchlab/stagehand/hooks"
	"github.com/sarchlab/stagehand/hookset"
	"github.com/sarchlab/stagehand/recording"
)

// Builder can be used to build a driver.
type Builder struct {
	application app.App
	setup       func(hookset.SetupHooks) error
	library     *hookset.Library
	registry    *emergency.Registry
	recorder    recording.Recorder
	logger      *zerolog.Logger
	noForceExit bool
}

// MakeBuilder creates a new builder.
func MakeBuilder() Builder {
	return Builder{}
}

// WithApp sets the application under test. Required.
func (b Builder) WithApp(a app.App) Builder {
	b.application = a
	return b
}

// WithSetup sets the user's setup callback, invoked with the library's setup
// surface before anything boots.
func (b Builder) WithSetup(setup func(hookset.SetupHooks) error) Builder {
	b.setup = setup
	return b
}

// WithLibrary replaces the built-in hook library.
func (b Builder) WithLibrary(lib *hookset.Library) Builder {
	b.library = lib
	return b
}

// WithRegistry replaces the process-wide emergency registry. Tests use this
// to stay off the real one.
func (b Builder) WithRegistry(r *emergency.Registry) Builder {
	b.registry = r
	return b
}

// WithRecorder attaches a run recorder that receives every phase transition.
func (b Builder) WithRecorder(r recording.Recorder) Builder {
	b.recorder = r
	return b
}

// WithLogger replaces the driver's logger.
func (b Builder) WithLogger(l zerolog.Logger) Builder {
	b.logger = &l
	return b
}

// WithoutForcedExit keeps the process alive after an emergency cleanup.
func (b Builder) WithoutForcedExit() Builder {
	b.noForceExit = true
	return b
}

func (b Builder) parametersMustBeValid() {
	if b.application == nil {
		panic("driver requires an application, use WithApp")
	}
}

// Build builds the driver. The library defaults to the built-in hook set and
// the registry to the process-wide one.
func (b Builder) Build() *Driver {
	b.parametersMustBeValid()

	d := &Driver{
		id:          xid.New().String(),
		application: b.application,
		setup:       b.setup,
		library:     b.library,
		manager:     hooks.NewManager(),
		registry:    b.registry,
		recorder:    b.recorder,
		state:       Created,
	}

	if d.library == nil {
		d.library = hookset.Default()
	}
	d.library.Register(d.manager)

	if d.registry == nil {
		d.registry = emergency.Global()
	}
	if b.noForceExit {
		d.registry.DisableForcedExit()
	}
	d.registry.Install()

	if b.logger != nil {
		d.logger = *b.logger
	} else {
		d.logger = zerolog.New(os.Stderr).With().
			Timestamp().
			Str("driver", d.id).
			Logger()
	}

	if d.recorder != nil {
		b.wireRecorder(d)
	}

	return d
}

// wireRecorder hands the recorder to the hooks that can use one.
func (b Builder) wireRecorder(d *Driver) {
	for _, m := range d.library.Modules() {
		if h, ok := m.Hook.(*hookset.MetricsHook); ok {
			h.SetRecorder(d.recorder)
		}
	}
}
