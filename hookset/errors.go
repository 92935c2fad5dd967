package hookset

import "errors"

// Errors reported by the hook library and the runtime accessors.
var (
	// ErrNotConfigured is returned by a runtime accessor whose hook was
	// never configured during the setup phase.
	ErrNotConfigured = errors.New("hook was not configured during setup")

	// ErrNotStarted is returned by a runtime accessor invoked before the
	// application finished booting.
	ErrNotStarted = errors.New("application has not started")

	// ErrDuplicateModule is returned when two modules in a library share
	// a name.
	ErrDuplicateModule = errors.New("duplicate module name")

	// ErrNoModule is returned when a library has no module under the
	// requested name.
	ErrNoModule = errors.New("no module with this name")

	// ErrBadOptions is returned when a setup function receives options
	// of the wrong type.
	ErrBadOptions = errors.New("invalid options for this hook")
)
