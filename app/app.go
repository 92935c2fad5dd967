// Package app defines the boundary between the lifecycle engine and the
// application under test. The engine never looks inside the application; it
// only starts it, hands the resulting View to hooks, and stops it at the end.
package app

import (
	"context"
	"net"
	"strconv"

	"github.com/rs/zerolog"
)

// An App is an application that can be booted for a test suite. Start
// receives the configuration overrides collected during the setup phase and
// returns a View of the running application.
type App interface {
	Start(ctx context.Context, overrides map[string]any) (*View, error)
	Stop(ctx context.Context) error
}

// Options holds the resolved options of a started application.
type Options struct {
	Name string
	Port int
}

// A View exposes the handles of a running application that hooks may capture
// during the after-start phase.
type View struct {
	Logger    zerolog.Logger
	Options   Options
	Listener  net.Listener
	Container Container
}

// Addr returns the address the application listens on. It prefers the live
// listener address and falls back to the configured port.
func (v *View) Addr() string {
	if v.Listener != nil {
		return v.Listener.Addr().String()
	}

	return net.JoinHostPort("127.0.0.1", strconv.Itoa(v.Options.Port))
}
