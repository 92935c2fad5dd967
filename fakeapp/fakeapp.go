// Package fakeapp provides a small in-memory application that implements
// the app.App contract: it serves HTTP on an ephemeral port and carries a
// map-backed dependency-injection container. The engine's own tests use it,
// and consumers can use it to test custom hooks without a real application.
package fakeapp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/sarchlab/stagehand/app"
)

// An App is a fake application under test.
type App struct {
	name      string
	services  map[string]any
	repos     map[string]any
	routes    map[string]http.HandlerFunc
	logWriter io.Writer
	startErr  error

	lock     sync.Mutex
	started  bool
	listener net.Listener
	server   *http.Server

	// StartCount and StopCount track lifecycle calls for assertions.
	StartCount int
	StopCount  int

	// Overrides holds the configuration overrides the last Start
	// received.
	Overrides map[string]any
}

// An Option configures the fake application.
type Option func(*App)

// WithName sets the application name.
func WithName(name string) Option {
	return func(a *App) { a.name = name }
}

// WithService registers a service in the container.
func WithService(name string, instance any) Option {
	return func(a *App) { a.services[name] = instance }
}

// WithRepository registers a repository in the container.
func WithRepository(name string, instance any) Option {
	return func(a *App) { a.repos[name] = instance }
}

// WithRoute adds an HTTP route served by the application.
func WithRoute(path string, handler http.HandlerFunc) Option {
	return func(a *App) { a.routes[path] = handler }
}

// WithStartError makes Start fail.
func WithStartError(err error) Option {
	return func(a *App) { a.startErr = err }
}

// WithLogWriter directs the application's log output to w.
func WithLogWriter(w io.Writer) Option {
	return func(a *App) { a.logWriter = w }
}

// New creates a fake application.
func New(opts ...Option) *App {
	a := &App{
		name:      "fakeapp",
		services:  make(map[string]any),
		repos:     make(map[string]any),
		routes:    make(map[string]http.HandlerFunc),
		logWriter: io.Discard,
	}

	for _, o := range opts {
		o(a)
	}

	return a
}

// Start boots the application: it binds an ephemeral port (or the port from
// the `app.port` override), serves the configured routes plus /healthz, and
// returns the view.
func (a *App) Start(
	ctx context.Context,
	overrides map[string]any,
) (*app.View, error) {
	a.lock.Lock()
	defer a.lock.Unlock()

	a.StartCount++
	a.Overrides = overrides

	if a.startErr != nil {
		return nil, a.startErr
	}
	if a.started {
		return nil, errors.New("application already started")
	}

	port := overridePort(overrides)

	listener, err := net.Listen("tcp",
		net.JoinHostPort("127.0.0.1", fmt.Sprint(port)))
	if err != nil {
		return nil, fmt.Errorf("binding port %d: %w", port, err)
	}

	router := mux.NewRouter()
	router.HandleFunc("/healthz",
		func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusOK)
			fmt.Fprintln(w, "ok")
		}).Methods(http.MethodGet)
	for path, handler := range a.routes {
		router.HandleFunc(path, handler)
	}

	a.server = &http.Server{Handler: router}
	go func(srv *http.Server, l net.Listener) {
		_ = srv.Serve(l)
	}(a.server, listener)

	a.listener = listener
	a.started = true

	logger := zerolog.New(a.logWriter).With().
		Timestamp().
		Str("app", a.name).
		Logger()

	view := &app.View{
		Logger: logger,
		Options: app.Options{
			Name: a.name,
			Port: listener.Addr().(*net.TCPAddr).Port,
		},
		Listener:  listener,
		Container: &mapContainer{services: a.services, repos: a.repos},
	}

	return view, nil
}

// Stop shuts the HTTP server down.
func (a *App) Stop(ctx context.Context) error {
	a.lock.Lock()
	defer a.lock.Unlock()

	a.StopCount++

	if !a.started {
		return nil
	}
	a.started = false

	return a.server.Shutdown(ctx)
}

// Started reports whether the application is currently running.
func (a *App) Started() bool {
	a.lock.Lock()
	defer a.lock.Unlock()

	return a.started
}

func overridePort(overrides map[string]any) int {
	appSection, ok := overrides["app"].(map[string]any)
	if !ok {
		return 0
	}

	switch p := appSection["port"].(type) {
	case int:
		return p
	case float64:
		return int(p)
	default:
		return 0
	}
}

// mapContainer is a map-backed dependency-injection container.
type mapContainer struct {
	services map[string]any
	repos    map[string]any
}

func (c *mapContainer) Resolve(name string, kind app.Kind) app.Resolution {
	var within, other map[string]any

	switch kind {
	case app.KindService:
		within, other = c.services, c.repos
	case app.KindRepository:
		within, other = c.repos, c.services
	default:
		return app.Resolution{Status: app.NotRegistered}
	}

	if instance, ok := within[name]; ok {
		return app.Resolution{Status: app.Found, Instance: instance}
	}

	if _, ok := other[name]; ok {
		return app.Resolution{Status: app.WrongKind}
	}

	return app.Resolution{Status: app.NotRegistered}
}
