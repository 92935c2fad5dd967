package hookset

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/sarchlab/stagehand/app"
	"github.com/sarchlab/stagehand/hooks"
)

// A LogCapture collects log lines written through its logger. Tests hand
// Logger (or Writer) to the code under test and assert on the captured
// lines.
type LogCapture struct {
	lock   sync.Mutex
	lines  []string
	logger zerolog.Logger
}

// Write appends one log line. Implements io.Writer so the capture can back a
// zerolog output.
func (c *LogCapture) Write(p []byte) (int, error) {
	c.lock.Lock()
	defer c.lock.Unlock()

	c.lines = append(c.lines, strings.TrimRight(string(p), "\n"))

	return len(p), nil
}

// Logger returns the capturing logger.
func (c *LogCapture) Logger() zerolog.Logger {
	return c.logger
}

// Lines returns the captured lines in order.
func (c *LogCapture) Lines() []string {
	c.lock.Lock()
	defer c.lock.Unlock()

	out := make([]string, len(c.lines))
	copy(out, c.lines)

	return out
}

// Contains reports whether any captured line contains the substring.
func (c *LogCapture) Contains(substr string) bool {
	c.lock.Lock()
	defer c.lock.Unlock()

	for _, l := range c.lines {
		if strings.Contains(l, substr) {
			return true
		}
	}

	return false
}

func (c *LogCapture) reset() {
	c.lock.Lock()
	defer c.lock.Unlock()

	c.lines = nil
}

// LogCaptureHook captures application logging for assertions. When
// configured, it derives a logger from the started application's logger that
// writes into a buffer, wiped between tests.
type LogCaptureHook struct {
	hooks.Base

	lock       sync.Mutex
	configured bool
	level      zerolog.Level
	capture    *LogCapture
}

// NewLogCaptureHook creates a LogCaptureHook with the given priority.
func NewLogCaptureHook(priority int) *LogCaptureHook {
	return &LogCaptureHook{Base: hooks.NewBase(priority)}
}

// Configure enables capture at the given level.
func (h *LogCaptureHook) Configure(level zerolog.Level) error {
	h.lock.Lock()
	defer h.lock.Unlock()

	h.configured = true
	h.level = level

	return nil
}

// AfterStart builds the capture around the application's logger.
func (h *LogCaptureHook) AfterStart(_ context.Context, view *app.View) error {
	h.lock.Lock()
	defer h.lock.Unlock()

	if !h.configured {
		return nil
	}

	c := &LogCapture{}
	c.logger = view.Logger.Level(h.level).Output(c)
	h.capture = c

	return nil
}

// BeforeEachTest wipes the capture so each test asserts only on its own
// lines.
func (h *LogCaptureHook) BeforeEachTest(_ context.Context) error {
	h.lock.Lock()
	defer h.lock.Unlock()

	if h.capture != nil {
		h.capture.reset()
	}

	return nil
}

// AfterTests drops the capture.
func (h *LogCaptureHook) AfterTests(_ context.Context) error {
	h.lock.Lock()
	defer h.lock.Unlock()

	h.capture = nil

	return nil
}

// Use returns the capture handle.
func (h *LogCaptureHook) Use() (*LogCapture, error) {
	h.lock.Lock()
	defer h.lock.Unlock()

	if !h.configured {
		return nil, fmt.Errorf("log-capture hook: %w", ErrNotConfigured)
	}
	if h.capture == nil {
		return nil, fmt.Errorf("log-capture hook: %w", ErrNotStarted)
	}

	return h.capture, nil
}

// LogCaptureModule wraps a LogCaptureHook as a library module.
func LogCaptureModule(h *LogCaptureHook) Module {
	return Module{
		Name: ModuleLogCapture,
		Hook: h,
		Setup: func(opts any) error {
			level, ok := opts.(zerolog.Level)
			if !ok {
				return fmt.Errorf(
					"log-capture hook: %w: want zerolog.Level, got %T",
					ErrBadOptions, opts)
			}

			return h.Configure(level)
		},
		Return: func() (any, error) {
			return h.Use()
		},
	}
}
