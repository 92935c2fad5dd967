package hookset

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/sarchlab/stagehand/app"
	"github.com/sarchlab/stagehand/hooks"
)

// HTTPOptions configures the HTTP client hook.
type HTTPOptions struct {
	// Timeout bounds each request. Zero keeps the default of 10 seconds.
	Timeout time.Duration
}

// An HTTPClient is an http.Client bound to the running application's base
// URL.
type HTTPClient struct {
	BaseURL string
	Client  *http.Client
}

// URL joins the base URL with a path.
func (c *HTTPClient) URL(path string) string {
	return c.BaseURL + "/" + strings.TrimPrefix(path, "/")
}

// Get issues a GET request against a path of the application.
func (c *HTTPClient) Get(ctx context.Context, path string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.URL(path), nil)
	if err != nil {
		return nil, err
	}

	return c.Client.Do(req)
}

// HTTPHook builds an HTTP client against the started application.
type HTTPHook struct {
	hooks.Base

	lock    sync.Mutex
	timeout time.Duration
	client  *HTTPClient
}

// NewHTTPHook creates an HTTPHook with the given priority.
func NewHTTPHook(priority int) *HTTPHook {
	return &HTTPHook{
		Base:    hooks.NewBase(priority),
		timeout: 10 * time.Second,
	}
}

// Configure sets the client options. Optional; the hook also works
// unconfigured with defaults.
func (h *HTTPHook) Configure(opts HTTPOptions) error {
	if opts.Timeout < 0 {
		return fmt.Errorf("http hook: %w: negative timeout", ErrBadOptions)
	}

	h.lock.Lock()
	defer h.lock.Unlock()

	if opts.Timeout > 0 {
		h.timeout = opts.Timeout
	}

	return nil
}

// AfterStart builds the client against the application address.
func (h *HTTPHook) AfterStart(_ context.Context, view *app.View) error {
	h.lock.Lock()
	defer h.lock.Unlock()

	h.client = &HTTPClient{
		BaseURL: "http://" + view.Addr(),
		Client:  &http.Client{Timeout: h.timeout},
	}

	return nil
}

// AfterTests drops the client.
func (h *HTTPHook) AfterTests(_ context.Context) error {
	h.lock.Lock()
	defer h.lock.Unlock()

	h.client = nil

	return nil
}

// Use returns the client.
func (h *HTTPHook) Use() (*HTTPClient, error) {
	h.lock.Lock()
	defer h.lock.Unlock()

	if h.client == nil {
		return nil, fmt.Errorf("http hook: %w", ErrNotStarted)
	}

	return h.client, nil
}

// HTTPModule wraps an HTTPHook as a library module.
func HTTPModule(h *HTTPHook) Module {
	return Module{
		Name: ModuleHTTP,
		Hook: h,
		Setup: func(opts any) error {
			o, ok := opts.(HTTPOptions)
			if !ok {
				return fmt.Errorf(
					"http hook: %w: want HTTPOptions, got %T",
					ErrBadOptions, opts)
			}

			return h.Configure(o)
		},
		Return: func() (any, error) {
			return h.Use()
		},
	}
}
