package hookset

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"

	"github.com/sarchlab/stagehand/app"
)

// Names of the built-in modules.
const (
	ModuleLogCapture = "logCapture"
	ModuleEnv        = "env"
	ModuleInfra      = "infra"
	ModuleSandbox    = "sandbox"
	ModuleConfig     = "config"
	ModuleClock      = "clock"
	ModuleAppView    = "appView"
	ModuleAddress    = "address"
	ModuleServices   = "services"
	ModuleHTTP       = "httpClient"
	ModuleMetrics    = "metrics"
)

// SetupHooks maps module names to configuration functions. The user's setup
// callback receives it before the application boots. The typed methods below
// are sugar over the name lookup; the map itself is the extension point for
// custom libraries.
type SetupHooks map[string]SetupFunc

// Call invokes the configuration function registered under name.
func (s SetupHooks) Call(name string, opts any) error {
	f, ok := s[name]
	if !ok {
		return fmt.Errorf("%w: %q", ErrNoModule, name)
	}

	return f(opts)
}

// Config merges one set of configuration overrides. Repeated calls
// accumulate; later calls win on conflicting keys.
func (s SetupHooks) Config(overrides map[string]any) error {
	return s.Call(ModuleConfig, overrides)
}

// Env declares one environment variable for the run. Repeated calls
// accumulate; the last value set for a key wins.
func (s SetupHooks) Env(key, value string) error {
	return s.Call(ModuleEnv, EnvVar{Key: key, Value: value})
}

// EnvFile declares a dotenv file whose variables apply before start.
func (s SetupHooks) EnvFile(path string) error {
	return s.Call(ModuleEnv, EnvFile{Path: path})
}

// Clock enables the virtual clock, starting at the given time.
func (s SetupHooks) Clock(start time.Time) error {
	return s.Call(ModuleClock, start)
}

// Infra declares one named piece of ephemeral infrastructure started before
// the application and stopped after the suite.
func (s SetupHooks) Infra(spec InfraSpec) error {
	return s.Call(ModuleInfra, spec)
}

// Sandbox enables a filesystem sandbox. An empty root places it under the
// system temp directory.
func (s SetupHooks) Sandbox(root string) error {
	return s.Call(ModuleSandbox, SandboxOptions{Root: root})
}

// CaptureLogs enables log capture at the given level.
func (s SetupHooks) CaptureLogs(level zerolog.Level) error {
	return s.Call(ModuleLogCapture, level)
}

// HTTP configures the HTTP client hook.
func (s SetupHooks) HTTP(opts HTTPOptions) error {
	return s.Call(ModuleHTTP, opts)
}

// Metrics enables resource-usage measurement around the suite.
func (s SetupHooks) Metrics() error {
	return s.Call(ModuleMetrics, MetricsOptions{})
}

// ReturnHooks maps module names to runtime accessors. Test bodies call these
// after the application has booted; every accessor fails descriptively when
// its hook was never configured or the application is not up yet.
type ReturnHooks map[string]ReturnFunc

// Call invokes the runtime accessor registered under name.
func (r ReturnHooks) Call(name string) (any, error) {
	f, ok := r[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNoModule, name)
	}

	return f()
}

// Config returns the merged configuration collected during setup.
func (r ReturnHooks) Config() (*viper.Viper, error) {
	v, err := r.Call(ModuleConfig)
	if err != nil {
		return nil, err
	}

	return v.(*viper.Viper), nil
}

// Env returns the environment variables applied for this run.
func (r ReturnHooks) Env() (map[string]string, error) {
	v, err := r.Call(ModuleEnv)
	if err != nil {
		return nil, err
	}

	return v.(map[string]string), nil
}

// Clock returns the virtual clock.
func (r ReturnHooks) Clock() (*VirtualClock, error) {
	v, err := r.Call(ModuleClock)
	if err != nil {
		return nil, err
	}

	return v.(*VirtualClock), nil
}

// View returns the view of the running application.
func (r ReturnHooks) View() (*app.View, error) {
	v, err := r.Call(ModuleAppView)
	if err != nil {
		return nil, err
	}

	return v.(*app.View), nil
}

// Address returns the host:port the application listens on.
func (r ReturnHooks) Address() (string, error) {
	v, err := r.Call(ModuleAddress)
	if err != nil {
		return "", err
	}

	return v.(string), nil
}

// HTTP returns a client bound to the running application.
func (r ReturnHooks) HTTP() (*HTTPClient, error) {
	v, err := r.Call(ModuleHTTP)
	if err != nil {
		return nil, err
	}

	return v.(*HTTPClient), nil
}

// Services returns the resolver for services and repositories.
func (r ReturnHooks) Services() (*Resolver, error) {
	v, err := r.Call(ModuleServices)
	if err != nil {
		return nil, err
	}

	return v.(*Resolver), nil
}

// Infra returns the handle of one named running infrastructure resource.
func (r ReturnHooks) Infra(name string) (any, error) {
	v, err := r.Call(ModuleInfra)
	if err != nil {
		return nil, err
	}

	return v.(*InfraSet).Get(name)
}

// Sandbox returns the path of the filesystem sandbox.
func (r ReturnHooks) Sandbox() (string, error) {
	v, err := r.Call(ModuleSandbox)
	if err != nil {
		return "", err
	}

	return v.(string), nil
}

// Logs returns the log capture handle.
func (r ReturnHooks) Logs() (*LogCapture, error) {
	v, err := r.Call(ModuleLogCapture)
	if err != nil {
		return nil, err
	}

	return v.(*LogCapture), nil
}

// Metrics returns the resource usage measured over the suite so far.
func (r ReturnHooks) Metrics() (*Usage, error) {
	v, err := r.Call(ModuleMetrics)
	if err != nil {
		return nil, err
	}

	return v.(*Usage), nil
}
