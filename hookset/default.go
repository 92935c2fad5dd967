package hookset

// Default priorities of the built-in hooks. Lower runs earlier. The gaps
// leave room for custom hooks to slot between built-ins.
const (
	PriorityLogCapture = 8
	PriorityEnv        = 10
	PriorityInfra      = 15
	PrioritySandbox    = 18
	PriorityConfig     = 20
	PriorityClock      = 25
	PriorityAppView    = 30
	PriorityAddress    = 40
	PriorityServices   = 50
	PriorityHTTP       = 60
	PriorityMetrics    = 90
)

// Default builds the built-in library. Each call returns fresh hook
// instances; libraries are never shared between drivers.
func Default() *Library {
	lib, err := NewLibrary(
		LogCaptureModule(NewLogCaptureHook(PriorityLogCapture)),
		EnvModule(NewEnvHook(PriorityEnv)),
		InfraModule(NewInfraHook(PriorityInfra)),
		SandboxModule(NewSandboxHook(PrioritySandbox)),
		ConfigModule(NewConfigHook(PriorityConfig)),
		ClockModule(NewClockHook(PriorityClock)),
		ViewModule(NewViewHook(PriorityAppView)),
		AddressModule(NewAddressHook(PriorityAddress)),
		ServicesModule(NewServicesHook(PriorityServices)),
		HTTPModule(NewHTTPHook(PriorityHTTP)),
		MetricsModule(NewMetricsHook(PriorityMetrics)),
	)
	if err != nil {
		// The built-in names are distinct by construction.
		panic(err)
	}

	return lib
}
