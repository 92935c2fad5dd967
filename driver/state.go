package driver

// State is the position of a driver in its lifecycle.
type State int

// The driver states, in the order a successful run passes through them.
// EmergencyCleanup is a parallel terminal state reachable from any state
// after AppStarted.
const (
	Created State = iota
	SetupCollected
	BeforeStartRun
	AppStarted
	AfterStartRun
	BeforeTestsRun
	TestRunning
	BetweenTests
	AfterTestsRun
	Terminated
	EmergencyCleanup
)

var stateNames = map[State]string{
	Created:          "Created",
	SetupCollected:   "SetupCollected",
	BeforeStartRun:   "BeforeStartRun",
	AppStarted:       "AppStarted",
	AfterStartRun:    "AfterStartRun",
	BeforeTestsRun:   "BeforeTestsRun",
	TestRunning:      "TestRunning",
	BetweenTests:     "BetweenTests",
	AfterTestsRun:    "AfterTestsRun",
	Terminated:       "Terminated",
	EmergencyCleanup: "EmergencyCleanup",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}

	return "Unknown"
}
