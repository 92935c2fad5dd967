package app

// Kind tells what role a registration plays in the dependency-injection
// container.
type Kind string

// The kinds of registrations the engine can ask for.
const (
	KindService    Kind = "service"
	KindRepository Kind = "repository"
)

// ResolutionStatus is the outcome of a container lookup.
type ResolutionStatus int

// The possible outcomes of a container lookup.
const (
	// Found means the name is registered with the requested kind.
	Found ResolutionStatus = iota

	// NotRegistered means the container has no registration under the name.
	NotRegistered

	// WrongKind means the name is registered, but not with the requested
	// kind.
	WrongKind
)

// A Resolution is the tagged result of a container lookup. Instance is only
// meaningful when Status is Found.
type Resolution struct {
	Status   ResolutionStatus
	Instance any
}

// A Container is the dependency-injection container of a started
// application. Lookups return a tagged Resolution rather than an error so
// callers can produce precise messages for each failure mode.
type Container interface {
	Resolve(name string, kind Kind) Resolution
}
