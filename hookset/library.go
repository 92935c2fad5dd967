// Package hookset provides the built-in hook library: the hooks that cover
// the common concerns of an integration test (configuration, environment,
// clocks, infrastructure, HTTP access, service resolution, logging, metrics)
// and the Library that composes them into the two surfaces test code
// touches, SetupHooks and ReturnHooks.
package hookset

import (
	"fmt"

	"github.com/sarchlab/stagehand/hooks"
)

// A SetupFunc declares desired behavior for one hook before the application
// boots. The accepted option type is part of each hook's contract.
type SetupFunc func(opts any) error

// A ReturnFunc hands out one hook's runtime handle after the application has
// booted.
type ReturnFunc func() (any, error)

// A Module is one named entry of a library: a hook plus its setup and
// runtime surfaces. Setup and Return may be nil for hooks that only exist on
// one side.
type Module struct {
	Name   string
	Hook   hooks.Hook
	Setup  SetupFunc
	Return ReturnFunc
}

// A Library is an ordered, collision-free collection of modules. Extension
// is composition: concatenate module lists, never override entries.
type Library struct {
	modules   []Module
	nameIndex map[string]int
}

// NewLibrary creates a library from the given modules. It fails if two
// modules share a name.
func NewLibrary(modules ...Module) (*Library, error) {
	l := &Library{
		nameIndex: make(map[string]int),
	}

	for _, m := range modules {
		if err := l.add(m); err != nil {
			return nil, err
		}
	}

	return l, nil
}

func (l *Library) add(m Module) error {
	if m.Name == "" {
		return fmt.Errorf("module with priority %d has no name",
			m.Hook.Priority())
	}

	if _, taken := l.nameIndex[m.Name]; taken {
		return fmt.Errorf("%w: %q", ErrDuplicateModule, m.Name)
	}

	l.modules = append(l.modules, m)
	l.nameIndex[m.Name] = len(l.modules) - 1

	return nil
}

// Extend returns a new library holding this library's modules followed by
// the given ones. It fails on any name collision, including collisions with
// the base modules.
func (l *Library) Extend(modules ...Module) (*Library, error) {
	all := make([]Module, 0, len(l.modules)+len(modules))
	all = append(all, l.modules...)
	all = append(all, modules...)

	return NewLibrary(all...)
}

// Register adds every module's hook to the manager, in module order. The
// manager re-sorts by priority; module order only matters for priority ties.
func (l *Library) Register(m *hooks.Manager) {
	for _, mod := range l.modules {
		m.Add(mod.Hook)
	}
}

// Modules returns the modules in registration order.
func (l *Library) Modules() []Module {
	out := make([]Module, len(l.modules))
	copy(out, l.modules)

	return out
}

// Module returns the module with the given name.
func (l *Library) Module(name string) (Module, bool) {
	i, ok := l.nameIndex[name]
	if !ok {
		return Module{}, false
	}

	return l.modules[i], true
}

// SetupHooks builds the name-to-configuration-function mapping handed to the
// user's setup callback. Only modules with a setup surface appear.
func (l *Library) SetupHooks() SetupHooks {
	out := make(SetupHooks)
	for _, m := range l.modules {
		if m.Setup != nil {
			out[m.Name] = m.Setup
		}
	}

	return out
}

// ReturnHooks builds the name-to-runtime-accessor mapping handed back to
// test bodies. Only modules with a runtime surface appear.
func (l *Library) ReturnHooks() ReturnHooks {
	out := make(ReturnHooks)
	for _, m := range l.modules {
		if m.Return != nil {
			out[m.Name] = m.Return
		}
	}

	return out
}

// StartOverrides returns the configuration overrides collected by the config
// hook during setup, to be passed to the application's start operation. It
// returns nil when the library carries no config module or nothing was
// configured.
func (l *Library) StartOverrides() map[string]any {
	m, ok := l.Module(ModuleConfig)
	if !ok {
		return nil
	}

	cfg, ok := m.Hook.(*ConfigHook)
	if !ok {
		return nil
	}

	return cfg.Overrides()
}
