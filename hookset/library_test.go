package hookset

import (
	. "github.com/onsi/ginkgo/v2"
	gm "github.com/onsi/gomega"

	"github.com/sarchlab/stagehand/hooks"
)

type namedHook struct {
	hooks.Base
}

func newNamedHook(priority int) *namedHook {
	return &namedHook{Base: hooks.NewBase(priority)}
}

func plainModule(name string, priority int) Module {
	return Module{
		Name:   name,
		Hook:   newNamedHook(priority),
		Setup:  func(any) error { return nil },
		Return: func() (any, error) { return name, nil },
	}
}

var _ = Describe("Library", func() {
	It("should reject duplicate module names", func() {
		_, err := NewLibrary(
			plainModule("db", 1),
			plainModule("db", 2),
		)

		gm.Expect(err).To(gm.MatchError(ErrDuplicateModule))
	})

	It("should reject unnamed modules", func() {
		_, err := NewLibrary(Module{Hook: newNamedHook(1)})

		gm.Expect(err).To(gm.HaveOccurred())
	})

	It("should register every hook with the manager", func() {
		lib, err := NewLibrary(
			plainModule("a", 2),
			plainModule("b", 1),
		)
		gm.Expect(err).ToNot(gm.HaveOccurred())

		m := hooks.NewManager()
		lib.Register(m)

		gm.Expect(m.Hooks()).To(gm.HaveLen(2))
		gm.Expect(m.Hooks()[0].Priority()).To(gm.Equal(1))
		gm.Expect(m.Hooks()[1].Priority()).To(gm.Equal(2))
	})

	It("should extend by concatenation, keeping base modules", func() {
		base, err := NewLibrary(plainModule("a", 1))
		gm.Expect(err).ToNot(gm.HaveOccurred())

		extended, err := base.Extend(plainModule("b", 2))
		gm.Expect(err).ToNot(gm.HaveOccurred())

		gm.Expect(extended.Modules()).To(gm.HaveLen(2))
		gm.Expect(base.Modules()).To(gm.HaveLen(1),
			"extension must not mutate the base library")
	})

	It("should refuse to extend over an existing name", func() {
		base, err := NewLibrary(plainModule("a", 1))
		gm.Expect(err).ToNot(gm.HaveOccurred())

		_, err = base.Extend(plainModule("a", 2))

		gm.Expect(err).To(gm.MatchError(ErrDuplicateModule))
	})

	It("should fail setup calls for unknown names", func() {
		lib, err := NewLibrary(plainModule("a", 1))
		gm.Expect(err).ToNot(gm.HaveOccurred())

		err = lib.SetupHooks().Call("nope", nil)

		gm.Expect(err).To(gm.MatchError(ErrNoModule))
	})
})

var _ = Describe("Default library", func() {
	It("should expose symmetric setup and runtime surfaces", func() {
		lib := Default()

		setup := lib.SetupHooks()
		ret := lib.ReturnHooks()

		// Every configurable module is also usable at runtime, under
		// the same name, backed by the same hook instance.
		for name := range setup {
			gm.Expect(ret).To(gm.HaveKey(name))

			m, ok := lib.Module(name)
			gm.Expect(ok).To(gm.BeTrue())
			gm.Expect(m.Setup).ToNot(gm.BeNil())
			gm.Expect(m.Return).ToNot(gm.BeNil())
		}
	})

	It("should create fresh hook instances per call", func() {
		a := Default()
		b := Default()

		ma, _ := a.Module(ModuleConfig)
		mb, _ := b.Module(ModuleConfig)

		gm.Expect(ma.Hook).ToNot(gm.BeIdenticalTo(mb.Hook))
	})

	It("should order the built-ins so environment precedes config", func() {
		lib := Default()

		env, _ := lib.Module(ModuleEnv)
		cfg, _ := lib.Module(ModuleConfig)

		gm.Expect(env.Hook.Priority()).To(gm.BeNumerically("<",
			cfg.Hook.Priority()))
	})
})
