package driver

import (
	"context"
	"errors"
	"sync"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/rs/zerolog"
	"go.uber.org/mock/gomock"

	"github.com/sarchlab/stagehand/app"
	"github.com/sarchlab/stagehand/emergency"
	"github.com/sarchlab/stagehand/fakeapp"
	"github.com/sarchlab/stagehand/hooks"
	"github.com/sarchlab/stagehand/hookset"
)

// phaseLog records hook invocations across the whole suite run.
type phaseLog struct {
	lock  sync.Mutex
	calls []string
}

func (l *phaseLog) add(entry string) {
	l.lock.Lock()
	defer l.lock.Unlock()

	l.calls = append(l.calls, entry)
}

func (l *phaseLog) entries() []string {
	l.lock.Lock()
	defer l.lock.Unlock()

	out := make([]string, len(l.calls))
	copy(out, l.calls)

	return out
}

func (l *phaseLog) count(entry string) int {
	n := 0
	for _, e := range l.entries() {
		if e == entry {
			n++
		}
	}

	return n
}

// probeHook logs every phase and can be told to fail one of them.
type probeHook struct {
	hooks.Base

	name string
	log  *phaseLog

	failBeforeStart   error
	failBeforeTests   error
	failAfterEachTest error
}

func newProbeHook(name string, priority int, log *phaseLog) *probeHook {
	return &probeHook{
		Base: hooks.NewBase(priority),
		name: name,
		log:  log,
	}
}

func (h *probeHook) BeforeStart(_ context.Context) error {
	h.log.add(h.name + ":beforeStart")
	return h.failBeforeStart
}

func (h *probeHook) AfterStart(_ context.Context, _ *app.View) error {
	h.log.add(h.name + ":afterStart")
	return nil
}

func (h *probeHook) BeforeTests(_ context.Context) error {
	h.log.add(h.name + ":beforeTests")
	return h.failBeforeTests
}

func (h *probeHook) AfterTests(_ context.Context) error {
	h.log.add(h.name + ":afterTests")
	return nil
}

func (h *probeHook) BeforeEachTest(_ context.Context) error {
	h.log.add(h.name + ":beforeEachTest")
	return nil
}

func (h *probeHook) AfterEachTest(_ context.Context) error {
	h.log.add(h.name + ":afterEachTest")
	return h.failAfterEachTest
}

func probeLibrary(probes ...*probeHook) *hookset.Library {
	modules := make([]hookset.Module, 0, len(probes))
	for _, p := range probes {
		modules = append(modules, hookset.Module{Name: p.name, Hook: p})
	}

	lib, err := hookset.NewLibrary(modules...)
	if err != nil {
		panic(err)
	}

	return lib
}

func quietRegistry() *emergency.Registry {
	r := emergency.NewRegistry()
	r.SetLogger(zerolog.Nop())
	r.SetExit(func(int) {})
	r.DisableForcedExit()

	return r
}

var _ = Describe("Driver", func() {
	var (
		log      *phaseLog
		registry *emergency.Registry
		ctx      context.Context
	)

	BeforeEach(func() {
		log = &phaseLog{}
		registry = quietRegistry()
		ctx = context.Background()
	})

	It("should run the full phase sequence over a suite", func() {
		a := newProbeHook("a", 1, log)
		b := newProbeHook("b", 2, log)

		d := MakeBuilder().
			WithApp(fakeapp.New()).
			WithLibrary(probeLibrary(a, b)).
			WithRegistry(registry).
			WithLogger(zerolog.Nop()).
			Build()

		_, err := d.Launch(ctx)
		Expect(err).ToNot(HaveOccurred())

		for i := 0; i < 2; i++ {
			Expect(d.BeforeTest(ctx)).To(Succeed())
			Expect(d.AfterTest(ctx)).To(Succeed())
		}

		Expect(d.Shutdown(ctx)).To(Succeed())

		Expect(log.entries()).To(Equal([]string{
			"a:beforeStart", "b:beforeStart",
			"a:afterStart", "b:afterStart",
			"a:beforeTests", "b:beforeTests",
			"a:beforeEachTest", "b:beforeEachTest",
			"a:afterEachTest", "b:afterEachTest",
			"a:beforeEachTest", "b:beforeEachTest",
			"a:afterEachTest", "b:afterEachTest",
			"a:afterTests", "b:afterTests",
		}))
		Expect(d.State()).To(Equal(Terminated))
	})

	It("should never start the application when before-start fails", func() {
		mockCtrl := gomock.NewController(GinkgoT())
		defer mockCtrl.Finish()

		application := NewMockApp(mockCtrl)
		// No Start expectation: any call to Start fails the test.

		failing := newProbeHook("failing", 1, log)
		failing.failBeforeStart = errors.New("no disk space")
		later := newProbeHook("later", 2, log)

		d := MakeBuilder().
			WithApp(application).
			WithLibrary(probeLibrary(failing, later)).
			WithRegistry(registry).
			WithLogger(zerolog.Nop()).
			Build()

		_, err := d.Launch(ctx)

		Expect(err).To(MatchError("no disk space"))
		Expect(log.entries()).To(Equal([]string{"failing:beforeStart"}))
	})

	It("should pass the collected overrides to the application", func() {
		application := fakeapp.New()

		d := MakeBuilder().
			WithApp(application).
			WithSetup(func(s hookset.SetupHooks) error {
				return s.Config(map[string]any{
					"feature": map[string]any{"flag": true},
				})
			}).
			WithRegistry(registry).
			WithLogger(zerolog.Nop()).
			Build()

		_, err := d.Launch(ctx)
		Expect(err).ToNot(HaveOccurred())
		defer d.Shutdown(ctx)

		Expect(application.Overrides).To(HaveKey("feature"))
	})

	It("should abort setup collection on a failing callback", func() {
		mockCtrl := gomock.NewController(GinkgoT())
		defer mockCtrl.Finish()

		application := NewMockApp(mockCtrl)

		d := MakeBuilder().
			WithApp(application).
			WithSetup(func(hookset.SetupHooks) error {
				return errors.New("bad setup")
			}).
			WithRegistry(registry).
			WithLogger(zerolog.Nop()).
			Build()

		_, err := d.Launch(ctx)

		Expect(err).To(MatchError(ContainSubstring("bad setup")))
		Expect(d.State()).To(Equal(Created))
	})

	It("should still tear down after a before-tests failure", func() {
		application := fakeapp.New()

		failing := newProbeHook("failing", 1, log)
		failing.failBeforeTests = errors.New("boom")

		d := MakeBuilder().
			WithApp(application).
			WithLibrary(probeLibrary(failing)).
			WithRegistry(registry).
			WithLogger(zerolog.Nop()).
			Build()

		_, err := d.Launch(ctx)

		Expect(err).To(MatchError("boom"))
		Expect(application.StartCount).To(Equal(1),
			"the application was already booted when before-tests ran")

		Expect(d.Shutdown(ctx)).To(Succeed())
		Expect(log.count("failing:afterTests")).To(Equal(1))
		Expect(application.Started()).To(BeFalse())
	})

	It("should keep the suite going after a per-test phase failure", func() {
		flaky := newProbeHook("flaky", 1, log)

		d := MakeBuilder().
			WithApp(fakeapp.New()).
			WithLibrary(probeLibrary(flaky)).
			WithRegistry(registry).
			WithLogger(zerolog.Nop()).
			Build()

		_, err := d.Launch(ctx)
		Expect(err).ToNot(HaveOccurred())

		// Test 1 fails in its after-each phase.
		Expect(d.BeforeTest(ctx)).To(Succeed())
		flaky.failAfterEachTest = errors.New("cleanup failed")
		Expect(d.AfterTest(ctx)).To(MatchError("cleanup failed"))

		// Test 2 still runs normally.
		flaky.failAfterEachTest = nil
		Expect(d.BeforeTest(ctx)).To(Succeed())
		Expect(d.AfterTest(ctx)).To(Succeed())

		Expect(d.Shutdown(ctx)).To(Succeed())
		Expect(log.count("flaky:beforeEachTest")).To(Equal(2))
		Expect(log.count("flaky:afterTests")).To(Equal(1))
	})

	It("should refuse a second launch", func() {
		d := MakeBuilder().
			WithApp(fakeapp.New()).
			WithRegistry(registry).
			WithLogger(zerolog.Nop()).
			Build()

		_, err := d.Launch(ctx)
		Expect(err).ToNot(HaveOccurred())
		defer d.Shutdown(ctx)

		_, err = d.Launch(ctx)
		Expect(err).To(MatchError(ContainSubstring("already launched")))
	})

	It("should make shutdown idempotent", func() {
		d := MakeBuilder().
			WithApp(fakeapp.New()).
			WithRegistry(registry).
			WithLogger(zerolog.Nop()).
			Build()

		_, err := d.Launch(ctx)
		Expect(err).ToNot(HaveOccurred())

		Expect(d.Shutdown(ctx)).To(Succeed())
		Expect(d.Shutdown(ctx)).To(Succeed())
	})

	Context("emergency cleanup", func() {
		It("should finish the in-flight test and tear down once", func() {
			probe := newProbeHook("probe", 1, log)
			application := fakeapp.New()

			d := MakeBuilder().
				WithApp(application).
				WithLibrary(probeLibrary(probe)).
				WithRegistry(registry).
				WithLogger(zerolog.Nop()).
				Build()

			_, err := d.Launch(ctx)
			Expect(err).ToNot(HaveOccurred())
			Expect(d.BeforeTest(ctx)).To(Succeed())

			registry.Trigger(errors.New("unhandled failure"))

			Expect(log.count("probe:afterEachTest")).To(Equal(1))
			Expect(log.count("probe:afterTests")).To(Equal(1))
			Expect(application.Started()).To(BeFalse())
			Expect(d.State()).To(Equal(EmergencyCleanup))
		})

		It("should clean up all drivers exactly once across triggers", func() {
			probe1 := newProbeHook("one", 1, log)
			probe2 := newProbeHook("two", 1, log)

			d1 := MakeBuilder().
				WithApp(fakeapp.New()).
				WithLibrary(probeLibrary(probe1)).
				WithRegistry(registry).
				WithLogger(zerolog.Nop()).
				Build()
			d2 := MakeBuilder().
				WithApp(fakeapp.New()).
				WithLibrary(probeLibrary(probe2)).
				WithRegistry(registry).
				WithLogger(zerolog.Nop()).
				Build()

			_, err := d1.Launch(ctx)
			Expect(err).ToNot(HaveOccurred())
			_, err = d2.Launch(ctx)
			Expect(err).ToNot(HaveOccurred())

			registry.Trigger(errors.New("first unhandled failure"))
			registry.Trigger(errors.New("second unhandled failure"))

			Expect(log.count("one:afterTests")).To(Equal(1))
			Expect(log.count("two:afterTests")).To(Equal(1))
		})

		It("should keep later steps running when one fails", func() {
			probe := newProbeHook("probe", 1, log)
			probe.failAfterEachTest = errors.New("stuck resource")
			application := fakeapp.New()

			d := MakeBuilder().
				WithApp(application).
				WithLibrary(probeLibrary(probe)).
				WithRegistry(registry).
				WithLogger(zerolog.Nop()).
				Build()

			_, err := d.Launch(ctx)
			Expect(err).ToNot(HaveOccurred())
			Expect(d.BeforeTest(ctx)).To(Succeed())

			registry.Trigger(errors.New("unhandled failure"))

			Expect(log.count("probe:afterTests")).To(Equal(1),
				"a failing cleanup step must not block the next one")
			Expect(application.Started()).To(BeFalse())
		})
	})
})
