package hooks

import (
	"context"
	"errors"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/stagehand/app"
)

// A callLog records the order hooks fire in, across hooks.
type callLog struct {
	lock  sync.Mutex
	calls []string
}

func (l *callLog) add(entry string) {
	l.lock.Lock()
	defer l.lock.Unlock()

	l.calls = append(l.calls, entry)
}

func (l *callLog) entries() []string {
	l.lock.Lock()
	defer l.lock.Unlock()

	out := make([]string, len(l.calls))
	copy(out, l.calls)

	return out
}

// probeHook writes its name into the log in every phase.
type probeHook struct {
	Base

	name string
	log  *callLog

	beforeStartErr error
	delay          time.Duration
	onBeforeStart  func()
}

func newProbeHook(name string, priority int, log *callLog) *probeHook {
	return &probeHook{
		Base: NewBase(priority),
		name: name,
		log:  log,
	}
}

func (h *probeHook) BeforeStart(_ context.Context) error {
	if h.delay > 0 {
		time.Sleep(h.delay)
	}
	if h.onBeforeStart != nil {
		h.onBeforeStart()
	}

	h.log.add(h.name + ":beforeStart")

	return h.beforeStartErr
}

func (h *probeHook) AfterStart(_ context.Context, view *app.View) error {
	h.SetState("view", view)
	h.log.add(h.name + ":afterStart")

	return nil
}

func (h *probeHook) BeforeTests(_ context.Context) error {
	h.log.add(h.name + ":beforeTests")
	return nil
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
	return nil
}

var _ = Describe("Manager", func() {
	var (
		manager *Manager
		log     *callLog
	)

	BeforeEach(func() {
		manager = NewManager()
		log = &callLog{}
	})

	It("should run hooks in ascending priority order", func() {
		manager.Add(newProbeHook("p3", 3, log))
		manager.Add(newProbeHook("p1a", 1, log))
		manager.Add(newProbeHook("p1b", 1, log))
		manager.Add(newProbeHook("p2", 2, log))

		err := manager.RunBeforeStart(context.Background())

		Expect(err).ToNot(HaveOccurred())
		Expect(log.entries()).To(Equal([]string{
			"p1a:beforeStart",
			"p1b:beforeStart",
			"p2:beforeStart",
			"p3:beforeStart",
		}))
	})

	It("should keep registration order for equal priorities", func() {
		manager.Add(newProbeHook("x", 5, log))
		manager.Add(newProbeHook("y", 5, log))

		err := manager.RunBeforeTests(context.Background())

		Expect(err).ToNot(HaveOccurred())
		Expect(log.entries()).To(Equal([]string{
			"x:beforeTests",
			"y:beforeTests",
		}))
	})

	It("should run hooks one at a time, never concurrently", func() {
		flagSet := false

		slow := newProbeHook("slow", 1, log)
		slow.delay = 20 * time.Millisecond
		slow.onBeforeStart = func() { flagSet = true }

		observer := newProbeHook("observer", 2, log)
		observed := false
		observer.onBeforeStart = func() { observed = flagSet }

		manager.Add(observer)
		manager.Add(slow)

		err := manager.RunBeforeStart(context.Background())

		Expect(err).ToNot(HaveOccurred())
		Expect(observed).To(BeTrue(),
			"the later hook must only run after the earlier one finished")
	})

	It("should stop the phase at the first failing hook", func() {
		boom := errors.New("boom")

		failing := newProbeHook("failing", 1, log)
		failing.beforeStartErr = boom
		manager.Add(failing)
		manager.Add(newProbeHook("later", 2, log))

		err := manager.RunBeforeStart(context.Background())

		Expect(err).To(MatchError(boom))
		Expect(log.entries()).To(Equal([]string{"failing:beforeStart"}))
	})

	It("should pass the application view to every hook's after-start", func() {
		h1 := newProbeHook("h1", 1, log)
		h2 := newProbeHook("h2", 2, log)
		manager.Add(h1)
		manager.Add(h2)

		view := &app.View{}
		err := manager.RunAfterStart(context.Background(), view)

		Expect(err).ToNot(HaveOccurred())

		got1, _ := h1.State("view")
		got2, _ := h2.State("view")
		Expect(got1).To(BeIdenticalTo(view))
		Expect(got2).To(BeIdenticalTo(view))
	})

	It("should run each phase over all hooks before the next phase", func() {
		manager.Add(newProbeHook("a", 1, log))
		manager.Add(newProbeHook("b", 2, log))

		ctx := context.Background()
		Expect(manager.RunBeforeStart(ctx)).To(Succeed())
		Expect(manager.RunAfterStart(ctx, &app.View{})).To(Succeed())
		Expect(manager.RunBeforeTests(ctx)).To(Succeed())
		Expect(manager.RunBeforeEachTest(ctx)).To(Succeed())
		Expect(manager.RunAfterEachTest(ctx)).To(Succeed())
		Expect(manager.RunAfterTests(ctx)).To(Succeed())

		Expect(log.entries()).To(Equal([]string{
			"a:beforeStart", "b:beforeStart",
			"a:afterStart", "b:afterStart",
			"a:beforeTests", "b:beforeTests",
			"a:beforeEachTest", "b:beforeEachTest",
			"a:afterEachTest", "b:afterEachTest",
			"a:afterTests", "b:afterTests",
		}))
	})
})
