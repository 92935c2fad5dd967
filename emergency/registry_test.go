package emergency

import (
	"errors"
	"sync"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/rs/zerolog"
)

// countingCleaner counts how often it is notified.
type countingCleaner struct {
	lock  sync.Mutex
	count int
	cause error
	panic bool
}

func (c *countingCleaner) EmergencyCleanup(cause error) {
	c.lock.Lock()
	defer c.lock.Unlock()

	c.count++
	c.cause = cause

	if c.panic {
		panic("cleaner exploded")
	}
}

func (c *countingCleaner) calls() int {
	c.lock.Lock()
	defer c.lock.Unlock()

	return c.count
}

var _ = Describe("Registry", func() {
	var (
		registry  *Registry
		exitCodes []int
	)

	BeforeEach(func() {
		registry = NewRegistry()
		registry.SetLogger(zerolog.Nop())

		exitCodes = nil
		registry.SetExit(func(code int) {
			exitCodes = append(exitCodes, code)
		})
	})

	It("should notify every registered cleaner once", func() {
		a := &countingCleaner{}
		b := &countingCleaner{}
		registry.Register(a)
		registry.Register(b)

		cause := errors.New("stray goroutine blew up")
		registry.Trigger(cause)

		Expect(a.calls()).To(Equal(1))
		Expect(b.calls()).To(Equal(1))
		Expect(a.cause).To(MatchError(cause))
	})

	It("should ignore a second trigger", func() {
		c := &countingCleaner{}
		registry.Register(c)

		registry.Trigger(errors.New("first"))
		registry.Trigger(errors.New("second"))

		Expect(c.calls()).To(Equal(1))
		Expect(exitCodes).To(Equal([]int{1}),
			"the process exits once, for the first trigger")
	})

	It("should keep cleaning after a cleaner panics", func() {
		bad := &countingCleaner{panic: true}
		good := &countingCleaner{}
		registry.Register(bad)
		registry.Register(good)

		registry.Trigger(errors.New("cause"))

		Expect(good.calls()).To(Equal(1))
		Expect(registry.CleanupLog()).To(
			ContainElement(ContainSubstring("panicked")))
	})

	It("should exit with code 1 unless forced exit is disabled", func() {
		registry.Trigger(errors.New("cause"))
		Expect(exitCodes).To(Equal([]int{1}))
	})

	It("should not exit when forced exit is disabled", func() {
		registry.DisableForcedExit()

		registry.Trigger(errors.New("cause"))

		Expect(exitCodes).To(BeEmpty())
		Expect(registry.Triggered()).To(BeTrue())
	})

	It("should stop notifying a deregistered cleaner", func() {
		c := &countingCleaner{}
		registry.Register(c)
		registry.Deregister(c)

		registry.Trigger(errors.New("cause"))

		Expect(c.calls()).To(Equal(0))
	})

	It("should record completed steps in the cleanup log", func() {
		registry.Register(&countingCleaner{})

		registry.Trigger(errors.New("cause"))

		log := registry.CleanupLog()
		Expect(log).To(ContainElement(ContainSubstring("cleaner 0 done")))
		Expect(log).To(ContainElement(
			ContainSubstring("emergency cleanup finished")))
	})

	It("should be reusable after a reset", func() {
		c := &countingCleaner{}
		registry.Register(c)
		registry.Trigger(errors.New("first run"))
		Expect(c.calls()).To(Equal(1))

		registry.Reset()
		registry.SetExit(func(int) {})
		registry.Register(c)
		registry.Trigger(errors.New("second run"))

		Expect(c.calls()).To(Equal(2))
		Expect(registry.Triggered()).To(BeTrue())
	})

	It("should convert a panic into a trigger through Recover", func() {
		registry.DisableForcedExit()
		c := &countingCleaner{}
		registry.Register(c)

		done := make(chan struct{})
		go func() {
			defer close(done)
			defer registry.Recover()
			panic("timer callback exploded")
		}()
		<-done

		Expect(c.calls()).To(Equal(1))
		Expect(c.cause.Error()).To(ContainSubstring("timer callback"))
	})

	It("should install and uninstall without panicking", func() {
		registry.Install()
		registry.Install()
		registry.Uninstall()
		registry.Uninstall()
	})
})
