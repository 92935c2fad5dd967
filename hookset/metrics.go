package hookset

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/shirou/gopsutil/process"

	"github.com/sarchlab/stagehand/hooks"
	"github.com/sarchlab/stagehand/recording"
)

// MetricsOptions configures the metrics hook. There are currently no knobs;
// the presence of a setup call is what enables measurement.
type MetricsOptions struct{}

// Usage is the resource consumption of the test process measured between the
// before-tests and after-tests phases.
type Usage struct {
	CPUSeconds float64
	RSSBytes   uint64
}

// MetricsHook measures the process's resource usage over the suite and,
// when a recorder is attached, persists the measurement.
type MetricsHook struct {
	hooks.Base

	lock       sync.Mutex
	configured bool
	recorder   recording.Recorder

	proc     *process.Process
	cpuStart float64
	usage    *Usage
}

// NewMetricsHook creates a MetricsHook with the given priority.
func NewMetricsHook(priority int) *MetricsHook {
	return &MetricsHook{Base: hooks.NewBase(priority)}
}

// Configure enables measurement.
func (h *MetricsHook) Configure(_ MetricsOptions) error {
	h.lock.Lock()
	defer h.lock.Unlock()

	h.configured = true

	return nil
}

// SetRecorder attaches a recorder that receives the final measurement. The
// driver wires this when it owns a recorder.
func (h *MetricsHook) SetRecorder(r recording.Recorder) {
	h.lock.Lock()
	defer h.lock.Unlock()

	h.recorder = r
}

// BeforeTests snapshots the starting CPU time.
func (h *MetricsHook) BeforeTests(_ context.Context) error {
	h.lock.Lock()
	defer h.lock.Unlock()

	if !h.configured {
		return nil
	}

	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return fmt.Errorf("metrics hook: observing process: %w", err)
	}
	h.proc = proc

	times, err := proc.Times()
	if err != nil {
		return fmt.Errorf("metrics hook: reading cpu times: %w", err)
	}
	h.cpuStart = times.User + times.System

	return nil
}

// AfterTests computes the usage over the suite and records it.
func (h *MetricsHook) AfterTests(_ context.Context) error {
	h.lock.Lock()
	defer h.lock.Unlock()

	if h.proc == nil {
		return nil
	}

	times, err := h.proc.Times()
	if err != nil {
		return fmt.Errorf("metrics hook: reading cpu times: %w", err)
	}

	usage := &Usage{CPUSeconds: times.User + times.System - h.cpuStart}

	if mem, err := h.proc.MemoryInfo(); err == nil {
		usage.RSSBytes = mem.RSS
	}

	h.usage = usage
	h.proc = nil

	if h.recorder != nil {
		h.recorder.RecordPhase("", "metrics", "measured",
			fmt.Sprintf("cpu=%.3fs rss=%d", usage.CPUSeconds, usage.RSSBytes))
	}

	return nil
}

// Use returns the most recent measurement. During the suite it reports the
// usage accumulated so far.
func (h *MetricsHook) Use() (*Usage, error) {
	h.lock.Lock()
	defer h.lock.Unlock()

	if !h.configured {
		return nil, fmt.Errorf("metrics hook: %w", ErrNotConfigured)
	}

	if h.proc != nil {
		times, err := h.proc.Times()
		if err != nil {
			return nil, fmt.Errorf("metrics hook: reading cpu times: %w", err)
		}

		return &Usage{CPUSeconds: times.User + times.System - h.cpuStart}, nil
	}

	if h.usage == nil {
		return nil, fmt.Errorf("metrics hook: %w", ErrNotStarted)
	}

	return h.usage, nil
}

// MetricsModule wraps a MetricsHook as a library module.
func MetricsModule(h *MetricsHook) Module {
	return Module{
		Name: ModuleMetrics,
		Hook: h,
		Setup: func(opts any) error {
			o, ok := opts.(MetricsOptions)
			if !ok {
				return fmt.Errorf(
					"metrics hook: %w: want MetricsOptions, got %T",
					ErrBadOptions, opts)
			}

			return h.Configure(o)
		},
		Return: func() (any, error) {
			return h.Use()
		},
	}
}
