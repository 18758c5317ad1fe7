package progress

import (
	"context"
	"sync"
	"time"

	"go.uber.org/atomic"

	"github.com/lc/ipsniper/internal/log"
)

// ReportFunc receives the number of lookups completed during the last interval.
type ReportFunc func(rate uint64)

// LogReport is the default ReportFunc.
func LogReport(rate uint64) {
	log.Infof("monitor: current rate: %d domains/sec", rate)
}

// Monitor samples a Counter every interval and reports the delta.
type Monitor struct {
	counter  *Counter
	interval time.Duration
	report   ReportFunc

	current atomic.Uint64 // last reported rate

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewMonitor returns a stopped monitor. A nil report logs each sample.
func NewMonitor(counter *Counter, interval time.Duration, report ReportFunc) *Monitor {
	if report == nil {
		report = LogReport
	}
	return &Monitor{
		counter:  counter,
		interval: interval,
		report:   report,
	}
}

// Start runs the sampling loop in the background until Stop is called or ctx
// is cancelled. Calling Start on a running monitor is a no-op.
func (m *Monitor) Start(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cancel != nil {
		return
	}
	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	// the baseline is taken before Start returns so no completion is missed
	base := m.counter.Load()
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		m.run(runCtx, base)
	}()
}

// Stop cancels the sampling loop and waits for it to exit. The partial
// interval in progress is not reported.
func (m *Monitor) Stop() {
	m.mu.Lock()
	cancel := m.cancel
	m.cancel = nil
	m.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	m.wg.Wait()
}

// Current returns the most recently reported rate.
func (m *Monitor) Current() uint64 { return m.current.Load() }

func (m *Monitor) run(ctx context.Context, last uint64) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			// a tick racing with cancellation must not report
			if ctx.Err() != nil {
				return
			}
			now := m.counter.Load()
			rate := now - last
			last = now
			m.current.Store(rate)
			m.report(rate)
		case <-ctx.Done():
			return
		}
	}
}
