// Package engine runs a sweep: it fans a domain list out over the resolver
// pool under a concurrency budget, retries timed-out lookups, collects
// domains that resolve to a target IP and flushes them to the sink as they
// accumulate. A background monitor reports throughput while the sweep runs.
package engine

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/netip"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/atomic"
	"go.uber.org/multierr"

	"github.com/lc/ipsniper/internal/dnsresolver"
	"github.com/lc/ipsniper/internal/log"
	"github.com/lc/ipsniper/internal/matches"
	"github.com/lc/ipsniper/internal/progress"
)

// Flush failure policies.
const (
	// OnErrorRequeue keeps a batch that failed to persist for the next flush
	// and lets the sweep carry on.
	OnErrorRequeue = "requeue"
	// OnErrorAbort stops admitting domains after the first failed flush.
	OnErrorAbort = "abort"
)

var (
	// ErrFlush is returned when matches could not be written to the sink.
	ErrFlush = errors.New("flushing matches")
	// ErrAlreadyRun is returned when Run is called a second time.
	ErrAlreadyRun = errors.New("engine already ran")
)

// Sink persists a batch of matching domains.
type Sink interface {
	Write(domains []string) error
}

// Options tunes a sweep. Zero values are not defaults: callers are expected
// to fill every field, typically from the loaded configuration.
type Options struct {
	Targets         []string
	MaxRetries      int
	RetryDelay      time.Duration
	Concurrency     int
	Strategy        string
	FlushThreshold  int
	OnFlushError    string
	MonitorInterval time.Duration
	// Report receives each rate sample; nil logs it.
	Report progress.ReportFunc
}

// Engine is a single-use sweep over one domain list.
type Engine struct {
	pool    *dnsresolver.Pool
	sink    Sink
	opts    Options
	targets map[netip.Addr]struct{}
	runID   string

	matches   *matches.Set
	ledger    *progress.Ledger
	processed progress.Counter
	monitor   *progress.Monitor

	clock      atomic.Pointer[progress.Clock]
	started    atomic.Bool
	done       atomic.Bool
	elapsed    atomic.Duration // frozen once done
	total      atomic.Int64
	dispatched atomic.Int64
	attempts   atomic.Uint64
	outcomes   [numOutcomes]atomic.Uint64

	flushMu       sync.Mutex // serialises sink writes
	flushes       atomic.Uint64
	flushFailures atomic.Uint64

	failMu   sync.Mutex
	failErr  error
	cancelFn context.CancelFunc
}

// New creates an Engine querying pool and persisting matches to sink.
func New(pool *dnsresolver.Pool, sink Sink, opts Options) (*Engine, error) {
	if pool == nil || pool.Len() == 0 {
		return nil, dnsresolver.ErrNoServers
	}
	if sink == nil {
		return nil, errors.New("engine: nil sink")
	}
	if opts.MaxRetries < 0 {
		return nil, fmt.Errorf("engine: negative max retries %d", opts.MaxRetries)
	}
	if opts.Concurrency < 1 {
		return nil, fmt.Errorf("engine: concurrency must be at least 1, got %d", opts.Concurrency)
	}
	if opts.FlushThreshold < 1 {
		return nil, fmt.Errorf("engine: flush threshold must be at least 1, got %d", opts.FlushThreshold)
	}
	switch opts.OnFlushError {
	case "":
		opts.OnFlushError = OnErrorRequeue
	case OnErrorRequeue, OnErrorAbort:
	default:
		return nil, fmt.Errorf("engine: unknown flush error policy %q", opts.OnFlushError)
	}
	if err := checkStrategy(opts.Strategy); err != nil {
		return nil, fmt.Errorf("engine: %w", err)
	}
	if opts.MonitorInterval <= 0 {
		opts.MonitorInterval = time.Second
	}

	targets, err := parseTargets(opts.Targets)
	if err != nil {
		return nil, err
	}

	e := &Engine{
		pool:    pool,
		sink:    sink,
		opts:    opts,
		targets: targets,
		runID:   uuid.NewString(),
		matches: matches.NewSet(opts.FlushThreshold),
		ledger:  progress.NewLedger(pool.Len()),
	}
	e.monitor = progress.NewMonitor(&e.processed, opts.MonitorInterval, opts.Report)
	return e, nil
}

func parseTargets(raw []string) (map[netip.Addr]struct{}, error) {
	if len(raw) == 0 {
		return nil, errors.New("engine: no target IPs")
	}
	out := make(map[netip.Addr]struct{}, len(raw))
	for _, t := range raw {
		addr, err := netip.ParseAddr(strings.TrimSpace(t))
		if err != nil {
			return nil, fmt.Errorf("engine: invalid target IP %q: %w", t, err)
		}
		out[addr.Unmap()] = struct{}{}
	}
	return out, nil
}

// RunID identifies this sweep in logs and status reports.
func (e *Engine) RunID() string { return e.runID }

// Run resolves every domain and blocks until all dispatched lookups have
// completed and the remaining matches have been flushed.
//
// Cancelling ctx stops admitting new domains; lookups already in flight run
// to completion and their matches are still flushed. The returned Stats are
// valid even when an error is returned.
func (e *Engine) Run(ctx context.Context, domains []string) (Stats, error) {
	if !e.started.CompareAndSwap(false, true) {
		return e.Snapshot(), ErrAlreadyRun
	}

	sched, err := newScheduler(e.opts.Strategy, e.opts.Concurrency)
	if err != nil {
		return e.Snapshot(), err
	}

	e.total.Store(int64(len(domains)))
	clock := progress.StartClock()
	e.clock.Store(&clock)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	e.failMu.Lock()
	e.cancelFn = cancel
	e.failMu.Unlock()

	log.Info("engine: sweep starting",
		"run_id", e.runID,
		"domains", len(domains),
		"resolvers", e.pool.Len(),
		"strategy", e.opts.Strategy,
		"concurrency", e.opts.Concurrency)

	e.monitor.Start(runCtx)

	// In-flight lookups must not observe admission cancellation.
	workCtx := context.WithoutCancel(ctx)
	for _, domain := range domains {
		if err := sched.Go(runCtx, func() { e.lookup(workCtx, domain) }); err != nil {
			log.Warnf("engine: admission stopped after %d of %d domains: %v", e.dispatched.Load(), len(domains), err)
			break
		}
		e.dispatched.Inc()
	}
	sched.Wait()
	e.monitor.Stop()

	errs := e.failure()
	if err := e.flushRemaining(); err != nil {
		errs = multierr.Append(errs, err)
	}
	if errs == nil && ctx.Err() != nil {
		errs = ctx.Err()
	}
	e.elapsed.Store(e.clock.Load().Elapsed())
	e.done.Store(true)

	stats := e.Snapshot()
	log.Info("engine: sweep finished",
		"run_id", e.runID,
		"processed", stats.Processed,
		"matched", stats.Matched,
		"elapsed", stats.Elapsed.String())
	return stats, errs
}

// lookup is the per-domain unit of work. It always counts the domain as
// processed exactly once, whatever the outcome.
func (e *Engine) lookup(ctx context.Context, domain string) {
	idx, res := e.pool.Pick(domain)
	outcome := e.resolve(ctx, idx, res, domain)
	e.outcomes[outcome].Inc()
	e.processed.Inc()
}

func (e *Engine) resolve(ctx context.Context, idx int, res dnsresolver.Resolver, domain string) Outcome {
	for retry := 0; ; retry++ {
		e.attempts.Inc()
		ips, err := res.LookupIP(ctx, domain)
		switch {
		case err == nil:
			if ip, ok := e.firstTarget(ips); ok {
				e.record(domain, ip)
				return OutcomeMatched
			}
			log.Debugf("engine: domain %s resolved to %d addresses, none targeted", domain, len(ips))
			return OutcomeNoMatch

		case errors.Is(err, dnsresolver.ErrNoRecords):
			log.Infof("engine: domain %s does not exist or has no address records (resolver %d)", domain, idx)
			return OutcomeNoRecords

		case errors.Is(err, dnsresolver.ErrTimeout):
			count := e.ledger.Inc(idx)
			if retry >= e.opts.MaxRetries {
				log.Warnf("engine: domain %s timed out %d times, giving up (resolver %d timeout count: %d)",
					domain, retry+1, idx, count)
				return OutcomeRetriesExhausted
			}
			log.Infof("engine: domain %s timed out, retrying in %v (resolver %d timeout count: %d)",
				domain, e.opts.RetryDelay, idx, count)
			sleep(ctx, e.opts.RetryDelay)

		default:
			log.Warnf("engine: error querying domain %s (resolver %d): %v", domain, idx, err)
			return OutcomeOtherError
		}
	}
}

func sleep(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
}

// firstTarget returns the first address in ips that is a target.
func (e *Engine) firstTarget(ips []net.IP) (netip.Addr, bool) {
	for _, ip := range ips {
		addr, ok := netip.AddrFromSlice(ip)
		if !ok {
			continue
		}
		addr = addr.Unmap()
		if _, hit := e.targets[addr]; hit {
			return addr, true
		}
	}
	return netip.Addr{}, false
}

func (e *Engine) record(domain string, ip netip.Addr) {
	batch, pending, flush := e.matches.Add(domain)
	processed := e.processed.Load()
	log.Info("engine: match",
		"domain", domain,
		"ip", ip.String(),
		"matched", e.matches.Total(),
		"pending", pending,
		"processed", processed,
		"rate", fmt.Sprintf("%.2f/sec", e.clock.Load().Rate(processed)))
	if flush {
		e.flush(batch)
	}
}

// flush persists a batch drained from the match set. A failed batch goes back
// into the set; under OnErrorAbort the sweep also stops admitting domains.
func (e *Engine) flush(batch []string) {
	err := e.write(batch)
	if err == nil {
		log.Infof("engine: flushed %d matching domains", len(batch))
		return
	}
	e.matches.Requeue(batch)
	if e.opts.OnFlushError == OnErrorAbort {
		log.Errorf("engine: flush of %d domains failed, aborting sweep: %v", len(batch), err)
		e.fail(fmt.Errorf("%w: %d domains: %v", ErrFlush, len(batch), err))
		return
	}
	log.Warnf("engine: flush of %d domains failed, keeping them for the next flush: %v", len(batch), err)
}

func (e *Engine) write(batch []string) error {
	e.flushMu.Lock()
	defer e.flushMu.Unlock()
	if err := e.sink.Write(batch); err != nil {
		e.flushFailures.Inc()
		return err
	}
	e.flushes.Inc()
	return nil
}

// flushRemaining writes whatever is still pending once all lookups are done.
func (e *Engine) flushRemaining() error {
	rest := e.matches.Drain()
	if len(rest) == 0 {
		return nil
	}
	if err := e.write(rest); err != nil {
		e.matches.Requeue(rest)
		log.Errorf("engine: final flush of %d domains failed: %v", len(rest), err)
		return fmt.Errorf("%w: final flush of %d domains: %v", ErrFlush, len(rest), err)
	}
	log.Infof("engine: flushed %d remaining matching domains", len(rest))
	return nil
}

// fail records the first run-ending error and stops admission.
func (e *Engine) fail(err error) {
	e.failMu.Lock()
	defer e.failMu.Unlock()
	if e.failErr != nil {
		return
	}
	e.failErr = err
	if e.cancelFn != nil {
		e.cancelFn()
	}
}

func (e *Engine) failure() error {
	e.failMu.Lock()
	defer e.failMu.Unlock()
	return e.failErr
}
