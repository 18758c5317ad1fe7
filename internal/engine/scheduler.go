package engine

import (
	"context"
	"fmt"
	"sync"

	"github.com/gammazero/workerpool"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// Scheduling strategies accepted by newScheduler.
const (
	StrategyBatch     = "batch"
	StrategySemaphore = "semaphore"
	StrategyPool      = "pool"
)

// scheduler admits tasks while keeping at most n of them running.
type scheduler interface {
	// Go blocks until the task is admitted, or returns ctx's error without
	// running it once ctx is done.
	Go(ctx context.Context, task func()) error
	// Wait blocks until every admitted task has returned.
	Wait()
}

func checkStrategy(strategy string) error {
	switch strategy {
	case StrategyBatch, StrategySemaphore, StrategyPool, "":
		return nil
	default:
		return fmt.Errorf("unknown scheduler strategy %q", strategy)
	}
}

func newScheduler(strategy string, n int) (scheduler, error) {
	if n < 1 {
		return nil, fmt.Errorf("concurrency must be at least 1, got %d", n)
	}
	switch strategy {
	case StrategyBatch:
		return &batchScheduler{n: n, grp: new(errgroup.Group)}, nil
	case StrategySemaphore, "":
		return &semScheduler{sem: semaphore.NewWeighted(int64(n))}, nil
	case StrategyPool:
		return &poolScheduler{
			wp:    workerpool.New(n),
			slots: make(chan struct{}, n),
		}, nil
	default:
		return nil, checkStrategy(strategy)
	}
}

// batchScheduler spawns up to n tasks, then waits for the whole batch before
// admitting more. The slowest task of a batch gates the next one.
type batchScheduler struct {
	n        int
	grp      *errgroup.Group
	inflight int
}

func (b *batchScheduler) Go(ctx context.Context, task func()) error {
	if b.inflight >= b.n {
		_ = b.grp.Wait()
		b.grp = new(errgroup.Group)
		b.inflight = 0
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	b.grp.Go(func() error {
		task()
		return nil
	})
	b.inflight++
	return nil
}

func (b *batchScheduler) Wait() {
	_ = b.grp.Wait()
	b.inflight = 0
}

// semScheduler admits a new task as soon as any running one finishes.
type semScheduler struct {
	sem *semaphore.Weighted
	wg  sync.WaitGroup
}

func (s *semScheduler) Go(ctx context.Context, task func()) error {
	// Acquire may succeed on a done context; check first.
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.sem.Release(1)
		task()
	}()
	return nil
}

func (s *semScheduler) Wait() { s.wg.Wait() }

// poolScheduler runs tasks on n long-lived workers. Submission is gated by
// slots so that cancellation stops admission instead of leaving an unbounded
// queue behind.
type poolScheduler struct {
	wp    *workerpool.WorkerPool
	slots chan struct{}
}

func (p *poolScheduler) Go(ctx context.Context, task func()) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	select {
	case p.slots <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	p.wp.Submit(func() {
		defer func() { <-p.slots }()
		task()
	})
	return nil
}

func (p *poolScheduler) Wait() { p.wp.StopWait() }
