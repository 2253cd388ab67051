// Package worker runs per-seeker scoring tasks on a bounded goroutine pool.
package worker

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"

	"github.com/okian/nestmatch/pkg/logger"
	"github.com/okian/nestmatch/pkg/metrics"
	"github.com/panjf2000/ants/v2"
)

// Sentinel errors for this package.
var (
	ErrSubmit = errors.New("worker pool rejected task")
	ErrPanic  = errors.New("worker task panicked")
)

// Pool is a fixed-size ants pool that satisfies matching.Pool. It is safe
// to reuse across batches; call Release when done.
type Pool struct {
	pool   *ants.Pool
	name   string
	logger logger.Logger
}

// NewPool creates a pool of size goroutines. size <= 0 uses runtime.NumCPU().
func NewPool(size int, opts ...Option) (*Pool, error) {
	if size <= 0 {
		size = runtime.NumCPU()
	}
	p := &Pool{
		name:   "scoring",
		logger: logger.Nop(),
	}
	for _, opt := range opts {
		opt(p)
	}

	ap, err := ants.NewPool(size)
	if err != nil {
		return nil, fmt.Errorf("create worker pool: %w", err)
	}
	p.pool = ap
	metrics.UpdateWorkerCapacity(ap.Cap())
	return p, nil
}

// Cap returns the pool size.
func (p *Pool) Cap() int { return p.pool.Cap() }

// Run submits task(i) for every i in [0,n) and waits for all submitted
// tasks. The first task error cancels the remaining ones and is returned;
// otherwise the parent context's error (if any) is returned.
func (p *Pool) Run(parent context.Context, n int, task func(ctx context.Context, i int) error) error {
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	var (
		wg    sync.WaitGroup
		once  sync.Once
		first error
	)
	fail := func(err error) {
		once.Do(func() {
			first = err
			cancel()
		})
	}

	for i := 0; i < n; i++ {
		if ctx.Err() != nil {
			break
		}
		i := i
		wg.Add(1)
		err := p.pool.Submit(func() {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					fail(fmt.Errorf("%w: task %d: %v", ErrPanic, i, r))
				}
			}()
			if ctx.Err() != nil {
				return
			}
			if err := task(ctx, i); err != nil {
				fail(err)
			}
		})
		if err != nil {
			wg.Done()
			fail(fmt.Errorf("%w: %w", ErrSubmit, err))
			break
		}
		metrics.UpdateWorkerRunning(p.pool.Running())
	}
	wg.Wait()
	metrics.UpdateWorkerRunning(p.pool.Running())

	if first != nil {
		p.logger.Debug(parent, "pool run stopped early", logger.String("pool", p.name), logger.Error(first))
		return first
	}
	return parent.Err()
}

// Release stops the pool's goroutines.
func (p *Pool) Release() {
	p.pool.Release()
	metrics.UpdateWorkerRunning(0)
}
