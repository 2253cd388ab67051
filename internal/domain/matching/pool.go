package matching

import "context"

// Pool runs indexed tasks. Implementations must call task once per index in
// [0,n), stop scheduling new tasks once ctx is done or a task fails, and
// return the first error seen.
type Pool interface {
	Run(ctx context.Context, n int, task func(ctx context.Context, i int) error) error
}

// Sequential runs tasks one after another on the calling goroutine.
type Sequential struct{}

func (Sequential) Run(ctx context.Context, n int, task func(ctx context.Context, i int) error) error {
	for i := 0; i < n; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := task(ctx, i); err != nil {
			return err
		}
	}
	return nil
}
