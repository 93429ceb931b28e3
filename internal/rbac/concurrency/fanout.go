// Package concurrency implements the bounded, cancellation-propagating
// fan-out cascading deletes use: every sub-task is spawned concurrently,
// the first failure cancels the rest, and all sub-tasks are joined before
// the caller's cascading delete returns.
package concurrency

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// FanOut runs every task concurrently against a context derived from ctx.
// If any task returns an error, the shared context is cancelled so the
// others can stop promptly, and FanOut returns that first error once every
// task has returned. A nil task slice is a no-op.
func FanOut(ctx context.Context, tasks ...func(context.Context) error) error {
	group, groupCtx := errgroup.WithContext(ctx)
	for _, task := range tasks {
		task := task
		group.Go(func() error { return task(groupCtx) })
	}
	return group.Wait()
}
