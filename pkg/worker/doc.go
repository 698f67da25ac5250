// Package worker provides a generic bounded worker pool used to cap the
// concurrency of message handlers.
//
// Work items are submitted non-blocking; when the queue is full Submit
// returns ErrQueueFull and the caller decides whether to drop or retry.
// Each worker recovers from handler panics so a single bad item cannot
// take the pool down.
//
// Usage:
//
//	pool := worker.NewPool(8, 256, func(ctx context.Context, task UrlTask) error {
//	    return handle(ctx, task)
//	})
//	pool.Start(ctx)
//	defer pool.Stop(5 * time.Second)
//	pool.Submit(task)
package worker
