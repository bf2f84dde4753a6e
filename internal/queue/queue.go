package queue

import (
	"context"
	"errors"
	"fmt"
)

// Errors
var (
	ErrShutdown     = errors.New("queue has been shutdown")
	ErrTaskPanicked = errors.New("task panicked")
)

// HandlerFunc processes a single job
type HandlerFunc[T any, R any] func(ctx context.Context, data T) (R, error)

// Queue is a worker queue with a fixed amount of workers
type Queue[T any, R any] struct {
	ctx     context.Context
	workers int
	handler HandlerFunc[T, R]
	queue   chan job[T, R]
}

type job[T any, R any] struct {
	ctx    context.Context
	data   T
	result chan jobResult[R]
}

type jobResult[R any] struct {
	result R
	err    error
}

// New creates a new Queue with the specified amount of workers, which shuts down when ctx is canceled
func New[T any, R any](ctx context.Context, workers int, handler HandlerFunc[T, R]) *Queue[T, R] {
	return &Queue[T, R]{
		ctx:     ctx,
		workers: workers,
		handler: handler,
		queue:   make(chan job[T, R]),
	}
}

// Run starts the workers and blocks until the queue is shut down
func (q *Queue[T, R]) Run() {
	for i := 0; i < q.workers; i++ {
		go q.worker()
	}

	<-q.ctx.Done()
}

func (q *Queue[T, R]) worker() {
	for {
		select {
		case <-q.ctx.Done():
			return
		case j := <-q.queue:
			result, err := q.run(j)
			// The result channel is buffered, so a caller that stopped waiting doesn't block the worker
			j.result <- jobResult[R]{
				result: result,
				err:    err,
			}
		}
	}
}

func (q *Queue[T, R]) run(j job[T, R]) (result R, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrTaskPanicked, r)
		}
	}()

	return q.handler(j.ctx, j.data)
}

// Process adds a job to the queue, waits for it to process, and returns the result
// If ctx is canceled while waiting, Process returns ctx.Err() and the job, if already picked up, runs to completion
func (q *Queue[T, R]) Process(ctx context.Context, data T) (R, error) {
	var empty R

	if q.ctx.Err() != nil {
		return empty, ErrShutdown
	}

	if err := ctx.Err(); err != nil {
		return empty, err
	}

	resultChan := make(chan jobResult[R], 1)

	select {
	case q.queue <- job[T, R]{ctx: ctx, data: data, result: resultChan}:
	case <-ctx.Done():
		return empty, ctx.Err()
	case <-q.ctx.Done():
		return empty, ErrShutdown
	}

	select {
	case result := <-resultChan:
		if result.err != nil {
			return empty, result.err
		}

		return result.result, nil
	case <-ctx.Done():
		return empty, ctx.Err()
	}
}
