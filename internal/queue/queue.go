// Package queue provides process-wide admission control in front of the
// generation client.
package queue

import (
	"context"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
)

// Task is a deferred unit of work. It is never retried by the queue.
type Task func() error

// Stats is a snapshot of the queue state
type Stats struct {
	Limit   int `json:"limit"`
	Active  int `json:"active"`
	Pending int `json:"pending"`
}

// Queue runs at most Limit tasks at once and admits the rest in arrival order.
type Queue struct {
	limit    int
	sem      *semaphore.Weighted
	active   atomic.Int64
	pending  atomic.Int64
	onChange func(Stats)
}

// New creates a queue of the given width. A width below 1 is treated as 1.
func New(limit int) *Queue {
	if limit < 1 {
		limit = 1
	}
	return &Queue{
		limit: limit,
		sem:   semaphore.NewWeighted(int64(limit)),
	}
}

// OnChange registers a callback invoked whenever active or pending counts move.
// It must be set before the queue is shared.
func (q *Queue) OnChange(fn func(Stats)) {
	q.onChange = fn
}

// Submit blocks until a slot is free, runs task and returns its error.
// Waiting tasks are admitted FIFO. There is no timeout and no cancellation:
// once submitted, the task runs even if the caller has gone away.
func (q *Queue) Submit(task Task) error {
	q.pending.Add(1)
	q.notify()

	// Acquire with a background context never fails
	_ = q.sem.Acquire(context.Background(), 1)

	q.pending.Add(-1)
	q.active.Add(1)
	q.notify()

	defer func() {
		q.active.Add(-1)
		q.sem.Release(1)
		q.notify()
	}()

	return task()
}

// Stats returns the current counts
func (q *Queue) Stats() Stats {
	return Stats{
		Limit:   q.limit,
		Active:  int(q.active.Load()),
		Pending: int(q.pending.Load()),
	}
}

func (q *Queue) notify() {
	if q.onChange != nil {
		q.onChange(q.Stats())
	}
}
