// Package memory provides a bounded in-memory run queue.
package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/homescan/listing-crawler/internal/listing"
)

// Queue is a bounded in-memory admission queue. Enqueue never blocks on a
// full queue; it reports listing.ErrQueueFull so the caller can shed load.
type Queue struct {
	ch      chan listing.StartRequest
	closeMu sync.Mutex
	closed  bool
}

// NewQueue constructs a new queue with the provided capacity.
func NewQueue(capacity int) *Queue {
	if capacity < 1 {
		capacity = 1
	}
	return &Queue{
		ch: make(chan listing.StartRequest, capacity),
	}
}

// Enqueue admits a start request or rejects it when the queue is full.
func (q *Queue) Enqueue(ctx context.Context, req listing.StartRequest) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("enqueue canceled: %w", ctx.Err())
	case q.ch <- req:
		return nil
	default:
		return listing.ErrQueueFull
	}
}

// Dequeue pops the next start request, respecting context cancellation.
func (q *Queue) Dequeue(ctx context.Context) (listing.StartRequest, error) {
	select {
	case <-ctx.Done():
		return listing.StartRequest{}, fmt.Errorf("dequeue canceled: %w", ctx.Err())
	case req, ok := <-q.ch:
		if !ok {
			return listing.StartRequest{}, errors.New("queue closed")
		}
		return req, nil
	}
}

// Close closes the underlying channel for shutdown.
func (q *Queue) Close() {
	q.closeMu.Lock()
	defer q.closeMu.Unlock()
	if q.closed {
		return
	}
	close(q.ch)
	q.closed = true
}
