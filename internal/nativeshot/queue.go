package nativeshot

import (
	"sync"

	"github.com/bryanchriswhite/nativeshot/internal/engine"
)

// result is what a worker sends back: the request it belongs to and either
// an image or an error
type result struct {
	entity engine.Entity
	image  Image
	err    error
}

// resultQueue is an unbounded FIFO with any number of producers and a
// single consumer. Sends after close are discarded.
type resultQueue struct {
	mu     sync.Mutex
	items  []result
	closed bool
}

func newResultQueue() *resultQueue {
	return &resultQueue{}
}

// send enqueues r and reports whether the consumer can still see it
func (q *resultQueue) send(r result) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return false
	}
	q.items = append(q.items, r)
	return true
}

// tryRecv pops the oldest message without blocking
func (q *resultQueue) tryRecv() (result, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return result{}, false
	}
	r := q.items[0]
	q.items[0] = result{}
	q.items = q.items[1:]
	return r, true
}

func (q *resultQueue) close() {
	q.mu.Lock()
	q.closed = true
	q.items = nil
	q.mu.Unlock()
}

func (q *resultQueue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// captureSender is the producer end handed to every worker
type captureSender struct {
	queue *resultQueue
}

func (s captureSender) send(r result) bool {
	return s.queue.send(r)
}

// captureReceiver is the consumer end. Only the poll system locks it.
type captureReceiver struct {
	mu    sync.Mutex
	queue *resultQueue
}

// drain takes every message currently queued
func (r *captureReceiver) drain() []result {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []result
	for {
		msg, ok := r.queue.tryRecv()
		if !ok {
			return out
		}
		out = append(out, msg)
	}
}
