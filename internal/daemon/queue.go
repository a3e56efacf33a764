package daemon

import (
	"fmt"
	"sync"
	"time"

	"git.home.luguber.info/inful/docpub/internal/metrics"
	"git.home.luguber.info/inful/docpub/internal/pipeline"
)

// RunRequest asks the daemon for one publish run.
type RunRequest struct {
	Trigger   pipeline.Trigger
	Reason    string // free-form, e.g. "push abc1234" or "schedule tick"
	Requested time.Time
}

// Queue is a bounded FIFO of pending run requests. Requests arriving while
// the queue is full are rejected so webhook floods cannot pile up runs.
type Queue struct {
	ch       chan RunRequest
	recorder metrics.Recorder

	mu     sync.Mutex
	closed bool
}

// NewQueue creates a queue holding at most size pending requests.
func NewQueue(size int, recorder metrics.Recorder) *Queue {
	if size <= 0 {
		size = 16
	}
	if recorder == nil {
		recorder = metrics.NoopRecorder{}
	}
	return &Queue{ch: make(chan RunRequest, size), recorder: recorder}
}

// Enqueue adds a request, failing when the queue is full or closed.
func (q *Queue) Enqueue(req RunRequest) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return fmt.Errorf("queue is closed")
	}
	if req.Requested.IsZero() {
		req.Requested = time.Now()
	}
	select {
	case q.ch <- req:
		q.recorder.SetQueueDepth(len(q.ch))
		return nil
	default:
		return fmt.Errorf("queue is full (%d pending)", cap(q.ch))
	}
}

// Dequeue returns the channel workers receive from. The channel is closed
// by Close.
func (q *Queue) Dequeue() <-chan RunRequest { return q.ch }

// Depth returns the number of pending requests.
func (q *Queue) Depth() int { return len(q.ch) }

// Close stops accepting requests and releases waiting workers.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if !q.closed {
		q.closed = true
		close(q.ch)
	}
}
