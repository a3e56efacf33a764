package daemon

import (
	"testing"

	"git.home.luguber.info/inful/docpub/internal/pipeline"
)

// TestQueueEnqueueDequeue preserves FIFO order.
func TestQueueEnqueueDequeue(t *testing.T) {
	q := NewQueue(4, nil)
	defer q.Close()

	for _, reason := range []string{"first", "second"} {
		if err := q.Enqueue(RunRequest{Trigger: pipeline.TriggerManual, Reason: reason}); err != nil {
			t.Fatalf("enqueue %s: %v", reason, err)
		}
	}
	if q.Depth() != 2 {
		t.Fatalf("depth: %d", q.Depth())
	}

	got := <-q.Dequeue()
	if got.Reason != "first" {
		t.Fatalf("expected first, got %s", got.Reason)
	}
	if got.Requested.IsZero() {
		t.Fatal("requested timestamp not set")
	}
}

// TestQueueRejectsWhenFull fails fast instead of blocking.
func TestQueueRejectsWhenFull(t *testing.T) {
	q := NewQueue(1, nil)
	defer q.Close()

	if err := q.Enqueue(RunRequest{Reason: "a"}); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if err := q.Enqueue(RunRequest{Reason: "b"}); err == nil {
		t.Fatal("expected error when full")
	}
}

// TestQueueClosedRejects fails enqueue after close and releases receivers.
func TestQueueClosedRejects(t *testing.T) {
	q := NewQueue(1, nil)
	q.Close()

	if err := q.Enqueue(RunRequest{Reason: "late"}); err == nil {
		t.Fatal("expected error after close")
	}
	if _, ok := <-q.Dequeue(); ok {
		t.Fatal("expected closed channel")
	}
	// Double close must not panic.
	q.Close()
}
