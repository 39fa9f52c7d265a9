package ocr

import (
	"context"
	"testing"
)

func TestRegistry_SupersedeCancelsPrevious(t *testing.T) {
	r := NewRegistry()

	ctx1, job1 := r.Begin(context.Background(), "receipt-a")
	ctx2, job2 := r.Begin(context.Background(), "receipt-a")

	select {
	case <-ctx1.Done():
	default:
		t.Error("first job context should be cancelled when a newer job claims the slot")
	}
	if ctx2.Err() != nil {
		t.Error("second job context should still be live")
	}
	if r.Active() != 1 {
		t.Errorf("Active() = %d, want 1", r.Active())
	}

	r.Finish(job1) // superseded job finishing must not evict its successor
	if r.Active() != 1 {
		t.Errorf("Active() after superseded finish = %d, want 1", r.Active())
	}
	if ctx2.Err() != nil {
		t.Error("successor context should survive the superseded job's Finish")
	}

	r.Finish(job2)
	if r.Active() != 0 {
		t.Errorf("Active() after owner finish = %d, want 0", r.Active())
	}
	if ctx2.Err() == nil {
		t.Error("Finish should cancel the job's own context")
	}
}

func TestRegistry_IndependentSlots(t *testing.T) {
	r := NewRegistry()

	ctxA, jobA := r.Begin(context.Background(), "receipt-a")
	ctxB, jobB := r.Begin(context.Background(), "receipt-b")

	if ctxA.Err() != nil || ctxB.Err() != nil {
		t.Error("jobs on different slots must not cancel each other")
	}
	if r.Active() != 2 {
		t.Errorf("Active() = %d, want 2", r.Active())
	}

	r.Finish(jobA)
	if ctxB.Err() != nil {
		t.Error("finishing one slot must not cancel another")
	}
	r.Finish(jobB)
}

func TestRegistry_ParentCancellationPropagates(t *testing.T) {
	r := NewRegistry()

	parent, cancel := context.WithCancel(context.Background())
	ctx, job := r.Begin(parent, "receipt-a")
	defer r.Finish(job)

	cancel()
	<-ctx.Done()
}
