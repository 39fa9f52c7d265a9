package ocr

import (
	"context"
	"sync"
)

// Job is a handle for one registered extraction
type Job struct {
	slot   string
	cancel context.CancelFunc
}

// Registry tracks one in-flight extraction per receipt slot. Starting a new
// job for a slot cancels the previous one; the superseded job's cancellation
// error is swallowed by the processor.
type Registry struct {
	mu   sync.Mutex
	jobs map[string]*Job
}

// NewRegistry creates an empty job registry
func NewRegistry() *Registry {
	return &Registry{jobs: make(map[string]*Job)}
}

// Begin registers a new job for slot, cancelling any job already running
// there. The returned context is cancelled when a later job claims the slot.
func (r *Registry) Begin(parent context.Context, slot string) (context.Context, *Job) {
	ctx, cancel := context.WithCancel(parent)
	job := &Job{slot: slot, cancel: cancel}

	r.mu.Lock()
	if prev, ok := r.jobs[slot]; ok {
		prev.cancel()
	}
	r.jobs[slot] = job
	r.mu.Unlock()

	return ctx, job
}

// Finish releases the slot if it is still owned by job. A job superseded by
// a newer one must not evict its successor.
func (r *Registry) Finish(job *Job) {
	r.mu.Lock()
	if current, ok := r.jobs[job.slot]; ok && current == job {
		delete(r.jobs, job.slot)
	}
	r.mu.Unlock()

	job.cancel()
}

// Active reports how many jobs are currently registered
func (r *Registry) Active() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.jobs)
}
