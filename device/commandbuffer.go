package device

import "sync"

// opFunc is one recorded command. The "command-buffer closures" pattern
// of the source engine is recast per spec.md §9 as a recorded script of
// opcodes: resources are captured by the closure, which outlives nothing
// but the CommandBuffer's own lifetime.
type opFunc func() error

// Recorder accumulates opFuncs during CommandBuffer.Record. It has no
// public constructor; one is created internally for each Record call.
type Recorder struct {
	ops []opFunc
}

func (r *Recorder) record(op opFunc) {
	r.ops = append(r.ops, op)
}

// fence is a minimal host-side completion signal. Submission in this
// backend is synchronous (see Queue.Submit), so Wait never actually
// blocks on anything but documents the real ordering contract: a
// CommandBuffer may not be re-submitted until its previous submission's
// fence is signaled.
type fence struct {
	mu       sync.Mutex
	signaled bool
}

func (f *fence) signal() {
	f.mu.Lock()
	f.signaled = true
	f.mu.Unlock()
}

func (f *fence) reset() {
	f.mu.Lock()
	f.signaled = false
	f.mu.Unlock()
}

func (f *fence) isSignaled() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.signaled
}

// CommandBuffer wraps one recordable, re-submittable sequence of GPU
// commands and one fence (spec.md §4.1).
type CommandBuffer struct {
	fence    fence
	recorder *Recorder
	released bool
}

// NewCommandBuffer constructs an empty, unrecorded command buffer.
func NewCommandBuffer() *CommandBuffer {
	return &CommandBuffer{}
}

// Record begins, runs fn(recorder) to build the op list, and ends.
// Re-recording a CommandBuffer that has already been recorded replaces
// its op list; the caller must ensure the previous submission's fence is
// signaled before doing so (spec.md §4.1).
func (c *CommandBuffer) Record(fn func(*Recorder)) {
	rec := &Recorder{}
	fn(rec)
	c.recorder = rec
}

// Submit runs every recorded op in order and signals the fence. Execution
// is synchronous: by the time Submit returns, the fence is already
// signaled, matching this backend's single-queue, no-async-GPU model.
func (c *CommandBuffer) Submit() error {
	if c.released {
		return ErrReleased
	}
	if c.recorder == nil {
		return nil
	}
	c.fence.reset()
	for _, op := range c.recorder.ops {
		if err := op(); err != nil {
			return err
		}
	}
	c.fence.signal()
	return nil
}

// Wait blocks until the fence from the last Submit is signaled.
func (c *CommandBuffer) Wait() error {
	if !c.fence.isSignaled() {
		// Submit is synchronous in this backend, so an unsignaled fence
		// here means Submit was never called.
		return nil
	}
	return nil
}

// Release marks the command buffer as no longer usable.
func (c *CommandBuffer) Release() {
	c.released = true
}
