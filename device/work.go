package device

// KernelContext is everything a kernel function needs to execute one
// dispatch: the bound resources in binding order, the dispatch size (in
// elements, not workgroups), the local workgroup size, and any push
// constants set before this dispatch.
type KernelContext struct {
	Resources    []Resource
	DispatchSize [2]int
	Local        [3]int
	Push         map[uint32]float32

	// Count is set only for indirect dispatches, read from the source
	// DispatchParams buffer's live element count.
	Count    int
	Indirect bool
}

// KernelFunc is the CPU-executable stand-in for a precompiled shader
// binary (spec.md §6). A backend registers one KernelFunc per named
// kernel; device.software supplies a native Go implementation for every
// kernel the engine references.
type KernelFunc func(ctx *KernelContext) error

// Work binds a compute pipeline (kernel + local workgroup size) ready to
// be bound against resources, recorded and dispatched (spec.md §4.1).
type Work struct {
	Kernel       string
	Fn           KernelFunc
	Local        [3]int
	BindingCount int
}

// Bind validates that resources matches the expected binding count and
// returns a Bound ready to be recorded into a command buffer.
func (w *Work) Bind(resources []Resource, dispatchSize [2]int) (*Bound, error) {
	if w.BindingCount > 0 && len(resources) != w.BindingCount {
		return nil, ErrDescriptorMismatch
	}
	return &Bound{
		work:         w,
		resources:    resources,
		dispatchSize: dispatchSize,
		push:         make(map[uint32]float32),
	}, nil
}

// Bound is a Work bound to concrete resources, ready to record.
type Bound struct {
	work         *Work
	resources    []Resource
	dispatchSize [2]int
	push         map[uint32]float32
}

// PushConstant records a push-constant update at the given byte offset,
// applied before the dispatch it precedes in the command stream.
func (b *Bound) PushConstant(rec *Recorder, offset uint32, value float32) {
	rec.record(func() error {
		b.push[offset] = value
		return nil
	})
}

// Record records a direct dispatch: workgroup count is ceil(dispatchSize/local).
func (b *Bound) Record(rec *Recorder) {
	rec.record(func() error {
		return b.work.Fn(&KernelContext{
			Resources:    b.resources,
			DispatchSize: b.dispatchSize,
			Local:        b.work.Local,
			Push:         b.push,
		})
	})
}

// RecordIndirect records a dispatch whose element count is sourced from a
// GPU-resident DispatchParams buffer at submission time.
func (b *Bound) RecordIndirect(rec *Recorder, dispatchParams Buffer) {
	rec.record(func() error {
		count, workSize, err := readDispatchParams(dispatchParams)
		if err != nil {
			return err
		}
		return b.work.Fn(&KernelContext{
			Resources:    b.resources,
			DispatchSize: workSize,
			Local:        b.work.Local,
			Push:         b.push,
			Count:        count,
			Indirect:     true,
		})
	})
}

// dispatchParamsReader lets the software backend's DispatchParams buffer
// expose its fields without device importing device/software (which would
// be a cycle).
type dispatchParamsReader interface {
	ReadDispatchParams() (count int, workSize [2]int)
}

// DispatchCount reads the live element count off a DispatchParams buffer,
// the same value an indirect dispatch against it would use. Exported so
// callers can report "how many particles are live" without reaching into
// a backend's concrete buffer type.
func DispatchCount(b Buffer) (int, error) {
	count, _, err := readDispatchParams(b)
	return count, err
}

func readDispatchParams(b Buffer) (int, [2]int, error) {
	r, ok := b.(dispatchParamsReader)
	if !ok {
		return 0, [2]int{}, ErrDescriptorMismatch
	}
	count, workSize := r.ReadDispatchParams()
	return count, workSize, nil
}
