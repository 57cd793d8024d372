package software

import (
	"github.com/google/uuid"

	"github.com/vortex2d-go/fluid/device"
	"github.com/vortex2d-go/fluid/gridtypes"
)

// Particle is the packed per-particle record of spec.md §3, extended with
// a per-particle Velocity so TransferFromGrid has somewhere to land the
// PIC/FLIP update that World.cpp's SolveDynamic step 6 describes
// ("Update particle velocities with PIC/FLIP") ahead of step 7's advect.
type Particle struct {
	Position gridtypes.Vec2
	Velocity gridtypes.Vec2
}

// DispatchParams mirrors the GPU-writable dispatch sizing structure of
// spec.md §3/§4.3: the live element count and the workgroup count derived
// from it, refreshed by PrefixScan and consumed by every indirect
// dispatch downstream.
type DispatchParams struct {
	Count    int
	WorkSize [2]int
}

// Buffer is the CPU-resident implementation of device.Buffer. Exactly one
// of its typed slices is populated, selected by Element().
type Buffer struct {
	id    uuid.UUID
	label string
	usage device.BufferUsage
	elem  device.Element

	f32       []float32
	i32       []int32
	vec2      []gridtypes.Vec2
	ivec2     []gridtypes.IVec2
	particles []Particle
	dispatch  *DispatchParams
}

// NewBuffer allocates a zeroed buffer for desc.
func NewBuffer(desc device.BufferDescriptor) *Buffer {
	b := &Buffer{
		id:    uuid.New(),
		label: desc.Label,
		usage: desc.Usage,
		elem:  desc.Element,
	}
	switch desc.Element {
	case device.ElementFloat32:
		b.f32 = make([]float32, desc.Count)
	case device.ElementInt32:
		b.i32 = make([]int32, desc.Count)
	case device.ElementVec2:
		b.vec2 = make([]gridtypes.Vec2, desc.Count)
	case device.ElementIVec2:
		b.ivec2 = make([]gridtypes.IVec2, desc.Count)
	case device.ElementParticle:
		b.particles = make([]Particle, desc.Count)
	case device.ElementDispatchParams:
		b.dispatch = &DispatchParams{}
	}
	return b
}

func (b *Buffer) Label() string            { return b.label }
func (b *Buffer) Release()                 {}
func (b *Buffer) Usage() device.BufferUsage { return b.usage }
func (b *Buffer) Element() device.Element  { return b.elem }

// Count returns the number of elements the buffer holds.
func (b *Buffer) Count() int {
	switch b.elem {
	case device.ElementFloat32:
		return len(b.f32)
	case device.ElementInt32:
		return len(b.i32)
	case device.ElementVec2:
		return len(b.vec2)
	case device.ElementIVec2:
		return len(b.ivec2)
	case device.ElementParticle:
		return len(b.particles)
	case device.ElementDispatchParams:
		return 1
	}
	return 0
}

// Floats returns the backing []float32 slice, which is nil if Element()
// is not ElementFloat32; kernels only call this after checking their own
// binding layout, matching a real shader's fixed binding types.
func (b *Buffer) Floats() []float32 { return b.f32 }

// Ints returns the backing []int32 slice.
func (b *Buffer) Ints() []int32 { return b.i32 }

// Vec2s returns the backing []gridtypes.Vec2 slice.
func (b *Buffer) Vec2s() []gridtypes.Vec2 { return b.vec2 }

// IVec2s returns the backing []gridtypes.IVec2 slice.
func (b *Buffer) IVec2s() []gridtypes.IVec2 { return b.ivec2 }

// Particles returns the backing []Particle slice.
func (b *Buffer) Particles() []Particle { return b.particles }

// Dispatch returns the backing *DispatchParams.
func (b *Buffer) Dispatch() *DispatchParams { return b.dispatch }

// ReadDispatchParams implements device's dispatchParamsReader so
// Bound.RecordIndirect can source a dispatch size from this buffer.
func (b *Buffer) ReadDispatchParams() (count int, workSize [2]int) {
	if b.dispatch == nil {
		return 0, [2]int{}
	}
	return b.dispatch.Count, b.dispatch.WorkSize
}

// ReadFloat implements device.floatReader so a 1-element float buffer
// (a reduction's output) can be read back host-side.
func (b *Buffer) ReadFloat() (float32, error) {
	if b.elem != device.ElementFloat32 || len(b.f32) == 0 {
		return 0, device.ErrDescriptorMismatch
	}
	return b.f32[0], nil
}

// CopyFrom overwrites this buffer's contents with src's, element for
// element (the software-backend equivalent of a GPU buffer-to-buffer
// copy command).
func (b *Buffer) CopyFrom(src *Buffer) {
	switch b.elem {
	case device.ElementFloat32:
		copy(b.f32, src.f32)
	case device.ElementInt32:
		copy(b.i32, src.i32)
	case device.ElementVec2:
		copy(b.vec2, src.vec2)
	case device.ElementIVec2:
		copy(b.ivec2, src.ivec2)
	case device.ElementParticle:
		copy(b.particles, src.particles)
	case device.ElementDispatchParams:
		*b.dispatch = *src.dispatch
	}
}

// Clear zeroes the buffer.
func (b *Buffer) Clear() {
	switch b.elem {
	case device.ElementFloat32:
		for i := range b.f32 {
			b.f32[i] = 0
		}
	case device.ElementInt32:
		for i := range b.i32 {
			b.i32[i] = 0
		}
	case device.ElementVec2:
		for i := range b.vec2 {
			b.vec2[i] = gridtypes.Vec2{}
		}
	case device.ElementIVec2:
		for i := range b.ivec2 {
			b.ivec2[i] = gridtypes.IVec2{}
		}
	case device.ElementDispatchParams:
		*b.dispatch = DispatchParams{}
	}
}
