// Package device is the GPU API contract consumed by the fluid core
// (spec.md §4.1, §6): typed buffers, typed 2D images, compute pipelines
// bound through descriptor sets, and fence-backed command buffers.
//
// This package defines the contract only. The module's one concrete
// implementation lives in device/software, a CPU backend that executes
// every kernel directly so the numerical engine is testable without a
// real GPU.
package device

import (
	"errors"
	"fmt"
)

// BufferUsage is a bitmask of how a buffer will be used, mirroring the
// storage/vertex/indirect/host-visible distinctions of a real GPU API.
type BufferUsage uint32

const (
	BufferUsageStorage BufferUsage = 1 << iota
	BufferUsageVertex
	BufferUsageIndirect
	BufferUsageHostVisible
)

// Element identifies the typed element stored in a Buffer or Image.
type Element int

const (
	ElementFloat32 Element = iota
	ElementInt32
	ElementVec2
	ElementIVec2
	ElementVec4
	ElementParticle
	ElementDispatchParams
)

// BufferDescriptor describes a buffer to create.
type BufferDescriptor struct {
	Label   string
	Count   int // number of elements
	Element Element
	Usage   BufferUsage
}

// ImageDescriptor describes a 2D image to create.
type ImageDescriptor struct {
	Label   string
	Size    [2]int // W, H
	Element Element
}

// Resource is the common handle type that Buffer and Image satisfy, so
// Work.Bind can accept a mixed slice of either.
type Resource interface {
	Label() string
	Release()
}

// Buffer is a typed, GPU-resident 1D array.
type Buffer interface {
	Resource
	Count() int
	Element() Element
	Usage() BufferUsage
}

// Image is a typed, GPU-resident 2D grid.
type Image interface {
	Resource
	Size() [2]int
	Element() Element
}

// ResourceError is a structured, fatal error surfaced at resource
// construction (spec.md §7: "surfaces at construction with a structured
// error").
type ResourceError struct {
	Op     string // e.g. "CreateBuffer"
	Reason string
	Err    error
}

func (e *ResourceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("device: %s: %s: %v", e.Op, e.Reason, e.Err)
	}
	return fmt.Sprintf("device: %s: %s", e.Op, e.Reason)
}

func (e *ResourceError) Unwrap() error { return e.Err }

// Sentinel errors.
var (
	ErrReleased               = errors.New("device: resource already released")
	ErrKernelNotFound         = errors.New("device: kernel not found in registry")
	ErrKernelSignatureMismatch = errors.New("device: kernel binding count does not match descriptor layout")
	ErrDescriptorMismatch     = errors.New("device: resources do not match descriptor layout")
)

// Device is the contract a compute backend must satisfy.
type Device interface {
	CreateBuffer(desc BufferDescriptor) (Buffer, error)
	CreateImage(desc ImageDescriptor) (Image, error)

	// NewWork compiles (once) a compute pipeline bound to the named kernel,
	// with the given local workgroup size and expected binding count.
	NewWork(kernel string, local [3]int, bindingCount int) (*Work, error)

	CreateCommandBuffer() (*CommandBuffer, error)
	Queue() *Queue

	// ExecuteOnce synchronously records and submits a one-shot command
	// buffer, waiting for completion before returning.
	ExecuteOnce(fn func(*Recorder)) error

	WaitIdle() error
	Release()
}
