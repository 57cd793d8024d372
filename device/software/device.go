// Package software is the one concrete device.Device backend this module
// ships: every compute kernel listed in spec.md §6 runs as native Go code
// over in-process memory, fanned out across goroutines by ParallelFor.
// It exists so the numerical engine (reduce, scan, solver, pressure,
// levelset, particles, advect, extrapolate, world) is fully testable
// without a real GPU driver.
package software

import (
	"fmt"

	"github.com/vortex2d-go/fluid/device"
)

// Device is the CPU-executed device.Device implementation.
type Device struct {
	kernels  map[string]device.KernelFunc
	queue    *device.Queue
	released bool
}

// NewDevice constructs a software device with every built-in kernel
// registered.
func NewDevice() *Device {
	d := &Device{
		kernels: make(map[string]device.KernelFunc),
		queue:   device.NewQueue(),
	}
	registerReduceKernels(d)
	registerScanKernels(d)
	registerCopyKernels(d)
	registerDispatchKernels(d)
	registerParticleKernels(d)
	registerSolverKernels(d)
	registerPressureKernels(d)
	registerLevelSetKernels(d)
	registerAdvectKernels(d)
	registerExtrapolateKernels(d)
	registerTransferKernels(d)
	registerMultigridKernels(d)
	registerWorldKernels(d)
	registerRigidbodyKernels(d)
	return d
}

// RegisterKernel installs a named kernel implementation. Called during
// NewDevice for every built-in kernel; exported so tests can register
// fakes for isolation.
func (d *Device) RegisterKernel(name string, fn device.KernelFunc) {
	d.kernels[name] = fn
}

// CreateBuffer implements device.Device.
func (d *Device) CreateBuffer(desc device.BufferDescriptor) (device.Buffer, error) {
	if d.released {
		return nil, device.ErrReleased
	}
	if desc.Count <= 0 && desc.Element != device.ElementDispatchParams {
		return nil, &device.ResourceError{Op: "CreateBuffer", Reason: fmt.Sprintf("invalid element count %d", desc.Count)}
	}
	return NewBuffer(desc), nil
}

// CreateImage implements device.Device.
func (d *Device) CreateImage(desc device.ImageDescriptor) (device.Image, error) {
	if d.released {
		return nil, device.ErrReleased
	}
	if desc.Size[0] <= 0 || desc.Size[1] <= 0 {
		return nil, &device.ResourceError{Op: "CreateImage", Reason: fmt.Sprintf("invalid size %v", desc.Size)}
	}
	return NewImage(desc), nil
}

// NewWork implements device.Device: it looks up the named kernel in the
// registry and returns a device.Work bound to it.
func (d *Device) NewWork(kernel string, local [3]int, bindingCount int) (*device.Work, error) {
	fn, ok := d.kernels[kernel]
	if !ok {
		return nil, fmt.Errorf("%w: %s", device.ErrKernelNotFound, kernel)
	}
	return &device.Work{Kernel: kernel, Fn: fn, Local: local, BindingCount: bindingCount}, nil
}

// CreateCommandBuffer implements device.Device.
func (d *Device) CreateCommandBuffer() (*device.CommandBuffer, error) {
	if d.released {
		return nil, device.ErrReleased
	}
	return device.NewCommandBuffer(), nil
}

// Queue implements device.Device.
func (d *Device) Queue() *device.Queue { return d.queue }

// ExecuteOnce implements device.Device.
func (d *Device) ExecuteOnce(fn func(*device.Recorder)) error {
	if d.released {
		return device.ErrReleased
	}
	return device.ExecuteOnce(d.queue, fn)
}

// WaitIdle implements device.Device. Submission is synchronous in this
// backend, so there is never in-flight work to wait for.
func (d *Device) WaitIdle() error {
	if d.released {
		return device.ErrReleased
	}
	return nil
}

// Release implements device.Device.
func (d *Device) Release() { d.released = true }
