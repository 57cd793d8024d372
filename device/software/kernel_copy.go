package software

import "github.com/vortex2d-go/fluid/device"

// registerCopyKernels installs the buffer-to-buffer and image-to-buffer
// copy commands used throughout the engine wherever the source graph
// records a plain data copy rather than a compute dispatch (e.g.
// Particles.cpp's "mCount.CopyFrom(commandBuffer, *this)"). On real
// hardware these are vkCmdCopyBuffer/vkCmdCopyImage, not shader
// invocations; modelling them as named kernels keeps every command-buffer
// op going through the same Work/Bound recording path.
func registerCopyKernels(d *Device) {
	d.RegisterKernel("CopyBuffer", copyBufferKernel)
	d.RegisterKernel("CopyImageToBuffer", copyImageToBufferKernel)
}

func copyBufferKernel(ctx *device.KernelContext) error {
	dst := ctx.Resources[0].(*Buffer)
	src := ctx.Resources[1].(*Buffer)
	dst.CopyFrom(src)
	return nil
}

func copyImageToBufferKernel(ctx *device.KernelContext) error {
	dst := ctx.Resources[0].(*Buffer)
	src := ctx.Resources[1].(*Image)
	switch src.Element() {
	case device.ElementInt32:
		copy(dst.Ints(), src.Ints())
	case device.ElementFloat32:
		copy(dst.Floats(), src.Floats())
	}
	return nil
}
