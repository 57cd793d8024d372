package software

import "github.com/vortex2d-go/fluid/device"

// registerWorldKernels installs BuildLiquidPhi, the one kernel
// World.SolveDynamic needs that has no counterpart anywhere in spec.md's
// own kernel enumeration (§6) or in original_source: "build liquidPhi
// from particle count" (spec.md §4.9, SolveDynamic step 1) has no
// surviving shader body to ground, so the signed-distance estimate below
// follows the standard particle-counting level set used throughout the
// PIC/FLIP literature the glossary's own "Level set" entry cites: a cell
// holding more than half its target population is called inside the
// fluid, linearly graded by how far short or over that threshold the
// count falls.
func registerWorldKernels(d *Device) {
	d.RegisterKernel("BuildLiquidPhi", buildLiquidPhiKernel)
	d.RegisterKernel("ClearImage", clearImageKernel)
}

// buildLiquidPhiKernel fills liquidPhi from a per-cell particle count
// image: phi < 0 inside the fluid (count above half the desired
// population), phi >= 0 outside (phi is exactly 0 at half). Resources: count (ElementInt32 image),
// liquidPhi (ElementFloat32 image, output). Push constant 0 = desired
// particles per cell.
func buildLiquidPhiKernel(ctx *device.KernelContext) error {
	countImg := ctx.Resources[0].(*Image)
	phiImg := ctx.Resources[1].(*Image)

	count := countImg.Ints()
	phi := phiImg.Floats()

	desired := ctx.Push[0]
	if desired <= 0 {
		desired = 1
	}
	half := desired / 2

	return ParallelFor(len(phi), func(i int) error {
		phi[i] = (half - float32(count[i])) / desired
		return nil
	})
}

// clearImageKernel zeroes an image in place, the `mClearVelocity` command
// script World.cpp records at construction and submits as the trailing
// step of SolveDynamic. Resources: the image to clear.
func clearImageKernel(ctx *device.KernelContext) error {
	ctx.Resources[0].(*Image).Clear()
	return nil
}
