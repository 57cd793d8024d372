package software

import (
	"math"

	"github.com/vortex2d-go/fluid/device"
	"github.com/vortex2d-go/fluid/gridtypes"
)

// registerRigidbodyKernels installs the two kernels rigidbody.Coupler
// records per body per frame: rasterizing a circle's signed distance into
// the shared solid level set, and painting that circle's rigid velocity
// (linear plus the angular term) into the solid velocity field over the
// same region. Grounded on Rigidbody.h's own `RecordPhi` (render the
// body's drawable into a level set) and `BindVelocityConstrain` (bind the
// body's velocity for the constrain pass), reshaped from a rendered
// drawable into a closed-form circle since no drawable/rasterizer is
// vendored here — circle is the one boundary shape spec.md's own
// `VariationalHelpers.h` grounding (`circle_phi`) exercises.
func registerRigidbodyKernels(d *Device) {
	d.RegisterKernel("RigidBodyPhi", rigidBodyPhiKernel)
	d.RegisterKernel("RigidBodyVelocity", rigidBodyVelocityKernel)
}

// circleSDF is the signed distance from (x,y) to a circle of the given
// centre and radius, negative inside.
func circleSDF(x, y, cx, cy, radius float32) float32 {
	dx, dy := x-cx, y-cy
	return float32(math.Sqrt(float64(dx*dx+dy*dy))) - radius
}

// rigidBodyPhiKernel unions a circle's signed distance into solidPhi:
// solidPhi := min(solidPhi, circleSDF), the usual CSG union of two solid
// regions by pointwise minimum of their signed distance fields. Resources:
// solidPhi (image, read-modify-write). Push constants: 0 = centre x,
// 1 = centre y, 2 = radius.
func rigidBodyPhiKernel(ctx *device.KernelContext) error {
	phiImg := ctx.Resources[0].(*Image)
	phi := phiImg.Floats()
	size := phiImg.GridSize()

	cx, cy, radius := ctx.Push[0], ctx.Push[1], ctx.Push[2]

	return ParallelFor(size.H, func(j int) error {
		for i := 0; i < size.W; i++ {
			idx := gridtypes.Index(size, i, j)
			d := circleSDF(float32(i), float32(j), cx, cy, radius)
			if d < phi[idx] {
				phi[idx] = d
			}
		}
		return nil
	})
}

// rigidBodyVelocityKernel paints a rigid body's velocity, linear plus the
// angular term v + ω×(p−centre), into every cell the circle covers.
// Overlapping bodies simply overwrite each other in dispatch order — two-
// way rigid body coupling beyond momentum transfer is out of scope (§1's
// Non-goals). Resources: solidVelocity (image, output). Push constants:
// 0 = centre x, 1 = centre y, 2 = radius, 3 = linear x, 4 = linear y,
// 5 = angular velocity.
func rigidBodyVelocityKernel(ctx *device.KernelContext) error {
	velImg := ctx.Resources[0].(*Image)
	vel := velImg.Vec2s()
	size := velImg.GridSize()

	cx, cy, radius := ctx.Push[0], ctx.Push[1], ctx.Push[2]
	lx, ly, angular := ctx.Push[3], ctx.Push[4], ctx.Push[5]

	return ParallelFor(size.H, func(j int) error {
		for i := 0; i < size.W; i++ {
			x, y := float32(i), float32(j)
			if circleSDF(x, y, cx, cy, radius) >= 0 {
				continue
			}
			idx := gridtypes.Index(size, i, j)
			rx, ry := x-cx, y-cy
			vel[idx] = gridtypes.Vec2{X: lx - angular*ry, Y: ly + angular*rx}
		}
		return nil
	})
}
