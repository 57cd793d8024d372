package software

import (
	"github.com/vortex2d-go/fluid/device"
	"github.com/vortex2d-go/fluid/gridtypes"
)

// registerExtrapolateKernels installs the velocity-extrapolation sweep and
// solid boundary-condition enforcement of spec.md §4.8. These are distinct
// from levelset's single-cell "Extrapolate" (different data shape: a
// float2 velocity plus a per-component validity mask, swept repeatedly
// rather than applied once) and are supplemented under their own names
// since spec.md's kernel-binary enumeration names only one "Extrapolate".
func registerExtrapolateKernels(d *Device) {
	d.RegisterKernel("ExtrapolateVelocity", extrapolateVelocitySweepKernel)
	d.RegisterKernel("ConstrainVelocity", constrainVelocityKernel)
}

// extrapolateVelocitySweepKernel runs one sweep: any face whose valid
// component is 0 and has at least one valid neighbour takes the average
// of its valid neighbours' corresponding component and is marked valid.
// Resources: velocity (front), valid (ElementIVec2), velocityBack,
// validBack.
func extrapolateVelocitySweepKernel(ctx *device.KernelContext) error {
	velImg := ctx.Resources[0].(*Image)
	validImg := ctx.Resources[1].(*Image)
	velBackImg := ctx.Resources[2].(*Image)
	validBackImg := ctx.Resources[3].(*Image)

	vel := velImg.Vec2s()
	valid := validImg.IVec2s()
	velBack := velBackImg.Vec2s()
	validBack := validBackImg.IVec2s()
	size := velImg.GridSize()

	neighbors := [4][2]int{{1, 0}, {-1, 0}, {0, 1}, {0, -1}}

	return ParallelFor(size.H, func(j int) error {
		for i := 0; i < size.W; i++ {
			idx := gridtypes.Index(size, i, j)
			out := vel[idx]
			v := valid[idx]

			for comp := 0; comp < 2; comp++ {
				already := v.X != 0
				if comp == 1 {
					already = v.Y != 0
				}
				if already {
					continue
				}
				var sum float32
				var n int
				for _, d := range neighbors {
					ni, nj := i+d[0], j+d[1]
					if !size.Valid(ni, nj) {
						continue
					}
					nIdx := gridtypes.Index(size, ni, nj)
					nv := valid[nIdx]
					ok := nv.X != 0
					val := vel[nIdx].X
					if comp == 1 {
						ok = nv.Y != 0
						val = vel[nIdx].Y
					}
					if ok {
						sum += val
						n++
					}
				}
				if n > 0 {
					if comp == 0 {
						out.X = sum / float32(n)
						v.X = 1
					} else {
						out.Y = sum / float32(n)
						v.Y = 1
					}
				}
			}

			velBack[idx] = out
			validBack[idx] = v
		}
		return nil
	})
}

// constrainVelocityKernel enforces u·n = solidVelocity·n on faces
// adjacent to solid cells (solidPhi < 0 on one side of the face), after
// extrapolation has filled every previously-invalid face.
// Resources: velocity (front), solidPhi, solidVelocity, velocityBack.
func constrainVelocityKernel(ctx *device.KernelContext) error {
	velImg := ctx.Resources[0].(*Image)
	solidImg := ctx.Resources[1].(*Image)
	solidVelImg := ctx.Resources[2].(*Image)
	backImg := ctx.Resources[3].(*Image)

	vel := velImg.Vec2s()
	solid := solidImg.Floats()
	solidVel := solidVelImg.Vec2s()
	back := backImg.Vec2s()
	size := velImg.GridSize()

	return ParallelFor(size.H, func(j int) error {
		for i := 0; i < size.W; i++ {
			idx := gridtypes.Index(size, i, j)
			out := vel[idx]

			if i > 0 {
				left := gridtypes.Index(size, i-1, j)
				if solid[idx] < 0 || solid[left] < 0 {
					out.X = solidVel[idx].X
				}
			}
			if j > 0 {
				down := gridtypes.Index(size, i, j-1)
				if solid[idx] < 0 || solid[down] < 0 {
					out.Y = solidVel[idx].Y
				}
			}

			back[idx] = out
		}
		return nil
	})
}
