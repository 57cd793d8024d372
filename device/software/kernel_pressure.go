package software

import (
	"github.com/vortex2d-go/fluid/device"
	"github.com/vortex2d-go/fluid/gridtypes"
)

// registerPressureKernels installs the three kernels Pressure records each
// frame (spec.md §4.5.3): BuildMatrix assembles the Poisson system from
// the level sets with Batty-Bridson variational weights, ProjectVelocity
// subtracts the pressure gradient at fluid faces, and CopyBack is the
// plain front/back image swap-by-copy the projection does once CG has
// produced X. Grounded on the face-fraction/ghost-fluid weight derivation
// exercised by Tests/Engine/VariationalHelpers.h (BuildLinearEquation,
// fraction_inside) and spec.md's invariant "Diagonal[k] = -(Lower[k].x +
// Lower[k+1].x + Lower[k].y + Lower[k+W].y)".
func registerPressureKernels(d *Device) {
	d.RegisterKernel("BuildMatrix", buildMatrixKernel)
	d.RegisterKernel("Project", projectVelocityKernel)
	d.RegisterKernel("CopyBack", copyBackKernel)
}

// fractionInside returns the fraction of the edge between two samples of
// a signed distance field that lies on the negative (inside) side, for
// phiLeft/phiRight taken at the two ends of the edge. Standard
// two-point linear interpolation of the zero crossing (Batty & Bridson
// 2007, "Accurate Viscous Free Surfaces").
func fractionInside(phiLeft, phiRight float32) float32 {
	switch {
	case phiLeft < 0 && phiRight < 0:
		return 1
	case phiLeft < 0 && phiRight >= 0:
		return phiLeft / (phiLeft - phiRight)
	case phiLeft >= 0 && phiRight < 0:
		return phiRight / (phiRight - phiLeft)
	default:
		return 0
	}
}

func clamp01(v float32) float32 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// buildMatrixKernel fills Diagonal, Lower and B for every cell. Air cells
// (liquidPhi >= 0) get an identity row so the system stays regular; fluid
// cells get the variational coefficients: each of the 4 faces contributes
// a term scaled by the fraction of that face open to fluid (from
// solidPhi), and an open-air neighbor contributes a ghost-fluid
// correction to the diagonal scaled by the free-surface fraction theta
// (from liquidPhi) instead of coupling into Lower. Cell width is 1 grid
// unit and density is 1 (spec.md §3: "cell width 1.0 in grid units"), so
// each face term is simply dt*openFraction.
//
// Resources: velocity, solidPhi, liquidPhi (images), Diagonal, Lower, B
// (buffers). Push constant 0 = dt.
func buildMatrixKernel(ctx *device.KernelContext) error {
	velocity := ctx.Resources[0].(*Image)
	solidPhi := ctx.Resources[1].(*Image)
	liquidPhi := ctx.Resources[2].(*Image)
	diag := ctx.Resources[3].(*Buffer).Floats()
	lower := ctx.Resources[4].(*Buffer).Vec2s()
	b := ctx.Resources[5].(*Buffer).Floats()

	size := velocity.GridSize()
	u := velocity.Vec2s()
	sp := solidPhi.Floats()
	lp := liquidPhi.Floats()

	dt := ctx.Push[0]

	for i := range lower {
		lower[i] = gridtypes.Vec2{}
	}

	return ParallelFor(size.H, func(j int) error {
		for i := 0; i < size.W; i++ {
			idx := gridtypes.Index(size, i, j)

			if lp[idx] >= 0 {
				diag[idx] = 1
				b[idx] = 0
				continue
			}

			var d float32
			var divergence float32

			// Left face: solid-open fraction between the two nodal solid
			// samples bounding it (this cell's bottom-left and top-left
			// corners, approximated here by the cell-centered solidPhi at
			// i and i-1 since the engine keeps solidPhi cell-centered).
			if i > 0 {
				open := 1 - clamp01(fractionInside(sp[idx], sp[gridtypes.Index(size, i-1, j)]))
				term := dt * open
				if lp[gridtypes.Index(size, i-1, j)] < 0 {
					d += term
					lower[idx].X = -term
				} else {
					theta := clamp01(fractionInside(lp[idx], lp[gridtypes.Index(size, i-1, j)]))
					if theta < 0.01 {
						theta = 0.01
					}
					d += term / theta
				}
				divergence -= u[idx].X
			}
			if i < size.W-1 {
				right := gridtypes.Index(size, i+1, j)
				open := 1 - clamp01(fractionInside(sp[idx], sp[right]))
				term := dt * open
				if lp[right] < 0 {
					d += term
					lower[right].X = -term
				} else {
					theta := clamp01(fractionInside(lp[idx], lp[right]))
					if theta < 0.01 {
						theta = 0.01
					}
					d += term / theta
				}
				divergence += u[right].X
			}
			if j > 0 {
				down := gridtypes.Index(size, i, j-1)
				open := 1 - clamp01(fractionInside(sp[idx], sp[down]))
				term := dt * open
				if lp[down] < 0 {
					d += term
					lower[idx].Y = -term
				} else {
					theta := clamp01(fractionInside(lp[idx], lp[down]))
					if theta < 0.01 {
						theta = 0.01
					}
					d += term / theta
				}
				divergence -= u[idx].Y
			}
			if j < size.H-1 {
				up := gridtypes.Index(size, i, j+1)
				open := 1 - clamp01(fractionInside(sp[idx], sp[up]))
				term := dt * open
				if lp[up] < 0 {
					d += term
					lower[up].Y = -term
				} else {
					theta := clamp01(fractionInside(lp[idx], lp[up]))
					if theta < 0.01 {
						theta = 0.01
					}
					d += term / theta
				}
				divergence += u[up].Y
			}

			if d == 0 {
				d = 1
			}
			diag[idx] = d
			b[idx] = -divergence
		}
		return nil
	})
}

// projectVelocityKernel applies u' := u - dt*grad(X) at every interior
// face shared by two fluid-or-air cells whose connecting face has a
// nonzero open fraction, writing the updated component into the back
// velocity and marking it valid. A face touching a fully closed solid
// boundary (Lower == 0 on both ends) is left untouched and invalid so
// Extrapolate can fill it in from neighbors.
//
// Resources: velocity (front), X, Diagonal, Lower, velocityBack (image),
// valid (image, ElementIVec2). Push constant 0 = dt.
func projectVelocityKernel(ctx *device.KernelContext) error {
	velocity := ctx.Resources[0].(*Image)
	x := ctx.Resources[1].(*Buffer).Floats()
	diag := ctx.Resources[2].(*Buffer).Floats()
	lower := ctx.Resources[3].(*Buffer).Vec2s()
	back := ctx.Resources[4].(*Image)
	valid := ctx.Resources[5].(*Image)

	size := velocity.GridSize()
	u := velocity.Vec2s()
	outU := back.Vec2s()
	outValid := valid.IVec2s()

	dt := ctx.Push[0]

	return ParallelFor(size.H, func(j int) error {
		for i := 0; i < size.W; i++ {
			idx := gridtypes.Index(size, i, j)
			result := u[idx]
			v := gridtypes.IVec2{}

			if i > 0 {
				left := gridtypes.Index(size, i-1, j)
				if diag[idx] != 0 && diag[left] != 0 && lower[idx].X != 0 {
					result.X = u[idx].X - dt*(x[idx]-x[left])
					v.X = 1
				}
			}
			if j > 0 {
				down := gridtypes.Index(size, i, j-1)
				if diag[idx] != 0 && diag[down] != 0 && lower[idx].Y != 0 {
					result.Y = u[idx].Y - dt*(x[idx]-x[down])
					v.Y = 1
				}
			}

			outU[idx] = result
			outValid[idx] = v
		}
		return nil
	})
}

// copyBackKernel copies the projected back velocity into front, the
// "swap front/back so the updated velocity is readable as input" step of
// spec.md §4.5.3 item 3 (modeled as an explicit copy rather than a ring
// rotation since downstream kernels of the same frame still address the
// image by resource identity, not by Ring.Front()/Back()).
func copyBackKernel(ctx *device.KernelContext) error {
	front := ctx.Resources[0].(*Image)
	back := ctx.Resources[1].(*Image)
	front.CopyFrom(back)
	return nil
}
