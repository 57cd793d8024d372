package software

import (
	"math"

	"github.com/vortex2d-go/fluid/device"
	"github.com/vortex2d-go/fluid/gridtypes"
)

// redistanceDt is the pseudo-time step of the Godunov Eikonal iteration,
// the usual CFL-stable choice of half a cell width (spec.md §3: cell
// width is 1.0).
const redistanceDt = 0.5

// registerLevelSetKernels installs Redistance and Extrapolate (spec.md
// §4.6), grounded on LevelSet.h/.cpp's front/back/mLevelSet0 ping-pong
// (the original shader bodies are missing from the distillation — see
// DESIGN.md's Open Question resolution — so the Godunov upwind scheme
// below follows the textbook Sussman-style reinitialization the header's
// "ensure it is a correct signed distance field" contract calls for).
func registerLevelSetKernels(d *Device) {
	d.RegisterKernel("Redistance", redistanceKernel)
	d.RegisterKernel("Extrapolate", extrapolateLevelSetKernel)
}

// redistanceKernel runs one Godunov-upwind pseudo-time step of |grad(phi)|
// = 1 toward a signed-distance field, holding the original field phi0
// fixed as the sign reference so the zero isosurface does not drift.
// Resources: phi0 (the field's value before Redistance began iterating),
// front (input this iteration), back (output this iteration).
func redistanceKernel(ctx *device.KernelContext) error {
	phi0Img := ctx.Resources[0].(*Image)
	frontImg := ctx.Resources[1].(*Image)
	backImg := ctx.Resources[2].(*Image)

	phi0 := phi0Img.Floats()
	front := frontImg.Floats()
	back := backImg.Floats()
	size := frontImg.GridSize()

	return ParallelFor(size.H, func(j int) error {
		for i := 0; i < size.W; i++ {
			idx := gridtypes.Index(size, i, j)
			p0 := phi0[idx]
			s := p0 / float32(math.Sqrt(float64(p0*p0+1)))

			var dxp, dxm, dyp, dym float32
			if i < size.W-1 {
				dxp = front[gridtypes.Index(size, i+1, j)] - front[idx]
			}
			if i > 0 {
				dxm = front[idx] - front[gridtypes.Index(size, i-1, j)]
			}
			if j < size.H-1 {
				dyp = front[gridtypes.Index(size, i, j+1)] - front[idx]
			}
			if j > 0 {
				dym = front[idx] - front[gridtypes.Index(size, i, j-1)]
			}

			var a, b float32
			if s > 0 {
				a = maxf(maxf(dxm, 0), -minf(dxp, 0))
				b = maxf(maxf(dym, 0), -minf(dyp, 0))
			} else {
				a = maxf(maxf(-dxm, 0), minf(dxp, 0))
				b = maxf(maxf(-dym, 0), minf(dyp, 0))
			}
			grad := float32(math.Sqrt(float64(a*a + b*b)))
			back[idx] = front[idx] - redistanceDt*s*(grad-1)
		}
		return nil
	})
}

func maxf(a, b float32) float32 {
	if a > b {
		return a
	}
	return b
}

func minf(a, b float32) float32 {
	if a < b {
		return a
	}
	return b
}

// extrapolateLevelSetKernel extends this level set one cell into the
// solid region bound by solidPhi: any cell inside the solid (solidPhi <
// 0) with at least one fluid-side neighbor (solidPhi >= 0) takes the
// average phi of those fluid-side neighbors, so bilinear sampling near an obstacle never reads an
// undefined interior value (LevelSet.h: "only performs a single cell
// extrapolation").
// Resources: solidPhi, front (read), back (write; copied in unmodified
// where no extrapolation applies).
func extrapolateLevelSetKernel(ctx *device.KernelContext) error {
	solidImg := ctx.Resources[0].(*Image)
	frontImg := ctx.Resources[1].(*Image)
	backImg := ctx.Resources[2].(*Image)

	solid := solidImg.Floats()
	front := frontImg.Floats()
	back := backImg.Floats()
	size := frontImg.GridSize()

	return ParallelFor(size.H, func(j int) error {
		for i := 0; i < size.W; i++ {
			idx := gridtypes.Index(size, i, j)
			if solid[idx] >= 0 {
				back[idx] = front[idx]
				continue
			}
			sum, n := float32(0), 0
			for _, d := range [4][2]int{{1, 0}, {-1, 0}, {0, 1}, {0, -1}} {
				ni, nj := i+d[0], j+d[1]
				if !size.Valid(ni, nj) {
					continue
				}
				nIdx := gridtypes.Index(size, ni, nj)
				if solid[nIdx] >= 0 {
					sum += front[nIdx]
					n++
				}
			}
			if n > 0 {
				back[idx] = sum / float32(n)
			} else {
				back[idx] = front[idx]
			}
		}
		return nil
	})
}
