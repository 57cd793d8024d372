package software

import (
	"github.com/vortex2d-go/fluid/device"
	"github.com/vortex2d-go/fluid/gridtypes"
)

// restrictWeights is the 1D full-weighting stencil spec.md §4.5.2 names;
// the 2D kernel is its outer product with itself, (1,3,3,1)⊗(1,3,3,1)/64.
var restrictWeights = [4]float32{1, 3, 3, 1}

// registerMultigridKernels installs Restrict and Prolongate (spec.md
// §4.5.2), the geometric multigrid inter-level transfer operators. Both
// operate on the same flat, width-carried-by-push-constant buffer layout
// as the rest of the solver package (solver.Data's fields are device.Buffer,
// not device.Image).
func registerMultigridKernels(d *Device) {
	d.RegisterKernel("Restrict", restrictKernel)
	d.RegisterKernel("Prolongate", prolongateKernel)
	d.RegisterKernel("RestrictPlain", restrictPlainKernel)
	d.RegisterKernel("RestrictPlainVec2", restrictPlainVec2Kernel)
}

func clampIdx(i, n int) int {
	if i < 0 {
		return 0
	}
	if i > n-1 {
		return n - 1
	}
	return i
}

// restrictKernel full-weight-restricts a fine scalar field onto a coarse
// grid roughly half its size, one coarse cell per thread. Each coarse
// cell (I,J) averages a 4x4 window of fine cells starting at (2I-2,2J-2),
// clamped to the fine grid's edges, under the (1,3,3,1)⊗(1,3,3,1)/64
// stencil, then rescales by the ratio of the coarse cell's own diagonal
// to the same-window weighted-average fine diagonal, so a restricted RHS
// stays consistent with the coarser level's re-assembled matrix even
// where ghost-fluid weights vary cell to cell. Resources: fine,
// fineDiagonal, coarseDiagonal, coarse (output, flat buffers). Push
// constants: 0 = fine width, 1 = coarse width.
func restrictKernel(ctx *device.KernelContext) error {
	fine := ctx.Resources[0].(*Buffer).Floats()
	fineDiag := ctx.Resources[1].(*Buffer).Floats()
	coarseDiag := ctx.Resources[2].(*Buffer).Floats()
	coarse := ctx.Resources[3].(*Buffer).Floats()

	fineWidth := int(ctx.Push[0])
	coarseWidth := int(ctx.Push[1])
	if fineWidth <= 0 || coarseWidth <= 0 {
		return device.ErrDescriptorMismatch
	}
	fineHeight := len(fine) / fineWidth
	coarseHeight := len(coarse) / coarseWidth

	return ParallelFor(coarseHeight, func(J int) error {
		for I := 0; I < coarseWidth; I++ {
			var sum, diagSum float32
			for ky := 0; ky < 4; ky++ {
				fy := clampIdx(2*J-2+ky, fineHeight)
				wy := restrictWeights[ky]
				for kx := 0; kx < 4; kx++ {
					fx := clampIdx(2*I-2+kx, fineWidth)
					w := restrictWeights[kx] * wy
					idx := fx + fineWidth*fy
					sum += w * fine[idx]
					diagSum += w * fineDiag[idx]
				}
			}
			avg := sum / 64
			diagAvg := diagSum / 64
			cIdx := I + coarseWidth*J
			if diagAvg != 0 {
				avg *= coarseDiag[cIdx] / diagAvg
			}
			coarse[cIdx] = avg
		}
		return nil
	})
}

// restrictPlainKernel applies the same (1,3,3,1)⊗(1,3,3,1)/64 stencil as
// restrictKernel but without the fine/coarse-diagonal rescaling step,
// plain full-weighting. Used by solver.Multigrid to coarsen the operator
// itself (Diagonal) rather than a right-hand side, where there is no
// "coarser matrix" yet to rescale against (spec.md §4.5.2 only specifies
// the rescaled form for restricting the RHS/residual). Resources: fine,
// coarse (flat buffers). Push constants: 0 = fine width, 1 = coarse width.
func restrictPlainKernel(ctx *device.KernelContext) error {
	fine := ctx.Resources[0].(*Buffer).Floats()
	coarse := ctx.Resources[1].(*Buffer).Floats()

	fineWidth := int(ctx.Push[0])
	coarseWidth := int(ctx.Push[1])
	if fineWidth <= 0 || coarseWidth <= 0 {
		return device.ErrDescriptorMismatch
	}
	fineHeight := len(fine) / fineWidth
	coarseHeight := len(coarse) / coarseWidth

	return ParallelFor(coarseHeight, func(J int) error {
		for I := 0; I < coarseWidth; I++ {
			var sum float32
			for ky := 0; ky < 4; ky++ {
				fy := clampIdx(2*J-2+ky, fineHeight)
				wy := restrictWeights[ky]
				for kx := 0; kx < 4; kx++ {
					fx := clampIdx(2*I-2+kx, fineWidth)
					sum += restrictWeights[kx] * wy * fine[fx+fineWidth*fy]
				}
			}
			coarse[I+coarseWidth*J] = sum / 64
		}
		return nil
	})
}

// restrictPlainVec2Kernel is restrictPlainKernel applied independently to
// each component of a Vec2 buffer, used to coarsen solver.Data's Lower
// coupling coefficients alongside Diagonal.
func restrictPlainVec2Kernel(ctx *device.KernelContext) error {
	fine := ctx.Resources[0].(*Buffer).Vec2s()
	coarse := ctx.Resources[1].(*Buffer).Vec2s()

	fineWidth := int(ctx.Push[0])
	coarseWidth := int(ctx.Push[1])
	if fineWidth <= 0 || coarseWidth <= 0 {
		return device.ErrDescriptorMismatch
	}
	fineHeight := len(fine) / fineWidth
	coarseHeight := len(coarse) / coarseWidth

	return ParallelFor(coarseHeight, func(J int) error {
		for I := 0; I < coarseWidth; I++ {
			var sumX, sumY float32
			for ky := 0; ky < 4; ky++ {
				fy := clampIdx(2*J-2+ky, fineHeight)
				wy := restrictWeights[ky]
				for kx := 0; kx < 4; kx++ {
					fx := clampIdx(2*I-2+kx, fineWidth)
					w := restrictWeights[kx] * wy
					v := fine[fx+fineWidth*fy]
					sumX += w * v.X
					sumY += w * v.Y
				}
			}
			coarse[I+coarseWidth*J] = gridtypes.Vec2{X: sumX / 64, Y: sumY / 64}
		}
		return nil
	})
}

// prolongateKernel is the transpose of restrictKernel's weighting (spec.md
// §4.5.2: "transpose weights (9,3,3,1)/16 for each fine cell"): rather
// than gathering per fine cell, each coarse cell scatters its value,
// scaled 1/16th of the same (1,3,3,1)⊗(1,3,3,1) stencil, into the same
// 4x4 fine window restrictKernel would have gathered it from. Accumulated
// per-worker-then-merged like ParticleCount's scatter, to avoid float
// atomics on the output buffer. Resources: coarse, fine (output, zeroed
// before accumulation). Push constants: 0 = coarse width, 1 = fine width.
func prolongateKernel(ctx *device.KernelContext) error {
	coarse := ctx.Resources[0].(*Buffer).Floats()
	fine := ctx.Resources[1].(*Buffer).Floats()

	coarseWidth := int(ctx.Push[0])
	fineWidth := int(ctx.Push[1])
	if coarseWidth <= 0 || fineWidth <= 0 {
		return device.ErrDescriptorMismatch
	}
	fineHeight := len(fine) / fineWidth
	n := len(coarse)

	for i := range fine {
		fine[i] = 0
	}

	workers := workerCount(n)
	chunk := (n + workers - 1) / workers
	accs := make([][]float32, workers)

	err := ParallelFor(workers, func(w int) error {
		lo := w * chunk
		if lo >= n {
			return nil
		}
		hi := lo + chunk
		if hi > n {
			hi = n
		}
		acc := make([]float32, len(fine))
		for cell := lo; cell < hi; cell++ {
			I := cell % coarseWidth
			J := cell / coarseWidth
			val := coarse[cell]
			for ky := 0; ky < 4; ky++ {
				fy := clampIdx(2*J-2+ky, fineHeight)
				wy := restrictWeights[ky]
				for kx := 0; kx < 4; kx++ {
					fx := clampIdx(2*I-2+kx, fineWidth)
					w := restrictWeights[kx] * wy
					idx := fx + fineWidth*fy
					acc[idx] += w * val / 16
				}
			}
		}
		accs[w] = acc
		return nil
	})
	if err != nil {
		return err
	}

	for _, acc := range accs {
		if acc == nil {
			continue
		}
		for idx, v := range acc {
			fine[idx] += v
		}
	}
	return nil
}
