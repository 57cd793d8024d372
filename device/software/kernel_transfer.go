package software

import (
	"math"

	"github.com/vortex2d-go/fluid/device"
	"github.com/vortex2d-go/fluid/gridtypes"
)

// registerTransferKernels installs TransferToGrid and TransferFromGrid
// (spec.md §4.4), the particle/grid halves of World.cpp's SolveDynamic
// steps 2 and 6 ("Transfer velocities from particles to grid" /
// "Update particle velocities with PIC/FLIP"). Neither has a surviving
// body in original_source (ParticleCount.cpp isn't shipped there; only
// its call sites in World.cpp are), so the splat/sample weighting below
// follows the standard PIC/FLIP bilinear-transfer scheme the glossary
// entry names, not a copied implementation.
func registerTransferKernels(d *Device) {
	d.RegisterKernel("TransferToGrid", transferToGridKernel)
	d.RegisterKernel("TransferFromGrid", transferFromGridKernel)
}

// transferToGridKernel splats each live particle's velocity onto the four
// grid nodes bilinearly nearest its position (P2G), weighted by the usual
// bilinear coefficients, and writes the weighted average into any cell at
// least one particle reached. Cells no particle reached keep whatever
// velocity they already hold (World.cpp: "transfer to grid adds to the
// velocity, so we can set the values before" — SolveDynamic clears the
// grid before this runs, so for those cells "adds to" and "assigns"
// coincide). Resources: particles, dispatchParams (binding parity only),
// velocity. Accumulation follows ParticleCount's local-then-merge pattern
// to stay race-free across workers without atomics-on-float.
func transferToGridKernel(ctx *device.KernelContext) error {
	particles := ctx.Resources[0].(*Buffer).Particles()
	velImg := ctx.Resources[2].(*Image)
	vel := velImg.Vec2s()
	size := velImg.GridSize()

	n := ctx.Count
	if n > len(particles) {
		n = len(particles)
	}
	if n <= 0 {
		return nil
	}

	workers := workerCount(n)
	chunk := (n + workers - 1) / workers
	sums := make([][]gridtypes.Vec2, workers)
	weights := make([][]float32, workers)

	err := ParallelFor(workers, func(w int) error {
		lo := w * chunk
		if lo >= n {
			return nil
		}
		hi := lo + chunk
		if hi > n {
			hi = n
		}
		sum := make([]gridtypes.Vec2, size.N())
		weight := make([]float32, size.N())
		for k := lo; k < hi; k++ {
			splatVelocity(sum, weight, size, particles[k].Position, particles[k].Velocity)
		}
		sums[w] = sum
		weights[w] = weight
		return nil
	})
	if err != nil {
		return err
	}

	totalSum := make([]gridtypes.Vec2, size.N())
	totalWeight := make([]float32, size.N())
	for w := range sums {
		if sums[w] == nil {
			continue
		}
		for idx := range totalSum {
			totalSum[idx] = totalSum[idx].Add(sums[w][idx])
			totalWeight[idx] += weights[w][idx]
		}
	}

	for idx, w := range totalWeight {
		if w > 1e-6 {
			vel[idx] = totalSum[idx].Scale(1 / w)
		}
	}
	return nil
}

// splatVelocity distributes v's contribution across the up-to-four grid
// nodes surrounding pos, weighted by the bilinear coefficients of pos
// within its cell.
func splatVelocity(sum []gridtypes.Vec2, weight []float32, size gridtypes.Size, pos, v gridtypes.Vec2) {
	x := clampf(pos.X, 0, float32(size.W-1))
	y := clampf(pos.Y, 0, float32(size.H-1))
	i0 := int(math.Floor(float64(x)))
	j0 := int(math.Floor(float64(y)))
	i1, j1 := i0+1, j0+1
	if i1 > size.W-1 {
		i1 = size.W - 1
	}
	if j1 > size.H-1 {
		j1 = size.H - 1
	}
	fx, fy := x-float32(i0), y-float32(j0)

	deposit := func(i, j int, w float32) {
		if w <= 0 {
			return
		}
		idx := gridtypes.Index(size, i, j)
		sum[idx] = sum[idx].Add(v.Scale(w))
		weight[idx] += w
	}
	deposit(i0, j0, (1-fx)*(1-fy))
	deposit(i1, j0, fx*(1-fy))
	deposit(i0, j1, (1-fx)*fy)
	deposit(i1, j1, fx*fy)
}

// transferFromGridKernel is the G2P half: each live particle's Velocity
// is overwritten with the grid velocity bilinearly sampled at its
// position, a plain PIC read-back (no blended FLIP delta is computed,
// since nothing in original_source preserves a pre-projection velocity
// snapshot to difference against). Resources: particles, dispatchParams
// (binding parity only), velocity.
func transferFromGridKernel(ctx *device.KernelContext) error {
	particles := ctx.Resources[0].(*Buffer).Particles()
	velImg := ctx.Resources[2].(*Image)
	vel := velImg.Vec2s()
	size := velImg.GridSize()

	n := ctx.Count
	if n > len(particles) {
		n = len(particles)
	}
	if n <= 0 {
		return nil
	}

	return ParallelFor(n, func(k int) error {
		p := particles[k].Position
		particles[k].Velocity = bilinearVec2(vel, size, p.X, p.Y)
		return nil
	})
}
