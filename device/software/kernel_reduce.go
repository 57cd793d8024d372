package software

import (
	"math"

	"github.com/vortex2d-go/fluid/device"
)

// registerReduceKernels installs ReduceSum and ReduceMax (spec.md §4.2).
// On real hardware these run as a tree reduction across dispatch levels;
// here ParallelFor computes independent partial reductions per worker
// chunk and a final sequential combine finishes the job, which is
// observationally equivalent for the commutative/associative reductions
// used here.
func registerReduceKernels(d *Device) {
	d.RegisterKernel("ReduceSum", reduceSumKernel)
	d.RegisterKernel("ReduceMax", reduceMaxKernel)
	d.RegisterKernel("ReduceDot", reduceDotKernel)
}

func reduceSumKernel(ctx *device.KernelContext) error {
	in := ctx.Resources[0].(*Buffer).Floats()
	out := ctx.Resources[1].(*Buffer).Floats()

	n := len(in)
	partials, err := parallelPartials(n, func(lo, hi int) float64 {
		var sum float64
		for i := lo; i < hi; i++ {
			sum += float64(in[i])
		}
		return sum
	})
	if err != nil {
		return err
	}
	var total float64
	for _, p := range partials {
		total += p
	}
	out[0] = float32(total)
	return nil
}

func reduceMaxKernel(ctx *device.KernelContext) error {
	in := ctx.Resources[0].(*Buffer).Floats()
	out := ctx.Resources[1].(*Buffer).Floats()

	n := len(in)
	if n == 0 {
		out[0] = 0
		return nil
	}
	partials, err := parallelPartials(n, func(lo, hi int) float64 {
		m := math.Abs(float64(in[lo]))
		for i := lo + 1; i < hi; i++ {
			if v := math.Abs(float64(in[i])); v > m {
				m = v
			}
		}
		return m
	})
	if err != nil {
		return err
	}
	max := partials[0]
	for _, p := range partials[1:] {
		if p > max {
			max = p
		}
	}
	out[0] = float32(max)
	return nil
}

// reduceDotKernel computes out[0] := sum(x[i]*y[i]), the "fused multiply
// then sum" dispatch spec.md §4.5.1 uses for every CG inner product
// instead of a separate elementwise-multiply pass plus ReduceSum.
func reduceDotKernel(ctx *device.KernelContext) error {
	x := ctx.Resources[0].(*Buffer).Floats()
	y := ctx.Resources[1].(*Buffer).Floats()
	out := ctx.Resources[2].(*Buffer).Floats()

	n := len(x)
	partials, err := parallelPartials(n, func(lo, hi int) float64 {
		var sum float64
		for i := lo; i < hi; i++ {
			sum += float64(x[i]) * float64(y[i])
		}
		return sum
	})
	if err != nil {
		return err
	}
	var total float64
	for _, p := range partials {
		total += p
	}
	out[0] = float32(total)
	return nil
}

// parallelPartials chunks [0,n) across workerCount(n) workers and returns one
// float64 per chunk computed by reduceChunk(lo, hi).
func parallelPartials(n int, reduceChunk func(lo, hi int) float64) ([]float64, error) {
	if n == 0 {
		return []float64{0}, nil
	}
	workers := workerCount(n)
	chunk := (n + workers - 1) / workers
	partials := make([]float64, workers)

	err := ParallelFor(workers, func(w int) error {
		lo := w * chunk
		hi := lo + chunk
		if lo >= n {
			partials[w] = 0
			return nil
		}
		if hi > n {
			hi = n
		}
		partials[w] = reduceChunk(lo, hi)
		return nil
	})
	return partials, err
}

func workerCount(n int) int {
	w := 1
	if n > 1 {
		w = n
		if w > 256 {
			w = 256
		}
	}
	return w
}
