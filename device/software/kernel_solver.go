package software

import "github.com/vortex2d-go/fluid/device"

// registerSolverKernels installs the preconditioned-conjugate-gradient
// building blocks (spec.md §4.5): the three Preconditioner
// implementations (Diagonal, IncompletePoisson, GaussSeidelRed/Black),
// the matrix-free sparse product Multiply (q := A·p) and the small
// vector kernel VectorAXPY the CG driver uses for every X/r/p update.
// Diagonal and Lower together represent the symmetric 5-point Poisson
// matrix: Diagonal[i] is the diagonal entry, Lower[i].X = A(i-1,j; i,j) is
// cell i's coupling to its left neighbor and Lower[i].Y = A(i,j-1; i,j) its
// coupling to its down neighbor (the right/up couplings of a cell are the
// same values, read off the neighboring cell's Lower by symmetry).
func registerSolverKernels(d *Device) {
	d.RegisterKernel("Diagonal", diagonalKernel)
	d.RegisterKernel("IncompletePoisson", incompletePoissonKernel)
	d.RegisterKernel("GaussSeidelRed", gaussSeidelKernel(0))
	d.RegisterKernel("GaussSeidelBlack", gaussSeidelKernel(1))
	d.RegisterKernel("Multiply", multiplyKernel)
	d.RegisterKernel("VectorAXPY", vectorAXPYKernel)
}

// diagonalKernel applies X[i] := B[i]/Diagonal[i] (0 where Diagonal = 0),
// the simplest possible preconditioner (spec.md §4.5.2).
func diagonalKernel(ctx *device.KernelContext) error {
	diag := ctx.Resources[0].(*Buffer).Floats()
	b := ctx.Resources[2].(*Buffer).Floats()
	x := ctx.Resources[3].(*Buffer).Floats()
	return ParallelFor(len(x), func(i int) error {
		if diag[i] != 0 {
			x[i] = b[i] / diag[i]
		} else {
			x[i] = 0
		}
		return nil
	})
}

// incompletePoissonKernel is a single-pass approximate inverse: a
// truncated Neumann expansion of A⁻¹ ≈ D⁻¹ − D⁻¹LD⁻¹ applied once,
// tuned for the symmetric 5-point Poisson stencil. It only reads B and
// the already-assembled matrix, so (unlike a true sequential IC(0)
// forward/back substitution) the whole grid is independent and the
// kernel dispatches as one pass.
func incompletePoissonKernel(ctx *device.KernelContext) error {
	diag := ctx.Resources[0].(*Buffer).Floats()
	lower := ctx.Resources[1].(*Buffer).Vec2s()
	b := ctx.Resources[2].(*Buffer).Floats()
	x := ctx.Resources[3].(*Buffer).Floats()

	width := int(ctx.Push[0])
	if width <= 0 {
		return device.ErrDescriptorMismatch
	}
	n := len(x)

	return ParallelFor(n, func(i int) error {
		d := diag[i]
		if d == 0 {
			x[i] = 0
			return nil
		}
		v := b[i] / d
		if i%width != 0 {
			if left := i - 1; diag[left] != 0 {
				v -= lower[i].X * b[left] / (d * diag[left])
			}
		}
		if down := i - width; down >= 0 && diag[down] != 0 {
			v -= lower[i].Y * b[down] / (d * diag[down])
		}
		x[i] = v
		return nil
	})
}

// gaussSeidelKernel returns the red (parity 0) or black (parity 1) half of
// of a checkerboard SOR sweep: X := X + w(X* − X) where X* is the
// Jacobi update implied by the cell's four neighbors. Resources:
// Diagonal, Lower, B, X. Push constants: 0 = w, 1 = grid width.
func gaussSeidelKernel(parity int) device.KernelFunc {
	return func(ctx *device.KernelContext) error {
		diag := ctx.Resources[0].(*Buffer).Floats()
		lower := ctx.Resources[1].(*Buffer).Vec2s()
		b := ctx.Resources[2].(*Buffer).Floats()
		x := ctx.Resources[3].(*Buffer).Floats()

		w := ctx.Push[0]
		width := int(ctx.Push[1])
		if width <= 0 {
			return device.ErrDescriptorMismatch
		}
		n := len(x)
		height := n / width

		return ParallelFor(height, func(j int) error {
			rowStart := j % 2
			for i := (rowStart + parity) % 2; i < width; i += 2 {
				idx := i + width*j
				d := diag[idx]
				if d == 0 {
					continue
				}
				sum := b[idx]
				if i > 0 {
					sum -= lower[idx].X * x[idx-1]
				}
				if i < width-1 {
					sum -= lower[idx+1].X * x[idx+1]
				}
				if j > 0 {
					sum -= lower[idx].Y * x[idx-width]
				}
				if j < height-1 {
					sum -= lower[idx+width].Y * x[idx+width]
				}
				target := sum / d
				x[idx] = x[idx] + w*(target-x[idx])
			}
			return nil
		})
	}
}

// multiplyKernel computes q := A·p over the matrix-free symmetric
// 5-point stencil (spec.md §4.5.1's per-iteration "q := A·p"; supplements
// the kernel list with the one operation the algorithm needs that the
// distillation's enumeration omitted).
func multiplyKernel(ctx *device.KernelContext) error {
	diag := ctx.Resources[0].(*Buffer).Floats()
	lower := ctx.Resources[1].(*Buffer).Vec2s()
	p := ctx.Resources[2].(*Buffer).Floats()
	q := ctx.Resources[3].(*Buffer).Floats()

	width := int(ctx.Push[0])
	if width <= 0 {
		return device.ErrDescriptorMismatch
	}
	n := len(p)

	return ParallelFor(n, func(i int) error {
		sum := diag[i] * p[i]
		col := i % width
		if col > 0 {
			sum += lower[i].X * p[i-1]
		}
		if col < width-1 {
			sum += lower[i+1].X * p[i+1]
		}
		if i-width >= 0 {
			sum += lower[i].Y * p[i-width]
		}
		if i+width < n {
			sum += lower[i+width].Y * p[i+width]
		}
		q[i] = sum
		return nil
	})
}

// vectorAXPYKernel computes out := x + a*y elementwise (push constant 0
// = a). Used for every X/r/p update the CG driver records.
func vectorAXPYKernel(ctx *device.KernelContext) error {
	out := ctx.Resources[0].(*Buffer).Floats()
	x := ctx.Resources[1].(*Buffer).Floats()
	y := ctx.Resources[2].(*Buffer).Floats()
	a := ctx.Push[0]
	return ParallelFor(len(out), func(i int) error {
		out[i] = x[i] + a*y[i]
		return nil
	})
}
