// Package reference is a CPU-only, pure-math conjugate-gradient oracle
// used only by tests to check the device-kernel solver's output, built
// directly against gonum rather than the device/kernel machinery.
package reference

import (
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/vortex2d-go/fluid/gridtypes"
)

// System is the same symmetric 5-point linear system solver.Data
// describes, held as plain Go slices.
type System struct {
	Size     gridtypes.Size
	Diagonal []float64
	Lower    []gridtypes.Vec2 // Lower[i].X = A(i-1,j; i,j), Lower[i].Y = A(i,j-1; i,j)
	B        []float64
}

// multiply computes q := A·p for the matrix-free symmetric stencil.
func (s *System) multiply(p []float64) []float64 {
	q := make([]float64, len(p))
	w := s.Size.W
	for i := range q {
		sum := s.Diagonal[i] * p[i]
		col := i % w
		if col > 0 {
			sum += float64(s.Lower[i].X) * p[i-1]
		}
		if col < w-1 {
			sum += float64(s.Lower[i+1].X) * p[i+1]
		}
		if i-w >= 0 {
			sum += float64(s.Lower[i].Y) * p[i-w]
		}
		if i+w < len(p) {
			sum += float64(s.Lower[i+w].Y) * p[i+w]
		}
		q[i] = sum
	}
	return q
}

// Solve runs plain (Jacobi-diagonal-preconditioned) CG to the given
// tolerance and returns X along with the iteration count, used as a
// ground truth for solver.ConjugateGradient's output on the same system.
func (s *System) Solve(maxIterations int, tolerance float64) (x []float64, iterations int) {
	n := len(s.B)
	x = make([]float64, n)
	r := make([]float64, n)
	copy(r, s.B) // r := B - A·0 = B

	precondition := func(in []float64) []float64 {
		out := make([]float64, n)
		for i, d := range s.Diagonal {
			if d != 0 {
				out[i] = in[i] / d
			}
		}
		return out
	}

	z := precondition(r)
	p := make([]float64, n)
	copy(p, z)
	rho := floats.Dot(r, z)

	for k := 0; k < maxIterations; k++ {
		iterations = k
		if math.Sqrt(maxAbs(r)) < tolerance {
			return x, iterations
		}

		q := s.multiply(p)
		alpha := rho / floats.Dot(p, q)

		floats.AddScaled(x, alpha, p)
		floats.AddScaled(r, -alpha, q)

		z = precondition(r)
		newRho := floats.Dot(r, z)
		beta := newRho / rho

		for i := range p {
			p[i] = z[i] + beta*p[i]
		}
		rho = newRho
	}
	return x, iterations
}

func maxAbs(v []float64) float64 {
	m := 0.0
	for _, x := range v {
		if a := math.Abs(x); a > m {
			m = a
		}
	}
	return m
}
