package solver

import (
	"math"

	"github.com/vortex2d-go/fluid/device"
)

// OptimalSORWeight returns the classic optimal SOR relaxation factor for
// a grid of the given total cell count, w = 2/(1+sin(π/sqrt(n)))
// (SuccessiveOverRelaxation.cpp: "2/(1+sin(4*atan(1)/sqrt(rows*cols)))",
// 4*atan(1) being π).
func OptimalSORWeight(n int) float32 {
	return float32(2 / (1 + math.Sin(math.Pi/math.Sqrt(float64(n)))))
}

// Preconditioner applies X := M⁻¹B against whatever buffers it was bound
// to (spec.md §4.5.2). The conjugate-gradient driver binds one to its own
// residual/search scratch buffers; GaussSeidel can also be bound directly
// to a Data and driven standalone as an SOR-only baseline.
type Preconditioner interface {
	Record(rec *device.Recorder)
}

// Diagonal is the simplest preconditioner: X[k] := B[k]/Diagonal[k].
type Diagonal struct {
	bound *device.Bound
}

// NewDiagonal binds a Diagonal preconditioner to the given matrix
// diagonal/off-diagonal and input/output vectors.
func NewDiagonal(dev device.Device, diagonal, lower, b, x device.Buffer) (*Diagonal, error) {
	work, err := dev.NewWork("Diagonal", [3]int{256, 1, 1}, 4)
	if err != nil {
		return nil, err
	}
	bound, err := work.Bind([]device.Resource{diagonal, lower, b, x}, [2]int{1, 1})
	if err != nil {
		return nil, err
	}
	return &Diagonal{bound: bound}, nil
}

// Record applies the preconditioner.
func (p *Diagonal) Record(rec *device.Recorder) { p.bound.Record(rec) }

// IncompletePoisson is the single-pass IC(0)-style approximate inverse
// (spec.md §4.5.2).
type IncompletePoisson struct {
	bound *device.Bound
	width float32
}

// NewIncompletePoisson binds an IncompletePoisson preconditioner over a
// grid of the given width.
func NewIncompletePoisson(dev device.Device, diagonal, lower, b, x device.Buffer, width int) (*IncompletePoisson, error) {
	work, err := dev.NewWork("IncompletePoisson", [3]int{256, 1, 1}, 4)
	if err != nil {
		return nil, err
	}
	bound, err := work.Bind([]device.Resource{diagonal, lower, b, x}, [2]int{1, 1})
	if err != nil {
		return nil, err
	}
	return &IncompletePoisson{bound: bound, width: float32(width)}, nil
}

// Record applies the preconditioner.
func (p *IncompletePoisson) Record(rec *device.Recorder) {
	p.bound.PushConstant(rec, 0, p.width)
	p.bound.Record(rec)
}

// GaussSeidel is multi-color red-black Gauss-Seidel/SOR (spec.md §4.5.2).
// It is both a fixed-iteration preconditioner (typically 8 iterations)
// and a standalone convergent solver via Solve.
type GaussSeidel struct {
	dev        device.Device
	red, black *device.Bound
	w, width   float32
	iterations int

	// residual-measurement bounds, used only by Solve.
	multiply *device.Bound
	residual device.Buffer
	diffAXPY *device.Bound
	maxBound *device.Bound
	scalar   device.Buffer
}

// NewGaussSeidel binds red/black sweeps over the given system, applying
// w-relaxed updates for the given fixed iteration count each Record.
func NewGaussSeidel(dev device.Device, diagonal, lower, b, x device.Buffer, width int, w float32, iterations int) (*GaussSeidel, error) {
	redWork, err := dev.NewWork("GaussSeidelRed", [3]int{256, 1, 1}, 4)
	if err != nil {
		return nil, err
	}
	red, err := redWork.Bind([]device.Resource{diagonal, lower, b, x}, [2]int{1, 1})
	if err != nil {
		return nil, err
	}
	blackWork, err := dev.NewWork("GaussSeidelBlack", [3]int{256, 1, 1}, 4)
	if err != nil {
		return nil, err
	}
	black, err := blackWork.Bind([]device.Resource{diagonal, lower, b, x}, [2]int{1, 1})
	if err != nil {
		return nil, err
	}

	residual, err := newVector(dev, "gaussseidel.residual", x.Count())
	if err != nil {
		return nil, err
	}
	scalar, err := newScalarBuffer(dev, "gaussseidel.scalar")
	if err != nil {
		return nil, err
	}
	multiplyWork, err := dev.NewWork("Multiply", [3]int{256, 1, 1}, 4)
	if err != nil {
		return nil, err
	}
	multiply, err := multiplyWork.Bind([]device.Resource{diagonal, lower, x, residual}, [2]int{1, 1})
	if err != nil {
		return nil, err
	}
	diffWork, err := dev.NewWork("VectorAXPY", [3]int{256, 1, 1}, 3)
	if err != nil {
		return nil, err
	}
	diff, err := diffWork.Bind([]device.Resource{residual, b, residual}, [2]int{1, 1})
	if err != nil {
		return nil, err
	}
	maxWork, err := dev.NewWork("ReduceMax", [3]int{256, 1, 1}, 2)
	if err != nil {
		return nil, err
	}
	maxBound, err := maxWork.Bind([]device.Resource{residual, scalar}, [2]int{1, 1})
	if err != nil {
		return nil, err
	}

	return &GaussSeidel{
		dev: dev, red: red, black: black, w: w, width: float32(width), iterations: iterations,
		multiply: multiply, residual: residual, diffAXPY: diff, maxBound: maxBound, scalar: scalar,
	}, nil
}

// Record runs Iterations red/black sweeps.
func (p *GaussSeidel) Record(rec *device.Recorder) {
	for i := 0; i < p.iterations; i++ {
		p.red.PushConstant(rec, 0, p.w)
		p.red.PushConstant(rec, 1, p.width)
		p.red.Record(rec)

		p.black.PushConstant(rec, 0, p.w)
		p.black.PushConstant(rec, 1, p.width)
		p.black.Record(rec)
	}
}

// Solve repeatedly applies Record and measures the residual's infinity
// norm until it drops below params.ErrorTolerance or MaxIterations is
// reached (spec.md §4.5.2: "used for SOR-only baselines").
func (p *GaussSeidel) Solve(params *Parameters) error {
	for iter := 0; iter < params.MaxIterations; iter++ {
		params.OutIterations = iter
		r, err := p.infNorm()
		if err != nil {
			return err
		}
		params.OutError = r
		if r < params.ErrorTolerance {
			return nil
		}
		if err := p.dev.ExecuteOnce(p.Record); err != nil {
			return err
		}
	}
	return nil
}

// infNorm computes max|residual| = max|B - A·X| for the bound system.
func (p *GaussSeidel) infNorm() (float32, error) {
	if err := p.dev.ExecuteOnce(func(rec *device.Recorder) {
		p.multiply.PushConstant(rec, 0, p.width)
		p.multiply.Record(rec)
		p.diffAXPY.PushConstant(rec, 0, -1)
		p.diffAXPY.Record(rec)
		p.maxBound.Record(rec)
	}); err != nil {
		return 0, err
	}
	return device.ReadScalar(p.scalar)
}
