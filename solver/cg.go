package solver

import (
	"math"

	"github.com/vortex2d-go/fluid/device"
	"github.com/vortex2d-go/fluid/reduce"
)

// Parameters controls a solve and reports back how it went (spec.md
// §4.5.1).
type Parameters struct {
	MaxIterations  int
	ErrorTolerance float32
	OutIterations  int
	OutError       float32
}

// ConjugateGradient is the preconditioned CG driver of spec.md §4.5.1. It
// owns its own r/z/p/q scratch vectors sized to Data and exposes them so
// a Preconditioner can be bound to (Diagonal, Lower, R(), Z()) before the
// first Solve.
type ConjugateGradient struct {
	dev  device.Device
	data *Data

	r, z, p, q device.Buffer
	scalarRho  device.Buffer
	scalarAlt  device.Buffer
	scalarNorm device.Buffer

	multiplyP *device.Bound // q := A·p
	multiplyX *device.Bound // q := A·X, for the initial residual
	initR     *device.Bound // r := B − q
	copyRtoZ  *device.Bound // z := r (the unpreconditioned path)
	copyZtoP  *device.Bound // p := z (first iteration, β=0)
	updateP   *device.Bound // p := z + β p
	updateX   *device.Bound // X := X + α p
	updateR   *device.Bound // r := r − α q
	zeroX     *device.Bound // X := 0
	dotRZ     *device.Bound // scalarRho := <r,z>
	dotPQ     *device.Bound // scalarAlt := <p,q>
	maxR      *device.Bound // scalarNorm := max|r|
}

// New allocates CG's scratch buffers and binds every fixed-resource
// kernel the driver needs.
func New(dev device.Device, data *Data) (*ConjugateGradient, error) {
	n := data.Size.N()
	cg := &ConjugateGradient{dev: dev, data: data}

	var err error
	if cg.r, err = newVector(dev, "cg.r", n); err != nil {
		return nil, err
	}
	if cg.z, err = newVector(dev, "cg.z", n); err != nil {
		return nil, err
	}
	if cg.p, err = newVector(dev, "cg.p", n); err != nil {
		return nil, err
	}
	if cg.q, err = newVector(dev, "cg.q", n); err != nil {
		return nil, err
	}
	for _, s := range []*device.Buffer{&cg.scalarRho, &cg.scalarAlt, &cg.scalarNorm} {
		*s, err = newScalarBuffer(dev, "cg.scalar")
		if err != nil {
			return nil, err
		}
	}

	bindAXPY := func(out, x, y device.Buffer) (*device.Bound, error) {
		work, err := dev.NewWork("VectorAXPY", [3]int{256, 1, 1}, 3)
		if err != nil {
			return nil, err
		}
		return work.Bind([]device.Resource{out, x, y}, [2]int{1, 1})
	}
	bindMultiply := func(p, q device.Buffer) (*device.Bound, error) {
		work, err := dev.NewWork("Multiply", [3]int{256, 1, 1}, 4)
		if err != nil {
			return nil, err
		}
		return work.Bind([]device.Resource{data.Diagonal, data.Lower, p, q}, [2]int{1, 1})
	}

	if cg.multiplyX, err = bindMultiply(data.X, cg.q); err != nil {
		return nil, err
	}
	if cg.multiplyP, err = bindMultiply(cg.p, cg.q); err != nil {
		return nil, err
	}
	if cg.initR, err = bindAXPY(cg.r, data.B, cg.q); err != nil {
		return nil, err
	}
	if cg.copyRtoZ, err = bindAXPY(cg.z, cg.r, cg.r); err != nil {
		return nil, err
	}
	if cg.copyZtoP, err = bindAXPY(cg.p, cg.z, cg.z); err != nil {
		return nil, err
	}
	if cg.updateP, err = bindAXPY(cg.p, cg.z, cg.p); err != nil {
		return nil, err
	}
	if cg.updateX, err = bindAXPY(data.X, data.X, cg.p); err != nil {
		return nil, err
	}
	if cg.updateR, err = bindAXPY(cg.r, cg.r, cg.q); err != nil {
		return nil, err
	}
	if cg.zeroX, err = bindAXPY(data.X, data.X, data.X); err != nil {
		return nil, err
	}

	dotRZWork, err := reduce.NewDot(dev)
	if err != nil {
		return nil, err
	}
	if cg.dotRZ, err = dotRZWork.Bind(cg.r, cg.z, cg.scalarRho); err != nil {
		return nil, err
	}
	dotPQWork, err := reduce.NewDot(dev)
	if err != nil {
		return nil, err
	}
	if cg.dotPQ, err = dotPQWork.Bind(cg.p, cg.q, cg.scalarAlt); err != nil {
		return nil, err
	}
	maxWork, err := reduce.NewMax(dev)
	if err != nil {
		return nil, err
	}
	if cg.maxR, err = maxWork.Bind(cg.r, cg.scalarNorm); err != nil {
		return nil, err
	}

	return cg, nil
}

// R returns the CG driver's residual scratch buffer, the "B" a
// Preconditioner should be bound to.
func (cg *ConjugateGradient) R() device.Buffer { return cg.r }

// Z returns the CG driver's preconditioned-residual scratch buffer, the
// "X" a Preconditioner should be bound to.
func (cg *ConjugateGradient) Z() device.Buffer { return cg.z }

// NormalSolve runs plain, unpreconditioned CG (z := r each iteration).
func (cg *ConjugateGradient) NormalSolve(params *Parameters) error {
	return cg.solve(nil, params)
}

// Solve runs preconditioned CG using precond, which must already be bound
// to (Diagonal, Lower, R(), Z()).
func (cg *ConjugateGradient) Solve(precond Preconditioner, params *Parameters) error {
	return cg.solve(precond, params)
}

func (cg *ConjugateGradient) solve(precond Preconditioner, params *Parameters) error {
	// r := B - A·X
	if err := cg.dev.ExecuteOnce(func(rec *device.Recorder) {
		cg.multiplyX.Record(rec)
		cg.initR.PushConstant(rec, 0, -1)
		cg.initR.Record(rec)
	}); err != nil {
		return err
	}

	var rho float32

	for k := 0; k < params.MaxIterations; k++ {
		if err := cg.dev.ExecuteOnce(cg.maxR.Record); err != nil {
			return err
		}
		norm, err := device.ReadScalar(cg.scalarNorm)
		if err != nil {
			return err
		}
		params.OutIterations = k
		params.OutError = norm
		if float32(math.Sqrt(math.Max(float64(norm), 0))) < params.ErrorTolerance {
			return nil
		}

		if err := cg.dev.ExecuteOnce(func(rec *device.Recorder) {
			if precond != nil {
				precond.Record(rec)
			} else {
				cg.copyRtoZ.PushConstant(rec, 0, 0)
				cg.copyRtoZ.Record(rec)
			}
			cg.dotRZ.Record(rec)
		}); err != nil {
			return err
		}
		newRho, err := device.ReadScalar(cg.scalarRho)
		if err != nil {
			return err
		}
		if newRho == 0 {
			params.OutIterations = 0
			return cg.dev.ExecuteOnce(func(rec *device.Recorder) {
				cg.zeroX.PushConstant(rec, 0, -1)
				cg.zeroX.Record(rec)
			})
		}

		if err := cg.dev.ExecuteOnce(func(rec *device.Recorder) {
			if k == 0 {
				cg.copyZtoP.PushConstant(rec, 0, 0)
				cg.copyZtoP.Record(rec)
			} else {
				beta := newRho / rho
				cg.updateP.PushConstant(rec, 0, beta)
				cg.updateP.Record(rec)
			}
		}); err != nil {
			return err
		}
		rho = newRho

		if err := cg.dev.ExecuteOnce(func(rec *device.Recorder) {
			cg.multiplyP.Record(rec)
			cg.dotPQ.Record(rec)
		}); err != nil {
			return err
		}
		pq, err := device.ReadScalar(cg.scalarAlt)
		if err != nil {
			return err
		}
		if pq == 0 {
			return nil
		}
		alpha := rho / pq

		if err := cg.dev.ExecuteOnce(func(rec *device.Recorder) {
			cg.updateX.PushConstant(rec, 0, alpha)
			cg.updateX.Record(rec)
			cg.updateR.PushConstant(rec, 0, -alpha)
			cg.updateR.Record(rec)
		}); err != nil {
			return err
		}
	}
	params.OutIterations = params.MaxIterations
	return nil
}
