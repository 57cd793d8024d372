package solver

import (
	"math"

	"github.com/vortex2d-go/fluid/device"
	"github.com/vortex2d-go/fluid/gridtypes"
)

// Multigrid smoothing schedule (spec.md §4.5.2 names the V-cycle but not
// these counts; chosen to match the 2/2 pre/post-smooth, ~2 dozen coarsest
// sweeps typical of the geometric-multigrid literature the glossary's
// "Multigrid" entry points at).
const (
	mgPreSmooth          = 2
	mgPostSmooth         = 2
	mgCoarsestIterations = 24
)

// minCoarseDim is the smallest grid dimension a level is allowed to
// coarsen down to; below this a direct GaussSeidel solve is cheap enough
// that further coarsening buys nothing.
const minCoarseDim = 4

// mgLevel is one level of the V-cycle hierarchy: its own system, its own
// smoother, and the bound operators that move information to and from
// the next coarser level.
type mgLevel struct {
	size gridtypes.Size
	data *Data

	smoother     *GaussSeidel
	coarseSolver *GaussSeidel // set only on the coarsest level

	residual   device.Buffer
	correction device.Buffer

	zero             *device.Bound // this.X := 0
	multiply         *device.Bound // residual := A·X
	computeResidual  *device.Bound // residual := B − residual
	restrictResidual *device.Bound // next.B := restrict(residual), rescaled
	prolongateCorr   *device.Bound // this.correction := prolongate(next.X)
	addCorrection    *device.Bound // this.X := this.X + correction

	// hierarchy-construction bounds: restrict this level's own matrix down
	// onto the next level's, replayed by Rebuild whenever BuildMatrix
	// reassembles the finest Diagonal/Lower.
	restrictDiagonal *device.Bound
	restrictLower    *device.Bound
}

// Multigrid is a V-cycle preconditioner (spec.md §4.5.2): it approximates
// X := M⁻¹B by smoothing on a hierarchy of successively coarser grids,
// each roughly a quarter the cell count of the one above it.
//
// Unlike pressure.Pressure, which reassembles its matrix every frame from
// the current level sets via BuildMatrix, Multigrid's coarse levels are
// never re-discretized from restricted level sets: solver cannot import
// pressure (pressure already imports solver), so there is no BuildMatrix
// to call down here. Instead each coarse level's Diagonal/Lower is built
// by directly restricting the level above's — operator-dependent
// coarsening rather than re-discretization. Call Rebuild after every
// BuildMatrix, before the CG solve that uses this preconditioner, so the
// coarse operators track the finest one frame to frame.
type Multigrid struct {
	dev    device.Device
	levels []*mgLevel
}

// NewMultigrid builds a V-cycle hierarchy over the given finest-level
// system. diagonal/lower/b/x are bound exactly as every other
// Preconditioner binds them: b and x are normally a ConjugateGradient's
// R() and Z().
func NewMultigrid(dev device.Device, diagonal, lower, b, x device.Buffer, size gridtypes.Size) (*Multigrid, error) {
	numLevels := multigridLevelCount(size)

	levels := make([]*mgLevel, numLevels)
	levels[0] = &mgLevel{size: size, data: &Data{Size: size, Diagonal: diagonal, Lower: lower, B: b, X: x}}

	cur := size
	for i := 1; i < numLevels; i++ {
		coarse := gridtypes.Size{W: max(cur.W/2, 1), H: max(cur.H/2, 1)}
		data, err := NewData(dev, coarse)
		if err != nil {
			return nil, err
		}
		levels[i] = &mgLevel{size: coarse, data: data}
		cur = coarse
	}

	for i, lvl := range levels {
		w := OptimalSORWeight(lvl.size.N())
		smoother, err := NewGaussSeidel(dev, lvl.data.Diagonal, lvl.data.Lower, lvl.data.B, lvl.data.X, lvl.size.W, w, mgPreSmooth)
		if err != nil {
			return nil, err
		}
		lvl.smoother = smoother

		if i == len(levels)-1 {
			coarseSolver, err := NewGaussSeidel(dev, lvl.data.Diagonal, lvl.data.Lower, lvl.data.B, lvl.data.X, lvl.size.W, w, mgCoarsestIterations)
			if err != nil {
				return nil, err
			}
			lvl.coarseSolver = coarseSolver
			continue
		}

		next := levels[i+1]

		var err2 error
		if lvl.residual, err2 = newVector(dev, "multigrid.residual", lvl.size.N()); err2 != nil {
			return nil, err2
		}
		if lvl.correction, err2 = newVector(dev, "multigrid.correction", lvl.size.N()); err2 != nil {
			return nil, err2
		}

		bindAXPY := func(out, a, b device.Buffer) (*device.Bound, error) {
			work, err := dev.NewWork("VectorAXPY", [3]int{256, 1, 1}, 3)
			if err != nil {
				return nil, err
			}
			return work.Bind([]device.Resource{out, a, b}, [2]int{1, 1})
		}

		if lvl.zero, err2 = bindAXPY(lvl.data.X, lvl.data.X, lvl.data.X); err2 != nil {
			return nil, err2
		}

		multiplyWork, err2 := dev.NewWork("Multiply", [3]int{256, 1, 1}, 4)
		if err2 != nil {
			return nil, err2
		}
		if lvl.multiply, err2 = multiplyWork.Bind([]device.Resource{lvl.data.Diagonal, lvl.data.Lower, lvl.data.X, lvl.residual}, [2]int{1, 1}); err2 != nil {
			return nil, err2
		}
		if lvl.computeResidual, err2 = bindAXPY(lvl.residual, lvl.data.B, lvl.residual); err2 != nil {
			return nil, err2
		}

		restrictWork, err2 := dev.NewWork("Restrict", [3]int{16, 16, 1}, 4)
		if err2 != nil {
			return nil, err2
		}
		lvl.restrictResidual, err2 = restrictWork.Bind(
			[]device.Resource{lvl.residual, lvl.data.Diagonal, next.data.Diagonal, next.data.B},
			[2]int{next.size.W, next.size.H},
		)
		if err2 != nil {
			return nil, err2
		}

		prolongateWork, err2 := dev.NewWork("Prolongate", [3]int{16, 16, 1}, 2)
		if err2 != nil {
			return nil, err2
		}
		lvl.prolongateCorr, err2 = prolongateWork.Bind([]device.Resource{next.data.X, lvl.correction}, [2]int{lvl.size.W, lvl.size.H})
		if err2 != nil {
			return nil, err2
		}

		if lvl.addCorrection, err2 = bindAXPY(lvl.data.X, lvl.data.X, lvl.correction); err2 != nil {
			return nil, err2
		}

		restrictDiagWork, err2 := dev.NewWork("RestrictPlain", [3]int{16, 16, 1}, 2)
		if err2 != nil {
			return nil, err2
		}
		lvl.restrictDiagonal, err2 = restrictDiagWork.Bind([]device.Resource{lvl.data.Diagonal, next.data.Diagonal}, [2]int{next.size.W, next.size.H})
		if err2 != nil {
			return nil, err2
		}

		restrictLowerWork, err2 := dev.NewWork("RestrictPlainVec2", [3]int{16, 16, 1}, 2)
		if err2 != nil {
			return nil, err2
		}
		lvl.restrictLower, err2 = restrictLowerWork.Bind([]device.Resource{lvl.data.Lower, next.data.Lower}, [2]int{next.size.W, next.size.H})
		if err2 != nil {
			return nil, err2
		}
	}

	mg := &Multigrid{dev: dev, levels: levels}
	if err := mg.Rebuild(); err != nil {
		return nil, err
	}
	return mg, nil
}

// multigridLevelCount returns how many levels (finest included) a grid of
// the given size gets, L = floor(log2(min(W,H))) − 2, clamped so the
// coarsest level never drops below minCoarseDim on its shorter side.
func multigridLevelCount(size gridtypes.Size) int {
	minDim := size.W
	if size.H < minDim {
		minDim = size.H
	}
	l := int(math.Floor(math.Log2(float64(minDim)))) - 2

	for l > 0 {
		coarsest := minDim
		for i := 0; i < l; i++ {
			coarsest = max(coarsest/2, 1)
		}
		if coarsest >= minCoarseDim {
			break
		}
		l--
	}
	if l < 0 {
		l = 0
	}
	return l + 1
}

// Rebuild re-restricts every coarse level's Diagonal/Lower from the level
// above it. Call once per frame after the finest matrix has been
// reassembled (pressure.Pressure.BuildMatrix) and before any Solve that
// uses this Multigrid as its preconditioner.
func (mg *Multigrid) Rebuild() error {
	return mg.dev.ExecuteOnce(func(rec *device.Recorder) {
		for i := 0; i < len(mg.levels)-1; i++ {
			lvl, next := mg.levels[i], mg.levels[i+1]
			lvl.restrictDiagonal.PushConstant(rec, 0, float32(lvl.size.W))
			lvl.restrictDiagonal.PushConstant(rec, 1, float32(next.size.W))
			lvl.restrictDiagonal.Record(rec)

			lvl.restrictLower.PushConstant(rec, 0, float32(lvl.size.W))
			lvl.restrictLower.PushConstant(rec, 1, float32(next.size.W))
			lvl.restrictLower.Record(rec)
		}
	})
}

// Record implements Preconditioner: X := M⁻¹B via one V-cycle, starting
// from X = 0 at the finest level.
func (mg *Multigrid) Record(rec *device.Recorder) {
	mg.levels[0].zero.PushConstant(rec, 0, -1)
	mg.levels[0].zero.Record(rec)
	mg.vcycle(rec, 0)
}

func (mg *Multigrid) vcycle(rec *device.Recorder, i int) {
	lvl := mg.levels[i]
	if i == len(mg.levels)-1 {
		lvl.coarseSolver.Record(rec)
		return
	}
	next := mg.levels[i+1]
	width := float32(lvl.size.W)

	lvl.smoother.Record(rec)

	lvl.multiply.PushConstant(rec, 0, width)
	lvl.multiply.Record(rec)
	lvl.computeResidual.PushConstant(rec, 0, -1)
	lvl.computeResidual.Record(rec)

	lvl.restrictResidual.PushConstant(rec, 0, width)
	lvl.restrictResidual.PushConstant(rec, 1, float32(next.size.W))
	lvl.restrictResidual.Record(rec)

	next.zero.PushConstant(rec, 0, -1)
	next.zero.Record(rec)

	mg.vcycle(rec, i+1)

	lvl.prolongateCorr.PushConstant(rec, 0, float32(next.size.W))
	lvl.prolongateCorr.PushConstant(rec, 1, width)
	lvl.prolongateCorr.Record(rec)

	lvl.addCorrection.PushConstant(rec, 0, 1)
	lvl.addCorrection.Record(rec)

	lvl.smoother.Record(rec)
}
