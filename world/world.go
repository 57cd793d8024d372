// Package world wires every other package into the two phased scripts
// spec.md §4.9 names, SolveStatic (smoke) and SolveDynamic (liquid),
// grounded on original_source/Vortex2D/Engine/World.cpp's constructor and
// both Solve* methods.
package world

import (
	"github.com/vortex2d-go/fluid/advect"
	"github.com/vortex2d-go/fluid/device"
	"github.com/vortex2d-go/fluid/extrapolate"
	internallog "github.com/vortex2d-go/fluid/internal/log"
	"github.com/vortex2d-go/fluid/gridtypes"
	"github.com/vortex2d-go/fluid/levelset"
	"github.com/vortex2d-go/fluid/particles"
	"github.com/vortex2d-go/fluid/pressure"
	"github.com/vortex2d-go/fluid/rigidbody"
	"github.com/vortex2d-go/fluid/solver"
	"github.com/vortex2d-go/fluid/transfer"
)

// desiredParticlesPerCell mirrors device/software/kernel_particles.go's
// own spawn target; BuildLiquidPhi needs the same constant to read the
// count image spawn/count already agree on.
const desiredParticlesPerCell = 4

// staticIterations/staticTolerance and dynamicIterations/dynamicTolerance
// are World.cpp's own two Parameters literals (`Parameters(300, 1e-3f)` in
// SolveStatic, `Parameters(1000, 1e-5f)` in SolveDynamic).
const (
	staticIterations   = 300
	staticTolerance    = 1e-3
	dynamicIterations  = 1000
	dynamicTolerance   = 1e-5
)

// PreconditionerFactory builds the Preconditioner New binds its
// conjugate-gradient driver to, deferred so the caller (config, a test, or
// cmd/vortexsim) can pick among Diagonal/IncompletePoisson/GaussSeidel/
// Multigrid without World needing to know about all four.
type PreconditionerFactory func(dev device.Device, data *solver.Data, cg *solver.ConjugateGradient) (solver.Preconditioner, error)

// DiagonalPreconditioner builds the simplest preconditioner.
func DiagonalPreconditioner(dev device.Device, data *solver.Data, cg *solver.ConjugateGradient) (solver.Preconditioner, error) {
	return solver.NewDiagonal(dev, data.Diagonal, data.Lower, cg.R(), cg.Z())
}

// IncompletePoissonPreconditioner builds the single-pass approximate
// inverse preconditioner.
func IncompletePoissonPreconditioner(dev device.Device, data *solver.Data, cg *solver.ConjugateGradient) (solver.Preconditioner, error) {
	return solver.NewIncompletePoisson(dev, data.Diagonal, data.Lower, cg.R(), cg.Z(), data.Size.W)
}

// GaussSeidelPreconditioner returns a factory for a fixed-iteration
// red/black SOR preconditioner at the optimal SOR relaxation weight for
// the system's size.
func GaussSeidelPreconditioner(iterations int) PreconditionerFactory {
	return func(dev device.Device, data *solver.Data, cg *solver.ConjugateGradient) (solver.Preconditioner, error) {
		w := solver.OptimalSORWeight(data.Size.N())
		return solver.NewGaussSeidel(dev, data.Diagonal, data.Lower, cg.R(), cg.Z(), data.Size.W, w, iterations)
	}
}

// MultigridPreconditioner builds the V-cycle preconditioner.
func MultigridPreconditioner(dev device.Device, data *solver.Data, cg *solver.ConjugateGradient) (solver.Preconditioner, error) {
	return solver.NewMultigrid(dev, data.Diagonal, data.Lower, cg.R(), cg.Z(), data.Size)
}

// rebuildable is implemented by preconditioners (Multigrid) whose coarse
// operators must be refreshed whenever the finest matrix is reassembled.
type rebuildable interface {
	Rebuild() error
}

// World owns every resource one simulated domain needs and drives the two
// phased scripts of spec.md §4.9.
type World struct {
	dev  device.Device
	size gridtypes.Size
	dt   float32

	velocity      device.Image
	velocityBack  device.Image
	density       device.Image
	densityBack   device.Image
	solidVelocity device.Image

	solidPhi  *levelset.LevelSet
	liquidPhi *levelset.LevelSet

	particlesBuf device.Buffer
	particleSet  *particles.Particles

	pressureSys *pressure.Pressure
	cg          *solver.ConjugateGradient
	precond     solver.Preconditioner

	transferSys     *transfer.Transfer
	advectVelocity  *advect.Velocity
	advectDensity   *advect.Field
	advectParticles *advect.Particles
	extrapolateSys  *extrapolate.Extrapolate

	rigidbodyCoupler *rigidbody.Coupler

	buildLiquidPhiWork *device.CommandBuffer
	clearVelocityWork  *device.CommandBuffer

	log   *internallog.Logger
	frame int
}

// New allocates every resource a World needs and records its fixed
// command scripts, mirroring World::World's constructor body: level sets
// are bound to each other once (liquidPhi extrapolates into solidPhi),
// the particle set's initial dispatch size is seeded, and the trailing
// velocity-clear script is recorded up front so SolveDynamic only ever
// submits it.
func New(dev device.Device, size gridtypes.Size, dt float32, initialParticleCount int, precondFactory PreconditionerFactory, logger *internallog.Logger) (*World, error) {
	if logger == nil {
		logger = internallog.Default()
	}

	velocity, err := dev.CreateImage(device.ImageDescriptor{Label: "world.velocity", Size: [2]int{size.W, size.H}, Element: device.ElementVec2})
	if err != nil {
		return nil, err
	}
	velocityBack, err := dev.CreateImage(device.ImageDescriptor{Label: "world.velocityBack", Size: [2]int{size.W, size.H}, Element: device.ElementVec2})
	if err != nil {
		return nil, err
	}
	density, err := dev.CreateImage(device.ImageDescriptor{Label: "world.density", Size: [2]int{size.W, size.H}, Element: device.ElementVec4})
	if err != nil {
		return nil, err
	}
	densityBack, err := dev.CreateImage(device.ImageDescriptor{Label: "world.densityBack", Size: [2]int{size.W, size.H}, Element: device.ElementVec4})
	if err != nil {
		return nil, err
	}
	solidVelocity, err := dev.CreateImage(device.ImageDescriptor{Label: "world.solidVelocity", Size: [2]int{size.W, size.H}, Element: device.ElementVec2})
	if err != nil {
		return nil, err
	}

	solidPhi, err := levelset.New(dev, size)
	if err != nil {
		return nil, err
	}
	liquidPhi, err := levelset.New(dev, size)
	if err != nil {
		return nil, err
	}
	if err := liquidPhi.ExtrapolateBind(solidPhi.Value()); err != nil {
		return nil, err
	}

	particlesBuf, err := dev.CreateBuffer(device.BufferDescriptor{
		Label: "world.particles", Count: particles.MaxParticlesPerCell * size.N(),
		Element: device.ElementParticle, Usage: device.BufferUsageStorage | device.BufferUsageVertex,
	})
	if err != nil {
		return nil, err
	}
	particleSet, err := particles.New(dev, size, particlesBuf, initialParticleCount)
	if err != nil {
		return nil, err
	}

	pressureSys, err := pressure.New(dev, size, velocity, solidPhi.Value(), liquidPhi.Value())
	if err != nil {
		return nil, err
	}
	cg, err := solver.New(dev, pressureSys.Data())
	if err != nil {
		return nil, err
	}
	precond, err := precondFactory(dev, pressureSys.Data(), cg)
	if err != nil {
		return nil, err
	}

	transferSys, err := transfer.New(dev, size, particlesBuf, particleSet.DispatchParams(), velocity)
	if err != nil {
		return nil, err
	}
	advectVelocity, err := advect.NewVelocity(dev, size, velocity, velocityBack)
	if err != nil {
		return nil, err
	}
	advectDensity, err := advect.NewField(dev, size, velocity, density, densityBack)
	if err != nil {
		return nil, err
	}
	advectParticles, err := advect.NewParticles(dev, particlesBuf, particleSet.DispatchParams(), velocity, solidPhi.Value())
	if err != nil {
		return nil, err
	}
	extrapolateSys, err := extrapolate.New(dev, size, velocity, pressureSys.Valid(), solidPhi.Value(), solidVelocity)
	if err != nil {
		return nil, err
	}
	rigidbodyCoupler, err := rigidbody.New(dev, size, solidPhi.Value(), solidVelocity)
	if err != nil {
		return nil, err
	}

	buildLiquidPhiPipeline, err := dev.NewWork("BuildLiquidPhi", [3]int{16, 16, 1}, 2)
	if err != nil {
		return nil, err
	}
	buildLiquidPhiBound, err := buildLiquidPhiPipeline.Bind([]device.Resource{particleSet.CountImage(), liquidPhi.Value()}, [2]int{size.W, size.H})
	if err != nil {
		return nil, err
	}
	buildLiquidPhiWork, err := dev.CreateCommandBuffer()
	if err != nil {
		return nil, err
	}
	buildLiquidPhiWork.Record(func(rec *device.Recorder) {
		buildLiquidPhiBound.PushConstant(rec, 0, desiredParticlesPerCell)
		buildLiquidPhiBound.Record(rec)
	})

	clearVelocityPipeline, err := dev.NewWork("ClearImage", [3]int{16, 16, 1}, 1)
	if err != nil {
		return nil, err
	}
	clearVelocityBound, err := clearVelocityPipeline.Bind([]device.Resource{velocity}, [2]int{size.W, size.H})
	if err != nil {
		return nil, err
	}
	clearVelocityWork, err := dev.CreateCommandBuffer()
	if err != nil {
		return nil, err
	}
	clearVelocityWork.Record(func(rec *device.Recorder) {
		clearVelocityBound.Record(rec)
	})

	return &World{
		dev: dev, size: size, dt: dt,
		velocity: velocity, velocityBack: velocityBack,
		density: density, densityBack: densityBack, solidVelocity: solidVelocity,
		solidPhi: solidPhi, liquidPhi: liquidPhi,
		particlesBuf: particlesBuf, particleSet: particleSet,
		pressureSys: pressureSys, cg: cg, precond: precond,
		transferSys: transferSys, advectVelocity: advectVelocity, advectDensity: advectDensity,
		advectParticles: advectParticles, extrapolateSys: extrapolateSys,
		rigidbodyCoupler:   rigidbodyCoupler,
		buildLiquidPhiWork: buildLiquidPhiWork,
		clearVelocityWork:  clearVelocityWork,
		log:                logger,
	}, nil
}

// rebuildPreconditioner refreshes a Multigrid preconditioner's coarse
// operators after BuildMatrix has reassembled the finest one; every other
// Preconditioner is stateless between BuildMatrix calls and needs no
// equivalent step.
func (w *World) rebuildPreconditioner() error {
	if rb, ok := w.precond.(rebuildable); ok {
		return rb.Rebuild()
	}
	return nil
}

func (w *World) solvePressure(phase string, maxIterations int, tolerance float32) error {
	if err := w.pressureSys.BuildMatrix(w.dt); err != nil {
		return err
	}
	if err := w.rebuildPreconditioner(); err != nil {
		return err
	}
	params := solver.Parameters{MaxIterations: maxIterations, ErrorTolerance: tolerance}
	if err := w.cg.Solve(w.precond, &params); err != nil {
		return err
	}
	w.log.SolverResult(w.frame, phase, params.MaxIterations, params.OutIterations, params.OutError)
	return w.pressureSys.Apply(w.dt)
}

// SeedObstacles rasterizes the currently-bound rigid bodies into the
// solid level set and solid velocity field once, outside the per-step
// scripts. World.cpp's own smoke regime (SolveStatic) never re-renders
// solid geometry — obstacles are assumed already baked into solidPhi
// before the loop starts — so a caller with static obstacle geometry
// (Bodies() with zero-velocity circles) calls this once after Bodies()
// and before the first SolveStatic/SolveDynamic step.
func (w *World) SeedObstacles() error {
	return w.rigidbodyCoupler.Render()
}

// SolveStatic runs the smoke-regime step (World.cpp SolveStatic): project
// the velocity field, extrapolate/constrain it, then self-advect velocity
// and advect the density field along it.
func (w *World) SolveStatic() error {
	w.log.Phase(w.frame, "static")
	if err := w.solvePressure("static:pressure", staticIterations, staticTolerance); err != nil {
		return err
	}
	if err := w.extrapolateSys.Sweep(); err != nil {
		return err
	}
	if err := w.extrapolateSys.Constrain(); err != nil {
		return err
	}
	if err := w.advectVelocity.Advect(w.dt); err != nil {
		return err
	}
	if err := w.advectDensity.Advect(w.dt); err != nil {
		return err
	}
	w.frame++
	return nil
}

// SolveDynamic runs the liquid-regime step (World.cpp SolveDynamic), in
// its documented seven phases:
//  1. rebucket particles, build the fluid level set from the particle count
//  2. transfer particle velocities to the grid (P2G)
//  3. external forces — left to the caller: add them directly to the
//     velocity image before calling SolveDynamic (no force model is in
//     scope, spec.md §1's Non-goals)
//  4. rasterize rigid bodies into the solid fields, extrapolate the fluid
//     level set one cell into solid regions
//  5. solve pressure, extrapolate and constrain velocities
//  6. transfer grid velocities back to the particles (G2P)
//  7. advect particles, recount, and clear the grid velocity for the next
//     frame's transfer
func (w *World) SolveDynamic() error {
	w.log.Phase(w.frame, "dynamic")

	// 1)
	if err := w.particleSet.Scan(); err != nil {
		return err
	}
	if err := w.buildLiquidPhiWork.Submit(); err != nil {
		return err
	}

	// 2)
	if err := w.transferSys.ToGrid(); err != nil {
		return err
	}

	// 4)
	if err := w.rigidbodyCoupler.Render(); err != nil {
		return err
	}
	if err := w.liquidPhi.Extrapolate(); err != nil {
		return err
	}

	// 5)
	if err := w.solvePressure("dynamic:pressure", dynamicIterations, dynamicTolerance); err != nil {
		return err
	}
	if err := w.extrapolateSys.Sweep(); err != nil {
		return err
	}
	if err := w.extrapolateSys.Constrain(); err != nil {
		return err
	}

	// 6)
	if err := w.transferSys.FromGrid(); err != nil {
		return err
	}

	// 7)
	if err := w.advectParticles.Advect(w.dt); err != nil {
		return err
	}
	if err := w.particleSet.Count(); err != nil {
		return err
	}
	if err := w.clearVelocityWork.Submit(); err != nil {
		return err
	}

	w.frame++
	return nil
}

// Velocity returns the front velocity image.
func (w *World) Velocity() device.Image { return w.velocity }

// Density returns the front density (smoke) image.
func (w *World) Density() device.Image { return w.density }

// LiquidPhi returns the fluid level set.
func (w *World) LiquidPhi() *levelset.LevelSet { return w.liquidPhi }

// SolidPhi returns the solid (obstacle) level set.
func (w *World) SolidPhi() *levelset.LevelSet { return w.solidPhi }

// SolidVelocity returns the solid velocity image rigid bodies write into.
func (w *World) SolidVelocity() device.Image { return w.solidVelocity }

// Particles returns the host-owned particle buffer.
func (w *World) Particles() device.Buffer { return w.particlesBuf }

// Count returns the particle set World drives.
func (w *World) Count() *particles.Particles { return w.particleSet }

// Bodies replaces the set of rigid bodies rasterized into the solid
// fields each SolveDynamic call.
func (w *World) Bodies(bodies []rigidbody.Body) { w.rigidbodyCoupler.Bind(bodies) }

// Frame returns the number of SolveStatic/SolveDynamic steps run so far.
func (w *World) Frame() int { return w.frame }
