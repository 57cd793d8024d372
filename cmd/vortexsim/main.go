// vortexsim is a headless runner: load a scene, step the world N times,
// and report per-step wall-clock timings (solver outcomes go through
// internal/log: Warn on non-convergence, Debug otherwise). No window, no input —
// the diagnostic counterpart to the teacher corpus's shaderdebug/optimize
// tools.
//
// Usage: go run ./cmd/vortexsim -scene scene.yaml -steps 120 -dynamic
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/vortex2d-go/fluid/config"
	"github.com/vortex2d-go/fluid/device/software"
	"github.com/vortex2d-go/fluid/gridtypes"
	"github.com/vortex2d-go/fluid/internal/log"
	"github.com/vortex2d-go/fluid/rigidbody"
	"github.com/vortex2d-go/fluid/world"
)

// obstacleBody is a fixed, zero-velocity circle: enough to seed the scene
// config's static obstacle geometry into the solid fields through
// rigidbody.Coupler, the only public way to write into them.
type obstacleBody struct {
	transform rigidbody.Transform
	shape     rigidbody.Circle
}

func (b obstacleBody) Transform() rigidbody.Transform       { return b.transform }
func (b obstacleBody) Velocity() rigidbody.Velocity         { return rigidbody.Velocity{} }
func (b obstacleBody) Boundary() rigidbody.Shape            { return b.shape }
func (b obstacleBody) ApplyImpulse(gridtypes.Vec2, float32) {}
func (b obstacleBody) SetVelocity(gridtypes.Vec2, float32)  {}

func main() {
	scenePath := flag.String("scene", "", "Path to a scene YAML file (embedded defaults if empty)")
	steps := flag.Int("steps", 60, "Number of steps to run")
	dynamic := flag.Bool("dynamic", false, "Run SolveDynamic (liquid) instead of SolveStatic (smoke)")
	particles := flag.Int("particles", 0, "Initial particle count (dynamic mode only)")
	flag.Parse()

	scene, err := config.Load(*scenePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "vortexsim: %v\n", err)
		os.Exit(1)
	}

	precondFactory, err := preconditionerFactory(scene.Solver)
	if err != nil {
		fmt.Fprintf(os.Stderr, "vortexsim: %v\n", err)
		os.Exit(1)
	}

	dev := software.NewDevice()
	defer dev.Release()

	size := gridtypes.Size{W: scene.Grid.Width, H: scene.Grid.Height}
	logger := log.Default()

	w, err := world.New(dev, size, scene.Derived.DT32, *particles, precondFactory, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "vortexsim: constructing world: %v\n", err)
		os.Exit(1)
	}

	if len(scene.Scene.Obstacles) > 0 {
		bodies := make([]rigidbody.Body, len(scene.Scene.Obstacles))
		for i, c := range scene.Scene.Obstacles {
			bodies[i] = obstacleBody{
				transform: rigidbody.Transform{Position: gridtypes.Vec2{X: float32(c.X), Y: float32(c.Y)}},
				shape:     rigidbody.Circle{R: float32(c.Radius)},
			}
		}
		w.Bodies(bodies)
		if err := w.SeedObstacles(); err != nil {
			fmt.Fprintf(os.Stderr, "vortexsim: seeding obstacles: %v\n", err)
			os.Exit(1)
		}
	}

	step := w.SolveStatic
	if *dynamic {
		step = w.SolveDynamic
	}

	for i := 0; i < *steps; i++ {
		start := time.Now()
		if err := step(); err != nil {
			fmt.Fprintf(os.Stderr, "vortexsim: step %d: %v\n", i, err)
			os.Exit(1)
		}
		fmt.Printf("step %d: %s\n", i, time.Since(start))
	}
}

func preconditionerFactory(cfg config.SolverConfig) (world.PreconditionerFactory, error) {
	switch cfg.Preconditioner {
	case "", config.PreconditionerDiagonal:
		return world.DiagonalPreconditioner, nil
	case config.PreconditionerIncompletePoisson:
		return world.IncompletePoissonPreconditioner, nil
	case config.PreconditionerGaussSeidel:
		sweeps := cfg.GaussSeidelSweeps
		if sweeps <= 0 {
			sweeps = 4
		}
		return world.GaussSeidelPreconditioner(sweeps), nil
	case config.PreconditionerMultigrid:
		return world.MultigridPreconditioner, nil
	default:
		return nil, fmt.Errorf("unknown preconditioner %q", cfg.Preconditioner)
	}
}
