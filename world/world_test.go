package world_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vortex2d-go/fluid/device/software"
	"github.com/vortex2d-go/fluid/gridtypes"
	"github.com/vortex2d-go/fluid/internal/log"
	"github.com/vortex2d-go/fluid/world"
)

func assertFinite(t *testing.T, label string, values []gridtypes.Vec2) {
	t.Helper()
	for i, v := range values {
		assert.Falsef(t, math.IsNaN(float64(v.X)) || math.IsInf(float64(v.X), 0), "%s[%d].X is not finite: %v", label, i, v.X)
		assert.Falsef(t, math.IsNaN(float64(v.Y)) || math.IsInf(float64(v.Y), 0), "%s[%d].Y is not finite: %v", label, i, v.Y)
	}
}

// TestSolveStaticSteps runs the smoke regime for a few frames against a
// domain with no obstacles and checks World.SolveStatic's own documented
// script (§4.9) never produces a non-finite velocity field,
// and that Frame() tracks the step count.
func TestSolveStaticSteps(t *testing.T) {
	dev := software.NewDevice()
	defer dev.Release()

	size := gridtypes.Size{W: 16, H: 16}
	w, err := world.New(dev, size, 0.016, 0, world.DiagonalPreconditioner, log.Default())
	require.NoError(t, err)

	density := w.Density().(*software.Image)
	densities := density.Vec4s()
	densities[gridtypes.Index(size, 8, 8)] = gridtypes.Vec4{R: 1, G: 1, B: 1, A: 1}

	for i := 0; i < 5; i++ {
		require.NoError(t, w.SolveStatic())
	}

	assert.Equal(t, 5, w.Frame())
	assertFinite(t, "velocity", w.Velocity().(*software.Image).Vec2s())
}

// TestSolveDynamicSteps runs the liquid regime for a few frames with a
// seeded particle population and checks the same finiteness property
// across SolveDynamic's seven-phase script, plus that live particle
// count stays within the buffer capacity.
func TestSolveDynamicSteps(t *testing.T) {
	dev := software.NewDevice()
	defer dev.Release()

	size := gridtypes.Size{W: 12, H: 12}
	w, err := world.New(dev, size, 0.016, 20, world.GaussSeidelPreconditioner(4), log.Default())
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		require.NoError(t, w.SolveDynamic())
	}

	assert.Equal(t, 3, w.Frame())
	assertFinite(t, "velocity", w.Velocity().(*software.Image).Vec2s())

	count, err := w.Count().Live()
	require.NoError(t, err)
	assert.GreaterOrEqual(t, count, 0)
	assert.LessOrEqual(t, count, size.N()*8)
}

// TestSeedObstaclesRequiresNoBodies checks that SeedObstacles is safe to
// call before any Bodies() have been bound (Coupler.Render's own
// documented no-op for an empty body set), matching how a static-only
// scene with no obstacles configured would drive World.
func TestSeedObstaclesRequiresNoBodies(t *testing.T) {
	dev := software.NewDevice()
	defer dev.Release()

	size := gridtypes.Size{W: 8, H: 8}
	w, err := world.New(dev, size, 0.016, 0, world.DiagonalPreconditioner, log.Default())
	require.NoError(t, err)

	require.NoError(t, w.SeedObstacles())
}
