package reduce_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vortex2d-go/fluid/device"
	"github.com/vortex2d-go/fluid/device/software"
	"github.com/vortex2d-go/fluid/reduce"
)

// TestReduceSum is spec.md §8's T1: summing 1..150 gives 11325.0.
func TestReduceSum(t *testing.T) {
	dev := software.NewDevice()
	defer dev.Release()

	input, err := dev.CreateBuffer(device.BufferDescriptor{Label: "in", Count: 150, Element: device.ElementFloat32, Usage: device.BufferUsageStorage})
	require.NoError(t, err)
	output, err := dev.CreateBuffer(device.BufferDescriptor{Label: "out", Count: 1, Element: device.ElementFloat32, Usage: device.BufferUsageStorage})
	require.NoError(t, err)

	values := input.(*software.Buffer).Floats()
	for i := range values {
		values[i] = float32(i + 1)
	}

	sum, err := reduce.NewSum(dev)
	require.NoError(t, err)
	bound, err := sum.Bind(input, output)
	require.NoError(t, err)

	require.NoError(t, dev.ExecuteOnce(func(rec *device.Recorder) { bound.Record(rec) }))

	got, err := device.ReadScalar(output)
	require.NoError(t, err)
	assert.InDelta(t, 11325.0, got, 1e-3)
}

// TestReduceMax checks the infinity-norm reduction the CG driver's
// convergence check relies on.
func TestReduceMax(t *testing.T) {
	dev := software.NewDevice()
	defer dev.Release()

	input, err := dev.CreateBuffer(device.BufferDescriptor{Label: "in", Count: 5, Element: device.ElementFloat32, Usage: device.BufferUsageStorage})
	require.NoError(t, err)
	output, err := dev.CreateBuffer(device.BufferDescriptor{Label: "out", Count: 1, Element: device.ElementFloat32, Usage: device.BufferUsageStorage})
	require.NoError(t, err)

	values := input.(*software.Buffer).Floats()
	copy(values, []float32{-1, 4, -9, 2, 3})

	max, err := reduce.NewMax(dev)
	require.NoError(t, err)
	bound, err := max.Bind(input, output)
	require.NoError(t, err)

	require.NoError(t, dev.ExecuteOnce(func(rec *device.Recorder) { bound.Record(rec) }))

	got, err := device.ReadScalar(output)
	require.NoError(t, err)
	assert.InDelta(t, 9.0, got, 1e-6)
}
