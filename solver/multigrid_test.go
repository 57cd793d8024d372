package solver_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vortex2d-go/fluid/device"
	"github.com/vortex2d-go/fluid/device/software"
	"github.com/vortex2d-go/fluid/gridtypes"
)

// TestRestrictUnitDiagonal is spec.md §8's T3 fixture: restricting a 4x4
// field of 1..16 with unit diagonals everywhere onto a 3x3 coarse grid
// reproduces the plain (1,3,3,1)⊗(1,3,3,1)/64 full-weighting average at
// the fully-interior coarse cell (1,1), since a unit diagonal ratio never
// rescales the result.
func TestRestrictUnitDiagonal(t *testing.T) {
	dev := software.NewDevice()
	defer dev.Release()

	fine, err := dev.CreateBuffer(device.BufferDescriptor{Label: "fine", Count: 16, Element: device.ElementFloat32, Usage: device.BufferUsageStorage})
	require.NoError(t, err)
	fineDiag, err := dev.CreateBuffer(device.BufferDescriptor{Label: "fineDiag", Count: 16, Element: device.ElementFloat32, Usage: device.BufferUsageStorage})
	require.NoError(t, err)
	coarseDiag, err := dev.CreateBuffer(device.BufferDescriptor{Label: "coarseDiag", Count: 9, Element: device.ElementFloat32, Usage: device.BufferUsageStorage})
	require.NoError(t, err)
	coarse, err := dev.CreateBuffer(device.BufferDescriptor{Label: "coarse", Count: 9, Element: device.ElementFloat32, Usage: device.BufferUsageStorage})
	require.NoError(t, err)

	fineValues := fine.(*software.Buffer).Floats()
	for i := range fineValues {
		fineValues[i] = float32(i + 1)
	}
	diagValues := fineDiag.(*software.Buffer).Floats()
	for i := range diagValues {
		diagValues[i] = 1
	}
	coarseDiagValues := coarseDiag.(*software.Buffer).Floats()
	for i := range coarseDiagValues {
		coarseDiagValues[i] = 1
	}

	work, err := dev.NewWork("Restrict", [3]int{16, 16, 1}, 4)
	require.NoError(t, err)
	bound, err := work.Bind([]device.Resource{fine, fineDiag, coarseDiag, coarse}, [2]int{3, 3})
	require.NoError(t, err)

	err = dev.ExecuteOnce(func(rec *device.Recorder) {
		bound.PushConstant(rec, 0, 4)
		bound.PushConstant(rec, 1, 3)
		bound.Record(rec)
	})
	require.NoError(t, err)

	got := coarse.(*software.Buffer).Floats()[gridtypes.Index(gridtypes.Size{W: 3, H: 3}, 1, 1)]
	assert.InDelta(t, 8.5, got, 1e-6)
}

// TestProlongateConstantFieldInterior checks Prolongate's defining
// property (spec.md §4.5.2: the transpose of Restrict's full-weighting)
// away from any boundary clamp: a constant coarse field prolongates back
// to the same constant, since the (9,3,3,1)/16 weights landing on an
// interior fine cell from its four nearest coarse cells always sum to 1.
func TestProlongateConstantFieldInterior(t *testing.T) {
	dev := software.NewDevice()
	defer dev.Release()

	coarseSize := gridtypes.Size{W: 5, H: 5}
	fineSize := gridtypes.Size{W: 10, H: 10}

	coarse, err := dev.CreateBuffer(device.BufferDescriptor{Label: "coarse", Count: coarseSize.N(), Element: device.ElementFloat32, Usage: device.BufferUsageStorage})
	require.NoError(t, err)
	fine, err := dev.CreateBuffer(device.BufferDescriptor{Label: "fine", Count: fineSize.N(), Element: device.ElementFloat32, Usage: device.BufferUsageStorage})
	require.NoError(t, err)

	coarseValues := coarse.(*software.Buffer).Floats()
	for i := range coarseValues {
		coarseValues[i] = 3
	}

	work, err := dev.NewWork("Prolongate", [3]int{16, 16, 1}, 2)
	require.NoError(t, err)
	bound, err := work.Bind([]device.Resource{coarse, fine}, [2]int{10, 10})
	require.NoError(t, err)

	err = dev.ExecuteOnce(func(rec *device.Recorder) {
		bound.PushConstant(rec, 0, 5)
		bound.PushConstant(rec, 1, 10)
		bound.Record(rec)
	})
	require.NoError(t, err)

	fineValues := fine.(*software.Buffer).Floats()
	got := fineValues[gridtypes.Index(fineSize, 5, 5)]
	assert.InDelta(t, 3.0, got, 1e-6)
}
