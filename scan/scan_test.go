package scan_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vortex2d-go/fluid/device"
	"github.com/vortex2d-go/fluid/device/software"
	"github.com/vortex2d-go/fluid/scan"
)

// TestPrefixScanExclusive checks the exclusive-scan contract PrefixScan
// promises: index[k] = sum(count[0:k]), and the refreshed dispatch
// params total the live element count (spec.md §4.3).
func TestPrefixScanExclusive(t *testing.T) {
	dev := software.NewDevice()
	defer dev.Release()

	counts := []int32{3, 0, 2, 5, 1}
	count, err := dev.CreateBuffer(device.BufferDescriptor{Label: "count", Count: len(counts), Element: device.ElementInt32, Usage: device.BufferUsageStorage})
	require.NoError(t, err)
	index, err := dev.CreateBuffer(device.BufferDescriptor{Label: "index", Count: len(counts), Element: device.ElementInt32, Usage: device.BufferUsageStorage})
	require.NoError(t, err)
	dispatchParams, err := dev.CreateBuffer(device.BufferDescriptor{Label: "dispatch", Count: 1, Element: device.ElementDispatchParams})
	require.NoError(t, err)

	copy(count.(*software.Buffer).Ints(), counts)

	ps, err := scan.New(dev, [2]int{len(counts), 1})
	require.NoError(t, err)
	bound, err := ps.Bind(count, index, dispatchParams)
	require.NoError(t, err)

	require.NoError(t, dev.ExecuteOnce(func(rec *device.Recorder) { bound.Record(rec) }))

	got := index.(*software.Buffer).Ints()
	assert.Equal(t, []int32{0, 3, 3, 5, 10}, got)

	dispatch := dispatchParams.(*software.Buffer).Dispatch()
	assert.Equal(t, 11, dispatch.Count)
}
