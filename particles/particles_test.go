package particles_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vortex2d-go/fluid/device"
	"github.com/vortex2d-go/fluid/device/software"
	"github.com/vortex2d-go/fluid/gridtypes"
	"github.com/vortex2d-go/fluid/particles"
)

func cellOf(p gridtypes.Vec2) (int, int) {
	return int(math.Floor(float64(p.X))), int(math.Floor(float64(p.Y)))
}

// TestCountScanSpawn is spec.md §4.4's T6: three seeded particles land in
// Count's per-cell tally at exactly the cells their positions floor to,
// and Scan tops every cell up to desiredParticlesPerCell (4), keeping the
// seeded positions in place and filling the rest with distinct spawned
// ones.
func TestCountScanSpawn(t *testing.T) {
	dev := software.NewDevice()
	defer dev.Release()

	size := gridtypes.Size{W: 20, H: 20}
	capacity := particles.MaxParticlesPerCell * size.N()

	buf, err := dev.CreateBuffer(device.BufferDescriptor{
		Label: "particles", Count: capacity, Element: device.ElementParticle, Usage: device.BufferUsageStorage | device.BufferUsageVertex,
	})
	require.NoError(t, err)

	seeded := []gridtypes.Vec2{{X: 3.4, Y: 2.3}, {X: 3.5, Y: 2.4}, {X: 5.4, Y: 6.7}}
	raw := buf.(*software.Buffer).Particles()
	for i, p := range seeded {
		raw[i] = software.Particle{Position: p}
	}

	ps, err := particles.New(dev, size, buf, len(seeded))
	require.NoError(t, err)

	require.NoError(t, ps.Count())

	counts := ps.CountImage().(*software.Image).Ints()
	assert.Equal(t, int32(2), counts[gridtypes.Index(size, 3, 2)])
	assert.Equal(t, int32(1), counts[gridtypes.Index(size, 5, 6)])

	require.NoError(t, ps.Scan())

	live, err := ps.Live()
	require.NoError(t, err)
	all := ps.Buffer().(*software.Buffer).Particles()[:live]

	byCell := func(i, j int) []gridtypes.Vec2 {
		var found []gridtypes.Vec2
		for _, p := range all {
			if ci, cj := cellOf(p.Position); ci == i && cj == j {
				found = append(found, p.Position)
			}
		}
		return found
	}

	cell32 := byCell(3, 2)
	assert.Len(t, cell32, 4)
	assert.Contains(t, cell32, gridtypes.Vec2{X: 3.4, Y: 2.3})
	assert.Contains(t, cell32, gridtypes.Vec2{X: 3.5, Y: 2.4})

	cell56 := byCell(5, 6)
	assert.Len(t, cell56, 4)
	assert.Contains(t, cell56, gridtypes.Vec2{X: 5.4, Y: 6.7})

	cell1010 := byCell(10, 10)
	assert.Len(t, cell1010, 4)
	seen := map[gridtypes.Vec2]bool{}
	for _, p := range cell1010 {
		assert.Falsef(t, seen[p], "spawned positions in (10,10) should be distinct, got duplicate %v", p)
		seen[p] = true
	}
}
