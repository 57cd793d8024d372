package rigidbody_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vortex2d-go/fluid/device"
	"github.com/vortex2d-go/fluid/device/software"
	"github.com/vortex2d-go/fluid/gridtypes"
	"github.com/vortex2d-go/fluid/rigidbody"
)

type testBody struct {
	transform rigidbody.Transform
	velocity  rigidbody.Velocity
	shape     rigidbody.Circle
}

func (b testBody) Transform() rigidbody.Transform       { return b.transform }
func (b testBody) Velocity() rigidbody.Velocity         { return b.velocity }
func (b testBody) Boundary() rigidbody.Shape            { return b.shape }
func (b testBody) ApplyImpulse(gridtypes.Vec2, float32) {}
func (b testBody) SetVelocity(gridtypes.Vec2, float32)  {}

// TestRenderUnionsIntoExistingSolid checks Coupler.Render's CSG-union
// contract: a circle rasterized over a field that already carries solid
// geometry only ever lowers phi, never raises it, at cells the existing
// geometry already claimed, and paints the circle's linear velocity into
// solidVelocity at cells the circle itself covers.
func TestRenderUnionsIntoExistingSolid(t *testing.T) {
	dev := software.NewDevice()
	defer dev.Release()

	size := gridtypes.Size{W: 20, H: 20}

	solidPhi, err := dev.CreateImage(device.ImageDescriptor{Label: "solidPhi", Size: [2]int{size.W, size.H}, Element: device.ElementFloat32})
	require.NoError(t, err)
	solidVelocity, err := dev.CreateImage(device.ImageDescriptor{Label: "solidVelocity", Size: [2]int{size.W, size.H}, Element: device.ElementVec2})
	require.NoError(t, err)

	phi := solidPhi.(*software.Image).Floats()
	for i := range phi {
		phi[i] = 100 // open everywhere to start
	}
	wallCell := gridtypes.Index(size, 1, 1)
	phi[wallCell] = -5 // a pre-existing static wall, deep inside solid

	coupler, err := rigidbody.New(dev, size, solidPhi, solidVelocity)
	require.NoError(t, err)

	body := testBody{
		transform: rigidbody.Transform{Position: gridtypes.Vec2{X: 10, Y: 10}},
		velocity:  rigidbody.Velocity{Linear: gridtypes.Vec2{X: 2, Y: -1}},
		shape:     rigidbody.Circle{R: 3},
	}
	coupler.Bind([]rigidbody.Body{body})
	require.NoError(t, coupler.Render())

	got := solidPhi.(*software.Image).Floats()
	assert.Equal(t, float32(-5), got[wallCell], "union must not erase a pre-existing, closer solid wall")

	centre := gridtypes.Index(size, 10, 10)
	assert.Less(t, got[centre], float32(0), "circle centre should be inside the rasterized solid")

	vel := solidVelocity.(*software.Image).Vec2s()[centre]
	assert.InDelta(t, 2, vel.X, 1e-6)
	assert.InDelta(t, -1, vel.Y, 1e-6)

	outside := solidVelocity.(*software.Image).Vec2s()[gridtypes.Index(size, 0, 19)]
	assert.Equal(t, gridtypes.Vec2{}, outside, "cells outside every circle are left untouched")
}

// TestRenderNoBodiesIsNoop matches Coupler.Render's early return for an
// empty body set: neither command buffer submits, so the caller-owned
// images are left exactly as they were.
func TestRenderNoBodiesIsNoop(t *testing.T) {
	dev := software.NewDevice()
	defer dev.Release()

	size := gridtypes.Size{W: 4, H: 4}
	solidPhi, err := dev.CreateImage(device.ImageDescriptor{Label: "solidPhi", Size: [2]int{size.W, size.H}, Element: device.ElementFloat32})
	require.NoError(t, err)
	solidVelocity, err := dev.CreateImage(device.ImageDescriptor{Label: "solidVelocity", Size: [2]int{size.W, size.H}, Element: device.ElementVec2})
	require.NoError(t, err)

	phi := solidPhi.(*software.Image).Floats()
	for i := range phi {
		phi[i] = 7
	}

	coupler, err := rigidbody.New(dev, size, solidPhi, solidVelocity)
	require.NoError(t, err)
	require.NoError(t, coupler.Render())

	for _, v := range solidPhi.(*software.Image).Floats() {
		assert.Equal(t, float32(7), v)
	}
}
