// Package rigidbody is the two-way momentum coupling contract of spec.md
// §6: an external rigid-body simulation owns position/orientation and
// velocity, the fluid core only reads a body's boundary into the solid
// level set and its velocity into the solid velocity field. Body declares
// the write-back direction (ApplyImpulse, SetVelocity), but no code in this
// module calls those methods or computes the impulse. No physics
// engine is vendored (original_source/Vortex2D/Engine/Rigidbody.h itself
// only sketches the interface, `BindDiv`/`BindVelocityConstrain`, leaving
// rigid-body dynamics to the embedding application) and no pack example
// repo carries a 2D rigid-body library, so Coupler below is the one
// concrete piece: rasterizing whatever Body.Boundary() returns into the
// shared solid fields every frame.
package rigidbody

import (
	"github.com/vortex2d-go/fluid/device"
	"github.com/vortex2d-go/fluid/gridtypes"
)

// Transform is a body's position and orientation in grid units.
type Transform struct {
	Position gridtypes.Vec2
	Angle    float32
}

// Velocity is a body's linear and angular velocity.
type Velocity struct {
	Linear  gridtypes.Vec2
	Angular float32
}

// Shape is a rigid body's boundary, rasterized into the solid level set
// each frame. Circle is the only concrete Shape this module provides
// (Rigidbody.h's own Drawable is never specialized beyond circular test
// fixtures anywhere in original_source).
type Shape interface {
	// Radius returns the shape's radius in grid units. A non-circular
	// Shape is not representable by Coupler today; see DESIGN.md.
	Radius() float32
}

// Circle is a circular rigid-body boundary of the given radius.
type Circle struct{ R float32 }

// Radius implements Shape.
func (c Circle) Radius() float32 { return c.R }

// Body is the one-way-per-direction collaborator contract of spec.md §6:
// Transform/Velocity/Boundary flow into the fluid core, ApplyImpulse and
// SetVelocity flow back out to whatever owns the body's dynamics.
type Body interface {
	Transform() Transform
	Velocity() Velocity
	Boundary() Shape

	// ApplyImpulse reports the linear impulse and torque the pressure
	// solve exerted on the body over the last step, for the embedding
	// simulation to integrate.
	ApplyImpulse(linear gridtypes.Vec2, torque float32)

	// SetVelocity is called by the embedding simulation to push an
	// externally-integrated velocity back into the coupling before the
	// next step rasterizes the body.
	SetVelocity(linear gridtypes.Vec2, angular float32)
}

// Coupler rasterizes a set of bodies into a shared solid level set and
// solid velocity field every frame (Rigidbody.h: "BindDiv" / per-body Phi
// render), the input half of the one-way-per-direction contract above.
type Coupler struct {
	dev  device.Device
	size gridtypes.Size

	solidPhi      device.Image
	solidVelocity device.Image

	phiWork      *device.CommandBuffer
	velocityWork *device.CommandBuffer

	phiBound      *device.Bound
	velocityBound *device.Bound

	bodies []Body
}

// New binds Coupler against the caller-owned solid level set and solid
// velocity image. Bodies are supplied per-frame via Bind.
func New(dev device.Device, size gridtypes.Size, solidPhi, solidVelocity device.Image) (*Coupler, error) {
	phiWork, err := dev.NewWork("RigidBodyPhi", [3]int{16, 16, 1}, 1)
	if err != nil {
		return nil, err
	}
	phiBound, err := phiWork.Bind([]device.Resource{solidPhi}, [2]int{size.W, size.H})
	if err != nil {
		return nil, err
	}

	velocityWork, err := dev.NewWork("RigidBodyVelocity", [3]int{16, 16, 1}, 1)
	if err != nil {
		return nil, err
	}
	velocityBound, err := velocityWork.Bind([]device.Resource{solidVelocity}, [2]int{size.W, size.H})
	if err != nil {
		return nil, err
	}

	phiCmd, err := dev.CreateCommandBuffer()
	if err != nil {
		return nil, err
	}
	velocityCmd, err := dev.CreateCommandBuffer()
	if err != nil {
		return nil, err
	}

	return &Coupler{
		dev: dev, size: size,
		solidPhi: solidPhi, solidVelocity: solidVelocity,
		phiWork: phiCmd, velocityWork: velocityCmd,
		phiBound: phiBound, velocityBound: velocityBound,
	}, nil
}

// Bind replaces the set of bodies Render rasterizes.
func (c *Coupler) Bind(bodies []Body) { c.bodies = bodies }

// Render rasterizes every bound body's current Transform/Boundary into
// solidPhi (unioned against whatever static solid geometry is already
// there) and its current Velocity into solidVelocity, the per-frame input
// half of the rigid-body coupling. Call once per step before Pressure's
// BuildMatrix, so the projection sees this frame's body positions.
func (c *Coupler) Render() error {
	if len(c.bodies) == 0 {
		return nil
	}
	c.phiWork.Record(func(rec *device.Recorder) {
		for _, b := range c.bodies {
			t := b.Transform()
			c.phiBound.PushConstant(rec, 0, t.Position.X)
			c.phiBound.PushConstant(rec, 1, t.Position.Y)
			c.phiBound.PushConstant(rec, 2, b.Boundary().Radius())
			c.phiBound.Record(rec)
		}
	})
	if err := c.phiWork.Submit(); err != nil {
		return err
	}

	c.velocityWork.Record(func(rec *device.Recorder) {
		for _, b := range c.bodies {
			t := b.Transform()
			v := b.Velocity()
			c.velocityBound.PushConstant(rec, 0, t.Position.X)
			c.velocityBound.PushConstant(rec, 1, t.Position.Y)
			c.velocityBound.PushConstant(rec, 2, b.Boundary().Radius())
			c.velocityBound.PushConstant(rec, 3, v.Linear.X)
			c.velocityBound.PushConstant(rec, 4, v.Linear.Y)
			c.velocityBound.PushConstant(rec, 5, v.Angular)
			c.velocityBound.Record(rec)
		}
	})
	return c.velocityWork.Submit()
}
