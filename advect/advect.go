// Package advect implements the three semi-Lagrangian advection passes of
// spec.md §4.7: the velocity field against itself, an arbitrary auxiliary
// field (density) against the velocity, and particles by RK3, grounded on
// Advection.cpp's three independent command scripts.
package advect

import (
	"github.com/vortex2d-go/fluid/device"
	"github.com/vortex2d-go/fluid/gridtypes"
)

const localSize = 16

// Velocity records the self-advection of a velocity field.
type Velocity struct {
	dev  device.Device
	bind *device.Bound
	copy *device.Bound
	work *device.CommandBuffer
}

// NewVelocity binds AdvectVelocity against front/back scratch for the
// given velocity image.
func NewVelocity(dev device.Device, size gridtypes.Size, velocity, back device.Image) (*Velocity, error) {
	advectWork, err := dev.NewWork("AdvectVelocity", [3]int{localSize, localSize, 1}, 2)
	if err != nil {
		return nil, err
	}
	bound, err := advectWork.Bind([]device.Resource{velocity, back}, [2]int{size.W, size.H})
	if err != nil {
		return nil, err
	}
	copyWork, err := dev.NewWork("CopyBack", [3]int{localSize, localSize, 1}, 2)
	if err != nil {
		return nil, err
	}
	copy, err := copyWork.Bind([]device.Resource{velocity, back}, [2]int{size.W, size.H})
	if err != nil {
		return nil, err
	}
	cmd, err := dev.CreateCommandBuffer()
	if err != nil {
		return nil, err
	}
	return &Velocity{dev: dev, bind: bound, copy: copy, work: cmd}, nil
}

// Advect records and submits one self-advection step, leaving the result
// readable in the front (input) image (Advection.cpp: "velocity.CopyBack").
func (v *Velocity) Advect(dt float32) error {
	v.work.Record(func(rec *device.Recorder) {
		v.bind.PushConstant(rec, 8, dt)
		v.bind.Record(rec)
		v.copy.Record(rec)
	})
	return v.work.Submit()
}

// Field records the advection of an auxiliary RGBA field (density) by a
// velocity field that is not itself being advected.
type Field struct {
	dev  device.Device
	bind *device.Bound
	copy *device.Bound
	work *device.CommandBuffer
}

// NewField binds Advect against the given velocity, field and its back
// scratch image.
func NewField(dev device.Device, size gridtypes.Size, velocity, field, fieldBack device.Image) (*Field, error) {
	advectWork, err := dev.NewWork("Advect", [3]int{localSize, localSize, 1}, 3)
	if err != nil {
		return nil, err
	}
	bound, err := advectWork.Bind([]device.Resource{velocity, field, fieldBack}, [2]int{size.W, size.H})
	if err != nil {
		return nil, err
	}
	copyWork, err := dev.NewWork("CopyBack", [3]int{localSize, localSize, 1}, 2)
	if err != nil {
		return nil, err
	}
	copy, err := copyWork.Bind([]device.Resource{field, fieldBack}, [2]int{size.W, size.H})
	if err != nil {
		return nil, err
	}
	cmd, err := dev.CreateCommandBuffer()
	if err != nil {
		return nil, err
	}
	return &Field{dev: dev, bind: bound, copy: copy, work: cmd}, nil
}

// Advect records and submits one advection step.
func (f *Field) Advect(dt float32) error {
	f.work.Record(func(rec *device.Recorder) {
		f.bind.PushConstant(rec, 8, dt)
		f.bind.Record(rec)
		f.copy.Record(rec)
	})
	return f.work.Submit()
}

// Particles records the RK3 particle advection pass.
type Particles struct {
	dev  device.Device
	bind *device.Bound
	work *device.CommandBuffer

	dispatchParams device.Buffer
}

// NewParticles binds AdvectParticles against the given particle buffer,
// velocity field and solid level set.
func NewParticles(dev device.Device, particlesBuf, dispatchParams device.Buffer, velocity, solidPhi device.Image) (*Particles, error) {
	work, err := dev.NewWork("AdvectParticles", [3]int{256, 1, 1}, 4)
	if err != nil {
		return nil, err
	}
	bound, err := work.Bind([]device.Resource{particlesBuf, dispatchParams, velocity, solidPhi}, [2]int{1, 1})
	if err != nil {
		return nil, err
	}
	cmd, err := dev.CreateCommandBuffer()
	if err != nil {
		return nil, err
	}
	return &Particles{dev: dev, bind: bound, work: cmd, dispatchParams: dispatchParams}, nil
}

// Advect records and submits one indirect-dispatch particle advection
// pass, over whatever the current live particle count is.
func (p *Particles) Advect(dt float32) error {
	p.work.Record(func(rec *device.Recorder) {
		p.bind.PushConstant(rec, 8, dt)
		p.bind.RecordIndirect(rec, p.dispatchParams)
	})
	return p.work.Submit()
}
