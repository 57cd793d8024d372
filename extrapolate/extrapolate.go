// Package extrapolate implements the velocity extrapolation and solid
// boundary-condition enforcement of spec.md §4.8: faces the projection
// pass left invalid are filled from valid neighbours over a fixed number
// of sweeps, then every face touching a solid is clamped to the solid's
// own velocity along the face normal.
package extrapolate

import (
	"github.com/vortex2d-go/fluid/device"
	"github.com/vortex2d-go/fluid/gridtypes"
)

const localSize = 16

// sweeps is the fixed iteration count spec.md §4.8 specifies.
const sweeps = 8

// Extrapolate owns the ping-pong scratch for the velocity and validity
// images it sweeps, plus the solid boundary-condition pass.
type Extrapolate struct {
	dev  device.Device
	size gridtypes.Size

	velocity, valid         device.Image
	velocityBack, validBack device.Image

	sweep      *device.Bound
	sweepSwap  *device.Bound
	constrain  *device.Bound
	sweepWork  *device.CommandBuffer
	constrainWork *device.CommandBuffer
}

// New binds Extrapolate against the caller-owned velocity/valid images
// (the ones Project wrote) and allocates its own ping-pong scratch.
func New(dev device.Device, size gridtypes.Size, velocity, valid, solidPhi, solidVelocity device.Image) (*Extrapolate, error) {
	velocityBack, err := dev.CreateImage(device.ImageDescriptor{Label: "extrapolate.velocityBack", Size: [2]int{size.W, size.H}, Element: device.ElementVec2})
	if err != nil {
		return nil, err
	}
	validBack, err := dev.CreateImage(device.ImageDescriptor{Label: "extrapolate.validBack", Size: [2]int{size.W, size.H}, Element: device.ElementIVec2})
	if err != nil {
		return nil, err
	}

	e := &Extrapolate{dev: dev, size: size, velocity: velocity, valid: valid, velocityBack: velocityBack, validBack: validBack}

	sweepWork, err := dev.NewWork("ExtrapolateVelocity", [3]int{localSize, localSize, 1}, 4)
	if err != nil {
		return nil, err
	}
	e.sweep, err = sweepWork.Bind([]device.Resource{velocity, valid, velocityBack, validBack}, [2]int{size.W, size.H})
	if err != nil {
		return nil, err
	}
	e.sweepSwap, err = sweepWork.Bind([]device.Resource{velocityBack, validBack, velocity, valid}, [2]int{size.W, size.H})
	if err != nil {
		return nil, err
	}

	constrainWork, err := dev.NewWork("ConstrainVelocity", [3]int{localSize, localSize, 1}, 4)
	if err != nil {
		return nil, err
	}
	e.constrain, err = constrainWork.Bind([]device.Resource{velocity, solidPhi, solidVelocity, velocityBack}, [2]int{size.W, size.H})
	if err != nil {
		return nil, err
	}

	copyWork, err := dev.NewWork("CopyBack", [3]int{localSize, localSize, 1}, 2)
	if err != nil {
		return nil, err
	}
	copyBack, err := copyWork.Bind([]device.Resource{velocity, velocityBack}, [2]int{size.W, size.H})
	if err != nil {
		return nil, err
	}

	e.sweepWork, err = dev.CreateCommandBuffer()
	if err != nil {
		return nil, err
	}
	e.sweepWork.Record(func(rec *device.Recorder) {
		for s := 0; s < sweeps; s++ {
			if s%2 == 0 {
				e.sweep.Record(rec)
			} else {
				e.sweepSwap.Record(rec)
			}
		}
		if sweeps%2 == 1 {
			copyBack.Record(rec)
		}
	})

	e.constrainWork, err = dev.CreateCommandBuffer()
	if err != nil {
		return nil, err
	}
	e.constrainWork.Record(func(rec *device.Recorder) {
		e.constrain.Record(rec)
		copyBack.Record(rec)
	})

	return e, nil
}

// Sweep runs the fixed 8 neighbor-averaging sweeps (spec.md §4.8).
func (e *Extrapolate) Sweep() error { return e.sweepWork.Submit() }

// Constrain enforces the solid boundary condition on every face touching
// a solid cell.
func (e *Extrapolate) Constrain() error { return e.constrainWork.Submit() }
