// Package pressure implements the variational pressure projection of
// spec.md §4.5.3: it assembles the Poisson system from the level sets and
// current velocity, hands the system to the caller's conjugate-gradient
// solve, and then applies the resulting pressure gradient back onto the
// velocity field. The three kernels it records (BuildMatrix, Project,
// CopyBack) bracket, rather than include, the CG solve itself — World
// drives that step between BuildMatrix and Project.
package pressure

import (
	"github.com/vortex2d-go/fluid/device"
	"github.com/vortex2d-go/fluid/gridtypes"
	"github.com/vortex2d-go/fluid/solver"
)

const localSize = 16

// Pressure owns the linear system, the projection's own scratch velocity
// and validity images, and the three recorded command scripts.
type Pressure struct {
	dev  device.Device
	size gridtypes.Size

	data  *solver.Data
	back  device.Image // scratch for Project's output, copied into front by CopyBack
	valid device.Image // per-face validity (ElementIVec2), consumed by extrapolate

	buildBound   *device.Bound
	projectBound *device.Bound
	copyBack     *device.Bound

	buildWork   *device.CommandBuffer
	projectWork *device.CommandBuffer
}

// New allocates Pressure's linear system and scratch images and binds its
// kernels against the caller-owned velocity/solidPhi/liquidPhi images.
func New(dev device.Device, size gridtypes.Size, velocity, solidPhi, liquidPhi device.Image) (*Pressure, error) {
	data, err := solver.NewData(dev, size)
	if err != nil {
		return nil, err
	}
	back, err := dev.CreateImage(device.ImageDescriptor{Label: "pressure.velocityBack", Size: [2]int{size.W, size.H}, Element: device.ElementVec2})
	if err != nil {
		return nil, err
	}
	valid, err := dev.CreateImage(device.ImageDescriptor{Label: "pressure.valid", Size: [2]int{size.W, size.H}, Element: device.ElementIVec2})
	if err != nil {
		return nil, err
	}

	p := &Pressure{dev: dev, size: size, data: data, back: back, valid: valid}

	buildWork, err := dev.NewWork("BuildMatrix", [3]int{localSize, localSize, 1}, 6)
	if err != nil {
		return nil, err
	}
	p.buildBound, err = buildWork.Bind([]device.Resource{velocity, solidPhi, liquidPhi, data.Diagonal, data.Lower, data.B}, [2]int{size.W, size.H})
	if err != nil {
		return nil, err
	}

	projectWork, err := dev.NewWork("Project", [3]int{localSize, localSize, 1}, 6)
	if err != nil {
		return nil, err
	}
	p.projectBound, err = projectWork.Bind([]device.Resource{velocity, data.X, data.Diagonal, data.Lower, back, valid}, [2]int{size.W, size.H})
	if err != nil {
		return nil, err
	}

	copyBackWork, err := dev.NewWork("CopyBack", [3]int{localSize, localSize, 1}, 2)
	if err != nil {
		return nil, err
	}
	p.copyBack, err = copyBackWork.Bind([]device.Resource{velocity, back}, [2]int{size.W, size.H})
	if err != nil {
		return nil, err
	}

	p.buildWork, err = dev.CreateCommandBuffer()
	if err != nil {
		return nil, err
	}
	p.projectWork, err = dev.CreateCommandBuffer()
	if err != nil {
		return nil, err
	}

	return p, nil
}

// Data exposes the assembled linear system for a ConjugateGradient solve.
func (p *Pressure) Data() *solver.Data { return p.data }

// Valid exposes the per-face validity image Project wrote, consumed by
// the extrapolation pass before the next frame's advection.
func (p *Pressure) Valid() device.Image { return p.valid }

// BuildMatrix records and submits the assembly of Diagonal/Lower/B from
// the current velocity and level sets, scaled by dt.
func (p *Pressure) BuildMatrix(dt float32) error {
	p.buildWork.Record(func(rec *device.Recorder) {
		p.buildBound.PushConstant(rec, 0, dt)
		p.buildBound.Record(rec)
	})
	return p.buildWork.Submit()
}

// Apply projects the velocity field by the solved pressure X and copies
// the result back into the front velocity image, ready for extrapolation.
func (p *Pressure) Apply(dt float32) error {
	p.projectWork.Record(func(rec *device.Recorder) {
		p.projectBound.PushConstant(rec, 0, dt)
		p.projectBound.Record(rec)
		p.copyBack.Record(rec)
	})
	return p.projectWork.Submit()
}
