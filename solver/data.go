// Package solver implements the preconditioned conjugate-gradient driver
// and its preconditioners (spec.md §4.5): the linear system that falls
// out of the pressure projection is symmetric positive (semi-)definite,
// stored matrix-free as a diagonal plus two off-diagonal coupling
// coefficients per cell.
package solver

import (
	"github.com/vortex2d-go/fluid/device"
	"github.com/vortex2d-go/fluid/gridtypes"
)

// Data is the symmetric 5-point linear system {Diagonal, Lower, B, X}:
// Diagonal[i] is the cell's diagonal coefficient, Lower[i].X = A(i-1,j; i,j)
// is its coupling to the left neighbor and Lower[i].Y = A(i,j-1; i,j) its
// coupling to the down neighbor (the right/up couplings of a cell are read
// off the neighboring cell's Lower by symmetry: Diagonal[k] =
// -(Lower[k].X + Lower[k+1].X + Lower[k].Y + Lower[k+W].Y)). B is the
// right-hand side and X the unknown pressure.
type Data struct {
	Size     gridtypes.Size
	Diagonal device.Buffer
	Lower    device.Buffer
	B        device.Buffer
	X        device.Buffer
}

// NewData allocates a zeroed Data for a grid of the given size.
func NewData(dev device.Device, size gridtypes.Size) (*Data, error) {
	n := size.N()
	diag, err := dev.CreateBuffer(device.BufferDescriptor{Label: "solver.diagonal", Count: n, Element: device.ElementFloat32, Usage: device.BufferUsageStorage})
	if err != nil {
		return nil, err
	}
	lower, err := dev.CreateBuffer(device.BufferDescriptor{Label: "solver.lower", Count: n, Element: device.ElementVec2, Usage: device.BufferUsageStorage})
	if err != nil {
		return nil, err
	}
	b, err := dev.CreateBuffer(device.BufferDescriptor{Label: "solver.b", Count: n, Element: device.ElementFloat32, Usage: device.BufferUsageStorage})
	if err != nil {
		return nil, err
	}
	x, err := dev.CreateBuffer(device.BufferDescriptor{Label: "solver.x", Count: n, Element: device.ElementFloat32, Usage: device.BufferUsageStorage})
	if err != nil {
		return nil, err
	}
	return &Data{Size: size, Diagonal: diag, Lower: lower, B: b, X: x}, nil
}

// newScalarBuffer allocates a 1-element float32 buffer for a reduction's
// result.
func newScalarBuffer(dev device.Device, label string) (device.Buffer, error) {
	return dev.CreateBuffer(device.BufferDescriptor{Label: label, Count: 1, Element: device.ElementFloat32, Usage: device.BufferUsageStorage})
}

// newVector allocates a zeroed N-element float32 scratch buffer.
func newVector(dev device.Device, label string, n int) (device.Buffer, error) {
	return dev.CreateBuffer(device.BufferDescriptor{Label: label, Count: n, Element: device.ElementFloat32, Usage: device.BufferUsageStorage})
}
