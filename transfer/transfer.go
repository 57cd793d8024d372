// Package transfer implements the particle/grid velocity exchange of
// spec.md §4.4 — TransferToGrid (P2G) and TransferFromGrid (G2P) — the
// two halves of World.cpp's SolveDynamic that splat live particle
// velocities onto the grid ahead of the pressure solve and read the
// projected, extrapolated result back onto the particles afterwards.
package transfer

import (
	"github.com/vortex2d-go/fluid/device"
	"github.com/vortex2d-go/fluid/gridtypes"
)

const localSize = 256

// Transfer owns the two indirectly-dispatched bindings against a shared
// particle buffer and velocity grid.
type Transfer struct {
	toGrid   *device.Bound
	fromGrid *device.Bound

	toGridWork   *device.CommandBuffer
	fromGridWork *device.CommandBuffer

	dispatchParams device.Buffer
}

// New binds TransferToGrid and TransferFromGrid against particlesBuf (and
// its dispatchParams) and velocity.
func New(dev device.Device, size gridtypes.Size, particlesBuf, dispatchParams device.Buffer, velocity device.Image) (*Transfer, error) {
	toGridWorkDef, err := dev.NewWork("TransferToGrid", [3]int{localSize, 1, 1}, 3)
	if err != nil {
		return nil, err
	}
	toGrid, err := toGridWorkDef.Bind([]device.Resource{particlesBuf, dispatchParams, velocity}, [2]int{1, 1})
	if err != nil {
		return nil, err
	}

	fromGridWorkDef, err := dev.NewWork("TransferFromGrid", [3]int{localSize, 1, 1}, 3)
	if err != nil {
		return nil, err
	}
	fromGrid, err := fromGridWorkDef.Bind([]device.Resource{particlesBuf, dispatchParams, velocity}, [2]int{1, 1})
	if err != nil {
		return nil, err
	}

	toGridWork, err := dev.CreateCommandBuffer()
	if err != nil {
		return nil, err
	}
	fromGridWork, err := dev.CreateCommandBuffer()
	if err != nil {
		return nil, err
	}

	return &Transfer{
		toGrid:         toGrid,
		fromGrid:       fromGrid,
		toGridWork:     toGridWork,
		fromGridWork:   fromGridWork,
		dispatchParams: dispatchParams,
	}, nil
}

// ToGrid runs the P2G splat over the live particle count (World.cpp
// SolveDynamic step 2, before forces and the pressure solve).
func (t *Transfer) ToGrid() error {
	t.toGridWork.Record(func(rec *device.Recorder) {
		t.toGrid.RecordIndirect(rec, t.dispatchParams)
	})
	return t.toGridWork.Submit()
}

// FromGrid runs the G2P read-back over the live particle count
// (SolveDynamic step 6, after projection/extrapolation/constrain).
func (t *Transfer) FromGrid() error {
	t.fromGridWork.Record(func(rec *device.Recorder) {
		t.fromGrid.RecordIndirect(rec, t.dispatchParams)
	})
	return t.fromGridWork.Submit()
}
