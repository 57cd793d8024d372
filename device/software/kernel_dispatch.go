package software

import (
	"github.com/vortex2d-go/fluid/device"
	"github.com/vortex2d-go/fluid/gridtypes"
)

// registerDispatchKernels installs the small host-write utility kernels
// that stand in for a staging-buffer upload followed by a copy command:
// InitDispatchParams seeds a DispatchParams buffer before anything has
// run a scan over it (matching Particles.cpp's constructor-time
// "mDispatchParams.CopyFrom(commandBuffer, localDispatchParams)"), and
// WriteSeeds refreshes the four PRNG seeds Scan re-randomizes every frame
// (matching "mSeeds.CopyFrom(commandBuffer, mLocalSeeds)").
func registerDispatchKernels(d *Device) {
	d.RegisterKernel("InitDispatchParams", initDispatchParamsKernel)
	d.RegisterKernel("WriteSeeds", writeSeedsKernel)
}

func initDispatchParamsKernel(ctx *device.KernelContext) error {
	dispatch := ctx.Resources[0].(*Buffer).Dispatch()
	count := int(ctx.Push[0])
	dispatch.Count = count
	dispatch.WorkSize = [2]int{(count + 255) / 256, 1}
	return nil
}

func writeSeedsKernel(ctx *device.KernelContext) error {
	seeds := ctx.Resources[0].(*Buffer).IVec2s()
	for k := range seeds {
		seeds[k] = gridtypes.IVec2{
			X: int32(ctx.Push[uint32(2*k)]),
			Y: int32(ctx.Push[uint32(2*k+1)]),
		}
	}
	return nil
}
