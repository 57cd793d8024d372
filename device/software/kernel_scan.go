package software

import "github.com/vortex2d-go/fluid/device"

const scanBlockSize = 256

// registerScanKernels installs PrefixScan (spec.md §4.3). The GPU
// algorithm is three dispatches (per-block Blelloch scan, scan of block
// sums, add-back); this CPU kernel performs all three stages in one call
// since there is no separate-dispatch latency to hide. PrefixScanBlock
// and PrefixScanAdd are registered as aliases of the same implementation
// so the named-kernel contract of spec.md §6 is satisfied by a backend
// that happens to fuse the stages.
func registerScanKernels(d *Device) {
	d.RegisterKernel("PrefixScan", prefixScanKernel)
	d.RegisterKernel("PrefixScanBlock", prefixScanKernel)
	d.RegisterKernel("PrefixScanAdd", prefixScanKernel)
}

func prefixScanKernel(ctx *device.KernelContext) error {
	in := ctx.Resources[0].(*Buffer).Ints()
	out := ctx.Resources[1].(*Buffer).Ints()
	dispatch := ctx.Resources[2].(*Buffer).Dispatch()

	n := len(in)
	if n == 0 {
		dispatch.Count = 0
		dispatch.WorkSize = [2]int{0, 1}
		return nil
	}

	numBlocks := (n + scanBlockSize - 1) / scanBlockSize
	blockSums := make([]int32, numBlocks)

	if err := ParallelFor(numBlocks, func(b int) error {
		lo := b * scanBlockSize
		hi := lo + scanBlockSize
		if hi > n {
			hi = n
		}
		var running int32
		for i := lo; i < hi; i++ {
			out[i] = running
			running += in[i]
		}
		blockSums[b] = running
		return nil
	}); err != nil {
		return err
	}

	blockOffsets := make([]int32, numBlocks)
	var prefix int32
	for b := 0; b < numBlocks; b++ {
		blockOffsets[b] = prefix
		prefix += blockSums[b]
	}

	if err := ParallelFor(numBlocks, func(b int) error {
		off := blockOffsets[b]
		if off == 0 {
			return nil
		}
		lo := b * scanBlockSize
		hi := lo + scanBlockSize
		if hi > n {
			hi = n
		}
		for i := lo; i < hi; i++ {
			out[i] += off
		}
		return nil
	}); err != nil {
		return err
	}

	count := int(out[n-1]) + int(in[n-1])
	dispatch.Count = count
	dispatch.WorkSize = [2]int{(count + 255) / 256, 1}
	return nil
}
