// Package particles implements the PIC/FLIP particle bucket (spec.md
// §4.4): a host-owned particle buffer is periodically re-bucketed onto
// the grid so downstream kernels can find, per cell, exactly which
// particles live there, and cells that have drained below their target
// population are topped back up.
package particles

import (
	"math/rand/v2"

	"github.com/vortex2d-go/fluid/device"
	"github.com/vortex2d-go/fluid/gridtypes"
)

const localSize = 256

// Particles owns the bucketing scratch buffers for one particle set and
// records the two command scripts (Count, Scan) that refresh them, the
// same split as Vortex2D's Particles class (mCountWork / mScanWork).
type Particles struct {
	dev  device.Device
	size gridtypes.Size

	particles      device.Buffer
	newParticles   device.Buffer
	countImage     device.Image
	countBuf       device.Buffer
	index          device.Buffer
	seeds          device.Buffer
	dispatchParams device.Buffer
	newDispatch    device.Buffer

	countBound        *device.Bound
	copyCountBound    *device.Bound
	scanBound         *device.Bound
	bucketBound       *device.Bound
	spawnBound        *device.Bound
	copyParticles     *device.Bound
	copyDispatch      *device.Bound
	writeSeeds        *device.Bound
	initDispatch      *device.Bound

	countWork *device.CommandBuffer
	scanWork  *device.CommandBuffer
}

// New allocates every scratch buffer a particle set needs and binds its
// kernels, ready to Count and Scan. particlesBuf is the host-owned,
// live particle array; initialCount seeds the first dispatch before any
// Scan has run.
func New(dev device.Device, size gridtypes.Size, particlesBuf device.Buffer, initialCount int) (*Particles, error) {
	capacity := MaxParticlesPerCell * size.N()

	newParticles, err := dev.CreateBuffer(device.BufferDescriptor{
		Label: "particles.new", Count: capacity, Element: device.ElementParticle, Usage: device.BufferUsageStorage,
	})
	if err != nil {
		return nil, err
	}
	countImage, err := dev.CreateImage(device.ImageDescriptor{
		Label: "particles.count", Size: [2]int{size.W, size.H}, Element: device.ElementInt32,
	})
	if err != nil {
		return nil, err
	}
	countBuf, err := dev.CreateBuffer(device.BufferDescriptor{
		Label: "particles.countBuf", Count: size.N(), Element: device.ElementInt32, Usage: device.BufferUsageStorage,
	})
	if err != nil {
		return nil, err
	}
	index, err := dev.CreateBuffer(device.BufferDescriptor{
		Label: "particles.index", Count: size.N(), Element: device.ElementInt32, Usage: device.BufferUsageStorage,
	})
	if err != nil {
		return nil, err
	}
	seeds, err := dev.CreateBuffer(device.BufferDescriptor{
		Label: "particles.seeds", Count: 4, Element: device.ElementIVec2, Usage: device.BufferUsageStorage | device.BufferUsageHostVisible,
	})
	if err != nil {
		return nil, err
	}
	dispatchParams, err := dev.CreateBuffer(device.BufferDescriptor{Label: "particles.dispatch", Element: device.ElementDispatchParams, Count: 1})
	if err != nil {
		return nil, err
	}
	newDispatch, err := dev.CreateBuffer(device.BufferDescriptor{Label: "particles.newDispatch", Element: device.ElementDispatchParams, Count: 1})
	if err != nil {
		return nil, err
	}

	p := &Particles{
		dev: dev, size: size,
		particles: particlesBuf, newParticles: newParticles,
		countImage: countImage, countBuf: countBuf, index: index, seeds: seeds,
		dispatchParams: dispatchParams, newDispatch: newDispatch,
	}
	if err := p.bind(); err != nil {
		return nil, err
	}

	if err := dev.ExecuteOnce(func(rec *device.Recorder) {
		p.initDispatch.PushConstant(rec, 0, float32(initialCount))
		p.initDispatch.Record(rec)
	}); err != nil {
		return nil, err
	}

	p.countWork, err = dev.CreateCommandBuffer()
	if err != nil {
		return nil, err
	}
	p.countWork.Record(func(rec *device.Recorder) {
		p.countBound.RecordIndirect(rec, p.dispatchParams)
	})

	p.scanWork, err = dev.CreateCommandBuffer()
	if err != nil {
		return nil, err
	}
	p.recordScan([4]gridtypes.IVec2{})

	return p, nil
}

func (p *Particles) bind() error {
	countWork, err := p.dev.NewWork("ParticleCount", [3]int{localSize, 1, 1}, 3)
	if err != nil {
		return err
	}
	p.countBound, err = countWork.Bind([]device.Resource{p.particles, p.dispatchParams, p.countImage}, [2]int{1, 1})
	if err != nil {
		return err
	}

	copyCount, err := p.dev.NewWork("CopyImageToBuffer", [3]int{localSize, 1, 1}, 2)
	if err != nil {
		return err
	}
	p.copyCountBound, err = copyCount.Bind([]device.Resource{p.countBuf, p.countImage}, [2]int{1, 1})
	if err != nil {
		return err
	}

	scanWork, err := p.dev.NewWork("PrefixScan", [3]int{localSize, 1, 1}, 3)
	if err != nil {
		return err
	}
	p.scanBound, err = scanWork.Bind([]device.Resource{p.countBuf, p.index, p.newDispatch}, [2]int{1, 1})
	if err != nil {
		return err
	}

	bucketWork, err := p.dev.NewWork("ParticleBucket", [3]int{localSize, 1, 1}, 5)
	if err != nil {
		return err
	}
	p.bucketBound, err = bucketWork.Bind([]device.Resource{p.particles, p.newParticles, p.index, p.countBuf, p.dispatchParams}, [2]int{1, 1})
	if err != nil {
		return err
	}

	spawnWork, err := p.dev.NewWork("ParticleSpawn", [3]int{16, 16, 1}, 4)
	if err != nil {
		return err
	}
	p.spawnBound, err = spawnWork.Bind([]device.Resource{p.newParticles, p.index, p.countBuf, p.seeds}, [2]int{p.size.W, p.size.H})
	if err != nil {
		return err
	}

	copyParticles, err := p.dev.NewWork("CopyBuffer", [3]int{localSize, 1, 1}, 2)
	if err != nil {
		return err
	}
	p.copyParticles, err = copyParticles.Bind([]device.Resource{p.particles, p.newParticles}, [2]int{1, 1})
	if err != nil {
		return err
	}

	copyDispatch, err := p.dev.NewWork("CopyBuffer", [3]int{1, 1, 1}, 2)
	if err != nil {
		return err
	}
	p.copyDispatch, err = copyDispatch.Bind([]device.Resource{p.dispatchParams, p.newDispatch}, [2]int{1, 1})
	if err != nil {
		return err
	}

	writeSeeds, err := p.dev.NewWork("WriteSeeds", [3]int{1, 1, 1}, 1)
	if err != nil {
		return err
	}
	p.writeSeeds, err = writeSeeds.Bind([]device.Resource{p.seeds}, [2]int{1, 1})
	if err != nil {
		return err
	}

	initDispatch, err := p.dev.NewWork("InitDispatchParams", [3]int{1, 1, 1}, 1)
	if err != nil {
		return err
	}
	p.initDispatch, err = initDispatch.Bind([]device.Resource{p.dispatchParams}, [2]int{1, 1})
	return err
}

// Count submits the particle-count pass: every live particle increments
// the count image at its containing cell.
func (p *Particles) Count() error {
	return p.countWork.Submit()
}

// Scan re-randomizes the per-frame jitter seeds, then submits the scan
// pass: copy the count image into a flat buffer, prefix-scan it into
// scatter offsets, bucket every live particle into those offsets
// (dropping overflow past the per-cell cap), spawn replacements in any
// cell that drained below its target population, and publish the result
// back into the caller's particle buffer and dispatch params.
func (p *Particles) Scan() error {
	var seeds [4]gridtypes.IVec2
	for i := range seeds {
		seeds[i] = gridtypes.IVec2{X: int32(rand.IntN(1_000_000) + 1), Y: int32(rand.IntN(1_000_000) + 1)}
	}
	p.recordScan(seeds)
	return p.scanWork.Submit()
}

func (p *Particles) recordScan(seeds [4]gridtypes.IVec2) {
	p.scanWork.Record(func(rec *device.Recorder) {
		for i, s := range seeds {
			p.writeSeeds.PushConstant(rec, uint32(2*i), float32(s.X))
			p.writeSeeds.PushConstant(rec, uint32(2*i+1), float32(s.Y))
		}
		p.writeSeeds.Record(rec)

		p.copyCountBound.Record(rec)
		p.scanBound.Record(rec)

		p.bucketBound.PushConstant(rec, 0, float32(p.size.W))
		p.bucketBound.RecordIndirect(rec, p.dispatchParams)

		p.spawnBound.PushConstant(rec, 0, float32(p.size.W))
		p.spawnBound.Record(rec)

		p.copyParticles.Record(rec)
		p.copyDispatch.Record(rec)
	})
}

// Live returns the number of particles the last Scan published.
func (p *Particles) Live() (int, error) {
	return device.DispatchCount(p.dispatchParams)
}

// Buffer returns the live, host-visible particle array this set
// publishes into after every Scan — the buffer World hands to Transfer
// and advect.Particles.
func (p *Particles) Buffer() device.Buffer { return p.particles }

// DispatchParams returns the DispatchParams buffer Scan refreshes,
// consumed by every indirect dispatch over the live particle set.
func (p *Particles) DispatchParams() device.Buffer { return p.dispatchParams }

// CountImage returns the per-cell live-particle count image Count()
// fills, the source World.SolveDynamic builds liquidPhi from.
func (p *Particles) CountImage() device.Image { return p.countImage }

// MaxParticlesPerCell mirrors the software backend's bucketing cap
// (device/software.maxParticlesPerCell); exported so a caller allocating
// the host-owned particle buffer World.New expects (8*size.N() elements)
// does not have to hardcode the capacity twice.
const MaxParticlesPerCell = 8
