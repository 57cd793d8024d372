package software

import (
	"math"
	"sync/atomic"

	"github.com/vortex2d-go/fluid/device"
	"github.com/vortex2d-go/fluid/gridtypes"
)

// desiredParticlesPerCell is the per-cell population Spawn tops cells up
// to (spec.md §4.4 T6).
const desiredParticlesPerCell = 4

// maxParticlesPerCell bounds how many particles Bucket will place in a
// single cell; particles landing in an already-full cell are dropped.
const maxParticlesPerCell = 8

// registerParticleKernels installs ParticleCount, ParticleBucket and
// ParticleSpawn (spec.md §4.4), grounded on Vortex2D's Particles.cpp
// command scripts (mCountWork / mScanWork).
func registerParticleKernels(d *Device) {
	d.RegisterKernel("ParticleCount", particleCountKernel)
	d.RegisterKernel("ParticleBucket", particleBucketKernel)
	d.RegisterKernel("ParticleSpawn", particleSpawnKernel)
}

// particleCountKernel scatters a live particle increment into the count
// image, one increment per particle at the cell its position floors to.
// Resources: particles, dispatchParams (binding parity only), count image.
func particleCountKernel(ctx *device.KernelContext) error {
	particles := ctx.Resources[0].(*Buffer).Particles()
	countImg := ctx.Resources[2].(*Image)
	countImg.Clear()

	n := ctx.Count
	if n > len(particles) {
		n = len(particles)
	}
	if n <= 0 {
		return nil
	}

	size := countImg.GridSize()
	workers := workerCount(n)
	chunk := (n + workers - 1) / workers
	locals := make([][]int32, workers)

	err := ParallelFor(workers, func(w int) error {
		lo := w * chunk
		if lo >= n {
			return nil
		}
		hi := lo + chunk
		if hi > n {
			hi = n
		}
		local := make([]int32, size.N())
		for k := lo; k < hi; k++ {
			i, j := cellOf(particles[k].Position)
			if !size.Valid(i, j) {
				continue
			}
			local[gridtypes.Index(size, i, j)]++
		}
		locals[w] = local
		return nil
	})
	if err != nil {
		return err
	}

	out := countImg.Ints()
	for _, local := range locals {
		if local == nil {
			continue
		}
		for idx, v := range local {
			out[idx] += v
		}
	}
	return nil
}

// particleBucketKernel scatters live particles into newParticles at the
// slot reserved for their cell by the prefix scan, dropping anything past
// maxParticlesPerCell. Resources: particles, newParticles, index, count
// (flat per-cell counts), dispatchParams (binding parity only). The grid
// width is carried as push constant 0 since flat buffers have no shape.
func particleBucketKernel(ctx *device.KernelContext) error {
	particles := ctx.Resources[0].(*Buffer).Particles()
	newParticles := ctx.Resources[1].(*Buffer).Particles()
	index := ctx.Resources[2].(*Buffer).Ints()

	n := ctx.Count
	if n > len(particles) {
		n = len(particles)
	}
	if n <= 0 {
		return nil
	}

	width := int(ctx.Push[0])
	if width <= 0 {
		return device.ErrDescriptorMismatch
	}

	slots := make([]int32, len(index))
	copy(slots, index)
	capacity := len(newParticles)

	return ParallelFor(n, func(k int) error {
		i, j := cellOf(particles[k].Position)
		cell := i + width*j
		if cell < 0 || cell >= len(slots) {
			return nil
		}
		slot := atomic.AddInt32(&slots[cell], 1) - 1
		if int(slot-index[cell]) >= maxParticlesPerCell {
			return nil
		}
		if int(slot) < 0 || int(slot) >= capacity {
			return nil
		}
		newParticles[slot] = particles[k]
		return nil
	})
}

// particleSpawnKernel dispatches one thread per grid cell (direct
// dispatch, DispatchSize = grid W,H) and tops up any cell whose live
// count is below desiredParticlesPerCell with jittered new particles.
// Resources: newParticles, index, count (flat per-cell counts), seeds.
func particleSpawnKernel(ctx *device.KernelContext) error {
	newParticles := ctx.Resources[0].(*Buffer).Particles()
	index := ctx.Resources[1].(*Buffer).Ints()
	count := ctx.Resources[2].(*Buffer).Ints()
	seeds := ctx.Resources[3].(*Buffer).IVec2s()

	width := int(ctx.Push[0])
	if width <= 0 {
		return device.ErrDescriptorMismatch
	}
	n := len(count)
	capacity := len(newParticles)

	return ParallelFor(n, func(cell int) error {
		c := int(count[cell])
		if c >= desiredParticlesPerCell {
			return nil
		}
		i := cell % width
		j := cell / width
		for s := c; s < desiredParticlesPerCell && s < maxParticlesPerCell; s++ {
			slot := int(index[cell]) + s
			if slot < 0 || slot >= capacity {
				break
			}
			rx := spawnJitter(seeds, cell, s, 0)
			ry := spawnJitter(seeds, cell, s, 1)
			newParticles[slot] = Particle{Position: gridtypes.Vec2{
				X: float32(i) + rx,
				Y: float32(j) + ry,
			}}
		}
		return nil
	})
}

// cellOf floors a continuous position to its containing cell.
func cellOf(p gridtypes.Vec2) (int, int) {
	return int(math.Floor(float64(p.X))), int(math.Floor(float64(p.Y)))
}

// spawnJitter derives a deterministic pseudo-random offset in [0,1) for
// cell/slot/component, seeded by the four host-supplied seeds refreshed
// each Scan (Particles.cpp re-randomizes mLocalSeeds per frame).
func spawnJitter(seeds []gridtypes.IVec2, cell, slot, component int) float32 {
	h := uint32(cell)*2654435761 + uint32(slot)*40503 + uint32(component)*2246822519
	for _, s := range seeds {
		h ^= uint32(s.X) * 374761393
		h ^= uint32(s.Y) * 668265263
		h = (h << 13) | (h >> 19)
	}
	h ^= h >> 16
	h *= 2246822519
	h ^= h >> 13
	h *= 3266489917
	h ^= h >> 16
	return float32(h%1_000_000) / 1_000_000
}
