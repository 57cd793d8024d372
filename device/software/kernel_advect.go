package software

import (
	"math"

	"github.com/vortex2d-go/fluid/device"
	"github.com/vortex2d-go/fluid/gridtypes"
)

// registerAdvectKernels installs AdvectVelocity, Advect and
// AdvectParticles (spec.md §4.7), grounded on Advection.cpp's three
// command scripts (mAdvectVelocityCmd, mAdvectCmd, mAdvectParticlesCmd),
// all of which push dt at offset 8.
func registerAdvectKernels(d *Device) {
	d.RegisterKernel("AdvectVelocity", advectVelocityKernel)
	d.RegisterKernel("Advect", advectFieldKernel)
	d.RegisterKernel("AdvectParticles", advectParticlesKernel)
}

func clampf(v, lo, hi float32) float32 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func bilinearVec2(field []gridtypes.Vec2, size gridtypes.Size, x, y float32) gridtypes.Vec2 {
	x = clampf(x, 0, float32(size.W-1))
	y = clampf(y, 0, float32(size.H-1))
	i0 := int(math.Floor(float64(x)))
	j0 := int(math.Floor(float64(y)))
	i1, j1 := i0+1, j0+1
	if i1 > size.W-1 {
		i1 = size.W - 1
	}
	if j1 > size.H-1 {
		j1 = size.H - 1
	}
	fx, fy := x-float32(i0), y-float32(j0)

	v00 := field[gridtypes.Index(size, i0, j0)]
	v10 := field[gridtypes.Index(size, i1, j0)]
	v01 := field[gridtypes.Index(size, i0, j1)]
	v11 := field[gridtypes.Index(size, i1, j1)]

	top := v00.Add(v10.Sub(v00).Scale(fx))
	bot := v01.Add(v11.Sub(v01).Scale(fx))
	return top.Add(bot.Sub(top).Scale(fy))
}

func bilinearVec4(field []gridtypes.Vec4, size gridtypes.Size, x, y float32) gridtypes.Vec4 {
	x = clampf(x, 0, float32(size.W-1))
	y = clampf(y, 0, float32(size.H-1))
	i0 := int(math.Floor(float64(x)))
	j0 := int(math.Floor(float64(y)))
	i1, j1 := i0+1, j0+1
	if i1 > size.W-1 {
		i1 = size.W - 1
	}
	if j1 > size.H-1 {
		j1 = size.H - 1
	}
	fx, fy := x-float32(i0), y-float32(j0)

	lerp := func(a, b gridtypes.Vec4, t float32) gridtypes.Vec4 {
		return gridtypes.Vec4{
			R: a.R + (b.R-a.R)*t,
			G: a.G + (b.G-a.G)*t,
			B: a.B + (b.B-a.B)*t,
			A: a.A + (b.A-a.A)*t,
		}
	}
	v00 := field[gridtypes.Index(size, i0, j0)]
	v10 := field[gridtypes.Index(size, i1, j0)]
	v01 := field[gridtypes.Index(size, i0, j1)]
	v11 := field[gridtypes.Index(size, i1, j1)]
	return lerp(lerp(v00, v10, fx), lerp(v01, v11, fx), fy)
}

func bilinearFloat(field []float32, size gridtypes.Size, x, y float32) float32 {
	x = clampf(x, 0, float32(size.W-1))
	y = clampf(y, 0, float32(size.H-1))
	i0 := int(math.Floor(float64(x)))
	j0 := int(math.Floor(float64(y)))
	i1, j1 := i0+1, j0+1
	if i1 > size.W-1 {
		i1 = size.W - 1
	}
	if j1 > size.H-1 {
		j1 = size.H - 1
	}
	fx, fy := x-float32(i0), y-float32(j0)
	v00 := field[gridtypes.Index(size, i0, j0)]
	v10 := field[gridtypes.Index(size, i1, j0)]
	v01 := field[gridtypes.Index(size, i0, j1)]
	v11 := field[gridtypes.Index(size, i1, j1)]
	top := v00 + (v10-v00)*fx
	bot := v01 + (v11-v01)*fx
	return top + (bot-top)*fy
}

// backtraceRK2 traces (x,y) backward by -dt*velocity(x,y) using the
// midpoint rule (spec.md §4.7: "trace position backward ... using RK2").
func backtraceRK2(velocity []gridtypes.Vec2, size gridtypes.Size, x, y, dt float32) (float32, float32) {
	v0 := bilinearVec2(velocity, size, x, y)
	midX, midY := x-0.5*dt*v0.X, y-0.5*dt*v0.Y
	vMid := bilinearVec2(velocity, size, midX, midY)
	return x - dt*vMid.X, y - dt*vMid.Y
}

// advectVelocityKernel semi-Lagrangian advects the velocity field against
// itself. Resources: velocity (front), back (image). Push constant 8 = dt.
func advectVelocityKernel(ctx *device.KernelContext) error {
	frontImg := ctx.Resources[0].(*Image)
	backImg := ctx.Resources[1].(*Image)
	front := frontImg.Vec2s()
	back := backImg.Vec2s()
	size := frontImg.GridSize()
	dt := ctx.Push[8]

	return ParallelFor(size.H, func(j int) error {
		for i := 0; i < size.W; i++ {
			x, y := backtraceRK2(front, size, float32(i), float32(j), dt)
			back[gridtypes.Index(size, i, j)] = bilinearVec2(front, size, x, y)
		}
		return nil
	})
}

// advectFieldKernel semi-Lagrangian advects an arbitrary vector field
// (density) by the velocity field. Resources: velocity (front), field
// (front), fieldBack (image). Push constant 8 = dt.
func advectFieldKernel(ctx *device.KernelContext) error {
	velocityImg := ctx.Resources[0].(*Image)
	fieldImg := ctx.Resources[1].(*Image)
	backImg := ctx.Resources[2].(*Image)

	velocity := velocityImg.Vec2s()
	field := fieldImg.Vec4s()
	back := backImg.Vec4s()
	size := velocityImg.GridSize()
	dt := ctx.Push[8]

	return ParallelFor(size.H, func(j int) error {
		for i := 0; i < size.W; i++ {
			x, y := backtraceRK2(velocity, size, float32(i), float32(j), dt)
			back[gridtypes.Index(size, i, j)] = bilinearVec4(field, size, x, y)
		}
		return nil
	})
}

// advectParticlesKernel advects each live particle by RK3 (the classic
// third-order Heun weights 2/9, 3/9, 4/9), then projects any particle
// that ended up inside a solid back onto the solid's zero isosurface
// along its estimated gradient. Resources: particles, dispatchParams
// (binding parity only), velocity, solidPhi. Push constant 8 = dt.
// Indirect dispatch over the live particle count.
func advectParticlesKernel(ctx *device.KernelContext) error {
	particles := ctx.Resources[0].(*Buffer).Particles()
	velocityImg := ctx.Resources[2].(*Image)
	solidImg := ctx.Resources[3].(*Image)

	velocity := velocityImg.Vec2s()
	solid := solidImg.Floats()
	size := velocityImg.GridSize()
	dt := ctx.Push[8]

	n := ctx.Count
	if n > len(particles) {
		n = len(particles)
	}
	if n <= 0 {
		return nil
	}

	return ParallelFor(n, func(k int) error {
		x, y := particles[k].Position.X, particles[k].Position.Y

		k1 := bilinearVec2(velocity, size, x, y)
		k2 := bilinearVec2(velocity, size, x+0.5*dt*k1.X, y+0.5*dt*k1.Y)
		k3 := bilinearVec2(velocity, size, x+0.75*dt*k2.X, y+0.75*dt*k2.Y)

		x += dt * (2*k1.X + 3*k2.X + 4*k3.X) / 9
		y += dt * (2*k1.Y + 3*k2.Y + 4*k3.Y) / 9
		x = clampf(x, 0, float32(size.W-1))
		y = clampf(y, 0, float32(size.H-1))

		if phi := bilinearFloat(solid, size, x, y); phi < 0 {
			const eps = 0.5
			gx := (bilinearFloat(solid, size, x+eps, y) - bilinearFloat(solid, size, x-eps, y)) / (2 * eps)
			gy := (bilinearFloat(solid, size, x, y+eps) - bilinearFloat(solid, size, x, y-eps)) / (2 * eps)
			glen := float32(math.Sqrt(float64(gx*gx + gy*gy)))
			if glen > 1e-6 {
				x -= phi * gx / glen
				y -= phi * gy / glen
			}
		}

		particles[k].Position = gridtypes.Vec2{X: clampf(x, 0, float32(size.W-1)), Y: clampf(y, 0, float32(size.H-1))}
		return nil
	})
}
