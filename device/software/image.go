package software

import (
	"github.com/google/uuid"

	"github.com/vortex2d-go/fluid/device"
	"github.com/vortex2d-go/fluid/gridtypes"
)

// Image is the CPU-resident implementation of device.Image: a 2D grid of
// one typed element (spec.md §3's velocity/solidPhi/liquidPhi/density/
// count fields). Front/back ping-pong is modeled by Ring, not by this
// type directly.
type Image struct {
	id    uuid.UUID
	label string
	size  gridtypes.Size
	elem  device.Element

	f32   []float32
	vec2  []gridtypes.Vec2
	ivec2 []gridtypes.IVec2
	vec4  []gridtypes.Vec4
	i32   []int32
}

// NewImage allocates a zeroed image for desc.
func NewImage(desc device.ImageDescriptor) *Image {
	size := gridtypes.Size{W: desc.Size[0], H: desc.Size[1]}
	img := &Image{
		id:    uuid.New(),
		label: desc.Label,
		size:  size,
		elem:  desc.Element,
	}
	n := size.N()
	switch desc.Element {
	case device.ElementFloat32:
		img.f32 = make([]float32, n)
	case device.ElementVec2:
		img.vec2 = make([]gridtypes.Vec2, n)
	case device.ElementIVec2:
		img.ivec2 = make([]gridtypes.IVec2, n)
	case device.ElementVec4:
		img.vec4 = make([]gridtypes.Vec4, n)
	case device.ElementInt32:
		img.i32 = make([]int32, n)
	}
	return img
}

func (img *Image) Label() string         { return img.label }
func (img *Image) Release()              {}
func (img *Image) Size() [2]int          { return [2]int{img.size.W, img.size.H} }
func (img *Image) GridSize() gridtypes.Size { return img.size }
func (img *Image) Element() device.Element { return img.elem }

// Floats returns the backing []float32 slice, row-major by gridtypes.Index.
func (img *Image) Floats() []float32 { return img.f32 }

// Vec2s returns the backing []gridtypes.Vec2 slice.
func (img *Image) Vec2s() []gridtypes.Vec2 { return img.vec2 }

// IVec2s returns the backing []gridtypes.IVec2 slice.
func (img *Image) IVec2s() []gridtypes.IVec2 { return img.ivec2 }

// Vec4s returns the backing []gridtypes.Vec4 slice (used for density).
func (img *Image) Vec4s() []gridtypes.Vec4 { return img.vec4 }

// Ints returns the backing []int32 slice (used for the particle count image).
func (img *Image) Ints() []int32 { return img.i32 }

// At returns the float value at (i,j).
func (img *Image) At(i, j int) float32 { return img.f32[gridtypes.Index(img.size, i, j)] }

// Set sets the float value at (i,j).
func (img *Image) Set(i, j int, v float32) { img.f32[gridtypes.Index(img.size, i, j)] = v }

// VecAt returns the vec2 value at (i,j).
func (img *Image) VecAt(i, j int) gridtypes.Vec2 { return img.vec2[gridtypes.Index(img.size, i, j)] }

// SetVec sets the vec2 value at (i,j).
func (img *Image) SetVec(i, j int, v gridtypes.Vec2) { img.vec2[gridtypes.Index(img.size, i, j)] = v }

// CopyFrom overwrites this image's contents with src's.
func (img *Image) CopyFrom(src *Image) {
	switch img.elem {
	case device.ElementFloat32:
		copy(img.f32, src.f32)
	case device.ElementVec2:
		copy(img.vec2, src.vec2)
	case device.ElementIVec2:
		copy(img.ivec2, src.ivec2)
	case device.ElementVec4:
		copy(img.vec4, src.vec4)
	case device.ElementInt32:
		copy(img.i32, src.i32)
	}
}

// Clear zeroes the image.
func (img *Image) Clear() {
	switch img.elem {
	case device.ElementFloat32:
		for i := range img.f32 {
			img.f32[i] = 0
		}
	case device.ElementVec2:
		for i := range img.vec2 {
			img.vec2[i] = gridtypes.Vec2{}
		}
	case device.ElementIVec2:
		for i := range img.ivec2 {
			img.ivec2[i] = gridtypes.IVec2{}
		}
	case device.ElementVec4:
		for i := range img.vec4 {
			img.vec4[i] = gridtypes.Vec4{}
		}
	case device.ElementInt32:
		for i := range img.i32 {
			img.i32[i] = 0
		}
	}
}

// Ring is a front/back double-buffered image, swapped by rotating an
// index rather than copying data (spec.md §9: "a two-element ring").
type Ring struct {
	images [2]*Image
	front  int
}

// NewRing allocates a front and back image for desc.
func NewRing(desc device.ImageDescriptor) *Ring {
	return &Ring{images: [2]*Image{NewImage(desc), NewImage(desc)}}
}

// Front returns the currently-readable image.
func (r *Ring) Front() *Image { return r.images[r.front] }

// Back returns the currently-writable image.
func (r *Ring) Back() *Image { return r.images[1-r.front] }

// Swap rotates front and back.
func (r *Ring) Swap() { r.front = 1 - r.front }
