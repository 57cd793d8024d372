// Package levelset implements the signed-distance field machinery of
// spec.md §4.6: iterative redistancing back to |grad(phi)| = 1, and a
// single-cell extrapolation into a bound solid region so sampling near an
// obstacle never reads an undefined interior value.
package levelset

import (
	"github.com/vortex2d-go/fluid/device"
	"github.com/vortex2d-go/fluid/gridtypes"
)

const localSize = 16

// LevelSet wraps a signed-distance image with the scratch images
// Reinitialise and Extrapolate need (LevelSet.h: mLevelSet0, mLevelSetBack).
type LevelSet struct {
	dev  device.Device
	size gridtypes.Size

	value device.Image // the current field, always the logically "front" image after any call returns
	back  device.Image
	phi0  device.Image // fixed sign/zero-isosurface reference for one Reinitialise call

	copyPhi0    *device.Bound // phi0 := value
	copyValue   *device.Bound // value := back (used to normalize parity after an odd iteration count)
	redistFwd   *device.Bound // back := redistance(value, phi0)
	redistBwd   *device.Bound // value := redistance(back, phi0)
	extrapolate *device.Bound // back := extrapolate(solidPhi, value)
}

// New allocates a zeroed level set of the given size.
func New(dev device.Device, size gridtypes.Size) (*LevelSet, error) {
	value, err := dev.CreateImage(device.ImageDescriptor{Label: "levelset.value", Size: [2]int{size.W, size.H}, Element: device.ElementFloat32})
	if err != nil {
		return nil, err
	}
	back, err := dev.CreateImage(device.ImageDescriptor{Label: "levelset.back", Size: [2]int{size.W, size.H}, Element: device.ElementFloat32})
	if err != nil {
		return nil, err
	}
	phi0, err := dev.CreateImage(device.ImageDescriptor{Label: "levelset.phi0", Size: [2]int{size.W, size.H}, Element: device.ElementFloat32})
	if err != nil {
		return nil, err
	}

	ls := &LevelSet{dev: dev, size: size, value: value, back: back, phi0: phi0}

	copyPhi0Work, err := dev.NewWork("CopyBack", [3]int{localSize, localSize, 1}, 2)
	if err != nil {
		return nil, err
	}
	ls.copyPhi0, err = copyPhi0Work.Bind([]device.Resource{phi0, value}, [2]int{size.W, size.H})
	if err != nil {
		return nil, err
	}

	copyValueWork, err := dev.NewWork("CopyBack", [3]int{localSize, localSize, 1}, 2)
	if err != nil {
		return nil, err
	}
	ls.copyValue, err = copyValueWork.Bind([]device.Resource{value, back}, [2]int{size.W, size.H})
	if err != nil {
		return nil, err
	}

	redistFwdWork, err := dev.NewWork("Redistance", [3]int{localSize, localSize, 1}, 3)
	if err != nil {
		return nil, err
	}
	ls.redistFwd, err = redistFwdWork.Bind([]device.Resource{phi0, value, back}, [2]int{size.W, size.H})
	if err != nil {
		return nil, err
	}

	redistBwdWork, err := dev.NewWork("Redistance", [3]int{localSize, localSize, 1}, 3)
	if err != nil {
		return nil, err
	}
	ls.redistBwd, err = redistBwdWork.Bind([]device.Resource{phi0, back, value}, [2]int{size.W, size.H})
	if err != nil {
		return nil, err
	}

	return ls, nil
}

// Value returns the current signed-distance image.
func (ls *LevelSet) Value() device.Image { return ls.value }

// Reinitialise runs iters Godunov-upwind pseudo-time steps pushing the
// field back toward |grad(phi)| = 1 while holding its current zero
// isosurface fixed (spec.md §4.6: "iters ≈ max(W,H) for full propagation").
func (ls *LevelSet) Reinitialise(iters int) error {
	if iters <= 0 {
		return nil
	}
	if err := ls.dev.ExecuteOnce(func(rec *device.Recorder) {
		ls.copyPhi0.Record(rec)
	}); err != nil {
		return err
	}
	if err := ls.dev.ExecuteOnce(func(rec *device.Recorder) {
		for k := 0; k < iters; k++ {
			if k%2 == 0 {
				ls.redistFwd.Record(rec)
			} else {
				ls.redistBwd.Record(rec)
			}
		}
	}); err != nil {
		return err
	}
	if iters%2 == 1 {
		// An odd iteration count leaves the result in back; copy it so
		// Value() always returns the current field.
		return ls.dev.ExecuteOnce(func(rec *device.Recorder) {
			ls.copyValue.Record(rec)
		})
	}
	return nil
}

// ExtrapolateBind binds the solid level set this field extrapolates into
// when Extrapolate is called (LevelSet.h: "Bind a solid level set").
func (ls *LevelSet) ExtrapolateBind(solidPhi device.Image) error {
	work, err := ls.dev.NewWork("Extrapolate", [3]int{localSize, localSize, 1}, 3)
	if err != nil {
		return err
	}
	ls.extrapolate, err = work.Bind([]device.Resource{solidPhi, ls.value, ls.back}, [2]int{ls.size.W, ls.size.H})
	if err != nil {
		return err
	}
	return nil
}

// Extrapolate performs a single-cell extrapolation of this field into the
// bound solid region (LevelSet.h: "This only performs a single cell
// extrapolation").
func (ls *LevelSet) Extrapolate() error {
	return ls.dev.ExecuteOnce(func(rec *device.Recorder) {
		ls.extrapolate.Record(rec)
		ls.copyValue.Record(rec)
	})
}
