// Package reduce implements ReduceSum and ReduceMax (spec.md §4.2): tree
// reductions of a float buffer down to a single element, used by the
// conjugate-gradient driver for dot products and the residual norm.
package reduce

import "github.com/vortex2d-go/fluid/device"

// Reducer binds an input buffer of N elements to a 1-element output
// buffer and records the reduction.
type Reducer struct {
	work *device.Work
}

// NewSum constructs a Reducer that computes the sum of its input.
func NewSum(dev device.Device) (*Reducer, error) {
	return newReducer(dev, "ReduceSum")
}

// NewMax constructs a Reducer that computes max(|x|) of its input, the
// infinity norm used by the CG driver's convergence check.
func NewMax(dev device.Device) (*Reducer, error) {
	return newReducer(dev, "ReduceMax")
}

func newReducer(dev device.Device, kernel string) (*Reducer, error) {
	work, err := dev.NewWork(kernel, [3]int{256, 1, 1}, 2)
	if err != nil {
		return nil, err
	}
	return &Reducer{work: work}, nil
}

// Bind records all intermediate dispatches reducing input into the single
// element of output.
func (r *Reducer) Bind(input, output device.Buffer) (*device.Bound, error) {
	return r.work.Bind([]device.Resource{input, output}, [2]int{1, 1})
}

// DotProduct binds a fused multiply-then-sum reduction: output[0] :=
// sum(x[i]*y[i]), the inner product the CG driver needs every iteration
// (spec.md §4.5.1).
type DotProduct struct {
	work *device.Work
}

// NewDot constructs a DotProduct reducer.
func NewDot(dev device.Device) (*DotProduct, error) {
	work, err := dev.NewWork("ReduceDot", [3]int{256, 1, 1}, 3)
	if err != nil {
		return nil, err
	}
	return &DotProduct{work: work}, nil
}

// Bind records the fused dot-product reduction of x and y into output.
func (r *DotProduct) Bind(x, y, output device.Buffer) (*device.Bound, error) {
	return r.work.Bind([]device.Resource{x, y, output}, [2]int{1, 1})
}
