// Package scan implements PrefixScan (spec.md §4.3): an exclusive scan
// over per-cell particle counts, producing both the scatter index used by
// the particle bucketing kernel and a refreshed DispatchParams so
// downstream kernels only dispatch over live particles.
package scan

import "github.com/vortex2d-go/fluid/device"

// PrefixScan binds a count buffer, an index output buffer and a
// DispatchParams output buffer.
type PrefixScan struct {
	work *device.Work
}

// New constructs a PrefixScan for a grid of the given size.
func New(dev device.Device, size [2]int) (*PrefixScan, error) {
	work, err := dev.NewWork("PrefixScan", [3]int{256, 1, 1}, 3)
	if err != nil {
		return nil, err
	}
	return &PrefixScan{work: work}, nil
}

// Bind records the scan: index[k] = sum(count[0:k]), and dispatchParams
// is refreshed from the total.
func (p *PrefixScan) Bind(count, index, dispatchParams device.Buffer) (*device.Bound, error) {
	return p.work.Bind([]device.Resource{count, index, dispatchParams}, [2]int{1, 1})
}
