package software

import (
	"runtime"

	"golang.org/x/sync/errgroup"
)

// ParallelFor fans body(i) out over n independent elements, the CPU
// analogue of a GPU dispatch where threads within a workgroup run
// concurrently and synchronize only at the end of the kernel (spec.md
// §5). Work is chunked across GOMAXPROCS goroutines rather than spawning
// one goroutine per element, since n is typically W*H or the live
// particle count and can run into the millions.
func ParallelFor(n int, body func(i int) error) error {
	if n <= 0 {
		return nil
	}
	workers := runtime.GOMAXPROCS(0)
	if workers > n {
		workers = n
	}
	if workers <= 1 {
		for i := 0; i < n; i++ {
			if err := body(i); err != nil {
				return err
			}
		}
		return nil
	}

	chunk := (n + workers - 1) / workers
	var g errgroup.Group
	for w := 0; w < workers; w++ {
		start := w * chunk
		end := start + chunk
		if start >= n {
			break
		}
		if end > n {
			end = n
		}
		g.Go(func() error {
			for i := start; i < end; i++ {
				if err := body(i); err != nil {
					return err
				}
			}
			return nil
		})
	}
	return g.Wait()
}
