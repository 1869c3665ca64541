// Package par is the fork-join parallel-for used by every merge phase.
// A call returns only after all of its workers have finished, so each
// call is a full barrier.
package par

import (
	"runtime"

	"go.uber.org/atomic"
	"golang.org/x/sync/errgroup"
)

// Range is one worker's contiguous slice [Lo, Hi) of a parallel-for.
type Range struct {
	Worker int
	Lo, Hi int
}

// Workers normalizes a requested worker count.
func Workers(n int) int {
	if n <= 0 {
		return runtime.GOMAXPROCS(0)
	}
	return n
}

// Ranges splits [0, n) into at most workers near-equal contiguous ranges.
// The split depends only on n and workers.
func Ranges(workers, n int) []Range {
	workers = Workers(workers)
	if n <= 0 {
		return nil
	}
	if workers > n {
		workers = n
	}
	ranges := make([]Range, workers)
	chunk, rem := n/workers, n%workers
	lo := 0
	for w := range ranges {
		hi := lo + chunk
		if w < rem {
			hi++
		}
		ranges[w] = Range{Worker: w, Lo: lo, Hi: hi}
		lo = hi
	}
	return ranges
}

// For runs fn once per range of Ranges(workers, n) concurrently.
// It returns the first error after every range has completed.
func For(workers, n int, fn func(r Range) error) error {
	var g errgroup.Group
	for _, r := range Ranges(workers, n) {
		r := r
		g.Go(func() error { return fn(r) })
	}
	return g.Wait()
}

// Each runs fn for every i in [0, n), handing out indices dynamically so
// uneven items balance across workers. worker identifies the calling
// goroutine in [0, Workers(workers)).
func Each(workers, n int, fn func(worker, i int) error) error {
	workers = min(Workers(workers), max(n, 1))
	var next atomic.Int64
	var g errgroup.Group
	for w := 0; w < workers; w++ {
		w := w
		g.Go(func() error {
			for {
				i := int(next.Inc() - 1)
				if i >= n {
					return nil
				}
				if err := fn(w, i); err != nil {
					return err
				}
			}
		})
	}
	return g.Wait()
}
