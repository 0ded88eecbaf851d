package pipeline

import (
	"sync"

	"github.com/panjf2000/ants/v2"
)

// boundedPool runs a fixed number of index-addressable tasks with at most
// size goroutines in flight at once, preserving the caller's ability to
// write results back to the original index. It backs the excerpt
// embedding batches and the step generator's per-chunk fan-out.
type boundedPool struct {
	pool *ants.Pool
}

// newBoundedPool creates a pool with the given worker capacity. Callers
// must call Release when done.
func newBoundedPool(size int) (*boundedPool, error) {
	if size < 1 {
		size = 1
	}
	p, err := ants.NewPool(size, ants.WithPreAlloc(true))
	if err != nil {
		return nil, err
	}
	return &boundedPool{pool: p}, nil
}

func (b *boundedPool) Release() {
	b.pool.Release()
}

// Run submits n independent tasks, waits for all to finish, and returns.
// fn receives the task index; it is responsible for writing its own result
// into a slice the caller owns (no shared mutable accumulation here) so
// results come back in the original order without further sorting.
func (b *boundedPool) Run(n int, fn func(i int)) {
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		i := i
		// Submit blocks while the pool is saturated; that blocking is
		// what bounds concurrency here.
		_ = b.pool.Submit(func() {
			defer wg.Done()
			fn(i)
		})
	}
	wg.Wait()
}
