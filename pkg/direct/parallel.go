package direct

import "sync"

type indexRange struct {
	lo, hi int
}

// parallelFor splits [0,n) into contiguous ranges of ceil(n/nWorkers)
// indices, so at most nWorkers of them, and uses a pool of goroutines
// to run fn on each. It blocks until every range
// is done.
func parallelFor(n, nWorkers int, fn func(lo, hi int)) {
	if n <= 0 {
		return
	}
	if nWorkers < 1 {
		nWorkers = 1
	}
	if nWorkers > n {
		nWorkers = n
	}

	var wg sync.WaitGroup
	jobsChan := make(chan indexRange, nWorkers)

	// Kick off worker pool
	for i := 0; i < nWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range jobsChan {
				fn(job.lo, job.hi)
			}
		}()
	}

	// Feed in jobs
	chunk := (n + nWorkers - 1) / nWorkers
	for lo := 0; lo < n; lo += chunk {
		hi := lo + chunk
		if hi > n {
			hi = n
		}
		jobsChan <- indexRange{lo, hi}
	}

	close(jobsChan)
	wg.Wait()
}
