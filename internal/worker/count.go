package worker

import "runtime"

// maxAutoWorkers caps the automatic pool size; each worker drives a CPU-bound
// transcoder process.
const maxAutoWorkers = 4

// Count resolves the pool size. A positive configured value wins; otherwise
// one worker per schedulable CPU, capped at maxAutoWorkers.
func Count(configured int) int {
	if configured > 0 {
		return configured
	}
	// GOMAXPROCS respects container CPU limits where NumCPU does not.
	n := runtime.GOMAXPROCS(0)
	if n > maxAutoWorkers {
		n = maxAutoWorkers
	}
	if n < 1 {
		n = 1
	}
	return n
}
