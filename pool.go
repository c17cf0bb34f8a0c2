package packrat

import "sync"

// scratchIndexPool lends out []int scratch buffers for the array
// converter's indexes_to_include computation (spec §4.3, §5 — "Scratch
// indexes_to_include[] buffers are borrowed from a process-wide pool and
// must be returned on all exit paths"). Every call site that Gets from
// this pool does so with a defer Put, covering the success, error, and
// cancellation exit paths uniformly.
var scratchIndexPool = sync.Pool{
	New: func() any {
		s := make([]int, 0, 16)
		return &s
	},
}
