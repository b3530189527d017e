// FILE: strata/timing.go
package strata

import "time"

// Core timing constants for file watching.
const (
	// DefaultDebounce is the quiet period that coalesces a burst of
	// file events (editor save dances, atomic rename sequences) into
	// a single reload.
	DefaultDebounce = 500 * time.Millisecond

	// MinDebounce is the hard floor applied to configured debounce
	// values so a zero or tiny setting still coalesces.
	MinDebounce = 10 * time.Millisecond
)
