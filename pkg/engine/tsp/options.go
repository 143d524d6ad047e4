package tsp

import "time"

// Options bounds the branch-and-bound search. The zero value searches until optimality is proven.
type Options struct {
	// MaxNodes caps the number of expanded search nodes, 0 means unbounded.
	MaxNodes int64
	// TimeLimit caps wall-clock search time, 0 means unbounded.
	TimeLimit time.Duration
	// DisableSeed skips the nearest-neighbour incumbent.
	DisableSeed bool
}

func DefaultOptions() Options {
	return Options{}
}

// Result of one solve. Tour starts at the start index and does not repeat it at the end; Cost includes
// the closing leg. Optimal is false when the budget ran out before the search space was exhausted.
type Result struct {
	Tour     []int
	Cost     float64
	Optimal  bool
	Expanded int64
}
