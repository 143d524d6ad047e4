package tsp

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/lintang-b-s/courierx/pkg"
	da "github.com/lintang-b-s/courierx/pkg/datastructure"
	"github.com/lintang-b-s/courierx/pkg/metrics"
)

/*
branch-and-bound over permutations of the cost matrix indices, with pickup-before-delivery precedence.

  - incumbent: precedence aware nearest-neighbour tour from start (if it completes).
  - bound: cost + (#unvisited) * (smallest finite off-diagonal weight) >= best -> prune.
  - branching: legal candidates (unvisited, pickup visited, finite edge) in increasing edge cost, ties by index.
  - terminal: closing edge back to start, incumbent replaced only by a strictly cheaper tour.

visited/path are owned by the searcher and restored on every backtrack.
*/
type searcher struct {
	ctx context.Context

	n       int
	start   int
	m       *da.CostMatrix
	prec    da.Precedence
	minEdge float64

	visited []bool
	path    []int

	bestTour []int
	bestCost float64

	expanded    int64
	maxNodes    int64
	useDeadline bool
	deadline    time.Time
	stopErr     error
}

// Solve returns the minimum cost closed tour through every index of m starting at start. prec may be
// nil for no constraints. When the budget runs out the best tour found so far is returned with
// Optimal=false; if none was found the error wraps both ErrInfeasible and ErrBudgetExhausted.
func Solve(ctx context.Context, m *da.CostMatrix, prec da.Precedence, start int, opts Options) (Result, error) {
	if m == nil || m.Size() == 0 {
		return Result{}, ErrDimensionMismatch
	}
	n := m.Size()
	if start < 0 || start >= n {
		return Result{}, fmt.Errorf("%w: %d not in [0, %d)", ErrStartOutOfRange, start, n)
	}
	if err := m.Validate(); err != nil {
		return Result{}, fmt.Errorf("%w: %w", ErrNegativeWeight, err)
	}
	if prec != nil {
		if len(prec) != n {
			return Result{}, fmt.Errorf("%w: %d constraints for %d indices", ErrDimensionMismatch, len(prec), n)
		}
		if err := prec.Validate(n); err != nil {
			return Result{}, fmt.Errorf("%w: %w", ErrBadPrecedence, err)
		}
		if prec.Constrained(start) {
			// the start is visited first, nothing can precede it
			metrics.SolverRuns.WithLabelValues("infeasible").Inc()
			return Result{}, fmt.Errorf("%w: start %d requires pickups %v", ErrInfeasible, start, prec[start])
		}
	}

	if n == 1 {
		metrics.SolverRuns.WithLabelValues("optimal").Inc()
		return Result{Tour: []int{start}, Cost: 0, Optimal: true}, nil
	}

	s := &searcher{
		ctx:      ctx,
		n:        n,
		start:    start,
		m:        m,
		prec:     prec,
		minEdge:  m.MinFiniteOffDiagonal(),
		visited:  make([]bool, n),
		path:     make([]int, 0, n),
		bestCost: math.Inf(1),
		maxNodes: opts.MaxNodes,
	}
	if opts.TimeLimit > 0 {
		s.useDeadline = true
		s.deadline = time.Now().Add(opts.TimeLimit)
	}

	if !opts.DisableSeed {
		if tour, cost, ok := nearestNeighbor(m, prec, start); ok {
			s.bestTour = tour
			s.bestCost = cost
		}
	}

	s.visited[start] = true
	s.path = append(s.path, start)
	s.branch(0)

	metrics.SolverExpandedNodes.Add(float64(s.expanded))

	if s.stopErr != nil {
		if s.ctx.Err() != nil && s.stopErr == s.ctx.Err() {
			metrics.SolverRuns.WithLabelValues("canceled").Inc()
			return Result{Expanded: s.expanded}, s.stopErr
		}
		if s.bestTour == nil {
			metrics.SolverRuns.WithLabelValues("infeasible").Inc()
			return Result{Expanded: s.expanded}, fmt.Errorf("%w: %w after %d expansions", ErrInfeasible, ErrBudgetExhausted, s.expanded)
		}
		metrics.SolverRuns.WithLabelValues("budget").Inc()
		return Result{Tour: s.bestTour, Cost: s.bestCost, Optimal: false, Expanded: s.expanded}, nil
	}

	if s.bestTour == nil {
		metrics.SolverRuns.WithLabelValues("infeasible").Inc()
		return Result{Expanded: s.expanded}, ErrInfeasible
	}
	metrics.SolverRuns.WithLabelValues("optimal").Inc()
	return Result{Tour: s.bestTour, Cost: s.bestCost, Optimal: true, Expanded: s.expanded}, nil
}

// budgetExceeded checks the node budget on every expansion and the clock/context every
// SOLVER_CHECK_INTERVAL expansions.
func (s *searcher) budgetExceeded() bool {
	if s.stopErr != nil {
		return true
	}
	s.expanded++
	if s.maxNodes > 0 && s.expanded > s.maxNodes {
		s.stopErr = ErrBudgetExhausted
		return true
	}
	if s.expanded%pkg.SOLVER_CHECK_INTERVAL != 0 {
		return false
	}
	if err := s.ctx.Err(); err != nil {
		s.stopErr = err
		return true
	}
	if s.useDeadline && time.Now().After(s.deadline) {
		s.stopErr = ErrBudgetExhausted
		return true
	}
	return false
}

func (s *searcher) branch(cost float64) {
	if s.budgetExceeded() {
		return
	}

	last := s.path[len(s.path)-1]
	if len(s.path) == s.n {
		if !s.m.IsFinite(last, s.start) {
			return
		}
		if total := cost + s.m.At(last, s.start); total < s.bestCost {
			s.bestCost = total
			s.bestTour = append(make([]int, 0, s.n), s.path...)
		}
		return
	}

	if cost+float64(s.n-len(s.path))*s.minEdge >= s.bestCost {
		return
	}

	for _, v := range s.candidates(last) {
		newCost := cost + s.m.At(last, v)
		if newCost >= s.bestCost {
			continue
		}

		s.visited[v] = true
		s.path = append(s.path, v)
		s.branch(newCost)
		s.path = s.path[:len(s.path)-1]
		s.visited[v] = false

		if s.stopErr != nil {
			return
		}
	}
}

// candidates lists the legal successors of last, cheapest edge first.
func (s *searcher) candidates(last int) []int {
	cands := make([]int, 0, s.n-len(s.path))
	for v := 0; v < s.n; v++ {
		if s.visited[v] || !s.m.IsFinite(last, v) || !precedenceSatisfied(v, s.prec, s.visited) {
			continue
		}
		cands = append(cands, v)
	}
	sort.SliceStable(cands, func(i, j int) bool {
		return s.m.At(last, cands[i]) < s.m.At(last, cands[j])
	})
	return cands
}
