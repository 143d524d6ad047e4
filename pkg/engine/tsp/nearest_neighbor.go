package tsp

import (
	"math"

	da "github.com/lintang-b-s/courierx/pkg/datastructure"
)

// nearestNeighbor builds a greedy tour from start, always moving to the closest reachable index whose
// pickup is already visited (lowest index on ties). ok is false when the walk gets stuck or cannot
// return to start.
func nearestNeighbor(m *da.CostMatrix, prec da.Precedence, start int) ([]int, float64, bool) {
	n := m.Size()
	visited := make([]bool, n)
	tour := make([]int, 0, n)
	tour = append(tour, start)
	visited[start] = true

	cost := 0.0
	last := start
	for len(tour) < n {
		next, best := -1, math.Inf(1)
		for v := 0; v < n; v++ {
			if visited[v] || !m.IsFinite(last, v) || !precedenceSatisfied(v, prec, visited) {
				continue
			}
			if w := m.At(last, v); w < best {
				next, best = v, w
			}
		}
		if next < 0 {
			return nil, math.Inf(1), false
		}
		visited[next] = true
		tour = append(tour, next)
		cost += best
		last = next
	}

	if !m.IsFinite(last, start) {
		return nil, math.Inf(1), false
	}
	return tour, cost + m.At(last, start), true
}
