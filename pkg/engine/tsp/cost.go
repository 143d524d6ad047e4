package tsp

import (
	"math"

	da "github.com/lintang-b-s/courierx/pkg/datastructure"
)

// TourCost sums the legs of the closed tour, +Inf if any leg is unreachable.
func TourCost(m *da.CostMatrix, tour []int) float64 {
	if len(tour) == 0 {
		return 0
	}
	total := 0.0
	for i := 0; i < len(tour); i++ {
		from, to := tour[i], tour[(i+1)%len(tour)]
		if !m.IsFinite(from, to) {
			return math.Inf(1)
		}
		total += m.At(from, to)
	}
	return total
}

// RespectsPrecedence reports whether every constrained index of the tour comes after all of its pickups.
func RespectsPrecedence(tour []int, prec da.Precedence) bool {
	pos := make(map[int]int, len(tour))
	for i, v := range tour {
		pos[v] = i
	}
	for _, v := range tour {
		if v >= len(prec) {
			continue
		}
		for _, pickup := range prec[v] {
			p, ok := pos[pickup]
			if !ok || p >= pos[v] {
				return false
			}
		}
	}
	return true
}

func precedenceSatisfied(v int, prec da.Precedence, visited []bool) bool {
	return prec == nil || prec.Satisfied(v, visited)
}
