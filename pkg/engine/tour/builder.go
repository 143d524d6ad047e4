package tour

import (
	da "github.com/lintang-b-s/courierx/pkg/datastructure"
	"github.com/lintang-b-s/courierx/pkg/engine/tsp"
)

// Build turns a solver result over model indices into typed tour steps. order maps solver indices to
// POI node ids; roles classifies them.
func Build(res tsp.Result, order []int64, costs *da.CostMatrix, roles map[int64]da.StopType) da.Tour {
	steps := make([]da.TourStep, 0, len(res.Tour))
	cumulative := 0.0
	for i, idx := range res.Tour {
		leg := 0.0
		if i > 0 {
			leg = costs.At(res.Tour[i-1], idx)
		}
		cumulative += leg

		nodeId := order[idx]
		t, ok := roles[nodeId]
		if !ok {
			t = da.STOP_UNKNOWN
		}
		steps = append(steps, da.TourStep{
			Index:          i,
			NodeID:         nodeId,
			Type:           t,
			Label:          da.StopLabel(t, nodeId),
			LegCost:        leg,
			CumulativeCost: cumulative,
		})
	}
	return da.Tour{
		Steps:     steps,
		TotalCost: res.Cost,
		Optimal:   res.Optimal,
	}
}
