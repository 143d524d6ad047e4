package usecases

import (
	"context"

	da "github.com/lintang-b-s/courierx/pkg/datastructure"
	"github.com/lintang-b-s/courierx/pkg/engine"
	"github.com/lintang-b-s/courierx/pkg/engine/partition"
)

type PlanEngine interface {
	Plan(ctx context.Context, req engine.PlanRequest, emit partition.EmitFunc) (*engine.Plan, error)
	BuildModel(ctx context.Context, demand da.DemandSet) (*da.POIModel, error)
	SnapToRoad(lat, lon float64) (int64, float64, error)
	Segments(path []int64) ([]da.RoadSegment, error)
	Polyline(path []int64) (string, error)
}

// EngineFactory builds an engine over a graph sent inline with a request.
type EngineFactory func(graph *da.RoadGraph) (PlanEngine, error)
