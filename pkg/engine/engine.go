package engine

import (
	"context"
	"time"

	"github.com/google/uuid"
	da "github.com/lintang-b-s/courierx/pkg/datastructure"
	"github.com/lintang-b-s/courierx/pkg/engine/partition"
	"github.com/lintang-b-s/courierx/pkg/engine/routing"
	"github.com/lintang-b-s/courierx/pkg/engine/tour"
	"github.com/lintang-b-s/courierx/pkg/engine/tsp"
	"github.com/lintang-b-s/courierx/pkg/landmark"
	"github.com/lintang-b-s/courierx/pkg/metrics"
	"github.com/lintang-b-s/courierx/pkg/spatialindex"
	"go.uber.org/zap"
)

type Config struct {
	Heuristic         string
	LandmarkCount     int
	MatrixWorkers     int
	LegCacheSize      int
	SolverOptions     tsp.Options
	PartitionParallel bool
	SnapRadiusKM      float64
}

// Engine answers planning requests over one road graph.
type Engine struct {
	graph  *da.RoadGraph
	spe    *routing.ShortestPathEngine
	rtree  *spatialindex.Rtree
	cfg    Config
	logger *zap.Logger
}

func (e *Engine) GetGraph() *da.RoadGraph {
	return e.graph
}

func (e *Engine) GetShortestPathEngine() *routing.ShortestPathEngine {
	return e.spe
}

// NewEngine loads the graph snapshot and, when landmarkFilePath is not empty, the landmarks written
// by the preprocessor.
func NewEngine(graphFilePath, landmarkFilePath string, cfg Config, logger *zap.Logger) (*Engine, error) {
	logger.Info("Reading graph from ", zap.String("graphFilePath", graphFilePath))
	graph, err := da.ReadGraph(graphFilePath)
	if err != nil {
		return nil, err
	}

	var lm *landmark.Landmark
	if landmarkFilePath != "" && cfg.Heuristic == routing.HEURISTIC_LANDMARK {
		logger.Info("Reading landmarks from ", zap.String("landmarkFilePath", landmarkFilePath))
		lm, err = landmark.ReadLandmark(landmarkFilePath)
		if err != nil {
			return nil, err
		}
	}
	return NewEngineFromGraph(graph, lm, cfg, logger)
}

// NewInlineEngine builds an engine over a graph sent with a single request. It is dropped with the
// request, so it keeps no leg cache.
func NewInlineEngine(graph *da.RoadGraph, cfg Config, logger *zap.Logger) (*Engine, error) {
	cfg.LegCacheSize = 0
	return NewEngineFromGraph(graph, nil, cfg, logger)
}

// NewEngineFromGraph builds the routing structures over an in-memory graph. Landmarks are computed
// here when the landmark heuristic is selected and lm is nil.
func NewEngineFromGraph(graph *da.RoadGraph, lm *landmark.Landmark, cfg Config, logger *zap.Logger) (*Engine, error) {
	if graph.NumberOfVertices() == 0 {
		return nil, da.ErrEmptyRoadGraph
	}
	if cfg.Heuristic == routing.HEURISTIC_LANDMARK && lm == nil {
		lm = landmark.NewLandmark()
		k := min(cfg.LandmarkCount, graph.NumberOfVertices())
		if err := lm.PreprocessALT(k, graph, logger); err != nil {
			return nil, err
		}
	}
	heuristic, err := routing.NewHeuristic(cfg.Heuristic, graph, lm)
	if err != nil {
		return nil, err
	}

	spe, err := routing.NewShortestPathEngine(graph, heuristic, logger, cfg.MatrixWorkers).WithLegCache(cfg.LegCacheSize)
	if err != nil {
		return nil, err
	}

	rt := spatialindex.NewRtree()
	rt.Build(graph, cfg.SnapRadiusKM/4, logger)

	return &Engine{
		graph:  graph,
		spe:    spe,
		rtree:  rt,
		cfg:    cfg,
		logger: logger,
	}, nil
}

type PlanRequest struct {
	Demand       da.DemandSet
	CourierCount int
	// SpeedMetersPerSecond courier speed used to turn distances into travel time.
	SpeedMetersPerSecond float64
	MaxDurationSeconds   float64
}

type Plan struct {
	ID                  string           `json:"id"`
	VertexOrder         []int64          `json:"vertex_order"`
	Couriers            []da.CourierTour `json:"couriers"`
	TotalDistanceMeters float64          `json:"total_distance_meters"`
	Feasible            bool             `json:"feasible"`
}

func planMode(courierCount int) string {
	switch {
	case courierCount == 0:
		return "unlimited"
	case courierCount == 1:
		return "single"
	default:
		return "counted"
	}
}

// BuildModel computes the POI model (vertex order, cost matrix, leg paths, precedence) of a demand.
func (e *Engine) BuildModel(ctx context.Context, demand da.DemandSet) (*da.POIModel, error) {
	return e.spe.BuildPOIModel(ctx, demand)
}

// Plan runs one planning request end to end. emit, when not nil, receives every courier tour as soon
// as it is final.
func (e *Engine) Plan(ctx context.Context, req PlanRequest, emit partition.EmitFunc) (*Plan, error) {
	start := time.Now()
	model, err := e.spe.BuildPOIModel(ctx, req.Demand)
	if err != nil {
		return nil, err
	}

	p, err := partition.NewPartitioner(model, req.Demand, partition.Config{
		CourierCount:         req.CourierCount,
		SpeedMetersPerSecond: req.SpeedMetersPerSecond,
		MaxDurationSeconds:   req.MaxDurationSeconds,
		Parallel:             e.cfg.PartitionParallel,
		Workers:              e.cfg.MatrixWorkers,
		SolverOptions:        e.cfg.SolverOptions,
	}, e.logger)
	if err != nil {
		return nil, err
	}

	couriers, err := p.Partition(ctx, emit)
	if err != nil {
		return nil, err
	}

	plan := &Plan{
		ID:          uuid.NewString(),
		VertexOrder: model.GetVertexOrder(),
		Couriers:    couriers,
		Feasible:    true,
	}
	for _, ct := range couriers {
		plan.TotalDistanceMeters += ct.DistanceMeters
		if ct.Failed {
			plan.Feasible = false
		}
	}

	took := time.Since(start)
	metrics.PlanDuration.WithLabelValues(planMode(req.CourierCount)).Observe(took.Seconds())
	e.logger.Info("plan computed", zap.String("plan_id", plan.ID), zap.Int("pois", model.Size()),
		zap.Int("couriers", len(couriers)), zap.Bool("feasible", plan.Feasible), zap.Duration("took", took))
	return plan, nil
}

// BestTour solves the single courier tour over every POI of the demand and returns it with its road path.
func (e *Engine) BestTour(ctx context.Context, demand da.DemandSet) (da.Tour, []int64, error) {
	model, err := e.spe.BuildPOIModel(ctx, demand)
	if err != nil {
		return da.Tour{}, nil, err
	}
	res, err := tsp.Solve(ctx, model.GetCostMatrix(), model.GetPrecedence(), model.GetDepotIndex(), e.cfg.SolverOptions)
	if err != nil {
		return da.Tour{}, nil, err
	}
	t := tour.Build(res, model.GetVertexOrder(), model.GetCostMatrix(), da.StopRoles(demand))
	path, err := tour.Assemble(t.NodeIDs(), model)
	if err != nil {
		return da.Tour{}, nil, err
	}
	return t, path, nil
}

// SnapToRoad returns the id of the road node nearest to a coordinate, within the configured radius.
func (e *Engine) SnapToRoad(lat, lon float64) (int64, float64, error) {
	u, dist, err := e.rtree.SnapToNode(lat, lon, e.cfg.SnapRadiusKM)
	if err != nil {
		return 0, 0, err
	}
	return e.graph.GetNodeID(u), dist, nil
}

// Segments renders a road path as segments with their street names.
func (e *Engine) Segments(path []int64) ([]da.RoadSegment, error) {
	return tour.Segments(e.graph, path)
}

// Polyline encodes a road path.
func (e *Engine) Polyline(path []int64) (string, error) {
	return tour.Polyline(e.graph, path)
}
