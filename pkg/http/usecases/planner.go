package usecases

import (
	"context"
	"errors"
	"time"

	da "github.com/lintang-b-s/courierx/pkg/datastructure"
	"github.com/lintang-b-s/courierx/pkg/engine"
	"github.com/lintang-b-s/courierx/pkg/engine/partition"
	"github.com/lintang-b-s/courierx/pkg/engine/routing"
	"github.com/lintang-b-s/courierx/pkg/engine/tsp"
	"github.com/lintang-b-s/courierx/pkg/spatialindex"
	"github.com/lintang-b-s/courierx/pkg/util"
	"go.uber.org/zap"
)

var (
	ErrNoServerGraph   = errors.New("no road graph loaded on the server, send one with the request")
	ErrMissingLocation = errors.New("location needs a node_id or both lat and lon")
)

// Location is a POI given either by road node id or by coordinates to snap.
type Location struct {
	NodeID *int64
	Lat    *float64
	Lon    *float64
}

type RequestInput struct {
	Pickup                 Location
	Delivery               Location
	PickupServiceSeconds   float64
	DeliveryServiceSeconds float64
}

type GraphInput struct {
	Nodes    []da.Node
	Segments []da.RoadSegment
}

type DemandInput struct {
	// Graph, when not nil, replaces the server graph for this request.
	Graph         *GraphInput
	Depot         Location
	DepartureTime string
	Requests      []RequestInput
}

type PlanInput struct {
	DemandInput
	CourierCount         int
	SpeedMetersPerSecond float64
	MaxDurationSeconds   float64
}

// CourierRoute is a courier tour with its road path rendered for display.
type CourierRoute struct {
	da.CourierTour
	Polyline string           `json:"polyline"`
	Segments []da.RoadSegment `json:"segments"`
}

type EmitRouteFunc func(CourierRoute)

type PlanResult struct {
	ID                  string         `json:"id"`
	VertexOrder         []int64        `json:"vertex_order"`
	Couriers            []CourierRoute `json:"couriers"`
	TotalDistanceMeters float64        `json:"total_distance_meters"`
	Feasible            bool           `json:"feasible"`
}

type MatrixResult struct {
	VertexOrder []int64 `json:"vertex_order"`
	// Costs in meters, null when the column POI cannot be reached from the row POI.
	Costs      [][]*float64 `json:"costs"`
	Precedence [][]int      `json:"precedence"`
}

type NearestResult struct {
	NodeID         int64   `json:"node_id"`
	DistanceMeters float64 `json:"distance_meters"`
}

type PlannerService struct {
	log          *zap.Logger
	engine       PlanEngine
	factory      EngineFactory
	defaultSpeed float64
	timeout      time.Duration
}

// NewPlannerService. eng may be nil when the server runs without a graph, requests must then carry one.
func NewPlannerService(log *zap.Logger, eng PlanEngine, factory EngineFactory, defaultSpeed float64,
	timeout time.Duration) *PlannerService {
	return &PlannerService{
		log:          log,
		engine:       eng,
		factory:      factory,
		defaultSpeed: defaultSpeed,
		timeout:      timeout,
	}
}

// Plan splits the requests between couriers. emit, when not nil, receives each courier route as soon
// as the partitioner finalizes it.
func (ps *PlannerService) Plan(ctx context.Context, in PlanInput, emit EmitRouteFunc) (*PlanResult, error) {
	eng, demand, err := ps.prepare(in.DemandInput)
	if err != nil {
		return nil, err
	}

	speed := in.SpeedMetersPerSecond
	if speed == 0 {
		speed = ps.defaultSpeed
	}
	if ps.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, ps.timeout)
		defer cancel()
	}

	var onTour partition.EmitFunc
	if emit != nil {
		onTour = func(ct da.CourierTour) {
			emit(ps.render(eng, ct))
		}
	}
	plan, err := eng.Plan(ctx, engine.PlanRequest{
		Demand:               demand,
		CourierCount:         in.CourierCount,
		SpeedMetersPerSecond: speed,
		MaxDurationSeconds:   in.MaxDurationSeconds,
	}, onTour)
	if err != nil {
		return nil, wrapPlanError(err, "plan")
	}

	result := &PlanResult{
		ID:                  plan.ID,
		VertexOrder:         plan.VertexOrder,
		Couriers:            make([]CourierRoute, 0, len(plan.Couriers)),
		TotalDistanceMeters: plan.TotalDistanceMeters,
		Feasible:            plan.Feasible,
	}
	for _, ct := range plan.Couriers {
		result.Couriers = append(result.Couriers, ps.render(eng, ct))
	}
	return result, nil
}

// Matrix returns the POI model of a demand without solving it.
func (ps *PlannerService) Matrix(ctx context.Context, in DemandInput) (*MatrixResult, error) {
	eng, demand, err := ps.prepare(in)
	if err != nil {
		return nil, err
	}
	if ps.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, ps.timeout)
		defer cancel()
	}

	model, err := eng.BuildModel(ctx, demand)
	if err != nil {
		return nil, wrapPlanError(err, "matrix")
	}

	m := model.GetCostMatrix()
	costs := make([][]*float64, m.Size())
	for i := range costs {
		costs[i] = make([]*float64, m.Size())
		for j := range costs[i] {
			if m.IsFinite(i, j) {
				c := m.At(i, j)
				costs[i][j] = &c
			}
		}
	}
	prec := make([][]int, m.Size())
	for i, pickups := range model.GetPrecedence() {
		prec[i] = append([]int{}, pickups...)
	}
	return &MatrixResult{
		VertexOrder: model.GetVertexOrder(),
		Costs:       costs,
		Precedence:  prec,
	}, nil
}

// Nearest snaps a coordinate to the server graph.
func (ps *PlannerService) Nearest(lat, lon float64) (*NearestResult, error) {
	if ps.engine == nil {
		return nil, util.WrapErrorf(ErrNoServerGraph, util.ErrNotFound, "nearest")
	}
	id, dist, err := ps.engine.SnapToRoad(lat, lon)
	if err != nil {
		return nil, wrapPlanError(err, "nearest")
	}
	return &NearestResult{NodeID: id, DistanceMeters: dist}, nil
}

func (ps *PlannerService) prepare(in DemandInput) (PlanEngine, da.DemandSet, error) {
	eng, err := ps.engineFor(in.Graph)
	if err != nil {
		return nil, da.DemandSet{}, err
	}

	depot, err := resolve(eng, in.Depot)
	if err != nil {
		return nil, da.DemandSet{}, wrapPlanError(err, "depot")
	}
	requests := make([]da.DeliveryRequest, len(in.Requests))
	for i, r := range in.Requests {
		pickup, err := resolve(eng, r.Pickup)
		if err != nil {
			return nil, da.DemandSet{}, wrapPlanError(err, "pickup")
		}
		delivery, err := resolve(eng, r.Delivery)
		if err != nil {
			return nil, da.DemandSet{}, wrapPlanError(err, "delivery")
		}
		requests[i] = da.NewDeliveryRequest(pickup, delivery, r.PickupServiceSeconds, r.DeliveryServiceSeconds)
	}

	demand := da.NewDemandSet(da.Depot{NodeID: depot, DepartureTime: in.DepartureTime}, requests)
	if err := demand.Validate(); err != nil {
		return nil, da.DemandSet{}, util.WrapErrorf(err, util.ErrBadParamInput, "demand")
	}
	return eng, demand, nil
}

func (ps *PlannerService) engineFor(graph *GraphInput) (PlanEngine, error) {
	if graph == nil {
		if ps.engine == nil {
			return nil, util.WrapErrorf(ErrNoServerGraph, util.ErrBadParamInput, "graph")
		}
		return ps.engine, nil
	}

	g, err := da.NewRoadGraph(graph.Nodes, graph.Segments)
	if err != nil {
		return nil, util.WrapErrorf(err, util.ErrBadParamInput, "graph")
	}
	eng, err := ps.factory(g)
	if err != nil {
		return nil, util.WrapErrorf(err, util.ErrInternalServerError, "graph")
	}
	return eng, nil
}

func resolve(eng PlanEngine, loc Location) (int64, error) {
	if loc.NodeID != nil {
		return *loc.NodeID, nil
	}
	if loc.Lat == nil || loc.Lon == nil {
		return 0, ErrMissingLocation
	}
	id, _, err := eng.SnapToRoad(*loc.Lat, *loc.Lon)
	return id, err
}

func (ps *PlannerService) render(eng PlanEngine, ct da.CourierTour) CourierRoute {
	route := CourierRoute{CourierTour: ct, Segments: []da.RoadSegment{}}
	if len(ct.Path) < 2 {
		return route
	}

	polyline, err := eng.Polyline(ct.Path)
	if err != nil {
		ps.log.Warn("can not encode courier path", zap.Int("courier", ct.CourierIndex), zap.Error(err))
	}
	segments, err := eng.Segments(ct.Path)
	if err != nil {
		ps.log.Warn("can not expand courier path", zap.Int("courier", ct.CourierIndex), zap.Error(err))
		segments = []da.RoadSegment{}
	}
	route.Polyline = polyline
	route.Segments = segments
	return route
}

func isBadInput(err error) bool {
	for _, target := range []error{
		routing.ErrDepotNotInGraph, routing.ErrRequestNodeNotInGraph,
		partition.ErrInvalidCourierCount, partition.ErrInvalidSpeed, partition.ErrInvalidMaxDuration,
		spatialindex.ErrNoRoadNearby, ErrMissingLocation,
		da.ErrInvalidServiceDuration,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

func wrapPlanError(err error, op string) error {
	switch {
	case errors.Is(err, tsp.ErrInfeasible):
		return util.WrapErrorf(err, util.ErrUnprocessable, "%s: no feasible tour", op)
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return util.WrapErrorf(err, util.ErrUnprocessable, "%s: planning did not finish in time", op)
	case isBadInput(err):
		return util.WrapErrorf(err, util.ErrBadParamInput, "%s", op)
	default:
		return util.WrapErrorf(err, util.ErrInternalServerError, "%s", op)
	}
}
