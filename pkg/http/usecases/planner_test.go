package usecases

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	da "github.com/lintang-b-s/courierx/pkg/datastructure"
	"github.com/lintang-b-s/courierx/pkg/engine"
	"github.com/lintang-b-s/courierx/pkg/engine/routing"
	"github.com/lintang-b-s/courierx/pkg/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func lineNodes() []da.Node {
	return []da.Node{
		da.NewNode(1, 45.7500, 4.8500),
		da.NewNode(2, 45.7501, 4.8501),
		da.NewNode(3, 45.7502, 4.8502),
	}
}

func lineSegments() []da.RoadSegment {
	return []da.RoadSegment{
		da.NewRoadSegment(1, 2, 5, "Rue A"),
		da.NewRoadSegment(2, 1, 5, "Rue A"),
		da.NewRoadSegment(2, 3, 5, "Rue B"),
		da.NewRoadSegment(3, 2, 5, "Rue B"),
	}
}

func engineConfig() engine.Config {
	return engine.Config{
		Heuristic:     routing.HEURISTIC_EUCLIDEAN,
		MatrixWorkers: 2,
		LegCacheSize:  64,
		SnapRadiusKM:  0.2,
	}
}

func factory(graph *da.RoadGraph) (PlanEngine, error) {
	e, err := engine.NewInlineEngine(graph, engineConfig(), zap.NewNop())
	if err != nil {
		return nil, err
	}
	return e, nil
}

func newService(t *testing.T) *PlannerService {
	t.Helper()
	g, err := da.NewRoadGraph(lineNodes(), lineSegments())
	require.NoError(t, err)
	eng, err := factory(g)
	require.NoError(t, err)
	return NewPlannerService(zap.NewNop(), eng, factory, 5, time.Minute)
}

func nodeID(id int64) Location {
	return Location{NodeID: &id}
}

func coord(lat, lon float64) Location {
	return Location{Lat: &lat, Lon: &lon}
}

func errorCode(t *testing.T, err error) error {
	t.Helper()
	var uerr *util.Error
	require.True(t, errors.As(err, &uerr), "expected a util.Error, got %v", err)
	return uerr.Code()
}

func TestPlanByNodeID(t *testing.T) {
	ps := newService(t)

	emitted := make([]CourierRoute, 0)
	result, err := ps.Plan(context.Background(), PlanInput{
		DemandInput: DemandInput{
			Depot:         nodeID(1),
			DepartureTime: "8:0:0",
			Requests:      []RequestInput{{Pickup: nodeID(2), Delivery: nodeID(3), PickupServiceSeconds: 60, DeliveryServiceSeconds: 30}},
		},
		CourierCount: 2,
	}, func(route CourierRoute) { emitted = append(emitted, route) })
	require.NoError(t, err)

	assert.True(t, result.Feasible)
	assert.Equal(t, 20.0, result.TotalDistanceMeters)
	require.Len(t, result.Couriers, 2)
	require.Len(t, emitted, 2)

	first := result.Couriers[0]
	assert.Equal(t, []int64{1, 2, 3, 2, 1}, first.Path)
	assert.NotEmpty(t, first.Polyline)
	require.Len(t, first.Segments, 4)
	assert.Equal(t, "Rue B", first.Segments[1].StreetName)
	// 20 m at the 5 m/s default speed plus 90 s of service
	assert.Equal(t, 94.0, first.TotalSeconds)
	assert.Equal(t, first.Polyline, emitted[0].Polyline)

	assert.True(t, result.Couriers[1].IsEmpty())
	assert.Empty(t, result.Couriers[1].Polyline)
	assert.NotNil(t, result.Couriers[1].Segments)
}

func TestPlanByCoordinates(t *testing.T) {
	ps := newService(t)

	result, err := ps.Plan(context.Background(), PlanInput{
		DemandInput: DemandInput{
			Depot:    coord(45.7500, 4.8500),
			Requests: []RequestInput{{Pickup: coord(45.7501, 4.8501), Delivery: coord(45.75021, 4.85021)}},
		},
		CourierCount:         1,
		SpeedMetersPerSecond: 4,
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2, 3}, result.VertexOrder)
	assert.Equal(t, 5.0, result.Couriers[0].TravelSeconds)
}

func TestPlanInlineGraph(t *testing.T) {
	ps := NewPlannerService(zap.NewNop(), nil, factory, 5, 0)

	result, err := ps.Plan(context.Background(), PlanInput{
		DemandInput: DemandInput{
			Graph:    &GraphInput{Nodes: lineNodes(), Segments: lineSegments()},
			Depot:    nodeID(3),
			Requests: []RequestInput{{Pickup: nodeID(2), Delivery: nodeID(1)}},
		},
		CourierCount: 1,
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, []int64{3, 2, 1, 2, 3}, result.Couriers[0].Path)

	_, err = ps.Plan(context.Background(), PlanInput{
		DemandInput:  DemandInput{Depot: nodeID(1)},
		CourierCount: 1,
	}, nil)
	assert.ErrorIs(t, err, ErrNoServerGraph)
	assert.Equal(t, util.ErrBadParamInput, errorCode(t, err))
}

func TestPlanErrors(t *testing.T) {
	ps := newService(t)

	testCases := []struct {
		name string
		in   PlanInput
		code error
	}{
		{
			name: "depot not in graph",
			in:   PlanInput{DemandInput: DemandInput{Depot: nodeID(42)}, CourierCount: 1},
			code: util.ErrBadParamInput,
		},
		{
			name: "request node not in graph",
			in: PlanInput{DemandInput: DemandInput{Depot: nodeID(1),
				Requests: []RequestInput{{Pickup: nodeID(2), Delivery: nodeID(99)}}}, CourierCount: 1},
			code: util.ErrBadParamInput,
		},
		{
			name: "location without id nor coordinates",
			in:   PlanInput{DemandInput: DemandInput{Depot: Location{}}, CourierCount: 1},
			code: util.ErrBadParamInput,
		},
		{
			name: "coordinate far from every road",
			in:   PlanInput{DemandInput: DemandInput{Depot: coord(48.85, 2.35)}, CourierCount: 1},
			code: util.ErrBadParamInput,
		},
		{
			name: "bad departure clock",
			in:   PlanInput{DemandInput: DemandInput{Depot: nodeID(1), DepartureTime: "25:99"}, CourierCount: 1},
			code: util.ErrBadParamInput,
		},
		{
			name: "negative service",
			in: PlanInput{DemandInput: DemandInput{Depot: nodeID(1),
				Requests: []RequestInput{{Pickup: nodeID(2), Delivery: nodeID(3), PickupServiceSeconds: -1}}}, CourierCount: 1},
			code: util.ErrBadParamInput,
		},
		{
			name: "unlimited couriers without a duration cap",
			in:   PlanInput{DemandInput: DemandInput{Depot: nodeID(1)}, CourierCount: 0},
			code: util.ErrBadParamInput,
		},
		{
			name: "bad inline graph",
			in: PlanInput{DemandInput: DemandInput{Graph: &GraphInput{Nodes: lineNodes(),
				Segments: []da.RoadSegment{da.NewRoadSegment(1, 7, 5, "")}}, Depot: nodeID(1)}, CourierCount: 1},
			code: util.ErrBadParamInput,
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ps.Plan(context.Background(), tc.in, nil)
			require.Error(t, err)
			assert.Equal(t, tc.code, errorCode(t, err))
		})
	}
}

func TestPlanInfeasible(t *testing.T) {
	nodes := append(lineNodes(), da.NewNode(4, 45.7600, 4.8600))
	ps := NewPlannerService(zap.NewNop(), nil, factory, 5, 0)

	_, err := ps.Plan(context.Background(), PlanInput{
		DemandInput: DemandInput{
			Graph:    &GraphInput{Nodes: nodes, Segments: lineSegments()},
			Depot:    nodeID(1),
			Requests: []RequestInput{{Pickup: nodeID(2), Delivery: nodeID(4)}},
		},
		CourierCount: 1,
	}, nil)
	require.Error(t, err)
	assert.Equal(t, util.ErrUnprocessable, errorCode(t, err))
}

func TestPlanCanceled(t *testing.T) {
	ps := newService(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := ps.Plan(ctx, PlanInput{
		DemandInput:  DemandInput{Depot: nodeID(1), Requests: []RequestInput{{Pickup: nodeID(2), Delivery: nodeID(3)}}},
		CourierCount: 1,
	}, nil)
	require.Error(t, err)
	assert.Equal(t, util.ErrUnprocessable, errorCode(t, err))
}

func TestMatrix(t *testing.T) {
	nodes := append(lineNodes(), da.NewNode(4, 45.7600, 4.8600))
	segments := append(lineSegments(), da.NewRoadSegment(4, 1, 100, "Impasse"))
	ps := NewPlannerService(zap.NewNop(), nil, factory, 5, 0)

	result, err := ps.Matrix(context.Background(), DemandInput{
		Graph:    &GraphInput{Nodes: nodes, Segments: segments},
		Depot:    nodeID(1),
		Requests: []RequestInput{{Pickup: nodeID(4), Delivery: nodeID(3)}},
	})
	require.NoError(t, err)

	assert.Equal(t, []int64{1, 4, 3}, result.VertexOrder)
	assert.Equal(t, [][]int{{}, {}, {1}}, result.Precedence)
	require.NotNil(t, result.Costs[1][0])
	assert.Equal(t, 100.0, *result.Costs[1][0])
	assert.Nil(t, result.Costs[0][1], "node 4 can not be reached")
	assert.Equal(t, 10.0, *result.Costs[0][2])
	for i := range result.Costs {
		assert.Equal(t, 0.0, *result.Costs[i][i])
	}
	assert.False(t, math.IsInf(*result.Costs[1][2], 1))
}

func TestNearest(t *testing.T) {
	ps := newService(t)

	result, err := ps.Nearest(45.75021, 4.85021)
	require.NoError(t, err)
	assert.Equal(t, int64(3), result.NodeID)
	assert.Less(t, result.DistanceMeters, 10.0)

	_, err = ps.Nearest(48.85, 2.35)
	assert.Equal(t, util.ErrBadParamInput, errorCode(t, err))

	_, err = NewPlannerService(zap.NewNop(), nil, factory, 5, 0).Nearest(45.75, 4.85)
	assert.Equal(t, util.ErrNotFound, errorCode(t, err))
}
