package partition

import (
	"context"
	"math"
	"testing"

	da "github.com/lintang-b-s/courierx/pkg/datastructure"
	"github.com/lintang-b-s/courierx/pkg/engine/routing"
	"github.com/lintang-b-s/courierx/pkg/engine/tsp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// streetGraph is a two-way street of nodes 1..n, 100m apart.
func streetGraph(t *testing.T, n int) *da.RoadGraph {
	t.Helper()
	nodes := make([]da.Node, 0, n)
	segments := make([]da.RoadSegment, 0, 2*n)
	for i := 1; i <= n; i++ {
		nodes = append(nodes, da.NewNode(int64(i), 45.75, 4.85+float64(i)*0.0013))
		if i < n {
			segments = append(segments,
				da.NewRoadSegment(int64(i), int64(i+1), 100, "Rue de la Republique"),
				da.NewRoadSegment(int64(i+1), int64(i), 100, "Rue de la Republique"))
		}
	}
	g, err := da.NewRoadGraph(nodes, segments)
	require.NoError(t, err)
	return g
}

func buildModel(t *testing.T, g *da.RoadGraph, demand da.DemandSet) *da.POIModel {
	t.Helper()
	spe := routing.NewShortestPathEngine(g, routing.NewEuclideanHeuristic(g), zap.NewNop(), 2)
	model, err := spe.BuildPOIModel(context.Background(), demand)
	require.NoError(t, err)
	return model
}

// fourRequests: depot in the middle of a 9 node street, two requests on each side.
func fourRequests() da.DemandSet {
	return da.NewDemandSet(da.Depot{NodeID: 5}, []da.DeliveryRequest{
		da.NewDeliveryRequest(4, 3, 0, 0),
		da.NewDeliveryRequest(2, 1, 0, 0),
		da.NewDeliveryRequest(6, 7, 0, 0),
		da.NewDeliveryRequest(8, 9, 0, 0),
	})
}

func assertCoverage(t *testing.T, demand da.DemandSet, tours []da.CourierTour) {
	t.Helper()
	got := make([]da.DeliveryRequest, 0)
	for _, ct := range tours {
		got = append(got, ct.Requests...)
	}
	assert.ElementsMatch(t, demand.Requests, got)
}

func assertTourValid(t *testing.T, ct da.CourierTour) {
	t.Helper()
	if ct.IsEmpty() {
		return
	}
	pos := make(map[int64]int)
	for i, s := range ct.Tour.Steps {
		_, dup := pos[s.NodeID]
		assert.False(t, dup, "node %d visited twice", s.NodeID)
		pos[s.NodeID] = i
	}
	for _, r := range ct.Requests {
		if r.PickupNodeID == r.DeliveryNodeID {
			continue
		}
		assert.Less(t, pos[r.PickupNodeID], pos[r.DeliveryNodeID])
	}
	assert.Equal(t, ct.Path[0], ct.Path[len(ct.Path)-1])
	assert.InDelta(t, ct.TotalSeconds, ct.Timeline[len(ct.Timeline)-1].CumulativeSeconds, 1e-9)
}

func TestPartitionBalancesTwoCouriers(t *testing.T) {
	g := streetGraph(t, 9)
	demand := fourRequests()
	model := buildModel(t, g, demand)

	for _, parallel := range []bool{false, true} {
		p, err := NewPartitioner(model, demand, Config{
			CourierCount:         2,
			SpeedMetersPerSecond: 1,
			Parallel:             parallel,
			Workers:              3,
		}, zap.NewNop())
		require.NoError(t, err)

		tours, err := p.Partition(context.Background(), nil)
		require.NoError(t, err)
		require.Len(t, tours, 2)

		assertCoverage(t, demand, tours)
		for i, ct := range tours {
			assert.Equal(t, i, ct.CourierIndex)
			assert.Len(t, ct.Requests, 2)
			assert.Equal(t, 800.0, ct.DistanceMeters)
			assert.Equal(t, 800.0, ct.TotalSeconds)
			assertTourValid(t, ct)
		}
		// each courier stays on one side of the depot
		for _, ct := range tours {
			left := ct.Requests[0].PickupNodeID < 5
			for _, r := range ct.Requests {
				assert.Equal(t, left, r.PickupNodeID < 5)
			}
		}
	}
}

func TestPartitionSingleCourierMatchesGlobalTour(t *testing.T) {
	g := streetGraph(t, 9)
	demand := fourRequests()
	model := buildModel(t, g, demand)

	p, err := NewPartitioner(model, demand, Config{CourierCount: 1, SpeedMetersPerSecond: 2}, zap.NewNop())
	require.NoError(t, err)
	tours, err := p.Partition(context.Background(), nil)
	require.NoError(t, err)
	require.Len(t, tours, 1)

	assert.Equal(t, 1600.0, tours[0].DistanceMeters)
	assert.Equal(t, 800.0, tours[0].TravelSeconds)
	assert.True(t, tours[0].Tour.Optimal)
	assert.Len(t, tours[0].Path, 17)
	assertTourValid(t, tours[0])
}

func TestPartitionPadsWithEmptyTours(t *testing.T) {
	g := streetGraph(t, 9)
	demand := da.NewDemandSet(da.Depot{NodeID: 5}, []da.DeliveryRequest{da.NewDeliveryRequest(6, 8, 0, 0)})
	model := buildModel(t, g, demand)

	var emitted []da.CourierTour
	p, err := NewPartitioner(model, demand, Config{CourierCount: 3, SpeedMetersPerSecond: 1}, zap.NewNop())
	require.NoError(t, err)
	tours, err := p.Partition(context.Background(), func(ct da.CourierTour) {
		emitted = append(emitted, ct)
	})
	require.NoError(t, err)

	require.Len(t, tours, 3)
	assert.Equal(t, tours, emitted)
	assert.Len(t, tours[0].Requests, 1)
	assert.Equal(t, []int64{5, 6, 7, 8, 7, 6, 5}, tours[0].Path)
	for _, ct := range tours[1:] {
		assert.True(t, ct.IsEmpty())
		assert.Equal(t, 0.0, ct.TotalSeconds)
		assert.Empty(t, ct.Path)
		assert.False(t, ct.Failed)
	}
	assert.Equal(t, 2, tours[2].CourierIndex)
}

func TestPartitionNoRequests(t *testing.T) {
	g := streetGraph(t, 3)
	demand := da.NewDemandSet(da.Depot{NodeID: 2}, nil)
	model := buildModel(t, g, demand)

	p, err := NewPartitioner(model, demand, Config{CourierCount: 2, SpeedMetersPerSecond: 1}, zap.NewNop())
	require.NoError(t, err)
	tours, err := p.Partition(context.Background(), nil)
	require.NoError(t, err)
	require.Len(t, tours, 2)
	assert.True(t, tours[0].IsEmpty())
	assert.True(t, tours[1].IsEmpty())
}

func TestPartitionUnlimitedCouriers(t *testing.T) {
	g := streetGraph(t, 9)
	demand := fourRequests()
	model := buildModel(t, g, demand)

	testCases := []struct {
		name         string
		maxDuration  float64
		wantCouriers int
	}{
		{name: "one side per courier", maxDuration: 800, wantCouriers: 2},
		{name: "one request per courier", maxDuration: 500, wantCouriers: 4},
		{name: "everything fits", maxDuration: 5000, wantCouriers: 1},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			p, err := NewPartitioner(model, demand, Config{
				MaxDurationSeconds:   tc.maxDuration,
				SpeedMetersPerSecond: 1,
				Parallel:             true,
				Workers:              2,
			}, zap.NewNop())
			require.NoError(t, err)

			tours, err := p.Partition(context.Background(), nil)
			require.NoError(t, err)
			assert.Len(t, tours, tc.wantCouriers)
			assertCoverage(t, demand, tours)
			for _, ct := range tours {
				assertTourValid(t, ct)
				// only forced single requests may exceed the cap
				if len(ct.Requests) > 1 {
					assert.LessOrEqual(t, ct.TotalSeconds, tc.maxDuration)
				}
			}
		})
	}
}

func TestPartitionMaxDurationCapsTheShare(t *testing.T) {
	g := streetGraph(t, 9)
	demand := fourRequests()
	model := buildModel(t, g, demand)

	p, err := NewPartitioner(model, demand, Config{
		CourierCount:         2,
		SpeedMetersPerSecond: 1,
		MaxDurationSeconds:   500,
	}, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, 500.0, p.target(1600))

	tours, err := p.Partition(context.Background(), nil)
	require.NoError(t, err)
	require.Len(t, tours, 2)
	assert.Len(t, tours[0].Requests, 1)
	// the last courier absorbs the rest regardless of the cap
	assert.Len(t, tours[1].Requests, 3)
	assertCoverage(t, demand, tours)
}

func TestPartitionTimeline(t *testing.T) {
	g, err := da.NewRoadGraph(
		[]da.Node{
			da.NewNode(1, 45.7500, 4.8500),
			da.NewNode(2, 45.7501, 4.8501),
			da.NewNode(3, 45.7502, 4.8502),
		},
		[]da.RoadSegment{
			da.NewRoadSegment(1, 2, 5, ""),
			da.NewRoadSegment(2, 1, 5, ""),
			da.NewRoadSegment(2, 3, 5, ""),
			da.NewRoadSegment(3, 2, 5, ""),
		})
	require.NoError(t, err)
	demand := da.NewDemandSet(da.Depot{NodeID: 1, DepartureTime: "8:0:0"},
		[]da.DeliveryRequest{da.NewDeliveryRequest(2, 3, 60, 30)})
	model := buildModel(t, g, demand)

	p, err := NewPartitioner(model, demand, Config{CourierCount: 1, SpeedMetersPerSecond: 5}, zap.NewNop())
	require.NoError(t, err)
	tours, err := p.Partition(context.Background(), nil)
	require.NoError(t, err)
	require.Len(t, tours, 1)

	ct := tours[0]
	assert.Equal(t, []int64{1, 2, 3, 2, 1}, ct.Path)
	assert.Equal(t, []int{0, 1, 2}, ct.StopPositions)
	assert.Equal(t, 20.0, ct.DistanceMeters)
	assert.Equal(t, 4.0, ct.TravelSeconds)
	assert.Equal(t, 90.0, ct.ServiceSeconds)
	assert.Equal(t, 94.0, ct.TotalSeconds)
	assert.Equal(t, []da.TimelineStep{
		{NodeID: 1, Arrival: "08:00:00"},
		{NodeID: 2, TravelSeconds: 1, ServiceSeconds: 60, CumulativeSeconds: 61, Arrival: "08:00:01"},
		{NodeID: 3, TravelSeconds: 1, ServiceSeconds: 30, CumulativeSeconds: 92, Arrival: "08:01:02"},
		{NodeID: 1, TravelSeconds: 2, CumulativeSeconds: 94, Arrival: "08:01:34"},
	}, ct.Timeline)
	assert.Equal(t, []string{"Depot", "Pickup 2", "Delivery 3"}, []string{
		ct.Tour.Steps[0].Label, ct.Tour.Steps[1].Label, ct.Tour.Steps[2].Label,
	})
}

func TestPartitionMarksFailedBatches(t *testing.T) {
	g := streetGraph(t, 9)
	demand := fourRequests()
	model := buildModel(t, g, demand)

	p, err := NewPartitioner(model, demand, Config{CourierCount: 2, SpeedMetersPerSecond: 1}, zap.NewNop())
	require.NoError(t, err)
	// only the global problem is solvable
	p.solve = func(ctx context.Context, m *da.CostMatrix, prec da.Precedence, start int, opts tsp.Options) (tsp.Result, error) {
		if m.Size() < model.Size() {
			return tsp.Result{}, tsp.ErrInfeasible
		}
		return tsp.Solve(ctx, m, prec, start, opts)
	}

	tours, err := p.Partition(context.Background(), nil)
	require.NoError(t, err)
	require.Len(t, tours, 2)
	assertCoverage(t, demand, tours)

	assert.Len(t, tours[0].Requests, 1)
	for _, ct := range tours {
		assert.True(t, ct.Failed)
		assert.NotEmpty(t, ct.FailureReason)
		assert.Nil(t, ct.Path)
		assert.Empty(t, ct.Tour.Steps)
	}
}

func TestPartitionGlobalInfeasible(t *testing.T) {
	g, err := da.NewRoadGraph(
		[]da.Node{da.NewNode(1, 45.75, 4.85), da.NewNode(2, 45.76, 4.86), da.NewNode(3, 45.77, 4.87)},
		[]da.RoadSegment{da.NewRoadSegment(1, 2, 1500, ""), da.NewRoadSegment(2, 1, 1500, "")})
	require.NoError(t, err)
	demand := da.NewDemandSet(da.Depot{NodeID: 1}, []da.DeliveryRequest{da.NewDeliveryRequest(2, 3, 0, 0)})
	model := buildModel(t, g, demand)
	assert.True(t, math.IsInf(model.GetCostMatrix().At(0, 2), 1))

	p, err := NewPartitioner(model, demand, Config{CourierCount: 2, SpeedMetersPerSecond: 1}, zap.NewNop())
	require.NoError(t, err)
	_, err = p.Partition(context.Background(), nil)
	assert.ErrorIs(t, err, tsp.ErrInfeasible)
}

func TestPartitionCanceled(t *testing.T) {
	g := streetGraph(t, 9)
	demand := fourRequests()
	model := buildModel(t, g, demand)

	p, err := NewPartitioner(model, demand, Config{CourierCount: 2, SpeedMetersPerSecond: 1}, zap.NewNop())
	require.NoError(t, err)
	p.solve = func(ctx context.Context, m *da.CostMatrix, prec da.Precedence, start int, opts tsp.Options) (tsp.Result, error) {
		return tsp.Result{}, context.Canceled
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = p.Partition(ctx, nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestConfigValidate(t *testing.T) {
	testCases := []struct {
		name string
		cfg  Config
		want error
	}{
		{name: "negative couriers", cfg: Config{CourierCount: -1, SpeedMetersPerSecond: 1}, want: ErrInvalidCourierCount},
		{name: "unlimited without cap", cfg: Config{SpeedMetersPerSecond: 1}, want: ErrInvalidCourierCount},
		{name: "zero speed", cfg: Config{CourierCount: 1}, want: ErrInvalidSpeed},
		{name: "negative cap", cfg: Config{CourierCount: 1, SpeedMetersPerSecond: 1, MaxDurationSeconds: -5}, want: ErrInvalidMaxDuration},
		{name: "valid", cfg: Config{CourierCount: 1, SpeedMetersPerSecond: 1}},
		{name: "valid unlimited", cfg: Config{SpeedMetersPerSecond: 1, MaxDurationSeconds: 3600}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.cfg.Validate()
			if tc.want == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tc.want)
		})
	}
}
