package partition

import (
	"context"
	"errors"
	"fmt"
	"math"
	"runtime"
	"sort"

	da "github.com/lintang-b-s/courierx/pkg/datastructure"
	"github.com/lintang-b-s/courierx/pkg/engine/tour"
	"github.com/lintang-b-s/courierx/pkg/engine/tsp"
	"github.com/lintang-b-s/courierx/pkg/util"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var (
	ErrInvalidCourierCount = errors.New("courier count must be positive, or zero with a positive maximum duration")
	ErrInvalidSpeed        = errors.New("courier speed must be positive")
	ErrInvalidMaxDuration  = errors.New("maximum duration must be non-negative")
)

const durationEps = 1e-9

type Config struct {
	// CourierCount is the number of couriers, 0 means as many as the duration budget needs.
	CourierCount         int
	SpeedMetersPerSecond float64
	// MaxDurationSeconds caps the work of every courier but the last one, 0 means no cap.
	MaxDurationSeconds float64
	// Parallel probes several prefix sizes at once.
	Parallel      bool
	Workers       int
	SolverOptions tsp.Options
}

func (c Config) Validate() error {
	if c.CourierCount < 0 {
		return fmt.Errorf("%w: got %d", ErrInvalidCourierCount, c.CourierCount)
	}
	if c.MaxDurationSeconds < 0 || math.IsNaN(c.MaxDurationSeconds) {
		return fmt.Errorf("%w: got %v", ErrInvalidMaxDuration, c.MaxDurationSeconds)
	}
	if c.CourierCount == 0 && (c.MaxDurationSeconds == 0 || math.IsInf(c.MaxDurationSeconds, 1)) {
		return fmt.Errorf("%w: unlimited couriers need a finite maximum duration", ErrInvalidCourierCount)
	}
	if c.SpeedMetersPerSecond <= 0 || math.IsNaN(c.SpeedMetersPerSecond) || math.IsInf(c.SpeedMetersPerSecond, 0) {
		return fmt.Errorf("%w: got %v", ErrInvalidSpeed, c.SpeedMetersPerSecond)
	}
	return nil
}

// EmitFunc receives every courier tour, in courier order, as soon as it is final.
type EmitFunc func(ct da.CourierTour)

type solveFunc func(ctx context.Context, m *da.CostMatrix, prec da.Precedence, start int, opts tsp.Options) (tsp.Result, error)

// Partitioner splits the requests of one POI model across couriers. Every courier gets a contiguous
// run of requests taken in the order the global tour first reaches them.
type Partitioner struct {
	model     *da.POIModel
	demand    da.DemandSet
	cfg       Config
	logger    *zap.Logger
	roles     map[int64]da.StopType
	departure float64
	solve     solveFunc
}

func NewPartitioner(model *da.POIModel, demand da.DemandSet, cfg Config, logger *zap.Logger) (*Partitioner, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	departure, err := demand.DepartureSeconds()
	if err != nil {
		return nil, err
	}
	if cfg.Workers < 1 {
		cfg.Workers = runtime.NumCPU()
	}
	return &Partitioner{
		model:     model,
		demand:    demand,
		cfg:       cfg,
		logger:    logger,
		roles:     da.StopRoles(demand),
		departure: departure,
		solve:     tsp.Solve,
	}, nil
}

// batchSolution is one solved sub-problem: the depot plus the POIs of a run of requests.
type batchSolution struct {
	requests []int
	order    []int64 // sub-problem index -> node id, depot first
	costs    *da.CostMatrix
	service  map[int64]float64
	res      tsp.Result
	err      error

	travelSeconds  float64
	serviceSeconds float64
}

func (b *batchSolution) totalSeconds() float64 {
	return b.travelSeconds + b.serviceSeconds
}

func (b *batchSolution) fits(target float64) bool {
	return b.err == nil && b.totalSeconds() <= target+durationEps
}

// Partition returns one tour per courier. With a fixed courier count the output always has that many
// tours: the last courier takes every request still unassigned and unused couriers get empty tours.
func (p *Partitioner) Partition(ctx context.Context, emit EmitFunc) ([]da.CourierTour, error) {
	tours := make([]da.CourierTour, 0, p.cfg.CourierCount)
	push := func(ct da.CourierTour) {
		tours = append(tours, ct)
		if emit != nil {
			emit(ct)
		}
	}

	queue, globalSeconds, err := p.globalOrder(ctx)
	if err != nil {
		return nil, err
	}
	target := p.target(globalSeconds)
	p.logger.Debug("partitioning requests",
		zap.Int("requests", len(queue)), zap.Int("couriers", p.cfg.CourierCount),
		zap.Float64("global_seconds", globalSeconds), zap.Float64("target_seconds", target))

	for courier := 0; len(queue) > 0; courier++ {
		var sol *batchSolution
		if p.cfg.CourierCount > 0 && courier == p.cfg.CourierCount-1 {
			sol, err = p.solveBatch(ctx, queue)
		} else {
			sol, err = p.largestPrefix(ctx, queue, target)
		}
		if err != nil {
			return nil, err
		}
		queue = queue[len(sol.requests):]

		ct, err := p.courierTour(courier, sol)
		if err != nil {
			return nil, err
		}
		p.logger.Debug("courier tour ready", zap.Int("courier", courier), zap.Int("requests", len(sol.requests)),
			zap.Float64("total_seconds", ct.TotalSeconds), zap.Bool("failed", ct.Failed))
		push(ct)
	}

	for courier := len(tours); courier < p.cfg.CourierCount; courier++ {
		push(p.emptyTour(courier))
	}
	return tours, nil
}

// globalOrder solves the tour over every POI and orders the requests by the first position at which
// the tour reaches their pickup or delivery.
func (p *Partitioner) globalOrder(ctx context.Context) ([]int, float64, error) {
	requests := p.demand.Requests
	queue := make([]int, len(requests))
	for i := range queue {
		queue[i] = i
	}
	if len(requests) == 0 {
		return queue, 0, nil
	}

	global, err := p.solveBatch(ctx, queue)
	if err != nil {
		return nil, 0, err
	}
	if global.err != nil {
		return nil, 0, global.err
	}

	pos := make(map[int64]int, len(global.res.Tour))
	for i, idx := range global.res.Tour {
		pos[global.order[idx]] = i
	}
	first := func(r da.DeliveryRequest) int {
		return util.MinG(pos[r.PickupNodeID], pos[r.DeliveryNodeID])
	}
	sort.SliceStable(queue, func(a, b int) bool {
		return first(requests[queue[a]]) < first(requests[queue[b]])
	})
	return queue, global.totalSeconds(), nil
}

func (p *Partitioner) target(globalSeconds float64) float64 {
	if p.cfg.CourierCount == 0 {
		return p.cfg.MaxDurationSeconds
	}
	share := globalSeconds / float64(p.cfg.CourierCount)
	if p.cfg.MaxDurationSeconds > 0 {
		return math.Min(share, p.cfg.MaxDurationSeconds)
	}
	return share
}

// largestPrefix searches prefix sizes downward and returns the largest one whose tour fits the
// target. A single request is taken when nothing fits.
func (p *Partitioner) largestPrefix(ctx context.Context, queue []int, target float64) (*batchSolution, error) {
	window := 1
	if p.cfg.Parallel {
		window = p.cfg.Workers
	}

	var single *batchSolution
	for hi := len(queue); hi >= 1; hi -= window {
		lo := util.MaxG(1, hi-window+1)
		sols, err := p.solvePrefixes(ctx, queue, lo, hi)
		if err != nil {
			return nil, err
		}
		for _, sol := range sols {
			if sol.fits(target) {
				return sol, nil
			}
		}
		if lo == 1 {
			single = sols[len(sols)-1]
		}
	}
	return single, nil
}

// solvePrefixes solves the prefixes of size hi down to lo, in that order.
func (p *Partitioner) solvePrefixes(ctx context.Context, queue []int, lo, hi int) ([]*batchSolution, error) {
	sols := make([]*batchSolution, hi-lo+1)
	if len(sols) == 1 {
		sol, err := p.solveBatch(ctx, queue[:hi])
		if err != nil {
			return nil, err
		}
		sols[0] = sol
		return sols, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.cfg.Workers)
	for k := hi; k >= lo; k-- {
		g.Go(func() error {
			sol, err := p.solveBatch(gctx, queue[:k])
			if err != nil {
				return err
			}
			sols[hi-k] = sol
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return sols, nil
}

// solveBatch builds and solves the sub-problem of the given requests. An infeasible sub-problem is
// reported in batchSolution.err; the returned error is reserved for cancellation and invalid input.
func (p *Partitioner) solveBatch(ctx context.Context, requestIdx []int) (*batchSolution, error) {
	requests := make([]da.DeliveryRequest, len(requestIdx))
	for i, r := range requestIdx {
		requests[i] = p.demand.Requests[r]
	}

	depotId := p.model.GetNodeID(p.model.GetDepotIndex())
	order := da.BuildVertexOrder(da.NewDemandSet(da.Depot{NodeID: depotId}, requests))
	indices := make([]int, len(order))
	for i, id := range order {
		idx, ok := p.model.IndexOf(id)
		if !ok {
			return nil, fmt.Errorf("%w: node %d is not a POI of the model", da.ErrNodeNotFound, id)
		}
		indices[i] = idx
	}

	sol := &batchSolution{
		requests: requestIdx,
		order:    order,
		costs:    p.model.GetCostMatrix().Submatrix(indices),
		service:  da.ServiceByNode(requests),
	}
	prec := da.BuildPrecedence(order, requests)

	res, err := p.solve(ctx, sol.costs, prec, 0, p.cfg.SolverOptions)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		if errors.Is(err, tsp.ErrInfeasible) {
			sol.err = err
			return sol, nil
		}
		return nil, err
	}
	sol.res = res

	sol.travelSeconds = res.Cost / p.cfg.SpeedMetersPerSecond
	for _, id := range order[1:] {
		sol.serviceSeconds += sol.service[id]
	}
	return sol, nil
}

func (p *Partitioner) batchRequests(sol *batchSolution) []da.DeliveryRequest {
	requests := make([]da.DeliveryRequest, len(sol.requests))
	for i, r := range sol.requests {
		requests[i] = p.demand.Requests[r]
	}
	return requests
}

func (p *Partitioner) courierTour(courier int, sol *batchSolution) (da.CourierTour, error) {
	ct := da.CourierTour{
		CourierIndex: courier,
		Requests:     p.batchRequests(sol),
		Tour:         da.Tour{Steps: []da.TourStep{}},
		Timeline:     []da.TimelineStep{},
	}
	if sol.err != nil {
		ct.Failed = true
		ct.FailureReason = sol.err.Error()
		return ct, nil
	}

	ct.Tour = tour.Build(sol.res, sol.order, sol.costs, p.roles)
	path, arrivals, err := tour.AssembleLegs(ct.Tour.NodeIDs(), p.model)
	if err != nil {
		return da.CourierTour{}, err
	}
	ct.Path = path
	ct.StopPositions = arrivals
	ct.DistanceMeters = sol.res.Cost
	ct.TravelSeconds = sol.travelSeconds
	ct.ServiceSeconds = sol.serviceSeconds
	ct.TotalSeconds = sol.totalSeconds()
	ct.Timeline = p.timeline(sol)
	return ct, nil
}

// timeline lists travel, service and arrival clock per stop, closed by the return to the depot.
func (p *Partitioner) timeline(sol *batchSolution) []da.TimelineStep {
	stops := sol.res.Tour
	steps := make([]da.TimelineStep, 0, len(stops)+1)
	cumulative := 0.0
	depotId := sol.order[0]

	steps = append(steps, da.TimelineStep{NodeID: depotId, Arrival: util.FormatClock(p.departure)})
	for i := 1; i <= len(stops); i++ {
		from, to := stops[i-1], stops[i%len(stops)]
		travel := sol.costs.At(from, to) / p.cfg.SpeedMetersPerSecond
		nodeId := sol.order[to]

		service := 0.0
		if i < len(stops) && nodeId != depotId {
			service = sol.service[nodeId]
		}
		arrival := p.departure + cumulative + travel
		cumulative += travel + service
		steps = append(steps, da.TimelineStep{
			NodeID:            nodeId,
			TravelSeconds:     travel,
			ServiceSeconds:    service,
			CumulativeSeconds: cumulative,
			Arrival:           util.FormatClock(arrival),
		})
	}
	return steps
}

func (p *Partitioner) emptyTour(courier int) da.CourierTour {
	return da.CourierTour{
		CourierIndex:  courier,
		Requests:      []da.DeliveryRequest{},
		Tour:          da.Tour{Steps: []da.TourStep{}, Optimal: true},
		Path:          []int64{},
		StopPositions: []int{},
		Timeline:      []da.TimelineStep{},
	}
}
