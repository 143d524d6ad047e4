package routing

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/lintang-b-s/courierx/pkg/concurrent"
	da "github.com/lintang-b-s/courierx/pkg/datastructure"
	"github.com/lintang-b-s/courierx/pkg/metrics"
	"go.uber.org/zap"
)

var (
	ErrDepotNotInGraph       = errors.New("depot node is not part of the road graph")
	ErrRequestNodeNotInGraph = errors.New("delivery request node is not part of the road graph")
	ErrNoPath                = errors.New("no path between the two nodes")
)

type legKey struct {
	s, t da.Index
}

type leg struct {
	dist  float64
	path  []int64
	found bool
}

// ShortestPathEngine computes shortest road paths between points of interest. It keeps no state
// between calls apart from an optional leg cache over the immutable graph, and is safe for concurrent use.
type ShortestPathEngine struct {
	graph      *da.RoadGraph
	heuristic  Heuristic
	logger     *zap.Logger
	numWorkers int
	legCache   *lru.Cache[legKey, leg]
}

func NewShortestPathEngine(graph *da.RoadGraph, heuristic Heuristic, logger *zap.Logger, numWorkers int) *ShortestPathEngine {
	if heuristic == nil {
		heuristic = ZeroHeuristic{}
	}
	if numWorkers < 1 {
		numWorkers = 1
	}
	return &ShortestPathEngine{
		graph:      graph,
		heuristic:  heuristic,
		logger:     logger,
		numWorkers: numWorkers,
	}
}

// WithLegCache memoizes up to size point-to-point results. size <= 0 disables the cache.
func (spe *ShortestPathEngine) WithLegCache(size int) (*ShortestPathEngine, error) {
	if size <= 0 {
		spe.legCache = nil
		return spe, nil
	}
	cache, err := lru.New[legKey, leg](size)
	if err != nil {
		return nil, err
	}
	spe.legCache = cache
	return spe, nil
}

func (spe *ShortestPathEngine) HasLegCache() bool {
	return spe.legCache != nil
}

func (spe *ShortestPathEngine) GetGraph() *da.RoadGraph {
	return spe.graph
}

// BuildPOIModel resolves the demand onto the graph and computes the vertex order, cost matrix,
// path table and precedence constraints of one planning request.
func (spe *ShortestPathEngine) BuildPOIModel(ctx context.Context, demand da.DemandSet) (*da.POIModel, error) {
	if err := demand.Validate(); err != nil {
		return nil, err
	}
	if !spe.graph.HasNode(demand.Depot.NodeID) {
		return nil, fmt.Errorf("%w: node %d", ErrDepotNotInGraph, demand.Depot.NodeID)
	}
	for i, r := range demand.Requests {
		if !spe.graph.HasNode(r.PickupNodeID) {
			return nil, fmt.Errorf("%w: request %d pickup node %d", ErrRequestNodeNotInGraph, i, r.PickupNodeID)
		}
		if !spe.graph.HasNode(r.DeliveryNodeID) {
			return nil, fmt.Errorf("%w: request %d delivery node %d", ErrRequestNodeNotInGraph, i, r.DeliveryNodeID)
		}
	}

	order := da.BuildVertexOrder(demand)
	costs, paths, err := spe.ComputeMatrix(ctx, order)
	if err != nil {
		return nil, err
	}
	prec := da.BuildPrecedence(order, demand.Requests)
	return da.NewPOIModel(order, costs, paths, prec), nil
}

type rowJob struct {
	row int
	src da.Index
}

type rowResult struct {
	row   int
	costs []float64
	paths [][]int64
	err   error
}

// ComputeMatrix runs one A* per ordered POI pair. Rows are computed on a worker pool; pairs whose
// strongly connected components cannot reach each other are marked unreachable without searching.
func (spe *ShortestPathEngine) ComputeMatrix(ctx context.Context, order []int64) (*da.CostMatrix, *da.PathTable, error) {
	start := time.Now()
	n := len(order)

	targets := make([]da.Index, n)
	for i, id := range order {
		u, ok := spe.graph.IndexOf(id)
		if !ok {
			return nil, nil, fmt.Errorf("%w: %d", da.ErrNodeNotFound, id)
		}
		targets[i] = u
	}

	jobs := make([]rowJob, n)
	for i := range order {
		jobs[i] = rowJob{row: i, src: targets[i]}
	}

	results := concurrent.RunAll(spe.numWorkers, jobs, func(job rowJob) rowResult {
		return spe.computeRow(ctx, job, order, targets)
	})

	costs := da.NewCostMatrix(n)
	paths := da.NewPathTable(n)
	for _, res := range results {
		if res.err != nil {
			return nil, nil, res.err
		}
		for j := 0; j < n; j++ {
			costs.Set(res.row, j, res.costs[j])
			if res.paths[j] != nil {
				paths.Set(res.row, j, res.paths[j])
			}
		}
	}

	elapsed := time.Since(start)
	metrics.MatrixBuildDuration.Observe(elapsed.Seconds())
	spe.logger.Debug("poi matrix computed", zap.Int("pois", n), zap.Duration("took", elapsed))
	return costs, paths, nil
}

func (spe *ShortestPathEngine) computeRow(ctx context.Context, job rowJob, order []int64, targets []da.Index) rowResult {
	n := len(order)
	res := rowResult{
		row:   job.row,
		costs: make([]float64, n),
		paths: make([][]int64, n),
	}
	if err := ctx.Err(); err != nil {
		res.err = err
		return res
	}

	reach := spe.graph.ReachableSCCs(job.src)
	as := NewAStar(spe.graph, spe.heuristic)
	for j := 0; j < n; j++ {
		if j == job.row {
			res.costs[j] = 0
			res.paths[j] = []int64{order[j]}
			continue
		}
		if !reach[spe.graph.GetSCCOfAVertex(targets[j])] {
			res.costs[j] = math.Inf(1)
			continue
		}
		l := spe.search(as, job.src, targets[j])
		if !l.found {
			res.costs[j] = math.Inf(1)
			continue
		}
		res.costs[j] = l.dist
		res.paths[j] = l.path
	}
	return res
}

func (spe *ShortestPathEngine) search(as *AStar, s, t da.Index) leg {
	key := legKey{s: s, t: t}
	if spe.legCache != nil {
		if l, ok := spe.legCache.Get(key); ok {
			return l
		}
	}

	dist, vertices, found := as.ShortestPath(s, t)
	metrics.AStarSettledNodes.Observe(float64(as.GetNumSettledNodes()))
	l := leg{dist: dist, found: found}
	if found {
		l.path = make([]int64, len(vertices))
		for i, v := range vertices {
			l.path[i] = spe.graph.GetNodeID(v)
		}
	}

	if spe.legCache != nil {
		spe.legCache.Add(key, l)
	}
	return l
}

// ShortestPath returns the road distance and node sequence from one node to another.
func (spe *ShortestPathEngine) ShortestPath(fromId, toId int64) (float64, []int64, error) {
	s, ok := spe.graph.IndexOf(fromId)
	if !ok {
		return 0, nil, fmt.Errorf("%w: %d", da.ErrNodeNotFound, fromId)
	}
	t, ok := spe.graph.IndexOf(toId)
	if !ok {
		return 0, nil, fmt.Errorf("%w: %d", da.ErrNodeNotFound, toId)
	}
	if !spe.graph.VerticeUandVAreConnected(s, t) {
		return math.Inf(1), nil, fmt.Errorf("%w: %d -> %d", ErrNoPath, fromId, toId)
	}
	l := spe.search(NewAStar(spe.graph, spe.heuristic), s, t)
	if !l.found {
		return math.Inf(1), nil, fmt.Errorf("%w: %d -> %d", ErrNoPath, fromId, toId)
	}
	return l.dist, l.path, nil
}
