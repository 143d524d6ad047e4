package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

var (
	// Registry is the dedicated Prometheus registry of the planner
	Registry = prometheus.NewRegistry()

	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "http_requests_total", Help: "Total HTTP requests."},
		[]string{"method", "path", "status"},
	)
	HTTPDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Name: "http_request_duration_seconds", Help: "HTTP request duration in seconds.", Buckets: prometheus.DefBuckets},
		[]string{"method", "path", "status"},
	)

	// MatrixBuildDuration time spent computing the POI distance matrix
	MatrixBuildDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{Name: "poi_matrix_build_seconds", Help: "POI shortest path matrix build time in seconds.", Buckets: prometheus.ExponentialBuckets(0.001, 4, 10)},
	)
	// AStarSettledNodes vertices settled per point-to-point search
	AStarSettledNodes = prometheus.NewHistogram(
		prometheus.HistogramOpts{Name: "astar_settled_nodes", Help: "Vertices settled per A* search.", Buckets: prometheus.ExponentialBuckets(1, 4, 12)},
	)
	// SolverRuns tsp solver invocations by outcome (optimal, budget, infeasible, canceled)
	SolverRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "tsp_solver_runs_total", Help: "TSP solver runs by outcome."},
		[]string{"outcome"},
	)
	SolverExpandedNodes = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "tsp_solver_expanded_nodes_total", Help: "Branch and bound nodes expanded."},
	)
	// PlanDuration end to end planning time by courier mode (single, counted, unlimited)
	PlanDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Name: "plan_duration_seconds", Help: "Route planning time in seconds.", Buckets: prometheus.ExponentialBuckets(0.001, 4, 10)},
		[]string{"mode"},
	)
)

var regOnce sync.Once

// RegisterDefault registers the planner collectors plus go/process collectors on Registry.
func RegisterDefault() {
	regOnce.Do(func() {
		Registry.MustRegister(HTTPRequests)
		Registry.MustRegister(HTTPDuration)
		Registry.MustRegister(MatrixBuildDuration)
		Registry.MustRegister(AStarSettledNodes)
		Registry.MustRegister(SolverRuns)
		Registry.MustRegister(SolverExpandedNodes)
		Registry.MustRegister(PlanDuration)
		Registry.MustRegister(collectors.NewGoCollector())
		Registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	})
}
