package landmark

import (
	"github.com/lintang-b-s/courierx/pkg"
	da "github.com/lintang-b-s/courierx/pkg/datastructure"
)

// Dijkstra one-to-all search over the road graph, or over its reverse when useReverseGraph is set.
type Dijkstra struct {
	graph *da.RoadGraph

	dist      []float64
	heapNodes []*da.PriorityQueueNode[da.Index]
	pq        *da.MinHeap[da.Index]

	useReverseGraph bool
	numSettledNodes int
}

func NewDijkstra(graph *da.RoadGraph, useReverseGraph bool) *Dijkstra {
	n := graph.NumberOfVertices()
	return &Dijkstra{
		graph:           graph,
		dist:            make([]float64, n),
		heapNodes:       make([]*da.PriorityQueueNode[da.Index], n),
		pq:              da.NewFourAryHeap[da.Index](),
		useReverseGraph: useReverseGraph,
	}
}

// ShortestPath returns the distance from s to every vertex (to s from every vertex on the reverse graph).
// unreachable vertices get 2 * INF_WEIGHT.
func (us *Dijkstra) ShortestPath(s da.Index) []float64 {
	for v := range us.dist {
		us.dist[v] = 2 * pkg.INF_WEIGHT
		us.heapNodes[v] = nil
	}
	us.pq.Clear()
	us.numSettledNodes = 0

	us.dist[s] = 0
	us.heapNodes[s] = da.NewPriorityQueueNode(0, s)
	us.pq.Insert(us.heapNodes[s])

	for !us.pq.IsEmpty() {
		node, _ := us.pq.ExtractMin()
		u := node.GetItem()
		us.numSettledNodes++

		relax := func(v da.Index, length float64) {
			newDist := us.dist[u] + length
			if newDist >= us.dist[v] {
				return
			}
			us.dist[v] = newDist
			if us.heapNodes[v] != nil && us.heapNodes[v].InHeap() {
				_ = us.pq.DecreaseKey(us.heapNodes[v], newDist)
				return
			}
			us.heapNodes[v] = da.NewPriorityQueueNode(newDist, v)
			us.pq.Insert(us.heapNodes[v])
		}

		if !us.useReverseGraph {
			us.graph.ForOutEdgesOf(u, func(e *da.OutEdge) {
				relax(e.GetHead(), e.GetLength())
			})
		} else {
			us.graph.ForInEdgesOf(u, func(e *da.InEdge) {
				relax(e.GetTail(), e.GetLength())
			})
		}
	}

	out := make([]float64, len(us.dist))
	copy(out, us.dist)
	return out
}

func (us *Dijkstra) GetNumSettledNodes() int {
	return us.numSettledNodes
}
