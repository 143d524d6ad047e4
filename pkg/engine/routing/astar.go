package routing

import (
	"github.com/lintang-b-s/courierx/pkg"
	da "github.com/lintang-b-s/courierx/pkg/datastructure"
)

type VertexInfo struct {
	dist     float64
	parent   da.Index
	heapNode *da.PriorityQueueNode[da.Index]
}

func NewVertexInfo(dist float64, parent da.Index) *VertexInfo {
	return &VertexInfo{dist: dist, parent: parent}
}

func (vi *VertexInfo) GetDist() float64 {
	return vi.dist
}

func (vi *VertexInfo) GetParent() da.Index {
	return vi.parent
}

// AStar point-to-point search on the road graph. Labels are kept in a map so that one search only
// touches the vertices it explores. Not safe for concurrent use, create one per goroutine.
type AStar struct {
	graph     *da.RoadGraph
	heuristic Heuristic

	info map[da.Index]*VertexInfo
	pq   *da.MinHeap[da.Index]

	numSettledNodes int
}

func NewAStar(graph *da.RoadGraph, heuristic Heuristic) *AStar {
	if heuristic == nil {
		heuristic = ZeroHeuristic{}
	}
	return &AStar{
		graph:     graph,
		heuristic: heuristic,
		info:      make(map[da.Index]*VertexInfo),
		pq:        da.NewFourAryHeap[da.Index](),
	}
}

func (as *AStar) reset() {
	as.info = make(map[da.Index]*VertexInfo)
	as.pq.Clear()
	as.numSettledNodes = 0
}

// ShortestPath returns the length and vertex sequence of a shortest path from s to t, found=false when
// t is unreachable.
func (as *AStar) ShortestPath(s, t da.Index) (float64, []da.Index, bool) {
	as.reset()
	if s == t {
		return 0, []da.Index{s}, true
	}

	sInfo := NewVertexInfo(0, da.INVALID_VERTEX_ID)
	sInfo.heapNode = da.NewPriorityQueueNode(as.heuristic.LowerBound(s, t), s)
	as.info[s] = sInfo
	as.pq.Insert(sInfo.heapNode)

	for !as.pq.IsEmpty() {
		node, _ := as.pq.ExtractMin()
		u := node.GetItem()
		as.numSettledNodes++

		if u == t {
			return as.info[t].dist, as.retrievePath(s, t), true
		}

		uDist := as.info[u].dist
		as.graph.ForOutEdgesOf(u, func(e *da.OutEdge) {
			v := e.GetHead()
			newDist := uDist + e.GetLength()
			if newDist >= pkg.INF_WEIGHT {
				return
			}

			vInfo, visited := as.info[v]
			if visited && newDist >= vInfo.dist {
				return
			}

			priority := newDist + as.heuristic.LowerBound(v, t)
			if !visited {
				vInfo = NewVertexInfo(newDist, u)
				vInfo.heapNode = da.NewPriorityQueueNode(priority, v)
				as.info[v] = vInfo
				as.pq.Insert(vInfo.heapNode)
				return
			}

			vInfo.dist = newDist
			vInfo.parent = u
			if vInfo.heapNode.InHeap() {
				_ = as.pq.DecreaseKey(vInfo.heapNode, priority)
			} else {
				// settled vertex improved, possible only with a non consistent heuristic
				vInfo.heapNode = da.NewPriorityQueueNode(priority, v)
				as.pq.Insert(vInfo.heapNode)
			}
		})
	}

	return pkg.INF_WEIGHT, nil, false
}

func (as *AStar) retrievePath(s, t da.Index) []da.Index {
	path := make([]da.Index, 0, 16)
	for cur := t; cur != da.INVALID_VERTEX_ID; cur = as.info[cur].parent {
		path = append(path, cur)
		if cur == s {
			break
		}
	}
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return path
}

func (as *AStar) GetNumSettledNodes() int {
	return as.numSettledNodes
}
