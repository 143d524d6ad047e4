package datastructure

import (
	"math"

	"github.com/lintang-b-s/courierx/pkg/util"
)

// RunKosaraju. runs kosaraju's algorithm to find strongly connected components (SCCs) of the road graph
// and builds the condensation dag used to reject unreachable vertex pairs before running a search.
func (g *RoadGraph) RunKosaraju() {
	n := Index(g.NumberOfVertices())
	components := make([][]Index, 0, 10)

	order := make([]Index, 0, n)
	visited := make([]bool, n)
	for v := Index(0); v < n; v++ {
		if !visited[v] {
			g.dfs(v, &order, visited, false)
		}
	}

	order = util.ReverseG[Index](order)

	visited = make([]bool, n)
	roots := make([]Index, n)

	for _, v := range order {
		if !visited[v] {
			component := make([]Index, 0, 10)
			g.dfs(v, &component, visited, true)
			components = append(components, component)
			root := Index(math.MaxInt32)
			for _, node := range component {
				if node < root {
					root = node
				}
			}

			for _, node := range component {
				roots[node] = root
			}
		}
	}

	sccs := make([]Index, n)
	for i, component := range components {
		for _, v := range component {
			sccs[v] = Index(i)
		}
	}
	g.sccs = sccs

	condAdj := make([][]Index, len(components))
	seen := make(map[[2]Index]struct{})
	for u := Index(0); u < n; u++ {
		g.ForOutEdgesOf(u, func(e *OutEdge) {
			from, to := sccs[u], sccs[e.head]
			if from == to {
				return
			}
			key := [2]Index{from, to}
			if _, ok := seen[key]; ok {
				return
			}
			seen[key] = struct{}{}
			condAdj[from] = append(condAdj[from], to)
		})
	}

	g.sccCondensation = condAdj
}

func (g *RoadGraph) dfs(v Index, output *[]Index, visited []bool, reversed bool) {
	visited[v] = true

	if !reversed {
		g.ForOutEdgesOf(v, func(e *OutEdge) {
			if !visited[e.head] {
				g.dfs(e.head, output, visited, reversed)
			}
		})
	} else {
		g.ForInEdgesOf(v, func(e *InEdge) {
			if !visited[e.tail] {
				g.dfs(e.tail, output, visited, reversed)
			}
		})
	}

	*output = append(*output, v)
}

func (g *RoadGraph) GetSCCOfAVertex(u Index) Index {
	return g.sccs[u]
}

func (g *RoadGraph) NumberOfSCCs() int {
	return len(g.sccCondensation)
}

// ReachableSCCs marks every scc reachable from the scc of u, its own included.
func (g *RoadGraph) ReachableSCCs(u Index) []bool {
	reach := make([]bool, len(g.sccCondensation))
	start := g.sccs[u]
	reach[start] = true
	queue := []Index{start}
	for len(queue) > 0 {
		c := queue[0]
		queue = queue[1:]
		for _, next := range g.sccCondensation[c] {
			if !reach[next] {
				reach[next] = true
				queue = append(queue, next)
			}
		}
	}
	return reach
}

// VerticeUandVAreConnected reports whether v is reachable from u.
func (g *RoadGraph) VerticeUandVAreConnected(u, v Index) bool {
	if g.sccs[u] == g.sccs[v] {
		return true
	}
	return g.ReachableSCCs(u)[g.sccs[v]]
}
