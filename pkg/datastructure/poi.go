package datastructure

import (
	"errors"
	"fmt"
	"math"
)

var (
	ErrDimensionMismatch = errors.New("dimension mismatch")
	ErrInvalidPrecedence = errors.New("invalid precedence constraint")
	ErrInvalidWeight     = errors.New("cost matrix weight must be non-negative or +Inf")
)

// CostMatrix is a dense n x n matrix of shortest road distances between POIs.
// Unreachable pairs hold +Inf and the diagonal is zero.
type CostMatrix struct {
	n int
	w []float64
}

func NewCostMatrix(n int) *CostMatrix {
	m := &CostMatrix{n: n, w: make([]float64, n*n)}
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			if i != j {
				m.w[i*n+j] = math.Inf(1)
			}
		}
	}
	return m
}

// NewCostMatrixFromRows copies a square row-major matrix.
func NewCostMatrixFromRows(rows [][]float64) (*CostMatrix, error) {
	n := len(rows)
	m := &CostMatrix{n: n, w: make([]float64, n*n)}
	for i, row := range rows {
		if len(row) != n {
			return nil, fmt.Errorf("%w: row %d has %d columns, want %d", ErrDimensionMismatch, i, len(row), n)
		}
		for j, v := range row {
			if math.IsNaN(v) || v < 0 {
				return nil, fmt.Errorf("%w: [%d][%d] = %v", ErrInvalidWeight, i, j, v)
			}
			m.w[i*n+j] = v
		}
	}
	return m, nil
}

func (m *CostMatrix) Size() int {
	return m.n
}

func (m *CostMatrix) At(i, j int) float64 {
	return m.w[i*m.n+j]
}

func (m *CostMatrix) Set(i, j int, v float64) {
	m.w[i*m.n+j] = v
}

func (m *CostMatrix) IsFinite(i, j int) bool {
	return !math.IsInf(m.w[i*m.n+j], 1)
}

// Rows returns a row-major copy.
func (m *CostMatrix) Rows() [][]float64 {
	rows := make([][]float64, m.n)
	for i := 0; i < m.n; i++ {
		rows[i] = make([]float64, m.n)
		copy(rows[i], m.w[i*m.n:(i+1)*m.n])
	}
	return rows
}

// MinFiniteOffDiagonal is the smallest finite weight between two distinct POIs, 0 when there is none.
func (m *CostMatrix) MinFiniteOffDiagonal() float64 {
	minEdge := math.Inf(1)
	for i := 0; i < m.n; i++ {
		for j := 0; j < m.n; j++ {
			if i == j {
				continue
			}
			if v := m.w[i*m.n+j]; v < minEdge {
				minEdge = v
			}
		}
	}
	if math.IsInf(minEdge, 1) {
		return 0
	}
	return minEdge
}

// Submatrix keeps the rows and columns listed in indices, in that order.
func (m *CostMatrix) Submatrix(indices []int) *CostMatrix {
	k := len(indices)
	sub := &CostMatrix{n: k, w: make([]float64, k*k)}
	for a, i := range indices {
		for b, j := range indices {
			sub.w[a*k+b] = m.At(i, j)
		}
	}
	return sub
}

// Validate checks that the matrix only holds non-negative numbers or +Inf.
func (m *CostMatrix) Validate() error {
	for idx, v := range m.w {
		if math.IsNaN(v) || v < 0 {
			return fmt.Errorf("%w: [%d][%d] = %v", ErrInvalidWeight, idx/m.n, idx%m.n, v)
		}
	}
	return nil
}

// PathTable holds the road node sequence of every reachable ordered POI pair.
type PathTable struct {
	n     int
	paths [][]int64
}

func NewPathTable(n int) *PathTable {
	return &PathTable{n: n, paths: make([][]int64, n*n)}
}

func (pt *PathTable) Set(i, j int, path []int64) {
	pt.paths[i*pt.n+j] = path
}

// Get returns the path from POI i to POI j, starting with i's node and ending with j's node.
func (pt *PathTable) Get(i, j int) ([]int64, bool) {
	if i < 0 || j < 0 || i >= pt.n || j >= pt.n {
		return nil, false
	}
	p := pt.paths[i*pt.n+j]
	return p, p != nil
}

func (pt *PathTable) Size() int {
	return pt.n
}

// Precedence lists, for each POI index, the pickup indices that must be visited before it. Several
// requests may deliver to the same node, so an index can wait on more than one pickup.
type Precedence [][]int

func NewPrecedence(n int) Precedence {
	return make(Precedence, n)
}

// Require records that pickup must be visited before d. Duplicates are ignored.
func (p Precedence) Require(d, pickup int) {
	for _, q := range p[d] {
		if q == pickup {
			return
		}
	}
	p[d] = append(p[d], pickup)
}

// Constrained reports whether d waits on at least one pickup.
func (p Precedence) Constrained(d int) bool {
	return len(p[d]) > 0
}

// Satisfied reports whether every pickup required by v is visited.
func (p Precedence) Satisfied(v int, visited []bool) bool {
	for _, q := range p[v] {
		if !visited[q] {
			return false
		}
	}
	return true
}

func (p Precedence) Validate(n int) error {
	if len(p) != n {
		return fmt.Errorf("%w: precedence has %d entries, want %d", ErrDimensionMismatch, len(p), n)
	}
	for d, pickups := range p {
		for _, pickup := range pickups {
			if pickup < 0 || pickup >= n {
				return fmt.Errorf("%w: pickup %d of %d out of range", ErrInvalidPrecedence, pickup, d)
			}
			if pickup == d {
				return fmt.Errorf("%w: %d requires itself", ErrInvalidPrecedence, d)
			}
		}
	}
	return nil
}

// BuildVertexOrder lists the depot first, then each request's pickup and delivery, keeping only the
// first occurrence of a node.
func BuildVertexOrder(demand DemandSet) []int64 {
	order := make([]int64, 0, 1+2*len(demand.Requests))
	seen := make(map[int64]struct{}, 1+2*len(demand.Requests))
	add := func(id int64) {
		if _, ok := seen[id]; ok {
			return
		}
		seen[id] = struct{}{}
		order = append(order, id)
	}
	add(demand.Depot.NodeID)
	for _, r := range demand.Requests {
		add(r.PickupNodeID)
		add(r.DeliveryNodeID)
	}
	return order
}

// BuildPrecedence derives the pickup-before-delivery constraints of the requests. A delivery node shared
// by several requests waits on all of their pickups. Same-node requests and constraints on the start
// POI are satisfied trivially and are not recorded.
func BuildPrecedence(order []int64, requests []DeliveryRequest) Precedence {
	indexOf := make(map[int64]int, len(order))
	for i, id := range order {
		indexOf[id] = i
	}
	prec := NewPrecedence(len(order))
	for _, r := range requests {
		p, okP := indexOf[r.PickupNodeID]
		d, okD := indexOf[r.DeliveryNodeID]
		if !okP || !okD || p == d || d == 0 {
			continue
		}
		prec.Require(d, p)
	}
	return prec
}

// POIModel bundles the distance matrix, the leg paths and the precedence of one planning request.
// Index 0 is always the depot.
type POIModel struct {
	vertexOrder []int64
	indexOf     map[int64]int
	costs       *CostMatrix
	paths       *PathTable
	precedence  Precedence
}

func NewPOIModel(vertexOrder []int64, costs *CostMatrix, paths *PathTable, precedence Precedence) *POIModel {
	indexOf := make(map[int64]int, len(vertexOrder))
	for i, id := range vertexOrder {
		indexOf[id] = i
	}
	return &POIModel{
		vertexOrder: vertexOrder,
		indexOf:     indexOf,
		costs:       costs,
		paths:       paths,
		precedence:  precedence,
	}
}

func (pm *POIModel) Size() int {
	return len(pm.vertexOrder)
}

func (pm *POIModel) GetVertexOrder() []int64 {
	return pm.vertexOrder
}

func (pm *POIModel) GetNodeID(i int) int64 {
	return pm.vertexOrder[i]
}

func (pm *POIModel) IndexOf(nodeId int64) (int, bool) {
	i, ok := pm.indexOf[nodeId]
	return i, ok
}

func (pm *POIModel) GetCostMatrix() *CostMatrix {
	return pm.costs
}

func (pm *POIModel) GetPathTable() *PathTable {
	return pm.paths
}

func (pm *POIModel) GetPrecedence() Precedence {
	return pm.precedence
}

func (pm *POIModel) GetDepotIndex() int {
	return 0
}

// PathBetween looks up the leg path between two POI nodes.
func (pm *POIModel) PathBetween(fromId, toId int64) ([]int64, bool) {
	i, ok := pm.indexOf[fromId]
	if !ok {
		return nil, false
	}
	j, ok := pm.indexOf[toId]
	if !ok {
		return nil, false
	}
	return pm.paths.Get(i, j)
}

// CostBetween looks up the road distance between two POI nodes, +Inf when unknown.
func (pm *POIModel) CostBetween(fromId, toId int64) float64 {
	i, ok := pm.indexOf[fromId]
	if !ok {
		return math.Inf(1)
	}
	j, ok := pm.indexOf[toId]
	if !ok {
		return math.Inf(1)
	}
	return pm.costs.At(i, j)
}
