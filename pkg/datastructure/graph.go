package datastructure

import (
	"errors"
	"fmt"
	"math"
	"strconv"
)

type Index uint32

const INVALID_VERTEX_ID = Index(math.MaxUint32)

var (
	ErrNodeNotFound    = errors.New("node not found in road graph")
	ErrDuplicateNode   = errors.New("duplicate node id")
	ErrNegativeLength  = errors.New("road segment length must be finite and non-negative")
	ErrEmptyRoadGraph  = errors.New("road graph has no nodes")
	ErrInvalidLocation = errors.New("node coordinates out of range")
)

// Node is an intersection of the road network, identified by an opaque 64-bit id.
type Node struct {
	ID  int64   `json:"id"`
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

func NewNode(id int64, lat, lon float64) Node {
	return Node{ID: id, Lat: lat, Lon: lon}
}

// RoadSegment is a directed road piece between two nodes. Two-way streets are two segments.
type RoadSegment struct {
	Origin      int64   `json:"origin_id"`
	Destination int64   `json:"destination_id"`
	Length      float64 `json:"length"`
	StreetName  string  `json:"street_name"`
}

func NewRoadSegment(origin, destination int64, length float64, streetName string) RoadSegment {
	return RoadSegment{Origin: origin, Destination: destination, Length: length, StreetName: streetName}
}

type Vertex struct {
	lat      float64
	lon      float64
	osmId    int64 // external node id
	firstOut Index // index of the first outEdge of this vertex in the flattened graph.outEdges array
	firstIn  Index // index of the first inEdge of this vertex in the flattened graph.inEdges array
	id       Index
}

func NewVertex(lat, lon float64, id Index, nodeId int64) *Vertex {
	return &Vertex{
		lat:   lat,
		lon:   lon,
		id:    id,
		osmId: nodeId,
	}
}

func (v *Vertex) GetID() Index {
	return v.id
}

func (v *Vertex) GetNodeID() int64 {
	return v.osmId
}

func (v *Vertex) GetLat() float64 {
	return v.lat
}

func (v *Vertex) GetLon() float64 {
	return v.lon
}

func (v *Vertex) GetFirstOut() Index {
	return v.firstOut
}

func (v *Vertex) GetFirstIn() Index {
	return v.firstIn
}

type OutEdge struct {
	length   float64 // meter
	head     Index
	streetId Index
}

type InEdge struct {
	length   float64 // meter
	tail     Index
	streetId Index
}

func (e *OutEdge) GetHead() Index {
	return e.head
}

func (e *OutEdge) GetLength() float64 {
	return e.length
}

func (e *OutEdge) GetStreetId() Index {
	return e.streetId
}

func (e *InEdge) GetTail() Index {
	return e.tail
}

func (e *InEdge) GetLength() float64 {
	return e.length
}

// RoadGraph. immutable directed road network stored as forward and backward compressed adjacency arrays.
// vertices has one trailing sentinel so that the edges of v are [v.firstOut, (v+1).firstOut).
type RoadGraph struct {
	vertices    []*Vertex
	outEdges    []OutEdge
	inEdges     []InEdge
	streetNames []string
	nodeIndex   map[int64]Index

	sccs            []Index   // scc id of each vertex
	sccCondensation [][]Index // dag of sccs
	boundingBox     BoundingBox
}

type BoundingBox struct {
	MinLat, MinLon, MaxLat, MaxLon float64
}

// NewRoadGraph builds the graph from a node list and directed segments. Parallel segments are kept.
func NewRoadGraph(nodes []Node, segments []RoadSegment) (*RoadGraph, error) {
	if len(nodes) == 0 {
		return nil, ErrEmptyRoadGraph
	}

	n := len(nodes)
	g := &RoadGraph{
		vertices:  make([]*Vertex, n+1),
		nodeIndex: make(map[int64]Index, n),
		outEdges:  make([]OutEdge, len(segments)),
		inEdges:   make([]InEdge, len(segments)),
		boundingBox: BoundingBox{
			MinLat: math.MaxFloat64, MinLon: math.MaxFloat64,
			MaxLat: -math.MaxFloat64, MaxLon: -math.MaxFloat64,
		},
	}

	for i, node := range nodes {
		if _, ok := g.nodeIndex[node.ID]; ok {
			return nil, fmt.Errorf("%w: %d", ErrDuplicateNode, node.ID)
		}
		if node.Lat < -90 || node.Lat > 90 || node.Lon < -180 || node.Lon > 180 {
			return nil, fmt.Errorf("%w: node %d (%f, %f)", ErrInvalidLocation, node.ID, node.Lat, node.Lon)
		}
		g.nodeIndex[node.ID] = Index(i)
		g.vertices[i] = NewVertex(node.Lat, node.Lon, Index(i), node.ID)
		g.boundingBox.MinLat = math.Min(g.boundingBox.MinLat, node.Lat)
		g.boundingBox.MinLon = math.Min(g.boundingBox.MinLon, node.Lon)
		g.boundingBox.MaxLat = math.Max(g.boundingBox.MaxLat, node.Lat)
		g.boundingBox.MaxLon = math.Max(g.boundingBox.MaxLon, node.Lon)
	}
	g.vertices[n] = NewVertex(0, 0, Index(n), 0)

	type arc struct {
		tail, head Index
		length     float64
		street     Index
	}

	streetIds := make(map[string]Index)
	arcs := make([]arc, len(segments))
	outDegree := make([]Index, n+1)
	inDegree := make([]Index, n+1)
	for i, seg := range segments {
		tail, ok := g.nodeIndex[seg.Origin]
		if !ok {
			return nil, fmt.Errorf("%w: segment origin %d", ErrNodeNotFound, seg.Origin)
		}
		head, ok := g.nodeIndex[seg.Destination]
		if !ok {
			return nil, fmt.Errorf("%w: segment destination %d", ErrNodeNotFound, seg.Destination)
		}
		if seg.Length < 0 || math.IsNaN(seg.Length) || math.IsInf(seg.Length, 0) {
			return nil, fmt.Errorf("%w: %d -> %d (%v)", ErrNegativeLength, seg.Origin, seg.Destination, seg.Length)
		}
		sid, ok := streetIds[seg.StreetName]
		if !ok {
			sid = Index(len(g.streetNames))
			streetIds[seg.StreetName] = sid
			g.streetNames = append(g.streetNames, seg.StreetName)
		}
		arcs[i] = arc{tail: tail, head: head, length: seg.Length, street: sid}
		outDegree[tail]++
		inDegree[head]++
	}

	// prefix sums give the offsets of the compressed adjacency arrays
	outPos := make([]Index, n+1)
	inPos := make([]Index, n+1)
	var outOffset, inOffset Index
	for v := 0; v <= n; v++ {
		g.vertices[v].firstOut = outOffset
		g.vertices[v].firstIn = inOffset
		outPos[v] = outOffset
		inPos[v] = inOffset
		outOffset += outDegree[v]
		inOffset += inDegree[v]
	}

	for _, a := range arcs {
		g.outEdges[outPos[a.tail]] = OutEdge{length: a.length, head: a.head, streetId: a.street}
		outPos[a.tail]++
		g.inEdges[inPos[a.head]] = InEdge{length: a.length, tail: a.tail, streetId: a.street}
		inPos[a.head]++
	}

	g.RunKosaraju()
	return g, nil
}

func (g *RoadGraph) NumberOfVertices() int {
	return len(g.vertices) - 1
}

func (g *RoadGraph) NumberOfEdges() int {
	return len(g.outEdges)
}

func (g *RoadGraph) GetVertex(u Index) *Vertex {
	return g.vertices[u]
}

// GetVertices returns all vertices without the sentinel.
func (g *RoadGraph) GetVertices() []*Vertex {
	return g.vertices[:len(g.vertices)-1]
}

func (g *RoadGraph) GetVertexCoordinates(u Index) (float64, float64) {
	v := g.vertices[u]
	return v.lat, v.lon
}

func (g *RoadGraph) GetNodeID(u Index) int64 {
	return g.vertices[u].osmId
}

// IndexOf maps an external node id to its vertex index.
func (g *RoadGraph) IndexOf(nodeId int64) (Index, bool) {
	u, ok := g.nodeIndex[nodeId]
	return u, ok
}

func (g *RoadGraph) HasNode(nodeId int64) bool {
	_, ok := g.nodeIndex[nodeId]
	return ok
}

func (g *RoadGraph) GetOutDegree(u Index) Index {
	return g.vertices[u+1].firstOut - g.vertices[u].firstOut
}

func (g *RoadGraph) GetInDegree(u Index) Index {
	return g.vertices[u+1].firstIn - g.vertices[u].firstIn
}

func (g *RoadGraph) ForOutEdgesOf(u Index, handle func(e *OutEdge)) {
	for i := g.vertices[u].firstOut; i < g.vertices[u+1].firstOut; i++ {
		handle(&g.outEdges[i])
	}
}

func (g *RoadGraph) ForInEdgesOf(v Index, handle func(e *InEdge)) {
	for i := g.vertices[v].firstIn; i < g.vertices[v+1].firstIn; i++ {
		handle(&g.inEdges[i])
	}
}

// ForSegments iterates every directed segment of the graph in vertex order.
func (g *RoadGraph) ForSegments(handle func(tail Index, e *OutEdge)) {
	for u := Index(0); u < Index(g.NumberOfVertices()); u++ {
		g.ForOutEdgesOf(u, func(e *OutEdge) {
			handle(u, e)
		})
	}
}

// GetEdgeBetween returns the shortest of the (possibly parallel) segments u -> v.
func (g *RoadGraph) GetEdgeBetween(u, v Index) (*OutEdge, bool) {
	var best *OutEdge
	g.ForOutEdgesOf(u, func(e *OutEdge) {
		if e.head != v {
			return
		}
		if best == nil || e.length < best.length {
			best = e
		}
	})
	return best, best != nil
}

func (g *RoadGraph) GetStreetName(e *OutEdge) string {
	return g.streetNames[e.streetId]
}

func (g *RoadGraph) GetBoundingBox() BoundingBox {
	return g.boundingBox
}

// Nodes returns the node list the graph was built from, ordered by vertex index.
func (g *RoadGraph) Nodes() []Node {
	nodes := make([]Node, 0, g.NumberOfVertices())
	for _, v := range g.GetVertices() {
		nodes = append(nodes, NewNode(v.osmId, v.lat, v.lon))
	}
	return nodes
}

// Segments returns all directed segments grouped by origin vertex.
func (g *RoadGraph) Segments() []RoadSegment {
	segments := make([]RoadSegment, 0, g.NumberOfEdges())
	g.ForSegments(func(tail Index, e *OutEdge) {
		segments = append(segments, NewRoadSegment(g.GetNodeID(tail), g.GetNodeID(e.head), e.length,
			g.GetStreetName(e)))
	})
	return segments
}

func ParseIndex(s string) (Index, error) {
	u, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, err
	}
	if u > math.MaxUint32 {
		return 0, fmt.Errorf("value %s overflows uint32", s)
	}
	return Index(u), nil
}
