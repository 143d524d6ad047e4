package datastructure

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func lineGraph(t *testing.T) *RoadGraph {
	t.Helper()
	nodes := []Node{
		NewNode(1, -7.7600, 110.3700),
		NewNode(2, -7.7601, 110.3701),
		NewNode(3, -7.7602, 110.3702),
	}
	segments := []RoadSegment{
		NewRoadSegment(1, 2, 5, "Jalan Kaliurang"),
		NewRoadSegment(2, 1, 5, "Jalan Kaliurang"),
		NewRoadSegment(2, 3, 5, "Jalan Colombo"),
		NewRoadSegment(3, 2, 5, "Jalan Colombo"),
	}
	g, err := NewRoadGraph(nodes, segments)
	require.NoError(t, err)
	return g
}

func TestNewRoadGraph(t *testing.T) {
	g := lineGraph(t)

	assert.Equal(t, 3, g.NumberOfVertices())
	assert.Equal(t, 4, g.NumberOfEdges())

	u, ok := g.IndexOf(2)
	require.True(t, ok)
	assert.Equal(t, Index(2), g.GetOutDegree(u))
	assert.Equal(t, Index(2), g.GetInDegree(u))

	heads := []int64{}
	g.ForOutEdgesOf(u, func(e *OutEdge) {
		heads = append(heads, g.GetNodeID(e.GetHead()))
	})
	assert.ElementsMatch(t, []int64{1, 3}, heads)

	v, _ := g.IndexOf(3)
	e, ok := g.GetEdgeBetween(u, v)
	require.True(t, ok)
	assert.Equal(t, "Jalan Colombo", g.GetStreetName(e))
	assert.Equal(t, 5.0, e.GetLength())

	_, ok = g.IndexOf(42)
	assert.False(t, ok)
}

func TestNewRoadGraphErrors(t *testing.T) {
	testCases := []struct {
		name     string
		nodes    []Node
		segments []RoadSegment
		wantErr  error
	}{
		{
			name:    "no nodes",
			wantErr: ErrEmptyRoadGraph,
		},
		{
			name:    "duplicate node",
			nodes:   []Node{NewNode(1, 0, 0), NewNode(1, 1, 1)},
			wantErr: ErrDuplicateNode,
		},
		{
			name:     "segment to unknown node",
			nodes:    []Node{NewNode(1, 0, 0)},
			segments: []RoadSegment{NewRoadSegment(1, 2, 3, "")},
			wantErr:  ErrNodeNotFound,
		},
		{
			name:     "negative length",
			nodes:    []Node{NewNode(1, 0, 0), NewNode(2, 0, 0)},
			segments: []RoadSegment{NewRoadSegment(1, 2, -3, "")},
			wantErr:  ErrNegativeLength,
		},
		{
			name:    "latitude out of range",
			nodes:   []Node{NewNode(1, 91, 0)},
			wantErr: ErrInvalidLocation,
		},
	}

	for _, tt := range testCases {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewRoadGraph(tt.nodes, tt.segments)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestParallelSegmentsKeepShortest(t *testing.T) {
	g, err := NewRoadGraph(
		[]Node{NewNode(10, 0, 0), NewNode(20, 0, 0.001)},
		[]RoadSegment{NewRoadSegment(10, 20, 9, "long"), NewRoadSegment(10, 20, 4, "short")},
	)
	require.NoError(t, err)

	u, _ := g.IndexOf(10)
	v, _ := g.IndexOf(20)
	e, ok := g.GetEdgeBetween(u, v)
	require.True(t, ok)
	assert.Equal(t, "short", g.GetStreetName(e))

	_, ok = g.GetEdgeBetween(v, u)
	assert.False(t, ok)
}

func TestKosaraju(t *testing.T) {
	// 1 <-> 2 -> 3 <-> 4, 5 isolated
	g, err := NewRoadGraph(
		[]Node{NewNode(1, 0, 0), NewNode(2, 0, 0), NewNode(3, 0, 0), NewNode(4, 0, 0), NewNode(5, 0, 0)},
		[]RoadSegment{
			NewRoadSegment(1, 2, 1, ""),
			NewRoadSegment(2, 1, 1, ""),
			NewRoadSegment(2, 3, 1, ""),
			NewRoadSegment(3, 4, 1, ""),
			NewRoadSegment(4, 3, 1, ""),
		},
	)
	require.NoError(t, err)
	idx := func(id int64) Index {
		u, ok := g.IndexOf(id)
		require.True(t, ok)
		return u
	}

	assert.Equal(t, 3, g.NumberOfSCCs())
	assert.Equal(t, g.GetSCCOfAVertex(idx(1)), g.GetSCCOfAVertex(idx(2)))
	assert.Equal(t, g.GetSCCOfAVertex(idx(3)), g.GetSCCOfAVertex(idx(4)))
	assert.NotEqual(t, g.GetSCCOfAVertex(idx(2)), g.GetSCCOfAVertex(idx(3)))

	assert.True(t, g.VerticeUandVAreConnected(idx(1), idx(4)))
	assert.False(t, g.VerticeUandVAreConnected(idx(4), idx(1)))
	assert.False(t, g.VerticeUandVAreConnected(idx(1), idx(5)))
	assert.True(t, g.VerticeUandVAreConnected(idx(5), idx(5)))
}

func TestGraphEncodeDecode(t *testing.T) {
	g := lineGraph(t)

	var buf bytes.Buffer
	require.NoError(t, g.Encode(&buf))

	got, err := DecodeGraph(&buf)
	require.NoError(t, err)

	assert.Equal(t, g.Nodes(), got.Nodes())
	assert.Equal(t, g.Segments(), got.Segments())
}

type brokenDisk struct{}

func (brokenDisk) Write(p []byte) (int, error) {
	return 0, errors.New("no space left on device")
}

func TestEncodeBzip2ReportsFlushError(t *testing.T) {
	// the snapshot fits in one bzip2 block, so nothing reaches the disk before close
	assert.Error(t, lineGraph(t).EncodeBzip2(brokenDisk{}))
}

func TestGraphWriteReadBzip2(t *testing.T) {
	g := lineGraph(t)
	filename := t.TempDir() + "/plan.graph"

	require.NoError(t, g.WriteGraph(filename))
	got, err := ReadGraph(filename)
	require.NoError(t, err)

	assert.Equal(t, g.NumberOfVertices(), got.NumberOfVertices())
	assert.Equal(t, g.Segments(), got.Segments())
}
