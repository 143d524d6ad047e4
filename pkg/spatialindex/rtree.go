package spatialindex

import (
	"errors"
	"fmt"
	"math"

	da "github.com/lintang-b-s/courierx/pkg/datastructure"
	"github.com/lintang-b-s/courierx/pkg/geo"
	"github.com/tidwall/rtree"
	"go.uber.org/zap"
)

var ErrNoRoadNearby = errors.New("no road segment within the snap radius")

type Rtree struct {
	tr    *rtree.RTreeG[SegmentEndpoints]
	graph *da.RoadGraph
}

// SegmentEndpoints is one directed road segment of the graph.
type SegmentEndpoints struct {
	tail da.Index
	head da.Index
}

func (se SegmentEndpoints) GetTail() da.Index {
	return se.tail
}

func (se SegmentEndpoints) GetHead() da.Index {
	return se.head
}

func NewRtree() *Rtree {
	var tr rtree.RTreeG[SegmentEndpoints]
	return &Rtree{
		tr: &tr,
	}
}

// Build. build r-tree, with each leaf having the bounding box of a segment padded by boundingBoxRadius (in km)
func (rt *Rtree) Build(graph *da.RoadGraph, boundingBoxRadius float64, log *zap.Logger) {
	log.Info("Building R-tree spatial index...", zap.Int("segments", graph.NumberOfEdges()))
	rt.graph = graph

	graph.ForSegments(func(tail da.Index, e *da.OutEdge) {
		head := e.GetHead()

		fromLat, fromLon := graph.GetVertexCoordinates(tail)
		toLat, toLon := graph.GetVertexCoordinates(head)
		lowerFromLat, lowerFromLon := geo.GetDestinationPoint(fromLat, fromLon, 225, boundingBoxRadius)
		upperFromLat, upperFromLon := geo.GetDestinationPoint(fromLat, fromLon, 45, boundingBoxRadius)

		lowerToLat, lowerToLon := geo.GetDestinationPoint(toLat, toLon, 225, boundingBoxRadius)
		upperToLat, upperToLon := geo.GetDestinationPoint(toLat, toLon, 45, boundingBoxRadius)

		minLat := math.Min(lowerFromLat, lowerToLat)
		minLon := math.Min(lowerFromLon, lowerToLon)
		maxLat := math.Max(upperFromLat, upperToLat)
		maxLon := math.Max(upperFromLon, upperToLon)

		rt.tr.Insert([2]float64{minLon, minLat}, [2]float64{maxLon, maxLat},
			SegmentEndpoints{tail: tail, head: head})
	})

	log.Info("R-tree spatial index built.")
}

// SearchWithinRadius search for all segments whose padded box intersects the radius (in km) around (qLat, qLon)
func (rt *Rtree) SearchWithinRadius(qLat, qLon, radius float64) []SegmentEndpoints {
	lowerLat, lowerLon := geo.GetDestinationPoint(qLat, qLon, 225, radius)
	upperLat, upperLon := geo.GetDestinationPoint(qLat, qLon, 45, radius)

	results := make([]SegmentEndpoints, 0, 10)
	rt.tr.Search([2]float64{lowerLon, lowerLat}, [2]float64{upperLon, upperLat},
		func(min, max [2]float64, data SegmentEndpoints) bool {
			results = append(results, data)
			return true
		})
	return results
}

// SnapToNode returns the road node closest to the query point: the segment nearest to the point is
// found first, then its closer endpoint. distance is in meters from the point to that node.
func (rt *Rtree) SnapToNode(qLat, qLon, radius float64) (da.Index, float64, error) {
	q := geo.NewCoordinate(qLat, qLon)

	bestSeg := -1
	bestSegDist := math.Inf(1)
	candidates := rt.SearchWithinRadius(qLat, qLon, radius)
	for i, c := range candidates {
		tLat, tLon := rt.graph.GetVertexCoordinates(c.tail)
		hLat, hLon := rt.graph.GetVertexCoordinates(c.head)
		d := geo.PointSegmentDistance(geo.NewCoordinate(tLat, tLon), geo.NewCoordinate(hLat, hLon), q)
		if d < bestSegDist {
			bestSeg, bestSegDist = i, d
		}
	}
	if bestSeg < 0 || bestSegDist > radius*1000 {
		return da.INVALID_VERTEX_ID, 0, fmt.Errorf("%w: (%f, %f) radius %.3f km", ErrNoRoadNearby, qLat, qLon, radius)
	}

	seg := candidates[bestSeg]
	tLat, tLon := rt.graph.GetVertexCoordinates(seg.tail)
	hLat, hLon := rt.graph.GetVertexCoordinates(seg.head)
	tDist := geo.GreatCircleDistance(qLat, qLon, tLat, tLon)
	hDist := geo.GreatCircleDistance(qLat, qLon, hLat, hLon)
	if hDist < tDist {
		return seg.head, hDist, nil
	}
	return seg.tail, tDist, nil
}
