package routing

import (
	"fmt"
	"math"

	da "github.com/lintang-b-s/courierx/pkg/datastructure"
	"github.com/lintang-b-s/courierx/pkg/geo"
	"github.com/lintang-b-s/courierx/pkg/landmark"
	"github.com/lintang-b-s/courierx/pkg/util"
)

const (
	HEURISTIC_EUCLIDEAN   = "euclidean"
	HEURISTIC_GREATCIRCLE = "greatcircle"
	HEURISTIC_LANDMARK    = "landmark"
	HEURISTIC_NONE        = "none"
)

// Heuristic is a lower bound on the road distance from u to t used to guide A*.
type Heuristic interface {
	LowerBound(u, t da.Index) float64
}

// ZeroHeuristic turns A* into plain dijkstra.
type ZeroHeuristic struct{}

func (ZeroHeuristic) LowerBound(u, t da.Index) float64 {
	return 0
}

const metersPerDegree = 111_194.9266

// EuclideanHeuristic is the straight line distance on an equirectangular plane centered on the graph.
// Distances are multiplied by the smallest length/straight-line ratio over all segments (at most 1),
// which keeps the bound consistent even when segment lengths are shorter than their geometry.
type EuclideanHeuristic struct {
	x, y  []float64 // projected coordinates in meters
	scale float64
}

func NewEuclideanHeuristic(g *da.RoadGraph) *EuclideanHeuristic {
	n := g.NumberOfVertices()
	bb := g.GetBoundingBox()
	cosRef := math.Cos(util.DegreeToRadians((bb.MinLat + bb.MaxLat) / 2))

	h := &EuclideanHeuristic{
		x: make([]float64, n),
		y: make([]float64, n),
	}
	for i, v := range g.GetVertices() {
		h.x[i] = v.GetLon() * cosRef * metersPerDegree
		h.y[i] = v.GetLat() * metersPerDegree
	}
	h.scale = calibrateScale(g, h.straightLine)
	return h
}

func (h *EuclideanHeuristic) straightLine(u, t da.Index) float64 {
	return math.Hypot(h.x[u]-h.x[t], h.y[u]-h.y[t])
}

func (h *EuclideanHeuristic) LowerBound(u, t da.Index) float64 {
	return h.scale * h.straightLine(u, t)
}

func (h *EuclideanHeuristic) GetScale() float64 {
	return h.scale
}

// GreatCircleHeuristic is the s2 great-circle distance, calibrated like EuclideanHeuristic.
type GreatCircleHeuristic struct {
	g     *da.RoadGraph
	scale float64
}

func NewGreatCircleHeuristic(g *da.RoadGraph) *GreatCircleHeuristic {
	h := &GreatCircleHeuristic{g: g}
	h.scale = calibrateScale(g, h.greatCircle)
	return h
}

func (h *GreatCircleHeuristic) greatCircle(u, t da.Index) float64 {
	uLat, uLon := h.g.GetVertexCoordinates(u)
	tLat, tLon := h.g.GetVertexCoordinates(t)
	return geo.GreatCircleDistance(uLat, uLon, tLat, tLon)
}

func (h *GreatCircleHeuristic) LowerBound(u, t da.Index) float64 {
	return h.scale * h.greatCircle(u, t)
}

// LandmarkHeuristic ALT lower bound from precomputed landmark distances.
type LandmarkHeuristic struct {
	lm *landmark.Landmark
}

func NewLandmarkHeuristic(lm *landmark.Landmark) *LandmarkHeuristic {
	return &LandmarkHeuristic{lm: lm}
}

func (h *LandmarkHeuristic) LowerBound(u, t da.Index) float64 {
	return h.lm.FindTighestLowerBound(u, t)
}

// calibrateScale returns min(1, min over segments of length / dist(tail, head)), slightly shrunk to
// absorb rounding.
func calibrateScale(g *da.RoadGraph, dist func(u, t da.Index) float64) float64 {
	scale := 1.0
	g.ForSegments(func(tail da.Index, e *da.OutEdge) {
		d := dist(tail, e.GetHead())
		if d <= 0 {
			return
		}
		if r := e.GetLength() / d; r < scale {
			scale = r
		}
	})
	return scale * (1 - 1e-9)
}

// NewHeuristic builds the heuristic named kind. lm is only used by HEURISTIC_LANDMARK.
func NewHeuristic(kind string, g *da.RoadGraph, lm *landmark.Landmark) (Heuristic, error) {
	switch kind {
	case HEURISTIC_EUCLIDEAN, "":
		return NewEuclideanHeuristic(g), nil
	case HEURISTIC_GREATCIRCLE:
		return NewGreatCircleHeuristic(g), nil
	case HEURISTIC_LANDMARK:
		if lm == nil {
			return nil, fmt.Errorf("landmark heuristic requires preprocessed landmarks")
		}
		if lm.NumberOfVertices() != g.NumberOfVertices() {
			return nil, fmt.Errorf("landmarks were computed for %d vertices, graph has %d",
				lm.NumberOfVertices(), g.NumberOfVertices())
		}
		return NewLandmarkHeuristic(lm), nil
	case HEURISTIC_NONE:
		return ZeroHeuristic{}, nil
	default:
		return nil, fmt.Errorf("unknown A* heuristic %q", kind)
	}
}
