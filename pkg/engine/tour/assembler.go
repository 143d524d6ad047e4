package tour

import (
	"errors"
	"fmt"

	da "github.com/lintang-b-s/courierx/pkg/datastructure"
	"github.com/lintang-b-s/courierx/pkg/geo"
)

var ErrMissingLeg = errors.New("no path between consecutive tour stops")

// PathLookup returns the road node sequence of the leg between two POI nodes.
type PathLookup interface {
	PathBetween(fromId, toId int64) ([]int64, bool)
}

// Assemble expands the closed tour over POI node ids into the road nodes driven, starting and ending
// at the first stop. Consecutive identical stops contribute nothing.
func Assemble(stops []int64, paths PathLookup) ([]int64, error) {
	path, _, err := AssembleLegs(stops, paths)
	return path, err
}

// AssembleLegs is Assemble that also returns, for every stop, the position in the path where the
// courier arrives at it.
func AssembleLegs(stops []int64, paths PathLookup) ([]int64, []int, error) {
	if len(stops) == 0 {
		return []int64{}, []int{}, nil
	}
	out := []int64{stops[0]}
	arrivals := make([]int, len(stops))
	if len(stops) == 1 {
		return out, arrivals, nil
	}
	for i := 0; i < len(stops); i++ {
		from, to := stops[i], stops[(i+1)%len(stops)]
		if from != to {
			path, ok := paths.PathBetween(from, to)
			if !ok || len(path) == 0 {
				return nil, nil, fmt.Errorf("%w: %d -> %d", ErrMissingLeg, from, to)
			}
			out = append(out, path[1:]...)
		}
		if i+1 < len(stops) {
			arrivals[i+1] = len(out) - 1
		}
	}
	return out, arrivals, nil
}

// Collapse reads the stop sequence back from an assembled path and its arrival positions. A leg may
// drive through POIs served later, so the stops can not be recovered from the node ids alone.
func Collapse(path []int64, arrivals []int) []int64 {
	stops := make([]int64, len(arrivals))
	for i, at := range arrivals {
		stops[i] = path[at]
	}
	return stops
}

// Segments renders consecutive path nodes as road segments, picking the shortest parallel segment.
func Segments(g *da.RoadGraph, path []int64) ([]da.RoadSegment, error) {
	segments := make([]da.RoadSegment, 0, len(path))
	for i := 0; i+1 < len(path); i++ {
		u, ok := g.IndexOf(path[i])
		if !ok {
			return nil, fmt.Errorf("%w: %d", da.ErrNodeNotFound, path[i])
		}
		v, ok := g.IndexOf(path[i+1])
		if !ok {
			return nil, fmt.Errorf("%w: %d", da.ErrNodeNotFound, path[i+1])
		}
		e, ok := g.GetEdgeBetween(u, v)
		if !ok {
			return nil, fmt.Errorf("%w: no road segment %d -> %d", ErrMissingLeg, path[i], path[i+1])
		}
		segments = append(segments, da.NewRoadSegment(path[i], path[i+1], e.GetLength(), g.GetStreetName(e)))
	}
	return segments, nil
}

// Polyline encodes the coordinates of the path nodes.
func Polyline(g *da.RoadGraph, path []int64) (string, error) {
	coords := make([]geo.Coordinate, 0, len(path))
	for _, id := range path {
		u, ok := g.IndexOf(id)
		if !ok {
			return "", fmt.Errorf("%w: %d", da.ErrNodeNotFound, id)
		}
		lat, lon := g.GetVertexCoordinates(u)
		coords = append(coords, geo.NewCoordinate(lat, lon))
	}
	return geo.PolylineFromCoords(coords), nil
}
