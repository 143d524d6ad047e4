package osmparser

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/lintang-b-s/courierx/pkg"
	da "github.com/lintang-b-s/courierx/pkg/datastructure"
	"github.com/lintang-b-s/courierx/pkg/geo"
	"github.com/paulmach/osm"
	"github.com/paulmach/osm/osmpbf"
	"github.com/paulmach/osm/osmxml"
	"go.uber.org/zap"
)

var ErrUnknownMapFormat = errors.New("unknown map file format, expected .osm, .xml or .pbf")

type MapFormat uint8

const (
	FORMAT_OSM_XML MapFormat = iota
	FORMAT_OSM_PBF
)

// FormatOf picks the scanner from the file extension.
func FormatOf(mapFile string) (MapFormat, error) {
	switch strings.ToLower(filepath.Ext(mapFile)) {
	case ".osm", ".xml":
		return FORMAT_OSM_XML, nil
	case ".pbf":
		return FORMAT_OSM_PBF, nil
	default:
		return 0, fmt.Errorf("%w: %s", ErrUnknownMapFormat, mapFile)
	}
}

type osmScanner interface {
	Scan() bool
	Object() osm.Object
	Err() error
	Close() error
}

type NodeCoord struct {
	lat float64
	lon float64
}

// osmWay is an accepted way, reduced to what the road graph needs.
type osmWay struct {
	id       int64
	nodes    []int64
	forward  bool
	backward bool
	name     string
}

type OsmParser struct {
	wayNodeMap      map[int64]struct{}
	acceptedNodeMap map[int64]NodeCoord
	ways            []osmWay
}

func NewOSMParser() *OsmParser {
	return &OsmParser{
		wayNodeMap:      make(map[int64]struct{}),
		acceptedNodeMap: make(map[int64]NodeCoord),
		ways:            make([]osmWay, 0),
	}
}

// Parse reads an OSM extract and builds the courier road graph. Node ids of the graph are the osm node ids.
func (p *OsmParser) Parse(ctx context.Context, mapFile string, logger *zap.Logger) (*da.RoadGraph, error) {
	format, err := FormatOf(mapFile)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(mapFile)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return p.ParseFrom(ctx, f, format, logger)
}

// ParseFrom scans the input twice: ways first to learn which nodes are on a road, then nodes to get
// their coordinates.
func (p *OsmParser) ParseFrom(ctx context.Context, r io.ReadSeeker, format MapFormat, logger *zap.Logger) (*da.RoadGraph, error) {
	err := p.scan(ctx, r, format, func(o osm.Object) {
		way, ok := o.(*osm.Way)
		if !ok || len(way.Nodes) < 2 || !acceptOsmWay(way) {
			return
		}
		p.processWay(way)
	})
	if err != nil {
		return nil, err
	}
	logger.Sugar().Infof("accepted osm ways: %d", len(p.ways))

	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}
	err = p.scan(ctx, r, format, func(o osm.Object) {
		node, ok := o.(*osm.Node)
		if !ok {
			return
		}
		if _, onRoad := p.wayNodeMap[int64(node.ID)]; onRoad {
			p.acceptedNodeMap[int64(node.ID)] = NodeCoord{lat: node.Lat, lon: node.Lon}
		}
	})
	if err != nil {
		return nil, err
	}

	graph, err := p.buildGraph()
	if err != nil {
		return nil, err
	}
	logger.Sugar().Infof("number of vertices: %v", graph.NumberOfVertices())
	logger.Sugar().Infof("number of edges: %v", graph.NumberOfEdges())
	return graph, nil
}

func (p *OsmParser) scan(ctx context.Context, r io.Reader, format MapFormat, handle func(o osm.Object)) error {
	var scanner osmScanner
	switch format {
	case FORMAT_OSM_PBF:
		scanner = osmpbf.New(ctx, r, 0)
	default:
		scanner = osmxml.New(ctx, r)
	}
	defer scanner.Close()

	// must not be parallel
	for scanner.Scan() {
		handle(scanner.Object())
	}
	return scanner.Err()
}

func (p *OsmParser) processWay(way *osm.Way) {
	w := osmWay{
		id:       int64(way.ID),
		nodes:    make([]int64, 0, len(way.Nodes)),
		name:     way.Tags.Find("name"),
		forward:  true,
		backward: true,
	}

	highway := pkg.GetHighwayType(way.Tags.Find("highway"))
	oneway := way.Tags.Find("oneway")
	okvf, okmvf, okvb, okmvb := getReversedOneWay(way)
	switch {
	case oneway == "-1":
		w.forward = false
	case oneway == "yes" || oneway == "1" || oneway == "true":
		w.backward = false
	case oneway == "no":
	case highway.ImpliedOneWay() || way.Tags.Find("junction") == "roundabout":
		w.backward = false
	}
	if okvf || okmvf {
		// restricted/not allowed forward.
		w.forward = false
	}
	if okvb || okmvb {
		w.backward = false
	}
	if !w.forward && !w.backward {
		return
	}

	for _, wn := range way.Nodes {
		id := int64(wn.ID)
		w.nodes = append(w.nodes, id)
		p.wayNodeMap[id] = struct{}{}
	}
	p.ways = append(p.ways, w)
}

func (p *OsmParser) buildGraph() (*da.RoadGraph, error) {
	used := make(map[int64]struct{})
	segments := make([]da.RoadSegment, 0)
	for _, w := range p.ways {
		for i := 0; i+1 < len(w.nodes); i++ {
			from, to := w.nodes[i], w.nodes[i+1]
			if from == to {
				continue
			}
			fromCoord, ok := p.acceptedNodeMap[from]
			if !ok {
				continue
			}
			toCoord, ok := p.acceptedNodeMap[to]
			if !ok {
				continue
			}
			length := geo.CalculateHaversineDistance(fromCoord.lat, fromCoord.lon, toCoord.lat, toCoord.lon) * 1000

			if w.forward {
				segments = append(segments, da.NewRoadSegment(from, to, length, w.name))
			}
			if w.backward {
				segments = append(segments, da.NewRoadSegment(to, from, length, w.name))
			}
			used[from] = struct{}{}
			used[to] = struct{}{}
		}
	}

	ids := make([]int64, 0, len(used))
	for id := range used {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	nodes := make([]da.Node, len(ids))
	for i, id := range ids {
		c := p.acceptedNodeMap[id]
		nodes[i] = da.NewNode(id, c.lat, c.lon)
	}
	return da.NewRoadGraph(nodes, segments)
}

func isRestricted(value string) bool {
	if value == "no" || value == "restricted" {
		return true
	}
	return false
}

func getReversedOneWay(way *osm.Way) (bool, bool, bool, bool) {
	vehicleForward := way.Tags.Find("vehicle:forward")
	motorVehicleForward := way.Tags.Find("motor_vehicle:forward")
	vehicleBackward := way.Tags.Find("vehicle:backward")
	motorVehicleBackward := way.Tags.Find("motor_vehicle:backward")
	return isRestricted(vehicleForward), isRestricted(motorVehicleForward), isRestricted(vehicleBackward), isRestricted(motorVehicleBackward)
}

func acceptOsmWay(way *osm.Way) bool {
	highway := way.Tags.Find("highway")
	if highway == "" {
		return false
	}
	if access := way.Tags.Find("access"); isRestricted(access) || access == "private" {
		return false
	}
	return pkg.GetHighwayType(highway).CourierRoutable()
}
