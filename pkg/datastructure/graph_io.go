package datastructure

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/dsnet/compress/bzip2"
	"github.com/lintang-b-s/courierx/pkg/util"
)

/*
graph file layout (bzip2 compressed text):

	<numNodes> <numSegments> <numStreetNames>
	<quoted street name>                         x numStreetNames
	<nodeId> <lat> <lon>                         x numNodes
	<originId> <destinationId> <length> <street> x numSegments
*/

func (g *RoadGraph) WriteGraph(filename string) error {
	f, err := os.Create(filename)
	if err != nil {
		return err
	}
	if err := g.EncodeBzip2(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// EncodeBzip2 writes the compressed snapshot. The last block is only flushed on close, so the close
// error is part of the result.
func (g *RoadGraph) EncodeBzip2(out io.Writer) error {
	bz, err := bzip2.NewWriter(out, &bzip2.WriterConfig{})
	if err != nil {
		return err
	}
	if err := g.Encode(bz); err != nil {
		bz.Close()
		return err
	}
	return bz.Close()
}

// Encode writes the uncompressed text form of the graph.
func (g *RoadGraph) Encode(out io.Writer) error {
	w := bufio.NewWriter(out)

	fmt.Fprintf(w, "%d %d %d\n", g.NumberOfVertices(), g.NumberOfEdges(), len(g.streetNames))

	for _, name := range g.streetNames {
		fmt.Fprintf(w, "%s\n", strconv.Quote(name))
	}

	for _, v := range g.GetVertices() {
		latF := strconv.FormatFloat(v.lat, 'f', -1, 64)
		lonF := strconv.FormatFloat(v.lon, 'f', -1, 64)
		fmt.Fprintf(w, "%d %s %s\n", v.osmId, latF, lonF)
	}

	var err error
	g.ForSegments(func(tail Index, e *OutEdge) {
		lengthF := strconv.FormatFloat(e.length, 'f', -1, 64)
		if _, werr := fmt.Fprintf(w, "%d %d %s %d\n", g.GetNodeID(tail), g.GetNodeID(e.head), lengthF,
			e.streetId); werr != nil && err == nil {
			err = werr
		}
	})
	if err != nil {
		return err
	}

	return w.Flush()
}

func ReadGraph(filename string) (*RoadGraph, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	bz, err := bzip2.NewReader(f, nil)
	if err != nil {
		return nil, err
	}
	defer bz.Close()

	return DecodeGraph(bz)
}

// DecodeGraph reads the uncompressed text form written by Encode.
func DecodeGraph(in io.Reader) (*RoadGraph, error) {
	br := bufio.NewReader(in)

	line, err := util.ReadLine(br)
	if err != nil {
		return nil, err
	}
	ff := util.Fields(line)
	if len(ff) != 3 {
		return nil, fmt.Errorf("invalid graph header %q", line)
	}
	numNodes, err := strconv.Atoi(ff[0])
	if err != nil {
		return nil, err
	}
	numSegments, err := strconv.Atoi(ff[1])
	if err != nil {
		return nil, err
	}
	numStreets, err := strconv.Atoi(ff[2])
	if err != nil {
		return nil, err
	}

	streetNames := make([]string, numStreets)
	for i := 0; i < numStreets; i++ {
		line, err = util.ReadLine(br)
		if err != nil {
			return nil, err
		}
		streetNames[i], err = strconv.Unquote(strings.TrimSpace(line))
		if err != nil {
			return nil, fmt.Errorf("invalid street name %q: %w", line, err)
		}
	}

	nodes := make([]Node, numNodes)
	for i := 0; i < numNodes; i++ {
		line, err = util.ReadLine(br)
		if err != nil {
			return nil, err
		}
		ff = util.Fields(line)
		if len(ff) != 3 {
			return nil, fmt.Errorf("invalid node line %q", line)
		}
		id, err := strconv.ParseInt(ff[0], 10, 64)
		if err != nil {
			return nil, err
		}
		lat, err := strconv.ParseFloat(ff[1], 64)
		if err != nil {
			return nil, err
		}
		lon, err := strconv.ParseFloat(ff[2], 64)
		if err != nil {
			return nil, err
		}
		nodes[i] = NewNode(id, lat, lon)
	}

	segments := make([]RoadSegment, numSegments)
	for i := 0; i < numSegments; i++ {
		line, err = util.ReadLine(br)
		if err != nil {
			return nil, err
		}
		ff = util.Fields(line)
		if len(ff) != 4 {
			return nil, fmt.Errorf("invalid segment line %q", line)
		}
		origin, err := strconv.ParseInt(ff[0], 10, 64)
		if err != nil {
			return nil, err
		}
		destination, err := strconv.ParseInt(ff[1], 10, 64)
		if err != nil {
			return nil, err
		}
		length, err := strconv.ParseFloat(ff[2], 64)
		if err != nil {
			return nil, err
		}
		street, err := ParseIndex(ff[3])
		if err != nil {
			return nil, err
		}
		if int(street) >= numStreets {
			return nil, fmt.Errorf("street index %d out of range", street)
		}
		segments[i] = NewRoadSegment(origin, destination, length, streetNames[street])
	}

	return NewRoadGraph(nodes, segments)
}
