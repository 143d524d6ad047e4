package landmark

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"sort"
	"strconv"
	"sync"

	"github.com/dsnet/compress/bzip2"
	"github.com/lintang-b-s/courierx/pkg"
	da "github.com/lintang-b-s/courierx/pkg/datastructure"
	"github.com/lintang-b-s/courierx/pkg/geo"
	"github.com/lintang-b-s/courierx/pkg/util"
	"go.uber.org/zap"
)

var ErrTooManyLandmarks = errors.New("too much landmarks!, the maximum number of landmarks is 64")

type Landmark struct {
	lw        [][]float64 // distance from each landmarks to every vertices in graph
	vlw       [][]float64 // distance from all vertices to each landmarks
	landmarks []da.Index  // landmark vertex ids
}

func NewLandmark() *Landmark {
	return &Landmark{
		lw:        make([][]float64, 0),
		vlw:       make([][]float64, 0),
		landmarks: make([]da.Index, 0),
	}
}

func (lm *Landmark) GetLandmarks() []da.Index {
	return lm.landmarks
}

/*
[1] Goldberg, A.V. and Harrelson, C. (2005) 'Computing the shortest path: A search meets graph theory', in Proceedings of the Sixteenth Annual ACM-SIAM Symposium on Discrete Algorithms. pp. 156-165.

planar landmark selection described in section 7 of [1]: the bounding box is split into k sectors around its
center and the vertex farthest in the direction of each sector becomes a landmark.
*/
func SelectLandmarks(k int, g *da.RoadGraph) []da.Index {
	thetaDif := 360.0 / float64(k)

	landmarks := make([]da.Index, k)
	vs := g.GetVertices()
	n := len(vs)

	bb := g.GetBoundingBox()
	centerLat := (bb.MaxLat + bb.MinLat) / 2.0
	centerLon := (bb.MaxLon + bb.MinLon) / 2.0

	vsCopy := make([]*da.Vertex, n)
	copy(vsCopy, vs)

	theta := 0.0
	for i := 0; i < k; i++ {
		// O(k * VlogV)
		thetaRad := util.DegreeToRadians(theta)
		sint := math.Sin(thetaRad)
		cost := math.Cos(thetaRad)
		sort.SliceStable(vsCopy, func(i, j int) bool {
			a := vsCopy[i].GetLon()*cost + vsCopy[i].GetLat()*sint
			b := vsCopy[j].GetLon()*cost + vsCopy[j].GetLat()*sint
			return a < b
		})

		cand := vsCopy[n-1]
		cmaxLon := vsCopy[n-1].GetLon()
		cmaxLat := vsCopy[n-1].GetLat()

		// on the axes prefer the extreme vertex closest to the center line
		if math.Abs(sint) < 1e-9 {
			minxDist := math.MaxFloat64
			for j := n / 2; j < n; j++ {
				v := vsCopy[j]
				dist := geo.CalculateHaversineDistance(v.GetLat(), v.GetLon(), centerLat, cmaxLon)
				if dist < minxDist {
					minxDist = dist
					cand = v
				}
			}
		} else if math.Abs(cost) < 1e-9 {
			minyDist := math.MaxFloat64
			for j := n / 2; j < n; j++ {
				v := vsCopy[j]
				dist := geo.CalculateHaversineDistance(v.GetLat(), v.GetLon(), cmaxLat, centerLon)
				if dist < minyDist {
					minyDist = dist
					cand = v
				}
			}
		}
		landmarks[i] = cand.GetID()

		theta += thetaDif
	}

	return landmarks
}

/*
preprocessing phase of A*, landmark, and triangle inequality (ALT) described in [1]

O((n+m)logn * k), n=number of vertices,m=number of edges,k=number of landmarks
*/
func (lm *Landmark) PreprocessALT(k int, g *da.RoadGraph, logger *zap.Logger) error {
	if k > pkg.MAX_LANDMARK_COUNT {
		return ErrTooManyLandmarks
	}
	if k <= 0 {
		return fmt.Errorf("number of landmarks must be positive, got %d", k)
	}
	logger.Info("computing landmarks....", zap.Int("k", k))
	n := g.NumberOfVertices()

	lm.lw = make([][]float64, k)
	lm.vlw = make([][]float64, n)
	for v := 0; v < n; v++ {
		lm.vlw[v] = make([]float64, k)
	}
	lm.landmarks = SelectLandmarks(k, g)

	var (
		lock sync.Mutex
		wg   sync.WaitGroup
	)
	for i := 0; i < k; i++ {
		sid := lm.landmarks[i]

		wg.Add(2)
		go func(il int, sidl da.Index) {
			defer wg.Done()

			sps := NewDijkstra(g, false).ShortestPath(sidl) // O((n+m)logn)

			lock.Lock()
			lm.lw[il] = sps
			lock.Unlock()
		}(i, sid)

		go func(il int, sidl da.Index) {
			defer wg.Done()

			sps := NewDijkstra(g, true).ShortestPath(sidl)

			lock.Lock()
			for v := 0; v < n; v++ {
				lm.vlw[v][il] = sps[v]
			}
			lock.Unlock()
		}(i, sid)
	}

	wg.Wait()
	logger.Info("done computing landmarks....")
	return nil
}

/*
[2] Bast, H. et al. (2016) "Route Planning in Transportation Networks," in Algorithm Engineering: Selected Results and Surveys. pp. 19-80.

tighest lower bound of dist(u,t) over all landmarks, section 6 of [1] or section 2.2 ALT in [2].
the result is clamped at zero so it stays a feasible potential.
*/
func (lm *Landmark) FindTighestLowerBound(u, t da.Index) float64 {
	// O(k), k = number of landmarks
	tighestLowerBound := -math.MaxFloat64
	for i := 0; i < len(lm.landmarks); i++ {
		if lm.vlw[u][i] >= pkg.INF_WEIGHT || lm.lw[i][t] >= pkg.INF_WEIGHT ||
			lm.vlw[t][i] >= pkg.INF_WEIGHT || lm.lw[i][u] >= pkg.INF_WEIGHT {
			continue
		}
		lbOne := lm.vlw[u][i] - lm.vlw[t][i]
		lbTwo := lm.lw[i][t] - lm.lw[i][u]

		tighestLowerBound = math.Max(tighestLowerBound, math.Max(lbOne, lbTwo))
	}

	return math.Max(tighestLowerBound, 0)
}

func (lm *Landmark) WriteLandmark(filename string) error {
	f, err := os.Create(filename)
	if err != nil {
		return err
	}
	if err := lm.encodeBzip2(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func (lm *Landmark) encodeBzip2(out io.Writer) error {
	bz, err := bzip2.NewWriter(out, &bzip2.WriterConfig{})
	if err != nil {
		return err
	}
	if err := lm.encode(bz); err != nil {
		bz.Close()
		return err
	}
	return bz.Close()
}

func (lm *Landmark) encode(out io.Writer) error {
	w := bufio.NewWriter(out)

	k := len(lm.landmarks)
	n := len(lm.vlw)
	fmt.Fprintf(w, "%d %d\n", k, n)

	for i := 0; i < k; i++ {
		fmt.Fprintf(w, "%d ", lm.landmarks[i])

		for v := 0; v < n; v++ {
			fmt.Fprintf(w, "%s", strconv.FormatFloat(lm.lw[i][v], 'f', -1, 64))
			if v < n-1 {
				fmt.Fprintf(w, " ")
			}
		}
		fmt.Fprintf(w, "\n")

		for v := 0; v < n; v++ {
			fmt.Fprintf(w, "%s", strconv.FormatFloat(lm.vlw[v][i], 'f', -1, 64))
			if v < n-1 {
				fmt.Fprintf(w, " ")
			}
		}
		fmt.Fprintf(w, "\n")
	}

	return w.Flush()
}

// ReadLandmark loads landmark distances written by WriteLandmark. n must match the graph they are used with.
func ReadLandmark(filename string) (*Landmark, error) {
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
	br := bufio.NewReader(bz)

	line, err := util.ReadLine(br)
	if err != nil {
		return nil, err
	}
	ff := util.Fields(line)
	if len(ff) != 2 {
		return nil, fmt.Errorf("invalid landmark header %q", line)
	}
	k, err := strconv.Atoi(ff[0])
	if err != nil {
		return nil, err
	}
	n, err := strconv.Atoi(ff[1])
	if err != nil {
		return nil, err
	}

	landmarks := make([]da.Index, k)
	lw := make([][]float64, k)
	vlw := make([][]float64, n)
	for v := 0; v < n; v++ {
		vlw[v] = make([]float64, k)
	}

	for i := 0; i < k; i++ {
		line, err := util.ReadLine(br)
		if err != nil {
			return nil, err
		}
		ff := util.Fields(line)
		if len(ff) != n+1 {
			return nil, fmt.Errorf("landmark %d: got %d distances, want %d", i, len(ff)-1, n)
		}

		landmarks[i], err = da.ParseIndex(ff[0])
		if err != nil {
			return nil, err
		}
		lw[i] = make([]float64, n)
		for j := 1; j < len(ff); j++ {
			lw[i][j-1], err = strconv.ParseFloat(ff[j], 64)
			if err != nil {
				return nil, err
			}
		}

		line, err = util.ReadLine(br)
		if err != nil {
			return nil, err
		}
		ff = util.Fields(line)
		if len(ff) != n {
			return nil, fmt.Errorf("landmark %d: got %d reverse distances, want %d", i, len(ff), n)
		}
		for v := 0; v < n; v++ {
			vlw[v][i], err = strconv.ParseFloat(ff[v], 64)
			if err != nil {
				return nil, err
			}
		}
	}

	lm := NewLandmark()
	lm.lw = lw
	lm.vlw = vlw
	lm.landmarks = landmarks
	return lm, nil
}

// NumberOfVertices is the size of the graph the landmarks were computed for.
func (lm *Landmark) NumberOfVertices() int {
	return len(lm.vlw)
}
