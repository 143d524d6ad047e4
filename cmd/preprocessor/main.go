package main

import (
	"context"
	"flag"
	"path/filepath"
	"strings"

	da "github.com/lintang-b-s/courierx/pkg/datastructure"
	"github.com/lintang-b-s/courierx/pkg/landmark"
	"github.com/lintang-b-s/courierx/pkg/logger"
	"github.com/lintang-b-s/courierx/pkg/osmparser"
	"go.uber.org/zap"
)

var (
	mapFile       = flag.String("map", "./data/lyon.osm.pbf", "osm extract (.osm, .osm.pbf) or city plan xml")
	format        = flag.String("format", "auto", "input format: auto, osm or plan. auto reads .xml as a city plan")
	graphOut      = flag.String("graph_out", "./data/plan.graph", "bzip2 graph snapshot output")
	landmarkOut   = flag.String("landmark_out", "./data/plan.lm", "landmark output, empty to skip")
	landmarkCount = flag.Int("landmarks", 8, "number of ALT landmarks")
)

func main() {
	flag.Parse()
	logger, err := logger.New()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	graph, err := readGraph(*mapFile, *format, logger)
	if err != nil {
		logger.Fatal("read map", zap.String("map", *mapFile), zap.Error(err))
	}
	logger.Info("road graph built", zap.Int("vertices", graph.NumberOfVertices()),
		zap.Int("segments", graph.NumberOfEdges()))

	if err := graph.WriteGraph(*graphOut); err != nil {
		logger.Fatal("write graph", zap.String("file", *graphOut), zap.Error(err))
	}

	if *landmarkOut != "" && *landmarkCount > 0 {
		lm := landmark.NewLandmark()
		k := min(*landmarkCount, graph.NumberOfVertices())
		if err := lm.PreprocessALT(k, graph, logger); err != nil {
			logger.Fatal("select landmarks", zap.Error(err))
		}
		if err := lm.WriteLandmark(*landmarkOut); err != nil {
			logger.Fatal("write landmarks", zap.String("file", *landmarkOut), zap.Error(err))
		}
	}

	logger.Sugar().Infof("Preprocessing completed successfully.")
}

func readGraph(path, format string, logger *zap.Logger) (*da.RoadGraph, error) {
	if format == "auto" {
		format = "osm"
		if strings.ToLower(filepath.Ext(path)) == ".xml" {
			format = "plan"
		}
	}
	if format == "plan" {
		return osmparser.ParsePlanFile(path)
	}
	return osmparser.NewOSMParser().Parse(context.Background(), path, logger)
}
