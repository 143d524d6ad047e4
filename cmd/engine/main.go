package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	da "github.com/lintang-b-s/courierx/pkg/datastructure"
	"github.com/lintang-b-s/courierx/pkg/engine"
	"github.com/lintang-b-s/courierx/pkg/engine/tsp"
	"github.com/lintang-b-s/courierx/pkg/http"
	"github.com/lintang-b-s/courierx/pkg/http/usecases"
	"github.com/lintang-b-s/courierx/pkg/logger"
	"github.com/lintang-b-s/courierx/pkg/metrics"
	"github.com/lintang-b-s/courierx/pkg/util"
	"go.uber.org/zap"
)

var (
	inlineOnly = flag.Bool("inline_only", false, "start without a server graph, every request must send its own graph")
)

func main() {
	flag.Parse()
	if err := util.ReadConfig(); err != nil {
		panic(err)
	}
	cfg := util.LoadConfig()

	logger, err := logger.New()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()
	metrics.RegisterDefault()

	engineCfg := engine.Config{
		Heuristic:     cfg.AStarHeuristic,
		LandmarkCount: cfg.LandmarkCount,
		MatrixWorkers: cfg.MatrixWorkers,
		LegCacheSize:  cfg.LegCacheSize,
		SolverOptions: tsp.Options{
			MaxNodes:  cfg.SolverMaxNodes,
			TimeLimit: cfg.SolverTimeLimit,
		},
		PartitionParallel: cfg.PartitionParallel,
		SnapRadiusKM:      cfg.SnapRadiusKM,
	}

	var planEngine usecases.PlanEngine
	if !*inlineOnly {
		landmarkFile := cfg.LandmarkFile
		if _, err := os.Stat(landmarkFile); err != nil {
			landmarkFile = ""
		}
		routingEngine, err := engine.NewEngine(cfg.GraphFile, landmarkFile, engineCfg, logger)
		if err != nil {
			logger.Fatal("can not load road graph", zap.String("graph_file", cfg.GraphFile), zap.Error(err))
		}
		planEngine = routingEngine
	}

	// inline graphs are small, landmarks are computed per request
	factory := func(graph *da.RoadGraph) (usecases.PlanEngine, error) {
		e, err := engine.NewInlineEngine(graph, engineCfg, logger)
		if err != nil {
			return nil, err
		}
		return e, nil
	}
	plannerService := usecases.NewPlannerService(logger, planEngine, factory, cfg.CourierSpeedMPS, cfg.APITimeout)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	api := http.NewServer(logger)
	if err := api.Use(ctx, cfg, plannerService); err != nil {
		logger.Error("courierx server stopped with error", zap.Error(err))
		return
	}
	logger.Info("courierx server stopped")
}
