package main

import (
	"context"
	"encoding/json"
	"flag"
	"io"
	"os"
	"os/signal"
	"syscall"

	da "github.com/lintang-b-s/courierx/pkg/datastructure"
	"github.com/lintang-b-s/courierx/pkg/engine"
	"github.com/lintang-b-s/courierx/pkg/engine/tsp"
	"github.com/lintang-b-s/courierx/pkg/logger"
	"github.com/lintang-b-s/courierx/pkg/osmparser"
	"github.com/lintang-b-s/courierx/pkg/util"
	"go.uber.org/zap"
)

var (
	planFile    = flag.String("plan", "./data/petitPlan.xml", "city plan xml (noeud/troncon)")
	demandFile  = flag.String("demand", "./data/demandePetit1.xml", "delivery demand xml (entrepot/livraison)")
	couriers    = flag.Int("couriers", 1, "number of couriers, 0 means as many as max_duration needs")
	speed       = flag.Float64("speed", 0, "courier speed in m/s, 0 uses COURIER_SPEED_MPS")
	maxDuration = flag.Float64("max_duration", 0, "maximum work of one courier in seconds, 0 means no cap")
	outFile     = flag.String("out", "", "write the plan json to this file instead of stdout")
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

	graph, err := osmparser.ParsePlanFile(*planFile)
	if err != nil {
		logger.Fatal("read plan", zap.String("file", *planFile), zap.Error(err))
	}
	demand, err := osmparser.ParseDemandFile(*demandFile)
	if err != nil {
		logger.Fatal("read demand", zap.String("file", *demandFile), zap.Error(err))
	}

	e, err := engine.NewEngineFromGraph(graph, nil, engine.Config{
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
	}, logger)
	if err != nil {
		logger.Fatal("build engine", zap.Error(err))
	}

	courierSpeed := *speed
	if courierSpeed == 0 {
		courierSpeed = cfg.CourierSpeedMPS
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	plan, err := e.Plan(ctx, engine.PlanRequest{
		Demand:               demand,
		CourierCount:         *couriers,
		SpeedMetersPerSecond: courierSpeed,
		MaxDurationSeconds:   *maxDuration,
	}, func(ct da.CourierTour) {
		logger.Info("courier tour",
			zap.Int("courier", ct.CourierIndex),
			zap.Int("requests", len(ct.Requests)),
			zap.Float64("distance_meters", ct.DistanceMeters),
			zap.Float64("total_seconds", ct.TotalSeconds),
			zap.Bool("failed", ct.Failed))
	})
	if err != nil {
		logger.Fatal("plan", zap.Error(err))
	}

	if *outFile == "" {
		if err := writePlan(os.Stdout, plan); err != nil {
			logger.Fatal("write plan", zap.Error(err))
		}
		return
	}
	f, err := os.Create(*outFile)
	if err != nil {
		logger.Fatal("create output", zap.String("file", *outFile), zap.Error(err))
	}
	if err := writePlan(f, plan); err != nil {
		f.Close()
		logger.Fatal("write plan", zap.String("file", *outFile), zap.Error(err))
	}
	if err := f.Close(); err != nil {
		logger.Fatal("close output", zap.String("file", *outFile), zap.Error(err))
	}
}

func writePlan(out io.Writer, plan any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(plan)
}
