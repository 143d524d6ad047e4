package util

import (
	"errors"
	"fmt"
	"runtime"
	"time"

	"github.com/joho/godotenv"
	"github.com/lintang-b-s/courierx/pkg"
	"github.com/spf13/viper"
)

func ReadConfig() error {
	// .env is optional, it only seeds the process environment before viper reads it.
	_ = godotenv.Load()

	SetConfigDefaults()
	viper.SetConfigName("config")
	viper.AddConfigPath("./data/")
	viper.AutomaticEnv()

	err := viper.ReadInConfig()
	if err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("fatal error config file: %w", err)
	}
	return nil
}

func SetConfigDefaults() {
	viper.SetDefault("API_PORT", 6060)
	viper.SetDefault("API_TIMEOUT", "300s")
	viper.SetDefault("HTTP_SERVER_READ_TIMEOUT", "30s")
	viper.SetDefault("HTTP_SERVER_WRITE_TIMEOUT", "30s")
	viper.SetDefault("HTTP_SERVER_IDLE_TIMEOUT", "120s")
	viper.SetDefault("HTTP_SERVER_READ_HEADER_TIMEOUT", "10s")
	viper.SetDefault("USE_RATE_LIMIT", false)
	viper.SetDefault("RATE_LIMIT_RPS", 10)
	viper.SetDefault("RATE_LIMIT_BURST", 20)
	viper.SetDefault("LOG_DEVELOPMENT", false)

	viper.SetDefault("GRAPH_FILE", "./data/plan.graph")
	viper.SetDefault("LANDMARK_FILE", "./data/plan.lm")
	viper.SetDefault("COURIER_SPEED_MPS", pkg.DEFAULT_COURIER_SPEED_MPS)
	viper.SetDefault("SOLVER_MAX_NODES", 0)
	viper.SetDefault("SOLVER_TIME_LIMIT", "0s")
	viper.SetDefault("ASTAR_HEURISTIC", "euclidean")
	viper.SetDefault("LANDMARK_COUNT", pkg.DEFAULT_LANDMARK_COUNT)
	viper.SetDefault("MATRIX_WORKERS", runtime.NumCPU())
	viper.SetDefault("LEG_CACHE_SIZE", 100000)
	viper.SetDefault("PARTITION_PARALLEL", true)
	viper.SetDefault("SNAP_RADIUS_KM", pkg.DEFAULT_SNAP_RADIUS_KM)
}

// Config. planner settings resolved from config.yaml, .env and the environment.
type Config struct {
	GraphFile    string
	LandmarkFile string
	APITimeout   time.Duration

	CourierSpeedMPS   float64
	SolverMaxNodes    int64
	SolverTimeLimit   time.Duration
	AStarHeuristic    string
	LandmarkCount     int
	MatrixWorkers     int
	LegCacheSize      int
	PartitionParallel bool
	SnapRadiusKM      float64

	UseRateLimit   bool
	RateLimitRPS   float64
	RateLimitBurst int
}

func LoadConfig() Config {
	cfg := Config{
		GraphFile:         viper.GetString("GRAPH_FILE"),
		LandmarkFile:      viper.GetString("LANDMARK_FILE"),
		APITimeout:        viper.GetDuration("API_TIMEOUT"),
		CourierSpeedMPS:   viper.GetFloat64("COURIER_SPEED_MPS"),
		SolverMaxNodes:    viper.GetInt64("SOLVER_MAX_NODES"),
		SolverTimeLimit:   viper.GetDuration("SOLVER_TIME_LIMIT"),
		AStarHeuristic:    viper.GetString("ASTAR_HEURISTIC"),
		LandmarkCount:     viper.GetInt("LANDMARK_COUNT"),
		MatrixWorkers:     viper.GetInt("MATRIX_WORKERS"),
		LegCacheSize:      viper.GetInt("LEG_CACHE_SIZE"),
		PartitionParallel: viper.GetBool("PARTITION_PARALLEL"),
		SnapRadiusKM:      viper.GetFloat64("SNAP_RADIUS_KM"),
		UseRateLimit:      viper.GetBool("USE_RATE_LIMIT"),
		RateLimitRPS:      viper.GetFloat64("RATE_LIMIT_RPS"),
		RateLimitBurst:    viper.GetInt("RATE_LIMIT_BURST"),
	}
	if cfg.MatrixWorkers <= 0 {
		cfg.MatrixWorkers = runtime.NumCPU()
	}
	if cfg.CourierSpeedMPS <= 0 {
		cfg.CourierSpeedMPS = pkg.DEFAULT_COURIER_SPEED_MPS
	}
	return cfg
}
