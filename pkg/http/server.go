package http

import (
	"context"

	http_router "github.com/lintang-b-s/courierx/pkg/http/router"
	"github.com/lintang-b-s/courierx/pkg/http/router/controllers"
	http_server "github.com/lintang-b-s/courierx/pkg/http/server"
	"github.com/lintang-b-s/courierx/pkg/util"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

type Server struct {
	Log *zap.Logger
}

func NewServer(log *zap.Logger) *Server {
	return &Server{Log: log}
}

// Use runs the API and blocks until ctx is canceled or the server fails.
func (s *Server) Use(
	ctx context.Context,
	cfg util.Config,
	plannerService controllers.PlannerService,
) error {
	config := http_server.Config{
		Port:    viper.GetInt("API_PORT"),
		Timeout: viper.GetDuration("API_TIMEOUT"),
	}
	rateLimit := http_router.RateLimit{
		Enabled: cfg.UseRateLimit,
		RPS:     cfg.RateLimitRPS,
		Burst:   cfg.RateLimitBurst,
	}

	api := http_router.NewAPI(s.Log)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return api.Run(gctx, config, rateLimit, plannerService)
	})

	return g.Wait()
}
