package http

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	http_router "github.com/lintang-b-s/campusnav/pkg/http/router"
	"github.com/lintang-b-s/campusnav/pkg/http/router/controllers"
	http_server "github.com/lintang-b-s/campusnav/pkg/http/server"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

type Server struct {
	Log *zap.Logger
	g   *errgroup.Group
}

func NewServer(log *zap.Logger) *Server {
	return &Server{Log: log}
}

// Use. start the API in the background. it stops when ctx is cancelled; Wait
// returns the server error, if any.
func (s *Server) Use(
	ctx context.Context,
	log *zap.Logger,

	navigationService controllers.NavigationService,
) (*Server, error) {
	viper.SetDefault("api.port", 6060)
	viper.SetDefault("api.timeout", "30s")
	viper.SetDefault("api.use_rate_limit", false)
	viper.SetDefault("api.rate_limit", 20)
	viper.SetDefault("api.rate_burst", 40)

	config := http_server.Config{
		Port:    viper.GetInt("api.port"),
		Timeout: viper.GetDuration("api.timeout"),
	}
	rateLimit := http_router.RateLimit{
		Enabled: viper.GetBool("api.use_rate_limit"),
		RPS:     viper.GetFloat64("api.rate_limit"),
		Burst:   viper.GetInt("api.rate_burst"),
	}

	server := http_router.NewAPI(log)

	s.g = &errgroup.Group{}
	s.g.Go(func() error {
		return server.Run(ctx, config, log, rateLimit, navigationService)
	})

	return s, nil
}

func (s *Server) Wait() error {
	if s.g == nil {
		return nil
	}
	return s.g.Wait()
}

// GracefulShutdown blocks until SIGINT or SIGTERM.
func GracefulShutdown() os.Signal {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)
	return <-quit
}
