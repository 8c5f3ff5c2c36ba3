package usecases

import (
	"context"
	"errors"
	"runtime"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/lintang-b-s/campusnav/pkg"
	"github.com/lintang-b-s/campusnav/pkg/concurrent"
	"github.com/lintang-b-s/campusnav/pkg/geo"
	"github.com/lintang-b-s/campusnav/pkg/metrics"
	"github.com/lintang-b-s/campusnav/pkg/navigation"
	"github.com/lintang-b-s/campusnav/pkg/panel"
	"github.com/lintang-b-s/campusnav/pkg/polyline"
	"github.com/lintang-b-s/campusnav/pkg/routeprovider"
	"github.com/lintang-b-s/campusnav/pkg/util"
	"go.uber.org/zap"
)

type NavigationConfig struct {
	Panel            panel.Config
	FrameInterval    time.Duration
	FixTimeout       time.Duration
	Fallback         navigation.Destination
	MinViewportDelta float64
	EstimateWorkers  int
}

type RouteQuery struct {
	Geometry string
	Mode     pkg.TravelMode
}

type RouteEstimate struct {
	Mode    pkg.TravelMode
	Points  int
	Metrics *metrics.RouteMetrics
	Err     error
}

// NavigationService keeps the open map views, one navigation.Session each, keyed by
// a random id.
type NavigationService struct {
	log       *zap.Logger
	provider  routeprovider.Provider
	decoder   *polyline.CachedDecoder
	estimator *metrics.Estimator
	cfg       NavigationConfig

	mu       sync.RWMutex
	sessions map[string]*navigation.Session
}

func NewNavigationService(log *zap.Logger, provider routeprovider.Provider, decoder *polyline.CachedDecoder,
	estimator *metrics.Estimator, cfg NavigationConfig) *NavigationService {
	if cfg.EstimateWorkers <= 0 {
		cfg.EstimateWorkers = runtime.NumCPU()
	}
	return &NavigationService{
		log:       log,
		provider:  provider,
		decoder:   decoder,
		estimator: estimator,
		cfg:       cfg,
		sessions:  make(map[string]*navigation.Session),
	}
}

// CreateSession. open a map view for the destination in params and start its
// location flow.
func (ns *NavigationService) CreateSession(ctx context.Context, params navigation.Params) (*navigation.Session, error) {
	id := uuid.NewString()
	session, err := navigation.NewSession(id, ns.log, ns.provider, ns.decoder, ns.estimator, nil,
		navigation.SessionConfig{
			Panel:         ns.cfg.Panel,
			FrameInterval: ns.cfg.FrameInterval,
			FixTimeout:    ns.cfg.FixTimeout,
			Options: navigation.Options{
				Params:           params,
				Fallback:         ns.cfg.Fallback,
				Mode:             pkg.DEFAULT_TRAVEL_MODE,
				MinViewportDelta: ns.cfg.MinViewportDelta,
			},
		})
	if err != nil {
		return nil, util.WrapErrorf(err, util.ErrInternalServerError, "create session")
	}

	if err := session.Activate(ctx); err != nil {
		session.Close(context.Background())
		return nil, util.WrapErrorf(err, util.ErrInternalServerError, "activate session %s", id)
	}

	ns.mu.Lock()
	ns.sessions[id] = session
	ns.mu.Unlock()

	ns.log.Info("navigation session opened", zap.String("session", id),
		zap.String("destination", session.Coordinator().Destination().Name))
	return session, nil
}

func (ns *NavigationService) GetSession(id string) (*navigation.Session, error) {
	ns.mu.RLock()
	defer ns.mu.RUnlock()
	session, ok := ns.sessions[id]
	if !ok {
		return nil, util.WrapErrorf(nil, util.ErrNotFound, "session %s not found", id)
	}
	return session, nil
}

func (ns *NavigationService) DeleteSession(ctx context.Context, id string) error {
	ns.mu.Lock()
	session, ok := ns.sessions[id]
	delete(ns.sessions, id)
	ns.mu.Unlock()
	if !ok {
		return util.WrapErrorf(nil, util.ErrNotFound, "session %s not found", id)
	}

	ns.log.Info("navigation session closed", zap.String("session", id))
	return session.Close(ctx)
}

func (ns *NavigationService) SessionCount() int {
	ns.mu.RLock()
	defer ns.mu.RUnlock()
	return len(ns.sessions)
}

func (ns *NavigationService) DecodeGeometry(geometry string) ([]geo.Coordinate, error) {
	route, err := ns.decoder.Decode(geometry)
	if err != nil {
		return nil, util.WrapErrorf(err, util.ErrBadParamInput, "decode route geometry")
	}
	return route, nil
}

// EstimateRoutes. metrics for every query, computed on the worker pool. results are
// in query order; a malformed geometry fails only its own entry.
func (ns *NavigationService) EstimateRoutes(queries []RouteQuery) []RouteEstimate {
	return concurrent.Map(queries, ns.cfg.EstimateWorkers, func(q RouteQuery) RouteEstimate {
		route, err := ns.decoder.Decode(q.Geometry)
		if err != nil {
			return RouteEstimate{Mode: q.Mode, Err: util.WrapErrorf(err, util.ErrBadParamInput, "decode route geometry")}
		}
		m := ns.estimator.Estimate(route, q.Mode)
		return RouteEstimate{Mode: q.Mode, Points: len(route), Metrics: &m}
	})
}

// Close. tear down every open session.
func (ns *NavigationService) Close(ctx context.Context) error {
	ns.mu.Lock()
	sessions := ns.sessions
	ns.sessions = make(map[string]*navigation.Session)
	ns.mu.Unlock()

	var errs []error
	for _, s := range sessions {
		if err := s.Close(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
