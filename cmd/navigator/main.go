package main

import (
	"context"
	"flag"
	"fmt"
	"time"

	"github.com/lintang-b-s/campusnav/pkg/geo"
	"github.com/lintang-b-s/campusnav/pkg/http"
	"github.com/lintang-b-s/campusnav/pkg/http/usecases"
	"github.com/lintang-b-s/campusnav/pkg/logger"
	"github.com/lintang-b-s/campusnav/pkg/metrics"
	"github.com/lintang-b-s/campusnav/pkg/navigation"
	"github.com/lintang-b-s/campusnav/pkg/panel"
	"github.com/lintang-b-s/campusnav/pkg/polyline"
	"github.com/lintang-b-s/campusnav/pkg/routeprovider"
	"github.com/lintang-b-s/campusnav/pkg/util"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

var (
	routeProvider = flag.String("route_provider", "", "route geometry provider: static or osm (overrides route.provider)")
	osmFile       = flag.String("osm_file", "", "openstreetmap extract (.osm, .osm.bz2, .osm.pbf) for the osm provider")
	osmWayName    = flag.String("osm_way", "", "name of the way used as route by the osm provider")
)

func main() {
	flag.Parse()
	logger, err := logger.New()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	if err := util.ReadConfig(); err != nil {
		logger.Fatal("read config", zap.Error(err))
	}
	setDefaults()

	ctx, cleanup, err := NewContext()
	if err != nil {
		panic(err)
	}

	speeds := metrics.SpeedProfile{
		Foot: viper.GetFloat64("metrics.speed_kmh.foot"),
		Bike: viper.GetFloat64("metrics.speed_kmh.bike"),
		Car:  viper.GetFloat64("metrics.speed_kmh.car"),
	}
	estimator, err := metrics.NewEstimator(speeds)
	if err != nil {
		logger.Fatal("invalid speed profile", zap.Error(err))
	}

	panelConfig := panel.ConfigForWindow(viper.GetFloat64("panel.window_height"),
		viper.GetFloat64("panel.min_ratio"), viper.GetFloat64("panel.max_ratio"))
	panelConfig.DeadZone = viper.GetFloat64("panel.dead_zone")
	panelConfig.CollapseThreshold = viper.GetFloat64("panel.collapse_threshold")
	panelConfig.AnimationDuration = viper.GetDuration("panel.animation_duration")
	if err := panelConfig.Validate(); err != nil {
		logger.Fatal("invalid panel config", zap.Error(err))
	}

	fallback := navigation.Destination{
		Coordinate: geo.NewCoordinate(viper.GetFloat64("destination.default.latitude"),
			viper.GetFloat64("destination.default.longitude")),
		Name:        viper.GetString("destination.default.name"),
		Description: viper.GetString("destination.default.description"),
		ImageRef:    viper.GetString("destination.default.image"),
	}
	if !fallback.Coordinate.Valid() {
		logger.Fatal("invalid default destination", zap.Float64("latitude", fallback.Coordinate.Lat),
			zap.Float64("longitude", fallback.Coordinate.Lon))
	}

	provider, err := newRouteProvider(ctx, logger)
	if err != nil {
		logger.Fatal("route provider", zap.Error(err))
	}

	decoder, err := polyline.NewCachedDecoder(viper.GetInt("polyline.cache_size"))
	if err != nil {
		logger.Fatal("polyline cache", zap.Error(err))
	}

	navigationService := usecases.NewNavigationService(logger, provider, decoder, estimator,
		usecases.NavigationConfig{
			Panel:         panelConfig,
			FrameInterval: viper.GetDuration("panel.frame_interval"),
			FixTimeout:    viper.GetDuration("location.fix_timeout"),
			Fallback:      fallback,
		})

	api := http.NewServer(logger)
	if _, err := api.Use(ctx, logger, navigationService); err != nil {
		logger.Fatal("start api", zap.Error(err))
	}

	signal := http.GracefulShutdown()

	closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := navigationService.Close(closeCtx); err != nil {
		logger.Warn("closing navigation sessions", zap.Error(err))
	}
	cleanup()
	if err := api.Wait(); err != nil {
		logger.Error("api stopped with error", zap.Error(err))
	}

	logger.Info("campusnav server stopped", zap.String("signal", signal.String()))
}

func setDefaults() {
	viper.SetDefault("metrics.speed_kmh.foot", metrics.DefaultFootSpeedKMH)
	viper.SetDefault("metrics.speed_kmh.bike", metrics.DefaultBikeSpeedKMH)
	viper.SetDefault("metrics.speed_kmh.car", metrics.DefaultCarSpeedKMH)

	viper.SetDefault("panel.window_height", 800)
	viper.SetDefault("panel.min_ratio", panel.DefaultMinRatio)
	viper.SetDefault("panel.max_ratio", panel.DefaultMaxRatio)
	viper.SetDefault("panel.dead_zone", panel.DefaultDeadZone)
	viper.SetDefault("panel.collapse_threshold", panel.DefaultCollapseThreshold)
	viper.SetDefault("panel.animation_duration", panel.DefaultAnimationDuration)
	viper.SetDefault("panel.frame_interval", navigation.DefaultFrameInterval)

	viper.SetDefault("destination.default.latitude", navigation.DefaultDestinationLat)
	viper.SetDefault("destination.default.longitude", navigation.DefaultDestinationLon)
	viper.SetDefault("destination.default.name", navigation.DefaultDestinationName)
	viper.SetDefault("destination.default.description", navigation.DefaultDestinationDescription)
	viper.SetDefault("destination.default.image", navigation.DefaultDestinationImage)

	viper.SetDefault("route.provider", "static")
	viper.SetDefault("route.static_geometry", routeprovider.PlaceholderGeometry)
	viper.SetDefault("route.osm_file", "./data/campus.osm.pbf")
	viper.SetDefault("route.osm_way_name", "")

	viper.SetDefault("location.fix_timeout", "30s")
	viper.SetDefault("polyline.cache_size", polyline.DefaultCacheSize)
}

func newRouteProvider(ctx context.Context, log *zap.Logger) (routeprovider.Provider, error) {
	kind := viper.GetString("route.provider")
	if *routeProvider != "" {
		kind = *routeProvider
	}

	switch kind {
	case "static":
		return routeprovider.NewStatic(viper.GetString("route.static_geometry")), nil
	case "osm":
		file := viper.GetString("route.osm_file")
		if *osmFile != "" {
			file = *osmFile
		}
		wayName := viper.GetString("route.osm_way_name")
		if *osmWayName != "" {
			wayName = *osmWayName
		}
		return routeprovider.LoadOSMWay(ctx, file, wayName, log)
	default:
		return nil, fmt.Errorf("unknown route provider %q", kind)
	}
}

func NewContext() (context.Context, func(), error) {
	ctx, cancel := context.WithCancel(context.Background())
	cb := func() {
		cancel()
	}

	return ctx, cb, nil
}
