package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/lintang-b-s/campusnav/pkg/geo"
	"github.com/lintang-b-s/campusnav/pkg/logger"
	"github.com/lintang-b-s/campusnav/pkg/metrics"
	"github.com/lintang-b-s/campusnav/pkg/routeprovider"
	"go.uber.org/zap"
)

var (
	mapFile = flag.String("f", "./data/campus.osm.pbf", "openstreetmap extract (.osm, .osm.bz2, .osm.pbf)")
	wayName = flag.String("way", "", "name of the way to export")
	fromLat = flag.Float64("from_lat", 0, "origin latitude; with from_lon orients the route")
	fromLon = flag.Float64("from_lon", 0, "origin longitude")
	toLat   = flag.Float64("to_lat", 0, "destination latitude")
	toLon   = flag.Float64("to_lon", 0, "destination longitude")
)

// osmroute prints the encoded polyline of a named way, ready for route.static_geometry
// or PUT /api/sessions/:id/route.
func main() {
	flag.Parse()
	logger, err := logger.New()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	ctx := context.Background()
	way, err := routeprovider.LoadOSMWay(ctx, *mapFile, *wayName, logger)
	if err != nil {
		logger.Fatal("load way", zap.Error(err))
	}

	path := way.Path()
	origin, destination := path[0], path[len(path)-1]
	if *fromLat != 0 || *fromLon != 0 {
		origin = geo.NewCoordinate(*fromLat, *fromLon)
	}
	if *toLat != 0 || *toLon != 0 {
		destination = geo.NewCoordinate(*toLat, *toLon)
	}

	geometry, err := way.RouteGeometry(ctx, origin, destination)
	if err != nil {
		logger.Fatal("encode way", zap.Error(err))
	}

	estimator, err := metrics.NewEstimator(metrics.DefaultSpeedProfile())
	if err != nil {
		logger.Fatal("estimator", zap.Error(err))
	}
	for mode, m := range estimator.EstimateAll(path) {
		logger.Info("way metrics", zap.String("mode", mode.String()), zap.String("metrics", m.String()))
	}

	fmt.Fprintln(os.Stdout, geometry)
}
