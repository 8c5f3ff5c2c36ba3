package metrics

import (
	"errors"
	"fmt"

	"github.com/lintang-b-s/campusnav/pkg"
	"github.com/lintang-b-s/campusnav/pkg/geo"
	"github.com/lintang-b-s/campusnav/pkg/util"
)

var ErrInvalidSpeed = errors.New("reference speed must be a positive finite km/h value")

// reference speeds in km/h for an urban campus.
const (
	DefaultFootSpeedKMH = 5.0
	DefaultBikeSpeedKMH = 15.0
	DefaultCarSpeedKMH  = 40.0
)

// SpeedProfile holds the reference speed (km/h) of every travel mode.
type SpeedProfile struct {
	Foot float64 `mapstructure:"foot" json:"foot"`
	Bike float64 `mapstructure:"bike" json:"bike"`
	Car  float64 `mapstructure:"car" json:"car"`
}

func DefaultSpeedProfile() SpeedProfile {
	return SpeedProfile{
		Foot: DefaultFootSpeedKMH,
		Bike: DefaultBikeSpeedKMH,
		Car:  DefaultCarSpeedKMH,
	}
}

func (sp SpeedProfile) SpeedFor(mode pkg.TravelMode) float64 {
	switch mode {
	case pkg.BIKE:
		return sp.Bike
	case pkg.CAR:
		return sp.Car
	default:
		return sp.Foot
	}
}

func (sp SpeedProfile) Validate() error {
	for _, mode := range pkg.TravelModes {
		speed := sp.SpeedFor(mode)
		if !util.IsFinite(speed) || speed <= 0 {
			return util.WrapErrorf(nil, ErrInvalidSpeed, "speed for %s: %v", mode, speed)
		}
	}
	return nil
}

// RouteMetrics is derived from a route and a travel mode; never edited in place.
type RouteMetrics struct {
	DistanceKm      float64 `json:"distance_km"`
	DurationMinutes float64 `json:"duration_minutes"`
}

func (rm RouteMetrics) String() string {
	return fmt.Sprintf("%.3f km / %.1f min", rm.DistanceKm, rm.DurationMinutes)
}

// Estimator turns a decoded route into distance and duration. it is pure: the
// same route and mode always give the same metrics.
type Estimator struct {
	speeds SpeedProfile
}

func NewEstimator(speeds SpeedProfile) (*Estimator, error) {
	if err := speeds.Validate(); err != nil {
		return nil, err
	}
	return &Estimator{speeds: speeds}, nil
}

func (e *Estimator) Speeds() SpeedProfile {
	return e.speeds
}

// Estimate. distance is the haversine length of the route (0 for fewer than two
// points); duration = distance / speed(mode) * 60.
func (e *Estimator) Estimate(route []geo.Coordinate, mode pkg.TravelMode) RouteMetrics {
	distance := geo.PathLength(route)
	if distance == 0 {
		return RouteMetrics{}
	}
	return RouteMetrics{
		DistanceKm:      distance,
		DurationMinutes: util.HoursToMinutes(distance / e.speeds.SpeedFor(mode)),
	}
}

// EstimateAll. metrics for every travel mode, for the mode selector.
func (e *Estimator) EstimateAll(route []geo.Coordinate) map[pkg.TravelMode]RouteMetrics {
	out := make(map[pkg.TravelMode]RouteMetrics, len(pkg.TravelModes))
	for _, mode := range pkg.TravelModes {
		out[mode] = e.Estimate(route, mode)
	}
	return out
}
