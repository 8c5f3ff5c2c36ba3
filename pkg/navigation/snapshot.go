package navigation

import (
	"fmt"
	"math"
	"slices"

	"github.com/lintang-b-s/campusnav/pkg"
	"github.com/lintang-b-s/campusnav/pkg/geo"
	"github.com/lintang-b-s/campusnav/pkg/metrics"
)

// enum of location state. PENDING moves exactly once to one of the others.
type LocationState uint8

const (
	PENDING LocationState = iota
	AVAILABLE
	DENIED
	UNAVAILABLE
)

func (s LocationState) String() string {
	switch s {
	case PENDING:
		return "pending"
	case AVAILABLE:
		return "available"
	case DENIED:
		return "denied"
	case UNAVAILABLE:
		return "unavailable"
	default:
		return "unknown"
	}
}

func (s LocationState) Settled() bool {
	return s != PENDING
}

// Labels are the text lines under the destination in the panel. empty until metrics exist.
type Labels struct {
	Distance string `json:"distance,omitempty"`
	Duration string `json:"duration,omitempty"`
}

func NewLabels(m *metrics.RouteMetrics) Labels {
	if m == nil {
		return Labels{}
	}
	return Labels{
		Distance: fmt.Sprintf("Distance: %.1f km", m.DistanceKm),
		Duration: fmt.Sprintf("Estimated: %d mins", int(math.Round(m.DurationMinutes))),
	}
}

// Snapshot is the render-ready view state. each publish hands out a fresh value;
// nothing in it aliases coordinator state.
type Snapshot struct {
	Version       uint64          `json:"version"`
	LocationState LocationState   `json:"-"`
	LocationName  string          `json:"location_state"`
	UserLocation  *geo.Coordinate `json:"user_location,omitempty"`
	Destination   Destination     `json:"destination"`
	// RouteCoordinates is in traversal order; empty when there is no route.
	RouteCoordinates []geo.Coordinate     `json:"route_coordinates"`
	Metrics          *metrics.RouteMetrics `json:"metrics,omitempty"`
	Mode             pkg.TravelMode        `json:"-"`
	ModeName         string                `json:"mode"`
	Viewport         geo.Viewport          `json:"viewport"`
	Labels           Labels                `json:"labels"`

	// meter from the user to the nearest point of the route
	DistanceToRouteMeters *float64 `json:"distance_to_route_meters,omitempty"`
	// degrees clockwise from north, user to destination
	DestinationBearing *float64 `json:"destination_bearing,omitempty"`
}

func (s Snapshot) HasRoute() bool {
	return len(s.RouteCoordinates) > 0
}

func (s Snapshot) clone() Snapshot {
	out := s
	out.RouteCoordinates = slices.Clone(s.RouteCoordinates)
	if out.RouteCoordinates == nil {
		out.RouteCoordinates = []geo.Coordinate{}
	}
	if s.UserLocation != nil {
		u := *s.UserLocation
		out.UserLocation = &u
	}
	if s.Metrics != nil {
		m := *s.Metrics
		out.Metrics = &m
	}
	if s.DistanceToRouteMeters != nil {
		d := *s.DistanceToRouteMeters
		out.DistanceToRouteMeters = &d
	}
	if s.DestinationBearing != nil {
		b := *s.DestinationBearing
		out.DestinationBearing = &b
	}
	return out
}
