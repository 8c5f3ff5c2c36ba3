package geo

import (
	"math"

	"github.com/golang/geo/s1"
	"github.com/golang/geo/s2"
)

// ProjectPointToSegment. closest point to p on the great-circle segment (a,b).
func ProjectPointToSegment(a, b, p Coordinate) Coordinate {
	pointAS2 := s2.PointFromLatLng(s2.LatLngFromDegrees(a.Lat, a.Lon))
	pointBS2 := s2.PointFromLatLng(s2.LatLngFromDegrees(b.Lat, b.Lon))
	snapS2 := s2.PointFromLatLng(s2.LatLngFromDegrees(p.Lat, p.Lon))
	if pointAS2.ApproxEqual(pointBS2) {
		return a
	}
	projection := s2.Project(snapS2, pointAS2, pointBS2)
	projectLatLng := s2.LatLngFromPoint(projection)
	return NewCoordinate(projectLatLng.Lat.Degrees(), projectLatLng.Lng.Degrees())
}

// PointSegmentDistance. perpendicular distance from p to segment (a,b). return in meter
func PointSegmentDistance(a, b, p Coordinate) float64 {
	projectionPoint := ProjectPointToSegment(a, b, p)

	return HaversineDistance(p, projectionPoint) * 1000
}

// Viewport is the visible map region: a center plus the latitude/longitude span.
type Viewport struct {
	Center         Coordinate `json:"center"`
	LatitudeDelta  float64    `json:"latitude_delta"`
	LongitudeDelta float64    `json:"longitude_delta"`
}

// FitViewport. region centred on center, widened so every point is visible. spans
// never drop below minDelta degrees.
func FitViewport(center Coordinate, points []Coordinate, minDelta float64) Viewport {
	rect := s2.EmptyRect().AddPoint(s2.LatLngFromDegrees(center.Lat, center.Lon))
	for _, p := range points {
		rect = rect.AddPoint(s2.LatLngFromDegrees(p.Lat, p.Lon))
	}

	// span needed on each side of the center
	latSpan := 2 * math.Max(math.Abs(rect.Hi().Lat.Degrees()-center.Lat), math.Abs(center.Lat-rect.Lo().Lat.Degrees()))
	// longitudes wrap: measure along rect.Lng, which may cross the antimeridian
	c := (s1.Angle(center.Lon) * s1.Degree).Radians()
	east := s1.IntervalFromEndpoints(c, rect.Lng.Hi).Length()
	west := s1.IntervalFromEndpoints(rect.Lng.Lo, c).Length()
	lonSpan := 2 * s1.Angle(math.Max(east, west)).Degrees()

	return Viewport{
		Center:         center,
		LatitudeDelta:  math.Max(latSpan, minDelta),
		LongitudeDelta: math.Min(math.Max(lonSpan, minDelta), 360),
	}
}
