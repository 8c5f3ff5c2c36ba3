package spatialindex

import (
	"math"

	"github.com/lintang-b-s/campusnav/pkg/geo"
	"github.com/tidwall/rtree"
	"go.uber.org/zap"
)

const (
	// initial search radius in km, doubled until a segment is found
	initialSearchRadius = 0.05
	maxSearchRadius     = 50.0
)

// SegmentIndex indexes the segments of one route polyline so the distance from the
// user to the route can be answered without scanning every segment.
type SegmentIndex struct {
	tr    *rtree.RTreeG[RouteSegment]
	route []geo.Coordinate
}

// RouteSegment is the segment between route[Index] and route[Index+1].
type RouteSegment struct {
	index int
	from  geo.Coordinate
	to    geo.Coordinate
}

func (rs RouteSegment) GetIndex() int {
	return rs.index
}

func (rs RouteSegment) GetFrom() geo.Coordinate {
	return rs.from
}

func (rs RouteSegment) GetTo() geo.Coordinate {
	return rs.to
}

func newRouteSegment(index int, from, to geo.Coordinate) RouteSegment {
	return RouteSegment{
		index: index,
		from:  from,
		to:    to,
	}
}

func NewSegmentIndex() *SegmentIndex {
	var tr rtree.RTreeG[RouteSegment]
	return &SegmentIndex{
		tr: &tr,
	}
}

// Build. index every segment of route with its bounding box. a single-point route
// is indexed as a degenerate segment.
func (si *SegmentIndex) Build(route []geo.Coordinate, log *zap.Logger) {
	var tr rtree.RTreeG[RouteSegment]
	si.tr = &tr
	si.route = route

	if len(route) == 1 {
		p := route[0]
		si.tr.Insert([2]float64{p.Lon, p.Lat}, [2]float64{p.Lon, p.Lat}, newRouteSegment(0, p, p))
	}

	for i := 0; i+1 < len(route); i++ {
		from, to := route[i], route[i+1]
		minLat := math.Min(from.Lat, to.Lat)
		minLon := math.Min(from.Lon, to.Lon)
		maxLat := math.Max(from.Lat, to.Lat)
		maxLon := math.Max(from.Lon, to.Lon)

		si.tr.Insert([2]float64{minLon, minLat}, [2]float64{maxLon, maxLat},
			newRouteSegment(i, from, to))
	}

	log.Debug("route segment index built.", zap.Int("segments", si.tr.Len()))
}

func (si *SegmentIndex) Len() int {
	return si.tr.Len()
}

// SearchWithinRadius search for all route segments whose bounding box intersects the box of
// radius (in km) around the query point (qLat, qLon)
func (si *SegmentIndex) SearchWithinRadius(qLat, qLon, radius float64) []RouteSegment {
	lowerLat, lowerLon := geo.GetDestinationPoint(qLat, qLon, 225, radius)
	upperLat, upperLon := geo.GetDestinationPoint(qLat, qLon, 45, radius)

	results := make([]RouteSegment, 0, 10)
	si.tr.Search([2]float64{lowerLon, lowerLat}, [2]float64{upperLon, upperLat},
		func(min, max [2]float64, data RouteSegment) bool {
			results = append(results, data)
			return true
		})
	return results
}

// NearestSegment. the route segment closest to p and its distance in meter. the
// search box grows until it holds a segment inside its inscribed circle; routes
// farther than the largest box fall back to a full scan. ok is false for an empty
// index.
func (si *SegmentIndex) NearestSegment(p geo.Coordinate) (seg RouteSegment, distMeter float64, ok bool) {
	if si.tr.Len() == 0 {
		return RouteSegment{}, 0, false
	}

	for radius := initialSearchRadius; radius <= maxSearchRadius; radius *= 2 {
		candidates := si.SearchWithinRadius(p.Lat, p.Lon, radius)
		if len(candidates) == 0 {
			continue
		}
		seg, distMeter = closest(candidates, p)
		// the search box only covers the circle of radius/√2 around p; a segment
		// outside that circle may be beaten by one whose box missed the search box.
		if distMeter <= radius*1000/math.Sqrt2 {
			return seg, distMeter, true
		}
	}

	all := make([]RouteSegment, 0, si.tr.Len())
	si.tr.Scan(func(min, max [2]float64, data RouteSegment) bool {
		all = append(all, data)
		return true
	})
	seg, distMeter = closest(all, p)
	return seg, distMeter, true
}

// DistanceToRoute. distance in meter from p to the nearest point of the route.
func (si *SegmentIndex) DistanceToRoute(p geo.Coordinate) (float64, bool) {
	_, d, ok := si.NearestSegment(p)
	return d, ok
}

func closest(segments []RouteSegment, p geo.Coordinate) (RouteSegment, float64) {
	best := segments[0]
	bestDist := math.Inf(1)
	for _, s := range segments {
		d := geo.PointSegmentDistance(s.from, s.to, p)
		if d < bestDist {
			best, bestDist = s, d
		}
	}
	return best, bestDist
}
