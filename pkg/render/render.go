// Package render turns a navigation snapshot into what the map collaborator draws.
package render

import (
	"github.com/lintang-b-s/campusnav/pkg/geo"
	"github.com/lintang-b-s/campusnav/pkg/navigation"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

const (
	RouteStrokeColor = "#007aff"
	RouteStrokeWidth = 4

	KindDestination = "destination"
	KindUser        = "user"
	KindRoute       = "route"
)

// Document is the render boundary: markers and the route polyline as GeoJSON, plus
// the panel labels and the initial map region.
type Document struct {
	Map      *geojson.FeatureCollection `json:"map"`
	Labels   navigation.Labels          `json:"labels"`
	Viewport geo.Viewport               `json:"viewport"`
	Mode     string                     `json:"mode"`
}

func NewDocument(s navigation.Snapshot) Document {
	return Document{
		Map:      FeatureCollection(s),
		Labels:   s.Labels,
		Viewport: s.Viewport,
		Mode:     s.ModeName,
	}
}

// FeatureCollection. the route (when present) first so markers draw on top of it,
// then the user marker (when the location is known), then the destination marker.
func FeatureCollection(s navigation.Snapshot) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()

	if s.HasRoute() {
		route := geojson.NewFeature(toLineString(s.RouteCoordinates))
		route.Properties["kind"] = KindRoute
		route.Properties["stroke"] = RouteStrokeColor
		route.Properties["stroke-width"] = RouteStrokeWidth
		if s.Metrics != nil {
			route.Properties["distance_km"] = s.Metrics.DistanceKm
			route.Properties["duration_minutes"] = s.Metrics.DurationMinutes
		}
		fc.Append(route)
	}

	if s.UserLocation != nil {
		user := geojson.NewFeature(toPoint(*s.UserLocation))
		user.Properties["kind"] = KindUser
		if s.DistanceToRouteMeters != nil {
			user.Properties["distance_to_route_meters"] = *s.DistanceToRouteMeters
		}
		fc.Append(user)
	}

	dest := geojson.NewFeature(toPoint(s.Destination.Coordinate))
	dest.Properties["kind"] = KindDestination
	dest.Properties["title"] = s.Destination.Name
	dest.Properties["description"] = s.Destination.Description
	dest.Properties["image"] = s.Destination.ImageRef
	fc.Append(dest)

	return fc
}

// geojson positions are [lon, lat].
func toPoint(c geo.Coordinate) orb.Point {
	return orb.Point{c.Lon, c.Lat}
}

func toLineString(route []geo.Coordinate) orb.LineString {
	ls := make(orb.LineString, len(route))
	for i, c := range route {
		ls[i] = toPoint(c)
	}
	return ls
}
