// Package routeprovider supplies the encoded route geometry shown between the user and the destination.
package routeprovider

import (
	"context"
	"errors"

	"github.com/lintang-b-s/campusnav/pkg/geo"
)

var ErrNoGeometry = errors.New("no route geometry")

// PlaceholderGeometry is the fixed demo route used until a real routing backend is wired.
const PlaceholderGeometry = "_p~iF~ps|U_ulLnnqC_mqNvxq`@"

type Provider interface {
	// RouteGeometry returns the encoded polyline of the route from origin to destination.
	RouteGeometry(ctx context.Context, origin, destination geo.Coordinate) (string, error)
}

// Static always answers with the same geometry, whatever the endpoints.
type Static struct {
	geometry string
}

func NewStatic(geometry string) *Static {
	if geometry == "" {
		geometry = PlaceholderGeometry
	}
	return &Static{geometry: geometry}
}

func (s *Static) RouteGeometry(ctx context.Context, origin, destination geo.Coordinate) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return s.geometry, nil
}
