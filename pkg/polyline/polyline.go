// Package polyline decodes and encodes route geometries in the encoded polyline
// format (zig-zag signed deltas in 5-bit groups, precision 1e-5).
package polyline

import (
	"errors"
	"strings"

	"github.com/lintang-b-s/campusnav/pkg/geo"
	"github.com/lintang-b-s/campusnav/pkg/util"
	gopolyline "github.com/twpayne/go-polyline"
)

const Precision = 1e5

var ErrMalformedGeometry = errors.New("malformed route geometry")

var codec = gopolyline.Codec{Dim: 2, Scale: Precision}

// Decode. decode an encoded route string into the ordered route polyline.
// empty input decodes to an empty route. a stream that ends mid-group, holds bytes
// outside the alphabet, or carries a latitude without its longitude fails with
// ErrMalformedGeometry; no partial route is returned.
func Decode(encoded string) ([]geo.Coordinate, error) {
	if encoded == "" {
		return []geo.Coordinate{}, nil
	}

	coords, rest, err := codec.DecodeCoords([]byte(encoded))
	if err != nil {
		return nil, util.WrapErrorf(err, ErrMalformedGeometry, "decode route geometry (%d bytes)", len(encoded))
	}
	if len(rest) != 0 {
		return nil, util.WrapErrorf(nil, ErrMalformedGeometry, "decode route geometry: %d trailing bytes", len(rest))
	}

	route := make([]geo.Coordinate, len(coords))
	for i, c := range coords {
		route[i] = geo.NewCoordinate(c[0], c[1])
		if !route[i].Valid() {
			return nil, util.WrapErrorf(nil, ErrMalformedGeometry,
				"decode route geometry: point %d (%f,%f) out of range", i, c[0], c[1])
		}
	}
	return route, nil
}

// Encode. inverse of Decode, coordinates are rounded to 1e-5 degree.
func Encode(route []geo.Coordinate) string {
	if len(route) == 0 {
		return ""
	}
	coords := make([][]float64, len(route))
	for i, c := range route {
		coords[i] = []float64{c.Lat, c.Lon}
	}
	return string(codec.EncodeCoords(nil, coords))
}

// Normalize. trim whitespace around a geometry received from a provider; the
// polyline alphabet never contains spaces.
func Normalize(encoded string) string {
	return strings.TrimSpace(encoded)
}
