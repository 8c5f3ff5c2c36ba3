package geo

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCoordinateValid(t *testing.T) {
	testCases := []struct {
		name  string
		coord Coordinate
		want  bool
	}{
		{name: "campus", coord: NewCoordinate(-7.7713, 110.3776), want: true},
		{name: "north pole", coord: NewCoordinate(90, 0), want: true},
		{name: "antimeridian", coord: NewCoordinate(0, -180), want: true},
		{name: "latitude too large", coord: NewCoordinate(90.0001, 0), want: false},
		{name: "longitude too small", coord: NewCoordinate(0, -180.5), want: false},
		{name: "nan", coord: NewCoordinate(math.NaN(), 10), want: false},
		{name: "inf", coord: NewCoordinate(10, math.Inf(1)), want: false},
	}

	for _, tt := range testCases {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.coord.Valid())
		})
	}
}

func TestCalculateHaversineDistance(t *testing.T) {
	// one degree of latitude along a meridian
	got := CalculateHaversineDistance(0, 0, 1, 0)
	assert.InDelta(t, 111.195, got, 0.001)

	assert.Equal(t, 0.0, CalculateHaversineDistance(-7.77, 110.37, -7.77, 110.37))

	ab := HaversineDistance(NewCoordinate(38.5, -120.2), NewCoordinate(40.7, -120.95))
	ba := HaversineDistance(NewCoordinate(40.7, -120.95), NewCoordinate(38.5, -120.2))
	assert.InDelta(t, ab, ba, 1e-9)
}

func TestPathLength(t *testing.T) {
	assert.Equal(t, 0.0, PathLength(nil))
	assert.Equal(t, 0.0, PathLength([]Coordinate{NewCoordinate(1, 1)}))

	path := []Coordinate{NewCoordinate(0, 0), NewCoordinate(1, 0), NewCoordinate(2, 0)}
	assert.InDelta(t, 2*111.195, PathLength(path), 0.002)
}

func TestBearingTo(t *testing.T) {
	assert.InDelta(t, 0.0, BearingTo(0, 0, 1, 0), 1e-9)
	assert.InDelta(t, 90.0, BearingTo(0, 0, 0, 1), 1e-9)
	assert.InDelta(t, 180.0, BearingTo(1, 0, 0, 0), 1e-9)
	assert.InDelta(t, 270.0, BearingTo(0, 1, 0, 0), 1e-9)
}

func TestGetDestinationPoint(t *testing.T) {
	lat, lon := GetDestinationPoint(0, 0, 90, 111.195)
	assert.InDelta(t, 0.0, lat, 1e-6)
	assert.InDelta(t, 1.0, lon, 1e-4)
}
