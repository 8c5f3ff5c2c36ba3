package location

import (
	"context"
	"time"

	"github.com/lintang-b-s/campusnav/pkg/geo"
)

// StaticSensor reports a fixed position, like a simulator with a pinned location.
type StaticSensor struct {
	status PermissionStatus
	coord  geo.Coordinate
	err    error
}

func NewStaticSensor(coord geo.Coordinate) *StaticSensor {
	return &StaticSensor{status: PermissionGranted, coord: coord}
}

// NewDeniedSensor. a sensor whose permission prompt is always refused.
func NewDeniedSensor() *StaticSensor {
	return &StaticSensor{status: PermissionDenied}
}

// NewFailingSensor. permission is granted but every position fetch fails with err.
func NewFailingSensor(err error) *StaticSensor {
	return &StaticSensor{status: PermissionGranted, err: err}
}

func (s *StaticSensor) RequestForegroundPermission(ctx context.Context) (PermissionStatus, error) {
	if err := ctx.Err(); err != nil {
		return PermissionUndetermined, err
	}
	return s.status, nil
}

func (s *StaticSensor) CurrentPosition(ctx context.Context) (Reading, error) {
	if err := ctx.Err(); err != nil {
		return Reading{}, err
	}
	if s.err != nil {
		return Reading{}, s.err
	}
	return Reading{Coordinate: s.coord, Time: time.Now()}, nil
}
