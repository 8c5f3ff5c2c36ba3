// Package location acquires a single current position from a platform sensor.
package location

import (
	"context"
	"errors"
	"time"

	"github.com/lintang-b-s/campusnav/pkg/geo"
	"github.com/lintang-b-s/campusnav/pkg/util"
	"go.uber.org/zap"
)

var (
	ErrPermissionDenied    = errors.New("location permission denied")
	ErrLocationUnavailable = errors.New("location unavailable")
)

type PermissionStatus uint8

const (
	PermissionUndetermined PermissionStatus = iota
	PermissionGranted
	PermissionDenied
)

func (p PermissionStatus) String() string {
	switch p {
	case PermissionGranted:
		return "granted"
	case PermissionDenied:
		return "denied"
	default:
		return "undetermined"
	}
}

// Reading is one position fix reported by the sensor.
type Reading struct {
	Coordinate geo.Coordinate
	Accuracy   float64 // meter, 0 if unknown
	Time       time.Time
}

// Sensor is the platform location collaborator. both calls may block; they must
// return when ctx is done.
type Sensor interface {
	RequestForegroundPermission(ctx context.Context) (PermissionStatus, error)
	CurrentPosition(ctx context.Context) (Reading, error)
}

// Service is the single-shot location adapter. it keeps no state between calls:
// every call re-checks permission (granted permission returns immediately on the
// platform side) and takes one fresh reading.
type Service struct {
	log    *zap.Logger
	sensor Sensor
}

func NewService(log *zap.Logger, sensor Sensor) *Service {
	return &Service{
		log:    log,
		sensor: sensor,
	}
}

// AcquireCurrentLocation. request foreground permission, then fetch one position.
// fails with ErrPermissionDenied when permission is not granted and with
// ErrLocationUnavailable when the reading errors, times out or is out of range.
func (s *Service) AcquireCurrentLocation(ctx context.Context) (geo.Coordinate, error) {
	status, err := s.sensor.RequestForegroundPermission(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return geo.Coordinate{}, util.WrapErrorf(ctx.Err(), ErrLocationUnavailable, "request foreground permission")
		}
		return geo.Coordinate{}, util.WrapErrorf(err, ErrPermissionDenied, "request foreground permission")
	}
	if status != PermissionGranted {
		s.log.Info("location permission not granted", zap.String("status", status.String()))
		return geo.Coordinate{}, util.WrapErrorf(nil, ErrPermissionDenied, "foreground permission %s", status)
	}

	reading, err := s.sensor.CurrentPosition(ctx)
	if err != nil {
		return geo.Coordinate{}, util.WrapErrorf(err, ErrLocationUnavailable, "fetch current position")
	}
	if !reading.Coordinate.Valid() {
		return geo.Coordinate{}, util.WrapErrorf(nil, ErrLocationUnavailable,
			"fetch current position: reading (%f,%f) out of range", reading.Coordinate.Lat, reading.Coordinate.Lon)
	}

	s.log.Debug("current position acquired",
		zap.Float64("lat", reading.Coordinate.Lat), zap.Float64("lon", reading.Coordinate.Lon),
		zap.Float64("accuracy", reading.Accuracy))
	return reading.Coordinate, nil
}
