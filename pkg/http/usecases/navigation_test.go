package usecases

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/lintang-b-s/campusnav/pkg"
	"github.com/lintang-b-s/campusnav/pkg/geo"
	"github.com/lintang-b-s/campusnav/pkg/location"
	"github.com/lintang-b-s/campusnav/pkg/metrics"
	"github.com/lintang-b-s/campusnav/pkg/navigation"
	"github.com/lintang-b-s/campusnav/pkg/panel"
	"github.com/lintang-b-s/campusnav/pkg/polyline"
	"github.com/lintang-b-s/campusnav/pkg/routeprovider"
	"github.com/lintang-b-s/campusnav/pkg/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestService(t *testing.T) *NavigationService {
	t.Helper()
	estimator, err := metrics.NewEstimator(metrics.DefaultSpeedProfile())
	require.NoError(t, err)
	decoder, err := polyline.NewCachedDecoder(16)
	require.NoError(t, err)

	ns := NewNavigationService(zap.NewNop(), routeprovider.NewStatic(""), decoder, estimator, NavigationConfig{
		Panel:           panel.ConfigForWindow(800, panel.DefaultMinRatio, panel.DefaultMaxRatio),
		FixTimeout:      time.Second,
		EstimateWorkers: 2,
	})
	t.Cleanup(func() { ns.Close(context.Background()) })
	return ns
}

func TestSessionLifecycle(t *testing.T) {
	ns := newTestService(t)

	session, err := ns.CreateSession(context.Background(), navigation.Params{})
	require.NoError(t, err)
	assert.Equal(t, 1, ns.SessionCount())
	assert.Equal(t, navigation.DefaultDestinationName, session.Coordinator().Destination().Name)

	got, err := ns.GetSession(session.ID())
	require.NoError(t, err)
	assert.Same(t, session, got)

	got.Sensor().ReportPermission(true)
	got.Sensor().ReportPosition(location.Reading{Coordinate: geo.NewCoordinate(38.5, -120.2)})
	require.Eventually(t, func() bool {
		return got.Snapshot().LocationState == navigation.AVAILABLE
	}, 2*time.Second, time.Millisecond)

	require.NoError(t, ns.DeleteSession(context.Background(), session.ID()))
	assert.Equal(t, 0, ns.SessionCount())

	_, err = ns.GetSession(session.ID())
	assert.True(t, errors.Is(err, util.ErrNotFound))
	err = ns.DeleteSession(context.Background(), session.ID())
	assert.True(t, errors.Is(err, util.ErrNotFound))
}

func TestDecodeGeometry(t *testing.T) {
	ns := newTestService(t)

	route, err := ns.DecodeGeometry(routeprovider.PlaceholderGeometry)
	require.NoError(t, err)
	assert.Len(t, route, 3)

	_, err = ns.DecodeGeometry("_p~iF~ps|U_")
	assert.True(t, errors.Is(err, util.ErrBadParamInput))
}

func TestEstimateRoutes(t *testing.T) {
	ns := newTestService(t)

	queries := []RouteQuery{
		{Geometry: routeprovider.PlaceholderGeometry, Mode: pkg.FOOT},
		{Geometry: "_p~iF~ps|U_", Mode: pkg.BIKE},
		{Geometry: routeprovider.PlaceholderGeometry, Mode: pkg.CAR},
		{Geometry: "", Mode: pkg.FOOT},
	}
	estimates := ns.EstimateRoutes(queries)
	require.Len(t, estimates, len(queries))

	assert.Equal(t, pkg.FOOT, estimates[0].Mode)
	require.NoError(t, estimates[0].Err)
	assert.Equal(t, 3, estimates[0].Points)
	require.NotNil(t, estimates[0].Metrics)

	assert.True(t, errors.Is(estimates[1].Err, util.ErrBadParamInput))
	assert.Nil(t, estimates[1].Metrics)

	require.NotNil(t, estimates[2].Metrics)
	assert.InDelta(t, estimates[0].Metrics.DistanceKm, estimates[2].Metrics.DistanceKm, 1e-9)
	assert.Less(t, estimates[2].Metrics.DurationMinutes, estimates[0].Metrics.DurationMinutes)

	require.NoError(t, estimates[3].Err)
	assert.Equal(t, 0, estimates[3].Points)
	assert.Zero(t, estimates[3].Metrics.DistanceKm)
}

func TestCloseTearsDownSessions(t *testing.T) {
	ns := newTestService(t)
	session, err := ns.CreateSession(context.Background(), navigation.Params{})
	require.NoError(t, err)

	require.NoError(t, ns.Close(context.Background()))
	assert.Equal(t, 0, ns.SessionCount())

	err = session.Coordinator().SetTravelMode(context.Background(), pkg.BIKE)
	assert.True(t, errors.Is(err, navigation.ErrTornDown))
}
