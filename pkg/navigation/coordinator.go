// Package navigation coordinates the map view: destination, location, route and metrics.
package navigation

import (
	"context"
	"errors"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/lintang-b-s/campusnav/pkg"
	"github.com/lintang-b-s/campusnav/pkg/concurrent"
	"github.com/lintang-b-s/campusnav/pkg/geo"
	"github.com/lintang-b-s/campusnav/pkg/location"
	"github.com/lintang-b-s/campusnav/pkg/metrics"
	"github.com/lintang-b-s/campusnav/pkg/polyline"
	"github.com/lintang-b-s/campusnav/pkg/routeprovider"
	"github.com/lintang-b-s/campusnav/pkg/spatialindex"
	"github.com/lintang-b-s/campusnav/pkg/util"
	"go.uber.org/zap"
)

var ErrTornDown = errors.New("navigation view torn down")

const DefaultMinViewportDelta = 0.005

type Locator interface {
	AcquireCurrentLocation(ctx context.Context) (geo.Coordinate, error)
}

type Decoder interface {
	Decode(encoded string) ([]geo.Coordinate, error)
}

type DecoderFunc func(encoded string) ([]geo.Coordinate, error)

func (f DecoderFunc) Decode(encoded string) ([]geo.Coordinate, error) {
	return f(encoded)
}

type Options struct {
	Params Params
	// Fallback is the destination used when Params has no usable coordinate.
	// zero value means DefaultDestination().
	Fallback         Destination
	Mode             pkg.TravelMode
	MinViewportDelta float64
}

type subscriber struct {
	id int
	fn func(Snapshot)
}

/*
Coordinator owns the destination, the travel mode, the location state, the
decoded route and its metrics. all of it is mutated on the event loop only:

	Activate -> publish PENDING -> acquire location (off the loop)
	         -> settle on the loop -> DENIED | UNAVAILABLE (no route)
	                               -> AVAILABLE -> decode geometry -> metrics

route decode never runs before the location has settled. after Teardown,
results still in flight are dropped without touching state.
*/
type Coordinator struct {
	log       *zap.Logger
	loop      *concurrent.EventLoop
	locator   Locator
	provider  routeprovider.Provider
	decoder   Decoder
	estimator *metrics.Estimator
	reporter  ErrorReporter
	minDelta  float64

	mu          sync.Mutex
	subscribers []subscriber
	nextSubID   int
	latest      atomic.Pointer[Snapshot]

	// owned by the loop
	activated   bool
	torn        bool
	cancel      context.CancelFunc
	destination Destination
	mode        pkg.TravelMode
	locState    LocationState
	user        *geo.Coordinate
	geometry    string
	geometrySet bool
	route       []geo.Coordinate
	index       *spatialindex.SegmentIndex
	metrics     *metrics.RouteMetrics
	version     uint64
}

// NewCoordinator. provider may be nil when the geometry is only ever pushed with
// SetRouteGeometry.
func NewCoordinator(log *zap.Logger, loop *concurrent.EventLoop, locator Locator, provider routeprovider.Provider,
	decoder Decoder, estimator *metrics.Estimator, reporter ErrorReporter, opts Options) *Coordinator {
	if reporter == nil {
		reporter = NewZapReporter(log)
	}
	if decoder == nil {
		decoder = DecoderFunc(polyline.Decode)
	}
	fallback := opts.Fallback
	if fallback == (Destination{}) {
		fallback = DefaultDestination()
	}
	mode := opts.Mode
	if !mode.IsValid() {
		mode = pkg.DEFAULT_TRAVEL_MODE
	}
	minDelta := opts.MinViewportDelta
	if minDelta <= 0 {
		minDelta = DefaultMinViewportDelta
	}

	c := &Coordinator{
		log:       log,
		loop:      loop,
		locator:   locator,
		provider:  provider,
		decoder:   decoder,
		estimator: estimator,
		reporter:  reporter,
		minDelta:  minDelta,
		mode:      mode,
		locState:  PENDING,
	}

	dest, err := ResolveDestination(opts.Params, fallback)
	if err != nil {
		c.reporter.Report(StepResolveDestination, err)
	}
	c.destination = dest

	snap := c.buildSnapshot()
	c.latest.Store(&snap)
	return c
}

// Destination is fixed at construction.
func (c *Coordinator) Destination() Destination {
	return c.destination
}

// Activate. publish the pending snapshot and start acquiring the location. runs
// once; later calls do nothing.
func (c *Coordinator) Activate(ctx context.Context) error {
	var torn bool
	err := c.loop.Call(ctx, func() {
		if c.torn {
			torn = true
			return
		}
		if c.activated {
			return
		}
		c.activated = true

		actx, cancel := context.WithCancel(context.Background())
		c.cancel = cancel
		c.publish()
		go c.acquire(actx)
	})
	if err != nil {
		return err
	}
	if torn {
		return ErrTornDown
	}
	return nil
}

// acquire runs off the loop: it is the only part of the flow that suspends.
func (c *Coordinator) acquire(ctx context.Context) {
	coord, err := c.locator.AcquireCurrentLocation(ctx)

	var geometry string
	var geomErr error
	if err == nil && c.provider != nil {
		geometry, geomErr = c.provider.RouteGeometry(ctx, coord, c.destination.Coordinate)
	}

	if !c.loop.Post(func() { c.settleLocation(coord, err, geometry, geomErr) }) {
		c.log.Debug("event loop closed, location result dropped")
	}
}

func (c *Coordinator) settleLocation(coord geo.Coordinate, err error, geometry string, geomErr error) {
	if c.torn {
		c.log.Debug("view torn down, location result dropped")
		return
	}

	if err != nil {
		if errors.Is(err, location.ErrPermissionDenied) {
			c.locState = DENIED
		} else {
			c.locState = UNAVAILABLE
		}
		c.reporter.Report(StepAcquireLocation, err)
		c.publish()
		return
	}

	c.locState = AVAILABLE
	c.user = &coord

	switch {
	case geomErr != nil:
		c.reporter.Report(StepRouteGeometry, geomErr)
	case !c.geometrySet && c.provider != nil:
		c.geometry = polyline.Normalize(geometry)
		c.geometrySet = true
	}

	c.rebuildRoute()
	c.publish()
}

// rebuildRoute. decode the active geometry. a decode failure leaves the view
// without a route.
func (c *Coordinator) rebuildRoute() {
	c.route, c.index, c.metrics = nil, nil, nil
	if c.locState != AVAILABLE || !c.geometrySet {
		return
	}

	route, err := c.decoder.Decode(c.geometry)
	if err != nil {
		c.reporter.Report(StepDecodeGeometry, err)
		return
	}
	c.route = route
	c.index = spatialindex.NewSegmentIndex()
	c.index.Build(route, c.log)
	c.recomputeMetrics()
}

func (c *Coordinator) recomputeMetrics() {
	if c.route == nil {
		c.metrics = nil
		return
	}
	m := c.estimator.Estimate(c.route, c.mode)
	c.metrics = &m
}

// SetTravelMode. switch the active travel mode and recompute the metrics.
func (c *Coordinator) SetTravelMode(ctx context.Context, mode pkg.TravelMode) error {
	if !mode.IsValid() {
		return util.WrapErrorf(nil, util.ErrBadParamInput, "unknown travel mode %d", mode)
	}
	return c.onLoop(ctx, func() {
		if c.mode == mode {
			return
		}
		c.mode = mode
		c.recomputeMetrics()
		c.publish()
	})
}

// SetRouteGeometry. replace the encoded route geometry. while the location is
// pending it is only stored; the decode happens once the location settles.
func (c *Coordinator) SetRouteGeometry(ctx context.Context, geometry string) error {
	geometry = polyline.Normalize(geometry)
	return c.onLoop(ctx, func() {
		if c.geometrySet && c.geometry == geometry {
			return
		}
		c.geometry = geometry
		c.geometrySet = true
		if !c.locState.Settled() {
			return
		}
		c.rebuildRoute()
		c.publish()
	})
}

// Teardown. stop the flow. an in-flight location request is cancelled and its
// result dropped; later calls fail with ErrTornDown.
func (c *Coordinator) Teardown(ctx context.Context) error {
	err := c.loop.Call(ctx, func() {
		if c.torn {
			return
		}
		c.torn = true
		if c.cancel != nil {
			c.cancel()
		}
	})
	if errors.Is(err, concurrent.ErrLoopClosed) {
		return nil
	}

	c.mu.Lock()
	c.subscribers = nil
	c.mu.Unlock()
	return err
}

// Snapshot. the latest published snapshot. safe from any goroutine.
func (c *Coordinator) Snapshot() Snapshot {
	return c.latest.Load().clone()
}

// Subscribe. fn is called on the event loop with every published snapshot and
// must not block. returns the function that removes it.
func (c *Coordinator) Subscribe(fn func(Snapshot)) func() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextSubID++
	id := c.nextSubID
	c.subscribers = append(c.subscribers, subscriber{id: id, fn: fn})

	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		c.subscribers = slices.DeleteFunc(c.subscribers, func(s subscriber) bool { return s.id == id })
	}
}

func (c *Coordinator) onLoop(ctx context.Context, fn func()) error {
	var torn bool
	err := c.loop.Call(ctx, func() {
		if c.torn {
			torn = true
			return
		}
		fn()
	})
	if errors.Is(err, concurrent.ErrLoopClosed) || torn {
		return util.WrapErrorf(err, ErrTornDown, "navigation view")
	}
	return err
}

func (c *Coordinator) publish() {
	c.version++
	snap := c.buildSnapshot()
	c.latest.Store(&snap)

	c.mu.Lock()
	subs := slices.Clone(c.subscribers)
	c.mu.Unlock()

	for _, s := range subs {
		s.fn(snap.clone())
	}
}

func (c *Coordinator) buildSnapshot() Snapshot {
	snap := Snapshot{
		Version:       c.version,
		LocationState: c.locState,
		LocationName:  c.locState.String(),
		Destination:   c.destination,
		Mode:          c.mode,
		ModeName:      c.mode.String(),
	}
	// copies, so a published snapshot never aliases loop state
	snap.RouteCoordinates = slices.Clone(c.route)
	if snap.RouteCoordinates == nil {
		snap.RouteCoordinates = []geo.Coordinate{}
	}
	if c.metrics != nil {
		m := *c.metrics
		snap.Metrics = &m
	}
	snap.Labels = NewLabels(snap.Metrics)

	center := c.destination.Coordinate
	if c.user != nil {
		u := *c.user
		snap.UserLocation = &u
		center = u

		bearing := geo.BearingTo(u.Lat, u.Lon, c.destination.Coordinate.Lat, c.destination.Coordinate.Lon)
		snap.DestinationBearing = &bearing

		if c.index != nil {
			if d, ok := c.index.DistanceToRoute(u); ok {
				snap.DistanceToRouteMeters = &d
			}
		}
	}
	snap.Viewport = geo.FitViewport(center, c.route, c.minDelta)
	return snap
}
