package navigation

import (
	"context"
	"errors"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/lintang-b-s/campusnav/pkg/concurrent"
	"github.com/lintang-b-s/campusnav/pkg/location"
	"github.com/lintang-b-s/campusnav/pkg/metrics"
	"github.com/lintang-b-s/campusnav/pkg/panel"
	"github.com/lintang-b-s/campusnav/pkg/routeprovider"
	"github.com/lintang-b-s/campusnav/pkg/util"
	"go.uber.org/zap"
)

const (
	DefaultFrameInterval = 16 * time.Millisecond
	eventQueueSize       = 64
)

type GestureType string

const (
	GestureMove    GestureType = "move"
	GestureEnd     GestureType = "end"
	GesturePreempt GestureType = "preempt"
)

// Gesture is one event from the input collaborator. for GestureMove VerticalDelta is
// the per-update delta, for GestureEnd the net delta of the whole drag.
type Gesture struct {
	Type          GestureType
	VerticalDelta float64
}

type Action string

const (
	ActionRoute  Action = "route"
	ActionSave   Action = "save"
	ActionShare  Action = "share"
	ActionSearch Action = "search"
)

type SessionConfig struct {
	Panel         panel.Config
	FrameInterval time.Duration
	FixTimeout    time.Duration
	Options       Options
	// Now is the animation clock. nil means time.Now.
	Now func() time.Time
}

type panelSubscriber struct {
	id int
	fn func(panel.Frame)
}

// Session is one open map view: the coordinator and the panel controller share a
// single event loop, and the device feeds its permission answer and position
// fixes through the remote sensor.
type Session struct {
	id     string
	log    *zap.Logger
	loop   *concurrent.EventLoop
	sensor *location.RemoteSensor
	coord  *Coordinator

	frameInterval time.Duration
	now           func() time.Time

	// owned by the loop
	panel    *panel.Controller
	ticking  bool
	frameGen uint64

	mu          sync.Mutex
	panelSubs   []panelSubscriber
	nextSubID   int
	latestFrame atomic.Pointer[panel.Frame]
	closeOnce   sync.Once
}

func NewSession(id string, log *zap.Logger, provider routeprovider.Provider, decoder Decoder,
	estimator *metrics.Estimator, reporter ErrorReporter, cfg SessionConfig) (*Session, error) {
	ctrl, err := panel.NewController(cfg.Panel)
	if err != nil {
		return nil, err
	}
	if cfg.FrameInterval <= 0 {
		cfg.FrameInterval = DefaultFrameInterval
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	log = log.With(zap.String("session", id))
	loop := concurrent.NewEventLoop(eventQueueSize)
	sensor := location.NewRemoteSensor(cfg.FixTimeout)
	coord := NewCoordinator(log, loop, location.NewService(log, sensor), provider, decoder, estimator,
		reporter, cfg.Options)

	s := &Session{
		id:            id,
		log:           log,
		loop:          loop,
		sensor:        sensor,
		coord:         coord,
		frameInterval: cfg.FrameInterval,
		now:           cfg.Now,
		panel:         ctrl,
	}
	frame := ctrl.Frame()
	s.latestFrame.Store(&frame)
	return s, nil
}

func (s *Session) ID() string {
	return s.id
}

func (s *Session) Sensor() *location.RemoteSensor {
	return s.sensor
}

func (s *Session) Coordinator() *Coordinator {
	return s.coord
}

func (s *Session) Activate(ctx context.Context) error {
	return s.coord.Activate(ctx)
}

func (s *Session) Snapshot() Snapshot {
	return s.coord.Snapshot()
}

func (s *Session) Frame() panel.Frame {
	return *s.latestFrame.Load()
}

// HandleGesture. feed one gesture event to the panel and return the resulting frame.
func (s *Session) HandleGesture(ctx context.Context, g Gesture) (panel.Frame, error) {
	switch g.Type {
	case GestureMove, GestureEnd, GesturePreempt:
	default:
		return panel.Frame{}, util.WrapErrorf(nil, util.ErrBadParamInput, "unknown gesture type %q", g.Type)
	}

	var frame panel.Frame
	err := s.onLoop(ctx, func() {
		now := s.now()
		changed := false
		switch g.Type {
		case GestureMove:
			changed = s.panel.DragUpdate(g.VerticalDelta)
		case GestureEnd:
			prev := s.panel.Frame()
			s.panel.DragEnd(g.VerticalDelta, now)
			changed = prev != s.panel.Frame()
		case GesturePreempt:
			changed = s.panel.Animating()
			s.panel.Preempt(now)
		}
		if s.panel.Animating() {
			s.startFrames()
		}
		if changed {
			s.publishPanel()
		}
		frame = s.panel.Frame()
	})
	return frame, err
}

// ExpandPanel. programmatic snap to the expanded state. ignored mid-drag or while
// another snap animation runs.
func (s *Session) ExpandPanel(ctx context.Context) error {
	return s.onLoop(ctx, func() {
		s.panel.AnimateTo(panel.EXPANDED, s.now())
		if s.panel.Animating() {
			s.startFrames()
		}
		s.publishPanel()
	})
}

// startFrames drives the snap animation at the frame interval until it finishes.
func (s *Session) startFrames() {
	if s.ticking {
		return
	}
	s.ticking = true
	s.frameGen++
	gen := s.frameGen
	done := make(chan struct{})

	go func() {
		ticker := time.NewTicker(s.frameInterval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-s.loop.Done():
				return
			case <-ticker.C:
				s.loop.Post(func() {
					if gen != s.frameGen || !s.ticking {
						return
					}
					if s.panel.Tick(s.now()) {
						s.publishPanel()
					}
					if !s.panel.Animating() {
						s.ticking = false
						close(done)
					}
				})
			}
		}
	}()
}

func (s *Session) publishPanel() {
	frame := s.panel.Frame()
	s.latestFrame.Store(&frame)

	s.mu.Lock()
	subs := slices.Clone(s.panelSubs)
	s.mu.Unlock()
	for _, sub := range subs {
		sub.fn(frame)
	}
}

// Subscribe. snapshot subscription, see Coordinator.Subscribe.
func (s *Session) Subscribe(fn func(Snapshot)) func() {
	return s.coord.Subscribe(fn)
}

// SubscribePanel. fn is called on the event loop with every panel frame and must
// not block.
func (s *Session) SubscribePanel(fn func(panel.Frame)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextSubID++
	id := s.nextSubID
	s.panelSubs = append(s.panelSubs, panelSubscriber{id: id, fn: fn})

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.panelSubs = slices.DeleteFunc(s.panelSubs, func(p panelSubscriber) bool { return p.id == id })
	}
}

// HandleAction. panel buttons and the search bar. nothing is sent anywhere: the
// action is logged, and a blank search is ignored. route also snaps the panel
// open so the destination details stay visible.
func (s *Session) HandleAction(ctx context.Context, action Action, query string) error {
	dest := s.coord.Destination()
	switch action {
	case ActionRoute:
		s.log.Info("route to destination triggered", zap.String("destination", dest.Name))
		return s.ExpandPanel(ctx)
	case ActionSave:
		s.log.Info("save destination triggered", zap.String("destination", dest.Name))
	case ActionShare:
		s.log.Info("share destination triggered", zap.String("destination", dest.Name))
	case ActionSearch:
		query = strings.TrimSpace(query)
		if query == "" {
			return nil
		}
		s.log.Info("searching for location", zap.String("query", query))
	default:
		return util.WrapErrorf(nil, util.ErrBadParamInput, "unknown action %q", action)
	}
	return nil
}

// Done is closed once the session has been closed.
func (s *Session) Done() <-chan struct{} {
	return s.loop.Done()
}

// Close. tear the view down and stop the event loop. safe to call more than once.
func (s *Session) Close(ctx context.Context) error {
	var err error
	s.closeOnce.Do(func() {
		err = s.coord.Teardown(ctx)
		s.loop.Close()

		s.mu.Lock()
		s.panelSubs = nil
		s.mu.Unlock()
	})
	return err
}

func (s *Session) onLoop(ctx context.Context, fn func()) error {
	err := s.loop.Call(ctx, fn)
	if errors.Is(err, concurrent.ErrLoopClosed) {
		return util.WrapErrorf(err, ErrTornDown, "session %s", s.id)
	}
	return err
}
