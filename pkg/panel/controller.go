// Package panel drives the draggable bottom information panel of the map view.
package panel

import (
	"math"
	"time"

	"github.com/lintang-b-s/campusnav/pkg/util"
)

// enum of panel state
type State uint8

const (
	COLLAPSED State = iota
	DRAGGING
	EXPANDED
)

func (s State) String() string {
	switch s {
	case COLLAPSED:
		return "collapsed"
	case DRAGGING:
		return "dragging"
	case EXPANDED:
		return "expanded"
	default:
		return "unknown"
	}
}

// Frame is what the renderer reads on every frame.
type Frame struct {
	State     State   `json:"-"`
	StateName string  `json:"state"`
	Height    float64 `json:"height"`
	Animating bool    `json:"animating"`
}

/*
Controller owns the panel height. it is not safe for concurrent use: every call
comes from the view's event loop, in event-arrival order.

	COLLAPSED --|displacement| > dead zone--> DRAGGING
	EXPANDED  --|displacement| > dead zone--> DRAGGING
	DRAGGING  --drag end, net delta > collapse threshold--> COLLAPSED (animated)
	DRAGGING  --drag end, otherwise--> EXPANDED (animated)

while a snap animation runs, gesture input is dropped until it completes or is
preempted with Preempt.
*/
type Controller struct {
	cfg Config

	state  State
	height float64

	// running sum of the drag-update deltas of the current gesture
	displacement float64

	anim *tween
}

func NewController(cfg Config) (*Controller, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Controller{
		cfg:    cfg,
		state:  COLLAPSED,
		height: cfg.MinHeight,
	}, nil
}

func (c *Controller) Config() Config {
	return c.cfg
}

func (c *Controller) State() State {
	return c.state
}

func (c *Controller) Height() float64 {
	return c.height
}

func (c *Controller) Animating() bool {
	return c.anim != nil
}

func (c *Controller) Frame() Frame {
	return Frame{
		State:     c.state,
		StateName: c.state.String(),
		Height:    c.height,
		Animating: c.anim != nil,
	}
}

// DragUpdate. apply one drag-update delta (positive = finger moved down). returns
// true if the height changed. NaN or infinite deltas count as zero.
func (c *Controller) DragUpdate(verticalDelta float64) bool {
	if c.anim != nil {
		return false
	}

	c.displacement += util.FiniteOrZero(verticalDelta)

	if c.state != DRAGGING {
		if math.Abs(c.displacement) <= c.cfg.DeadZone {
			return false
		}
		c.state = DRAGGING
	}

	prev := c.height
	c.height = util.Clamp(c.cfg.BaseExpandedHeight-c.displacement, c.cfg.MinHeight, c.cfg.MaxHeight)
	return c.height != prev
}

// DragEnd. resolve the gesture into a resting state and start the snap animation
// at now. a net downward delta past the collapse threshold collapses the panel,
// anything else expands it. a release that never left the dead zone is a tap
// and changes nothing.
func (c *Controller) DragEnd(netVerticalDelta float64, now time.Time) {
	if c.anim != nil {
		return
	}

	net := util.FiniteOrZero(netVerticalDelta)
	wasDragging := c.state == DRAGGING
	c.displacement = 0

	if !wasDragging && math.Abs(net) <= c.cfg.DeadZone {
		return
	}

	if net > c.cfg.CollapseThreshold {
		c.animateTo(COLLAPSED, now)
	} else {
		c.animateTo(EXPANDED, now)
	}
}

// AnimateTo. programmatic snap to a resting state, e.g. expanding the panel when a
// destination is selected. ignored while an animation runs or a drag is active.
func (c *Controller) AnimateTo(state State, now time.Time) {
	if c.anim != nil || c.state == DRAGGING || state == DRAGGING {
		return
	}
	c.animateTo(state, now)
}

func (c *Controller) animateTo(state State, now time.Time) {
	c.state = state
	target := c.cfg.MinHeight
	if state == EXPANDED {
		target = c.cfg.MaxHeight
	}

	c.anim = &tween{
		from:     c.height,
		to:       target,
		start:    now,
		duration: c.cfg.AnimationDuration,
	}
	c.Tick(now)
}

// Tick. advance the snap animation to now. returns true if the height changed.
func (c *Controller) Tick(now time.Time) bool {
	if c.anim == nil {
		return false
	}
	prev := c.height
	h, done := c.anim.at(now)
	c.height = h
	if done {
		c.anim = nil
	}
	return c.height != prev || done
}

// Preempt. stop a running snap animation where it is, so a new gesture can start.
// the state keeps the resting state the animation was heading to.
func (c *Controller) Preempt(now time.Time) {
	if c.anim == nil {
		return
	}
	h, _ := c.anim.at(now)
	c.height = h
	c.anim = nil
	c.displacement = 0
}
