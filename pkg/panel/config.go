package panel

import (
	"errors"
	"time"

	"github.com/lintang-b-s/campusnav/pkg/util"
)

var ErrInvalidConfig = errors.New("invalid panel config")

const (
	DefaultMinRatio          = 0.15
	DefaultMaxRatio          = 0.45
	DefaultDeadZone          = 20.0 // logical pixels
	DefaultCollapseThreshold = 50.0 // logical pixels
	DefaultAnimationDuration = 200 * time.Millisecond
)

type Config struct {
	MinHeight float64
	MaxHeight float64
	// BaseExpandedHeight is the height a drag is measured from:
	// height = clamp(BaseExpandedHeight - displacement, MinHeight, MaxHeight).
	BaseExpandedHeight float64
	DeadZone           float64
	CollapseThreshold  float64
	AnimationDuration  time.Duration
}

// ConfigForWindow. heights as fractions of the window height, as the mobile layout does.
func ConfigForWindow(windowHeight, minRatio, maxRatio float64) Config {
	return Config{
		MinHeight:          windowHeight * minRatio,
		MaxHeight:          windowHeight * maxRatio,
		BaseExpandedHeight: windowHeight * maxRatio,
		DeadZone:           DefaultDeadZone,
		CollapseThreshold:  DefaultCollapseThreshold,
		AnimationDuration:  DefaultAnimationDuration,
	}
}

func (c Config) Validate() error {
	for _, v := range []float64{c.MinHeight, c.MaxHeight, c.BaseExpandedHeight, c.DeadZone, c.CollapseThreshold} {
		if !util.IsFinite(v) || v < 0 {
			return util.WrapErrorf(nil, ErrInvalidConfig, "panel dimensions must be finite and non-negative")
		}
	}
	if c.MinHeight >= c.MaxHeight {
		return util.WrapErrorf(nil, ErrInvalidConfig, "min height %.1f must be below max height %.1f", c.MinHeight, c.MaxHeight)
	}
	if c.AnimationDuration < 0 {
		return util.WrapErrorf(nil, ErrInvalidConfig, "negative animation duration %s", c.AnimationDuration)
	}
	return nil
}
