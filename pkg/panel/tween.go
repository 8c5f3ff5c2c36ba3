package panel

import "time"

// tween interpolates a height over a fixed duration.
type tween struct {
	from, to float64
	start    time.Time
	duration time.Duration
}

// at returns the eased value at now and whether the tween has finished.
func (tw *tween) at(now time.Time) (float64, bool) {
	if tw.duration <= 0 {
		return tw.to, true
	}
	elapsed := now.Sub(tw.start)
	if elapsed >= tw.duration {
		return tw.to, true
	}
	if elapsed <= 0 {
		return tw.from, false
	}
	p := float64(elapsed) / float64(tw.duration)
	return tw.from + (tw.to-tw.from)*easeInOutCubic(p), false
}

func easeInOutCubic(p float64) float64 {
	if p < 0.5 {
		return 4 * p * p * p
	}
	q := -2*p + 2
	return 1 - q*q*q/2
}
