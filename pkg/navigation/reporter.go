package navigation

import (
	"go.uber.org/zap"
)

// Step names the part of the navigation flow that failed.
type Step string

const (
	StepResolveDestination Step = "resolve_destination"
	StepAcquireLocation    Step = "acquire_location"
	StepRouteGeometry      Step = "route_geometry"
	StepDecodeGeometry     Step = "decode_geometry"
)

// ErrorReporter receives every failure the coordinator recovers from.
type ErrorReporter interface {
	Report(step Step, err error)
}

type ZapReporter struct {
	log *zap.Logger
}

func NewZapReporter(log *zap.Logger) *ZapReporter {
	return &ZapReporter{log: log}
}

func (r *ZapReporter) Report(step Step, err error) {
	r.log.Warn("navigation step failed, continuing degraded", zap.String("step", string(step)), zap.Error(err))
}
