package controllers

import (
	"github.com/lintang-b-s/campusnav/pkg/geo"
	"github.com/lintang-b-s/campusnav/pkg/http/usecases"
	"github.com/lintang-b-s/campusnav/pkg/metrics"
	"github.com/lintang-b-s/campusnav/pkg/navigation"
)

type createSessionResponse struct {
	ID       string              `json:"id"`
	Snapshot navigation.Snapshot `json:"snapshot"`
}

type setModeRequest struct {
	Mode string `json:"mode" validate:"required"`
}

type setRouteRequest struct {
	Geometry *string `json:"geometry" validate:"required"`
}

type permissionRequest struct {
	Granted *bool `json:"granted" validate:"required"`
}

type permissionResponse struct {
	Status string `json:"status"`
}

// positionRequest is either a fix (latitude and longitude) or a sensor error.
type positionRequest struct {
	Latitude  *float64 `json:"latitude" validate:"omitempty,min=-90,max=90"`
	Longitude *float64 `json:"longitude" validate:"omitempty,min=-180,max=180"`
	Accuracy  float64  `json:"accuracy" validate:"min=0"`
	Error     string   `json:"error" validate:"max=256"`
}

type gestureRequest struct {
	Type          string  `json:"type" validate:"required,oneof=move end preempt"`
	VerticalDelta float64 `json:"vertical_delta"`
}

type actionRequest struct {
	Action string `json:"action" validate:"required,oneof=route save share search"`
	Query  string `json:"query" validate:"max=256"`
}

type decodeResponse struct {
	Coordinates []geo.Coordinate `json:"coordinates"`
	Points      int              `json:"points"`
}

type routeEstimateRequest struct {
	Geometry string `json:"geometry"`
	Mode     string `json:"mode"`
}

type estimateRequest struct {
	Routes []routeEstimateRequest `json:"routes" validate:"required,min=1,max=100,dive"`
}

type routeEstimateResponse struct {
	Mode    string                `json:"mode"`
	Points  int                   `json:"points"`
	Metrics *metrics.RouteMetrics `json:"metrics,omitempty"`
	Error   string                `json:"error,omitempty"`
}

func NewRouteEstimatesResponse(estimates []usecases.RouteEstimate) []routeEstimateResponse {
	out := make([]routeEstimateResponse, len(estimates))
	for i, e := range estimates {
		out[i] = routeEstimateResponse{
			Mode:    e.Mode.String(),
			Points:  e.Points,
			Metrics: e.Metrics,
		}
		if e.Err != nil {
			out[i].Error = e.Err.Error()
		}
	}
	return out
}

type errorResponse struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// frame pushed over the session websocket
type streamMessage struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}
