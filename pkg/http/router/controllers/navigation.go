package controllers

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/julienschmidt/httprouter"
	"github.com/lintang-b-s/campusnav/pkg"
	"github.com/lintang-b-s/campusnav/pkg/geo"
	helper "github.com/lintang-b-s/campusnav/pkg/http/router/routerhelper"
	"github.com/lintang-b-s/campusnav/pkg/http/usecases"
	"github.com/lintang-b-s/campusnav/pkg/location"
	"github.com/lintang-b-s/campusnav/pkg/navigation"
	"github.com/lintang-b-s/campusnav/pkg/render"
	"go.uber.org/zap"
)

type navigationAPI struct {
	navigationService NavigationService
	hub               *Hub
	log               *zap.Logger
}

func New(navigationService NavigationService, hub *Hub, log *zap.Logger) *navigationAPI {
	return &navigationAPI{
		navigationService: navigationService,
		hub:               hub,
		log:               log,
	}
}

func (api *navigationAPI) Routes(group *helper.RouteGroup) {
	group.POST("/sessions", api.createSession)
	group.DELETE("/sessions/:id", api.deleteSession)
	group.GET("/sessions/:id/snapshot", api.snapshot)
	group.PUT("/sessions/:id/mode", api.setMode)
	group.PUT("/sessions/:id/route", api.setRoute)
	group.POST("/sessions/:id/permission", api.permission)
	group.POST("/sessions/:id/position", api.position)
	group.POST("/sessions/:id/gesture", api.gesture)
	group.GET("/sessions/:id/panel", api.panel)
	group.POST("/sessions/:id/actions", api.action)
	group.GET("/sessions/:id/render", api.render)
	group.GET("/sessions/:id/ws", api.stream)

	group.GET("/geometry/decode", api.decodeGeometry)
	group.POST("/metrics/estimate", api.estimate)
}

func (api *navigationAPI) session(w http.ResponseWriter, r *http.Request, p httprouter.Params) (*navigation.Session, bool) {
	session, err := api.navigationService.GetSession(p.ByName("id"))
	if err != nil {
		api.getStatusCode(w, r, err)
		return nil, false
	}
	return session, true
}

func (api *navigationAPI) ok(w http.ResponseWriter, r *http.Request, status int, data interface{}) {
	if err := api.writeJSON(w, status, envelope{"data": data}, nil); err != nil {
		api.ServerErrorResponse(w, r, err)
	}
}

// createSession. open a map view. every destination field is optional; a missing
// or unparsable coordinate selects the default destination.
func (api *navigationAPI) createSession(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
	var params navigation.Params
	if r.ContentLength != 0 {
		if err := api.readJSON(w, r, &params); err != nil {
			api.BadRequestResponse(w, r, err)
			return
		}
	}

	session, err := api.navigationService.CreateSession(r.Context(), params)
	if err != nil {
		api.getStatusCode(w, r, err)
		return
	}

	api.ok(w, r, http.StatusCreated, createSessionResponse{ID: session.ID(), Snapshot: session.Snapshot()})
}

func (api *navigationAPI) deleteSession(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
	id := p.ByName("id")
	if err := api.navigationService.DeleteSession(r.Context(), id); err != nil {
		api.getStatusCode(w, r, err)
		return
	}
	api.ok(w, r, http.StatusOK, map[string]string{"id": id})
}

func (api *navigationAPI) snapshot(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
	session, ok := api.session(w, r, p)
	if !ok {
		return
	}
	api.ok(w, r, http.StatusOK, session.Snapshot())
}

func (api *navigationAPI) setMode(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
	session, ok := api.session(w, r, p)
	if !ok {
		return
	}
	var request setModeRequest
	if err := api.readJSON(w, r, &request); err != nil {
		api.BadRequestResponse(w, r, err)
		return
	}
	if err := validateRequest(request); err != nil {
		api.BadRequestResponse(w, r, err)
		return
	}
	mode, valid := pkg.GetTravelMode(request.Mode)
	if !valid {
		api.BadRequestResponse(w, r, errors.New("mode must be one of foot, bike, car"))
		return
	}

	if err := session.Coordinator().SetTravelMode(r.Context(), mode); err != nil {
		api.getStatusCode(w, r, err)
		return
	}
	api.ok(w, r, http.StatusOK, session.Snapshot())
}

// setRoute. push a new encoded route geometry. a malformed geometry is accepted and
// leaves the view without a route.
func (api *navigationAPI) setRoute(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
	session, ok := api.session(w, r, p)
	if !ok {
		return
	}
	var request setRouteRequest
	if err := api.readJSON(w, r, &request); err != nil {
		api.BadRequestResponse(w, r, err)
		return
	}
	if err := validateRequest(request); err != nil {
		api.BadRequestResponse(w, r, err)
		return
	}

	if err := session.Coordinator().SetRouteGeometry(r.Context(), *request.Geometry); err != nil {
		api.getStatusCode(w, r, err)
		return
	}
	api.ok(w, r, http.StatusOK, session.Snapshot())
}

func (api *navigationAPI) permission(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
	session, ok := api.session(w, r, p)
	if !ok {
		return
	}
	var request permissionRequest
	if err := api.readJSON(w, r, &request); err != nil {
		api.BadRequestResponse(w, r, err)
		return
	}
	if err := validateRequest(request); err != nil {
		api.BadRequestResponse(w, r, err)
		return
	}

	status := session.Sensor().ReportPermission(*request.Granted)
	api.ok(w, r, http.StatusOK, permissionResponse{Status: status.String()})
}

func (api *navigationAPI) position(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
	session, ok := api.session(w, r, p)
	if !ok {
		return
	}
	var request positionRequest
	if err := api.readJSON(w, r, &request); err != nil {
		api.BadRequestResponse(w, r, err)
		return
	}
	if err := validateRequest(request); err != nil {
		api.BadRequestResponse(w, r, err)
		return
	}

	if request.Error != "" {
		session.Sensor().ReportPositionError(errors.New(request.Error))
		api.ok(w, r, http.StatusAccepted, map[string]string{"status": "error reported"})
		return
	}
	if request.Latitude == nil || request.Longitude == nil {
		api.BadRequestResponse(w, r, errors.New("latitude and longitude are required unless error is set"))
		return
	}

	session.Sensor().ReportPosition(location.Reading{
		Coordinate: geo.NewCoordinate(*request.Latitude, *request.Longitude),
		Accuracy:   request.Accuracy,
		Time:       time.Now(),
	})
	api.ok(w, r, http.StatusAccepted, map[string]string{"status": "position reported"})
}

func (api *navigationAPI) gesture(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
	session, ok := api.session(w, r, p)
	if !ok {
		return
	}
	var request gestureRequest
	if err := api.readJSON(w, r, &request); err != nil {
		api.BadRequestResponse(w, r, err)
		return
	}
	if err := validateRequest(request); err != nil {
		api.BadRequestResponse(w, r, err)
		return
	}

	frame, err := session.HandleGesture(r.Context(), navigation.Gesture{
		Type:          navigation.GestureType(request.Type),
		VerticalDelta: request.VerticalDelta,
	})
	if err != nil {
		api.getStatusCode(w, r, err)
		return
	}
	api.ok(w, r, http.StatusOK, frame)
}

func (api *navigationAPI) panel(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
	session, ok := api.session(w, r, p)
	if !ok {
		return
	}
	api.ok(w, r, http.StatusOK, session.Frame())
}

func (api *navigationAPI) action(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
	session, ok := api.session(w, r, p)
	if !ok {
		return
	}
	var request actionRequest
	if err := api.readJSON(w, r, &request); err != nil {
		api.BadRequestResponse(w, r, err)
		return
	}
	if err := validateRequest(request); err != nil {
		api.BadRequestResponse(w, r, err)
		return
	}

	if err := session.HandleAction(r.Context(), navigation.Action(request.Action), request.Query); err != nil {
		api.getStatusCode(w, r, err)
		return
	}
	api.ok(w, r, http.StatusAccepted, map[string]string{"action": request.Action})
}

func (api *navigationAPI) render(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
	session, ok := api.session(w, r, p)
	if !ok {
		return
	}
	api.ok(w, r, http.StatusOK, render.NewDocument(session.Snapshot()))
}

func (api *navigationAPI) stream(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
	session, ok := api.session(w, r, p)
	if !ok {
		return
	}
	api.hub.Serve(w, r, session)
}

func (api *navigationAPI) decodeGeometry(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
	coords, err := api.navigationService.DecodeGeometry(r.URL.Query().Get("geometry"))
	if err != nil {
		api.getStatusCode(w, r, err)
		return
	}
	api.ok(w, r, http.StatusOK, decodeResponse{Coordinates: coords, Points: len(coords)})
}

// estimate. metrics for a batch of encoded routes. mode defaults to foot.
func (api *navigationAPI) estimate(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
	var request estimateRequest
	if err := api.readJSON(w, r, &request); err != nil {
		api.BadRequestResponse(w, r, err)
		return
	}
	if err := validateRequest(request); err != nil {
		api.BadRequestResponse(w, r, err)
		return
	}

	queries := make([]usecases.RouteQuery, len(request.Routes))
	for i, route := range request.Routes {
		mode := pkg.DEFAULT_TRAVEL_MODE
		if route.Mode != "" {
			var valid bool
			mode, valid = pkg.GetTravelMode(route.Mode)
			if !valid {
				api.BadRequestResponse(w, r, fmt.Errorf("routes[%d].mode must be one of foot, bike, car", i))
				return
			}
		}
		queries[i] = usecases.RouteQuery{Geometry: route.Geometry, Mode: mode}
	}

	estimates := api.navigationService.EstimateRoutes(queries)
	api.ok(w, r, http.StatusOK, NewRouteEstimatesResponse(estimates))
}
