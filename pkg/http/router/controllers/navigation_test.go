package controllers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
	"github.com/julienschmidt/httprouter"
	helper "github.com/lintang-b-s/campusnav/pkg/http/router/routerhelper"
	"github.com/lintang-b-s/campusnav/pkg/http/usecases"
	"github.com/lintang-b-s/campusnav/pkg/metrics"
	"github.com/lintang-b-s/campusnav/pkg/panel"
	"github.com/lintang-b-s/campusnav/pkg/polyline"
	"github.com/lintang-b-s/campusnav/pkg/routeprovider"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const malformedGeometry = "_p~iF~ps|U_"

func newTestHandler(t *testing.T) (http.Handler, *Hub) {
	t.Helper()
	estimator, err := metrics.NewEstimator(metrics.DefaultSpeedProfile())
	require.NoError(t, err)
	decoder, err := polyline.NewCachedDecoder(16)
	require.NoError(t, err)

	panelCfg := panel.ConfigForWindow(800, panel.DefaultMinRatio, panel.DefaultMaxRatio)
	panelCfg.AnimationDuration = 0

	service := usecases.NewNavigationService(zap.NewNop(), routeprovider.NewStatic(""), decoder, estimator,
		usecases.NavigationConfig{Panel: panelCfg, FixTimeout: time.Second, EstimateWorkers: 2})
	t.Cleanup(func() { service.Close(context.Background()) })

	hub := NewHub(zap.NewNop())
	router := httprouter.New()
	New(service, hub, zap.NewNop()).Routes(helper.NewRouteGroup(router, "/api"))
	return router, hub
}

type response struct {
	status int
	body   map[string]json.RawMessage
}

func do(t *testing.T, h http.Handler, method, path, body string) response {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rd)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	resp := response{status: rec.Code}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp.body), rec.Body.String())
	return resp
}

func (r response) data(t *testing.T, dst interface{}) {
	t.Helper()
	require.Contains(t, r.body, "data")
	require.NoError(t, json.Unmarshal(r.body["data"], dst))
}

type snapshotBody struct {
	LocationState    string `json:"location_state"`
	Mode             string `json:"mode"`
	UserLocation     *struct{ Latitude, Longitude float64 } `json:"user_location"`
	RouteCoordinates []struct {
		Latitude  float64 `json:"latitude"`
		Longitude float64 `json:"longitude"`
	} `json:"route_coordinates"`
	Metrics *struct {
		DistanceKm      float64 `json:"distance_km"`
		DurationMinutes float64 `json:"duration_minutes"`
	} `json:"metrics"`
	Destination struct {
		Name string `json:"name"`
	} `json:"destination"`
	Labels struct {
		Distance string `json:"distance"`
		Duration string `json:"duration"`
	} `json:"labels"`
}

func createSession(t *testing.T, h http.Handler, body string) string {
	t.Helper()
	resp := do(t, h, http.MethodPost, "/api/sessions", body)
	require.Equal(t, http.StatusCreated, resp.status)

	var created struct {
		ID       string       `json:"id"`
		Snapshot snapshotBody `json:"snapshot"`
	}
	resp.data(t, &created)
	require.NotEmpty(t, created.ID)
	assert.Equal(t, "pending", created.Snapshot.LocationState)
	return created.ID
}

func getSnapshot(t *testing.T, h http.Handler, id string) snapshotBody {
	t.Helper()
	resp := do(t, h, http.MethodGet, "/api/sessions/"+id+"/snapshot", "")
	require.Equal(t, http.StatusOK, resp.status)
	var snap snapshotBody
	resp.data(t, &snap)
	return snap
}

func TestCreateSession(t *testing.T) {
	h, _ := newTestHandler(t)

	testCases := []struct {
		name     string
		body     string
		wantName string
	}{
		{name: "empty body selects the default destination", body: "", wantName: "Innovation Hub"},
		{name: "string coordinates", body: `{"latitude":"-7.77","longitude":"110.37","name":"Library"}`, wantName: "Library"},
		{name: "numeric coordinates", body: `{"latitude":-7.77,"longitude":110.37,"name":"Library"}`, wantName: "Library"},
		{name: "unparsable latitude", body: `{"latitude":"north","longitude":"110.37","name":"Library"}`, wantName: "Innovation Hub"},
	}

	for _, tt := range testCases {
		t.Run(tt.name, func(t *testing.T) {
			id := createSession(t, h, tt.body)
			snap := getSnapshot(t, h, id)
			assert.Equal(t, tt.wantName, snap.Destination.Name)
			assert.Equal(t, "foot", snap.Mode)
			assert.Empty(t, snap.RouteCoordinates)
		})
	}
}

func TestCreateSessionBadBody(t *testing.T) {
	h, _ := newTestHandler(t)

	resp := do(t, h, http.MethodPost, "/api/sessions", `{"latitude":`)
	assert.Equal(t, http.StatusBadRequest, resp.status)

	resp = do(t, h, http.MethodPost, "/api/sessions", `{"altitude":3}`)
	assert.Equal(t, http.StatusBadRequest, resp.status)
}

func TestUnknownSession(t *testing.T) {
	h, _ := newTestHandler(t)

	resp := do(t, h, http.MethodGet, "/api/sessions/nope/snapshot", "")
	assert.Equal(t, http.StatusNotFound, resp.status)
	assert.Contains(t, resp.body, "error")

	resp = do(t, h, http.MethodDelete, "/api/sessions/nope", "")
	assert.Equal(t, http.StatusNotFound, resp.status)
}

func TestLocationFlow(t *testing.T) {
	h, _ := newTestHandler(t)
	id := createSession(t, h, `{"latitude":38.5,"longitude":-120.2}`)

	resp := do(t, h, http.MethodPost, "/api/sessions/"+id+"/permission", `{"granted":true}`)
	require.Equal(t, http.StatusOK, resp.status)
	var perm permissionResponse
	resp.data(t, &perm)
	assert.Equal(t, "granted", perm.Status)

	resp = do(t, h, http.MethodPost, "/api/sessions/"+id+"/position", `{"latitude":38.5,"longitude":-120.2,"accuracy":5}`)
	require.Equal(t, http.StatusAccepted, resp.status)

	require.Eventually(t, func() bool {
		return getSnapshot(t, h, id).LocationState == "available"
	}, 2*time.Second, 5*time.Millisecond)

	snap := getSnapshot(t, h, id)
	assert.Len(t, snap.RouteCoordinates, 3)
	require.NotNil(t, snap.Metrics)
	assert.True(t, strings.HasPrefix(snap.Labels.Distance, "Distance: "))
	assert.True(t, strings.HasPrefix(snap.Labels.Duration, "Estimated: "))

	resp = do(t, h, http.MethodPut, "/api/sessions/"+id+"/mode", `{"mode":"car"}`)
	require.Equal(t, http.StatusOK, resp.status)
	var carSnap snapshotBody
	resp.data(t, &carSnap)
	assert.Equal(t, "car", carSnap.Mode)
	require.NotNil(t, carSnap.Metrics)
	assert.InDelta(t, snap.Metrics.DistanceKm, carSnap.Metrics.DistanceKm, 1e-9)
	assert.Less(t, carSnap.Metrics.DurationMinutes, snap.Metrics.DurationMinutes)

	resp = do(t, h, http.MethodPut, "/api/sessions/"+id+"/route", `{"geometry":"`+malformedGeometry+`"}`)
	require.Equal(t, http.StatusOK, resp.status)
	var noRoute snapshotBody
	resp.data(t, &noRoute)
	assert.Empty(t, noRoute.RouteCoordinates)
	assert.Nil(t, noRoute.Metrics)
	assert.Empty(t, noRoute.Labels.Distance)

	resp = do(t, h, http.MethodDelete, "/api/sessions/"+id, "")
	assert.Equal(t, http.StatusOK, resp.status)
	resp = do(t, h, http.MethodGet, "/api/sessions/"+id+"/snapshot", "")
	assert.Equal(t, http.StatusNotFound, resp.status)
}

func TestPermissionDenied(t *testing.T) {
	h, _ := newTestHandler(t)
	id := createSession(t, h, "")

	resp := do(t, h, http.MethodPost, "/api/sessions/"+id+"/permission", `{"granted":false}`)
	require.Equal(t, http.StatusOK, resp.status)

	require.Eventually(t, func() bool {
		return getSnapshot(t, h, id).LocationState == "denied"
	}, 2*time.Second, 5*time.Millisecond)

	snap := getSnapshot(t, h, id)
	assert.Nil(t, snap.UserLocation)
	assert.Empty(t, snap.RouteCoordinates)
	assert.Nil(t, snap.Metrics)
}

func TestBadRequests(t *testing.T) {
	h, _ := newTestHandler(t)
	id := createSession(t, h, "")
	base := "/api/sessions/" + id

	testCases := []struct {
		name   string
		method string
		path   string
		body   string
	}{
		{name: "unknown mode", method: http.MethodPut, path: base + "/mode", body: `{"mode":"boat"}`},
		{name: "missing mode", method: http.MethodPut, path: base + "/mode", body: `{}`},
		{name: "missing geometry", method: http.MethodPut, path: base + "/route", body: `{}`},
		{name: "missing granted", method: http.MethodPost, path: base + "/permission", body: `{}`},
		{name: "latitude out of range", method: http.MethodPost, path: base + "/position", body: `{"latitude":91,"longitude":0}`},
		{name: "position without coordinates", method: http.MethodPost, path: base + "/position", body: `{"accuracy":3}`},
		{name: "unknown gesture", method: http.MethodPost, path: base + "/gesture", body: `{"type":"pinch"}`},
		{name: "unknown action", method: http.MethodPost, path: base + "/actions", body: `{"action":"call"}`},
		{name: "malformed geometry", method: http.MethodGet, path: "/api/geometry/decode?geometry=" + malformedGeometry},
		{name: "empty estimate batch", method: http.MethodPost, path: "/api/metrics/estimate", body: `{"routes":[]}`},
		{name: "bad estimate mode", method: http.MethodPost, path: "/api/metrics/estimate",
			body: `{"routes":[{"geometry":"","mode":"boat"}]}`},
	}

	for _, tt := range testCases {
		t.Run(tt.name, func(t *testing.T) {
			resp := do(t, h, tt.method, tt.path, tt.body)
			assert.Equal(t, http.StatusBadRequest, resp.status)
			assert.Contains(t, resp.body, "error")
		})
	}
}

func TestGestureAndPanel(t *testing.T) {
	h, _ := newTestHandler(t)
	id := createSession(t, h, "")
	base := "/api/sessions/" + id

	var frame panel.Frame
	resp := do(t, h, http.MethodGet, base+"/panel", "")
	require.Equal(t, http.StatusOK, resp.status)
	resp.data(t, &frame)
	assert.Equal(t, "collapsed", frame.StateName)
	assert.InDelta(t, 120.0, frame.Height, 1e-9)

	resp = do(t, h, http.MethodPost, base+"/gesture", `{"type":"move","vertical_delta":-100}`)
	require.Equal(t, http.StatusOK, resp.status)
	resp.data(t, &frame)
	assert.Equal(t, "dragging", frame.StateName)
	assert.InDelta(t, 360.0, frame.Height, 1e-9)

	resp = do(t, h, http.MethodPost, base+"/gesture", `{"type":"end","vertical_delta":-100}`)
	require.Equal(t, http.StatusOK, resp.status)
	resp.data(t, &frame)
	assert.Equal(t, "expanded", frame.StateName)
	assert.InDelta(t, 360.0, frame.Height, 1e-9)
	assert.False(t, frame.Animating)
}

func TestActions(t *testing.T) {
	h, _ := newTestHandler(t)
	id := createSession(t, h, "")

	for _, body := range []string{`{"action":"route"}`, `{"action":"save"}`, `{"action":"share"}`,
		`{"action":"search","query":"  library "}`, `{"action":"search","query":"   "}`} {
		resp := do(t, h, http.MethodPost, "/api/sessions/"+id+"/actions", body)
		assert.Equal(t, http.StatusAccepted, resp.status, body)
	}
}

func TestRender(t *testing.T) {
	h, _ := newTestHandler(t)
	id := createSession(t, h, "")

	resp := do(t, h, http.MethodGet, "/api/sessions/"+id+"/render", "")
	require.Equal(t, http.StatusOK, resp.status)

	var doc struct {
		Map struct {
			Type     string            `json:"type"`
			Features []json.RawMessage `json:"features"`
		} `json:"map"`
	}
	resp.data(t, &doc)
	assert.Equal(t, "FeatureCollection", doc.Map.Type)
	assert.Len(t, doc.Map.Features, 1, "pending view shows only the destination marker")
}

func TestDecodeGeometry(t *testing.T) {
	h, _ := newTestHandler(t)

	resp := do(t, h, http.MethodGet, "/api/geometry/decode?geometry="+routeprovider.PlaceholderGeometry, "")
	require.Equal(t, http.StatusOK, resp.status)
	var decoded struct {
		Points int `json:"points"`
	}
	resp.data(t, &decoded)
	assert.Equal(t, 3, decoded.Points)
}

func TestEstimate(t *testing.T) {
	h, _ := newTestHandler(t)

	body := `{"routes":[{"geometry":"` + routeprovider.PlaceholderGeometry + `","mode":"bike"},` +
		`{"geometry":"` + malformedGeometry + `"}]}`
	resp := do(t, h, http.MethodPost, "/api/metrics/estimate", body)
	require.Equal(t, http.StatusOK, resp.status)

	var estimates []routeEstimateResponse
	resp.data(t, &estimates)
	require.Len(t, estimates, 2)

	assert.Equal(t, "bike", estimates[0].Mode)
	assert.Equal(t, 3, estimates[0].Points)
	require.NotNil(t, estimates[0].Metrics)
	assert.Empty(t, estimates[0].Error)

	assert.Equal(t, "foot", estimates[1].Mode)
	assert.Nil(t, estimates[1].Metrics)
	assert.NotEmpty(t, estimates[1].Error)
}

// wsConn reads the frames the server may have sent together with the handshake
// response before reading from the connection.
type wsConn struct {
	io.Reader
	net.Conn
}

func (c wsConn) Read(p []byte) (int, error) {
	return c.Reader.Read(p)
}

func dial(t *testing.T, url string) wsConn {
	t.Helper()
	conn, br, _, err := ws.Dial(context.Background(), url)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	var rd io.Reader = conn
	if br != nil {
		rd = io.MultiReader(br, conn)
	}
	return wsConn{Reader: rd, Conn: conn}
}

func readMessage(t *testing.T, conn wsConn) (string, json.RawMessage) {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	data, err := wsutil.ReadServerText(conn)
	require.NoError(t, err)

	var msg struct {
		Type string          `json:"type"`
		Data json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(data, &msg))
	return msg.Type, msg.Data
}

func TestStream(t *testing.T) {
	h, hub := newTestHandler(t)
	srv := httptest.NewServer(h)
	defer srv.Close()

	id := createSession(t, h, "")
	conn := dial(t, "ws"+strings.TrimPrefix(srv.URL, "http")+"/api/sessions/"+id+"/ws")

	typ, data := readMessage(t, conn)
	require.Equal(t, "snapshot", typ)
	var snap snapshotBody
	require.NoError(t, json.Unmarshal(data, &snap))
	assert.Equal(t, "pending", snap.LocationState)

	typ, _ = readMessage(t, conn)
	require.Equal(t, "panel", typ)

	require.NoError(t, wsutil.WriteClientText(conn, []byte(`{"type":"move","vertical_delta":-100}`)))
	typ, data = readMessage(t, conn)
	require.Equal(t, "panel", typ)
	var frame panel.Frame
	require.NoError(t, json.Unmarshal(data, &frame))
	assert.Equal(t, "dragging", frame.StateName)

	require.NoError(t, wsutil.WriteClientText(conn, []byte(`{"type":"pinch"}`)))
	typ, _ = readMessage(t, conn)
	assert.Equal(t, "error", typ)

	resp := do(t, h, http.MethodPost, "/api/sessions/"+id+"/permission", `{"granted":false}`)
	require.Equal(t, http.StatusOK, resp.status)
	typ, data = readMessage(t, conn)
	require.Equal(t, "snapshot", typ)
	require.NoError(t, json.Unmarshal(data, &snap))
	assert.Equal(t, "denied", snap.LocationState)

	assert.Equal(t, 1, hub.Len())
	hub.RemoveAllUser()
	require.Eventually(t, func() bool { return hub.Len() == 0 }, time.Second, time.Millisecond)
}

func TestStreamClosedWithSession(t *testing.T) {
	h, hub := newTestHandler(t)
	srv := httptest.NewServer(h)
	defer srv.Close()

	id := createSession(t, h, "")
	conn := dial(t, "ws"+strings.TrimPrefix(srv.URL, "http")+"/api/sessions/"+id+"/ws")

	typ, _ := readMessage(t, conn)
	require.Equal(t, "snapshot", typ)
	typ, _ = readMessage(t, conn)
	require.Equal(t, "panel", typ)
	require.Equal(t, 1, hub.Len())

	resp := do(t, h, http.MethodDelete, "/api/sessions/"+id, "")
	require.Equal(t, http.StatusOK, resp.status)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, err := wsutil.ReadServerText(conn)
	require.Error(t, err)
	var netErr net.Error
	if errors.As(err, &netErr) {
		assert.False(t, netErr.Timeout(), "stream must be closed by the server, not time out")
	}
	require.Eventually(t, func() bool { return hub.Len() == 0 }, time.Second, time.Millisecond)
}

func TestValidateRequest(t *testing.T) {
	testCases := []struct {
		name    string
		request interface{}
		wantErr string
	}{
		{name: "valid gesture", request: gestureRequest{Type: "move", VerticalDelta: -3}},
		{name: "unknown gesture", request: gestureRequest{Type: "pinch"}, wantErr: "Type must be one of [move end preempt]"},
		{name: "missing mode", request: setModeRequest{}, wantErr: "Mode is a required field"},
		{name: "empty batch", request: estimateRequest{Routes: []routeEstimateRequest{}}, wantErr: "Routes must contain at least 1 item"},
	}

	for _, tt := range testCases {
		t.Run(tt.name, func(t *testing.T) {
			err := validateRequest(tt.request)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidateRequestConcurrent(t *testing.T) {
	var wg sync.WaitGroup
	errs := make(chan error, 64)
	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			req := gestureRequest{Type: "end"}
			if i%2 == 1 {
				req.Type = "pinch"
			}
			errs <- validateRequest(req)
		}(i)
	}
	wg.Wait()
	close(errs)

	failed := 0
	for err := range errs {
		if err != nil {
			failed++
			assert.Contains(t, err.Error(), "Type must be one of")
		}
	}
	assert.Equal(t, 32, failed)
}
