package router

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
	da "github.com/lintang-b-s/courierx/pkg/datastructure"
	"github.com/lintang-b-s/courierx/pkg/http/usecases"
	"github.com/lintang-b-s/courierx/pkg/metrics"
	"github.com/lintang-b-s/courierx/pkg/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type stubPlanner struct {
	couriers int
	err      error
}

func (s *stubPlanner) Plan(ctx context.Context, in usecases.PlanInput, emit usecases.EmitRouteFunc) (*usecases.PlanResult, error) {
	if s.err != nil {
		return nil, s.err
	}
	result := &usecases.PlanResult{ID: "plan-ws", Feasible: true}
	for i := 0; i < s.couriers; i++ {
		route := usecases.CourierRoute{CourierTour: da.CourierTour{CourierIndex: i}}
		if emit != nil {
			emit(route)
		}
		result.Couriers = append(result.Couriers, route)
	}
	return result, nil
}

func (s *stubPlanner) Matrix(ctx context.Context, in usecases.DemandInput) (*usecases.MatrixResult, error) {
	return &usecases.MatrixResult{}, s.err
}

func (s *stubPlanner) Nearest(lat, lon float64) (*usecases.NearestResult, error) {
	return &usecases.NearestResult{NodeID: 1}, s.err
}

func TestHandlerMiddleware(t *testing.T) {
	metrics.RegisterDefault()
	h := NewAPI(zap.NewNop()).Handler(RateLimit{}, &stubPlanner{couriers: 1})

	t.Run("heartbeat", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, ".", rec.Body.String())
	})

	t.Run("request id is generated", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/graph/nearest?lat=45.75&lon=4.85", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.NotEmpty(t, rec.Header().Get(REQUEST_ID_HEADER))
	})

	t.Run("request id is kept", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/graph/nearest?lat=45.75&lon=4.85", nil)
		req.Header.Set(REQUEST_ID_HEADER, "abc")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, "abc", rec.Header().Get(REQUEST_ID_HEADER))
	})

	t.Run("json is enforced on post", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/plan", strings.NewReader(`{}`))
		req.Header.Set("Content-Type", "text/plain")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)
	})

	t.Run("metrics", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "http_requests_total")
	})
}

func TestRateLimit(t *testing.T) {
	h := NewAPI(zap.NewNop()).Handler(RateLimit{Enabled: true, RPS: 0.001, Burst: 1}, &stubPlanner{})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/graph/nearest?lat=45.75&lon=4.85", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/graph/nearest?lat=45.75&lon=4.85", nil))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
}

func TestRecoverPanic(t *testing.T) {
	api := NewAPI(zap.NewNop())
	h := api.recoverPanic(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("solver state corrupted")
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "close", rec.Header().Get("Connection"))
}

func TestRealIP(t *testing.T) {
	testCases := []struct {
		name    string
		headers map[string]string
		want    string
	}{
		{name: "x-real-ip", headers: map[string]string{"X-Real-IP": "10.0.0.1"}, want: "10.0.0.1"},
		{name: "x-forwarded-for", headers: map[string]string{"X-Forwarded-For": "10.0.0.2, 10.0.0.3"}, want: "10.0.0.2"},
		{name: "none", headers: map[string]string{}, want: "192.0.2.1:1234"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			var got string
			h := RealIP(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { got = r.RemoteAddr }))
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			for k, v := range tc.headers {
				req.Header.Set(k, v)
			}
			h.ServeHTTP(httptest.NewRecorder(), req)
			assert.Equal(t, tc.want, got)
		})
	}
}

func readMessage(t *testing.T, rw io.ReadWriter) map[string]json.RawMessage {
	t.Helper()
	data, err := wsutil.ReadServerText(rw)
	require.NoError(t, err)
	msg := map[string]json.RawMessage{}
	require.NoError(t, json.Unmarshal(data, &msg))
	return msg
}

func dialPlan(t *testing.T, srv *httptest.Server) io.ReadWriteCloser {
	t.Helper()
	conn, br, _, err := ws.Dial(context.Background(), "ws"+strings.TrimPrefix(srv.URL, "http")+"/api/ws/plan")
	require.NoError(t, err)
	if br != nil {
		return struct {
			io.Reader
			io.Writer
			io.Closer
		}{bufio.NewReader(io.MultiReader(br, conn)), conn, conn}
	}
	return conn
}

func TestWebsocketPlanStreamsCouriers(t *testing.T) {
	srv := httptest.NewServer(NewAPI(zap.NewNop()).Handler(RateLimit{}, &stubPlanner{couriers: 2}))
	defer srv.Close()

	conn := dialPlan(t, srv)
	defer conn.Close()
	require.NoError(t, wsutil.WriteClientText(conn, []byte(`{"depot": {"node_id": 1}, "courier_count": 2}`)))

	for i := 0; i < 2; i++ {
		msg := readMessage(t, conn)
		assert.JSONEq(t, `"courier"`, string(msg["type"]))
		var route usecases.CourierRoute
		require.NoError(t, json.Unmarshal(msg["data"], &route))
		assert.Equal(t, i, route.CourierIndex)
	}

	msg := readMessage(t, conn)
	assert.JSONEq(t, `"plan"`, string(msg["type"]))
	var result usecases.PlanResult
	require.NoError(t, json.Unmarshal(msg["data"], &result))
	assert.Equal(t, "plan-ws", result.ID)
	assert.Len(t, result.Couriers, 2)
}

func TestWebsocketPlanErrors(t *testing.T) {
	testCases := []struct {
		name     string
		planner  *stubPlanner
		request  string
		wantCode string
	}{
		{name: "malformed request", planner: &stubPlanner{}, request: `{"depot": `,
			wantCode: http.StatusText(http.StatusBadRequest)},
		{name: "invalid request", planner: &stubPlanner{}, request: `{"depot": {"node_id": 1}, "courier_count": -3}`,
			wantCode: http.StatusText(http.StatusBadRequest)},
		{name: "infeasible", planner: &stubPlanner{err: util.WrapErrorf(errors.New("no feasible tour"), util.ErrUnprocessable, "plan")},
			request: `{"depot": {"node_id": 1}, "courier_count": 1}`, wantCode: http.StatusText(http.StatusUnprocessableEntity)},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(NewAPI(zap.NewNop()).Handler(RateLimit{}, tc.planner))
			defer srv.Close()

			conn := dialPlan(t, srv)
			defer conn.Close()
			require.NoError(t, wsutil.WriteClientText(conn, []byte(tc.request)))

			msg := readMessage(t, conn)
			assert.JSONEq(t, `"error"`, string(msg["type"]))
			var body struct {
				Code    string `json:"code"`
				Message string `json:"message"`
			}
			require.NoError(t, json.Unmarshal(msg["error"], &body))
			assert.Equal(t, tc.wantCode, body.Code)
		})
	}
}
