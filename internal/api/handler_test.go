package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"spotwise-backend/config"
	"spotwise-backend/internal/detect"
	"spotwise-backend/internal/ingest"
	"spotwise-backend/internal/model"
	"spotwise-backend/internal/reconcile"
	"spotwise-backend/internal/registry"
	"spotwise-backend/internal/reservation"
	"spotwise-backend/internal/stats"
)

type fakeDetector struct {
	result detect.Result
	err    error
}

func (f *fakeDetector) Detect(context.Context, detect.Image) (detect.Result, error) {
	return f.result, f.err
}

type fakeVisualizer struct {
	resp *detect.VisualizeResponse
	err  error
}

func (f *fakeVisualizer) Visualize(context.Context, detect.Image) (*detect.VisualizeResponse, error) {
	return f.resp, f.err
}

type fakeHistory struct {
	snaps []model.OccupancySnapshot
	limit int
}

func (f *fakeHistory) RecordSnapshot(context.Context, model.OccupancySnapshot) error { return nil }
func (f *fakeHistory) RecordReservationEvent(context.Context, model.ReservationEvent) error {
	return nil
}
func (f *fakeHistory) ListSnapshots(_ context.Context, limit int) ([]model.OccupancySnapshot, error) {
	f.limit = limit
	return f.snaps, nil
}
func (f *fakeHistory) ListReservationEvents(context.Context, string, int) ([]model.ReservationEvent, error) {
	return []model.ReservationEvent{}, nil
}
func (f *fakeHistory) PruneBefore(context.Context, time.Time) (int64, error) { return 0, nil }

type testServer struct {
	router     *gin.Engine
	store      *registry.Store
	detector   *fakeDetector
	visualizer *fakeVisualizer
}

func initialSpots() []model.Spot {
	return []model.Spot{
		model.NewSpot("a", "A1", model.CategoryStandard, model.Location{X: 0, Y: 0}, model.SourceMock, false),
		model.NewSpot("b", "A2", model.CategoryHandicap, model.Location{X: 1, Y: 0}, model.SourceMock, true),
		model.NewSpot("c", "A3", model.CategoryElectric, model.Location{X: 2, Y: 0}, model.SourceMock, false),
	}
}

func newTestServer(t *testing.T, deps Deps) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := registry.NewStore(initialSpots())
	ctx, cancel := context.WithCancel(context.Background())
	go store.Run(ctx)
	t.Cleanup(cancel)

	ids := registry.NewIDGenerator()
	codes := registry.NewCodeGenerator()
	mock := registry.NewMockGenerator(5, ids, codes)
	det := &fakeDetector{}
	vis := &fakeVisualizer{}

	deps.Store = store
	deps.Ingest = ingest.NewService(det, detect.NewAdapter(ids, "not_free_parking_space"),
		reconcile.NewEngine(20, mock, ids), store, nil)
	deps.Visualizer = vis
	deps.Reservations = reservation.NewManager(store, codes, config.ReservationConfig{
		Durations: []int{30, 60, 120, 180}, DefaultUserID: "user-1",
	}, nil)
	deps.Navigator = stats.NewNavigator(config.NavigationConfig{DistanceMeters: 150, WalkingMetersPerMin: 75})

	router := NewRouter(config.ServerConfig{RateLimitPerSec: 1000, RateLimitBurst: 1000, CacheTTLSeconds: 30},
		NewHandler(deps), nil)
	return &testServer{router: router, store: store, detector: det, visualizer: vis}
}

func (s *testServer) do(t *testing.T, method, path string, body []byte, contentType string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func imageForm(t *testing.T, field, contentType string, data []byte) ([]byte, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	h := textproto.MIMEHeader{}
	h.Set("Content-Disposition", `form-data; name="`+field+`"; filename="lot.jpg"`)
	h.Set("Content-Type", contentType)
	part, err := mw.CreatePart(h)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	return buf.Bytes(), mw.FormDataContentType()
}

func TestGetSpotsAndStats(t *testing.T) {
	s := newTestServer(t, Deps{})

	w := s.do(t, http.MethodGet, "/api/spots", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	var spots []model.Spot
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &spots))
	assert.Len(t, spots, 3)

	w = s.do(t, http.MethodGet, "/api/stats", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"total":3,"occupied":1,"reserved":0,"available":2,"occupancyRate":33}`, w.Body.String())
}

func TestGetNearest(t *testing.T) {
	s := newTestServer(t, Deps{})

	w := s.do(t, http.MethodGet, "/api/nearest", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"spotId":null}`, w.Body.String())

	w = s.do(t, http.MethodGet, "/api/nearest?lat=999&lng=0", nil, "")
	assert.JSONEq(t, `{"spotId":null}`, w.Body.String())

	w = s.do(t, http.MethodGet, "/api/nearest?lat=52.52&lng=13.40", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		SpotID     string               `json:"spotId"`
		Navigation model.NavigationInfo `json:"navigation"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "a", resp.SpotID)
	assert.Equal(t, 2, resp.Navigation.WalkingTimeMinutes)
	assert.Equal(t, "Spot A1 is on your left", resp.Navigation.Directions[2])
}

func TestReservationLifecycle(t *testing.T) {
	s := newTestServer(t, Deps{})
	body := []byte(`{"durationMinutes":60,"arrivalTime":"2099-01-01T10:00"}`)

	w := s.do(t, http.MethodPost, "/api/spots/c/reservation", body, "application/json")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var spot model.Spot
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &spot))
	assert.True(t, spot.IsReserved)
	assert.Equal(t, "user-1", spot.Reservation.UserID)

	w = s.do(t, http.MethodGet, "/api/stats", nil, "")
	assert.JSONEq(t, `{"total":3,"occupied":1,"reserved":1,"available":1,"occupancyRate":67}`, w.Body.String())

	w = s.do(t, http.MethodPost, "/api/spots/c/reservation", body, "application/json")
	assert.Equal(t, http.StatusConflict, w.Code)

	w = s.do(t, http.MethodPost, "/api/spots/b/reservation", body, "application/json")
	assert.Equal(t, http.StatusConflict, w.Code)

	w = s.do(t, http.MethodPost, "/api/spots/zz/reservation", body, "application/json")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = s.do(t, http.MethodPost, "/api/spots/a/reservation", []byte(`{"durationMinutes":45,"arrivalTime":"2099-01-01T10:00"}`), "application/json")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodPost, "/api/spots/a/reservation", []byte(`not json`), "application/json")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodDelete, "/api/spots/c/reservation", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &spot))
	assert.False(t, spot.IsReserved)
	assert.Nil(t, spot.Reservation)

	w = s.do(t, http.MethodDelete, "/api/spots/c/reservation", nil, "")
	assert.Equal(t, http.StatusOK, w.Code)

	w = s.do(t, http.MethodDelete, "/api/spots/zz/reservation", nil, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGetDurations(t *testing.T) {
	s := newTestServer(t, Deps{})
	w := s.do(t, http.MethodGet, "/api/reservation/durations", nil, "")
	assert.JSONEq(t, `{"durations":[30,60,120,180]}`, w.Body.String())
}

func TestPostDetection(t *testing.T) {
	s := newTestServer(t, Deps{})

	t.Run("rejects non-image upload", func(t *testing.T) {
		body, ct := imageForm(t, "image", "text/plain", []byte("hello"))
		w := s.do(t, http.MethodPost, "/api/detections", body, ct)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.JSONEq(t, `{"error":"file must be an image"}`, w.Body.String())
	})

	t.Run("rejects missing field", func(t *testing.T) {
		body, ct := imageForm(t, "photo", "image/jpeg", []byte{0xff})
		w := s.do(t, http.MethodPost, "/api/detections", body, ct)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("upstream failure leaves registry", func(t *testing.T) {
		s.detector.err = &detect.StatusError{StatusCode: 500, Detail: "boom"}
		defer func() { s.detector.err = nil }()

		body, ct := imageForm(t, "image", "image/jpeg", []byte{0xff, 0xd8})
		w := s.do(t, http.MethodPost, "/api/detections", body, ct)
		assert.Equal(t, http.StatusBadGateway, w.Code)
		assert.Contains(t, w.Body.String(), "boom")
		assert.Equal(t, initialSpots(), s.store.Snapshot())
	})

	t.Run("replaces registry", func(t *testing.T) {
		s.detector.result = detect.Result{
			"0": {LabelID: "1", LabelName: "not_free_parking_space", BBox: json.RawMessage(`[0,0,10,10]`)},
		}
		body, ct := imageForm(t, "image", "image/png", []byte{0x89, 0x50})
		w := s.do(t, http.MethodPost, "/api/detections", body, ct)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())

		spots := s.store.Snapshot()
		require.Len(t, spots, 3)
		assert.True(t, spots[0].IsOccupied)
		assert.Equal(t, model.SourceDetected, spots[0].Source)
		assert.Equal(t, model.SourceMock, spots[1].Source)

		w = s.do(t, http.MethodGet, "/api/status", nil, "")
		var status struct {
			Loading       bool           `json:"loading"`
			LastIngestion *ingest.Report `json:"lastIngestion"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &status))
		assert.True(t, status.Loading)
		require.NotNil(t, status.LastIngestion)
		assert.Equal(t, 1, status.LastIngestion.Detected)
		assert.Equal(t, 2, status.LastIngestion.Filler)
	})
}

func TestPostVisualize(t *testing.T) {
	s := newTestServer(t, Deps{})
	body, ct := imageForm(t, "image", "image/jpeg", []byte{0xff})

	s.visualizer.resp = &detect.VisualizeResponse{Image: "aGVsbG8="}
	w := s.do(t, http.MethodPost, "/api/visualize", body, ct)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"image":"aGVsbG8="}`, w.Body.String())

	s.visualizer.resp, s.visualizer.err = nil, detect.ErrNoImage
	w = s.do(t, http.MethodPost, "/api/visualize", body, ct)
	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.JSONEq(t, `{"error":"no image data received"}`, w.Body.String())
}

func TestGetStatus_Initial(t *testing.T) {
	s := newTestServer(t, Deps{})
	w := s.do(t, http.MethodGet, "/api/status", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"loading":true,"version":0,"capture":null,"lastIngestion":null}`, w.Body.String())

	require.NoError(t, s.store.MarkLoaded(context.Background()))
	w = s.do(t, http.MethodGet, "/api/status", nil, "")
	assert.Contains(t, w.Body.String(), `"loading":false`)
}

func TestGetHistory(t *testing.T) {
	s := newTestServer(t, Deps{})
	w := s.do(t, http.MethodGet, "/api/history", nil, "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	hist := &fakeHistory{snaps: []model.OccupancySnapshot{{ID: 1, Source: "capture", Total: 20}}}
	s = newTestServer(t, Deps{History: hist})

	w = s.do(t, http.MethodGet, "/api/history?limit=5", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 5, hist.limit)
	assert.True(t, strings.Contains(w.Body.String(), `"source":"capture"`))

	w = s.do(t, http.MethodGet, "/api/history?limit=-1", nil, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodGet, "/api/history?limit=100000", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, maxHistoryLimit, hist.limit)
}

func TestErrorStatus(t *testing.T) {
	assert.Equal(t, http.StatusServiceUnavailable, errorStatus(registry.ErrClosed, 500))
	assert.Equal(t, http.StatusBadGateway, errorStatus(&detect.StatusError{StatusCode: 422}, 500))
	assert.Equal(t, http.StatusTeapot, errorStatus(errors.New("x"), http.StatusTeapot))
}
