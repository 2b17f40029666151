package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/jakechorley/shiftsync/pkg/core/services"
	"github.com/jakechorley/shiftsync/pkg/db"
)

// stubDB is an in-memory db.Database double for handler tests
type stubDB struct {
	mu       sync.Mutex
	requests map[string]*db.ShiftRequest
	shifts   map[string][]db.IndividualShift
	listErr  error
}

func newStubDB() *stubDB {
	return &stubDB{
		requests: make(map[string]*db.ShiftRequest),
		shifts:   make(map[string][]db.IndividualShift),
	}
}

func (s *stubDB) CreateRequestWithShifts(ctx context.Context, request *db.ShiftRequest, shifts []db.IndividualShift) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests[request.ID] = request
	s.shifts[request.ID] = shifts
	return nil
}

func (s *stubDB) ClaimNextPendingRequest(ctx context.Context, workerID string, lockUntil time.Time) (*db.ShiftRequest, error) {
	return nil, db.ErrNotFound
}

func (s *stubDB) ReleaseRequest(ctx context.Context, requestID string) error { return nil }

func (s *stubDB) FinalizeRequest(ctx context.Context, requestID string, status db.RequestStatus, completedAt time.Time) error {
	return nil
}

func (s *stubDB) GetRequest(ctx context.Context, requestID string) (*db.ShiftRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	req, ok := s.requests[requestID]
	if !ok {
		return nil, db.ErrNotFound
	}
	copied := *req
	return &copied, nil
}

func (s *stubDB) ListRequests(ctx context.Context, status db.RequestStatus, limit int) ([]db.ShiftRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listErr != nil {
		return nil, s.listErr
	}
	var out []db.ShiftRequest
	for _, req := range s.requests {
		if status == "" || req.Status == status {
			out = append(out, *req)
		}
	}
	return out, nil
}

func (s *stubDB) GetShiftsByRequest(ctx context.Context, requestID string) ([]db.IndividualShift, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.shifts[requestID], nil
}

func (s *stubDB) MarkShiftProcessing(ctx context.Context, shiftID string) error { return nil }

func (s *stubDB) FinishShift(ctx context.Context, shiftID string, outcome db.ShiftOutcome) error {
	return nil
}

// countingWaker records Wake calls
type countingWaker struct {
	mu    sync.Mutex
	wakes int
}

func (w *countingWaker) Wake() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.wakes++
}

func (w *countingWaker) count() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.wakes
}

// stubPinger reports a fixed health state
type stubPinger struct {
	err error
}

func (p *stubPinger) Ping(ctx context.Context) error { return p.err }

func newTestServer(database db.Database, waker Waker, pinger Pinger) *Server {
	return New(database, zap.NewNop(), 10, waker, pinger)
}

func doRequest(t *testing.T, srv *Server, method, path string, body []byte) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func TestHealthz_OK(t *testing.T) {
	srv := newTestServer(newStubDB(), &countingWaker{}, &stubPinger{})

	rec := doRequest(t, srv, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHealthz_DatabaseDown(t *testing.T) {
	srv := newTestServer(newStubDB(), &countingWaker{}, &stubPinger{err: errors.New("connection refused")})

	rec := doRequest(t, srv, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestBookShifts_Accepted(t *testing.T) {
	database := newStubDB()
	waker := &countingWaker{}
	srv := newTestServer(database, waker, &stubPinger{})

	body, err := json.Marshal(services.SampleBatch())
	require.NoError(t, err)

	rec := doRequest(t, srv, http.MethodPost, "/book-shifts", body)
	require.Equal(t, http.StatusAccepted, rec.Code)

	var resp struct {
		Data struct {
			RequestID   string `json:"requestId"`
			TotalShifts int    `json:"totalShifts"`
			Status      string `json:"status"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.Data.RequestID)
	assert.Equal(t, 10, resp.Data.TotalShifts)
	assert.Equal(t, "pending", resp.Data.Status)

	// Persisted and the worker pool was nudged
	_, err = database.GetRequest(context.Background(), resp.Data.RequestID)
	assert.NoError(t, err)
	assert.Equal(t, 1, waker.count())
}

func TestBookShifts_TooSmall(t *testing.T) {
	srv := newTestServer(newStubDB(), &countingWaker{}, &stubPinger{})

	batch := services.SampleBatch()
	batch.Shifts = batch.Shifts[:4]
	body, err := json.Marshal(batch)
	require.NoError(t, err)

	rec := doRequest(t, srv, http.MethodPost, "/book-shifts", body)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, rec.Body.String(), "at least 10 shifts required")
}

func TestBookShifts_MalformedJSON(t *testing.T) {
	srv := newTestServer(newStubDB(), &countingWaker{}, &stubPinger{})

	rec := doRequest(t, srv, http.MethodPost, "/book-shifts", []byte(`{"shifts": [`))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTestBook_RequiresConfirm(t *testing.T) {
	waker := &countingWaker{}
	srv := newTestServer(newStubDB(), waker, &stubPinger{})

	rec := doRequest(t, srv, http.MethodPost, "/test-book", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "confirm=true")
	assert.Equal(t, 0, waker.count())
}

func TestTestBook_Confirmed(t *testing.T) {
	srv := newTestServer(newStubDB(), &countingWaker{}, &stubPinger{})

	rec := doRequest(t, srv, http.MethodPost, "/test-book?confirm=true", nil)
	assert.Equal(t, http.StatusAccepted, rec.Code)
}

func TestGetRequest_Found(t *testing.T) {
	database := newStubDB()
	srv := newTestServer(database, &countingWaker{}, &stubPinger{})

	id := uuid.New().String()
	database.requests[id] = &db.ShiftRequest{
		ID:               id,
		Status:           db.RequestCompleted,
		TotalShifts:      10,
		ProcessedShifts:  10,
		SuccessfulShifts: 8,
		SkippedShifts:    1,
		FailedShifts:     1,
		CreatedAt:        time.Now(),
	}

	rec := doRequest(t, srv, http.MethodGet, "/requests/"+id, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Data struct {
			ID      string           `json:"id"`
			Status  string           `json:"status"`
			Summary services.Summary `json:"summary"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, id, resp.Data.ID)
	assert.Equal(t, "completed", resp.Data.Status)
	assert.Equal(t, 10, resp.Data.Summary.Total)
	assert.Equal(t, 8, resp.Data.Summary.Successful)
	assert.Equal(t, 1, resp.Data.Summary.Skipped)
	assert.Equal(t, 1, resp.Data.Summary.Failed)
}

func TestGetRequest_NotFound(t *testing.T) {
	srv := newTestServer(newStubDB(), &countingWaker{}, &stubPinger{})

	rec := doRequest(t, srv, http.MethodGet, "/requests/"+uuid.New().String(), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetRequestShifts(t *testing.T) {
	database := newStubDB()
	srv := newTestServer(database, &countingWaker{}, &stubPinger{})

	id := uuid.New().String()
	errMsg := "max retries exceeded: upstream returned HTTP 503"
	database.requests[id] = &db.ShiftRequest{ID: id, Status: db.RequestCompleted, TotalShifts: 2}
	database.shifts[id] = []db.IndividualShift{
		{ID: uuid.New().String(), RequestID: id, CompanyID: "acme-corp", UserID: "user001", Status: db.ShiftCompleted, Attempts: 1},
		{ID: uuid.New().String(), RequestID: id, CompanyID: "acme-corp", UserID: "user002", Status: db.ShiftFailed, Attempts: 6, ErrorMessage: &errMsg},
	}

	rec := doRequest(t, srv, http.MethodGet, "/requests/"+id+"/shifts", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Data struct {
			RequestID string `json:"requestId"`
			Shifts    []struct {
				UserID       string  `json:"userId"`
				Status       string  `json:"status"`
				Attempts     int     `json:"attempts"`
				ErrorMessage *string `json:"errorMessage"`
			} `json:"shifts"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, id, resp.Data.RequestID)
	require.Len(t, resp.Data.Shifts, 2)
	assert.Equal(t, "completed", resp.Data.Shifts[0].Status)
	assert.Equal(t, "failed", resp.Data.Shifts[1].Status)
	require.NotNil(t, resp.Data.Shifts[1].ErrorMessage)
	assert.Contains(t, *resp.Data.Shifts[1].ErrorMessage, "max retries exceeded")
}

func TestListRequests_BadStatus(t *testing.T) {
	srv := newTestServer(newStubDB(), &countingWaker{}, &stubPinger{})

	rec := doRequest(t, srv, http.MethodGet, "/requests?status=bogus", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListRequests_BadLimit(t *testing.T) {
	srv := newTestServer(newStubDB(), &countingWaker{}, &stubPinger{})

	rec := doRequest(t, srv, http.MethodGet, "/requests?limit=zero", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListRequests_OK(t *testing.T) {
	database := newStubDB()
	srv := newTestServer(database, &countingWaker{}, &stubPinger{})

	for i := 0; i < 3; i++ {
		id := uuid.New().String()
		database.requests[id] = &db.ShiftRequest{ID: id, Status: db.RequestPending, TotalShifts: 10, CreatedAt: time.Now()}
	}

	rec := doRequest(t, srv, http.MethodGet, "/requests?status=pending", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Data []json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Len(t, resp.Data, 3)
}
