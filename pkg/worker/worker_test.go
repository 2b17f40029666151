package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/jakechorley/shiftsync/pkg/clients/shiftsclient"
	"github.com/jakechorley/shiftsync/pkg/core/services"
	"github.com/jakechorley/shiftsync/pkg/db"
)

// memoryDB is an in-memory db.Database double for worker tests
type memoryDB struct {
	mu       sync.Mutex
	requests map[string]*db.ShiftRequest
	shifts   map[string][]db.IndividualShift
	claims   []string

	finishErr error
}

func newMemoryDB() *memoryDB {
	return &memoryDB{
		requests: make(map[string]*db.ShiftRequest),
		shifts:   make(map[string][]db.IndividualShift),
	}
}

func (m *memoryDB) addPendingRequest(shiftCount int) string {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := uuid.New().String()
	m.requests[id] = &db.ShiftRequest{
		ID:          id,
		Status:      db.RequestPending,
		TotalShifts: shiftCount,
		CreatedAt:   time.Now(),
	}

	base := time.Date(2025, 6, 15, 8, 0, 0, 0, time.UTC)
	shifts := make([]db.IndividualShift, 0, shiftCount)
	for i := 0; i < shiftCount; i++ {
		shifts = append(shifts, db.IndividualShift{
			ID:        uuid.New().String(),
			RequestID: id,
			CompanyID: "acme-corp",
			UserID:    uuid.New().String(),
			StartTime: base,
			EndTime:   base.Add(8 * time.Hour),
			Action:    db.ActionAdd,
			Status:    db.ShiftPending,
		})
	}
	m.shifts[id] = shifts
	return id
}

// addProcessingRequest seeds a request already claimed by another worker
// whose lease expires at lockedUntil.
func (m *memoryDB) addProcessingRequest(shiftCount int, lockedBy string, lockedUntil time.Time) string {
	id := m.addPendingRequest(shiftCount)
	m.mu.Lock()
	defer m.mu.Unlock()
	req := m.requests[id]
	req.Status = db.RequestProcessing
	req.LockedBy = &lockedBy
	req.LockedUntil = &lockedUntil
	return id
}

func (m *memoryDB) claimCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.claims)
}

func (m *memoryDB) requestStatus(id string) db.RequestStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	if req, ok := m.requests[id]; ok {
		return req.Status
	}
	return ""
}

func (m *memoryDB) CreateRequestWithShifts(ctx context.Context, request *db.ShiftRequest, shifts []db.IndividualShift) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests[request.ID] = request
	m.shifts[request.ID] = shifts
	return nil
}

func (m *memoryDB) ClaimNextPendingRequest(ctx context.Context, workerID string, lockUntil time.Time) (*db.ShiftRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	for _, req := range m.requests {
		expired := req.Status == db.RequestProcessing &&
			req.LockedUntil != nil && req.LockedUntil.Before(now)
		if req.Status == db.RequestPending || expired {
			req.Status = db.RequestProcessing
			req.LockedBy = &workerID
			until := lockUntil
			req.LockedUntil = &until
			m.claims = append(m.claims, req.ID)
			copied := *req
			return &copied, nil
		}
	}
	return nil, db.ErrNotFound
}

func (m *memoryDB) ReleaseRequest(ctx context.Context, requestID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if req, ok := m.requests[requestID]; ok {
		req.Status = db.RequestPending
		req.LockedBy = nil
		req.LockedUntil = nil
	}
	return nil
}

func (m *memoryDB) FinalizeRequest(ctx context.Context, requestID string, status db.RequestStatus, completedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	req, ok := m.requests[requestID]
	if !ok {
		return db.ErrNotFound
	}
	req.Status = status
	req.CompletedAt = &completedAt
	req.LockedBy = nil
	req.LockedUntil = nil
	return nil
}

func (m *memoryDB) GetRequest(ctx context.Context, requestID string) (*db.ShiftRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	req, ok := m.requests[requestID]
	if !ok {
		return nil, db.ErrNotFound
	}
	copied := *req
	return &copied, nil
}

func (m *memoryDB) ListRequests(ctx context.Context, status db.RequestStatus, limit int) ([]db.ShiftRequest, error) {
	return nil, nil
}

func (m *memoryDB) GetShiftsByRequest(ctx context.Context, requestID string) ([]db.IndividualShift, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]db.IndividualShift, len(m.shifts[requestID]))
	copy(out, m.shifts[requestID])
	return out, nil
}

func (m *memoryDB) MarkShiftProcessing(ctx context.Context, shiftID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, shifts := range m.shifts {
		for i := range shifts {
			if shifts[i].ID == shiftID {
				shifts[i].Status = db.ShiftProcessing
				return nil
			}
		}
	}
	return db.ErrNotFound
}

func (m *memoryDB) FinishShift(ctx context.Context, shiftID string, outcome db.ShiftOutcome) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.finishErr != nil {
		return m.finishErr
	}
	for requestID, shifts := range m.shifts {
		for i := range shifts {
			if shifts[i].ID != shiftID {
				continue
			}
			shifts[i].Status = outcome.Status
			shifts[i].Attempts = outcome.Attempts
			shifts[i].ErrorMessage = outcome.ErrorMessage

			req := m.requests[requestID]
			req.ProcessedShifts++
			switch outcome.Status {
			case db.ShiftCompleted:
				req.SuccessfulShifts++
			case db.ShiftSkipped:
				req.SkippedShifts++
			case db.ShiftFailed:
				req.FailedShifts++
			}
			return nil
		}
	}
	return db.ErrNotFound
}

// alwaysBooks is a ShiftAPI double where every booking succeeds
type alwaysBooks struct {
	mu     sync.Mutex
	booked int
}

func (a *alwaysBooks) GetShifts(ctx context.Context) ([]shiftsclient.Shift, error) {
	return nil, nil
}

func (a *alwaysBooks) BookShift(ctx context.Context, shift shiftsclient.Shift) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.booked++
	return nil
}

func testOptions(count int) Options {
	return Options{
		Count:        count,
		PollInterval: 10 * time.Millisecond,
		LockTTL:      time.Minute,
		Process: services.ProcessOptions{
			MaxRetries: 2,
			RetryDelay: time.Millisecond,
		},
	}
}

func waitForStatus(t *testing.T, database *memoryDB, requestID string, want db.RequestStatus) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if database.requestStatus(requestID) == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("request %s never reached status %s (got %s)", requestID, want, database.requestStatus(requestID))
}

func TestManager_ProcessesPendingRequest(t *testing.T) {
	database := newMemoryDB()
	api := &alwaysBooks{}
	requestID := database.addPendingRequest(3)

	manager := StartManager(context.Background(), database, api, zap.NewNop(), testOptions(1))
	defer manager.Shutdown(time.Second)

	waitForStatus(t, database, requestID, db.RequestCompleted)

	req, err := database.GetRequest(context.Background(), requestID)
	require.NoError(t, err)
	assert.Equal(t, 3, req.SuccessfulShifts)
	assert.Equal(t, 3, req.ProcessedShifts)
	assert.Nil(t, req.LockedBy)
}

func TestManager_WakePicksUpNewRequest(t *testing.T) {
	database := newMemoryDB()
	api := &alwaysBooks{}

	// Long poll interval so only Wake can trigger the pickup quickly
	opts := testOptions(1)
	opts.PollInterval = time.Minute

	manager := StartManager(context.Background(), database, api, zap.NewNop(), opts)
	defer manager.Shutdown(time.Second)

	requestID := database.addPendingRequest(1)
	manager.Wake()

	waitForStatus(t, database, requestID, db.RequestCompleted)
}

func TestManager_DrainsMultipleRequests(t *testing.T) {
	database := newMemoryDB()
	api := &alwaysBooks{}

	ids := []string{
		database.addPendingRequest(1),
		database.addPendingRequest(2),
		database.addPendingRequest(1),
	}

	manager := StartManager(context.Background(), database, api, zap.NewNop(), testOptions(2))
	defer manager.Shutdown(time.Second)

	for _, id := range ids {
		waitForStatus(t, database, id, db.RequestCompleted)
	}

	api.mu.Lock()
	defer api.mu.Unlock()
	assert.Equal(t, 4, api.booked)
}

func TestManager_ReclaimsExpiredLease(t *testing.T) {
	database := newMemoryDB()
	api := &alwaysBooks{}

	// A crashed worker left this request processing with an expired lease
	staleID := database.addProcessingRequest(2, "worker-gone", time.Now().Add(-time.Minute))
	// This one's lease is still live and must be left alone
	heldID := database.addProcessingRequest(1, "worker-busy", time.Now().Add(time.Hour))

	manager := StartManager(context.Background(), database, api, zap.NewNop(), testOptions(1))
	defer manager.Shutdown(time.Second)

	waitForStatus(t, database, staleID, db.RequestCompleted)

	assert.Equal(t, db.RequestProcessing, database.requestStatus(heldID))
	database.mu.Lock()
	defer database.mu.Unlock()
	require.NotNil(t, database.requests[heldID].LockedBy)
	assert.Equal(t, "worker-busy", *database.requests[heldID].LockedBy)
}

func TestManager_ProcessingErrorWaitsForNextPoll(t *testing.T) {
	database := newMemoryDB()
	database.finishErr = errors.New("disk full")
	api := &alwaysBooks{}
	requestID := database.addPendingRequest(1)

	// Long poll interval: only the single Wake can trigger a claim, so a
	// failing request must not be immediately re-claimed in a tight loop.
	opts := testOptions(1)
	opts.PollInterval = time.Minute

	manager := StartManager(context.Background(), database, api, zap.NewNop(), opts)
	defer manager.Shutdown(time.Second)

	manager.Wake()
	time.Sleep(100 * time.Millisecond)

	assert.Equal(t, 1, database.claimCount())
	assert.Equal(t, db.RequestPending, database.requestStatus(requestID))
}

func TestManager_ShutdownStopsWorkers(t *testing.T) {
	database := newMemoryDB()
	api := &alwaysBooks{}

	manager := StartManager(context.Background(), database, api, zap.NewNop(), testOptions(2))
	manager.Shutdown(time.Second)

	// A request added after shutdown is never picked up
	requestID := database.addPendingRequest(1)
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, db.RequestPending, database.requestStatus(requestID))
}
