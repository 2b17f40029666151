package db

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("record not found")

// ShiftOutcome carries the final state of one processed shift, applied to the
// shift row and the parent request's counters in a single transaction.
type ShiftOutcome struct {
	Status       ShiftStatus
	Attempts     int
	ErrorMessage *string
}

// RequestStore defines the interface for shift request database operations
type RequestStore interface {
	// CreateRequestWithShifts persists a new request and all of its shifts
	// in one transaction.
	CreateRequestWithShifts(ctx context.Context, request *ShiftRequest, shifts []IndividualShift) error

	// ClaimNextPendingRequest atomically claims the oldest claimable request
	// for the given worker, marking it processing with a lock lease.
	// Returns ErrNotFound when no request is claimable.
	ClaimNextPendingRequest(ctx context.Context, workerID string, lockUntil time.Time) (*ShiftRequest, error)

	// ReleaseRequest returns a claimed request to pending so another worker
	// can pick it up.
	ReleaseRequest(ctx context.Context, requestID string) error

	// FinalizeRequest moves a request to its terminal status and clears the
	// lock.
	FinalizeRequest(ctx context.Context, requestID string, status RequestStatus, completedAt time.Time) error

	GetRequest(ctx context.Context, requestID string) (*ShiftRequest, error)
	ListRequests(ctx context.Context, status RequestStatus, limit int) ([]ShiftRequest, error)
}

// ShiftStore defines the interface for individual shift database operations
type ShiftStore interface {
	GetShiftsByRequest(ctx context.Context, requestID string) ([]IndividualShift, error)

	// MarkShiftProcessing transitions a shift from pending to processing.
	MarkShiftProcessing(ctx context.Context, shiftID string) error

	// FinishShift records the shift's outcome and increments the parent
	// request's counters in the same transaction.
	FinishShift(ctx context.Context, shiftID string, outcome ShiftOutcome) error
}

// Database defines the interface for all database operations.
// postgres.DB is the backing implementation.
type Database interface {
	RequestStore
	ShiftStore
}
