package db

import "time"

// RequestStatus enumerates the lifecycle states of a shift request.
type RequestStatus string

const (
	RequestPending    RequestStatus = "pending"
	RequestProcessing RequestStatus = "processing"
	RequestCompleted  RequestStatus = "completed"
	RequestFailed     RequestStatus = "failed"
)

// ShiftStatus enumerates the states of an individual shift within a request.
type ShiftStatus string

const (
	ShiftPending    ShiftStatus = "pending"
	ShiftProcessing ShiftStatus = "processing"
	ShiftCompleted  ShiftStatus = "completed"
	ShiftSkipped    ShiftStatus = "skipped"
	ShiftFailed     ShiftStatus = "failed"
)

// ShiftAction is the operation a shift applies to the upstream system.
type ShiftAction string

const (
	ActionAdd    ShiftAction = "add"
	ActionRemove ShiftAction = "remove"
)

// ShiftRequest represents one database shift request record: a batch of
// individual shifts submitted together, with running counters.
type ShiftRequest struct {
	ID               string
	Status           RequestStatus
	TotalShifts      int
	ProcessedShifts  int
	SuccessfulShifts int
	SkippedShifts    int
	FailedShifts     int
	LockedBy         *string
	LockedUntil      *time.Time
	CreatedAt        time.Time
	StartedAt        *time.Time
	CompletedAt      *time.Time
}

// IndividualShift represents one database individual shift record belonging
// to a shift request.
type IndividualShift struct {
	ID           string
	RequestID    string
	CompanyID    string
	UserID       string
	StartTime    time.Time
	EndTime      time.Time
	Action       ShiftAction
	Status       ShiftStatus
	Attempts     int
	ErrorMessage *string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Terminal reports whether the request has reached a final state.
func (s RequestStatus) Terminal() bool {
	return s == RequestCompleted || s == RequestFailed
}

// Succeeded reports whether the shift ended in a state that is not a failure.
// Skipped shifts already exist upstream and count as non-failures.
func (s ShiftStatus) Succeeded() bool {
	return s == ShiftCompleted || s == ShiftSkipped
}
