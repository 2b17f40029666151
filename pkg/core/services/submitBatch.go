package services

import (
	"context"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jakechorley/shiftsync/pkg/clients/shiftsclient"
	"github.com/jakechorley/shiftsync/pkg/db"
)

var validate *validator.Validate

func init() {
	validate = validator.New()
}

// ShiftInput is one explicit shift in a submitted batch
type ShiftInput struct {
	CompanyID string `json:"companyId" yaml:"companyId" validate:"required"`
	UserID    string `json:"userId" yaml:"userId" validate:"required"`
	StartTime string `json:"startTime" yaml:"startTime" validate:"required"`
	EndTime   string `json:"endTime" yaml:"endTime" validate:"required"`
	Action    string `json:"action,omitempty" yaml:"action,omitempty" validate:"omitempty,oneof=add remove"`
}

// RecurrenceInput describes a repeating shift as an RFC 5545 recurrence
// rule. Each occurrence expands into one individual shift lasting
// DurationMinutes.
type RecurrenceInput struct {
	CompanyID       string `json:"companyId" yaml:"companyId" validate:"required"`
	UserID          string `json:"userId" yaml:"userId" validate:"required"`
	RRule           string `json:"rrule" yaml:"rrule" validate:"required"`
	DurationMinutes int    `json:"durationMinutes" yaml:"durationMinutes" validate:"required,min=1"`
	Action          string `json:"action,omitempty" yaml:"action,omitempty" validate:"omitempty,oneof=add remove"`
}

// BatchInput is the payload of a batch submission
type BatchInput struct {
	Shifts      []ShiftInput      `json:"shifts" yaml:"shifts" validate:"dive"`
	Recurrences []RecurrenceInput `json:"recurrences,omitempty" yaml:"recurrences,omitempty" validate:"dive"`
}

// SubmitResult represents the outcome of submitting a batch
type SubmitResult struct {
	Request *db.ShiftRequest
	Shifts  []db.IndividualShift
}

// ErrBatchTooSmall is returned when a batch holds fewer shifts than the
// configured minimum after recurrence expansion.
type ErrBatchTooSmall struct {
	Got, Min int
}

func (e *ErrBatchTooSmall) Error() string {
	return fmt.Sprintf("at least %d shifts required, got %d", e.Min, e.Got)
}

// SubmitBatch validates a batch, expands recurrence entries into individual
// shifts, and persists the request together with its shifts in one
// transaction. Processing happens asynchronously; the returned request is in
// the pending state.
func SubmitBatch(ctx context.Context, database db.RequestStore, logger *zap.Logger, minBatchSize int, input BatchInput) (*SubmitResult, error) {
	if err := validate.Struct(&input); err != nil {
		return nil, fmt.Errorf("batch validation failed: %w", err)
	}

	logger.Info("Submitting shift batch",
		zap.Int("shifts", len(input.Shifts)),
		zap.Int("recurrences", len(input.Recurrences)))

	inputs := make([]ShiftInput, 0, len(input.Shifts))
	inputs = append(inputs, input.Shifts...)

	for i, rec := range input.Recurrences {
		expanded, err := ExpandRecurrence(rec)
		if err != nil {
			return nil, fmt.Errorf("invalid recurrence at index %d: %w", i, err)
		}
		logger.Debug("Expanded recurrence",
			zap.String("user_id", rec.UserID),
			zap.Int("occurrences", len(expanded)))
		inputs = append(inputs, expanded...)
	}

	if len(inputs) < minBatchSize {
		return nil, &ErrBatchTooSmall{Got: len(inputs), Min: minBatchSize}
	}

	request := &db.ShiftRequest{
		ID:          uuid.New().String(),
		Status:      db.RequestPending,
		TotalShifts: len(inputs),
	}

	shifts := make([]db.IndividualShift, 0, len(inputs))
	for i, in := range inputs {
		shift, err := buildShift(request.ID, in)
		if err != nil {
			return nil, fmt.Errorf("invalid shift at index %d: %w", i, err)
		}
		shifts = append(shifts, *shift)
	}

	if err := database.CreateRequestWithShifts(ctx, request, shifts); err != nil {
		return nil, fmt.Errorf("failed to persist shift request: %w", err)
	}

	logger.Info("Shift batch submitted",
		zap.String("request_id", request.ID),
		zap.Int("total_shifts", request.TotalShifts))

	return &SubmitResult{Request: request, Shifts: shifts}, nil
}

func buildShift(requestID string, in ShiftInput) (*db.IndividualShift, error) {
	start, err := time.Parse(shiftsclient.TimeLayout, in.StartTime)
	if err != nil {
		return nil, fmt.Errorf("failed to parse startTime %q: %w", in.StartTime, err)
	}
	end, err := time.Parse(shiftsclient.TimeLayout, in.EndTime)
	if err != nil {
		return nil, fmt.Errorf("failed to parse endTime %q: %w", in.EndTime, err)
	}
	if !end.After(start) {
		return nil, fmt.Errorf("endTime %q must be after startTime %q", in.EndTime, in.StartTime)
	}

	action := db.ShiftAction(in.Action)
	if action == "" {
		action = db.ActionAdd
	}

	return &db.IndividualShift{
		ID:        uuid.New().String(),
		RequestID: requestID,
		CompanyID: in.CompanyID,
		UserID:    in.UserID,
		StartTime: start,
		EndTime:   end,
		Action:    action,
		Status:    db.ShiftPending,
	}, nil
}
