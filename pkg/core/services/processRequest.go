package services

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/jakechorley/shiftsync/pkg/clients/shiftsclient"
	"github.com/jakechorley/shiftsync/pkg/db"
)

// ShiftAPI is the slice of the upstream client that request processing needs
type ShiftAPI interface {
	GetShifts(ctx context.Context) ([]shiftsclient.Shift, error)
	BookShift(ctx context.Context, shift shiftsclient.Shift) error
}

// ProcessOptions tunes the per-shift retry behavior
type ProcessOptions struct {
	// MaxRetries is how many booking attempts each shift gets.
	MaxRetries int

	// RetryDelay is how long to wait between attempts.
	RetryDelay time.Duration
}

// DefaultProcessOptions mirror the upstream booking limits: six attempts with
// half a second between them.
func DefaultProcessOptions() ProcessOptions {
	return ProcessOptions{
		MaxRetries: 6,
		RetryDelay: 500 * time.Millisecond,
	}
}

// ProcessRequest books every unprocessed shift of a claimed request against
// the upstream API, then finalizes the request. Shifts are handled
// sequentially; each one is checked against the shifts already booked
// upstream and skipped if an identical booking exists, otherwise booked with
// retries. Counters on the request row advance as each shift finishes.
//
// A context cancellation aborts processing mid-request and returns the
// context error; the caller is expected to release the claim so another
// worker can resume the remaining shifts.
func ProcessRequest(ctx context.Context, database db.Database, client ShiftAPI, logger *zap.Logger, opts ProcessOptions, requestID string) (*db.ShiftRequest, error) {
	shifts, err := database.GetShiftsByRequest(ctx, requestID)
	if err != nil {
		return nil, fmt.Errorf("failed to load shifts for request %s: %w", requestID, err)
	}

	logger.Info("Processing shift request",
		zap.String("request_id", requestID),
		zap.Int("shifts", len(shifts)))

	for i := range shifts {
		shift := &shifts[i]

		// processing rows are leftovers from an interrupted run and are
		// retried from scratch
		if shift.Status != db.ShiftPending && shift.Status != db.ShiftProcessing {
			continue
		}

		if err := processShift(ctx, database, client, logger, opts, shift); err != nil {
			return nil, err
		}
	}

	request, err := database.GetRequest(ctx, requestID)
	if err != nil {
		return nil, fmt.Errorf("failed to reload request %s: %w", requestID, err)
	}

	finalStatus := db.RequestCompleted
	if request.TotalShifts > 0 && request.FailedShifts == request.TotalShifts {
		finalStatus = db.RequestFailed
	}

	completedAt := time.Now().UTC()
	if err := database.FinalizeRequest(ctx, requestID, finalStatus, completedAt); err != nil {
		return nil, fmt.Errorf("failed to finalize request %s: %w", requestID, err)
	}

	request.Status = finalStatus
	request.CompletedAt = &completedAt

	logger.Info("Shift request finished",
		zap.String("request_id", requestID),
		zap.String("status", string(finalStatus)),
		zap.Int("successful", request.SuccessfulShifts),
		zap.Int("skipped", request.SkippedShifts),
		zap.Int("failed", request.FailedShifts))

	return request, nil
}

func processShift(ctx context.Context, database db.ShiftStore, client ShiftAPI, logger *zap.Logger, opts ProcessOptions, shift *db.IndividualShift) error {
	logger.Debug("Processing shift",
		zap.String("shift_id", shift.ID),
		zap.String("user_id", shift.UserID))

	if shift.Status == db.ShiftPending {
		if err := database.MarkShiftProcessing(ctx, shift.ID); err != nil {
			return fmt.Errorf("failed to mark shift %s processing: %w", shift.ID, err)
		}
	}

	wire := toWireShift(shift)

	// Re-fetch upstream state for every shift so that bookings made earlier
	// in this batch, or by anyone else meanwhile, are caught.
	existing, err := client.GetShifts(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		logger.Warn("Failed to fetch existing shifts, proceeding without duplicate check",
			zap.String("shift_id", shift.ID),
			zap.Error(err))
	}

	for _, ex := range existing {
		if wire.Matches(ex) {
			logger.Info("Shift already booked upstream, skipping",
				zap.String("shift_id", shift.ID),
				zap.String("user_id", shift.UserID))
			return finish(ctx, database, shift, db.ShiftOutcome{
				Status:   db.ShiftSkipped,
				Attempts: 0,
			})
		}
	}

	var lastErr error
	for attempt := 1; attempt <= opts.MaxRetries; attempt++ {
		logger.Debug("Booking attempt",
			zap.String("shift_id", shift.ID),
			zap.Int("attempt", attempt),
			zap.Int("max_retries", opts.MaxRetries))

		lastErr = client.BookShift(ctx, wire)
		if lastErr == nil {
			logger.Info("Shift booked",
				zap.String("shift_id", shift.ID),
				zap.String("user_id", shift.UserID),
				zap.Int("attempts", attempt))
			return finish(ctx, database, shift, db.ShiftOutcome{
				Status:   db.ShiftCompleted,
				Attempts: attempt,
			})
		}

		if ctx.Err() != nil {
			return ctx.Err()
		}

		logger.Warn("Booking attempt failed",
			zap.String("shift_id", shift.ID),
			zap.Int("attempt", attempt),
			zap.Error(lastErr))

		if attempt < opts.MaxRetries {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(opts.RetryDelay):
			}
		}
	}

	msg := fmt.Sprintf("max retries exceeded: %v", lastErr)
	logger.Error("Shift booking failed",
		zap.String("shift_id", shift.ID),
		zap.String("user_id", shift.UserID),
		zap.Int("attempts", opts.MaxRetries),
		zap.Error(lastErr))

	return finish(ctx, database, shift, db.ShiftOutcome{
		Status:       db.ShiftFailed,
		Attempts:     opts.MaxRetries,
		ErrorMessage: &msg,
	})
}

func finish(ctx context.Context, database db.ShiftStore, shift *db.IndividualShift, outcome db.ShiftOutcome) error {
	if err := database.FinishShift(ctx, shift.ID, outcome); err != nil {
		return fmt.Errorf("failed to record outcome for shift %s: %w", shift.ID, err)
	}
	shift.Status = outcome.Status
	shift.Attempts = outcome.Attempts
	shift.ErrorMessage = outcome.ErrorMessage
	return nil
}

// toWireShift converts a stored shift to the upstream wire representation.
// Times are normalized to UTC first: pgx hands back timestamptz values in the
// host's local zone, while submitted batches are parsed as UTC, and the
// duplicate check compares the formatted strings.
func toWireShift(shift *db.IndividualShift) shiftsclient.Shift {
	return shiftsclient.Shift{
		CompanyID: shift.CompanyID,
		UserID:    shift.UserID,
		StartTime: shift.StartTime.UTC().Format(shiftsclient.TimeLayout),
		EndTime:   shift.EndTime.UTC().Format(shiftsclient.TimeLayout),
		Action:    string(shift.Action),
	}
}
