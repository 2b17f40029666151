package postgres

import (
	"context"
	"fmt"

	"github.com/jakechorley/shiftsync/pkg/db"
)

// GetShiftsByRequest retrieves all individual shifts belonging to a request,
// in insertion order.
func (d *DB) GetShiftsByRequest(ctx context.Context, requestID string) ([]db.IndividualShift, error) {
	rows, err := d.pool.Query(ctx, `
		SELECT id, request_id, company_id, user_id, start_time, end_time,
		       action, status, attempts, error_message, created_at, updated_at
		FROM individual_shifts
		WHERE request_id = $1
		ORDER BY created_at, id
	`, requestID)
	if err != nil {
		return nil, fmt.Errorf("failed to query individual shifts: %w", err)
	}
	defer rows.Close()

	var shifts []db.IndividualShift
	for rows.Next() {
		var s db.IndividualShift
		if err := rows.Scan(
			&s.ID,
			&s.RequestID,
			&s.CompanyID,
			&s.UserID,
			&s.StartTime,
			&s.EndTime,
			&s.Action,
			&s.Status,
			&s.Attempts,
			&s.ErrorMessage,
			&s.CreatedAt,
			&s.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan individual shift: %w", err)
		}
		shifts = append(shifts, s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating individual shifts: %w", err)
	}

	return shifts, nil
}

// MarkShiftProcessing transitions a shift from pending to processing
func (d *DB) MarkShiftProcessing(ctx context.Context, shiftID string) error {
	tag, err := d.pool.Exec(ctx, `
		UPDATE individual_shifts
		SET status = $2, updated_at = NOW()
		WHERE id = $1
	`, shiftID, db.ShiftProcessing)
	if err != nil {
		return fmt.Errorf("failed to mark shift %s processing: %w", shiftID, err)
	}
	if tag.RowsAffected() == 0 {
		return db.ErrNotFound
	}
	return nil
}

// FinishShift records a shift's outcome and bumps the parent request's
// counters in the same transaction, so processed always equals
// successful + skipped + failed.
func (d *DB) FinishShift(ctx context.Context, shiftID string, outcome db.ShiftOutcome) error {
	tx, err := d.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var requestID string
	err = tx.QueryRow(ctx, `
		UPDATE individual_shifts
		SET status = $2, attempts = $3, error_message = $4, updated_at = NOW()
		WHERE id = $1
		RETURNING request_id
	`, shiftID, outcome.Status, outcome.Attempts, outcome.ErrorMessage).Scan(&requestID)
	if err != nil {
		return fmt.Errorf("failed to update shift %s: %w", shiftID, err)
	}

	var counter string
	switch outcome.Status {
	case db.ShiftCompleted:
		counter = "successful_shifts"
	case db.ShiftSkipped:
		counter = "skipped_shifts"
	case db.ShiftFailed:
		counter = "failed_shifts"
	default:
		return fmt.Errorf("shift outcome status must be terminal, got %q", outcome.Status)
	}

	_, err = tx.Exec(ctx, `
		UPDATE shift_requests
		SET processed_shifts = processed_shifts + 1,
		    `+counter+` = `+counter+` + 1
		WHERE id = $1
	`, requestID)
	if err != nil {
		return fmt.Errorf("failed to update request counters for %s: %w", requestID, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}
