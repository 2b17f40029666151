package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/jakechorley/shiftsync/pkg/db"
)

const requestColumns = `id, status, total_shifts, processed_shifts, successful_shifts,
		skipped_shifts, failed_shifts, locked_by, locked_until, created_at, started_at, completed_at`

func scanRequest(row pgx.Row) (*db.ShiftRequest, error) {
	var req db.ShiftRequest
	err := row.Scan(
		&req.ID,
		&req.Status,
		&req.TotalShifts,
		&req.ProcessedShifts,
		&req.SuccessfulShifts,
		&req.SkippedShifts,
		&req.FailedShifts,
		&req.LockedBy,
		&req.LockedUntil,
		&req.CreatedAt,
		&req.StartedAt,
		&req.CompletedAt,
	)
	if err != nil {
		return nil, err
	}
	return &req, nil
}

// CreateRequestWithShifts persists a new shift request and all of its
// individual shifts in a single transaction.
func (d *DB) CreateRequestWithShifts(ctx context.Context, request *db.ShiftRequest, shifts []db.IndividualShift) error {
	tx, err := d.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO shift_requests (id, status, total_shifts)
		VALUES ($1, $2, $3)
	`, request.ID, request.Status, request.TotalShifts)
	if err != nil {
		return fmt.Errorf("failed to insert shift request: %w", err)
	}

	for _, s := range shifts {
		_, err := tx.Exec(ctx, `
			INSERT INTO individual_shifts (id, request_id, company_id, user_id, start_time, end_time, action, status)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		`, s.ID, s.RequestID, s.CompanyID, s.UserID, s.StartTime, s.EndTime, s.Action, s.Status)
		if err != nil {
			return fmt.Errorf("failed to insert individual shift: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// ClaimNextPendingRequest claims the oldest claimable request for a worker.
// Requests stuck in processing with an expired lock lease are claimable too,
// so work abandoned by a crashed worker is eventually retried.
func (d *DB) ClaimNextPendingRequest(ctx context.Context, workerID string, lockUntil time.Time) (*db.ShiftRequest, error) {
	tx, err := d.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	row := tx.QueryRow(ctx, `
		SELECT `+requestColumns+`
		FROM shift_requests
		WHERE status = 'pending'
		   OR (status = 'processing' AND locked_until IS NOT NULL AND locked_until < NOW())
		ORDER BY created_at
		LIMIT 1
		FOR UPDATE SKIP LOCKED
	`)
	req, err := scanRequest(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, db.ErrNotFound
		}
		return nil, fmt.Errorf("failed to select claimable request: %w", err)
	}

	_, err = tx.Exec(ctx, `
		UPDATE shift_requests
		SET status = $2,
		    locked_by = $3,
		    locked_until = $4,
		    started_at = COALESCE(started_at, NOW())
		WHERE id = $1
	`, req.ID, db.RequestProcessing, workerID, lockUntil.UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to claim request %s: %w", req.ID, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit claim: %w", err)
	}

	req.Status = db.RequestProcessing
	req.LockedBy = &workerID
	lu := lockUntil.UTC()
	req.LockedUntil = &lu
	return req, nil
}

// ReleaseRequest returns a claimed request to pending and clears the lock
func (d *DB) ReleaseRequest(ctx context.Context, requestID string) error {
	_, err := d.pool.Exec(ctx, `
		UPDATE shift_requests
		SET status = $2, locked_by = NULL, locked_until = NULL
		WHERE id = $1
	`, requestID, db.RequestPending)
	if err != nil {
		return fmt.Errorf("failed to release request %s: %w", requestID, err)
	}
	return nil
}

// FinalizeRequest moves a request to its terminal status and clears the lock
func (d *DB) FinalizeRequest(ctx context.Context, requestID string, status db.RequestStatus, completedAt time.Time) error {
	tag, err := d.pool.Exec(ctx, `
		UPDATE shift_requests
		SET status = $2, completed_at = $3, locked_by = NULL, locked_until = NULL
		WHERE id = $1
	`, requestID, status, completedAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to finalize request %s: %w", requestID, err)
	}
	if tag.RowsAffected() == 0 {
		return db.ErrNotFound
	}
	return nil
}

// GetRequest retrieves a single shift request by ID
func (d *DB) GetRequest(ctx context.Context, requestID string) (*db.ShiftRequest, error) {
	row := d.pool.QueryRow(ctx, `
		SELECT `+requestColumns+`
		FROM shift_requests
		WHERE id = $1
	`, requestID)
	req, err := scanRequest(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, db.ErrNotFound
		}
		return nil, fmt.Errorf("failed to query shift request: %w", err)
	}
	return req, nil
}

// ListRequests retrieves shift requests, newest first, optionally filtered by
// status. A zero status means no filter.
func (d *DB) ListRequests(ctx context.Context, status db.RequestStatus, limit int) ([]db.ShiftRequest, error) {
	query := `
		SELECT ` + requestColumns + `
		FROM shift_requests
	`
	args := []any{limit}
	if status != "" {
		query += ` WHERE status = $2`
		args = append(args, status)
	}
	query += `
		ORDER BY created_at DESC
		LIMIT $1
	`

	rows, err := d.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query shift requests: %w", err)
	}
	defer rows.Close()

	var requests []db.ShiftRequest
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan shift request: %w", err)
		}
		requests = append(requests, *req)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating shift requests: %w", err)
	}

	return requests, nil
}
