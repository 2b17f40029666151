package services

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/jakechorley/shiftsync/pkg/db"
)

// Summary aggregates the counters of a shift request
type Summary struct {
	Total      int `json:"total"`
	Processed  int `json:"processed"`
	Successful int `json:"successful"`
	Skipped    int `json:"skipped"`
	Failed     int `json:"failed"`
}

// StatusResult represents the full state of one shift request
type StatusResult struct {
	Request *db.ShiftRequest
	Shifts  []db.IndividualShift
	Summary Summary
}

// RequestStatus retrieves a request together with its shifts and summary
// counters.
func RequestStatus(ctx context.Context, database db.Database, logger *zap.Logger, requestID string) (*StatusResult, error) {
	request, err := database.GetRequest(ctx, requestID)
	if err != nil {
		return nil, fmt.Errorf("failed to get request %s: %w", requestID, err)
	}

	shifts, err := database.GetShiftsByRequest(ctx, requestID)
	if err != nil {
		return nil, fmt.Errorf("failed to get shifts for request %s: %w", requestID, err)
	}

	logger.Debug("Request status fetched",
		zap.String("request_id", requestID),
		zap.String("status", string(request.Status)),
		zap.Int("shifts", len(shifts)))

	return &StatusResult{
		Request: request,
		Shifts:  shifts,
		Summary: Summarize(request),
	}, nil
}

// Summarize derives the summary counters from a request row
func Summarize(request *db.ShiftRequest) Summary {
	return Summary{
		Total:      request.TotalShifts,
		Processed:  request.ProcessedShifts,
		Successful: request.SuccessfulShifts,
		Skipped:    request.SkippedShifts,
		Failed:     request.FailedShifts,
	}
}
