package server

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/jakechorley/shiftsync/pkg/core/services"
	"github.com/jakechorley/shiftsync/pkg/db"
)

// requestView is the API representation of a shift request
type requestView struct {
	ID          string           `json:"id"`
	Status      db.RequestStatus `json:"status"`
	Summary     services.Summary `json:"summary"`
	CreatedAt   time.Time        `json:"createdAt"`
	StartedAt   *time.Time       `json:"startedAt,omitempty"`
	CompletedAt *time.Time       `json:"completedAt,omitempty"`
}

// shiftView is the API representation of an individual shift
type shiftView struct {
	ID           string         `json:"id"`
	CompanyID    string         `json:"companyId"`
	UserID       string         `json:"userId"`
	StartTime    time.Time      `json:"startTime"`
	EndTime      time.Time      `json:"endTime"`
	Action       db.ShiftAction `json:"action"`
	Status       db.ShiftStatus `json:"status"`
	Attempts     int            `json:"attempts"`
	ErrorMessage *string        `json:"errorMessage,omitempty"`
}

func toRequestView(request *db.ShiftRequest) requestView {
	return requestView{
		ID:          request.ID,
		Status:      request.Status,
		Summary:     services.Summarize(request),
		CreatedAt:   request.CreatedAt,
		StartedAt:   request.StartedAt,
		CompletedAt: request.CompletedAt,
	}
}

func toShiftViews(shifts []db.IndividualShift) []shiftView {
	views := make([]shiftView, 0, len(shifts))
	for _, s := range shifts {
		views = append(views, shiftView{
			ID:           s.ID,
			CompanyID:    s.CompanyID,
			UserID:       s.UserID,
			StartTime:    s.StartTime,
			EndTime:      s.EndTime,
			Action:       s.Action,
			Status:       s.Status,
			Attempts:     s.Attempts,
			ErrorMessage: s.ErrorMessage,
		})
	}
	return views
}

func (s *Server) handleHealthz(c *gin.Context) {
	if err := s.pinger.Ping(c.Request.Context()); err != nil {
		s.logger.Error("Health check failed", zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, NewErrorResponse("database unreachable"))
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleBookShifts(c *gin.Context) {
	var input services.BatchInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse("invalid JSON payload: "+err.Error()))
		return
	}

	s.submitBatch(c, input)
}

func (s *Server) handleTestBook(c *gin.Context) {
	confirm, _ := strconv.ParseBool(c.Query("confirm"))
	if !confirm {
		c.JSON(http.StatusBadRequest, NewErrorResponse("pass confirm=true to execute test booking"))
		return
	}

	s.submitBatch(c, services.SampleBatch())
}

func (s *Server) submitBatch(c *gin.Context, input services.BatchInput) {
	result, err := services.SubmitBatch(c.Request.Context(), s.database, s.logger, s.minBatchSize, input)
	if err != nil {
		var tooSmall *services.ErrBatchTooSmall
		if errors.As(err, &tooSmall) {
			c.JSON(http.StatusUnprocessableEntity, NewErrorResponse(tooSmall.Error()))
			return
		}
		s.logger.Warn("Batch submission rejected", zap.Error(err))
		c.JSON(http.StatusBadRequest, NewErrorResponse(err.Error()))
		return
	}

	s.waker.Wake()

	c.JSON(http.StatusAccepted, NewSuccessResponse(gin.H{
		"requestId":   result.Request.ID,
		"totalShifts": result.Request.TotalShifts,
		"status":      result.Request.Status,
	}))
}

func (s *Server) handleListRequests(c *gin.Context) {
	status := db.RequestStatus(c.Query("status"))
	switch status {
	case "", db.RequestPending, db.RequestProcessing, db.RequestCompleted, db.RequestFailed:
	default:
		c.JSON(http.StatusBadRequest, NewErrorResponse("unknown status filter: "+string(status)))
		return
	}

	limit := 50
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			c.JSON(http.StatusBadRequest, NewErrorResponse("limit must be a positive integer"))
			return
		}
		limit = parsed
	}

	requests, err := s.database.ListRequests(c.Request.Context(), status, limit)
	if err != nil {
		s.logger.Error("Failed to list requests", zap.Error(err))
		c.JSON(http.StatusInternalServerError, NewErrorResponse("failed to list requests"))
		return
	}

	views := make([]requestView, 0, len(requests))
	for i := range requests {
		views = append(views, toRequestView(&requests[i]))
	}

	c.JSON(http.StatusOK, NewSuccessResponse(views))
}

func (s *Server) handleGetRequest(c *gin.Context) {
	result, err := services.RequestStatus(c.Request.Context(), s.database, s.logger, c.Param("id"))
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			c.JSON(http.StatusNotFound, NewErrorResponse("request not found"))
			return
		}
		s.logger.Error("Failed to fetch request", zap.Error(err))
		c.JSON(http.StatusInternalServerError, NewErrorResponse("failed to fetch request"))
		return
	}

	c.JSON(http.StatusOK, NewSuccessResponse(toRequestView(result.Request)))
}

func (s *Server) handleGetRequestShifts(c *gin.Context) {
	result, err := services.RequestStatus(c.Request.Context(), s.database, s.logger, c.Param("id"))
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			c.JSON(http.StatusNotFound, NewErrorResponse("request not found"))
			return
		}
		s.logger.Error("Failed to fetch request shifts", zap.Error(err))
		c.JSON(http.StatusInternalServerError, NewErrorResponse("failed to fetch request shifts"))
		return
	}

	c.JSON(http.StatusOK, NewSuccessResponse(gin.H{
		"requestId": result.Request.ID,
		"summary":   result.Summary,
		"shifts":    toShiftViews(result.Shifts),
	}))
}
