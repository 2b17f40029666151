package shiftsclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// TimeLayout is the wire format for shift times in the upstream API.
// The upstream uses naive local timestamps without a zone offset.
const TimeLayout = "2006-01-02T15:04:05"

// Shift is one shift record as the upstream API represents it
type Shift struct {
	CompanyID string `json:"companyId"`
	UserID    string `json:"userId"`
	StartTime string `json:"startTime"`
	EndTime   string `json:"endTime"`
	Action    string `json:"action,omitempty"`
}

// Matches reports whether two shifts refer to the same booking: same
// company, user and time range. Action is deliberately ignored.
func (s Shift) Matches(other Shift) bool {
	return s.CompanyID == other.CompanyID &&
		s.UserID == other.UserID &&
		s.StartTime == other.StartTime &&
		s.EndTime == other.EndTime
}

// StatusError is returned when the upstream API answers with a non-success
// HTTP status.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("upstream returned HTTP %d", e.StatusCode)
}

// Client wraps HTTP access to the upstream shifts API
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a new shifts API client for the given base URL
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// GetShifts fetches all shifts currently booked in the upstream system
func (c *Client) GetShifts(ctx context.Context) ([]Shift, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/shifts", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build shifts request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch existing shifts: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	var payload struct {
		Shifts []Shift `json:"shifts"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("failed to decode shifts response: %w", err)
	}

	return payload.Shifts, nil
}

// BookShift books a single shift in the upstream system.
// The upstream signals success with 200 or 201.
func (c *Client) BookShift(ctx context.Context, shift Shift) error {
	body, err := json.Marshal(shift)
	if err != nil {
		return fmt.Errorf("failed to marshal shift: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/shift", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build booking request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to post shift: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return &StatusError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	return nil
}
