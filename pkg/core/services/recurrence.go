package services

import (
	"fmt"
	"time"

	"github.com/teambition/rrule-go"

	"github.com/jakechorley/shiftsync/pkg/clients/shiftsclient"
)

// maxOccurrences caps how many shifts a single recurrence may expand into.
const maxOccurrences = 1000

// ExpandRecurrence expands a recurrence rule into concrete shift inputs, one
// per occurrence. The rule must be bounded with COUNT or UNTIL; DTSTART is
// given inline in the rule string (e.g.
// "FREQ=WEEKLY;DTSTART=20250615T080000Z;COUNT=10").
func ExpandRecurrence(rec RecurrenceInput) ([]ShiftInput, error) {
	rule, err := rrule.StrToRRule(rec.RRule)
	if err != nil {
		return nil, fmt.Errorf("failed to parse rrule %q: %w", rec.RRule, err)
	}

	if rule.OrigOptions.Count == 0 && rule.OrigOptions.Until.IsZero() {
		return nil, fmt.Errorf("recurrence rule must be bounded with COUNT or UNTIL: %q", rec.RRule)
	}

	occurrences := rule.All()
	if len(occurrences) == 0 {
		return nil, fmt.Errorf("recurrence rule yields no occurrences: %q", rec.RRule)
	}
	if len(occurrences) > maxOccurrences {
		return nil, fmt.Errorf("recurrence rule yields %d occurrences, maximum is %d", len(occurrences), maxOccurrences)
	}

	duration := time.Duration(rec.DurationMinutes) * time.Minute

	shifts := make([]ShiftInput, 0, len(occurrences))
	for _, start := range occurrences {
		shifts = append(shifts, ShiftInput{
			CompanyID: rec.CompanyID,
			UserID:    rec.UserID,
			StartTime: start.Format(shiftsclient.TimeLayout),
			EndTime:   start.Add(duration).Format(shiftsclient.TimeLayout),
			Action:    rec.Action,
		})
	}

	return shifts, nil
}
