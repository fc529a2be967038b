package orchestrator

import (
	"fmt"
	"time"

	"github.com/adhocore/gronx"
)

// RecurrenceValidator checks cron expressions attached to recurring
// task deadlines. No example call site exists for gronx in the pack
// (it appears only as a bare go.mod entry), so this wiring follows the
// library's own documented surface rather than a copied usage pattern.
type RecurrenceValidator struct {
	g gronx.Gronx
}

// NewRecurrenceValidator builds a validator.
func NewRecurrenceValidator() *RecurrenceValidator {
	return &RecurrenceValidator{g: gronx.New()}
}

// ValidateExpression reports whether a cron expression is well-formed.
func (r *RecurrenceValidator) ValidateExpression(expr string) error {
	if !gronx.IsValid(expr) {
		return fmt.Errorf("orchestrator: invalid cron expression %q", expr)
	}
	return nil
}

// NextDeadline computes the next time a recurring task's cron
// expression is due at or after ref, for seeding a fresh Task.Deadline
// each time a recurring task completes.
func (r *RecurrenceValidator) NextDeadline(expr string, ref time.Time) (time.Time, error) {
	due, err := gronx.NextTickAfter(expr, ref, false)
	if err != nil {
		return time.Time{}, fmt.Errorf("orchestrator: compute next deadline: %w", err)
	}
	return due, nil
}

// IsDue reports whether a recurring task's cron expression matches at
// (or just before) the given instant, for deadline-triggered dispatch.
func (r *RecurrenceValidator) IsDue(expr string, at time.Time) (bool, error) {
	due, err := r.g.IsDue(expr, at)
	if err != nil {
		return false, fmt.Errorf("orchestrator: evaluate cron expression: %w", err)
	}
	return due, nil
}
