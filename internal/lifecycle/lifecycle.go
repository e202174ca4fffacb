// Package lifecycle is the order status state machine.
//
//	pending -> processing -> shipped -> delivered -> completed
//	pending, processing -> cancelled
//
// completed and cancelled are terminal.
package lifecycle

import (
	"fmt"
	"time"

	"github.com/kennethcatiis/ecommerce-platform/internal/apperr"
	"github.com/kennethcatiis/ecommerce-platform/internal/models"
)

var transitions = map[models.Status][]models.Status{
	models.StatusPending:    {models.StatusProcessing, models.StatusCancelled},
	models.StatusProcessing: {models.StatusShipped, models.StatusCancelled},
	models.StatusShipped:    {models.StatusDelivered},
	models.StatusDelivered:  {models.StatusCompleted},
	models.StatusCompleted:  nil,
	models.StatusCancelled:  nil,
}

// CanTransition reports whether from -> to is an edge of the machine.
func CanTransition(from, to models.Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// AllowedNext lists the statuses reachable from s in one step.
func AllowedNext(s models.Status) []models.Status {
	return append([]models.Status{}, transitions[s]...)
}

func IsTerminal(s models.Status) bool {
	next, known := transitions[s]
	return known && len(next) == 0
}

// Validate returns an ErrInvalidTransition-wrapped error for illegal edges.
func Validate(from, to models.Status) error {
	if !to.Valid() {
		return fmt.Errorf("%w: unknown status %q", apperr.ErrValidation, to)
	}
	if !CanTransition(from, to) {
		return fmt.Errorf("%w: %s -> %s", apperr.ErrInvalidTransition, from, to)
	}
	return nil
}

// Apply moves t to status to, replacing notes when notes is non-nil.
//
// Requesting the current status is a notes-only edit, not a transition: the
// status is left as is and changed is false. When neither status nor notes
// differ t is left untouched, UpdatedAt included. On error t is not modified.
func Apply(t *models.Transaction, to models.Status, notes *string, now time.Time) (changed bool, err error) {
	if to == t.Status {
		if !to.Valid() {
			return false, fmt.Errorf("%w: unknown status %q", apperr.ErrValidation, to)
		}
		if notes == nil || *notes == t.Notes {
			return false, nil
		}
	} else if err := Validate(t.Status, to); err != nil {
		return false, err
	}

	changed = to != t.Status
	t.Status = to
	if notes != nil {
		t.Notes = *notes
	}
	t.UpdatedAt = now
	return changed, nil
}
