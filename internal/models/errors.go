package models

import (
	"fmt"
	"strings"
	"time"
)

// ValidationError indicates malformed or missing input. It is raised before any
// transaction is opened and is never retried automatically.
type ValidationError struct {
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s", e.Field, e.Message)
	}
	return e.Message
}

// NewValidationError creates a validation error for a specific field
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// ConflictError indicates the cabana is not available for the requested range.
// It is retryable by the user (pick different dates), not a fatal error.
type ConflictError struct {
	CabanaID    string    `json:"cabana_id"`
	StartDate   time.Time `json:"start_date"`
	EndDate     time.Time `json:"end_date"`
	BlockingIDs []string  `json:"blocking_reservation_ids,omitempty"`
	Message     string    `json:"message"`
}

func (e *ConflictError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf(
		"cabana %s is not available for %s to %s (blocked by %s)",
		e.CabanaID,
		e.StartDate.Format("2006-01-02"),
		e.EndDate.Format("2006-01-02"),
		strings.Join(e.BlockingIDs, ", "),
	)
}

// NewConflictError creates a conflict error for a cabana/date range
func NewConflictError(cabanaID string, start, end time.Time, blockingIDs []string) *ConflictError {
	return &ConflictError{
		CabanaID:    cabanaID,
		StartDate:   start,
		EndDate:     end,
		BlockingIDs: blockingIDs,
	}
}

// NotFoundError indicates the referenced entity does not exist
type NotFoundError struct {
	Entity string `json:"entity"`
	ID     string `json:"id"`
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Entity, e.ID)
}

// NewNotFoundError creates a not-found error for an entity/id pair
func NewNotFoundError(entity, id string) *NotFoundError {
	return &NotFoundError{Entity: entity, ID: id}
}

// StateError indicates an operation was attempted against a reservation or
// sub-request that is not in the required status. The check happens inside the
// same transaction as the write to close the read-then-write race window.
type StateError struct {
	Entity        string `json:"entity"`
	ID            string `json:"id"`
	CurrentStatus string `json:"current_status"`
	WantedStatus  string `json:"wanted_status"`
}

func (e *StateError) Error() string {
	return fmt.Sprintf(
		"%s %s is %s, expected %s",
		e.Entity, e.ID, e.CurrentStatus, e.WantedStatus,
	)
}

// NewStateError creates a state error for an entity in the wrong status
func NewStateError(entity, id, current, wanted string) *StateError {
	return &StateError{Entity: entity, ID: id, CurrentStatus: current, WantedStatus: wanted}
}
