package models

import (
	"time"
)

// RequestStatus represents the status of a modification or cancellation request
type RequestStatus string

const (
	RequestStatusPending  RequestStatus = "pending"
	RequestStatusApproved RequestStatus = "approved"
	RequestStatusRejected RequestStatus = "rejected"
)

// ModificationRequest is a proposed change against an approved reservation.
// Each field being changed is independently optional; at least one must be set.
// Once resolved the record is immutable history.
type ModificationRequest struct {
	ID            string        `json:"id" db:"id"`
	ReservationID string        `json:"reservation_id" db:"reservation_id"`
	RequesterID   string        `json:"requester_id" db:"requester_id"`
	NewCabanaID   *string       `json:"new_cabana_id,omitempty" db:"new_cabana_id"`
	NewStartDate  *time.Time    `json:"new_start_date,omitempty" db:"new_start_date"`
	NewEndDate    *time.Time    `json:"new_end_date,omitempty" db:"new_end_date"`
	NewGuestName  *string       `json:"new_guest_name,omitempty" db:"new_guest_name"`
	Status        RequestStatus `json:"status" db:"status"`
	ResolvedBy    *string       `json:"resolved_by,omitempty" db:"resolved_by"`
	ResolvedAt    *time.Time    `json:"resolved_at,omitempty" db:"resolved_at"`
	RejectReason  *string       `json:"reject_reason,omitempty" db:"reject_reason"`
	CreatedAt     time.Time     `json:"created_at" db:"created_at"`
}

// CancellationRequest is a proposed cancellation against an approved reservation
type CancellationRequest struct {
	ID            string        `json:"id" db:"id"`
	ReservationID string        `json:"reservation_id" db:"reservation_id"`
	RequesterID   string        `json:"requester_id" db:"requester_id"`
	Reason        string        `json:"reason" db:"reason"`
	Status        RequestStatus `json:"status" db:"status"`
	ResolvedBy    *string       `json:"resolved_by,omitempty" db:"resolved_by"`
	ResolvedAt    *time.Time    `json:"resolved_at,omitempty" db:"resolved_at"`
	RejectReason  *string       `json:"reject_reason,omitempty" db:"reject_reason"`
	CreatedAt     time.Time     `json:"created_at" db:"created_at"`
}

// CreateModificationRequest represents the requester's proposed change
type CreateModificationRequest struct {
	NewCabanaID  *string `json:"new_cabana_id,omitempty"`
	NewStartDate *string `json:"new_start_date,omitempty"`
	NewEndDate   *string `json:"new_end_date,omitempty"`
	NewGuestName *string `json:"new_guest_name,omitempty"`
}

// Validate checks that at least one change is proposed
func (r *CreateModificationRequest) Validate() error {
	if r.NewCabanaID == nil && r.NewStartDate == nil && r.NewEndDate == nil && r.NewGuestName == nil {
		return NewValidationError("", "at least one of new_cabana_id, new_start_date, new_end_date, new_guest_name must be set")
	}
	if r.NewGuestName != nil && *r.NewGuestName == "" {
		return NewValidationError("new_guest_name", "guest name cannot be empty")
	}
	return nil
}

// CreateCancellationRequest carries the mandatory cancellation reason
type CreateCancellationRequest struct {
	Reason string `json:"reason" binding:"required"`
}

// Validate validates the cancellation request input
func (r *CreateCancellationRequest) Validate() error {
	if r.Reason == "" {
		return NewValidationError("reason", "cancellation reason is required")
	}
	return nil
}

// ResolveRequest represents an approver's decision on a sub-request.
// Reason is required when rejecting. ManualPrice applies to modification
// approvals only and overrides the recomputed price.
type ResolveRequest struct {
	Approve     bool     `json:"approve"`
	Reason      *string  `json:"reason,omitempty"`
	ManualPrice *float64 `json:"manual_price,omitempty"`
}

// Validate validates the resolution input
func (r *ResolveRequest) Validate() error {
	if !r.Approve && (r.Reason == nil || *r.Reason == "") {
		return NewValidationError("reason", "a reason is required when rejecting")
	}
	if r.ManualPrice != nil && *r.ManualPrice < 0 {
		return NewValidationError("manual_price", "manual price cannot be negative")
	}
	return nil
}
