package models

import (
	"time"
)

// ReservationStatus represents the lifecycle status of a reservation
type ReservationStatus string

const (
	ReservationStatusPending             ReservationStatus = "pending"
	ReservationStatusApproved            ReservationStatus = "approved"
	ReservationStatusRejected            ReservationStatus = "rejected"
	ReservationStatusModificationPending ReservationStatus = "modification_pending"
	// ReservationStatusExtraPending is reserved for a future extra-approval
	// workflow. No transition currently targets it: extras are added directly
	// to an approved reservation.
	ReservationStatusExtraPending ReservationStatus = "extra_pending"
	ReservationStatusCheckedIn    ReservationStatus = "checked_in"
	ReservationStatusCheckedOut   ReservationStatus = "checked_out"
	ReservationStatusCancelled    ReservationStatus = "cancelled"
)

// CommittedStatuses are the statuses that block other bookings on the same
// cabana/range. Pending reservations never block.
var CommittedStatuses = []ReservationStatus{
	ReservationStatusApproved,
	ReservationStatusCheckedIn,
	ReservationStatusCheckedOut,
}

// IsCommitted reports whether the status blocks overlapping bookings
func (s ReservationStatus) IsCommitted() bool {
	for _, committed := range CommittedStatuses {
		if s == committed {
			return true
		}
	}
	return false
}

// Reservation represents a stay request for a cabana over a half-open
// date range [StartDate, EndDate)
type Reservation struct {
	ID              string            `json:"id" db:"id"`
	CabanaID        string            `json:"cabana_id" db:"cabana_id"`
	RequesterID     string            `json:"requester_id" db:"requester_id"`
	GuestName       string            `json:"guest_name" db:"guest_name"`
	GuestID         *string           `json:"guest_id,omitempty" db:"guest_id"`
	ConceptID       *string           `json:"concept_id,omitempty" db:"concept_id"`
	StartDate       time.Time         `json:"start_date" db:"start_date"`
	EndDate         time.Time         `json:"end_date" db:"end_date"`
	Notes           *string           `json:"notes,omitempty" db:"notes"`
	Status          ReservationStatus `json:"status" db:"status"`
	TotalPrice      *float64          `json:"total_price,omitempty" db:"total_price"`
	RejectionReason *string           `json:"rejection_reason,omitempty" db:"rejection_reason"`
	CheckedInAt     *time.Time        `json:"checked_in_at,omitempty" db:"checked_in_at"`
	CheckedInBy     *string           `json:"checked_in_by,omitempty" db:"checked_in_by"`
	CheckedOutAt    *time.Time        `json:"checked_out_at,omitempty" db:"checked_out_at"`
	CheckedOutBy    *string           `json:"checked_out_by,omitempty" db:"checked_out_by"`
	CreatedAt       time.Time         `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time         `json:"updated_at" db:"updated_at"`
}

// Nights returns the number of nights covered by the reservation
func (r *Reservation) Nights() int {
	return int(r.EndDate.Sub(r.StartDate).Hours() / 24)
}

// StatusHistoryEntry is an append-only audit record of one status transition.
// Entries are never mutated or deleted.
type StatusHistoryEntry struct {
	ID            string             `json:"id" db:"id"`
	ReservationID string             `json:"reservation_id" db:"reservation_id"`
	FromStatus    *ReservationStatus `json:"from_status,omitempty" db:"from_status"`
	ToStatus      ReservationStatus  `json:"to_status" db:"to_status"`
	ActorID       string             `json:"actor_id" db:"actor_id"`
	Reason        *string            `json:"reason,omitempty" db:"reason"`
	CreatedAt     time.Time          `json:"created_at" db:"created_at"`
}

// CreateReservationRequest represents the request to create a reservation
type CreateReservationRequest struct {
	CabanaID  string  `json:"cabana_id" binding:"required"`
	GuestName string  `json:"guest_name" binding:"required"`
	GuestID   *string `json:"guest_id,omitempty"`
	StartDate string  `json:"start_date" binding:"required"`
	EndDate   string  `json:"end_date" binding:"required"`
	ConceptID *string `json:"concept_id,omitempty"`
	Notes     *string `json:"notes,omitempty"`
}

// ApproveReservationRequest represents the approver's decision input.
// ManualPrice overrides the computed price when set.
type ApproveReservationRequest struct {
	ManualPrice *float64 `json:"manual_price,omitempty"`
}

// RejectReservationRequest carries the mandatory rejection reason
type RejectReservationRequest struct {
	Reason string `json:"reason" binding:"required"`
}

// Validate validates the approval input
func (r *ApproveReservationRequest) Validate() error {
	if r.ManualPrice != nil && *r.ManualPrice < 0 {
		return NewValidationError("manual_price", "manual price cannot be negative")
	}
	return nil
}

// Validate validates the rejection input
func (r *RejectReservationRequest) Validate() error {
	if r.Reason == "" {
		return NewValidationError("reason", "rejection reason is required")
	}
	return nil
}
