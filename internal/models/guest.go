package models

import (
	"time"
)

// Guest is a returning-guest profile. Visits and LastVisitAt are bumped by
// the state machine on check-out.
type Guest struct {
	ID          string     `json:"id" db:"id"`
	FullName    string     `json:"full_name" db:"full_name"`
	Email       *string    `json:"email,omitempty" db:"email"`
	Phone       *string    `json:"phone,omitempty" db:"phone"`
	Visits      int        `json:"visits" db:"visits"`
	LastVisitAt *time.Time `json:"last_visit_at,omitempty" db:"last_visit_at"`
	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at" db:"updated_at"`
}

// CreateGuestRequest represents the request to register a guest profile
type CreateGuestRequest struct {
	FullName string  `json:"full_name" binding:"required"`
	Email    *string `json:"email,omitempty"`
	Phone    *string `json:"phone,omitempty"`
}

// Validate validates the guest profile input
func (r *CreateGuestRequest) Validate() error {
	if r.FullName == "" {
		return NewValidationError("full_name", "full name is required")
	}
	return nil
}

// Review is a guest review left after check-out. At most one per reservation;
// leaving one is not a status transition.
type Review struct {
	ID            string    `json:"id" db:"id"`
	ReservationID string    `json:"reservation_id" db:"reservation_id"`
	Rating        int       `json:"rating" db:"rating"`
	Comment       *string   `json:"comment,omitempty" db:"comment"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
}

// CreateReviewRequest represents the request to leave a review
type CreateReviewRequest struct {
	Rating  int     `json:"rating" binding:"required,min=1,max=5"`
	Comment *string `json:"comment,omitempty"`
}

// Validate validates the review input
func (r *CreateReviewRequest) Validate() error {
	if r.Rating < 1 || r.Rating > 5 {
		return NewValidationError("rating", "rating must be between 1 and 5")
	}
	return nil
}
