package models

import (
	"time"
)

// CabanaStatus represents the current occupancy status of a cabana.
// It is a cache maintained by the reservation state machine, not ground truth;
// the reconciliation job can recompute it from committed reservations.
type CabanaStatus string

const (
	CabanaStatusAvailable CabanaStatus = "available"
	CabanaStatusReserved  CabanaStatus = "reserved"
	CabanaStatusClosed    CabanaStatus = "closed"
)

// Cabana represents a bookable physical unit at the resort
type Cabana struct {
	ID                   string       `json:"id" db:"id"`
	Name                 string       `json:"name" db:"name"`
	Class                string       `json:"class" db:"class"`
	ConceptID            *string      `json:"concept_id,omitempty" db:"concept_id"`
	Status               CabanaStatus `json:"status" db:"status"`
	IsOpenForReservation bool         `json:"is_open_for_reservation" db:"is_open_for_reservation"`
	PositionX            float64      `json:"position_x" db:"position_x"`
	PositionY            float64      `json:"position_y" db:"position_y"`
	CreatedAt            time.Time    `json:"created_at" db:"created_at"`
	UpdatedAt            time.Time    `json:"updated_at" db:"updated_at"`
}

// CreateCabanaRequest represents the request to register a cabana
type CreateCabanaRequest struct {
	Name      string  `json:"name" binding:"required"`
	Class     string  `json:"class" binding:"required"`
	ConceptID *string `json:"concept_id,omitempty"`
	PositionX float64 `json:"position_x"`
	PositionY float64 `json:"position_y"`
}

// UpdateCabanaRequest represents a partial cabana update
type UpdateCabanaRequest struct {
	Name                 *string  `json:"name,omitempty"`
	Class                *string  `json:"class,omitempty"`
	ConceptID            *string  `json:"concept_id,omitempty"`
	IsOpenForReservation *bool    `json:"is_open_for_reservation,omitempty"`
	PositionX            *float64 `json:"position_x,omitempty"`
	PositionY            *float64 `json:"position_y,omitempty"`
}

// Validate validates the create cabana request
func (r *CreateCabanaRequest) Validate() error {
	if r.Name == "" {
		return NewValidationError("name", "name is required")
	}
	if r.Class == "" {
		return NewValidationError("class", "class is required")
	}
	return nil
}

// Validate validates the partial update
func (r *UpdateCabanaRequest) Validate() error {
	if r.Name != nil && *r.Name == "" {
		return NewValidationError("name", "name cannot be empty")
	}
	if r.Class != nil && *r.Class == "" {
		return NewValidationError("class", "class cannot be empty")
	}
	return nil
}
