package models

import (
	"time"
)

// ExtraItem is a priced add-on attached to an approved reservation.
// UnitPrice is a snapshot taken at add time, never the current catalog price.
type ExtraItem struct {
	ID            string    `json:"id" db:"id"`
	ReservationID string    `json:"reservation_id" db:"reservation_id"`
	ProductID     string    `json:"product_id" db:"product_id"`
	ProductName   string    `json:"product_name" db:"product_name"`
	Quantity      int       `json:"quantity" db:"quantity"`
	UnitPrice     float64   `json:"unit_price" db:"unit_price"`
	AddedBy       string    `json:"added_by" db:"added_by"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
}

// LineTotal returns quantity times the snapshotted unit price
func (e *ExtraItem) LineTotal() float64 {
	return float64(e.Quantity) * e.UnitPrice
}

// AddExtraItemsRequest represents the request to attach extras to a reservation
type AddExtraItemsRequest struct {
	Items []ExtraItemInput `json:"items" binding:"required"`
}

// Validate validates the add-extras input
func (r *AddExtraItemsRequest) Validate() error {
	if len(r.Items) == 0 {
		return NewValidationError("items", "at least one item is required")
	}
	for _, item := range r.Items {
		if item.ProductID == "" {
			return NewValidationError("items.product_id", "product_id is required")
		}
		if item.Quantity <= 0 {
			return NewValidationError("items.quantity", "quantity must be at least 1")
		}
	}
	return nil
}
