package models

import (
	"time"
)

// PriceSource identifies which price tier produced a line item or dominated a
// breakdown. Precedence: CABANA_SPECIFIC > CONCEPT_SPECIFIC > GENERAL.
type PriceSource string

const (
	PriceSourceCabanaSpecific  PriceSource = "CABANA_SPECIFIC"
	PriceSourceConceptSpecific PriceSource = "CONCEPT_SPECIFIC"
	PriceSourceGeneral         PriceSource = "GENERAL"
)

// Product is a catalog entry consumed read-only by the price resolver
type Product struct {
	ID        string    `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	SalePrice float64   `json:"sale_price" db:"sale_price"`
	IsActive  bool      `json:"is_active" db:"is_active"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Concept is a named bundle of products optionally attached to a cabana
// or selected per reservation
type Concept struct {
	ID        string    `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// ConceptProduct associates a product with a concept. OverridePrice, when set,
// replaces the product's general sale price for this concept.
type ConceptProduct struct {
	ConceptID     string   `json:"concept_id" db:"concept_id"`
	ProductID     string   `json:"product_id" db:"product_id"`
	ProductName   string   `json:"product_name" db:"product_name"`
	Quantity      int      `json:"quantity" db:"quantity"`
	OverridePrice *float64 `json:"override_price,omitempty" db:"override_price"`
	SalePrice     float64  `json:"sale_price" db:"sale_price"`
}

// CabanaDayPrice is a fixed price for one cabana on one exact calendar day
type CabanaDayPrice struct {
	CabanaID string    `json:"cabana_id" db:"cabana_id"`
	Day      time.Time `json:"day" db:"day"`
	Price    float64   `json:"price" db:"price"`
}

// CabanaRangePrice is a price for days of [StartDate, EndDate) on one cabana.
// When multiple ranges cover the same day the highest priority wins.
type CabanaRangePrice struct {
	ID        string    `json:"id" db:"id"`
	CabanaID  string    `json:"cabana_id" db:"cabana_id"`
	StartDate time.Time `json:"start_date" db:"start_date"`
	EndDate   time.Time `json:"end_date" db:"end_date"`
	Price     float64   `json:"price" db:"price"`
	Priority  int       `json:"priority" db:"priority"`
}

// PriceLineItem is one itemized row of a breakdown
type PriceLineItem struct {
	Name      string      `json:"name"`
	Quantity  int         `json:"quantity"`
	UnitPrice float64     `json:"unit_price"`
	LineTotal float64     `json:"line_total"`
	Source    PriceSource `json:"source"`
}

// PriceBreakdown is the computed, non-persisted output of the price resolver
type PriceBreakdown struct {
	CabanaDailyTotal float64         `json:"cabana_daily_total"`
	ConceptTotal     float64         `json:"concept_total"`
	ExtrasTotal      float64         `json:"extras_total"`
	GrandTotal       float64         `json:"grand_total"`
	PriceSource      PriceSource     `json:"price_source"`
	LineItems        []PriceLineItem `json:"line_items"`
}

// PriceQuoteRequest asks for a price preview before creating a reservation
type PriceQuoteRequest struct {
	CabanaID  string           `json:"cabana_id" binding:"required"`
	ConceptID *string          `json:"concept_id,omitempty"`
	StartDate string           `json:"start_date" binding:"required"`
	EndDate   string           `json:"end_date" binding:"required"`
	Extras    []ExtraItemInput `json:"extras,omitempty"`
}

// ExtraItemInput is a requested add-on (product + quantity)
type ExtraItemInput struct {
	ProductID string `json:"product_id" binding:"required"`
	Quantity  int    `json:"quantity" binding:"required,min=1"`
}
