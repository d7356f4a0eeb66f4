package database

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/cabanaresort/reservations-backend/internal/models"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// PricingRepository serves the read-only price catalog: per-day overrides,
// range overrides, concept bundles and the product list. The price resolver
// is the only consumer.
type PricingRepository struct {
	db *sqlx.DB
}

// NewPricingRepository creates a new PricingRepository
func NewPricingRepository(db *sqlx.DB) *PricingRepository {
	return &PricingRepository{db: db}
}

// GetDayPrices returns the exact-day overrides for a cabana over [start, end)
func (r *PricingRepository) GetDayPrices(cabanaID string, start, end time.Time) ([]models.CabanaDayPrice, error) {
	query := `
		SELECT cabana_id, day, price
		FROM cabana_day_prices
		WHERE cabana_id = $1 AND day >= $2 AND day < $3
		ORDER BY day
	`

	prices := []models.CabanaDayPrice{}
	if err := r.db.Select(&prices, query, cabanaID, start, end); err != nil {
		return nil, fmt.Errorf("failed to get day prices: %w", err)
	}
	return prices, nil
}

// GetRangePrices returns every range override touching [start, end) for a
// cabana, highest priority first. Ties on priority break toward the most
// recently created range.
func (r *PricingRepository) GetRangePrices(cabanaID string, start, end time.Time) ([]models.CabanaRangePrice, error) {
	query := `
		SELECT id, cabana_id, start_date, end_date, price, priority
		FROM cabana_range_prices
		WHERE cabana_id = $1 AND start_date < $3 AND end_date > $2
		ORDER BY priority DESC, id DESC
	`

	prices := []models.CabanaRangePrice{}
	if err := r.db.Select(&prices, query, cabanaID, start, end); err != nil {
		return nil, fmt.Errorf("failed to get range prices: %w", err)
	}
	return prices, nil
}

// GetConceptByID retrieves a concept. Returns nil when not found.
func (r *PricingRepository) GetConceptByID(id string) (*models.Concept, error) {
	query := `SELECT id, name, created_at FROM concepts WHERE id = $1`

	var concept models.Concept
	err := r.db.Get(&concept, query, id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get concept: %w", err)
	}

	return &concept, nil
}

// GetConceptProducts returns a concept's bundle with the product name and
// general sale price joined in. The resolver charges override_price when set
// and sale_price otherwise.
func (r *PricingRepository) GetConceptProducts(conceptID string) ([]models.ConceptProduct, error) {
	query := `
		SELECT cp.concept_id, cp.product_id, p.name AS product_name,
			   cp.quantity, cp.override_price, p.sale_price
		FROM concept_products cp
		JOIN products p ON p.id = cp.product_id
		WHERE cp.concept_id = $1 AND p.is_active = true
		ORDER BY p.name
	`

	products := []models.ConceptProduct{}
	if err := r.db.Select(&products, query, conceptID); err != nil {
		return nil, fmt.Errorf("failed to get concept products: %w", err)
	}
	return products, nil
}

// GetProductsByIDs returns the active products matching the given ids,
// keyed by id. Missing or inactive ids are simply absent from the map.
func (r *PricingRepository) GetProductsByIDs(ids []string) (map[string]models.Product, error) {
	if len(ids) == 0 {
		return map[string]models.Product{}, nil
	}

	query := `
		SELECT id, name, sale_price, is_active, created_at, updated_at
		FROM products
		WHERE id = ANY($1) AND is_active = true
	`

	products := []models.Product{}
	if err := r.db.Select(&products, query, pq.Array(ids)); err != nil {
		return nil, fmt.Errorf("failed to get products: %w", err)
	}

	byID := make(map[string]models.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}
	return byID, nil
}

// ListProducts returns the active product catalog
func (r *PricingRepository) ListProducts() ([]models.Product, error) {
	query := `
		SELECT id, name, sale_price, is_active, created_at, updated_at
		FROM products
		WHERE is_active = true
		ORDER BY name
	`

	products := []models.Product{}
	if err := r.db.Select(&products, query); err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	return products, nil
}
