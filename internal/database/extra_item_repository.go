package database

import (
	"fmt"

	"github.com/cabanaresort/reservations-backend/internal/models"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// ExtraItemRepository handles priced add-ons attached to approved reservations
type ExtraItemRepository struct {
	db *sqlx.DB
}

// NewExtraItemRepository creates a new ExtraItemRepository
func NewExtraItemRepository(db *sqlx.DB) *ExtraItemRepository {
	return &ExtraItemRepository{db: db}
}

// InsertMany inserts a batch of extras inside the given transaction.
// Unit prices are the caller's snapshots, already resolved.
func (r *ExtraItemRepository) InsertMany(tx *sqlx.Tx, items []models.ExtraItem) error {
	query := `
		INSERT INTO reservation_extra_items (
			id, reservation_id, product_id, product_name, quantity, unit_price, added_by
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	for i := range items {
		if items[i].ID == "" {
			items[i].ID = uuid.New().String()
		}
		_, err := tx.Exec(
			query,
			items[i].ID, items[i].ReservationID, items[i].ProductID,
			items[i].ProductName, items[i].Quantity, items[i].UnitPrice,
			items[i].AddedBy,
		)
		if err != nil {
			return fmt.Errorf("failed to insert extra item: %w", err)
		}
	}

	return nil
}

// SumForReservationTx returns the total of all extras currently attached,
// at their snapshotted unit prices, inside the given transaction. The total
// price recomputation replaces the extras component with this sum wholesale,
// so repeated additions never double-count.
func (r *ExtraItemRepository) SumForReservationTx(tx *sqlx.Tx, reservationID string) (float64, error) {
	query := `
		SELECT COALESCE(SUM(quantity * unit_price), 0)
		FROM reservation_extra_items
		WHERE reservation_id = $1
	`

	var total float64
	if err := tx.Get(&total, query, reservationID); err != nil {
		return 0, fmt.Errorf("failed to sum extra items: %w", err)
	}
	return total, nil
}

// ListByReservation returns a reservation's extras in the order they were added
func (r *ExtraItemRepository) ListByReservation(reservationID string) ([]models.ExtraItem, error) {
	query := `
		SELECT id, reservation_id, product_id, product_name, quantity,
			   unit_price, added_by, created_at
		FROM reservation_extra_items
		WHERE reservation_id = $1
		ORDER BY created_at
	`

	items := []models.ExtraItem{}
	if err := r.db.Select(&items, query, reservationID); err != nil {
		return nil, fmt.Errorf("failed to list extra items: %w", err)
	}
	return items, nil
}
