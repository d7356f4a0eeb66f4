package database

import (
	"fmt"

	"github.com/cabanaresort/reservations-backend/internal/models"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// StatusHistoryRepository handles the append-only reservation status audit
// trail. Entries are inserted in the same transaction as the transition they
// record and are never updated or deleted.
type StatusHistoryRepository struct {
	db *sqlx.DB
}

// NewStatusHistoryRepository creates a new StatusHistoryRepository
func NewStatusHistoryRepository(db *sqlx.DB) *StatusHistoryRepository {
	return &StatusHistoryRepository{db: db}
}

// Append records one status transition inside the given transaction
func (r *StatusHistoryRepository) Append(tx *sqlx.Tx, entry *models.StatusHistoryEntry) error {
	query := `
		INSERT INTO reservation_status_history (
			id, reservation_id, from_status, to_status, actor_id, reason
		) VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at
	`

	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}

	err := tx.QueryRow(
		query,
		entry.ID, entry.ReservationID, entry.FromStatus,
		entry.ToStatus, entry.ActorID, entry.Reason,
	).Scan(&entry.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to append status history: %w", err)
	}

	return nil
}

// ListByReservation returns a reservation's transitions in commit order
func (r *StatusHistoryRepository) ListByReservation(reservationID string) ([]models.StatusHistoryEntry, error) {
	query := `
		SELECT id, reservation_id, from_status, to_status, actor_id, reason, created_at
		FROM reservation_status_history
		WHERE reservation_id = $1
		ORDER BY created_at
	`

	entries := []models.StatusHistoryEntry{}
	if err := r.db.Select(&entries, query, reservationID); err != nil {
		return nil, fmt.Errorf("failed to list status history: %w", err)
	}
	return entries, nil
}
