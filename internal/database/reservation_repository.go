package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/cabanaresort/reservations-backend/internal/models"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// reservationColumns is the canonical column list for reservation scans
const reservationColumns = `
	id, cabana_id, requester_id, guest_name, guest_id, concept_id,
	start_date, end_date, notes, status, total_price, rejection_reason,
	checked_in_at, checked_in_by, checked_out_at, checked_out_by,
	created_at, updated_at`

// ReservationRepository handles database operations for the reservations table.
// All conflict-sensitive writes go through a serializable transaction opened
// with BeginSerializableTx.
type ReservationRepository struct {
	db          *sqlx.DB
	lockTimeout time.Duration
}

// NewReservationRepository creates a new ReservationRepository
func NewReservationRepository(db *sqlx.DB, lockTimeout time.Duration) *ReservationRepository {
	return &ReservationRepository{db: db, lockTimeout: lockTimeout}
}

// BeginSerializableTx opens a serializable transaction with a bounded lock
// wait. A competing transaction holding the conflict-window locks causes this
// one to fail with a retryable error instead of hanging.
func (r *ReservationRepository) BeginSerializableTx(ctx context.Context) (*sqlx.Tx, error) {
	tx, err := r.db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}

	if _, err := tx.Exec(fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", r.lockTimeout.Milliseconds())); err != nil {
		tx.Rollback()
		return nil, fmt.Errorf("failed to set lock timeout: %w", err)
	}

	return tx, nil
}

// LockOverlapping locks every committed reservation on the cabana whose
// half-open range overlaps [start, end) and returns their ids. The FOR UPDATE
// read serializes concurrent bookings for the same cabana window: the caller
// must write its own row in the same transaction, so two overlapping requests
// can never both observe an empty result.
//
// Overlap rule is strict on both sides (existing.start < new.end AND
// existing.end > new.start): same-day checkout/check-in is not a conflict.
// Pending reservations never block.
func (r *ReservationRepository) LockOverlapping(tx *sqlx.Tx, cabanaID string, start, end time.Time, excludeID *string) ([]string, error) {
	query := `
		SELECT id
		FROM reservations
		WHERE cabana_id = $1
		  AND status = ANY($2)
		  AND start_date < $4
		  AND end_date > $3
		  AND ($5::uuid IS NULL OR id != $5)
		ORDER BY start_date
		FOR UPDATE
	`

	committed := make([]string, len(models.CommittedStatuses))
	for i, s := range models.CommittedStatuses {
		committed[i] = string(s)
	}

	var blockingIDs []string
	err := tx.Select(&blockingIDs, query, cabanaID, pq.Array(committed), start, end, excludeID)
	if err != nil {
		return nil, fmt.Errorf("failed to lock overlapping reservations: %w", err)
	}

	return blockingIDs, nil
}

// CheckConflicts runs LockOverlapping and converts a non-empty result into a
// ConflictError. Shared by creation and modification approval.
func (r *ReservationRepository) CheckConflicts(tx *sqlx.Tx, cabanaID string, start, end time.Time, excludeID *string) error {
	blockingIDs, err := r.LockOverlapping(tx, cabanaID, start, end, excludeID)
	if err != nil {
		return err
	}
	if len(blockingIDs) > 0 {
		return models.NewConflictError(cabanaID, start, end, blockingIDs)
	}
	return nil
}

// Insert inserts a new reservation inside the given transaction
func (r *ReservationRepository) Insert(tx *sqlx.Tx, reservation *models.Reservation) error {
	query := `
		INSERT INTO reservations (
			id, cabana_id, requester_id, guest_name, guest_id, concept_id,
			start_date, end_date, notes, status
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING created_at, updated_at
	`

	if reservation.ID == "" {
		reservation.ID = uuid.New().String()
	}

	err := tx.QueryRow(
		query,
		reservation.ID, reservation.CabanaID, reservation.RequesterID,
		reservation.GuestName, reservation.GuestID, reservation.ConceptID,
		reservation.StartDate, reservation.EndDate,
		reservation.Notes, reservation.Status,
	).Scan(&reservation.CreatedAt, &reservation.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert reservation: %w", err)
	}

	return nil
}

// GetByID retrieves a reservation by ID. Returns nil when not found.
func (r *ReservationRepository) GetByID(id string) (*models.Reservation, error) {
	query := `SELECT ` + reservationColumns + ` FROM reservations WHERE id = $1`

	var reservation models.Reservation
	err := r.db.Get(&reservation, query, id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get reservation: %w", err)
	}

	return &reservation, nil
}

// GetByIDForUpdate locks and retrieves a reservation inside the given
// transaction. Status guards read through this method stay valid until
// commit, closing the read-then-write race window.
func (r *ReservationRepository) GetByIDForUpdate(tx *sqlx.Tx, id string) (*models.Reservation, error) {
	query := `SELECT ` + reservationColumns + ` FROM reservations WHERE id = $1 FOR UPDATE`

	var reservation models.Reservation
	err := tx.Get(&reservation, query, id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to lock reservation: %w", err)
	}

	return &reservation, nil
}

// SetApproved writes the approved status and the chosen total price
func (r *ReservationRepository) SetApproved(tx *sqlx.Tx, id string, totalPrice float64) error {
	query := `
		UPDATE reservations
		SET status = $2, total_price = $3, updated_at = NOW()
		WHERE id = $1
	`
	return r.execExpectingRow(tx, query, id, models.ReservationStatusApproved, totalPrice)
}

// SetRejected writes the rejected status and the mandatory reason
func (r *ReservationRepository) SetRejected(tx *sqlx.Tx, id, reason string) error {
	query := `
		UPDATE reservations
		SET status = $2, rejection_reason = $3, updated_at = NOW()
		WHERE id = $1
	`
	return r.execExpectingRow(tx, query, id, models.ReservationStatusRejected, reason)
}

// UpdateStatus writes a bare status change
func (r *ReservationRepository) UpdateStatus(tx *sqlx.Tx, id string, status models.ReservationStatus) error {
	query := `
		UPDATE reservations
		SET status = $2, updated_at = NOW()
		WHERE id = $1
	`
	return r.execExpectingRow(tx, query, id, status)
}

// SetCheckedIn stamps the check-in time and actor
func (r *ReservationRepository) SetCheckedIn(tx *sqlx.Tx, id, actorID string, at time.Time) error {
	query := `
		UPDATE reservations
		SET status = $2, checked_in_at = $3, checked_in_by = $4, updated_at = NOW()
		WHERE id = $1
	`
	return r.execExpectingRow(tx, query, id, models.ReservationStatusCheckedIn, at, actorID)
}

// SetCheckedOut stamps the check-out time and actor
func (r *ReservationRepository) SetCheckedOut(tx *sqlx.Tx, id, actorID string, at time.Time) error {
	query := `
		UPDATE reservations
		SET status = $2, checked_out_at = $3, checked_out_by = $4, updated_at = NOW()
		WHERE id = $1
	`
	return r.execExpectingRow(tx, query, id, models.ReservationStatusCheckedOut, at, actorID)
}

// ApplyModification applies an approved modification's fields and returns the
// reservation to the approved status in one write
func (r *ReservationRepository) ApplyModification(tx *sqlx.Tx, id, cabanaID string, start, end time.Time, guestName string, totalPrice float64) error {
	query := `
		UPDATE reservations
		SET cabana_id = $2, start_date = $3, end_date = $4, guest_name = $5,
			total_price = $6, status = $7, updated_at = NOW()
		WHERE id = $1
	`
	return r.execExpectingRow(tx, query, id, cabanaID, start, end, guestName, totalPrice, models.ReservationStatusApproved)
}

// UpdateTotalPrice rewrites the total price (extras recomputation)
func (r *ReservationRepository) UpdateTotalPrice(tx *sqlx.Tx, id string, totalPrice float64) error {
	query := `
		UPDATE reservations
		SET total_price = $2, updated_at = NOW()
		WHERE id = $1
	`
	return r.execExpectingRow(tx, query, id, totalPrice)
}

// ListByRequester retrieves all reservations created by a requester
func (r *ReservationRepository) ListByRequester(requesterID string) ([]models.Reservation, error) {
	query := `
		SELECT ` + reservationColumns + `
		FROM reservations
		WHERE requester_id = $1
		ORDER BY created_at DESC
	`

	reservations := []models.Reservation{}
	if err := r.db.Select(&reservations, query, requesterID); err != nil {
		return nil, fmt.Errorf("failed to list reservations by requester: %w", err)
	}
	return reservations, nil
}

// ListByCabana retrieves all non-terminal reservations for a cabana
func (r *ReservationRepository) ListByCabana(cabanaID string) ([]models.Reservation, error) {
	query := `
		SELECT ` + reservationColumns + `
		FROM reservations
		WHERE cabana_id = $1
		  AND status NOT IN ($2, $3)
		ORDER BY start_date
	`

	reservations := []models.Reservation{}
	err := r.db.Select(&reservations, query, cabanaID,
		models.ReservationStatusRejected, models.ReservationStatusCancelled)
	if err != nil {
		return nil, fmt.Errorf("failed to list reservations by cabana: %w", err)
	}
	return reservations, nil
}

// ListByStatus retrieves reservations in a given status, oldest first.
// Approvers use this as their pending queue.
func (r *ReservationRepository) ListByStatus(status models.ReservationStatus) ([]models.Reservation, error) {
	query := `
		SELECT ` + reservationColumns + `
		FROM reservations
		WHERE status = $1
		ORDER BY created_at
	`

	reservations := []models.Reservation{}
	if err := r.db.Select(&reservations, query, status); err != nil {
		return nil, fmt.Errorf("failed to list reservations by status: %w", err)
	}
	return reservations, nil
}

// CabanaIDsOccupiedOn returns the ids of cabanas with a committed reservation
// covering the given day. The reconciliation job compares this against the
// stored cabana statuses.
func (r *ReservationRepository) CabanaIDsOccupiedOn(day time.Time) ([]string, error) {
	query := `
		SELECT DISTINCT cabana_id
		FROM reservations
		WHERE status = ANY($1)
		  AND start_date <= $2
		  AND end_date > $2
	`

	committed := make([]string, len(models.CommittedStatuses))
	for i, s := range models.CommittedStatuses {
		committed[i] = string(s)
	}

	var cabanaIDs []string
	if err := r.db.Select(&cabanaIDs, query, pq.Array(committed), day); err != nil {
		return nil, fmt.Errorf("failed to query occupied cabanas: %w", err)
	}
	return cabanaIDs, nil
}

// execExpectingRow runs an update that must affect exactly one row
func (r *ReservationRepository) execExpectingRow(tx *sqlx.Tx, query string, args ...interface{}) error {
	result, err := tx.Exec(query, args...)
	if err != nil {
		return fmt.Errorf("failed to update reservation: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if rows == 0 {
		return models.NewNotFoundError("reservation", fmt.Sprintf("%v", args[0]))
	}

	return nil
}
