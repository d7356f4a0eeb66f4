package database

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/cabanaresort/reservations-backend/internal/models"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// RequestRepository handles the sub-request ledger: modification and
// cancellation requests raised against approved reservations. Resolved
// requests are immutable history.
type RequestRepository struct {
	db *sqlx.DB
}

// NewRequestRepository creates a new RequestRepository
func NewRequestRepository(db *sqlx.DB) *RequestRepository {
	return &RequestRepository{db: db}
}

const modificationColumns = `
	id, reservation_id, requester_id, new_cabana_id, new_start_date,
	new_end_date, new_guest_name, status, resolved_by, resolved_at,
	reject_reason, created_at`

const cancellationColumns = `
	id, reservation_id, requester_id, reason, status, resolved_by,
	resolved_at, reject_reason, created_at`

// InsertModification inserts a pending modification request inside the
// transaction that suspends the parent reservation
func (r *RequestRepository) InsertModification(tx *sqlx.Tx, req *models.ModificationRequest) error {
	query := `
		INSERT INTO modification_requests (
			id, reservation_id, requester_id, new_cabana_id,
			new_start_date, new_end_date, new_guest_name, status
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at
	`

	if req.ID == "" {
		req.ID = uuid.New().String()
	}

	err := tx.QueryRow(
		query,
		req.ID, req.ReservationID, req.RequesterID, req.NewCabanaID,
		req.NewStartDate, req.NewEndDate, req.NewGuestName, req.Status,
	).Scan(&req.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert modification request: %w", err)
	}

	return nil
}

// InsertCancellation inserts a pending cancellation request inside the
// transaction that suspends the parent reservation
func (r *RequestRepository) InsertCancellation(tx *sqlx.Tx, req *models.CancellationRequest) error {
	query := `
		INSERT INTO cancellation_requests (
			id, reservation_id, requester_id, reason, status
		) VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at
	`

	if req.ID == "" {
		req.ID = uuid.New().String()
	}

	err := tx.QueryRow(
		query,
		req.ID, req.ReservationID, req.RequesterID, req.Reason, req.Status,
	).Scan(&req.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert cancellation request: %w", err)
	}

	return nil
}

// GetModificationByID retrieves a modification request. Returns nil when not found.
func (r *RequestRepository) GetModificationByID(id string) (*models.ModificationRequest, error) {
	query := `SELECT ` + modificationColumns + ` FROM modification_requests WHERE id = $1`

	var req models.ModificationRequest
	err := r.db.Get(&req, query, id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get modification request: %w", err)
	}

	return &req, nil
}

// GetModificationForUpdate locks and retrieves a modification request inside
// the given transaction
func (r *RequestRepository) GetModificationForUpdate(tx *sqlx.Tx, id string) (*models.ModificationRequest, error) {
	query := `SELECT ` + modificationColumns + ` FROM modification_requests WHERE id = $1 FOR UPDATE`

	var req models.ModificationRequest
	err := tx.Get(&req, query, id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to lock modification request: %w", err)
	}

	return &req, nil
}

// GetCancellationByID retrieves a cancellation request. Returns nil when not found.
func (r *RequestRepository) GetCancellationByID(id string) (*models.CancellationRequest, error) {
	query := `SELECT ` + cancellationColumns + ` FROM cancellation_requests WHERE id = $1`

	var req models.CancellationRequest
	err := r.db.Get(&req, query, id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get cancellation request: %w", err)
	}

	return &req, nil
}

// GetCancellationForUpdate locks and retrieves a cancellation request inside
// the given transaction
func (r *RequestRepository) GetCancellationForUpdate(tx *sqlx.Tx, id string) (*models.CancellationRequest, error) {
	query := `SELECT ` + cancellationColumns + ` FROM cancellation_requests WHERE id = $1 FOR UPDATE`

	var req models.CancellationRequest
	err := tx.Get(&req, query, id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to lock cancellation request: %w", err)
	}

	return &req, nil
}

// GetPendingModificationForReservation returns the reservation's pending
// modification request, if any. At most one can be pending at a time.
func (r *RequestRepository) GetPendingModificationForReservation(reservationID string) (*models.ModificationRequest, error) {
	query := `
		SELECT ` + modificationColumns + `
		FROM modification_requests
		WHERE reservation_id = $1 AND status = $2
	`

	var req models.ModificationRequest
	err := r.db.Get(&req, query, reservationID, models.RequestStatusPending)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get pending modification: %w", err)
	}

	return &req, nil
}

// GetPendingCancellationForReservation returns the reservation's pending
// cancellation request, if any
func (r *RequestRepository) GetPendingCancellationForReservation(reservationID string) (*models.CancellationRequest, error) {
	query := `
		SELECT ` + cancellationColumns + `
		FROM cancellation_requests
		WHERE reservation_id = $1 AND status = $2
	`

	var req models.CancellationRequest
	err := r.db.Get(&req, query, reservationID, models.RequestStatusPending)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get pending cancellation: %w", err)
	}

	return &req, nil
}

// ResolveModification marks a modification request approved or rejected.
// The request must still be pending; the status guard runs in the same
// statement as the write.
func (r *RequestRepository) ResolveModification(tx *sqlx.Tx, id string, status models.RequestStatus, resolvedBy string, rejectReason *string, at time.Time) error {
	query := `
		UPDATE modification_requests
		SET status = $2, resolved_by = $3, reject_reason = $4, resolved_at = $5
		WHERE id = $1 AND status = $6
	`

	result, err := tx.Exec(query, id, status, resolvedBy, rejectReason, at, models.RequestStatusPending)
	if err != nil {
		return fmt.Errorf("failed to resolve modification request: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if rows == 0 {
		return models.NewStateError("modification request", id, "resolved", string(models.RequestStatusPending))
	}

	return nil
}

// ResolveCancellation marks a cancellation request approved or rejected
func (r *RequestRepository) ResolveCancellation(tx *sqlx.Tx, id string, status models.RequestStatus, resolvedBy string, rejectReason *string, at time.Time) error {
	query := `
		UPDATE cancellation_requests
		SET status = $2, resolved_by = $3, reject_reason = $4, resolved_at = $5
		WHERE id = $1 AND status = $6
	`

	result, err := tx.Exec(query, id, status, resolvedBy, rejectReason, at, models.RequestStatusPending)
	if err != nil {
		return fmt.Errorf("failed to resolve cancellation request: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if rows == 0 {
		return models.NewStateError("cancellation request", id, "resolved", string(models.RequestStatusPending))
	}

	return nil
}

// ListPendingModifications returns the approver queue of open modification requests
func (r *RequestRepository) ListPendingModifications() ([]models.ModificationRequest, error) {
	query := `
		SELECT ` + modificationColumns + `
		FROM modification_requests
		WHERE status = $1
		ORDER BY created_at
	`

	requests := []models.ModificationRequest{}
	if err := r.db.Select(&requests, query, models.RequestStatusPending); err != nil {
		return nil, fmt.Errorf("failed to list pending modifications: %w", err)
	}
	return requests, nil
}

// ListPendingCancellations returns the approver queue of open cancellation requests
func (r *RequestRepository) ListPendingCancellations() ([]models.CancellationRequest, error) {
	query := `
		SELECT ` + cancellationColumns + `
		FROM cancellation_requests
		WHERE status = $1
		ORDER BY created_at
	`

	requests := []models.CancellationRequest{}
	if err := r.db.Select(&requests, query, models.RequestStatusPending); err != nil {
		return nil, fmt.Errorf("failed to list pending cancellations: %w", err)
	}
	return requests, nil
}
