package database

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/cabanaresort/reservations-backend/internal/models"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// GuestRepository handles guest profiles and post-stay reviews
type GuestRepository struct {
	db *sqlx.DB
}

// NewGuestRepository creates a new GuestRepository
func NewGuestRepository(db *sqlx.DB) *GuestRepository {
	return &GuestRepository{db: db}
}

// Create registers a new guest profile
func (r *GuestRepository) Create(guest *models.Guest) error {
	query := `
		INSERT INTO guests (id, full_name, email, phone)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at, updated_at
	`

	if guest.ID == "" {
		guest.ID = uuid.New().String()
	}

	err := r.db.QueryRow(
		query,
		guest.ID, guest.FullName, guest.Email, guest.Phone,
	).Scan(&guest.CreatedAt, &guest.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create guest: %w", err)
	}

	return nil
}

// GetByID retrieves a guest by ID. Returns nil when not found.
func (r *GuestRepository) GetByID(id string) (*models.Guest, error) {
	query := `
		SELECT id, full_name, email, phone, visits, last_visit_at, created_at, updated_at
		FROM guests
		WHERE id = $1
	`

	var guest models.Guest
	err := r.db.Get(&guest, query, id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get guest: %w", err)
	}

	return &guest, nil
}

// IncrementVisit bumps the visit counter and last visit time inside the
// check-out transaction
func (r *GuestRepository) IncrementVisit(tx *sqlx.Tx, id string, at time.Time) error {
	query := `
		UPDATE guests
		SET visits = visits + 1, last_visit_at = $2, updated_at = NOW()
		WHERE id = $1
	`

	result, err := tx.Exec(query, id, at)
	if err != nil {
		return fmt.Errorf("failed to increment guest visits: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if rows == 0 {
		return models.NewNotFoundError("guest", id)
	}

	return nil
}

// InsertReview records a review for a checked-out reservation. The unique
// index on reservation_id enforces at most one.
func (r *GuestRepository) InsertReview(review *models.Review) error {
	query := `
		INSERT INTO reviews (id, reservation_id, rating, comment)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at
	`

	if review.ID == "" {
		review.ID = uuid.New().String()
	}

	err := r.db.QueryRow(
		query,
		review.ID, review.ReservationID, review.Rating, review.Comment,
	).Scan(&review.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert review: %w", err)
	}

	return nil
}

// GetReviewByReservation retrieves the review left for a reservation, if any
func (r *GuestRepository) GetReviewByReservation(reservationID string) (*models.Review, error) {
	query := `
		SELECT id, reservation_id, rating, comment, created_at
		FROM reviews
		WHERE reservation_id = $1
	`

	var review models.Review
	err := r.db.Get(&review, query, reservationID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get review: %w", err)
	}

	return &review, nil
}
