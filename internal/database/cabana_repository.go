package database

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/cabanaresort/reservations-backend/internal/models"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

const cabanaColumns = `
	id, name, class, concept_id, status, is_open_for_reservation,
	position_x, position_y, created_at, updated_at`

// CabanaRepository handles database operations for the cabanas table.
// The status column is a cache owned by the reservation state machine; status
// flips happen only through the *Tx methods inside the state machine's
// transactions, or through the reconciliation job.
type CabanaRepository struct {
	db *sqlx.DB
}

// NewCabanaRepository creates a new CabanaRepository
func NewCabanaRepository(db *sqlx.DB) *CabanaRepository {
	return &CabanaRepository{db: db}
}

// Create registers a new cabana, available and open for reservation
func (r *CabanaRepository) Create(cabana *models.Cabana) error {
	query := `
		INSERT INTO cabanas (
			id, name, class, concept_id, status, is_open_for_reservation,
			position_x, position_y
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at, updated_at
	`

	if cabana.ID == "" {
		cabana.ID = uuid.New().String()
	}
	if cabana.Status == "" {
		cabana.Status = models.CabanaStatusAvailable
	}

	err := r.db.QueryRow(
		query,
		cabana.ID, cabana.Name, cabana.Class, cabana.ConceptID,
		cabana.Status, cabana.IsOpenForReservation,
		cabana.PositionX, cabana.PositionY,
	).Scan(&cabana.CreatedAt, &cabana.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create cabana: %w", err)
	}

	return nil
}

// GetByID retrieves a cabana by ID. Returns nil when not found.
func (r *CabanaRepository) GetByID(id string) (*models.Cabana, error) {
	query := `SELECT ` + cabanaColumns + ` FROM cabanas WHERE id = $1`

	var cabana models.Cabana
	err := r.db.Get(&cabana, query, id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get cabana: %w", err)
	}

	return &cabana, nil
}

// GetByName retrieves a cabana by its unique name. Returns nil when not found.
func (r *CabanaRepository) GetByName(name string) (*models.Cabana, error) {
	query := `SELECT ` + cabanaColumns + ` FROM cabanas WHERE name = $1`

	var cabana models.Cabana
	err := r.db.Get(&cabana, query, name)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get cabana by name: %w", err)
	}

	return &cabana, nil
}

// List retrieves all cabanas ordered by name
func (r *CabanaRepository) List() ([]models.Cabana, error) {
	query := `SELECT ` + cabanaColumns + ` FROM cabanas ORDER BY name`

	cabanas := []models.Cabana{}
	if err := r.db.Select(&cabanas, query); err != nil {
		return nil, fmt.Errorf("failed to list cabanas: %w", err)
	}
	return cabanas, nil
}

// ListAvailableForRange retrieves the open cabanas with no committed
// reservation overlapping [start, end). A read-side preview only; the
// conflict guard remains the authority at booking time.
func (r *CabanaRepository) ListAvailableForRange(start, end time.Time) ([]models.Cabana, error) {
	query := `
		SELECT ` + cabanaColumns + `
		FROM cabanas c
		WHERE c.is_open_for_reservation = true
		  AND c.status != $1
		  AND NOT EXISTS (
			SELECT 1
			FROM reservations r
			WHERE r.cabana_id = c.id
			  AND r.status = ANY($2)
			  AND r.start_date < $4
			  AND r.end_date > $3
		  )
		ORDER BY name
	`

	committed := make([]string, len(models.CommittedStatuses))
	for i, s := range models.CommittedStatuses {
		committed[i] = string(s)
	}

	cabanas := []models.Cabana{}
	err := r.db.Select(&cabanas, query, models.CabanaStatusClosed, pq.Array(committed), start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to list available cabanas: %w", err)
	}
	return cabanas, nil
}

// Update applies a partial update to a cabana
func (r *CabanaRepository) Update(id string, req *models.UpdateCabanaRequest) error {
	query := `
		UPDATE cabanas
		SET name = COALESCE($2, name),
			class = COALESCE($3, class),
			concept_id = COALESCE($4, concept_id),
			is_open_for_reservation = COALESCE($5, is_open_for_reservation),
			position_x = COALESCE($6, position_x),
			position_y = COALESCE($7, position_y),
			updated_at = NOW()
		WHERE id = $1
	`

	result, err := r.db.Exec(query, id, req.Name, req.Class, req.ConceptID,
		req.IsOpenForReservation, req.PositionX, req.PositionY)
	if err != nil {
		return fmt.Errorf("failed to update cabana: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if rows == 0 {
		return models.NewNotFoundError("cabana", id)
	}

	return nil
}

// UpdateStatusTx flips the cabana occupancy status inside the state machine's
// transaction. Never called outside one: a status flip without the matching
// reservation write is a correctness bug.
func (r *CabanaRepository) UpdateStatusTx(tx *sqlx.Tx, id string, status models.CabanaStatus) error {
	query := `
		UPDATE cabanas
		SET status = $2, updated_at = NOW()
		WHERE id = $1
	`

	result, err := tx.Exec(query, id, status)
	if err != nil {
		return fmt.Errorf("failed to update cabana status: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if rows == 0 {
		return models.NewNotFoundError("cabana", id)
	}

	return nil
}

// UpdateStatus flips the cabana occupancy status outside a transaction.
// Reserved for the reconciliation job.
func (r *CabanaRepository) UpdateStatus(id string, status models.CabanaStatus) error {
	query := `
		UPDATE cabanas
		SET status = $2, updated_at = NOW()
		WHERE id = $1
	`

	if _, err := r.db.Exec(query, id, status); err != nil {
		return fmt.Errorf("failed to update cabana status: %w", err)
	}
	return nil
}

// ListStatuses returns id → status for every cabana not closed. The
// reconciliation job diffs this against committed reservations.
func (r *CabanaRepository) ListStatuses() (map[string]models.CabanaStatus, error) {
	query := `SELECT id, status FROM cabanas WHERE status != $1`

	rows, err := r.db.Query(query, models.CabanaStatusClosed)
	if err != nil {
		return nil, fmt.Errorf("failed to list cabana statuses: %w", err)
	}
	defer rows.Close()

	statuses := make(map[string]models.CabanaStatus)
	for rows.Next() {
		var id string
		var status models.CabanaStatus
		if err := rows.Scan(&id, &status); err != nil {
			return nil, fmt.Errorf("failed to scan cabana status: %w", err)
		}
		statuses[id] = status
	}

	return statuses, rows.Err()
}
