package services

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/cabanaresort/reservations-backend/internal/database"
	"github.com/sirupsen/logrus"
)

// AuditService writes the audit trail of reservation lifecycle actions to the
// audit_log table. It implements AuditSink; callers treat it as best effort.
type AuditService struct {
	db     database.DB
	logger *logrus.Logger
}

// NewAuditService creates a new audit service
func NewAuditService(db database.DB, logger *logrus.Logger) *AuditService {
	return &AuditService{db: db, logger: logger}
}

// LogAudit records one action. Old and new values are stored as JSONB
// snapshots; a nil value is stored as SQL NULL.
func (s *AuditService) LogAudit(actorID, action, entityType, entityID string, oldValue, newValue interface{}) error {
	oldJSON, err := marshalNullable(oldValue)
	if err != nil {
		return fmt.Errorf("failed to encode old value: %w", err)
	}
	newJSON, err := marshalNullable(newValue)
	if err != nil {
		return fmt.Errorf("failed to encode new value: %w", err)
	}

	query := `
		INSERT INTO audit_log (actor_id, action, entity_type, entity_id, old_value, new_value, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())
	`

	if _, err := s.db.Exec(query, actorID, action, entityType, entityID, oldJSON, newJSON); err != nil {
		return fmt.Errorf("failed to write audit log: %w", err)
	}

	return nil
}

// GetRecentActions retrieves the latest audit entries for an entity
func (s *AuditService) GetRecentActions(entityType, entityID string, limit int) ([]map[string]interface{}, error) {
	query := `
		SELECT actor_id, action, old_value, new_value, created_at
		FROM audit_log
		WHERE entity_type = $1 AND entity_id = $2
		ORDER BY created_at DESC
		LIMIT $3
	`

	rows, err := s.db.Query(query, entityType, entityID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get audit entries: %w", err)
	}
	defer rows.Close()

	entries := []map[string]interface{}{}
	for rows.Next() {
		var actorID, action string
		var oldValue, newValue []byte
		var createdAt time.Time

		if err := rows.Scan(&actorID, &action, &oldValue, &newValue, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan audit entry: %w", err)
		}

		entries = append(entries, map[string]interface{}{
			"actor_id":   actorID,
			"action":     action,
			"old_value":  json.RawMessage(oldValue),
			"new_value":  json.RawMessage(newValue),
			"created_at": createdAt,
		})
	}

	return entries, rows.Err()
}

// CleanupOldEntries removes audit entries older than the given duration and
// returns how many were deleted. Scheduled by the cron service.
func (s *AuditService) CleanupOldEntries(olderThan time.Duration) (int64, error) {
	cutoff := time.Now().Add(-olderThan)

	result, err := s.db.Exec(`DELETE FROM audit_log WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to cleanup audit log: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rows, nil
}

func marshalNullable(value interface{}) (interface{}, error) {
	if value == nil {
		return nil, nil
	}
	data, err := json.Marshal(value)
	if err != nil {
		return nil, err
	}
	return data, nil
}
