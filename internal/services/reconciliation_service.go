package services

import (
	"time"

	"github.com/cabanaresort/reservations-backend/internal/database"
	"github.com/cabanaresort/reservations-backend/internal/models"
	"github.com/sirupsen/logrus"
)

// ReconciliationService repairs drift in the cabana status cache. The status
// column is flipped by the state machine and can drift after manual
// overrides; the nightly job re-derives it from committed reservations
// covering today and fixes mismatches. Closed cabanas are never touched.
type ReconciliationService struct {
	reservations *database.ReservationRepository
	cabanas      *database.CabanaRepository
	logger       *logrus.Logger
}

// NewReconciliationService creates a new ReconciliationService
func NewReconciliationService(reservations *database.ReservationRepository, cabanas *database.CabanaRepository, logger *logrus.Logger) *ReconciliationService {
	return &ReconciliationService{
		reservations: reservations,
		cabanas:      cabanas,
		logger:       logger,
	}
}

// Reconcile diffs stored statuses against occupancy for today and rewrites
// the ones that drifted. Returns the number of cabanas fixed.
func (s *ReconciliationService) Reconcile() (int, error) {
	now := time.Now().UTC()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	occupiedIDs, err := s.reservations.CabanaIDsOccupiedOn(today)
	if err != nil {
		return 0, err
	}
	occupied := make(map[string]bool, len(occupiedIDs))
	for _, id := range occupiedIDs {
		occupied[id] = true
	}

	statuses, err := s.cabanas.ListStatuses()
	if err != nil {
		return 0, err
	}

	fixed := 0
	for cabanaID, status := range statuses {
		want := models.CabanaStatusAvailable
		if occupied[cabanaID] {
			want = models.CabanaStatusReserved
		}
		if status == want {
			continue
		}

		if err := s.cabanas.UpdateStatus(cabanaID, want); err != nil {
			s.logger.WithError(err).WithField("cabana_id", cabanaID).Error("Failed to reconcile cabana status")
			continue
		}

		s.logger.WithFields(logrus.Fields{
			"cabana_id": cabanaID,
			"from":      status,
			"to":        want,
		}).Info("Reconciled cabana status")
		fixed++
	}

	return fixed, nil
}
