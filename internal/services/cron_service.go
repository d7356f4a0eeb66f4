package services

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

const auditRetention = 90 * 24 * time.Hour

// CronService manages scheduled background jobs
type CronService struct {
	cron           *cron.Cron
	reconciliation *ReconciliationService
	audit          *AuditService
	schedule       string
	logger         *logrus.Logger
}

// NewCronService creates a new CronService. The schedule uses six-field cron
// syntax with seconds.
func NewCronService(reconciliation *ReconciliationService, audit *AuditService, schedule string, logger *logrus.Logger) *CronService {
	return &CronService{
		cron:           cron.New(cron.WithSeconds()),
		reconciliation: reconciliation,
		audit:          audit,
		schedule:       schedule,
		logger:         logger,
	}
}

// Start schedules all jobs and starts the scheduler
func (s *CronService) Start() error {
	if _, err := s.cron.AddFunc(s.schedule, s.reconcileJob); err != nil {
		return fmt.Errorf("failed to schedule reconciliation job: %w", err)
	}
	s.logger.WithField("schedule", s.schedule).Info("Scheduled: cabana status reconciliation")

	// Audit cleanup weekly on Sunday at 4 AM
	if _, err := s.cron.AddFunc("0 0 4 * * 0", s.auditCleanupJob); err != nil {
		return fmt.Errorf("failed to schedule audit cleanup job: %w", err)
	}
	s.logger.Info("Scheduled: audit log cleanup (Sundays at 4:00 AM)")

	s.cron.Start()
	s.logger.Info("Cron service started")

	return nil
}

// Stop stops the scheduler and waits for running jobs to finish
func (s *CronService) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info("Cron service stopped")
}

func (s *CronService) reconcileJob() {
	started := time.Now()

	fixed, err := s.reconciliation.Reconcile()
	if err != nil {
		s.logger.WithError(err).Error("Reconciliation job failed")
		return
	}

	s.logger.WithFields(logrus.Fields{
		"fixed":    fixed,
		"duration": time.Since(started).String(),
	}).Info("Reconciliation job finished")
}

func (s *CronService) auditCleanupJob() {
	deleted, err := s.audit.CleanupOldEntries(auditRetention)
	if err != nil {
		s.logger.WithError(err).Error("Audit cleanup job failed")
		return
	}

	s.logger.WithField("deleted", deleted).Info("Audit cleanup job finished")
}
