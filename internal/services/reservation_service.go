package services

import (
	"context"
	"sync"
	"time"

	"github.com/cabanaresort/reservations-backend/internal/database"
	"github.com/cabanaresort/reservations-backend/internal/metrics"
	"github.com/cabanaresort/reservations-backend/internal/models"
	"github.com/cabanaresort/reservations-backend/pkg/mailer"
	"github.com/cabanaresort/reservations-backend/pkg/validator"
	"github.com/sirupsen/logrus"
)

// ReservationService drives the reservation lifecycle. Every transition that
// touches a reservation row together with a cabana row, or that needs a
// conflict check, runs inside one serializable transaction; side effects
// (notifications, email, broadcast, audit) run only after the commit and
// never fail the transition.
type ReservationService struct {
	reservations *database.ReservationRepository
	cabanas      *database.CabanaRepository
	history      *database.StatusHistoryRepository
	extras       *database.ExtraItemRepository
	guests       *database.GuestRepository
	resolver     *PriceResolver
	dates        *validator.DateRangeValidator

	notifier    NotificationSink
	mail        mailer.EmailGateway
	broadcaster Broadcaster
	audit       AuditSink
	logger      *logrus.Logger

	sideEffects sync.WaitGroup
}

// NewReservationService creates a new ReservationService
func NewReservationService(
	reservations *database.ReservationRepository,
	cabanas *database.CabanaRepository,
	history *database.StatusHistoryRepository,
	extras *database.ExtraItemRepository,
	guests *database.GuestRepository,
	resolver *PriceResolver,
	notifier NotificationSink,
	mail mailer.EmailGateway,
	broadcaster Broadcaster,
	audit AuditSink,
	logger *logrus.Logger,
) *ReservationService {
	return &ReservationService{
		reservations: reservations,
		cabanas:      cabanas,
		history:      history,
		extras:       extras,
		guests:       guests,
		resolver:     resolver,
		dates:        validator.NewDateRangeValidator(),
		notifier:     notifier,
		mail:         mail,
		broadcaster:  broadcaster,
		audit:        audit,
		logger:       logger,
	}
}

// Create validates the request, checks for conflicts and inserts a pending
// reservation. The conflict check runs at creation to fail obviously
// unavailable ranges early, but pending reservations never block each other:
// two pending requests for the same range may coexist and only one can be
// approved.
func (s *ReservationService) Create(ctx context.Context, requesterID string, req *models.CreateReservationRequest) (*models.Reservation, error) {
	start, end, err := s.dates.ParseRange(req.StartDate, req.EndDate)
	if err != nil {
		return nil, models.NewValidationError("start_date", err.Error())
	}
	if err := s.dates.ValidateFuture(start); err != nil {
		return nil, models.NewValidationError("start_date", err.Error())
	}
	if req.GuestName == "" {
		return nil, models.NewValidationError("guest_name", "guest name is required")
	}

	cabana, err := s.cabanas.GetByID(req.CabanaID)
	if err != nil {
		return nil, err
	}
	if cabana == nil {
		return nil, models.NewNotFoundError("cabana", req.CabanaID)
	}
	if !cabana.IsOpenForReservation {
		return nil, models.NewValidationError("cabana_id", "cabana is not open for reservation")
	}

	if req.GuestID != nil {
		guest, err := s.guests.GetByID(*req.GuestID)
		if err != nil {
			return nil, err
		}
		if guest == nil {
			return nil, models.NewNotFoundError("guest", *req.GuestID)
		}
	}

	reservation := &models.Reservation{
		CabanaID:    req.CabanaID,
		RequesterID: requesterID,
		GuestName:   req.GuestName,
		GuestID:     req.GuestID,
		ConceptID:   req.ConceptID,
		StartDate:   start,
		EndDate:     end,
		Notes:       req.Notes,
		Status:      models.ReservationStatusPending,
	}

	started := time.Now()
	tx, err := s.reservations.BeginSerializableTx(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	if err := s.reservations.CheckConflicts(tx, req.CabanaID, start, end, nil); err != nil {
		s.recordConflict(err)
		return nil, err
	}

	if err := s.reservations.Insert(tx, reservation); err != nil {
		return nil, err
	}

	if err := s.history.Append(tx, &models.StatusHistoryEntry{
		ReservationID: reservation.ID,
		FromStatus:    nil,
		ToStatus:      models.ReservationStatusPending,
		ActorID:       requesterID,
	}); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	metrics.ObserveTransaction(time.Since(started))
	metrics.IncCreated()

	s.logger.WithFields(logrus.Fields{
		"reservation_id": reservation.ID,
		"cabana_id":      reservation.CabanaID,
		"start_date":     start.Format(validator.DateLayout),
		"end_date":       end.Format(validator.DateLayout),
	}).Info("Reservation created")

	s.fireAndForget(func() error {
		return s.broadcaster.SendToRole("manager", "reservation.created", reservation)
	})
	s.fireAndForget(func() error {
		return s.audit.LogAudit(requesterID, "reservation.create", "reservation", reservation.ID, nil, reservation)
	})

	return reservation, nil
}

// Approve moves a pending reservation to approved, prices it and flips the
// cabana to reserved. The conflict guard runs again here, excluding the
// reservation itself: when two pending requests raced for the same range,
// the second approval fails with a conflict.
func (s *ReservationService) Approve(ctx context.Context, approverID, reservationID string, req *models.ApproveReservationRequest) (*models.Reservation, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	started := time.Now()
	tx, err := s.reservations.BeginSerializableTx(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	reservation, err := s.reservations.GetByIDForUpdate(tx, reservationID)
	if err != nil {
		return nil, err
	}
	if reservation == nil {
		return nil, models.NewNotFoundError("reservation", reservationID)
	}
	if reservation.Status != models.ReservationStatusPending {
		return nil, models.NewStateError("reservation", reservationID,
			string(reservation.Status), string(models.ReservationStatusPending))
	}

	err = s.reservations.CheckConflicts(tx, reservation.CabanaID, reservation.StartDate, reservation.EndDate, &reservation.ID)
	if err != nil {
		s.recordConflict(err)
		return nil, err
	}

	totalPrice, err := s.resolvePrice(reservation, req.ManualPrice)
	if err != nil {
		return nil, err
	}

	if err := s.reservations.SetApproved(tx, reservationID, totalPrice); err != nil {
		return nil, err
	}

	from := reservation.Status
	if err := s.history.Append(tx, &models.StatusHistoryEntry{
		ReservationID: reservationID,
		FromStatus:    &from,
		ToStatus:      models.ReservationStatusApproved,
		ActorID:       approverID,
	}); err != nil {
		return nil, err
	}

	if err := s.cabanas.UpdateStatusTx(tx, reservation.CabanaID, models.CabanaStatusReserved); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	metrics.ObserveTransaction(time.Since(started))
	metrics.IncTransition(string(models.ReservationStatusApproved))

	old := *reservation
	reservation.Status = models.ReservationStatusApproved
	reservation.TotalPrice = &totalPrice

	s.logger.WithFields(logrus.Fields{
		"reservation_id": reservationID,
		"total_price":    totalPrice,
	}).Info("Reservation approved")

	s.notifyDecision(reservation, &old, approverID, "approved", "")

	return reservation, nil
}

// Reject moves a pending reservation to rejected with a mandatory reason.
// The cabana status is untouched: it was never flipped for a pending request.
func (s *ReservationService) Reject(ctx context.Context, approverID, reservationID string, req *models.RejectReservationRequest) (*models.Reservation, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	tx, err := s.reservations.BeginSerializableTx(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	reservation, err := s.reservations.GetByIDForUpdate(tx, reservationID)
	if err != nil {
		return nil, err
	}
	if reservation == nil {
		return nil, models.NewNotFoundError("reservation", reservationID)
	}
	if reservation.Status != models.ReservationStatusPending {
		return nil, models.NewStateError("reservation", reservationID,
			string(reservation.Status), string(models.ReservationStatusPending))
	}

	if err := s.reservations.SetRejected(tx, reservationID, req.Reason); err != nil {
		return nil, err
	}

	from := reservation.Status
	if err := s.history.Append(tx, &models.StatusHistoryEntry{
		ReservationID: reservationID,
		FromStatus:    &from,
		ToStatus:      models.ReservationStatusRejected,
		ActorID:       approverID,
		Reason:        &req.Reason,
	}); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	metrics.IncTransition(string(models.ReservationStatusRejected))

	old := *reservation
	reservation.Status = models.ReservationStatusRejected
	reservation.RejectionReason = &req.Reason

	s.logger.WithFields(logrus.Fields{
		"reservation_id": reservationID,
		"reason":         req.Reason,
	}).Info("Reservation rejected")

	s.notifyDecision(reservation, &old, approverID, "rejected", req.Reason)

	return reservation, nil
}

// CheckIn stamps the arrival on an approved reservation
func (s *ReservationService) CheckIn(ctx context.Context, actorID, reservationID string) (*models.Reservation, error) {
	now := time.Now().UTC()

	tx, err := s.reservations.BeginSerializableTx(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	reservation, err := s.reservations.GetByIDForUpdate(tx, reservationID)
	if err != nil {
		return nil, err
	}
	if reservation == nil {
		return nil, models.NewNotFoundError("reservation", reservationID)
	}
	if reservation.Status != models.ReservationStatusApproved {
		return nil, models.NewStateError("reservation", reservationID,
			string(reservation.Status), string(models.ReservationStatusApproved))
	}

	if err := s.reservations.SetCheckedIn(tx, reservationID, actorID, now); err != nil {
		return nil, err
	}

	from := reservation.Status
	if err := s.history.Append(tx, &models.StatusHistoryEntry{
		ReservationID: reservationID,
		FromStatus:    &from,
		ToStatus:      models.ReservationStatusCheckedIn,
		ActorID:       actorID,
	}); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	metrics.IncTransition(string(models.ReservationStatusCheckedIn))

	reservation.Status = models.ReservationStatusCheckedIn
	reservation.CheckedInAt = &now
	reservation.CheckedInBy = &actorID

	s.logger.WithField("reservation_id", reservationID).Info("Guest checked in")

	s.fireAndForget(func() error {
		return s.broadcaster.Broadcast("reservation.checked_in", reservation)
	})

	return reservation, nil
}

// CheckOut stamps the departure, frees the cabana and bumps the linked
// guest's visit counter
func (s *ReservationService) CheckOut(ctx context.Context, actorID, reservationID string) (*models.Reservation, error) {
	now := time.Now().UTC()

	tx, err := s.reservations.BeginSerializableTx(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	reservation, err := s.reservations.GetByIDForUpdate(tx, reservationID)
	if err != nil {
		return nil, err
	}
	if reservation == nil {
		return nil, models.NewNotFoundError("reservation", reservationID)
	}
	if reservation.Status != models.ReservationStatusCheckedIn {
		return nil, models.NewStateError("reservation", reservationID,
			string(reservation.Status), string(models.ReservationStatusCheckedIn))
	}

	if err := s.reservations.SetCheckedOut(tx, reservationID, actorID, now); err != nil {
		return nil, err
	}

	from := reservation.Status
	if err := s.history.Append(tx, &models.StatusHistoryEntry{
		ReservationID: reservationID,
		FromStatus:    &from,
		ToStatus:      models.ReservationStatusCheckedOut,
		ActorID:       actorID,
	}); err != nil {
		return nil, err
	}

	if err := s.cabanas.UpdateStatusTx(tx, reservation.CabanaID, models.CabanaStatusAvailable); err != nil {
		return nil, err
	}

	if reservation.GuestID != nil {
		if err := s.guests.IncrementVisit(tx, *reservation.GuestID, now); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	metrics.IncTransition(string(models.ReservationStatusCheckedOut))

	reservation.Status = models.ReservationStatusCheckedOut
	reservation.CheckedOutAt = &now
	reservation.CheckedOutBy = &actorID

	s.logger.WithField("reservation_id", reservationID).Info("Guest checked out")

	s.fireAndForget(func() error {
		return s.broadcaster.Broadcast("reservation.checked_out", reservation)
	})
	s.fireAndForget(func() error {
		return s.audit.LogAudit(actorID, "reservation.check_out", "reservation", reservationID, nil, reservation)
	})

	return reservation, nil
}

// AddExtraItems attaches extras to an approved reservation at snapshotted
// unit prices and recomputes the total. The extras component of the total is
// replaced wholesale on every addition: base price plus the full current
// extras sum, never an increment on top of a previous increment.
func (s *ReservationService) AddExtraItems(ctx context.Context, actorID, reservationID string, req *models.AddExtraItemsRequest) (*models.Reservation, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	items, err := s.resolver.SnapshotExtras(reservationID, actorID, req.Items)
	if err != nil {
		return nil, err
	}

	tx, err := s.reservations.BeginSerializableTx(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	reservation, err := s.reservations.GetByIDForUpdate(tx, reservationID)
	if err != nil {
		return nil, err
	}
	if reservation == nil {
		return nil, models.NewNotFoundError("reservation", reservationID)
	}
	if reservation.Status != models.ReservationStatusApproved {
		return nil, models.NewStateError("reservation", reservationID,
			string(reservation.Status), string(models.ReservationStatusApproved))
	}

	previousExtras, err := s.extras.SumForReservationTx(tx, reservationID)
	if err != nil {
		return nil, err
	}

	if err := s.extras.InsertMany(tx, items); err != nil {
		return nil, err
	}

	currentExtras, err := s.extras.SumForReservationTx(tx, reservationID)
	if err != nil {
		return nil, err
	}

	previousTotal := 0.0
	if reservation.TotalPrice != nil {
		previousTotal = *reservation.TotalPrice
	}
	newTotal := (previousTotal - previousExtras) + currentExtras

	if err := s.reservations.UpdateTotalPrice(tx, reservationID, newTotal); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	reservation.TotalPrice = &newTotal

	s.logger.WithFields(logrus.Fields{
		"reservation_id": reservationID,
		"items":          len(items),
		"total_price":    newTotal,
	}).Info("Extra items added")

	s.fireAndForget(func() error {
		return s.audit.LogAudit(actorID, "reservation.add_extras", "reservation", reservationID, previousTotal, newTotal)
	})

	return reservation, nil
}

// LeaveReview records a guest review against a checked-out reservation.
// Not a status transition: the reservation stays checked out.
func (s *ReservationService) LeaveReview(reservationID string, req *models.CreateReviewRequest) (*models.Review, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	reservation, err := s.reservations.GetByID(reservationID)
	if err != nil {
		return nil, err
	}
	if reservation == nil {
		return nil, models.NewNotFoundError("reservation", reservationID)
	}
	if reservation.Status != models.ReservationStatusCheckedOut {
		return nil, models.NewStateError("reservation", reservationID,
			string(reservation.Status), string(models.ReservationStatusCheckedOut))
	}

	existing, err := s.guests.GetReviewByReservation(reservationID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, models.NewValidationError("reservation_id", "reservation already has a review")
	}

	review := &models.Review{
		ReservationID: reservationID,
		Rating:        req.Rating,
		Comment:       req.Comment,
	}
	if err := s.guests.InsertReview(review); err != nil {
		return nil, err
	}

	return review, nil
}

// GetByID retrieves a reservation
func (s *ReservationService) GetByID(id string) (*models.Reservation, error) {
	reservation, err := s.reservations.GetByID(id)
	if err != nil {
		return nil, err
	}
	if reservation == nil {
		return nil, models.NewNotFoundError("reservation", id)
	}
	return reservation, nil
}

// ListByRequester retrieves a requester's reservations
func (s *ReservationService) ListByRequester(requesterID string) ([]models.Reservation, error) {
	return s.reservations.ListByRequester(requesterID)
}

// ListPending retrieves the approver queue
func (s *ReservationService) ListPending() ([]models.Reservation, error) {
	return s.reservations.ListByStatus(models.ReservationStatusPending)
}

// GetHistory retrieves a reservation's status transitions in commit order
func (s *ReservationService) GetHistory(reservationID string) ([]models.StatusHistoryEntry, error) {
	return s.history.ListByReservation(reservationID)
}

// ListExtras retrieves a reservation's extras
func (s *ReservationService) ListExtras(reservationID string) ([]models.ExtraItem, error) {
	return s.extras.ListByReservation(reservationID)
}

// resolvePrice returns the manual price when the approver supplied one and
// the computed breakdown total otherwise
func (s *ReservationService) resolvePrice(reservation *models.Reservation, manualPrice *float64) (float64, error) {
	if manualPrice != nil {
		return *manualPrice, nil
	}

	breakdown, err := s.resolver.CalculatePrice(
		reservation.CabanaID, reservation.ConceptID,
		reservation.StartDate, reservation.EndDate, nil)
	if err != nil {
		return 0, err
	}
	return breakdown.GrandTotal, nil
}

// notifyDecision runs the post-commit side effects of an approve/reject/cancel
// decision: notify the requester, email the guest, broadcast and audit.
func (s *ReservationService) notifyDecision(reservation, old *models.Reservation, actorID, decision, reason string) {
	s.fireAndForget(func() error {
		return s.notifier.Notify(reservation.RequesterID, "reservation."+decision,
			"Reservation "+decision,
			"Your reservation for "+reservation.GuestName+" has been "+decision,
			map[string]interface{}{"reservation_id": reservation.ID})
	})

	s.fireAndForget(func() error {
		return s.broadcaster.Broadcast("reservation."+decision, reservation)
	})

	s.fireAndForget(func() error {
		return s.audit.LogAudit(actorID, "reservation."+decision, "reservation", reservation.ID, old, reservation)
	})

	s.fireAndForget(func() error {
		return s.sendDecisionEmail(reservation, decision, reason)
	})
}

// sendDecisionEmail emails the linked guest, when there is one with an address
func (s *ReservationService) sendDecisionEmail(reservation *models.Reservation, decision, reason string) error {
	if reservation.GuestID == nil {
		return nil
	}
	guest, err := s.guests.GetByID(*reservation.GuestID)
	if err != nil {
		return err
	}
	if guest == nil || guest.Email == nil {
		return nil
	}

	cabanaName := reservation.CabanaID
	if cabana, err := s.cabanas.GetByID(reservation.CabanaID); err == nil && cabana != nil {
		cabanaName = cabana.Name
	}

	data := mailer.TemplateData{
		GuestName:  reservation.GuestName,
		CabanaName: cabanaName,
		StartDate:  reservation.StartDate.Format(validator.DateLayout),
		EndDate:    reservation.EndDate.Format(validator.DateLayout),
		Reason:     reason,
	}
	if reservation.TotalPrice != nil {
		data.TotalPrice = *reservation.TotalPrice
	}

	switch decision {
	case "approved":
		return s.mail.SendApproved(*guest.Email, data)
	case "rejected":
		return s.mail.SendRejected(*guest.Email, data)
	case "cancelled":
		return s.mail.SendCancelled(*guest.Email, data)
	}
	return nil
}

// fireAndForget runs a side effect in the background and logs its failure.
// The caller's response never waits on a sink: the transition already
// committed, and a slow mail or broadcast backend must not stall it.
func (s *ReservationService) fireAndForget(fn func() error) {
	s.sideEffects.Add(1)
	go func() {
		defer s.sideEffects.Done()
		if err := fn(); err != nil {
			s.logger.WithError(err).Warn("Side effect failed")
		}
	}()
}

// WaitForSideEffects blocks until all in-flight side effects finish. Called
// on shutdown so pending notifications are not dropped.
func (s *ReservationService) WaitForSideEffects() {
	s.sideEffects.Wait()
}

// recordConflict bumps the conflict counter for conflict guard rejections
func (s *ReservationService) recordConflict(err error) {
	if _, ok := err.(*models.ConflictError); ok {
		metrics.IncConflict()
	}
}
