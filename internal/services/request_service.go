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
	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"
)

// RequestService drives the sub-request ledger: modification and cancellation
// requests raised against approved reservations, and the approver decisions
// that resolve them. A resolved request is immutable history; the outcome is
// applied to the parent reservation in the same transaction.
type RequestService struct {
	requests     *database.RequestRepository
	reservations *database.ReservationRepository
	cabanas      *database.CabanaRepository
	history      *database.StatusHistoryRepository
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

// NewRequestService creates a new RequestService
func NewRequestService(
	requests *database.RequestRepository,
	reservations *database.ReservationRepository,
	cabanas *database.CabanaRepository,
	history *database.StatusHistoryRepository,
	guests *database.GuestRepository,
	resolver *PriceResolver,
	notifier NotificationSink,
	mail mailer.EmailGateway,
	broadcaster Broadcaster,
	audit AuditSink,
	logger *logrus.Logger,
) *RequestService {
	return &RequestService{
		requests:     requests,
		reservations: reservations,
		cabanas:      cabanas,
		history:      history,
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

// RequestModification opens a modification request against the requester's
// own approved reservation and suspends it in modification_pending. The
// proposed changes are validated here; conflicts are checked only at approval.
func (s *RequestService) RequestModification(ctx context.Context, requesterID, reservationID string, req *models.CreateModificationRequest) (*models.ModificationRequest, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	request := &models.ModificationRequest{
		ReservationID: reservationID,
		RequesterID:   requesterID,
		NewCabanaID:   req.NewCabanaID,
		NewGuestName:  req.NewGuestName,
		Status:        models.RequestStatusPending,
	}

	if req.NewStartDate != nil {
		start, err := s.dates.ParseDate(*req.NewStartDate)
		if err != nil {
			return nil, models.NewValidationError("new_start_date", err.Error())
		}
		request.NewStartDate = &start
	}
	if req.NewEndDate != nil {
		end, err := s.dates.ParseDate(*req.NewEndDate)
		if err != nil {
			return nil, models.NewValidationError("new_end_date", err.Error())
		}
		request.NewEndDate = &end
	}

	if req.NewCabanaID != nil {
		cabana, err := s.cabanas.GetByID(*req.NewCabanaID)
		if err != nil {
			return nil, err
		}
		if cabana == nil {
			return nil, models.NewNotFoundError("cabana", *req.NewCabanaID)
		}
		if !cabana.IsOpenForReservation {
			return nil, models.NewValidationError("new_cabana_id", "cabana is not open for reservation")
		}
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
	if reservation.RequesterID != requesterID {
		return nil, models.NewValidationError("reservation_id", "only the reservation owner can request changes")
	}
	if reservation.Status != models.ReservationStatusApproved {
		return nil, models.NewStateError("reservation", reservationID,
			string(reservation.Status), string(models.ReservationStatusApproved))
	}

	// The proposed range must still be a valid half-open range once merged
	// with the current one
	start, end := mergedRange(reservation, request)
	if !end.After(start) {
		return nil, models.NewValidationError("new_end_date", "end date must be after start date")
	}

	if err := s.requests.InsertModification(tx, request); err != nil {
		return nil, err
	}

	if err := s.reservations.UpdateStatus(tx, reservationID, models.ReservationStatusModificationPending); err != nil {
		return nil, err
	}

	from := reservation.Status
	if err := s.history.Append(tx, &models.StatusHistoryEntry{
		ReservationID: reservationID,
		FromStatus:    &from,
		ToStatus:      models.ReservationStatusModificationPending,
		ActorID:       requesterID,
	}); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	metrics.IncTransition(string(models.ReservationStatusModificationPending))

	s.logger.WithFields(logrus.Fields{
		"reservation_id": reservationID,
		"request_id":     request.ID,
	}).Info("Modification requested")

	s.fireAndForget(func() error {
		return s.broadcaster.SendToRole("manager", "modification.requested", request)
	})

	return request, nil
}

// ResolveModification applies an approver's decision to a pending
// modification request.
//
// Rejection reverts the reservation to approved untouched. Approval re-runs
// the conflict guard against the proposed cabana and range, excluding the
// reservation itself, reprices the stay and applies the new fields, all in
// one serializable transaction. On conflict nothing is applied and the
// reservation stays in modification_pending so the requester can retry with
// different dates.
func (s *RequestService) ResolveModification(ctx context.Context, approverID, requestID string, req *models.ResolveRequest) (*models.ModificationRequest, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	now := time.Now().UTC()

	tx, err := s.reservations.BeginSerializableTx(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	request, err := s.requests.GetModificationForUpdate(tx, requestID)
	if err != nil {
		return nil, err
	}
	if request == nil {
		return nil, models.NewNotFoundError("modification request", requestID)
	}
	if request.Status != models.RequestStatusPending {
		return nil, models.NewStateError("modification request", requestID,
			string(request.Status), string(models.RequestStatusPending))
	}

	reservation, err := s.reservations.GetByIDForUpdate(tx, request.ReservationID)
	if err != nil {
		return nil, err
	}
	if reservation == nil {
		return nil, models.NewNotFoundError("reservation", request.ReservationID)
	}
	if reservation.Status != models.ReservationStatusModificationPending {
		return nil, models.NewStateError("reservation", request.ReservationID,
			string(reservation.Status), string(models.ReservationStatusModificationPending))
	}

	if !req.Approve {
		if err := s.rejectModification(tx, approverID, request, reservation, *req.Reason, now); err != nil {
			return nil, err
		}
	} else {
		if err := s.approveModification(tx, approverID, request, reservation, req.ManualPrice, now); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	metrics.IncTransition(string(models.ReservationStatusApproved))

	decision := "rejected"
	request.Status = models.RequestStatusRejected
	if req.Approve {
		decision = "approved"
		request.Status = models.RequestStatusApproved
	}
	request.ResolvedBy = &approverID
	request.ResolvedAt = &now
	request.RejectReason = req.Reason

	s.logger.WithFields(logrus.Fields{
		"request_id":     requestID,
		"reservation_id": request.ReservationID,
		"decision":       decision,
	}).Info("Modification request resolved")

	s.notifyResolution(reservation.RequesterID, approverID, "modification."+decision, request)

	return request, nil
}

// RequestCancellation opens a cancellation request against the requester's
// own approved reservation. The reservation is suspended in
// modification_pending until an approver decides.
func (s *RequestService) RequestCancellation(ctx context.Context, requesterID, reservationID string, req *models.CreateCancellationRequest) (*models.CancellationRequest, error) {
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
	if reservation.RequesterID != requesterID {
		return nil, models.NewValidationError("reservation_id", "only the reservation owner can request cancellation")
	}
	if reservation.Status != models.ReservationStatusApproved {
		return nil, models.NewStateError("reservation", reservationID,
			string(reservation.Status), string(models.ReservationStatusApproved))
	}

	request := &models.CancellationRequest{
		ReservationID: reservationID,
		RequesterID:   requesterID,
		Reason:        req.Reason,
		Status:        models.RequestStatusPending,
	}
	if err := s.requests.InsertCancellation(tx, request); err != nil {
		return nil, err
	}

	if err := s.reservations.UpdateStatus(tx, reservationID, models.ReservationStatusModificationPending); err != nil {
		return nil, err
	}

	from := reservation.Status
	if err := s.history.Append(tx, &models.StatusHistoryEntry{
		ReservationID: reservationID,
		FromStatus:    &from,
		ToStatus:      models.ReservationStatusModificationPending,
		ActorID:       requesterID,
		Reason:        &req.Reason,
	}); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	metrics.IncTransition(string(models.ReservationStatusModificationPending))

	s.logger.WithFields(logrus.Fields{
		"reservation_id": reservationID,
		"request_id":     request.ID,
	}).Info("Cancellation requested")

	s.fireAndForget(func() error {
		return s.broadcaster.SendToRole("manager", "cancellation.requested", request)
	})

	return request, nil
}

// ResolveCancellation applies an approver's decision to a pending
// cancellation request. Rejection reverts the reservation to approved;
// approval cancels it and frees the cabana.
func (s *RequestService) ResolveCancellation(ctx context.Context, approverID, requestID string, req *models.ResolveRequest) (*models.CancellationRequest, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	now := time.Now().UTC()

	tx, err := s.reservations.BeginSerializableTx(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	request, err := s.requests.GetCancellationForUpdate(tx, requestID)
	if err != nil {
		return nil, err
	}
	if request == nil {
		return nil, models.NewNotFoundError("cancellation request", requestID)
	}
	if request.Status != models.RequestStatusPending {
		return nil, models.NewStateError("cancellation request", requestID,
			string(request.Status), string(models.RequestStatusPending))
	}

	reservation, err := s.reservations.GetByIDForUpdate(tx, request.ReservationID)
	if err != nil {
		return nil, err
	}
	if reservation == nil {
		return nil, models.NewNotFoundError("reservation", request.ReservationID)
	}
	if reservation.Status != models.ReservationStatusModificationPending {
		return nil, models.NewStateError("reservation", request.ReservationID,
			string(reservation.Status), string(models.ReservationStatusModificationPending))
	}

	from := reservation.Status
	decision := "rejected"

	if !req.Approve {
		if err := s.requests.ResolveCancellation(tx, requestID, models.RequestStatusRejected, approverID, req.Reason, now); err != nil {
			return nil, err
		}
		if err := s.reservations.UpdateStatus(tx, request.ReservationID, models.ReservationStatusApproved); err != nil {
			return nil, err
		}
		if err := s.history.Append(tx, &models.StatusHistoryEntry{
			ReservationID: request.ReservationID,
			FromStatus:    &from,
			ToStatus:      models.ReservationStatusApproved,
			ActorID:       approverID,
			Reason:        req.Reason,
		}); err != nil {
			return nil, err
		}
	} else {
		decision = "approved"
		if err := s.requests.ResolveCancellation(tx, requestID, models.RequestStatusApproved, approverID, nil, now); err != nil {
			return nil, err
		}
		if err := s.reservations.UpdateStatus(tx, request.ReservationID, models.ReservationStatusCancelled); err != nil {
			return nil, err
		}
		if err := s.cabanas.UpdateStatusTx(tx, reservation.CabanaID, models.CabanaStatusAvailable); err != nil {
			return nil, err
		}
		if err := s.history.Append(tx, &models.StatusHistoryEntry{
			ReservationID: request.ReservationID,
			FromStatus:    &from,
			ToStatus:      models.ReservationStatusCancelled,
			ActorID:       approverID,
			Reason:        &request.Reason,
		}); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	if req.Approve {
		metrics.IncTransition(string(models.ReservationStatusCancelled))
	} else {
		metrics.IncTransition(string(models.ReservationStatusApproved))
	}

	request.Status = models.RequestStatusRejected
	if req.Approve {
		request.Status = models.RequestStatusApproved
	}
	request.ResolvedBy = &approverID
	request.ResolvedAt = &now
	request.RejectReason = req.Reason

	s.logger.WithFields(logrus.Fields{
		"request_id":     requestID,
		"reservation_id": request.ReservationID,
		"decision":       decision,
	}).Info("Cancellation request resolved")

	s.notifyResolution(reservation.RequesterID, approverID, "cancellation."+decision, request)
	if req.Approve {
		reservation.Status = models.ReservationStatusCancelled
		s.fireAndForget(func() error {
			return s.sendCancelledEmail(reservation, request.Reason)
		})
	}

	return request, nil
}

// ListPendingModifications returns the approver queue of modification requests
func (s *RequestService) ListPendingModifications() ([]models.ModificationRequest, error) {
	return s.requests.ListPendingModifications()
}

// ListPendingCancellations returns the approver queue of cancellation requests
func (s *RequestService) ListPendingCancellations() ([]models.CancellationRequest, error) {
	return s.requests.ListPendingCancellations()
}

// rejectModification reverts the reservation to approved and closes the
// request as rejected. The reservation keeps its previous fields and price.
func (s *RequestService) rejectModification(tx *sqlx.Tx, approverID string, request *models.ModificationRequest, reservation *models.Reservation, reason string, now time.Time) error {
	if err := s.requests.ResolveModification(tx, request.ID, models.RequestStatusRejected, approverID, &reason, now); err != nil {
		return err
	}
	if err := s.reservations.UpdateStatus(tx, request.ReservationID, models.ReservationStatusApproved); err != nil {
		return err
	}

	from := reservation.Status
	return s.history.Append(tx, &models.StatusHistoryEntry{
		ReservationID: request.ReservationID,
		FromStatus:    &from,
		ToStatus:      models.ReservationStatusApproved,
		ActorID:       approverID,
		Reason:        &reason,
	})
}

// approveModification re-runs the conflict guard against the proposed
// cabana/range, reprices, applies the new fields and flips cabana statuses
// when the cabana changed
func (s *RequestService) approveModification(tx *sqlx.Tx, approverID string, request *models.ModificationRequest, reservation *models.Reservation, manualPrice *float64, now time.Time) error {
	cabanaID := reservation.CabanaID
	if request.NewCabanaID != nil {
		cabanaID = *request.NewCabanaID
	}
	guestName := reservation.GuestName
	if request.NewGuestName != nil {
		guestName = *request.NewGuestName
	}
	start, end := mergedRange(reservation, request)

	err := s.reservations.CheckConflicts(tx, cabanaID, start, end, &reservation.ID)
	if err != nil {
		if _, ok := err.(*models.ConflictError); ok {
			metrics.IncConflict()
		}
		return err
	}

	totalPrice := 0.0
	if manualPrice != nil {
		totalPrice = *manualPrice
	} else {
		breakdown, err := s.resolver.CalculatePrice(cabanaID, reservation.ConceptID, start, end, nil)
		if err != nil {
			return err
		}
		totalPrice = breakdown.GrandTotal
	}

	if cabanaID != reservation.CabanaID {
		if err := s.cabanas.UpdateStatusTx(tx, reservation.CabanaID, models.CabanaStatusAvailable); err != nil {
			return err
		}
		if err := s.cabanas.UpdateStatusTx(tx, cabanaID, models.CabanaStatusReserved); err != nil {
			return err
		}
	}

	if err := s.reservations.ApplyModification(tx, reservation.ID, cabanaID, start, end, guestName, totalPrice); err != nil {
		return err
	}

	if err := s.requests.ResolveModification(tx, request.ID, models.RequestStatusApproved, approverID, nil, now); err != nil {
		return err
	}

	from := reservation.Status
	return s.history.Append(tx, &models.StatusHistoryEntry{
		ReservationID: reservation.ID,
		FromStatus:    &from,
		ToStatus:      models.ReservationStatusApproved,
		ActorID:       approverID,
	})
}

// notifyResolution runs the post-commit side effects of a sub-request decision
func (s *RequestService) notifyResolution(requesterID, approverID, event string, payload interface{}) {
	s.fireAndForget(func() error {
		return s.notifier.Notify(requesterID, event, "Request "+event,
			"Your request has been resolved", nil)
	})
	s.fireAndForget(func() error {
		return s.broadcaster.Broadcast(event, payload)
	})
	s.fireAndForget(func() error {
		return s.audit.LogAudit(approverID, event, "reservation_request", "", nil, payload)
	})
}

// sendCancelledEmail emails the linked guest that the cancellation was
// approved, when there is a guest with an address
func (s *RequestService) sendCancelledEmail(reservation *models.Reservation, reason string) error {
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

	return s.mail.SendCancelled(*guest.Email, data)
}

// fireAndForget runs a side effect in the background and logs its failure.
// The caller's response never waits on a sink.
func (s *RequestService) fireAndForget(fn func() error) {
	s.sideEffects.Add(1)
	go func() {
		defer s.sideEffects.Done()
		if err := fn(); err != nil {
			s.logger.WithError(err).Warn("Side effect failed")
		}
	}()
}

// WaitForSideEffects blocks until all in-flight side effects finish
func (s *RequestService) WaitForSideEffects() {
	s.sideEffects.Wait()
}

// mergedRange merges the request's proposed dates over the reservation's
// current ones
func mergedRange(reservation *models.Reservation, request *models.ModificationRequest) (time.Time, time.Time) {
	start := reservation.StartDate
	if request.NewStartDate != nil {
		start = *request.NewStartDate
	}
	end := reservation.EndDate
	if request.NewEndDate != nil {
		end = *request.NewEndDate
	}
	return start, end
}
