package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cabanaresort/reservations-backend/internal/database"
	"github.com/cabanaresort/reservations-backend/internal/models"
	"github.com/cabanaresort/reservations-backend/pkg/mailer"
)

// stubAudit records audit calls without touching a database. Side effects run
// on background goroutines, so access is guarded.
type stubAudit struct {
	mu      sync.Mutex
	actions []string
}

func (a *stubAudit) LogAudit(actorID, action, entityType, entityID string, oldValue, newValue interface{}) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.actions = append(a.actions, action)
	return nil
}

func (a *stubAudit) recorded() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.actions...)
}

type reservationFixture struct {
	mock    sqlmock.Sqlmock
	catalog *stubCatalog
	audit   *stubAudit
	service *ReservationService
}

func newReservationFixture(t *testing.T) *reservationFixture {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	sqlxDB := sqlx.NewDb(db, "sqlmock")

	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)

	catalog := &stubCatalog{}
	audit := &stubAudit{}
	resolver := NewPriceResolver(catalog, logger)

	service := NewReservationService(
		database.NewReservationRepository(sqlxDB, 12*time.Second),
		database.NewCabanaRepository(sqlxDB),
		database.NewStatusHistoryRepository(sqlxDB),
		database.NewExtraItemRepository(sqlxDB),
		database.NewGuestRepository(sqlxDB),
		resolver,
		NewLogNotifier(logger),
		mailer.NewLogGateway(logger),
		&NoopBroadcaster{},
		audit,
		logger,
	)

	return &reservationFixture{mock: mock, catalog: catalog, audit: audit, service: service}
}

var reservationTestColumns = []string{
	"id", "cabana_id", "requester_id", "guest_name", "guest_id", "concept_id",
	"start_date", "end_date", "notes", "status", "total_price", "rejection_reason",
	"checked_in_at", "checked_in_by", "checked_out_at", "checked_out_by",
	"created_at", "updated_at",
}

func reservationRow(id string, status models.ReservationStatus, totalPrice interface{}, guestID interface{}) *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows(reservationTestColumns).AddRow(
		id, "cab-1", "req-1", "Jane Doe", guestID, nil,
		day("2030-07-01"), day("2030-07-04"), nil, status, totalPrice, nil,
		nil, nil, nil, nil,
		now, now,
	)
}

func cabanaRow(id string, open bool) *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows([]string{
		"id", "name", "class", "concept_id", "status", "is_open_for_reservation",
		"position_x", "position_y", "created_at", "updated_at",
	}).AddRow(id, "Lagoon 1", "deluxe", nil, "available", open, 0.0, 0.0, now, now)
}

func (f *reservationFixture) expectTxStart() {
	f.mock.ExpectBegin()
	f.mock.ExpectExec(`SET LOCAL lock_timeout`).
		WillReturnResult(sqlmock.NewResult(0, 0))
}

func TestCreateReservation(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		f := newReservationFixture(t)
		now := time.Now()

		f.mock.ExpectQuery(`FROM cabanas WHERE id`).
			WithArgs("cab-1").
			WillReturnRows(cabanaRow("cab-1", true))

		f.expectTxStart()
		f.mock.ExpectQuery(`FOR UPDATE`).
			WillReturnRows(sqlmock.NewRows([]string{"id"}))
		f.mock.ExpectQuery(`INSERT INTO reservations`).
			WillReturnRows(sqlmock.NewRows([]string{"created_at", "updated_at"}).AddRow(now, now))
		f.mock.ExpectQuery(`INSERT INTO reservation_status_history`).
			WillReturnRows(sqlmock.NewRows([]string{"created_at"}).AddRow(now))
		f.mock.ExpectCommit()

		reservation, err := f.service.Create(context.Background(), "req-1", &models.CreateReservationRequest{
			CabanaID:  "cab-1",
			GuestName: "Jane Doe",
			StartDate: "2030-07-01",
			EndDate:   "2030-07-04",
		})
		require.NoError(t, err)
		assert.Equal(t, models.ReservationStatusPending, reservation.Status)
		assert.NotEmpty(t, reservation.ID)

		f.service.WaitForSideEffects()
		assert.Contains(t, f.audit.recorded(), "reservation.create")

		assert.NoError(t, f.mock.ExpectationsWereMet())
	})

	t.Run("Conflict With Committed Reservation", func(t *testing.T) {
		f := newReservationFixture(t)

		f.mock.ExpectQuery(`FROM cabanas WHERE id`).
			WithArgs("cab-1").
			WillReturnRows(cabanaRow("cab-1", true))

		f.expectTxStart()
		f.mock.ExpectQuery(`FOR UPDATE`).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("blocking-1"))
		f.mock.ExpectRollback()

		_, err := f.service.Create(context.Background(), "req-1", &models.CreateReservationRequest{
			CabanaID:  "cab-1",
			GuestName: "Jane Doe",
			StartDate: "2030-07-01",
			EndDate:   "2030-07-04",
		})
		require.Error(t, err)

		var conflict *models.ConflictError
		require.ErrorAs(t, err, &conflict)
		assert.Equal(t, []string{"blocking-1"}, conflict.BlockingIDs)

		assert.NoError(t, f.mock.ExpectationsWereMet())
	})

	t.Run("Cabana Closed For Reservation", func(t *testing.T) {
		f := newReservationFixture(t)

		f.mock.ExpectQuery(`FROM cabanas WHERE id`).
			WithArgs("cab-1").
			WillReturnRows(cabanaRow("cab-1", false))

		_, err := f.service.Create(context.Background(), "req-1", &models.CreateReservationRequest{
			CabanaID:  "cab-1",
			GuestName: "Jane Doe",
			StartDate: "2030-07-01",
			EndDate:   "2030-07-04",
		})
		require.Error(t, err)
		var validation *models.ValidationError
		assert.ErrorAs(t, err, &validation)

		assert.NoError(t, f.mock.ExpectationsWereMet())
	})

	t.Run("Invalid Range", func(t *testing.T) {
		f := newReservationFixture(t)

		_, err := f.service.Create(context.Background(), "req-1", &models.CreateReservationRequest{
			CabanaID:  "cab-1",
			GuestName: "Jane Doe",
			StartDate: "2030-07-04",
			EndDate:   "2030-07-01",
		})
		require.Error(t, err)
		var validation *models.ValidationError
		assert.ErrorAs(t, err, &validation)
	})
}

func TestApproveReservation(t *testing.T) {
	t.Run("Success With Manual Price", func(t *testing.T) {
		f := newReservationFixture(t)
		now := time.Now()

		f.expectTxStart()
		f.mock.ExpectQuery(`FROM reservations WHERE id`).
			WithArgs("res-1").
			WillReturnRows(reservationRow("res-1", models.ReservationStatusPending, nil, nil))
		f.mock.ExpectQuery(`FOR UPDATE`).
			WillReturnRows(sqlmock.NewRows([]string{"id"}))
		f.mock.ExpectExec(`UPDATE reservations`).
			WithArgs("res-1", models.ReservationStatusApproved, 1200.0).
			WillReturnResult(sqlmock.NewResult(0, 1))
		f.mock.ExpectQuery(`INSERT INTO reservation_status_history`).
			WillReturnRows(sqlmock.NewRows([]string{"created_at"}).AddRow(now))
		f.mock.ExpectExec(`UPDATE cabanas`).
			WithArgs("cab-1", models.CabanaStatusReserved).
			WillReturnResult(sqlmock.NewResult(0, 1))
		f.mock.ExpectCommit()

		reservation, err := f.service.Approve(context.Background(), "mgr-1", "res-1",
			&models.ApproveReservationRequest{ManualPrice: floatPtr(1200)})
		require.NoError(t, err)
		assert.Equal(t, models.ReservationStatusApproved, reservation.Status)
		require.NotNil(t, reservation.TotalPrice)
		assert.Equal(t, 1200.0, *reservation.TotalPrice)

		f.service.WaitForSideEffects()
		assert.Contains(t, f.audit.recorded(), "reservation.approved")

		assert.NoError(t, f.mock.ExpectationsWereMet())
	})

	t.Run("Success With Computed Price", func(t *testing.T) {
		f := newReservationFixture(t)
		now := time.Now()

		// 3 nights at 200 from a range override
		f.catalog.rangePrices = []models.CabanaRangePrice{
			{ID: "r1", CabanaID: "cab-1", StartDate: day("2030-06-01"), EndDate: day("2030-08-01"), Price: 200, Priority: 0},
		}

		f.expectTxStart()
		f.mock.ExpectQuery(`FROM reservations WHERE id`).
			WithArgs("res-1").
			WillReturnRows(reservationRow("res-1", models.ReservationStatusPending, nil, nil))
		f.mock.ExpectQuery(`FOR UPDATE`).
			WillReturnRows(sqlmock.NewRows([]string{"id"}))
		f.mock.ExpectExec(`UPDATE reservations`).
			WithArgs("res-1", models.ReservationStatusApproved, 600.0).
			WillReturnResult(sqlmock.NewResult(0, 1))
		f.mock.ExpectQuery(`INSERT INTO reservation_status_history`).
			WillReturnRows(sqlmock.NewRows([]string{"created_at"}).AddRow(now))
		f.mock.ExpectExec(`UPDATE cabanas`).
			WillReturnResult(sqlmock.NewResult(0, 1))
		f.mock.ExpectCommit()

		reservation, err := f.service.Approve(context.Background(), "mgr-1", "res-1",
			&models.ApproveReservationRequest{})
		require.NoError(t, err)
		require.NotNil(t, reservation.TotalPrice)
		assert.Equal(t, 600.0, *reservation.TotalPrice)

		assert.NoError(t, f.mock.ExpectationsWereMet())
	})

	t.Run("Second Approval Of Racing Pending Request Conflicts", func(t *testing.T) {
		f := newReservationFixture(t)

		f.expectTxStart()
		f.mock.ExpectQuery(`FROM reservations WHERE id`).
			WithArgs("res-2").
			WillReturnRows(reservationRow("res-2", models.ReservationStatusPending, nil, nil))
		// The earlier winner is already approved on the same range
		f.mock.ExpectQuery(`FOR UPDATE`).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("res-1"))
		f.mock.ExpectRollback()

		_, err := f.service.Approve(context.Background(), "mgr-1", "res-2",
			&models.ApproveReservationRequest{})
		require.Error(t, err)

		var conflict *models.ConflictError
		require.ErrorAs(t, err, &conflict)

		assert.NoError(t, f.mock.ExpectationsWereMet())
	})

	t.Run("Already Approved", func(t *testing.T) {
		f := newReservationFixture(t)

		f.expectTxStart()
		f.mock.ExpectQuery(`FROM reservations WHERE id`).
			WithArgs("res-1").
			WillReturnRows(reservationRow("res-1", models.ReservationStatusApproved, 600.0, nil))
		f.mock.ExpectRollback()

		_, err := f.service.Approve(context.Background(), "mgr-1", "res-1",
			&models.ApproveReservationRequest{})
		require.Error(t, err)

		var state *models.StateError
		require.ErrorAs(t, err, &state)
		assert.Equal(t, "approved", state.CurrentStatus)
		assert.Equal(t, "pending", state.WantedStatus)

		assert.NoError(t, f.mock.ExpectationsWereMet())
	})

	t.Run("Not Found", func(t *testing.T) {
		f := newReservationFixture(t)

		f.expectTxStart()
		f.mock.ExpectQuery(`FROM reservations WHERE id`).
			WithArgs("ghost").
			WillReturnRows(sqlmock.NewRows(reservationTestColumns))
		f.mock.ExpectRollback()

		_, err := f.service.Approve(context.Background(), "mgr-1", "ghost",
			&models.ApproveReservationRequest{})
		require.Error(t, err)

		var notFound *models.NotFoundError
		assert.ErrorAs(t, err, &notFound)
	})

	t.Run("Negative Manual Price", func(t *testing.T) {
		f := newReservationFixture(t)

		_, err := f.service.Approve(context.Background(), "mgr-1", "res-1",
			&models.ApproveReservationRequest{ManualPrice: floatPtr(-10)})
		require.Error(t, err)

		var validation *models.ValidationError
		assert.ErrorAs(t, err, &validation)
	})
}

func TestRejectReservation(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		f := newReservationFixture(t)
		now := time.Now()

		f.expectTxStart()
		f.mock.ExpectQuery(`FROM reservations WHERE id`).
			WithArgs("res-1").
			WillReturnRows(reservationRow("res-1", models.ReservationStatusPending, nil, nil))
		f.mock.ExpectExec(`UPDATE reservations`).
			WithArgs("res-1", models.ReservationStatusRejected, "no availability").
			WillReturnResult(sqlmock.NewResult(0, 1))
		f.mock.ExpectQuery(`INSERT INTO reservation_status_history`).
			WillReturnRows(sqlmock.NewRows([]string{"created_at"}).AddRow(now))
		f.mock.ExpectCommit()

		reservation, err := f.service.Reject(context.Background(), "mgr-1", "res-1",
			&models.RejectReservationRequest{Reason: "no availability"})
		require.NoError(t, err)
		assert.Equal(t, models.ReservationStatusRejected, reservation.Status)
		require.NotNil(t, reservation.RejectionReason)
		assert.Equal(t, "no availability", *reservation.RejectionReason)

		assert.NoError(t, f.mock.ExpectationsWereMet())
	})

	t.Run("Missing Reason", func(t *testing.T) {
		f := newReservationFixture(t)

		_, err := f.service.Reject(context.Background(), "mgr-1", "res-1",
			&models.RejectReservationRequest{})
		require.Error(t, err)

		var validation *models.ValidationError
		assert.ErrorAs(t, err, &validation)
	})
}

// gatedBroadcaster blocks every send until released
type gatedBroadcaster struct {
	release chan struct{}
	events  chan string
}

func (b *gatedBroadcaster) Broadcast(event string, payload interface{}) error {
	<-b.release
	b.events <- event
	return nil
}

func (b *gatedBroadcaster) SendToRole(role, event string, payload interface{}) error {
	<-b.release
	b.events <- event
	return nil
}

func TestSideEffectsDoNotBlockResponse(t *testing.T) {
	f := newReservationFixture(t)
	now := time.Now()

	gate := &gatedBroadcaster{release: make(chan struct{}), events: make(chan string, 4)}
	f.service.broadcaster = gate

	f.expectTxStart()
	f.mock.ExpectQuery(`FROM reservations WHERE id`).
		WithArgs("res-1").
		WillReturnRows(reservationRow("res-1", models.ReservationStatusPending, nil, nil))
	f.mock.ExpectExec(`UPDATE reservations`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	f.mock.ExpectQuery(`INSERT INTO reservation_status_history`).
		WillReturnRows(sqlmock.NewRows([]string{"created_at"}).AddRow(now))
	f.mock.ExpectCommit()

	// The gate is still closed here: a transition that waited on its sinks
	// would never return
	reservation, err := f.service.Reject(context.Background(), "mgr-1", "res-1",
		&models.RejectReservationRequest{Reason: "no availability"})
	require.NoError(t, err)
	assert.Equal(t, models.ReservationStatusRejected, reservation.Status)

	close(gate.release)
	f.service.WaitForSideEffects()
	assert.Equal(t, "reservation.rejected", <-gate.events)

	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestCheckInCheckOut(t *testing.T) {
	t.Run("Check In Approved Reservation", func(t *testing.T) {
		f := newReservationFixture(t)
		now := time.Now()

		f.expectTxStart()
		f.mock.ExpectQuery(`FROM reservations WHERE id`).
			WithArgs("res-1").
			WillReturnRows(reservationRow("res-1", models.ReservationStatusApproved, 600.0, nil))
		f.mock.ExpectExec(`UPDATE reservations`).
			WillReturnResult(sqlmock.NewResult(0, 1))
		f.mock.ExpectQuery(`INSERT INTO reservation_status_history`).
			WillReturnRows(sqlmock.NewRows([]string{"created_at"}).AddRow(now))
		f.mock.ExpectCommit()

		reservation, err := f.service.CheckIn(context.Background(), "staff-1", "res-1")
		require.NoError(t, err)
		assert.Equal(t, models.ReservationStatusCheckedIn, reservation.Status)
		require.NotNil(t, reservation.CheckedInAt)
		require.NotNil(t, reservation.CheckedInBy)
		assert.Equal(t, "staff-1", *reservation.CheckedInBy)

		assert.NoError(t, f.mock.ExpectationsWereMet())
	})

	t.Run("Check In Pending Reservation Fails", func(t *testing.T) {
		f := newReservationFixture(t)

		f.expectTxStart()
		f.mock.ExpectQuery(`FROM reservations WHERE id`).
			WithArgs("res-1").
			WillReturnRows(reservationRow("res-1", models.ReservationStatusPending, nil, nil))
		f.mock.ExpectRollback()

		_, err := f.service.CheckIn(context.Background(), "staff-1", "res-1")
		require.Error(t, err)

		var state *models.StateError
		assert.ErrorAs(t, err, &state)
	})

	t.Run("Check Out Frees Cabana And Counts Visit", func(t *testing.T) {
		f := newReservationFixture(t)
		now := time.Now()

		f.expectTxStart()
		f.mock.ExpectQuery(`FROM reservations WHERE id`).
			WithArgs("res-1").
			WillReturnRows(reservationRow("res-1", models.ReservationStatusCheckedIn, 600.0, "guest-1"))
		f.mock.ExpectExec(`UPDATE reservations`).
			WillReturnResult(sqlmock.NewResult(0, 1))
		f.mock.ExpectQuery(`INSERT INTO reservation_status_history`).
			WillReturnRows(sqlmock.NewRows([]string{"created_at"}).AddRow(now))
		f.mock.ExpectExec(`UPDATE cabanas`).
			WithArgs("cab-1", models.CabanaStatusAvailable).
			WillReturnResult(sqlmock.NewResult(0, 1))
		f.mock.ExpectExec(`UPDATE guests`).
			WillReturnResult(sqlmock.NewResult(0, 1))
		f.mock.ExpectCommit()

		reservation, err := f.service.CheckOut(context.Background(), "staff-1", "res-1")
		require.NoError(t, err)
		assert.Equal(t, models.ReservationStatusCheckedOut, reservation.Status)

		assert.NoError(t, f.mock.ExpectationsWereMet())
	})
}

func TestAddExtraItems(t *testing.T) {
	t.Run("Replaces Extras Component Instead Of Accumulating", func(t *testing.T) {
		f := newReservationFixture(t)
		f.catalog.products = map[string]models.Product{
			"p1": {ID: "p1", Name: "BBQ Set", SalePrice: 50, IsActive: true},
		}

		f.expectTxStart()
		f.mock.ExpectQuery(`FROM reservations WHERE id`).
			WithArgs("res-1").
			WillReturnRows(reservationRow("res-1", models.ReservationStatusApproved, 1000.0, nil))
		// 100 already attached before this call
		f.mock.ExpectQuery(`SUM\(quantity \* unit_price\)`).
			WillReturnRows(sqlmock.NewRows([]string{"coalesce"}).AddRow(100.0))
		f.mock.ExpectExec(`INSERT INTO reservation_extra_items`).
			WillReturnResult(sqlmock.NewResult(0, 1))
		f.mock.ExpectQuery(`SUM\(quantity \* unit_price\)`).
			WillReturnRows(sqlmock.NewRows([]string{"coalesce"}).AddRow(250.0))
		// base 900 plus the full current extras sum
		f.mock.ExpectExec(`UPDATE reservations`).
			WithArgs("res-1", 1150.0).
			WillReturnResult(sqlmock.NewResult(0, 1))
		f.mock.ExpectCommit()

		reservation, err := f.service.AddExtraItems(context.Background(), "staff-1", "res-1",
			&models.AddExtraItemsRequest{Items: []models.ExtraItemInput{{ProductID: "p1", Quantity: 3}}})
		require.NoError(t, err)
		require.NotNil(t, reservation.TotalPrice)
		assert.Equal(t, 1150.0, *reservation.TotalPrice)

		assert.NoError(t, f.mock.ExpectationsWereMet())
	})

	t.Run("Rejected When Not Approved", func(t *testing.T) {
		f := newReservationFixture(t)
		f.catalog.products = map[string]models.Product{
			"p1": {ID: "p1", Name: "BBQ Set", SalePrice: 50, IsActive: true},
		}

		f.expectTxStart()
		f.mock.ExpectQuery(`FROM reservations WHERE id`).
			WithArgs("res-1").
			WillReturnRows(reservationRow("res-1", models.ReservationStatusCheckedOut, 1000.0, nil))
		f.mock.ExpectRollback()

		_, err := f.service.AddExtraItems(context.Background(), "staff-1", "res-1",
			&models.AddExtraItemsRequest{Items: []models.ExtraItemInput{{ProductID: "p1", Quantity: 1}}})
		require.Error(t, err)

		var state *models.StateError
		assert.ErrorAs(t, err, &state)
	})

	t.Run("Unknown Product", func(t *testing.T) {
		f := newReservationFixture(t)

		_, err := f.service.AddExtraItems(context.Background(), "staff-1", "res-1",
			&models.AddExtraItemsRequest{Items: []models.ExtraItemInput{{ProductID: "ghost", Quantity: 1}}})
		require.Error(t, err)

		var validation *models.ValidationError
		assert.ErrorAs(t, err, &validation)
	})
}

func TestLeaveReview(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		f := newReservationFixture(t)
		now := time.Now()

		f.mock.ExpectQuery(`FROM reservations WHERE id`).
			WithArgs("res-1").
			WillReturnRows(reservationRow("res-1", models.ReservationStatusCheckedOut, 600.0, nil))
		f.mock.ExpectQuery(`FROM reviews`).
			WithArgs("res-1").
			WillReturnRows(sqlmock.NewRows([]string{"id", "reservation_id", "rating", "comment", "created_at"}))
		f.mock.ExpectQuery(`INSERT INTO reviews`).
			WillReturnRows(sqlmock.NewRows([]string{"created_at"}).AddRow(now))

		review, err := f.service.LeaveReview("res-1", &models.CreateReviewRequest{Rating: 5})
		require.NoError(t, err)
		assert.Equal(t, 5, review.Rating)

		assert.NoError(t, f.mock.ExpectationsWereMet())
	})

	t.Run("Before Check Out", func(t *testing.T) {
		f := newReservationFixture(t)

		f.mock.ExpectQuery(`FROM reservations WHERE id`).
			WithArgs("res-1").
			WillReturnRows(reservationRow("res-1", models.ReservationStatusCheckedIn, 600.0, nil))

		_, err := f.service.LeaveReview("res-1", &models.CreateReviewRequest{Rating: 5})
		require.Error(t, err)

		var state *models.StateError
		assert.ErrorAs(t, err, &state)
	})

	t.Run("Duplicate Review", func(t *testing.T) {
		f := newReservationFixture(t)
		now := time.Now()

		f.mock.ExpectQuery(`FROM reservations WHERE id`).
			WithArgs("res-1").
			WillReturnRows(reservationRow("res-1", models.ReservationStatusCheckedOut, 600.0, nil))
		f.mock.ExpectQuery(`FROM reviews`).
			WithArgs("res-1").
			WillReturnRows(sqlmock.NewRows([]string{"id", "reservation_id", "rating", "comment", "created_at"}).
				AddRow("rev-1", "res-1", 4, nil, now))

		_, err := f.service.LeaveReview("res-1", &models.CreateReviewRequest{Rating: 5})
		require.Error(t, err)

		var validation *models.ValidationError
		assert.ErrorAs(t, err, &validation)
	})
}
