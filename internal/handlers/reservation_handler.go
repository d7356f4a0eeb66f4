package handlers

import (
	"net/http"

	"github.com/cabanaresort/reservations-backend/internal/middleware"
	"github.com/cabanaresort/reservations-backend/internal/models"
	"github.com/cabanaresort/reservations-backend/internal/services"
	"github.com/gin-gonic/gin"
)

// ReservationHandler handles reservation lifecycle HTTP requests
type ReservationHandler struct {
	reservationSvc *services.ReservationService
}

// NewReservationHandler creates a new reservation handler
func NewReservationHandler(reservationSvc *services.ReservationService) *ReservationHandler {
	return &ReservationHandler{reservationSvc: reservationSvc}
}

// Create handles POST /api/v1/reservations
func (h *ReservationHandler) Create(c *gin.Context) {
	var req models.CreateReservationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "validation_error",
			Message: "Invalid request body",
		})
		return
	}

	userCtx := middleware.MustGetUserContext(c)
	reservation, err := h.reservationSvc.Create(c.Request.Context(), userCtx.UserID.String(), &req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"reservation": reservation})
}

// GetByID handles GET /api/v1/reservations/:id
func (h *ReservationHandler) GetByID(c *gin.Context) {
	reservation, err := h.reservationSvc.GetByID(c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"reservation": reservation})
}

// ListMine handles GET /api/v1/reservations/mine
func (h *ReservationHandler) ListMine(c *gin.Context) {
	userCtx := middleware.MustGetUserContext(c)

	reservations, err := h.reservationSvc.ListByRequester(userCtx.UserID.String())
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"reservations": reservations,
		"total":        len(reservations),
	})
}

// ListPending handles GET /api/v1/reservations/pending (approver queue)
func (h *ReservationHandler) ListPending(c *gin.Context) {
	reservations, err := h.reservationSvc.ListPending()
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"reservations": reservations,
		"total":        len(reservations),
	})
}

// Approve handles POST /api/v1/reservations/:id/approve
func (h *ReservationHandler) Approve(c *gin.Context) {
	var req models.ApproveReservationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "validation_error",
			Message: "Invalid request body",
		})
		return
	}

	userCtx := middleware.MustGetUserContext(c)
	reservation, err := h.reservationSvc.Approve(c.Request.Context(), userCtx.UserID.String(), c.Param("id"), &req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"reservation": reservation})
}

// Reject handles POST /api/v1/reservations/:id/reject
func (h *ReservationHandler) Reject(c *gin.Context) {
	var req models.RejectReservationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "validation_error",
			Message: "A rejection reason is required",
		})
		return
	}

	userCtx := middleware.MustGetUserContext(c)
	reservation, err := h.reservationSvc.Reject(c.Request.Context(), userCtx.UserID.String(), c.Param("id"), &req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"reservation": reservation})
}

// CheckIn handles POST /api/v1/reservations/:id/check-in
func (h *ReservationHandler) CheckIn(c *gin.Context) {
	userCtx := middleware.MustGetUserContext(c)

	reservation, err := h.reservationSvc.CheckIn(c.Request.Context(), userCtx.UserID.String(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"reservation": reservation})
}

// CheckOut handles POST /api/v1/reservations/:id/check-out
func (h *ReservationHandler) CheckOut(c *gin.Context) {
	userCtx := middleware.MustGetUserContext(c)

	reservation, err := h.reservationSvc.CheckOut(c.Request.Context(), userCtx.UserID.String(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"reservation": reservation})
}

// AddExtras handles POST /api/v1/reservations/:id/extras
func (h *ReservationHandler) AddExtras(c *gin.Context) {
	var req models.AddExtraItemsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "validation_error",
			Message: "Invalid request body",
		})
		return
	}

	userCtx := middleware.MustGetUserContext(c)
	reservation, err := h.reservationSvc.AddExtraItems(c.Request.Context(), userCtx.UserID.String(), c.Param("id"), &req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"reservation": reservation})
}

// ListExtras handles GET /api/v1/reservations/:id/extras
func (h *ReservationHandler) ListExtras(c *gin.Context) {
	items, err := h.reservationSvc.ListExtras(c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"items": items,
		"total": len(items),
	})
}

// GetHistory handles GET /api/v1/reservations/:id/history
func (h *ReservationHandler) GetHistory(c *gin.Context) {
	entries, err := h.reservationSvc.GetHistory(c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"history": entries,
		"total":   len(entries),
	})
}

// LeaveReview handles POST /api/v1/reservations/:id/review
func (h *ReservationHandler) LeaveReview(c *gin.Context) {
	var req models.CreateReviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "validation_error",
			Message: "Invalid request body",
		})
		return
	}

	review, err := h.reservationSvc.LeaveReview(c.Param("id"), &req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"review": review})
}
