package handlers

import (
	"net/http"

	"github.com/cabanaresort/reservations-backend/internal/database"
	"github.com/cabanaresort/reservations-backend/internal/models"
	"github.com/gin-gonic/gin"
)

// GuestHandler handles guest profile HTTP requests
type GuestHandler struct {
	guestRepo *database.GuestRepository
}

// NewGuestHandler creates a new guest handler
func NewGuestHandler(guestRepo *database.GuestRepository) *GuestHandler {
	return &GuestHandler{guestRepo: guestRepo}
}

// Create handles POST /api/v1/guests
func (h *GuestHandler) Create(c *gin.Context) {
	var req models.CreateGuestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "validation_error",
			Message: "Invalid request body",
		})
		return
	}
	if err := req.Validate(); err != nil {
		respondError(c, err)
		return
	}

	guest := &models.Guest{
		FullName: req.FullName,
		Email:    req.Email,
		Phone:    req.Phone,
	}
	if err := h.guestRepo.Create(guest); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"guest": guest})
}

// GetByID handles GET /api/v1/guests/:id
func (h *GuestHandler) GetByID(c *gin.Context) {
	guest, err := h.guestRepo.GetByID(c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	if guest == nil {
		respondError(c, models.NewNotFoundError("guest", c.Param("id")))
		return
	}

	c.JSON(http.StatusOK, gin.H{"guest": guest})
}
