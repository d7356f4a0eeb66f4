package handlers

import (
	"log"
	"net/http"

	"github.com/cabanaresort/reservations-backend/internal/database"
	"github.com/cabanaresort/reservations-backend/internal/models"
	"github.com/cabanaresort/reservations-backend/pkg/validator"
	"github.com/gin-gonic/gin"
)

// CabanaHandler handles cabana catalog HTTP requests
type CabanaHandler struct {
	cabanaRepo      *database.CabanaRepository
	reservationRepo *database.ReservationRepository
	dates           *validator.DateRangeValidator
}

// NewCabanaHandler creates a new cabana handler
func NewCabanaHandler(cabanaRepo *database.CabanaRepository, reservationRepo *database.ReservationRepository) *CabanaHandler {
	return &CabanaHandler{
		cabanaRepo:      cabanaRepo,
		reservationRepo: reservationRepo,
		dates:           validator.NewDateRangeValidator(),
	}
}

// List handles GET /api/v1/cabanas. With start and end query parameters the
// listing is filtered to cabanas free for that range; availability here is a
// preview only, the conflict guard decides at booking time.
func (h *CabanaHandler) List(c *gin.Context) {
	startParam := c.Query("start")
	endParam := c.Query("end")

	var cabanas []models.Cabana
	var err error
	if startParam != "" || endParam != "" {
		start, end, parseErr := h.dates.ParseRange(startParam, endParam)
		if parseErr != nil {
			respondError(c, models.NewValidationError("start", parseErr.Error()))
			return
		}
		cabanas, err = h.cabanaRepo.ListAvailableForRange(start, end)
	} else {
		cabanas, err = h.cabanaRepo.List()
	}
	if err != nil {
		log.Printf("ERROR: Failed to list cabanas: %v", err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "database_error",
			Message: "Failed to retrieve cabanas",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"cabanas": cabanas,
		"total":   len(cabanas),
	})
}

// GetByID handles GET /api/v1/cabanas/:id
func (h *CabanaHandler) GetByID(c *gin.Context) {
	cabana, err := h.cabanaRepo.GetByID(c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	if cabana == nil {
		respondError(c, models.NewNotFoundError("cabana", c.Param("id")))
		return
	}

	c.JSON(http.StatusOK, gin.H{"cabana": cabana})
}

// Create handles POST /api/v1/cabanas
func (h *CabanaHandler) Create(c *gin.Context) {
	var req models.CreateCabanaRequest
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

	existing, err := h.cabanaRepo.GetByName(req.Name)
	if err != nil {
		respondError(c, err)
		return
	}
	if existing != nil {
		c.JSON(http.StatusConflict, ErrorResponse{
			Error:   "conflict",
			Message: "A cabana with this name already exists",
			Code:    "DUPLICATE_NAME",
		})
		return
	}

	cabana := &models.Cabana{
		Name:                 req.Name,
		Class:                req.Class,
		ConceptID:            req.ConceptID,
		IsOpenForReservation: true,
		PositionX:            req.PositionX,
		PositionY:            req.PositionY,
	}
	if err := h.cabanaRepo.Create(cabana); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"cabana": cabana})
}

// Update handles PATCH /api/v1/cabanas/:id
func (h *CabanaHandler) Update(c *gin.Context) {
	var req models.UpdateCabanaRequest
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

	if err := h.cabanaRepo.Update(c.Param("id"), &req); err != nil {
		respondError(c, err)
		return
	}

	cabana, err := h.cabanaRepo.GetByID(c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"cabana": cabana})
}

// ListReservations handles GET /api/v1/cabanas/:id/reservations. Returns the
// cabana's non-terminal reservations so approvers can see the schedule.
func (h *CabanaHandler) ListReservations(c *gin.Context) {
	cabana, err := h.cabanaRepo.GetByID(c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	if cabana == nil {
		respondError(c, models.NewNotFoundError("cabana", c.Param("id")))
		return
	}

	reservations, err := h.reservationRepo.ListByCabana(cabana.ID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"cabana_id":    cabana.ID,
		"reservations": reservations,
		"total":        len(reservations),
	})
}
