package handlers

import (
	"log"
	"net/http"

	"github.com/cabanaresort/reservations-backend/internal/services"
	"github.com/gin-gonic/gin"
)

// AdminHandler exposes operational actions that otherwise only run on the
// cron schedule
type AdminHandler struct {
	reconciliation *services.ReconciliationService
}

// NewAdminHandler creates a new admin handler
func NewAdminHandler(reconciliation *services.ReconciliationService) *AdminHandler {
	return &AdminHandler{reconciliation: reconciliation}
}

// Reconcile handles POST /api/v1/admin/reconcile. Runs the cabana status
// repair immediately instead of waiting for the nightly job.
func (h *AdminHandler) Reconcile(c *gin.Context) {
	fixed, err := h.reconciliation.Reconcile()
	if err != nil {
		log.Printf("ERROR: Reconciliation failed: %v", err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "reconciliation_error",
			Message: "Failed to reconcile cabana statuses",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"fixed": fixed})
}
