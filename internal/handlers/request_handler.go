package handlers

import (
	"net/http"

	"github.com/cabanaresort/reservations-backend/internal/middleware"
	"github.com/cabanaresort/reservations-backend/internal/models"
	"github.com/cabanaresort/reservations-backend/internal/services"
	"github.com/gin-gonic/gin"
)

// RequestHandler handles modification and cancellation request HTTP requests
type RequestHandler struct {
	requestSvc *services.RequestService
}

// NewRequestHandler creates a new request handler
func NewRequestHandler(requestSvc *services.RequestService) *RequestHandler {
	return &RequestHandler{requestSvc: requestSvc}
}

// CreateModification handles POST /api/v1/reservations/:id/modification-requests
func (h *RequestHandler) CreateModification(c *gin.Context) {
	var req models.CreateModificationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "validation_error",
			Message: "Invalid request body",
		})
		return
	}

	userCtx := middleware.MustGetUserContext(c)
	request, err := h.requestSvc.RequestModification(c.Request.Context(), userCtx.UserID.String(), c.Param("id"), &req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"request": request})
}

// ResolveModification handles POST /api/v1/modification-requests/:id/resolve
func (h *RequestHandler) ResolveModification(c *gin.Context) {
	var req models.ResolveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "validation_error",
			Message: "Invalid request body",
		})
		return
	}

	userCtx := middleware.MustGetUserContext(c)
	request, err := h.requestSvc.ResolveModification(c.Request.Context(), userCtx.UserID.String(), c.Param("id"), &req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"request": request})
}

// CreateCancellation handles POST /api/v1/reservations/:id/cancellation-requests
func (h *RequestHandler) CreateCancellation(c *gin.Context) {
	var req models.CreateCancellationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "validation_error",
			Message: "A cancellation reason is required",
		})
		return
	}

	userCtx := middleware.MustGetUserContext(c)
	request, err := h.requestSvc.RequestCancellation(c.Request.Context(), userCtx.UserID.String(), c.Param("id"), &req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"request": request})
}

// ResolveCancellation handles POST /api/v1/cancellation-requests/:id/resolve
func (h *RequestHandler) ResolveCancellation(c *gin.Context) {
	var req models.ResolveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "validation_error",
			Message: "Invalid request body",
		})
		return
	}

	userCtx := middleware.MustGetUserContext(c)
	request, err := h.requestSvc.ResolveCancellation(c.Request.Context(), userCtx.UserID.String(), c.Param("id"), &req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"request": request})
}

// ListPendingModifications handles GET /api/v1/modification-requests/pending
func (h *RequestHandler) ListPendingModifications(c *gin.Context) {
	requests, err := h.requestSvc.ListPendingModifications()
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"requests": requests,
		"total":    len(requests),
	})
}

// ListPendingCancellations handles GET /api/v1/cancellation-requests/pending
func (h *RequestHandler) ListPendingCancellations(c *gin.Context) {
	requests, err := h.requestSvc.ListPendingCancellations()
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"requests": requests,
		"total":    len(requests),
	})
}
