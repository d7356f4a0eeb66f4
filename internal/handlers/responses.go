package handlers

import (
	"log"
	"net/http"

	"github.com/cabanaresort/reservations-backend/internal/models"
	"github.com/gin-gonic/gin"
)

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// respondError maps the error taxonomy onto HTTP statuses. Validation maps
// to 400, not-found to 404, conflict and state errors to 409. Anything else
// is an infrastructure failure: logged and returned as a generic 500 so the
// caller knows the operation did not partially apply.
func respondError(c *gin.Context, err error) {
	switch e := err.(type) {
	case *models.ValidationError:
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "validation_error",
			Message: e.Error(),
			Code:    "VALIDATION_ERROR",
		})
	case *models.NotFoundError:
		c.JSON(http.StatusNotFound, ErrorResponse{
			Error:   "not_found",
			Message: e.Error(),
			Code:    "NOT_FOUND",
		})
	case *models.ConflictError:
		c.JSON(http.StatusConflict, ErrorResponse{
			Error:   "conflict",
			Message: e.Error(),
			Code:    "RANGE_CONFLICT",
		})
	case *models.StateError:
		c.JSON(http.StatusConflict, ErrorResponse{
			Error:   "state_error",
			Message: e.Error(),
			Code:    "INVALID_STATE",
		})
	default:
		log.Printf("ERROR: %v", err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "internal_error",
			Message: "The operation failed and was not applied",
		})
	}
}
