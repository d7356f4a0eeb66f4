package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cabanaresort/reservations-backend/internal/models"
)

func TestRespondError(t *testing.T) {
	gin.SetMode(gin.TestMode)

	day := time.Date(2030, 7, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{
			name:       "Validation Error",
			err:        models.NewValidationError("start_date", "start date is required"),
			wantStatus: http.StatusBadRequest,
			wantCode:   "VALIDATION_ERROR",
		},
		{
			name:       "Not Found",
			err:        models.NewNotFoundError("reservation", "res-1"),
			wantStatus: http.StatusNotFound,
			wantCode:   "NOT_FOUND",
		},
		{
			name:       "Range Conflict",
			err:        models.NewConflictError("cab-1", day, day.AddDate(0, 0, 3), []string{"res-2"}),
			wantStatus: http.StatusConflict,
			wantCode:   "RANGE_CONFLICT",
		},
		{
			name:       "Invalid State",
			err:        models.NewStateError("reservation", "res-1", "approved", "pending"),
			wantStatus: http.StatusConflict,
			wantCode:   "INVALID_STATE",
		},
		{
			name:       "Infrastructure Failure",
			err:        errors.New("connection refused"),
			wantStatus: http.StatusInternalServerError,
			wantCode:   "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			recorder := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(recorder)

			respondError(c, tt.err)

			assert.Equal(t, tt.wantStatus, recorder.Code)

			var resp ErrorResponse
			require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &resp))
			assert.Equal(t, tt.wantCode, resp.Code)
			assert.NotEmpty(t, resp.Message)

			if tt.wantStatus == http.StatusInternalServerError {
				// infrastructure details never leak to the client
				assert.NotContains(t, resp.Message, "connection refused")
			}
		})
	}
}
