package utils

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func requestWithHeaders(headers map[string]string) *gin.Context {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	c.Request.RemoteAddr = "192.0.2.10:4711"
	for key, value := range headers {
		c.Request.Header.Set(key, value)
	}
	return c
}

func TestGetRealIP(t *testing.T) {
	t.Run("X-Real-IP Wins", func(t *testing.T) {
		c := requestWithHeaders(map[string]string{
			"X-Real-IP":       "203.0.113.7",
			"X-Forwarded-For": "198.51.100.1",
		})
		assert.Equal(t, "203.0.113.7", GetRealIP(c))
	})

	t.Run("Private X-Real-IP Skipped", func(t *testing.T) {
		c := requestWithHeaders(map[string]string{
			"X-Real-IP":       "10.0.0.5",
			"X-Forwarded-For": "198.51.100.1, 10.0.0.5",
		})
		assert.Equal(t, "198.51.100.1", GetRealIP(c))
	})

	t.Run("First Public Hop From Forwarded Chain", func(t *testing.T) {
		c := requestWithHeaders(map[string]string{
			"X-Forwarded-For": "10.0.0.5, 203.0.113.7, 172.16.0.1",
		})
		assert.Equal(t, "203.0.113.7", GetRealIP(c))
	})

	t.Run("All Private Falls Back To First Hop", func(t *testing.T) {
		c := requestWithHeaders(map[string]string{
			"X-Forwarded-For": "192.168.1.20, 10.0.0.5",
		})
		assert.Equal(t, "192.168.1.20", GetRealIP(c))
	})

	t.Run("Direct Connection", func(t *testing.T) {
		c := requestWithHeaders(nil)
		assert.Equal(t, "192.0.2.10", GetRealIP(c))
	})
}
