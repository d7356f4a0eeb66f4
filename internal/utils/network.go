package utils

import (
	"net"
	"strings"

	"github.com/gin-gonic/gin"
)

// GetRealIP resolves the client address for auth logging. Reverse proxies in
// front of the API set X-Real-IP or X-Forwarded-For; the first public address
// in the chain wins, with gin's ClientIP as the fallback for direct
// connections.
func GetRealIP(c *gin.Context) string {
	if real := strings.TrimSpace(c.Request.Header.Get("X-Real-IP")); real != "" {
		if ip := net.ParseIP(real); ip != nil && !ip.IsPrivate() && !ip.IsLoopback() {
			return real
		}
	}

	// X-Forwarded-For is a comma-separated proxy chain, client first
	if forwarded := c.Request.Header.Get("X-Forwarded-For"); forwarded != "" {
		hops := strings.Split(forwarded, ",")
		for _, hop := range hops {
			candidate := strings.TrimSpace(hop)
			if ip := net.ParseIP(candidate); ip != nil && !ip.IsPrivate() && !ip.IsLoopback() {
				return candidate
			}
		}
		// Every hop is private. The nearest one still identifies the
		// caller better than the proxy's own address.
		if first := strings.TrimSpace(hops[0]); net.ParseIP(first) != nil {
			return first
		}
	}

	return c.ClientIP()
}
