package security

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"os"
	"strings"

	"github.com/gin-gonic/gin"
)

const nonceKey = "csp-nonce"

// GenerateNonce returns a fresh 128-bit base64 nonce for CSP script/style
// allowances.
func GenerateNonce() (string, error) {
	nonceBytes := make([]byte, 16)
	if _, err := rand.Read(nonceBytes); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}
	return base64.StdEncoding.EncodeToString(nonceBytes), nil
}

// CSPMiddleware attaches a Content-Security-Policy header to every response.
// The API surface only ever returns JSON, so it gets a deny-everything
// policy; the swagger UI is the one HTML page the service serves and needs
// its own scripts and styles, allowed via a per-request nonce.
func CSPMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		var policy string
		if strings.HasPrefix(c.Request.URL.Path, "/swagger/") {
			nonce, err := GenerateNonce()
			if err != nil {
				c.AbortWithStatusJSON(500, gin.H{"error": "internal server error"})
				return
			}
			c.Set(nonceKey, nonce)
			policy = docsPolicy(nonce)
		} else {
			policy = apiPolicy()
		}

		c.Header("Content-Security-Policy", policy)

		if reportURI := os.Getenv("CSP_REPORT_URI"); reportURI != "" {
			c.Header("Content-Security-Policy-Report-Only", policy+"; report-uri "+reportURI)
		}

		c.Next()
	}
}

// GetNonce returns the nonce set for the current request, or "" outside the
// swagger UI.
func GetNonce(c *gin.Context) string {
	if nonce, exists := c.Get(nonceKey); exists {
		if nonceStr, ok := nonce.(string); ok {
			return nonceStr
		}
	}
	return ""
}

// apiPolicy locks down JSON endpoints; nothing on these paths should ever
// be interpreted as a document.
func apiPolicy() string {
	return "default-src 'none'; frame-ancestors 'none'; base-uri 'none'; form-action 'none'"
}

// docsPolicy allows the swagger UI bundle plus its inline bootstrap, which
// carries the request nonce.
func docsPolicy(nonce string) string {
	return fmt.Sprintf(
		"default-src 'self'; "+
			"script-src 'self' 'nonce-%s'; "+
			"style-src 'self' 'nonce-%s' 'unsafe-inline'; "+
			"img-src 'self' data:; "+
			"font-src 'self' data:; "+
			"connect-src 'self'; "+
			"frame-ancestors 'none'; "+
			"base-uri 'self'; "+
			"form-action 'self'",
		nonce, nonce,
	)
}
