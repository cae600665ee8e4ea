package security

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	apperrors "github.com/truthshield/triage/internal/errors"
)

// Roles carried in service tokens.
const (
	RoleAdmin  = "admin"
	RoleClient = "client"
)

// TokenClaims are the JWT claims issued by the triage service
type TokenClaims struct {
	Role     string `json:"role"`
	ClientID string `json:"client_id,omitempty"`
	jwt.RegisteredClaims
}

// TokenService issues and validates service tokens. Admin tokens gate the
// watchlist and harm weight mutation endpoints; client tokens identify the
// submitting organization for quota accounting.
type TokenService struct {
	secret []byte
	ttl    time.Duration
}

// NewTokenService creates a token service. A zero ttl defaults to 24 hours.
func NewTokenService(secret []byte, ttl time.Duration) *TokenService {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &TokenService{secret: secret, ttl: ttl}
}

// GenerateToken issues a signed token for a subject with the given role
func (ts *TokenService) GenerateToken(subject, role, clientID string) (string, error) {
	now := time.Now()
	claims := TokenClaims{
		Role:     role,
		ClientID: clientID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    "triage",
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ts.ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(ts.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// ValidateToken parses and verifies a token, returning its claims
func (ts *TokenService) ValidateToken(tokenString string) (*TokenClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &TokenClaims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return ts.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("invalid token: %w", err)
	}

	claims, ok := token.Claims.(*TokenClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token claims")
	}
	return claims, nil
}

// bearerToken extracts the token from the Authorization header
func bearerToken(c *gin.Context) (string, bool) {
	header := c.GetHeader("Authorization")
	if header == "" {
		return "", false
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	return strings.TrimSpace(parts[1]), true
}

// AuthMiddleware validates the bearer token and stores the claims on the
// context. Requests without a token pass through unauthenticated; handlers
// that need identity use RequireAdmin.
func (ts *TokenService) AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString, ok := bearerToken(c)
		if !ok {
			c.Next()
			return
		}

		claims, err := ts.ValidateToken(tokenString)
		if err != nil {
			appErr := apperrors.NewAuthError("invalid or expired token")
			c.JSON(appErr.HTTPStatus, gin.H{"error": appErr.Msg})
			c.Abort()
			return
		}

		c.Set("auth_subject", claims.Subject)
		c.Set("auth_role", claims.Role)
		if claims.ClientID != "" {
			c.Set("client_id", claims.ClientID)
		}

		c.Next()
	}
}

// RequireAdmin blocks requests that do not carry a valid admin token
func (ts *TokenService) RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString, ok := bearerToken(c)
		if !ok {
			appErr := apperrors.NewAuthError("missing bearer token")
			c.JSON(appErr.HTTPStatus, gin.H{"error": appErr.Msg})
			c.Abort()
			return
		}

		claims, err := ts.ValidateToken(tokenString)
		if err != nil {
			appErr := apperrors.NewAuthError("invalid or expired token")
			c.JSON(appErr.HTTPStatus, gin.H{"error": appErr.Msg})
			c.Abort()
			return
		}

		if claims.Role != RoleAdmin {
			c.JSON(http.StatusForbidden, gin.H{"error": "admin role required"})
			c.Abort()
			return
		}

		c.Set("auth_subject", claims.Subject)
		c.Set("auth_role", claims.Role)

		c.Next()
	}
}
