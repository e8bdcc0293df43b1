package middleware

import (
	"crypto/subtle"
	"net/http"
	"strconv"
	"strings"

	"coworking/internal/domain"
	"coworking/internal/pkg/jwt"
	"coworking/internal/pkg/response"

	"github.com/gin-gonic/gin"
)

const (
	HeaderUserID   = "X-User-Id"
	HeaderUserRole = "X-User-Role"
	// HeaderGatewayToken proves the identity headers came from the gateway.
	HeaderGatewayToken = "X-Gateway-Token"

	ctxUserID = "user_id"
	ctxRole   = "role"
)

type IdentityConfig struct {
	// TrustHeaders accepts X-User-Id / X-User-Role as set by the gateway.
	TrustHeaders bool
	// GatewayToken, when set, must accompany trusted identity headers.
	GatewayToken string
	// Verifier, when set, accepts "Authorization: Bearer" tokens.
	Verifier *jwt.Verifier
}

// Identity resolves the caller and stores it on the context. Requests without
// an identity get 401, identities with an unknown role get 403.
func Identity(cfg IdentityConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		rawID, rawRole, found := "", "", false

		if cfg.TrustHeaders && c.GetHeader(HeaderUserID) != "" {
			if !gatewayTokenValid(c, cfg.GatewayToken) {
				response.Abort(c, http.StatusUnauthorized, "UNAUTHORIZED", "untrusted identity headers")
				return
			}
			rawID, rawRole, found = c.GetHeader(HeaderUserID), c.GetHeader(HeaderUserRole), true
		} else if cfg.Verifier != nil {
			if token, ok := bearerToken(c); ok {
				claims, err := cfg.Verifier.Verify(token)
				if err != nil {
					response.Abort(c, http.StatusUnauthorized, "UNAUTHORIZED", "invalid or expired token")
					return
				}
				rawID, rawRole, found = strconv.FormatInt(claims.UserID, 10), claims.Role, true
			}
		}

		if !found || rawRole == "" {
			response.Abort(c, http.StatusUnauthorized, "UNAUTHORIZED", "missing authentication")
			return
		}

		userID, err := strconv.ParseInt(strings.TrimSpace(rawID), 10, 64)
		if err != nil || userID <= 0 {
			response.Abort(c, http.StatusUnauthorized, "UNAUTHORIZED", "invalid user id")
			return
		}

		role, ok := domain.ParseRole(rawRole)
		if !ok {
			response.Abort(c, http.StatusForbidden, "FORBIDDEN", "invalid user role")
			return
		}

		c.Set(ctxUserID, userID)
		c.Set(ctxRole, string(role))
		c.Next()
	}
}

// CallerFrom returns the identity stored by Identity.
func CallerFrom(c *gin.Context) (domain.Caller, bool) {
	userID := c.GetInt64(ctxUserID)
	if userID == 0 {
		return domain.Caller{}, false
	}
	return domain.Caller{UserID: userID, Role: domain.UserRole(c.GetString(ctxRole))}, true
}

func gatewayTokenValid(c *gin.Context, expected string) bool {
	if expected == "" {
		return true
	}
	got := c.GetHeader(HeaderGatewayToken)
	return subtle.ConstantTimeCompare([]byte(got), []byte(expected)) == 1
}

func bearerToken(c *gin.Context) (string, bool) {
	header := c.GetHeader("Authorization")
	if header == "" {
		return "", false
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
		return "", false
	}
	return strings.TrimSpace(parts[1]), true
}
