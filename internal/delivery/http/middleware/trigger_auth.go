package middleware

import (
	"crypto/subtle"
	"errors"
	"strings"

	"job-sync/internal/pkg/jwt"

	"github.com/gofiber/fiber/v3"
)

const (
	HeaderTriggerSecret = "X-Trigger-Secret"
	CtxTriggerSubject   = "trigger_subject"
)

// TriggerAuthMiddleware guards the sync and admin routes. A caller presents
// either the shared trigger secret or a signed token carrying the scope.
type TriggerAuthMiddleware struct {
	secret []byte
	jwt    jwt.Service
}

func NewTriggerAuthMiddleware(secret string, jwtSvc jwt.Service) *TriggerAuthMiddleware {
	return &TriggerAuthMiddleware{secret: []byte(strings.TrimSpace(secret)), jwt: jwtSvc}
}

func (m *TriggerAuthMiddleware) Require(scope string) fiber.Handler {
	return func(c fiber.Ctx) error {
		if len(m.secret) == 0 {
			return NewAppError(fiber.StatusUnauthorized, "Trigger auth not configured", nil, nil)
		}

		token, ok := bearerTokenFromHeader(c.Get("Authorization"))
		if !ok {
			token = strings.TrimSpace(c.Get(HeaderTriggerSecret))
		}
		if token == "" {
			return NewAppError(fiber.StatusUnauthorized, "Unauthorized", nil, nil)
		}

		if subtle.ConstantTimeCompare([]byte(token), m.secret) == 1 {
			c.Locals(CtxTriggerSubject, "secret")
			return c.Next()
		}
		if m.jwt == nil {
			return NewAppError(fiber.StatusUnauthorized, "Invalid token", nil, nil)
		}

		claims, err := m.jwt.ValidateToken(token)
		if err != nil {
			if errors.Is(err, jwt.ErrTokenExpired) {
				return NewAppError(fiber.StatusUnauthorized, "Token expired", nil, err)
			}
			return NewAppError(fiber.StatusUnauthorized, "Invalid token", nil, err)
		}
		if !claims.HasScope(scope) {
			return NewAppError(fiber.StatusForbidden, "Insufficient scope", nil, nil)
		}

		c.Locals(CtxTriggerSubject, claims.Subject)
		return c.Next()
	}
}

func bearerTokenFromHeader(authHeader string) (string, bool) {
	authHeader = strings.TrimSpace(authHeader)
	if authHeader == "" {
		return "", false
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}

	token := strings.TrimSpace(parts[1])
	if token == "" {
		return "", false
	}
	return token, true
}
