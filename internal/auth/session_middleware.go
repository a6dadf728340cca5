package auth

import (
	"context"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/worker-auth-service/internal/domain"
)

const sessionKey = "worker_session"

// SessionValidator resolves an opaque session token to a live worker-device
// session. Implemented by service.SessionService.
type SessionValidator interface {
	Validate(ctx context.Context, sessionToken string) (*domain.WorkerSession, error)
}

// SessionMiddleware guards worker routes with opaque session tokens. It runs
// on every worker-authenticated request, so the happy path is one lookup
// plus a best-effort activity write inside the validator.
type SessionMiddleware struct {
	validator SessionValidator
}

// NewSessionMiddleware constructs middleware.
func NewSessionMiddleware(validator SessionValidator) *SessionMiddleware {
	return &SessionMiddleware{validator: validator}
}

// Handle enforces a valid worker session for protected routes.
func (m *SessionMiddleware) Handle(c *fiber.Ctx) error {
	tokenStr, err := bearerToken(c)
	if err != nil {
		return err
	}

	session, err := m.validator.Validate(c.Context(), tokenStr)
	if err != nil {
		return err
	}

	c.Locals(sessionKey, session)
	return c.Next()
}

// SessionFromContext retrieves the validated worker session.
func SessionFromContext(c *fiber.Ctx) (*domain.WorkerSession, bool) {
	val := c.Locals(sessionKey)
	if val == nil {
		return nil, false
	}
	session, ok := val.(*domain.WorkerSession)
	return session, ok
}
