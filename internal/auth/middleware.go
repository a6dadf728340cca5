package auth

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/worker-auth-service/internal/domain"
	"github.com/spec-kit/worker-auth-service/internal/repository"
	apperrors "github.com/spec-kit/worker-auth-service/pkg/util"
)

const adminKey = "admin_principal"

// AdminMiddleware validates admin bearer JWTs and loads the admin record.
type AdminMiddleware struct {
	tokens *TokenManager
	admins repository.AdminRepository
}

// NewAdminMiddleware constructs middleware.
func NewAdminMiddleware(tokens *TokenManager, admins repository.AdminRepository) *AdminMiddleware {
	return &AdminMiddleware{tokens: tokens, admins: admins}
}

// Handle enforces admin authentication for back-office routes.
func (m *AdminMiddleware) Handle(c *fiber.Ctx) error {
	tokenStr, err := bearerToken(c)
	if err != nil {
		return err
	}

	claims, err := m.tokens.ParseToken(tokenStr)
	if err != nil {
		return apperrors.NewUnauthorized("invalid token")
	}

	admin, err := m.admins.GetByID(c.Context(), claims.AdminID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperrors.NewUnauthorized("admin not found")
		}
		return apperrors.MapError(err)
	}
	if !admin.Active {
		return apperrors.NewForbidden("admin inactive")
	}

	c.Locals(adminKey, admin)
	return c.Next()
}

// AdminFromContext retrieves the authenticated admin.
func AdminFromContext(c *fiber.Ctx) (*domain.Admin, bool) {
	val := c.Locals(adminKey)
	if val == nil {
		return nil, false
	}
	admin, ok := val.(*domain.Admin)
	return admin, ok
}

func bearerToken(c *fiber.Ctx) (string, error) {
	authHeader := c.Get("Authorization")
	if authHeader == "" {
		return "", apperrors.NewUnauthorized("missing authorization header")
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", apperrors.NewUnauthorized("invalid authorization header")
	}
	return parts[1], nil
}
