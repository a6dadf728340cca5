package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/worker-auth-service/internal/api/dto"
	"github.com/spec-kit/worker-auth-service/internal/auth"
	"github.com/spec-kit/worker-auth-service/internal/service"
	apperrors "github.com/spec-kit/worker-auth-service/pkg/util"
)

// AdminHandler exposes the back-office endpoints for delegated login.
type AdminHandler struct {
	auth *service.AuthService
}

// NewAdminHandler constructs handler.
func NewAdminHandler(authService *service.AuthService) *AdminHandler {
	return &AdminHandler{auth: authService}
}

// GenerateQR handles POST /admin/qr-tokens.
func (h *AdminHandler) GenerateQR(c *fiber.Ctx) error {
	admin, ok := auth.AdminFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("admin required")
	}

	var req dto.GenerateQRRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid payload")
	}
	if req.WorkerID == "" {
		return apperrors.NewInvalidRequest("worker_id is required", nil)
	}

	qrToken, worker, err := h.auth.GenerateQR(c.Context(), admin.ID, req.WorkerID, req.ExpiresInMinutes)
	if err != nil {
		return err
	}

	return c.Status(http.StatusCreated).JSON(fiber.Map{
		"data": dto.QRTokenResponse{
			Token:  qrToken.Token,
			Code:   qrToken.HumanCode,
			Status: qrToken.Status,
			Worker: dto.WorkerSummary{
				ID:     worker.ID,
				Name:   worker.Name,
				Phone:  worker.Phone,
				Status: worker.Status,
			},
			ExpiresAt: qrToken.ExpiresAt,
		},
	})
}

// QRStatus handles GET /admin/qr-tokens/:token.
func (h *AdminHandler) QRStatus(c *fiber.Ctx) error {
	tokenValue := c.Params("token")
	if tokenValue == "" {
		return apperrors.NewInvalidRequest("token is required", nil)
	}

	qrToken, err := h.auth.QRStatus(c.Context(), tokenValue)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"data": dto.QRStatusResponse{
			Token:     qrToken.Token,
			Status:    qrToken.Status,
			WorkerID:  qrToken.WorkerID,
			AdminID:   qrToken.AdminID,
			CreatedAt: qrToken.CreatedAt,
			ExpiresAt: qrToken.ExpiresAt,
			UsedAt:    qrToken.UsedAt,
		},
	})
}

// ListSessions handles GET /admin/sessions.
func (h *AdminHandler) ListSessions(c *fiber.Ctx) error {
	sessions, err := h.auth.ListActiveSessions(c.Context(), c.Query("worker_id"))
	if err != nil {
		return err
	}

	items := make([]dto.SessionResponse, 0, len(sessions))
	for i := range sessions {
		items = append(items, dto.NewSessionResponse(&sessions[i]))
	}
	return c.JSON(fiber.Map{
		"data": items,
	})
}

// RevokeSession handles DELETE /admin/sessions/:token.
func (h *AdminHandler) RevokeSession(c *fiber.Ctx) error {
	admin, ok := auth.AdminFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("admin required")
	}

	tokenValue := c.Params("token")
	if tokenValue == "" {
		return apperrors.NewInvalidRequest("token is required", nil)
	}

	if err := h.auth.RevokeSession(c.Context(), admin.ID, tokenValue); err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"data": fiber.Map{"revoked": true},
	})
}

// ForceLogout handles POST /admin/workers/:id/force-logout.
func (h *AdminHandler) ForceLogout(c *fiber.Ctx) error {
	admin, ok := auth.AdminFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("admin required")
	}

	workerID := c.Params("id")
	if workerID == "" {
		return apperrors.NewInvalidRequest("worker id is required", nil)
	}

	revoked, err := h.auth.ForceLogout(c.Context(), admin.ID, workerID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"data": dto.ForceLogoutResponse{RevokedCount: revoked},
	})
}
