package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/worker-auth-service/internal/api/dto"
	"github.com/spec-kit/worker-auth-service/internal/auth"
	"github.com/spec-kit/worker-auth-service/internal/service"
	apperrors "github.com/spec-kit/worker-auth-service/pkg/util"
)

// AuthHandler exposes the worker-facing login and session endpoints.
type AuthHandler struct {
	auth *service.AuthService
}

// NewAuthHandler constructs handler.
func NewAuthHandler(authService *service.AuthService) *AuthHandler {
	return &AuthHandler{auth: authService}
}

// Login handles POST /auth/worker/login.
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req dto.WorkerLoginRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid payload")
	}
	if req.QRToken == "" && req.Code == "" {
		return apperrors.NewInvalidRequest("qr_token or code is required", nil)
	}
	if req.Device.DeviceUID == "" {
		return apperrors.NewInvalidRequest("device.device_uid is required", nil)
	}

	session, err := h.auth.Authenticate(c.Context(), req.QRToken, req.Code, req.Device.Info())
	if err != nil {
		return err
	}

	return c.Status(http.StatusCreated).JSON(fiber.Map{
		"data": dto.NewSessionResponse(session),
	})
}

// Session handles GET /auth/worker/session.
func (h *AuthHandler) Session(c *fiber.Ctx) error {
	session, ok := auth.SessionFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("session required")
	}
	return c.JSON(fiber.Map{
		"data": dto.NewSessionResponse(session),
	})
}

// Refresh handles POST /auth/worker/session/refresh.
func (h *AuthHandler) Refresh(c *fiber.Ctx) error {
	session, ok := auth.SessionFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("session required")
	}

	refreshed, err := h.auth.Refresh(c.Context(), session.Token)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"data": dto.NewSessionResponse(refreshed),
	})
}

// Logout handles POST /auth/worker/logout.
func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	session, ok := auth.SessionFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("session required")
	}

	if err := h.auth.Logout(c.Context(), session.Token); err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"data": fiber.Map{"logged_out": true},
	})
}
