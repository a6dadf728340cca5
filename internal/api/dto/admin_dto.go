package dto

import (
	"time"

	"github.com/spec-kit/worker-auth-service/internal/domain"
)

// GenerateQRRequest payload for issuing a login token.
type GenerateQRRequest struct {
	WorkerID         string `json:"worker_id"`
	ExpiresInMinutes *int   `json:"expires_in_minutes"`
}

// QRTokenResponse is returned to the admin after issuing a token.
type QRTokenResponse struct {
	Token     string                  `json:"token"`
	Code      string                  `json:"code"`
	Status    domain.LoginTokenStatus `json:"status"`
	Worker    WorkerSummary           `json:"worker"`
	ExpiresAt *time.Time              `json:"expires_at"`
}

// QRStatusResponse is the admin status view of a login token.
type QRStatusResponse struct {
	Token     string                  `json:"token"`
	Status    domain.LoginTokenStatus `json:"status"`
	WorkerID  string                  `json:"worker_id"`
	AdminID   string                  `json:"admin_id"`
	CreatedAt time.Time               `json:"created_at"`
	ExpiresAt *time.Time              `json:"expires_at"`
	UsedAt    *time.Time              `json:"used_at"`
}

// ForceLogoutResponse reports how many sessions were revoked.
type ForceLogoutResponse struct {
	RevokedCount int `json:"revoked_count"`
}
