package events

import (
	"time"

	"github.com/spec-kit/worker-auth-service/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventQRTokenGenerated   EventType = "qr_token_generated"
	EventQRTokenRedeemed    EventType = "qr_token_redeemed"
	EventSessionRefreshed   EventType = "session_refreshed"
	EventSessionRevoked     EventType = "session_revoked"
	EventWorkerForcedLogout EventType = "worker_forced_logout"
)

// Actor encapsulates who triggered an event.
type Actor struct {
	AdminID  *string `json:"admin_id,omitempty"`
	WorkerID *string `json:"worker_id,omitempty"`
}

// Event represents a domain event emitted by services.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	WorkerID  string      `json:"worker_id"`
	Actor     Actor       `json:"actor"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// QRTokenGeneratedPayload payload.
type QRTokenGeneratedPayload struct {
	TokenID   string     `json:"token_id"`
	AdminID   string     `json:"admin_id"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
	Evicted   int64      `json:"evicted_pending"`
}

// QRTokenRedeemedPayload payload.
type QRTokenRedeemedPayload struct {
	TokenID   string `json:"token_id"`
	DeviceUID string `json:"device_uid"`
	Platform  string `json:"platform"`
	NewDevice bool   `json:"new_device"`
}

// SessionRefreshedPayload payload.
type SessionRefreshedPayload struct {
	DeviceUID string `json:"device_uid"`
}

// SessionRevokedPayload payload.
type SessionRevokedPayload struct {
	DeviceUID string               `json:"device_uid"`
	Reason    domain.SessionStatus `json:"reason"`
}

// WorkerForcedLogoutPayload payload.
type WorkerForcedLogoutPayload struct {
	AdminID      string `json:"admin_id"`
	RevokedCount int    `json:"revoked_count"`
}
