package domain

import "time"

// SessionStatus enumerates worker-session lifecycle states.
type SessionStatus string

const (
	SessionStatusActive  SessionStatus = "ACTIVE"
	SessionStatusRevoked SessionStatus = "REVOKED"
	SessionStatusExpired SessionStatus = "EXPIRED"
)

// SessionTokenMinLength is the minimum length of a session token value.
const SessionTokenMinLength = 32

// WorkerSession describes one authenticated worker-device pairing. The
// durable state lives on the device record; this type is the view handed
// to callers.
type WorkerSession struct {
	Token        string
	Worker       Worker
	Device       Device
	Status       SessionStatus
	LoginTime    time.Time
	LastActivity time.Time
	ExpiresAt    *time.Time
}

// IsActive reports whether the session is live at the given time.
func (s *WorkerSession) IsActive(now time.Time) bool {
	if s.Status != SessionStatusActive {
		return false
	}
	return s.ExpiresAt == nil || !now.After(*s.ExpiresAt)
}
