package domain

import "time"

// LoginTokenStatus enumerates lifecycle states for a QR login token.
type LoginTokenStatus string

const (
	LoginTokenStatusPending LoginTokenStatus = "PENDING"
	LoginTokenStatusUsed    LoginTokenStatus = "USED"
	LoginTokenStatusExpired LoginTokenStatus = "EXPIRED"
)

// LoginTokenLength is the exact length of a QR login token value.
const LoginTokenLength = 64

// LoginQRToken is a single-use credential an admin issues on behalf of a
// worker to bootstrap a device login.
type LoginQRToken struct {
	ID        string
	Token     string
	WorkerID  string
	AdminID   string
	Status    LoginTokenStatus
	HumanCode string
	CreatedAt time.Time
	ExpiresAt *time.Time
	UsedAt    *time.Time
}

// IsExpired reports whether the token's expiry has passed at the given time.
func (t *LoginQRToken) IsExpired(now time.Time) bool {
	return t.ExpiresAt != nil && now.After(*t.ExpiresAt)
}

// CanBeUsed reports whether the token is redeemable at the given time.
func (t *LoginQRToken) CanBeUsed(now time.Time) bool {
	return t.Status == LoginTokenStatusPending && !t.IsExpired(now)
}

// MarkUsed returns a copy transitioned to USED with usedAt stamped. The
// durable transition is a separate conditional write; see the login token
// repository.
func (t LoginQRToken) MarkUsed(now time.Time) LoginQRToken {
	t.Status = LoginTokenStatusUsed
	t.UsedAt = &now
	return t
}

// Expire returns a copy transitioned to the terminal EXPIRED state.
func (t LoginQRToken) Expire() LoginQRToken {
	t.Status = LoginTokenStatusExpired
	return t
}
