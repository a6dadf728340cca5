package domain

import "time"

// DeviceInfo is the client-reported identity snapshot sent at login.
type DeviceInfo struct {
	DeviceUID  string
	Model      string
	Platform   string
	AppVersion string
}

// Device is the durable identity of a physical client, independent of any
// one session. A device belongs to exactly one worker at a time; a new
// login rebinds it ("last login wins").
type Device struct {
	ID               string
	DeviceUID        string
	WorkerID         string
	Model            string
	Platform         string
	AppVersion       string
	IsLoggedIn       bool
	SessionToken     *string
	SessionStartedAt *time.Time
	SessionExpiresAt *time.Time
	LastActivityAt   *time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// SessionExpired reports whether the attached session is past its expiry.
func (d *Device) SessionExpired(now time.Time) bool {
	return d.SessionExpiresAt != nil && now.After(*d.SessionExpiresAt)
}

// HasActiveSession reports whether the device holds a live session at the
// given time.
func (d *Device) HasActiveSession(now time.Time) bool {
	return d.IsLoggedIn && d.SessionToken != nil && !d.SessionExpired(now)
}
