package dto

import (
	"time"

	"github.com/spec-kit/worker-auth-service/internal/domain"
)

// DeviceInfoRequest is the client-reported device snapshot sent at login.
type DeviceInfoRequest struct {
	DeviceUID  string `json:"device_uid"`
	Model      string `json:"model"`
	Platform   string `json:"platform"`
	AppVersion string `json:"app_version"`
}

// Info converts to the domain snapshot.
func (r DeviceInfoRequest) Info() domain.DeviceInfo {
	return domain.DeviceInfo{
		DeviceUID:  r.DeviceUID,
		Model:      r.Model,
		Platform:   r.Platform,
		AppVersion: r.AppVersion,
	}
}

// WorkerLoginRequest payload; exactly one of qr_token or code is expected.
type WorkerLoginRequest struct {
	QRToken string            `json:"qr_token"`
	Code    string            `json:"code"`
	Device  DeviceInfoRequest `json:"device"`
}

// WorkerSummary response.
type WorkerSummary struct {
	ID     string              `json:"id"`
	Name   string              `json:"name"`
	Phone  string              `json:"phone"`
	Status domain.WorkerStatus `json:"status"`
}

// DeviceSummary response.
type DeviceSummary struct {
	ID             string     `json:"id"`
	DeviceUID      string     `json:"device_uid"`
	Model          string     `json:"model"`
	Platform       string     `json:"platform"`
	AppVersion     string     `json:"app_version"`
	LastActivityAt *time.Time `json:"last_activity_at"`
}

// SessionResponse describes an issued or refreshed session.
type SessionResponse struct {
	Token        string        `json:"token"`
	Worker       WorkerSummary `json:"worker"`
	Device       DeviceSummary `json:"device"`
	LoginTime    time.Time     `json:"login_time"`
	LastActivity time.Time     `json:"last_activity"`
	ExpiresAt    *time.Time    `json:"expires_at"`
}

// NewSessionResponse maps a session descriptor.
func NewSessionResponse(session *domain.WorkerSession) SessionResponse {
	return SessionResponse{
		Token: session.Token,
		Worker: WorkerSummary{
			ID:     session.Worker.ID,
			Name:   session.Worker.Name,
			Phone:  session.Worker.Phone,
			Status: session.Worker.Status,
		},
		Device: DeviceSummary{
			ID:             session.Device.ID,
			DeviceUID:      session.Device.DeviceUID,
			Model:          session.Device.Model,
			Platform:       session.Device.Platform,
			AppVersion:     session.Device.AppVersion,
			LastActivityAt: session.Device.LastActivityAt,
		},
		LoginTime:    session.LoginTime,
		LastActivity: session.LastActivity,
		ExpiresAt:    session.ExpiresAt,
	}
}
