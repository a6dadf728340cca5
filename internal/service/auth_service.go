package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/worker-auth-service/internal/domain"
	"github.com/spec-kit/worker-auth-service/internal/events"
	"github.com/spec-kit/worker-auth-service/internal/observability"
	"github.com/spec-kit/worker-auth-service/internal/repository"
	apperrors "github.com/spec-kit/worker-auth-service/pkg/util"
)

// AuthService sequences the delegated-login flows: generate QR, authenticate
// a device, refresh, and logout in both single and forced forms.
type AuthService struct {
	qr         *QRLoginService
	deviceSvc  *DeviceService
	sessions   *SessionService
	workers    repository.WorkerRepository
	dispatcher events.Dispatcher
	metrics    *observability.Metrics
	logger     *zap.Logger
}

// NewAuthService builds the orchestrator.
func NewAuthService(qr *QRLoginService, deviceSvc *DeviceService, sessions *SessionService, workers repository.WorkerRepository, dispatcher events.Dispatcher, metrics *observability.Metrics, logger *zap.Logger) *AuthService {
	return &AuthService{
		qr:         qr,
		deviceSvc:  deviceSvc,
		sessions:   sessions,
		workers:    workers,
		dispatcher: dispatcher,
		metrics:    metrics,
		logger:     logger,
	}
}

// GenerateQR issues a fresh login token for the worker on the admin's
// behalf.
func (s *AuthService) GenerateQR(ctx context.Context, adminID, workerID string, expiresInMinutes *int) (*domain.LoginQRToken, *domain.Worker, error) {
	qrToken, worker, evicted, err := s.qr.Generate(ctx, adminID, workerID, expiresInMinutes)
	if err != nil {
		return nil, nil, err
	}

	s.publish(ctx, events.EventQRTokenGenerated, workerID, events.Actor{AdminID: &adminID},
		events.QRTokenGeneratedPayload{
			TokenID:   qrToken.ID,
			AdminID:   adminID,
			ExpiresAt: qrToken.ExpiresAt,
			Evicted:   evicted,
		})
	return qrToken, worker, nil
}

// Authenticate redeems a QR token (or its human code) from a device and
// returns a new session descriptor.
func (s *AuthService) Authenticate(ctx context.Context, tokenValue, humanCode string, info domain.DeviceInfo) (*domain.WorkerSession, error) {
	session, err := s.authenticate(ctx, tokenValue, humanCode, info)
	s.recordLogin(err)
	return session, err
}

func (s *AuthService) authenticate(ctx context.Context, tokenValue, humanCode string, info domain.DeviceInfo) (*domain.WorkerSession, error) {
	if tokenValue == "" && humanCode != "" {
		var err error
		tokenValue, err = s.qr.ResolveByCode(ctx, humanCode)
		if err != nil {
			return nil, err
		}
	}
	if tokenValue == "" {
		return nil, apperrors.NewInvalidRequest("qr_token or code is required", nil)
	}
	if info.DeviceUID == "" {
		return nil, apperrors.NewInvalidRequest("device.device_uid is required", nil)
	}

	qrToken, err := s.qr.Redeem(ctx, tokenValue)
	if err != nil {
		return nil, err
	}

	// Data-integrity check: the worker bound at issue time must still exist.
	worker, err := s.workers.GetByID(ctx, qrToken.WorkerID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			s.logger.Error("login token references missing worker",
				zap.String("token_id", qrToken.ID), zap.String("worker_id", qrToken.WorkerID))
			return nil, apperrors.NewInvalidRequest("worker bound to this token no longer exists", nil)
		}
		return nil, err
	}

	// Make sure the fingerprint has a record; rebinding waits until the
	// issuance transaction has durably claimed the token.
	_, created, err := s.deviceSvc.Resolve(ctx, info, worker.ID)
	if err != nil {
		return nil, err
	}

	session, err := s.sessions.Issue(ctx, qrToken, worker, info)
	if err != nil {
		return nil, err
	}

	s.publish(ctx, events.EventQRTokenRedeemed, worker.ID, events.Actor{WorkerID: &worker.ID},
		events.QRTokenRedeemedPayload{
			TokenID:   qrToken.ID,
			DeviceUID: session.Device.DeviceUID,
			Platform:  session.Device.Platform,
			NewDevice: created,
		})
	return session, nil
}

// Refresh delegates to the session lifecycle manager.
func (s *AuthService) Refresh(ctx context.Context, sessionToken string) (*domain.WorkerSession, error) {
	session, err := s.sessions.Refresh(ctx, sessionToken)
	if err != nil {
		return nil, err
	}

	s.publish(ctx, events.EventSessionRefreshed, session.Worker.ID, events.Actor{WorkerID: &session.Worker.ID},
		events.SessionRefreshedPayload{DeviceUID: session.Device.DeviceUID})
	return session, nil
}

// Logout ends the session carried by the token.
func (s *AuthService) Logout(ctx context.Context, sessionToken string) error {
	device, err := s.sessions.LogoutOne(ctx, sessionToken)
	if err != nil {
		return err
	}

	s.publish(ctx, events.EventSessionRevoked, device.WorkerID, events.Actor{WorkerID: &device.WorkerID},
		events.SessionRevokedPayload{DeviceUID: device.DeviceUID, Reason: domain.SessionStatusRevoked})
	return nil
}

// RevokeSession is the administrative single-session revoke. Idempotent;
// revoking a token with no live session emits no event.
func (s *AuthService) RevokeSession(ctx context.Context, adminID, sessionToken string) error {
	device, err := s.sessions.Revoke(ctx, sessionToken)
	if err != nil {
		return err
	}
	if device == nil {
		return nil
	}

	s.publish(ctx, events.EventSessionRevoked, device.WorkerID, events.Actor{AdminID: &adminID},
		events.SessionRevokedPayload{DeviceUID: device.DeviceUID, Reason: domain.SessionStatusRevoked})
	return nil
}

// ForceLogout revokes all of the worker's sessions on the admin's behalf and
// returns how many were revoked.
func (s *AuthService) ForceLogout(ctx context.Context, adminID, workerID string) (int, error) {
	revoked, err := s.sessions.ForceLogout(ctx, workerID)
	if err != nil {
		return 0, err
	}

	s.publish(ctx, events.EventWorkerForcedLogout, workerID, events.Actor{AdminID: &adminID},
		events.WorkerForcedLogoutPayload{AdminID: adminID, RevokedCount: revoked})
	return revoked, nil
}

// QRStatus returns the state of a login token for the admin status view.
func (s *AuthService) QRStatus(ctx context.Context, tokenValue string) (*domain.LoginQRToken, error) {
	return s.qr.Status(ctx, tokenValue)
}

// ListActiveSessions returns descriptors for all live sessions, optionally
// filtered by worker.
func (s *AuthService) ListActiveSessions(ctx context.Context, workerID string) ([]domain.WorkerSession, error) {
	return s.sessions.ListActive(ctx, workerID)
}

func (s *AuthService) publish(ctx context.Context, eventType events.EventType, workerID string, actor events.Actor, payload interface{}) {
	if s.dispatcher == nil {
		return
	}
	_ = s.dispatcher.Publish(ctx, events.Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		WorkerID:  workerID,
		Actor:     actor,
		Timestamp: time.Now(),
		Payload:   payload,
	})
}

func (s *AuthService) recordLogin(err error) {
	if s.metrics == nil {
		return
	}
	if err == nil {
		s.metrics.RecordLogin("success")
		return
	}
	s.metrics.RecordLogin(apperrors.ToDomainError(err).Code)
}
