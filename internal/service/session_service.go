package service

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/worker-auth-service/internal/config"
	"github.com/spec-kit/worker-auth-service/internal/domain"
	"github.com/spec-kit/worker-auth-service/internal/repository"
	"github.com/spec-kit/worker-auth-service/internal/token"
	apperrors "github.com/spec-kit/worker-auth-service/pkg/util"
)

// sessionTokenRetries bounds regeneration on a session-token collision.
// Collisions are vanishingly unlikely at 32 random bytes but must not be
// fatal.
const sessionTokenRetries = 3

const activityTouchTimeout = 5 * time.Second

// SessionService issues, refreshes, validates and revokes device-bound
// worker sessions. The durable state lives on the device record.
type SessionService struct {
	tx         repository.TxRunner
	tokens     repository.LoginTokenRepository
	devices    repository.DeviceRepository
	workers    repository.WorkerRepository
	binder     *DeviceService
	logger     *zap.Logger
	sessionTTL time.Duration
}

// SessionDependencies encapsulates requirements for the service.
type SessionDependencies struct {
	TxRunner   repository.TxRunner
	TokenRepo  repository.LoginTokenRepository
	DeviceRepo repository.DeviceRepository
	WorkerRepo repository.WorkerRepository
	Binder     *DeviceService
}

// NewSessionService builds the service.
func NewSessionService(cfg config.Config, deps SessionDependencies, logger *zap.Logger) *SessionService {
	return &SessionService{
		tx:         deps.TxRunner,
		tokens:     deps.TokenRepo,
		devices:    deps.DeviceRepo,
		workers:    deps.WorkerRepo,
		binder:     deps.Binder,
		logger:     logger,
		sessionTTL: cfg.Auth.SessionTTL(),
	}
}

// Issue consumes a redeemable QR token and attaches a new session to the
// device carrying the given fingerprint. The PENDING→USED claim, the device
// rebinding and attachment, and the worker authenticated flag are one
// transaction: two racing redeemers make exactly one session, the loser
// fails before the device is touched, and no reader ever sees the token
// USED without the session attached.
func (s *SessionService) Issue(ctx context.Context, qr *domain.LoginQRToken, worker *domain.Worker, info domain.DeviceInfo) (*domain.WorkerSession, error) {
	now := time.Now()
	var expiresAt *time.Time
	if s.sessionTTL > 0 {
		e := now.Add(s.sessionTTL)
		expiresAt = &e
	}

	var device *domain.Device
	var sessionToken string
	var err error
	for attempt := 0; attempt < sessionTokenRetries; attempt++ {
		sessionToken, err = token.IssueSessionToken()
		if err != nil {
			return nil, err
		}
		device, err = s.issueTx(ctx, qr, worker, info, sessionToken, now, expiresAt)
		if err == nil || !errors.Is(err, repository.ErrDuplicateKey) {
			break
		}
		s.logger.Warn("session token collision; regenerating", zap.Int("attempt", attempt+1))
	}
	if err != nil {
		if errors.Is(err, repository.ErrDuplicateKey) {
			return nil, apperrors.NewInternalError(err)
		}
		return nil, err
	}

	device.IsLoggedIn = true
	device.SessionToken = &sessionToken
	device.SessionStartedAt = &now
	device.SessionExpiresAt = expiresAt
	device.LastActivityAt = &now
	worker.IsAuthenticated = true

	return &domain.WorkerSession{
		Token:        sessionToken,
		Worker:       *worker,
		Device:       *device,
		Status:       domain.SessionStatusActive,
		LoginTime:    now,
		LastActivity: now,
		ExpiresAt:    expiresAt,
	}, nil
}

func (s *SessionService) issueTx(ctx context.Context, qr *domain.LoginQRToken, worker *domain.Worker, info domain.DeviceInfo, sessionToken string, now time.Time, expiresAt *time.Time) (*domain.Device, error) {
	var device *domain.Device
	err := s.tx.InTx(ctx, func(db repository.DB) error {
		won, err := s.tokens.WithDB(db).TransitionStatus(ctx, qr.ID, domain.LoginTokenStatusPending, domain.LoginTokenStatusUsed, &now)
		if err != nil {
			return err
		}
		if !won {
			// A concurrent redeemer claimed the token between our read and
			// this conditional write.
			return apperrors.NewAlreadyUsed("login token already used")
		}
		device, err = s.binder.Bind(ctx, db, info, worker.ID)
		if err != nil {
			return err
		}
		if err := s.devices.WithDB(db).AttachSession(ctx, device.ID, sessionToken, expiresAt); err != nil {
			return err
		}
		return s.workers.WithDB(db).SetAuthenticated(ctx, worker.ID, true)
	})
	if err != nil {
		return nil, err
	}
	return device, nil
}

// Validate resolves a session token to its worker and device. It is the
// inbound guard for every worker-authenticated request; the activity stamp
// is written in the background and never fails the request.
func (s *SessionService) Validate(ctx context.Context, sessionToken string) (*domain.WorkerSession, error) {
	device, err := s.devices.GetBySessionToken(ctx, sessionToken)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewUnauthorized("invalid session token")
		}
		return nil, err
	}

	now := time.Now()
	if !device.IsLoggedIn || device.SessionToken == nil {
		return nil, apperrors.NewUnauthorized("invalid session token")
	}
	if device.SessionExpired(now) {
		return nil, apperrors.NewUnauthorized("session expired")
	}

	worker, err := s.workers.GetByID(ctx, device.WorkerID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewUnauthorized("worker no longer exists")
		}
		return nil, err
	}
	if !worker.IsAuthenticated {
		return nil, apperrors.NewUnauthorized("worker not authenticated")
	}

	s.touchActivityAsync(device.ID)

	return s.describe(worker, device, now), nil
}

// Refresh re-validates a session and stamps activity synchronously. An
// expired session is revoked as a side effect.
func (s *SessionService) Refresh(ctx context.Context, sessionToken string) (*domain.WorkerSession, error) {
	device, err := s.devices.GetBySessionToken(ctx, sessionToken)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewUnauthorized("invalid session")
		}
		return nil, err
	}
	if !device.IsLoggedIn || device.SessionToken == nil {
		return nil, apperrors.NewUnauthorized("invalid session")
	}

	worker, err := s.workers.GetByID(ctx, device.WorkerID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewUnauthorized("worker no longer exists")
		}
		return nil, err
	}
	if !worker.IsAuthenticated {
		return nil, apperrors.NewUnauthorized("worker not authenticated")
	}

	now := time.Now()
	if device.SessionExpired(now) {
		if err := s.revokeDevice(ctx, device); err != nil {
			s.logger.Warn("failed to revoke expired session", zap.String("device_id", device.ID), zap.Error(err))
		}
		return nil, apperrors.NewExpired("session expired")
	}

	if err := s.devices.TouchActivity(ctx, device.ID); err != nil {
		return nil, err
	}
	device.LastActivityAt = &now

	return s.describe(worker, device, now), nil
}

// Revoke ends the session carried by the given token and reports the device
// it ran on. Revoking a token that no longer resolves to a live session is a
// no-op and returns a nil device.
func (s *SessionService) Revoke(ctx context.Context, sessionToken string) (*domain.Device, error) {
	device, err := s.devices.GetBySessionToken(ctx, sessionToken)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	if !device.IsLoggedIn {
		return nil, nil
	}
	if err := s.revokeDevice(ctx, device); err != nil {
		return nil, err
	}
	return device, nil
}

// LogoutOne ends the session carried by the given token, failing when the
// token does not resolve to a live session. The worker's authenticated flag
// is cleared only when no other device still holds a session.
func (s *SessionService) LogoutOne(ctx context.Context, sessionToken string) (*domain.Device, error) {
	device, err := s.devices.GetBySessionToken(ctx, sessionToken)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewUnauthorized("invalid session")
		}
		return nil, err
	}
	if !device.IsLoggedIn {
		return nil, apperrors.NewUnauthorized("invalid session")
	}
	if err := s.revokeDevice(ctx, device); err != nil {
		return nil, err
	}
	return device, nil
}

// revokeDevice clears the device session and re-checks the worker's
// remaining sessions inside one transaction, so a concurrent logout cannot
// leave the authenticated flag pointing at nothing.
func (s *SessionService) revokeDevice(ctx context.Context, device *domain.Device) error {
	err := s.tx.InTx(ctx, func(db repository.DB) error {
		devices := s.devices.WithDB(db)
		if err := devices.ClearSession(ctx, device.ID); err != nil {
			return err
		}
		remaining, err := devices.CountActiveForWorker(ctx, device.WorkerID)
		if err != nil {
			return err
		}
		if remaining == 0 {
			return s.workers.WithDB(db).SetAuthenticated(ctx, device.WorkerID, false)
		}
		return nil
	})
	if err != nil {
		return err
	}
	device.IsLoggedIn = false
	device.SessionToken = nil
	device.SessionStartedAt = nil
	device.SessionExpiresAt = nil
	return nil
}

// ForceLogout revokes every active session of the worker and clears the
// authenticated flag regardless of how many sessions existed. Returns the
// count revoked.
func (s *SessionService) ForceLogout(ctx context.Context, workerID string) (int, error) {
	var revoked int
	err := s.tx.InTx(ctx, func(db repository.DB) error {
		devices := s.devices.WithDB(db)
		active, err := devices.ListActiveForWorker(ctx, workerID)
		if err != nil {
			return err
		}
		for _, device := range active {
			if err := devices.ClearSession(ctx, device.ID); err != nil {
				return err
			}
		}
		revoked = len(active)
		return s.workers.WithDB(db).SetAuthenticated(ctx, workerID, false)
	})
	if err != nil {
		return 0, err
	}
	return revoked, nil
}

// ListActive returns session descriptors for every logged-in device, or just
// the worker's when workerID is set.
func (s *SessionService) ListActive(ctx context.Context, workerID string) ([]domain.WorkerSession, error) {
	var devices []domain.Device
	var err error
	if workerID != "" {
		devices, err = s.devices.ListActiveForWorker(ctx, workerID)
	} else {
		devices, err = s.devices.ListAllActive(ctx)
	}
	if err != nil {
		return nil, err
	}

	now := time.Now()
	sessions := make([]domain.WorkerSession, 0, len(devices))
	for i := range devices {
		device := &devices[i]
		if !device.HasActiveSession(now) {
			// Lazily expired; its next refresh will revoke it.
			continue
		}
		worker, err := s.workers.GetByID(ctx, device.WorkerID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				s.logger.Warn("active device references missing worker", zap.String("device_id", device.ID))
				continue
			}
			return nil, err
		}
		sessions = append(sessions, *s.describe(worker, device, now))
	}
	return sessions, nil
}

func (s *SessionService) describe(worker *domain.Worker, device *domain.Device, now time.Time) *domain.WorkerSession {
	session := &domain.WorkerSession{
		Worker:       *worker,
		Device:       *device,
		Status:       domain.SessionStatusActive,
		LoginTime:    now,
		LastActivity: now,
		ExpiresAt:    device.SessionExpiresAt,
	}
	if device.SessionToken != nil {
		session.Token = *device.SessionToken
	}
	if device.SessionStartedAt != nil {
		session.LoginTime = *device.SessionStartedAt
	}
	if device.LastActivityAt != nil {
		session.LastActivity = *device.LastActivityAt
	}
	return session
}

func (s *SessionService) touchActivityAsync(deviceID string) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), activityTouchTimeout)
		defer cancel()
		if err := s.devices.TouchActivity(ctx, deviceID); err != nil {
			s.logger.Debug("activity touch failed", zap.String("device_id", deviceID), zap.Error(err))
		}
	}()
}
