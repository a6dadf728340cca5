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

// QRLoginService owns the QR login token lifecycle: PENDING → USED | EXPIRED.
type QRLoginService struct {
	tokens  repository.LoginTokenRepository
	workers repository.WorkerRepository
	admins  repository.AdminRepository
	codes   repository.HumanCodeStore
	logger  *zap.Logger
	qrTTL   time.Duration
}

// QRLoginDependencies encapsulates repo requirements for the service.
type QRLoginDependencies struct {
	TokenRepo  repository.LoginTokenRepository
	WorkerRepo repository.WorkerRepository
	AdminRepo  repository.AdminRepository
	CodeStore  repository.HumanCodeStore
}

// NewQRLoginService builds the service.
func NewQRLoginService(cfg config.Config, deps QRLoginDependencies, logger *zap.Logger) *QRLoginService {
	return &QRLoginService{
		tokens:  deps.TokenRepo,
		workers: deps.WorkerRepo,
		admins:  deps.AdminRepo,
		codes:   deps.CodeStore,
		logger:  logger,
		qrTTL:   cfg.Auth.QRTokenTTL(),
	}
}

// Generate issues a new login token for the worker on behalf of the admin.
// Any prior PENDING tokens for the worker are expired first, so at most one
// outstanding token exists per worker. Returns the token, the worker, and
// how many prior tokens were evicted.
func (s *QRLoginService) Generate(ctx context.Context, adminID, workerID string, expiresInMinutes *int) (*domain.LoginQRToken, *domain.Worker, int64, error) {
	elevated, err := s.admins.HasElevatedPermission(ctx, adminID)
	if err != nil {
		return nil, nil, 0, err
	}
	if !elevated {
		return nil, nil, 0, apperrors.NewForbidden("elevated permission required to issue login tokens")
	}

	worker, err := s.workers.GetByID(ctx, workerID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil, 0, apperrors.NewInvalidRequest("worker not found", map[string]any{"worker_id": workerID})
		}
		return nil, nil, 0, err
	}
	if !worker.CanLogIn() {
		return nil, nil, 0, apperrors.NewInvalidRequest("worker is not active", map[string]any{"worker_id": workerID})
	}

	evicted, err := s.tokens.ExpireAllPendingForWorker(ctx, workerID)
	if err != nil {
		return nil, nil, 0, err
	}

	now := time.Now()
	value, err := token.IssueLoginToken(workerID, adminID, now)
	if err != nil {
		s.logger.Error("login token generation violated format invariant", zap.Error(err))
		return nil, nil, 0, err
	}
	code, err := token.IssueHumanCode()
	if err != nil {
		return nil, nil, 0, err
	}

	ttl := s.qrTTL
	if expiresInMinutes != nil && *expiresInMinutes > 0 {
		ttl = time.Duration(*expiresInMinutes) * time.Minute
	}
	expiresAt := now.Add(ttl)

	t := &domain.LoginQRToken{
		Token:     value,
		WorkerID:  workerID,
		AdminID:   adminID,
		Status:    domain.LoginTokenStatusPending,
		HumanCode: code,
		ExpiresAt: &expiresAt,
	}
	if err := s.tokens.Create(ctx, t); err != nil {
		return nil, nil, 0, err
	}

	// The code is a convenience channel; losing it only disables manual entry.
	if err := s.codes.Save(ctx, code, value, ttl); err != nil {
		s.logger.Warn("failed to store human code", zap.Error(err))
	}

	return t, worker, evicted, nil
}

// Redeem classifies a token for redemption without consuming it. The durable
// PENDING→USED claim is compare-and-set inside session issuance.
func (s *QRLoginService) Redeem(ctx context.Context, value string) (*domain.LoginQRToken, error) {
	t, err := s.tokens.GetByToken(ctx, value)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("login token", nil)
		}
		return nil, err
	}

	now := time.Now()
	switch {
	case t.IsExpired(now) && t.Status == domain.LoginTokenStatusPending:
		// Lazy expiry: flip the stored status so later reads agree.
		if _, terr := s.tokens.TransitionStatus(ctx, t.ID, domain.LoginTokenStatusPending, domain.LoginTokenStatusExpired, nil); terr != nil {
			s.logger.Warn("failed to expire stale login token", zap.String("token_id", t.ID), zap.Error(terr))
		}
		return nil, apperrors.NewExpired("login token expired")
	case t.Status == domain.LoginTokenStatusExpired:
		return nil, apperrors.NewExpired("login token expired")
	case t.Status != domain.LoginTokenStatusPending:
		return nil, apperrors.NewAlreadyUsed("login token already used")
	}

	return t, nil
}

// ResolveByCode maps a 6-digit human code to its token value. Codes expire
// with the token they accompany; an unknown code is simply not found.
func (s *QRLoginService) ResolveByCode(ctx context.Context, code string) (string, error) {
	value, err := s.codes.Lookup(ctx, code)
	if err != nil {
		return "", err
	}
	if value == "" {
		return "", apperrors.NewNotFound("login code", nil)
	}
	return value, nil
}

// Status returns the current state of a token for the admin status view.
func (s *QRLoginService) Status(ctx context.Context, value string) (*domain.LoginQRToken, error) {
	t, err := s.tokens.GetByToken(ctx, value)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("login token", nil)
		}
		return nil, err
	}
	return t, nil
}
