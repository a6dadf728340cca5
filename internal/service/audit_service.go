package service

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/worker-auth-service/internal/config"
	"github.com/spec-kit/worker-auth-service/internal/events"
)

// AuditService records auth-domain events for after-the-fact review.
type AuditService struct {
	dispatcher events.Dispatcher
	logger     *zap.Logger
	cfg        config.AuditConfig
}

// NewAuditService creates the service.
func NewAuditService(dispatcher events.Dispatcher, logger *zap.Logger, cfg config.AuditConfig) *AuditService {
	return &AuditService{
		dispatcher: dispatcher,
		logger:     logger,
		cfg:        cfg,
	}
}

// RegisterHandlers subscribes to events.
func (a *AuditService) RegisterHandlers() {
	if a.dispatcher == nil {
		return
	}
	a.dispatcher.Subscribe(events.EventQRTokenGenerated, a.handle)
	a.dispatcher.Subscribe(events.EventQRTokenRedeemed, a.handle)
	a.dispatcher.Subscribe(events.EventSessionRefreshed, a.handle)
	a.dispatcher.Subscribe(events.EventSessionRevoked, a.handle)
	a.dispatcher.Subscribe(events.EventWorkerForcedLogout, a.handle)
}

func (a *AuditService) handle(ctx context.Context, event events.Event) error {
	a.logger.Info("audit",
		zap.String("event_id", event.ID),
		zap.String("event_type", string(event.Type)),
		zap.String("worker_id", event.WorkerID),
		zap.Any("actor", event.Actor),
		zap.Any("payload", event.Payload),
	)
	a.sendWebhookStub(ctx, event)
	return nil
}

func (a *AuditService) sendWebhookStub(_ context.Context, event events.Event) {
	if strings.TrimSpace(a.cfg.WebhookURL) == "" {
		return
	}
	a.logger.Debug("sendWebhookStub",
		zap.String("url", a.cfg.WebhookURL),
		zap.String("event_type", string(event.Type)))
}
