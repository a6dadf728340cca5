package service

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/worker-auth-service/internal/domain"
	"github.com/spec-kit/worker-auth-service/internal/repository"
	apperrors "github.com/spec-kit/worker-auth-service/pkg/util"
)

// DeviceService maps a device fingerprint to its durable record. Resolve
// creates the record on first sight and never mutates an existing one; the
// last-login-wins rebinding happens in Bind, inside the issuance
// transaction, so a login that loses the single-use race cannot touch
// another worker's session.
type DeviceService struct {
	devices repository.DeviceRepository
	workers repository.WorkerRepository
	logger  *zap.Logger
}

// NewDeviceService builds the service.
func NewDeviceService(devices repository.DeviceRepository, workers repository.WorkerRepository, logger *zap.Logger) *DeviceService {
	return &DeviceService{devices: devices, workers: workers, logger: logger}
}

// Resolve returns the device record for the fingerprint, creating it on
// first sight. A creation race with an identical concurrent login falls
// back to reading the record the other creator won; only a failed retry
// surfaces as a conflict. Reports whether the record was newly created.
func (s *DeviceService) Resolve(ctx context.Context, info domain.DeviceInfo, workerID string) (*domain.Device, bool, error) {
	device, err := s.devices.GetByUID(ctx, info.DeviceUID)
	if err == nil {
		return device, false, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, false, err
	}

	fresh := &domain.Device{
		DeviceUID:  info.DeviceUID,
		WorkerID:   workerID,
		Model:      info.Model,
		Platform:   info.Platform,
		AppVersion: info.AppVersion,
	}
	err = s.devices.Create(ctx, fresh)
	if err == nil {
		return fresh, true, nil
	}
	if !errors.Is(err, repository.ErrDuplicateKey) {
		return nil, false, err
	}

	// Lost the creation race; the record exists now.
	s.logger.Info("device creation raced; re-reading", zap.String("device_uid", info.DeviceUID))
	device, err = s.devices.GetByUID(ctx, info.DeviceUID)
	if err != nil {
		return nil, false, apperrors.NewConflictUnresolved("device identity race could not be settled", err)
	}
	return device, false, nil
}

// Bind rebinds the device to workerID and refreshes the profile fields,
// ending the previous owner's session on this device when one is live. The
// record is re-read through db so Bind composes with the issuance
// transaction and runs only after the login token is durably claimed.
func (s *DeviceService) Bind(ctx context.Context, db repository.DB, info domain.DeviceInfo, workerID string) (*domain.Device, error) {
	devices := s.devices.WithDB(db)
	device, err := devices.GetByUID(ctx, info.DeviceUID)
	if err != nil {
		return nil, err
	}

	if device.IsLoggedIn && device.WorkerID != workerID {
		// Rebinding kills the previous owner's session on this device.
		if err := s.releasePreviousOwner(ctx, db, device); err != nil {
			return nil, err
		}
	}
	if err := devices.UpdateBinding(ctx, device.DeviceUID, workerID, info); err != nil {
		return nil, err
	}
	device.WorkerID = workerID
	device.Model = info.Model
	device.Platform = info.Platform
	device.AppVersion = info.AppVersion
	return device, nil
}

func (s *DeviceService) releasePreviousOwner(ctx context.Context, db repository.DB, device *domain.Device) error {
	devices := s.devices.WithDB(db)
	if err := devices.ClearSession(ctx, device.ID); err != nil {
		return err
	}
	device.IsLoggedIn = false
	device.SessionToken = nil
	device.SessionStartedAt = nil
	device.SessionExpiresAt = nil

	remaining, err := devices.CountActiveForWorker(ctx, device.WorkerID)
	if err != nil {
		return err
	}
	if remaining == 0 {
		return s.workers.WithDB(db).SetAuthenticated(ctx, device.WorkerID, false)
	}
	return nil
}
