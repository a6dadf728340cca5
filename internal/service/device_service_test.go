package service

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/worker-auth-service/internal/domain"
	"github.com/spec-kit/worker-auth-service/internal/repository"
)

func TestResolveCreatesUnknownDevice(t *testing.T) {
	devices := newFakeDeviceRepo()
	workers := newFakeWorkerRepo(&domain.Worker{ID: "w1", Status: domain.WorkerStatusActive})
	svc := NewDeviceService(devices, workers, zap.NewNop())

	info := domain.DeviceInfo{DeviceUID: "uid-1", Model: "Pixel 8", Platform: "android", AppVersion: "3.1.0"}
	device, created, err := svc.Resolve(context.Background(), info, "w1")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if !created {
		t.Error("created = false, want true for first sight")
	}
	if device.WorkerID != "w1" || device.DeviceUID != "uid-1" {
		t.Errorf("device bound to %q/%q, want w1/uid-1", device.WorkerID, device.DeviceUID)
	}
}

func TestResolveLeavesExistingBindingUntouched(t *testing.T) {
	devices := newFakeDeviceRepo(&domain.Device{
		ID:        "d1",
		DeviceUID: "uid-1",
		WorkerID:  "w1",
		Model:     "Pixel 7",
	})
	workers := newFakeWorkerRepo(
		&domain.Worker{ID: "w1", Status: domain.WorkerStatusActive},
		&domain.Worker{ID: "w2", Status: domain.WorkerStatusActive},
	)
	svc := NewDeviceService(devices, workers, zap.NewNop())

	info := domain.DeviceInfo{DeviceUID: "uid-1", Model: "Pixel 8", Platform: "android", AppVersion: "3.2.0"}
	device, created, err := svc.Resolve(context.Background(), info, "w2")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if created {
		t.Error("created = true, want false for a known device")
	}
	if device.ID != "d1" {
		t.Errorf("device = %q, want the existing d1", device.ID)
	}

	stored := devices.get("d1")
	if stored.WorkerID != "w1" || stored.Model != "Pixel 7" {
		t.Error("resolve mutated the record before the login was claimed")
	}
}

func TestBindRebindsExistingDevice(t *testing.T) {
	devices := newFakeDeviceRepo(&domain.Device{
		ID:        "d1",
		DeviceUID: "uid-1",
		WorkerID:  "w1",
		Model:     "Pixel 7",
	})
	workers := newFakeWorkerRepo(
		&domain.Worker{ID: "w1", Status: domain.WorkerStatusActive},
		&domain.Worker{ID: "w2", Status: domain.WorkerStatusActive},
	)
	svc := NewDeviceService(devices, workers, zap.NewNop())

	info := domain.DeviceInfo{DeviceUID: "uid-1", Model: "Pixel 8", Platform: "android", AppVersion: "3.2.0"}
	device, err := svc.Bind(context.Background(), nil, info, "w2")
	if err != nil {
		t.Fatalf("bind: %v", err)
	}
	if device.WorkerID != "w2" {
		t.Errorf("worker = %q, want w2 (last login wins)", device.WorkerID)
	}
	if device.Model != "Pixel 8" || device.AppVersion != "3.2.0" {
		t.Errorf("profile not refreshed: %q %q", device.Model, device.AppVersion)
	}

	stored := devices.get("d1")
	if stored.WorkerID != "w2" {
		t.Errorf("stored worker = %q, want w2", stored.WorkerID)
	}
}

func TestBindReleasesPreviousOwnerSession(t *testing.T) {
	token := "old-session-token-of-previous-owner"
	started := time.Now().Add(-time.Hour)
	devices := newFakeDeviceRepo(&domain.Device{
		ID:               "d1",
		DeviceUID:        "uid-1",
		WorkerID:         "w1",
		IsLoggedIn:       true,
		SessionToken:     &token,
		SessionStartedAt: &started,
	})
	workers := newFakeWorkerRepo(
		&domain.Worker{ID: "w1", Status: domain.WorkerStatusActive, IsAuthenticated: true},
		&domain.Worker{ID: "w2", Status: domain.WorkerStatusActive},
	)
	svc := NewDeviceService(devices, workers, zap.NewNop())

	if _, err := svc.Bind(context.Background(), nil, domain.DeviceInfo{DeviceUID: "uid-1"}, "w2"); err != nil {
		t.Fatalf("bind: %v", err)
	}

	stored := devices.get("d1")
	if stored.IsLoggedIn || stored.SessionToken != nil {
		t.Error("previous owner's session survived the rebind")
	}
	if workers.authenticated("w1") {
		t.Error("previous owner still authenticated with no remaining session")
	}
}

func TestBindKeepsPreviousOwnerFlagWithOtherSessions(t *testing.T) {
	token1 := "session-on-contested-device-000000"
	token2 := "session-on-other-device-111111111"
	devices := newFakeDeviceRepo(
		&domain.Device{ID: "d1", DeviceUID: "uid-1", WorkerID: "w1", IsLoggedIn: true, SessionToken: &token1},
		&domain.Device{ID: "d2", DeviceUID: "uid-2", WorkerID: "w1", IsLoggedIn: true, SessionToken: &token2},
	)
	workers := newFakeWorkerRepo(
		&domain.Worker{ID: "w1", Status: domain.WorkerStatusActive, IsAuthenticated: true},
		&domain.Worker{ID: "w2", Status: domain.WorkerStatusActive},
	)
	svc := NewDeviceService(devices, workers, zap.NewNop())

	if _, err := svc.Bind(context.Background(), nil, domain.DeviceInfo{DeviceUID: "uid-1"}, "w2"); err != nil {
		t.Fatalf("bind: %v", err)
	}
	if !workers.authenticated("w1") {
		t.Error("previous owner lost the authenticated flag despite a live session elsewhere")
	}
}

func TestResolveCreationRaceFallsBackToReRead(t *testing.T) {
	// The winner's record already exists, but the first read misses it and
	// the insert collides, as when two identical logins race.
	devices := newFakeDeviceRepo(&domain.Device{ID: "d1", DeviceUID: "uid-1", WorkerID: "w9"})
	devices.getUIDErrs = []error{pgx.ErrNoRows}

	workers := newFakeWorkerRepo(&domain.Worker{ID: "w1", Status: domain.WorkerStatusActive})
	svc := NewDeviceService(devices, workers, zap.NewNop())

	device, created, err := svc.Resolve(context.Background(), domain.DeviceInfo{DeviceUID: "uid-1"}, "w1")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if created {
		t.Error("created = true, want false after losing the race")
	}
	if device.ID != "d1" || device.WorkerID != "w9" {
		t.Error("re-read did not surface the winner's record untouched")
	}
}

func TestResolveUnresolvableRaceIsConflict(t *testing.T) {
	devices := newFakeDeviceRepo()
	// Create reports a duplicate but the re-read still finds nothing.
	devices.createErrs = []error{repository.ErrDuplicateKey}
	workers := newFakeWorkerRepo(&domain.Worker{ID: "w1", Status: domain.WorkerStatusActive})
	svc := NewDeviceService(devices, workers, zap.NewNop())

	_, _, err := svc.Resolve(context.Background(), domain.DeviceInfo{DeviceUID: "uid-races"}, "w1")
	if code := domainCode(t, err); code != "CONFLICT_UNRESOLVED" {
		t.Errorf("code = %q, want CONFLICT_UNRESOLVED", code)
	}
}
