package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/worker-auth-service/internal/domain"
	apperrors "github.com/spec-kit/worker-auth-service/pkg/util"
)

func newQRService(tokens *fakeTokenRepo, workers *fakeWorkerRepo, admins *fakeAdminRepo, codes *fakeCodeStore) *QRLoginService {
	return NewQRLoginService(testConfig(), QRLoginDependencies{
		TokenRepo:  tokens,
		WorkerRepo: workers,
		AdminRepo:  admins,
		CodeStore:  codes,
	}, zap.NewNop())
}

func domainCode(t *testing.T, err error) string {
	t.Helper()
	var derr *apperrors.DomainError
	if !errors.As(err, &derr) {
		t.Fatalf("expected DomainError, got %v", err)
	}
	return derr.Code
}

func TestGenerateRequiresElevatedAdmin(t *testing.T) {
	workers := newFakeWorkerRepo(&domain.Worker{ID: "w1", Status: domain.WorkerStatusActive})
	admins := newFakeAdminRepo(&domain.Admin{ID: "op1", Role: domain.AdminRoleOperator, Active: true})
	svc := newQRService(newFakeTokenRepo(), workers, admins, newFakeCodeStore())

	_, _, _, err := svc.Generate(context.Background(), "op1", "w1", nil)
	if code := domainCode(t, err); code != "FORBIDDEN" {
		t.Errorf("operator generate: code = %q, want FORBIDDEN", code)
	}

	_, _, _, err = svc.Generate(context.Background(), "nobody", "w1", nil)
	if code := domainCode(t, err); code != "FORBIDDEN" {
		t.Errorf("unknown admin generate: code = %q, want FORBIDDEN", code)
	}
}

func TestGenerateRejectsInactiveWorker(t *testing.T) {
	workers := newFakeWorkerRepo(&domain.Worker{ID: "w1", Status: domain.WorkerStatusSuspended})
	admins := newFakeAdminRepo(&domain.Admin{ID: "a1", Role: domain.AdminRoleAdmin, Active: true})
	svc := newQRService(newFakeTokenRepo(), workers, admins, newFakeCodeStore())

	_, _, _, err := svc.Generate(context.Background(), "a1", "w1", nil)
	if code := domainCode(t, err); code != "INVALID_REQUEST" {
		t.Errorf("suspended worker: code = %q, want INVALID_REQUEST", code)
	}

	_, _, _, err = svc.Generate(context.Background(), "a1", "missing", nil)
	if code := domainCode(t, err); code != "INVALID_REQUEST" {
		t.Errorf("missing worker: code = %q, want INVALID_REQUEST", code)
	}
}

func TestGenerateEvictsPriorPendingTokens(t *testing.T) {
	tokens := newFakeTokenRepo()
	workers := newFakeWorkerRepo(&domain.Worker{ID: "w1", Status: domain.WorkerStatusActive})
	admins := newFakeAdminRepo(&domain.Admin{ID: "a1", Role: domain.AdminRoleSupervisor, Active: true})
	svc := newQRService(tokens, workers, admins, newFakeCodeStore())

	first, _, evicted, err := svc.Generate(context.Background(), "a1", "w1", nil)
	if err != nil {
		t.Fatalf("first generate: %v", err)
	}
	if evicted != 0 {
		t.Errorf("first generate evicted = %d, want 0", evicted)
	}
	if len(first.Token) != domain.LoginTokenLength {
		t.Errorf("token length = %d, want %d", len(first.Token), domain.LoginTokenLength)
	}

	second, _, evicted, err := svc.Generate(context.Background(), "a1", "w1", nil)
	if err != nil {
		t.Fatalf("second generate: %v", err)
	}
	if evicted != 1 {
		t.Errorf("second generate evicted = %d, want 1", evicted)
	}
	if tokens.status(first.ID) != domain.LoginTokenStatusExpired {
		t.Errorf("first token status = %q, want EXPIRED", tokens.status(first.ID))
	}
	if tokens.status(second.ID) != domain.LoginTokenStatusPending {
		t.Errorf("second token status = %q, want PENDING", tokens.status(second.ID))
	}
}

func TestGenerateHonorsExpiryOverride(t *testing.T) {
	workers := newFakeWorkerRepo(&domain.Worker{ID: "w1", Status: domain.WorkerStatusActive})
	admins := newFakeAdminRepo(&domain.Admin{ID: "a1", Role: domain.AdminRoleAdmin, Active: true})
	svc := newQRService(newFakeTokenRepo(), workers, admins, newFakeCodeStore())

	minutes := 2
	tok, _, _, err := svc.Generate(context.Background(), "a1", "w1", &minutes)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if tok.ExpiresAt == nil {
		t.Fatal("expires_at not set")
	}
	ttl := time.Until(*tok.ExpiresAt)
	if ttl > 2*time.Minute || ttl < time.Minute {
		t.Errorf("ttl = %v, want about 2m", ttl)
	}
}

func TestRedeemUnknownTokenIsNotFound(t *testing.T) {
	svc := newQRService(newFakeTokenRepo(), newFakeWorkerRepo(), newFakeAdminRepo(), newFakeCodeStore())

	_, err := svc.Redeem(context.Background(), "no-such-token")
	if code := domainCode(t, err); code != "NOT_FOUND" {
		t.Errorf("code = %q, want NOT_FOUND", code)
	}
}

func TestRedeemExpiredPendingTokenFlipsStatus(t *testing.T) {
	past := time.Now().Add(-time.Minute)
	tokens := newFakeTokenRepo(&domain.LoginQRToken{
		ID:        "t1",
		Token:     "stale-token",
		WorkerID:  "w1",
		Status:    domain.LoginTokenStatusPending,
		ExpiresAt: &past,
	})
	svc := newQRService(tokens, newFakeWorkerRepo(), newFakeAdminRepo(), newFakeCodeStore())

	_, err := svc.Redeem(context.Background(), "stale-token")
	if code := domainCode(t, err); code != "EXPIRED" {
		t.Errorf("code = %q, want EXPIRED", code)
	}
	if tokens.status("t1") != domain.LoginTokenStatusExpired {
		t.Errorf("stored status = %q, want EXPIRED after lazy flip", tokens.status("t1"))
	}
}

func TestRedeemUsedTokenIsAlreadyUsed(t *testing.T) {
	future := time.Now().Add(time.Hour)
	tokens := newFakeTokenRepo(&domain.LoginQRToken{
		ID:        "t1",
		Token:     "used-token",
		WorkerID:  "w1",
		Status:    domain.LoginTokenStatusUsed,
		ExpiresAt: &future,
	})
	svc := newQRService(tokens, newFakeWorkerRepo(), newFakeAdminRepo(), newFakeCodeStore())

	_, err := svc.Redeem(context.Background(), "used-token")
	if code := domainCode(t, err); code != "ALREADY_USED" {
		t.Errorf("code = %q, want ALREADY_USED", code)
	}
}

// A token that is both used and past expiry reports EXPIRED only when the
// stored status says so; a USED token never regresses to EXPIRED, and an
// expired PENDING token never reports ALREADY_USED.
func TestRedeemClassificationOrder(t *testing.T) {
	past := time.Now().Add(-time.Minute)
	tokens := newFakeTokenRepo(&domain.LoginQRToken{
		ID:        "t1",
		Token:     "used-and-stale",
		WorkerID:  "w1",
		Status:    domain.LoginTokenStatusUsed,
		ExpiresAt: &past,
	})
	svc := newQRService(tokens, newFakeWorkerRepo(), newFakeAdminRepo(), newFakeCodeStore())

	_, err := svc.Redeem(context.Background(), "used-and-stale")
	if code := domainCode(t, err); code != "ALREADY_USED" {
		t.Errorf("used token past expiry: code = %q, want ALREADY_USED", code)
	}
}

func TestResolveByCode(t *testing.T) {
	workers := newFakeWorkerRepo(&domain.Worker{ID: "w1", Status: domain.WorkerStatusActive})
	admins := newFakeAdminRepo(&domain.Admin{ID: "a1", Role: domain.AdminRoleAdmin, Active: true})
	codes := newFakeCodeStore()
	svc := newQRService(newFakeTokenRepo(), workers, admins, codes)

	tok, _, _, err := svc.Generate(context.Background(), "a1", "w1", nil)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	value, err := svc.ResolveByCode(context.Background(), tok.HumanCode)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if value != tok.Token {
		t.Errorf("resolved value = %q, want %q", value, tok.Token)
	}

	_, err = svc.ResolveByCode(context.Background(), "000001")
	if code := domainCode(t, err); code != "NOT_FOUND" {
		t.Errorf("unknown code: code = %q, want NOT_FOUND", code)
	}
}
