package repository

import (
	"context"
	"time"

	"github.com/spec-kit/worker-auth-service/internal/domain"
)

// LoginTokenRepository manages QR login token persistence. Status writes go
// through TransitionStatus so the PENDING→USED claim stays compare-and-set.
type LoginTokenRepository interface {
	Create(ctx context.Context, t *domain.LoginQRToken) error
	GetByToken(ctx context.Context, value string) (*domain.LoginQRToken, error)
	TransitionStatus(ctx context.Context, id string, expected, next domain.LoginTokenStatus, usedAt *time.Time) (bool, error)
	ExpireAllPendingForWorker(ctx context.Context, workerID string) (int64, error)
	WithDB(db DB) LoginTokenRepository
}

type loginTokenRepository struct {
	db DB
}

// NewLoginTokenRepository returns a Postgres-backed implementation.
func NewLoginTokenRepository(db DB) LoginTokenRepository {
	return &loginTokenRepository{db: db}
}

func (r *loginTokenRepository) WithDB(db DB) LoginTokenRepository {
	if db == nil {
		return r
	}
	return &loginTokenRepository{db: db}
}

func (r *loginTokenRepository) Create(ctx context.Context, t *domain.LoginQRToken) error {
	const query = `
        INSERT INTO login_qr_tokens (token, worker_id, admin_id, status, human_code, expires_at)
        VALUES ($1,$2,$3,$4,$5,$6)
        RETURNING id, created_at`

	err := r.db.QueryRow(ctx, query,
		t.Token,
		t.WorkerID,
		t.AdminID,
		t.Status,
		t.HumanCode,
		t.ExpiresAt,
	).Scan(&t.ID, &t.CreatedAt)
	return translateError(err)
}

func (r *loginTokenRepository) GetByToken(ctx context.Context, value string) (*domain.LoginQRToken, error) {
	const query = `
        SELECT id, token, worker_id, admin_id, status, human_code, created_at, expires_at, used_at
        FROM login_qr_tokens WHERE token=$1`

	var t domain.LoginQRToken
	if err := r.db.QueryRow(ctx, query, value).Scan(
		&t.ID,
		&t.Token,
		&t.WorkerID,
		&t.AdminID,
		&t.Status,
		&t.HumanCode,
		&t.CreatedAt,
		&t.ExpiresAt,
		&t.UsedAt,
	); err != nil {
		return nil, err
	}
	return &t, nil
}

// TransitionStatus performs a conditional update guarded by the expected
// current status. It reports whether this caller won the transition.
func (r *loginTokenRepository) TransitionStatus(ctx context.Context, id string, expected, next domain.LoginTokenStatus, usedAt *time.Time) (bool, error) {
	const query = `
        UPDATE login_qr_tokens SET status=$1, used_at=COALESCE($2, used_at)
        WHERE id=$3 AND status=$4`

	cmd, err := r.db.Exec(ctx, query, next, usedAt, id, expected)
	if err != nil {
		return false, err
	}
	return cmd.RowsAffected() == 1, nil
}

func (r *loginTokenRepository) ExpireAllPendingForWorker(ctx context.Context, workerID string) (int64, error) {
	const query = `
        UPDATE login_qr_tokens SET status=$1
        WHERE worker_id=$2 AND status=$3`

	cmd, err := r.db.Exec(ctx, query, domain.LoginTokenStatusExpired, workerID, domain.LoginTokenStatusPending)
	if err != nil {
		return 0, err
	}
	return cmd.RowsAffected(), nil
}
