package repository

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/worker-auth-service/internal/domain"
)

// WorkerRepository defines persistence access for field workers.
type WorkerRepository interface {
	GetByID(ctx context.Context, id string) (*domain.Worker, error)
	SetAuthenticated(ctx context.Context, workerID string, authenticated bool) error
	WithDB(db DB) WorkerRepository
}

type workerRepository struct {
	db DB
}

// NewWorkerRepository returns a Postgres-backed implementation.
func NewWorkerRepository(db DB) WorkerRepository {
	return &workerRepository{db: db}
}

func (r *workerRepository) WithDB(db DB) WorkerRepository {
	if db == nil {
		return r
	}
	return &workerRepository{db: db}
}

func (r *workerRepository) GetByID(ctx context.Context, id string) (*domain.Worker, error) {
	const query = `
        SELECT id, name, phone, status, is_authenticated, created_at, updated_at
        FROM workers WHERE id=$1`

	var worker domain.Worker
	if err := r.db.QueryRow(ctx, query, id).Scan(
		&worker.ID,
		&worker.Name,
		&worker.Phone,
		&worker.Status,
		&worker.IsAuthenticated,
		&worker.CreatedAt,
		&worker.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &worker, nil
}

func (r *workerRepository) SetAuthenticated(ctx context.Context, workerID string, authenticated bool) error {
	const query = `
        UPDATE workers SET is_authenticated=$1, updated_at=NOW()
        WHERE id=$2`

	cmd, err := r.db.Exec(ctx, query, authenticated, workerID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}
