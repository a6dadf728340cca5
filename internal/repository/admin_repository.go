package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/worker-auth-service/internal/domain"
)

// AdminRepository defines persistence access for back-office administrators.
type AdminRepository interface {
	GetByID(ctx context.Context, id string) (*domain.Admin, error)
	HasElevatedPermission(ctx context.Context, adminID string) (bool, error)
}

type adminRepository struct {
	db DB
}

// NewAdminRepository returns a Postgres-backed implementation.
func NewAdminRepository(db DB) AdminRepository {
	return &adminRepository{db: db}
}

func (r *adminRepository) GetByID(ctx context.Context, id string) (*domain.Admin, error) {
	const query = `
        SELECT id, name, email, role, active, created_at, updated_at
        FROM admins WHERE id=$1`

	var admin domain.Admin
	if err := r.db.QueryRow(ctx, query, id).Scan(
		&admin.ID,
		&admin.Name,
		&admin.Email,
		&admin.Role,
		&admin.Active,
		&admin.CreatedAt,
		&admin.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &admin, nil
}

func (r *adminRepository) HasElevatedPermission(ctx context.Context, adminID string) (bool, error) {
	admin, err := r.GetByID(ctx, adminID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, err
	}
	return admin.Active && admin.Role.Elevated(), nil
}
