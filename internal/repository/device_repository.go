package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/worker-auth-service/internal/domain"
)

// DeviceRepository defines persistence access for device records. Create
// fails with ErrDuplicateKey on a fingerprint collision; AttachSession fails
// with ErrDuplicateKey when the generated session token already exists.
type DeviceRepository interface {
	GetByUID(ctx context.Context, deviceUID string) (*domain.Device, error)
	GetBySessionToken(ctx context.Context, token string) (*domain.Device, error)
	Create(ctx context.Context, device *domain.Device) error
	UpdateBinding(ctx context.Context, deviceUID string, workerID string, info domain.DeviceInfo) error
	AttachSession(ctx context.Context, deviceID, sessionToken string, expiresAt *time.Time) error
	TouchActivity(ctx context.Context, deviceID string) error
	ClearSession(ctx context.Context, deviceID string) error
	ListActiveForWorker(ctx context.Context, workerID string) ([]domain.Device, error)
	ListAllActive(ctx context.Context) ([]domain.Device, error)
	CountActiveForWorker(ctx context.Context, workerID string) (int, error)
	WithDB(db DB) DeviceRepository
}

type deviceRepository struct {
	db DB
}

// NewDeviceRepository returns a Postgres-backed implementation.
func NewDeviceRepository(db DB) DeviceRepository {
	return &deviceRepository{db: db}
}

func (r *deviceRepository) WithDB(db DB) DeviceRepository {
	if db == nil {
		return r
	}
	return &deviceRepository{db: db}
}

const deviceColumns = `id, device_uid, worker_id, model, platform, app_version,
        is_logged_in, session_token, session_started_at, session_expires_at, last_activity_at, created_at, updated_at`

func scanDevice(row pgx.Row) (*domain.Device, error) {
	var d domain.Device
	if err := row.Scan(
		&d.ID,
		&d.DeviceUID,
		&d.WorkerID,
		&d.Model,
		&d.Platform,
		&d.AppVersion,
		&d.IsLoggedIn,
		&d.SessionToken,
		&d.SessionStartedAt,
		&d.SessionExpiresAt,
		&d.LastActivityAt,
		&d.CreatedAt,
		&d.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &d, nil
}

func (r *deviceRepository) GetByUID(ctx context.Context, deviceUID string) (*domain.Device, error) {
	query := `SELECT ` + deviceColumns + ` FROM devices WHERE device_uid=$1`
	return scanDevice(r.db.QueryRow(ctx, query, deviceUID))
}

func (r *deviceRepository) GetBySessionToken(ctx context.Context, token string) (*domain.Device, error) {
	query := `SELECT ` + deviceColumns + ` FROM devices WHERE session_token=$1`
	return scanDevice(r.db.QueryRow(ctx, query, token))
}

func (r *deviceRepository) Create(ctx context.Context, device *domain.Device) error {
	const query = `
        INSERT INTO devices (device_uid, worker_id, model, platform, app_version)
        VALUES ($1,$2,$3,$4,$5)
        RETURNING id, is_logged_in, created_at, updated_at`

	err := r.db.QueryRow(ctx, query,
		device.DeviceUID,
		device.WorkerID,
		device.Model,
		device.Platform,
		device.AppVersion,
	).Scan(&device.ID, &device.IsLoggedIn, &device.CreatedAt, &device.UpdatedAt)
	return translateError(err)
}

func (r *deviceRepository) UpdateBinding(ctx context.Context, deviceUID string, workerID string, info domain.DeviceInfo) error {
	const query = `
        UPDATE devices SET worker_id=$1, model=$2, platform=$3, app_version=$4, updated_at=NOW()
        WHERE device_uid=$5`

	cmd, err := r.db.Exec(ctx, query, workerID, info.Model, info.Platform, info.AppVersion, deviceUID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *deviceRepository) AttachSession(ctx context.Context, deviceID, sessionToken string, expiresAt *time.Time) error {
	const query = `
        UPDATE devices SET is_logged_in=TRUE, session_token=$1, session_started_at=NOW(),
            session_expires_at=$2, last_activity_at=NOW(), updated_at=NOW()
        WHERE id=$3`

	cmd, err := r.db.Exec(ctx, query, sessionToken, expiresAt, deviceID)
	if err != nil {
		return translateError(err)
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *deviceRepository) TouchActivity(ctx context.Context, deviceID string) error {
	const query = `
        UPDATE devices SET last_activity_at=NOW()
        WHERE id=$1`

	_, err := r.db.Exec(ctx, query, deviceID)
	return err
}

// ClearSession detaches any session from the device. Running it on a device
// with no session is a no-op.
func (r *deviceRepository) ClearSession(ctx context.Context, deviceID string) error {
	const query = `
        UPDATE devices SET is_logged_in=FALSE, session_token=NULL, session_started_at=NULL,
            session_expires_at=NULL, updated_at=NOW()
        WHERE id=$1`

	_, err := r.db.Exec(ctx, query, deviceID)
	return err
}

func (r *deviceRepository) ListActiveForWorker(ctx context.Context, workerID string) ([]domain.Device, error) {
	query := `SELECT ` + deviceColumns + ` FROM devices WHERE worker_id=$1 AND is_logged_in ORDER BY last_activity_at DESC`
	rows, err := r.db.Query(ctx, query, workerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectDevices(rows)
}

func (r *deviceRepository) ListAllActive(ctx context.Context) ([]domain.Device, error) {
	query := `SELECT ` + deviceColumns + ` FROM devices WHERE is_logged_in ORDER BY last_activity_at DESC`
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectDevices(rows)
}

func (r *deviceRepository) CountActiveForWorker(ctx context.Context, workerID string) (int, error) {
	const query = `
        SELECT COUNT(*) FROM devices WHERE worker_id=$1 AND is_logged_in`

	var count int
	if err := r.db.QueryRow(ctx, query, workerID).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

func collectDevices(rows pgx.Rows) ([]domain.Device, error) {
	var devices []domain.Device
	for rows.Next() {
		d, err := scanDevice(rows)
		if err != nil {
			return nil, err
		}
		devices = append(devices, *d)
	}
	return devices, rows.Err()
}
