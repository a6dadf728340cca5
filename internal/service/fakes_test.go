package service

import (
	"context"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/worker-auth-service/internal/config"
	"github.com/spec-kit/worker-auth-service/internal/domain"
	"github.com/spec-kit/worker-auth-service/internal/repository"
)

func testConfig() config.Config {
	return config.Config{
		Auth: config.AuthConfig{
			QRTokenTTLMinutes: 15,
			SessionTTLHours:   720,
		},
	}
}

type fakeWorkerRepo struct {
	mu      sync.Mutex
	workers map[string]*domain.Worker
}

func newFakeWorkerRepo(workers ...*domain.Worker) *fakeWorkerRepo {
	r := &fakeWorkerRepo{workers: make(map[string]*domain.Worker)}
	for _, w := range workers {
		c := *w
		r.workers[w.ID] = &c
	}
	return r
}

func (r *fakeWorkerRepo) GetByID(_ context.Context, id string) (*domain.Worker, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	w, ok := r.workers[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	c := *w
	return &c, nil
}

func (r *fakeWorkerRepo) SetAuthenticated(_ context.Context, workerID string, authenticated bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	w, ok := r.workers[workerID]
	if !ok {
		return pgx.ErrNoRows
	}
	w.IsAuthenticated = authenticated
	return nil
}

func (r *fakeWorkerRepo) WithDB(repository.DB) repository.WorkerRepository { return r }

func (r *fakeWorkerRepo) authenticated(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	w, ok := r.workers[id]
	return ok && w.IsAuthenticated
}

func (r *fakeWorkerRepo) snapshot() map[string]domain.Worker {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := make(map[string]domain.Worker, len(r.workers))
	for id, w := range r.workers {
		s[id] = *w
	}
	return s
}

func (r *fakeWorkerRepo) restore(s map[string]domain.Worker) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.workers = make(map[string]*domain.Worker, len(s))
	for id := range s {
		c := s[id]
		r.workers[id] = &c
	}
}

type fakeAdminRepo struct {
	mu     sync.Mutex
	admins map[string]*domain.Admin
}

func newFakeAdminRepo(admins ...*domain.Admin) *fakeAdminRepo {
	r := &fakeAdminRepo{admins: make(map[string]*domain.Admin)}
	for _, a := range admins {
		c := *a
		r.admins[a.ID] = &c
	}
	return r
}

func (r *fakeAdminRepo) GetByID(_ context.Context, id string) (*domain.Admin, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.admins[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	c := *a
	return &c, nil
}

func (r *fakeAdminRepo) HasElevatedPermission(_ context.Context, adminID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.admins[adminID]
	if !ok {
		return false, nil
	}
	return a.Active && a.Role.Elevated(), nil
}

type fakeTokenRepo struct {
	mu     sync.Mutex
	nextID int
	tokens map[string]*domain.LoginQRToken // by ID
}

func newFakeTokenRepo(tokens ...*domain.LoginQRToken) *fakeTokenRepo {
	r := &fakeTokenRepo{tokens: make(map[string]*domain.LoginQRToken)}
	for _, t := range tokens {
		c := *t
		r.tokens[t.ID] = &c
	}
	return r
}

func (r *fakeTokenRepo) Create(_ context.Context, t *domain.LoginQRToken) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	t.ID = "tok-" + time.Now().Format("150405") + "-" + string(rune('a'+r.nextID%26))
	t.CreatedAt = time.Now()
	c := *t
	r.tokens[t.ID] = &c
	return nil
}

func (r *fakeTokenRepo) GetByToken(_ context.Context, value string) (*domain.LoginQRToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range r.tokens {
		if t.Token == value {
			c := *t
			return &c, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (r *fakeTokenRepo) TransitionStatus(_ context.Context, id string, expected, next domain.LoginTokenStatus, usedAt *time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tokens[id]
	if !ok || t.Status != expected {
		return false, nil
	}
	t.Status = next
	if usedAt != nil {
		t.UsedAt = usedAt
	}
	return true, nil
}

func (r *fakeTokenRepo) ExpireAllPendingForWorker(_ context.Context, workerID string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, t := range r.tokens {
		if t.WorkerID == workerID && t.Status == domain.LoginTokenStatusPending {
			t.Status = domain.LoginTokenStatusExpired
			n++
		}
	}
	return n, nil
}

func (r *fakeTokenRepo) WithDB(repository.DB) repository.LoginTokenRepository { return r }

func (r *fakeTokenRepo) put(t *domain.LoginQRToken) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c := *t
	r.tokens[t.ID] = &c
}

func (r *fakeTokenRepo) status(id string) domain.LoginTokenStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tokens[id]
	if !ok {
		return ""
	}
	return t.Status
}

func (r *fakeTokenRepo) snapshot() map[string]domain.LoginQRToken {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := make(map[string]domain.LoginQRToken, len(r.tokens))
	for id, t := range r.tokens {
		s[id] = *t
	}
	return s
}

func (r *fakeTokenRepo) restore(s map[string]domain.LoginQRToken) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tokens = make(map[string]*domain.LoginQRToken, len(s))
	for id := range s {
		c := s[id]
		r.tokens[id] = &c
	}
}

type fakeDeviceRepo struct {
	mu      sync.Mutex
	nextID  int
	devices map[string]*domain.Device // by ID

	// createErrs, attachErrs and getUIDErrs are popped one per call before
	// the real behavior runs, to script race and collision outcomes.
	createErrs []error
	attachErrs []error
	getUIDErrs []error

	// getUIDHook, when set, runs at the top of GetByUID so tests can
	// interleave a concurrent actor between reads.
	getUIDHook func()
}

func newFakeDeviceRepo(devices ...*domain.Device) *fakeDeviceRepo {
	r := &fakeDeviceRepo{devices: make(map[string]*domain.Device)}
	for _, d := range devices {
		c := *d
		r.devices[d.ID] = &c
	}
	return r
}

func (r *fakeDeviceRepo) GetByUID(_ context.Context, deviceUID string) (*domain.Device, error) {
	if r.getUIDHook != nil {
		r.getUIDHook()
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.getUIDErrs) > 0 {
		err := r.getUIDErrs[0]
		r.getUIDErrs = r.getUIDErrs[1:]
		if err != nil {
			return nil, err
		}
	}
	for _, d := range r.devices {
		if d.DeviceUID == deviceUID {
			c := *d
			return &c, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (r *fakeDeviceRepo) GetBySessionToken(_ context.Context, token string) (*domain.Device, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, d := range r.devices {
		if d.SessionToken != nil && *d.SessionToken == token {
			c := *d
			return &c, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (r *fakeDeviceRepo) Create(_ context.Context, device *domain.Device) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.createErrs) > 0 {
		err := r.createErrs[0]
		r.createErrs = r.createErrs[1:]
		if err != nil {
			return err
		}
	}
	for _, d := range r.devices {
		if d.DeviceUID == device.DeviceUID {
			return repository.ErrDuplicateKey
		}
	}
	r.nextID++
	device.ID = "dev-" + string(rune('a'+r.nextID%26))
	device.CreatedAt = time.Now()
	device.UpdatedAt = device.CreatedAt
	c := *device
	r.devices[device.ID] = &c
	return nil
}

func (r *fakeDeviceRepo) UpdateBinding(_ context.Context, deviceUID string, workerID string, info domain.DeviceInfo) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, d := range r.devices {
		if d.DeviceUID == deviceUID {
			d.WorkerID = workerID
			d.Model = info.Model
			d.Platform = info.Platform
			d.AppVersion = info.AppVersion
			return nil
		}
	}
	return pgx.ErrNoRows
}

func (r *fakeDeviceRepo) AttachSession(_ context.Context, deviceID, sessionToken string, expiresAt *time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.attachErrs) > 0 {
		err := r.attachErrs[0]
		r.attachErrs = r.attachErrs[1:]
		if err != nil {
			return err
		}
	}
	for _, d := range r.devices {
		if d.ID != deviceID && d.SessionToken != nil && *d.SessionToken == sessionToken {
			return repository.ErrDuplicateKey
		}
	}
	d, ok := r.devices[deviceID]
	if !ok {
		return pgx.ErrNoRows
	}
	now := time.Now()
	d.IsLoggedIn = true
	d.SessionToken = &sessionToken
	d.SessionStartedAt = &now
	d.SessionExpiresAt = expiresAt
	d.LastActivityAt = &now
	return nil
}

func (r *fakeDeviceRepo) TouchActivity(_ context.Context, deviceID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.devices[deviceID]
	if !ok {
		return pgx.ErrNoRows
	}
	now := time.Now()
	d.LastActivityAt = &now
	return nil
}

func (r *fakeDeviceRepo) ClearSession(_ context.Context, deviceID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.devices[deviceID]
	if !ok {
		return nil
	}
	d.IsLoggedIn = false
	d.SessionToken = nil
	d.SessionStartedAt = nil
	d.SessionExpiresAt = nil
	return nil
}

func (r *fakeDeviceRepo) ListActiveForWorker(_ context.Context, workerID string) ([]domain.Device, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Device
	for _, d := range r.devices {
		if d.WorkerID == workerID && d.IsLoggedIn {
			out = append(out, *d)
		}
	}
	return out, nil
}

func (r *fakeDeviceRepo) ListAllActive(_ context.Context) ([]domain.Device, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Device
	for _, d := range r.devices {
		if d.IsLoggedIn {
			out = append(out, *d)
		}
	}
	return out, nil
}

func (r *fakeDeviceRepo) CountActiveForWorker(_ context.Context, workerID string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, d := range r.devices {
		if d.WorkerID == workerID && d.IsLoggedIn {
			n++
		}
	}
	return n, nil
}

func (r *fakeDeviceRepo) WithDB(repository.DB) repository.DeviceRepository { return r }

func (r *fakeDeviceRepo) put(d *domain.Device) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c := *d
	r.devices[d.ID] = &c
}

func (r *fakeDeviceRepo) get(id string) *domain.Device {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.devices[id]
	if !ok {
		return nil
	}
	c := *d
	return &c
}

func (r *fakeDeviceRepo) snapshot() map[string]domain.Device {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := make(map[string]domain.Device, len(r.devices))
	for id, d := range r.devices {
		s[id] = *d
	}
	return s
}

func (r *fakeDeviceRepo) restore(s map[string]domain.Device) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.devices = make(map[string]*domain.Device, len(s))
	for id := range s {
		c := s[id]
		r.devices[id] = &c
	}
}

type fakeCodeStore struct {
	mu    sync.Mutex
	codes map[string]string
}

func newFakeCodeStore() *fakeCodeStore {
	return &fakeCodeStore{codes: make(map[string]string)}
}

func (s *fakeCodeStore) Save(_ context.Context, code, tokenValue string, _ time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.codes[code] = tokenValue
	return nil
}

func (s *fakeCodeStore) Lookup(_ context.Context, code string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.codes[code], nil
}

// fakeTx serializes transactions and restores repo state when the body
// fails, mirroring commit/rollback semantics over the in-memory fakes.
type fakeTx struct {
	mu      sync.Mutex
	tokens  *fakeTokenRepo
	devices *fakeDeviceRepo
	workers *fakeWorkerRepo
}

func (f *fakeTx) InTx(_ context.Context, fn func(db repository.DB) error) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	var tokens map[string]domain.LoginQRToken
	var devices map[string]domain.Device
	var workers map[string]domain.Worker
	if f.tokens != nil {
		tokens = f.tokens.snapshot()
	}
	if f.devices != nil {
		devices = f.devices.snapshot()
	}
	if f.workers != nil {
		workers = f.workers.snapshot()
	}

	err := fn(nil)
	if err == nil {
		return nil
	}
	if f.tokens != nil {
		f.tokens.restore(tokens)
	}
	if f.devices != nil {
		f.devices.restore(devices)
	}
	if f.workers != nil {
		f.workers.restore(workers)
	}
	return err
}
