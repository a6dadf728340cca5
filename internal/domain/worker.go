package domain

import "time"

// WorkerStatus represents lifecycle states for a field worker.
type WorkerStatus string

const (
	WorkerStatusActive    WorkerStatus = "ACTIVE"
	WorkerStatusInactive  WorkerStatus = "INACTIVE"
	WorkerStatusSuspended WorkerStatus = "SUSPENDED"
)

// Worker is the domain model for field workers who log in via delegated QR.
type Worker struct {
	ID     string
	Name   string
	Phone  string
	Status WorkerStatus
	// IsAuthenticated is a denormalized projection; the source of truth is
	// the count of active sessions for the worker.
	IsAuthenticated bool
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// CanLogIn reports whether the worker is eligible for a delegated login.
func (w *Worker) CanLogIn() bool {
	return w.Status == WorkerStatusActive
}
