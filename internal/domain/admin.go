package domain

import "time"

// AdminRole enumerates back-office roles.
type AdminRole string

const (
	AdminRoleAdmin      AdminRole = "ADMIN"
	AdminRoleSupervisor AdminRole = "SUPERVISOR"
	AdminRoleOperator   AdminRole = "OPERATOR"
)

// Elevated reports whether the role may issue delegated login tokens.
func (r AdminRole) Elevated() bool {
	return r == AdminRoleAdmin || r == AdminRoleSupervisor
}

// Admin is the domain model for back-office administrators.
type Admin struct {
	ID        string
	Name      string
	Email     string
	Role      AdminRole
	Active    bool
	CreatedAt time.Time
	UpdatedAt time.Time
}
