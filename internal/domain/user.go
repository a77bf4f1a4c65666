package domain

import (
	"github.com/google/uuid"
)

type Role string

const (
	RoleTechnician Role = "technician"
	RoleSupervisor Role = "supervisor"
	RoleAdmin      Role = "admin"
)

type User struct {
	ID       uuid.UUID `json:"id"`
	TenantID uuid.UUID `json:"tenantID"`
	Email    string    `json:"email"`
	FullName string    `json:"fullName"`
	Role     Role      `json:"role"`
	IsActive bool      `json:"isActive"`
}

func (u *User) IsSupervisor() bool {
	return u.Role == RoleSupervisor || u.Role == RoleAdmin
}
