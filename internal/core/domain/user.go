package domain

import "slices"

type Role string

const (
	RoleAdmin          Role = "admin"
	RoleFinanceManager Role = "finance_manager"
	RoleApprover       Role = "approver"
	RoleViewer         Role = "viewer"
)

type User struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	FullName string `json:"full_name"`
	Role     Role   `json:"role"`
	IsActive bool   `json:"is_active"`
}

func (u *User) HasRole(roles ...Role) bool {
	if u == nil {
		return false
	}
	return slices.Contains(roles, u.Role)
}
