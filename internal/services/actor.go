package services

import (
	"strings"

	"github.com/google/uuid"
)

// Role 是调用方在平台中的角色。
type Role string

const (
	RoleAdmin      Role = "admin"
	RoleInstructor Role = "instructor"
	RoleStudent    Role = "student"
)

// ParseRole 解析 JWT role 声明，未知取值返回 false。
func ParseRole(raw string) (Role, bool) {
	switch r := Role(strings.ToLower(strings.TrimSpace(raw))); r {
	case RoleAdmin, RoleInstructor, RoleStudent:
		return r, true
	default:
		return "", false
	}
}

// Actor 是显式传入每个业务操作的调用方身份。
type Actor struct {
	ID   uuid.UUID
	Role Role
}

// IsAdmin 判断是否为管理员。
func (a Actor) IsAdmin() bool {
	return a.Role == RoleAdmin
}

// CanManage 判断调用方能否修改 owner 名下的资源（本人或管理员）。
func (a Actor) CanManage(owner uuid.UUID) bool {
	return a.IsAdmin() || (a.ID != uuid.Nil && a.ID == owner)
}

func (a Actor) valid() bool {
	return a.ID != uuid.Nil && a.Role != ""
}
