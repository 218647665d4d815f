// Package authz 把角色名映射为能力集合。
//
// 所有界面和接口上的权限判断都应该经过这里，而不是直接比较角色字符串。
package authz

import (
	"strings"

	"github.com/sysu-ecnc-dev/leavemaster/internal/domain"
)

type Permission int

const (
	PermApprove Permission = iota
	PermViewAnalytics
	PermManageUsers
	PermViewTeamCalendar
)

var permissionNames = map[Permission]string{
	PermApprove:          "approve",
	PermViewAnalytics:    "view_analytics",
	PermManageUsers:      "manage_users",
	PermViewTeamCalendar: "view_team_calendar",
}

func (p Permission) String() string {
	if name, ok := permissionNames[p]; ok {
		return name
	}
	return "unknown"
}

type Capabilities struct {
	CanApprove          bool `json:"canApprove"`
	CanViewAnalytics    bool `json:"canViewAnalytics"`
	CanManageUsers      bool `json:"canManageUsers"`
	CanViewTeamCalendar bool `json:"canViewTeamCalendar"`
}

var managerCapabilities = Capabilities{
	CanApprove:          true,
	CanViewAnalytics:    true,
	CanViewTeamCalendar: true,
}

// Derive 对任意字符串都有定义，未知角色返回空集合
func Derive(roleName string) Capabilities {
	switch domain.Role(roleName) {
	case domain.RoleManager:
		return managerCapabilities
	case domain.RoleAdmin, domain.RoleSuperAdmin:
		caps := managerCapabilities
		caps.CanManageUsers = true
		return caps
	default:
		return Capabilities{}
	}
}

// ForSession 未登录时返回空集合
func ForSession(s *domain.Session) Capabilities {
	if s == nil {
		return Capabilities{}
	}
	return Derive(s.Identity.RoleName)
}

func (c Capabilities) Allows(p Permission) bool {
	switch p {
	case PermApprove:
		return c.CanApprove
	case PermViewAnalytics:
		return c.CanViewAnalytics
	case PermManageUsers:
		return c.CanManageUsers
	case PermViewTeamCalendar:
		return c.CanViewTeamCalendar
	default:
		return false
	}
}

// Permissions 按固定顺序列出已授予的权限
func (c Capabilities) Permissions() []Permission {
	var granted []Permission
	for _, p := range []Permission{PermApprove, PermViewAnalytics, PermManageUsers, PermViewTeamCalendar} {
		if c.Allows(p) {
			granted = append(granted, p)
		}
	}
	return granted
}

// RolesGranting 返回拥有该权限的全部角色
func RolesGranting(p Permission) []domain.Role {
	var roles []domain.Role
	for _, role := range domain.Roles {
		if Derive(string(role)).Allows(p) {
			roles = append(roles, role)
		}
	}
	return roles
}

// RequiredRoles 生成拒绝页上展示的角色说明，例如 "Admin or Super Admin"
func RequiredRoles(p Permission) string {
	roles := RolesGranting(p)
	names := make([]string, len(roles))
	for i, role := range roles {
		names[i] = role.DisplayName()
	}

	switch len(names) {
	case 0:
		return ""
	case 1:
		return names[0]
	case 2:
		return names[0] + " or " + names[1]
	default:
		return strings.Join(names[:len(names)-1], ", ") + ", or " + names[len(names)-1]
	}
}
