package domain

import "strings"

type Role string

const (
	RoleEmployee   Role = "employee"
	RoleManager    Role = "manager"
	RoleAdmin      Role = "admin"
	RoleSuperAdmin Role = "super_admin"
)

// Roles 按权限从低到高排列
var Roles = []Role{
	RoleEmployee,
	RoleManager,
	RoleAdmin,
	RoleSuperAdmin,
}

// ParseRole 只接受固定枚举中的角色名，大小写敏感
func ParseRole(name string) (Role, bool) {
	for _, role := range Roles {
		if string(role) == name {
			return role, true
		}
	}
	return "", false
}

// DisplayName 返回角色在界面上的名称，例如 super_admin -> Super Admin
func (r Role) DisplayName() string {
	parts := strings.Split(string(r), "_")
	for i, part := range parts {
		if part == "" {
			continue
		}
		parts[i] = strings.ToUpper(part[:1]) + part[1:]
	}
	return strings.Join(parts, " ")
}
