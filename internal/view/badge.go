package view

import (
	"strings"

	"github.com/sysu-ecnc-dev/leavemaster/internal/domain"
)

type RoleBadge struct {
	Label string
	Color string
}

var badgeColors = map[domain.Role]string{
	domain.RoleSuperAdmin: "#e74c3c",
	domain.RoleAdmin:      "#3498db",
	domain.RoleManager:    "#f39c12",
	domain.RoleEmployee:   "#2ecc71",
}

const defaultBadgeColor = "#95a5a6"

// Badge 角色为空时显示 EMPLOYEE
func Badge(roleName string) RoleBadge {
	label := strings.ToUpper(roleName)
	if label == "" {
		label = "EMPLOYEE"
	}

	color, ok := badgeColors[domain.Role(roleName)]
	if !ok {
		color = defaultBadgeColor
	}
	return RoleBadge{Label: label, Color: color}
}
