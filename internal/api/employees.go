package api

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/sysu-ecnc-dev/leavemaster/internal/domain"
)

const DefaultLeaveDays = 12

type EmployeeForm struct {
	EmployeeID     string `json:"employee_id" validate:"required,max=32"`
	Name           string `json:"name" validate:"required,max=100"`
	Email          string `json:"email" validate:"required,email"`
	Password       string `json:"password,omitempty" validate:"omitempty,min=6"`
	Position       string `json:"position,omitempty" validate:"max=100"`
	DepartmentID   int64  `json:"department_id" validate:"required,gt=0"`
	RoleID         int64  `json:"role_id" validate:"required,gt=0"`
	ManagerID      *int64 `json:"manager_id"`
	TotalLeaveDays int    `json:"total_leave_days" validate:"gte=0,lte=365"`
}

// EmployeeFilter 的零值字段表示不过滤
type EmployeeFilter struct {
	Search       string
	DepartmentID int64
	RoleID       int64
}

func (c *Client) ListEmployees(ctx context.Context) ([]domain.Employee, error) {
	var employees []domain.Employee
	if err := c.gateway.Do(ctx, http.MethodGet, "/employees", nil, &employees); err != nil {
		return nil, err
	}
	return employees, nil
}

// CreateEmployee 要求提供初始密码，未填写假期天数时默认 12 天
func (c *Client) CreateEmployee(ctx context.Context, form EmployeeForm) (*domain.Employee, error) {
	if form.TotalLeaveDays == 0 {
		form.TotalLeaveDays = DefaultLeaveDays
	}
	if err := c.check(form); err != nil {
		return nil, err
	}
	if err := c.checkVar("password", form.Password, "required"); err != nil {
		return nil, err
	}

	var created domain.Employee
	if err := c.gateway.Do(ctx, http.MethodPost, "/employees", form, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

// UpdateEmployee 密码留空表示不修改
func (c *Client) UpdateEmployee(ctx context.Context, id int64, form EmployeeForm) (*domain.Employee, error) {
	if err := c.check(form); err != nil {
		return nil, err
	}

	var updated domain.Employee
	if err := c.gateway.Do(ctx, http.MethodPut, fmt.Sprintf("/employees/%d", id), form, &updated); err != nil {
		return nil, err
	}
	return &updated, nil
}

// DeactivateEmployee 只停用账号，不会删除数据
func (c *Client) DeactivateEmployee(ctx context.Context, id int64) error {
	return c.gateway.Do(ctx, http.MethodDelete, fmt.Sprintf("/employees/%d", id), nil, nil)
}

func (c *Client) Roles(ctx context.Context) ([]domain.RoleInfo, error) {
	var roles []domain.RoleInfo
	if err := c.gateway.Do(ctx, http.MethodGet, "/roles", nil, &roles); err != nil {
		return nil, err
	}
	return roles, nil
}

func (c *Client) Departments(ctx context.Context) ([]domain.Department, error) {
	var departments []domain.Department
	if err := c.gateway.Do(ctx, http.MethodGet, "/departments", nil, &departments); err != nil {
		return nil, err
	}
	return departments, nil
}

// FormFromEmployee 用现有员工信息预填编辑表单
func FormFromEmployee(e domain.Employee) EmployeeForm {
	return EmployeeForm{
		EmployeeID:     e.EmployeeID,
		Name:           e.Name,
		Email:          e.Email,
		Position:       e.Position,
		DepartmentID:   e.DepartmentID,
		RoleID:         e.RoleID,
		ManagerID:      e.ManagerID,
		TotalLeaveDays: e.TotalLeaveDays,
	}
}

// FilterEmployees 搜索词不区分大小写，匹配姓名、邮箱或工号
func FilterEmployees(employees []domain.Employee, f EmployeeFilter) []domain.Employee {
	term := strings.ToLower(f.Search)
	filtered := make([]domain.Employee, 0, len(employees))
	for _, e := range employees {
		matchesSearch := strings.Contains(strings.ToLower(e.Name), term) ||
			strings.Contains(strings.ToLower(e.Email), term) ||
			strings.Contains(strings.ToLower(e.EmployeeID), term)
		matchesDepartment := f.DepartmentID == 0 || e.DepartmentID == f.DepartmentID
		matchesRole := f.RoleID == 0 || e.RoleID == f.RoleID

		if matchesSearch && matchesDepartment && matchesRole {
			filtered = append(filtered, e)
		}
	}
	return filtered
}
