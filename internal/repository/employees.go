package repository

import (
	"sort"
	"strings"

	"github.com/sysu-ecnc-dev/leavemaster/internal/authz"
	"github.com/sysu-ecnc-dev/leavemaster/internal/domain"
)

// CreateEmployee 分配 ID，并根据角色和部门 ID 补全名称字段
func (r *Repository) CreateEmployee(e *EmployeeRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.checkUniqueLocked(e, 0); err != nil {
		return err
	}
	if err := r.resolveLocked(e); err != nil {
		return err
	}

	e.ID = r.nextEmployeeID
	r.nextEmployeeID++
	e.IsActive = true
	e.RemainingLeaveDays = e.TotalLeaveDays

	stored := *e
	r.employees[e.ID] = &stored
	return nil
}

func (r *Repository) GetEmployeeByID(id int64) (*EmployeeRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.employees[id]
	if !ok {
		return nil, ErrRecordNotFound
	}
	return copyEmployee(e), nil
}

// GetEmployeeByEmail 邮箱不区分大小写
func (r *Repository) GetEmployeeByEmail(email string) (*EmployeeRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, e := range r.employees {
		if strings.EqualFold(e.Email, email) {
			return copyEmployee(e), nil
		}
	}
	return nil, ErrRecordNotFound
}

// GetAllEmployees 按 ID 排序，包括已停用的员工
func (r *Repository) GetAllEmployees() []domain.Employee {
	r.mu.RLock()
	defer r.mu.RUnlock()

	employees := make([]domain.Employee, 0, len(r.employees))
	for _, e := range r.employees {
		employees = append(employees, copyEmployee(e).Employee)
	}
	sort.Slice(employees, func(i, j int) bool { return employees[i].ID < employees[j].ID })
	return employees
}

// UpdateEmployee 密码哈希为空时保留原密码，总假期天数的变化同步到剩余天数
func (r *Repository) UpdateEmployee(e *EmployeeRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.employees[e.ID]
	if !ok {
		return ErrRecordNotFound
	}
	if err := r.checkUniqueLocked(e, e.ID); err != nil {
		return err
	}
	if err := r.resolveLocked(e); err != nil {
		return err
	}

	if e.PasswordHash == "" {
		e.PasswordHash = existing.PasswordHash
	}
	e.IsActive = existing.IsActive
	e.RemainingLeaveDays = existing.RemainingLeaveDays + e.TotalLeaveDays - existing.TotalLeaveDays

	stored := *e
	r.employees[e.ID] = &stored
	return nil
}

func (r *Repository) DeactivateEmployee(id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.employees[id]
	if !ok {
		return ErrRecordNotFound
	}
	e.IsActive = false
	return nil
}

// Approvers 返回可以审批该员工请假的在职员工 ID
func (r *Repository) Approvers(employeeID int64) []int64 {
	r.mu.RLock()
	defer r.mu.RUnlock()

	target, ok := r.employees[employeeID]
	if !ok {
		return nil
	}

	var ids []int64
	for _, e := range r.employees {
		if e.IsActive && canApprove(e, target) {
			ids = append(ids, e.ID)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// canApprove 管理员可以审批所有人，经理只能审批直属下级和本部门员工，任何人都不能审批自己
func canApprove(approver, target *EmployeeRecord) bool {
	if approver.ID == target.ID {
		return false
	}
	caps := authz.Derive(approver.RoleName)
	if !caps.CanApprove {
		return false
	}
	if caps.CanManageUsers {
		return true
	}
	if target.ManagerID != nil && *target.ManagerID == approver.ID {
		return true
	}
	return approver.DepartmentID != 0 && approver.DepartmentID == target.DepartmentID
}

func (r *Repository) checkUniqueLocked(e *EmployeeRecord, self int64) error {
	for _, other := range r.employees {
		if other.ID == self {
			continue
		}
		if strings.EqualFold(other.Email, e.Email) {
			return ErrDuplicateEmail
		}
		if e.EmployeeID != "" && other.EmployeeID == e.EmployeeID {
			return ErrDuplicateEmployeeID
		}
	}
	return nil
}

func (r *Repository) resolveLocked(e *EmployeeRecord) error {
	role, ok := r.roleLocked(e.RoleID)
	if !ok {
		return ErrUnknownRole
	}
	e.RoleName = role.Name
	e.IsManager = authz.Derive(role.Name).CanApprove

	e.DepartmentName = ""
	if e.DepartmentID != 0 {
		d, ok := r.departmentLocked(e.DepartmentID)
		if !ok {
			return ErrUnknownDepartment
		}
		e.DepartmentName = d.Name
	}
	return nil
}

func copyEmployee(e *EmployeeRecord) *EmployeeRecord {
	c := *e
	if e.ManagerID != nil {
		id := *e.ManagerID
		c.ManagerID = &id
	}
	return &c
}
