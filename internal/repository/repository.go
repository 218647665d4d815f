// Package repository 是开发用后端的内存存储。
package repository

import (
	"errors"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/sysu-ecnc-dev/leavemaster/internal/domain"
)

var (
	ErrRecordNotFound      = errors.New("record not found")
	ErrDuplicateEmail      = errors.New("email already exists")
	ErrDuplicateEmployeeID = errors.New("employee id already exists")
	ErrUnknownRole         = errors.New("unknown role")
	ErrUnknownDepartment   = errors.New("unknown department")
	ErrLeaveNotPending     = errors.New("leave request has already been processed")
	ErrInsufficientBalance = errors.New("not enough remaining leave days")
)

// EmployeeRecord 在员工信息之外保存密码哈希，不会直接返回给客户端
type EmployeeRecord struct {
	domain.Employee
	PasswordHash string
}

type leaveRecord struct {
	domain.LeaveRequest
	ProcessedAt time.Time
}

type Repository struct {
	mu    sync.RWMutex
	clock clockwork.Clock

	roles       []domain.RoleInfo
	departments []domain.Department
	employees   map[int64]*EmployeeRecord
	leaves      map[int64]*leaveRecord

	nextDepartmentID int64
	nextEmployeeID   int64
	nextLeaveID      int64
}

func NewRepository(clock clockwork.Clock) *Repository {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	roles := make([]domain.RoleInfo, len(domain.Roles))
	for i, role := range domain.Roles {
		roles[i] = domain.RoleInfo{
			ID:          int64(i + 1),
			Name:        string(role),
			Description: role.DisplayName(),
		}
	}

	return &Repository{
		clock:            clock,
		roles:            roles,
		employees:        make(map[int64]*EmployeeRecord),
		leaves:           make(map[int64]*leaveRecord),
		nextDepartmentID: 1,
		nextEmployeeID:   1,
		nextLeaveID:      1,
	}
}

func (r *Repository) Now() time.Time {
	return r.clock.Now()
}

func (r *Repository) GetAllRoles() []domain.RoleInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return append([]domain.RoleInfo(nil), r.roles...)
}

func (r *Repository) GetRoleByName(name string) (domain.RoleInfo, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, role := range r.roles {
		if role.Name == name {
			return role, nil
		}
	}
	return domain.RoleInfo{}, ErrUnknownRole
}

func (r *Repository) CreateDepartment(name string) domain.Department {
	r.mu.Lock()
	defer r.mu.Unlock()

	d := domain.Department{ID: r.nextDepartmentID, Name: name}
	r.nextDepartmentID++
	r.departments = append(r.departments, d)
	return d
}

func (r *Repository) GetAllDepartments() []domain.Department {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return append([]domain.Department(nil), r.departments...)
}

func (r *Repository) roleLocked(id int64) (domain.RoleInfo, bool) {
	for _, role := range r.roles {
		if role.ID == id {
			return role, true
		}
	}
	return domain.RoleInfo{}, false
}

func (r *Repository) departmentLocked(id int64) (domain.Department, bool) {
	for _, d := range r.departments {
		if d.ID == id {
			return d, true
		}
	}
	return domain.Department{}, false
}
