package handler

import (
	"errors"
	"net/http"

	"golang.org/x/crypto/bcrypt"

	"github.com/sysu-ecnc-dev/leavemaster/internal/domain"
	"github.com/sysu-ecnc-dev/leavemaster/internal/repository"
)

type employeeRequest struct {
	EmployeeID     string `json:"employee_id" validate:"required,max=32"`
	Name           string `json:"name" validate:"required,max=100"`
	Email          string `json:"email" validate:"required,email"`
	Password       string `json:"password" validate:"omitempty,min=6"`
	Position       string `json:"position" validate:"max=100"`
	DepartmentID   int64  `json:"department_id" validate:"required,gt=0"`
	RoleID         int64  `json:"role_id" validate:"required,gt=0"`
	ManagerID      *int64 `json:"manager_id"`
	TotalLeaveDays int    `json:"total_leave_days" validate:"gte=0,lte=365"`
}

func (req *employeeRequest) record() *repository.EmployeeRecord {
	return &repository.EmployeeRecord{
		Employee: domain.Employee{
			EmployeeID:     req.EmployeeID,
			Name:           req.Name,
			Email:          req.Email,
			Position:       req.Position,
			DepartmentID:   req.DepartmentID,
			RoleID:         req.RoleID,
			ManagerID:      req.ManagerID,
			TotalLeaveDays: req.TotalLeaveDays,
		},
	}
}

func (h *Handler) GetAllEmployees(w http.ResponseWriter, r *http.Request) {
	h.successResponse(w, r, h.repository.GetAllEmployees())
}

func (h *Handler) CreateEmployee(w http.ResponseWriter, r *http.Request) {
	var req employeeRequest

	if err := h.readJSON(r, &req); err != nil {
		h.badRequest(w, r, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.badRequest(w, r, err)
		return
	}
	if req.Password == "" {
		h.badRequest(w, r, errors.New("password is a required field"))
		return
	}

	// 对密码进行哈希
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		h.internalServerError(w, r, err)
		return
	}

	employee := req.record()
	employee.PasswordHash = string(hashedPassword)
	if err := h.repository.CreateEmployee(employee); err != nil {
		h.employeeError(w, r, err)
		return
	}

	h.writeJSON(w, r, http.StatusCreated, employee.Employee)
}

// UpdateEmployee 密码留空表示不修改
func (h *Handler) UpdateEmployee(w http.ResponseWriter, r *http.Request) {
	var req employeeRequest

	if err := h.readJSON(r, &req); err != nil {
		h.badRequest(w, r, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.badRequest(w, r, err)
		return
	}

	existing := r.Context().Value(EmployeeInfoCtx).(*repository.EmployeeRecord)
	employee := req.record()
	employee.ID = existing.ID
	if req.Password != "" {
		hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
		if err != nil {
			h.internalServerError(w, r, err)
			return
		}
		employee.PasswordHash = string(hashedPassword)
	}

	if err := h.repository.UpdateEmployee(employee); err != nil {
		h.employeeError(w, r, err)
		return
	}

	h.successResponse(w, r, employee.Employee)
}

// DeactivateEmployee 只停用账号，不会删除数据
func (h *Handler) DeactivateEmployee(w http.ResponseWriter, r *http.Request) {
	myInfo := r.Context().Value(MyInfoCtx).(*repository.EmployeeRecord)
	employee := r.Context().Value(EmployeeInfoCtx).(*repository.EmployeeRecord)

	if employee.ID == myInfo.ID {
		h.badRequest(w, r, errors.New("you cannot deactivate your own account"))
		return
	}

	if err := h.repository.DeactivateEmployee(employee.ID); err != nil {
		h.employeeError(w, r, err)
		return
	}

	// 被停用的员工的推送连接一并断开
	h.hub.Disconnect(employee.ID)

	h.successResponse(w, r, map[string]string{"message": "Employee deactivated"})
}

func (h *Handler) GetRoles(w http.ResponseWriter, r *http.Request) {
	h.successResponse(w, r, h.repository.GetAllRoles())
}

func (h *Handler) GetDepartments(w http.ResponseWriter, r *http.Request) {
	h.successResponse(w, r, h.repository.GetAllDepartments())
}

func (h *Handler) employeeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, repository.ErrDuplicateEmail):
		h.conflict(w, r, "Email already exists")
	case errors.Is(err, repository.ErrDuplicateEmployeeID):
		h.conflict(w, r, "Employee ID already exists")
	case errors.Is(err, repository.ErrUnknownRole):
		h.badRequest(w, r, errors.New("unknown role"))
	case errors.Is(err, repository.ErrUnknownDepartment):
		h.badRequest(w, r, errors.New("unknown department"))
	case errors.Is(err, repository.ErrRecordNotFound):
		h.notFound(w, r, "Employee not found")
	default:
		h.internalServerError(w, r, err)
	}
}
