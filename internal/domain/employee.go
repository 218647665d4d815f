package domain

type Employee struct {
	ID                 int64  `json:"id"`
	EmployeeID         string `json:"employee_id,omitempty"`
	Name               string `json:"name"`
	Email              string `json:"email,omitempty"`
	Position           string `json:"position,omitempty"`
	DepartmentID       int64  `json:"department_id,omitempty"`
	DepartmentName     string `json:"department_name,omitempty"`
	RoleID             int64  `json:"role_id,omitempty"`
	RoleName           string `json:"role_name"`
	ManagerID          *int64 `json:"manager_id,omitempty"`
	IsManager          bool   `json:"is_manager,omitempty"`
	IsActive           bool   `json:"is_active"`
	TotalLeaveDays     int    `json:"total_leave_days"`
	RemainingLeaveDays int    `json:"remaining_leave_days"`
}

type Department struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type RoleInfo struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// Session 是客户端持有的登录状态，只由 session.Store 创建和销毁
type Session struct {
	Identity Employee `json:"identity"`
	Token    string   `json:"token"`
}
