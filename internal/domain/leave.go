package domain

import "time"

type LeaveType string

const (
	LeaveTypeAnnual   LeaveType = "annual"
	LeaveTypeSick     LeaveType = "sick"
	LeaveTypePersonal LeaveType = "personal"
	LeaveTypeOther    LeaveType = "other"
)

type LeaveStatus string

const (
	LeaveStatusPending  LeaveStatus = "pending"
	LeaveStatusApproved LeaveStatus = "approved"
	LeaveStatusRejected LeaveStatus = "rejected"
)

// 日期统一使用 ISO 格式的字符串，与远端接口保持一致
const DateLayout = "2006-01-02"

type LeaveRequest struct {
	ID           int64       `json:"id"`
	EmployeeID   int64       `json:"employee_id"`
	EmployeeName string      `json:"employee_name,omitempty"`
	LeaveType    LeaveType   `json:"leave_type"`
	StartDate    string      `json:"start_date"`
	EndDate      string      `json:"end_date"`
	TotalDays    int         `json:"total_days"`
	Reason       string      `json:"reason,omitempty"`
	Status       LeaveStatus `json:"status"`
	ApprovedBy   string      `json:"approved_by,omitempty"`
	CreatedAt    time.Time   `json:"created_at"`
}

type CalendarEvent struct {
	ID           int64       `json:"id"`
	Title        string      `json:"title"`
	Start        time.Time   `json:"start"`
	End          time.Time   `json:"end"`
	Type         LeaveType   `json:"type"`
	Status       LeaveStatus `json:"status"`
	EmployeeName string      `json:"employeeName"`
	Department   string      `json:"department,omitempty"`
	Color        string      `json:"color,omitempty"`
}
