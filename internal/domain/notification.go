package domain

import "time"

type NotificationKind string

const (
	KindNewLeaveRequest    NotificationKind = "new_leave_request"
	KindLeaveStatusUpdated NotificationKind = "leave_status_updated"
	KindStatusApproved     NotificationKind = "status_approved"
	KindStatusRejected     NotificationKind = "status_rejected"
	KindTest               NotificationKind = "test_notification"
)

type NotificationData struct {
	RequestID    int64       `json:"request_id,omitempty"`
	EmployeeName string      `json:"employee_name,omitempty"`
	LeaveType    LeaveType   `json:"leave_type,omitempty"`
	StartDate    string      `json:"start_date,omitempty"`
	EndDate      string      `json:"end_date,omitempty"`
	Reason       string      `json:"reason,omitempty"`
	Status       LeaveStatus `json:"status,omitempty"`
}

// PushEvent 是推送通道上的一帧
type PushEvent struct {
	Type    NotificationKind  `json:"type"`
	Message string            `json:"message"`
	Data    *NotificationData `json:"data,omitempty"`
}

type Notification struct {
	ID        string            `json:"id"`
	Type      NotificationKind  `json:"type"`
	Message   string            `json:"message"`
	Data      *NotificationData `json:"data,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
	Read      bool              `json:"read"`
}
