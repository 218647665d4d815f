package domain

import "time"

type DashboardStats struct {
	TotalEmployees      int     `json:"total_employees"`
	PendingRequests     int     `json:"pending_requests"`
	ApprovedThisMonth   int     `json:"approved_this_month"`
	LeaveUtilization    float64 `json:"leave_utilization"`
	AvgProcessingTime   float64 `json:"avg_processing_time"`
	TotalLeavesThisYear int     `json:"total_leaves_this_year"`
}

type DepartmentStat struct {
	Department      string  `json:"department"`
	TotalEmployees  int     `json:"total_employees"`
	TotalLeaves     int     `json:"total_leaves"`
	AvgLeaveDays    float64 `json:"avg_leave_days"`
	UtilizationRate float64 `json:"utilization_rate"`
	PendingCount    int     `json:"pending_count"`
}

type MonthlyTrend struct {
	Month    string `json:"month"`
	Approved int    `json:"approved"`
	Pending  int    `json:"pending"`
	Rejected int    `json:"rejected"`
}

type LeaveTypeShare struct {
	Type  string `json:"type"`
	Count int    `json:"count"`
	Color string `json:"color,omitempty"`
}

type RecentActivity struct {
	ID           int64       `json:"id"`
	EmployeeName string      `json:"employee_name"`
	LeaveType    LeaveType   `json:"leave_type"`
	StartDate    string      `json:"start_date"`
	EndDate      string      `json:"end_date"`
	Status       LeaveStatus `json:"status"`
	ActionBy     string      `json:"action_by,omitempty"`
	CreatedAt    time.Time   `json:"created_at"`
}

// Analytics 是分析页一次加载的全部数据
type Analytics struct {
	Stats        DashboardStats
	Departments  []DepartmentStat
	Trends       []MonthlyTrend
	Distribution []LeaveTypeShare
	Activities   []RecentActivity
}
