package api

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"time"

	"github.com/sysu-ecnc-dev/leavemaster/internal/domain"
)

type LeaveForm struct {
	LeaveType domain.LeaveType `json:"leave_type" validate:"required,oneof=annual sick personal other"`
	StartDate string           `json:"start_date" validate:"required,datetime=2006-01-02"`
	EndDate   string           `json:"end_date" validate:"required,datetime=2006-01-02"`
	Reason    string           `json:"reason" validate:"max=1000"`
}

type leavePayload struct {
	LeaveForm
	TotalDays int `json:"total_days"`
}

// CountLeaveDays 按自然日计算请假天数，首尾两天都计入
func CountLeaveDays(start, end time.Time) int {
	days := end.Sub(start).Hours() / 24
	return int(math.Ceil(days)) + 1
}

func (c *Client) SubmitLeave(ctx context.Context, form LeaveForm) (*domain.LeaveRequest, error) {
	if form.LeaveType == "" {
		form.LeaveType = domain.LeaveTypeAnnual
	}
	if err := c.check(form); err != nil {
		return nil, err
	}

	// 格式已经校验过
	start, _ := time.Parse(domain.DateLayout, form.StartDate)
	end, _ := time.Parse(domain.DateLayout, form.EndDate)
	total := CountLeaveDays(start, end)
	if total <= 0 {
		return nil, fieldError("end_date", "End date must be after start date")
	}

	var created domain.LeaveRequest
	if err := c.gateway.Do(ctx, http.MethodPost, "/leave", leavePayload{LeaveForm: form, TotalDays: total}, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

func (c *Client) MyLeaveRequests(ctx context.Context) ([]domain.LeaveRequest, error) {
	var requests []domain.LeaveRequest
	if err := c.gateway.Do(ctx, http.MethodGet, "/leave/my-requests", nil, &requests); err != nil {
		return nil, err
	}
	if requests == nil {
		requests = []domain.LeaveRequest{}
	}
	return requests, nil
}

// PendingLeaveRequests 服务端返回 null 时视为空列表
func (c *Client) PendingLeaveRequests(ctx context.Context) ([]domain.LeaveRequest, error) {
	var requests []domain.LeaveRequest
	if err := c.gateway.Do(ctx, http.MethodGet, "/leave/pending", nil, &requests); err != nil {
		return nil, err
	}
	if requests == nil {
		requests = []domain.LeaveRequest{}
	}
	return requests, nil
}

func (c *Client) UpdateLeaveStatus(ctx context.Context, id int64, status domain.LeaveStatus) error {
	if err := c.checkVar("status", string(status), "required,oneof=approved rejected"); err != nil {
		return err
	}

	body := struct {
		Status domain.LeaveStatus `json:"status"`
	}{Status: status}
	return c.gateway.Do(ctx, http.MethodPut, fmt.Sprintf("/leave/%d/status", id), body, nil)
}
