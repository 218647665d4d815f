package handler

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/sysu-ecnc-dev/leavemaster/internal/domain"
	"github.com/sysu-ecnc-dev/leavemaster/internal/repository"
	"github.com/sysu-ecnc-dev/leavemaster/internal/utils"
)

func (h *Handler) SubmitLeave(w http.ResponseWriter, r *http.Request) {
	var req struct {
		LeaveType domain.LeaveType `json:"leave_type" validate:"required,oneof=annual sick personal other"`
		StartDate string           `json:"start_date" validate:"required,datetime=2006-01-02"`
		EndDate   string           `json:"end_date" validate:"required,datetime=2006-01-02"`
		Reason    string           `json:"reason" validate:"max=1000"`
		TotalDays int              `json:"total_days"`
	}

	if err := h.readJSON(r, &req); err != nil {
		h.badRequest(w, r, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.badRequest(w, r, err)
		return
	}

	// 天数以服务端计算为准
	days, err := utils.ValidateLeaveDates(req.StartDate, req.EndDate)
	if err != nil {
		h.badRequest(w, r, err)
		return
	}

	myInfo := r.Context().Value(MyInfoCtx).(*repository.EmployeeRecord)
	lr := &domain.LeaveRequest{
		EmployeeID: myInfo.ID,
		LeaveType:  req.LeaveType,
		StartDate:  req.StartDate,
		EndDate:    req.EndDate,
		TotalDays:  days,
		Reason:     req.Reason,
	}
	if err := h.repository.CreateLeaveRequest(lr); err != nil {
		h.internalServerError(w, r, err)
		return
	}

	// 通知所有有权审批的人
	event := domain.PushEvent{
		Type:    domain.KindNewLeaveRequest,
		Message: fmt.Sprintf("New leave request from %s", myInfo.Name),
		Data:    notificationData(lr),
	}
	for _, approverID := range h.repository.Approvers(myInfo.ID) {
		h.hub.Send(approverID, event)
	}

	h.writeJSON(w, r, http.StatusCreated, lr)
}

func (h *Handler) GetMyLeaveRequests(w http.ResponseWriter, r *http.Request) {
	myInfo := r.Context().Value(MyInfoCtx).(*repository.EmployeeRecord)
	h.successResponse(w, r, h.repository.GetLeaveRequestsByEmployee(myInfo.ID))
}

func (h *Handler) GetPendingLeaveRequests(w http.ResponseWriter, r *http.Request) {
	myInfo := r.Context().Value(MyInfoCtx).(*repository.EmployeeRecord)
	h.successResponse(w, r, h.repository.GetPendingLeaveRequests(myInfo.ID))
}

func (h *Handler) UpdateLeaveStatus(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Status domain.LeaveStatus `json:"status" validate:"required,oneof=approved rejected"`
	}

	if err := h.readJSON(r, &req); err != nil {
		h.badRequest(w, r, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.badRequest(w, r, err)
		return
	}

	myInfo := r.Context().Value(MyInfoCtx).(*repository.EmployeeRecord)
	lr := r.Context().Value(LeaveRequestCtx).(*domain.LeaveRequest)

	if !h.repository.CanApprove(myInfo.ID, lr.EmployeeID) {
		h.forbidden(w, r, "You cannot process this leave request")
		return
	}

	updated, err := h.repository.UpdateLeaveStatus(lr.ID, req.Status, myInfo.ID)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrLeaveNotPending):
			h.conflict(w, r, "Leave request has already been processed")
		case errors.Is(err, repository.ErrInsufficientBalance):
			h.conflict(w, r, "Employee does not have enough remaining leave days")
		case errors.Is(err, repository.ErrRecordNotFound):
			h.notFound(w, r, "Leave request not found")
		default:
			h.internalServerError(w, r, err)
		}
		return
	}

	// 申请人收到结果，其它审批人收到状态变化以便刷新待审批列表
	kind := domain.KindStatusApproved
	if updated.Status == domain.LeaveStatusRejected {
		kind = domain.KindStatusRejected
	}
	h.hub.Send(updated.EmployeeID, domain.PushEvent{
		Type:    kind,
		Message: fmt.Sprintf("Your leave request has been %s", updated.Status),
		Data:    notificationData(updated),
	})
	for _, approverID := range h.repository.Approvers(updated.EmployeeID) {
		if approverID == myInfo.ID {
			continue
		}
		h.hub.Send(approverID, domain.PushEvent{
			Type:    domain.KindLeaveStatusUpdated,
			Message: fmt.Sprintf("%s %s the leave request from %s", myInfo.Name, updated.Status, updated.EmployeeName),
			Data:    notificationData(updated),
		})
	}

	h.successResponse(w, r, updated)
}

func (h *Handler) SendTestNotification(w http.ResponseWriter, r *http.Request) {
	myInfo := r.Context().Value(MyInfoCtx).(*repository.EmployeeRecord)
	delivered := h.hub.Send(myInfo.ID, domain.PushEvent{
		Type:    domain.KindTest,
		Message: "This is a test notification",
	})

	h.successResponse(w, r, map[string]int{"delivered": delivered})
}

func notificationData(lr *domain.LeaveRequest) *domain.NotificationData {
	return &domain.NotificationData{
		RequestID:    lr.ID,
		EmployeeName: lr.EmployeeName,
		LeaveType:    lr.LeaveType,
		StartDate:    lr.StartDate,
		EndDate:      lr.EndDate,
		Reason:       lr.Reason,
		Status:       lr.Status,
	}
}
