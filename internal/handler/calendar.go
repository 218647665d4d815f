package handler

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/sysu-ecnc-dev/leavemaster/internal/domain"
	"github.com/sysu-ecnc-dev/leavemaster/internal/repository"
	"github.com/sysu-ecnc-dev/leavemaster/internal/utils"
)

var statusColors = map[domain.LeaveStatus]string{
	domain.LeaveStatusApproved: "#2ecc71",
	domain.LeaveStatusPending:  "#f39c12",
	domain.LeaveStatusRejected: "#e74c3c",
}

func (h *Handler) GetCalendarEvents(w http.ResponseWriter, r *http.Request) {
	myInfo := r.Context().Value(MyInfoCtx).(*repository.EmployeeRecord)
	h.successResponse(w, r, h.calendarEvents(h.repository.GetLeaveRequestsByEmployee(myInfo.ID)))
}

func (h *Handler) GetTeamCalendar(w http.ResponseWriter, r *http.Request) {
	myInfo := r.Context().Value(MyInfoCtx).(*repository.EmployeeRecord)
	h.successResponse(w, r, h.calendarEvents(h.repository.GetTeamLeaveRequests(myInfo.ID)))
}

// calendarEvents 被拒绝的申请不出现在日历上
func (h *Handler) calendarEvents(leaves []domain.LeaveRequest) []domain.CalendarEvent {
	events := []domain.CalendarEvent{}
	for _, lr := range leaves {
		if lr.Status == domain.LeaveStatusRejected {
			continue
		}
		start, end, err := utils.LeaveInterval(lr.StartDate, lr.EndDate)
		if err != nil {
			slog.Warn("请假记录的日期无效", "id", lr.ID, "error", err)
			continue
		}

		department := ""
		if e, err := h.repository.GetEmployeeByID(lr.EmployeeID); err == nil {
			department = e.DepartmentName
		}
		events = append(events, domain.CalendarEvent{
			ID:           lr.ID,
			Title:        fmt.Sprintf("%s - %s", lr.EmployeeName, lr.LeaveType),
			Start:        start,
			End:          end,
			Type:         lr.LeaveType,
			Status:       lr.Status,
			EmployeeName: lr.EmployeeName,
			Department:   department,
			Color:        statusColors[lr.Status],
		})
	}
	return events
}
