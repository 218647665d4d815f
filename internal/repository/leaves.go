package repository

import (
	"sort"

	"github.com/sysu-ecnc-dev/leavemaster/internal/domain"
)

// CreateLeaveRequest 新建的请假申请总是 pending 状态
func (r *Repository) CreateLeaveRequest(lr *domain.LeaveRequest) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.employees[lr.EmployeeID]
	if !ok {
		return ErrRecordNotFound
	}

	lr.ID = r.nextLeaveID
	r.nextLeaveID++
	lr.EmployeeName = e.Name
	lr.Status = domain.LeaveStatusPending
	lr.ApprovedBy = ""
	lr.CreatedAt = r.clock.Now()

	r.leaves[lr.ID] = &leaveRecord{LeaveRequest: *lr}
	return nil
}

func (r *Repository) GetLeaveRequest(id int64) (*domain.LeaveRequest, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	lr, ok := r.leaves[id]
	if !ok {
		return nil, ErrRecordNotFound
	}
	out := lr.LeaveRequest
	return &out, nil
}

// GetLeaveRequestsByEmployee 最新的在前
func (r *Repository) GetLeaveRequestsByEmployee(employeeID int64) []domain.LeaveRequest {
	return r.filterLeaves(func(lr *leaveRecord) bool {
		return lr.EmployeeID == employeeID
	})
}

// GetPendingLeaveRequests 只返回审批人有权处理的申请
func (r *Repository) GetPendingLeaveRequests(approverID int64) []domain.LeaveRequest {
	r.mu.RLock()
	approver, ok := r.employees[approverID]
	r.mu.RUnlock()
	if !ok {
		return []domain.LeaveRequest{}
	}

	return r.filterLeaves(func(lr *leaveRecord) bool {
		if lr.Status != domain.LeaveStatusPending {
			return false
		}
		target, ok := r.employees[lr.EmployeeID]
		return ok && canApprove(approver, target)
	})
}

// GetTeamLeaveRequests 返回审批人管辖范围内以及自己的全部申请
func (r *Repository) GetTeamLeaveRequests(approverID int64) []domain.LeaveRequest {
	r.mu.RLock()
	approver, ok := r.employees[approverID]
	r.mu.RUnlock()
	if !ok {
		return []domain.LeaveRequest{}
	}

	return r.filterLeaves(func(lr *leaveRecord) bool {
		if lr.EmployeeID == approverID {
			return true
		}
		target, ok := r.employees[lr.EmployeeID]
		return ok && canApprove(approver, target)
	})
}

func (r *Repository) GetAllLeaveRequests() []domain.LeaveRequest {
	return r.filterLeaves(func(*leaveRecord) bool { return true })
}

// UpdateLeaveStatus 批准时从申请人的剩余天数中扣除
func (r *Repository) UpdateLeaveStatus(id int64, status domain.LeaveStatus, approverID int64) (*domain.LeaveRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	lr, ok := r.leaves[id]
	if !ok {
		return nil, ErrRecordNotFound
	}
	if lr.Status != domain.LeaveStatusPending {
		return nil, ErrLeaveNotPending
	}
	approver, ok := r.employees[approverID]
	if !ok {
		return nil, ErrRecordNotFound
	}
	owner, ok := r.employees[lr.EmployeeID]
	if !ok {
		return nil, ErrRecordNotFound
	}

	if status == domain.LeaveStatusApproved {
		if owner.RemainingLeaveDays < lr.TotalDays {
			return nil, ErrInsufficientBalance
		}
		owner.RemainingLeaveDays -= lr.TotalDays
	}

	lr.Status = status
	lr.ApprovedBy = approver.Name
	lr.ProcessedAt = r.clock.Now()

	out := lr.LeaveRequest
	return &out, nil
}

// CanApprove 判断 approverID 是否有权审批 employeeID 的申请
func (r *Repository) CanApprove(approverID, employeeID int64) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	approver, ok := r.employees[approverID]
	if !ok {
		return false
	}
	target, ok := r.employees[employeeID]
	if !ok {
		return false
	}
	return canApprove(approver, target)
}

func (r *Repository) filterLeaves(keep func(*leaveRecord) bool) []domain.LeaveRequest {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := []domain.LeaveRequest{}
	for _, lr := range r.leaves {
		if keep(lr) {
			out = append(out, lr.LeaveRequest)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out
}
