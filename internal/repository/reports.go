package repository

import (
	"math"
	"sort"
	"time"

	"github.com/sysu-ecnc-dev/leavemaster/internal/domain"
)

const (
	trendMonths       = 6
	recentActivityCap = 10
)

var leaveTypeColors = map[domain.LeaveType]string{
	domain.LeaveTypeAnnual:   "#3498db",
	domain.LeaveTypeSick:     "#e74c3c",
	domain.LeaveTypePersonal: "#f39c12",
	domain.LeaveTypeOther:    "#95a5a6",
}

func (r *Repository) GetDashboardStats() domain.DashboardStats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	now := r.clock.Now()
	var stats domain.DashboardStats
	var total, used int
	for _, e := range r.employees {
		if !e.IsActive {
			continue
		}
		stats.TotalEmployees++
		total += e.TotalLeaveDays
		used += e.TotalLeaveDays - e.RemainingLeaveDays
	}
	stats.LeaveUtilization = percent(used, total)

	var processed int
	var processingHours float64
	for _, lr := range r.leaves {
		switch lr.Status {
		case domain.LeaveStatusPending:
			stats.PendingRequests++
			continue
		case domain.LeaveStatusApproved:
			if start, err := time.Parse(domain.DateLayout, lr.StartDate); err == nil {
				if start.Year() == now.Year() && start.Month() == now.Month() {
					stats.ApprovedThisMonth++
				}
				if start.Year() == now.Year() {
					stats.TotalLeavesThisYear += lr.TotalDays
				}
			}
		}
		processed++
		processingHours += lr.ProcessedAt.Sub(lr.CreatedAt).Hours()
	}
	if processed > 0 {
		stats.AvgProcessingTime = round1(processingHours / float64(processed))
	}
	return stats
}

func (r *Repository) GetDepartmentStats() []domain.DepartmentStat {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stats := make([]domain.DepartmentStat, 0, len(r.departments))
	for _, d := range r.departments {
		stat := domain.DepartmentStat{Department: d.Name}
		var total, used, leaveDays int
		for _, e := range r.employees {
			if !e.IsActive || e.DepartmentID != d.ID {
				continue
			}
			stat.TotalEmployees++
			total += e.TotalLeaveDays
			used += e.TotalLeaveDays - e.RemainingLeaveDays
		}
		for _, lr := range r.leaves {
			e, ok := r.employees[lr.EmployeeID]
			if !ok || e.DepartmentID != d.ID {
				continue
			}
			switch lr.Status {
			case domain.LeaveStatusPending:
				stat.PendingCount++
			case domain.LeaveStatusApproved:
				stat.TotalLeaves++
				leaveDays += lr.TotalDays
			}
		}
		if stat.TotalLeaves > 0 {
			stat.AvgLeaveDays = round1(float64(leaveDays) / float64(stat.TotalLeaves))
		}
		stat.UtilizationRate = percent(used, total)
		stats = append(stats, stat)
	}
	return stats
}

// GetMonthlyTrends 返回包括当月在内最近六个月的数据，按开始日期归月
func (r *Repository) GetMonthlyTrends() []domain.MonthlyTrend {
	r.mu.RLock()
	defer r.mu.RUnlock()

	now := r.clock.Now()
	first := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)

	trends := make([]domain.MonthlyTrend, trendMonths)
	index := make(map[string]int, trendMonths)
	for i := 0; i < trendMonths; i++ {
		month := first.AddDate(0, i-trendMonths+1, 0).Format("2006-01")
		trends[i] = domain.MonthlyTrend{Month: month}
		index[month] = i
	}

	for _, lr := range r.leaves {
		if len(lr.StartDate) < 7 {
			continue
		}
		i, ok := index[lr.StartDate[:7]]
		if !ok {
			continue
		}
		switch lr.Status {
		case domain.LeaveStatusApproved:
			trends[i].Approved++
		case domain.LeaveStatusPending:
			trends[i].Pending++
		case domain.LeaveStatusRejected:
			trends[i].Rejected++
		}
	}
	return trends
}

func (r *Repository) GetLeaveTypeDistribution() []domain.LeaveTypeShare {
	r.mu.RLock()
	defer r.mu.RUnlock()

	counts := make(map[domain.LeaveType]int)
	for _, lr := range r.leaves {
		counts[lr.LeaveType]++
	}

	shares := []domain.LeaveTypeShare{}
	for _, t := range []domain.LeaveType{domain.LeaveTypeAnnual, domain.LeaveTypeSick, domain.LeaveTypePersonal, domain.LeaveTypeOther} {
		if counts[t] == 0 {
			continue
		}
		shares = append(shares, domain.LeaveTypeShare{Type: string(t), Count: counts[t], Color: leaveTypeColors[t]})
	}
	return shares
}

func (r *Repository) GetRecentActivities() []domain.RecentActivity {
	leaves := r.GetAllLeaveRequests()
	if len(leaves) > recentActivityCap {
		leaves = leaves[:recentActivityCap]
	}

	activities := make([]domain.RecentActivity, len(leaves))
	for i, lr := range leaves {
		activities[i] = domain.RecentActivity{
			ID:           lr.ID,
			EmployeeName: lr.EmployeeName,
			LeaveType:    lr.LeaveType,
			StartDate:    lr.StartDate,
			EndDate:      lr.EndDate,
			Status:       lr.Status,
			ActionBy:     lr.ApprovedBy,
			CreatedAt:    lr.CreatedAt,
		}
	}
	return activities
}

// GetExportRows 每条申请一行，按 ID 升序
func (r *Repository) GetExportRows() []map[string]any {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]int64, 0, len(r.leaves))
	for id := range r.leaves {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	rows := make([]map[string]any, 0, len(ids))
	for _, id := range ids {
		lr := r.leaves[id]
		department := ""
		if e, ok := r.employees[lr.EmployeeID]; ok {
			department = e.DepartmentName
		}
		rows = append(rows, map[string]any{
			"id":            lr.ID,
			"employee_name": lr.EmployeeName,
			"department":    department,
			"leave_type":    lr.LeaveType,
			"start_date":    lr.StartDate,
			"end_date":      lr.EndDate,
			"total_days":    lr.TotalDays,
			"status":        lr.Status,
			"approved_by":   lr.ApprovedBy,
			"created_at":    lr.CreatedAt.Format(time.RFC3339),
		})
	}
	return rows
}

func percent(part, total int) float64 {
	if total <= 0 {
		return 0
	}
	return round1(float64(part) * 100 / float64(total))
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
