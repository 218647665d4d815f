package handler

import "net/http"

func (h *Handler) GetDashboardStats(w http.ResponseWriter, r *http.Request) {
	h.successResponse(w, r, h.repository.GetDashboardStats())
}

func (h *Handler) GetDepartmentStats(w http.ResponseWriter, r *http.Request) {
	h.successResponse(w, r, h.repository.GetDepartmentStats())
}

func (h *Handler) GetMonthlyTrends(w http.ResponseWriter, r *http.Request) {
	h.successResponse(w, r, h.repository.GetMonthlyTrends())
}

func (h *Handler) GetLeaveTypeDistribution(w http.ResponseWriter, r *http.Request) {
	h.successResponse(w, r, h.repository.GetLeaveTypeDistribution())
}

func (h *Handler) GetRecentActivities(w http.ResponseWriter, r *http.Request) {
	h.successResponse(w, r, h.repository.GetRecentActivities())
}

// ExportReport 返回扁平的 JSON 记录，由客户端转换成 CSV
func (h *Handler) ExportReport(w http.ResponseWriter, r *http.Request) {
	h.successResponse(w, r, h.repository.GetExportRows())
}
