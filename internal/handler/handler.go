// Package handler 实现开发用后端的 REST 接口和推送通道。
package handler

import (
	"reflect"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"

	"github.com/sysu-ecnc-dev/leavemaster/internal/authz"
	"github.com/sysu-ecnc-dev/leavemaster/internal/config"
	"github.com/sysu-ecnc-dev/leavemaster/internal/repository"
)

type Handler struct {
	validate   *validator.Validate
	config     *config.Config
	repository *repository.Repository
	translator ut.Translator
	hub        *Hub

	Mux *chi.Mux
}

func NewHandler(cfg *config.Config, repo *repository.Repository, hub *Hub) (*Handler, error) {
	validate := validator.New(validator.WithRequiredStructEnabled())
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	en := en.New()
	uni := ut.New(en, en)
	trans, _ := uni.GetTranslator("en")
	if err := en_translations.RegisterDefaultTranslations(validate, trans); err != nil {
		return nil, err
	}

	return &Handler{
		validate:   validate,
		config:     cfg,
		repository: repo,
		translator: trans,
		hub:        hub,

		Mux: chi.NewRouter(),
	}, nil
}

func (h *Handler) RegisterRoutes() {
	h.Mux.Use(h.logger)
	h.Mux.Use(h.recoverer)

	// 推送通道通过查询参数中的 token 认证
	h.Mux.Get("/ws", h.ServeWS)

	h.Mux.Route("/api", func(r chi.Router) {
		r.Post("/login", h.Login)

		// 以下 API 必须要在登录后才允许调用
		r.Group(func(r chi.Router) {
			r.Use(h.auth)
			r.Use(h.myInfo)

			r.Get("/me", h.GetMyInfo)
			r.Post("/notifications/test", h.SendTestNotification)

			r.Route("/leave", func(r chi.Router) {
				r.Post("/", h.SubmitLeave)
				r.Get("/my-requests", h.GetMyLeaveRequests)
				r.With(h.RequiredCapability(authz.PermApprove)).Get("/pending", h.GetPendingLeaveRequests)
				r.Route("/{id}", func(r chi.Router) {
					r.Use(h.RequiredCapability(authz.PermApprove))
					r.Use(h.leaveRequest)
					r.Put("/status", h.UpdateLeaveStatus)
				})
			})

			r.Route("/calendar", func(r chi.Router) {
				r.Get("/events", h.GetCalendarEvents)
				r.With(h.RequiredCapability(authz.PermViewTeamCalendar)).Get("/team", h.GetTeamCalendar)
			})

			r.Route("/reports", func(r chi.Router) {
				r.Use(h.RequiredCapability(authz.PermViewAnalytics))
				r.Get("/dashboard-stats", h.GetDashboardStats)
				r.Get("/department-stats", h.GetDepartmentStats)
				r.Get("/monthly-trends", h.GetMonthlyTrends)
				r.Get("/leave-type-distribution", h.GetLeaveTypeDistribution)
				r.Get("/recent-activities", h.GetRecentActivities)
				r.Get("/export", h.ExportReport)
			})

			r.Route("/employees", func(r chi.Router) {
				r.Use(h.RequiredCapability(authz.PermManageUsers))
				r.Get("/", h.GetAllEmployees)
				r.Post("/", h.CreateEmployee)
				r.Route("/{id}", func(r chi.Router) {
					r.Use(h.employeeInfo)
					r.Put("/", h.UpdateEmployee)
					r.Delete("/", h.DeactivateEmployee)
				})
			})

			r.Get("/roles", h.GetRoles)
			r.Get("/departments", h.GetDepartments)
		})
	})
}
