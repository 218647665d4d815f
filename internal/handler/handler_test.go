package handler

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/sysu-ecnc-dev/leavemaster/internal/api"
	"github.com/sysu-ecnc-dev/leavemaster/internal/authz"
	"github.com/sysu-ecnc-dev/leavemaster/internal/config"
	"github.com/sysu-ecnc-dev/leavemaster/internal/domain"
	"github.com/sysu-ecnc-dev/leavemaster/internal/gateway"
	"github.com/sysu-ecnc-dev/leavemaster/internal/notify"
	"github.com/sysu-ecnc-dev/leavemaster/internal/repository"
	"github.com/sysu-ecnc-dev/leavemaster/internal/seed"
	"github.com/sysu-ecnc-dev/leavemaster/internal/session"
)

const password = "password"

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

type server struct {
	srv   *httptest.Server
	repo  *repository.Repository
	hub   *Hub
	clock *clockwork.FakeClock
}

func newServer(t *testing.T) *server {
	t.Helper()

	clock := clockwork.NewFakeClockAt(time.Date(2026, 5, 15, 9, 0, 0, 0, time.UTC))
	repo := repository.NewRepository(clock)
	require.NoError(t, seed.Seed(repo, seed.Options{
		Password: password,
		Cost:     bcrypt.MinCost,
		Rand:     rand.New(rand.NewSource(1)),
	}))

	hub := NewHub()
	h, err := NewHandler(config.Default(), repo, hub)
	require.NoError(t, err)
	h.RegisterRoutes()

	srv := httptest.NewServer(h.Mux)
	t.Cleanup(func() {
		hub.Close()
		srv.Close()
	})
	return &server{srv: srv, repo: repo, hub: hub, clock: clock}
}

type user struct {
	client   *api.Client
	gateway  *gateway.Gateway
	sessions *session.Store
}

func (s *server) user(t *testing.T) *user {
	t.Helper()

	sessions := session.NewStore(session.NewMemoryStorage(), session.WithLogger(discard))
	gw := gateway.New(s.srv.URL+"/api", sessions, gateway.WithLogger(discard))
	client, err := api.New(gw, sessions)
	require.NoError(t, err)
	return &user{client: client, gateway: gw, sessions: sessions}
}

func (s *server) login(t *testing.T, email string) *user {
	t.Helper()
	return s.loginWith(t, email, password)
}

func (s *server) loginWith(t *testing.T, email, pw string) *user {
	t.Helper()

	u := s.user(t)
	_, err := u.client.Login(context.Background(), api.Credentials{Email: email, Password: pw})
	require.NoError(t, err)
	return u
}

func (s *server) channel(t *testing.T, u *user) *notify.Channel {
	t.Helper()

	wsURL := "ws" + strings.TrimPrefix(s.srv.URL, "http") + "/ws"
	ch := notify.NewChannel(wsURL, u.sessions.Token, notify.WithLogger(discard))
	t.Cleanup(ch.Close)
	ch.Connect()
	require.Eventually(t, ch.Connected, 2*time.Second, 10*time.Millisecond)

	// 客户端握手完成时服务端可能还没有登记这个连接
	id := u.sessions.Current().Identity.ID
	require.Eventually(t, func() bool { return s.hub.Connections(id) > 0 }, 2*time.Second, 10*time.Millisecond)
	return ch
}

func account(role domain.Role) string {
	for _, a := range seed.Accounts {
		if a.Role == role {
			return a.Email
		}
	}
	return ""
}

func TestLogin(t *testing.T) {
	s := newServer(t)

	u := s.login(t, account(domain.RoleManager))

	cur := u.sessions.Current()
	require.NotNil(t, cur)
	assert.Equal(t, "manager", cur.Identity.RoleName)
	assert.Equal(t, "Engineering", cur.Identity.DepartmentName)
	assert.NotEmpty(t, cur.Token)
}

func TestLoginWrongPassword(t *testing.T) {
	s := newServer(t)
	u := s.user(t)

	_, err := u.client.Login(context.Background(), api.Credentials{Email: account(domain.RoleAdmin), Password: "nope"})

	var authErr *gateway.AuthError
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, "Invalid email or password", authErr.Message)
	assert.Nil(t, u.sessions.Current())
}

func TestLoginValidatedOnServer(t *testing.T) {
	s := newServer(t)

	resp, err := http.Post(s.srv.URL+"/api/login", "application/json", strings.NewReader(`{"email":"not-an-email","password":"x"}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, string(body), "email must be a valid email address")
}

func TestRequestsWithoutTokenAreRejected(t *testing.T) {
	s := newServer(t)
	u := s.user(t)

	_, err := u.client.MyLeaveRequests(context.Background())

	var authErr *gateway.AuthError
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, "Authentication required", authErr.Message)
}

func TestExpiredTokenEvictsSession(t *testing.T) {
	s := newServer(t)
	u := s.login(t, account(domain.RoleEmployee))

	s.clock.Advance(25 * time.Hour)
	_, err := u.client.MyLeaveRequests(context.Background())

	var authErr *gateway.AuthError
	require.ErrorAs(t, err, &authErr)
	assert.Nil(t, u.sessions.Current())
}

func TestCapabilitiesEnforcedOnServer(t *testing.T) {
	s := newServer(t)
	employee := s.login(t, account(domain.RoleEmployee))
	manager := s.login(t, account(domain.RoleManager))
	ctx := context.Background()

	_, err := employee.client.ListEmployees(ctx)
	assert.True(t, gateway.IsStatus(err, http.StatusForbidden))
	assert.Contains(t, err.Error(), "Admin or Super Admin")

	_, err = employee.client.PendingLeaveRequests(ctx)
	assert.True(t, gateway.IsStatus(err, http.StatusForbidden))

	_, err = employee.client.DashboardStats(ctx)
	assert.True(t, gateway.IsStatus(err, http.StatusForbidden))

	_, err = manager.client.ListEmployees(ctx)
	assert.True(t, gateway.IsStatus(err, http.StatusForbidden))

	_, err = manager.client.DashboardStats(ctx)
	assert.NoError(t, err)

	// 403 不会清除会话
	assert.NotNil(t, employee.sessions.Current())
}

func TestLeaveApprovalFlow(t *testing.T) {
	s := newServer(t)
	employee := s.login(t, account(domain.RoleEmployee))
	manager := s.login(t, account(domain.RoleManager))
	ctx := context.Background()

	created, err := employee.client.SubmitLeave(ctx, api.LeaveForm{
		LeaveType: domain.LeaveTypeSick,
		StartDate: "2026-05-18",
		EndDate:   "2026-05-20",
		Reason:    "flu",
	})
	require.NoError(t, err)
	assert.Equal(t, 3, created.TotalDays)
	assert.Equal(t, domain.LeaveStatusPending, created.Status)

	pending, err := manager.client.PendingLeaveRequests(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, created.ID, pending[0].ID)

	require.NoError(t, manager.client.UpdateLeaveStatus(ctx, created.ID, domain.LeaveStatusApproved))

	mine, err := employee.client.MyLeaveRequests(ctx)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, domain.LeaveStatusApproved, mine[0].Status)
	assert.Equal(t, "Mark Manager", mine[0].ApprovedBy)

	record, err := s.repo.GetEmployeeByEmail(account(domain.RoleEmployee))
	require.NoError(t, err)
	assert.Equal(t, 9, record.RemainingLeaveDays)

	err = manager.client.UpdateLeaveStatus(ctx, created.ID, domain.LeaveStatusRejected)
	assert.True(t, gateway.IsStatus(err, http.StatusConflict))

	err = manager.client.UpdateLeaveStatus(ctx, 999, domain.LeaveStatusRejected)
	assert.True(t, gateway.IsStatus(err, http.StatusNotFound))
}

func TestManagerCannotApproveOutsideTeam(t *testing.T) {
	s := newServer(t)
	admin := s.login(t, account(domain.RoleAdmin))
	manager := s.login(t, account(domain.RoleManager))
	ctx := context.Background()

	created, err := admin.client.SubmitLeave(ctx, api.LeaveForm{StartDate: "2026-05-18", EndDate: "2026-05-18"})
	require.NoError(t, err)
	assert.Equal(t, domain.LeaveTypeAnnual, created.LeaveType)

	err = manager.client.UpdateLeaveStatus(ctx, created.ID, domain.LeaveStatusApproved)
	assert.True(t, gateway.IsStatus(err, http.StatusForbidden))
}

func TestPushNotifications(t *testing.T) {
	s := newServer(t)
	employee := s.login(t, account(domain.RoleEmployee))
	manager := s.login(t, account(domain.RoleManager))
	ctx := context.Background()

	managerCh := s.channel(t, manager)
	employeeCh := s.channel(t, employee)

	created, err := employee.client.SubmitLeave(ctx, api.LeaveForm{
		LeaveType: domain.LeaveTypePersonal,
		StartDate: "2026-05-21",
		EndDate:   "2026-05-22",
	})
	require.NoError(t, err)

	require.Eventually(t, func() bool { return managerCh.Notifications().Len() == 1 }, 2*time.Second, 10*time.Millisecond)
	n := managerCh.Notifications().Snapshot()[0]
	assert.Equal(t, domain.KindNewLeaveRequest, n.Type)
	require.NotNil(t, n.Data)
	assert.Equal(t, created.ID, n.Data.RequestID)
	assert.Equal(t, "Eve Employee requested personal leave", notify.Format(n))

	require.NoError(t, manager.client.UpdateLeaveStatus(ctx, created.ID, domain.LeaveStatusRejected))

	require.Eventually(t, func() bool { return employeeCh.Notifications().Len() == 1 }, 2*time.Second, 10*time.Millisecond)
	n = employeeCh.Notifications().Snapshot()[0]
	assert.Equal(t, domain.KindStatusRejected, n.Type)
	assert.Equal(t, "Your personal leave was REJECTED", notify.Format(n))
}

func TestTestNotification(t *testing.T) {
	s := newServer(t)
	admin := s.login(t, account(domain.RoleAdmin))
	ch := s.channel(t, admin)

	var out map[string]int
	require.NoError(t, admin.gateway.Do(context.Background(), http.MethodPost, "/notifications/test", nil, &out))
	assert.Equal(t, 1, out["delivered"])

	require.Eventually(t, func() bool { return ch.Notifications().Len() == 1 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, domain.KindTest, ch.Notifications().Snapshot()[0].Type)
}

func TestPushRequiresValidToken(t *testing.T) {
	s := newServer(t)

	resp, err := http.Get(s.srv.URL + "/ws?token=garbage")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, err = http.Get(s.srv.URL + "/ws")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestCalendar(t *testing.T) {
	s := newServer(t)
	employee := s.login(t, account(domain.RoleEmployee))
	manager := s.login(t, account(domain.RoleManager))
	ctx := context.Background()

	_, err := employee.client.SubmitLeave(ctx, api.LeaveForm{StartDate: "2026-05-25", EndDate: "2026-05-26"})
	require.NoError(t, err)

	events, err := employee.client.Calendar(ctx, authz.ForSession(employee.sessions.Current()))
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "Eve Employee - annual", events[0].Title)
	assert.Equal(t, time.Date(2026, 5, 25, 0, 0, 0, 0, time.UTC), events[0].Start.UTC())
	assert.Equal(t, "#f39c12", events[0].Color)

	team, err := manager.client.TeamCalendar(ctx)
	require.NoError(t, err)
	assert.Len(t, team, 1)

	_, err = employee.client.TeamCalendar(ctx)
	assert.True(t, gateway.IsStatus(err, http.StatusForbidden))
}

func TestReports(t *testing.T) {
	s := newServer(t)
	employee := s.login(t, account(domain.RoleEmployee))
	admin := s.login(t, account(domain.RoleAdmin))
	ctx := context.Background()

	_, err := employee.client.SubmitLeave(ctx, api.LeaveForm{StartDate: "2026-05-25", EndDate: "2026-05-26", Reason: "trip, family"})
	require.NoError(t, err)

	analytics, err := admin.client.Analytics(ctx)
	require.NoError(t, err)
	assert.Equal(t, len(seed.Accounts), analytics.Stats.TotalEmployees)
	assert.Equal(t, 1, analytics.Stats.PendingRequests)
	assert.Len(t, analytics.Departments, len(seed.Departments))
	assert.Len(t, analytics.Trends, 6)
	assert.Len(t, analytics.Activities, 1)

	var buf bytes.Buffer
	n, err := admin.client.ExportReport(ctx, &buf)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "approved_by,created_at,department,employee_name,end_date,id,leave_type,start_date,status,total_days", lines[0])
	assert.Contains(t, lines[1], "Engineering,Eve Employee,2026-05-26,1,annual,2026-05-25,pending,2")
}

func TestEmployeeManagement(t *testing.T) {
	s := newServer(t)
	admin := s.login(t, account(domain.RoleAdmin))
	ctx := context.Background()

	roles, err := admin.client.Roles(ctx)
	require.NoError(t, err)
	require.Len(t, roles, 4)
	departments, err := admin.client.Departments(ctx)
	require.NoError(t, err)
	require.Len(t, departments, len(seed.Departments))

	form := api.EmployeeForm{
		EmployeeID:   "EMP9000",
		Name:         "Nina New",
		Email:        "nina@leavemaster.dev",
		Password:     "welcome1",
		DepartmentID: departments[3].ID,
		RoleID:       roles[0].ID,
	}
	created, err := admin.client.CreateEmployee(ctx, form)
	require.NoError(t, err)
	assert.Equal(t, 12, created.TotalLeaveDays)
	assert.Equal(t, "Sales", created.DepartmentName)
	assert.True(t, created.IsActive)

	_, err = admin.client.CreateEmployee(ctx, form)
	assert.True(t, gateway.IsStatus(err, http.StatusConflict))

	nina := s.loginWith(t, "nina@leavemaster.dev", "welcome1")
	assert.Equal(t, "employee", nina.sessions.Current().Identity.RoleName)

	update := api.FormFromEmployee(*created)
	update.Position = "Account Executive"
	update.RoleID = roles[1].ID
	updated, err := admin.client.UpdateEmployee(ctx, created.ID, update)
	require.NoError(t, err)
	assert.Equal(t, "manager", updated.RoleName)
	assert.Equal(t, "Account Executive", updated.Position)

	// 角色以服务端存储为准，旧 token 立即获得新权限
	_, err = nina.client.DashboardStats(ctx)
	assert.NoError(t, err)

	require.NoError(t, admin.client.DeactivateEmployee(ctx, created.ID))

	_, err = nina.client.MyLeaveRequests(ctx)
	var authErr *gateway.AuthError
	require.ErrorAs(t, err, &authErr)
	assert.Nil(t, nina.sessions.Current())

	_, err = nina.client.Login(ctx, api.Credentials{Email: "nina@leavemaster.dev", Password: "welcome1"})
	assert.True(t, gateway.IsStatus(err, http.StatusForbidden))

	all, err := admin.client.ListEmployees(ctx)
	require.NoError(t, err)
	assert.Len(t, all, len(seed.Accounts)+1)

	err = admin.client.DeactivateEmployee(ctx, 999)
	assert.True(t, gateway.IsStatus(err, http.StatusNotFound))
}

func TestCannotDeactivateSelf(t *testing.T) {
	s := newServer(t)
	admin := s.login(t, account(domain.RoleAdmin))

	err := admin.client.DeactivateEmployee(context.Background(), admin.sessions.Current().Identity.ID)
	assert.True(t, gateway.IsStatus(err, http.StatusBadRequest))
}
