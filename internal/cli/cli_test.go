package cli

import (
	"bytes"
	"context"
	"math/rand"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/sysu-ecnc-dev/leavemaster/internal/config"
	"github.com/sysu-ecnc-dev/leavemaster/internal/domain"
	"github.com/sysu-ecnc-dev/leavemaster/internal/gateway"
	"github.com/sysu-ecnc-dev/leavemaster/internal/handler"
	"github.com/sysu-ecnc-dev/leavemaster/internal/repository"
	"github.com/sysu-ecnc-dev/leavemaster/internal/seed"
	"github.com/sysu-ecnc-dev/leavemaster/internal/session"
)

const password = "password"

// syncBuffer 推送回调和日志会在其它 goroutine 中写入
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

type env struct {
	srv  *httptest.Server
	repo *repository.Repository
	hub  *handler.Hub
	cfg  *config.Config
}

func newEnv(t *testing.T) *env {
	t.Helper()

	repo := repository.NewRepository(clockwork.NewRealClock())
	require.NoError(t, seed.Seed(repo, seed.Options{
		Password: password,
		Cost:     bcrypt.MinCost,
		Rand:     rand.New(rand.NewSource(1)),
	}))

	hub := handler.NewHub()
	h, err := handler.NewHandler(config.Default(), repo, hub)
	require.NoError(t, err)
	h.RegisterRoutes()

	srv := httptest.NewServer(h.Mux)
	t.Cleanup(func() {
		hub.Close()
		srv.Close()
	})

	cfg := config.Default()
	cfg.Log.Level = "error"
	return &env{srv: srv, repo: repo, hub: hub, cfg: cfg}
}

// terminal 模拟一台机器上的 leavectl，多次执行共用同一个会话存储
type terminal struct {
	env     *env
	storage *session.MemoryStorage
}

func (e *env) terminal() *terminal {
	return &terminal{env: e, storage: session.NewMemoryStorage()}
}

type result struct {
	out    string
	errOut string
	err    error
}

func (tm *terminal) run(t *testing.T, args ...string) result {
	t.Helper()
	return tm.runWith(t, context.Background(), "", args...)
}

func (tm *terminal) runWith(t *testing.T, ctx context.Context, stdin string, args ...string) result {
	t.Helper()

	var out, errOut syncBuffer
	c := tm.cli(&out, &errOut, stdin)
	err := c.Execute(ctx, append(tm.flags(), args...))
	return result{out: out.String(), errOut: errOut.String(), err: err}
}

func (tm *terminal) cli(out, errOut *syncBuffer, stdin string) *CLI {
	return New(
		WithConfig(tm.env.cfg),
		WithStorage(tm.storage),
		WithOutput(out, errOut),
		WithInput(strings.NewReader(stdin)),
	)
}

func (tm *terminal) flags() []string {
	wsURL := "ws" + strings.TrimPrefix(tm.env.srv.URL, "http") + "/ws"
	return []string{"--api", tm.env.srv.URL + "/api", "--push", wsURL}
}

func (e *env) login(t *testing.T, role domain.Role) *terminal {
	t.Helper()

	tm := e.terminal()
	res := tm.run(t, "login", "--email", account(role), "--password", password)
	require.NoError(t, res.err, res.errOut)
	return tm
}

func account(role domain.Role) string {
	for _, a := range seed.Accounts {
		if a.Role == role {
			return a.Email
		}
	}
	return ""
}

func employeeID(t *testing.T, repo *repository.Repository, role domain.Role) int64 {
	t.Helper()

	e, err := repo.GetEmployeeByEmail(account(role))
	require.NoError(t, err)
	return e.ID
}

func TestNotLoggedIn(t *testing.T) {
	e := newEnv(t)
	tm := e.terminal()

	res := tm.run(t, "whoami")
	require.NoError(t, res.err)
	assert.Equal(t, "Not logged in\n", res.out)

	res = tm.run(t, "leave", "list")
	require.ErrorIs(t, res.err, ErrNotLoggedIn)
	assert.Contains(t, res.errOut, "leavectl login")

	res = tm.run(t, "watch")
	require.ErrorIs(t, res.err, ErrNotLoggedIn)
}

func TestLoginAndWhoami(t *testing.T) {
	e := newEnv(t)
	tm := e.terminal()

	res := tm.run(t, "login", "--email", account(domain.RoleEmployee), "--password", password)
	require.NoError(t, res.err)
	assert.Equal(t, "Logged in as Eve Employee [EMPLOYEE]\n", res.out)

	res = tm.run(t, "whoami")
	require.NoError(t, res.err)
	assert.Contains(t, res.out, "Eve Employee")
	assert.Contains(t, res.out, "Engineering")
	assert.Contains(t, res.out, "12 of 12 days remaining")
	assert.Contains(t, res.out, "requests, calendar")

	res = tm.run(t, "logout")
	require.NoError(t, res.err)
	res = tm.run(t, "whoami")
	assert.Equal(t, "Not logged in\n", res.out)
}

func TestLoginReadsPasswordFromStdin(t *testing.T) {
	e := newEnv(t)
	tm := e.terminal()

	res := tm.runWith(t, context.Background(), password+"\n", "login", "--email", account(domain.RoleAdmin))
	require.NoError(t, res.err, res.errOut)
	assert.Contains(t, res.out, "Alice Admin [ADMIN]")
}

func TestLoginFailures(t *testing.T) {
	e := newEnv(t)
	tm := e.terminal()

	res := tm.run(t, "login", "--email", "not-an-email", "--password", password)
	require.Error(t, res.err)
	assert.Contains(t, res.errOut, "email must be a valid email address")

	res = tm.run(t, "login", "--email", account(domain.RoleAdmin), "--password", "wrong")
	var authErr *gateway.AuthError
	require.ErrorAs(t, res.err, &authErr)
	assert.Contains(t, res.errOut, "Invalid email or password")
	// 登录失败不是会话失效
	assert.NotContains(t, res.errOut, "Session expired")
}

func TestGatedCommandsRenderDenial(t *testing.T) {
	e := newEnv(t)
	tm := e.login(t, domain.RoleEmployee)

	res := tm.run(t, "reports", "dashboard")
	require.ErrorIs(t, res.err, ErrDenied)
	assert.Contains(t, res.out, "Access Denied")
	assert.Contains(t, res.out, "Required role: Manager, Admin, or Super Admin")
	assert.Contains(t, res.out, "[Go to Leave Requests]")
	assert.Empty(t, res.errOut)

	res = tm.run(t, "employees", "list")
	require.ErrorIs(t, res.err, ErrDenied)
	assert.Contains(t, res.out, "Required role: Admin or Super Admin")

	res = tm.run(t, "leave", "pending")
	require.ErrorIs(t, res.err, ErrDenied)
	assert.Contains(t, res.out, "Required role: Manager, Admin, or Super Admin")

	res = tm.run(t, "leave", "approve", "1")
	require.ErrorIs(t, res.err, ErrDenied)
}

func TestTab(t *testing.T) {
	e := newEnv(t)
	tm := e.login(t, domain.RoleManager)

	res := tm.run(t, "tab", "requests")
	require.NoError(t, res.err)
	assert.Equal(t, "Leave Requests\n  - leave_form\n  - manager_panel\n  - leave_list\n", res.out)

	res = tm.run(t, "tab", "calendar")
	require.NoError(t, res.err)
	assert.Contains(t, res.out, "team_calendar")

	res = tm.run(t, "tab", "users")
	require.ErrorIs(t, res.err, ErrDenied)
	assert.Contains(t, res.out, "Required role: Admin or Super Admin")

	res = tm.run(t, "tab", "payroll")
	require.Error(t, res.err)
	assert.Contains(t, res.errOut, `unknown tab "payroll"`)
}

func TestLeaveFlow(t *testing.T) {
	e := newEnv(t)
	employee := e.login(t, domain.RoleEmployee)
	manager := e.login(t, domain.RoleManager)

	res := employee.run(t, "leave", "submit", "--type", "personal", "--start", "2030-03-04", "--end", "2030-03-06", "--reason", "moving house")
	require.NoError(t, res.err, res.errOut)
	assert.Contains(t, res.out, "personal leave, 3 day(s), pending")

	res = employee.run(t, "leave", "submit", "--start", "2030-03-06", "--end", "2030-03-04")
	require.Error(t, res.err)
	assert.Contains(t, res.errOut, "End date must be after start date")

	requests := e.repo.GetLeaveRequestsByEmployee(employeeID(t, e.repo, domain.RoleEmployee))
	require.Len(t, requests, 1)
	id := requests[0].ID

	res = manager.run(t, "leave", "pending")
	require.NoError(t, res.err)
	assert.Contains(t, res.out, "Eve Employee")
	assert.Contains(t, res.out, "moving house")

	res = manager.run(t, "leave", "approve", "abc")
	require.Error(t, res.err)
	assert.Contains(t, res.errOut, `invalid id "abc"`)

	res = manager.run(t, "leave", "approve", strconv.FormatInt(id, 10))
	require.NoError(t, res.err, res.errOut)
	assert.Contains(t, res.out, "approved")

	res = manager.run(t, "leave", "reject", strconv.FormatInt(id, 10))
	var serverErr *gateway.ServerError
	require.ErrorAs(t, res.err, &serverErr)
	assert.Equal(t, 409, serverErr.Status)

	res = employee.run(t, "leave", "list")
	require.NoError(t, res.err)
	assert.Contains(t, res.out, "approved")
	assert.Contains(t, res.out, "Mark Manager")

	res = manager.run(t, "leave", "pending")
	require.NoError(t, res.err)
	assert.Equal(t, "No pending requests\n", res.out)
}

func TestCalendar(t *testing.T) {
	e := newEnv(t)
	employee := e.login(t, domain.RoleEmployee)
	manager := e.login(t, domain.RoleManager)

	res := employee.run(t, "leave", "submit", "--type", "sick", "--start", "2030-05-01", "--end", "2030-05-01")
	require.NoError(t, res.err, res.errOut)

	res = employee.run(t, "calendar")
	require.NoError(t, res.err)
	assert.Contains(t, res.out, "My calendar")
	assert.Contains(t, res.out, "Eve Employee - sick")

	res = manager.run(t, "calendar")
	require.NoError(t, res.err)
	assert.Contains(t, res.out, "Team calendar")
	assert.Contains(t, res.out, "2030-05-01")
}

func TestReports(t *testing.T) {
	e := newEnv(t)
	require.NoError(t, e.repo.CreateLeaveRequest(&domain.LeaveRequest{
		EmployeeID: employeeID(t, e.repo, domain.RoleEmployee),
		LeaveType:  domain.LeaveTypeAnnual,
		StartDate:  "2030-01-07",
		EndDate:    "2030-01-08",
		TotalDays:  2,
	}))
	tm := e.login(t, domain.RoleAdmin)

	res := tm.run(t, "reports", "dashboard")
	require.NoError(t, res.err, res.errOut)
	assert.Contains(t, res.out, "Total employees")
	assert.Contains(t, res.out, "Pending requests")

	res = tm.run(t, "reports", "summary")
	require.NoError(t, res.err, res.errOut)
	assert.Contains(t, res.out, "Engineering")
	assert.Contains(t, res.out, "MONTH")
	assert.Contains(t, res.out, "annual")

	res = tm.run(t, "reports", "export")
	require.NoError(t, res.err, res.errOut)
	lines := strings.Split(strings.TrimSpace(res.out), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "approved_by,created_at,department,employee_name,end_date,id,leave_type,start_date,status,total_days", lines[0])

	path := filepath.Join(t.TempDir(), "leaves.csv")
	res = tm.run(t, "reports", "export", "-o", path)
	require.NoError(t, res.err, res.errOut)
	assert.Contains(t, res.out, "Exported 1 row(s)")
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "Eve Employee")
}

func TestEmployeeManagement(t *testing.T) {
	e := newEnv(t)
	tm := e.login(t, domain.RoleAdmin)

	res := tm.run(t, "employees", "create",
		"--employee-id", "EMP0100",
		"--name", "Nina Putri",
		"--email", "nina@leavemaster.dev",
		"--password", "welcome1",
		"--department", "finance",
		"--role", "manager",
	)
	require.NoError(t, res.err, res.errOut)
	assert.Contains(t, res.out, "Nina Putri <nina@leavemaster.dev>")

	nina, err := e.repo.GetEmployeeByEmail("nina@leavemaster.dev")
	require.NoError(t, err)
	assert.Equal(t, "Finance", nina.DepartmentName)
	assert.Equal(t, "manager", nina.RoleName)
	assert.Equal(t, 12, nina.TotalLeaveDays)

	res = tm.run(t, "employees", "create", "--employee-id", "EMP0101", "--name", "No Password", "--email", "np@leavemaster.dev", "--department", "Sales")
	require.Error(t, res.err)
	assert.Contains(t, res.errOut, "password")

	res = tm.run(t, "employees", "list", "--department", "Finance")
	require.NoError(t, res.err)
	assert.Contains(t, res.out, "Nina Putri")
	assert.NotContains(t, res.out, "Eve Employee")

	res = tm.run(t, "employees", "list", "--search", "eve")
	require.NoError(t, res.err)
	assert.Contains(t, res.out, "Eve Employee")
	assert.NotContains(t, res.out, "Nina Putri")

	res = tm.run(t, "employees", "list", "--department", "Marketing")
	require.Error(t, res.err)
	assert.Contains(t, res.errOut, `unknown department "Marketing"`)

	id := strconv.FormatInt(nina.ID, 10)
	res = tm.run(t, "employees", "update", id, "--position", "Finance Lead", "--leave-days", "15")
	require.NoError(t, res.err, res.errOut)

	nina, err = e.repo.GetEmployeeByID(nina.ID)
	require.NoError(t, err)
	assert.Equal(t, "Finance Lead", nina.Position)
	assert.Equal(t, "Finance", nina.DepartmentName)
	assert.Equal(t, 15, nina.TotalLeaveDays)
	assert.Equal(t, 15, nina.RemainingLeaveDays)

	res = tm.run(t, "employees", "update", "999", "--position", "Ghost")
	require.Error(t, res.err)
	assert.Contains(t, res.errOut, "employee #999 not found")

	res = tm.run(t, "employees", "deactivate", id)
	require.NoError(t, res.err, res.errOut)
	nina, err = e.repo.GetEmployeeByID(nina.ID)
	require.NoError(t, err)
	assert.False(t, nina.IsActive)

	res = tm.run(t, "roles")
	require.NoError(t, res.err)
	assert.Contains(t, res.out, "super_admin")

	res = tm.run(t, "departments")
	require.NoError(t, res.err)
	assert.Contains(t, res.out, "Human Resources")
}

func TestRevokedSessionReturnsToLogin(t *testing.T) {
	e := newEnv(t)
	tm := e.login(t, domain.RoleEmployee)

	require.NoError(t, e.repo.DeactivateEmployee(employeeID(t, e.repo, domain.RoleEmployee)))

	res := tm.run(t, "leave", "list")
	var authErr *gateway.AuthError
	require.ErrorAs(t, res.err, &authErr)
	assert.Contains(t, res.errOut, "Session expired")

	res = tm.run(t, "whoami")
	require.NoError(t, res.err)
	assert.Equal(t, "Not logged in\n", res.out)
}

func TestWatch(t *testing.T) {
	e := newEnv(t)
	tm := e.login(t, domain.RoleEmployee)
	id := employeeID(t, e.repo, domain.RoleEmployee)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var out, errOut syncBuffer
	done := make(chan error, 1)
	go func() {
		done <- tm.cli(&out, &errOut, "").Execute(ctx, append(tm.flags(), "watch"))
	}()

	// login 命令留下的连接可能还没有被服务端注销，重复发送直到 watch 收到
	require.Eventually(t, func() bool {
		if strings.Contains(out.String(), "Your sick leave was APPROVED") {
			return true
		}
		e.hub.Send(id, domain.PushEvent{
			Type:    domain.KindStatusApproved,
			Message: "Your leave request has been approved",
			Data:    &domain.NotificationData{LeaveType: domain.LeaveTypeSick, Status: domain.LeaveStatusApproved},
		})
		return false
	}, 5*time.Second, 50*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("watch did not stop after cancel")
	}
	assert.Contains(t, out.String(), "push channel open")
}

func TestWatchSendsTestNotification(t *testing.T) {
	e := newEnv(t)
	tm := e.login(t, domain.RoleAdmin)
	id := employeeID(t, e.repo, domain.RoleAdmin)
	require.Eventually(t, func() bool { return e.hub.Connections(id) == 0 }, 2*time.Second, 10*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var out, errOut syncBuffer
	done := make(chan error, 1)
	go func() {
		done <- tm.cli(&out, &errOut, "").Execute(ctx, append(tm.flags(), "watch", "--test"))
	}()

	require.Eventually(t, func() bool {
		return strings.Contains(out.String(), "💡")
	}, 5*time.Second, 10*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
}
