// Package view 决定当前标签页应该显示什么。
//
// 选择标签页本身不做任何检查，权限只在渲染时根据会话判断，因此会话变化后下一次渲染立即生效。
package view

import (
	"strings"
	"sync"

	"github.com/sysu-ecnc-dev/leavemaster/internal/authz"
	"github.com/sysu-ecnc-dev/leavemaster/internal/domain"
)

type Tab string

const (
	TabRequests  Tab = "requests"
	TabCalendar  Tab = "calendar"
	TabDashboard Tab = "dashboard"
	TabUsers     Tab = "users"
)

const DefaultTab = TabRequests

var Tabs = []Tab{TabRequests, TabCalendar, TabDashboard, TabUsers}

func ParseTab(name string) (Tab, bool) {
	for _, tab := range Tabs {
		if string(tab) == strings.ToLower(strings.TrimSpace(name)) {
			return tab, true
		}
	}
	return "", false
}

// Requires 返回进入该标签页需要的权限，requests 和 calendar 不需要
func (t Tab) Requires() (authz.Permission, bool) {
	switch t {
	case TabDashboard:
		return authz.PermViewAnalytics, true
	case TabUsers:
		return authz.PermManageUsers, true
	default:
		return 0, false
	}
}

func (t Tab) Label() string {
	switch t {
	case TabRequests:
		return "Leave Requests"
	case TabCalendar:
		return "Calendar"
	case TabDashboard:
		return "Analytics"
	case TabUsers:
		return "User Management"
	default:
		return string(t)
	}
}

type ScreenKind int

const (
	ScreenLogin ScreenKind = iota
	ScreenContent
	ScreenDenied
)

func (k ScreenKind) String() string {
	switch k {
	case ScreenLogin:
		return "login"
	case ScreenContent:
		return "content"
	case ScreenDenied:
		return "denied"
	default:
		return "unknown"
	}
}

type Section string

const (
	SectionLeaveForm      Section = "leave_form"
	SectionManagerPanel   Section = "manager_panel"
	SectionLeaveList      Section = "leave_list"
	SectionCalendar       Section = "calendar"
	SectionTeamCalendar   Section = "team_calendar"
	SectionAnalytics      Section = "analytics"
	SectionUserManagement Section = "user_management"
)

type Screen struct {
	Kind     ScreenKind
	Tab      Tab
	Sections []Section
	// 以下字段只在 ScreenDenied 时有值
	Missing      authz.Permission
	RequiredRole string
	FallbackTab  Tab
}

// Message 是拒绝页上的提示
func (s Screen) Message() string {
	if s.Kind != ScreenDenied {
		return ""
	}
	return "You don't have permission to access this feature. Required role: " + s.RequiredRole
}

// FallbackLabel 是拒绝页上返回按钮的文字
func (s Screen) FallbackLabel() string {
	if s.Kind != ScreenDenied {
		return ""
	}
	return "Go to " + s.FallbackTab.Label()
}

func (s Screen) Has(section Section) bool {
	for _, sec := range s.Sections {
		if sec == section {
			return true
		}
	}
	return false
}

// Render 在显示时检查权限，未知标签页返回空内容
func Render(session *domain.Session, tab Tab) Screen {
	if session == nil {
		return Screen{Kind: ScreenLogin}
	}

	caps := authz.ForSession(session)
	if perm, ok := tab.Requires(); ok && !caps.Allows(perm) {
		return Screen{
			Kind:         ScreenDenied,
			Tab:          tab,
			Missing:      perm,
			RequiredRole: authz.RequiredRoles(perm),
			FallbackTab:  DefaultTab,
		}
	}

	screen := Screen{Kind: ScreenContent, Tab: tab}
	switch tab {
	case TabRequests:
		screen.Sections = append(screen.Sections, SectionLeaveForm)
		if caps.CanApprove {
			screen.Sections = append(screen.Sections, SectionManagerPanel)
		}
		screen.Sections = append(screen.Sections, SectionLeaveList)
	case TabCalendar:
		if caps.CanViewTeamCalendar {
			screen.Sections = []Section{SectionTeamCalendar}
		} else {
			screen.Sections = []Section{SectionCalendar}
		}
	case TabDashboard:
		screen.Sections = []Section{SectionAnalytics}
	case TabUsers:
		screen.Sections = []Section{SectionUserManagement}
	}
	return screen
}

// NavTabs 返回导航栏上显示的标签页
func NavTabs(caps authz.Capabilities) []Tab {
	tabs := []Tab{TabRequests, TabCalendar}
	if caps.CanViewAnalytics {
		tabs = append(tabs, TabDashboard)
	}
	if caps.CanManageUsers {
		tabs = append(tabs, TabUsers)
	}
	return tabs
}

// Controller 持有当前选中的标签页
type Controller struct {
	mu     sync.Mutex
	active Tab
}

func NewController() *Controller {
	return &Controller{active: DefaultTab}
}

// Select 无条件切换，权限在渲染时检查
func (c *Controller) Select(tab Tab) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.active = tab
}

func (c *Controller) Active() Tab {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.active
}

func (c *Controller) Reset() {
	c.Select(DefaultTab)
}

// ReturnToDefault 是拒绝页上返回按钮的动作
func (c *Controller) ReturnToDefault() Tab {
	c.Reset()
	return DefaultTab
}

func (c *Controller) Screen(session *domain.Session) Screen {
	return Render(session, c.Active())
}
