// Package seed 为开发用后端准备初始数据。
package seed

import (
	"errors"
	"fmt"
	"log/slog"
	"math/rand"

	"golang.org/x/crypto/bcrypt"

	"github.com/sysu-ecnc-dev/leavemaster/internal/domain"
	"github.com/sysu-ecnc-dev/leavemaster/internal/repository"
	"github.com/sysu-ecnc-dev/leavemaster/internal/utils"
)

const EmailDomain = "leavemaster.dev"

var Departments = []string{"Engineering", "Human Resources", "Finance", "Sales"}

// Account 是固定的演示账号，每个角色一个
type Account struct {
	Name       string
	Email      string
	Role       domain.Role
	Department string
	Position   string
}

var Accounts = []Account{
	{Name: "Super Admin", Email: "superadmin@" + EmailDomain, Role: domain.RoleSuperAdmin, Position: "System Owner"},
	{Name: "Alice Admin", Email: "admin@" + EmailDomain, Role: domain.RoleAdmin, Department: "Human Resources", Position: "HR Manager"},
	{Name: "Mark Manager", Email: "manager@" + EmailDomain, Role: domain.RoleManager, Department: "Engineering", Position: "Engineering Manager"},
	{Name: "Eve Employee", Email: "employee@" + EmailDomain, Role: domain.RoleEmployee, Department: "Engineering", Position: "Software Engineer"},
}

type Options struct {
	Password        string
	RandomEmployees int
	LeavesPerPerson int
	// Cost 为 0 时使用 bcrypt.DefaultCost
	Cost int
	Rand *rand.Rand
}

// Seed 写入部门、固定账号、随机员工和一些请假记录，所有账号共用同一个密码
func Seed(r *repository.Repository, opts Options) error {
	if opts.Password == "" {
		return errors.New("seed password must not be empty")
	}
	if opts.Cost == 0 {
		opts.Cost = bcrypt.DefaultCost
	}
	if opts.Rand == nil {
		opts.Rand = rand.New(rand.NewSource(r.Now().UnixNano()))
	}
	rnd := opts.Rand

	passwordHash, err := bcrypt.GenerateFromPassword([]byte(opts.Password), opts.Cost)
	if err != nil {
		return fmt.Errorf("hash seed password: %w", err)
	}

	departments := make(map[string]int64, len(Departments))
	for _, name := range Departments {
		departments[name] = r.CreateDepartment(name).ID
	}

	seq := 1
	var managerID int64
	for _, account := range Accounts {
		role, err := r.GetRoleByName(string(account.Role))
		if err != nil {
			return err
		}

		e := &repository.EmployeeRecord{
			Employee: domain.Employee{
				EmployeeID:     utils.GenerateEmployeeID(seq),
				Name:           account.Name,
				Email:          account.Email,
				Position:       account.Position,
				DepartmentID:   departments[account.Department],
				RoleID:         role.ID,
				TotalLeaveDays: 12,
			},
			PasswordHash: string(passwordHash),
		}
		if account.Role == domain.RoleEmployee && managerID != 0 {
			e.ManagerID = &managerID
		}
		if err := r.CreateEmployee(e); err != nil {
			return fmt.Errorf("create %s: %w", account.Email, err)
		}
		if account.Role == domain.RoleManager {
			managerID = e.ID
		}
		seq++
	}

	employeeRole, err := r.GetRoleByName(string(domain.RoleEmployee))
	if err != nil {
		return err
	}
	for created := 0; created < opts.RandomEmployees; {
		name := utils.GenerateRandomChineseName(rnd)
		department := Departments[rnd.Intn(len(Departments))]

		e := &repository.EmployeeRecord{
			Employee: domain.Employee{
				EmployeeID:     utils.GenerateEmployeeID(seq),
				Name:           name,
				Email:          utils.GenerateEmailFromChineseName(rnd, name, EmailDomain),
				Position:       utils.GenerateRandomPosition(rnd),
				DepartmentID:   departments[department],
				RoleID:         employeeRole.ID,
				TotalLeaveDays: 12 + rnd.Intn(9),
			},
			PasswordHash: string(passwordHash),
		}
		if department == "Engineering" && managerID != 0 {
			e.ManagerID = &managerID
		}

		if err := r.CreateEmployee(e); err != nil {
			if errors.Is(err, repository.ErrDuplicateEmail) {
				// 随机生成的邮箱重复了，换一个名字重试
				continue
			}
			return fmt.Errorf("create random employee: %w", err)
		}
		created++
		seq++
	}

	seedLeaves(r, rnd, opts.LeavesPerPerson)

	slog.Info("已写入初始数据", "employees", len(r.GetAllEmployees()), "leaveRequests", len(r.GetAllLeaveRequests()))
	return nil
}

// seedLeaves 为每个员工生成若干请假申请，并随机处理其中一部分
func seedLeaves(r *repository.Repository, rnd *rand.Rand, perPerson int) {
	now := r.Now()
	for _, e := range r.GetAllEmployees() {
		for i := 0; i < perPerson; i++ {
			start, end := utils.GenerateRandomLeaveRange(rnd, now)
			days, err := utils.ValidateLeaveDates(start, end)
			if err != nil {
				continue
			}

			lr := &domain.LeaveRequest{
				EmployeeID: e.ID,
				LeaveType:  utils.GenerateRandomLeaveType(rnd),
				StartDate:  start,
				EndDate:    end,
				TotalDays:  days,
				Reason:     utils.GenerateRandomReason(rnd),
			}
			if err := r.CreateLeaveRequest(lr); err != nil {
				slog.Warn("无法写入请假记录", "employee", e.ID, "error", err)
				continue
			}

			approvers := r.Approvers(e.ID)
			if len(approvers) == 0 || rnd.Intn(3) == 0 {
				continue
			}
			status := domain.LeaveStatusApproved
			if rnd.Intn(4) == 0 {
				status = domain.LeaveStatusRejected
			}
			if _, err := r.UpdateLeaveStatus(lr.ID, status, approvers[rnd.Intn(len(approvers))]); err != nil {
				// 余额不足时保持 pending
				continue
			}
		}
	}
}
