package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/sysu-ecnc-dev/leavemaster/internal/api"
	"github.com/sysu-ecnc-dev/leavemaster/internal/domain"
	"github.com/sysu-ecnc-dev/leavemaster/internal/view"
)

func (c *CLI) newEmployeesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "employees",
		Short: "Manage employee records (administrators only)",
	}
	cmd.AddCommand(
		c.newEmployeesListCmd(),
		c.newEmployeesCreateCmd(),
		c.newEmployeesUpdateCmd(),
		c.newEmployeesDeactivateCmd(),
	)
	return cmd
}

func (c *CLI) newEmployeesListCmd() *cobra.Command {
	var search, department, role string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List employees, optionally filtered",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := c.open(view.TabUsers); err != nil {
				return err
			}

			ctx := cmd.Context()
			filter := api.EmployeeFilter{Search: search}
			if department != "" {
				id, err := c.departmentID(ctx, department)
				if err != nil {
					return err
				}
				filter.DepartmentID = id
			}
			if role != "" {
				id, err := c.roleID(ctx, role)
				if err != nil {
					return err
				}
				filter.RoleID = id
			}

			employees, err := c.app.API.ListEmployees(ctx)
			if err != nil {
				return err
			}
			employees = api.FilterEmployees(employees, filter)
			if len(employees) == 0 {
				fmt.Fprintln(c.out, "No employees found")
				return nil
			}

			t := newTable(c.out, "ID", "EMPLOYEE ID", "NAME", "EMAIL", "DEPARTMENT", "ROLE", "LEAVE", "STATUS")
			for _, e := range employees {
				status := "active"
				if !e.IsActive {
					status = "inactive"
				}
				t.row(e.ID, e.EmployeeID, e.Name, e.Email, orDash(e.DepartmentName), view.Badge(e.RoleName).Label,
					fmt.Sprintf("%d/%d", e.RemainingLeaveDays, e.TotalLeaveDays), status)
			}
			return t.flush()
		},
	}

	cmd.Flags().StringVar(&search, "search", "", "match name, e-mail or employee id")
	cmd.Flags().StringVar(&department, "department", "", "department name")
	cmd.Flags().StringVar(&role, "role", "", "role name")
	return cmd
}

// employeeFlags 是 create 和 update 共用的表单参数，部门和角色按名称指定
type employeeFlags struct {
	form       api.EmployeeForm
	department string
	role       string
	manager    int64
}

func (f *employeeFlags) register(flags *pflag.FlagSet) {
	flags.StringVar(&f.form.EmployeeID, "employee-id", "", "employee number, e.g. EMP0042")
	flags.StringVar(&f.form.Name, "name", "", "full name")
	flags.StringVar(&f.form.Email, "email", "", "e-mail address, used to log in")
	flags.StringVar(&f.form.Password, "password", "", "login password")
	flags.StringVar(&f.form.Position, "position", "", "job title")
	flags.StringVar(&f.department, "department", "", "department name")
	flags.StringVar(&f.role, "role", string(domain.RoleEmployee), "role name")
	flags.Int64Var(&f.manager, "manager", 0, "id of the direct manager, 0 for none")
	flags.IntVar(&f.form.TotalLeaveDays, "leave-days", api.DefaultLeaveDays, "annual leave allowance in days")
}

// apply 只覆盖命令行上显式给出的字段
func (f *employeeFlags) apply(ctx context.Context, c *CLI, flags *pflag.FlagSet, form *api.EmployeeForm) error {
	set := func(name string, fn func()) {
		if flags.Changed(name) {
			fn()
		}
	}
	set("employee-id", func() { form.EmployeeID = f.form.EmployeeID })
	set("name", func() { form.Name = f.form.Name })
	set("email", func() { form.Email = f.form.Email })
	set("password", func() { form.Password = f.form.Password })
	set("position", func() { form.Position = f.form.Position })
	set("leave-days", func() { form.TotalLeaveDays = f.form.TotalLeaveDays })
	set("manager", func() {
		if f.manager == 0 {
			form.ManagerID = nil
			return
		}
		id := f.manager
		form.ManagerID = &id
	})

	if flags.Changed("department") {
		id, err := c.departmentID(ctx, f.department)
		if err != nil {
			return err
		}
		form.DepartmentID = id
	}
	if flags.Changed("role") {
		id, err := c.roleID(ctx, f.role)
		if err != nil {
			return err
		}
		form.RoleID = id
	}
	return nil
}

func (c *CLI) newEmployeesCreateCmd() *cobra.Command {
	var f employeeFlags

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an employee",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := c.open(view.TabUsers); err != nil {
				return err
			}

			ctx := cmd.Context()
			form := f.form
			if err := f.apply(ctx, c, cmd.Flags(), &form); err != nil {
				return err
			}
			// 角色有默认值，未显式指定时也要换成 ID
			if form.RoleID == 0 {
				id, err := c.roleID(ctx, f.role)
				if err != nil {
					return err
				}
				form.RoleID = id
			}

			created, err := c.app.API.CreateEmployee(ctx, form)
			if err != nil {
				return err
			}
			fmt.Fprintf(c.out, "Created employee #%d %s <%s>\n", created.ID, created.Name, created.Email)
			return nil
		},
	}

	f.register(cmd.Flags())
	return cmd
}

func (c *CLI) newEmployeesUpdateCmd() *cobra.Command {
	var f employeeFlags

	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Update an employee, only the given flags are changed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			if _, err := c.open(view.TabUsers); err != nil {
				return err
			}

			ctx := cmd.Context()
			existing, err := c.findEmployee(ctx, id)
			if err != nil {
				return err
			}

			form := api.FormFromEmployee(*existing)
			if err := f.apply(ctx, c, cmd.Flags(), &form); err != nil {
				return err
			}

			updated, err := c.app.API.UpdateEmployee(ctx, id, form)
			if err != nil {
				return err
			}
			fmt.Fprintf(c.out, "Updated employee #%d %s\n", updated.ID, updated.Name)
			return nil
		},
	}

	f.register(cmd.Flags())
	return cmd
}

func (c *CLI) newEmployeesDeactivateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "deactivate <id>",
		Short: "Deactivate an employee account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			if _, err := c.open(view.TabUsers); err != nil {
				return err
			}

			if err := c.app.API.DeactivateEmployee(cmd.Context(), id); err != nil {
				return err
			}
			fmt.Fprintf(c.out, "Deactivated employee #%d\n", id)
			return nil
		},
	}
}

func (c *CLI) newRolesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "roles",
		Short: "List roles",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := c.requireSession(); err != nil {
				return err
			}

			roles, err := c.app.API.Roles(cmd.Context())
			if err != nil {
				return err
			}
			t := newTable(c.out, "ID", "NAME", "DESCRIPTION")
			for _, r := range roles {
				t.row(r.ID, r.Name, orDash(r.Description))
			}
			return t.flush()
		},
	}
}

func (c *CLI) newDepartmentsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "departments",
		Short: "List departments",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := c.requireSession(); err != nil {
				return err
			}

			departments, err := c.app.API.Departments(cmd.Context())
			if err != nil {
				return err
			}
			t := newTable(c.out, "ID", "NAME")
			for _, d := range departments {
				t.row(d.ID, d.Name)
			}
			return t.flush()
		},
	}
}

func (c *CLI) departmentID(ctx context.Context, name string) (int64, error) {
	departments, err := c.app.API.Departments(ctx)
	if err != nil {
		return 0, err
	}
	for _, d := range departments {
		if strings.EqualFold(d.Name, name) {
			return d.ID, nil
		}
	}
	return 0, fmt.Errorf("unknown department %q", name)
}

func (c *CLI) roleID(ctx context.Context, name string) (int64, error) {
	roles, err := c.app.API.Roles(ctx)
	if err != nil {
		return 0, err
	}
	for _, r := range roles {
		if strings.EqualFold(r.Name, name) {
			return r.ID, nil
		}
	}
	return 0, fmt.Errorf("unknown role %q", name)
}

func (c *CLI) findEmployee(ctx context.Context, id int64) (*domain.Employee, error) {
	employees, err := c.app.API.ListEmployees(ctx)
	if err != nil {
		return nil, err
	}
	for i := range employees {
		if employees[i].ID == id {
			return &employees[i], nil
		}
	}
	return nil, fmt.Errorf("employee #%d not found", id)
}
