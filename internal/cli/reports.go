package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/sysu-ecnc-dev/leavemaster/internal/domain"
	"github.com/sysu-ecnc-dev/leavemaster/internal/view"
)

func (c *CLI) newReportsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reports",
		Short: "Leave analytics for managers and administrators",
	}
	cmd.AddCommand(
		c.reportCmd("summary", "Load every report at once", c.printSummary),
		c.reportCmd("dashboard", "Headline statistics", c.printDashboard),
		c.reportCmd("departments", "Statistics per department", c.printDepartments),
		c.reportCmd("trends", "Requests per month over the last six months", c.printTrends),
		c.reportCmd("types", "Requests per leave type", c.printTypes),
		c.reportCmd("activities", "Most recent leave activity", c.printActivities),
		c.newExportCmd(),
	)
	return cmd
}

// reportCmd 的所有子命令都需要先通过分析页的权限检查
func (c *CLI) reportCmd(use, short string, run func(ctx context.Context) error) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := c.open(view.TabDashboard); err != nil {
				return err
			}
			return run(cmd.Context())
		},
	}
}

func (c *CLI) printSummary(ctx context.Context) error {
	analytics, err := c.app.API.Analytics(ctx)
	if err != nil {
		return err
	}

	c.writeDashboard(&analytics.Stats)
	fmt.Fprintln(c.out)
	if err := c.writeDepartments(analytics.Departments); err != nil {
		return err
	}
	fmt.Fprintln(c.out)
	if err := c.writeTrends(analytics.Trends); err != nil {
		return err
	}
	fmt.Fprintln(c.out)
	if err := c.writeTypes(analytics.Distribution); err != nil {
		return err
	}
	fmt.Fprintln(c.out)
	return c.writeActivities(analytics.Activities)
}

func (c *CLI) printDashboard(ctx context.Context) error {
	stats, err := c.app.API.DashboardStats(ctx)
	if err != nil {
		return err
	}
	c.writeDashboard(stats)
	return nil
}

func (c *CLI) writeDashboard(stats *domain.DashboardStats) {
	t := newTable(c.out, "METRIC", "VALUE")
	t.row("Total employees", stats.TotalEmployees)
	t.row("Pending requests", stats.PendingRequests)
	t.row("Approved this month", stats.ApprovedThisMonth)
	t.row("Leave utilization", fmt.Sprintf("%.1f%%", stats.LeaveUtilization))
	t.row("Avg processing time", fmt.Sprintf("%.1fh", stats.AvgProcessingTime))
	t.row("Leave days this year", stats.TotalLeavesThisYear)
	_ = t.flush()
}

func (c *CLI) printDepartments(ctx context.Context) error {
	stats, err := c.app.API.DepartmentStats(ctx)
	if err != nil {
		return err
	}
	return c.writeDepartments(stats)
}

func (c *CLI) writeDepartments(stats []domain.DepartmentStat) error {
	t := newTable(c.out, "DEPARTMENT", "EMPLOYEES", "LEAVES", "AVG DAYS", "UTILIZATION", "PENDING")
	for _, s := range stats {
		t.row(s.Department, s.TotalEmployees, s.TotalLeaves, fmt.Sprintf("%.1f", s.AvgLeaveDays), fmt.Sprintf("%.1f%%", s.UtilizationRate), s.PendingCount)
	}
	return t.flush()
}

func (c *CLI) printTrends(ctx context.Context) error {
	trends, err := c.app.API.MonthlyTrends(ctx)
	if err != nil {
		return err
	}
	return c.writeTrends(trends)
}

func (c *CLI) writeTrends(trends []domain.MonthlyTrend) error {
	t := newTable(c.out, "MONTH", "APPROVED", "PENDING", "REJECTED")
	for _, m := range trends {
		t.row(m.Month, m.Approved, m.Pending, m.Rejected)
	}
	return t.flush()
}

func (c *CLI) printTypes(ctx context.Context) error {
	shares, err := c.app.API.LeaveTypeDistribution(ctx)
	if err != nil {
		return err
	}
	return c.writeTypes(shares)
}

func (c *CLI) writeTypes(shares []domain.LeaveTypeShare) error {
	t := newTable(c.out, "TYPE", "COUNT")
	for _, s := range shares {
		t.row(s.Type, s.Count)
	}
	return t.flush()
}

func (c *CLI) printActivities(ctx context.Context) error {
	activities, err := c.app.API.RecentActivities(ctx)
	if err != nil {
		return err
	}
	return c.writeActivities(activities)
}

func (c *CLI) writeActivities(activities []domain.RecentActivity) error {
	t := newTable(c.out, "EMPLOYEE", "TYPE", "START", "END", "STATUS", "BY")
	for _, a := range activities {
		t.row(a.EmployeeName, a.LeaveType, a.StartDate, a.EndDate, a.Status, orDash(a.ActionBy))
	}
	return t.flush()
}

func (c *CLI) newExportCmd() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export all leave requests as CSV",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := c.open(view.TabDashboard); err != nil {
				return err
			}

			if output == "" {
				_, err := c.app.API.ExportReport(cmd.Context(), c.out)
				return err
			}

			f, err := os.Create(output)
			if err != nil {
				return err
			}
			n, err := c.app.API.ExportReport(cmd.Context(), f)
			if closeErr := f.Close(); err == nil {
				err = closeErr
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(c.out, "Exported %d row(s) to %s\n", n, output)
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "write the CSV to a file instead of stdout")
	return cmd
}
