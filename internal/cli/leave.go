package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sysu-ecnc-dev/leavemaster/internal/api"
	"github.com/sysu-ecnc-dev/leavemaster/internal/authz"
	"github.com/sysu-ecnc-dev/leavemaster/internal/domain"
	"github.com/sysu-ecnc-dev/leavemaster/internal/view"
)

func (c *CLI) newLeaveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "leave",
		Short: "Submit, list and approve leave requests",
	}
	cmd.AddCommand(
		c.newLeaveSubmitCmd(),
		c.newLeaveListCmd(),
		c.newLeavePendingCmd(),
		c.newLeaveStatusCmd("approve", domain.LeaveStatusApproved),
		c.newLeaveStatusCmd("reject", domain.LeaveStatusRejected),
	)
	return cmd
}

func (c *CLI) newLeaveSubmitCmd() *cobra.Command {
	var (
		leaveType string
		form      api.LeaveForm
	)

	cmd := &cobra.Command{
		Use:   "submit",
		Short: "Submit a new leave request",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := c.open(view.TabRequests); err != nil {
				return err
			}

			form.LeaveType = domain.LeaveType(leaveType)
			req, err := c.app.API.SubmitLeave(cmd.Context(), form)
			if err != nil {
				return err
			}

			fmt.Fprintf(c.out, "Leave request #%d submitted: %s leave, %d day(s), %s\n", req.ID, req.LeaveType, req.TotalDays, req.Status)
			return nil
		},
	}

	cmd.Flags().StringVar(&leaveType, "type", string(domain.LeaveTypeAnnual), "leave type: annual, sick, personal or other")
	cmd.Flags().StringVar(&form.StartDate, "start", "", "first day of leave (YYYY-MM-DD)")
	cmd.Flags().StringVar(&form.EndDate, "end", "", "last day of leave (YYYY-MM-DD)")
	cmd.Flags().StringVar(&form.Reason, "reason", "", "reason shown to the approver")
	return cmd
}

func (c *CLI) newLeaveListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List my leave requests",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := c.open(view.TabRequests); err != nil {
				return err
			}

			requests, err := c.app.API.MyLeaveRequests(cmd.Context())
			if err != nil {
				return err
			}
			if len(requests) == 0 {
				fmt.Fprintln(c.out, "No leave requests")
				return nil
			}

			t := newTable(c.out, "ID", "TYPE", "START", "END", "DAYS", "STATUS", "APPROVED BY")
			for _, r := range requests {
				t.row(r.ID, r.LeaveType, r.StartDate, r.EndDate, r.TotalDays, r.Status, orDash(r.ApprovedBy))
			}
			return t.flush()
		},
	}
}

func (c *CLI) newLeavePendingCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "pending",
		Short: "List leave requests waiting for my approval",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := c.openSection(view.TabRequests, view.SectionManagerPanel, authz.PermApprove); err != nil {
				return err
			}

			requests, err := c.app.API.PendingLeaveRequests(cmd.Context())
			if err != nil {
				return err
			}
			if len(requests) == 0 {
				fmt.Fprintln(c.out, "No pending requests")
				return nil
			}

			t := newTable(c.out, "ID", "EMPLOYEE", "TYPE", "START", "END", "DAYS", "REASON")
			for _, r := range requests {
				t.row(r.ID, r.EmployeeName, r.LeaveType, r.StartDate, r.EndDate, r.TotalDays, orDash(r.Reason))
			}
			return t.flush()
		},
	}
}

func (c *CLI) newLeaveStatusCmd(use string, status domain.LeaveStatus) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <id>",
		Short: fmt.Sprintf("Mark a pending leave request as %s", status),
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			if err := c.openSection(view.TabRequests, view.SectionManagerPanel, authz.PermApprove); err != nil {
				return err
			}

			if err := c.app.API.UpdateLeaveStatus(cmd.Context(), id, status); err != nil {
				return err
			}
			fmt.Fprintf(c.out, "Leave request #%d %s\n", id, status)
			return nil
		},
	}
}

func (c *CLI) newCalendarCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "calendar",
		Short: "Show the leave calendar, the team calendar for approvers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			screen, err := c.open(view.TabCalendar)
			if err != nil {
				return err
			}

			events, err := c.app.API.Calendar(cmd.Context(), c.app.Capabilities())
			if err != nil {
				return err
			}

			if screen.Has(view.SectionTeamCalendar) {
				fmt.Fprintln(c.out, "Team calendar")
			} else {
				fmt.Fprintln(c.out, "My calendar")
			}
			if len(events) == 0 {
				fmt.Fprintln(c.out, "No events")
				return nil
			}

			t := newTable(c.out, "TITLE", "START", "END", "STATUS")
			for _, e := range events {
				t.row(e.Title, e.Start.Format(domain.DateLayout), e.End.Format(domain.DateLayout), e.Status)
			}
			return t.flush()
		},
	}
}
