package cli

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sysu-ecnc-dev/leavemaster/internal/api"
	"github.com/sysu-ecnc-dev/leavemaster/internal/view"
)

func (c *CLI) newLoginCmd() *cobra.Command {
	var creds api.Credentials

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in and store the session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			// 未通过参数提供密码时从标准输入读取一行
			if creds.Password == "" {
				line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				if err != nil && line == "" {
					return fmt.Errorf("read password: %w", err)
				}
				creds.Password = strings.TrimRight(line, "\r\n")
			}

			result, err := c.app.API.Login(cmd.Context(), creds)
			if err != nil {
				return err
			}

			badge := view.Badge(result.Employee.RoleName)
			fmt.Fprintf(c.out, "Logged in as %s [%s]\n", result.Employee.Name, badge.Label)
			return nil
		},
	}

	cmd.Flags().StringVar(&creds.Email, "email", "", "account e-mail")
	cmd.Flags().StringVar(&creds.Password, "password", "", "account password, read from stdin when empty")
	return cmd
}

func (c *CLI) newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Clear the stored session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c.app.API.Logout(cmd.Context())
			fmt.Fprintln(c.out, "Logged out")
			return nil
		},
	}
}

func (c *CLI) newWhoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the logged in employee and what they can access",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s := c.app.Session()
			if s == nil {
				fmt.Fprintln(c.out, "Not logged in")
				return nil
			}

			caps := c.app.Capabilities()
			perms := make([]string, 0, 4)
			for _, p := range caps.Permissions() {
				perms = append(perms, p.String())
			}
			tabs := make([]string, 0, len(view.Tabs))
			for _, tab := range c.app.NavTabs() {
				tabs = append(tabs, string(tab))
			}

			e := s.Identity
			t := newTable(c.out, "FIELD", "VALUE")
			t.row("Name", e.Name)
			t.row("Email", orDash(e.Email))
			t.row("Role", view.Badge(e.RoleName).Label)
			t.row("Department", orDash(e.DepartmentName))
			t.row("Leave", fmt.Sprintf("%d of %d days remaining", e.RemainingLeaveDays, e.TotalLeaveDays))
			t.row("Capabilities", orDash(strings.Join(perms, ", ")))
			t.row("Tabs", strings.Join(tabs, ", "))
			return t.flush()
		},
	}
}

func (c *CLI) newTabCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tab <name>",
		Short: "Render a top level tab: requests, calendar, dashboard or users",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tab, ok := view.ParseTab(args[0])
			if !ok {
				return fmt.Errorf("unknown tab %q, expected one of %v", args[0], view.Tabs)
			}

			screen, err := c.open(tab)
			if err != nil {
				return err
			}

			fmt.Fprintln(c.out, tab.Label())
			for _, section := range screen.Sections {
				fmt.Fprintf(c.out, "  - %s\n", section)
			}
			return nil
		},
	}
}
