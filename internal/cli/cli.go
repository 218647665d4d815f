// Package cli 实现 leavectl 的全部命令。
//
// 每次执行对应一次进程：恢复持久化的会话，执行一个命令，然后断开推送并释放存储。
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/sysu-ecnc-dev/leavemaster/internal/app"
	"github.com/sysu-ecnc-dev/leavemaster/internal/authz"
	"github.com/sysu-ecnc-dev/leavemaster/internal/config"
	"github.com/sysu-ecnc-dev/leavemaster/internal/session"
	"github.com/sysu-ecnc-dev/leavemaster/internal/view"
)

var (
	ErrNotLoggedIn = errors.New("not logged in, run `leavectl login` first")
	// ErrDenied 表示已经输出了拒绝提示，不需要再打印错误
	ErrDenied = errors.New("permission denied")
)

type CLI struct {
	cfg     *config.Config
	storage session.Storage
	appOpts []app.Option
	in      io.Reader
	out     io.Writer
	errOut  io.Writer

	apiURL  string
	pushURL string

	app     *app.App
	closers []func() error
}

type Option func(*CLI)

// WithConfig 跳过环境变量和 .env 文件
func WithConfig(cfg *config.Config) Option {
	return func(c *CLI) {
		c.cfg = cfg
	}
}

// WithStorage 替换按配置打开的会话存储
func WithStorage(storage session.Storage) Option {
	return func(c *CLI) {
		c.storage = storage
	}
}

func WithAppOptions(opts ...app.Option) Option {
	return func(c *CLI) {
		c.appOpts = append(c.appOpts, opts...)
	}
}

func WithOutput(out, errOut io.Writer) Option {
	return func(c *CLI) {
		c.out = out
		c.errOut = errOut
	}
}

// WithInput 替换读取密码用的标准输入
func WithInput(in io.Reader) Option {
	return func(c *CLI) {
		c.in = in
	}
}

func New(opts ...Option) *CLI {
	c := &CLI{in: os.Stdin, out: os.Stdout, errOut: os.Stderr}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Execute 执行一条命令并释放所有资源，错误已经输出到 errOut
func (c *CLI) Execute(ctx context.Context, args []string) error {
	defer c.close()

	root := c.rootCmd()
	root.SetArgs(args)
	err := root.ExecuteContext(ctx)
	if err != nil && !errors.Is(err, ErrDenied) {
		fmt.Fprintln(c.errOut, "Error:", err)
	}
	return err
}

func (c *CLI) rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:               "leavectl",
		Short:             "Terminal client for the LeaveMaster leave management service",
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: c.setup,
	}
	cmd.SetIn(c.in)
	cmd.SetOut(c.out)
	cmd.SetErr(c.errOut)

	cmd.PersistentFlags().StringVar(&c.apiURL, "api", "", "REST base URL, overrides LEAVEMASTER_API_BASE_URL")
	cmd.PersistentFlags().StringVar(&c.pushURL, "push", "", "push channel URL, overrides LEAVEMASTER_PUSH_URL")

	cmd.AddCommand(
		c.newLoginCmd(),
		c.newLogoutCmd(),
		c.newWhoamiCmd(),
		c.newTabCmd(),
		c.newLeaveCmd(),
		c.newCalendarCmd(),
		c.newReportsCmd(),
		c.newEmployeesCmd(),
		c.newRolesCmd(),
		c.newDepartmentsCmd(),
		c.newWatchCmd(),
	)
	return cmd
}

func (c *CLI) setup(cmd *cobra.Command, _ []string) error {
	if c.cfg == nil {
		cfg, err := config.LoadConfig()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		c.cfg = cfg
	}

	cfg := *c.cfg
	if c.apiURL != "" {
		cfg.API.BaseURL = c.apiURL
	}
	if c.pushURL != "" {
		cfg.Push.URL = c.pushURL
	}

	storage := c.storage
	if storage == nil {
		opened, closeStorage, err := app.OpenStorage(cmd.Context(), &cfg)
		if err != nil {
			return fmt.Errorf("open session storage: %w", err)
		}
		storage = opened
		c.closers = append(c.closers, closeStorage)
	}

	opts := append([]app.Option{app.WithLogger(cfg.NewLogger(c.errOut))}, c.appOpts...)
	a, err := app.New(&cfg, storage, opts...)
	if err != nil {
		return err
	}
	c.app = a
	c.app.OnRedirect(func() {
		fmt.Fprintln(c.errOut, "Session expired. Please log in again with `leavectl login`.")
	})

	c.app.Start(cmd.Context())
	return nil
}

func (c *CLI) close() {
	if c.app != nil {
		c.app.Close()
		c.app = nil
	}
	for _, closer := range c.closers {
		_ = closer()
	}
	c.closers = nil
}

func (c *CLI) requireSession() error {
	if c.app.Session() == nil {
		return ErrNotLoggedIn
	}
	return nil
}

// open 选中标签页，按渲染结果决定命令能否继续
func (c *CLI) open(tab view.Tab) (view.Screen, error) {
	c.app.Tabs.Select(tab)
	screen := c.app.Screen()

	switch screen.Kind {
	case view.ScreenLogin:
		return screen, ErrNotLoggedIn
	case view.ScreenDenied:
		c.printDenied(screen)
		return screen, ErrDenied
	}
	return screen, nil
}

// openSection 用于标签页内需要额外权限的区域，例如审批面板
func (c *CLI) openSection(tab view.Tab, section view.Section, perm authz.Permission) error {
	screen, err := c.open(tab)
	if err != nil {
		return err
	}
	if !screen.Has(section) {
		c.printDenied(view.Screen{
			Kind:         view.ScreenDenied,
			Tab:          tab,
			Missing:      perm,
			RequiredRole: authz.RequiredRoles(perm),
			FallbackTab:  view.DefaultTab,
		})
		return ErrDenied
	}
	return nil
}

func (c *CLI) printDenied(screen view.Screen) {
	fmt.Fprintln(c.out, "Access Denied")
	fmt.Fprintln(c.out, screen.Message())
	fmt.Fprintf(c.out, "[%s]\n", screen.FallbackLabel())
}

func parseID(arg string) (int64, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q", arg)
	}
	return id, nil
}
