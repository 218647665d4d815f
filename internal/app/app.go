// Package app 把会话、网关、接口客户端、推送通道和标签页组装成一个应用实例。
package app

import (
	"context"
	"log/slog"
	"sync"

	"github.com/jonboulle/clockwork"

	"github.com/sysu-ecnc-dev/leavemaster/internal/api"
	"github.com/sysu-ecnc-dev/leavemaster/internal/authz"
	"github.com/sysu-ecnc-dev/leavemaster/internal/config"
	"github.com/sysu-ecnc-dev/leavemaster/internal/domain"
	"github.com/sysu-ecnc-dev/leavemaster/internal/gateway"
	"github.com/sysu-ecnc-dev/leavemaster/internal/notify"
	"github.com/sysu-ecnc-dev/leavemaster/internal/session"
	"github.com/sysu-ecnc-dev/leavemaster/internal/view"
)

type App struct {
	Config        *config.Config
	Sessions      *session.Store
	Gateway       *gateway.Gateway
	API           *api.Client
	Notifications *notify.Channel
	Tabs          *view.Controller

	logger *slog.Logger
	clock  clockwork.Clock

	mu          sync.Mutex
	redirects   map[int]func()
	nextID      int
	lastToken   string
	unsubscribe func()
	closed      bool
}

type options struct {
	logger *slog.Logger
	clock  clockwork.Clock
	dialer notify.Dialer
}

type Option func(*options)

func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

func WithClock(clock clockwork.Clock) Option {
	return func(o *options) {
		o.clock = clock
	}
}

func WithDialer(d notify.Dialer) Option {
	return func(o *options) {
		o.dialer = d
	}
}

func New(cfg *config.Config, storage session.Storage, opts ...Option) (*App, error) {
	o := &options{
		logger: slog.Default(),
		clock:  clockwork.NewRealClock(),
	}
	for _, opt := range opts {
		opt(o)
	}

	a := &App{
		Config:    cfg,
		Tabs:      view.NewController(),
		logger:    o.logger,
		clock:     o.clock,
		redirects: make(map[int]func()),
	}

	a.Sessions = session.NewStore(storage,
		session.WithLogger(o.logger),
		session.WithClock(o.clock),
	)

	a.Gateway = gateway.New(cfg.API.BaseURL, a.Sessions,
		gateway.WithTimeout(cfg.APITimeout()),
		gateway.WithLogger(o.logger),
		gateway.WithRedirector(a),
	)

	client, err := api.New(a.Gateway, a.Sessions)
	if err != nil {
		return nil, err
	}
	a.API = client

	var policy notify.ReconnectPolicy = notify.FixedDelay(cfg.ReconnectDelay())
	if cfg.Push.Backoff == "exponential" {
		policy = notify.NewBackoff(cfg.ReconnectDelay(), cfg.MaxReconnectDelay())
	}
	channelOpts := []notify.Option{
		notify.WithReconnectPolicy(policy),
		notify.WithClock(o.clock),
		notify.WithLogger(o.logger),
		notify.WithList(notify.NewList(cfg.Notification.Capacity, cfg.DisplayTimeout(), o.clock)),
	}
	if o.dialer != nil {
		channelOpts = append(channelOpts, notify.WithDialer(o.dialer))
	}
	a.Notifications = notify.NewChannel(cfg.Push.URL, a.Sessions.Token, channelOpts...)

	a.unsubscribe = a.Sessions.Subscribe(a.onSessionChange)
	return a, nil
}

// Clock 返回会话、通知列表和重试共用的时钟
func (a *App) Clock() clockwork.Clock {
	return a.clock
}

// Start 恢复持久化的会话，有会话时会连接推送通道
func (a *App) Start(ctx context.Context) *domain.Session {
	restored := a.Sessions.Restore(ctx)
	if restored == nil {
		a.logger.Debug("没有可恢复的会话")
	}
	return restored
}

// onSessionChange 在 token 变化时重建推送连接，登出时清理所有界面状态
func (a *App) onSessionChange(s *domain.Session) {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return
	}
	token := ""
	if s != nil {
		token = s.Token
	}
	changed := token != a.lastToken
	a.lastToken = token
	a.mu.Unlock()

	if token == "" {
		a.Notifications.Close()
		a.Tabs.Reset()
		return
	}
	if changed {
		a.Notifications.Disconnect()
		a.Notifications.Connect()
	}
}

// RedirectToEntry 由网关在 401 清除会话后调用
func (a *App) RedirectToEntry() {
	a.Tabs.Reset()

	a.mu.Lock()
	fns := make([]func(), 0, len(a.redirects))
	for _, fn := range a.redirects {
		fns = append(fns, fn)
	}
	a.mu.Unlock()

	a.logger.Info("会话已失效，返回登录入口")
	for _, fn := range fns {
		fn()
	}
}

// OnRedirect 注册回到登录入口时的回调
func (a *App) OnRedirect(fn func()) func() {
	a.mu.Lock()
	id := a.nextID
	a.nextID++
	a.redirects[id] = fn
	a.mu.Unlock()

	return func() {
		a.mu.Lock()
		delete(a.redirects, id)
		a.mu.Unlock()
	}
}

func (a *App) Session() *domain.Session {
	return a.Sessions.Current()
}

func (a *App) Capabilities() authz.Capabilities {
	return authz.ForSession(a.Sessions.Current())
}

func (a *App) Screen() view.Screen {
	return a.Tabs.Screen(a.Sessions.Current())
}

func (a *App) NavTabs() []view.Tab {
	return view.NavTabs(a.Capabilities())
}

// Close 断开推送并清空通知，会话保留在持久化存储中
func (a *App) Close() {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return
	}
	a.closed = true
	unsubscribe := a.unsubscribe
	a.mu.Unlock()

	unsubscribe()
	a.Notifications.Close()
}
