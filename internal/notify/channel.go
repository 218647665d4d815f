// Package notify 维护到推送服务的长连接，并把收到的消息放进通知列表。
//
// 连接状态只有 Disconnected、Connecting、Open 三种。每次发起连接都会分配新的 epoch，
// 旧连接上迟到的消息和关闭事件会被忽略。断线后最多只有一个等待中的重连定时器。
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"math"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/sysu-ecnc-dev/leavemaster/internal/domain"
)

type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateOpen
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	default:
		return "unknown"
	}
}

const DefaultDialTimeout = 10 * time.Second

var (
	ErrNotObject   = errors.New("frame is not a JSON object")
	ErrMissingType = errors.New("frame has no type")
)

type Channel struct {
	mu          sync.Mutex
	endpoint    string
	tokens      func() string
	dialer      Dialer
	policy      ReconnectPolicy
	clock       clockwork.Clock
	logger      *slog.Logger
	list        *List
	dialTimeout time.Duration

	state        State
	epoch        uint64
	cancel       context.CancelFunc
	conn         Conn
	reconnect    clockwork.Timer
	reconnectSeq uint64

	listeners map[int]func(State)
	nextID    int
	pending   []State
	flushing  bool
}

type Option func(*Channel)

func WithDialer(d Dialer) Option {
	return func(c *Channel) {
		c.dialer = d
	}
}

func WithReconnectPolicy(p ReconnectPolicy) Option {
	return func(c *Channel) {
		c.policy = p
	}
}

func WithClock(clock clockwork.Clock) Option {
	return func(c *Channel) {
		c.clock = clock
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *Channel) {
		c.logger = logger
	}
}

// WithList 替换默认的通知列表（容量 10，显示 10 秒）
func WithList(l *List) Option {
	return func(c *Channel) {
		c.list = l
	}
}

func WithDialTimeout(d time.Duration) Option {
	return func(c *Channel) {
		c.dialTimeout = d
	}
}

// NewChannel 的 tokens 每次连接时调用，返回空字符串表示未登录
func NewChannel(endpoint string, tokens func() string, opts ...Option) *Channel {
	c := &Channel{
		endpoint:    endpoint,
		tokens:      tokens,
		dialer:      WebsocketDialer{},
		policy:      FixedDelay(DefaultReconnectDelay),
		clock:       clockwork.NewRealClock(),
		logger:      slog.Default(),
		dialTimeout: DefaultDialTimeout,
		listeners:   make(map[int]func(State)),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.list == nil {
		c.list = NewList(DefaultCapacity, DefaultDisplayTimeout, c.clock)
	}
	return c
}

func (c *Channel) Notifications() *List {
	return c.list
}

func (c *Channel) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.state
}

func (c *Channel) Connected() bool {
	return c.State() == StateOpen
}

// OnStateChange 注册状态变化回调，返回取消函数
func (c *Channel) OnStateChange(fn func(State)) func() {
	c.mu.Lock()
	id := c.nextID
	c.nextID++
	c.listeners[id] = fn
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		delete(c.listeners, id)
		c.mu.Unlock()
	}
}

// Connect 只在 Disconnected 且已登录时发起连接，否则什么都不做
func (c *Channel) Connect() {
	c.mu.Lock()
	c.connectLocked()
	c.mu.Unlock()

	c.flush()
}

// Disconnect 断开连接并取消重连
func (c *Channel) Disconnect() {
	c.mu.Lock()
	c.epoch++
	c.stopReconnectLocked()
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	conn := c.conn
	c.conn = nil
	c.setStateLocked(StateDisconnected)
	c.mu.Unlock()

	if conn != nil {
		if err := conn.Close(); err != nil {
			c.logger.Debug("关闭推送连接失败", "error", err)
		}
	}
	c.flush()
}

// Close 断开连接并清空通知列表
func (c *Channel) Close() {
	c.Disconnect()
	c.list.ClearAll()
}

// Inject 直接把一条事件放进通知列表，不经过网络
func (c *Channel) Inject(ev domain.PushEvent) domain.Notification {
	return c.list.Add(ev)
}

func (c *Channel) connectLocked() {
	c.stopReconnectLocked()
	if c.state != StateDisconnected {
		return
	}

	token := c.tokens()
	if token == "" {
		c.logger.Debug("未登录，不建立推送连接")
		return
	}

	c.epoch++
	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	c.setStateLocked(StateConnecting)
	go c.run(ctx, c.epoch, c.url(token))
}

func (c *Channel) run(ctx context.Context, epoch uint64, target string) {
	dialCtx, cancelDial := context.WithTimeout(ctx, c.dialTimeout)
	conn, err := c.dialer.Dial(dialCtx, target)
	cancelDial()
	if err != nil {
		if ctx.Err() == nil {
			c.logger.Warn("推送连接失败", "error", err)
		}
		c.handleClosed(epoch, err)
		return
	}

	c.mu.Lock()
	if c.epoch != epoch {
		c.mu.Unlock()
		conn.Close()
		return
	}
	c.conn = conn
	c.policy.Reset()
	c.setStateLocked(StateOpen)
	c.mu.Unlock()
	c.flush()

	c.logger.Info("推送连接已建立", "endpoint", c.endpoint)

	for {
		data, err := conn.Read(ctx)
		if err != nil {
			c.handleClosed(epoch, err)
			return
		}
		c.handleMessage(epoch, data)
	}
}

func (c *Channel) handleMessage(epoch uint64, data []byte) {
	// 先取列表的代数再检查 epoch，Close 在两者之间清空列表时 AddIf 会放弃插入
	gen := c.list.Generation()
	c.mu.Lock()
	current := c.epoch == epoch
	c.mu.Unlock()
	if !current {
		return
	}

	ev, err := DecodeEvent(data)
	if err != nil {
		c.logger.Warn("丢弃无法解析的推送消息", "error", err, "frame", truncate(data, 200))
		return
	}
	if _, ok := c.list.AddIf(gen, ev); !ok {
		c.logger.Debug("连接已关闭，丢弃推送消息", "type", ev.Type)
	}
}

func (c *Channel) handleClosed(epoch uint64, cause error) {
	c.mu.Lock()
	if c.epoch != epoch {
		c.mu.Unlock()
		return
	}
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	conn := c.conn
	c.conn = nil
	wasOpen := c.state == StateOpen
	c.setStateLocked(StateDisconnected)
	delay := c.scheduleReconnectLocked()
	c.mu.Unlock()

	if conn != nil {
		conn.Close()
	}
	if wasOpen {
		c.logger.Info("推送连接已断开", "error", cause, "reconnect_in", delay)
	}
	c.flush()
}

// scheduleReconnectLocked 保证任何时候只有一个重连定时器
func (c *Channel) scheduleReconnectLocked() time.Duration {
	c.stopReconnectLocked()
	seq := c.reconnectSeq
	delay := c.policy.Next()
	c.reconnect = c.clock.AfterFunc(delay, func() {
		c.fireReconnect(seq)
	})
	return delay
}

func (c *Channel) fireReconnect(seq uint64) {
	c.mu.Lock()
	if seq != c.reconnectSeq || c.reconnect == nil {
		c.mu.Unlock()
		return
	}
	c.reconnect = nil
	c.connectLocked()
	c.mu.Unlock()

	c.flush()
}

func (c *Channel) stopReconnectLocked() {
	if c.reconnect != nil {
		c.reconnect.Stop()
		c.reconnect = nil
	}
	c.reconnectSeq++
}

// ReconnectPending 返回当前是否有等待中的重连
func (c *Channel) ReconnectPending() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.reconnect != nil
}

func (c *Channel) setStateLocked(s State) {
	if c.state == s {
		return
	}
	c.state = s
	c.pending = append(c.pending, s)
}

// flush 在锁外按顺序派发状态变化，回调里可以再次调用 Channel 的方法
func (c *Channel) flush() {
	c.mu.Lock()
	if c.flushing {
		c.mu.Unlock()
		return
	}
	c.flushing = true
	for len(c.pending) > 0 {
		events := c.pending
		c.pending = nil
		fns := make([]func(State), 0, len(c.listeners))
		for _, fn := range c.listeners {
			fns = append(fns, fn)
		}
		c.mu.Unlock()

		for _, s := range events {
			for _, fn := range fns {
				fn(s)
			}
		}

		c.mu.Lock()
	}
	c.flushing = false
	c.mu.Unlock()
}

func (c *Channel) url(token string) string {
	u, err := url.Parse(c.endpoint)
	if err != nil {
		return c.endpoint + "?token=" + url.QueryEscape(token)
	}
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()
	return u.String()
}

// rawEvent 先保留 data 原文，data 的形状不影响 type 和 message
type rawEvent struct {
	Type    domain.NotificationKind `json:"type"`
	Message string                  `json:"message"`
	Data    json.RawMessage         `json:"data,omitempty"`
}

// DecodeEvent 只接受带 type 字段的 JSON 对象，data 尽量解析，解析不了就丢弃 data
func DecodeEvent(data []byte) (domain.PushEvent, error) {
	var ev domain.PushEvent

	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return ev, ErrNotObject
	}
	var raw rawEvent
	if err := json.Unmarshal(trimmed, &raw); err != nil {
		return ev, err
	}
	if raw.Type == "" {
		return ev, ErrMissingType
	}

	ev.Type = raw.Type
	ev.Message = raw.Message
	ev.Data = decodeData(raw.Data)
	return ev, nil
}

func decodeData(raw json.RawMessage) *domain.NotificationData {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || raw[0] != '{' {
		return nil
	}

	var d domain.NotificationData
	if err := json.Unmarshal(raw, &d); err == nil {
		return &d
	}

	// 字段类型和约定不一致时逐个字段宽松解析
	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil
	}
	d = domain.NotificationData{
		RequestID:    looseInt(fields["request_id"]),
		EmployeeName: looseString(fields["employee_name"]),
		LeaveType:    domain.LeaveType(looseString(fields["leave_type"])),
		StartDate:    looseString(fields["start_date"]),
		EndDate:      looseString(fields["end_date"]),
		Reason:       looseString(fields["reason"]),
		Status:       domain.LeaveStatus(looseString(fields["status"])),
	}
	return &d
}

func looseString(v any) string {
	switch v := v.(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	default:
		return ""
	}
}

func looseInt(v any) int64 {
	switch v := v.(type) {
	case float64:
		if v == math.Trunc(v) {
			return int64(v)
		}
	case string:
		if n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64); err == nil {
			return n
		}
	}
	return 0
}

func truncate(data []byte, n int) string {
	if len(data) <= n {
		return string(data)
	}
	return string(data[:n]) + "..."
}
