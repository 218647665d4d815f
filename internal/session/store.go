// Package session 持有客户端唯一的登录状态，并负责把它持久化到 Storage。
//
// 每次会话发生变化 generation 都会递增，网关用它判断响应是否属于当前会话。
package session

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jonboulle/clockwork"

	"github.com/sysu-ecnc-dev/leavemaster/internal/domain"
)

type Listener func(s *domain.Session)

type Store struct {
	mu         sync.Mutex
	storage    Storage
	current    *domain.Session
	generation uint64

	listenersMu sync.Mutex
	listeners   map[int]Listener
	nextID      int

	logger *slog.Logger
	clock  clockwork.Clock
}

type Option func(*Store)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

func WithClock(clock clockwork.Clock) Option {
	return func(s *Store) {
		s.clock = clock
	}
}

func NewStore(storage Storage, opts ...Option) *Store {
	s := &Store{
		storage:   storage,
		listeners: make(map[int]Listener),
		logger:    slog.Default(),
		clock:     clockwork.NewRealClock(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Restore 从持久化存储恢复会话，数据缺失或损坏时保持未登录并清除残留的键
func (s *Store) Restore(ctx context.Context) *domain.Session {
	token, ok, err := s.storage.Load(ctx, TokenKey)
	if err != nil {
		s.logger.Warn("读取持久化 token 失败", "error", err)
		return nil
	}
	if !ok || token == "" {
		s.deleteKeys(ctx)
		return nil
	}

	raw, ok, err := s.storage.Load(ctx, IdentityKey)
	if err != nil {
		s.logger.Warn("读取持久化用户信息失败", "error", err)
		return nil
	}
	if !ok {
		s.logger.Warn("持久化的 token 缺少用户信息，清除会话")
		s.deleteKeys(ctx)
		return nil
	}

	identity, err := decodeIdentity(raw)
	if err != nil {
		s.logger.Warn("持久化的用户信息无法解析", "error", err)
		s.deleteKeys(ctx)
		return nil
	}

	if s.expired(token) {
		s.logger.Info("持久化的 token 已过期，不恢复会话")
		s.deleteKeys(ctx)
		return nil
	}

	s.mu.Lock()
	s.current = &domain.Session{Identity: identity, Token: token}
	s.generation++
	restored := s.snapshotLocked()
	s.mu.Unlock()

	s.notify(restored)
	return restored
}

// Login 替换当前会话，token 为空时等同于 Logout
func (s *Store) Login(ctx context.Context, identity domain.Employee, token string) {
	if token == "" {
		s.Logout(ctx)
		return
	}

	s.mu.Lock()
	s.current = &domain.Session{Identity: identity, Token: token}
	s.generation++
	s.persistLocked(ctx)
	current := s.snapshotLocked()
	s.mu.Unlock()

	s.notify(current)
}

// Logout 可以重复调用，持久化的键总是会被清除
func (s *Store) Logout(ctx context.Context) {
	s.mu.Lock()
	had := s.current != nil
	s.current = nil
	if had {
		s.generation++
	}
	s.deleteKeys(ctx)
	s.mu.Unlock()

	if had {
		s.notify(nil)
	}
}

// Evict 只在 generation 仍然匹配时清除会话，返回是否真的登出了一个会话
func (s *Store) Evict(ctx context.Context, generation uint64) bool {
	s.mu.Lock()
	if s.generation != generation {
		s.mu.Unlock()
		return false
	}
	had := s.current != nil
	s.current = nil
	if had {
		s.generation++
	}
	s.deleteKeys(ctx)
	s.mu.Unlock()

	if had {
		s.notify(nil)
	}
	return had
}

func (s *Store) Current() *domain.Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.snapshotLocked()
}

func (s *Store) Token() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current == nil {
		return ""
	}
	return s.current.Token
}

func (s *Store) Generation() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.generation
}

// Snapshot 同时返回会话和对应的 generation
func (s *Store) Snapshot() (*domain.Session, uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.snapshotLocked(), s.generation
}

// Subscribe 注册会话变化的回调，返回取消函数
func (s *Store) Subscribe(fn Listener) func() {
	s.listenersMu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	s.listenersMu.Unlock()

	return func() {
		s.listenersMu.Lock()
		delete(s.listeners, id)
		s.listenersMu.Unlock()
	}
}

func (s *Store) notify(current *domain.Session) {
	s.listenersMu.Lock()
	fns := make([]Listener, 0, len(s.listeners))
	for _, fn := range s.listeners {
		fns = append(fns, fn)
	}
	s.listenersMu.Unlock()

	for _, fn := range fns {
		fn(copySession(current))
	}
}

func (s *Store) snapshotLocked() *domain.Session {
	return copySession(s.current)
}

func (s *Store) persistLocked(ctx context.Context) {
	identity, err := json.Marshal(s.current.Identity)
	if err != nil {
		s.logger.Error("序列化用户信息失败", "error", err)
		return
	}
	if err := s.storage.Save(ctx, TokenKey, s.current.Token); err != nil {
		s.logger.Error("持久化 token 失败", "error", err)
	}
	if err := s.storage.Save(ctx, IdentityKey, string(identity)); err != nil {
		s.logger.Error("持久化用户信息失败", "error", err)
	}
}

func (s *Store) deleteKeys(ctx context.Context) {
	if err := s.storage.Delete(ctx, TokenKey, IdentityKey); err != nil {
		s.logger.Error("清除持久化会话失败", "error", err)
	}
}

// expired 只对带 exp 的 JWT 生效，其它格式的 token 一律视为有效
func (s *Store) expired(token string) bool {
	claims := &jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return false
	}
	if claims.ExpiresAt == nil {
		return false
	}
	return !s.clock.Now().Before(claims.ExpiresAt.Time)
}

func decodeIdentity(raw string) (domain.Employee, error) {
	var identity domain.Employee

	// 先确认是 JSON 对象，null 或数组都不算
	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(raw), &fields); err != nil {
		return identity, err
	}
	if fields == nil {
		return identity, errNotObject
	}
	if err := json.Unmarshal([]byte(raw), &identity); err != nil {
		return identity, err
	}
	return identity, nil
}

func copySession(s *domain.Session) *domain.Session {
	if s == nil {
		return nil
	}
	c := *s
	if s.Identity.ManagerID != nil {
		id := *s.Identity.ManagerID
		c.Identity.ManagerID = &id
	}
	return &c
}
