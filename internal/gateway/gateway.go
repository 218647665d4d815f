// Package gateway 是访问远端 REST 接口的唯一出口。
//
// 它负责附加 Bearer token，并统一处理 401：清除会话后回到登录入口，调用方不需要自己处理。
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/sysu-ecnc-dev/leavemaster/internal/domain"
)

const (
	DefaultTimeout  = 10 * time.Second
	maxResponseSize = 10 << 20
)

// Sessions 是网关对会话存储的最小依赖
type Sessions interface {
	Snapshot() (*domain.Session, uint64)
	Generation() uint64
	Evict(ctx context.Context, generation uint64) bool
}

// Redirector 在会话因 401 被清除后把界面带回登录入口
type Redirector interface {
	RedirectToEntry()
}

type RedirectFunc func()

func (f RedirectFunc) RedirectToEntry() {
	f()
}

type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

type Gateway struct {
	baseURL    string
	sessions   Sessions
	client     *http.Client
	timeout    time.Duration
	redirector Redirector
	logger     *slog.Logger
}

type Option func(*Gateway)

func WithHTTPClient(client *http.Client) Option {
	return func(g *Gateway) {
		g.client = client
	}
}

// WithTimeout 作用于 client 的副本，不会修改 WithHTTPClient 传入的共享 client
func WithTimeout(timeout time.Duration) Option {
	return func(g *Gateway) {
		g.timeout = timeout
	}
}

func WithRedirector(r Redirector) Option {
	return func(g *Gateway) {
		g.redirector = r
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(g *Gateway) {
		g.logger = logger
	}
}

func New(baseURL string, sessions Sessions, opts ...Option) *Gateway {
	g := &Gateway{
		baseURL:  strings.TrimRight(baseURL, "/"),
		sessions: sessions,
		client:   &http.Client{Timeout: DefaultTimeout},
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.timeout > 0 {
		client := *g.client
		client.Timeout = g.timeout
		g.client = &client
	}
	return g
}

// SetRedirector 用于构造完成后再注入跳转逻辑
func (g *Gateway) SetRedirector(r Redirector) {
	g.redirector = r
}

func (g *Gateway) BaseURL() string {
	return g.baseURL
}

func (g *Gateway) Request(ctx context.Context, method, path string, body any) (*Response, error) {
	session, generation := g.sessions.Snapshot()
	op := method + " " + path

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("%s: encode request body: %w", op, err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, g.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("%s: build request: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if session != nil && session.Token != "" {
		req.Header.Set("Authorization", "Bearer "+session.Token)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, &NetworkError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, &NetworkError{Op: op, Err: err}
	}

	if resp.StatusCode == http.StatusUnauthorized {
		if g.sessions.Evict(ctx, generation) {
			g.logger.Warn("请求返回 401，会话已清除", "method", method, "path", path)
			if g.redirector != nil {
				g.redirector.RedirectToEntry()
			}
		}
		return nil, &AuthError{
			Method:  method,
			Path:    path,
			Payload: payload,
			Message: errorMessage(payload),
		}
	}

	if g.sessions.Generation() != generation {
		g.logger.Debug("丢弃过期会话的响应", "method", method, "path", path, "status", resp.StatusCode)
		return nil, ErrStaleResponse
	}

	if resp.StatusCode >= http.StatusBadRequest {
		return nil, &ServerError{
			Method:  method,
			Path:    path,
			Status:  resp.StatusCode,
			Payload: payload,
			Message: errorMessage(payload),
		}
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       payload,
	}, nil
}

// Do 发送请求并把 JSON 响应解码到 out，out 为 nil 时忽略响应体
func (g *Gateway) Do(ctx context.Context, method, path string, body, out any) error {
	resp, err := g.Request(ctx, method, path, body)
	if err != nil {
		return err
	}
	if out == nil || len(bytes.TrimSpace(resp.Body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(resp.Body, out); err != nil {
		return fmt.Errorf("%s %s: decode response: %w", method, path, err)
	}
	return nil
}
