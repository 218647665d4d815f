package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/sysu-ecnc-dev/leavemaster/internal/domain"
	"github.com/sysu-ecnc-dev/leavemaster/internal/repository"
)

const (
	defaultSendBuffer   = 16
	defaultWriteTimeout = 5 * time.Second
)

type client struct {
	send      chan domain.PushEvent
	done      chan struct{}
	closeOnce sync.Once
}

func (c *client) close() {
	c.closeOnce.Do(func() { close(c.done) })
}

// Hub 按员工 ID 管理推送连接，同一个员工可以有多个连接
type Hub struct {
	mu           sync.Mutex
	clients      map[int64]map[*client]struct{}
	writeTimeout time.Duration
}

func NewHub() *Hub {
	return &Hub{
		clients:      make(map[int64]map[*client]struct{}),
		writeTimeout: defaultWriteTimeout,
	}
}

// Send 把事件放进该员工所有连接的发送队列，队列满时丢弃，返回成功入队的连接数
func (h *Hub) Send(employeeID int64, ev domain.PushEvent) int {
	h.mu.Lock()
	defer h.mu.Unlock()

	delivered := 0
	for c := range h.clients[employeeID] {
		select {
		case c.send <- ev:
			delivered++
		default:
			slog.Warn("推送队列已满，丢弃事件", "employee", employeeID, "type", ev.Type)
		}
	}
	return delivered
}

func (h *Hub) Connections(employeeID int64) int {
	h.mu.Lock()
	defer h.mu.Unlock()

	return len(h.clients[employeeID])
}

// Disconnect 关闭该员工的全部连接
func (h *Hub) Disconnect(employeeID int64) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for c := range h.clients[employeeID] {
		c.close()
	}
}

// Close 关闭全部连接，http.Server.Shutdown 不会处理已经被接管的连接
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, set := range h.clients {
		for c := range set {
			c.close()
		}
	}
}

func (h *Hub) register(employeeID int64, c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.clients[employeeID] == nil {
		h.clients[employeeID] = make(map[*client]struct{})
	}
	h.clients[employeeID][c] = struct{}{}
}

func (h *Hub) unregister(employeeID int64, c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	delete(h.clients[employeeID], c)
	if len(h.clients[employeeID]) == 0 {
		delete(h.clients, employeeID)
	}
}

// Serve 阻塞直到连接断开，客户端发来的消息全部忽略
func (h *Hub) Serve(ctx context.Context, employeeID int64, conn *websocket.Conn) {
	c := &client{
		send: make(chan domain.PushEvent, defaultSendBuffer),
		done: make(chan struct{}),
	}
	h.register(employeeID, c)
	defer h.unregister(employeeID, c)

	ctx = conn.CloseRead(ctx)
	for {
		select {
		case <-ctx.Done():
			conn.Close(websocket.StatusNormalClosure, "")
			return
		case <-c.done:
			conn.Close(websocket.StatusPolicyViolation, "connection closed by server")
			return
		case ev := <-c.send:
			writeCtx, cancel := context.WithTimeout(ctx, h.writeTimeout)
			err := wsjson.Write(writeCtx, conn, ev)
			cancel()
			if err != nil {
				slog.Warn("推送事件失败", "employee", employeeID, "error", err)
				conn.CloseNow()
				return
			}
		}
	}
}

func (h *Handler) ServeWS(w http.ResponseWriter, r *http.Request) {
	tokenString := r.URL.Query().Get("token")
	if tokenString == "" {
		h.unauthorized(w, r, "Authentication required")
		return
	}

	claims, err := h.parseToken(tokenString)
	if err != nil {
		h.unauthorized(w, r, "Invalid or expired token")
		return
	}
	sub, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil {
		h.unauthorized(w, r, "Invalid or expired token")
		return
	}

	employee, err := h.repository.GetEmployeeByID(sub)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrRecordNotFound):
			h.unauthorized(w, r, "Account no longer exists")
		default:
			h.internalServerError(w, r, err)
		}
		return
	}
	if !employee.IsActive {
		h.unauthorized(w, r, "Account is deactivated")
		return
	}

	// 被接管的连接会保留 http.Server 设置的超时，需要先清除
	rc := http.NewResponseController(w)
	_ = rc.SetReadDeadline(time.Time{})
	_ = rc.SetWriteDeadline(time.Time{})

	// 开发环境下允许任意来源
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{InsecureSkipVerify: true})
	if err != nil {
		slog.Warn("推送连接握手失败", "error", err)
		return
	}

	slog.Info("推送连接已建立", "employee", employee.ID, "role", employee.RoleName)
	h.hub.Serve(r.Context(), employee.ID, conn)
}
