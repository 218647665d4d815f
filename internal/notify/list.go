package notify

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/sysu-ecnc-dev/leavemaster/internal/domain"
)

const (
	DefaultCapacity       = 10
	DefaultDisplayTimeout = 10 * time.Second
)

// List 保存最近的通知，最新的在最前面。每条通知到期后自动移除
type List struct {
	mu       sync.Mutex
	capacity int
	ttl      time.Duration
	clock    clockwork.Clock
	items    []domain.Notification
	timers   map[string]clockwork.Timer
	gen      uint64

	listeners map[int]func([]domain.Notification)
	nextID    int
}

func NewList(capacity int, ttl time.Duration, clock clockwork.Clock) *List {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	if ttl <= 0 {
		ttl = DefaultDisplayTimeout
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &List{
		capacity:  capacity,
		ttl:       ttl,
		clock:     clock,
		timers:    make(map[string]clockwork.Timer),
		listeners: make(map[int]func([]domain.Notification)),
	}
}

// Add 插入到最前面，超出容量时丢弃最旧的
func (l *List) Add(ev domain.PushEvent) domain.Notification {
	n, _ := l.add(ev, nil)
	return n
}

// AddIf 只在列表自 gen 之后没有被 ClearAll 清空时插入
func (l *List) AddIf(gen uint64, ev domain.PushEvent) (domain.Notification, bool) {
	return l.add(ev, &gen)
}

// Generation 每次 ClearAll 加一
func (l *List) Generation() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.gen
}

func (l *List) add(ev domain.PushEvent, gen *uint64) (domain.Notification, bool) {
	n := domain.Notification{
		ID:        uuid.NewString(),
		Type:      ev.Type,
		Message:   ev.Message,
		Data:      ev.Data,
		Timestamp: l.clock.Now(),
	}

	l.mu.Lock()
	if gen != nil && *gen != l.gen {
		l.mu.Unlock()
		return domain.Notification{}, false
	}
	l.items = append([]domain.Notification{n}, l.items...)
	if len(l.items) > l.capacity {
		for _, evicted := range l.items[l.capacity:] {
			l.stopTimerLocked(evicted.ID)
		}
		l.items = l.items[:l.capacity]
	}
	id := n.ID
	l.timers[id] = l.clock.AfterFunc(l.ttl, func() {
		l.Remove(id)
	})
	snapshot := l.snapshotLocked()
	l.mu.Unlock()

	l.notify(snapshot)
	return n, true
}

// Remove 对不存在的 id 是空操作
func (l *List) Remove(id string) bool {
	l.mu.Lock()
	idx := l.indexLocked(id)
	if idx < 0 {
		l.mu.Unlock()
		return false
	}
	l.stopTimerLocked(id)
	l.items = append(l.items[:idx], l.items[idx+1:]...)
	snapshot := l.snapshotLocked()
	l.mu.Unlock()

	l.notify(snapshot)
	return true
}

// MarkRead 只修改 read 标记，不影响顺序和长度
func (l *List) MarkRead(id string) bool {
	l.mu.Lock()
	idx := l.indexLocked(id)
	if idx < 0 || l.items[idx].Read {
		l.mu.Unlock()
		return idx >= 0
	}
	l.items[idx].Read = true
	snapshot := l.snapshotLocked()
	l.mu.Unlock()

	l.notify(snapshot)
	return true
}

func (l *List) ClearAll() {
	l.mu.Lock()
	l.gen++
	if len(l.items) == 0 {
		l.mu.Unlock()
		return
	}
	for id := range l.timers {
		l.stopTimerLocked(id)
	}
	l.items = nil
	l.mu.Unlock()

	l.notify(nil)
}

func (l *List) Snapshot() []domain.Notification {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.snapshotLocked()
}

func (l *List) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	return len(l.items)
}

func (l *List) Unread() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	count := 0
	for _, n := range l.items {
		if !n.Read {
			count++
		}
	}
	return count
}

// Subscribe 每次列表变化都会收到完整快照
func (l *List) Subscribe(fn func([]domain.Notification)) func() {
	l.mu.Lock()
	id := l.nextID
	l.nextID++
	l.listeners[id] = fn
	l.mu.Unlock()

	return func() {
		l.mu.Lock()
		delete(l.listeners, id)
		l.mu.Unlock()
	}
}

func (l *List) notify(snapshot []domain.Notification) {
	l.mu.Lock()
	fns := make([]func([]domain.Notification), 0, len(l.listeners))
	for _, fn := range l.listeners {
		fns = append(fns, fn)
	}
	l.mu.Unlock()

	for _, fn := range fns {
		fn(snapshot)
	}
}

func (l *List) indexLocked(id string) int {
	for i, n := range l.items {
		if n.ID == id {
			return i
		}
	}
	return -1
}

func (l *List) stopTimerLocked(id string) {
	if t, ok := l.timers[id]; ok {
		t.Stop()
		delete(l.timers, id)
	}
}

func (l *List) snapshotLocked() []domain.Notification {
	if len(l.items) == 0 {
		return nil
	}
	out := make([]domain.Notification, len(l.items))
	copy(out, l.items)
	return out
}
