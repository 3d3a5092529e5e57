package eventbus

import (
	"context"
	"sync"
	"time"
)

// 奖励引擎对外广播的事件类型
const (
	TypeXPGranted           = "xp_granted"
	TypeAchievementUnlocked = "achievement_unlocked"
	TypeLevelUp             = "level_up"
	TypeStreakUpdated       = "streak_updated"
	TypeRulesReloaded       = "rules_reloaded"
)

type Event struct {
	Type      string         `json:"type"`
	Timestamp int64          `json:"timestamp"`
	Data      map[string]any `json:"data,omitempty"`
}

// NewEvent 以当前时间构造事件
func NewEvent(typ string, data map[string]any) Event {
	return Event{Type: typ, Timestamp: time.Now().UnixMilli(), Data: data}
}

type Hub struct {
	mu   sync.RWMutex
	subs map[chan Event]struct{}
}

func NewHub() *Hub {
	return &Hub{subs: make(map[chan Event]struct{})}
}

// Publish 非阻塞广播；pending 队列才是权威来源，订阅者丢事件不影响状态
func (h *Hub) Publish(evt Event) {
	if h == nil {
		return
	}
	if evt.Timestamp == 0 {
		evt.Timestamp = time.Now().UnixMilli()
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for ch := range h.subs {
		select {
		case ch <- evt:
		default:
			// 慢消费者直接丢弃，避免阻塞奖励链路
		}
	}
}

// Subscribe ctx 结束后自动退订并关闭通道
func (h *Hub) Subscribe(ctx context.Context, buffer int) <-chan Event {
	if buffer <= 0 {
		buffer = 16
	}
	ch := make(chan Event, buffer)

	h.mu.Lock()
	h.subs[ch] = struct{}{}
	h.mu.Unlock()

	go func() {
		<-ctx.Done()
		h.mu.Lock()
		delete(h.subs, ch)
		h.mu.Unlock()
		close(ch)
	}()

	return ch
}

// Subscribers 当前订阅者数量
func (h *Hub) Subscribers() int {
	if h == nil {
		return 0
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}
