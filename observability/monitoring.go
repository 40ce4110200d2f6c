// Package observability keeps live counters over the event pipeline.
// The Monitor plugs into the registry as a global sink and feeds the
// debug inspector's stats panel.
package observability

import (
	"context"
	"log/slog"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"market-chat/domain/event"
)

// ActivityInfo is one recent event row for the inspector.
type ActivityInfo struct {
	Kind         string `json:"kind"`
	Conversation string `json:"conversation"`
	Detail       string `json:"detail"`
	Timestamp    string `json:"timestamp"`
}

type Monitor struct {
	log *slog.Logger
	mu  sync.RWMutex

	received  atomic.Uint64
	delivered atomic.Uint64
	seen      atomic.Uint64
	typing    atomic.Uint64

	recent  []ActivityInfo
	started time.Time
}

func NewMonitor(log *slog.Logger) *Monitor {
	return &Monitor{
		log:     log,
		recent:  make([]ActivityInfo, 0),
		started: time.Now(),
	}
}

// Consume counts a routed event. It never fails; the pipeline must not
// stall on telemetry.
func (m *Monitor) Consume(_ context.Context, e event.Event) error {
	info := ActivityInfo{
		Kind:      e.Kind(),
		Timestamp: time.Now().Format("15:04:05"),
	}
	switch evt := e.(type) {
	case event.MessageReceived:
		m.received.Add(1)
		info.Conversation = evt.Message.ConversationID
		info.Detail = "from " + evt.Message.SenderID
	case event.MessageDelivered:
		m.delivered.Add(1)
		info.Detail = evt.MessageID
	case event.MessageSeen:
		m.seen.Add(1)
		info.Detail = evt.MessageID
	case event.TypingChanged:
		m.typing.Add(1)
		info.Conversation = evt.ConversationID
		info.Detail = evt.UserID
	}
	m.addRecent(info)
	return nil
}

func (m *Monitor) addRecent(info ActivityInfo) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.recent = append([]ActivityInfo{info}, m.recent...)
	// Keep only the last 20
	if len(m.recent) > 20 {
		m.recent = m.recent[:20]
	}
}

// Recent returns the newest-first activity rows.
func (m *Monitor) Recent() []ActivityInfo {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]ActivityInfo, len(m.recent))
	copy(out, m.recent)
	return out
}

// Stats snapshots counters and Go memory figures for the inspector.
func (m *Monitor) Stats() map[string]any {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	return map[string]any{
		"Received":   m.received.Load(),
		"Delivered":  m.delivered.Load(),
		"Seen":       m.seen.Load(),
		"Typing":     m.typing.Load(),
		"AllocMemMb": mem.Alloc / 1024 / 1024,
		"NumGC":      mem.NumGC,
		"Uptime":     time.Since(m.started).Round(time.Second).String(),
	}
}
