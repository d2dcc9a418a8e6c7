package notify

import (
	"context"
	"sync"
)

// DefaultHistory is how many notifications Memory keeps.
const DefaultHistory = 50

// Memory keeps the current badge and recent notifications so the API can
// serve them back.
type Memory struct {
	mu            sync.RWMutex
	badge         Badge
	notifications []Notification
	limit         int
}

func NewMemory(limit int) *Memory {
	if limit <= 0 {
		limit = DefaultHistory
	}
	return &Memory{limit: limit}
}

func (m *Memory) SetBadge(_ context.Context, b Badge) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.badge = b
	return nil
}

func (m *Memory) Notify(_ context.Context, n Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.notifications = append(m.notifications, n)
	if over := len(m.notifications) - m.limit; over > 0 {
		m.notifications = append([]Notification(nil), m.notifications[over:]...)
	}
	return nil
}

// Badge returns the current badge.
func (m *Memory) Badge() Badge {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.badge
}

// Notifications returns delivered notifications, oldest first.
func (m *Memory) Notifications() []Notification {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Notification, len(m.notifications))
	copy(out, m.notifications)
	return out
}
