package analytics

import (
	"context"
	"fmt"
	"sync"
	"time"

	"rewardkit/core"
)

// Hook receives domain events.
type Hook interface {
	OnEvent(ctx context.Context, e core.Event)
}

// BridgeHook bridges an event source to multiple hooks.
type BridgeHook struct{ hooks []Hook }

func NewBridge(hooks ...Hook) *BridgeHook { return &BridgeHook{hooks: hooks} }

func (b *BridgeHook) OnEvent(ctx context.Context, e core.Event) {
	for _, h := range b.hooks {
		h.OnEvent(ctx, e)
	}
}

// ActiveUsers tracks distinct users per day, ISO week and month.
// Buckets older than the retention window are pruned as new ones open.
type ActiveUsers struct {
	mu        sync.Mutex
	daily     map[string]map[core.UserID]struct{}
	weekly    map[string]map[core.UserID]struct{}
	monthly   map[string]map[core.UserID]struct{}
	retention int
}

func NewActiveUsers() *ActiveUsers {
	return &ActiveUsers{
		daily:     map[string]map[core.UserID]struct{}{},
		weekly:    map[string]map[core.UserID]struct{}{},
		monthly:   map[string]map[core.UserID]struct{}{},
		retention: 3,
	}
}

func (a *ActiveUsers) OnEvent(_ context.Context, e core.Event) {
	if e.UserID == "" {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	track(a.daily, dayKey(e.Time), e.UserID, a.retention)
	track(a.weekly, weekKey(e.Time), e.UserID, a.retention)
	track(a.monthly, monthKey(e.Time), e.UserID, a.retention)
}

func track(buckets map[string]map[core.UserID]struct{}, key string, user core.UserID, retention int) {
	m := buckets[key]
	if m == nil {
		m = map[core.UserID]struct{}{}
		buckets[key] = m
		for len(buckets) > retention {
			delete(buckets, oldestKey(buckets))
		}
	}
	m[user] = struct{}{}
}

// keys sort chronologically as strings
func oldestKey(buckets map[string]map[core.UserID]struct{}) string {
	oldest := ""
	for k := range buckets {
		if oldest == "" || k < oldest {
			oldest = k
		}
	}
	return oldest
}

func (a *ActiveUsers) Daily(t time.Time) int   { return a.count(a.daily, dayKey(t)) }
func (a *ActiveUsers) Weekly(t time.Time) int  { return a.count(a.weekly, weekKey(t)) }
func (a *ActiveUsers) Monthly(t time.Time) int { return a.count(a.monthly, monthKey(t)) }

func (a *ActiveUsers) count(buckets map[string]map[core.UserID]struct{}, key string) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(buckets[key])
}

func dayKey(t time.Time) string { return t.UTC().Format("2006-01-02") }

func weekKey(t time.Time) string {
	year, week := t.UTC().ISOWeek()
	return fmt.Sprintf("%d-W%02d", year, week)
}

func monthKey(t time.Time) string { return t.UTC().Format("2006-01") }
