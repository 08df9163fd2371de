package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"rewardkit/core"
)

// Store is a concurrent in-memory store. Writes for one user are serialized
// by that user's mutex, which makes AddXP an atomic increment plus append.
type Store struct {
	users sync.Map // map[core.UserID]*userRecord
	now   func() time.Time
}

type userRecord struct {
	mu            sync.Mutex
	xp            int64
	events        []core.XPEvent
	badges        map[core.BadgeKey]core.BadgeAward
	activity      core.Stats
	notifications []core.Notification
}

func New() *Store { return &Store{now: time.Now} }

func (s *Store) getOrCreate(user core.UserID) *userRecord {
	if v, ok := s.users.Load(user); ok {
		return v.(*userRecord)
	}
	rec := &userRecord{badges: map[core.BadgeKey]core.BadgeAward{}}
	actual, _ := s.users.LoadOrStore(user, rec)
	return actual.(*userRecord)
}

func (s *Store) AddXP(_ context.Context, user core.UserID, amount int64, reason string) (core.XPEvent, int64, error) {
	rec := s.getOrCreate(user)
	rec.mu.Lock()
	defer rec.mu.Unlock()
	next, err := core.AddSafe(rec.xp, amount)
	if err != nil {
		return core.XPEvent{}, 0, err
	}
	ev := core.XPEvent{
		ID:        uuid.NewString(),
		UserID:    user,
		Amount:    amount,
		Reason:    reason,
		CreatedAt: s.now().UTC(),
	}
	rec.xp = next
	rec.events = append(rec.events, ev)
	return ev, next, nil
}

func (s *Store) GetXP(_ context.Context, user core.UserID) (int64, error) {
	rec := s.getOrCreate(user)
	rec.mu.Lock()
	defer rec.mu.Unlock()
	return rec.xp, nil
}

func (s *Store) ListXPEvents(_ context.Context, user core.UserID) ([]core.XPEvent, error) {
	rec := s.getOrCreate(user)
	rec.mu.Lock()
	defer rec.mu.Unlock()
	out := make([]core.XPEvent, len(rec.events))
	copy(out, rec.events)
	return out, nil
}

func (s *Store) InsertBadgeAward(_ context.Context, award core.BadgeAward) (bool, error) {
	rec := s.getOrCreate(award.UserID)
	rec.mu.Lock()
	defer rec.mu.Unlock()
	if _, ok := rec.badges[award.Badge]; ok {
		return false, nil
	}
	rec.badges[award.Badge] = award
	return true, nil
}

func (s *Store) ListBadgeAwards(_ context.Context, user core.UserID) ([]core.BadgeAward, error) {
	rec := s.getOrCreate(user)
	rec.mu.Lock()
	defer rec.mu.Unlock()
	out := make([]core.BadgeAward, 0, len(rec.badges))
	for _, a := range rec.badges {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].AwardedAt.Equal(out[j].AwardedAt) {
			return out[i].Badge < out[j].Badge
		}
		return out[i].AwardedAt.Before(out[j].AwardedAt)
	})
	return out, nil
}

func (s *Store) IncrementActivity(_ context.Context, user core.UserID, kind core.ActivityKind) (int64, error) {
	rec := s.getOrCreate(user)
	rec.mu.Lock()
	defer rec.mu.Unlock()
	rec.activity = rec.activity.Inc(kind)
	return rec.activity.Count(kind.Counter()), nil
}

func (s *Store) GetStats(_ context.Context, user core.UserID) (core.Stats, error) {
	rec := s.getOrCreate(user)
	rec.mu.Lock()
	defer rec.mu.Unlock()
	st := rec.activity
	st.XP = rec.xp
	return st, nil
}

func (s *Store) InsertNotification(_ context.Context, n core.Notification) error {
	rec := s.getOrCreate(n.UserID)
	rec.mu.Lock()
	defer rec.mu.Unlock()
	rec.notifications = append(rec.notifications, n)
	return nil
}

func (s *Store) ListNotifications(_ context.Context, user core.UserID, unreadOnly bool) ([]core.Notification, error) {
	rec := s.getOrCreate(user)
	rec.mu.Lock()
	defer rec.mu.Unlock()
	out := make([]core.Notification, 0, len(rec.notifications))
	for i := len(rec.notifications) - 1; i >= 0; i-- {
		n := rec.notifications[i]
		if unreadOnly && n.Read {
			continue
		}
		out = append(out, n)
	}
	return out, nil
}

func (s *Store) MarkNotificationRead(_ context.Context, user core.UserID, id string) error {
	rec := s.getOrCreate(user)
	rec.mu.Lock()
	defer rec.mu.Unlock()
	for i := range rec.notifications {
		if rec.notifications[i].ID == id {
			rec.notifications[i].Read = true
			return nil
		}
	}
	return core.ErrNotFound
}
