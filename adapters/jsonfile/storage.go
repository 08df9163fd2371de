package jsonfile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"rewardkit/core"
)

// Store persists every user's progression to a single JSON file.
// Suitable for demos and small deployments.
type Store struct {
	path string
	mu   sync.Mutex
	// in-memory cache for speed
	data map[core.UserID]*userDoc
	now  func() time.Time
}

type userDoc struct {
	XP            int64               `json:"xp"`
	Events        []core.XPEvent      `json:"events"`
	Badges        []core.BadgeAward   `json:"badges"`
	Activity      core.Stats          `json:"activity"`
	Notifications []core.Notification `json:"notifications"`
}

func (d *userDoc) clone() *userDoc {
	c := *d
	c.Events = append([]core.XPEvent(nil), d.Events...)
	c.Badges = append([]core.BadgeAward(nil), d.Badges...)
	c.Notifications = append([]core.Notification(nil), d.Notifications...)
	return &c
}

func New(path string) (*Store, error) {
	s := &Store{path: path, data: map[core.UserID]*userDoc{}, now: time.Now}
	if err := s.load(); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", path, err)
		}
	}
	return s, nil
}

func (s *Store) load() error {
	b, err := os.ReadFile(s.path)
	if err != nil {
		return err
	}
	var raw map[string]*userDoc
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	for k, v := range raw {
		s.data[core.UserID(k)] = v
	}
	return nil
}

func (s *Store) persist() error {
	tmp := s.path + ".tmp"
	raw := make(map[string]*userDoc, len(s.data))
	for k, v := range s.data {
		raw[string(k)] = v
	}
	b, err := json.MarshalIndent(raw, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return err
	}
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}

func (s *Store) get(user core.UserID) *userDoc {
	if d, ok := s.data[user]; ok {
		return d
	}
	return &userDoc{}
}

// mutate applies fn to a copy of the user's document and keeps the copy only
// if the file write succeeds.
func (s *Store) mutate(user core.UserID, fn func(*userDoc) error) error {
	prev, existed := s.data[user]
	next := s.get(user).clone()
	if err := fn(next); err != nil {
		return err
	}
	s.data[user] = next
	if err := s.persist(); err != nil {
		if existed {
			s.data[user] = prev
		} else {
			delete(s.data, user)
		}
		return fmt.Errorf("persist: %w", err)
	}
	return nil
}

func (s *Store) AddXP(_ context.Context, user core.UserID, amount int64, reason string) (core.XPEvent, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ev := core.XPEvent{ID: uuid.NewString(), UserID: user, Amount: amount, Reason: reason, CreatedAt: s.now().UTC()}
	var total int64
	err := s.mutate(user, func(d *userDoc) error {
		next, err := core.AddSafe(d.XP, amount)
		if err != nil {
			return err
		}
		d.XP = next
		d.Events = append(d.Events, ev)
		total = next
		return nil
	})
	if err != nil {
		return core.XPEvent{}, 0, err
	}
	return ev, total, nil
}

func (s *Store) GetXP(_ context.Context, user core.UserID) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.get(user).XP, nil
}

func (s *Store) ListXPEvents(_ context.Context, user core.UserID) ([]core.XPEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.XPEvent{}, s.get(user).Events...), nil
}

func (s *Store) InsertBadgeAward(_ context.Context, award core.BadgeAward) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.get(award.UserID).Badges {
		if a.Badge == award.Badge {
			return false, nil
		}
	}
	err := s.mutate(award.UserID, func(d *userDoc) error {
		d.Badges = append(d.Badges, award)
		return nil
	})
	return err == nil, err
}

func (s *Store) ListBadgeAwards(_ context.Context, user core.UserID) ([]core.BadgeAward, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := append([]core.BadgeAward{}, s.get(user).Badges...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].AwardedAt.Before(out[j].AwardedAt) })
	return out, nil
}

func (s *Store) IncrementActivity(_ context.Context, user core.UserID, kind core.ActivityKind) (int64, error) {
	if kind.Counter() == "" {
		return 0, fmt.Errorf("%w: %q", core.ErrInvalidActivity, kind)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var count int64
	err := s.mutate(user, func(d *userDoc) error {
		d.Activity = d.Activity.Inc(kind)
		count = d.Activity.Count(kind.Counter())
		return nil
	})
	return count, err
}

func (s *Store) GetStats(_ context.Context, user core.UserID) (core.Stats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d := s.get(user)
	st := d.Activity
	st.XP = d.XP
	return st, nil
}

func (s *Store) InsertNotification(_ context.Context, n core.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mutate(n.UserID, func(d *userDoc) error {
		d.Notifications = append(d.Notifications, n)
		return nil
	})
}

func (s *Store) ListNotifications(_ context.Context, user core.UserID, unreadOnly bool) ([]core.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	notes := s.get(user).Notifications
	out := make([]core.Notification, 0, len(notes))
	for i := len(notes) - 1; i >= 0; i-- {
		if unreadOnly && notes[i].Read {
			continue
		}
		out = append(out, notes[i])
	}
	return out, nil
}

func (s *Store) MarkNotificationRead(_ context.Context, user core.UserID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mutate(user, func(d *userDoc) error {
		for i := range d.Notifications {
			if d.Notifications[i].ID == id {
				d.Notifications[i].Read = true
				return nil
			}
		}
		return fmt.Errorf("notification %s: %w", id, core.ErrNotFound)
	})
}
