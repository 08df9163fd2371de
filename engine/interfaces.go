package engine

import (
	"context"

	"rewardkit/core"
)

// XPStore persists cumulative XP and its append-only event log.
type XPStore interface {
	// AddXP atomically increments the user's XP by amount and appends one
	// event. Either both happen or neither does.
	AddXP(ctx context.Context, user core.UserID, amount int64, reason string) (core.XPEvent, int64, error)
	GetXP(ctx context.Context, user core.UserID) (int64, error)
	ListXPEvents(ctx context.Context, user core.UserID) ([]core.XPEvent, error)
}

// BadgeStore persists badge awards, unique per (user, badge).
type BadgeStore interface {
	// InsertBadgeAward inserts the award if absent. A uniqueness collision
	// reports inserted=false and a nil error.
	InsertBadgeAward(ctx context.Context, award core.BadgeAward) (inserted bool, err error)
	ListBadgeAwards(ctx context.Context, user core.UserID) ([]core.BadgeAward, error)
}

// ActivityStore keeps the aggregate counts badge criteria read.
type ActivityStore interface {
	IncrementActivity(ctx context.Context, user core.UserID, kind core.ActivityKind) (int64, error)
	// GetStats returns activity counters and current XP.
	GetStats(ctx context.Context, user core.UserID) (core.Stats, error)
}

// NotificationStore is the notification outbox.
type NotificationStore interface {
	InsertNotification(ctx context.Context, n core.Notification) error
	ListNotifications(ctx context.Context, user core.UserID, unreadOnly bool) ([]core.Notification, error)
	// MarkNotificationRead returns core.ErrNotFound for unknown ids.
	MarkNotificationRead(ctx context.Context, user core.UserID, id string) error
}

// Store abstracts persistence for progression state.
type Store interface {
	XPStore
	BadgeStore
	ActivityStore
	NotificationStore
}
