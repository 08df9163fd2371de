package engine

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"rewardkit/core"
)

// Notifier writes user-facing messages to the notification outbox.
// Delivery is at most once: a failed insert is logged and dropped and never
// fails the operation that triggered it.
type Notifier struct {
	store  NotificationStore
	bus    *EventBus
	log    *slog.Logger
	failed atomic.Int64
	now    func() time.Time
}

func NewNotifier(store NotificationStore, bus *EventBus, log *slog.Logger) *Notifier {
	if log == nil {
		log = slog.Default()
	}
	return &Notifier{store: store, bus: bus, log: log, now: time.Now}
}

// Notify records a message for user. It never returns an error.
func (n *Notifier) Notify(ctx context.Context, user core.UserID, typ core.NotificationType, message string) {
	note := core.Notification{
		ID:        uuid.NewString(),
		UserID:    user,
		Type:      typ,
		Message:   message,
		CreatedAt: n.now().UTC(),
	}
	if err := n.store.InsertNotification(ctx, note); err != nil {
		n.failed.Add(1)
		n.log.WarnContext(ctx, "notification dropped",
			"user_id", user, "type", typ, "error", err)
		return
	}
	n.bus.Publish(ctx, core.NewNotificationCreated(note))
}

// Failures returns how many notifications were dropped.
func (n *Notifier) Failures() int64 { return n.failed.Load() }
