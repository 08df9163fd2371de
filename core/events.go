package core

import "time"

// EventType enumerates domain events.
type EventType string

const (
	EventXPGranted           EventType = "xp_granted"
	EventLevelUp             EventType = "level_up"
	EventBadgeAwarded        EventType = "badge_awarded"
	EventNotificationCreated EventType = "notification_created"
)

// Event represents an immutable domain event.
type Event struct {
	Type         EventType      `json:"type"`
	Time         time.Time      `json:"time"`
	UserID       UserID         `json:"user_id"`
	Delta        int64          `json:"delta,omitempty"`
	Total        int64          `json:"total,omitempty"`
	Reason       string         `json:"reason,omitempty"`
	Badge        BadgeKey       `json:"badge,omitempty"`
	Level        int64          `json:"level,omitempty"`
	Notification *Notification  `json:"notification,omitempty"`
	Metadata     map[string]any `json:"metadata,omitempty"`
}

func NewXPGranted(user UserID, delta, total int64, reason string) Event {
	return Event{Type: EventXPGranted, Time: time.Now().UTC(), UserID: user, Delta: delta, Total: total, Reason: reason}
}

func NewBadgeAwarded(user UserID, badge BadgeKey) Event {
	return Event{Type: EventBadgeAwarded, Time: time.Now().UTC(), UserID: user, Badge: badge}
}

// NewLevelUp reports the final level reached; previous is carried in metadata.
func NewLevelUp(user UserID, previous, level int64) Event {
	return Event{Type: EventLevelUp, Time: time.Now().UTC(), UserID: user, Level: level,
		Metadata: map[string]any{"previous_level": previous}}
}

func NewNotificationCreated(n Notification) Event {
	return Event{Type: EventNotificationCreated, Time: n.CreatedAt, UserID: n.UserID, Notification: &n}
}
