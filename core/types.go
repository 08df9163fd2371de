package core

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
)

// UserID uniquely identifies a user in the progression domain.
type UserID string

// Counter names one aggregate a badge criterion can look at.
type Counter string

const (
	CounterSignups        Counter = "signups"
	CounterGamesSubmitted Counter = "games_submitted"
	CounterVotesCast      Counter = "votes_cast"
	CounterComments       Counter = "comments_posted"
	CounterXP             Counter = "xp"
)

// ActivityKind is a user action that feeds the progression engine.
type ActivityKind string

const (
	ActivitySignup        ActivityKind = "signup"
	ActivityGameSubmitted ActivityKind = "game_submitted"
	ActivityVoteCast      ActivityKind = "vote_cast"
	ActivityCommentPosted ActivityKind = "comment_posted"
)

var activityCounters = map[ActivityKind]Counter{
	ActivitySignup:        CounterSignups,
	ActivityGameSubmitted: CounterGamesSubmitted,
	ActivityVoteCast:      CounterVotesCast,
	ActivityCommentPosted: CounterComments,
}

// Counter returns the aggregate incremented by this activity.
func (k ActivityKind) Counter() Counter { return activityCounters[k] }

// ParseActivityKind validates a raw activity name.
func ParseActivityKind(s string) (ActivityKind, error) {
	k := ActivityKind(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := activityCounters[k]; !ok {
		return "", fmt.Errorf("%w: %q", ErrInvalidActivity, s)
	}
	return k, nil
}

// Stats is a snapshot of the counts badge criteria are evaluated against.
type Stats struct {
	Signups        int64 `json:"signups"`
	GamesSubmitted int64 `json:"games_submitted"`
	VotesCast      int64 `json:"votes_cast"`
	CommentsPosted int64 `json:"comments_posted"`
	XP             int64 `json:"xp"`
}

// Count returns the value of a single counter.
func (s Stats) Count(c Counter) int64 {
	switch c {
	case CounterSignups:
		return s.Signups
	case CounterGamesSubmitted:
		return s.GamesSubmitted
	case CounterVotesCast:
		return s.VotesCast
	case CounterComments:
		return s.CommentsPosted
	case CounterXP:
		return s.XP
	}
	return 0
}

// Inc returns a copy of s with the counter for kind bumped by one.
func (s Stats) Inc(kind ActivityKind) Stats {
	switch kind.Counter() {
	case CounterSignups:
		s.Signups++
	case CounterGamesSubmitted:
		s.GamesSubmitted++
	case CounterVotesCast:
		s.VotesCast++
	case CounterComments:
		s.CommentsPosted++
	}
	return s
}

// XPEvent is an immutable, append-only record of an XP grant.
type XPEvent struct {
	ID        string    `json:"id"`
	UserID    UserID    `json:"user_id"`
	Amount    int64     `json:"amount"`
	Reason    string    `json:"reason"`
	CreatedAt time.Time `json:"created_at"`
}

// BadgeAward records that a user holds a badge. At most one per (UserID, Badge).
type BadgeAward struct {
	UserID    UserID    `json:"user_id"`
	Badge     BadgeKey  `json:"badge"`
	AwardedAt time.Time `json:"awarded_at"`
}

// NotificationType tags a user-facing message.
type NotificationType string

const (
	NotificationXP      NotificationType = "xp"
	NotificationLevelUp NotificationType = "level_up"
	NotificationBadge   NotificationType = "badge"
	NotificationSystem  NotificationType = "system"
)

// Notification is an outbox entry shown to the user.
type Notification struct {
	ID        string           `json:"id"`
	UserID    UserID           `json:"user_id"`
	Type      NotificationType `json:"type"`
	Message   string           `json:"message"`
	Read      bool             `json:"read"`
	CreatedAt time.Time        `json:"created_at"`
}

// AddSafe adds delta to base ensuring no signed overflow occurs.
func AddSafe(base int64, delta int64) (int64, error) {
	if (delta > 0 && base > math.MaxInt64-delta) || (delta < 0 && base < math.MinInt64-delta) {
		return 0, errors.New("integer overflow in AddSafe")
	}
	return base + delta, nil
}

// NormalizeUserID trims and lowercases user identifiers.
func NormalizeUserID(id UserID) (UserID, error) {
	s := strings.TrimSpace(string(id))
	if s == "" {
		return "", fmt.Errorf("%w: empty user id", ErrInvalidUser)
	}
	for _, r := range s {
		if r == ':' || r == '/' || r < ' ' {
			return "", fmt.Errorf("%w: %q", ErrInvalidUser, s)
		}
	}
	return UserID(strings.ToLower(s)), nil
}
