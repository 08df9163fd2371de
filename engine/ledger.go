package engine

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"rewardkit/core"
)

// GrantResult describes the effect of one XP grant.
type GrantResult struct {
	Event         core.XPEvent `json:"event"`
	PreviousTotal int64        `json:"previous_total"`
	NewTotal      int64        `json:"new_total"`
	PreviousLevel int64        `json:"previous_level"`
	NewLevel      int64        `json:"new_level"`
	LeveledUp     bool         `json:"leveled_up"`
	LevelsGained  int64        `json:"levels_gained,omitempty"`
}

// Ledger is the only writer of user XP.
type Ledger struct {
	store    XPStore
	bus      *EventBus
	notifier *Notifier
	log      *slog.Logger
}

func NewLedger(store XPStore, bus *EventBus, notifier *Notifier, log *slog.Logger) *Ledger {
	if log == nil {
		log = slog.Default()
	}
	return &Ledger{store: store, bus: bus, notifier: notifier, log: log}
}

// Grant adds amount XP to user and records one event with reason.
//
// A grant that crosses several level boundaries produces a single level-up
// event and notification naming the final level; LevelsGained says how many
// levels were crossed.
func (l *Ledger) Grant(ctx context.Context, user core.UserID, amount int64, reason string) (GrantResult, error) {
	if amount <= 0 {
		return GrantResult{}, fmt.Errorf("%w: got %d", core.ErrInvalidAmount, amount)
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = "unspecified"
	}
	ev, total, err := l.store.AddXP(ctx, user, amount, reason)
	if err != nil {
		return GrantResult{}, fmt.Errorf("grant xp: %w", err)
	}
	prevTotal := total - amount
	res := GrantResult{
		Event:         ev,
		PreviousTotal: prevTotal,
		NewTotal:      total,
		PreviousLevel: core.LevelForXP(prevTotal),
		NewLevel:      core.LevelForXP(total),
	}
	res.LevelsGained = res.NewLevel - res.PreviousLevel
	res.LeveledUp = res.LevelsGained > 0

	l.log.DebugContext(ctx, "xp granted",
		"user_id", user, "amount", amount, "reason", reason, "total", total)
	l.bus.Publish(ctx, core.NewXPGranted(user, amount, total, reason))
	if res.LeveledUp {
		l.log.InfoContext(ctx, "level reached",
			"user_id", user, "level", res.NewLevel, "levels_gained", res.LevelsGained)
		l.bus.Publish(ctx, core.NewLevelUp(user, res.PreviousLevel, res.NewLevel))
		l.notifier.Notify(ctx, user, core.NotificationLevelUp,
			fmt.Sprintf("Level up! You reached level %d.", res.NewLevel))
	}
	return res, nil
}

// Total returns the user's cumulative XP.
func (l *Ledger) Total(ctx context.Context, user core.UserID) (int64, error) {
	return l.store.GetXP(ctx, user)
}

// History returns the user's XP events oldest first.
func (l *Ledger) History(ctx context.Context, user core.UserID) ([]core.XPEvent, error) {
	return l.store.ListXPEvents(ctx, user)
}
