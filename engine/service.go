package engine

import (
	"context"
	"fmt"
	"log/slog"

	"rewardkit/core"
	"rewardkit/leaderboard"
)

// ActivityRewards is the XP granted per recorded activity. Zero means the
// activity only counts toward badges.
type ActivityRewards map[core.ActivityKind]int64

// DefaultActivityRewards mirrors the platform's stock economy.
func DefaultActivityRewards() ActivityRewards {
	return ActivityRewards{
		core.ActivitySignup:        10,
		core.ActivityGameSubmitted: 0,
		core.ActivityVoteCast:      5,
		core.ActivityCommentPosted: 2,
	}
}

// Options tunes a ProgressionService.
type Options struct {
	Registry *core.Registry
	Rewards  ActivityRewards
	Logger   *slog.Logger
}

// ActivityResult is the combined effect of recording one activity.
type ActivityResult struct {
	Kind    core.ActivityKind `json:"kind"`
	Count   int64             `json:"count"`
	Grant   *GrantResult      `json:"grant,omitempty"`
	Awarded []core.BadgeKey   `json:"awarded"`
}

// Profile is a read model of a user's progression.
type Profile struct {
	UserID   core.UserID        `json:"user_id"`
	XP       int64              `json:"xp"`
	Progress core.LevelProgress `json:"progress"`
	Stats    core.Stats         `json:"stats"`
	Badges   []core.BadgeAward  `json:"badges"`
}

// ProgressionService wires storage, event bus, ledger, badges and
// notifications into the caller-facing API.
type ProgressionService struct {
	store    Store
	bus      *EventBus
	ledger   *Ledger
	badges   *BadgeEvaluator
	notifier *Notifier
	rewards  ActivityRewards
	log      *slog.Logger
}

func NewProgressionService(store Store, bus *EventBus, opts Options) *ProgressionService {
	if store == nil || bus == nil {
		panic("NewProgressionService requires non-nil store and bus")
	}
	if opts.Registry == nil {
		opts.Registry = core.DefaultRegistry()
	}
	if opts.Rewards == nil {
		opts.Rewards = DefaultActivityRewards()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	notifier := NewNotifier(store, bus, opts.Logger)
	ledger := NewLedger(store, bus, notifier, opts.Logger)
	return &ProgressionService{
		store:    store,
		bus:      bus,
		ledger:   ledger,
		badges:   NewBadgeEvaluator(opts.Registry, store, store, ledger, notifier, bus, opts.Logger),
		notifier: notifier,
		rewards:  opts.Rewards,
		log:      opts.Logger,
	}
}

// Subscribe convenience method.
func (s *ProgressionService) Subscribe(typ core.EventType, handler func(context.Context, core.Event)) func() {
	return s.bus.Subscribe(typ, handler)
}

func (s *ProgressionService) Publish(ctx context.Context, ev core.Event) {
	s.bus.Publish(ctx, ev)
}

// Bus exposes the event bus for bridges (realtime, webhooks, metrics).
func (s *ProgressionService) Bus() *EventBus { return s.bus }

// Notifier exposes the notification emitter.
func (s *ProgressionService) Notifier() *Notifier { return s.notifier }

// Registry returns the badge catalogue in use.
func (s *ProgressionService) Registry() *core.Registry { return s.badges.Registry() }

// GrantXP adds amount XP to user.
func (s *ProgressionService) GrantXP(ctx context.Context, user core.UserID, amount int64, reason string) (GrantResult, error) {
	normalized, err := core.NormalizeUserID(user)
	if err != nil {
		return GrantResult{}, err
	}
	return s.ledger.Grant(ctx, normalized, amount, reason)
}

// EvaluateBadges awards every newly satisfied badge.
func (s *ProgressionService) EvaluateBadges(ctx context.Context, user core.UserID) ([]core.BadgeKey, error) {
	normalized, err := core.NormalizeUserID(user)
	if err != nil {
		return nil, err
	}
	return s.badges.Evaluate(ctx, normalized)
}

// EligibleBadges lists badges the user could claim right now.
func (s *ProgressionService) EligibleBadges(ctx context.Context, user core.UserID) ([]core.BadgeKey, error) {
	normalized, err := core.NormalizeUserID(user)
	if err != nil {
		return nil, err
	}
	return s.badges.Eligible(ctx, normalized)
}

// ClaimBadge is an explicit, idempotent badge claim.
func (s *ProgressionService) ClaimBadge(ctx context.Context, user core.UserID, badge core.BadgeKey) (ClaimResult, error) {
	normalized, err := core.NormalizeUserID(user)
	if err != nil {
		return ClaimResult{}, err
	}
	key, err := core.ParseBadgeKey(string(badge))
	if err != nil {
		return ClaimResult{}, err
	}
	return s.badges.Claim(ctx, normalized, key)
}

// AwardAllBadges is the administrative override granting every badge.
func (s *ProgressionService) AwardAllBadges(ctx context.Context, user core.UserID) (AwardAllResult, error) {
	normalized, err := core.NormalizeUserID(user)
	if err != nil {
		return AwardAllResult{}, err
	}
	return s.badges.AwardAll(ctx, normalized), nil
}

// RecordActivity counts one activity, grants its XP and re-evaluates badges.
// The signup bonus is only paid for the first signup.
func (s *ProgressionService) RecordActivity(ctx context.Context, user core.UserID, kind core.ActivityKind) (ActivityResult, error) {
	normalized, err := core.NormalizeUserID(user)
	if err != nil {
		return ActivityResult{}, err
	}
	if kind.Counter() == "" {
		return ActivityResult{}, fmt.Errorf("%w: %q", core.ErrInvalidActivity, kind)
	}
	count, err := s.store.IncrementActivity(ctx, normalized, kind)
	if err != nil {
		return ActivityResult{}, fmt.Errorf("record activity: %w", err)
	}
	res := ActivityResult{Kind: kind, Count: count}
	if xp := s.rewards[kind]; xp > 0 && (kind != core.ActivitySignup || count == 1) {
		g, err := s.ledger.Grant(ctx, normalized, xp, string(kind))
		if err != nil {
			return res, err
		}
		res.Grant = &g
	}
	awarded, err := s.badges.Evaluate(ctx, normalized)
	if err != nil {
		return res, err
	}
	res.Awarded = awarded
	return res, nil
}

// GetProfile assembles XP, level, counters and badges for user.
func (s *ProgressionService) GetProfile(ctx context.Context, user core.UserID) (Profile, error) {
	normalized, err := core.NormalizeUserID(user)
	if err != nil {
		return Profile{}, err
	}
	stats, err := s.store.GetStats(ctx, normalized)
	if err != nil {
		return Profile{}, fmt.Errorf("load stats: %w", err)
	}
	awards, err := s.store.ListBadgeAwards(ctx, normalized)
	if err != nil {
		return Profile{}, fmt.Errorf("load badges: %w", err)
	}
	if awards == nil {
		awards = []core.BadgeAward{}
	}
	return Profile{
		UserID:   normalized,
		XP:       stats.XP,
		Progress: core.ComputeLevelProgress(stats.XP),
		Stats:    stats,
		Badges:   awards,
	}, nil
}

// ListXPEvents returns the user's XP history.
func (s *ProgressionService) ListXPEvents(ctx context.Context, user core.UserID) ([]core.XPEvent, error) {
	normalized, err := core.NormalizeUserID(user)
	if err != nil {
		return nil, err
	}
	return s.ledger.History(ctx, normalized)
}

// ListNotifications returns the user's notifications, newest first.
func (s *ProgressionService) ListNotifications(ctx context.Context, user core.UserID, unreadOnly bool) ([]core.Notification, error) {
	normalized, err := core.NormalizeUserID(user)
	if err != nil {
		return nil, err
	}
	return s.store.ListNotifications(ctx, normalized, unreadOnly)
}

// MarkNotificationRead flags one notification as read.
func (s *ProgressionService) MarkNotificationRead(ctx context.Context, user core.UserID, id string) error {
	normalized, err := core.NormalizeUserID(user)
	if err != nil {
		return err
	}
	return s.store.MarkNotificationRead(ctx, normalized, id)
}

// ComputeLevelProgress is the pure level calculator.
func (s *ProgressionService) ComputeLevelProgress(totalXP int64) core.LevelProgress {
	return core.ComputeLevelProgress(totalXP)
}

// ScoreLeaderboardItem is the pure leaderboard scorer.
func (s *ProgressionService) ScoreLeaderboardItem(votes, follows, clicks uint64, ageHours float64) float64 {
	return leaderboard.Score(votes, follows, clicks, ageHours)
}

func (s *ProgressionService) Close() { s.bus.Close() }
