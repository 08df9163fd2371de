package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"rewardkit/core"
)

// Claim outcome reasons.
const (
	ClaimAwarded        = "awarded"
	ClaimAlreadyAwarded = "already_awarded"
	ClaimNotEligible    = "not_eligible"
)

// ClaimResult is the outcome of a user-initiated badge claim.
type ClaimResult struct {
	Success   bool          `json:"success"`
	Reason    string        `json:"reason"`
	Badge     core.BadgeKey `json:"badge"`
	XPAwarded int64         `json:"xp_awarded,omitempty"`
	Grant     *GrantResult  `json:"grant,omitempty"`
}

// AwardAllResult reports a forced award of every badge. Failed badges do not
// stop the rest of the batch.
type AwardAllResult struct {
	Awarded []core.BadgeKey          `json:"awarded"`
	Skipped []core.BadgeKey          `json:"skipped"`
	Failed  map[core.BadgeKey]string `json:"failed,omitempty"`
}

// awardOutcome is the result of one award attempt.
type awardOutcome struct {
	inserted bool
	grant    *GrantResult
}

// BadgeEvaluator decides and records badge awards. It is the only writer of
// badge awards.
type BadgeEvaluator struct {
	registry *core.Registry
	badges   BadgeStore
	activity ActivityStore
	ledger   *Ledger
	notifier *Notifier
	bus      *EventBus
	log      *slog.Logger
	now      func() time.Time
}

func NewBadgeEvaluator(registry *core.Registry, badges BadgeStore, activity ActivityStore,
	ledger *Ledger, notifier *Notifier, bus *EventBus, log *slog.Logger) *BadgeEvaluator {
	if log == nil {
		log = slog.Default()
	}
	return &BadgeEvaluator{
		registry: registry,
		badges:   badges,
		activity: activity,
		ledger:   ledger,
		notifier: notifier,
		bus:      bus,
		log:      log,
		now:      time.Now,
	}
}

// Registry returns the badge catalogue in use.
func (b *BadgeEvaluator) Registry() *core.Registry { return b.registry }

// Evaluate awards every badge the user newly qualifies for and returns the
// keys awarded by this call. Reward XP can unlock XP-threshold badges, so
// evaluation repeats until nothing new is awarded.
func (b *BadgeEvaluator) Evaluate(ctx context.Context, user core.UserID) ([]core.BadgeKey, error) {
	owned, err := b.owned(ctx, user)
	if err != nil {
		return nil, err
	}
	var awarded []core.BadgeKey
	for pass := 0; pass <= len(b.registry.Definitions()); pass++ {
		stats, err := b.activity.GetStats(ctx, user)
		if err != nil {
			return awarded, fmt.Errorf("load stats: %w", err)
		}
		progressed := false
		for _, def := range b.registry.Eligible(stats) {
			if _, ok := owned[def.Key]; ok {
				continue
			}
			out, err := b.award(ctx, user, def)
			if err != nil {
				return awarded, err
			}
			owned[def.Key] = struct{}{}
			if out.inserted {
				awarded = append(awarded, def.Key)
				progressed = true
			}
		}
		if !progressed {
			break
		}
	}
	return awarded, nil
}

// Eligible lists badges the user qualifies for but does not hold, without
// awarding anything.
func (b *BadgeEvaluator) Eligible(ctx context.Context, user core.UserID) ([]core.BadgeKey, error) {
	owned, err := b.owned(ctx, user)
	if err != nil {
		return nil, err
	}
	stats, err := b.activity.GetStats(ctx, user)
	if err != nil {
		return nil, fmt.Errorf("load stats: %w", err)
	}
	var out []core.BadgeKey
	for _, def := range b.registry.Eligible(stats) {
		if _, ok := owned[def.Key]; !ok {
			out = append(out, def.Key)
		}
	}
	return out, nil
}

// Claim awards key to user if its criterion holds. Claiming a badge the user
// already holds, or does not qualify for, reports Success=false with no side
// effects.
func (b *BadgeEvaluator) Claim(ctx context.Context, user core.UserID, key core.BadgeKey) (ClaimResult, error) {
	def, ok := b.registry.Lookup(key)
	if !ok {
		return ClaimResult{}, fmt.Errorf("%w: %q", core.ErrUnknownBadge, key)
	}
	res := ClaimResult{Badge: key}
	owned, err := b.owned(ctx, user)
	if err != nil {
		return ClaimResult{}, err
	}
	if _, ok := owned[key]; ok {
		res.Reason = ClaimAlreadyAwarded
		return res, nil
	}
	stats, err := b.activity.GetStats(ctx, user)
	if err != nil {
		return ClaimResult{}, fmt.Errorf("load stats: %w", err)
	}
	if !def.Criterion.Met(stats) {
		res.Reason = ClaimNotEligible
		return res, nil
	}
	out, err := b.award(ctx, user, def)
	if err != nil {
		return ClaimResult{}, err
	}
	if !out.inserted {
		// lost a race with a concurrent award
		res.Reason = ClaimAlreadyAwarded
		return res, nil
	}
	res.Success = true
	res.Reason = ClaimAwarded
	res.Grant = out.grant
	if out.grant != nil {
		res.XPAwarded = out.grant.Event.Amount
	}
	return res, nil
}

// AwardAll force-awards every badge in the registry, bypassing criteria.
// Each badge is attempted independently and per-badge failures are collected.
func (b *BadgeEvaluator) AwardAll(ctx context.Context, user core.UserID) AwardAllResult {
	res := AwardAllResult{Failed: map[core.BadgeKey]string{}}
	for _, def := range b.registry.Definitions() {
		out, err := b.award(ctx, user, def)
		switch {
		case err != nil:
			res.Failed[def.Key] = err.Error()
		case out.inserted:
			res.Awarded = append(res.Awarded, def.Key)
		default:
			res.Skipped = append(res.Skipped, def.Key)
		}
	}
	if len(res.Failed) > 0 {
		b.log.WarnContext(ctx, "forced badge award incomplete",
			"user_id", user, "failed", len(res.Failed), "awarded", len(res.Awarded))
	}
	return res
}

// award inserts the award, then grants its reward and notifies. A reward
// grant that fails after the award is stored is logged and tolerated: the
// criterion already held, so the badge stands.
func (b *BadgeEvaluator) award(ctx context.Context, user core.UserID, def core.BadgeDefinition) (awardOutcome, error) {
	inserted, err := b.badges.InsertBadgeAward(ctx, core.BadgeAward{
		UserID:    user,
		Badge:     def.Key,
		AwardedAt: b.now().UTC(),
	})
	if err != nil {
		return awardOutcome{}, fmt.Errorf("award badge %s: %w", def.Key, err)
	}
	if !inserted {
		b.log.DebugContext(ctx, "badge already awarded", "user_id", user, "badge", def.Key)
		return awardOutcome{}, nil
	}
	out := awardOutcome{inserted: true}
	b.log.InfoContext(ctx, "badge awarded", "user_id", user, "badge", def.Key)
	b.bus.Publish(ctx, core.NewBadgeAwarded(user, def.Key))

	msg := fmt.Sprintf("%s You earned the %s badge!", def.Icon, def.Name)
	if def.XPReward > 0 {
		g, err := b.ledger.Grant(ctx, user, def.XPReward, "badge:"+string(def.Key))
		if err != nil {
			b.log.ErrorContext(ctx, "badge reward not granted",
				"user_id", user, "badge", def.Key, "xp", def.XPReward, "error", err)
		} else {
			out.grant = &g
			msg = fmt.Sprintf("%s You earned the %s badge! +%d XP", def.Icon, def.Name, def.XPReward)
		}
	}
	b.notifier.Notify(ctx, user, core.NotificationBadge, msg)
	return out, nil
}

func (b *BadgeEvaluator) owned(ctx context.Context, user core.UserID) (map[core.BadgeKey]struct{}, error) {
	awards, err := b.badges.ListBadgeAwards(ctx, user)
	if err != nil {
		return nil, fmt.Errorf("load badges: %w", err)
	}
	owned := make(map[core.BadgeKey]struct{}, len(awards))
	for _, a := range awards {
		owned[a.Badge] = struct{}{}
	}
	return owned, nil
}
