package core

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// BadgeKey identifies a badge. The set of keys is closed; use ParseBadgeKey
// to turn untrusted input into a key.
type BadgeKey string

const (
	BadgeWelcome         BadgeKey = "WELCOME"
	BadgeFirstSubmission BadgeKey = "FIRST_SUBMISSION"
	BadgeCurator         BadgeKey = "CURATOR"
	BadgeExplorer        BadgeKey = "EXPLORER"
	BadgeTastemaker      BadgeKey = "TASTEMAKER"
	BadgeOracle          BadgeKey = "ORACLE"
	BadgeCommentator     BadgeKey = "COMMENTATOR"
	BadgeCritic          BadgeKey = "CRITIC"
	BadgeVeteran         BadgeKey = "VETERAN"
	BadgeLegend          BadgeKey = "LEGEND"
)

var knownBadges = map[BadgeKey]struct{}{
	BadgeWelcome: {}, BadgeFirstSubmission: {}, BadgeCurator: {},
	BadgeExplorer: {}, BadgeTastemaker: {}, BadgeOracle: {},
	BadgeCommentator: {}, BadgeCritic: {},
	BadgeVeteran: {}, BadgeLegend: {},
}

// Known reports whether k is part of the badge enumeration.
func (k BadgeKey) Known() bool {
	_, ok := knownBadges[k]
	return ok
}

// ParseBadgeKey normalizes and validates a raw badge key.
func ParseBadgeKey(s string) (BadgeKey, error) {
	k := BadgeKey(strings.ToUpper(strings.TrimSpace(s)))
	if !k.Known() {
		return "", fmt.Errorf("%w: %q", ErrUnknownBadge, s)
	}
	return k, nil
}

// Criterion is a threshold over one counter.
type Criterion struct {
	Counter   Counter `json:"counter"`
	Threshold int64   `json:"threshold"`
}

// Met is the badge eligibility predicate.
func (c Criterion) Met(s Stats) bool { return s.Count(c.Counter) >= c.Threshold }

// BadgeDefinition is static badge metadata plus its eligibility rule.
type BadgeDefinition struct {
	Key         BadgeKey  `json:"key"`
	Name        string    `json:"name"`
	Icon        string    `json:"icon"`
	Description string    `json:"description"`
	Criterion   Criterion `json:"criterion"`
	XPReward    int64     `json:"xp_reward"`
}

// Registry is a validated, ordered set of badge definitions.
type Registry struct {
	defs  []BadgeDefinition
	byKey map[BadgeKey]BadgeDefinition
}

// NewRegistry validates definitions. Tiered badges on the same counter must
// use distinct thresholds so that one pass can award every crossed tier.
func NewRegistry(defs ...BadgeDefinition) (*Registry, error) {
	r := &Registry{byKey: make(map[BadgeKey]BadgeDefinition, len(defs))}
	thresholds := map[Counter]map[int64]BadgeKey{}
	var errs []error
	for _, d := range defs {
		switch {
		case !d.Key.Known():
			errs = append(errs, fmt.Errorf("%w: %q", ErrUnknownBadge, d.Key))
			continue
		case d.Criterion.Threshold <= 0:
			errs = append(errs, fmt.Errorf("badge %s: threshold must be positive", d.Key))
			continue
		case d.XPReward < 0:
			errs = append(errs, fmt.Errorf("badge %s: xp reward cannot be negative", d.Key))
			continue
		}
		if _, dup := r.byKey[d.Key]; dup {
			errs = append(errs, fmt.Errorf("badge %s defined twice", d.Key))
			continue
		}
		if _, ok := knownCounters[d.Criterion.Counter]; !ok {
			errs = append(errs, fmt.Errorf("badge %s: unknown counter %q", d.Key, d.Criterion.Counter))
			continue
		}
		tiers := thresholds[d.Criterion.Counter]
		if tiers == nil {
			tiers = map[int64]BadgeKey{}
			thresholds[d.Criterion.Counter] = tiers
		}
		if other, clash := tiers[d.Criterion.Threshold]; clash {
			errs = append(errs, fmt.Errorf("badge %s: threshold %d on %s overlaps %s",
				d.Key, d.Criterion.Threshold, d.Criterion.Counter, other))
			continue
		}
		tiers[d.Criterion.Threshold] = d.Key
		r.byKey[d.Key] = d
		r.defs = append(r.defs, d)
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	// lower tiers first so notifications read in order; counters keep
	// their first-seen position
	group := map[Counter]int{}
	for _, d := range r.defs {
		if _, ok := group[d.Criterion.Counter]; !ok {
			group[d.Criterion.Counter] = len(group)
		}
	}
	sort.SliceStable(r.defs, func(i, j int) bool {
		a, b := r.defs[i].Criterion, r.defs[j].Criterion
		if a.Counter != b.Counter {
			return group[a.Counter] < group[b.Counter]
		}
		return a.Threshold < b.Threshold
	})
	return r, nil
}

var knownCounters = map[Counter]struct{}{
	CounterSignups: {}, CounterGamesSubmitted: {}, CounterVotesCast: {},
	CounterComments: {}, CounterXP: {},
}

// MustRegistry is NewRegistry for static definitions known to be valid.
func MustRegistry(defs ...BadgeDefinition) *Registry {
	r, err := NewRegistry(defs...)
	if err != nil {
		panic(err)
	}
	return r
}

// Definitions returns the definitions in evaluation order.
func (r *Registry) Definitions() []BadgeDefinition {
	out := make([]BadgeDefinition, len(r.defs))
	copy(out, r.defs)
	return out
}

// Lookup returns the definition for key.
func (r *Registry) Lookup(key BadgeKey) (BadgeDefinition, bool) {
	d, ok := r.byKey[key]
	return d, ok
}

// Eligible returns every definition whose criterion holds for s.
func (r *Registry) Eligible(s Stats) []BadgeDefinition {
	var out []BadgeDefinition
	for _, d := range r.defs {
		if d.Criterion.Met(s) {
			out = append(out, d)
		}
	}
	return out
}

// DefaultBadges is the built-in badge catalogue.
func DefaultBadges() []BadgeDefinition {
	return []BadgeDefinition{
		{Key: BadgeWelcome, Name: "Welcome Aboard", Icon: "👋", Description: "Completed signup",
			Criterion: Criterion{CounterSignups, 1}, XPReward: 20},
		{Key: BadgeFirstSubmission, Name: "First Submission", Icon: "🎮", Description: "Submitted a first game",
			Criterion: Criterion{CounterGamesSubmitted, 1}, XPReward: 50},
		{Key: BadgeCurator, Name: "Curator", Icon: "🗂️", Description: "Submitted 5 games",
			Criterion: Criterion{CounterGamesSubmitted, 5}, XPReward: 150},
		{Key: BadgeExplorer, Name: "Explorer", Icon: "🧭", Description: "Cast 3 votes",
			Criterion: Criterion{CounterVotesCast, 3}, XPReward: 80},
		{Key: BadgeTastemaker, Name: "Tastemaker", Icon: "⭐", Description: "Cast 25 votes",
			Criterion: Criterion{CounterVotesCast, 25}, XPReward: 200},
		{Key: BadgeOracle, Name: "Oracle", Icon: "🔮", Description: "Cast 100 votes",
			Criterion: Criterion{CounterVotesCast, 100}, XPReward: 500},
		{Key: BadgeCommentator, Name: "Commentator", Icon: "💬", Description: "Posted a first comment",
			Criterion: Criterion{CounterComments, 1}, XPReward: 25},
		{Key: BadgeCritic, Name: "Critic", Icon: "📝", Description: "Posted 25 comments",
			Criterion: Criterion{CounterComments, 25}, XPReward: 150},
		{Key: BadgeVeteran, Name: "Veteran", Icon: "🎖️", Description: "Earned 1,000 XP",
			Criterion: Criterion{CounterXP, 1000}, XPReward: 100},
		{Key: BadgeLegend, Name: "Legend", Icon: "🏆", Description: "Earned 10,000 XP",
			Criterion: Criterion{CounterXP, 10000}, XPReward: 1000},
	}
}

// DefaultRegistry returns the built-in badge catalogue as a registry.
func DefaultRegistry() *Registry { return MustRegistry(DefaultBadges()...) }
