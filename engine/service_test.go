package engine

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	mem "rewardkit/adapters/memory"
	"rewardkit/core"
)

// recorder collects every published event.
type recorder struct {
	mu     sync.Mutex
	events []core.Event
}

func (r *recorder) handle(_ context.Context, e core.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recorder) ofType(typ core.EventType) []core.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []core.Event
	for _, e := range r.events {
		if e.Type == typ {
			out = append(out, e)
		}
	}
	return out
}

func explorerOnly() *core.Registry {
	def, _ := core.DefaultRegistry().Lookup(core.BadgeExplorer)
	return core.MustRegistry(def)
}

func newTestService(t *testing.T, store Store, registry *core.Registry) (*ProgressionService, *recorder) {
	t.Helper()
	bus := NewEventBus(DispatchSync)
	svc := NewProgressionService(store, bus, Options{Registry: registry})
	rec := &recorder{}
	bus.SubscribeAll(rec.handle)
	t.Cleanup(svc.Close)
	return svc, rec
}

func TestSignupVotesExplorerScenario(t *testing.T) {
	svc, rec := newTestService(t, mem.New(), explorerOnly())
	ctx := context.Background()

	res, err := svc.RecordActivity(ctx, "Player1", core.ActivitySignup)
	require.NoError(t, err)
	require.NotNil(t, res.Grant)
	assert.Equal(t, int64(10), res.Grant.NewTotal)

	for i := 0; i < 2; i++ {
		res, err = svc.RecordActivity(ctx, "player1", core.ActivityVoteCast)
		require.NoError(t, err)
		assert.Empty(t, res.Awarded)
	}
	res, err = svc.RecordActivity(ctx, "player1", core.ActivityVoteCast)
	require.NoError(t, err)
	assert.Equal(t, int64(25), res.Grant.NewTotal)
	assert.Equal(t, []core.BadgeKey{core.BadgeExplorer}, res.Awarded)

	profile, err := svc.GetProfile(ctx, "player1")
	require.NoError(t, err)
	assert.Equal(t, int64(105), profile.XP)
	assert.Equal(t, int64(2), profile.Progress.Level)
	assert.Equal(t, int64(3), profile.Stats.VotesCast)
	require.Len(t, profile.Badges, 1)

	levelUps := rec.ofType(core.EventLevelUp)
	require.Len(t, levelUps, 1)
	assert.Equal(t, int64(2), levelUps[0].Level)
	assert.Len(t, rec.ofType(core.EventBadgeAwarded), 1)

	notes, err := svc.ListNotifications(ctx, "player1", false)
	require.NoError(t, err)
	// newest first: the badge note is written after its reward's level-up
	require.Len(t, notes, 2)
	assert.Equal(t, core.NotificationBadge, notes[0].Type)
	assert.Contains(t, notes[0].Message, "Explorer")
	assert.Contains(t, notes[0].Message, "+80 XP")
	assert.Equal(t, core.NotificationLevelUp, notes[1].Type)
}

func TestSignupBonusPaidOnce(t *testing.T) {
	svc, _ := newTestService(t, mem.New(), explorerOnly())
	ctx := context.Background()
	_, err := svc.RecordActivity(ctx, "u", core.ActivitySignup)
	require.NoError(t, err)
	res, err := svc.RecordActivity(ctx, "u", core.ActivitySignup)
	require.NoError(t, err)
	assert.Nil(t, res.Grant)
	assert.Equal(t, int64(2), res.Count)

	xp, err := svc.GetProfile(ctx, "u")
	require.NoError(t, err)
	assert.Equal(t, int64(10), xp.XP)
}

func TestRecordActivityZeroRewardStillCounts(t *testing.T) {
	svc, rec := newTestService(t, mem.New(), core.DefaultRegistry())
	res, err := svc.RecordActivity(context.Background(), "u", core.ActivityGameSubmitted)
	require.NoError(t, err)
	assert.Equal(t, []core.BadgeKey{core.BadgeFirstSubmission}, res.Awarded)
	grants := rec.ofType(core.EventXPGranted)
	require.Len(t, grants, 1)
	assert.Equal(t, "badge:FIRST_SUBMISSION", grants[0].Reason)
}

func TestValidationErrors(t *testing.T) {
	svc, _ := newTestService(t, mem.New(), nil)
	ctx := context.Background()

	_, err := svc.GrantXP(ctx, "u", 0, "nothing")
	assert.ErrorIs(t, err, core.ErrInvalidAmount)
	_, err = svc.GrantXP(ctx, "u", -5, "negative")
	assert.ErrorIs(t, err, core.ErrInvalidAmount)
	_, err = svc.GrantXP(ctx, "  ", 5, "blank")
	assert.ErrorIs(t, err, core.ErrInvalidUser)
	_, err = svc.ClaimBadge(ctx, "u", "NOPE")
	assert.ErrorIs(t, err, core.ErrUnknownBadge)
	_, err = svc.RecordActivity(ctx, "u", core.ActivityKind("dance"))
	assert.ErrorIs(t, err, core.ErrInvalidActivity)
	assert.True(t, core.IsValidation(err))

	events, err := svc.ListXPEvents(ctx, "u")
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestClaimBadgeNotInRegistry(t *testing.T) {
	svc, _ := newTestService(t, mem.New(), explorerOnly())
	_, err := svc.ClaimBadge(context.Background(), "u", core.BadgeCurator)
	assert.ErrorIs(t, err, core.ErrUnknownBadge)
}

func TestGetProfileEmptyUser(t *testing.T) {
	svc, _ := newTestService(t, mem.New(), nil)
	p, err := svc.GetProfile(context.Background(), "Nobody")
	require.NoError(t, err)
	assert.Equal(t, core.UserID("nobody"), p.UserID)
	assert.Equal(t, int64(1), p.Progress.Level)
	assert.NotNil(t, p.Badges)
}

func TestMarkNotificationRead(t *testing.T) {
	svc, _ := newTestService(t, mem.New(), nil)
	ctx := context.Background()
	_, err := svc.GrantXP(ctx, "u", 150, "bonus")
	require.NoError(t, err)
	unread, err := svc.ListNotifications(ctx, "u", true)
	require.NoError(t, err)
	require.Len(t, unread, 1)

	require.NoError(t, svc.MarkNotificationRead(ctx, "u", unread[0].ID))
	unread, err = svc.ListNotifications(ctx, "u", true)
	require.NoError(t, err)
	assert.Empty(t, unread)
	assert.ErrorIs(t, svc.MarkNotificationRead(ctx, "u", "missing"), core.ErrNotFound)
}

func TestPureCalculators(t *testing.T) {
	svc, _ := newTestService(t, mem.New(), nil)
	assert.Equal(t, int64(2), svc.ComputeLevelProgress(105).Level)
	assert.Equal(t, 0.0, svc.ScoreLeaderboardItem(0, 0, 0, 0))
	assert.Greater(t, svc.ScoreLeaderboardItem(10, 2, 30, 1), svc.ScoreLeaderboardItem(10, 2, 30, 48))
}

func TestNewProgressionServicePanicsOnNilDeps(t *testing.T) {
	assert.Panics(t, func() { NewProgressionService(nil, NewEventBus(DispatchSync), Options{}) })
	assert.Panics(t, func() { NewProgressionService(mem.New(), nil, Options{}) })
}
