package analytics

import (
	"context"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	mem "rewardkit/adapters/memory"
	"rewardkit/core"
	"rewardkit/engine"
)

func TestCollector_OnEvent(t *testing.T) {
	c := NewCollector("test", false)
	ctx := context.Background()

	c.OnEvent(ctx, core.NewXPGranted("u1", 5, 5, "vote_cast"))
	c.OnEvent(ctx, core.NewXPGranted("u1", 80, 85, "badge:EXPLORER"))
	c.OnEvent(ctx, core.NewXPGranted("u2", 7, 7, "bonus"))
	c.OnEvent(ctx, core.NewBadgeAwarded("u1", core.BadgeExplorer))
	c.OnEvent(ctx, core.NewLevelUp("u1", 1, 2))
	c.OnEvent(ctx, core.NewNotificationCreated(core.Notification{ID: "n", UserID: "u1", Type: core.NotificationBadge}))

	assert.Equal(t, 5.0, testutil.ToFloat64(c.xpGranted.WithLabelValues("vote_cast")))
	assert.Equal(t, 80.0, testutil.ToFloat64(c.xpGranted.WithLabelValues("badge")))
	assert.Equal(t, 7.0, testutil.ToFloat64(c.xpGranted.WithLabelValues("manual")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.xpGrants.WithLabelValues("badge")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.badgesAwarded.WithLabelValues("EXPLORER")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.levelUps))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.notifications.WithLabelValues("badge")))
}

func TestCollector_AttachToService(t *testing.T) {
	c := NewCollector("test", false)
	bus := engine.NewEventBus(engine.DispatchSync)
	detach := c.Attach(bus)
	defer detach()

	explorer, _ := core.DefaultRegistry().Lookup(core.BadgeExplorer)
	svc := engine.NewProgressionService(mem.New(), bus, engine.Options{Registry: core.MustRegistry(explorer)})
	ctx := context.Background()
	_, err := svc.RecordActivity(ctx, "player", core.ActivitySignup)
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		_, err := svc.RecordActivity(ctx, "player", core.ActivityVoteCast)
		require.NoError(t, err)
	}

	assert.Equal(t, 10.0, testutil.ToFloat64(c.xpGranted.WithLabelValues("signup")))
	assert.Equal(t, 15.0, testutil.ToFloat64(c.xpGranted.WithLabelValues("vote_cast")))
	assert.Equal(t, 80.0, testutil.ToFloat64(c.xpGranted.WithLabelValues("badge")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.levelUps))
	assert.Equal(t, 1, c.active.Daily(time.Now()))
}

func TestCollector_HandlerExposesMetrics(t *testing.T) {
	c := NewCollector("rewardkit", false)
	c.GaugeFunc("notifications_dropped", "Dropped notifications", func() float64 { return 3 })
	c.OnEvent(context.Background(), core.NewBadgeAwarded("u1", core.BadgeWelcome))

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	out := string(body)
	assert.True(t, strings.Contains(out, `rewardkit_badges_awarded_total{badge="WELCOME"} 1`), out)
	assert.True(t, strings.Contains(out, "rewardkit_notifications_dropped 3"), out)
	assert.True(t, strings.Contains(out, "rewardkit_users_active_daily 1"), out)
}

func TestActiveUsers(t *testing.T) {
	a := NewActiveUsers()
	ctx := context.Background()
	day1 := time.Date(2024, 3, 4, 10, 0, 0, 0, time.UTC)
	day2 := day1.Add(24 * time.Hour)

	a.OnEvent(ctx, core.Event{UserID: "a", Time: day1})
	a.OnEvent(ctx, core.Event{UserID: "b", Time: day1})
	a.OnEvent(ctx, core.Event{UserID: "a", Time: day2})
	a.OnEvent(ctx, core.Event{Time: day2})

	assert.Equal(t, 2, a.Daily(day1))
	assert.Equal(t, 1, a.Daily(day2))
	assert.Equal(t, 2, a.Weekly(day2))
	assert.Equal(t, 2, a.Monthly(day1))
}

func TestActiveUsersPrunesOldBuckets(t *testing.T) {
	a := NewActiveUsers()
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 10; i++ {
		a.OnEvent(context.Background(), core.Event{UserID: "u", Time: start.AddDate(0, 0, i)})
	}
	assert.Len(t, a.daily, 3)
	assert.Zero(t, a.Daily(start))
	assert.Equal(t, 1, a.Daily(start.AddDate(0, 0, 9)))
}

func TestBridgeHook(t *testing.T) {
	a, b := NewActiveUsers(), NewActiveUsers()
	now := time.Now()
	NewBridge(a, b).OnEvent(context.Background(), core.Event{UserID: "x", Time: now})
	assert.Equal(t, 1, a.Daily(now))
	assert.Equal(t, 1, b.Daily(now))
}
