package progression

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	mem "rewardkit/adapters/memory"
	"rewardkit/analytics"
	"rewardkit/core"
	"rewardkit/engine"
	"rewardkit/realtime"
)

func TestNewDefaultsAndOptions(t *testing.T) {
	hub := realtime.NewHub()
	svc := New(
		WithRealtime(hub),
		WithStore(mem.New()),
		WithDispatchMode(engine.DispatchSync),
	)
	defer svc.Close()

	// realtime bridge should receive event
	_, ch := hub.Subscribe(8)

	res, err := svc.GrantXP(context.Background(), "alice", 5, "bonus")
	if err != nil || res.NewTotal != 5 {
		t.Fatalf("grant total=%d err=%v", res.NewTotal, err)
	}

	ev := <-ch
	if ev.UserID != "alice" || ev.Type != core.EventXPGranted {
		t.Fatalf("unexpected event: %+v", ev)
	}
}

func TestInMemoryDefault(t *testing.T) {
	svc := New()
	defer svc.Close()
	if _, err := svc.RecordActivity(context.Background(), "bob", core.ActivitySignup); err != nil {
		t.Fatalf("record signup: %v", err)
	}
	p, err := svc.GetProfile(context.Background(), "bob")
	if err != nil {
		t.Fatalf("get profile: %v", err)
	}
	// signup bonus plus the WELCOME reward
	if p.XP != 30 {
		t.Fatalf("expected 30 xp, got %d", p.XP)
	}
}

func TestCustomRewardsAndRegistry(t *testing.T) {
	explorer, _ := core.DefaultRegistry().Lookup(core.BadgeExplorer)
	svc := New(
		WithDispatchMode(engine.DispatchSync),
		WithRegistry(core.MustRegistry(explorer)),
		WithRewards(engine.ActivityRewards{core.ActivityVoteCast: 1}),
	)
	defer svc.Close()
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		if _, err := svc.RecordActivity(ctx, "carol", core.ActivityVoteCast); err != nil {
			t.Fatal(err)
		}
	}
	p, _ := svc.GetProfile(ctx, "carol")
	if p.XP != 83 {
		t.Fatalf("expected 3 + 80 xp, got %d", p.XP)
	}
}

func TestWebhooksAndMetrics(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	}))
	defer srv.Close()

	metrics := analytics.NewCollector("test", false)
	svc := New(
		WithDispatchMode(engine.DispatchSync),
		WithWebhooks(srv.URL),
		WithMetrics(metrics),
	)
	defer svc.Close()

	if _, err := svc.GrantXP(context.Background(), "dave", 150, "bonus"); err != nil {
		t.Fatal(err)
	}
	// xp_granted, level_up, notification_created
	if hits.Load() != 3 {
		t.Fatalf("expected 3 webhook posts, got %d", hits.Load())
	}
	families, err := metrics.Registry().Gather()
	if err != nil {
		t.Fatal(err)
	}
	found := false
	for _, f := range families {
		if f.GetName() == "test_webhook_failures" {
			found = true
		}
	}
	if !found {
		t.Fatal("expected webhook_failures gauge to be registered")
	}
}
