package jsonfile

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"rewardkit/core"
	"rewardkit/engine"
)

var _ engine.Store = (*Store)(nil)

func TestStorePersistAndLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "state.json")
	ctx := context.Background()

	store, err := New(path)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}

	_, total, err := store.AddXP(ctx, "alice", 50, "signup")
	if err != nil || total != 50 {
		t.Fatalf("add xp: total=%d err=%v", total, err)
	}
	inserted, err := store.InsertBadgeAward(ctx, core.BadgeAward{UserID: "alice", Badge: core.BadgeWelcome, AwardedAt: time.Now()})
	if err != nil || !inserted {
		t.Fatalf("award badge: inserted=%v err=%v", inserted, err)
	}
	if _, err := store.IncrementActivity(ctx, "alice", core.ActivityVoteCast); err != nil {
		t.Fatalf("increment: %v", err)
	}
	if err := store.InsertNotification(ctx, core.Notification{ID: "n1", UserID: "alice", Message: "hi"}); err != nil {
		t.Fatalf("notify: %v", err)
	}

	// ensure file written
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected file at %s", path)
	}

	// reload
	reloaded, err := New(path)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}

	stats, err := reloaded.GetStats(ctx, "alice")
	if err != nil {
		t.Fatalf("get stats: %v", err)
	}
	if stats.XP != 50 || stats.VotesCast != 1 {
		t.Fatalf("unexpected stats %+v", stats)
	}
	events, _ := reloaded.ListXPEvents(ctx, "alice")
	if len(events) != 1 || events[0].Reason != "signup" {
		t.Fatalf("unexpected events %+v", events)
	}
	inserted, err = reloaded.InsertBadgeAward(ctx, core.BadgeAward{UserID: "alice", Badge: core.BadgeWelcome, AwardedAt: time.Now()})
	if err != nil || inserted {
		t.Fatalf("duplicate badge after reload: inserted=%v err=%v", inserted, err)
	}
	notes, _ := reloaded.ListNotifications(ctx, "alice", true)
	if len(notes) != 1 {
		t.Fatalf("expected one unread notification, got %d", len(notes))
	}
}

func TestStoreMarkNotificationRead(t *testing.T) {
	store, err := New(filepath.Join(t.TempDir(), "state.json"))
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	_ = store.InsertNotification(ctx, core.Notification{ID: "n1", UserID: "bob"})
	if err := store.MarkNotificationRead(ctx, "bob", "n1"); err != nil {
		t.Fatal(err)
	}
	if err := store.MarkNotificationRead(ctx, "bob", "n2"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	unread, _ := store.ListNotifications(ctx, "bob", true)
	if len(unread) != 0 {
		t.Fatalf("expected no unread, got %d", len(unread))
	}
}

func TestStoreRollsBackOnPersistFailure(t *testing.T) {
	dir := t.TempDir()
	store, err := New(filepath.Join(dir, "sub", "state.json"))
	if err != nil {
		t.Fatal(err)
	}
	// the parent directory is now a regular file, so every write fails
	if err := os.WriteFile(filepath.Join(dir, "sub"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	if _, _, err := store.AddXP(ctx, "carol", 10, "x"); err == nil {
		t.Fatal("expected persist error")
	}
	xp, _ := store.GetXP(ctx, "carol")
	events, _ := store.ListXPEvents(ctx, "carol")
	if xp != 0 || len(events) != 0 {
		t.Fatalf("expected rollback, got xp=%d events=%d", xp, len(events))
	}
}

func TestNewRejectsCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := New(path); err == nil {
		t.Fatal("expected error for corrupt file")
	}
}
