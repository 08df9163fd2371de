package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"time"

	"rewardkit/api/httpapi"
	"rewardkit/core"
	"rewardkit/engine"
	"rewardkit/leaderboard"
	"rewardkit/progression"
	"rewardkit/realtime"
)

func main() {
	// Use readable text logging for development/demo
	textHandler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})
	log := slog.New(textHandler)
	slog.SetDefault(log)

	ctx := context.Background()
	hub := realtime.NewHub()
	svc := progression.New(
		progression.WithRealtime(hub),
		progression.WithLogger(log),
		progression.WithDispatchMode(engine.DispatchSync),
	)
	defer svc.Close()

	if err := seed(ctx, svc); err != nil {
		log.Error("seeding demo data failed", "error", err)
		os.Exit(1)
	}

	board := leaderboard.NewTracker()
	now := time.Now().UTC()
	for _, s := range []leaderboard.Subject{
		{ID: "pixel-raiders", Votes: 120, Follows: 40, Clicks: 900, CreatedAt: now.Add(-2 * time.Hour)},
		{ID: "tiny-farm", Votes: 300, Follows: 80, Clicks: 2000, CreatedAt: now.Add(-72 * time.Hour)},
		{ID: "neon-drift", Votes: 15, Follows: 2, Clicks: 50, CreatedAt: now},
	} {
		_ = board.Upsert(s)
	}

	handler := httpapi.NewMux(svc, hub, httpapi.Options{
		AllowCORSOrigin: "*",
		Leaderboard:     board,
		Logger:          log,
	})

	log.Info("starting demo server on :8080",
		"try", "curl -X POST localhost:8080/users/demo/activities/vote_cast")

	srv := &http.Server{Addr: ":8080", Handler: handler, ReadHeaderTimeout: 5 * time.Second}
	if err := srv.ListenAndServe(); err != nil {
		log.Error("demo server crashed", "error", err)
		os.Exit(1)
	}
}

// seed walks a new player through signup and three votes, which unlocks
// WELCOME and EXPLORER.
func seed(ctx context.Context, svc *engine.ProgressionService) error {
	const player core.UserID = "demo"
	if _, err := svc.RecordActivity(ctx, player, core.ActivitySignup); err != nil {
		return err
	}
	for i := 0; i < 3; i++ {
		if _, err := svc.RecordActivity(ctx, player, core.ActivityVoteCast); err != nil {
			return err
		}
	}
	p, err := svc.GetProfile(ctx, player)
	if err != nil {
		return err
	}
	slog.Info("demo player ready",
		"user_id", p.UserID,
		"xp", p.XP,
		"level", p.Progress.Level,
		"badges", len(p.Badges))
	return nil
}
