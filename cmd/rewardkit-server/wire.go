//go:build wireinject
// +build wireinject

package main

import (
	"context"

	"github.com/google/wire"
)

// BuildApp wires the server components using Google Wire.
func BuildApp(ctx context.Context) (*App, func(), error) {
	wire.Build(
		provideConfig,
		provideLogger,
		provideHub,
		provideLeaderboard,
		provideMetrics,
		provideStorage,
		provideService,
		provideHandler,
		provideServer,
		provideMetricsServer,
		newApp,
	)
	return nil, nil, nil
}
