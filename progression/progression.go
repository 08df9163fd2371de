// Package progression assembles a ready-to-use ProgressionService from
// functional options.
package progression

import (
	"log/slog"
	"net/http"
	"time"

	mem "rewardkit/adapters/memory"
	"rewardkit/analytics"
	"rewardkit/core"
	"rewardkit/engine"
	"rewardkit/integrations/webhook"
	"rewardkit/realtime"
)

// Option configures the service builder.
type Option func(*config)

type config struct {
	store    engine.Store
	mode     engine.DispatchMode
	registry *core.Registry
	rewards  engine.ActivityRewards
	log      *slog.Logger
	hub      *realtime.Hub
	webhooks []string
	timeout  time.Duration
	metrics  *analytics.Collector
}

// WithStore sets the persistence adapter.
func WithStore(s engine.Store) Option { return func(c *config) { c.store = s } }

// WithRegistry sets the badge catalogue.
func WithRegistry(r *core.Registry) Option { return func(c *config) { c.registry = r } }

// WithRewards sets the XP paid per activity.
func WithRewards(r engine.ActivityRewards) Option { return func(c *config) { c.rewards = r } }

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option { return func(c *config) { c.log = l } }

// WithDispatchMode selects sync or async event dispatch.
func WithDispatchMode(m engine.DispatchMode) Option { return func(c *config) { c.mode = m } }

// WithRealtime wires a realtime hub to receive all engine events.
func WithRealtime(h *realtime.Hub) Option { return func(c *config) { c.hub = h } }

// WithWebhooks posts every engine event to the given URLs.
func WithWebhooks(urls ...string) Option {
	return func(c *config) { c.webhooks = append(c.webhooks, urls...) }
}

// WithWebhookTimeout bounds each webhook delivery.
func WithWebhookTimeout(d time.Duration) Option { return func(c *config) { c.timeout = d } }

// WithMetrics feeds engine events into a Prometheus collector.
func WithMetrics(m *analytics.Collector) Option { return func(c *config) { c.metrics = m } }

// New builds a configured ProgressionService. If not provided, defaults are used:
//   - store: in-memory
//   - badges: core.DefaultRegistry
//   - rewards: engine.DefaultActivityRewards
//   - dispatch: async
func New(opts ...Option) *engine.ProgressionService {
	cfg := &config{mode: engine.DispatchAsync}
	for _, o := range opts {
		o(cfg)
	}
	if cfg.store == nil {
		cfg.store = mem.New()
	}
	if cfg.log == nil {
		cfg.log = slog.Default()
	}
	bus := engine.NewEventBus(cfg.mode, engine.WithBusLogger(cfg.log))
	svc := engine.NewProgressionService(cfg.store, bus, engine.Options{
		Registry: cfg.registry,
		Rewards:  cfg.rewards,
		Logger:   cfg.log,
	})
	if cfg.hub != nil {
		cfg.hub.Attach(bus)
	}
	var sink *webhook.Sink
	if len(cfg.webhooks) > 0 {
		wopts := []webhook.Option{webhook.WithLogger(cfg.log)}
		if cfg.timeout > 0 {
			wopts = append(wopts, webhook.WithClient(&http.Client{Timeout: cfg.timeout}))
		}
		sink = webhook.New(cfg.webhooks, wopts...)
		sink.Attach(bus)
	}
	if cfg.metrics != nil {
		cfg.metrics.Attach(bus)
		cfg.metrics.GaugeFunc("notifications_dropped", "Notifications that failed to persist",
			func() float64 { return float64(svc.Notifier().Failures()) })
		cfg.metrics.GaugeFunc("events_dropped", "Async events dropped on a full queue",
			func() float64 { return float64(bus.Dropped()) })
		cfg.metrics.GaugeFunc("handler_panics", "Event handler panics recovered by the bus",
			func() float64 { return float64(bus.Panics()) })
		if sink != nil {
			cfg.metrics.GaugeFunc("webhook_failures", "Webhook deliveries that failed",
				func() float64 { return float64(sink.Failures()) })
		}
		if cfg.hub != nil {
			cfg.metrics.GaugeFunc("realtime_dropped", "Events dropped for slow realtime subscribers",
				func() float64 { return float64(cfg.hub.Dropped()) })
		}
	}
	return svc
}
