package analytics

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"rewardkit/core"
	"rewardkit/engine"
)

// Collector turns progression events into Prometheus metrics on its own
// registry.
type Collector struct {
	registry  *prometheus.Registry
	namespace string

	xpGranted     *prometheus.CounterVec
	xpGrants      *prometheus.CounterVec
	levelUps      prometheus.Counter
	levelReached  prometheus.Histogram
	badgesAwarded *prometheus.CounterVec
	notifications *prometheus.CounterVec

	active *ActiveUsers
	now    func() time.Time
}

// NewCollector registers the progression metrics under namespace.
// collectSystem adds the Go runtime and process collectors.
func NewCollector(namespace string, collectSystem bool) *Collector {
	if namespace == "" {
		namespace = "rewardkit"
	}
	c := &Collector{
		registry:  prometheus.NewRegistry(),
		namespace: namespace,
		active:    NewActiveUsers(),
		now:       time.Now,
	}

	c.xpGranted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "xp",
			Name:      "granted_total",
			Help:      "Total XP granted, by source",
		},
		[]string{"source"},
	)
	c.xpGrants = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "xp",
			Name:      "grants_total",
			Help:      "Number of XP grants, by source",
		},
		[]string{"source"},
	)
	c.levelUps = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "levels",
		Name:      "level_ups_total",
		Help:      "Number of level-up events",
	})
	c.levelReached = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "levels",
		Name:      "reached",
		Help:      "Distribution of levels reached on level-up",
		Buckets:   prometheus.ExponentialBuckets(2, 2, 8), // 2 to 256
	})
	c.badgesAwarded = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "badges",
			Name:      "awarded_total",
			Help:      "Badges awarded, by badge",
		},
		[]string{"badge"},
	)
	c.notifications = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "notifications",
			Name:      "created_total",
			Help:      "Notifications written to the outbox, by type",
		},
		[]string{"type"},
	)

	c.registry.MustRegister(c.xpGranted, c.xpGrants, c.levelUps, c.levelReached, c.badgesAwarded, c.notifications)
	c.registry.MustRegister(
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "users", Name: "active_daily",
			Help: "Distinct users with progression events today (UTC)",
		}, func() float64 { return float64(c.active.Daily(c.now())) }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "users", Name: "active_weekly",
			Help: "Distinct users with progression events this ISO week",
		}, func() float64 { return float64(c.active.Weekly(c.now())) }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "users", Name: "active_monthly",
			Help: "Distinct users with progression events this month",
		}, func() float64 { return float64(c.active.Monthly(c.now())) }),
	)
	if collectSystem {
		c.registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}
	return c
}

// OnEvent records one domain event.
func (c *Collector) OnEvent(ctx context.Context, e core.Event) {
	c.active.OnEvent(ctx, e)
	switch e.Type {
	case core.EventXPGranted:
		src := sourceLabel(e.Reason)
		c.xpGranted.WithLabelValues(src).Add(float64(e.Delta))
		c.xpGrants.WithLabelValues(src).Inc()
	case core.EventLevelUp:
		c.levelUps.Inc()
		c.levelReached.Observe(float64(e.Level))
	case core.EventBadgeAwarded:
		c.badgesAwarded.WithLabelValues(string(e.Badge)).Inc()
	case core.EventNotificationCreated:
		if e.Notification != nil {
			c.notifications.WithLabelValues(string(e.Notification.Type)).Inc()
		}
	}
}

// Attach subscribes the collector to every bus event.
func (c *Collector) Attach(bus *engine.EventBus) func() {
	return bus.SubscribeAll(c.OnEvent)
}

// GaugeFunc exposes a value sampled at scrape time, such as dropped events.
func (c *Collector) GaugeFunc(name, help string, fn func() float64) {
	c.registry.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: c.namespace,
		Name:      name,
		Help:      help,
	}, fn))
}

// Registry returns the underlying registry.
func (c *Collector) Registry() *prometheus.Registry { return c.registry }

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}

// sourceLabel bounds label cardinality: badge rewards collapse to "badge",
// activity rewards keep their kind, anything else is "manual".
func sourceLabel(reason string) string {
	if strings.HasPrefix(reason, "badge:") {
		return "badge"
	}
	if kind, err := core.ParseActivityKind(reason); err == nil {
		return string(kind)
	}
	return "manual"
}
