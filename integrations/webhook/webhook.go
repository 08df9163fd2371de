package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"rewardkit/core"
	"rewardkit/engine"
)

// Sink posts domain events to configured HTTP endpoints.
// It is synchronous for determinism; attach it to an async bus to keep
// publishers off the network path.
type Sink struct {
	client    *http.Client
	endpoints []string
	types     map[core.EventType]bool
	log       *slog.Logger
	failures  atomic.Int64
}

// Option configures a Sink.
type Option func(*Sink)

// WithClient overrides the HTTP client (defaults to 2s timeout).
func WithClient(c *http.Client) Option {
	return func(s *Sink) {
		if c != nil {
			s.client = c
		}
	}
}

// WithLogger sets the logger used for delivery failures.
func WithLogger(l *slog.Logger) Option {
	return func(s *Sink) {
		if l != nil {
			s.log = l
		}
	}
}

// WithEventTypes limits delivery to the given event types.
func WithEventTypes(types ...core.EventType) Option {
	return func(s *Sink) {
		s.types = make(map[core.EventType]bool, len(types))
		for _, t := range types {
			s.types[t] = true
		}
	}
}

// New creates a webhook sink.
func New(endpoints []string, opts ...Option) *Sink {
	s := &Sink{
		client: &http.Client{Timeout: 2 * time.Second},
		log:    slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.endpoints = append([]string{}, endpoints...)
	return s
}

// OnEvent posts the event JSON to all endpoints. Delivery is best effort:
// failures are logged and counted, never retried.
func (s *Sink) OnEvent(ctx context.Context, e core.Event) {
	if len(s.endpoints) == 0 || (s.types != nil && !s.types[e.Type]) {
		return
	}
	body, err := json.Marshal(e)
	if err != nil {
		s.log.Error("webhook encode failed", "type", e.Type, "error", err)
		return
	}
	for _, ep := range s.endpoints {
		if err := s.post(ctx, ep, body); err != nil {
			s.failures.Add(1)
			s.log.Warn("webhook delivery failed", "endpoint", ep, "type", e.Type, "user_id", e.UserID, "error", err)
		}
	}
}

func (s *Sink) post(ctx context.Context, endpoint string, body []byte) error {
	// detached from the publisher's cancellation, bounded by the client timeout
	req, err := http.NewRequestWithContext(context.WithoutCancel(ctx), http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return nil
}

// Failures returns the number of failed deliveries.
func (s *Sink) Failures() int64 { return s.failures.Load() }

// Attach subscribes the sink to every bus event. The returned func detaches it.
func (s *Sink) Attach(bus *engine.EventBus) func() {
	return bus.SubscribeAll(s.OnEvent)
}
