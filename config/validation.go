package config

import (
	"errors"
	"fmt"
	"net/url"
	"slices"
	"strings"
	"time"
)

// problems accumulates validation failures for one section.
type problems []string

func (p *problems) addf(format string, args ...any) { *p = append(*p, fmt.Sprintf(format, args...)) }

func (p *problems) oneOf(name, value string, allowed ...string) {
	if !slices.Contains(allowed, value) {
		p.addf("%s must be one of: %s", name, strings.Join(allowed, ", "))
	}
}

func (p *problems) positive(name string, d time.Duration) {
	if d <= 0 {
		p.addf("%s must be positive", name)
	}
}

func (p *problems) nested(name string, err error) {
	if err != nil {
		p.addf("%s: %v", name, err)
	}
}

func (p problems) err() error {
	if len(p) == 0 {
		return nil
	}
	return errors.New(strings.Join(p, "; "))
}

// Validate validates server configuration
func (s *ServerConfig) Validate() error {
	var p problems
	if s.Address == "" {
		p.addf("address cannot be empty")
	}
	p.positive("read_timeout", s.ReadTimeout)
	p.positive("write_timeout", s.WriteTimeout)
	p.positive("idle_timeout", s.IdleTimeout)
	p.positive("read_header_timeout", s.ReadHeaderTimeout)
	p.positive("shutdown_timeout", s.ShutdownTimeout)
	return p.err()
}

// Validate validates storage configuration and the selected adapter's section
func (s *StorageConfig) Validate() error {
	var p problems
	p.oneOf("adapter", s.Adapter, "memory", "redis", "sql", "file")

	switch s.Adapter {
	case "redis":
		if s.Redis.Addr == "" {
			p.addf("redis config: addr cannot be empty")
		}
	case "sql":
		p.nested("sql config", s.SQL.Validate())
	case "file":
		p.nested("file config", s.File.Validate())
	}
	return p.err()
}

// Validate validates file storage configuration
func (f *FileConfig) Validate() error {
	if f.Path == "" {
		return errors.New("path cannot be empty")
	}
	return nil
}

// Validate validates logging configuration
func (l *LoggingConfig) Validate() error {
	var p problems
	p.oneOf("level", l.Level, "debug", "info", "warn", "error")
	p.oneOf("format", l.Format, "json", "text")
	p.oneOf("output", l.Output, "stdout", "stderr")
	return p.err()
}

// Validate validates metrics configuration
func (m *MetricsConfig) Validate() error {
	if !m.Enabled {
		return nil
	}
	var p problems
	if m.Address == "" {
		p.addf("address cannot be empty when metrics are enabled")
	}
	if !strings.HasPrefix(m.Path, "/") {
		p.addf("path must start with / when metrics are enabled")
	}
	return p.err()
}

// Validate rejects blank API keys
func (s SecurityConfig) Validate() error {
	var p problems
	for i, key := range s.APIKeys {
		if strings.TrimSpace(key) == "" {
			p.addf("api_keys[%d] is empty", i)
		}
	}
	return p.err()
}

// Validate rejects negative rewards; XP is never removed.
func (r *RewardsConfig) Validate() error {
	var p problems
	for _, f := range []struct {
		name string
		v    int64
	}{
		{"signup", r.Signup},
		{"game_submitted", r.GameSubmitted},
		{"vote_cast", r.VoteCast},
		{"comment_posted", r.CommentPosted},
	} {
		if f.v < 0 {
			p.addf("%s must not be negative", f.name)
		}
	}
	return p.err()
}

// Validate validates the dispatch mode. Empty means async.
func (e *EngineConfig) Validate() error {
	var p problems
	if e.DispatchMode != "" {
		p.oneOf("dispatch_mode", e.DispatchMode, "sync", "async")
	}
	return p.err()
}

// Validate validates webhook settings
func (i *IntegrationsConfig) Validate() error {
	var p problems
	for idx, raw := range i.WebhookURLs {
		u, err := url.Parse(raw)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			p.addf("webhook_urls[%d] must be an absolute http(s) URL", idx)
		}
	}
	if len(i.WebhookURLs) > 0 {
		p.positive("webhook_timeout", i.WebhookTimeout)
	}
	return p.err()
}
