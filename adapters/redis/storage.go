package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"rewardkit/core"
)

// Config holds Redis connection configuration
type Config struct {
	Addr         string        `json:"addr" env:"REWARDKIT_REDIS_ADDR"`
	Password     string        `json:"password" env:"REWARDKIT_REDIS_PASSWORD"`
	DB           int           `json:"db" env:"REWARDKIT_REDIS_DB"`
	PoolSize     int           `json:"pool_size" env:"REWARDKIT_REDIS_POOL_SIZE"`
	MinIdleConns int           `json:"min_idle_conns" env:"REWARDKIT_REDIS_MIN_IDLE_CONNS"`
	DialTimeout  time.Duration `json:"dial_timeout" env:"REWARDKIT_REDIS_DIAL_TIMEOUT"`
	ReadTimeout  time.Duration `json:"read_timeout" env:"REWARDKIT_REDIS_READ_TIMEOUT"`
	WriteTimeout time.Duration `json:"write_timeout" env:"REWARDKIT_REDIS_WRITE_TIMEOUT"`
}

// DefaultConfig returns sensible defaults for Redis configuration
func DefaultConfig() Config {
	return Config{
		Addr:         "localhost:6379",
		Password:     "",
		DB:           0,
		PoolSize:     10,
		MinIdleConns: 2,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	}
}

// Store implements engine.Store on Redis.
// Data structure:
// - user:{user_id}:xp -> int64 cumulative XP
// - user:{user_id}:xp_events -> list of JSON XP events, oldest first
// - user:{user_id}:badges -> hash badge -> awarded_at (RFC 3339)
// - user:{user_id}:activity -> hash counter -> int64
// - user:{user_id}:notifications -> hash id -> JSON notification
// - user:{user_id}:notifications:order -> list of ids, newest first
type Store struct {
	client *redis.Client
	now    func() time.Time
}

// New creates a new Redis-backed storage with the provided configuration
func New(config Config) (*Store, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         config.Addr,
		Password:     config.Password,
		DB:           config.DB,
		PoolSize:     config.PoolSize,
		MinIdleConns: config.MinIdleConns,
		DialTimeout:  config.DialTimeout,
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return NewWithClient(client), nil
}

// NewWithClient creates a Store using an existing Redis client (useful for testing)
func NewWithClient(client *redis.Client) *Store {
	return &Store{client: client, now: time.Now}
}

// Close closes the Redis connection
func (s *Store) Close() error {
	return s.client.Close()
}

// Ping reports whether Redis is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func userKey(userID core.UserID, suffix string) string {
	return fmt.Sprintf("user:%s:%s", userID, suffix)
}

// addXPScript increments the total and appends the pre-encoded event in one
// step. INCRBY fails on overflow before the event is pushed.
var addXPScript = redis.NewScript(`
	local total = redis.call('INCRBY', KEYS[1], ARGV[1])
	redis.call('RPUSH', KEYS[2], ARGV[2])
	return total
`)

// AddXP atomically increments XP and appends the event.
func (s *Store) AddXP(ctx context.Context, userID core.UserID, amount int64, reason string) (core.XPEvent, int64, error) {
	ev := core.XPEvent{
		ID:        uuid.NewString(),
		UserID:    userID,
		Amount:    amount,
		Reason:    reason,
		CreatedAt: s.now().UTC(),
	}
	data, err := json.Marshal(ev)
	if err != nil {
		return core.XPEvent{}, 0, fmt.Errorf("failed to encode xp event: %w", err)
	}
	keys := []string{userKey(userID, "xp"), userKey(userID, "xp_events")}
	result, err := addXPScript.Run(ctx, s.client, keys, amount, data).Result()
	if err != nil {
		return core.XPEvent{}, 0, fmt.Errorf("failed to add xp: %w", err)
	}
	total, ok := result.(int64)
	if !ok {
		return core.XPEvent{}, 0, errors.New("unexpected result type from Redis script")
	}
	return ev, total, nil
}

func (s *Store) GetXP(ctx context.Context, userID core.UserID) (int64, error) {
	total, err := s.client.Get(ctx, userKey(userID, "xp")).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to get xp: %w", err)
	}
	return total, nil
}

func (s *Store) ListXPEvents(ctx context.Context, userID core.UserID) ([]core.XPEvent, error) {
	raw, err := s.client.LRange(ctx, userKey(userID, "xp_events"), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list xp events: %w", err)
	}
	out := make([]core.XPEvent, 0, len(raw))
	for _, item := range raw {
		var ev core.XPEvent
		if err := json.Unmarshal([]byte(item), &ev); err != nil {
			return nil, fmt.Errorf("failed to decode xp event: %w", err)
		}
		out = append(out, ev)
	}
	return out, nil
}

// InsertBadgeAward relies on HSETNX for (user, badge) uniqueness.
func (s *Store) InsertBadgeAward(ctx context.Context, award core.BadgeAward) (bool, error) {
	inserted, err := s.client.HSetNX(ctx, userKey(award.UserID, "badges"),
		string(award.Badge), award.AwardedAt.UTC().Format(time.RFC3339Nano)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to award badge: %w", err)
	}
	return inserted, nil
}

func (s *Store) ListBadgeAwards(ctx context.Context, userID core.UserID) ([]core.BadgeAward, error) {
	raw, err := s.client.HGetAll(ctx, userKey(userID, "badges")).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list badges: %w", err)
	}
	out := make([]core.BadgeAward, 0, len(raw))
	for badge, at := range raw {
		awardedAt, err := time.Parse(time.RFC3339Nano, at)
		if err != nil {
			return nil, fmt.Errorf("failed to decode badge %s: %w", badge, err)
		}
		out = append(out, core.BadgeAward{UserID: userID, Badge: core.BadgeKey(badge), AwardedAt: awardedAt})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].AwardedAt.Equal(out[j].AwardedAt) {
			return out[i].Badge < out[j].Badge
		}
		return out[i].AwardedAt.Before(out[j].AwardedAt)
	})
	return out, nil
}

func (s *Store) IncrementActivity(ctx context.Context, userID core.UserID, kind core.ActivityKind) (int64, error) {
	counter := kind.Counter()
	if counter == "" {
		return 0, fmt.Errorf("%w: %q", core.ErrInvalidActivity, kind)
	}
	n, err := s.client.HIncrBy(ctx, userKey(userID, "activity"), string(counter), 1).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to increment activity: %w", err)
	}
	return n, nil
}

func (s *Store) GetStats(ctx context.Context, userID core.UserID) (core.Stats, error) {
	var (
		activity *redis.MapStringStringCmd
		xp       *redis.StringCmd
	)
	_, err := s.client.Pipelined(ctx, func(p redis.Pipeliner) error {
		activity = p.HGetAll(ctx, userKey(userID, "activity"))
		xp = p.Get(ctx, userKey(userID, "xp"))
		return nil
	})
	if err != nil && !errors.Is(err, redis.Nil) {
		return core.Stats{}, fmt.Errorf("failed to load stats: %w", err)
	}
	var st core.Stats
	for field, val := range activity.Val() {
		n, err := strconv.ParseInt(val, 10, 64)
		if err != nil {
			return core.Stats{}, fmt.Errorf("failed to decode counter %s: %w", field, err)
		}
		switch core.Counter(field) {
		case core.CounterSignups:
			st.Signups = n
		case core.CounterGamesSubmitted:
			st.GamesSubmitted = n
		case core.CounterVotesCast:
			st.VotesCast = n
		case core.CounterComments:
			st.CommentsPosted = n
		}
	}
	if total, err := xp.Int64(); err == nil {
		st.XP = total
	} else if !errors.Is(err, redis.Nil) {
		return core.Stats{}, fmt.Errorf("failed to load xp: %w", err)
	}
	return st, nil
}

func (s *Store) InsertNotification(ctx context.Context, n core.Notification) error {
	data, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("failed to encode notification: %w", err)
	}
	_, err = s.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.HSet(ctx, userKey(n.UserID, "notifications"), n.ID, data)
		p.LPush(ctx, userKey(n.UserID, "notifications:order"), n.ID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to store notification: %w", err)
	}
	return nil
}

func (s *Store) ListNotifications(ctx context.Context, userID core.UserID, unreadOnly bool) ([]core.Notification, error) {
	ids, err := s.client.LRange(ctx, userKey(userID, "notifications:order"), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}
	out := make([]core.Notification, 0, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	vals, err := s.client.HMGet(ctx, userKey(userID, "notifications"), ids...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load notifications: %w", err)
	}
	for _, v := range vals {
		raw, ok := v.(string)
		if !ok {
			continue
		}
		var n core.Notification
		if err := json.Unmarshal([]byte(raw), &n); err != nil {
			return nil, fmt.Errorf("failed to decode notification: %w", err)
		}
		if unreadOnly && n.Read {
			continue
		}
		out = append(out, n)
	}
	return out, nil
}

func (s *Store) MarkNotificationRead(ctx context.Context, userID core.UserID, id string) error {
	key := userKey(userID, "notifications")
	raw, err := s.client.HGet(ctx, key, id).Result()
	if errors.Is(err, redis.Nil) {
		return fmt.Errorf("notification %s: %w", id, core.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("failed to load notification: %w", err)
	}
	var n core.Notification
	if err := json.Unmarshal([]byte(raw), &n); err != nil {
		return fmt.Errorf("failed to decode notification: %w", err)
	}
	if n.Read {
		return nil
	}
	n.Read = true
	data, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("failed to encode notification: %w", err)
	}
	if err := s.client.HSet(ctx, key, id, data).Err(); err != nil {
		return fmt.Errorf("failed to update notification: %w", err)
	}
	return nil
}
