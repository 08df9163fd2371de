package sdk

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"rewardkit/core"
)

// Option configures the Client.
type Option func(*Client)

// Client provides typed access to the rewardkit HTTP + WebSocket API.
type Client struct {
	baseURL    string
	wsURL      string
	httpClient *http.Client
	headers    http.Header
}

// NewClient constructs a new SDK client targeting the given baseURL (e.g., http://localhost:8080/api).
func NewClient(baseURL string, opts ...Option) (*Client, error) {
	if strings.TrimSpace(baseURL) == "" {
		return nil, errors.New("baseURL is required")
	}
	baseURL = strings.TrimSuffix(baseURL, "/")

	c := &Client{
		baseURL:    baseURL,
		wsURL:      deriveWSURL(baseURL),
		httpClient: http.DefaultClient,
		headers:    make(http.Header),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		if h != nil {
			c.httpClient = h
		}
	}
}

// WithAuthToken adds an Authorization: Bearer token header to all requests (HTTP + WS).
func WithAuthToken(token string) Option {
	return func(c *Client) {
		if strings.TrimSpace(token) != "" {
			c.headers.Set("Authorization", "Bearer "+token)
		}
	}
}

// WithAPIKey adds an X-API-Key header.
func WithAPIKey(key string) Option {
	return func(c *Client) {
		if strings.TrimSpace(key) != "" {
			c.headers.Set("X-API-Key", key)
		}
	}
}

// WithHeader sets an arbitrary header applied to HTTP and WS calls.
func WithHeader(k, v string) Option {
	return func(c *Client) {
		if k != "" {
			c.headers.Set(k, v)
		}
	}
}

// GrantXP adds amount XP to a user and reports the level change.
func (c *Client) GrantXP(ctx context.Context, userID string, amount int64, reason string) (GrantResult, error) {
	q := url.Values{}
	q.Set("amount", strconv.FormatInt(amount, 10))
	if reason != "" {
		q.Set("reason", reason)
	}
	var res GrantResult
	err := c.userCall(ctx, http.MethodPost, userID, "/xp", q, &res)
	return res, err
}

// RecordActivity reports a user action such as "vote_cast".
func (c *Client) RecordActivity(ctx context.Context, userID, kind string) (ActivityResult, error) {
	var res ActivityResult
	err := c.userCall(ctx, http.MethodPost, userID, "/activities/"+url.PathEscape(kind), nil, &res)
	return res, err
}

// EvaluateBadges awards every badge the user newly qualifies for.
func (c *Client) EvaluateBadges(ctx context.Context, userID string) ([]core.BadgeKey, error) {
	var body struct {
		Awarded []core.BadgeKey `json:"awarded"`
	}
	err := c.userCall(ctx, http.MethodPost, userID, "/badges/evaluate", nil, &body)
	return body.Awarded, err
}

// ClaimBadge asks for one badge. A claim the user does not qualify for is
// not an error; inspect Success and Reason.
func (c *Client) ClaimBadge(ctx context.Context, userID, badge string) (ClaimResult, error) {
	var res ClaimResult
	err := c.userCall(ctx, http.MethodPost, userID, "/badges/"+url.PathEscape(badge)+"/claim", nil, &res)
	return res, err
}

// GetProfile fetches XP, level progress, counters and badges for a user.
func (c *Client) GetProfile(ctx context.Context, userID string) (Profile, error) {
	var p Profile
	err := c.userCall(ctx, http.MethodGet, userID, "", nil, &p)
	return p, err
}

// ListXPEvents returns the user's XP history.
func (c *Client) ListXPEvents(ctx context.Context, userID string) ([]XPEvent, error) {
	var events []XPEvent
	err := c.userCall(ctx, http.MethodGet, userID, "/xp/events", nil, &events)
	return events, err
}

// ListNotifications returns the user's outbox, newest first.
func (c *Client) ListNotifications(ctx context.Context, userID string, unreadOnly bool) ([]Notification, error) {
	var q url.Values
	if unreadOnly {
		q = url.Values{"unread": {"true"}}
	}
	var list []Notification
	err := c.userCall(ctx, http.MethodGet, userID, "/notifications", q, &list)
	return list, err
}

// MarkNotificationRead flags one notification as read.
func (c *Client) MarkNotificationRead(ctx context.Context, userID, id string) error {
	return c.userCall(ctx, http.MethodPost, userID, "/notifications/"+url.PathEscape(id)+"/read", nil, nil)
}

// LevelProgress computes level progress for an XP total on the server.
func (c *Client) LevelProgress(ctx context.Context, totalXP int64) (LevelProgress, error) {
	var lp LevelProgress
	err := c.call(ctx, http.MethodGet, "/levels/"+strconv.FormatInt(totalXP, 10), nil, &lp)
	return lp, err
}

func (c *Client) userCall(ctx context.Context, method, userID, suffix string, q url.Values, out any) error {
	if strings.TrimSpace(userID) == "" {
		return ErrEmptyUserID
	}
	return c.call(ctx, method, "/users/"+url.PathEscape(userID)+suffix, q, out)
}

func (c *Client) call(ctx context.Context, method, path string, q url.Values, out any) error {
	u := c.baseURL + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, u, nil)
	if err != nil {
		return err
	}
	c.applyHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return decodeJSON(resp, out)
}

// Health probes /healthz and returns status + storage check.
func (c *Client) Health(ctx context.Context) (HealthStatus, error) {
	u := c.baseURL + "/healthz"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return HealthStatus{}, err
	}
	c.applyHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return HealthStatus{}, err
	}
	defer resp.Body.Close()

	var hs HealthStatus
	if err := decodeJSON(resp, &hs); err != nil {
		return HealthStatus{}, err
	}
	return hs, nil
}

// SubscribeEvents connects to the WebSocket stream and emits core.Event values.
// A non-empty userID limits the stream to that user's events.
// The returned channel closes when ctx is done or the connection drops.
func (c *Client) SubscribeEvents(ctx context.Context, userID string) (<-chan core.Event, error) {
	if c.wsURL == "" {
		return nil, errors.New("wsURL is not set; ensure baseURL is http/https")
	}
	target := c.wsURL
	if userID != "" {
		target += "?" + url.Values{"user": {userID}}.Encode()
	}
	dialer := websocket.Dialer{
		HandshakeTimeout: 5 * time.Second,
	}
	conn, _, err := dialer.DialContext(ctx, target, c.headers)
	if err != nil {
		return nil, err
	}

	out := make(chan core.Event, 32)
	go func() {
		defer close(out)
		defer conn.Close()
		for {
			select {
			case <-ctx.Done():
				return
			default:
				var evt core.Event
				if err := conn.ReadJSON(&evt); err != nil {
					return
				}
				select {
				case out <- evt:
				default:
					// drop if consumer is slow
				}
			}
		}
	}()
	return out, nil
}

func (c *Client) applyHeaders(r *http.Request) {
	for k, vals := range c.headers {
		for _, v := range vals {
			r.Header.Add(k, v)
		}
	}
}

func deriveWSURL(httpBase string) string {
	u, err := url.Parse(httpBase)
	if err != nil {
		return ""
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	case "http":
		u.Scheme = "ws"
	default:
		// leave as-is for custom schemes
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + "/ws"
	return u.String()
}
