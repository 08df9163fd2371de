package httpapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	wsadapter "rewardkit/adapters/websocket"
	"rewardkit/core"
	"rewardkit/engine"
	"rewardkit/leaderboard"
	"rewardkit/realtime"
)

// Options configures the HTTP API surface.
type Options struct {
	// PathPrefix, if set, is prepended to all routes (e.g., "/api").
	PathPrefix string
	// AllowCORSOrigin, if non-empty, enables basic CORS with the given origin (use "*" for any).
	AllowCORSOrigin string
	// APIKeys, if non-empty, enables static API key auth via Authorization: Bearer or X-API-Key.
	APIKeys []string
	// Leaderboard backs the ranking routes. A fresh tracker is used when nil.
	Leaderboard *leaderboard.Tracker
	Logger      *slog.Logger
}

const defaultLeaderboardLimit = 10

type api struct {
	svc   *engine.ProgressionService
	board *leaderboard.Tracker
	log   *slog.Logger
}

// NewMux builds an http.Handler exposing the progression REST API and WebSocket stream.
// Routes:
//   - POST {prefix}/users/{id}/xp?amount=50&reason=bonus
//   - POST {prefix}/users/{id}/activities/{kind}
//   - POST {prefix}/users/{id}/badges/evaluate
//   - POST {prefix}/users/{id}/badges/{badge}/claim
//   - POST {prefix}/admin/users/{id}/badges
//   - GET  {prefix}/users/{id}
//   - GET  {prefix}/users/{id}/xp/events
//   - GET  {prefix}/users/{id}/notifications?unread=true
//   - POST {prefix}/users/{id}/notifications/{nid}/read
//   - GET  {prefix}/levels/{xp}
//   - GET  {prefix}/leaderboard/score?votes=&follows=&clicks=&age_hours=
//   - POST {prefix}/leaderboard/subjects
//   - GET  {prefix}/leaderboard/subjects/{sid}
//   - GET  {prefix}/leaderboard?limit=10
//   - GET  {prefix}/healthz
//   - WS   {prefix}/ws
func NewMux(svc *engine.ProgressionService, hub *realtime.Hub, opts Options) http.Handler {
	a := &api{svc: svc, board: opts.Leaderboard, log: opts.Logger}
	if a.board == nil {
		a.board = leaderboard.NewTracker()
	}
	if a.log == nil {
		a.log = slog.Default()
	}

	mux := http.NewServeMux()
	route := func(method, path string, h http.HandlerFunc) {
		mux.HandleFunc(method+" "+withPrefix(opts.PathPrefix, path), h)
	}

	route(http.MethodGet, "/healthz", a.healthCheck)
	if hub != nil {
		mux.Handle(http.MethodGet+" "+withPrefix(opts.PathPrefix, "/ws"), wsadapter.Handler(hub, a.log))
	}

	route(http.MethodPost, "/users/{id}/xp", a.grantXP)
	route(http.MethodPost, "/users/{id}/activities/{kind}", a.recordActivity)
	route(http.MethodPost, "/users/{id}/badges/evaluate", a.evaluateBadges)
	route(http.MethodPost, "/users/{id}/badges/{badge}/claim", a.claimBadge)
	route(http.MethodPost, "/admin/users/{id}/badges", a.awardAll)
	route(http.MethodGet, "/users/{id}", a.getProfile)
	route(http.MethodGet, "/users/{id}/xp/events", a.listXPEvents)
	route(http.MethodGet, "/users/{id}/notifications", a.listNotifications)
	route(http.MethodPost, "/users/{id}/notifications/{nid}/read", a.markRead)

	route(http.MethodGet, "/levels/{xp}", a.levelProgress)
	route(http.MethodGet, "/leaderboard/score", a.score)
	route(http.MethodPost, "/leaderboard/subjects", a.upsertSubject)
	route(http.MethodGet, "/leaderboard/subjects/{sid}", a.rank)
	route(http.MethodGet, "/leaderboard", a.top)

	var handler http.Handler = mux
	if opts.AllowCORSOrigin != "" {
		handler = withCORS(handler, opts.AllowCORSOrigin)
	}
	if len(opts.APIKeys) > 0 {
		handler = withAPIKeyAuth(handler, opts.APIKeys)
	}
	return handler
}

func (a *api) grantXP(w http.ResponseWriter, r *http.Request) {
	amount, err := strconv.ParseInt(r.URL.Query().Get("amount"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_amount", "amount must be an integer", nil)
		return
	}
	res, err := a.svc.GrantXP(r.Context(), pathUser(r), amount, r.URL.Query().Get("reason"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, res)
}

func (a *api) recordActivity(w http.ResponseWriter, r *http.Request) {
	kind, err := core.ParseActivityKind(r.PathValue("kind"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	res, err := a.svc.RecordActivity(r.Context(), pathUser(r), kind)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, res)
}

func (a *api) evaluateBadges(w http.ResponseWriter, r *http.Request) {
	awarded, err := a.svc.EvaluateBadges(r.Context(), pathUser(r))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	if awarded == nil {
		awarded = []core.BadgeKey{}
	}
	writeJSON(w, map[string]any{"awarded": awarded})
}

func (a *api) claimBadge(w http.ResponseWriter, r *http.Request) {
	badge, err := core.ParseBadgeKey(r.PathValue("badge"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	res, err := a.svc.ClaimBadge(r.Context(), pathUser(r), badge)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, res)
}

func (a *api) awardAll(w http.ResponseWriter, r *http.Request) {
	res, err := a.svc.AwardAllBadges(r.Context(), pathUser(r))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, res)
}

func (a *api) getProfile(w http.ResponseWriter, r *http.Request) {
	p, err := a.svc.GetProfile(r.Context(), pathUser(r))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, p)
}

func (a *api) listXPEvents(w http.ResponseWriter, r *http.Request) {
	events, err := a.svc.ListXPEvents(r.Context(), pathUser(r))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	if events == nil {
		events = []core.XPEvent{}
	}
	writeJSON(w, events)
}

func (a *api) listNotifications(w http.ResponseWriter, r *http.Request) {
	unread := false
	if v := r.URL.Query().Get("unread"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_query", "unread must be a boolean", nil)
			return
		}
		unread = b
	}
	list, err := a.svc.ListNotifications(r.Context(), pathUser(r), unread)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	if list == nil {
		list = []core.Notification{}
	}
	writeJSON(w, list)
}

func (a *api) markRead(w http.ResponseWriter, r *http.Request) {
	if err := a.svc.MarkNotificationRead(r.Context(), pathUser(r), r.PathValue("nid")); err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, map[string]any{"ok": true})
}

func (a *api) levelProgress(w http.ResponseWriter, r *http.Request) {
	xp, err := strconv.ParseInt(r.PathValue("xp"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_xp", "xp must be an integer", nil)
		return
	}
	writeJSON(w, a.svc.ComputeLevelProgress(xp))
}

func (a *api) score(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var counts [3]uint64
	for i, name := range []string{"votes", "follows", "clicks"} {
		v := q.Get(name)
		if v == "" {
			continue
		}
		n, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_query", name+" must be a non-negative integer", nil)
			return
		}
		counts[i] = n
	}
	age := 0.0
	if v := q.Get("age_hours"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || f < 0 || math.IsNaN(f) || math.IsInf(f, 0) {
			writeError(w, http.StatusBadRequest, "invalid_query", "age_hours must be a finite non-negative number", nil)
			return
		}
		age = f
	}
	writeJSON(w, map[string]any{"score": a.svc.ScoreLeaderboardItem(counts[0], counts[1], counts[2], age)})
}

func (a *api) upsertSubject(w http.ResponseWriter, r *http.Request) {
	var s leaderboard.Subject
	if err := json.NewDecoder(r.Body).Decode(&s); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", "body must be a subject object", nil)
		return
	}
	if err := a.board.Upsert(s); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_subject", err.Error(), nil)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *api) rank(w http.ResponseWriter, r *http.Request) {
	pos, e, ok := a.board.Rank(leaderboard.SubjectID(r.PathValue("sid")), time.Now())
	if !ok {
		writeError(w, http.StatusNotFound, "not_found", "subject not tracked", nil)
		return
	}
	writeJSON(w, map[string]any{"rank": pos, "id": e.ID, "score": e.Score})
}

func (a *api) top(w http.ResponseWriter, r *http.Request) {
	limit := defaultLeaderboardLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "invalid_query", "limit must be a positive integer", nil)
			return
		}
		limit = n
	}
	entries := a.board.Top(limit, time.Now())
	if entries == nil {
		entries = []leaderboard.Entry{}
	}
	writeJSON(w, entries)
}

// healthCheck verifies the service is working properly
func (a *api) healthCheck(w http.ResponseWriter, r *http.Request) {
	// Reading an unknown user touches the store without writing anything.
	_, err := a.svc.GetProfile(r.Context(), core.UserID("healthcheck_probe"))

	status := map[string]any{
		"status": "healthy",
		"checks": map[string]any{
			"storage": "ok",
		},
	}

	if err != nil {
		a.log.Warn("health check failed", "error", err)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		status["status"] = "unhealthy"
		status["checks"].(map[string]any)["storage"] = "failed"
	}

	writeJSON(w, status)
}

// fail maps service errors to responses. Store failures are logged and
// reported without detail.
func (a *api) fail(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, core.ErrInvalidUser):
		writeError(w, http.StatusBadRequest, "invalid_user", err.Error(), nil)
	case errors.Is(err, core.ErrInvalidAmount):
		writeError(w, http.StatusBadRequest, "invalid_amount", err.Error(), nil)
	case errors.Is(err, core.ErrUnknownBadge):
		writeError(w, http.StatusBadRequest, "invalid_badge", err.Error(), nil)
	case errors.Is(err, core.ErrInvalidActivity):
		writeError(w, http.StatusBadRequest, "invalid_activity", err.Error(), nil)
	case errors.Is(err, core.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", "resource not found", nil)
	default:
		a.log.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		writeError(w, http.StatusInternalServerError, "internal", "internal error", nil)
	}
}

func pathUser(r *http.Request) core.UserID { return core.UserID(r.PathValue("id")) }

func withPrefix(prefix, path string) string {
	if prefix == "" || prefix == "/" {
		return path
	}
	if prefix[len(prefix)-1] == '/' {
		return prefix[:len(prefix)-1] + path
	}
	return prefix + path
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

func writeError(w http.ResponseWriter, status int, code, msg string, details any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(apiError{Code: code, Message: msg, Details: details})
}

// withCORS wraps a handler with a minimal CORS policy.
func withCORS(next http.Handler, origin string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", origin)
		w.Header().Set("Vary", "Origin")
		if r.Method == http.MethodOptions {
			w.Header().Set("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type,Authorization,X-API-Key")
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// withAPIKeyAuth enforces a shared API key list.
func withAPIKeyAuth(next http.Handler, apiKeys []string) http.Handler {
	allowed := make(map[string]struct{}, len(apiKeys))
	for _, k := range apiKeys {
		k = strings.TrimSpace(k)
		if k != "" {
			allowed[k] = struct{}{}
		}
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := extractAPIKey(r)
		if key == "" {
			writeError(w, http.StatusUnauthorized, "unauthorized", "missing API key", nil)
			return
		}
		if _, ok := allowed[key]; !ok {
			writeError(w, http.StatusUnauthorized, "unauthorized", "invalid API key", nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func extractAPIKey(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if strings.HasPrefix(strings.ToLower(auth), "bearer ") {
		return strings.TrimSpace(auth[7:])
	}
	if key := r.Header.Get("X-API-Key"); key != "" {
		return key
	}
	return ""
}
