package httpapi

import (
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	wsadapter "questphone/adapters/websocket"
	"questphone/analytics"
	"questphone/core"
	"questphone/engine"
	"questphone/leaderboard"
	"questphone/realtime"
)

// Options configures the HTTP API surface.
type Options struct {
	// PathPrefix, if set, is prepended to all routes (e.g., "/api").
	PathPrefix string
	// AllowCORSOrigin, if non-empty, enables basic CORS with the given origin (use "*" for any).
	AllowCORSOrigin string
	// APIKeys, if non-empty, enables static API key auth via Authorization: Bearer or X-API-Key.
	APIKeys []string
	// RateLimitEnabled toggles rate limiting.
	RateLimitEnabled bool
	// RateLimitRPM is the allowed requests per minute per client key.
	RateLimitRPM int
	// RateLimitBurst defines burst capacity.
	RateLimitBurst int
	// Metrics, if non-nil, is mounted at {prefix}/metrics.
	Metrics http.Handler
}

// NewMux builds an http.Handler exposing the launcher REST API and
// WebSocket stream. Routes:
//   - GET  {prefix}/users/{id}
//   - POST {prefix}/users/{id}/usage              body {"app","millis","day"?}
//   - GET  {prefix}/users/{id}/passes
//   - POST {prefix}/users/{id}/passes/use?app=
//   - POST {prefix}/users/{id}/streak/complete
//   - POST {prefix}/users/{id}/streak/evaluate
//   - GET  {prefix}/users/{id}/apps/{app}/tap
//   - POST {prefix}/users/{id}/apps/{app}/unlock?coins=10
//   - POST {prefix}/users/{id}/distractions/{app}?blocked=true
//   - POST {prefix}/users/{id}/settings/unlock-ratio?minutes=30
//   - GET  {prefix}/leaderboard?n=10
//   - GET  {prefix}/healthz
//   - WS   {prefix}/ws
func NewMux(svc *engine.WellbeingService, hub *realtime.Hub, an *analytics.Service, board leaderboard.Board, opts Options) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc(withPrefix(opts.PathPrefix, "/healthz"), func(w http.ResponseWriter, r *http.Request) {
		healthCheck(w, r, svc)
	})

	if hub != nil {
		mux.Handle(withPrefix(opts.PathPrefix, "/ws"), wsadapter.Handler(hub))
	}
	if opts.Metrics != nil {
		mux.Handle(withPrefix(opts.PathPrefix, "/metrics"), opts.Metrics)
	}

	if board != nil {
		mux.HandleFunc(withPrefix(opts.PathPrefix, "/leaderboard"), func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodGet {
				writeError(w, http.StatusNotFound, "not_found", "route not found", nil)
				return
			}
			n := 10
			if raw := r.URL.Query().Get("n"); raw != "" {
				parsed, err := strconv.Atoi(raw)
				if err != nil || parsed <= 0 {
					writeError(w, http.StatusBadRequest, "invalid_n", "n must be a positive integer", nil)
					return
				}
				n = parsed
			}
			writeJSON(w, board.TopN(n))
		})
	}

	api := &userAPI{svc: svc, analytics: an}
	mux.HandleFunc(withPrefix(opts.PathPrefix, "/users/"), func(w http.ResponseWriter, r *http.Request) {
		path := strings.TrimPrefix(r.URL.Path, opts.PathPrefix)
		if path == "" || path[0] != '/' {
			path = "/" + path
		}
		api.route(w, r, split(path, '/'))
	})

	var handler http.Handler = mux
	if opts.AllowCORSOrigin != "" {
		handler = withCORS(handler, opts.AllowCORSOrigin)
	}
	if len(opts.APIKeys) > 0 {
		handler = withAPIKeyAuth(handler, opts.APIKeys)
	}
	if opts.RateLimitEnabled && opts.RateLimitRPM > 0 && opts.RateLimitBurst > 0 {
		handler = withRateLimit(handler, opts.RateLimitRPM, opts.RateLimitBurst)
	}
	return handler
}

type userAPI struct {
	svc       *engine.WellbeingService
	analytics *analytics.Service
}

func (a *userAPI) route(w http.ResponseWriter, r *http.Request, parts []string) {
	// parts[0] == "users"
	if len(parts) < 2 {
		writeError(w, http.StatusNotFound, "not_found", "route not found", nil)
		return
	}
	user, err := core.NormalizeUserID(core.UserID(parts[1]))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_user", err.Error(), nil)
		return
	}

	switch {
	case len(parts) == 2 && r.Method == http.MethodGet:
		a.getState(w, r, user)
	case len(parts) == 3 && parts[2] == "usage" && r.Method == http.MethodPost:
		a.recordUsage(w, r, user)
	case len(parts) == 3 && parts[2] == "passes" && r.Method == http.MethodGet:
		a.passes(w, r, user)
	case len(parts) == 4 && parts[2] == "passes" && parts[3] == "use" && r.Method == http.MethodPost:
		a.usePass(w, r, user)
	case len(parts) == 4 && parts[2] == "streak" && parts[3] == "complete" && r.Method == http.MethodPost:
		a.completeStreak(w, r, user)
	case len(parts) == 4 && parts[2] == "streak" && parts[3] == "evaluate" && r.Method == http.MethodPost:
		a.evaluateStreak(w, r, user)
	case len(parts) == 5 && parts[2] == "apps" && parts[4] == "tap" && r.Method == http.MethodGet:
		a.tap(w, r, user, core.AppID(parts[3]))
	case len(parts) == 5 && parts[2] == "apps" && parts[4] == "unlock" && r.Method == http.MethodPost:
		a.unlock(w, r, user, core.AppID(parts[3]))
	case len(parts) == 4 && parts[2] == "distractions" && r.Method == http.MethodPost:
		a.setDistraction(w, r, user, core.AppID(parts[3]))
	case len(parts) == 4 && parts[2] == "settings" && parts[3] == "unlock-ratio" && r.Method == http.MethodPost:
		a.setUnlockRatio(w, r, user)
	default:
		writeError(w, http.StatusNotFound, "not_found", "route not found", nil)
	}
}

func (a *userAPI) getState(w http.ResponseWriter, r *http.Request, user core.UserID) {
	st, err := a.svc.GetState(r.Context(), user)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal", err.Error(), nil)
		return
	}
	writeJSON(w, st)
}

type usageRequest struct {
	App    core.AppID `json:"app"`
	Millis int64      `json:"millis"`
	Day    string     `json:"day,omitempty"`
}

func (a *userAPI) recordUsage(w http.ResponseWriter, r *http.Request, user core.UserID) {
	if a.analytics == nil {
		writeError(w, http.StatusNotFound, "not_found", "usage tracking disabled", nil)
		return
	}
	var req usageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", "malformed JSON body", nil)
		return
	}
	if err := core.ValidateAppID(req.App); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_app", err.Error(), nil)
		return
	}
	if req.Millis <= 0 {
		writeError(w, http.StatusBadRequest, "invalid_millis", "millis must be positive", nil)
		return
	}
	day := a.svc.Today()
	if req.Day != "" {
		parsed, err := core.ParseDay(req.Day)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_day", err.Error(), nil)
			return
		}
		day = parsed
	}
	a.analytics.Usage.Record(user, req.App, day, req.Millis)
	writeJSON(w, map[string]any{"ok": true})
}

func (a *userAPI) passes(w http.ResponseWriter, r *http.Request, user core.UserID) {
	var series []float64
	if a.analytics != nil {
		series = a.analytics.Usage.HoursSeries(user, a.svc.Today(), 7)
	}
	n, err := a.svc.AvailablePasses(r.Context(), user, series)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal", err.Error(), nil)
		return
	}
	resp := map[string]any{"remaining": n, "day": a.svc.Today()}
	if a.analytics != nil {
		resp["trend"] = a.analytics.Usage.UsageTrend(user, a.svc.Today())
	}
	writeJSON(w, resp)
}

func (a *userAPI) usePass(w http.ResponseWriter, r *http.Request, user core.UserID) {
	app := core.AppID(r.URL.Query().Get("app"))
	deadline, err := a.svc.UseFreePass(r.Context(), user, app)
	switch {
	case errors.Is(err, engine.ErrNoFreePasses):
		writeError(w, http.StatusConflict, "no_passes", err.Error(), nil)
		return
	case err != nil:
		writeError(w, http.StatusBadRequest, "invalid_input", err.Error(), nil)
		return
	}
	writeJSON(w, map[string]any{"unlocked_until_ms": deadline.UnixMilli()})
}

func (a *userAPI) completeStreak(w http.ResponseWriter, r *http.Request, user core.UserID) {
	counted, err := a.svc.ContinueStreak(r.Context(), user)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal", err.Error(), nil)
		return
	}
	st, err := a.svc.GetState(r.Context(), user)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal", err.Error(), nil)
		return
	}
	writeJSON(w, map[string]any{"counted": counted, "streak": st.Streak})
}

func (a *userAPI) evaluateStreak(w http.ResponseWriter, r *http.Request, user core.UserID) {
	out, err := a.svc.EvaluateStreak(r.Context(), user)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal", err.Error(), nil)
		return
	}
	writeJSON(w, out)
}

func (a *userAPI) tap(w http.ResponseWriter, r *http.Request, user core.UserID, app core.AppID) {
	decision, err := a.svc.TapApp(r.Context(), user, app)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_input", err.Error(), nil)
		return
	}
	writeJSON(w, map[string]any{"decision": decision.String()})
}

func (a *userAPI) unlock(w http.ResponseWriter, r *http.Request, user core.UserID, app core.AppID) {
	coins, err := strconv.Atoi(r.URL.Query().Get("coins"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_coins", "coins must be an integer", nil)
		return
	}
	until, err := a.svc.UnlockWithCoins(r.Context(), user, app, coins)
	switch {
	case errors.Is(err, engine.ErrInsufficientCoins):
		writeError(w, http.StatusPaymentRequired, "insufficient_coins", err.Error(), nil)
		return
	case errors.Is(err, core.ErrBadCoinAmount), errors.Is(err, engine.ErrNotDistraction):
		writeError(w, http.StatusBadRequest, "invalid_input", err.Error(), nil)
		return
	case err != nil:
		writeError(w, http.StatusInternalServerError, "internal", err.Error(), nil)
		return
	}
	writeJSON(w, map[string]any{"unlocked_until_ms": until})
}

func (a *userAPI) setDistraction(w http.ResponseWriter, r *http.Request, user core.UserID, app core.AppID) {
	blocked := r.URL.Query().Get("blocked") != "false"
	if err := a.svc.SetDistraction(r.Context(), user, app, blocked); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_input", err.Error(), nil)
		return
	}
	writeJSON(w, map[string]any{"ok": true})
}

func (a *userAPI) setUnlockRatio(w http.ResponseWriter, r *http.Request, user core.UserID) {
	minutes, err := strconv.Atoi(r.URL.Query().Get("minutes"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_minutes", "minutes must be an integer", nil)
		return
	}
	if err := a.svc.SetUnlockRatio(r.Context(), user, minutes); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_input", err.Error(), nil)
		return
	}
	writeJSON(w, map[string]any{"ok": true})
}

// Helpers

// healthCheck verifies storage works with a lightweight probe read.
func healthCheck(w http.ResponseWriter, r *http.Request, svc *engine.WellbeingService) {
	dummyUser := core.UserID("healthcheck_probe")
	_, err := svc.GetState(r.Context(), dummyUser)

	status := map[string]any{
		"status": "healthy",
		"checks": map[string]any{
			"storage": "ok",
		},
	}
	if err != nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		status["status"] = "unhealthy"
		status["checks"].(map[string]any)["storage"] = "failed"
	} else {
		w.WriteHeader(http.StatusOK)
	}
	writeJSON(w, status)
}

func withPrefix(prefix, path string) string {
	if prefix == "" || prefix == "/" {
		return path
	}
	if prefix[len(prefix)-1] == '/' {
		return prefix[:len(prefix)-1] + path
	}
	return prefix + path
}

func split(p string, sep rune) []string {
	var parts []string
	cur := make([]rune, 0, len(p))
	for len(p) > 0 && p[0] == '/' {
		p = p[1:]
	}
	for _, r := range p {
		if r == sep {
			if len(cur) > 0 {
				parts = append(parts, string(cur))
				cur = cur[:0]
			}
			continue
		}
		cur = append(cur, r)
	}
	if len(cur) > 0 {
		parts = append(parts, string(cur))
	}
	return parts
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
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type,Authorization")
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

// withRateLimit applies a simple token-bucket limiter per client key.
func withRateLimit(next http.Handler, rpm int, burst int) http.Handler {
	limiter := newRateLimiter(rpm, burst)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := clientKey(r)
		if !limiter.allow(key) {
			writeError(w, http.StatusTooManyRequests, "rate_limited", "too many requests", nil)
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

// clientKey uses API key if present, otherwise remote IP.
func clientKey(r *http.Request) string {
	if key := extractAPIKey(r); key != "" {
		return key
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

type rateLimiter struct {
	rpm   float64
	burst float64
	mu    sync.Mutex
	b     map[string]*bucket
}

type bucket struct {
	tokens float64
	last   time.Time
}

func newRateLimiter(rpm, burst int) *rateLimiter {
	return &rateLimiter{
		rpm:   float64(rpm),
		burst: float64(burst),
		b:     make(map[string]*bucket),
	}
}

func (l *rateLimiter) allow(key string) bool {
	now := time.Now()
	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.b[key]
	if !ok {
		l.b[key] = &bucket{tokens: l.burst - 1, last: now}
		return true
	}

	elapsed := now.Sub(b.last).Minutes()
	b.tokens += elapsed * l.rpm
	if b.tokens > l.burst {
		b.tokens = l.burst
	}
	if b.tokens < 1 {
		b.last = now
		return false
	}
	b.tokens--
	b.last = now
	return true
}
