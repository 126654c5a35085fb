package sdk

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"questphone/core"
)

// Option configures the Client.
type Option func(*Client)

// Client provides typed access to the QuestPhone HTTP + WebSocket API.
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

// GetUser fetches the current wellbeing state for a user.
func (c *Client) GetUser(ctx context.Context, userID string) (UserState, error) {
	if strings.TrimSpace(userID) == "" {
		return UserState{}, ErrEmptyUserID
	}
	var st UserState
	err := c.do(ctx, http.MethodGet, c.userPath(userID), nil, &st)
	return st, err
}

// RecordUsage reports screen time for an app. Day is optional ISO
// "2006-01-02"; when empty the server uses its current day.
func (c *Client) RecordUsage(ctx context.Context, userID, app string, millis int64, day string) error {
	if strings.TrimSpace(userID) == "" {
		return ErrEmptyUserID
	}
	body, err := json.Marshal(map[string]any{"app": app, "millis": millis, "day": day})
	if err != nil {
		return err
	}
	return c.do(ctx, http.MethodPost, c.userPath(userID)+"/usage", bytes.NewReader(body), nil)
}

// Passes returns how many free passes remain for the user today, forcing
// the daily grant computation if it has not happened yet.
func (c *Client) Passes(ctx context.Context, userID string) (PassGrant, error) {
	if strings.TrimSpace(userID) == "" {
		return PassGrant{}, ErrEmptyUserID
	}
	var pg PassGrant
	err := c.do(ctx, http.MethodGet, c.userPath(userID)+"/passes", nil, &pg)
	return pg, err
}

// UseFreePass spends a pass on the given app and returns the unlock
// deadline.
func (c *Client) UseFreePass(ctx context.Context, userID, app string) (time.Time, error) {
	if strings.TrimSpace(userID) == "" {
		return time.Time{}, ErrEmptyUserID
	}
	u := c.userPath(userID) + "/passes/use?app=" + url.QueryEscape(app)
	var resp unlockResponse
	if err := c.do(ctx, http.MethodPost, u, nil, &resp); err != nil {
		return time.Time{}, err
	}
	return time.UnixMilli(resp.UnlockedUntilMS), nil
}

// Tap asks the server what should happen when the user taps an app.
func (c *Client) Tap(ctx context.Context, userID, app string) (Decision, error) {
	if strings.TrimSpace(userID) == "" {
		return "", ErrEmptyUserID
	}
	u := c.userPath(userID) + "/apps/" + url.PathEscape(app) + "/tap"
	var resp struct {
		Decision Decision `json:"decision"`
	}
	if err := c.do(ctx, http.MethodGet, u, nil, &resp); err != nil {
		return "", err
	}
	return resp.Decision, nil
}

// UnlockWithCoins buys an unlock window for a blocked app. Coins must be a
// positive multiple of five.
func (c *Client) UnlockWithCoins(ctx context.Context, userID, app string, coins int) (time.Time, error) {
	if strings.TrimSpace(userID) == "" {
		return time.Time{}, ErrEmptyUserID
	}
	u := fmt.Sprintf("%s/apps/%s/unlock?coins=%d", c.userPath(userID), url.PathEscape(app), coins)
	var resp unlockResponse
	if err := c.do(ctx, http.MethodPost, u, nil, &resp); err != nil {
		return time.Time{}, err
	}
	return time.UnixMilli(resp.UnlockedUntilMS), nil
}

// CompleteStreak marks today's quests done. Counted is false when today
// was already recorded.
func (c *Client) CompleteStreak(ctx context.Context, userID string) (StreakProgress, error) {
	if strings.TrimSpace(userID) == "" {
		return StreakProgress{}, ErrEmptyUserID
	}
	var sp StreakProgress
	err := c.do(ctx, http.MethodPost, c.userPath(userID)+"/streak/complete", nil, &sp)
	return sp, err
}

// EvaluateStreak runs the missed-day check, spending streak freezers if
// needed.
func (c *Client) EvaluateStreak(ctx context.Context, userID string) (core.StreakOutcome, error) {
	if strings.TrimSpace(userID) == "" {
		return core.StreakOutcome{}, ErrEmptyUserID
	}
	var out core.StreakOutcome
	err := c.do(ctx, http.MethodPost, c.userPath(userID)+"/streak/evaluate", nil, &out)
	return out, err
}

// SetDistraction marks or unmarks an app as blocked.
func (c *Client) SetDistraction(ctx context.Context, userID, app string, blocked bool) error {
	if strings.TrimSpace(userID) == "" {
		return ErrEmptyUserID
	}
	u := fmt.Sprintf("%s/distractions/%s?blocked=%t", c.userPath(userID), url.PathEscape(app), blocked)
	return c.do(ctx, http.MethodPost, u, nil, nil)
}

// SetUnlockRatio sets how many minutes five coins buy for this user.
func (c *Client) SetUnlockRatio(ctx context.Context, userID string, minutes int) error {
	if strings.TrimSpace(userID) == "" {
		return ErrEmptyUserID
	}
	u := fmt.Sprintf("%s/settings/unlock-ratio?minutes=%d", c.userPath(userID), minutes)
	return c.do(ctx, http.MethodPost, u, nil, nil)
}

// Leaderboard returns the top n streaks.
func (c *Client) Leaderboard(ctx context.Context, n int) ([]LeaderboardEntry, error) {
	var entries []LeaderboardEntry
	u := fmt.Sprintf("%s/leaderboard?n=%d", c.baseURL, n)
	err := c.do(ctx, http.MethodGet, u, nil, &entries)
	return entries, err
}

// Health probes /healthz and returns status + storage check.
func (c *Client) Health(ctx context.Context) (HealthStatus, error) {
	var hs HealthStatus
	err := c.do(ctx, http.MethodGet, c.baseURL+"/healthz", nil, &hs)
	return hs, err
}

// SubscribeEvents connects to the WebSocket stream and emits core.Event
// values. Pass a non-empty userID to receive only that user's events. The
// returned channel closes when ctx is done or the connection drops.
func (c *Client) SubscribeEvents(ctx context.Context, userID string) (<-chan core.Event, error) {
	if c.wsURL == "" {
		return nil, errors.New("wsURL is not set; ensure baseURL is http/https")
	}
	target := c.wsURL
	if userID != "" {
		target += "?user=" + url.QueryEscape(userID)
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

func (c *Client) userPath(userID string) string {
	return c.baseURL + "/users/" + url.PathEscape(userID)
}

func (c *Client) do(ctx context.Context, method, u string, body io.Reader, target any) error {
	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	c.applyHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return decodeJSON(resp, target)
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
