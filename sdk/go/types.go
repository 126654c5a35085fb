package sdk

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// UserState mirrors the public JSON surface of core.UserState.
type UserState struct {
	UserID       string              `json:"user_id"`
	Points       map[string]int64    `json:"points"`
	Inventory    map[string]int      `json:"inventory"`
	Level        int                 `json:"level"`
	Streak       Streak              `json:"streak"`
	Distractions map[string]struct{} `json:"distractions"`
	Updated      time.Time           `json:"updated"`
}

// Streak mirrors core.StreakData.
type Streak struct {
	Current       int    `json:"current"`
	Longest       int    `json:"longest"`
	LastCompleted string `json:"last_completed"`
}

// PassGrant is today's free-pass allowance.
type PassGrant struct {
	Remaining int    `json:"remaining"`
	Day       string `json:"day"`
	Trend     string `json:"trend,omitempty"`
}

// Decision is the server's verdict on an app tap.
type Decision string

const (
	DecisionLaunch  Decision = "launch"
	DecisionPaywall Decision = "paywall"
)

// StreakProgress is the result of completing today's quests.
type StreakProgress struct {
	Counted bool `json:"counted"`
	Streak  int  `json:"streak"`
}

// LeaderboardEntry is one row of the streak leaderboard.
type LeaderboardEntry struct {
	User    string `json:"user"`
	Streak  int    `json:"streak"`
	Longest int    `json:"longest"`
}

// HealthStatus describes the /healthz response.
type HealthStatus struct {
	Status string                 `json:"status"`
	Checks map[string]interface{} `json:"checks"`
}

type unlockResponse struct {
	UnlockedUntilMS int64 `json:"unlocked_until_ms"`
}

// APIError is a structured error response from the server.
type APIError struct {
	StatusCode int    `json:"-"`
	Code       string `json:"code"`
	Message    string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d (%s): %s", e.StatusCode, e.Code, e.Message)
}

func decodeJSON(resp *http.Response, target any) error {
	if resp.StatusCode >= http.StatusBadRequest {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		if err := json.NewDecoder(resp.Body).Decode(apiErr); err != nil || apiErr.Code == "" {
			return fmt.Errorf("request failed: status %d", resp.StatusCode)
		}
		return apiErr
	}
	if target == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(target)
}

// ErrEmptyUserID is returned when user id is empty.
var ErrEmptyUserID = errors.New("user id is required")
