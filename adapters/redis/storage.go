package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"questphone/core"

	"github.com/redis/go-redis/v9"
)

// Config holds Redis connection configuration
type Config struct {
	Addr         string
	Password     string
	DB           int
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
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

// Store implements the engine.Storage interface using Redis as the backend.
// Data structure, per user:
// - user:{id}:points       -> hash metric -> int64
// - user:{id}:profile      -> hash level, created_ms, streak_current, streak_longest, streak_last
// - user:{id}:inventory    -> hash item -> count
// - user:{id}:boosts       -> hash item -> expiry unix millis
// - user:{id}:distractions -> set of app ids
// - user:{id}:passes       -> hash date, remaining
// - user:{id}:unlocks      -> hash app -> unlock expiry unix millis
// - user:{id}:settings     -> hash key -> int
type Store struct {
	client *redis.Client
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
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &Store{client: client}, nil
}

// NewWithClient creates a Store using an existing Redis client (useful for testing)
func NewWithClient(client *redis.Client) *Store {
	return &Store{client: client}
}

// Close closes the Redis connection
func (s *Store) Close() error {
	return s.client.Close()
}

func userKey(userID core.UserID, section string) string {
	return fmt.Sprintf("user:%s:%s", userID, section)
}

// Lua script for atomic point addition. The balance check runs inside the
// script so two concurrent debits cannot both pass it.
var addPointsScript = redis.NewScript(`
	local current = tonumber(redis.call('HGET', KEYS[1], ARGV[1]) or '0')
	local delta = tonumber(ARGV[2])
	local next_val = current + delta

	if next_val > 9223372036854775807 or next_val < -9223372036854775808 then
		return redis.error_reply('integer overflow')
	end
	if next_val < 0 then
		return redis.error_reply('balance cannot go negative')
	end

	redis.call('HSET', KEYS[1], ARGV[1], next_val)
	return next_val
`)

// Lua script for inventory adjustment floored at zero
var adjustInventoryScript = redis.NewScript(`
	local current = tonumber(redis.call('HGET', KEYS[1], ARGV[1]) or '0')
	local next_val = current + tonumber(ARGV[2])
	if next_val < 0 then
		next_val = 0
	end
	redis.call('HSET', KEYS[1], ARGV[1], next_val)
	return next_val
`)

// ensureUser seeds profile defaults on first contact. HSETNX keeps repeat
// calls cheap and race-free.
func (s *Store) ensureUser(ctx context.Context, userID core.UserID) error {
	profile := userKey(userID, "profile")
	created, err := s.client.HSetNX(ctx, profile, "created_ms", time.Now().UTC().UnixMilli()).Result()
	if err != nil {
		return fmt.Errorf("failed to init profile: %w", err)
	}
	if !created {
		return nil
	}
	pipe := s.client.Pipeline()
	pipe.HSetNX(ctx, profile, "level", 1)
	pipe.HSetNX(ctx, userKey(userID, "inventory"), string(core.ItemStreakFreezer), core.StartingFreezers)
	_, err = pipe.Exec(ctx)
	return err
}

// AddPoints atomically adds points to a user's metric with overflow protection
func (s *Store) AddPoints(ctx context.Context, userID core.UserID, metric core.Metric, delta int64) (int64, error) {
	if err := s.ensureUser(ctx, userID); err != nil {
		return 0, err
	}
	key := userKey(userID, "points")
	result, err := addPointsScript.Run(ctx, s.client, []string{key}, string(metric), delta).Result()
	if err != nil {
		if strings.Contains(err.Error(), "balance cannot go negative") {
			return 0, core.ErrNegativeBalance
		}
		return 0, fmt.Errorf("failed to add points: %w", err)
	}
	total, ok := result.(int64)
	if !ok {
		return 0, errors.New("unexpected result type from Redis script")
	}
	return total, nil
}

// AdjustInventory changes an item count, flooring at zero
func (s *Store) AdjustInventory(ctx context.Context, userID core.UserID, item core.Item, delta int) (int, error) {
	if err := s.ensureUser(ctx, userID); err != nil {
		return 0, err
	}
	key := userKey(userID, "inventory")
	result, err := adjustInventoryScript.Run(ctx, s.client, []string{key}, string(item), delta).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to adjust inventory: %w", err)
	}
	count, ok := result.(int64)
	if !ok {
		return 0, errors.New("unexpected result type from Redis script")
	}
	return int(count), nil
}

func (s *Store) SetLevel(ctx context.Context, userID core.UserID, level int) error {
	if err := s.ensureUser(ctx, userID); err != nil {
		return err
	}
	if err := s.client.HSet(ctx, userKey(userID, "profile"), "level", level).Err(); err != nil {
		return fmt.Errorf("failed to set level: %w", err)
	}
	return nil
}

func (s *Store) SetStreak(ctx context.Context, userID core.UserID, streak core.StreakData) error {
	if err := s.ensureUser(ctx, userID); err != nil {
		return err
	}
	err := s.client.HSet(ctx, userKey(userID, "profile"),
		"streak_current", streak.Current,
		"streak_longest", streak.Longest,
		"streak_last", string(streak.LastCompleted),
	).Err()
	if err != nil {
		return fmt.Errorf("failed to set streak: %w", err)
	}
	return nil
}

func (s *Store) SetBoost(ctx context.Context, userID core.UserID, item core.Item, until time.Time) error {
	if err := s.ensureUser(ctx, userID); err != nil {
		return err
	}
	err := s.client.HSet(ctx, userKey(userID, "boosts"), string(item), until.UnixMilli()).Err()
	if err != nil {
		return fmt.Errorf("failed to set boost: %w", err)
	}
	return nil
}

func (s *Store) PassState(ctx context.Context, userID core.UserID) (core.FreePassState, bool, error) {
	vals, err := s.client.HGetAll(ctx, userKey(userID, "passes")).Result()
	if err != nil {
		return core.FreePassState{}, false, fmt.Errorf("failed to get pass state: %w", err)
	}
	if len(vals) == 0 {
		return core.FreePassState{}, false, nil
	}
	remaining, err := strconv.Atoi(vals["remaining"])
	if err != nil {
		return core.FreePassState{}, false, fmt.Errorf("corrupt pass state: %w", err)
	}
	return core.FreePassState{Date: core.Day(vals["date"]), Remaining: remaining}, true, nil
}

func (s *Store) SetPassState(ctx context.Context, userID core.UserID, st core.FreePassState) error {
	err := s.client.HSet(ctx, userKey(userID, "passes"),
		"date", string(st.Date),
		"remaining", st.Remaining,
	).Err()
	if err != nil {
		return fmt.Errorf("failed to set pass state: %w", err)
	}
	return nil
}

func (s *Store) UnlockedUntil(ctx context.Context, userID core.UserID, app core.AppID) (int64, error) {
	val, err := s.client.HGet(ctx, userKey(userID, "unlocks"), string(app)).Result()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to get unlock: %w", err)
	}
	return strconv.ParseInt(val, 10, 64)
}

func (s *Store) SetUnlockedUntil(ctx context.Context, userID core.UserID, app core.AppID, untilMillis int64) error {
	err := s.client.HSet(ctx, userKey(userID, "unlocks"), string(app), untilMillis).Err()
	if err != nil {
		return fmt.Errorf("failed to set unlock: %w", err)
	}
	return nil
}

func (s *Store) Setting(ctx context.Context, userID core.UserID, key string) (int, bool, error) {
	val, err := s.client.HGet(ctx, userKey(userID, "settings"), key).Result()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to get setting: %w", err)
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return 0, false, fmt.Errorf("corrupt setting %q: %w", key, err)
	}
	return n, true, nil
}

func (s *Store) SetSetting(ctx context.Context, userID core.UserID, key string, value int) error {
	err := s.client.HSet(ctx, userKey(userID, "settings"), key, value).Err()
	if err != nil {
		return fmt.Errorf("failed to set setting: %w", err)
	}
	return nil
}

func (s *Store) SetDistraction(ctx context.Context, userID core.UserID, app core.AppID, blocked bool) error {
	if err := s.ensureUser(ctx, userID); err != nil {
		return err
	}
	key := userKey(userID, "distractions")
	var err error
	if blocked {
		err = s.client.SAdd(ctx, key, string(app)).Err()
	} else {
		err = s.client.SRem(ctx, key, string(app)).Err()
	}
	if err != nil {
		return fmt.Errorf("failed to update distractions: %w", err)
	}
	return nil
}

// GetState reconstructs the full user state from the per-section keys
func (s *Store) GetState(ctx context.Context, userID core.UserID) (core.UserState, error) {
	if err := s.ensureUser(ctx, userID); err != nil {
		return core.UserState{}, err
	}

	pipe := s.client.Pipeline()
	pointsCmd := pipe.HGetAll(ctx, userKey(userID, "points"))
	profileCmd := pipe.HGetAll(ctx, userKey(userID, "profile"))
	inventoryCmd := pipe.HGetAll(ctx, userKey(userID, "inventory"))
	boostsCmd := pipe.HGetAll(ctx, userKey(userID, "boosts"))
	distractionsCmd := pipe.SMembers(ctx, userKey(userID, "distractions"))
	if _, err := pipe.Exec(ctx); err != nil {
		return core.UserState{}, fmt.Errorf("failed to get state: %w", err)
	}

	state := core.UserState{
		UserID:       userID,
		Points:       map[core.Metric]int64{},
		Inventory:    map[core.Item]int{},
		Level:        1,
		Distractions: map[core.AppID]struct{}{},
		ActiveBoosts: map[core.Item]time.Time{},
		Updated:      time.Now().UTC(),
	}

	for k, v := range pointsCmd.Val() {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			state.Points[core.Metric(k)] = n
		}
	}
	for k, v := range inventoryCmd.Val() {
		if n, err := strconv.Atoi(v); err == nil {
			state.Inventory[core.Item(k)] = n
		}
	}
	for k, v := range boostsCmd.Val() {
		if ms, err := strconv.ParseInt(v, 10, 64); err == nil {
			state.ActiveBoosts[core.Item(k)] = time.UnixMilli(ms).UTC()
		}
	}
	for _, app := range distractionsCmd.Val() {
		state.Distractions[core.AppID(app)] = struct{}{}
	}

	profile := profileCmd.Val()
	if v, ok := profile["level"]; ok {
		if n, err := strconv.Atoi(v); err == nil {
			state.Level = n
		}
	}
	if v, ok := profile["created_ms"]; ok {
		if ms, err := strconv.ParseInt(v, 10, 64); err == nil {
			state.CreatedOn = time.UnixMilli(ms).UTC()
		}
	}
	if v, ok := profile["streak_current"]; ok {
		if n, err := strconv.Atoi(v); err == nil {
			state.Streak.Current = n
		}
	}
	if v, ok := profile["streak_longest"]; ok {
		if n, err := strconv.Atoi(v); err == nil {
			state.Streak.Longest = n
		}
	}
	if v, ok := profile["streak_last"]; ok && v != "" {
		state.Streak.LastCompleted = core.Day(v)
	}
	return state, nil
}
