package sqlx

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	libsqlx "github.com/jmoiron/sqlx"

	"questphone/core"
)

// Driver names supported by the store.
const (
	DriverPostgres = "postgres"
	DriverMySQL    = "mysql"
)

// Config holds SQL connection configuration.
type Config struct {
	Driver          string
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// DefaultConfig returns sensible defaults for the given driver.
func DefaultConfig(driver string) Config {
	return Config{
		Driver:          driver,
		MaxOpenConns:    10,
		MaxIdleConns:    2,
		ConnMaxLifetime: 30 * time.Minute,
	}
}

// Store implements the engine.Storage interface on a SQL database.
// Tables: user_profiles, user_points, user_inventory, user_boosts,
// user_distractions, user_passes, user_unlocks, user_settings.
type Store struct {
	db     *libsqlx.DB
	driver string
}

// New opens a connection pool and verifies connectivity.
func New(cfg Config) (*Store, error) {
	db, err := libsqlx.Connect(cfg.Driver, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", cfg.Driver, err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	return NewWithDB(db, cfg.Driver), nil
}

// NewWithDB wraps an existing connection (useful for testing).
func NewWithDB(db *libsqlx.DB, driver string) *Store {
	return &Store{db: db, driver: driver}
}

func (s *Store) Close() error { return s.db.Close() }

func nowMillis() int64 { return time.Now().UTC().UnixMilli() }

// ensureProfile inserts the default profile row inside the given tx if the
// user has never been seen.
func (s *Store) ensureProfile(ctx context.Context, tx *libsqlx.Tx, user core.UserID) error {
	var exists bool
	err := tx.GetContext(ctx, &exists,
		tx.Rebind(`SELECT EXISTS(SELECT 1 FROM user_profiles WHERE user_id = ?)`), user)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	ms := nowMillis()
	if _, err := tx.ExecContext(ctx,
		tx.Rebind(`INSERT INTO user_profiles (user_id, level, created_ms, updated_ms) VALUES (?, 1, ?, ?)`),
		user, ms, ms); err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx,
		tx.Rebind(`INSERT INTO user_inventory (user_id, item, count) VALUES (?, ?, ?)`),
		user, core.ItemStreakFreezer, core.StartingFreezers)
	return err
}

func (s *Store) inTx(ctx context.Context, fn func(tx *libsqlx.Tx) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

func (s *Store) AddPoints(ctx context.Context, user core.UserID, metric core.Metric, delta int64) (int64, error) {
	if delta == 0 {
		return 0, errors.New("delta cannot be zero")
	}
	var total int64
	err := s.inTx(ctx, func(tx *libsqlx.Tx) error {
		if err := s.ensureProfile(ctx, tx, user); err != nil {
			return err
		}
		var current int64
		err := tx.GetContext(ctx, &current,
			tx.Rebind(`SELECT points FROM user_points WHERE user_id = ? AND metric = ?`), user, metric)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			next, aerr := core.AddSafe(0, delta)
			if aerr != nil {
				return aerr
			}
			if next < 0 {
				return core.ErrNegativeBalance
			}
			ms := nowMillis()
			if _, err := tx.ExecContext(ctx,
				tx.Rebind(`INSERT INTO user_points (user_id, metric, points, created_ms, updated_ms) VALUES (?, ?, ?, ?, ?)`),
				user, metric, next, ms, ms); err != nil {
				return err
			}
			total = next
			return nil
		case err != nil:
			return err
		}
		next, aerr := core.AddSafe(current, delta)
		if aerr != nil {
			return aerr
		}
		if next < 0 {
			return core.ErrNegativeBalance
		}
		if _, err := tx.ExecContext(ctx,
			tx.Rebind(`UPDATE user_points SET points = ?, updated_ms = ? WHERE user_id = ? AND metric = ?`),
			next, nowMillis(), user, metric); err != nil {
			return err
		}
		total = next
		return nil
	})
	return total, err
}

func (s *Store) SetLevel(ctx context.Context, user core.UserID, level int) error {
	return s.inTx(ctx, func(tx *libsqlx.Tx) error {
		if err := s.ensureProfile(ctx, tx, user); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx,
			tx.Rebind(`UPDATE user_profiles SET level = ?, updated_ms = ? WHERE user_id = ?`),
			level, nowMillis(), user)
		return err
	})
}

func (s *Store) SetStreak(ctx context.Context, user core.UserID, streak core.StreakData) error {
	return s.inTx(ctx, func(tx *libsqlx.Tx) error {
		if err := s.ensureProfile(ctx, tx, user); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx,
			tx.Rebind(`UPDATE user_profiles SET streak_current = ?, streak_longest = ?, streak_last = ?, updated_ms = ? WHERE user_id = ?`),
			streak.Current, streak.Longest, string(streak.LastCompleted), nowMillis(), user)
		return err
	})
}

func (s *Store) AdjustInventory(ctx context.Context, user core.UserID, item core.Item, delta int) (int, error) {
	var count int
	err := s.inTx(ctx, func(tx *libsqlx.Tx) error {
		if err := s.ensureProfile(ctx, tx, user); err != nil {
			return err
		}
		var current int
		err := tx.GetContext(ctx, &current,
			tx.Rebind(`SELECT count FROM user_inventory WHERE user_id = ? AND item = ?`), user, item)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			next := delta
			if next < 0 {
				next = 0
			}
			if _, err := tx.ExecContext(ctx,
				tx.Rebind(`INSERT INTO user_inventory (user_id, item, count) VALUES (?, ?, ?)`),
				user, item, next); err != nil {
				return err
			}
			count = next
			return nil
		case err != nil:
			return err
		}
		next := current + delta
		if next < 0 {
			next = 0
		}
		if _, err := tx.ExecContext(ctx,
			tx.Rebind(`UPDATE user_inventory SET count = ? WHERE user_id = ? AND item = ?`),
			next, user, item); err != nil {
			return err
		}
		count = next
		return nil
	})
	return count, err
}

func (s *Store) SetBoost(ctx context.Context, user core.UserID, item core.Item, until time.Time) error {
	return s.upsertKV(ctx, user, "user_boosts", "item", string(item), "until_ms", until.UnixMilli())
}

func (s *Store) PassState(ctx context.Context, user core.UserID) (core.FreePassState, bool, error) {
	var row struct {
		Date      string `db:"date"`
		Remaining int    `db:"remaining"`
	}
	err := s.db.GetContext(ctx, &row,
		s.db.Rebind(`SELECT date, remaining FROM user_passes WHERE user_id = ?`), user)
	if errors.Is(err, sql.ErrNoRows) {
		return core.FreePassState{}, false, nil
	}
	if err != nil {
		return core.FreePassState{}, false, err
	}
	return core.FreePassState{Date: core.Day(row.Date), Remaining: row.Remaining}, true, nil
}

func (s *Store) SetPassState(ctx context.Context, user core.UserID, st core.FreePassState) error {
	return s.inTx(ctx, func(tx *libsqlx.Tx) error {
		if err := s.ensureProfile(ctx, tx, user); err != nil {
			return err
		}
		var exists bool
		err := tx.GetContext(ctx, &exists,
			tx.Rebind(`SELECT EXISTS(SELECT 1 FROM user_passes WHERE user_id = ?)`), user)
		if err != nil {
			return err
		}
		if exists {
			_, err = tx.ExecContext(ctx,
				tx.Rebind(`UPDATE user_passes SET date = ?, remaining = ? WHERE user_id = ?`),
				string(st.Date), st.Remaining, user)
			return err
		}
		_, err = tx.ExecContext(ctx,
			tx.Rebind(`INSERT INTO user_passes (user_id, date, remaining) VALUES (?, ?, ?)`),
			user, string(st.Date), st.Remaining)
		return err
	})
}

func (s *Store) UnlockedUntil(ctx context.Context, user core.UserID, app core.AppID) (int64, error) {
	var until int64
	err := s.db.GetContext(ctx, &until,
		s.db.Rebind(`SELECT until_ms FROM user_unlocks WHERE user_id = ? AND app = ?`), user, app)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	return until, err
}

func (s *Store) SetUnlockedUntil(ctx context.Context, user core.UserID, app core.AppID, untilMillis int64) error {
	return s.upsertKV(ctx, user, "user_unlocks", "app", string(app), "until_ms", untilMillis)
}

func (s *Store) Setting(ctx context.Context, user core.UserID, key string) (int, bool, error) {
	var value int
	err := s.db.GetContext(ctx, &value,
		s.db.Rebind(`SELECT value FROM user_settings WHERE user_id = ? AND name = ?`), user, key)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return value, true, nil
}

func (s *Store) SetSetting(ctx context.Context, user core.UserID, key string, value int) error {
	return s.upsertKV(ctx, user, "user_settings", "name", key, "value", int64(value))
}

func (s *Store) SetDistraction(ctx context.Context, user core.UserID, app core.AppID, blocked bool) error {
	return s.inTx(ctx, func(tx *libsqlx.Tx) error {
		if err := s.ensureProfile(ctx, tx, user); err != nil {
			return err
		}
		if !blocked {
			_, err := tx.ExecContext(ctx,
				tx.Rebind(`DELETE FROM user_distractions WHERE user_id = ? AND app = ?`), user, app)
			return err
		}
		var exists bool
		err := tx.GetContext(ctx, &exists,
			tx.Rebind(`SELECT EXISTS(SELECT 1 FROM user_distractions WHERE user_id = ? AND app = ?)`), user, app)
		if err != nil {
			return err
		}
		if exists {
			return nil
		}
		_, err = tx.ExecContext(ctx,
			tx.Rebind(`INSERT INTO user_distractions (user_id, app) VALUES (?, ?)`), user, app)
		return err
	})
}

// upsertKV is the shared select-then-write path for the simple
// (user_id, key, value) tables.
func (s *Store) upsertKV(ctx context.Context, user core.UserID, table, keyCol, key, valCol string, value int64) error {
	return s.inTx(ctx, func(tx *libsqlx.Tx) error {
		if err := s.ensureProfile(ctx, tx, user); err != nil {
			return err
		}
		var exists bool
		q := fmt.Sprintf(`SELECT EXISTS(SELECT 1 FROM %s WHERE user_id = ? AND %s = ?)`, table, keyCol)
		if err := tx.GetContext(ctx, &exists, tx.Rebind(q), user, key); err != nil {
			return err
		}
		if exists {
			q = fmt.Sprintf(`UPDATE %s SET %s = ? WHERE user_id = ? AND %s = ?`, table, valCol, keyCol)
			_, err := tx.ExecContext(ctx, tx.Rebind(q), value, user, key)
			return err
		}
		q = fmt.Sprintf(`INSERT INTO %s (user_id, %s, %s) VALUES (?, ?, ?)`, table, keyCol, valCol)
		_, err := tx.ExecContext(ctx, tx.Rebind(q), user, key, value)
		return err
	})
}

func (s *Store) GetState(ctx context.Context, user core.UserID) (core.UserState, error) {
	var profile struct {
		Level         int            `db:"level"`
		CreatedMS     int64          `db:"created_ms"`
		UpdatedMS     int64          `db:"updated_ms"`
		StreakCurrent int            `db:"streak_current"`
		StreakLongest int            `db:"streak_longest"`
		StreakLast    sql.NullString `db:"streak_last"`
	}
	err := s.db.GetContext(ctx, &profile,
		s.db.Rebind(`SELECT level, created_ms, updated_ms, streak_current, streak_longest, streak_last FROM user_profiles WHERE user_id = ?`), user)
	if errors.Is(err, sql.ErrNoRows) {
		return core.NewUserState(user, time.Now().UTC()), nil
	}
	if err != nil {
		return core.UserState{}, err
	}

	state := core.UserState{
		UserID:       user,
		Points:       map[core.Metric]int64{},
		Inventory:    map[core.Item]int{},
		Level:        profile.Level,
		Distractions: map[core.AppID]struct{}{},
		ActiveBoosts: map[core.Item]time.Time{},
		CreatedOn:    time.UnixMilli(profile.CreatedMS).UTC(),
		Updated:      time.UnixMilli(profile.UpdatedMS).UTC(),
	}
	state.Streak = core.StreakData{
		Current: profile.StreakCurrent,
		Longest: profile.StreakLongest,
	}
	if profile.StreakLast.Valid && profile.StreakLast.String != "" {
		state.Streak.LastCompleted = core.Day(profile.StreakLast.String)
	}

	rows, err := s.db.QueryxContext(ctx,
		s.db.Rebind(`SELECT metric, points FROM user_points WHERE user_id = ?`), user)
	if err != nil {
		return core.UserState{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var metric string
		var points int64
		if err := rows.Scan(&metric, &points); err != nil {
			return core.UserState{}, err
		}
		state.Points[core.Metric(metric)] = points
	}

	inv, err := s.db.QueryxContext(ctx,
		s.db.Rebind(`SELECT item, count FROM user_inventory WHERE user_id = ?`), user)
	if err != nil {
		return core.UserState{}, err
	}
	defer inv.Close()
	for inv.Next() {
		var item string
		var count int
		if err := inv.Scan(&item, &count); err != nil {
			return core.UserState{}, err
		}
		state.Inventory[core.Item(item)] = count
	}

	boosts, err := s.db.QueryxContext(ctx,
		s.db.Rebind(`SELECT item, until_ms FROM user_boosts WHERE user_id = ?`), user)
	if err != nil {
		return core.UserState{}, err
	}
	defer boosts.Close()
	for boosts.Next() {
		var item string
		var ms int64
		if err := boosts.Scan(&item, &ms); err != nil {
			return core.UserState{}, err
		}
		state.ActiveBoosts[core.Item(item)] = time.UnixMilli(ms).UTC()
	}

	var apps []string
	if err := s.db.SelectContext(ctx, &apps,
		s.db.Rebind(`SELECT app FROM user_distractions WHERE user_id = ?`), user); err != nil {
		return core.UserState{}, err
	}
	for _, app := range apps {
		state.Distractions[core.AppID(app)] = struct{}{}
	}
	return state, nil
}
