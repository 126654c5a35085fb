package sqlx

import "context"

// schema uses portable DDL; `date` and `name` stay quoted-free by using
// plain identifiers valid in both Postgres and MySQL.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS user_profiles (
		user_id        VARCHAR(128) PRIMARY KEY,
		level          INT NOT NULL DEFAULT 1,
		streak_current INT NOT NULL DEFAULT 0,
		streak_longest INT NOT NULL DEFAULT 0,
		streak_last    VARCHAR(10),
		created_ms     BIGINT NOT NULL,
		updated_ms     BIGINT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS user_points (
		user_id    VARCHAR(128) NOT NULL,
		metric     VARCHAR(32) NOT NULL,
		points     BIGINT NOT NULL DEFAULT 0,
		created_ms BIGINT NOT NULL,
		updated_ms BIGINT NOT NULL,
		PRIMARY KEY (user_id, metric)
	)`,
	`CREATE TABLE IF NOT EXISTS user_inventory (
		user_id VARCHAR(128) NOT NULL,
		item    VARCHAR(32) NOT NULL,
		count   INT NOT NULL DEFAULT 0,
		PRIMARY KEY (user_id, item)
	)`,
	`CREATE TABLE IF NOT EXISTS user_boosts (
		user_id  VARCHAR(128) NOT NULL,
		item     VARCHAR(32) NOT NULL,
		until_ms BIGINT NOT NULL,
		PRIMARY KEY (user_id, item)
	)`,
	`CREATE TABLE IF NOT EXISTS user_distractions (
		user_id VARCHAR(128) NOT NULL,
		app     VARCHAR(255) NOT NULL,
		PRIMARY KEY (user_id, app)
	)`,
	`CREATE TABLE IF NOT EXISTS user_passes (
		user_id   VARCHAR(128) PRIMARY KEY,
		date      VARCHAR(10) NOT NULL,
		remaining INT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS user_unlocks (
		user_id  VARCHAR(128) NOT NULL,
		app      VARCHAR(255) NOT NULL,
		until_ms BIGINT NOT NULL,
		PRIMARY KEY (user_id, app)
	)`,
	`CREATE TABLE IF NOT EXISTS user_settings (
		user_id VARCHAR(128) NOT NULL,
		name    VARCHAR(64) NOT NULL,
		value   INT NOT NULL,
		PRIMARY KEY (user_id, name)
	)`,
}

// EnsureSchema creates the tables if they do not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	for _, stmt := range schemaStatements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
