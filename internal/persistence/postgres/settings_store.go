package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/straddle-io/straddle/errs"
)

const appVersionKey = "app_version"

// SettingsStore persists the app_settings key-value table.
type SettingsStore struct {
	pool *pgxpool.Pool
}

const settingsUpsertSQL = `
INSERT INTO app_settings (key, value, updated_at)
VALUES (@key, @value, @updated_at)
ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at`

const settingsSelectSQL = `SELECT value FROM app_settings WHERE key = @key`

// Set writes one setting.
func (s *SettingsStore) Set(ctx context.Context, key, value string) error {
	_, err := s.pool.Exec(ctx, settingsUpsertSQL, pgx.NamedArgs{
		"key": key, "value": value, "updated_at": time.Now(),
	})
	return err
}

// Get reads one setting. The second return is false when the key is absent.
func (s *SettingsStore) Get(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.pool.QueryRow(ctx, settingsSelectSQL, pgx.NamedArgs{"key": key}).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return value, true, nil
}

// EnsureAppVersion records the running version on first start and refuses to
// run against state written by a different version.
func (s *SettingsStore) EnsureAppVersion(ctx context.Context, version string) error {
	stored, found, err := s.Get(ctx, appVersionKey)
	if err != nil {
		return err
	}
	if !found {
		return s.Set(ctx, appVersionKey, version)
	}
	if stored != version {
		return errs.New("postgres", errs.CodeConflict,
			errs.WithCanonicalCode(errs.CanonicalVersionMismatch),
			errs.WithMessage("persisted state version "+stored+" does not match running version "+version),
			errs.WithRemediation("migrate or clear the database before starting this release"))
	}
	return nil
}
