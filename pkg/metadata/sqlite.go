package metadata

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/Liiesl/EasyScanlate/pkg/common"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS installations (
	app_id            TEXT PRIMARY KEY,
	display_name      TEXT NOT NULL,
	version           TEXT NOT NULL,
	publisher         TEXT NOT NULL,
	install_dir       TEXT NOT NULL,
	uninstall_command TEXT NOT NULL,
	estimated_size_kb INTEGER NOT NULL,
	install_date      TEXT NOT NULL
);`

// Immutable
type sqliteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (creating if needed) the database at path.
func NewSQLiteStore(path string) (Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one writer at a time.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	for _, stmt := range []string{"PRAGMA busy_timeout=5000", sqliteSchema} {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to initialize schema: %w", err)
		}
	}
	return &sqliteStore{db: db}, nil
}

func (s *sqliteStore) Write(ctx context.Context, state common.InstallationState) error {
	if err := validate(state); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, `
INSERT INTO installations
	(app_id, display_name, version, publisher, install_dir, uninstall_command, estimated_size_kb, install_date)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(app_id) DO UPDATE SET
	display_name = excluded.display_name,
	version = excluded.version,
	publisher = excluded.publisher,
	install_dir = excluded.install_dir,
	uninstall_command = excluded.uninstall_command,
	estimated_size_kb = excluded.estimated_size_kb,
	install_date = excluded.install_date`,
		state.AppID, state.DisplayName, state.Version, state.Publisher, state.InstallDir,
		state.UninstallCommand, state.EstimatedSizeKB, state.InstallDate.UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("failed to write installation record: %w", err)
	}
	return nil
}

func (s *sqliteStore) Erase(ctx context.Context, appID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM installations WHERE app_id = ?`, appID); err != nil {
		return fmt.Errorf("failed to erase installation record: %w", err)
	}
	return nil
}

func (s *sqliteStore) Read(ctx context.Context, appID string) (*common.InstallationState, error) {
	var state common.InstallationState
	var date string
	err := s.db.QueryRowContext(ctx, `
SELECT app_id, display_name, version, publisher, install_dir, uninstall_command, estimated_size_kb, install_date
FROM installations WHERE app_id = ?`, appID).Scan(
		&state.AppID, &state.DisplayName, &state.Version, &state.Publisher, &state.InstallDir,
		&state.UninstallCommand, &state.EstimatedSizeKB, &date)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read installation record: %w", err)
	}
	if state.InstallDate, err = time.Parse(time.RFC3339, date); err != nil {
		return nil, fmt.Errorf("bad install date %q: %w", date, err)
	}
	return &state, nil
}

func (s *sqliteStore) Close() error {
	return s.db.Close()
}
