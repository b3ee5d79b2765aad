package profile

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rileyhilliard/vmhop/internal/errors"
	"github.com/rileyhilliard/vmhop/internal/logger"

	_ "modernc.org/sqlite"
)

const profilesSchema = `
CREATE TABLE IF NOT EXISTS profiles (
	name           TEXT PRIMARY KEY COLLATE NOCASE,
	server_address TEXT NOT NULL,
	username       TEXT NOT NULL DEFAULT '',
	last_connected TEXT,
	position       INTEGER NOT NULL,
	updated_at     TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
)`

// position keeps insertion order stable across renames of the same row.
const upsertProfileSQL = `
	INSERT INTO profiles (name, server_address, username, last_connected, position, updated_at)
	VALUES (?, ?, ?, ?, (SELECT COALESCE(MAX(position), 0) + 1 FROM profiles), CURRENT_TIMESTAMP)
	ON CONFLICT(name) DO UPDATE SET
		name = excluded.name,
		server_address = excluded.server_address,
		username = excluded.username,
		last_connected = excluded.last_connected,
		updated_at = CURRENT_TIMESTAMP
`

// SQLiteStore keeps profiles in a SQLite database.
type SQLiteStore struct {
	db  *sql.DB
	log logger.Logger
}

// OpenSQLiteStore opens (and creates if needed) the database at path.
func OpenSQLiteStore(ctx context.Context, path string, log logger.Logger) (*SQLiteStore, error) {
	if log == nil {
		log = logger.Noop()
	}

	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
			return nil, errors.WrapWithCode(err, errors.ErrProfile,
				"Failed to create profiles directory",
				fmt.Sprintf("Check permissions on %s", filepath.Dir(path)))
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrProfile, "Failed to open profiles database", "")
	}
	db.SetMaxOpenConns(1)

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if _, err := db.ExecContext(ctx, "PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, errors.WrapWithCode(err, errors.ErrProfile, "Failed to configure profiles database", "")
	}
	if _, err := db.ExecContext(ctx, profilesSchema); err != nil {
		db.Close()
		return nil, errors.WrapWithCode(err, errors.ErrProfile,
			"Failed to create profiles table",
			fmt.Sprintf("Remove %s if it is corrupted", path))
	}

	return &SQLiteStore{db: db, log: log}, nil
}

// Close releases the database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// List returns every stored profile in insertion order.
func (s *SQLiteStore) List(ctx context.Context) ([]Profile, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT name, server_address, username, last_connected FROM profiles ORDER BY position`)
	if err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrProfile, "Failed to list profiles", "")
	}
	defer rows.Close()

	var out []Profile
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrProfile, "Failed to list profiles", "")
	}
	return out, nil
}

// Get looks a profile up by name.
func (s *SQLiteStore) Get(ctx context.Context, name string) (Profile, bool, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT name, server_address, username, last_connected FROM profiles WHERE name = ?`,
		normalizeName(name))
	p, err := scanProfile(row)
	if err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return Profile{}, false, nil
		}
		return Profile{}, false, err
	}
	return p, true, nil
}

// Save inserts or replaces the profile with the same name.
func (s *SQLiteStore) Save(ctx context.Context, p Profile) error {
	if err := ValidateName(p.Name); err != nil {
		return err
	}
	p.Name = normalizeName(p.Name)

	var lastConnected sql.NullString
	if p.LastConnected != nil {
		lastConnected = sql.NullString{String: p.LastConnected.UTC().Format(time.RFC3339Nano), Valid: true}
	}

	if _, err := s.db.ExecContext(ctx, upsertProfileSQL, p.Name, p.ServerAddress, p.Username, lastConnected); err != nil {
		return errors.WrapWithCode(err, errors.ErrProfile,
			fmt.Sprintf("Failed to save profile '%s'", p.Name), "")
	}
	s.log.Info("saved profile: %s", p.Name)
	return nil
}

// Delete removes a profile. Missing profiles are logged and ignored.
func (s *SQLiteStore) Delete(ctx context.Context, name string) error {
	if err := ValidateName(name); err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM profiles WHERE name = ?`, normalizeName(name))
	if err != nil {
		return errors.WrapWithCode(err, errors.ErrProfile,
			fmt.Sprintf("Failed to delete profile '%s'", name), "")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		s.log.Warn("profile not found for deletion: %s", name)
		return nil
	}
	s.log.Info("deleted profile: %s", name)
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProfile(row rowScanner) (Profile, error) {
	var (
		p             Profile
		lastConnected sql.NullString
	)
	if err := row.Scan(&p.Name, &p.ServerAddress, &p.Username, &lastConnected); err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return Profile{}, err
		}
		return Profile{}, errors.WrapWithCode(err, errors.ErrProfile, "Failed to read profile row", "")
	}
	if lastConnected.Valid && lastConnected.String != "" {
		ts, err := time.Parse(time.RFC3339Nano, lastConnected.String)
		if err == nil {
			p.LastConnected = &ts
		}
	}
	return p, nil
}
