package repository

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS notes (
	id                TEXT PRIMARY KEY,
	user_id           TEXT NOT NULL,
	title             TEXT NOT NULL DEFAULT 'Untitled Note',
	content           TEXT NOT NULL DEFAULT '',
	is_pinned         BOOLEAN NOT NULL DEFAULT 0,
	is_encrypted      BOOLEAN NOT NULL DEFAULT 0,
	encrypted_content TEXT,
	password_hash     TEXT,
	tags              TEXT,
	created_at        DATETIME NOT NULL,
	updated_at        DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_notes_user_order ON notes(user_id, is_pinned DESC, updated_at DESC);

CREATE TABLE IF NOT EXISTS note_versions (
	id             TEXT PRIMARY KEY,
	note_id        TEXT NOT NULL REFERENCES notes(id) ON DELETE CASCADE,
	content        TEXT NOT NULL DEFAULT '',
	tags           TEXT,
	version_number INTEGER NOT NULL,
	created_at     DATETIME NOT NULL,
	UNIQUE(note_id, version_number)
);
`

// OpenSQLite opens (or creates) the database file and applies the schema.
func OpenSQLite(path string) (*sqlx.DB, error) {
	db, err := sqlx.Connect("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to connect to sqlite database: %w", err)
	}

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply sqlite schema: %w", err)
	}

	return db, nil
}

// Tags live in a nullable TEXT column as a JSON array; NULL means "no tags".
func encodeTags(tags []string) (sql.NullString, error) {
	if tags == nil {
		return sql.NullString{}, nil
	}
	data, err := json.Marshal(tags)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}

func decodeTags(raw sql.NullString) []string {
	if !raw.Valid || raw.String == "" {
		return nil
	}
	var tags []string
	if err := json.Unmarshal([]byte(raw.String), &tags); err != nil {
		return nil
	}
	return tags
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func stringPtr(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	v := s.String
	return &v
}
