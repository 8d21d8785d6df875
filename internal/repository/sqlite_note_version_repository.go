package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"smart-notes-server/internal/apperr"
	"smart-notes-server/internal/domain"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/mattn/go-sqlite3"
)

type versionRow struct {
	ID            string         `db:"id"`
	NoteID        string         `db:"note_id"`
	Content       string         `db:"content"`
	Tags          sql.NullString `db:"tags"`
	VersionNumber int64          `db:"version_number"`
	CreatedAt     time.Time      `db:"created_at"`
}

func (row *versionRow) toDomain() *domain.NoteVersion {
	return &domain.NoteVersion{
		ID:            row.ID,
		NoteID:        row.NoteID,
		Content:       row.Content,
		Tags:          decodeTags(row.Tags),
		VersionNumber: row.VersionNumber,
		CreatedAt:     row.CreatedAt,
	}
}

type sqliteNoteVersionRepository struct {
	db *sqlx.DB
}

func NewSQLiteNoteVersionRepository(db *sqlx.DB) NoteVersionRepository {
	return &sqliteNoteVersionRepository{db: db}
}

// Record computes max+1 inside the INSERT itself; the UNIQUE(note_id,
// version_number) constraint backs it up, and a collision is retried.
func (r *sqliteNoteVersionRepository) Record(ctx context.Context, noteID, content string, tags []string) (*domain.NoteVersion, error) {
	encoded, err := encodeTags(tags)
	if err != nil {
		return nil, fmt.Errorf("failed to encode tags: %w", err)
	}

	query := `
		INSERT INTO note_versions (id, note_id, content, tags, version_number, created_at)
		SELECT ?, ?, ?, ?, COALESCE(MAX(version_number), 0) + 1, ?
		FROM note_versions WHERE note_id = ?
		RETURNING version_number`

	for attempt := 0; attempt < conflictRetries; attempt++ {
		version := &domain.NoteVersion{
			ID:        uuid.New().String(),
			NoteID:    noteID,
			Content:   content,
			Tags:      tags,
			CreatedAt: time.Now().UTC(),
		}

		err := r.db.QueryRowxContext(ctx, query,
			version.ID, noteID, content, encoded, version.CreatedAt, noteID,
		).Scan(&version.VersionNumber)
		if err == nil {
			return version, nil
		}

		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) {
			switch sqliteErr.ExtendedCode {
			case sqlite3.ErrConstraintForeignKey:
				return nil, fmt.Errorf("note %s: %w", noteID, apperr.ErrNotFound)
			case sqlite3.ErrConstraintUnique, sqlite3.ErrConstraintPrimaryKey:
				continue
			}
		}
		return nil, storeError("save version", err)
	}

	return nil, storeError("save version", fmt.Errorf("note %s: %w after %d attempts", noteID, apperr.ErrConflict, conflictRetries))
}

func (r *sqliteNoteVersionRepository) List(ctx context.Context, noteID string) ([]*domain.NoteVersion, error) {
	var rows []versionRow
	query := `SELECT id, note_id, content, tags, version_number, created_at
	          FROM note_versions WHERE note_id = ?
	          ORDER BY version_number DESC`
	if err := r.db.SelectContext(ctx, &rows, query, noteID); err != nil {
		return nil, storeError("list versions", err)
	}

	versions := make([]*domain.NoteVersion, len(rows))
	for i := range rows {
		versions[i] = rows[i].toDomain()
	}

	return versions, nil
}

func (r *sqliteNoteVersionRepository) Get(ctx context.Context, noteID string, number int64) (*domain.NoteVersion, error) {
	var row versionRow
	query := `SELECT id, note_id, content, tags, version_number, created_at
	          FROM note_versions WHERE note_id = ? AND version_number = ?`
	if err := r.db.GetContext(ctx, &row, query, noteID, number); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("version %d of note %s: %w", number, noteID, apperr.ErrNotFound)
		}
		return nil, storeError("find version", err)
	}

	return row.toDomain(), nil
}
