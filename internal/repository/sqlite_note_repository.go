package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"smart-notes-server/internal/apperr"
	"smart-notes-server/internal/domain"

	"github.com/jmoiron/sqlx"
)

const noteColumns = `id, user_id, title, content, is_pinned, is_encrypted,
	encrypted_content, password_hash, tags, created_at, updated_at`

type noteRow struct {
	ID               string         `db:"id"`
	UserID           string         `db:"user_id"`
	Title            string         `db:"title"`
	Content          string         `db:"content"`
	IsPinned         bool           `db:"is_pinned"`
	IsEncrypted      bool           `db:"is_encrypted"`
	EncryptedContent sql.NullString `db:"encrypted_content"`
	PasswordHash     sql.NullString `db:"password_hash"`
	Tags             sql.NullString `db:"tags"`
	CreatedAt        time.Time      `db:"created_at"`
	UpdatedAt        time.Time      `db:"updated_at"`
}

func (row *noteRow) toDomain() *domain.Note {
	return &domain.Note{
		ID:               row.ID,
		UserID:           row.UserID,
		Title:            row.Title,
		Content:          row.Content,
		IsPinned:         row.IsPinned,
		IsEncrypted:      row.IsEncrypted,
		EncryptedContent: stringPtr(row.EncryptedContent),
		PasswordHash:     stringPtr(row.PasswordHash),
		Tags:             decodeTags(row.Tags),
		CreatedAt:        row.CreatedAt,
		UpdatedAt:        row.UpdatedAt,
	}
}

type sqliteNoteRepository struct {
	db *sqlx.DB
}

func NewSQLiteNoteRepository(db *sqlx.DB) NoteRepository {
	return &sqliteNoteRepository{db: db}
}

func (r *sqliteNoteRepository) Create(ctx context.Context, note *domain.Note) error {
	tags, err := encodeTags(note.Tags)
	if err != nil {
		return fmt.Errorf("failed to encode tags: %w", err)
	}

	row := noteRow{
		ID:               note.ID,
		UserID:           note.UserID,
		Title:            note.Title,
		Content:          note.Content,
		IsPinned:         note.IsPinned,
		IsEncrypted:      note.IsEncrypted,
		EncryptedContent: nullString(note.EncryptedContent),
		PasswordHash:     nullString(note.PasswordHash),
		Tags:             tags,
		CreatedAt:        note.CreatedAt.UTC(),
		UpdatedAt:        note.UpdatedAt.UTC(),
	}

	query := `INSERT INTO notes (` + noteColumns + `)
	          VALUES (:id, :user_id, :title, :content, :is_pinned, :is_encrypted,
	                  :encrypted_content, :password_hash, :tags, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, row); err != nil {
		return storeError("create note", err)
	}

	return nil
}

func (r *sqliteNoteRepository) FindByID(ctx context.Context, id string) (*domain.Note, error) {
	var row noteRow
	err := r.db.GetContext(ctx, &row, `SELECT `+noteColumns+` FROM notes WHERE id = ?`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("note %s: %w", id, apperr.ErrNotFound)
		}
		return nil, storeError("find note", err)
	}

	return row.toDomain(), nil
}

func (r *sqliteNoteRepository) List(ctx context.Context, userID string) ([]*domain.Note, error) {
	var rows []noteRow
	query := `SELECT ` + noteColumns + ` FROM notes
	          WHERE user_id = ?
	          ORDER BY is_pinned DESC, updated_at DESC`
	if err := r.db.SelectContext(ctx, &rows, query, userID); err != nil {
		return nil, storeError("list notes", err)
	}

	notes := make([]*domain.Note, len(rows))
	for i := range rows {
		notes[i] = rows[i].toDomain()
	}

	return notes, nil
}

// Update guards on the lock state read by the caller so a save racing a lock
// change cannot put plain text into a locked note.
func (r *sqliteNoteRepository) Update(ctx context.Context, note *domain.Note) error {
	tags, err := encodeTags(note.Tags)
	if err != nil {
		return fmt.Errorf("failed to encode tags: %w", err)
	}

	if note.IsEncrypted {
		return r.exec(ctx, "update locked note", note.ID, `
			UPDATE notes SET title = ?, encrypted_content = ?, tags = ?, updated_at = ?
			WHERE id = ? AND is_encrypted = 1 AND password_hash = ?`,
			note.Title, nullString(note.EncryptedContent), tags, time.Now().UTC(),
			note.ID, nullString(note.PasswordHash))
	}

	return r.exec(ctx, "update note", note.ID, `
		UPDATE notes SET title = ?, content = ?, tags = ?, updated_at = ?
		WHERE id = ? AND is_encrypted = 0`,
		note.Title, note.Content, tags, time.Now().UTC(), note.ID)
}

func (r *sqliteNoteRepository) UpdateContent(ctx context.Context, id, content string, tags []string) error {
	encoded, err := encodeTags(tags)
	if err != nil {
		return fmt.Errorf("failed to encode tags: %w", err)
	}

	return r.exec(ctx, "restore note content", id,
		`UPDATE notes SET content = ?, tags = ?, updated_at = ? WHERE id = ? AND is_encrypted = 0`,
		content, encoded, time.Now().UTC(), id)
}

// TogglePin flips the flag inside a single statement so concurrent toggles
// never read a stale value.
func (r *sqliteNoteRepository) TogglePin(ctx context.Context, id string) (*domain.Note, error) {
	err := r.exec(ctx, "toggle pin", id,
		`UPDATE notes SET is_pinned = NOT is_pinned, updated_at = ? WHERE id = ?`,
		time.Now().UTC(), id)
	if err != nil {
		return nil, err
	}

	return r.FindByID(ctx, id)
}

func (r *sqliteNoteRepository) Lock(ctx context.Context, id string, content *string, passwordHash string) error {
	return r.exec(ctx, "lock note", id, `
		UPDATE notes
		SET is_encrypted = 1, encrypted_content = COALESCE(?, content), password_hash = ?,
		    content = '', updated_at = ?
		WHERE id = ? AND is_encrypted = 0`,
		nullString(content), passwordHash, time.Now().UTC(), id)
}

func (r *sqliteNoteRepository) RemoveLock(ctx context.Context, id, passwordHash string) error {
	return r.exec(ctx, "remove note lock", id, `
		UPDATE notes
		SET is_encrypted = 0, content = COALESCE(encrypted_content, ''), encrypted_content = NULL,
		    password_hash = NULL, updated_at = ?
		WHERE id = ? AND is_encrypted = 1 AND password_hash = ?`,
		time.Now().UTC(), id, passwordHash)
}

// Delete relies on ON DELETE CASCADE to drop the note's versions.
func (r *sqliteNoteRepository) Delete(ctx context.Context, id string) error {
	return r.exec(ctx, "delete note", id, `DELETE FROM notes WHERE id = ?`, id)
}

// exec runs a single-row write. When no row matched it tells a missing note
// (ErrNotFound) apart from one whose state failed the guard (ErrConflict).
func (r *sqliteNoteRepository) exec(ctx context.Context, op, id, query string, args ...interface{}) error {
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return storeError(op, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return storeError(op, err)
	}
	if affected > 0 {
		return nil
	}

	var exists bool
	if err := r.db.GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM notes WHERE id = ?)`, id); err != nil {
		return storeError(op, err)
	}
	if !exists {
		return fmt.Errorf("note %s: %w", id, apperr.ErrNotFound)
	}
	return fmt.Errorf("note %s changed lock state: %w", id, apperr.ErrConflict)
}
