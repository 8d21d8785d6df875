package repository

import (
	"context"
	"fmt"
	"net/http"
	"slices"
	"time"

	"smart-notes-server/internal/apperr"
	"smart-notes-server/internal/domain"

	"github.com/go-kivik/kivik/v4"
)

const (
	kindNote    = "note"
	kindVersion = "version"

	// conflictRetries bounds the revision-checked write loops.
	conflictRetries = 5
)

type NoteRepository interface {
	Create(ctx context.Context, note *domain.Note) error
	FindByID(ctx context.Context, id string) (*domain.Note, error)
	// List returns the user's notes, pinned first, then most recently updated.
	List(ctx context.Context, userID string) ([]*domain.Note, error)
	// Update writes title, tags and the content slot matching note.IsEncrypted:
	// content for an unlocked note, encrypted_content for a locked one. It fails
	// with ErrConflict when the stored lock state or password hash no longer
	// matches note.
	Update(ctx context.Context, note *domain.Note) error
	// UpdateContent replaces content and tags of an unlocked note.
	UpdateContent(ctx context.Context, id, content string, tags []string) error
	TogglePin(ctx context.Context, id string) (*domain.Note, error)
	// Lock moves an unlocked note behind passwordHash. A nil content locks the
	// content stored at write time.
	Lock(ctx context.Context, id string, content *string, passwordHash string) error
	// RemoveLock moves the gated content back into content, provided the note
	// is still locked with passwordHash.
	RemoveLock(ctx context.Context, id, passwordHash string) error
	// Delete removes the note together with its versions.
	Delete(ctx context.Context, id string) error
}

type noteDoc struct {
	DocID string `json:"_id,omitempty"`
	Rev   string `json:"_rev,omitempty"`
	Kind  string `json:"kind"`
	domain.Note
}

type noteRepository struct {
	client *kivik.Client
	dbName string
}

func NewNoteRepository(client *kivik.Client, dbName string) NoteRepository {
	return &noteRepository{
		client: client,
		dbName: dbName,
	}
}

func noteDocID(id string) string {
	return fmt.Sprintf("note:%s", id)
}

func (r *noteRepository) Create(ctx context.Context, note *domain.Note) error {
	db := r.client.DB(r.dbName)

	doc := noteDoc{Kind: kindNote, Note: *note}
	if _, err := db.Put(ctx, noteDocID(note.ID), doc); err != nil {
		return storeError("create note", err)
	}

	return nil
}

func (r *noteRepository) get(ctx context.Context, id string) (*noteDoc, error) {
	db := r.client.DB(r.dbName)

	var doc noteDoc
	if err := db.Get(ctx, noteDocID(id)).ScanDoc(&doc); err != nil {
		if kivik.HTTPStatus(err) == http.StatusNotFound {
			return nil, fmt.Errorf("note %s: %w", id, apperr.ErrNotFound)
		}
		return nil, storeError("find note", err)
	}

	return &doc, nil
}

func (r *noteRepository) FindByID(ctx context.Context, id string) (*domain.Note, error) {
	doc, err := r.get(ctx, id)
	if err != nil {
		return nil, err
	}

	note := doc.Note
	return &note, nil
}

func (r *noteRepository) List(ctx context.Context, userID string) ([]*domain.Note, error) {
	docs, err := findAll[noteDoc](ctx, r.client.DB(r.dbName), map[string]interface{}{
		"kind":    kindNote,
		"user_id": userID,
	}, "notes")
	if err != nil {
		return nil, err
	}

	notes := make([]*domain.Note, len(docs))
	for i, d := range docs {
		note := d.Note
		notes[i] = &note
	}

	SortNotes(notes)
	return notes, nil
}

// mutate re-reads the note and retries the write whenever CouchDB reports a
// revision conflict, so every change applies to the latest stored state. An
// error from apply aborts without writing.
func (r *noteRepository) mutate(ctx context.Context, id string, apply func(*domain.Note) error) (*domain.Note, error) {
	db := r.client.DB(r.dbName)

	for attempt := 0; attempt < conflictRetries; attempt++ {
		doc, err := r.get(ctx, id)
		if err != nil {
			return nil, err
		}

		if err := apply(&doc.Note); err != nil {
			return nil, err
		}
		doc.UpdatedAt = time.Now().UTC()

		_, err = db.Put(ctx, doc.DocID, doc)
		if err == nil {
			note := doc.Note
			return &note, nil
		}
		if kivik.HTTPStatus(err) != http.StatusConflict {
			return nil, storeError("update note", err)
		}
	}

	return nil, storeError("update note", fmt.Errorf("note %s: %w after %d attempts", id, apperr.ErrConflict, conflictRetries))
}

func lockConflict(id string) error {
	return fmt.Errorf("note %s changed lock state: %w", id, apperr.ErrConflict)
}

func lockedWith(n *domain.Note, passwordHash *string) bool {
	return n.IsEncrypted && n.PasswordHash != nil && passwordHash != nil && *n.PasswordHash == *passwordHash
}

func (r *noteRepository) Update(ctx context.Context, note *domain.Note) error {
	_, err := r.mutate(ctx, note.ID, func(n *domain.Note) error {
		if note.IsEncrypted {
			if !lockedWith(n, note.PasswordHash) {
				return lockConflict(note.ID)
			}
			n.EncryptedContent = note.EncryptedContent
		} else {
			if n.IsEncrypted {
				return lockConflict(note.ID)
			}
			n.Content = note.Content
		}
		n.Title = note.Title
		n.Tags = note.Tags
		return nil
	})
	return err
}

func (r *noteRepository) UpdateContent(ctx context.Context, id, content string, tags []string) error {
	_, err := r.mutate(ctx, id, func(n *domain.Note) error {
		if n.IsEncrypted {
			return lockConflict(id)
		}
		n.Content = content
		n.Tags = tags
		return nil
	})
	return err
}

func (r *noteRepository) TogglePin(ctx context.Context, id string) (*domain.Note, error) {
	return r.mutate(ctx, id, func(n *domain.Note) error {
		n.IsPinned = !n.IsPinned
		return nil
	})
}

func (r *noteRepository) Lock(ctx context.Context, id string, content *string, passwordHash string) error {
	_, err := r.mutate(ctx, id, func(n *domain.Note) error {
		if n.IsEncrypted {
			return lockConflict(id)
		}
		gated := n.Content
		if content != nil {
			gated = *content
		}
		n.IsEncrypted = true
		n.EncryptedContent = &gated
		n.PasswordHash = &passwordHash
		n.Content = ""
		return nil
	})
	return err
}

func (r *noteRepository) RemoveLock(ctx context.Context, id, passwordHash string) error {
	_, err := r.mutate(ctx, id, func(n *domain.Note) error {
		if !lockedWith(n, &passwordHash) {
			return lockConflict(id)
		}
		n.Content = ""
		if n.EncryptedContent != nil {
			n.Content = *n.EncryptedContent
		}
		n.IsEncrypted = false
		n.EncryptedContent = nil
		n.PasswordHash = nil
		return nil
	})
	return err
}

func (r *noteRepository) Delete(ctx context.Context, id string) error {
	db := r.client.DB(r.dbName)

	doc, err := r.get(ctx, id)
	if err != nil {
		return err
	}

	if _, err := db.Delete(ctx, doc.DocID, doc.Rev); err != nil {
		return storeError("delete note", err)
	}

	versions, err := findVersionDocs(ctx, db, id)
	if err != nil {
		return err
	}
	for _, v := range versions {
		if _, err := db.Delete(ctx, v.DocID, v.Rev); err != nil && kivik.HTTPStatus(err) != http.StatusNotFound {
			return storeError("delete note version", err)
		}
	}

	return nil
}

// SortNotes orders notes pinned first, then by updated_at descending.
func SortNotes(notes []*domain.Note) {
	slices.SortStableFunc(notes, func(a, b *domain.Note) int {
		if a.IsPinned != b.IsPinned {
			if a.IsPinned {
				return -1
			}
			return 1
		}
		return b.UpdatedAt.Compare(a.UpdatedAt)
	})
}

const findPageSize = 200

// findAll pages through a Mango query by bookmark. CouchDB answers an
// unbounded _find with at most 25 documents.
func findAll[T any](ctx context.Context, db *kivik.DB, selector map[string]interface{}, what string) ([]*T, error) {
	var (
		docs     []*T
		bookmark string
	)

	for {
		query := map[string]interface{}{
			"selector": selector,
			"limit":    findPageSize,
		}
		if bookmark != "" {
			query["bookmark"] = bookmark
		}

		page, next, err := findPage[T](ctx, db, query, what)
		if err != nil {
			return nil, err
		}
		docs = append(docs, page...)

		if len(page) < findPageSize || next == "" || next == bookmark {
			return docs, nil
		}
		bookmark = next
	}
}

func findPage[T any](ctx context.Context, db *kivik.DB, query map[string]interface{}, what string) ([]*T, string, error) {
	rows := db.Find(ctx, query)
	defer rows.Close()

	var page []*T
	for rows.Next() {
		doc := new(T)
		if err := rows.ScanDoc(doc); err != nil {
			return nil, "", storeError("scan "+what, err)
		}
		page = append(page, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, "", storeError("list "+what, err)
	}

	meta, err := rows.Metadata()
	if err != nil {
		return nil, "", storeError("list "+what, err)
	}

	return page, meta.Bookmark, nil
}
