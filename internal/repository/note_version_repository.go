package repository

import (
	"cmp"
	"context"
	"fmt"
	"net/http"
	"slices"
	"time"

	"smart-notes-server/internal/apperr"
	"smart-notes-server/internal/domain"

	"github.com/go-kivik/kivik/v4"
	"github.com/google/uuid"
)

type NoteVersionRepository interface {
	// Record appends a snapshot numbered one above the note's current maximum.
	Record(ctx context.Context, noteID, content string, tags []string) (*domain.NoteVersion, error)
	// List returns the note's versions, highest version number first.
	List(ctx context.Context, noteID string) ([]*domain.NoteVersion, error)
	Get(ctx context.Context, noteID string, number int64) (*domain.NoteVersion, error)
}

type versionDoc struct {
	DocID string `json:"_id,omitempty"`
	Rev   string `json:"_rev,omitempty"`
	Kind  string `json:"kind"`
	domain.NoteVersion
}

type noteVersionRepository struct {
	client *kivik.Client
	dbName string
}

func NewNoteVersionRepository(client *kivik.Client, dbName string) NoteVersionRepository {
	return &noteVersionRepository{
		client: client,
		dbName: dbName,
	}
}

// Version doc ids are derived from the number, so two writers racing for the
// same number collide on the id and the loser retries with the next one.
func versionDocID(noteID string, number int64) string {
	return fmt.Sprintf("version:%s:%d", noteID, number)
}

func (r *noteVersionRepository) Record(ctx context.Context, noteID, content string, tags []string) (*domain.NoteVersion, error) {
	db := r.client.DB(r.dbName)

	if err := db.Get(ctx, noteDocID(noteID)).Err(); err != nil {
		if kivik.HTTPStatus(err) == http.StatusNotFound {
			return nil, fmt.Errorf("note %s: %w", noteID, apperr.ErrNotFound)
		}
		return nil, storeError("find note", err)
	}

	existing, err := findVersionDocs(ctx, db, noteID)
	if err != nil {
		return nil, err
	}

	var latest int64
	for _, v := range existing {
		latest = max(latest, v.VersionNumber)
	}

	for attempt := 0; attempt < conflictRetries; attempt++ {
		version := domain.NoteVersion{
			ID:            uuid.New().String(),
			NoteID:        noteID,
			Content:       content,
			Tags:          tags,
			VersionNumber: latest + 1,
			CreatedAt:     time.Now().UTC(),
		}

		doc := versionDoc{Kind: kindVersion, NoteVersion: version}
		_, err = db.Put(ctx, versionDocID(noteID, version.VersionNumber), doc)
		if err == nil {
			return &version, nil
		}
		if kivik.HTTPStatus(err) != http.StatusConflict {
			return nil, storeError("save version", err)
		}
		// another writer took this number
		latest = version.VersionNumber
	}

	return nil, storeError("save version", fmt.Errorf("note %s: %w after %d attempts", noteID, apperr.ErrConflict, conflictRetries))
}

func (r *noteVersionRepository) List(ctx context.Context, noteID string) ([]*domain.NoteVersion, error) {
	docs, err := findVersionDocs(ctx, r.client.DB(r.dbName), noteID)
	if err != nil {
		return nil, err
	}

	versions := make([]*domain.NoteVersion, len(docs))
	for i, d := range docs {
		v := d.NoteVersion
		versions[i] = &v
	}

	slices.SortFunc(versions, func(a, b *domain.NoteVersion) int {
		return cmp.Compare(b.VersionNumber, a.VersionNumber)
	})

	return versions, nil
}

func (r *noteVersionRepository) Get(ctx context.Context, noteID string, number int64) (*domain.NoteVersion, error) {
	db := r.client.DB(r.dbName)

	var doc versionDoc
	if err := db.Get(ctx, versionDocID(noteID, number)).ScanDoc(&doc); err != nil {
		if kivik.HTTPStatus(err) == http.StatusNotFound {
			return nil, fmt.Errorf("version %d of note %s: %w", number, noteID, apperr.ErrNotFound)
		}
		return nil, storeError("find version", err)
	}

	version := doc.NoteVersion
	return &version, nil
}

func findVersionDocs(ctx context.Context, db *kivik.DB, noteID string) ([]*versionDoc, error) {
	return findAll[versionDoc](ctx, db, map[string]interface{}{
		"kind":    kindVersion,
		"note_id": noteID,
	}, "versions")
}
