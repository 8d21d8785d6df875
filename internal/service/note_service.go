package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"smart-notes-server/internal/apperr"
	"smart-notes-server/internal/domain"
	"smart-notes-server/internal/repository"

	"github.com/google/uuid"
)

type NoteService struct {
	repo        repository.NoteRepository
	versionRepo repository.NoteVersionRepository
}

func NewNoteService(repo repository.NoteRepository, versionRepo repository.NoteVersionRepository) *NoteService {
	return &NoteService{
		repo:        repo,
		versionRepo: versionRepo,
	}
}

func (s *NoteService) Create(ctx context.Context, userID string) (*domain.NoteResponse, error) {
	now := time.Now().UTC()

	note := &domain.Note{
		ID:        uuid.New().String(),
		UserID:    userID,
		Title:     domain.DefaultNoteTitle,
		Content:   "",
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.repo.Create(ctx, note); err != nil {
		return nil, err
	}

	return toNoteResponse(note), nil
}

// List returns the user's notes pinned first, newest first. A non-empty query
// keeps notes whose title, plain-text content or tags contain it.
func (s *NoteService) List(ctx context.Context, userID, query string) ([]*domain.NoteResponse, error) {
	notes, err := s.repo.List(ctx, userID)
	if err != nil {
		return nil, err
	}

	query = strings.TrimSpace(query)

	responses := make([]*domain.NoteResponse, 0, len(notes))
	for _, n := range notes {
		if query != "" && !matchesQuery(n, query) {
			continue
		}
		responses = append(responses, toNoteResponse(n))
	}

	return responses, nil
}

func (s *NoteService) GetByID(ctx context.Context, userID, noteID string) (*domain.NoteResponse, error) {
	note, err := findOwned(ctx, s.repo, userID, noteID)
	if err != nil {
		return nil, err
	}

	return toNoteResponse(note), nil
}

// Save snapshots the stored content and tags into the version log, then
// replaces title, content and tags with the request. Saving a locked note
// needs its password and writes the new content into the gated slot.
func (s *NoteService) Save(ctx context.Context, userID, noteID string, req *domain.UpdateNoteRequest) (*domain.NoteResponse, error) {
	note, err := findOwned(ctx, s.repo, userID, noteID)
	if err != nil {
		return nil, err
	}

	if note.IsEncrypted {
		if req.Password == "" {
			return nil, fmt.Errorf("note %s: %w", noteID, apperr.ErrLocked)
		}
		if err := verifyPassword(note, req.Password); err != nil {
			return nil, err
		}
	}

	if _, err := s.versionRepo.Record(ctx, note.ID, note.Content, note.Tags); err != nil {
		return nil, err
	}

	note.Title = req.Title
	note.Tags = NormalizeTags(req.Tags)
	if note.IsEncrypted {
		gated := req.Content
		note.EncryptedContent = &gated
		note.Content = ""
	} else {
		note.Content = req.Content
	}

	if err := s.repo.Update(ctx, note); err != nil {
		return nil, err
	}

	return s.reload(ctx, noteID)
}

func (s *NoteService) Delete(ctx context.Context, userID, noteID string) error {
	if _, err := findOwned(ctx, s.repo, userID, noteID); err != nil {
		return err
	}

	return s.repo.Delete(ctx, noteID)
}

func (s *NoteService) TogglePin(ctx context.Context, userID, noteID string) (*domain.NoteResponse, error) {
	if _, err := findOwned(ctx, s.repo, userID, noteID); err != nil {
		return nil, err
	}

	note, err := s.repo.TogglePin(ctx, noteID)
	if err != nil {
		return nil, err
	}

	return toNoteResponse(note), nil
}

func (s *NoteService) ListVersions(ctx context.Context, userID, noteID string) ([]*domain.NoteVersion, error) {
	note, err := findOwned(ctx, s.repo, userID, noteID)
	if err != nil {
		return nil, err
	}
	if note.IsEncrypted {
		return nil, fmt.Errorf("note %s: %w", noteID, apperr.ErrLocked)
	}

	return s.versionRepo.List(ctx, noteID)
}

// RestoreVersion copies a snapshot's content and tags back onto the note. It
// leaves the title alone and does not record a version of its own.
func (s *NoteService) RestoreVersion(ctx context.Context, userID, noteID string, number int64) (*domain.NoteResponse, error) {
	note, err := findOwned(ctx, s.repo, userID, noteID)
	if err != nil {
		return nil, err
	}
	if note.IsEncrypted {
		return nil, fmt.Errorf("note %s: %w", noteID, apperr.ErrLocked)
	}

	version, err := s.versionRepo.Get(ctx, noteID, number)
	if err != nil {
		return nil, err
	}

	if err := s.repo.UpdateContent(ctx, noteID, version.Content, version.Tags); err != nil {
		return nil, err
	}

	return s.reload(ctx, noteID)
}

func (s *NoteService) reload(ctx context.Context, noteID string) (*domain.NoteResponse, error) {
	note, err := s.repo.FindByID(ctx, noteID)
	if err != nil {
		return nil, err
	}

	return toNoteResponse(note), nil
}
