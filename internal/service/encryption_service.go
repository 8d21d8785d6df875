package service

import (
	"context"
	"fmt"

	"smart-notes-server/internal/apperr"
	"smart-notes-server/internal/domain"
	"smart-notes-server/internal/repository"
	"smart-notes-server/pkg/hash"
)

// EncryptionService moves notes between the unlocked and locked states.
//
// A locked note keeps its body in the gated slot behind a bcrypt hash of the
// password. The body itself is stored as-is; only access is gated.
type EncryptionService struct {
	repo repository.NoteRepository
}

func NewEncryptionService(repo repository.NoteRepository) *EncryptionService {
	return &EncryptionService{repo: repo}
}

// Encrypt locks the note. When req.Content is set it is locked instead of the
// stored content, so an unsaved editor buffer is not lost.
func (s *EncryptionService) Encrypt(ctx context.Context, userID, noteID string, req *domain.EncryptNoteRequest) (*domain.NoteResponse, error) {
	if req.Password == "" {
		return nil, fmt.Errorf("%w: password is required", apperr.ErrInvalidRequest)
	}

	note, err := findOwned(ctx, s.repo, userID, noteID)
	if err != nil {
		return nil, err
	}
	if note.IsEncrypted {
		return nil, fmt.Errorf("note %s is already locked: %w", noteID, apperr.ErrConflict)
	}

	hashed, err := hash.Hash(req.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	if err := s.repo.Lock(ctx, noteID, req.Content, hashed); err != nil {
		return nil, err
	}

	return s.reload(ctx, noteID)
}

// Unlock reveals a locked note's content without changing what is stored.
func (s *EncryptionService) Unlock(ctx context.Context, userID, noteID, password string) (*domain.UnlockedNoteResponse, error) {
	note, err := s.lockedNote(ctx, userID, noteID, password)
	if err != nil {
		return nil, err
	}

	var content string
	if note.EncryptedContent != nil {
		content = *note.EncryptedContent
	}

	return &domain.UnlockedNoteResponse{
		ID:      note.ID,
		Title:   note.Title,
		Content: content,
		Tags:    note.Tags,
	}, nil
}

// Decrypt removes the lock, moving the gated content back to plain content.
func (s *EncryptionService) Decrypt(ctx context.Context, userID, noteID, password string) (*domain.NoteResponse, error) {
	note, err := s.lockedNote(ctx, userID, noteID, password)
	if err != nil {
		return nil, err
	}

	if err := s.repo.RemoveLock(ctx, noteID, *note.PasswordHash); err != nil {
		return nil, err
	}

	return s.reload(ctx, noteID)
}

func (s *EncryptionService) lockedNote(ctx context.Context, userID, noteID, password string) (*domain.Note, error) {
	note, err := findOwned(ctx, s.repo, userID, noteID)
	if err != nil {
		return nil, err
	}
	if !note.IsEncrypted {
		return nil, fmt.Errorf("note %s is not locked: %w", noteID, apperr.ErrConflict)
	}
	if err := verifyPassword(note, password); err != nil {
		return nil, err
	}
	return note, nil
}

func (s *EncryptionService) reload(ctx context.Context, noteID string) (*domain.NoteResponse, error) {
	note, err := s.repo.FindByID(ctx, noteID)
	if err != nil {
		return nil, err
	}
	return toNoteResponse(note), nil
}
