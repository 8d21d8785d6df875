package service

import (
	"context"
	"fmt"
	"strings"

	"smart-notes-server/internal/apperr"
	"smart-notes-server/internal/domain"
	"smart-notes-server/internal/repository"
	"smart-notes-server/pkg/hash"
	"smart-notes-server/pkg/markup"
)

const previewLength = 100

func findOwned(ctx context.Context, repo repository.NoteRepository, userID, noteID string) (*domain.Note, error) {
	note, err := repo.FindByID(ctx, noteID)
	if err != nil {
		return nil, err
	}

	if note.UserID != userID {
		return nil, fmt.Errorf("note %s: %w", noteID, apperr.ErrForbidden)
	}

	return note, nil
}

// verifyPassword checks password against a locked note's hash.
func verifyPassword(note *domain.Note, password string) error {
	if note.PasswordHash == nil || password == "" {
		return apperr.ErrInvalidCredentials
	}
	if err := hash.Compare(*note.PasswordHash, password); err != nil {
		return apperr.ErrInvalidCredentials
	}
	return nil
}

// toNoteResponse copies the public fields. The gated slot and the hash are
// never part of a response, and a locked note shows no content at all.
func toNoteResponse(n *domain.Note) *domain.NoteResponse {
	var content string
	if !n.IsEncrypted {
		content = n.Content
	}

	return &domain.NoteResponse{
		ID:          n.ID,
		UserID:      n.UserID,
		Title:       n.Title,
		Content:     content,
		Preview:     markup.Preview(content, previewLength),
		IsPinned:    n.IsPinned,
		IsEncrypted: n.IsEncrypted,
		Tags:        n.Tags,
		CreatedAt:   n.CreatedAt,
		UpdatedAt:   n.UpdatedAt,
	}
}

// NormalizeTags trims tags and drops blanks and duplicates, keeping first-seen order.
func NormalizeTags(tags []string) []string {
	if tags == nil {
		return nil
	}

	out := make([]string, 0, len(tags))
	seen := make(map[string]struct{}, len(tags))
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}

	return out
}

func matchesQuery(n *domain.Note, query string) bool {
	q := strings.ToLower(query)
	if strings.Contains(strings.ToLower(n.Title), q) ||
		strings.Contains(strings.ToLower(markup.Strip(n.Content)), q) {
		return true
	}
	for _, t := range n.Tags {
		if strings.Contains(strings.ToLower(t), q) {
			return true
		}
	}
	return false
}
