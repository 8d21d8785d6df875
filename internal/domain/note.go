package domain

import "time"

const DefaultNoteTitle = "Untitled Note"

// Note is the persisted note record. EncryptedContent and PasswordHash are only
// meaningful while IsEncrypted is set, in which case Content is empty.
type Note struct {
	ID               string    `json:"id"`
	UserID           string    `json:"user_id"`
	Title            string    `json:"title"`
	Content          string    `json:"content"`
	IsPinned         bool      `json:"is_pinned"`
	IsEncrypted      bool      `json:"is_encrypted"`
	EncryptedContent *string   `json:"encrypted_content"`
	PasswordHash     *string   `json:"password_hash"`
	Tags             []string  `json:"tags"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

type UpdateNoteRequest struct {
	Title   string   `json:"title" validate:"max=500"`
	Content string   `json:"content"`
	Tags    []string `json:"tags" validate:"dive,max=64"`
	// Password is required when saving a locked note.
	Password string `json:"password,omitempty"`
}

type EncryptNoteRequest struct {
	Password string  `json:"password" validate:"required"`
	Content  *string `json:"content"`
}

type PasswordRequest struct {
	Password string `json:"password" validate:"required"`
}

// NoteResponse never carries the gated fields of a locked note.
type NoteResponse struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	Title       string    `json:"title"`
	Content     string    `json:"content"`
	Preview     string    `json:"preview"`
	IsPinned    bool      `json:"is_pinned"`
	IsEncrypted bool      `json:"is_encrypted"`
	Tags        []string  `json:"tags"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type UnlockedNoteResponse struct {
	ID      string   `json:"id"`
	Title   string   `json:"title"`
	Content string   `json:"content"`
	Tags    []string `json:"tags"`
}
