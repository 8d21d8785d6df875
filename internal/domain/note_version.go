package domain

import "time"

type NoteVersion struct {
	ID            string    `json:"id"`
	NoteID        string    `json:"note_id"`
	Content       string    `json:"content"`
	Tags          []string  `json:"tags"`
	VersionNumber int64     `json:"version_number"`
	CreatedAt     time.Time `json:"created_at"`
}
