package model

import (
	"time"

	"github.com/google/uuid"
)

// Story is a catalog entry: the relational index record of one generated
// story. The content store directory at Path is the source of truth for the
// structural document and all generated assets; the row only locates it.
type Story struct {
	ID        uuid.UUID `json:"id" db:"id"`
	UserID    uuid.UUID `json:"user_id" db:"user_id"`
	Title     string    `json:"title" db:"title"`
	Path      string    `json:"path" db:"path"` // relative to the data root: "<username>/stories/<n>"
	IsPublic  bool      `json:"is_public" db:"is_public"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// StoryHandle identifies a freshly allocated pipeline run before the catalog
// entry exists.
type StoryHandle struct {
	Username string `json:"username"`
	Index    int    `json:"index"`
	Path     string `json:"path"` // relative content-store path
}

// URL returns the client-usable reference to the story's page.
func (h StoryHandle) URL() string {
	return "/" + h.Path
}

// StoryEvent is the payload published to external notification consumers when
// a pipeline run finishes (successfully or not).
type StoryEvent struct {
	Type      string    `json:"type"` // "story_complete" or "story_error"
	Username  string    `json:"username"`
	StoryID   uuid.UUID `json:"story_id,omitempty"`
	Title     string    `json:"title,omitempty"`
	URL       string    `json:"url,omitempty"`
	Error     string    `json:"error,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}
