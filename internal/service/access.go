package service

import (
	"story-server/internal/model"
)

// CanView reports whether the requester may read the story and its assets.
// Public stories are readable by everyone, including anonymous requesters;
// private stories only by their owner. identity == nil means anonymous.
func CanView(identity *model.Identity, story model.Story) bool {
	if story.IsPublic {
		return true
	}
	if identity == nil {
		return false
	}
	return identity.UserID == story.UserID
}

// IsOwner reports whether the requester owns the story. Mutating operations
// (regenerate, visibility, delete) require ownership, not mere visibility.
func IsOwner(identity *model.Identity, story model.Story) bool {
	return identity != nil && identity.UserID == story.UserID
}
