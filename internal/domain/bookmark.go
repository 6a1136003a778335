package domain

import "time"

// TableBookmarks is the relation bookmarks are stored in.
const TableBookmarks = "bookmarks"

// Bookmark represents one saved link owned by a single user.
type Bookmark struct {
	// ─────────────────────────────
	// Identity (store-assigned, immutable)
	// ─────────────────────────────

	// ID is the unique key assigned by the store on insert.
	ID string `json:"id"`

	// OwnerID is the user the row is scoped to.
	// It always equals the user id of the session that created it.
	OwnerID string `json:"user_id"`

	// ─────────────────────────────
	// Content (mutable through update)
	// ─────────────────────────────

	// Title is the display name. Never empty.
	Title string `json:"title"`

	// URL is the link target, assumed well-formed.
	URL string `json:"url"`

	// ─────────────────────────────
	// Metadata
	// ─────────────────────────────

	// CreatedAt is assigned by the store and drives ordering (newest first).
	CreatedAt time.Time `json:"created_at"`
}

// NewBookmark is the insert payload. The store assigns ID and CreatedAt.
type NewBookmark struct {
	OwnerID string `validate:"required"`
	Title   string `validate:"required"`
	URL     string `validate:"required"`
}

// BookmarkEdit is the update payload. Owner and id are never changed.
type BookmarkEdit struct {
	ID      string `validate:"required"`
	OwnerID string `validate:"required"`
	Title   string `validate:"required"`
	URL     string `validate:"required"`
}
