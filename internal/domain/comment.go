package domain

import "time"

// Comment is a reply attached to a post. Comments are owned by their post:
// deleting the post cascades to its comments.
type Comment struct {
	// ID is the generated unique id.
	ID string

	// PostID references the parent post.
	PostID string

	// OwnerHandle is the identity of the comment author.
	OwnerHandle string

	// Body is the comment text.
	Body string

	// CreatedAt is when the comment was created.
	CreatedAt time.Time
}
