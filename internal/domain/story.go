package domain

import "time"

// Story is an ephemeral piece of content. Stories are immutable after
// creation except for deletion, and disappear from every read path once
// expired, even before the sweeper physically removes them.
type Story struct {
	// ID is the generated unique id.
	ID string

	// OwnerHandle is the identity of the author.
	OwnerHandle string

	// Payload is the story content.
	Payload string

	// Tags is the deduplicated, order-preserving tag list.
	Tags []string

	// CreatedAt is when the story was created.
	CreatedAt time.Time

	// ExpiresAt is when the story stops being readable.
	ExpiresAt time.Time

	// Version is the optimistic concurrency token checked by SaveStory. Zero
	// means the story has not been persisted yet.
	Version int64
}
