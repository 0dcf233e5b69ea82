package domain

import (
	"slices"
	"strings"
	"time"
)

// Post is an authored piece of content. Likes and reposts are set-valued:
// membership, not a raw counter, is the source of truth, and the displayed
// counts are derived from set size.
type Post struct {
	// ID is the generated unique id.
	ID string

	// OwnerHandle is the identity of the author. Only the owner may edit or
	// delete the post.
	OwnerHandle string

	// Body is the post text.
	Body string

	// Tags is the deduplicated, order-preserving tag list.
	Tags []string

	// LikedBy holds each identity that currently likes the post, at most once.
	LikedBy []string

	// RepostedBy holds each identity that currently reposts the post, at most
	// once. Independent of LikedBy; an identity may appear in both.
	RepostedBy []string

	// CreatedAt is when the post was created.
	CreatedAt time.Time

	// Version is the optimistic concurrency token checked by SavePost. Zero
	// means the post has not been persisted yet.
	Version int64
}

// ToggleLike flips the identity's membership in the like set and reports the
// resulting membership.
func (p *Post) ToggleLike(identity string) bool {
	var member bool
	p.LikedBy, member = toggleMember(p.LikedBy, identity)
	return member
}

// ToggleRepost flips the identity's membership in the repost set and reports
// the resulting membership.
func (p *Post) ToggleRepost(identity string) bool {
	var member bool
	p.RepostedBy, member = toggleMember(p.RepostedBy, identity)
	return member
}

// toggleMember removes identity from the set if present, otherwise appends
// it. Returns the updated set and whether identity is now a member.
func toggleMember(set []string, identity string) ([]string, bool) {
	if i := slices.Index(set, identity); i >= 0 {
		return slices.Delete(set, i, i+1), false
	}
	return append(set, identity), true
}

// NormalizeTags validates and deduplicates a tag list, preserving
// first-occurrence order. Tag matching is case-sensitive, so no case folding
// happens here.
func NormalizeTags(tags []string) ([]string, error) {
	normalized := make([]string, 0, len(tags))
	for _, tag := range tags {
		if strings.TrimSpace(tag) == "" {
			return nil, E(KindValidation, "tag must not be empty")
		}
		if !slices.Contains(normalized, tag) {
			normalized = append(normalized, tag)
		}
	}
	return normalized, nil
}
