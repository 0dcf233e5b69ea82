package domain

import (
	"context"
	"time"
)

// UserRepository defines persistence operations for registered users.
type UserRepository interface {
	// CreateUser inserts a new user. Fails with a DuplicateIdentity error if
	// the handle is already registered.
	CreateUser(ctx context.Context, user *User) error

	// FindUserByHandle retrieves a user by handle. Fails with a NotFound
	// error if the handle is unknown.
	FindUserByHandle(ctx context.Context, handle string) (*User, error)
}

// PostRepository defines persistence operations for posts.
//
// SavePost is the single atomic read-modify-write step: it inserts when the
// post's version is zero and otherwise applies a conditional update checked
// against the stored version, failing with a Conflict error when a concurrent
// writer got there first. Callers retry on conflict; no in-process lock is
// held across repository calls.
type PostRepository interface {
	// FindPostByID retrieves a post. Fails with a NotFound error if absent.
	FindPostByID(ctx context.Context, id string) (*Post, error)

	// SavePost persists the post atomically and bumps its version.
	SavePost(ctx context.Context, post *Post) error

	// DeletePost removes a post and cascades to its comments. Fails with a
	// NotFound error if absent.
	DeletePost(ctx context.Context, id string) error

	// ListPosts retrieves all posts ordered by creation time, most recent
	// first.
	ListPosts(ctx context.Context) ([]Post, error)

	// FindPostsByTag retrieves posts referencing the tag, exact
	// case-sensitive match, most recent first. Returns an empty slice when
	// nothing references the tag.
	FindPostsByTag(ctx context.Context, name string) ([]Post, error)
}

// StoryRepository defines persistence operations for stories. Every read
// filters on expiry: an expired-but-not-yet-swept story behaves as not found.
type StoryRepository interface {
	// FindStoryByID retrieves an unexpired story. Fails with a NotFound
	// error if absent or expired.
	FindStoryByID(ctx context.Context, id string) (*Story, error)

	// SaveStory persists the story atomically and bumps its version.
	SaveStory(ctx context.Context, story *Story) error

	// DeleteStory removes a story. Fails with a NotFound error if absent.
	DeleteStory(ctx context.Context, id string) error

	// FindStoriesByTag retrieves unexpired stories referencing the tag,
	// most recent first.
	FindStoriesByTag(ctx context.Context, name string) ([]Story, error)

	// DeleteExpiredStories removes stories whose expiry is at or before now.
	// Returns the number of rows deleted.
	DeleteExpiredStories(ctx context.Context, now time.Time) (int64, error)
}

// CommentRepository defines persistence operations for comments.
type CommentRepository interface {
	// CreateComment inserts a new comment.
	CreateComment(ctx context.Context, comment *Comment) error

	// FindCommentByID retrieves a comment. Fails with a NotFound error if
	// absent.
	FindCommentByID(ctx context.Context, id string) (*Comment, error)

	// ListCommentsByPost retrieves a post's comments oldest first.
	ListCommentsByPost(ctx context.Context, postID string) ([]Comment, error)

	// DeleteComment removes a comment. Fails with a NotFound error if absent.
	DeleteComment(ctx context.Context, id string) error
}
