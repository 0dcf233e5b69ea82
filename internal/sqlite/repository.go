// Package sqlite implements the domain repository ports over SQLite.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/blurbapp/blurb/internal/domain"
)

const schema = `
CREATE TABLE IF NOT EXISTS users (
	id            TEXT PRIMARY KEY,
	handle        TEXT NOT NULL UNIQUE,
	credential    TEXT NOT NULL,
	created_at    INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS posts (
	id            TEXT PRIMARY KEY,
	owner_handle  TEXT NOT NULL,
	body          TEXT NOT NULL,
	tags          TEXT NOT NULL,
	liked_by      TEXT NOT NULL,
	reposted_by   TEXT NOT NULL,
	created_at    INTEGER NOT NULL,
	version       INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_posts_created_at ON posts (created_at DESC);

CREATE TABLE IF NOT EXISTS stories (
	id            TEXT PRIMARY KEY,
	owner_handle  TEXT NOT NULL,
	payload       TEXT NOT NULL,
	tags          TEXT NOT NULL,
	created_at    INTEGER NOT NULL,
	expires_at    INTEGER NOT NULL,
	version       INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_stories_expires_at ON stories (expires_at);

CREATE TABLE IF NOT EXISTS comments (
	id            TEXT PRIMARY KEY,
	post_id       TEXT NOT NULL REFERENCES posts (id) ON DELETE CASCADE,
	owner_handle  TEXT NOT NULL,
	body          TEXT NOT NULL,
	created_at    INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_comments_post_id ON comments (post_id);
`

// toMillis normalizes timestamps into millisecond precision for storage.
func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

// fromMillis restores millisecond precision and keeps UTC normalization.
func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

// Repository implements domain.UserRepository, domain.PostRepository,
// domain.StoryRepository, and domain.CommentRepository using SQLite.
//
// Saves are conditional on the entity's version so concurrent read-modify-
// write cycles cannot lose toggles: the stale writer fails with a Conflict
// error and retries on fresh state.
type Repository struct {
	db *sql.DB
}

// Open opens the SQLite database at path, verifies the connection, and
// bootstraps the schema. The caller should call Close when the repository is
// no longer needed.
func Open(path string) (*Repository, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}

	dsn := filepath.Clean(path) + "?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=5000&_synchronous=NORMAL"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// SQLite allows one writer at a time; a single pooled connection keeps the
	// session pragmas below in effect for every statement.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	// The modernc driver does not apply every DSN pragma on all versions, so
	// enforce the ones correctness depends on.
	for _, pragma := range []string{"PRAGMA foreign_keys = ON", "PRAGMA busy_timeout = 5000"} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("apply %s: %w", strings.ToLower(pragma), err)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("bootstrap schema: %w", err)
	}

	return &Repository{db: db}, nil
}

// Close closes the underlying database connection.
func (r *Repository) Close() error {
	return r.db.Close()
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// CreateUser inserts a new user.
func (r *Repository) CreateUser(ctx context.Context, user *domain.User) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO users (id, handle, credential, created_at)
		VALUES (?, ?, ?, ?)`,
		user.ID, user.Handle, user.CredentialHash, toMillis(user.CreatedAt),
	)
	if isUniqueViolation(err) {
		return domain.E(domain.KindDuplicateIdentity, "handle is already registered")
	}
	if err != nil {
		return domain.Errorf(domain.KindStorage, err, "insert user")
	}
	return nil
}

// FindUserByHandle retrieves a user by handle.
func (r *Repository) FindUserByHandle(ctx context.Context, handle string) (*domain.User, error) {
	var user domain.User
	var createdAt int64
	err := r.db.QueryRowContext(ctx, `
		SELECT id, handle, credential, created_at
		FROM users WHERE handle = ?`, handle,
	).Scan(&user.ID, &user.Handle, &user.CredentialHash, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.E(domain.KindNotFound, "user not found")
	}
	if err != nil {
		return nil, domain.Errorf(domain.KindStorage, err, "query user")
	}
	user.CreatedAt = fromMillis(createdAt)
	return &user, nil
}

// SavePost persists the post. A zero version inserts; otherwise the update
// is conditional on the stored version and fails with a Conflict error when
// a concurrent writer has already bumped it.
func (r *Repository) SavePost(ctx context.Context, post *domain.Post) error {
	tags, likedBy, repostedBy, err := marshalPostSets(post)
	if err != nil {
		return err
	}

	if post.Version == 0 {
		_, err := r.db.ExecContext(ctx, `
			INSERT INTO posts (id, owner_handle, body, tags, liked_by, reposted_by, created_at, version)
			VALUES (?, ?, ?, ?, ?, ?, ?, 1)`,
			post.ID, post.OwnerHandle, post.Body, tags, likedBy, repostedBy, toMillis(post.CreatedAt),
		)
		if err != nil {
			return domain.Errorf(domain.KindStorage, err, "insert post")
		}
		post.Version = 1
		return nil
	}

	res, err := r.db.ExecContext(ctx, `
		UPDATE posts
		SET body = ?, tags = ?, liked_by = ?, reposted_by = ?, version = version + 1
		WHERE id = ? AND version = ?`,
		post.Body, tags, likedBy, repostedBy, post.ID, post.Version,
	)
	if err != nil {
		return domain.Errorf(domain.KindStorage, err, "update post")
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return domain.Errorf(domain.KindStorage, err, "update post rows")
	}
	if rows == 0 {
		return r.postMissingOrStale(ctx, post.ID)
	}
	post.Version++
	return nil
}

// postMissingOrStale distinguishes a vanished post from a lost version race.
func (r *Repository) postMissingOrStale(ctx context.Context, id string) error {
	var exists int
	err := r.db.QueryRowContext(ctx, `SELECT 1 FROM posts WHERE id = ?`, id).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.E(domain.KindNotFound, "post not found")
	}
	if err != nil {
		return domain.Errorf(domain.KindStorage, err, "check post")
	}
	return domain.E(domain.KindConflict, "post was modified concurrently")
}

// FindPostByID retrieves a post.
func (r *Repository) FindPostByID(ctx context.Context, id string) (*domain.Post, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, owner_handle, body, tags, liked_by, reposted_by, created_at, version
		FROM posts WHERE id = ?`, id,
	)
	post, err := scanPost(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.E(domain.KindNotFound, "post not found")
	}
	if err != nil {
		return nil, domain.Errorf(domain.KindStorage, err, "query post")
	}
	return post, nil
}

// DeletePost removes a post. Comments cascade via the foreign key.
func (r *Repository) DeletePost(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM posts WHERE id = ?`, id)
	if err != nil {
		return domain.Errorf(domain.KindStorage, err, "delete post")
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return domain.Errorf(domain.KindStorage, err, "delete post rows")
	}
	if rows == 0 {
		return domain.E(domain.KindNotFound, "post not found")
	}
	return nil
}

// ListPosts retrieves all posts, most recent first.
func (r *Repository) ListPosts(ctx context.Context) ([]domain.Post, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, owner_handle, body, tags, liked_by, reposted_by, created_at, version
		FROM posts
		ORDER BY created_at DESC, id DESC`,
	)
	if err != nil {
		return nil, domain.Errorf(domain.KindStorage, err, "query posts")
	}
	return collectPosts(rows)
}

// FindPostsByTag retrieves posts referencing the tag, most recent first.
func (r *Repository) FindPostsByTag(ctx context.Context, name string) ([]domain.Post, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, owner_handle, body, tags, liked_by, reposted_by, created_at, version
		FROM posts
		WHERE EXISTS (SELECT 1 FROM json_each(posts.tags) WHERE json_each.value = ?)
		ORDER BY created_at DESC, id DESC`,
		name,
	)
	if err != nil {
		return nil, domain.Errorf(domain.KindStorage, err, "query posts by tag")
	}
	return collectPosts(rows)
}

// SaveStory persists the story with the same version semantics as SavePost.
func (r *Repository) SaveStory(ctx context.Context, story *domain.Story) error {
	tags, err := json.Marshal(story.Tags)
	if err != nil {
		return domain.Errorf(domain.KindStorage, err, "marshal story tags")
	}

	if story.Version == 0 {
		_, err := r.db.ExecContext(ctx, `
			INSERT INTO stories (id, owner_handle, payload, tags, created_at, expires_at, version)
			VALUES (?, ?, ?, ?, ?, ?, 1)`,
			story.ID, story.OwnerHandle, story.Payload, string(tags),
			toMillis(story.CreatedAt), toMillis(story.ExpiresAt),
		)
		if err != nil {
			return domain.Errorf(domain.KindStorage, err, "insert story")
		}
		story.Version = 1
		return nil
	}

	res, err := r.db.ExecContext(ctx, `
		UPDATE stories
		SET payload = ?, tags = ?, expires_at = ?, version = version + 1
		WHERE id = ? AND version = ?`,
		story.Payload, string(tags), toMillis(story.ExpiresAt), story.ID, story.Version,
	)
	if err != nil {
		return domain.Errorf(domain.KindStorage, err, "update story")
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return domain.Errorf(domain.KindStorage, err, "update story rows")
	}
	if rows == 0 {
		var exists int
		err := r.db.QueryRowContext(ctx, `SELECT 1 FROM stories WHERE id = ?`, story.ID).Scan(&exists)
		if errors.Is(err, sql.ErrNoRows) {
			return domain.E(domain.KindNotFound, "story not found")
		}
		if err != nil {
			return domain.Errorf(domain.KindStorage, err, "check story")
		}
		return domain.E(domain.KindConflict, "story was modified concurrently")
	}
	story.Version++
	return nil
}

// FindStoryByID retrieves an unexpired story. Expired rows read as not found
// even before the sweeper removes them.
func (r *Repository) FindStoryByID(ctx context.Context, id string) (*domain.Story, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, owner_handle, payload, tags, created_at, expires_at, version
		FROM stories WHERE id = ? AND expires_at > ?`,
		id, toMillis(time.Now()),
	)
	story, err := scanStory(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.E(domain.KindNotFound, "story not found")
	}
	if err != nil {
		return nil, domain.Errorf(domain.KindStorage, err, "query story")
	}
	return story, nil
}

// DeleteStory removes a story.
func (r *Repository) DeleteStory(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM stories WHERE id = ?`, id)
	if err != nil {
		return domain.Errorf(domain.KindStorage, err, "delete story")
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return domain.Errorf(domain.KindStorage, err, "delete story rows")
	}
	if rows == 0 {
		return domain.E(domain.KindNotFound, "story not found")
	}
	return nil
}

// FindStoriesByTag retrieves unexpired stories referencing the tag, most
// recent first.
func (r *Repository) FindStoriesByTag(ctx context.Context, name string) ([]domain.Story, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, owner_handle, payload, tags, created_at, expires_at, version
		FROM stories
		WHERE expires_at > ?
		AND EXISTS (SELECT 1 FROM json_each(stories.tags) WHERE json_each.value = ?)
		ORDER BY created_at DESC, id DESC`,
		toMillis(time.Now()), name,
	)
	if err != nil {
		return nil, domain.Errorf(domain.KindStorage, err, "query stories by tag")
	}
	defer rows.Close()

	stories := []domain.Story{}
	for rows.Next() {
		story, err := scanStory(rows.Scan)
		if err != nil {
			return nil, domain.Errorf(domain.KindStorage, err, "scan story")
		}
		stories = append(stories, *story)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.Errorf(domain.KindStorage, err, "iterate stories")
	}
	return stories, nil
}

// DeleteExpiredStories removes stories whose expiry is at or before now.
func (r *Repository) DeleteExpiredStories(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM stories WHERE expires_at <= ?`, toMillis(now))
	if err != nil {
		return 0, domain.Errorf(domain.KindStorage, err, "delete expired stories")
	}
	deleted, err := res.RowsAffected()
	if err != nil {
		return 0, domain.Errorf(domain.KindStorage, err, "expired stories rows")
	}
	return deleted, nil
}

// CreateComment inserts a new comment.
func (r *Repository) CreateComment(ctx context.Context, comment *domain.Comment) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO comments (id, post_id, owner_handle, body, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		comment.ID, comment.PostID, comment.OwnerHandle, comment.Body, toMillis(comment.CreatedAt),
	)
	if err != nil {
		return domain.Errorf(domain.KindStorage, err, "insert comment")
	}
	return nil
}

// FindCommentByID retrieves a comment.
func (r *Repository) FindCommentByID(ctx context.Context, id string) (*domain.Comment, error) {
	var comment domain.Comment
	var createdAt int64
	err := r.db.QueryRowContext(ctx, `
		SELECT id, post_id, owner_handle, body, created_at
		FROM comments WHERE id = ?`, id,
	).Scan(&comment.ID, &comment.PostID, &comment.OwnerHandle, &comment.Body, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.E(domain.KindNotFound, "comment not found")
	}
	if err != nil {
		return nil, domain.Errorf(domain.KindStorage, err, "query comment")
	}
	comment.CreatedAt = fromMillis(createdAt)
	return &comment, nil
}

// ListCommentsByPost retrieves a post's comments oldest first.
func (r *Repository) ListCommentsByPost(ctx context.Context, postID string) ([]domain.Comment, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, post_id, owner_handle, body, created_at
		FROM comments WHERE post_id = ?
		ORDER BY created_at ASC, id ASC`, postID,
	)
	if err != nil {
		return nil, domain.Errorf(domain.KindStorage, err, "query comments")
	}
	defer rows.Close()

	comments := []domain.Comment{}
	for rows.Next() {
		var comment domain.Comment
		var createdAt int64
		if err := rows.Scan(&comment.ID, &comment.PostID, &comment.OwnerHandle, &comment.Body, &createdAt); err != nil {
			return nil, domain.Errorf(domain.KindStorage, err, "scan comment")
		}
		comment.CreatedAt = fromMillis(createdAt)
		comments = append(comments, comment)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.Errorf(domain.KindStorage, err, "iterate comments")
	}
	return comments, nil
}

// DeleteComment removes a comment.
func (r *Repository) DeleteComment(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM comments WHERE id = ?`, id)
	if err != nil {
		return domain.Errorf(domain.KindStorage, err, "delete comment")
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return domain.Errorf(domain.KindStorage, err, "delete comment rows")
	}
	if rows == 0 {
		return domain.E(domain.KindNotFound, "comment not found")
	}
	return nil
}

func marshalPostSets(post *domain.Post) (tags, likedBy, repostedBy string, err error) {
	t, err := json.Marshal(post.Tags)
	if err != nil {
		return "", "", "", domain.Errorf(domain.KindStorage, err, "marshal tags")
	}
	l, err := json.Marshal(post.LikedBy)
	if err != nil {
		return "", "", "", domain.Errorf(domain.KindStorage, err, "marshal like set")
	}
	rp, err := json.Marshal(post.RepostedBy)
	if err != nil {
		return "", "", "", domain.Errorf(domain.KindStorage, err, "marshal repost set")
	}
	return string(t), string(l), string(rp), nil
}

func scanPost(scan func(dest ...any) error) (*domain.Post, error) {
	var post domain.Post
	var tags, likedBy, repostedBy string
	var createdAt int64
	if err := scan(&post.ID, &post.OwnerHandle, &post.Body, &tags, &likedBy, &repostedBy, &createdAt, &post.Version); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(tags), &post.Tags); err != nil {
		return nil, fmt.Errorf("unmarshal tags: %w", err)
	}
	if err := json.Unmarshal([]byte(likedBy), &post.LikedBy); err != nil {
		return nil, fmt.Errorf("unmarshal like set: %w", err)
	}
	if err := json.Unmarshal([]byte(repostedBy), &post.RepostedBy); err != nil {
		return nil, fmt.Errorf("unmarshal repost set: %w", err)
	}
	post.CreatedAt = fromMillis(createdAt)
	return &post, nil
}

func scanStory(scan func(dest ...any) error) (*domain.Story, error) {
	var story domain.Story
	var tags string
	var createdAt, expiresAt int64
	if err := scan(&story.ID, &story.OwnerHandle, &story.Payload, &tags, &createdAt, &expiresAt, &story.Version); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(tags), &story.Tags); err != nil {
		return nil, fmt.Errorf("unmarshal story tags: %w", err)
	}
	story.CreatedAt = fromMillis(createdAt)
	story.ExpiresAt = fromMillis(expiresAt)
	return &story, nil
}

func collectPosts(rows *sql.Rows) ([]domain.Post, error) {
	defer rows.Close()

	posts := []domain.Post{}
	for rows.Next() {
		post, err := scanPost(rows.Scan)
		if err != nil {
			return nil, domain.Errorf(domain.KindStorage, err, "scan post")
		}
		posts = append(posts, *post)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.Errorf(domain.KindStorage, err, "iterate posts")
	}
	return posts, nil
}
