package domain

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
)

// maxToggleRetries bounds optimistic retries of a like/repost toggle before
// the conflict is surfaced to the caller.
const maxToggleRetries = 3

// ToggleResult is the outcome of a like or repost toggle.
type ToggleResult struct {
	// Member reports whether the identity is in the set after the toggle.
	Member bool

	// Count is the set size after the toggle.
	Count int
}

// ContentService is the core domain service. It owns the post/story/comment
// lifecycle, the like/repost toggle state machine, and tag-based discovery.
// Every mutation takes the caller's validated identity explicitly; there is
// no ambient authenticated user.
type ContentService struct {
	posts    PostRepository
	stories  StoryRepository
	comments CommentRepository
	users    UserRepository
	storyTTL time.Duration
	logger   *slog.Logger
}

// NewContentService creates a ContentService over the given repositories.
func NewContentService(
	posts PostRepository,
	stories StoryRepository,
	comments CommentRepository,
	users UserRepository,
	storyTTL time.Duration,
	logger *slog.Logger,
) *ContentService {
	return &ContentService{
		posts:    posts,
		stories:  stories,
		comments: comments,
		users:    users,
		storyTTL: storyTTL,
		logger:   logger,
	}
}

// requireUser ensures the token's claimed identity still resolves to a
// registered user before any mutation is authorized.
func (s *ContentService) requireUser(ctx context.Context, identity string) error {
	if _, err := s.users.FindUserByHandle(ctx, identity); err != nil {
		if IsKind(err, KindNotFound) {
			return E(KindForbidden, "identity is not a registered user")
		}
		return err
	}
	return nil
}

// CreatePost creates a post owned by identity.
func (s *ContentService) CreatePost(ctx context.Context, identity, body string, tags []string) (*Post, error) {
	if err := s.requireUser(ctx, identity); err != nil {
		return nil, err
	}
	if strings.TrimSpace(body) == "" {
		return nil, E(KindValidation, "post body must not be empty")
	}
	normalized, err := NormalizeTags(tags)
	if err != nil {
		return nil, err
	}

	post := &Post{
		ID:          uuid.NewString(),
		OwnerHandle: identity,
		Body:        body,
		Tags:        normalized,
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.posts.SavePost(ctx, post); err != nil {
		return nil, err
	}
	s.logger.Info("post created", "post_id", post.ID, "owner", identity)
	return post, nil
}

// GetPost retrieves a post. Reads are public.
func (s *ContentService) GetPost(ctx context.Context, id string) (*Post, error) {
	return s.posts.FindPostByID(ctx, id)
}

// ListPosts retrieves all posts, most recent first.
func (s *ContentService) ListPosts(ctx context.Context) ([]Post, error) {
	return s.posts.ListPosts(ctx)
}

// UpdatePost replaces the body and tags of a post owned by identity.
func (s *ContentService) UpdatePost(ctx context.Context, id, identity, body string, tags []string) (*Post, error) {
	if err := s.requireUser(ctx, identity); err != nil {
		return nil, err
	}
	if strings.TrimSpace(body) == "" {
		return nil, E(KindValidation, "post body must not be empty")
	}
	normalized, err := NormalizeTags(tags)
	if err != nil {
		return nil, err
	}

	post, err := s.posts.FindPostByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if post.OwnerHandle != identity {
		return nil, E(KindForbidden, "only the owner may update a post")
	}

	post.Body = body
	post.Tags = normalized
	if err := s.posts.SavePost(ctx, post); err != nil {
		return nil, err
	}
	return post, nil
}

// DeletePost removes a post owned by identity. Comments attached to the post
// are cascade-deleted by the repository.
func (s *ContentService) DeletePost(ctx context.Context, id, identity string) error {
	if err := s.requireUser(ctx, identity); err != nil {
		return err
	}
	post, err := s.posts.FindPostByID(ctx, id)
	if err != nil {
		return err
	}
	if post.OwnerHandle != identity {
		return E(KindForbidden, "only the owner may delete a post")
	}
	if err := s.posts.DeletePost(ctx, id); err != nil {
		return err
	}
	s.logger.Info("post deleted", "post_id", id, "owner", identity)
	return nil
}

// ToggleLike flips identity's membership in the post's like set. Concurrent
// toggles are resolved by optimistic retry: a stale save conflicts, the post
// is re-read, and the toggle is re-applied on fresh state.
func (s *ContentService) ToggleLike(ctx context.Context, id, identity string) (ToggleResult, error) {
	return s.toggle(ctx, id, identity, func(p *Post) (bool, int) {
		member := p.ToggleLike(identity)
		return member, len(p.LikedBy)
	})
}

// ToggleRepost flips identity's membership in the post's repost set, with
// the same retry semantics as ToggleLike.
func (s *ContentService) ToggleRepost(ctx context.Context, id, identity string) (ToggleResult, error) {
	return s.toggle(ctx, id, identity, func(p *Post) (bool, int) {
		member := p.ToggleRepost(identity)
		return member, len(p.RepostedBy)
	})
}

func (s *ContentService) toggle(ctx context.Context, id, identity string, apply func(*Post) (bool, int)) (ToggleResult, error) {
	if err := s.requireUser(ctx, identity); err != nil {
		return ToggleResult{}, err
	}

	for attempt := 0; attempt < maxToggleRetries; attempt++ {
		post, err := s.posts.FindPostByID(ctx, id)
		if err != nil {
			return ToggleResult{}, err
		}

		member, count := apply(post)

		if err := s.posts.SavePost(ctx, post); err != nil {
			if IsKind(err, KindConflict) {
				s.logger.Debug("toggle conflicted, retrying", "post_id", id, "attempt", attempt+1)
				continue
			}
			return ToggleResult{}, err
		}
		return ToggleResult{Member: member, Count: count}, nil
	}
	return ToggleResult{}, E(KindConflict, "toggle retries exhausted under contention")
}

// CreateStory creates a story owned by identity, expiring after the
// configured story TTL.
func (s *ContentService) CreateStory(ctx context.Context, identity, payload string, tags []string) (*Story, error) {
	if err := s.requireUser(ctx, identity); err != nil {
		return nil, err
	}
	if strings.TrimSpace(payload) == "" {
		return nil, E(KindValidation, "story payload must not be empty")
	}
	normalized, err := NormalizeTags(tags)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	story := &Story{
		ID:          uuid.NewString(),
		OwnerHandle: identity,
		Payload:     payload,
		Tags:        normalized,
		CreatedAt:   now,
		ExpiresAt:   now.Add(s.storyTTL),
	}
	if err := s.stories.SaveStory(ctx, story); err != nil {
		return nil, err
	}
	s.logger.Info("story created", "story_id", story.ID, "owner", identity, "expires_at", story.ExpiresAt)
	return story, nil
}

// GetStory retrieves an unexpired story. Expired stories read as not found
// even before the sweeper removes them.
func (s *ContentService) GetStory(ctx context.Context, id string) (*Story, error) {
	return s.stories.FindStoryByID(ctx, id)
}

// DeleteStory removes a story owned by identity.
func (s *ContentService) DeleteStory(ctx context.Context, id, identity string) error {
	if err := s.requireUser(ctx, identity); err != nil {
		return err
	}
	story, err := s.stories.FindStoryByID(ctx, id)
	if err != nil {
		return err
	}
	if story.OwnerHandle != identity {
		return E(KindForbidden, "only the owner may delete a story")
	}
	return s.stories.DeleteStory(ctx, id)
}

// AddComment attaches a comment by identity to a post.
func (s *ContentService) AddComment(ctx context.Context, postID, identity, body string) (*Comment, error) {
	if err := s.requireUser(ctx, identity); err != nil {
		return nil, err
	}
	if strings.TrimSpace(body) == "" {
		return nil, E(KindValidation, "comment body must not be empty")
	}
	if _, err := s.posts.FindPostByID(ctx, postID); err != nil {
		return nil, err
	}

	comment := &Comment{
		ID:          uuid.NewString(),
		PostID:      postID,
		OwnerHandle: identity,
		Body:        body,
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.comments.CreateComment(ctx, comment); err != nil {
		return nil, err
	}
	return comment, nil
}

// ListComments retrieves a post's comments oldest first.
func (s *ContentService) ListComments(ctx context.Context, postID string) ([]Comment, error) {
	if _, err := s.posts.FindPostByID(ctx, postID); err != nil {
		return nil, err
	}
	return s.comments.ListCommentsByPost(ctx, postID)
}

// DeleteComment removes a comment owned by identity.
func (s *ContentService) DeleteComment(ctx context.Context, id, identity string) error {
	if err := s.requireUser(ctx, identity); err != nil {
		return err
	}
	comment, err := s.comments.FindCommentByID(ctx, id)
	if err != nil {
		return err
	}
	if comment.OwnerHandle != identity {
		return E(KindForbidden, "only the owner may delete a comment")
	}
	return s.comments.DeleteComment(ctx, id)
}

// GetPostsByTag resolves a tag to the posts referencing it, most recent
// first. An unreferenced tag yields an empty slice, not an error.
func (s *ContentService) GetPostsByTag(ctx context.Context, name string) ([]Post, error) {
	if strings.TrimSpace(name) == "" {
		return nil, E(KindValidation, "tag must not be empty")
	}
	return s.posts.FindPostsByTag(ctx, name)
}

// GetStoriesByTag resolves a tag to the unexpired stories referencing it,
// most recent first.
func (s *ContentService) GetStoriesByTag(ctx context.Context, name string) ([]Story, error) {
	if strings.TrimSpace(name) == "" {
		return nil, E(KindValidation, "tag must not be empty")
	}
	return s.stories.FindStoriesByTag(ctx, name)
}

// StartExpirySweeper runs a background loop that physically removes expired
// stories. It runs immediately on start and then repeats at the given
// interval. It blocks until ctx is cancelled. Reads never race with the
// sweeper because every story read already filters on expiry.
func (s *ContentService) StartExpirySweeper(ctx context.Context, interval time.Duration) {
	s.sweepExpired(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweepExpired(ctx)
		}
	}
}

func (s *ContentService) sweepExpired(ctx context.Context) {
	deleted, err := s.stories.DeleteExpiredStories(ctx, time.Now().UTC())
	if err != nil {
		s.logger.Error("story sweep failed", "error", err)
	} else if deleted > 0 {
		s.logger.Info("story sweep complete", "deleted", deleted)
	}
}
