package domain_test

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/blurbapp/blurb/internal/domain"
	"github.com/blurbapp/blurb/internal/sqlite"
)

func newTestService(t *testing.T) (*domain.ContentService, *sqlite.Repository) {
	t.Helper()
	repo, err := sqlite.Open(filepath.Join(t.TempDir(), "blurb.db"))
	if err != nil {
		t.Fatalf("open repo: %v", err)
	}
	t.Cleanup(func() { repo.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := domain.NewContentService(repo, repo, repo, repo, 24*time.Hour, logger)
	return svc, repo
}

func registerUser(t *testing.T, repo *sqlite.Repository, handle string) {
	t.Helper()
	err := repo.CreateUser(context.Background(), &domain.User{
		ID:             "id-" + handle,
		Handle:         handle,
		CredentialHash: "irrelevant",
		CreatedAt:      time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("register %s: %v", handle, err)
	}
}

func TestCreatePostDedupesTagsAndGeneratesID(t *testing.T) {
	svc, repo := newTestService(t)
	registerUser(t, repo, "alice")

	post, err := svc.CreatePost(context.Background(), "alice", "hello world", []string{"go", "rust", "go"})
	if err != nil {
		t.Fatalf("create post: %v", err)
	}
	if post.ID == "" {
		t.Fatal("expected generated id")
	}
	if !slices.Equal(post.Tags, []string{"go", "rust"}) {
		t.Fatalf("expected deduplicated tags, got %v", post.Tags)
	}
	if post.OwnerHandle != "alice" {
		t.Fatalf("expected owner alice, got %q", post.OwnerHandle)
	}
}

func TestCreatePostValidation(t *testing.T) {
	svc, repo := newTestService(t)
	registerUser(t, repo, "alice")
	ctx := context.Background()

	if _, err := svc.CreatePost(ctx, "alice", "  ", nil); !domain.IsKind(err, domain.KindValidation) {
		t.Fatalf("expected ValidationError for empty body, got %v", err)
	}
	if _, err := svc.CreatePost(ctx, "alice", "body", []string{""}); !domain.IsKind(err, domain.KindValidation) {
		t.Fatalf("expected ValidationError for empty tag, got %v", err)
	}
}

func TestCreatePostRequiresRegisteredIdentity(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.CreatePost(context.Background(), "ghost", "body", nil)
	if !domain.IsKind(err, domain.KindForbidden) {
		t.Fatalf("expected Forbidden for unregistered identity, got %v", err)
	}
}

func TestTogglePairRestoresOriginalState(t *testing.T) {
	svc, repo := newTestService(t)
	registerUser(t, repo, "alice")
	registerUser(t, repo, "bob")
	ctx := context.Background()

	post, err := svc.CreatePost(ctx, "alice", "body", nil)
	if err != nil {
		t.Fatalf("create post: %v", err)
	}
	if _, err := svc.ToggleLike(ctx, post.ID, "alice"); err != nil {
		t.Fatalf("seed like: %v", err)
	}

	first, err := svc.ToggleLike(ctx, post.ID, "bob")
	if err != nil {
		t.Fatalf("toggle: %v", err)
	}
	if !first.Member || first.Count != 2 {
		t.Fatalf("expected member with count 2, got %+v", first)
	}

	second, err := svc.ToggleLike(ctx, post.ID, "bob")
	if err != nil {
		t.Fatalf("toggle: %v", err)
	}
	if second.Member || second.Count != 1 {
		t.Fatalf("expected non-member with count 1, got %+v", second)
	}

	got, err := svc.GetPost(ctx, post.ID)
	if err != nil {
		t.Fatalf("get post: %v", err)
	}
	if !slices.Equal(got.LikedBy, []string{"alice"}) {
		t.Fatalf("toggle pair must restore the like set, got %v", got.LikedBy)
	}
}

func TestConcurrentTogglesFromDistinctIdentitiesBothLand(t *testing.T) {
	svc, repo := newTestService(t)
	registerUser(t, repo, "alice")
	registerUser(t, repo, "u1")
	registerUser(t, repo, "u2")
	ctx := context.Background()

	post, err := svc.CreatePost(ctx, "alice", "body", nil)
	if err != nil {
		t.Fatalf("create post: %v", err)
	}

	var wg sync.WaitGroup
	errs := make(chan error, 2)
	for _, identity := range []string{"u1", "u2"} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := svc.ToggleLike(ctx, post.ID, identity); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("concurrent toggle failed: %v", err)
	}

	got, err := svc.GetPost(ctx, post.ID)
	if err != nil {
		t.Fatalf("get post: %v", err)
	}
	want := []string{"u1", "u2"}
	likes := slices.Clone(got.LikedBy)
	slices.Sort(likes)
	if !slices.Equal(likes, want) {
		t.Fatalf("expected like set %v, got %v", want, got.LikedBy)
	}
}

func TestLikeAndRepostSetsAreIndependent(t *testing.T) {
	svc, repo := newTestService(t)
	registerUser(t, repo, "alice")
	registerUser(t, repo, "bob")
	ctx := context.Background()

	post, err := svc.CreatePost(ctx, "alice", "body", nil)
	if err != nil {
		t.Fatalf("create post: %v", err)
	}

	if _, err := svc.ToggleLike(ctx, post.ID, "bob"); err != nil {
		t.Fatalf("like: %v", err)
	}
	repost, err := svc.ToggleRepost(ctx, post.ID, "bob")
	if err != nil {
		t.Fatalf("repost: %v", err)
	}
	if !repost.Member || repost.Count != 1 {
		t.Fatalf("expected repost membership, got %+v", repost)
	}

	got, err := svc.GetPost(ctx, post.ID)
	if err != nil {
		t.Fatalf("get post: %v", err)
	}
	if len(got.LikedBy) != 1 || len(got.RepostedBy) != 1 {
		t.Fatalf("expected bob in both sets, got likes=%v reposts=%v", got.LikedBy, got.RepostedBy)
	}
}

func TestUpdateAndDeleteByNonOwnerForbidden(t *testing.T) {
	svc, repo := newTestService(t)
	registerUser(t, repo, "alice")
	registerUser(t, repo, "mallory")
	ctx := context.Background()

	post, err := svc.CreatePost(ctx, "alice", "body", nil)
	if err != nil {
		t.Fatalf("create post: %v", err)
	}

	if _, err := svc.UpdatePost(ctx, post.ID, "mallory", "hijacked", nil); !domain.IsKind(err, domain.KindForbidden) {
		t.Fatalf("expected Forbidden on update, got %v", err)
	}
	if err := svc.DeletePost(ctx, post.ID, "mallory"); !domain.IsKind(err, domain.KindForbidden) {
		t.Fatalf("expected Forbidden on delete, got %v", err)
	}

	// The post is untouched.
	got, err := svc.GetPost(ctx, post.ID)
	if err != nil {
		t.Fatalf("get post: %v", err)
	}
	if got.Body != "body" {
		t.Fatalf("post mutated by non-owner: %q", got.Body)
	}
}

func TestUpdatePostMissingReturnsNotFound(t *testing.T) {
	svc, repo := newTestService(t)
	registerUser(t, repo, "alice")

	_, err := svc.UpdatePost(context.Background(), "missing", "alice", "body", nil)
	if !domain.IsKind(err, domain.KindNotFound) {
		t.Fatalf("expected NotFound, got %v", err)
	}
}

func TestDeletePostCascadesToComments(t *testing.T) {
	svc, repo := newTestService(t)
	registerUser(t, repo, "alice")
	registerUser(t, repo, "bob")
	ctx := context.Background()

	post, err := svc.CreatePost(ctx, "alice", "body", nil)
	if err != nil {
		t.Fatalf("create post: %v", err)
	}
	comment, err := svc.AddComment(ctx, post.ID, "bob", "first!")
	if err != nil {
		t.Fatalf("add comment: %v", err)
	}

	if err := svc.DeletePost(ctx, post.ID, "alice"); err != nil {
		t.Fatalf("delete post: %v", err)
	}

	if _, err := repo.FindCommentByID(ctx, comment.ID); !domain.IsKind(err, domain.KindNotFound) {
		t.Fatalf("expected cascaded comment to be gone, got %v", err)
	}
}

func TestCommentOperations(t *testing.T) {
	svc, repo := newTestService(t)
	registerUser(t, repo, "alice")
	registerUser(t, repo, "bob")
	ctx := context.Background()

	post, err := svc.CreatePost(ctx, "alice", "body", nil)
	if err != nil {
		t.Fatalf("create post: %v", err)
	}

	if _, err := svc.AddComment(ctx, "missing", "bob", "hi"); !domain.IsKind(err, domain.KindNotFound) {
		t.Fatalf("expected NotFound for missing post, got %v", err)
	}
	if _, err := svc.AddComment(ctx, post.ID, "bob", " "); !domain.IsKind(err, domain.KindValidation) {
		t.Fatalf("expected ValidationError for empty body, got %v", err)
	}

	comment, err := svc.AddComment(ctx, post.ID, "bob", "hi")
	if err != nil {
		t.Fatalf("add comment: %v", err)
	}

	if err := svc.DeleteComment(ctx, comment.ID, "alice"); !domain.IsKind(err, domain.KindForbidden) {
		t.Fatalf("expected Forbidden for non-owner delete, got %v", err)
	}
	if err := svc.DeleteComment(ctx, comment.ID, "bob"); err != nil {
		t.Fatalf("owner delete: %v", err)
	}

	comments, err := svc.ListComments(ctx, post.ID)
	if err != nil {
		t.Fatalf("list comments: %v", err)
	}
	if len(comments) != 0 {
		t.Fatalf("expected no comments, got %+v", comments)
	}
}

func TestTagDiscovery(t *testing.T) {
	svc, repo := newTestService(t)
	registerUser(t, repo, "alice")
	ctx := context.Background()

	post, err := svc.CreatePost(ctx, "alice", "body", []string{"go", "rust"})
	if err != nil {
		t.Fatalf("create post: %v", err)
	}

	matches, err := svc.GetPostsByTag(ctx, "go")
	if err != nil {
		t.Fatalf("get posts by tag: %v", err)
	}
	if len(matches) != 1 || matches[0].ID != post.ID {
		t.Fatalf("expected the post for tag go, got %+v", matches)
	}

	empty, err := svc.GetPostsByTag(ctx, "python")
	if err != nil {
		t.Fatalf("get posts by tag: %v", err)
	}
	if len(empty) != 0 {
		t.Fatalf("expected empty result for python, got %+v", empty)
	}

	if _, err := svc.GetPostsByTag(ctx, " "); !domain.IsKind(err, domain.KindValidation) {
		t.Fatalf("expected ValidationError for blank tag, got %v", err)
	}
}

func TestStoryLifecycle(t *testing.T) {
	svc, repo := newTestService(t)
	registerUser(t, repo, "alice")
	registerUser(t, repo, "mallory")
	ctx := context.Background()

	story, err := svc.CreateStory(ctx, "alice", "ephemeral", []string{"go"})
	if err != nil {
		t.Fatalf("create story: %v", err)
	}
	if !story.ExpiresAt.After(story.CreatedAt) {
		t.Fatalf("expected expiry after creation, got %v <= %v", story.ExpiresAt, story.CreatedAt)
	}

	got, err := svc.GetStory(ctx, story.ID)
	if err != nil {
		t.Fatalf("get story: %v", err)
	}
	if got.Payload != "ephemeral" {
		t.Fatalf("unexpected story: %+v", got)
	}

	stories, err := svc.GetStoriesByTag(ctx, "go")
	if err != nil {
		t.Fatalf("get stories by tag: %v", err)
	}
	if len(stories) != 1 {
		t.Fatalf("expected one story for tag go, got %+v", stories)
	}

	if err := svc.DeleteStory(ctx, story.ID, "mallory"); !domain.IsKind(err, domain.KindForbidden) {
		t.Fatalf("expected Forbidden, got %v", err)
	}
	if err := svc.DeleteStory(ctx, story.ID, "alice"); err != nil {
		t.Fatalf("owner delete: %v", err)
	}
	if _, err := svc.GetStory(ctx, story.ID); !domain.IsKind(err, domain.KindNotFound) {
		t.Fatalf("expected NotFound after delete, got %v", err)
	}
}
