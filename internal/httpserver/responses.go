package httpserver

import (
	"time"

	"github.com/blurbapp/blurb/internal/domain"
)

// postResponse is the serialized shape of a post. Like and repost counts are
// derived from set size; the sets themselves are not exposed.
type postResponse struct {
	ID        string    `json:"id"`
	Owner     string    `json:"owner"`
	Body      string    `json:"body"`
	Tags      []string  `json:"tags"`
	Likes     int       `json:"likes"`
	Reposts   int       `json:"reposts"`
	CreatedAt time.Time `json:"created_at"`
}

type storyResponse struct {
	ID        string    `json:"id"`
	Owner     string    `json:"owner"`
	Payload   string    `json:"payload"`
	Tags      []string  `json:"tags"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

type commentResponse struct {
	ID        string    `json:"id"`
	PostID    string    `json:"post_id"`
	Owner     string    `json:"owner"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
}

func toPostResponse(p domain.Post) postResponse {
	return postResponse{
		ID:        p.ID,
		Owner:     p.OwnerHandle,
		Body:      p.Body,
		Tags:      p.Tags,
		Likes:     len(p.LikedBy),
		Reposts:   len(p.RepostedBy),
		CreatedAt: p.CreatedAt,
	}
}

func toPostResponses(posts []domain.Post) []postResponse {
	out := make([]postResponse, len(posts))
	for i, p := range posts {
		out[i] = toPostResponse(p)
	}
	return out
}

func toStoryResponse(s domain.Story) storyResponse {
	return storyResponse{
		ID:        s.ID,
		Owner:     s.OwnerHandle,
		Payload:   s.Payload,
		Tags:      s.Tags,
		CreatedAt: s.CreatedAt,
		ExpiresAt: s.ExpiresAt,
	}
}

func toStoryResponses(stories []domain.Story) []storyResponse {
	out := make([]storyResponse, len(stories))
	for i, s := range stories {
		out[i] = toStoryResponse(s)
	}
	return out
}

func toCommentResponse(c domain.Comment) commentResponse {
	return commentResponse{
		ID:        c.ID,
		PostID:    c.PostID,
		Owner:     c.OwnerHandle,
		Body:      c.Body,
		CreatedAt: c.CreatedAt,
	}
}

func toCommentResponses(comments []domain.Comment) []commentResponse {
	out := make([]commentResponse, len(comments))
	for i, c := range comments {
		out[i] = toCommentResponse(c)
	}
	return out
}
