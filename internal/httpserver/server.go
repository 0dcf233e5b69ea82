// Package httpserver is the HTTP boundary. It extracts and validates the
// bearer token, threads the resulting identity into service calls, and maps
// each domain error kind to a status code 1:1.
package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/blurbapp/blurb/internal/auth"
	"github.com/blurbapp/blurb/internal/config"
	"github.com/blurbapp/blurb/internal/domain"
)

// TokenValidator resolves a bearer token to the identity it binds.
type TokenValidator interface {
	Validate(tokenString string) (string, error)
}

// Server is the HTTP server exposing the content and auth API.
type Server struct {
	content    *domain.ContentService
	authSvc    *auth.Service
	tokens     TokenValidator
	logger     *slog.Logger
	httpServer *http.Server
}

// NewServer creates a new HTTP server over the given services.
func NewServer(cfg *config.Config, content *domain.ContentService, authSvc *auth.Service, tokens TokenValidator, logger *slog.Logger) *Server {
	s := &Server{
		content: content,
		authSvc: authSvc,
		tokens:  tokens,
		logger:  logger,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/register", s.handleRegister)
	mux.HandleFunc("POST /api/login", s.handleLogin)

	mux.HandleFunc("GET /api/posts", s.handleListPosts)
	mux.HandleFunc("POST /api/posts", s.handleCreatePost)
	mux.HandleFunc("GET /api/posts/{id}", s.handleGetPost)
	mux.HandleFunc("PUT /api/posts/{id}", s.handleUpdatePost)
	mux.HandleFunc("DELETE /api/posts/{id}", s.handleDeletePost)
	mux.HandleFunc("POST /api/posts/{id}/like", s.handleLikePost)
	mux.HandleFunc("POST /api/posts/{id}/repost", s.handleRepostPost)
	mux.HandleFunc("GET /api/posts/{id}/comments", s.handleListComments)
	mux.HandleFunc("POST /api/posts/{id}/comments", s.handleAddComment)
	mux.HandleFunc("DELETE /api/comments/{id}", s.handleDeleteComment)

	mux.HandleFunc("POST /api/stories", s.handleCreateStory)
	mux.HandleFunc("GET /api/stories/{id}", s.handleGetStory)
	mux.HandleFunc("DELETE /api/stories/{id}", s.handleDeleteStory)

	mux.HandleFunc("GET /api/tags/{name}/posts", s.handlePostsByTag)
	mux.HandleFunc("GET /api/tags/{name}/stories", s.handleStoriesByTag)

	mux.HandleFunc("GET /health", s.handleHealth)

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      withLogging(logger, mux),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// Start begins listening for HTTP requests. It blocks until the server is
// shut down or an error occurs.
func (s *Server) Start() error {
	s.logger.Info("starting HTTP server", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// Handler returns the server's root handler, for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// identity extracts and validates the bearer token, returning the identity
// it binds. Token validation is pure computation, performed once per request.
func (s *Server) identity(r *http.Request) (string, error) {
	header := r.Header.Get("Authorization")
	tok, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || tok == "" {
		return "", domain.E(domain.KindMalformed, "missing bearer token")
	}
	return s.tokens.Validate(tok)
}

type credentialsRequest struct {
	Handle string `json:"handle"`
	Secret string `json:"secret"`
}

type contentRequest struct {
	Body string   `json:"body"`
	Tags []string `json:"tags"`
}

type commentRequest struct {
	Body string `json:"body"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, string(domain.KindValidation), "invalid request body")
		return
	}

	tok, err := s.authSvc.Register(r.Context(), req.Handle, req.Secret)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"token": tok})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, string(domain.KindValidation), "invalid request body")
		return
	}

	tok, err := s.authSvc.Authenticate(r.Context(), req.Handle, req.Secret)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"token": tok})
}

func (s *Server) handleListPosts(w http.ResponseWriter, r *http.Request) {
	posts, err := s.content.ListPosts(r.Context())
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toPostResponses(posts))
}

func (s *Server) handleCreatePost(w http.ResponseWriter, r *http.Request) {
	identity, err := s.identity(r)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	var req contentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, string(domain.KindValidation), "invalid request body")
		return
	}

	post, err := s.content.CreatePost(r.Context(), identity, req.Body, req.Tags)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toPostResponse(*post))
}

func (s *Server) handleGetPost(w http.ResponseWriter, r *http.Request) {
	post, err := s.content.GetPost(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toPostResponse(*post))
}

func (s *Server) handleUpdatePost(w http.ResponseWriter, r *http.Request) {
	identity, err := s.identity(r)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	var req contentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, string(domain.KindValidation), "invalid request body")
		return
	}

	post, err := s.content.UpdatePost(r.Context(), r.PathValue("id"), identity, req.Body, req.Tags)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toPostResponse(*post))
}

func (s *Server) handleDeletePost(w http.ResponseWriter, r *http.Request) {
	identity, err := s.identity(r)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	if err := s.content.DeletePost(r.Context(), r.PathValue("id"), identity); err != nil {
		s.writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleLikePost(w http.ResponseWriter, r *http.Request) {
	identity, err := s.identity(r)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	result, err := s.content.ToggleLike(r.Context(), r.PathValue("id"), identity)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"liked": result.Member, "likes": result.Count})
}

func (s *Server) handleRepostPost(w http.ResponseWriter, r *http.Request) {
	identity, err := s.identity(r)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	result, err := s.content.ToggleRepost(r.Context(), r.PathValue("id"), identity)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"reposted": result.Member, "reposts": result.Count})
}

func (s *Server) handleListComments(w http.ResponseWriter, r *http.Request) {
	comments, err := s.content.ListComments(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toCommentResponses(comments))
}

func (s *Server) handleAddComment(w http.ResponseWriter, r *http.Request) {
	identity, err := s.identity(r)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	var req commentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, string(domain.KindValidation), "invalid request body")
		return
	}

	comment, err := s.content.AddComment(r.Context(), r.PathValue("id"), identity, req.Body)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toCommentResponse(*comment))
}

func (s *Server) handleDeleteComment(w http.ResponseWriter, r *http.Request) {
	identity, err := s.identity(r)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	if err := s.content.DeleteComment(r.Context(), r.PathValue("id"), identity); err != nil {
		s.writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleCreateStory(w http.ResponseWriter, r *http.Request) {
	identity, err := s.identity(r)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	var req contentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, string(domain.KindValidation), "invalid request body")
		return
	}

	story, err := s.content.CreateStory(r.Context(), identity, req.Body, req.Tags)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toStoryResponse(*story))
}

func (s *Server) handleGetStory(w http.ResponseWriter, r *http.Request) {
	story, err := s.content.GetStory(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toStoryResponse(*story))
}

func (s *Server) handleDeleteStory(w http.ResponseWriter, r *http.Request) {
	identity, err := s.identity(r)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	if err := s.content.DeleteStory(r.Context(), r.PathValue("id"), identity); err != nil {
		s.writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handlePostsByTag(w http.ResponseWriter, r *http.Request) {
	posts, err := s.content.GetPostsByTag(r.Context(), r.PathValue("name"))
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toPostResponses(posts))
}

func (s *Server) handleStoriesByTag(w http.ResponseWriter, r *http.Request) {
	stories, err := s.content.GetStoriesByTag(r.Context(), r.PathValue("name"))
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toStoryResponses(stories))
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// statusForKind maps each domain error kind to its status code.
func statusForKind(kind domain.Kind) int {
	switch kind {
	case domain.KindNotFound:
		return http.StatusNotFound
	case domain.KindForbidden:
		return http.StatusForbidden
	case domain.KindInvalidCredentials, domain.KindExpired, domain.KindMalformed:
		return http.StatusUnauthorized
	case domain.KindDuplicateIdentity, domain.KindConflict:
		return http.StatusConflict
	case domain.KindValidation:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeDomainError(w http.ResponseWriter, err error) {
	var de *domain.Error
	if !errors.As(err, &de) {
		s.logger.Error("unexpected error", "error", err)
		writeError(w, http.StatusInternalServerError, string(domain.KindStorage), "internal error")
		return
	}

	status := statusForKind(de.Kind)
	if status == http.StatusInternalServerError {
		s.logger.Error("storage error", "error", err)
		writeError(w, status, string(de.Kind), "internal error")
		return
	}
	writeError(w, status, string(de.Kind), de.Message)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, errKind, message string) {
	writeJSON(w, status, map[string]string{
		"error":   errKind,
		"message": message,
	})
}

func withLogging(logger *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(wrapped, r)
		logger.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", wrapped.status,
			"duration", time.Since(start),
		)
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}
