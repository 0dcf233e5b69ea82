// Package auth orchestrates registration and authentication: credential
// hashing and verification on one side, token issuance on the other.
package auth

import (
	"context"
	"log/slog"

	"github.com/blurbapp/blurb/internal/domain"
)

// TokenIssuer mints signed tokens for an identity.
type TokenIssuer interface {
	Issue(identity string) (string, error)
}

// Service handles the unauthenticated-to-authenticated transition. Both
// register and authenticate end in an issued token.
type Service struct {
	creds  *CredentialStore
	tokens TokenIssuer
	logger *slog.Logger
}

// NewService creates an auth Service.
func NewService(creds *CredentialStore, tokens TokenIssuer, logger *slog.Logger) *Service {
	return &Service{creds: creds, tokens: tokens, logger: logger}
}

// Register persists a new identity and issues a token for it. The credential
// row is the durable fact: if issuance fails after the user is persisted the
// error is returned, but the account exists and Authenticate recovers access.
func (s *Service) Register(ctx context.Context, handle, secret string) (string, error) {
	if _, err := s.creds.Store(ctx, handle, secret); err != nil {
		return "", err
	}
	s.logger.Info("user registered", "handle", handle)

	tok, err := s.tokens.Issue(handle)
	if err != nil {
		s.logger.Error("token issuance failed after registration", "handle", handle, "error", err)
		return "", err
	}
	return tok, nil
}

// Authenticate verifies the presented secret and issues a token. An unknown
// handle and a wrong secret both fail with the same InvalidCredentials error
// so callers cannot enumerate identities.
func (s *Service) Authenticate(ctx context.Context, handle, secret string) (string, error) {
	user, err := s.creds.Verify(ctx, handle, secret)
	if err != nil {
		switch domain.KindOf(err) {
		case domain.KindNotFound, domain.KindInvalidCredentials:
			return "", domain.E(domain.KindInvalidCredentials, "invalid handle or secret")
		}
		return "", err
	}
	return s.tokens.Issue(user.Handle)
}
