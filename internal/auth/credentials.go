package auth

import (
	"context"
	"regexp"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/blurbapp/blurb/internal/domain"
)

// Credential validation bounds. The secret ceiling tracks bcrypt's 72-byte
// input limit.
var (
	handlePattern = regexp.MustCompile(`^[\p{L}0-9_.@-]{3,64}$`)
	secretPattern = regexp.MustCompile(`^.{6,72}$`)
)

// CredentialStore hashes and verifies user secrets. Secrets and hashes are
// never logged and never leave this package.
type CredentialStore struct {
	users domain.UserRepository
	cost  int
}

// NewCredentialStore creates a CredentialStore hashing at the given bcrypt
// cost.
func NewCredentialStore(users domain.UserRepository, cost int) *CredentialStore {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &CredentialStore{users: users, cost: cost}
}

// Store validates and hashes the secret and persists a new user. Fails with
// a DuplicateIdentity error if the handle is already registered.
func (s *CredentialStore) Store(ctx context.Context, handle, secret string) (*domain.User, error) {
	if !handlePattern.MatchString(handle) {
		return nil, domain.E(domain.KindValidation, "handle must be 3-64 characters of letters, digits, or _.@-")
	}
	if !secretPattern.MatchString(secret) {
		return nil, domain.E(domain.KindValidation, "secret must be 6-72 characters")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(secret), s.cost)
	if err != nil {
		return nil, domain.Errorf(domain.KindStorage, err, "hash secret")
	}

	user := &domain.User{
		ID:             uuid.NewString(),
		Handle:         handle,
		CredentialHash: string(hash),
		CreatedAt:      time.Now().UTC(),
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// Verify compares the presented secret against the stored hash. Fails with a
// NotFound error for an unknown handle and an InvalidCredentials error for a
// mismatched secret; callers that must not leak which case occurred collapse
// the two.
func (s *CredentialStore) Verify(ctx context.Context, handle, secret string) (*domain.User, error) {
	user, err := s.users.FindUserByHandle(ctx, handle)
	if err != nil {
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.CredentialHash), []byte(secret)); err != nil {
		return nil, domain.E(domain.KindInvalidCredentials, "secret does not match")
	}
	return user, nil
}
