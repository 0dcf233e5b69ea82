package domain

import "time"

// User is a registered account. The handle is the identity carried in auth
// tokens and referenced by posts, stories, and comments.
type User struct {
	// ID is the generated unique id.
	ID string

	// Handle is the unique login identity.
	Handle string

	// CredentialHash is the bcrypt hash of the user's secret. It is never
	// serialized or logged.
	CredentialHash string

	// CreatedAt is when the user registered.
	CreatedAt time.Time
}
