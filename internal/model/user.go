package model

import "time"

// User represents an application user record as stored in the `users`
// table.  The json tags are omitted because these structs are used by the
// repository layer; handlers define their own response types.
//
// Fields:
//
//	UserID       - opaque identifier (uuid), the JWT subject.
//	Email        - unique email address.
//	PasswordHash - bcrypt hashed password.
//	GithubID     - linked GitHub account id (nullable).
//	CreatedAt    - timestamp of creation.
//	UpdatedAt    - timestamp of last update.
type User struct {
	UserID       string    // users.user_id
	Email        string    // users.email
	PasswordHash string    // users.password_hash
	GithubID     *string   // users.github_id (nullable)
	CreatedAt    time.Time // users.created_at
	UpdatedAt    time.Time // users.updated_at
}

// RefreshToken models an entry in the `refresh_tokens` table.  The plain
// token is never stored, only its SHA-256 hash.
type RefreshToken struct {
	ID        uint64     // refresh_tokens.id
	UserID    string     // refresh_tokens.user_id
	TokenHash string     // refresh_tokens.token_hash
	ExpiresAt time.Time  // refresh_tokens.expires_at
	RevokedAt *time.Time // refresh_tokens.revoked_at (nullable)
	CreatedAt time.Time  // refresh_tokens.created_at
}
