package auth

import "time"

const TokenTypeBearer = "bearer"

type Role struct {
	ID          int64
	Name        string
	Description string
	CreatedAt   time.Time
}

// LoginState is the lockout bookkeeping carried by a principal.
// IsLocked implies LockUntil != nil; the lock is only in force while now < LockUntil.
type LoginState struct {
	FailedAttempts int
	IsLocked       bool
	LockUntil      *time.Time
	LastLoginAt    *time.Time
}

type Principal struct {
	ID           int64
	Email        string
	Username     *string
	PasswordHash string
	RoleID       int64
	RoleName     string
	IsActive     bool
	IsVerified   bool
	LoginState   LoginState
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type NewPrincipal struct {
	Email        string
	Username     *string
	PasswordHash string
	RoleName     string
}

// RefreshTokenRecord stores the keyed digest of an issued refresh secret, never the secret.
type RefreshTokenRecord struct {
	ID        int64
	UserID    int64
	TokenHash string
	ExpiresAt time.Time
	Revoked   bool
	CreatedAt time.Time
}

type Tokens struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
}

var DefaultRoles = []Role{
	{Name: "admin", Description: "Administrator with full access"},
	{Name: "user", Description: "Default application user"},
}
