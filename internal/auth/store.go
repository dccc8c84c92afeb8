package auth

import (
	"context"
	"time"
)

// Store is the principal and token persistence the Service runs against.
type Store interface {
	// WithinTx runs fn as one serializable unit of work, committing only when fn returns nil.
	WithinTx(ctx context.Context, fn func(tx Tx) error) error
	EnsureRoles(ctx context.Context, roles []Role) error
	UpsertPrincipal(ctx context.Context, p NewPrincipal) (Principal, error)
}

// Tx is the view of the store inside a unit of work. Lookups return ErrNotFound when nothing matches.
type Tx interface {
	// PrincipalByIdentifier matches email or username and holds the row until the unit of work ends.
	PrincipalByIdentifier(ctx context.Context, identifier string) (Principal, error)
	PrincipalByID(ctx context.Context, id int64) (Principal, error)
	SaveLoginState(ctx context.Context, principalID int64, state LoginState) error
	// RefreshTokenByDigest holds the matched row until the unit of work ends.
	RefreshTokenByDigest(ctx context.Context, digest string) (RefreshTokenRecord, error)
	RevokeRefreshToken(ctx context.Context, id int64) error
	InsertRefreshToken(ctx context.Context, record RefreshTokenRecord) (RefreshTokenRecord, error)
}

// Denylist records revoked access tokens by the digest of their jti.
type Denylist interface {
	Revoke(ctx context.Context, key string, expiresAt time.Time) error
	IsRevoked(ctx context.Context, key string) (bool, error)
}
