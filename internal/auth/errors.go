package auth

import (
	"errors"
	"time"
)

var (
	ErrInvalidCredentials  = errors.New("invalid credentials")
	ErrInvalidRefreshToken = errors.New("invalid refresh token")
	ErrRefreshTokenRevoked = errors.New("refresh token revoked")
	ErrRefreshTokenExpired = errors.New("refresh token expired")
	ErrInvalidAccessToken  = errors.New("invalid access token")
	ErrStoreUnavailable    = errors.New("store unavailable")

	// ErrNotFound is returned by store lookups that match no row.
	ErrNotFound = errors.New("not found")
)

// ErrAccountLocked rejects a login while the principal's lock is in force.
type ErrAccountLocked struct {
	Until time.Time
}

func (e ErrAccountLocked) Error() string {
	return "account temporarily locked"
}
