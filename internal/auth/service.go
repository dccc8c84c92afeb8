package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	defaultAccessTTL    = 15 * time.Minute
	defaultRefreshTTL   = 7 * 24 * time.Hour
	defaultMaxAttempts  = 5
	defaultLockWindow   = 15 * time.Minute
	defaultBcryptRounds = 12

	dummyPassword = "dummy_password"
)

// Config is the immutable configuration consumed by the Service.
type Config struct {
	JWTSecret           string
	JWTAlgorithm        string
	JWTIssuer           string
	JWTLeeway           time.Duration
	TokenHashSecret     string
	AccessTokenTTL      time.Duration
	RefreshTokenTTL     time.Duration
	BcryptRounds        int
	MaxLoginAttempts    int
	AccountLockDuration time.Duration
}

type Option func(*Service)

// WithClock replaces time.Now for lock, expiry and token timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// WithDenylist enables access token revocation by jti.
func WithDenylist(denylist Denylist) Option {
	return func(s *Service) {
		s.denylist = denylist
	}
}

// Service implements login, refresh rotation and logout against a Store.
type Service struct {
	store      Store
	denylist   Denylist
	hasher     Hasher
	verify     func(plaintext, hash string) bool
	codec      *Codec
	digester   Digester
	lockout    LockoutPolicy
	refreshTTL time.Duration
	dummyHash  string
	now        func() time.Time
}

func NewService(store Store, cfg Config, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, errors.New("store is required")
	}
	if cfg.TokenHashSecret == "" {
		return nil, errors.New("token hash secret is required")
	}
	if cfg.TokenHashSecret == cfg.JWTSecret {
		return nil, errors.New("token hash secret must differ from jwt secret")
	}
	if cfg.AccessTokenTTL <= 0 {
		cfg.AccessTokenTTL = defaultAccessTTL
	}
	if cfg.RefreshTokenTTL <= 0 {
		cfg.RefreshTokenTTL = defaultRefreshTTL
	}
	if cfg.MaxLoginAttempts <= 0 {
		cfg.MaxLoginAttempts = defaultMaxAttempts
	}
	if cfg.AccountLockDuration <= 0 {
		cfg.AccountLockDuration = defaultLockWindow
	}
	if cfg.BcryptRounds <= 0 {
		cfg.BcryptRounds = defaultBcryptRounds
	}

	s := &Service{
		store:      store,
		hasher:     NewHasher(cfg.BcryptRounds),
		digester:   NewDigester(cfg.TokenHashSecret),
		lockout:    LockoutPolicy{MaxAttempts: cfg.MaxLoginAttempts, LockDuration: cfg.AccountLockDuration},
		refreshTTL: cfg.RefreshTokenTTL,
		now:        time.Now,
	}
	s.verify = s.hasher.Verify
	for _, opt := range opts {
		opt(s)
	}

	codec, err := NewCodec(CodecConfig{
		Secret:    cfg.JWTSecret,
		Algorithm: cfg.JWTAlgorithm,
		TTL:       cfg.AccessTokenTTL,
		Leeway:    cfg.JWTLeeway,
		Issuer:    cfg.JWTIssuer,
		Now:       s.now,
	})
	if err != nil {
		return nil, fmt.Errorf("init token codec: %w", err)
	}
	s.codec = codec

	s.dummyHash, err = s.hasher.Hash(dummyPassword)
	if err != nil {
		return nil, fmt.Errorf("precompute dummy hash: %w", err)
	}

	return s, nil
}

// Login verifies identifier (email or username) and password and issues a token pair.
// Unknown identifiers cost one bcrypt verification, the same as a wrong password.
func (s *Service) Login(ctx context.Context, identifier, password string) (Tokens, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		s.verify(password, s.dummyHash)
		return Tokens{}, ErrInvalidCredentials
	}

	var (
		tokens  Tokens
		outcome error
		found   bool
	)
	err := s.store.WithinTx(ctx, func(tx Tx) error {
		tokens, outcome, found = Tokens{}, nil, true

		principal, err := tx.PrincipalByIdentifier(ctx, identifier)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				found = false
				return nil
			}
			return err
		}

		now := s.now().UTC()
		if until, locked := s.lockout.Locked(principal.LoginState, now); locked {
			outcome = ErrAccountLocked{Until: until}
			return nil
		}

		if !s.verify(password, principal.PasswordHash) {
			state := s.lockout.RecordFailure(principal.LoginState, now)
			if err := tx.SaveLoginState(ctx, principal.ID, state); err != nil {
				return err
			}
			outcome = ErrInvalidCredentials
			return nil
		}

		state := s.lockout.RecordSuccess(principal.LoginState, now)
		if err := tx.SaveLoginState(ctx, principal.ID, state); err != nil {
			return err
		}

		tokens, err = s.issueTokens(ctx, tx, principal, now)
		return err
	})
	if err != nil {
		return Tokens{}, err
	}
	if !found {
		s.verify(password, s.dummyHash)
		return Tokens{}, ErrInvalidCredentials
	}
	if outcome != nil {
		return Tokens{}, outcome
	}

	return tokens, nil
}

// Refresh rotates a refresh secret. The presented record is revoked and committed
// before the replacement is issued, so it stays spent even if issuance fails.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (Tokens, error) {
	refreshToken = strings.TrimSpace(refreshToken)
	if refreshToken == "" {
		return Tokens{}, ErrInvalidRefreshToken
	}

	digest := s.digester.Digest(refreshToken)
	var userID int64
	err := s.store.WithinTx(ctx, func(tx Tx) error {
		record, err := tx.RefreshTokenByDigest(ctx, digest)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return ErrInvalidRefreshToken
			}
			return err
		}
		if record.Revoked {
			return ErrRefreshTokenRevoked
		}
		if s.now().UTC().After(record.ExpiresAt) {
			return ErrRefreshTokenExpired
		}

		if err := tx.RevokeRefreshToken(ctx, record.ID); err != nil {
			return err
		}
		userID = record.UserID
		return nil
	})
	if err != nil {
		return Tokens{}, err
	}

	var tokens Tokens
	err = s.store.WithinTx(ctx, func(tx Tx) error {
		principal, err := tx.PrincipalByID(ctx, userID)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return ErrInvalidRefreshToken
			}
			return err
		}

		tokens, err = s.issueTokens(ctx, tx, principal, s.now().UTC())
		return err
	})
	if err != nil {
		return Tokens{}, err
	}

	return tokens, nil
}

// Logout revokes the refresh secret and, when a valid access token is supplied, denylists its jti.
// Revoking an already revoked refresh secret succeeds.
func (s *Service) Logout(ctx context.Context, refreshToken, accessToken string) error {
	refreshToken = strings.TrimSpace(refreshToken)
	if refreshToken == "" {
		return ErrInvalidRefreshToken
	}

	digest := s.digester.Digest(refreshToken)
	err := s.store.WithinTx(ctx, func(tx Tx) error {
		record, err := tx.RefreshTokenByDigest(ctx, digest)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return ErrInvalidRefreshToken
			}
			return err
		}
		if record.Revoked {
			return nil
		}
		return tx.RevokeRefreshToken(ctx, record.ID)
	})
	if err != nil {
		return err
	}

	accessToken = strings.TrimSpace(accessToken)
	if accessToken == "" || s.denylist == nil {
		return nil
	}
	claims, err := s.codec.Verify(accessToken)
	if err != nil {
		return nil
	}
	if err := s.denylist.Revoke(ctx, s.digester.Digest(claims.ID), claims.ExpiresAt.Time); err != nil {
		return fmt.Errorf("denylist access token: %w", err)
	}

	return nil
}

// Authenticate verifies an access token and rejects it if its jti was revoked.
func (s *Service) Authenticate(ctx context.Context, accessToken string) (*AccessClaims, error) {
	claims, err := s.codec.Verify(strings.TrimSpace(accessToken))
	if err != nil {
		return nil, err
	}
	if s.denylist == nil {
		return claims, nil
	}

	revoked, err := s.denylist.IsRevoked(ctx, s.digester.Digest(claims.ID))
	if err != nil {
		return nil, fmt.Errorf("check denylist: %w", err)
	}
	if revoked {
		return nil, fmt.Errorf("%w: token revoked", ErrInvalidAccessToken)
	}

	return claims, nil
}

// Bootstrap seeds the default roles and, when credentials are given, an admin principal.
func (s *Service) Bootstrap(ctx context.Context, adminEmail, adminUsername, adminPassword string) error {
	if err := s.store.EnsureRoles(ctx, DefaultRoles); err != nil {
		return fmt.Errorf("seed roles: %w", err)
	}

	adminEmail = strings.TrimSpace(adminEmail)
	adminUsername = strings.TrimSpace(adminUsername)
	adminPassword = strings.TrimSpace(adminPassword)

	if adminEmail == "" && adminPassword == "" {
		return nil
	}
	if adminEmail == "" || adminPassword == "" {
		return fmt.Errorf("ADMIN_EMAIL and ADMIN_PASSWORD are required together")
	}

	hash, err := s.hasher.Hash(adminPassword)
	if err != nil {
		return err
	}

	admin := NewPrincipal{Email: adminEmail, PasswordHash: hash, RoleName: "admin"}
	if adminUsername != "" {
		admin.Username = &adminUsername
	}
	if _, err := s.store.UpsertPrincipal(ctx, admin); err != nil {
		return fmt.Errorf("upsert admin: %w", err)
	}

	return nil
}

func (s *Service) issueTokens(ctx context.Context, tx Tx, principal Principal, now time.Time) (Tokens, error) {
	access, err := s.codec.Issue(principal.ID, principal.RoleName)
	if err != nil {
		return Tokens{}, err
	}

	refreshToken, err := GenerateRefreshSecret()
	if err != nil {
		return Tokens{}, fmt.Errorf("generate refresh token: %w", err)
	}

	_, err = tx.InsertRefreshToken(ctx, RefreshTokenRecord{
		UserID:    principal.ID,
		TokenHash: s.digester.Digest(refreshToken),
		ExpiresAt: now.Add(s.refreshTTL),
		CreatedAt: now,
	})
	if err != nil {
		return Tokens{}, err
	}

	return Tokens{
		AccessToken:  access,
		RefreshToken: refreshToken,
		TokenType:    TokenTypeBearer,
		ExpiresIn:    int64(s.codec.TTL().Seconds()),
	}, nil
}
