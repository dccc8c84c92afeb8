package auth

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// AccessClaims is the claim set of an access token: sub, role, jti, iat, exp.
type AccessClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// SubjectID parses the numeric principal id carried in sub.
func (c AccessClaims) SubjectID() (int64, error) {
	id, err := strconv.ParseInt(c.Subject, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid subject %q", c.Subject)
	}
	return id, nil
}

type CodecConfig struct {
	Secret    string
	Algorithm string
	TTL       time.Duration
	// Leeway is the clock skew tolerated on exp and iat.
	Leeway time.Duration
	// Issuer is stamped into iss and required on verify when set.
	Issuer string
	Now    func() time.Time
}

// Codec issues and verifies HMAC-signed access tokens.
type Codec struct {
	secret []byte
	method jwt.SigningMethod
	ttl    time.Duration
	leeway time.Duration
	issuer string
	now    func() time.Time
}

func NewCodec(cfg CodecConfig) (*Codec, error) {
	if cfg.Secret == "" {
		return nil, errors.New("codec secret is required")
	}
	if cfg.TTL <= 0 {
		return nil, errors.New("codec ttl must be positive")
	}
	if cfg.Leeway < 0 {
		return nil, errors.New("codec leeway must not be negative")
	}

	algorithm := strings.ToUpper(strings.TrimSpace(cfg.Algorithm))
	if algorithm == "" {
		algorithm = jwt.SigningMethodHS256.Alg()
	}
	method, ok := jwt.GetSigningMethod(algorithm).(*jwt.SigningMethodHMAC)
	if !ok {
		return nil, fmt.Errorf("unsupported signing algorithm %q", cfg.Algorithm)
	}

	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	return &Codec{
		secret: []byte(cfg.Secret),
		method: method,
		ttl:    cfg.TTL,
		leeway: cfg.Leeway,
		issuer: cfg.Issuer,
		now:    now,
	}, nil
}

func (c *Codec) TTL() time.Duration {
	return c.ttl
}

func (c *Codec) Issue(subjectID int64, role string) (string, error) {
	jti, err := uuid.NewRandom()
	if err != nil {
		return "", fmt.Errorf("generate jti: %w", err)
	}

	now := c.now().UTC()
	claims := AccessClaims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(subjectID, 10),
			ID:        jti.String(),
			Issuer:    c.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(c.ttl)),
		},
	}

	encoded, err := jwt.NewWithClaims(c.method, claims).SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("sign jwt: %w", err)
	}
	return encoded, nil
}

// Verify checks signature, algorithm, exp and iat, and the presence of sub, role and jti.
// Every failure is reported as ErrInvalidAccessToken.
func (c *Codec) Verify(tokenString string) (*AccessClaims, error) {
	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{c.method.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(c.now),
		jwt.WithStrictDecoding(),
	}
	if c.leeway > 0 {
		options = append(options, jwt.WithLeeway(c.leeway))
	}
	if c.issuer != "" {
		options = append(options, jwt.WithIssuer(c.issuer))
	}

	claims := &AccessClaims{}
	token, err := jwt.NewParser(options...).ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		return c.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidAccessToken, err)
	}
	if !token.Valid {
		return nil, ErrInvalidAccessToken
	}

	if _, err := claims.SubjectID(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidAccessToken, err)
	}
	if claims.Role == "" || claims.ID == "" {
		return nil, fmt.Errorf("%w: missing role or jti", ErrInvalidAccessToken)
	}

	return claims, nil
}
