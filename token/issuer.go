package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// RoleRefresh is the role claim carried by every refresh token. It is
// reserved: no application role may use this value.
const RoleRefresh = "refresh"

const (
	// DefaultAccessTTL is the canonical access-token lifetime. The system
	// this replaces computed two different lifetimes on different call
	// paths; there is exactly one here.
	DefaultAccessTTL = 15 * time.Minute

	// DefaultRefreshTTLShort applies when the client did not ask to stay
	// signed in.
	DefaultRefreshTTLShort = 6 * time.Hour

	// DefaultRefreshTTLLong is the six-month lifetime for stay-signed-in
	// refresh tokens.
	DefaultRefreshTTLLong = 6 * 30 * 24 * time.Hour
)

var (
	// ErrMissingSigningKey is returned by NewIssuer when no signing key is
	// configured. Callers treat it as fatal at startup.
	ErrMissingSigningKey = errors.New("no token signing key configured")

	// ErrInvalidToken is returned by Decode for any token that is
	// malformed, carries a bad signature, or is expired.
	ErrInvalidToken = errors.New("invalid token")
)

// Config carries the issuer's signing key and lifetimes. Zero durations
// fall back to the package defaults.
type Config struct {
	SigningKey      []byte
	Issuer          string
	AccessTTL       time.Duration
	RefreshTTLShort time.Duration
	RefreshTTLLong  time.Duration
}

// Claims is the payload encoded into every token.
type Claims struct {
	UID   int64  `json:"uid"`
	Email string `json:"email"`
	Role  string `json:"role"`
	jwt.RegisteredClaims
}

// IsRefresh reports whether the claims belong to a refresh token.
func (c *Claims) IsRefresh() bool {
	return c.Role == RoleRefresh
}

// Pair bundles one access token with one refresh token. It is transient:
// the pair is returned to the caller and never persisted as a unit.
type Pair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// Issuer mints and decodes signed tokens. It is stateless and safe for
// concurrent use.
type Issuer struct {
	config Config
}

// NewIssuer validates cfg and returns an immutable Issuer.
func NewIssuer(cfg Config) (*Issuer, error) {
	if len(cfg.SigningKey) == 0 {
		return nil, ErrMissingSigningKey
	}
	if cfg.AccessTTL == 0 {
		cfg.AccessTTL = DefaultAccessTTL
	}
	if cfg.RefreshTTLShort == 0 {
		cfg.RefreshTTLShort = DefaultRefreshTTLShort
	}
	if cfg.RefreshTTLLong == 0 {
		cfg.RefreshTTLLong = DefaultRefreshTTLLong
	}
	if cfg.AccessTTL < 0 || cfg.RefreshTTLShort < 0 || cfg.RefreshTTLLong < 0 {
		return nil, errors.New("invalid TTL configuration")
	}
	return &Issuer{config: cfg}, nil
}

// MintAccess returns a signed access token for the identity.
func (i *Issuer) MintAccess(id int64, email, role string) (string, error) {
	return i.mint(id, email, role, i.config.AccessTTL)
}

// MintRefresh returns a signed refresh token. shortLived selects the
// hours-scale lifetime; otherwise the months-scale lifetime applies.
func (i *Issuer) MintRefresh(id int64, email string, shortLived bool) (string, error) {
	ttl := i.config.RefreshTTLLong
	if shortLived {
		ttl = i.config.RefreshTTLShort
	}
	return i.mint(id, email, RoleRefresh, ttl)
}

// MintPair mints one access token and one refresh token for the identity.
// This is the only mint path used by the login and reset flows.
func (i *Issuer) MintPair(id int64, email, role string, shortLived bool) (*Pair, error) {
	access, err := i.MintAccess(id, email, role)
	if err != nil {
		return nil, err
	}
	refresh, err := i.MintRefresh(id, email, shortLived)
	if err != nil {
		return nil, err
	}
	return &Pair{AccessToken: access, RefreshToken: refresh}, nil
}

// Decode verifies the token signature and expiry and returns its claims.
// Any failure is reported as ErrInvalidToken.
func (i *Issuer) Decode(tokenStr string) (*Claims, error) {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	)
	tok, err := parser.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		return i.config.SigningKey, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	claims, ok := tok.Claims.(*Claims)
	if !ok || !tok.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

func (i *Issuer) mint(id int64, email, role string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		UID:   id,
		Email: email,
		Role:  role,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    i.config.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.config.SigningKey)
}
