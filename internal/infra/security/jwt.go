package security

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/avolkov/identity-auth/internal/core/domain"
)

var (
	// ErrTokenExpired indicates the token signature is valid but the expiry has passed.
	ErrTokenExpired = errors.New("token expired")
	// ErrTokenInvalid indicates the token is malformed or signature validation failed.
	ErrTokenInvalid = errors.New("token invalid")
	// ErrWrongTokenKind indicates the decoded kind differs from the expected kind.
	ErrWrongTokenKind = errors.New("wrong token kind")
)

// IdentityClaims carries the identity facts embedded in every signed token.
type IdentityClaims struct {
	IdentityID string `json:"id"`
	Email      string `json:"email"`
	Kind       string `json:"type"`
	jwt.RegisteredClaims
}

// TokenKind converts the raw type claim into a domain kind.
func (c *IdentityClaims) TokenKind() (domain.TokenKind, error) {
	return domain.ParseTokenKind(c.Kind)
}

// TokenCodec encodes and decodes kind-tagged identity claims using a single
// process-wide HMAC secret. The secret and method are immutable for the
// process lifetime.
type TokenCodec struct {
	secret []byte
	now    func() time.Time
}

// NewTokenCodec constructs a codec over the supplied signing secret.
func NewTokenCodec(secret []byte) (*TokenCodec, error) {
	if len(secret) == 0 {
		return nil, fmt.Errorf("jwt: signing secret is required")
	}
	return &TokenCodec{secret: secret, now: time.Now}, nil
}

// WithClock overrides the internal clock, used in tests.
func (c *TokenCodec) WithClock(clock func() time.Time) *TokenCodec {
	if clock != nil {
		c.now = clock
	}
	return c
}

// Encode signs identity claims stamped with the supplied kind and an expiry
// of now + ttl.
func (c *TokenCodec) Encode(identityID, email string, kind domain.TokenKind, ttl time.Duration) (string, error) {
	if !kind.Valid() {
		return "", fmt.Errorf("jwt: invalid token kind %q", kind)
	}

	now := c.now().UTC()
	claims := IdentityClaims{
		IdentityID: identityID,
		Email:      email,
		Kind:       string(kind),
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("jwt: sign token: %w", err)
	}

	return signed, nil
}

// Decode verifies signature and expiry and returns the embedded claims.
// Expired tokens report ErrTokenExpired; every other failure collapses to
// ErrTokenInvalid.
func (c *TokenCodec) Decode(tokenString string) (*IdentityClaims, error) {
	claims := &IdentityClaims{}
	parsed, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return c.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(c.now))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrTokenInvalid
	}

	if parsed == nil || !parsed.Valid {
		return nil, ErrTokenInvalid
	}

	return claims, nil
}

// TokenTTLs holds the per-kind expiry policy.
type TokenTTLs struct {
	Access      time.Duration
	Refresh     time.Duration
	Partial     time.Duration
	EmailVerify time.Duration
}

// DefaultTokenTTLs returns the stock expiry policy.
func DefaultTokenTTLs() TokenTTLs {
	return TokenTTLs{
		Access:      60 * time.Minute,
		Refresh:     30 * 24 * time.Hour,
		Partial:     5 * time.Minute,
		EmailVerify: 15 * time.Minute,
	}
}

// TokenIssuer wraps the codec with the per-kind expiry policy and enforces
// kind expectations on validation.
type TokenIssuer struct {
	codec *TokenCodec
	ttls  TokenTTLs
}

// NewTokenIssuer constructs an issuer; non-positive TTLs fall back to defaults.
func NewTokenIssuer(codec *TokenCodec, ttls TokenTTLs) (*TokenIssuer, error) {
	if codec == nil {
		return nil, fmt.Errorf("jwt: token codec is required")
	}

	defaults := DefaultTokenTTLs()
	if ttls.Access <= 0 {
		ttls.Access = defaults.Access
	}
	if ttls.Refresh <= 0 {
		ttls.Refresh = defaults.Refresh
	}
	if ttls.Partial <= 0 {
		ttls.Partial = defaults.Partial
	}
	if ttls.EmailVerify <= 0 {
		ttls.EmailVerify = defaults.EmailVerify
	}

	return &TokenIssuer{codec: codec, ttls: ttls}, nil
}

// TTL returns the configured lifetime for the supplied kind.
func (i *TokenIssuer) TTL(kind domain.TokenKind) (time.Duration, error) {
	switch kind {
	case domain.TokenKindAccess:
		return i.ttls.Access, nil
	case domain.TokenKindRefresh:
		return i.ttls.Refresh, nil
	case domain.TokenKindPartial:
		return i.ttls.Partial, nil
	case domain.TokenKindEmailVerify:
		return i.ttls.EmailVerify, nil
	default:
		return 0, fmt.Errorf("jwt: unknown token kind %q", kind)
	}
}

// Issue mints a token of the supplied kind with the kind's configured TTL.
func (i *TokenIssuer) Issue(kind domain.TokenKind, identityID, email string) (string, error) {
	ttl, err := i.TTL(kind)
	if err != nil {
		return "", err
	}
	return i.codec.Encode(identityID, email, kind, ttl)
}

// Validate decodes the token and enforces the expected kind. Decode failures
// propagate unchanged; a kind mismatch is ErrWrongTokenKind.
func (i *TokenIssuer) Validate(tokenString string, expected domain.TokenKind) (*IdentityClaims, error) {
	claims, err := i.codec.Decode(tokenString)
	if err != nil {
		return nil, err
	}

	kind, err := claims.TokenKind()
	if err != nil {
		return nil, ErrTokenInvalid
	}
	if kind != expected {
		return nil, ErrWrongTokenKind
	}

	return claims, nil
}

// RefreshToAccess validates the input as a refresh token and re-issues a
// fresh access token carrying the same identity claims. This is the only
// place one token kind produces another.
func (i *TokenIssuer) RefreshToAccess(refreshToken string) (string, error) {
	claims, err := i.Validate(refreshToken, domain.TokenKindRefresh)
	if err != nil {
		return "", err
	}
	return i.Issue(domain.TokenKindAccess, claims.IdentityID, claims.Email)
}
