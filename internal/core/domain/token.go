package domain

import "fmt"

// TokenKind discriminates the token families sharing one signed encoding.
// The kind claim is load-bearing security data: validation rejects any token
// whose decoded kind differs from the kind the call site expects.
type TokenKind string

const (
	// TokenKindAccess grants resource access for the configured short window.
	TokenKindAccess TokenKind = "access"
	// TokenKindRefresh is exchanged for fresh access tokens.
	TokenKindRefresh TokenKind = "refresh"
	// TokenKindPartial asserts "password verified, second factor pending".
	TokenKindPartial TokenKind = "partial"
	// TokenKindEmailVerify authorizes flipping the verified flag for an email.
	TokenKindEmailVerify TokenKind = "email"
)

// Valid reports whether the kind is one of the closed set.
func (k TokenKind) Valid() bool {
	switch k {
	case TokenKindAccess, TokenKindRefresh, TokenKindPartial, TokenKindEmailVerify:
		return true
	}
	return false
}

// ParseTokenKind converts a wire value into a TokenKind.
func ParseTokenKind(raw string) (TokenKind, error) {
	kind := TokenKind(raw)
	if !kind.Valid() {
		return "", fmt.Errorf("unknown token kind %q", raw)
	}
	return kind, nil
}
