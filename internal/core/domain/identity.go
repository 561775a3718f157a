package domain

import "time"

// Identity is a credential-bearing user record owned by the credential store.
type Identity struct {
	ID               string
	Email            string
	PasswordHash     string
	Verified         bool
	RequireTwoFactor bool
	CreatedAt        time.Time
}

// Profile carries the non-credential attributes created alongside an identity.
type Profile struct {
	IdentityID string
	Name       string
	CreatedAt  time.Time
}

// TwoFactorCode is the single live second-factor code for an identity.
// At most one record exists per identity at any instant; issuing a new code
// replaces the previous one.
type TwoFactorCode struct {
	IdentityID string
	Code       string
	CreatedAt  time.Time
	ExpiresAt  time.Time
}

// Expired reports whether the code is no longer valid at the supplied instant.
func (c TwoFactorCode) Expired(at time.Time) bool {
	return !at.Before(c.ExpiresAt)
}
