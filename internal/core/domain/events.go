package domain

import "time"

// IdentityRegisteredEvent represents the payload for auth.identity.registered messages.
type IdentityRegisteredEvent struct {
	EventID              string
	IdentityID           string
	Email                string
	RequiresVerification bool
	RegisteredAt         time.Time
}

// EmailVerifiedEvent represents the payload for auth.identity.email_verified messages.
type EmailVerifiedEvent struct {
	EventID    string
	IdentityID string
	Email      string
	VerifiedAt time.Time
}

// LoginSucceededEvent represents the payload for auth.login.succeeded messages.
type LoginSucceededEvent struct {
	EventID    string
	IdentityID string
	Email      string
	TwoFactor  bool
	LoggedInAt time.Time
}

// TwoFactorPendingEvent represents the payload for auth.login.twofactor_pending messages.
type TwoFactorPendingEvent struct {
	EventID       string
	IdentityID    string
	Email         string
	CodeExpiresAt time.Time
	RequestedAt   time.Time
}

// TokenRefreshedEvent represents the payload for auth.token.refreshed messages.
type TokenRefreshedEvent struct {
	EventID     string
	IdentityID  string
	Email       string
	RefreshedAt time.Time
}
