package port

import (
	"context"
	"time"

	"github.com/avolkov/identity-auth/internal/core/domain"
)

// TwoFactorCodeStore persists the single live second-factor code per identity.
type TwoFactorCodeStore interface {
	// Replace atomically retires any prior code for the identity and stores
	// the new one with the supplied TTL.
	Replace(ctx context.Context, identityID, code string, ttl time.Duration) (*domain.TwoFactorCode, error)
	// Get returns the live code record, or repository.ErrNotFound when none exists.
	Get(ctx context.Context, identityID string) (*domain.TwoFactorCode, error)
}
