package port

import (
	"context"

	"github.com/avolkov/identity-auth/internal/core/domain"
)

// IdentityRepository exposes persistence behavior for identities and profiles.
// CreateWithProfile persists both rows as one transaction: either both exist
// afterwards or neither does.
type IdentityRepository interface {
	CreateWithProfile(ctx context.Context, identity domain.Identity, profile domain.Profile) error
	GetByID(ctx context.Context, id string) (*domain.Identity, error)
	GetByEmail(ctx context.Context, email string) (*domain.Identity, error)
	GetProfile(ctx context.Context, identityID string) (*domain.Profile, error)
	SetVerified(ctx context.Context, id string, verified bool) error
}
