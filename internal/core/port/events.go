package port

import (
	"context"

	"github.com/avolkov/identity-auth/internal/core/domain"
)

// EventPublisher publishes auth domain events to the message bus.
type EventPublisher interface {
	PublishIdentityRegistered(ctx context.Context, event domain.IdentityRegisteredEvent) error
	PublishEmailVerified(ctx context.Context, event domain.EmailVerifiedEvent) error
	PublishLoginSucceeded(ctx context.Context, event domain.LoginSucceededEvent) error
	PublishTwoFactorPending(ctx context.Context, event domain.TwoFactorPendingEvent) error
	PublishTokenRefreshed(ctx context.Context, event domain.TokenRefreshedEvent) error
}
