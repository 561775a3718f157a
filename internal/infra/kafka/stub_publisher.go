package kafka

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/avolkov/identity-auth/internal/core/domain"
	"github.com/avolkov/identity-auth/internal/core/port"
	"github.com/avolkov/identity-auth/internal/infra/logger"
)

// StubPublisher logs events instead of sending them to Kafka. Useful for
// development environments without brokers.
type StubPublisher struct {
	logger *zap.Logger
}

// NewStubPublisher constructs a development-friendly event publisher.
func NewStubPublisher(log *zap.Logger) *StubPublisher {
	return &StubPublisher{logger: log}
}

func (p *StubPublisher) logEvent(eventType, identityID string, at time.Time, payload any) {
	if at.IsZero() {
		at = time.Now().UTC()
	}

	p.logger.Info("Stub event published",
		zap.String("event_type", eventType),
		zap.String("identity_id", identityID),
		zap.Time("timestamp", at.UTC()),
		zap.Any("payload", payload),
	)
}

// PublishIdentityRegistered logs auth.identity.registered events.
func (p *StubPublisher) PublishIdentityRegistered(_ context.Context, event domain.IdentityRegisteredEvent) error {
	payload := map[string]any{
		"identity_id":           event.IdentityID,
		"email":                 logger.MaskEmail(event.Email),
		"requires_verification": event.RequiresVerification,
		"registered_at":         event.RegisteredAt,
	}
	p.logEvent("auth.identity.registered", event.IdentityID, event.RegisteredAt, payload)
	return nil
}

// PublishEmailVerified logs auth.identity.email_verified events.
func (p *StubPublisher) PublishEmailVerified(_ context.Context, event domain.EmailVerifiedEvent) error {
	payload := map[string]any{
		"identity_id": event.IdentityID,
		"email":       logger.MaskEmail(event.Email),
		"verified_at": event.VerifiedAt,
	}
	p.logEvent("auth.identity.email_verified", event.IdentityID, event.VerifiedAt, payload)
	return nil
}

// PublishLoginSucceeded logs auth.login.succeeded events.
func (p *StubPublisher) PublishLoginSucceeded(_ context.Context, event domain.LoginSucceededEvent) error {
	payload := map[string]any{
		"identity_id":  event.IdentityID,
		"email":        logger.MaskEmail(event.Email),
		"two_factor":   event.TwoFactor,
		"logged_in_at": event.LoggedInAt,
	}
	p.logEvent("auth.login.succeeded", event.IdentityID, event.LoggedInAt, payload)
	return nil
}

// PublishTwoFactorPending logs auth.login.twofactor_pending events.
func (p *StubPublisher) PublishTwoFactorPending(_ context.Context, event domain.TwoFactorPendingEvent) error {
	payload := map[string]any{
		"identity_id":     event.IdentityID,
		"email":           logger.MaskEmail(event.Email),
		"code_expires_at": event.CodeExpiresAt,
		"requested_at":    event.RequestedAt,
	}
	p.logEvent("auth.login.twofactor_pending", event.IdentityID, event.RequestedAt, payload)
	return nil
}

// PublishTokenRefreshed logs auth.token.refreshed events.
func (p *StubPublisher) PublishTokenRefreshed(_ context.Context, event domain.TokenRefreshedEvent) error {
	payload := map[string]any{
		"identity_id":  event.IdentityID,
		"email":        logger.MaskEmail(event.Email),
		"refreshed_at": event.RefreshedAt,
	}
	p.logEvent("auth.token.refreshed", event.IdentityID, event.RefreshedAt, payload)
	return nil
}

var _ port.EventPublisher = (*StubPublisher)(nil)
