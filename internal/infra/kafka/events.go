package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/avolkov/identity-auth/internal/core/domain"
	"github.com/avolkov/identity-auth/internal/core/port"
	"github.com/avolkov/identity-auth/internal/infra/config"
	"github.com/avolkov/identity-auth/internal/infra/logger"
)

const schemaVersion = "1.0"

// EventPublisher implements port.EventPublisher using Kafka.
type EventPublisher struct {
	producer *Producer
	logger   *zap.Logger
	appCfg   config.AppSettings
}

// NewEventPublisher constructs a Kafka-backed event publisher.
func NewEventPublisher(producer *Producer, appCfg config.AppSettings, log *zap.Logger) *EventPublisher {
	return &EventPublisher{producer: producer, appCfg: appCfg, logger: log}
}

type eventEnvelope struct {
	EventID    string            `json:"event_id"`
	EventType  string            `json:"event_type"`
	IdentityID string            `json:"identity_id,omitempty"`
	Timestamp  time.Time         `json:"timestamp"`
	Version    string            `json:"version"`
	Payload    any               `json:"payload"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

func (p *EventPublisher) publish(ctx context.Context, eventID, eventType, identityID string, ts time.Time, payload any) error {
	if ts.IsZero() {
		ts = time.Now().UTC()
	}

	id := eventID
	if id == "" {
		id = uuid.NewString()
	}

	envelope := eventEnvelope{
		EventID:    id,
		EventType:  eventType,
		IdentityID: identityID,
		Timestamp:  ts.UTC(),
		Version:    schemaVersion,
		Payload:    payload,
		Metadata: map[string]string{
			"service":     p.appCfg.Name,
			"environment": p.appCfg.Env,
		},
	}

	bytes, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("marshal event envelope: %w", err)
	}

	message := &sarama.ProducerMessage{
		Topic: p.producer.TopicName(eventType),
		Key:   sarama.StringEncoder(identityID),
		Value: sarama.ByteEncoder(bytes),
	}

	select {
	case p.producer.Producer().Input() <- message:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// PublishIdentityRegistered publishes auth.identity.registered events.
func (p *EventPublisher) PublishIdentityRegistered(ctx context.Context, event domain.IdentityRegisteredEvent) error {
	payload := struct {
		IdentityID           string    `json:"identity_id"`
		Email                string    `json:"email"`
		RequiresVerification bool      `json:"requires_verification"`
		RegisteredAt         time.Time `json:"registered_at"`
	}{
		IdentityID:           event.IdentityID,
		Email:                logger.MaskEmail(event.Email),
		RequiresVerification: event.RequiresVerification,
		RegisteredAt:         event.RegisteredAt.UTC(),
	}

	return p.publish(ctx, event.EventID, "auth.identity.registered", event.IdentityID, event.RegisteredAt, payload)
}

// PublishEmailVerified publishes auth.identity.email_verified events.
func (p *EventPublisher) PublishEmailVerified(ctx context.Context, event domain.EmailVerifiedEvent) error {
	payload := struct {
		IdentityID string    `json:"identity_id"`
		Email      string    `json:"email"`
		VerifiedAt time.Time `json:"verified_at"`
	}{
		IdentityID: event.IdentityID,
		Email:      logger.MaskEmail(event.Email),
		VerifiedAt: event.VerifiedAt.UTC(),
	}

	return p.publish(ctx, event.EventID, "auth.identity.email_verified", event.IdentityID, event.VerifiedAt, payload)
}

// PublishLoginSucceeded publishes auth.login.succeeded events.
func (p *EventPublisher) PublishLoginSucceeded(ctx context.Context, event domain.LoginSucceededEvent) error {
	payload := struct {
		IdentityID string    `json:"identity_id"`
		Email      string    `json:"email"`
		TwoFactor  bool      `json:"two_factor"`
		LoggedInAt time.Time `json:"logged_in_at"`
	}{
		IdentityID: event.IdentityID,
		Email:      logger.MaskEmail(event.Email),
		TwoFactor:  event.TwoFactor,
		LoggedInAt: event.LoggedInAt.UTC(),
	}

	return p.publish(ctx, event.EventID, "auth.login.succeeded", event.IdentityID, event.LoggedInAt, payload)
}

// PublishTwoFactorPending publishes auth.login.twofactor_pending events.
func (p *EventPublisher) PublishTwoFactorPending(ctx context.Context, event domain.TwoFactorPendingEvent) error {
	payload := struct {
		IdentityID    string    `json:"identity_id"`
		Email         string    `json:"email"`
		CodeExpiresAt time.Time `json:"code_expires_at"`
		RequestedAt   time.Time `json:"requested_at"`
	}{
		IdentityID:    event.IdentityID,
		Email:         logger.MaskEmail(event.Email),
		CodeExpiresAt: event.CodeExpiresAt.UTC(),
		RequestedAt:   event.RequestedAt.UTC(),
	}

	return p.publish(ctx, event.EventID, "auth.login.twofactor_pending", event.IdentityID, event.RequestedAt, payload)
}

// PublishTokenRefreshed publishes auth.token.refreshed events.
func (p *EventPublisher) PublishTokenRefreshed(ctx context.Context, event domain.TokenRefreshedEvent) error {
	payload := struct {
		IdentityID  string    `json:"identity_id"`
		Email       string    `json:"email"`
		RefreshedAt time.Time `json:"refreshed_at"`
	}{
		IdentityID:  event.IdentityID,
		Email:       logger.MaskEmail(event.Email),
		RefreshedAt: event.RefreshedAt.UTC(),
	}

	return p.publish(ctx, event.EventID, "auth.token.refreshed", event.IdentityID, event.RefreshedAt, payload)
}

var _ port.EventPublisher = (*EventPublisher)(nil)
