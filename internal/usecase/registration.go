package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	uuid "github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/avolkov/identity-auth/internal/core/domain"
	"github.com/avolkov/identity-auth/internal/core/port"
	"github.com/avolkov/identity-auth/internal/infra/config"
	"github.com/avolkov/identity-auth/internal/infra/logger"
	"github.com/avolkov/identity-auth/internal/infra/security"
	"github.com/avolkov/identity-auth/internal/repository"
)

var (
	// ErrEmailAlreadyRegistered indicates the email is already bound to an identity.
	ErrEmailAlreadyRegistered = errors.New("email already registered")
	// ErrVerifyTokenInvalid indicates the verification token failed validation
	// or lacks the required email claim.
	ErrVerifyTokenInvalid = errors.New("verification token invalid")
)

// VerificationResult reports the outcome of an email verification attempt.
type VerificationResult struct {
	Email           string
	AlreadyVerified bool
}

// RegistrationService handles new identity onboarding and email verification.
type RegistrationService struct {
	cfg        *config.AppConfig
	identities port.IdentityRepository
	hasher     *security.PasswordHasher
	issuer     *security.TokenIssuer
	notifier   port.Notifier
	events     port.EventPublisher
	log        *zap.Logger
}

// NewRegistrationService constructs a registration service.
func NewRegistrationService(
	cfg *config.AppConfig,
	identities port.IdentityRepository,
	hasher *security.PasswordHasher,
	issuer *security.TokenIssuer,
	notifier port.Notifier,
	events port.EventPublisher,
	log *zap.Logger,
) *RegistrationService {
	if log == nil {
		log = zap.NewNop()
	}
	return &RegistrationService{
		cfg:        cfg,
		identities: identities,
		hasher:     hasher,
		issuer:     issuer,
		notifier:   notifier,
		events:     events,
		log:        log,
	}
}

// Register creates the identity and its profile as one unit, then kicks off
// verification delivery when verification is mandatory. Delivery failure never
// fails the registration; the identity is already persisted.
func (s *RegistrationService) Register(ctx context.Context, email, password, name string) (*domain.Identity, error) {
	email = strings.TrimSpace(email)
	name = strings.TrimSpace(name)
	if email == "" {
		return nil, fmt.Errorf("email is required")
	}
	if password == "" {
		return nil, fmt.Errorf("password is required")
	}
	if name == "" {
		return nil, fmt.Errorf("name is required")
	}

	passwordHash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	now := time.Now().UTC()
	identity := domain.Identity{
		ID:               uuid.NewString(),
		Email:            email,
		PasswordHash:     passwordHash,
		Verified:         false,
		RequireTwoFactor: s.cfg.TwoFactor.DefaultEnabled,
		CreatedAt:        now,
	}
	profile := domain.Profile{
		IdentityID: identity.ID,
		Name:       name,
		CreatedAt:  now,
	}

	if err := s.identities.CreateWithProfile(ctx, identity, profile); err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) {
			return nil, ErrEmailAlreadyRegistered
		}
		return nil, fmt.Errorf("create identity: %w", err)
	}

	if s.cfg.Verification.RequireVerified {
		s.sendVerificationLink(ctx, identity)
	}

	if s.events != nil {
		event := domain.IdentityRegisteredEvent{
			EventID:              uuid.NewString(),
			IdentityID:           identity.ID,
			Email:                identity.Email,
			RequiresVerification: s.cfg.Verification.RequireVerified,
			RegisteredAt:         now,
		}
		if err := s.events.PublishIdentityRegistered(ctx, event); err != nil {
			s.log.Warn("publish identity registered event failed", zap.Error(err))
		}
	}

	return &identity, nil
}

func (s *RegistrationService) sendVerificationLink(ctx context.Context, identity domain.Identity) {
	token, err := s.issuer.Issue(domain.TokenKindEmailVerify, identity.ID, identity.Email)
	if err != nil {
		s.log.Warn("issue verification token failed",
			zap.String("email", logger.MaskEmail(identity.Email)),
			zap.Error(err),
		)
		return
	}

	link := fmt.Sprintf("%s/api/v1/auth/verify-email?token=%s", strings.TrimRight(s.cfg.Verification.BaseURL, "/"), token)
	if err := s.notifier.SendVerificationLink(ctx, identity.Email, link); err != nil {
		s.log.Warn("verification link delivery failed",
			zap.String("email", logger.MaskEmail(identity.Email)),
			zap.Error(err),
		)
	}
}

// VerifyEmail flips the verified flag behind a valid email-verify token.
// Verifying an already-verified identity succeeds idempotently.
func (s *RegistrationService) VerifyEmail(ctx context.Context, tokenString string) (VerificationResult, error) {
	claims, err := s.issuer.Validate(tokenString, domain.TokenKindEmailVerify)
	if err != nil {
		return VerificationResult{}, ErrVerifyTokenInvalid
	}
	if claims.Email == "" {
		return VerificationResult{}, ErrVerifyTokenInvalid
	}

	identity, err := s.identities.GetByEmail(ctx, claims.Email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return VerificationResult{}, ErrIdentityNotFound
		}
		return VerificationResult{}, fmt.Errorf("lookup identity: %w", err)
	}

	if identity.Verified {
		return VerificationResult{Email: identity.Email, AlreadyVerified: true}, nil
	}

	if err := s.identities.SetVerified(ctx, identity.ID, true); err != nil {
		return VerificationResult{}, fmt.Errorf("set verified: %w", err)
	}

	if s.events != nil {
		event := domain.EmailVerifiedEvent{
			EventID:    uuid.NewString(),
			IdentityID: identity.ID,
			Email:      identity.Email,
			VerifiedAt: time.Now().UTC(),
		}
		if err := s.events.PublishEmailVerified(ctx, event); err != nil {
			s.log.Warn("publish email verified event failed", zap.Error(err))
		}
	}

	return VerificationResult{Email: identity.Email}, nil
}
