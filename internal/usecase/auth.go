package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	uuid "github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/avolkov/identity-auth/internal/core/domain"
	"github.com/avolkov/identity-auth/internal/core/port"
	"github.com/avolkov/identity-auth/internal/infra/logger"
	"github.com/avolkov/identity-auth/internal/infra/security"
	"github.com/avolkov/identity-auth/internal/repository"
)

var (
	// ErrIdentityNotFound indicates no identity exists for the supplied email.
	ErrIdentityNotFound = errors.New("identity not found")
	// ErrInvalidPassword indicates the password does not match the stored hash.
	ErrInvalidPassword = errors.New("invalid password")
	// ErrEmailNotVerified indicates login is blocked until the email is verified.
	ErrEmailNotVerified = errors.New("email not verified")
	// ErrPartialTokenInvalid indicates the partial token failed validation for any reason.
	ErrPartialTokenInvalid = errors.New("partial token invalid")
	// ErrRefreshTokenInvalid indicates the refresh token failed validation for any reason.
	ErrRefreshTokenInvalid = errors.New("refresh token invalid")
)

// LoginResult is the terminal outcome of a login step. Either the second
// factor is still pending and only PartialToken is set, or the flow is
// complete and both AccessToken and RefreshToken are set.
type LoginResult struct {
	RequiresTwoFactor bool
	PartialToken      string
	AccessToken       string
	RefreshToken      string
}

// AuthService sequences password verification, the optional second factor,
// and terminal token issuance.
type AuthService struct {
	identities      port.IdentityRepository
	hasher          *security.PasswordHasher
	issuer          *security.TokenIssuer
	twoFactor       *TwoFactorService
	notifier        port.Notifier
	events          port.EventPublisher
	log             *zap.Logger
	requireVerified bool
}

// NewAuthService constructs an AuthService instance.
func NewAuthService(
	identities port.IdentityRepository,
	hasher *security.PasswordHasher,
	issuer *security.TokenIssuer,
	twoFactor *TwoFactorService,
	notifier port.Notifier,
	events port.EventPublisher,
	log *zap.Logger,
	requireVerified bool,
) *AuthService {
	if log == nil {
		log = zap.NewNop()
	}
	return &AuthService{
		identities:      identities,
		hasher:          hasher,
		issuer:          issuer,
		twoFactor:       twoFactor,
		notifier:        notifier,
		events:          events,
		log:             log,
		requireVerified: requireVerified,
	}
}

// Login verifies the password and either completes the flow with access and
// refresh tokens or parks it behind a partial token plus a delivered
// second-factor code.
func (s *AuthService) Login(ctx context.Context, email, password string) (LoginResult, error) {
	if email == "" {
		return LoginResult{}, fmt.Errorf("email is required")
	}
	if password == "" {
		return LoginResult{}, fmt.Errorf("password is required")
	}

	identity, err := s.identities.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return LoginResult{}, ErrIdentityNotFound
		}
		return LoginResult{}, fmt.Errorf("lookup identity: %w", err)
	}

	if !s.hasher.Verify(identity.PasswordHash, password) {
		return LoginResult{}, ErrInvalidPassword
	}

	if s.requireVerified && !identity.Verified {
		return LoginResult{}, ErrEmailNotVerified
	}

	if identity.RequireTwoFactor {
		return s.beginSecondFactor(ctx, identity)
	}

	result, err := s.grantTokens(identity.ID, identity.Email)
	if err != nil {
		return LoginResult{}, err
	}

	s.publishLoginSucceeded(ctx, identity, false)

	return result, nil
}

// beginSecondFactor parks the login behind a partial token and delivers a
// fresh code. The code is persisted before delivery is attempted, so a
// delivery failure leaves a resendable code rather than failing the login.
func (s *AuthService) beginSecondFactor(ctx context.Context, identity *domain.Identity) (LoginResult, error) {
	partial, err := s.issuer.Issue(domain.TokenKindPartial, identity.ID, identity.Email)
	if err != nil {
		return LoginResult{}, fmt.Errorf("issue partial token: %w", err)
	}

	record, err := s.twoFactor.IssueCode(ctx, identity.ID)
	if err != nil {
		return LoginResult{}, err
	}

	if err := s.notifier.SendTwoFactorCode(ctx, identity.Email, record.Code); err != nil {
		s.log.Warn("second-factor code delivery failed",
			zap.String("email", logger.MaskEmail(identity.Email)),
			zap.Error(err),
		)
	}

	if s.events != nil {
		event := domain.TwoFactorPendingEvent{
			EventID:       uuid.NewString(),
			IdentityID:    identity.ID,
			Email:         identity.Email,
			CodeExpiresAt: record.ExpiresAt,
			RequestedAt:   time.Now().UTC(),
		}
		if err := s.events.PublishTwoFactorPending(ctx, event); err != nil {
			s.log.Warn("publish two-factor pending event failed", zap.Error(err))
		}
	}

	return LoginResult{RequiresTwoFactor: true, PartialToken: partial}, nil
}

// ConfirmSecondFactor exchanges a partial token plus a valid code for the
// terminal access and refresh tokens.
func (s *AuthService) ConfirmSecondFactor(ctx context.Context, partialToken, submittedCode string) (LoginResult, error) {
	claims, err := s.issuer.Validate(partialToken, domain.TokenKindPartial)
	if err != nil {
		// Expired, malformed, or wrong kind all collapse to one failure so the
		// caller cannot probe which it was.
		return LoginResult{}, ErrPartialTokenInvalid
	}

	// The identity may have been removed between the password step and this
	// one; tokens are minted from the stored row, never from token claims.
	identity, err := s.identities.GetByID(ctx, claims.IdentityID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return LoginResult{}, ErrIdentityNotFound
		}
		return LoginResult{}, fmt.Errorf("lookup identity: %w", err)
	}

	if err := s.twoFactor.VerifyCode(ctx, identity.ID, submittedCode); err != nil {
		return LoginResult{}, err
	}

	result, err := s.grantTokens(identity.ID, identity.Email)
	if err != nil {
		return LoginResult{}, err
	}

	s.publishLoginSucceeded(ctx, identity, true)

	return result, nil
}

// Refresh exchanges a valid refresh token for a fresh access token.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (string, error) {
	claims, err := s.issuer.Validate(refreshToken, domain.TokenKindRefresh)
	if err != nil {
		return "", ErrRefreshTokenInvalid
	}

	access, err := s.issuer.RefreshToAccess(refreshToken)
	if err != nil {
		return "", ErrRefreshTokenInvalid
	}

	if s.events != nil {
		event := domain.TokenRefreshedEvent{
			EventID:     uuid.NewString(),
			IdentityID:  claims.IdentityID,
			Email:       claims.Email,
			RefreshedAt: time.Now().UTC(),
		}
		if err := s.events.PublishTokenRefreshed(ctx, event); err != nil {
			s.log.Warn("publish token refreshed event failed", zap.Error(err))
		}
	}

	return access, nil
}

// GetProfile resolves the identity and profile behind an authenticated request.
func (s *AuthService) GetProfile(ctx context.Context, identityID string) (*domain.Identity, *domain.Profile, error) {
	identity, err := s.identities.GetByID(ctx, identityID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil, ErrIdentityNotFound
		}
		return nil, nil, fmt.Errorf("lookup identity: %w", err)
	}

	profile, err := s.identities.GetProfile(ctx, identityID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil, ErrIdentityNotFound
		}
		return nil, nil, fmt.Errorf("lookup profile: %w", err)
	}

	return identity, profile, nil
}

func (s *AuthService) grantTokens(identityID, email string) (LoginResult, error) {
	access, err := s.issuer.Issue(domain.TokenKindAccess, identityID, email)
	if err != nil {
		return LoginResult{}, fmt.Errorf("issue access token: %w", err)
	}

	refresh, err := s.issuer.Issue(domain.TokenKindRefresh, identityID, email)
	if err != nil {
		return LoginResult{}, fmt.Errorf("issue refresh token: %w", err)
	}

	return LoginResult{AccessToken: access, RefreshToken: refresh}, nil
}

func (s *AuthService) publishLoginSucceeded(ctx context.Context, identity *domain.Identity, twoFactor bool) {
	if s.events == nil {
		return
	}

	event := domain.LoginSucceededEvent{
		EventID:    uuid.NewString(),
		IdentityID: identity.ID,
		Email:      identity.Email,
		TwoFactor:  twoFactor,
		LoggedInAt: time.Now().UTC(),
	}
	if err := s.events.PublishLoginSucceeded(ctx, event); err != nil {
		s.log.Warn("publish login succeeded event failed", zap.Error(err))
	}
}
