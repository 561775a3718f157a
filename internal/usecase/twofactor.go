package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/avolkov/identity-auth/internal/core/domain"
	"github.com/avolkov/identity-auth/internal/core/port"
	"github.com/avolkov/identity-auth/internal/infra/security"
	"github.com/avolkov/identity-auth/internal/repository"
)

const defaultTwoFactorCodeTTL = 5 * time.Minute

var (
	// ErrCodeNotFound indicates no live second-factor code exists for the identity.
	ErrCodeNotFound = errors.New("no second-factor code found")
	// ErrCodeMismatch indicates the submitted code does not match the stored one.
	ErrCodeMismatch = errors.New("second-factor code mismatch")
	// ErrCodeExpired indicates the stored code exists but its window has passed.
	ErrCodeExpired = errors.New("second-factor code expired")
)

// TwoFactorService manages the single live second-factor code per identity.
type TwoFactorService struct {
	codes port.TwoFactorCodeStore
	ttl   time.Duration
	now   func() time.Time
}

// NewTwoFactorService constructs a code manager; a non-positive TTL falls back
// to the default window.
func NewTwoFactorService(codes port.TwoFactorCodeStore, ttl time.Duration) *TwoFactorService {
	if ttl <= 0 {
		ttl = defaultTwoFactorCodeTTL
	}
	return &TwoFactorService{codes: codes, ttl: ttl, now: time.Now}
}

// WithClock overrides the internal clock, used in tests.
func (s *TwoFactorService) WithClock(clock func() time.Time) *TwoFactorService {
	if clock != nil {
		s.now = clock
	}
	return s
}

// IssueCode mints a fresh code for the identity, retiring any prior one, and
// returns the plaintext for delivery.
func (s *TwoFactorService) IssueCode(ctx context.Context, identityID string) (*domain.TwoFactorCode, error) {
	if identityID == "" {
		return nil, fmt.Errorf("identity id is required")
	}

	code, err := security.GenerateTwoFactorCode()
	if err != nil {
		return nil, fmt.Errorf("generate second-factor code: %w", err)
	}

	record, err := s.codes.Replace(ctx, identityID, code, s.ttl)
	if err != nil {
		return nil, fmt.Errorf("store second-factor code: %w", err)
	}

	return record, nil
}

// VerifyCode checks the submitted code against the stored record. The check is
// read-only: the record stays in place until it expires or a new login
// replaces it, so callers must treat a verified code as consumed by moving to
// terminal token issuance.
func (s *TwoFactorService) VerifyCode(ctx context.Context, identityID, submitted string) error {
	record, err := s.codes.Get(ctx, identityID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrCodeNotFound
		}
		return fmt.Errorf("load second-factor code: %w", err)
	}

	// Exact, case-sensitive match.
	if record.Code != submitted {
		return ErrCodeMismatch
	}

	if record.Expired(s.now().UTC()) {
		return ErrCodeExpired
	}

	return nil
}
