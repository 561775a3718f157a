package port

import "context"

// Notifier delivers codes and links over an out-of-band channel (e.g. email).
// Callers treat delivery as best-effort: a returned error is logged and
// discarded, never escalated past the triggering operation.
type Notifier interface {
	SendTwoFactorCode(ctx context.Context, email, code string) error
	SendVerificationLink(ctx context.Context, email, link string) error
}
