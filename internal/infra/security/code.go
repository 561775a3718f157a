package security

import (
	"crypto/rand"
	"fmt"
)

const twoFactorAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// TwoFactorCodeLength is the number of characters in a second-factor code.
const TwoFactorCodeLength = 6

// GenerateTwoFactorCode returns a random code drawn uniformly from uppercase
// letters and digits. Rejection sampling keeps the distribution unbiased.
func GenerateTwoFactorCode() (string, error) {
	return generateCode(TwoFactorCodeLength)
}

func generateCode(length int) (string, error) {
	if length <= 0 {
		return "", fmt.Errorf("length must be positive")
	}

	// Largest multiple of len(alphabet) below 256; bytes at or above it are
	// resampled to avoid modulo bias.
	limit := byte(256 - (256 % len(twoFactorAlphabet)))

	code := make([]byte, length)
	buf := make([]byte, length)
	filled := 0
	for filled < length {
		if _, err := rand.Read(buf); err != nil {
			return "", fmt.Errorf("generate code: %w", err)
		}
		for _, b := range buf {
			if b >= limit {
				continue
			}
			code[filled] = twoFactorAlphabet[int(b)%len(twoFactorAlphabet)]
			filled++
			if filled == length {
				break
			}
		}
	}

	return string(code), nil
}
