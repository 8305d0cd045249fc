package service

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
)

const (
	shortcodeLength      = 8
	shortcodeAlphabet    = "abcdefghijklmnopqrstuvwxyz0123456789"
	maxShortcodeAttempts = 16
)

// GenerateShortcode produces a unique lowercase shortcode for a course. The
// existence check is a capability passed by the caller, and the retry loop
// is bounded: with 36^8 candidates a collision streak this long means the
// check itself is broken.
func GenerateShortcode(ctx context.Context, exists func(ctx context.Context, shortcode string) (bool, error)) (string, error) {
	for attempt := 0; attempt < maxShortcodeAttempts; attempt++ {
		candidate, err := randomShortcode()
		if err != nil {
			return "", err
		}

		taken, err := exists(ctx, candidate)
		if err != nil {
			return "", err
		}
		if !taken {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("no free shortcode after %d attempts", maxShortcodeAttempts)
}

func randomShortcode() (string, error) {
	max := big.NewInt(int64(len(shortcodeAlphabet)))
	code := make([]byte, shortcodeLength)
	for i := range code {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		code[i] = shortcodeAlphabet[n.Int64()]
	}
	return string(code), nil
}
