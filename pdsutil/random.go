package pdsutil

import (
	"crypto/rand"
	"fmt"
	"io"
)

const (
	tokenAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
	TokenLength   = 32

	// largest multiple of len(tokenAlphabet) that fits in a byte; bytes at or above it
	// are discarded so every character is equally likely
	rejectAbove = 256 - 256%len(tokenAlphabet)
)

// RandomSource supplies random bytes. Tokens may be used as invite codes or session
// identifiers, so production code must use a cryptographically secure source.
type RandomSource = io.Reader

// SecureRandom is the default source, backed by crypto/rand. Safe for concurrent use.
var SecureRandom RandomSource = rand.Reader

// RandomToken returns a TokenLength-character alphanumeric string drawn from src.
func RandomToken(src RandomSource) (string, error) {
	out := make([]byte, 0, TokenLength)
	buf := make([]byte, TokenLength*2)
	for len(out) < TokenLength {
		if _, err := io.ReadFull(src, buf); err != nil {
			return "", fmt.Errorf("reading random bytes: %w", err)
		}
		for _, b := range buf {
			if int(b) >= rejectAbove {
				continue
			}
			out = append(out, tokenAlphabet[int(b)%len(tokenAlphabet)])
			if len(out) == TokenLength {
				break
			}
		}
	}
	return string(out), nil
}
