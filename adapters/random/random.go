// Package random generates admin tokens.
package random

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sync"
)

// TokenPrefix marks generated admin tokens so they are easy to spot in
// shell history and secret scanners.
const TokenPrefix = "mjadm_"

// Real draws tokens from crypto/rand.
type Real struct{}

// Token returns TokenPrefix followed by n random bytes in hex.
func (Real) Token(n int) (string, error) {
	if n <= 0 {
		return "", fmt.Errorf("token length must be positive, got %d", n)
	}
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("read random bytes: %w", err)
	}
	return TokenPrefix + hex.EncodeToString(b), nil
}

// Fake returns predictable tokens for tests.
type Fake struct {
	mu      sync.Mutex
	counter int
}

// Token returns TokenPrefix followed by n bytes derived from a counter.
func (f *Fake) Token(n int) (string, error) {
	if n <= 0 {
		return "", fmt.Errorf("token length must be positive, got %d", n)
	}
	f.mu.Lock()
	f.counter++
	c := f.counter
	f.mu.Unlock()

	b := make([]byte, n)
	for i := range b {
		b[i] = byte((c + i) % 256)
	}
	return TokenPrefix + hex.EncodeToString(b), nil
}
