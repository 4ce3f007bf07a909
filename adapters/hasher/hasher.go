// Package hasher provides admin token hashing implementations.
package hasher

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"github.com/applelectricals/microjpeg/ports"
)

// Bcrypt hashes admin tokens with bcrypt.
type Bcrypt struct {
	cost int
}

// NewBcrypt returns a hasher with cost, or bcrypt.DefaultCost when cost is
// out of range. Tests use bcrypt.MinCost.
func NewBcrypt(cost int) *Bcrypt {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &Bcrypt{cost: cost}
}

func (h *Bcrypt) Hash(plaintext string) ([]byte, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(plaintext), h.cost)
	if err != nil {
		return nil, fmt.Errorf("bcrypt: %w", err)
	}
	return hash, nil
}

func (h *Bcrypt) Compare(hash []byte, plaintext string) bool {
	return bcrypt.CompareHashAndPassword(hash, []byte(plaintext)) == nil
}

// MatchAny returns the index of the first configured admin token hash
// that plaintext matches, or -1. Every hash is compared so the response
// time does not reveal which token matched.
func MatchAny(h ports.Hasher, hashes [][]byte, plaintext string) int {
	match := -1
	if plaintext == "" {
		return match
	}
	for i, hash := range hashes {
		if h.Compare(hash, plaintext) && match < 0 {
			match = i
		}
	}
	return match
}

var _ ports.Hasher = (*Bcrypt)(nil)

// Fake stores tokens in the clear. Tests only.
type Fake struct{}

func (Fake) Hash(plaintext string) ([]byte, error) {
	return []byte(plaintext), nil
}

func (Fake) Compare(hash []byte, plaintext string) bool {
	return string(hash) == plaintext
}

var _ ports.Hasher = Fake{}
