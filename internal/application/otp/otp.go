// Package otp generates and checks the short numeric codes sent to contacts.
package otp

import (
	"crypto/rand"
	"crypto/subtle"
	"fmt"
	"math/big"
	"time"

	"github.com/atelier-api/internal/domain"
)

const (
	// Alphabet excludes zero.
	Alphabet = "123456789"
	Length   = 5
	TTL      = 5 * time.Minute
)

// Generator produces codes and their expiry against a clock.
type Generator struct {
	ttl time.Duration
	now func() time.Time
}

// NewGenerator returns a Generator with the given TTL. A zero ttl means TTL;
// a nil now means time.Now.
func NewGenerator(ttl time.Duration, now func() time.Time) *Generator {
	if ttl <= 0 {
		ttl = TTL
	}
	if now == nil {
		now = time.Now
	}
	return &Generator{ttl: ttl, now: now}
}

// Generate returns a fresh code and the instant after which it is rejected.
func (g *Generator) Generate() (string, time.Time, error) {
	code, err := randomCode(Length)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("generate otp: %w", err)
	}
	return code, g.now().UTC().Add(g.ttl), nil
}

// Check accepts submitted iff it equals stored and now is not past expiresAt.
// Mismatch and expiry are reported identically.
func Check(stored string, expiresAt time.Time, submitted string, now time.Time) error {
	match := subtle.ConstantTimeCompare([]byte(stored), []byte(submitted)) == 1
	if !match || now.After(expiresAt) {
		return domain.ErrInvalidOrExpiredCode
	}
	return nil
}

func randomCode(n int) (string, error) {
	max := big.NewInt(int64(len(Alphabet)))
	b := make([]byte, n)
	for i := range b {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		b[i] = Alphabet[idx.Int64()]
	}
	return string(b), nil
}
