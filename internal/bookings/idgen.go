package bookings

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
)

const defaultIDAttempts = 5

// Identifier is the human-readable id pair shown to customers and staff.
type Identifier struct {
	BookingID   string
	BookingCode string
}

// IDGenerator hands out BID-/BCODE- identifiers with a bounded number of retries.
type IDGenerator struct {
	maxAttempts int
	digits      func() (string, error)
}

// NewIDGenerator returns a generator that gives up after maxAttempts collisions.
func NewIDGenerator(maxAttempts int) *IDGenerator {
	if maxAttempts <= 0 {
		maxAttempts = defaultIDAttempts
	}
	return &IDGenerator{maxAttempts: maxAttempts, digits: randomSixDigits}
}

// WithDigits overrides the random source (tests).
func (g *IDGenerator) WithDigits(fn func() (string, error)) *IDGenerator {
	if fn != nil {
		g.digits = fn
	}
	return g
}

// Generate calls try with fresh identifiers until it succeeds. try returns ErrDuplicateID
// to request another identifier; any other error stops immediately.
func (g *IDGenerator) Generate(ctx context.Context, try func(context.Context, Identifier) error) (Identifier, error) {
	for attempt := 1; attempt <= g.maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return Identifier{}, err
		}
		digits, err := g.digits()
		if err != nil {
			return Identifier{}, fmt.Errorf("bookings: generate id: %w", err)
		}
		id := Identifier{BookingID: "BID-" + digits, BookingCode: "BCODE-" + digits}
		err = try(ctx, id)
		if err == nil {
			return id, nil
		}
		if !errors.Is(err, ErrDuplicateID) {
			return Identifier{}, err
		}
	}
	return Identifier{}, fmt.Errorf("%w after %d attempts", ErrIDExhausted, g.maxAttempts)
}

var sixDigitSpan = big.NewInt(900000)

func randomSixDigits() (string, error) {
	n, err := rand.Int(rand.Reader, sixDigitSpan)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()+100000), nil
}
