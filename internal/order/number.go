package order

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"time"
)

const (
	orderNumberPrefix   = "ECO"
	orderNumberSuffix   = 5
	orderNumberAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
)

// NumberGenerator returns a human-facing order number for an order placed at now.
type NumberGenerator func(now time.Time) (string, error)

// NewOrderNumber builds ECO-<unix millis>-<5 chars of [A-Z0-9]>.
func NewOrderNumber(now time.Time) (string, error) {
	base := big.NewInt(int64(len(orderNumberAlphabet)))
	suffix := make([]byte, orderNumberSuffix)
	for i := range suffix {
		n, err := rand.Int(rand.Reader, base)
		if err != nil {
			return "", fmt.Errorf("failed to read random suffix: %w", err)
		}
		suffix[i] = orderNumberAlphabet[n.Int64()]
	}
	return fmt.Sprintf("%s-%d-%s", orderNumberPrefix, now.UnixMilli(), suffix), nil
}
