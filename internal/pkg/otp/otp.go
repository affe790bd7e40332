package otp

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
)

// Generate returns a numeric one-time code of the given length,
// drawn from crypto/rand. Leading zeros are kept.
func Generate(length int) (string, error) {
	if length <= 0 {
		return "", fmt.Errorf("otp length must be positive, got %d", length)
	}
	var b strings.Builder
	for i := 0; i < length; i++ {
		n, err := rand.Int(rand.Reader, big.NewInt(10))
		if err != nil {
			return "", fmt.Errorf("generate otp: %w", err)
		}
		b.WriteByte(byte('0' + n.Int64()))
	}
	return b.String(), nil
}
