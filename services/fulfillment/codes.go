package fulfillment

import (
	"crypto/rand"
	"math/big"
)

const secretCodeLength = 15

// GenerateSecretCode mints a 15-digit numeric surrogate code. The
// first digit is never zero so the code survives round-trips through
// systems that parse it as a number.
func GenerateSecretCode() (string, error) {
	digits := make([]byte, secretCodeLength)

	first, err := rand.Int(rand.Reader, big.NewInt(9))
	if err != nil {
		return "", err
	}
	digits[0] = byte('1' + first.Int64())

	for i := 1; i < secretCodeLength; i++ {
		n, err := rand.Int(rand.Reader, big.NewInt(10))
		if err != nil {
			return "", err
		}
		digits[i] = byte('0' + n.Int64())
	}

	return string(digits), nil
}
