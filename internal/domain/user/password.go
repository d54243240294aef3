package user

import (
	"crypto/rand"
	"math/big"

	"github.com/go-faster/errors"
)

// DefaultPasswordLength is the length of generated account passwords.
const DefaultPasswordLength = 12

const passwordAlphabet = "abcdefghijklmnopqrstuvwxyz" +
	"ABCDEFGHIJKLMNOPQRSTUVWXYZ" +
	"0123456789" +
	"!@#$%^&*()"

// GeneratePassword returns a random password of the given length drawn
// uniformly from letters, digits and common special characters.
func GeneratePassword(length int) (string, error) {
	if length <= 0 {
		return "", errors.Errorf("invalid password length %d", length)
	}

	limit := big.NewInt(int64(len(passwordAlphabet)))
	buf := make([]byte, length)
	for i := range buf {
		n, err := rand.Int(rand.Reader, limit)
		if err != nil {
			return "", errors.Wrap(err, "read random")
		}
		buf[i] = passwordAlphabet[n.Int64()]
	}
	return string(buf), nil
}
