package password

import (
	"crypto/rand"
	"errors"
	"math/big"
)

const (
	upperChars   = "ABCDEFGHJKLMNPQRSTUVWXYZ"
	lowerChars   = "abcdefghijkmnopqrstuvwxyz"
	digitChars   = "23456789"
	specialChars = "!@#$%^&*-_=+?"
)

// GenerateSecure produces a random password of the requested length with at
// least one character from each class, shuffled so the guaranteed
// characters do not sit at predictable positions. length must be >= 8.
func GenerateSecure(length int) (string, error) {
	if length < 8 {
		return "", errors.New("generated password length must be >= 8")
	}

	allChars := upperChars + lowerChars + digitChars + specialChars

	out := make([]byte, 0, length)
	for _, class := range []string{upperChars, lowerChars, digitChars, specialChars} {
		c, err := randomChar(class)
		if err != nil {
			return "", err
		}
		out = append(out, c)
	}
	for len(out) < length {
		c, err := randomChar(allChars)
		if err != nil {
			return "", err
		}
		out = append(out, c)
	}

	// Fisher-Yates with crypto/rand indices.
	for i := len(out) - 1; i > 0; i-- {
		j, err := randomIndex(i + 1)
		if err != nil {
			return "", err
		}
		out[i], out[j] = out[j], out[i]
	}

	return string(out), nil
}

func randomChar(class string) (byte, error) {
	i, err := randomIndex(len(class))
	if err != nil {
		return 0, err
	}
	return class[i], nil
}

func randomIndex(n int) (int, error) {
	v, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		return 0, err
	}
	return int(v.Int64()), nil
}
