package id

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"regexp"
)

// Account numbers look like "ACC483920": the fixed prefix plus 6 digits.
const (
	numberPrefix = "ACC"
	numberDigits = 6
)

var numberPattern = regexp.MustCompile(`^ACC[0-9]{6}$`)

// NewAccountNumber generates a random externally-visible account number.
// Uniqueness is enforced by the account store, not here.
func NewAccountNumber() (string, error) {
	// 100000..999999 so the number never has a leading zero.
	n, err := rand.Int(rand.Reader, big.NewInt(900000))
	if err != nil {
		return "", fmt.Errorf("generating account number: %w", err)
	}
	return fmt.Sprintf("%s%06d", numberPrefix, n.Int64()+100000), nil
}

// ValidAccountNumber reports whether s is a well-formed account number.
func ValidAccountNumber(s string) bool {
	return numberPattern.MatchString(s)
}
