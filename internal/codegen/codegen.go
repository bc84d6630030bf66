// Package codegen produces the six-digit pickup codes handed to clients at
// check-in.
package codegen

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

// Length is the number of digits in a pickup code.
const Length = 6

var upper = big.NewInt(1_000_000)

// Generator returns a fresh pickup code.
type Generator interface {
	NextCode() (string, error)
}

// Random draws codes uniformly from 000000-999999 using crypto/rand.
type Random struct{}

// NextCode returns a zero-padded six-digit code.
func (Random) NextCode() (string, error) {
	n, err := rand.Int(rand.Reader, upper)
	if err != nil {
		return "", fmt.Errorf("generating code: %w", err)
	}
	return fmt.Sprintf("%0*d", Length, n.Int64()), nil
}

// Func adapts a plain function to Generator.
type Func func() (string, error)

// NextCode calls f.
func (f Func) NextCode() (string, error) { return f() }

// Valid reports whether s has the shape of a pickup code.
func Valid(s string) bool {
	if len(s) != Length {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
