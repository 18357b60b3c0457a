// Package shortcode generates random fixed-length short codes.
package shortcode

import (
	"crypto/rand"
)

const (
	// Alphabet is the set of characters a code is drawn from.
	Alphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"
	// Length is the number of characters in a generated code.
	Length = 7
)

// largest multiple of len(Alphabet) that fits in a byte
const maxUnbiased = 256 - 256%len(Alphabet)

// Generator produces short codes. Implementations must be safe for concurrent use.
type Generator interface {
	Generate() string
}

// Random draws codes uniformly from Alphabet using crypto/rand.
type Random struct {
	length int
}

// NewRandom creates a generator producing codes of Length characters.
func NewRandom() *Random {
	return &Random{length: Length}
}

// Generate returns a new code. Bytes at or above maxUnbiased are discarded
// so every character is equally likely.
func (g *Random) Generate() string {
	out := make([]byte, 0, g.length)
	buf := make([]byte, g.length*2)
	for len(out) < g.length {
		if _, err := rand.Read(buf); err != nil {
			panic("crypto/rand failed: " + err.Error())
		}
		for _, b := range buf {
			if int(b) >= maxUnbiased {
				continue
			}
			out = append(out, Alphabet[int(b)%len(Alphabet)])
			if len(out) == g.length {
				break
			}
		}
	}
	return string(out)
}
