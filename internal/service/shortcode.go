package service

import (
	"math/rand/v2"
	"time"
)

const shortCodeAlphabet = "0123456789abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"

// GeneratedShortCodeLength is 6 random characters plus one time-derived character
const GeneratedShortCodeLength = 7

// generateShortCode draws six characters uniformly from the alphabet and
// appends the character at now (epoch millis) mod 62.
// The result is not checked against held records.
func generateShortCode(now time.Time) string {
	code := make([]byte, GeneratedShortCodeLength)
	for i := 0; i < GeneratedShortCodeLength-1; i++ {
		code[i] = shortCodeAlphabet[rand.IntN(len(shortCodeAlphabet))]
	}

	n := int64(len(shortCodeAlphabet))
	code[GeneratedShortCodeLength-1] = shortCodeAlphabet[((now.UnixMilli()%n)+n)%n]

	return string(code)
}
