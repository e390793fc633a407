// internal/quiz/codes.go
package quiz

import "math/rand/v2"

// codeAlphabet deliberately omits 0/O, 1/I and similar glyphs since players
// read codes off someone else's screen.
const (
	codeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	codeLength   = 6
)

// randomCode returns one candidate lobby code. Uniqueness is enforced by the
// caller, which retries under the store lock until the candidate is unused.
func randomCode() string {
	b := make([]byte, codeLength)
	for i := range b {
		b[i] = codeAlphabet[rand.IntN(len(codeAlphabet))]
	}
	return string(b)
}
