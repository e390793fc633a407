// internal/quiz/codes_test.go
package quiz

import (
	"strings"
	"testing"
)

func TestRandomCodeShape(t *testing.T) {
	for i := 0; i < 1000; i++ {
		code := randomCode()
		if len(code) != codeLength {
			t.Fatalf("expected %d chars, got %q", codeLength, code)
		}
		for _, c := range code {
			if !strings.ContainsRune(codeAlphabet, c) {
				t.Fatalf("code %q contains %q outside the alphabet", code, c)
			}
		}
	}
}

func TestCodeAlphabetOmitsAmbiguousGlyphs(t *testing.T) {
	for _, c := range "0O1Il" {
		if strings.ContainsRune(codeAlphabet, c) {
			t.Fatalf("alphabet must not contain %q", c)
		}
	}
}
