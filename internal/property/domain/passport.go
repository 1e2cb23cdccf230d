package domain

import (
	"math/rand"
	"strconv"
	"strings"
	"unicode"
)

const (
	passportMin = 10000
	passportMax = 100000
)

// PassportID renders SS-ZZZZZ-NNNNN from a state, a zip and a number in
// [10000, 100000). Empty parts are dropped; short parts are not padded.
func PassportID(state, zip string, n int) string {
	if letters := []rune(strings.ToUpper(strings.TrimSpace(state))); len(letters) > 2 {
		state = string(letters[:2])
	} else {
		state = string(letters)
	}

	digits := strings.Map(func(r rune) rune {
		if unicode.IsDigit(r) && r < unicode.MaxASCII {
			return r
		}
		return -1
	}, zip)
	if len(digits) > 5 {
		digits = digits[:5]
	}

	parts := make([]string, 0, 3)
	for _, part := range []string{state, digits, strconv.Itoa(n)} {
		if part != "" {
			parts = append(parts, part)
		}
	}
	return strings.Join(parts, "-")
}

// PassportNumber draws the random suffix. Collisions are not detected.
type PassportNumber func() int

func RandomPassportNumber() int {
	return passportMin + rand.Intn(passportMax-passportMin)
}
