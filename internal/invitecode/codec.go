// Package invitecode generates and checks family invite codes.
//
// Codes look like "ABCD-EFGH-JKLM": twelve symbols from a 32-character
// alphabet with the visually ambiguous 0, 1, I and O removed.
package invitecode

import (
	"crypto/rand"
	"math/big"
	"regexp"
	"strings"
	"time"
)

// Alphabet holds the symbols a code may contain
const Alphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// DefaultExpiryDays is the window used when a caller does not choose one
const DefaultExpiryDays = 7

const (
	groupCount = 3
	groupSize  = 4
)

var formatRegexp = regexp.MustCompile(`^[` + Alphabet + `]{4}-[` + Alphabet + `]{4}-[` + Alphabet + `]{4}$`)

// Generate returns a new random code in canonical form
func Generate() (string, error) {
	alphabetLen := big.NewInt(int64(len(Alphabet)))

	var b strings.Builder
	b.Grow(groupCount*groupSize + groupCount - 1)
	for g := 0; g < groupCount; g++ {
		if g > 0 {
			b.WriteByte('-')
		}
		for i := 0; i < groupSize; i++ {
			num, err := rand.Int(rand.Reader, alphabetLen)
			if err != nil {
				return "", err
			}
			b.WriteByte(Alphabet[num.Int64()])
		}
	}
	return b.String(), nil
}

// Normalize trims surrounding whitespace and upper-cases the code
func Normalize(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// IsValidFormat reports whether code matches the canonical pattern, ignoring case.
// Surrounding whitespace is not accepted; callers normalize first.
func IsValidFormat(code string) bool {
	return formatRegexp.MatchString(strings.ToUpper(code))
}

// CalculateExpiry returns now plus the given number of calendar days
func CalculateExpiry(days int) time.Time {
	return CalculateExpiryFrom(time.Now(), days)
}

// CalculateExpiryFrom adds calendar days to from, keeping the wall-clock time
// across DST changes in from's location.
func CalculateExpiryFrom(from time.Time, days int) time.Time {
	return from.AddDate(0, 0, days)
}

// IsExpired reports whether the current time is strictly after expiresAt
func IsExpired(expiresAt time.Time) bool {
	return IsExpiredAt(expiresAt, time.Now())
}

// IsExpiredAt is IsExpired evaluated at now. A code expiring exactly at now is still valid.
func IsExpiredAt(expiresAt, now time.Time) bool {
	return now.After(expiresAt)
}
