package auth

import "unicode"

// Strength scores returned by PasswordStrength
const (
	StrengthTooWeak = iota
	StrengthWeak
	StrengthMedium
	StrengthStrong
)

var strengthLabels = [...]string{"Too weak", "Weak", "Medium", "Strong"}

type strengthLevel struct {
	score     int
	minLength int
	minKinds  int
}

// checked from strongest down
var strengthLevels = []strengthLevel{
	{score: StrengthStrong, minLength: 10, minKinds: 4},
	{score: StrengthMedium, minLength: 8, minKinds: 4},
	{score: StrengthWeak, minLength: 6, minKinds: 2},
}

// PasswordStrength scores a password from 0 (too weak) to 3 (strong) by
// length and by how many of lower case, upper case, digits and symbols it
// uses. The score is advisory and never blocks registration.
func PasswordStrength(password string) int {
	length := len([]rune(password))
	kinds := characterKinds(password)

	for _, lvl := range strengthLevels {
		if length >= lvl.minLength && kinds >= lvl.minKinds {
			return lvl.score
		}
	}
	return StrengthTooWeak
}

// StrengthLabel returns the display label for a score
func StrengthLabel(score int) string {
	if score < 0 || score >= len(strengthLabels) {
		return strengthLabels[StrengthTooWeak]
	}
	return strengthLabels[score]
}

func characterKinds(password string) int {
	var lower, upper, digit, symbol bool
	for _, r := range password {
		switch {
		case unicode.IsLower(r):
			lower = true
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsDigit(r):
			digit = true
		default:
			symbol = true
		}
	}

	n := 0
	for _, ok := range []bool{lower, upper, digit, symbol} {
		if ok {
			n++
		}
	}
	return n
}
