package password

import (
	"strings"
	"unicode"
)

// Strength is the result of scoring a candidate password.
type Strength struct {
	Score    int // 0..5
	IsStrong bool
	Feedback []string
}

// commonSubstrings are dictionary fragments that show up in the vast
// majority of breached-password corpora.
var commonSubstrings = []string{
	"password", "passwort", "qwerty", "letmein", "welcome",
	"admin", "login", "abc123", "123456", "iloveyou", "monkey",
	"dragon", "student", "campus",
}

// ValidateStrength scores a password on length, character-class coverage,
// and structural weaknesses (sequential runs, repeats, dictionary
// fragments). IsStrong requires a score of at least 4 and 8+ characters.
func ValidateStrength(password string) Strength {
	var s Strength

	if len(password) >= 8 {
		s.Score++
	} else {
		s.Feedback = append(s.Feedback, "use at least 8 characters")
	}
	if len(password) >= 12 {
		s.Score++
	} else {
		s.Feedback = append(s.Feedback, "12 or more characters is recommended")
	}

	var hasUpper, hasLower, hasDigit, hasSpecial bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsDigit(r):
			hasDigit = true
		default:
			hasSpecial = true
		}
	}

	if hasUpper && hasLower {
		s.Score++
	} else {
		s.Feedback = append(s.Feedback, "mix upper and lower case letters")
	}
	if hasDigit {
		s.Score++
	} else {
		s.Feedback = append(s.Feedback, "add a digit")
	}
	if hasSpecial {
		s.Score++
	} else {
		s.Feedback = append(s.Feedback, "add a special character")
	}

	if hasSequentialRun(password, 3) {
		s.Score--
		s.Feedback = append(s.Feedback, "avoid sequential characters")
	}
	if hasRepeatedRun(password, 3) {
		s.Score--
		s.Feedback = append(s.Feedback, "avoid repeated characters")
	}
	if containsCommonSubstring(password) {
		s.Score--
		s.Feedback = append(s.Feedback, "avoid common words")
	}

	if s.Score < 0 {
		s.Score = 0
	}
	if s.Score > 5 {
		s.Score = 5
	}
	s.IsStrong = s.Score >= 4 && len(password) >= 8

	return s
}

// hasSequentialRun reports whether password contains n consecutive
// characters each exactly one code point above the previous ("abc", "123"),
// in either direction.
func hasSequentialRun(password string, n int) bool {
	runes := []rune(strings.ToLower(password))
	if len(runes) < n {
		return false
	}

	asc, desc := 1, 1
	for i := 1; i < len(runes); i++ {
		if runes[i] == runes[i-1]+1 {
			asc++
			desc = 1
		} else if runes[i] == runes[i-1]-1 {
			desc++
			asc = 1
		} else {
			asc, desc = 1, 1
		}
		if asc >= n || desc >= n {
			return true
		}
	}
	return false
}

func hasRepeatedRun(password string, n int) bool {
	runes := []rune(password)
	run := 1
	for i := 1; i < len(runes); i++ {
		if runes[i] == runes[i-1] {
			run++
			if run >= n {
				return true
			}
		} else {
			run = 1
		}
	}
	return false
}

func containsCommonSubstring(password string) bool {
	lowered := strings.ToLower(password)
	for _, word := range commonSubstrings {
		if strings.Contains(lowered, word) {
			return true
		}
	}
	return false
}
