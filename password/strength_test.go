package password

import "testing"

func TestValidateStrength(t *testing.T) {
	cases := []struct {
		password string
		score    int
		strong   bool
	}{
		{"", 0, false},
		{"short", 0, false},
		{"password", 0, false},            // length only, minus common word
		{"xkvqwmzu", 1, false},            // 8 chars, lowercase only
		{"Xk9#qwmu", 4, true},             // 8 chars, all classes
		{"Xk9#qwmzuLpT", 5, true},         // 12+, all classes
		{"Aa1!Aa1!Aa1!", 5, true},         // all classes, no runs of 3
		{"abcXk9#qwmzu", 4, true},         // sequential run costs one
		{"aaaXk9#qwmzu", 4, true},         // repeated run costs one
		{"Password123!", 3, false},        // common word + sequential digits
		{"CampusKit2024!x", 4, true},      // contains "campus"
		{"G7#pLq9@wX2m", 5, true},
	}

	for _, tc := range cases {
		got := ValidateStrength(tc.password)
		if got.Score != tc.score {
			t.Errorf("ValidateStrength(%q).Score = %d, want %d (feedback: %v)",
				tc.password, got.Score, tc.score, got.Feedback)
		}
		if got.IsStrong != tc.strong {
			t.Errorf("ValidateStrength(%q).IsStrong = %t, want %t",
				tc.password, got.IsStrong, tc.strong)
		}
	}
}

func TestStrengthFeedbackNamesMissingClasses(t *testing.T) {
	got := ValidateStrength("lowercaseonly")
	if len(got.Feedback) == 0 {
		t.Fatal("expected feedback for weak password")
	}
}

func TestSequentialRunDetection(t *testing.T) {
	if !hasSequentialRun("xxabcxx", 3) {
		t.Fatal("missed ascending run")
	}
	if !hasSequentialRun("xx321xx", 3) {
		t.Fatal("missed descending run")
	}
	if hasSequentialRun("aXbYcZ", 3) {
		t.Fatal("false positive on non-adjacent sequence")
	}
}
