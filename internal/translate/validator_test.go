package translate

import (
	"errors"
	"strings"
	"testing"
)

func TestLengthValidator(t *testing.T) {
	v := &LengthValidator{MinChars: 10, MinRatio: 0.1}
	source := strings.Repeat("source text ", 20)

	cases := []struct {
		name       string
		translated string
		wantErr    bool
	}{
		{"acceptable", strings.Repeat("translated ", 10), false},
		{"empty", "", true},
		{"whitespace only", "   \n\t  ", true},
		{"below min chars", "short", true},
		{"below ratio", "ten chars!", true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := v.Validate(source, tc.translated)
			if tc.wantErr {
				var cerr *ContentError
				if !errors.As(err, &cerr) {
					t.Fatalf("expected ContentError, got %v", err)
				}
			} else if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestLengthValidatorRatioDisabled(t *testing.T) {
	v := &LengthValidator{MinChars: 1}
	if err := v.Validate(strings.Repeat("x", 10000), "y"); err != nil {
		t.Errorf("ratio check should be disabled: %v", err)
	}
}

func TestLengthValidatorCountsRunes(t *testing.T) {
	v := &LengthValidator{MinChars: 3}
	// Three runes, more than three bytes.
	if err := v.Validate("source", "日本語"); err != nil {
		t.Errorf("multi-byte output should count by rune: %v", err)
	}
}
