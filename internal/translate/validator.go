package translate

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// ContentError marks a translation rejected by content validation. Content
// failures are retryable but recorded separately from transport failures.
type ContentError struct {
	Reason string
}

func (e *ContentError) Error() string {
	return fmt.Sprintf("content validation failed: %s", e.Reason)
}

// Validator judges whether a translation is acceptable output for its
// source text. Implementations return a *ContentError on rejection.
type Validator interface {
	Validate(source, translated string) error
}

// LengthValidator rejects empty and suspiciously short output. Thresholds
// are configuration, not constants: what counts as degenerate depends on
// language pair and model.
type LengthValidator struct {
	// MinChars is the minimum acceptable translated length in runes.
	MinChars int

	// MinRatio is the minimum translated/source rune-count ratio. Zero
	// disables the ratio check.
	MinRatio float64
}

// DefaultValidator returns the validator used when none is configured.
func DefaultValidator() *LengthValidator {
	return &LengthValidator{MinChars: 1, MinRatio: 0.05}
}

// Validate implements Validator.
func (v *LengthValidator) Validate(source, translated string) error {
	trimmed := strings.TrimSpace(translated)
	if trimmed == "" {
		return &ContentError{Reason: "empty output"}
	}

	got := utf8.RuneCountInString(trimmed)
	if v.MinChars > 0 && got < v.MinChars {
		return &ContentError{Reason: fmt.Sprintf("output length %d below minimum %d", got, v.MinChars)}
	}

	if v.MinRatio > 0 {
		src := utf8.RuneCountInString(strings.TrimSpace(source))
		if src > 0 && float64(got) < v.MinRatio*float64(src) {
			return &ContentError{
				Reason: fmt.Sprintf("output length %d below %.0f%% of source length %d", got, v.MinRatio*100, src),
			}
		}
	}
	return nil
}

var _ Validator = (*LengthValidator)(nil)
