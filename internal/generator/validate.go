package generator

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Validator decides whether generated text is acceptable. Text passes when it
// contains at least one rune from the configured scripts, or when it is longer
// than MinLength runes regardless of script.
//
// The length fallback reproduces a historically permissive acceptance path;
// set MinLength to 0 to require a script match.
type Validator struct {
	Scripts   []*unicode.RangeTable
	MinLength int
}

func DefaultValidator() Validator {
	return Validator{
		Scripts:   []*unicode.RangeTable{unicode.Cyrillic},
		MinLength: 10,
	}
}

func (v Validator) IsValid(text string) bool {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return false
	}
	for _, r := range trimmed {
		for _, tab := range v.Scripts {
			if unicode.Is(tab, r) {
				return true
			}
		}
	}
	if v.MinLength > 0 && utf8.RuneCountInString(trimmed) > v.MinLength {
		return true
	}
	return false
}
