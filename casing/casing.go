// Package casing converts identifiers between naming conventions.
//
// Wire field and variant names are derived from declared identifiers by
// applying the casing configured on the owning struct or enum, unless an
// explicit rename overrides it.
package casing

import (
	"strings"
	"unicode"
)

// Casing is a target naming convention.
type Casing int

const (
	// Original leaves the identifier untouched.
	Original Casing = iota
	Camel
	Pascal
	Snake
	ScreamingSnake
	Kebab
)

func (c Casing) String() string {
	switch c {
	case Camel:
		return "camelCase"
	case Pascal:
		return "PascalCase"
	case Snake:
		return "snake_case"
	case ScreamingSnake:
		return "SCREAMING_SNAKE_CASE"
	case Kebab:
		return "kebab-case"
	default:
		return "original"
	}
}

// Convert rewrites identifier into the target convention. It is total over
// any input: malformed identifiers degrade to a best-effort single-word
// conversion rather than failing.
func Convert(identifier string, target Casing) string {
	if identifier == "" || target == Original {
		return identifier
	}

	words := split(identifier)
	if len(words) == 0 {
		return identifier
	}

	switch target {
	case Camel:
		var b strings.Builder
		for i, w := range words {
			if i == 0 {
				b.WriteString(strings.ToLower(w))
			} else {
				b.WriteString(capitalize(w))
			}
		}
		return b.String()
	case Pascal:
		var b strings.Builder
		for _, w := range words {
			b.WriteString(capitalize(w))
		}
		return b.String()
	case Snake:
		return joinLower(words, '_')
	case ScreamingSnake:
		return strings.ToUpper(joinLower(words, '_'))
	case Kebab:
		return joinLower(words, '-')
	default:
		return identifier
	}
}

// split breaks an identifier into words on delimiters (`_`, `-`, spaces),
// lower-to-upper case transitions, acronym ends (HTTPServer -> HTTP Server)
// and letter-to-digit boundaries. Letters following digits stay attached,
// so "point3d" splits as "point", "3d".
func split(s string) []string {
	var words []string
	var cur []rune

	flush := func() {
		if len(cur) > 0 {
			words = append(words, string(cur))
			cur = cur[:0]
		}
	}

	runes := []rune(s)
	for i, r := range runes {
		switch {
		case r == '_' || r == '-' || unicode.IsSpace(r):
			flush()
		case unicode.IsUpper(r):
			prev := rune(0)
			if i > 0 {
				prev = runes[i-1]
			}
			next := rune(0)
			if i+1 < len(runes) {
				next = runes[i+1]
			}
			// Word boundary before an uppercase rune when the previous rune
			// is lowercase or a digit, or when this rune ends an acronym run
			// (next rune is lowercase).
			if unicode.IsLower(prev) || unicode.IsDigit(prev) || (unicode.IsUpper(prev) && unicode.IsLower(next)) {
				flush()
			}
			cur = append(cur, r)
		case unicode.IsDigit(r):
			if i > 0 && unicode.IsLetter(runes[i-1]) {
				flush()
			}
			cur = append(cur, r)
		default:
			cur = append(cur, r)
		}
	}
	flush()

	return words
}

func capitalize(w string) string {
	if w == "" {
		return w
	}
	runes := []rune(strings.ToLower(w))
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}

func joinLower(words []string, sep rune) string {
	var b strings.Builder
	for i, w := range words {
		if i > 0 {
			b.WriteRune(sep)
		}
		b.WriteString(strings.ToLower(w))
	}
	return b.String()
}
