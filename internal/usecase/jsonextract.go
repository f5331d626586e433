package usecase

import (
	"strings"

	"github.com/tidwall/gjson"
)

// ExtractJSONObject finds the first balanced JSON object embedded in text.
// Each '{' is tried in turn; braces and brackets inside string literals
// (escapes included) do not count towards depth.
func ExtractJSONObject(text string) (string, bool) {
	for start := strings.IndexByte(text, '{'); start >= 0; {
		if span := balancedSpan(text[start:]); span != "" {
			if gjson.Valid(span) && gjson.Parse(span).IsObject() {
				return span, true
			}
		}
		next := strings.IndexByte(text[start+1:], '{')
		if next < 0 {
			break
		}
		start += next + 1
	}
	return "", false
}

// balancedSpan returns the prefix of s (which starts with '{') up to the
// bracket that closes it, or "" when it never closes
func balancedSpan(s string) string {
	depth := 0
	inString := false
	escaped := false

	for i, c := range s {
		if escaped {
			escaped = false
			continue
		}

		if c == '\\' && inString {
			escaped = true
			continue
		}

		if c == '"' {
			inString = !inString
			continue
		}

		if inString {
			continue
		}

		switch c {
		case '{', '[':
			depth++
		case '}', ']':
			depth--
			if depth == 0 {
				return s[:i+1]
			}
			if depth < 0 {
				return ""
			}
		}
	}

	return ""
}
