package recovery

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"
)

var (
	leadingFence  = regexp.MustCompile("^```[A-Za-z0-9_+-]*[ \t]*\r?\n?")
	trailingFence = regexp.MustCompile("\r?\n?```[ \t]*$")
)

// Sanitize prepares raw model text for parsing. It removes markdown code
// fences, blanks out control characters other than tab, LF and CR, and turns
// literal \n, \t, \r sequences that sit outside JSON strings back into real
// whitespace. It never fails.
func Sanitize(raw string) string {
	text := stripFences(raw)
	text = stripControl(text)
	return unescapeLiterals(text)
}

func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		s = leadingFence.ReplaceAllString(s, "")
	}
	if strings.HasSuffix(s, "```") {
		s = trailingFence.ReplaceAllString(s, "")
	}
	return strings.TrimSpace(s)
}

func stripControl(s string) string {
	return strings.Map(func(r rune) rune {
		if r == '\t' || r == '\n' || r == '\r' {
			return r
		}
		if unicode.IsControl(r) {
			return ' '
		}
		return r
	}, s)
}

// literalEscapes returns the byte offsets of \n, \t and \r sequences found
// outside JSON string literals.
func literalEscapes(s string) []int {
	var positions []int
	inString := false
	escaped := false
	for i := 0; i < len(s); i++ {
		ch := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}
		switch ch {
		case '"':
			inString = true
		case '\\':
			if i+1 < len(s) && (s[i+1] == 'n' || s[i+1] == 't' || s[i+1] == 'r') {
				positions = append(positions, i)
				i++
			}
		}
	}
	return positions
}

func unescapeLiterals(s string) string {
	positions := literalEscapes(s)
	if len(positions) == 0 {
		return s
	}

	// Whole-document escaping (quotes written as \") decodes as one Go string.
	if decoded, err := strconv.Unquote(`"` + s + `"`); err == nil {
		return decoded
	}

	var b strings.Builder
	b.Grow(len(s))
	last := 0
	for _, pos := range positions {
		b.WriteString(s[last:pos])
		switch s[pos+1] {
		case 'n':
			b.WriteByte('\n')
		case 't':
			b.WriteByte('\t')
		case 'r':
			b.WriteByte('\r')
		}
		last = pos + 2
	}
	b.WriteString(s[last:])
	return b.String()
}
