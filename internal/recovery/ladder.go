package recovery

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"strings"
)

// Step identifies a recovery strategy.
type Step int

const (
	StepNone Step = iota
	StepDirect
	StepExtractObject
	StepTrailingCommas
	StepBalance
)

func (s Step) String() string {
	switch s {
	case StepDirect:
		return "direct"
	case StepExtractObject:
		return "extract_object"
	case StepTrailingCommas:
		return "trailing_commas"
	case StepBalance:
		return "balance"
	}
	return "none"
}

// Strategy is one rung of the ladder: a pure transform of the sanitized text.
type Strategy struct {
	Step      Step
	Transform func(string) string
}

// DefaultStrategies returns the rungs in the order they are attempted. Every
// transform receives the full sanitized text. Bracket balancing scans from the
// first '{' to the end, so a response cut short inside its last category keeps
// that category's key.
func DefaultStrategies() []Strategy {
	return []Strategy{
		{Step: StepDirect, Transform: func(s string) string { return s }},
		{Step: StepExtractObject, Transform: ExtractObject},
		{Step: StepTrailingCommas, Transform: func(s string) string {
			return RemoveTrailingCommas(ExtractObject(s))
		}},
		{Step: StepBalance, Transform: func(s string) string {
			return BalanceBrackets(RemoveTrailingCommas(FromFirstBrace(s)))
		}},
	}
}

// Recovered is a successfully parsed document and the rung that produced it.
type Recovered struct {
	Value any
	Step  Step
	Text  string
}

// Ladder turns sanitized model text into a parsed JSON document.
type Ladder struct {
	strategies []Strategy
}

// NewLadder creates a ladder with the default strategies.
func NewLadder() *Ladder {
	return &Ladder{strategies: DefaultStrategies()}
}

// NewLadderWith creates a ladder from custom strategies.
func NewLadderWith(strategies ...Strategy) *Ladder {
	return &Ladder{strategies: strategies}
}

// Recover tries each strategy in order and stops at the first that yields
// valid JSON. The input is expected to be sanitized already.
func (l *Ladder) Recover(text string) (Recovered, error) {
	if strings.TrimSpace(text) == "" {
		return Recovered{}, newMalformed(text, errEmptyResponse)
	}

	var firstErr error
	for _, strategy := range l.strategies {
		candidate := strategy.Transform(text)
		value, err := parseStrict(candidate)
		if err == nil {
			return Recovered{Value: value, Step: strategy.Step, Text: candidate}, nil
		}
		if firstErr == nil {
			firstErr = err
		}
	}

	return Recovered{}, newMalformed(text, firstErr)
}

// parseStrict decodes exactly one JSON value, keeping numbers verbatim.
func parseStrict(s string) (any, error) {
	dec := json.NewDecoder(strings.NewReader(s))
	dec.UseNumber()

	var value any
	if err := dec.Decode(&value); err != nil {
		return nil, err
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, &json.SyntaxError{Offset: dec.InputOffset()}
	}
	return value, nil
}

// ExtractObject keeps the text between the first '{' and the last '}'. When no
// '}' follows the first '{' the output was cut short and the tail is kept.
func ExtractObject(s string) string {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return s
	}
	end := strings.LastIndexByte(s, '}')
	if end < start {
		return s[start:]
	}
	return s[start : end+1]
}

// FromFirstBrace drops everything before the first '{'.
func FromFirstBrace(s string) string {
	if start := strings.IndexByte(s, '{'); start >= 0 {
		return s[start:]
	}
	return s
}

// RemoveTrailingCommas drops commas that directly precede '}' or ']',
// ignoring string contents.
func RemoveTrailingCommas(s string) string {
	var b bytes.Buffer
	b.Grow(len(s))

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
			b.WriteByte(ch)
			continue
		}
		if ch == '"' {
			inString = true
			b.WriteByte(ch)
			continue
		}
		if ch == ',' {
			j := i + 1
			for j < len(s) && isSpace(s[j]) {
				j++
			}
			if j < len(s) && (s[j] == '}' || s[j] == ']') {
				continue
			}
		}
		b.WriteByte(ch)
	}
	return b.String()
}

// BalanceBrackets keeps the longest balanced prefix of a JSON value and
// appends whatever closers are still open, innermost first. A string token
// left unfinished at the end is dropped along with any dangling separator.
func BalanceBrackets(s string) string {
	start := strings.IndexAny(s, "{[")
	if start < 0 {
		return s
	}
	s = s[start:]

	var stack []byte
	inString := false
	escaped := false
	stringStart := -1
	end := len(s)

scan:
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
			stringStart = i
		case '{', '[':
			stack = append(stack, ch)
		case '}', ']':
			if len(stack) == 0 || stack[len(stack)-1] != openerFor(ch) {
				end = i
				break scan
			}
			stack = stack[:len(stack)-1]
			if len(stack) == 0 {
				end = i + 1
				break scan
			}
		}
	}

	prefix := s[:end]
	if inString && end == len(s) {
		prefix = s[:stringStart]
	}
	if len(stack) == 0 {
		return prefix
	}

	prefix = trimDangling(prefix)

	var b strings.Builder
	b.Grow(len(prefix) + len(stack))
	b.WriteString(prefix)
	for i := len(stack) - 1; i >= 0; i-- {
		b.WriteByte(closerFor(stack[i]))
	}
	return b.String()
}

// trimDangling removes a trailing comma or an object key with no value.
func trimDangling(s string) string {
	for {
		s = strings.TrimRightFunc(s, func(r rune) bool { return r < 0x80 && isSpace(byte(r)) })
		switch {
		case strings.HasSuffix(s, ","):
			s = s[:len(s)-1]
		case strings.HasSuffix(s, ":"):
			s = strings.TrimRightFunc(s[:len(s)-1], func(r rune) bool { return r < 0x80 && isSpace(byte(r)) })
			if strings.HasSuffix(s, `"`) {
				if open := lastStringStart(s); open >= 0 {
					s = s[:open]
				}
			}
		default:
			return s
		}
	}
}

// lastStringStart finds the opening quote of the string literal that ends s.
func lastStringStart(s string) int {
	for i := len(s) - 2; i >= 0; i-- {
		if s[i] != '"' {
			continue
		}
		backslashes := 0
		for j := i - 1; j >= 0 && s[j] == '\\'; j-- {
			backslashes++
		}
		if backslashes%2 == 0 {
			return i
		}
	}
	return -1
}

func openerFor(ch byte) byte {
	if ch == '}' {
		return '{'
	}
	return '['
}

func closerFor(ch byte) byte {
	if ch == '{' {
		return '}'
	}
	return ']'
}

func isSpace(ch byte) bool {
	return ch == ' ' || ch == '\t' || ch == '\n' || ch == '\r'
}
