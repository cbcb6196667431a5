package recovery

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

// ExcerptLen is the number of characters kept from each end of a failed response.
const ExcerptLen = 500

var (
	// ErrMalformedResponse means no recovery strategy produced valid JSON.
	ErrMalformedResponse = errors.New("malformed model response")
	// ErrInvalidStructuredResult means the JSON parsed but lacks required SWOT keys.
	ErrInvalidStructuredResult = errors.New("invalid structured result")

	errEmptyResponse = errors.New("response is empty")
)

// MalformedResponseError carries diagnostics for a response that could not be parsed.
type MalformedResponseError struct {
	Head   string // First ExcerptLen characters of the sanitized text
	Tail   string // Last ExcerptLen characters, empty when the text is short
	Offset int64  // Byte offset of the original parse error
	Line   int
	Column int
	Err    error // Parse error from the direct-parse strategy
}

func newMalformed(text string, cause error) *MalformedResponseError {
	e := &MalformedResponseError{Err: cause}
	e.Head, e.Tail = excerpt(text)

	var syntaxErr *json.SyntaxError
	switch {
	case errors.As(cause, &syntaxErr):
		e.Offset = syntaxErr.Offset
	case cause != nil && cause != errEmptyResponse:
		e.Offset = int64(len(text))
	}
	e.Line, e.Column = position(text, e.Offset)
	return e
}

func (e *MalformedResponseError) Error() string {
	return fmt.Sprintf("malformed model response at line %d, column %d (offset %d): %v", e.Line, e.Column, e.Offset, e.Err)
}

func (e *MalformedResponseError) Unwrap() error { return e.Err }

func (e *MalformedResponseError) Is(target error) bool { return target == ErrMalformedResponse }

// Excerpt returns the head and tail of the offending text for display.
func (e *MalformedResponseError) Excerpt() string {
	if e.Tail == "" {
		return e.Head
	}
	return e.Head + " ... " + e.Tail
}

// InvalidStructuredResultError lists the required keys a parsed document lacked.
type InvalidStructuredResultError struct {
	Missing []string
	Reason  string
	Head    string
}

func (e *InvalidStructuredResultError) Error() string {
	if len(e.Missing) > 0 {
		return fmt.Sprintf("invalid structured result: missing %s", strings.Join(e.Missing, ", "))
	}
	return "invalid structured result: " + e.Reason
}

func (e *InvalidStructuredResultError) Is(target error) bool {
	return target == ErrInvalidStructuredResult
}

// Excerpt returns the beginning of the parsed text.
func (e *InvalidStructuredResultError) Excerpt() string { return e.Head }

// excerpt returns up to ExcerptLen runes from each end of s. The tail is empty
// when the head already covers the whole text.
func excerpt(s string) (head, tail string) {
	if utf8.RuneCountInString(s) <= ExcerptLen {
		return s, ""
	}
	runes := []rune(s)
	head = string(runes[:ExcerptLen])
	if len(runes) > 2*ExcerptLen {
		tail = string(runes[len(runes)-ExcerptLen:])
	} else {
		tail = string(runes[ExcerptLen:])
	}
	return head, tail
}

// position converts a byte offset into a 1-based line and column.
func position(s string, offset int64) (line, col int) {
	if offset > int64(len(s)) {
		offset = int64(len(s))
	}
	line, col = 1, 1
	for _, r := range s[:offset] {
		if r == '\n' {
			line++
			col = 1
			continue
		}
		col++
	}
	return line, col
}
