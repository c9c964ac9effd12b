// Package sanitize cleans untrusted text before it reaches the helpers.
package sanitize

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

var (
	// DefaultMaxInputSize is 64KB, enough for prompts and model output.
	DefaultMaxInputSize = 64 * 1024
	// EnvMaxInputSize is the environment variable to override the default.
	EnvMaxInputSize = "AGENT2000_MAX_INPUT_SIZE"
)

var (
	ErrInputTooLarge = errors.New("input exceeds maximum allowed size")
	ErrInvalidUTF8   = errors.New("input contains invalid UTF-8 sequences")
)

// Error describes rejected text. It wraps ErrInputTooLarge or ErrInvalidUTF8.
type Error struct {
	Err   error
	Size  int
	Limit int
	// Offset is the first byte that broke the rule: Limit for oversized
	// input, the bad sequence for invalid UTF-8.
	Offset int
}

func (e *Error) Error() string {
	if errors.Is(e.Err, ErrInvalidUTF8) {
		return fmt.Sprintf("%v at byte %d", e.Err, e.Offset)
	}
	return fmt.Sprintf("%v: size=%d limit=%d", e.Err, e.Size, e.Limit)
}

func (e *Error) Unwrap() error { return e.Err }

// Details is the error as a map, ready for an API error body.
func (e *Error) Details() map[string]any {
	return map[string]any{"size": e.Size, "limit": e.Limit, "offset": e.Offset}
}

// Result is accepted text plus what Clean did to it.
type Result struct {
	Text     string
	Size     int
	Limit    int
	Stripped int
}

// Clean accepts text of at most limit bytes (MaxInputSize when limit is not
// positive), rejects invalid UTF-8 and drops control characters other than
// newline, tab and carriage return. Oversized text is rejected, not cut, so
// token counts stay honest.
func Clean(text string, limit int) (Result, error) {
	if limit <= 0 {
		limit = MaxInputSize()
	}
	res := Result{Size: len(text), Limit: limit}
	if len(text) > limit {
		return res, &Error{Err: ErrInputTooLarge, Size: len(text), Limit: limit, Offset: limit}
	}

	var b *strings.Builder
	for i := 0; i < len(text); {
		r, n := utf8.DecodeRuneInString(text[i:])
		switch {
		case r == utf8.RuneError && n == 1:
			return res, &Error{Err: ErrInvalidUTF8, Size: len(text), Limit: limit, Offset: i}
		case unicode.IsControl(r) && r != '\n' && r != '\t' && r != '\r':
			if b == nil {
				b = &strings.Builder{}
				b.Grow(len(text))
				b.WriteString(text[:i])
			}
			res.Stripped++
		case b != nil:
			b.WriteString(text[i : i+n])
		}
		i += n
	}
	res.Text = text
	if b != nil {
		res.Text = b.String()
	}
	return res, nil
}

// Input is Clean under the configured limit, returning only the text.
func Input(text string) (string, error) {
	res, err := Clean(text, 0)
	return res.Text, err
}

// MaxInputSize returns the active limit, honouring EnvMaxInputSize.
func MaxInputSize() int {
	if val := os.Getenv(EnvMaxInputSize); val != "" {
		if size, err := strconv.Atoi(val); err == nil && size > 0 {
			return size
		}
	}
	return DefaultMaxInputSize
}
