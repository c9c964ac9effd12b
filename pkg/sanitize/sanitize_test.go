package sanitize

import (
	"errors"
	"strings"
	"testing"
)

func TestInput_SizeLimit(t *testing.T) {
	t.Setenv(EnvMaxInputSize, "16")

	tests := []struct {
		name      string
		inputSize int
		wantErr   bool
	}{
		{"Under Limit", 15, false},
		{"Exact Limit", 16, false},
		{"Over Limit", 17, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Input(strings.Repeat("a", tt.inputSize))
			if tt.wantErr {
				if !errors.Is(err, ErrInputTooLarge) {
					t.Errorf("Input() expected ErrInputTooLarge for size %d, got %v", tt.inputSize, err)
				}
			} else if err != nil {
				t.Errorf("Input() unexpected error: %v", err)
			}
		})
	}
}

func TestInput_ControlChars(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"Normal Text", "Hello World", "Hello World"},
		{"Safe Controls", "Line1\nLine2\tTabbed\r", "Line1\nLine2\tTabbed\r"},
		{"ANSI Code", "\x1b[31mRed\x1b[0m", "[31mRed[0m"},
		{"Null Byte", "Null\x00Byte", "NullByte"},
		{"Bell", "Ding\x07", "Ding"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Input(tt.input)
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if got != tt.expected {
				t.Errorf("Expected %q, got %q", tt.expected, got)
			}
		})
	}
}

func TestInput_InvalidUTF8(t *testing.T) {
	if _, err := Input("bad\xff"); !errors.Is(err, ErrInvalidUTF8) {
		t.Errorf("expected ErrInvalidUTF8, got %v", err)
	}
}

func TestMaxInputSize(t *testing.T) {
	t.Setenv(EnvMaxInputSize, "not-a-number")
	if got := MaxInputSize(); got != DefaultMaxInputSize {
		t.Errorf("expected default, got %d", got)
	}
	t.Setenv(EnvMaxInputSize, "100")
	if got := MaxInputSize(); got != 100 {
		t.Errorf("expected 100, got %d", got)
	}
}

func TestClean(t *testing.T) {
	_, err := Clean("abcdef", 5)
	var rej *Error
	if !errors.As(err, &rej) || !errors.Is(err, ErrInputTooLarge) {
		t.Fatalf("expected *Error wrapping ErrInputTooLarge, got %v", err)
	}
	if rej.Size != 6 || rej.Limit != 5 || rej.Offset != 5 {
		t.Errorf("unexpected details %+v", rej.Details())
	}

	res, err := Clean("ab\x1bc\x00", 5)
	if err != nil || res.Text != "abc" || res.Stripped != 2 || res.Size != 5 {
		t.Fatalf("got %+v, %v; want text %q with 2 stripped", res, err, "abc")
	}

	res, err = Clean("plenty of room", 0)
	if err != nil || res.Text != "plenty of room" || res.Limit != DefaultMaxInputSize {
		t.Fatalf("zero limit should fall back to the default, got %+v, %v", res, err)
	}

	res, err = Clean("héllo \uFFFD ok", 0)
	if err != nil || res.Stripped != 0 || res.Text != "héllo \uFFFD ok" {
		t.Fatalf("valid multi-byte text must pass unchanged, got %+v, %v", res, err)
	}

	_, err = Clean("héllo\xff", 0)
	if !errors.As(err, &rej) || !errors.Is(err, ErrInvalidUTF8) || rej.Offset != 6 {
		t.Fatalf("expected invalid UTF-8 at byte 6, got %v", err)
	}
}
