package tui

import (
	"os"
	"strings"

	"github.com/charmbracelet/glamour"
	"golang.org/x/term"
)

// NewRenderer returns a function that renders markdown using glamour.
func NewRenderer() func(string) (string, error) {
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(), // Light or dark by terminal background
	)
	if err != nil {
		return func(markdown string) (string, error) { return markdown, nil }
	}

	return func(markdown string) (string, error) {
		return r.Render(markdown)
	}
}

// CodeBlock wraps source in a fenced markdown block tagged with lang.
func CodeBlock(lang, source string) string {
	fence := "```"
	for strings.Contains(source, fence) {
		fence += "`"
	}
	return fence + lang + "\n" + strings.TrimRight(source, "\n") + "\n" + fence + "\n"
}

// IsTerminal reports whether f is attached to a terminal.
func IsTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

// Highlight renders source as a highlighted code block when f is a terminal
// and returns it unchanged otherwise.
func Highlight(f *os.File, lang, source string) string {
	if !IsTerminal(f) {
		return source
	}
	out, err := NewRenderer()(CodeBlock(lang, source))
	if err != nil {
		return source
	}
	return out
}
