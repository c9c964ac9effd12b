package tui

import (
	"fmt"
	"io"

	"github.com/muesli/termenv"
)

// PrintBanner writes the agent2000 banner to w, coloured when the terminal supports it.
func PrintBanner(w io.Writer) {
	out := termenv.NewOutput(w)
	p := out.EnvColorProfile()
	// Teal to blue
	lines := []struct {
		text  string
		color string
	}{
		{"                          _   ____   ___   ___   ___ ", "#2dd4bf"},
		{"   __ _  __ _  ___ _ __ | |_|___ \\ / _ \\ / _ \\ / _ \\", "#22d3ee"},
		{"  / _` |/ _` |/ _ \\ '_ \\| __| __) | | | | | | | | | |", "#38bdf8"},
		{" | (_| | (_| |  __/ | | | |_ / __/| |_| | |_| | |_| |", "#60a5fa"},
		{"  \\__,_|\\__, |\\___|_| |_|\\__|_____|\\___/ \\___/ \\___/", "#818cf8"},
		{"        |___/", "#a78bfa"},
	}

	fmt.Fprintln(w)
	for _, l := range lines {
		fmt.Fprintln(w, termenv.String(l.text).Foreground(p.Color(l.color)))
	}
	fmt.Fprintln(w)
}
