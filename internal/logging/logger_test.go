package logging

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{" warn ", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{"verbose", slog.LevelInfo},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ParseLevel(tt.in), tt.in)
	}
}

func TestReplaceErrorKey(t *testing.T) {
	opts := handlerOptions(slog.LevelInfo)
	got := opts.ReplaceAttr(nil, slog.String("error", "boom"))
	assert.Equal(t, "err", got.Key)

	untouched := opts.ReplaceAttr(nil, slog.String("path", "/x"))
	assert.Equal(t, "path", untouched.Key)
}
