package extract

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJSON(t *testing.T) {
	t.Run("object in prose", func(t *testing.T) {
		v, ok := JSON(`Sure! Here is the tool call: {"tool": "search", "args": {"q": "go"}} Hope it helps.`)
		require.True(t, ok)
		m := v.(map[string]any)
		assert.Equal(t, "search", m["tool"])
		assert.Equal(t, map[string]any{"q": "go"}, m["args"])
	})

	t.Run("array", func(t *testing.T) {
		v, ok := JSON("values: [1, 2, 3]")
		require.True(t, ok)
		assert.Equal(t, []any{json.Number("1"), json.Number("2"), json.Number("3")}, v)
	})

	t.Run("comments and trailing commas", func(t *testing.T) {
		v, ok := JSON("```json\n{\n  // the answer\n  \"answer\": 42,\n}\n```")
		require.True(t, ok)
		assert.Equal(t, json.Number("42"), v.(map[string]any)["answer"])
	})

	t.Run("skips non-json brackets", func(t *testing.T) {
		v, ok := JSON(`see [note] then {"ok": true}`)
		require.True(t, ok)
		assert.Equal(t, map[string]any{"ok": true}, v)
	})

	t.Run("brackets inside strings and comments", func(t *testing.T) {
		v, ok := JSON("{\"re\": \"[a-z]}\", /* } */ \"n\": 1}")
		require.True(t, ok)
		assert.Equal(t, "[a-z]}", v.(map[string]any)["re"])
	})

	t.Run("stray quote and mismatched brackets before the object", func(t *testing.T) {
		v, ok := JSON(`He said "hi {" and ] [} then {"a": 1}`)
		require.True(t, ok)
		assert.Equal(t, map[string]any{"a": json.Number("1")}, v)
	})

	t.Run("none", func(t *testing.T) {
		_, ok := JSON("no structured data here")
		assert.False(t, ok)
	})
}

func TestJSON_LargeInputs(t *testing.T) {
	const size = 64 << 10
	inputs := map[string]string{
		"unclosed arrays":  strings.Repeat("[", size),
		"unclosed objects": strings.Repeat(`{"a":`, size/5),
		"mismatched":       strings.Repeat("[1,", size/3) + "}",
		"too deep":         strings.Repeat("[", size/2) + strings.Repeat("]", size/2),
	}
	for name, text := range inputs {
		t.Run(name, func(t *testing.T) {
			start := time.Now()
			_, ok := JSON(text)
			assert.False(t, ok)
			assert.Less(t, time.Since(start), 2*time.Second)
		})
	}
}

func TestTextExtractors(t *testing.T) {
	text := "Ping @alice and @bob_2 about #release #go124. Docs at https://example.com/docs?x=1 " +
		"or http://test.io. Mail ops@example.com, call +1 555-123-4567."

	assert.Equal(t, []string{"https://example.com/docs?x=1", "http://test.io."}, URLs(text))
	assert.Equal(t, []string{"ops@example.com"}, Emails(text))
	assert.Equal(t, []string{"release", "go124"}, Hashtags(text))
	assert.Equal(t, []string{"alice", "bob_2", "example"}, Mentions(text))
	assert.Contains(t, PhoneNumbers(text), "+1 555-123-4567")

	assert.Empty(t, URLs("nothing"))
	assert.NotNil(t, URLs("nothing"))
}

func TestFileExtension(t *testing.T) {
	assert.Equal(t, "json", FileExtension("Data.JSON"))
	assert.Equal(t, "gz", FileExtension("archive.tar.gz"))
	assert.Equal(t, "", FileExtension("Makefile"))
}

func TestFileMetadata(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notes.TXT")
	require.NoError(t, os.WriteFile(path, []byte("hello"), 0o644))

	md := FileMetadata(path)
	assert.Equal(t, "notes.TXT", md.Filename)
	assert.Equal(t, "txt", md.Extension)
	assert.Equal(t, int64(5), md.Size)
	require.NotNil(t, md.Modified)
	require.NotNil(t, md.Created)
	assert.False(t, md.Created.After(*md.Modified))

	missing := FileMetadata(filepath.Join(t.TempDir(), "gone.md"))
	assert.Equal(t, int64(0), missing.Size)
	assert.Nil(t, missing.Modified)
	assert.Nil(t, missing.Created)
}

func TestAll(t *testing.T) {
	got := All(`{"a": 1} see https://x.dev #tag`)
	assert.Contains(t, got, "json")
	assert.Equal(t, []string{"https://x.dev"}, got["urls"])
	assert.Equal(t, []string{"tag"}, got["hashtags"])
	assert.NotContains(t, got, "emails")
}
