// Package extract pulls structured fragments (JSON, URLs, emails, tags) out of free text,
// typically model output.
package extract

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/agent2000/agent2000/pkg/files"
	"github.com/tidwall/jsonc"
)

var (
	urlPattern     = regexp.MustCompile(`https?://\S+`)
	emailPattern   = regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`)
	phonePattern   = regexp.MustCompile(`\+?[\d\s-]+\(?[\d\s-]+\)?[\d\s-]+\d`)
	hashtagPattern = regexp.MustCompile(`#([\p{L}\p{N}_]+)`)
	mentionPattern = regexp.MustCompile(`@([\p{L}\p{N}_]+)`)
)

// maxJSONStarts bounds how many opening brackets JSON tries before giving up.
const maxJSONStarts = 64

// JSON returns the first JSON object or array embedded in text. Comments and
// trailing commas are tolerated. Only the first maxJSONStarts opening brackets
// are tried, and each is decoded only when its brackets balance. The second
// result is false when nothing decodes.
func JSON(text string) (any, bool) {
	tried := 0
	for i := 0; i < len(text) && tried < maxJSONStarts; i++ {
		if text[i] != '{' && text[i] != '[' {
			continue
		}
		tried++
		end := closingBracket(text, i)
		if end < 0 {
			continue
		}
		var v any
		dec := json.NewDecoder(bytes.NewReader(jsonc.ToJSON([]byte(text[i:end]))))
		dec.UseNumber()
		if err := dec.Decode(&v); err == nil {
			return v, true
		}
	}
	return nil, false
}

// closingBracket returns the offset just past the bracket that closes
// text[start], or -1 if it is never closed or a mismatched bracket comes
// first. Brackets inside strings and comments do not count.
func closingBracket(text string, start int) int {
	var open []byte
	for i := start; i < len(text); i++ {
		switch c := text[i]; c {
		case '"':
			i = skipString(text, i)
		case '/':
			i = skipComment(text, i)
		case '{', '[':
			open = append(open, c)
		case '}', ']':
			if (open[len(open)-1] == '{') != (c == '}') {
				return -1
			}
			open = open[:len(open)-1]
			if len(open) == 0 {
				return i + 1
			}
		}
	}
	return -1
}

// skipString returns the offset of the quote closing the string opened at i.
func skipString(text string, i int) int {
	for j := i + 1; j < len(text); j++ {
		switch text[j] {
		case '\\':
			j++
		case '"':
			return j
		}
	}
	return len(text)
}

// skipComment returns the last offset of a comment starting at i, or i when
// no comment starts there.
func skipComment(text string, i int) int {
	if i+1 >= len(text) {
		return i
	}
	switch text[i+1] {
	case '/':
		if j := strings.IndexByte(text[i:], '\n'); j >= 0 {
			return i + j
		}
		return len(text)
	case '*':
		if j := strings.Index(text[i+2:], "*/"); j >= 0 {
			return i + 2 + j + 1
		}
		return len(text)
	}
	return i
}

// URLs returns every http(s) URL in text.
func URLs(text string) []string {
	return nonNil(urlPattern.FindAllString(text, -1))
}

// Emails returns every email address in text.
func Emails(text string) []string {
	return nonNil(emailPattern.FindAllString(text, -1))
}

// PhoneNumbers returns phone-number-like runs of digits, spaces, dashes and parentheses.
func PhoneNumbers(text string) []string {
	matches := phonePattern.FindAllString(text, -1)
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		out = append(out, strings.TrimSpace(m))
	}
	return out
}

// Hashtags returns tag names without the leading '#'.
func Hashtags(text string) []string {
	return groups(hashtagPattern, text)
}

// Mentions returns handles without the leading '@'.
func Mentions(text string) []string {
	return groups(mentionPattern, text)
}

// FileExtension returns the lower-cased extension without the dot.
func FileExtension(filename string) string {
	return strings.TrimPrefix(strings.ToLower(filepath.Ext(filename)), ".")
}

// Metadata describes a file as seen by FileMetadata. Size is zero and the
// timestamps are nil for missing files.
type Metadata struct {
	Filename  string     `json:"filename"`
	Extension string     `json:"extension"`
	Size      int64      `json:"size"`
	Created   *time.Time `json:"created"`
	Modified  *time.Time `json:"modified"`
}

// FileMetadata reports basic facts about path without failing on missing files.
func FileMetadata(path string) Metadata {
	name := filepath.Base(path)
	md := Metadata{Filename: name, Extension: FileExtension(name)}
	if fi, err := os.Stat(path); err == nil {
		created, mod := files.Created(fi), fi.ModTime()
		md.Size = fi.Size()
		md.Created = &created
		md.Modified = &mod
	}
	return md
}

// All runs every text extractor and returns the non-empty results keyed by kind.
func All(text string) map[string]any {
	out := map[string]any{}
	if v, ok := JSON(text); ok {
		out["json"] = v
	}
	add := func(key string, values []string) {
		if len(values) > 0 {
			out[key] = values
		}
	}
	add("urls", URLs(text))
	add("emails", Emails(text))
	add("phone_numbers", PhoneNumbers(text))
	add("hashtags", Hashtags(text))
	add("mentions", Mentions(text))
	return out
}

func groups(re *regexp.Regexp, text string) []string {
	matches := re.FindAllStringSubmatch(text, -1)
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		out = append(out, m[1])
	}
	return out
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
