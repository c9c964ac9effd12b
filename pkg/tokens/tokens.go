package tokens

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/pkoukk/tiktoken-go"
	tiktoken_loader "github.com/pkoukk/tiktoken-go-loader"
)

// DefaultEncoding is used for models tiktoken does not know.
const DefaultEncoding = "cl100k_base"

// DefaultModel is assumed when callers pass an empty model name.
const DefaultModel = "gpt-4"

var (
	loaderOnce sync.Once
	encodings  sync.Map // model name -> *tiktoken.Tiktoken
)

func encodingFor(model string) (*tiktoken.Tiktoken, error) {
	loaderOnce.Do(func() {
		tiktoken.SetBpeLoader(tiktoken_loader.NewOfflineLoader())
	})
	if model == "" {
		model = DefaultModel
	}
	if enc, ok := encodings.Load(model); ok {
		return enc.(*tiktoken.Tiktoken), nil
	}
	enc, err := tiktoken.EncodingForModel(model)
	if err != nil {
		enc, err = tiktoken.GetEncoding(DefaultEncoding)
		if err != nil {
			return nil, fmt.Errorf("failed to load %s encoding: %w", DefaultEncoding, err)
		}
	}
	encodings.Store(model, enc)
	return enc, nil
}

// Count returns the number of tokens text encodes to for model. If no encoding
// can be loaded it falls back to Estimate.
func Count(text, model string) int {
	enc, err := encodingFor(model)
	if err != nil {
		return Estimate(text)
	}
	return len(enc.Encode(text, nil, nil))
}

// Estimate approximates the token count as one token per four bytes.
func Estimate(text string) int {
	return (len(text) + 3) / 4
}

// Truncate shortens text to at most maxTokens tokens, keeping the head, or the
// tail when fromEnd is set. Text already within budget is returned unchanged.
// A rune split by the cut is dropped, so the result is always valid UTF-8.
func Truncate(text string, maxTokens int, model string, fromEnd bool) (string, error) {
	enc, err := encodingFor(model)
	if err != nil {
		return "", err
	}
	ids := enc.Encode(text, nil, nil)
	if len(ids) <= maxTokens {
		return text, nil
	}
	if maxTokens <= 0 {
		return "", nil
	}
	if fromEnd {
		return strings.ToValidUTF8(trimPartialRunes(enc.Decode(ids[len(ids)-maxTokens:]), true), "\uFFFD"), nil
	}
	return strings.ToValidUTF8(trimPartialRunes(enc.Decode(ids[:maxTokens]), false), "\uFFFD"), nil
}

// trimPartialRunes drops the bytes of a rune cut in half at the start of s
// (atStart) or at its end.
func trimPartialRunes(s string, atStart bool) string {
	for range utf8.UTFMax - 1 {
		var r rune
		var size int
		if atStart {
			r, size = utf8.DecodeRuneInString(s)
		} else {
			r, size = utf8.DecodeLastRuneInString(s)
		}
		if r != utf8.RuneError || size != 1 {
			break
		}
		if atStart {
			s = s[1:]
		} else {
			s = s[:len(s)-1]
		}
	}
	return s
}

// EncodeJSON serialises v as JSON and returns its token IDs under the default model.
func EncodeJSON(v any) ([]int, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal value: %w", err)
	}
	enc, err := encodingFor(DefaultModel)
	if err != nil {
		return nil, err
	}
	return enc.Encode(string(b), nil, nil), nil
}

// DecodeJSON reverses EncodeJSON into v.
func DecodeJSON(ids []int, v any) error {
	enc, err := encodingFor(DefaultModel)
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(enc.Decode(ids)), v); err != nil {
		return fmt.Errorf("failed to unmarshal decoded tokens: %w", err)
	}
	return nil
}

var contextSizes = map[string]int{
	"gpt-4":             8192,
	"gpt-4-32k":         32768,
	"gpt-3.5-turbo":     4096,
	"gpt-3.5-turbo-16k": 16384,
	"text-davinci-003":  4097,
	"text-davinci-002":  4097,
	"code-davinci-002":  8001,
}

// DefaultContextSize is reported for unknown models.
const DefaultContextSize = 4096

// ContextSize returns the context window of model in tokens.
func ContextSize(model string) int {
	if n, ok := contextSizes[model]; ok {
		return n
	}
	return DefaultContextSize
}
