package middleware

import (
	"context"
	"fmt"
	"regexp"

	"github.com/agent2000/agent2000/pkg/history"
)

// Mask replaces redacted values.
const Mask = "***"

type redactMiddleware struct {
	history.Store
	patterns []*regexp.Regexp
}

// NewRedactMiddleware masks values in Data and Metadata whose keys match any
// of the patterns, at any nesting depth. The caller's entry is not modified.
func NewRedactMiddleware(patternStrings []string) (Middleware, error) {
	patterns := make([]*regexp.Regexp, len(patternStrings))
	for i, p := range patternStrings {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("invalid redaction pattern %q: %w", p, err)
		}
		patterns[i] = re
	}
	return func(next history.Store) history.Store {
		return &redactMiddleware{Store: next, patterns: patterns}
	}, nil
}

func (m *redactMiddleware) Save(ctx context.Context, e *history.Entry) error {
	cloned := e.Clone()
	maskMap(cloned.Data, m.patterns)
	maskMap(cloned.Metadata, m.patterns)
	return m.Store.Save(ctx, cloned)
}

func maskMap(m map[string]any, patterns []*regexp.Regexp) {
	for k, v := range m {
		masked := false
		for _, p := range patterns {
			if p.MatchString(k) {
				m[k] = Mask
				masked = true
				break
			}
		}
		if masked {
			continue
		}
		switch val := v.(type) {
		case map[string]any:
			maskMap(val, patterns)
		case []any:
			for _, item := range val {
				if sub, ok := item.(map[string]any); ok {
					maskMap(sub, patterns)
				}
			}
		}
	}
}
