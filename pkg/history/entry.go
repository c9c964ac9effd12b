package history

import (
	"strings"
	"time"
)

// Entry is a single history record.
type Entry struct {
	ID        string         `json:"id" yaml:"id"`
	Timestamp time.Time      `json:"timestamp" yaml:"timestamp"`
	Type      string         `json:"type" yaml:"type"`
	Data      map[string]any `json:"data" yaml:"data"`
	Metadata  map[string]any `json:"metadata" yaml:"metadata"`
}

// Valid reports whether e carries the fields every entry must have.
func (e *Entry) Valid() bool {
	return e != nil && e.ID != "" && e.Type != "" && !e.Timestamp.IsZero() && e.Data != nil
}

// Clone returns a copy of e whose top-level maps are independent of e.
func (e *Entry) Clone() *Entry {
	c := *e
	c.Data = cloneMap(e.Data)
	c.Metadata = cloneMap(e.Metadata)
	return &c
}

// FileName is the name a file store uses for e: the timestamp with ':' and
// '.' replaced by '-', an underscore and the ID.
func (e *Entry) FileName() string {
	ts := e.Timestamp.UTC().Format("2006-01-02T15:04:05.000000")
	ts = strings.NewReplacer(":", "-", ".", "-").Replace(ts)
	return ts + "_" + e.ID + ".json"
}

func cloneMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		return cloneMap(val)
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = cloneValue(item)
		}
		return out
	default:
		return v
	}
}
