package tokens

import (
	"strings"
	"sync"
)

type windowItem struct {
	content string
	tokens  int
}

// Window holds text items in insertion order under a token budget and an
// optional item limit. It is safe for concurrent use.
type Window struct {
	maxTokens int
	maxItems  int
	model     string
	counter   func(text, model string) int

	mu    sync.Mutex
	items []windowItem
	total int
}

// NewWindow creates a window. maxItems <= 0 disables the item limit.
func NewWindow(maxTokens, maxItems int, model string) *Window {
	return &Window{
		maxTokens: maxTokens,
		maxItems:  maxItems,
		model:     model,
		counter:   Count,
	}
}

// Add appends content if neither limit would be exceeded. It reports whether
// the item was accepted and how many tokens it added.
func (w *Window) Add(content string) (bool, int) {
	n := w.counter(content, w.model)

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.maxItems > 0 && len(w.items) >= w.maxItems {
		return false, 0
	}
	if w.total+n > w.maxTokens {
		return false, 0
	}
	w.items = append(w.items, windowItem{content: content, tokens: n})
	w.total += n
	return true, n
}

// Pop removes and returns the oldest item.
func (w *Window) Pop() (string, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if len(w.items) == 0 {
		return "", false
	}
	it := w.items[0]
	w.items = w.items[1:]
	w.total -= it.tokens
	return it.content, true
}

// Clear empties the window.
func (w *Window) Clear() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.items = nil
	w.total = 0
}

// Contents joins all items with newlines.
func (w *Window) Contents() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	parts := make([]string, len(w.items))
	for i, it := range w.items {
		parts[i] = it.content
	}
	return strings.Join(parts, "\n")
}

// Full reports whether the item limit is reached or the budget is spent.
func (w *Window) Full() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.maxItems > 0 && len(w.items) >= w.maxItems {
		return true
	}
	return w.total >= w.maxTokens
}

// Total returns the tokens currently held.
func (w *Window) Total() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.total
}

// Len returns the number of items held.
func (w *Window) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.items)
}
