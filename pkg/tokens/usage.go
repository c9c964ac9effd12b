package tokens

import "sync"

// UsageStats accumulates token usage across requests. The zero value is ready to use.
type UsageStats struct {
	mu               sync.Mutex
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
	Requests         int `json:"requests"`
}

// Update records one request.
func (s *UsageStats) Update(promptTokens, completionTokens int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.PromptTokens += promptTokens
	s.CompletionTokens += completionTokens
	s.TotalTokens += promptTokens + completionTokens
	s.Requests++
}

// ToMap snapshots the counters.
func (s *UsageStats) ToMap() map[string]int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return map[string]int{
		"prompt_tokens":     s.PromptTokens,
		"completion_tokens": s.CompletionTokens,
		"total_tokens":      s.TotalTokens,
		"requests":          s.Requests,
	}
}

// UsageFromMap rebuilds stats from ToMap output. Missing keys read as zero.
func UsageFromMap(m map[string]int) *UsageStats {
	return &UsageStats{
		PromptTokens:     m["prompt_tokens"],
		CompletionTokens: m["completion_tokens"],
		TotalTokens:      m["total_tokens"],
		Requests:         m["requests"],
	}
}
