/*
Package tokens counts, budgets and rate-limits model tokens.

Counting uses the tiktoken BPE tables bundled with the binary, so no network access
is needed at runtime. Models without a known encoding fall back to cl100k_base.

	n := tokens.Count("hello world", "gpt-4")  // 2
	short := tokens.Truncate(prompt, 512, "gpt-4", false)

Window keeps a bounded list of text items under a token budget, Bucket throttles
token consumption over time and UsageStats accumulates prompt/completion totals.
*/
package tokens
