// Package history records typed events (chat turns, tool calls, API
// requests) in memory with optional persistence through a Store.
//
// A Manager keeps entries in insertion order, prunes the oldest once the
// configured threshold is crossed and notifies listeners of every new entry.
// Stores live in pkg/adapters (memory, file, redis) and can be wrapped with
// the redaction and encryption middleware in pkg/history/middleware.
package history
