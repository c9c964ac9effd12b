package history

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/agent2000/agent2000/internal/logging"
	"github.com/google/uuid"
)

// Config bounds the in-memory history.
type Config struct {
	// MaxEntries is how many entries survive a prune.
	MaxEntries int `mapstructure:"max_entries" json:"max_entries" yaml:"max_entries"`
	// AutoPrune prunes on Add once the entry count exceeds PruneThreshold.
	AutoPrune bool `mapstructure:"auto_prune" json:"auto_prune" yaml:"auto_prune"`
	// PruneThreshold is the entry count that triggers an automatic prune.
	PruneThreshold int `mapstructure:"prune_threshold" json:"prune_threshold" yaml:"prune_threshold"`
}

// DefaultConfig keeps 1000 entries and prunes once 2000 accumulate.
func DefaultConfig() Config {
	return Config{
		MaxEntries:     1000,
		AutoPrune:      true,
		PruneThreshold: 2000,
	}
}

// Filter decides whether an entry is visible to List.
type Filter func(*Entry) bool

// Listener is called with every entry added to the Manager.
type Listener func(*Entry)

// Query selects entries for List.
type Query struct {
	// Type keeps only entries of this type when set.
	Type string
	// Limit caps the result when positive.
	Limit int
	// Reverse returns newest first. The limit then keeps the first Limit
	// entries, otherwise it keeps the newest Limit in ascending order.
	Reverse bool
}

type listenerEntry struct {
	id uint64
	fn Listener
}

// Option configures a Manager.
type Option func(*Manager)

// WithStore persists entries through s.
func WithStore(s Store) Option {
	return func(m *Manager) {
		m.store = s
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		m.now = now
	}
}

// Manager holds history entries in memory. It is safe for concurrent use.
type Manager struct {
	cfg    Config
	store  Store
	logger *slog.Logger
	now    func() time.Time

	mu        sync.RWMutex
	entries   []*Entry
	filters   map[string]Filter
	listeners []listenerEntry
	nextID    uint64
}

// NewManager creates a Manager. Without WithStore entries live only in memory.
func NewManager(cfg Config, opts ...Option) *Manager {
	if cfg.MaxEntries <= 0 {
		cfg.MaxEntries = DefaultConfig().MaxEntries
	}
	if cfg.PruneThreshold < cfg.MaxEntries {
		cfg.PruneThreshold = cfg.MaxEntries
	}
	m := &Manager{
		cfg:     cfg,
		logger:  logging.NewNop(),
		now:     time.Now,
		filters: make(map[string]Filter),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Config returns the effective configuration.
func (m *Manager) Config() Config {
	return m.cfg
}

// Add records a new entry and returns its ID. The entry stays in memory even
// when persisting it fails; the store error is returned alongside the ID.
func (m *Manager) Add(ctx context.Context, entryType string, data, metadata map[string]any) (string, error) {
	if entryType == "" {
		return "", fmt.Errorf("%w: type cannot be empty", ErrInvalidEntry)
	}
	if data == nil {
		data = map[string]any{}
	}
	if metadata == nil {
		metadata = map[string]any{}
	}
	e := &Entry{
		ID:        uuid.NewString(),
		Timestamp: m.now().UTC(),
		Type:      entryType,
		Data:      data,
		Metadata:  metadata,
	}

	m.mu.Lock()
	m.entries = append(m.entries, e)
	var pruned []*Entry
	if m.cfg.AutoPrune && len(m.entries) > m.cfg.PruneThreshold {
		pruned = m.pruneLocked()
	}
	listeners := make([]Listener, len(m.listeners))
	for i, l := range m.listeners {
		listeners[i] = l.fn
	}
	m.mu.Unlock()

	var saveErr error
	if m.store != nil {
		m.deleteFromStore(ctx, pruned)
		if err := m.store.Save(ctx, e); err != nil {
			m.logger.Warn("failed to persist history entry", "id", e.ID, "error", err)
			saveErr = fmt.Errorf("failed to persist entry %s: %w", e.ID, err)
		}
	}

	for _, fn := range listeners {
		m.notify(fn, e)
	}
	return e.ID, saveErr
}

func (m *Manager) notify(fn Listener, e *Entry) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("history listener panicked", "id", e.ID, "panic", r)
		}
	}()
	fn(e.Clone())
}

// Get returns a copy of the entry with the given ID.
func (m *Manager) Get(id string) (*Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, e := range m.entries {
		if e.ID == id {
			return e.Clone(), nil
		}
	}
	return nil, ErrNotFound
}

// List returns copies of the entries matching q and every registered filter.
func (m *Manager) List(q Query) []*Entry {
	m.mu.RLock()
	out := make([]*Entry, 0, len(m.entries))
	for _, e := range m.entries {
		if q.Type != "" && e.Type != q.Type {
			continue
		}
		if !m.visibleLocked(e) {
			continue
		}
		out = append(out, e.Clone())
	}
	m.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		if q.Reverse {
			return out[i].Timestamp.After(out[j].Timestamp)
		}
		return out[i].Timestamp.Before(out[j].Timestamp)
	})
	if q.Limit > 0 && len(out) > q.Limit {
		if q.Reverse {
			out = out[:q.Limit]
		} else {
			out = out[len(out)-q.Limit:]
		}
	}
	return out
}

func (m *Manager) visibleLocked(e *Entry) bool {
	for _, f := range m.filters {
		if !f(e) {
			return false
		}
	}
	return true
}

// Len returns the number of entries held in memory.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

// AddFilter registers f under name, replacing any filter with that name.
func (m *Manager) AddFilter(name string, f Filter) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.filters[name] = f
}

// RemoveFilter unregisters a filter and reports whether it existed.
func (m *Manager) RemoveFilter(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.filters[name]; !ok {
		return false
	}
	delete(m.filters, name)
	return true
}

// AddListener registers fn and returns a function that unregisters it.
func (m *Manager) AddListener(fn Listener) func() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	id := m.nextID
	m.listeners = append(m.listeners, listenerEntry{id: id, fn: fn})

	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		for i, l := range m.listeners {
			if l.id == id {
				m.listeners = append(m.listeners[:i], m.listeners[i+1:]...)
				return
			}
		}
	}
}

// Prune drops the oldest entries down to MaxEntries and returns how many
// were removed. Pruned entries are deleted from the store as well.
func (m *Manager) Prune(ctx context.Context) int {
	m.mu.Lock()
	pruned := m.pruneLocked()
	m.mu.Unlock()

	m.deleteFromStore(ctx, pruned)
	return len(pruned)
}

func (m *Manager) pruneLocked() []*Entry {
	if len(m.entries) <= m.cfg.MaxEntries {
		return nil
	}
	sort.SliceStable(m.entries, func(i, j int) bool {
		return m.entries[i].Timestamp.Before(m.entries[j].Timestamp)
	})
	n := len(m.entries) - m.cfg.MaxEntries
	pruned := make([]*Entry, n)
	copy(pruned, m.entries[:n])
	m.entries = append(m.entries[:0], m.entries[n:]...)
	m.logger.Debug("pruned history", "removed", n, "kept", len(m.entries))
	return pruned
}

func (m *Manager) deleteFromStore(ctx context.Context, entries []*Entry) {
	if m.store == nil {
		return
	}
	for _, e := range entries {
		if err := m.store.Delete(ctx, e.ID); err != nil {
			m.logger.Warn("failed to delete pruned entry", "id", e.ID, "error", err)
		}
	}
}

// Clear removes every entry from memory and from the store.
func (m *Manager) Clear(ctx context.Context) error {
	m.mu.Lock()
	m.entries = nil
	m.mu.Unlock()

	if m.store == nil {
		return nil
	}
	if err := m.store.Clear(ctx); err != nil {
		return fmt.Errorf("failed to clear history store: %w", err)
	}
	return nil
}

// LoadFromStore appends stored entries that are valid and not already in
// memory, in timestamp order, and returns how many were added.
func (m *Manager) LoadFromStore(ctx context.Context) (int, error) {
	if m.store == nil {
		return 0, nil
	}
	stored, err := m.store.LoadAll(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to load history: %w", err)
	}
	sort.SliceStable(stored, func(i, j int) bool {
		return stored[i].Timestamp.Before(stored[j].Timestamp)
	})

	m.mu.Lock()
	defer m.mu.Unlock()
	seen := make(map[string]bool, len(m.entries))
	for _, e := range m.entries {
		seen[e.ID] = true
	}
	count := 0
	for _, e := range stored {
		if !e.Valid() {
			m.logger.Debug("skipping invalid history entry", "id", e.ID)
			continue
		}
		if seen[e.ID] {
			continue
		}
		if e.Metadata == nil {
			e.Metadata = map[string]any{}
		}
		seen[e.ID] = true
		m.entries = append(m.entries, e)
		count++
	}
	return count, nil
}
