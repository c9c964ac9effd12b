package history_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/agent2000/agent2000/pkg/adapters/memory"
	"github.com/agent2000/agent2000/pkg/history"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stepClock struct {
	mu sync.Mutex
	t  time.Time
}

// Now returns a strictly increasing time so ordering is deterministic.
func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(time.Millisecond)
	return c.t
}

func newClock() *stepClock {
	return &stepClock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func TestManager_AddAndGet(t *testing.T) {
	ctx := context.Background()
	m := history.NewManager(history.DefaultConfig(), history.WithClock(newClock().Now))

	id, err := m.Add(ctx, "chat", map[string]any{"text": "hi"}, nil)
	require.NoError(t, err)
	require.NotEmpty(t, id)

	e, err := m.Get(id)
	require.NoError(t, err)
	assert.Equal(t, "chat", e.Type)
	assert.Equal(t, "hi", e.Data["text"])
	assert.NotNil(t, e.Metadata)
	assert.Equal(t, time.UTC, e.Timestamp.Location())

	_, err = m.Get("missing")
	assert.ErrorIs(t, err, history.ErrNotFound)

	_, err = m.Add(ctx, "", nil, nil)
	assert.ErrorIs(t, err, history.ErrInvalidEntry)
}

func TestManager_GetReturnsCopy(t *testing.T) {
	ctx := context.Background()
	m := history.NewManager(history.DefaultConfig())
	id, err := m.Add(ctx, "chat", map[string]any{"text": "original"}, nil)
	require.NoError(t, err)

	e, err := m.Get(id)
	require.NoError(t, err)
	e.Data["text"] = "changed"

	again, err := m.Get(id)
	require.NoError(t, err)
	assert.Equal(t, "original", again.Data["text"])
}

func TestManager_List(t *testing.T) {
	ctx := context.Background()
	m := history.NewManager(history.DefaultConfig(), history.WithClock(newClock().Now))

	var ids []string
	for i, typ := range []string{"chat", "tool", "chat", "chat", "tool"} {
		id, err := m.Add(ctx, typ, map[string]any{"n": i}, nil)
		require.NoError(t, err)
		ids = append(ids, id)
	}

	all := m.List(history.Query{})
	require.Len(t, all, 5)
	assert.Equal(t, ids[0], all[0].ID)
	assert.Equal(t, ids[4], all[4].ID)

	chats := m.List(history.Query{Type: "chat"})
	require.Len(t, chats, 3)
	for _, e := range chats {
		assert.Equal(t, "chat", e.Type)
	}

	// Ascending with a limit keeps the newest entries.
	last2 := m.List(history.Query{Limit: 2})
	require.Len(t, last2, 2)
	assert.Equal(t, []string{ids[3], ids[4]}, []string{last2[0].ID, last2[1].ID})

	// Reverse with a limit keeps the first entries of the newest-first order.
	rev2 := m.List(history.Query{Limit: 2, Reverse: true})
	require.Len(t, rev2, 2)
	assert.Equal(t, []string{ids[4], ids[3]}, []string{rev2[0].ID, rev2[1].ID})
}

func TestManager_Filters(t *testing.T) {
	ctx := context.Background()
	m := history.NewManager(history.DefaultConfig())
	for i := 0; i < 4; i++ {
		_, err := m.Add(ctx, "chat", map[string]any{"n": i}, nil)
		require.NoError(t, err)
	}

	m.AddFilter("even", func(e *history.Entry) bool {
		return e.Data["n"].(int)%2 == 0
	})
	assert.Len(t, m.List(history.Query{}), 2)

	assert.True(t, m.RemoveFilter("even"))
	assert.False(t, m.RemoveFilter("even"))
	assert.Len(t, m.List(history.Query{}), 4)
}

func TestManager_Listeners(t *testing.T) {
	ctx := context.Background()
	m := history.NewManager(history.DefaultConfig())

	var got []string
	remove := m.AddListener(func(e *history.Entry) {
		got = append(got, e.Type)
	})
	m.AddListener(func(*history.Entry) {
		panic("listener failure must not break Add")
	})

	_, err := m.Add(ctx, "one", nil, nil)
	require.NoError(t, err)
	remove()
	_, err = m.Add(ctx, "two", nil, nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"one"}, got)
	assert.Equal(t, 2, m.Len())
}

func TestManager_AutoPrune(t *testing.T) {
	ctx := context.Background()
	m := history.NewManager(history.Config{
		MaxEntries:     3,
		AutoPrune:      true,
		PruneThreshold: 5,
	}, history.WithClock(newClock().Now))

	var ids []string
	for i := 0; i < 5; i++ {
		id, err := m.Add(ctx, "chat", nil, nil)
		require.NoError(t, err)
		ids = append(ids, id)
	}
	assert.Equal(t, 5, m.Len(), "threshold not yet exceeded")

	id, err := m.Add(ctx, "chat", nil, nil)
	require.NoError(t, err)
	ids = append(ids, id)

	entries := m.List(history.Query{})
	require.Len(t, entries, 3)
	assert.Equal(t, ids[3:], []string{entries[0].ID, entries[1].ID, entries[2].ID})
}

func TestManager_PruneDeletesFromStore(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	m := history.NewManager(history.Config{MaxEntries: 2, PruneThreshold: 10},
		history.WithStore(store), history.WithClock(newClock().Now))

	for i := 0; i < 4; i++ {
		_, err := m.Add(ctx, "chat", nil, nil)
		require.NoError(t, err)
	}
	assert.Equal(t, 0, history.NewManager(history.Config{}).Prune(ctx))
	assert.Equal(t, 2, m.Prune(ctx))
	assert.Equal(t, 0, m.Prune(ctx))

	stored, err := store.LoadAll(ctx)
	require.NoError(t, err)
	assert.Len(t, stored, 2)
}

func TestManager_PersistAndReload(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	m := history.NewManager(history.DefaultConfig(), history.WithStore(store), history.WithClock(newClock().Now))

	first, err := m.Add(ctx, "chat", map[string]any{"text": "a"}, nil)
	require.NoError(t, err)
	_, err = m.Add(ctx, "chat", map[string]any{"text": "b"}, nil)
	require.NoError(t, err)

	// An invalid record in the store is skipped on load.
	require.NoError(t, store.Save(ctx, &history.Entry{ID: "broken"}))

	reloaded := history.NewManager(history.DefaultConfig(), history.WithStore(store))
	n, err := reloaded.LoadFromStore(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	entries := reloaded.List(history.Query{})
	require.Len(t, entries, 2)
	assert.Equal(t, first, entries[0].ID)

	// Loading again does not duplicate.
	n, err = reloaded.LoadFromStore(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	require.NoError(t, reloaded.Clear(ctx))
	assert.Equal(t, 0, reloaded.Len())
	stored, err := store.LoadAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, stored)
}

type failingStore struct {
	history.Store
}

func (failingStore) Save(context.Context, *history.Entry) error {
	return errors.New("disk full")
}

func TestManager_SaveFailureKeepsEntry(t *testing.T) {
	ctx := context.Background()
	m := history.NewManager(history.DefaultConfig(), history.WithStore(failingStore{memory.NewStore()}))

	id, err := m.Add(ctx, "chat", nil, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	require.NotEmpty(t, id)

	_, err = m.Get(id)
	assert.NoError(t, err)
}

func TestManager_Concurrent(t *testing.T) {
	ctx := context.Background()
	m := history.NewManager(history.Config{MaxEntries: 50, AutoPrune: true, PruneThreshold: 60})

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = m.Add(ctx, "chat", nil, nil)
			_ = m.List(history.Query{Limit: 5})
		}()
	}
	wg.Wait()
	assert.LessOrEqual(t, m.Len(), 60)
}
