// Package historytest holds a reusable suite that every history.Store
// implementation must pass.
package historytest

import (
	"context"
	"sort"
	"testing"
	"time"

	"github.com/agent2000/agent2000/pkg/history"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// NewEntry builds a valid entry with a fixed timestamp offset.
func NewEntry(id, entryType string, offset time.Duration) *history.Entry {
	base := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	return &history.Entry{
		ID:        id,
		Timestamp: base.Add(offset),
		Type:      entryType,
		Data:      map[string]any{"text": "entry " + id},
		Metadata:  map[string]any{"source": "contract"},
	}
}

// StoreContractTest runs the suite. newStore must return an empty store
// that is independent of stores returned by earlier calls.
func StoreContractTest(t *testing.T, newStore func(t *testing.T) history.Store) {
	t.Helper()
	ctx := context.Background()

	t.Run("SaveAndLoadAll", func(t *testing.T) {
		s := newStore(t)
		a := NewEntry("a", "chat", 0)
		b := NewEntry("b", "tool", time.Second)
		require.NoError(t, s.Save(ctx, a))
		require.NoError(t, s.Save(ctx, b))

		got, err := s.LoadAll(ctx)
		require.NoError(t, err)
		require.Len(t, got, 2)
		sortByID(got)

		assert.Equal(t, "a", got[0].ID)
		assert.Equal(t, "chat", got[0].Type)
		assert.True(t, a.Timestamp.Equal(got[0].Timestamp), "timestamp round-trips")
		assert.Equal(t, "entry a", got[0].Data["text"])
		assert.Equal(t, "contract", got[0].Metadata["source"])
		assert.Equal(t, "b", got[1].ID)
	})

	t.Run("EmptyStore", func(t *testing.T) {
		s := newStore(t)
		got, err := s.LoadAll(ctx)
		require.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("SaveReplaces", func(t *testing.T) {
		s := newStore(t)
		e := NewEntry("same", "chat", 0)
		require.NoError(t, s.Save(ctx, e))
		e2 := e.Clone()
		e2.Data["text"] = "updated"
		require.NoError(t, s.Save(ctx, e2))

		got, err := s.LoadAll(ctx)
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "updated", got[0].Data["text"])
	})

	t.Run("Delete", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Save(ctx, NewEntry("keep", "chat", 0)))
		require.NoError(t, s.Save(ctx, NewEntry("drop", "chat", time.Second)))
		require.NoError(t, s.Delete(ctx, "drop"))
		require.NoError(t, s.Delete(ctx, "never-existed"))

		got, err := s.LoadAll(ctx)
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "keep", got[0].ID)
	})

	t.Run("Clear", func(t *testing.T) {
		s := newStore(t)
		for i, id := range []string{"x", "y", "z"} {
			require.NoError(t, s.Save(ctx, NewEntry(id, "chat", time.Duration(i)*time.Second)))
		}
		require.NoError(t, s.Clear(ctx))

		got, err := s.LoadAll(ctx)
		require.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("IsolatedFromCaller", func(t *testing.T) {
		s := newStore(t)
		e := NewEntry("iso", "chat", 0)
		require.NoError(t, s.Save(ctx, e))
		e.Data["text"] = "mutated after save"

		got, err := s.LoadAll(ctx)
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "entry iso", got[0].Data["text"])
	})
}

func sortByID(entries []*history.Entry) {
	sort.Slice(entries, func(i, j int) bool { return entries[i].ID < entries[j].ID })
}
