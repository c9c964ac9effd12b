package mcp

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/agent2000/agent2000/pkg/history"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	return NewServer(Deps{History: history.NewManager(history.DefaultConfig())})
}

func rpc(t *testing.T, s *Server, method string, params any) string {
	t.Helper()
	msg := map[string]any{"jsonrpc": "2.0", "id": 1, "method": method}
	if params != nil {
		msg["params"] = params
	}
	raw, err := json.Marshal(msg)
	require.NoError(t, err)
	resp := s.mcpServer.HandleMessage(context.Background(), raw)
	out, err := json.Marshal(resp)
	require.NoError(t, err)
	return string(out)
}

func TestToolsAreRegistered(t *testing.T) {
	s := newTestServer(t)
	rpc(t, s, "initialize", map[string]any{
		"protocolVersion": mcp.LATEST_PROTOCOL_VERSION,
		"clientInfo":      map[string]any{"name": "test", "version": "0"},
		"capabilities":    map[string]any{},
	})

	out := rpc(t, s, "tools/list", nil)
	for _, name := range []string{"count_tokens", "truncate_text", "extract", "history_add", "history_list"} {
		assert.Contains(t, out, `"name":"`+name+`"`)
	}
}

func TestSystemResource(t *testing.T) {
	s := newTestServer(t)
	rpc(t, s, "initialize", map[string]any{
		"protocolVersion": mcp.LATEST_PROTOCOL_VERSION,
		"clientInfo":      map[string]any{"name": "test", "version": "0"},
		"capabilities":    map[string]any{},
	})

	out := rpc(t, s, "resources/read", map[string]any{"uri": SystemURI})
	assert.Contains(t, out, SystemURI)
	assert.Contains(t, out, "go_version")
}

func TestHandleCountTokens(t *testing.T) {
	s := newTestServer(t)

	res, err := s.handleCountTokens(context.Background(), mcp.CallToolRequest{}, map[string]any{"text": "hello world"})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Tokens)
	assert.Equal(t, "gpt-4", res.Model)
	assert.Equal(t, 8192, res.ContextSize)

	_, err = s.handleCountTokens(context.Background(), mcp.CallToolRequest{}, map[string]any{"text": "bad\xff"})
	require.Error(t, err)
}

func TestHandleTruncate(t *testing.T) {
	s := newTestServer(t)

	res, err := s.handleTruncate(context.Background(), mcp.CallToolRequest{}, map[string]any{
		"text": "hello world", "max_tokens": float64(1), "from_end": true,
	})
	require.NoError(t, err)
	assert.Equal(t, " world", res.Text)
	assert.True(t, res.Truncated)

	res, err = s.handleTruncate(context.Background(), mcp.CallToolRequest{}, map[string]any{
		"text": "hello world", "max_tokens": float64(10),
	})
	require.NoError(t, err)
	assert.Equal(t, "hello world", res.Text)
	assert.False(t, res.Truncated)

	_, err = s.handleTruncate(context.Background(), mcp.CallToolRequest{}, map[string]any{"text": "x", "max_tokens": float64(-1)})
	require.Error(t, err)
}

func TestHandleExtract(t *testing.T) {
	s := newTestServer(t)

	out, err := s.handleExtract(context.Background(), mcp.CallToolRequest{}, map[string]any{
		"text": "mail me at dev@example.com #release",
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"dev@example.com"}, out["emails"])
	assert.Equal(t, []string{"release"}, out["hashtags"])
}

func TestHandleHistory(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()

	for _, typ := range []string{"message", "tool_call", "message"} {
		res, err := s.handleHistoryAdd(ctx, mcp.CallToolRequest{}, map[string]any{
			"type": typ,
			"data": map[string]any{"content": strings.ToUpper(typ)},
		})
		require.NoError(t, err)
		assert.NotEmpty(t, res.ID)
		assert.True(t, res.Persisted)
	}

	list, err := s.handleHistoryList(ctx, mcp.CallToolRequest{}, map[string]any{"type": "message"})
	require.NoError(t, err)
	assert.Equal(t, 2, list.Count)

	list, err = s.handleHistoryList(ctx, mcp.CallToolRequest{}, map[string]any{"limit": float64(1), "reverse": true})
	require.NoError(t, err)
	require.Len(t, list.Entries, 1)
	assert.Equal(t, "message", list.Entries[0].Type)

	_, err = s.handleHistoryAdd(ctx, mcp.CallToolRequest{}, map[string]any{"type": ""})
	require.ErrorIs(t, err, history.ErrInvalidEntry)
}

func TestHandleHistory_Disabled(t *testing.T) {
	s := NewServer(Deps{})

	_, err := s.handleHistoryAdd(context.Background(), mcp.CallToolRequest{}, map[string]any{"type": "x"})
	require.Error(t, err)
	_, err = s.handleHistoryList(context.Background(), mcp.CallToolRequest{}, nil)
	require.Error(t, err)
}

func TestDecodeArgs(t *testing.T) {
	var in TruncateArgs
	require.NoError(t, decodeArgs(map[string]any{"text": "a", "max_tokens": float64(3), "from_end": "true"}, &in))
	assert.Equal(t, TruncateArgs{Text: "a", MaxTokens: 3, FromEnd: true}, in)

	require.Error(t, decodeArgs(map[string]any{"max_tokens": "many"}, &in))
}
