// Package mcp exposes the helper services as Model Context Protocol tools.
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/agent2000/agent2000"
	"github.com/agent2000/agent2000/internal/logging"
	"github.com/agent2000/agent2000/pkg/extract"
	"github.com/agent2000/agent2000/pkg/history"
	"github.com/agent2000/agent2000/pkg/sanitize"
	"github.com/agent2000/agent2000/pkg/sysinfo"
	"github.com/agent2000/agent2000/pkg/tokens"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/mitchellh/mapstructure"
)

// SystemURI is the resource describing the host.
const SystemURI = "agent2000://system"

type CountArgs struct {
	Text  string `mapstructure:"text"`
	Model string `mapstructure:"model"`
}

type CountResult struct {
	Tokens      int    `json:"tokens" jsonschema_description:"Tokens the text encodes to"`
	Estimate    int    `json:"estimate" jsonschema_description:"Length based estimate"`
	Model       string `json:"model" jsonschema_description:"Model whose tokenizer was used"`
	ContextSize int    `json:"context_size" jsonschema_description:"Context window of the model"`
}

type TruncateArgs struct {
	Text      string `mapstructure:"text"`
	MaxTokens int    `mapstructure:"max_tokens"`
	Model     string `mapstructure:"model"`
	FromEnd   bool   `mapstructure:"from_end"`
}

type TruncateResult struct {
	Text      string `json:"text" jsonschema_description:"Text within the budget"`
	Tokens    int    `json:"tokens" jsonschema_description:"Tokens in the returned text"`
	Truncated bool   `json:"truncated" jsonschema_description:"Whether anything was cut"`
}

type ExtractArgs struct {
	Text string `mapstructure:"text"`
}

type HistoryAddArgs struct {
	Type     string         `mapstructure:"type"`
	Data     map[string]any `mapstructure:"data"`
	Metadata map[string]any `mapstructure:"metadata"`
}

type HistoryAddResult struct {
	ID        string `json:"id" jsonschema_description:"ID of the new entry"`
	Persisted bool   `json:"persisted" jsonschema_description:"False when the store rejected the entry"`
}

type HistoryListArgs struct {
	Type    string `mapstructure:"type"`
	Limit   int    `mapstructure:"limit"`
	Reverse bool   `mapstructure:"reverse"`
}

type HistoryListResult struct {
	Count   int              `json:"count" jsonschema_description:"Number of entries returned"`
	Entries []*history.Entry `json:"entries" jsonschema_description:"Matching entries"`
}

// Deps are the services the tools delegate to.
type Deps struct {
	History      *history.Manager
	Model        string
	MaxInputSize int
}

// Server wraps the helpers and exposes them as an MCP Server.
type Server struct {
	deps      Deps
	logger    *slog.Logger
	mcpServer *server.MCPServer
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// NewServer creates a new MCP Server instance.
func NewServer(deps Deps, opts ...Option) *Server {
	if deps.Model == "" {
		deps.Model = tokens.DefaultModel
	}
	s := &Server{
		deps:      deps,
		logger:    logging.NewNop(),
		mcpServer: server.NewMCPServer("agent2000-mcp", strings.TrimSpace(agent2000.Version)),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.registerTools()
	s.registerResources()
	return s
}

// ServeStdio starts the server on Stdin/Stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

// ServeSSE serves on the given port using SSE until ctx is cancelled.
func (s *Server) ServeSSE(ctx context.Context, port int) error {
	addr := fmt.Sprintf(":%d", port)
	baseURL := fmt.Sprintf("http://localhost:%d", port)

	sseServer := server.NewSSEServer(s.mcpServer, server.WithBaseURL(baseURL))

	mux := http.NewServeMux()
	mux.Handle("/sse", corsMiddleware(sseServer.SSEHandler()))
	mux.Handle("/message", corsMiddleware(sseServer.MessageHandler()))

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("MCP server listening (SSE)", "address", addr)
		serverErrors <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		s.logger.Info("shutdown signal received, stopping MCP server")
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("could not stop server gracefully: %w", err)
		}
		return nil
	}
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Requested-With")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) registerTools() {
	s.mcpServer.AddTool(mcp.NewTool("count_tokens",
		mcp.WithDescription("Count the tokens a text encodes to for a model."),
		mcp.WithString("text", mcp.Required(), mcp.Description("Text to measure")),
		mcp.WithString("model", mcp.Description("Model name, e.g. gpt-4 (optional)")),
		mcp.WithOutputSchema[CountResult](),
	), mcp.NewStructuredToolHandler(s.handleCountTokens))

	s.mcpServer.AddTool(mcp.NewTool("truncate_text",
		mcp.WithDescription("Cut a text down to a token budget, keeping the head or the tail."),
		mcp.WithString("text", mcp.Required(), mcp.Description("Text to truncate")),
		mcp.WithNumber("max_tokens", mcp.Required(), mcp.Min(0), mcp.Description("Token budget")),
		mcp.WithString("model", mcp.Description("Model name (optional)")),
		mcp.WithBoolean("from_end", mcp.Description("Keep the tail instead of the head")),
		mcp.WithOutputSchema[TruncateResult](),
	), mcp.NewStructuredToolHandler(s.handleTruncate))

	s.mcpServer.AddTool(mcp.NewTool("extract",
		mcp.WithDescription("Extract JSON, URLs, emails, phone numbers, hashtags and mentions from text."),
		mcp.WithString("text", mcp.Required(), mcp.Description("Text to scan")),
	), mcp.NewStructuredToolHandler(s.handleExtract))

	s.mcpServer.AddTool(mcp.NewTool("history_add",
		mcp.WithDescription("Record an entry in the history log."),
		mcp.WithString("type", mcp.Required(), mcp.Description("Entry type, e.g. message or tool_call")),
		mcp.WithObject("data", mcp.Description("Entry payload")),
		mcp.WithObject("metadata", mcp.Description("Free-form metadata")),
		mcp.WithOutputSchema[HistoryAddResult](),
	), mcp.NewStructuredToolHandler(s.handleHistoryAdd))

	s.mcpServer.AddTool(mcp.NewTool("history_list",
		mcp.WithDescription("List history entries, oldest first unless reverse is set."),
		mcp.WithString("type", mcp.Description("Only entries of this type")),
		mcp.WithNumber("limit", mcp.Min(0), mcp.Description("Maximum entries to return")),
		mcp.WithBoolean("reverse", mcp.Description("Newest first")),
		mcp.WithOutputSchema[HistoryListResult](),
	), mcp.NewStructuredToolHandler(s.handleHistoryList))
}

// decodeArgs maps tool arguments onto a tagged struct. JSON numbers arrive as
// float64 and are narrowed to the field type.
func decodeArgs(args map[string]any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		WeaklyTypedInput: true,
		ErrorUnused:      false,
	})
	if err != nil {
		return err
	}
	if err := dec.Decode(args); err != nil {
		return fmt.Errorf("invalid arguments: %w", err)
	}
	return nil
}

func (s *Server) clean(text string) (string, error) {
	res, err := sanitize.Clean(text, s.deps.MaxInputSize)
	if err != nil {
		s.logger.Warn("MCP: input rejected", "error", err, "size", res.Size, "limit", res.Limit)
		return "", fmt.Errorf("input rejected: %w", err)
	}
	if res.Stripped > 0 {
		s.logger.Debug("MCP: stripped control characters", "count", res.Stripped)
	}
	return res.Text, nil
}

func (s *Server) model(requested string) string {
	if requested != "" {
		return requested
	}
	return s.deps.Model
}

func (s *Server) handleCountTokens(ctx context.Context, request mcp.CallToolRequest, args map[string]any) (CountResult, error) {
	var in CountArgs
	if err := decodeArgs(args, &in); err != nil {
		return CountResult{}, err
	}
	text, err := s.clean(in.Text)
	if err != nil {
		return CountResult{}, err
	}
	model := s.model(in.Model)
	return CountResult{
		Tokens:      tokens.Count(text, model),
		Estimate:    tokens.Estimate(text),
		Model:       model,
		ContextSize: tokens.ContextSize(model),
	}, nil
}

func (s *Server) handleTruncate(ctx context.Context, request mcp.CallToolRequest, args map[string]any) (TruncateResult, error) {
	var in TruncateArgs
	if err := decodeArgs(args, &in); err != nil {
		return TruncateResult{}, err
	}
	if in.MaxTokens < 0 {
		return TruncateResult{}, errors.New("max_tokens must not be negative")
	}
	text, err := s.clean(in.Text)
	if err != nil {
		return TruncateResult{}, err
	}
	model := s.model(in.Model)
	out, err := tokens.Truncate(text, in.MaxTokens, model, in.FromEnd)
	if err != nil {
		return TruncateResult{}, fmt.Errorf("truncate failed: %w", err)
	}
	return TruncateResult{Text: out, Tokens: tokens.Count(out, model), Truncated: out != text}, nil
}

func (s *Server) handleExtract(ctx context.Context, request mcp.CallToolRequest, args map[string]any) (map[string]any, error) {
	var in ExtractArgs
	if err := decodeArgs(args, &in); err != nil {
		return nil, err
	}
	text, err := s.clean(in.Text)
	if err != nil {
		return nil, err
	}
	return extract.All(text), nil
}

func (s *Server) handleHistoryAdd(ctx context.Context, request mcp.CallToolRequest, args map[string]any) (HistoryAddResult, error) {
	if s.deps.History == nil {
		return HistoryAddResult{}, errors.New("history is not enabled")
	}
	var in HistoryAddArgs
	if err := decodeArgs(args, &in); err != nil {
		return HistoryAddResult{}, err
	}
	id, err := s.deps.History.Add(ctx, in.Type, in.Data, in.Metadata)
	if err != nil && id == "" {
		return HistoryAddResult{}, err
	}
	if err != nil {
		s.logger.Warn("MCP: history entry kept in memory only", "id", id, "error", err)
	}
	return HistoryAddResult{ID: id, Persisted: err == nil}, nil
}

func (s *Server) handleHistoryList(ctx context.Context, request mcp.CallToolRequest, args map[string]any) (HistoryListResult, error) {
	if s.deps.History == nil {
		return HistoryListResult{}, errors.New("history is not enabled")
	}
	var in HistoryListArgs
	if err := decodeArgs(args, &in); err != nil {
		return HistoryListResult{}, err
	}
	entries := s.deps.History.List(history.Query{Type: in.Type, Limit: in.Limit, Reverse: in.Reverse})
	return HistoryListResult{Count: len(entries), Entries: entries}, nil
}

func (s *Server) registerResources() {
	s.mcpServer.AddResource(mcp.NewResource(SystemURI, "Host information",
		mcp.WithMIMEType("application/json"),
	), func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		jsonBytes, err := json.Marshal(sysinfo.Platform(ctx))
		if err != nil {
			return nil, fmt.Errorf("failed to encode host information: %w", err)
		}
		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      SystemURI,
				MIMEType: "application/json",
				Text:     string(jsonBytes),
			},
		}, nil
	})
}
