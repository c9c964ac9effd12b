package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/agent2000/agent2000/pkg/apperr"
	"github.com/agent2000/agent2000/pkg/extract"
	"github.com/agent2000/agent2000/pkg/history"
	"github.com/agent2000/agent2000/pkg/sanitize"
	"github.com/agent2000/agent2000/pkg/sysinfo"
	"github.com/agent2000/agent2000/pkg/tokens"
	"github.com/go-chi/chi/v5"
)

type CountRequest struct {
	Text  string `json:"text"`
	Model string `json:"model,omitempty"`
}

type CountResponse struct {
	Tokens      int    `json:"tokens"`
	Estimate    int    `json:"estimate"`
	Model       string `json:"model"`
	ContextSize int    `json:"context_size"`
}

type TruncateRequest struct {
	Text      string `json:"text"`
	MaxTokens int    `json:"max_tokens"`
	Model     string `json:"model,omitempty"`
	FromEnd   bool   `json:"from_end,omitempty"`
}

type TruncateResponse struct {
	Text      string `json:"text"`
	Tokens    int    `json:"tokens"`
	Truncated bool   `json:"truncated"`
}

type TextRequest struct {
	Text string `json:"text"`
}

type AddEntryRequest struct {
	Type     string         `json:"type"`
	Data     map[string]any `json:"data,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

type AddEntryResponse struct {
	ID        string `json:"id"`
	Persisted bool   `json:"persisted"`
}

type EntryList struct {
	Count   int              `json:"count"`
	Entries []*history.Entry `json:"entries"`
}

func decode(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return apperr.Validation("invalid request body", apperr.WithCause(err))
	}
	return nil
}

func (s *Server) cleanText(text string) (string, error) {
	res, err := sanitize.Clean(text, s.deps.MaxInputSize)
	var rej *sanitize.Error
	if errors.As(err, &rej) {
		return "", apperr.Validation(err.Error(), apperr.WithCause(err), apperr.WithDetails(rej.Details()))
	}
	if res.Stripped > 0 {
		s.logger.Debug("HTTP: stripped control characters", "count", res.Stripped, "size", res.Size)
	}
	return res.Text, nil
}

func (s *Server) model(requested string) string {
	if requested != "" {
		return requested
	}
	return s.deps.Model
}

// CountTokens handles POST /tokens/count.
func (s *Server) CountTokens(w http.ResponseWriter, r *http.Request) {
	var body CountRequest
	if err := decode(r, &body); err != nil {
		s.writeError(w, err)
		return
	}
	text, err := s.cleanText(body.Text)
	if err != nil {
		s.writeError(w, err)
		return
	}
	model := s.model(body.Model)
	s.writeJSON(w, http.StatusOK, CountResponse{
		Tokens:      tokens.Count(text, model),
		Estimate:    tokens.Estimate(text),
		Model:       model,
		ContextSize: tokens.ContextSize(model),
	})
}

// TruncateText handles POST /tokens/truncate.
func (s *Server) TruncateText(w http.ResponseWriter, r *http.Request) {
	var body TruncateRequest
	if err := decode(r, &body); err != nil {
		s.writeError(w, err)
		return
	}
	text, err := s.cleanText(body.Text)
	if err != nil {
		s.writeError(w, err)
		return
	}
	model := s.model(body.Model)
	out, err := tokens.Truncate(text, body.MaxTokens, model, body.FromEnd)
	if err != nil {
		s.writeError(w, apperr.ServiceUnavailable("tokenizer", apperr.WithCause(err)))
		return
	}
	s.writeJSON(w, http.StatusOK, TruncateResponse{
		Text:      out,
		Tokens:    tokens.Count(out, model),
		Truncated: out != text,
	})
}

// Extract handles POST /extract.
func (s *Server) Extract(w http.ResponseWriter, r *http.Request) {
	var body TextRequest
	if err := decode(r, &body); err != nil {
		s.writeError(w, err)
		return
	}
	text, err := s.cleanText(body.Text)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, extract.All(text))
}

// ListHistory handles GET /history.
func (s *Server) ListHistory(w http.ResponseWriter, r *http.Request) {
	q := history.Query{Type: r.URL.Query().Get("type")}
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			s.writeError(w, apperr.Validation("limit must be a non-negative integer", apperr.WithDetail("limit", v)))
			return
		}
		q.Limit = n
	}
	if v := r.URL.Query().Get("reverse"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			s.writeError(w, apperr.Validation("reverse must be a boolean", apperr.WithDetail("reverse", v)))
			return
		}
		q.Reverse = b
	}
	entries := s.deps.History.List(q)
	s.writeJSON(w, http.StatusOK, EntryList{Count: len(entries), Entries: entries})
}

// AddHistory handles POST /history. A store failure still records the entry in
// memory; the response reports it as not persisted.
func (s *Server) AddHistory(w http.ResponseWriter, r *http.Request) {
	var body AddEntryRequest
	if err := decode(r, &body); err != nil {
		s.writeError(w, err)
		return
	}
	id, err := s.deps.History.Add(r.Context(), body.Type, body.Data, body.Metadata)
	if err != nil && id == "" {
		if errors.Is(err, history.ErrInvalidEntry) {
			s.writeError(w, apperr.Validation(err.Error(), apperr.WithCause(err)))
			return
		}
		s.writeError(w, err)
		return
	}
	if err != nil {
		s.logger.Warn("history entry kept in memory only", "id", id, "error", err)
	}
	s.writeJSON(w, http.StatusCreated, AddEntryResponse{ID: id, Persisted: err == nil})
}

// ClearHistory handles DELETE /history.
func (s *Server) ClearHistory(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.History.Clear(r.Context()); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetHistoryEntry handles GET /history/{id}.
func (s *Server) GetHistoryEntry(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	e, err := s.deps.History.Get(id)
	if err != nil {
		if errors.Is(err, history.ErrNotFound) {
			s.writeError(w, apperr.NotFound("history entry", apperr.WithDetail("id", id), apperr.WithCause(err)))
			return
		}
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, e)
}

// HistoryEvents handles GET /history/events (SSE). Each new entry is sent as
// one data line; ?type= restricts the stream to one entry type.
func (s *Server) HistoryEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		s.writeError(w, errors.New("streaming not supported"))
		return
	}

	topic := r.URL.Query().Get("type")
	ch, cancel := s.Streams.Subscribe(topic)
	defer cancel()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	fmt.Fprintf(w, "event: ping\ndata: connected\n\n")
	flusher.Flush()

	s.logger.Info("SSE: client subscribed", "type", topic)
	ticker := time.NewTicker(keepAlive)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			s.logger.Info("SSE: client disconnected", "type", topic)
			return
		case <-ticker.C:
			fmt.Fprintf(w, ": keep-alive\n\n")
			flusher.Flush()
		case msg, ok := <-ch:
			if !ok {
				return
			}
			fmt.Fprintf(w, "data: %s\n\n", msg)
			flusher.Flush()
		}
	}
}

// GetRateLimits handles GET /ratelimit.
func (s *Server) GetRateLimits(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.deps.Limiters.Stats())
}

// GetSystem handles GET /system.
func (s *Server) GetSystem(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, sysinfo.Platform(r.Context()))
}
