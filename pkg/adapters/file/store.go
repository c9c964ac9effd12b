// Package file stores history entries as JSON files, one per entry, named
// <timestamp>_<id>.json.
package file

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/agent2000/agent2000/internal/logging"
	"github.com/agent2000/agent2000/pkg/history"
)

// DefaultPath is used when New is given an empty path.
var DefaultPath = filepath.Join("data", "history")

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger used to report unreadable files.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// Store implements history.Store on the local filesystem.
type Store struct {
	BasePath string
	logger   *slog.Logger
}

// New creates a Store rooted at basePath. The directory is created on first Save.
func New(basePath string, opts ...Option) *Store {
	if basePath == "" {
		basePath = DefaultPath
	}
	s := &Store{BasePath: basePath, logger: logging.NewNop()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Save writes the entry atomically: a temp file in the same directory is
// synced and then renamed over the destination. Files of an older version of
// the same entry are removed.
func (s *Store) Save(ctx context.Context, e *history.Entry) error {
	if e.ID == "" {
		return fmt.Errorf("%w: id cannot be empty", history.ErrInvalidEntry)
	}
	if err := os.MkdirAll(s.BasePath, 0755); err != nil {
		return fmt.Errorf("failed to ensure history directory: %w", err)
	}

	data, err := json.MarshalIndent(e, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal entry: %w", err)
	}

	name := e.FileName()
	destPath := filepath.Join(s.BasePath, name)

	tmpFile, err := os.CreateTemp(s.BasePath, "tmp-"+e.ID+"-*.json.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()
	defer func() {
		_ = tmpFile.Close()
		_ = os.Remove(tmpPath)
	}()

	if _, err := tmpFile.Write(data); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmpFile.Sync(); err != nil {
		return fmt.Errorf("failed to fsync temp file: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	// Windows cannot rename over an existing file.
	if _, err := os.Stat(destPath); err == nil {
		if err := os.Remove(destPath); err != nil {
			return fmt.Errorf("failed to replace entry file: %w", err)
		}
	}
	if err := os.Rename(tmpPath, destPath); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}

	stale, err := s.filesFor(e.ID)
	if err != nil {
		return err
	}
	for _, p := range stale {
		if filepath.Base(p) == name {
			continue
		}
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to remove stale entry file: %w", err)
		}
	}
	return nil
}

// LoadAll reads every entry file. Files that cannot be read or decoded are
// logged and skipped.
func (s *Store) LoadAll(ctx context.Context) ([]*history.Entry, error) {
	names, err := s.entryFiles()
	if err != nil {
		return nil, err
	}

	out := make([]*history.Entry, 0, len(names))
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		path := filepath.Join(s.BasePath, name)
		data, err := os.ReadFile(path)
		if err != nil {
			s.logger.Warn("skipping unreadable history file", "path", path, "error", err)
			continue
		}
		var e history.Entry
		if err := json.Unmarshal(data, &e); err != nil {
			s.logger.Warn("skipping malformed history file", "path", path, "error", err)
			continue
		}
		out = append(out, &e)
	}
	return out, nil
}

// Delete removes every file belonging to id.
func (s *Store) Delete(ctx context.Context, id string) error {
	if id == "" {
		return fmt.Errorf("%w: id cannot be empty", history.ErrInvalidEntry)
	}
	paths, err := s.filesFor(id)
	if err != nil {
		return err
	}
	for _, p := range paths {
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to delete entry file: %w", err)
		}
	}
	return nil
}

// Clear removes every entry file. Other files in the directory are left alone.
func (s *Store) Clear(ctx context.Context) error {
	names, err := s.entryFiles()
	if err != nil {
		return err
	}
	for _, name := range names {
		if err := os.Remove(filepath.Join(s.BasePath, name)); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to delete entry file: %w", err)
		}
	}
	return nil
}

func (s *Store) entryFiles() ([]string, error) {
	dirEntries, err := os.ReadDir(s.BasePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to list history directory: %w", err)
	}
	var names []string
	for _, de := range dirEntries {
		if de.IsDir() || filepath.Ext(de.Name()) != ".json" || strings.HasPrefix(de.Name(), "tmp-") {
			continue
		}
		names = append(names, de.Name())
	}
	return names, nil
}

func (s *Store) filesFor(id string) ([]string, error) {
	names, err := s.entryFiles()
	if err != nil {
		return nil, err
	}
	suffix := "_" + id + ".json"
	var paths []string
	for _, name := range names {
		if strings.HasSuffix(name, suffix) {
			paths = append(paths, filepath.Join(s.BasePath, name))
		}
	}
	return paths, nil
}
