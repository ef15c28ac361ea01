package history

import (
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/mbeckert/papagei/pkg/logging"
)

// Store is a durable, newest-first log of transcript records backed by a
// single JSON document. Every mutation rewrites the whole document through
// a temp file and an atomic rename, so readers and restarts only ever see
// a complete document. Mutations are serialized by a single writer lock;
// the store knows nothing about sessions.
type Store struct {
	mu     sync.Mutex
	path   string
	logger *slog.Logger
}

// NewStore creates a store persisting to path. The file is created on the
// first mutation.
func NewStore(path string, logger *slog.Logger) *Store {
	return &Store{
		path:   path,
		logger: logging.NewComponentLogger(logger, "history"),
	}
}

// Append inserts a record at the head and persists before returning.
func (s *Store) Append(rec Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	items := s.load()
	items = append([]Record{rec}, items...)
	return s.write(items)
}

// List returns a newest-first page and the total count. An offset at or
// past the end yields an empty page, never an error.
func (s *Store) List(offset, limit int) ([]Record, int, error) {
	if offset < 0 {
		offset = 0
	}
	if limit < 0 {
		limit = 0
	}

	s.mu.Lock()
	items := s.load()
	s.mu.Unlock()

	total := len(items)
	if offset >= total {
		return []Record{}, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	page := make([]Record, end-offset)
	copy(page, items[offset:end])
	return page, total, nil
}

// All returns the full newest-first snapshot.
func (s *Store) All() ([]Record, error) {
	s.mu.Lock()
	items := s.load()
	s.mu.Unlock()
	return items, nil
}

// DeleteByID removes a record and persists. An absent id is not an error;
// it reports removed=false.
func (s *Store) DeleteByID(id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	items := s.load()
	next := items[:0]
	for _, it := range items {
		if it.ID != id {
			next = append(next, it)
		}
	}
	if len(next) == len(items) {
		return false, nil
	}
	if err := s.write(next); err != nil {
		return false, err
	}
	return true, nil
}

// Prune removes records older than retentionDays. Records whose CreatedAt
// does not parse are kept. A record exactly at the boundary is kept. A
// non-positive retention disables pruning. Safe to run offline against the
// same document the live process uses, and idempotent.
func (s *Store) Prune(retentionDays int) (int, error) {
	if retentionDays <= 0 {
		return 0, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	items := s.load()
	cutoff := time.Now().UTC().AddDate(0, 0, -retentionDays)
	kept := make([]Record, 0, len(items))
	for _, it := range items {
		createdAt, err := time.Parse(time.RFC3339, it.CreatedAt)
		if err != nil {
			kept = append(kept, it)
			continue
		}
		if createdAt.Before(cutoff) {
			continue
		}
		kept = append(kept, it)
	}
	removed := len(items) - len(kept)
	if removed == 0 {
		return 0, nil
	}
	if err := s.write(kept); err != nil {
		return 0, err
	}
	s.logger.Info("history_pruned", "removed", removed, "retention_days", retentionDays)
	return removed, nil
}

// load reads the current document. A missing file is an empty history; an
// unreadable document is logged and treated as empty rather than wedging
// every endpoint.
func (s *Store) load() []Record {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			s.logger.Warn("history_read_failed", "path", s.path, "error", err)
		}
		return []Record{}
	}
	var items []Record
	if err := json.Unmarshal(data, &items); err != nil {
		s.logger.Warn("history_parse_failed", "path", s.path, "error", err)
		return []Record{}
	}
	if items == nil {
		items = []Record{}
	}
	return items
}

// write replaces the document atomically: marshal, write a temp file in the
// same directory, then rename over the old document.
func (s *Store) write(items []Record) (err error) {
	data, err := json.MarshalIndent(items, "", "  ")
	if err != nil {
		return err
	}
	if err = os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), "history-*.json.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer func() {
		if err != nil {
			os.Remove(tmpName)
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err = tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, s.path)
}
