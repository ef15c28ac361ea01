package history

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"pgregory.net/rapid"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	return NewStore(filepath.Join(t.TempDir(), "history.json"), nil)
}

func TestAppendNewestFirst(t *testing.T) {
	s := newTestStore(t)
	for i := 0; i < 3; i++ {
		if err := s.Append(NewRecord(fmt.Sprintf("take %d", i), 1)); err != nil {
			t.Fatalf("append: %v", err)
		}
	}
	items, err := s.All()
	if err != nil {
		t.Fatalf("all: %v", err)
	}
	if len(items) != 3 {
		t.Fatalf("expected 3 items, got %d", len(items))
	}
	if items[0].Text != "take 2" || items[2].Text != "take 0" {
		t.Fatalf("expected newest-first order, got %q .. %q", items[0].Text, items[2].Text)
	}
}

func TestListPagination(t *testing.T) {
	s := newTestStore(t)
	for i := 0; i < 7; i++ {
		if err := s.Append(NewRecord(fmt.Sprintf("take %d", i), float64(i))); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	page, total, err := s.List(0, 5)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if total != 7 || len(page) != 5 {
		t.Fatalf("expected 5 of 7, got %d of %d", len(page), total)
	}
	if page[0].Text != "take 6" {
		t.Fatalf("expected newest record first, got %q", page[0].Text)
	}

	rest, total, err := s.List(5, 5)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if total != 7 || len(rest) != 2 {
		t.Fatalf("expected remaining 2 of 7, got %d of %d", len(rest), total)
	}
	if rest[1].Text != "take 0" {
		t.Fatalf("expected oldest record last, got %q", rest[1].Text)
	}
}

func TestListPastEnd(t *testing.T) {
	s := newTestStore(t)
	if err := s.Append(NewRecord("only", 1)); err != nil {
		t.Fatalf("append: %v", err)
	}
	page, total, err := s.List(10, 5)
	if err != nil {
		t.Fatalf("list past end should not error: %v", err)
	}
	if total != 1 || len(page) != 0 {
		t.Fatalf("expected empty page with total 1, got %d items total %d", len(page), total)
	}
}

func TestDeleteIdempotent(t *testing.T) {
	s := newTestStore(t)
	rec := NewRecord("to delete", 2)
	if err := s.Append(rec); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := s.Append(NewRecord("to keep", 3)); err != nil {
		t.Fatalf("append: %v", err)
	}

	removed, err := s.DeleteByID(rec.ID)
	if err != nil || !removed {
		t.Fatalf("expected removed=true, got %v err=%v", removed, err)
	}
	removed, err = s.DeleteByID(rec.ID)
	if err != nil || removed {
		t.Fatalf("expected removed=false on second delete, got %v err=%v", removed, err)
	}

	_, total, err := s.List(0, 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if total != 1 {
		t.Fatalf("expected total 1 after delete, got %d", total)
	}
}

func TestPruneRetention(t *testing.T) {
	s := newTestStore(t)
	old := NewRecord("stale", 1)
	old.CreatedAt = time.Now().UTC().AddDate(0, 0, -10).Format(time.RFC3339)
	recent := NewRecord("fresh", 1)
	nearBoundary := NewRecord("boundary", 1)
	nearBoundary.CreatedAt = time.Now().UTC().AddDate(0, 0, -5).Add(time.Minute).Format(time.RFC3339)
	unparseable := NewRecord("odd", 1)
	unparseable.CreatedAt = "not-a-timestamp"

	for _, rec := range []Record{old, recent, nearBoundary, unparseable} {
		if err := s.Append(rec); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	removed, err := s.Prune(5)
	if err != nil {
		t.Fatalf("prune: %v", err)
	}
	if removed != 1 {
		t.Fatalf("expected 1 removed, got %d", removed)
	}

	items, _ := s.All()
	if len(items) != 3 {
		t.Fatalf("expected 3 survivors, got %d", len(items))
	}
	for _, it := range items {
		if it.Text == "stale" {
			t.Fatalf("stale record survived prune")
		}
	}

	// Second run with nothing newly expired is a no-op.
	removed, err = s.Prune(5)
	if err != nil {
		t.Fatalf("prune: %v", err)
	}
	if removed != 0 {
		t.Fatalf("expected idempotent second prune, removed %d", removed)
	}
}

func TestPruneDisabled(t *testing.T) {
	s := newTestStore(t)
	old := NewRecord("ancient", 1)
	old.CreatedAt = time.Now().UTC().AddDate(-1, 0, 0).Format(time.RFC3339)
	if err := s.Append(old); err != nil {
		t.Fatalf("append: %v", err)
	}
	removed, err := s.Prune(0)
	if err != nil || removed != 0 {
		t.Fatalf("expected disabled prune to be a no-op, removed=%d err=%v", removed, err)
	}
}

func TestCorruptDocumentFailsOpen(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "history.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatalf("seed corrupt file: %v", err)
	}
	s := NewStore(path, nil)

	items, err := s.All()
	if err != nil {
		t.Fatalf("all: %v", err)
	}
	if len(items) != 0 {
		t.Fatalf("expected empty history on corrupt document, got %d", len(items))
	}
	if err := s.Append(NewRecord("recovered", 1)); err != nil {
		t.Fatalf("append after corruption: %v", err)
	}
	items, _ = s.All()
	if len(items) != 1 {
		t.Fatalf("expected 1 item after recovery, got %d", len(items))
	}
}

func TestCrashMidWriteKeepsOldDocument(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "history.json")
	s := NewStore(path, nil)
	if err := s.Append(NewRecord("durable", 1)); err != nil {
		t.Fatalf("append: %v", err)
	}

	// A crash between temp write and rename leaves only a stray temp file.
	stray := filepath.Join(dir, "history-crash.json.tmp")
	if err := os.WriteFile(stray, []byte(`[{"id":"half`), 0o644); err != nil {
		t.Fatalf("seed stray temp: %v", err)
	}

	reopened := NewStore(path, nil)
	items, err := reopened.All()
	if err != nil {
		t.Fatalf("all: %v", err)
	}
	if len(items) != 1 || items[0].Text != "durable" {
		t.Fatalf("expected pre-crash document intact, got %+v", items)
	}
}

// Property: concatenating fixed-size pages reconstructs the full snapshot
// with no duplicates or gaps, for any history size and page size.
func TestListChunksReconstructAll(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		s := NewStore(filepath.Join(t.TempDir(), "history.json"), nil)
		n := rapid.IntRange(0, 25).Draw(rt, "n")
		for i := 0; i < n; i++ {
			if err := s.Append(NewRecord(fmt.Sprintf("take %d", i), float64(i))); err != nil {
				rt.Fatalf("append: %v", err)
			}
		}
		k := rapid.IntRange(1, 8).Draw(rt, "k")

		var paged []Record
		for offset := 0; ; offset += k {
			page, total, err := s.List(offset, k)
			if err != nil {
				rt.Fatalf("list: %v", err)
			}
			if total != n {
				rt.Fatalf("expected total %d, got %d", n, total)
			}
			if len(page) == 0 {
				break
			}
			paged = append(paged, page...)
		}

		all, err := s.All()
		if err != nil {
			rt.Fatalf("all: %v", err)
		}
		if len(paged) != len(all) {
			rt.Fatalf("expected %d paged items, got %d", len(all), len(paged))
		}
		for i := range all {
			if paged[i].ID != all[i].ID {
				rt.Fatalf("page reconstruction mismatch at %d", i)
			}
		}
	})
}
