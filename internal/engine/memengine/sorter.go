package memengine

import (
	"context"
	"sort"
	"sync"

	"github.com/tupldb/remote/internal/engine"
	"github.com/tupldb/remote/internal/wire"
)

// sorterEntry is one ingested key/value pair awaiting Finish/FinishScan.
type sorterEntry struct {
	key, value []byte
}

// sorter buffers everything in memory and sorts on Finish; there is no
// external merge phase since the reference engine has no memory budget
// to spill against.
type sorter struct {
	db      *Database
	mu      sync.Mutex
	entries []sorterEntry
	total   int64
	done    int64
}

func newSorter(db *Database) *sorter {
	return &sorter{db: db}
}

func (s *sorter) Add(ctx context.Context, key, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, sorterEntry{
		key:   append([]byte(nil), key...),
		value: append([]byte(nil), value...),
	})
	s.total++
	return nil
}

func (s *sorter) AddBatch(ctx context.Context, keys, values [][]byte) error {
	if len(keys) != len(values) {
		return engine.IllegalStateError("sorter batch key/value count mismatch")
	}
	for i := range keys {
		if err := s.Add(ctx, keys[i], values[i]); err != nil {
			return err
		}
	}
	return nil
}

func (s *sorter) AddAll(ctx context.Context, scanner engine.Scanner) error {
	for {
		row := scanner.Row()
		if row == nil {
			more, err := scanner.Step(ctx)
			if err != nil {
				return err
			}
			if !more {
				return nil
			}
			continue
		}
		if err := s.Add(ctx, row, nil); err != nil {
			return err
		}
		more, err := scanner.Step(ctx)
		if err != nil {
			return err
		}
		if !more {
			return nil
		}
	}
}

func (s *sorter) sortedEntries() []sorterEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	entries := append([]sorterEntry(nil), s.entries...)
	sort.Slice(entries, func(i, j int) bool {
		return string(entries[i].key) < string(entries[j].key)
	})
	return entries
}

func (s *sorter) Finish(ctx context.Context) (engine.Index, error) {
	entries := s.sortedEntries()
	idx, err := s.db.NewTemporaryIndex(ctx)
	if err != nil {
		return nil, err
	}
	mi := idx.(*Index)
	mi.mu.Lock()
	for _, e := range entries {
		mi.putLocked(e.key, e.value)
	}
	mi.mu.Unlock()
	s.done = s.total
	return idx, nil
}

func (s *sorter) FinishScan(ctx context.Context, ordering wire.Ordering) (engine.Scanner, error) {
	entries := s.sortedEntries()
	if ordering == wire.OrderingDescending {
		for i, j := 0, len(entries)-1; i < j; i, j = i+1, j-1 {
			entries[i], entries[j] = entries[j], entries[i]
		}
	}
	s.done = s.total
	return &sorterScanner{entries: entries, pos: -1}, nil
}

func (s *sorter) Progress() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.total == 0 {
		return 1
	}
	return float64(s.done) / float64(s.total)
}

func (s *sorter) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = nil
	s.total = 0
	s.done = 0
	return nil
}

type sorterScanner struct {
	entries []sorterEntry
	pos     int
}

func (s *sorterScanner) Row() []byte {
	if s.pos < 0 || s.pos >= len(s.entries) {
		return nil
	}
	return s.entries[s.pos].key
}

func (s *sorterScanner) Step(ctx context.Context) (bool, error) {
	s.pos++
	return s.pos < len(s.entries), nil
}

func (s *sorterScanner) Close(ctx context.Context) error { return nil }
