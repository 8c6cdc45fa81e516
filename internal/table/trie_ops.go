package table

import (
	"fmt"
	"path/filepath"

	"github.com/portabletab/portabletab/internal/codec"
	"github.com/portabletab/portabletab/internal/trie"
)

// KeyFunc maps an attribute value to zero or more index keys. A nil
// KeyFunc defaults to fmt.Sprint(value), dropping the empty string.
type KeyFunc func(value any) []string

// FilterFunc decides whether a record should be indexed. A nil
// FilterFunc indexes every record.
type FilterFunc func(rec *codec.Record2) bool

func (m *Manager) triePath(attr string) string {
	return filepath.Join(m.Dir(), attr+".trie")
}

// CreateTrie builds a trie index over attr. It verifies attr exists on
// the first record before scanning the whole table.
func (m *Manager) CreateTrie(attr string, keyFn KeyFunc, filterFn FilterFunc) error {
	count, err := m.Count()
	if err != nil {
		return err
	}

	if count > 0 {
		first, err := m.Get(0)
		if err != nil {
			return err
		}
		if _, err := first.Get(attr); err != nil {
			return fmt.Errorf("table: attribute %q doesn't exist: %w", attr, ErrInvalidArgument)
		}
	}

	var entries []trie.Entry
	for pos := 0; pos < count; pos++ {
		rec, err := m.Get(pos)
		if err != nil {
			return err
		}
		if filterFn != nil && !filterFn(rec) {
			continue
		}
		v, err := rec.Get(attr)
		if err != nil {
			return err
		}

		var keys []string
		if keyFn == nil {
			keys = []string{fmt.Sprint(v)}
		} else {
			keys = keyFn(v)
		}
		for _, k := range keys {
			if k == "" {
				continue
			}
			entries = append(entries, trie.Entry{Key: k, Ordinals: []uint32{uint32(pos)}})
		}
	}

	if err := trie.Build(m.triePath(attr), entries); err != nil {
		return fmt.Errorf("table: build trie on %s: %w", attr, err)
	}

	delete(m.tries, attr)
	_, err = m.OpenTrie(attr)
	return err
}

// OpenTrie mmaps the index for attr, caching the handle per attribute.
func (m *Manager) OpenTrie(attr string) (*trie.Trie, error) {
	if t, ok := m.tries[attr]; ok {
		return t, nil
	}
	path := m.triePath(attr)
	t, err := trie.Open(path)
	if err != nil {
		return nil, fmt.Errorf("table: %w: %v", ErrNoIndex, err)
	}
	m.tries[attr] = t
	return t, nil
}

// DeleteTrie removes the index file for attr and drops any cached
// handle.
func (m *Manager) DeleteTrie(attr string) error {
	if t, ok := m.tries[attr]; ok {
		t.Close()
		delete(m.tries, attr)
	}
	path := m.triePath(attr)
	if err := removeIfExists(path); err != nil {
		return fmt.Errorf("table: delete trie on %s: %w", attr, err)
	}
	return nil
}

// SearchMode selects one of the three index lookup modes.
type SearchMode int

const (
	SearchExact SearchMode = iota
	SearchPrefixes
	SearchKeys
)

// Search resolves value against the index on attr using mode, then
// materializes the matching ordinals into record views via Get. Results
// are de-duplicated; callers must not depend on a particular order.
func (m *Manager) Search(attr, value string, mode SearchMode) ([]*codec.Record2, error) {
	t, err := m.OpenTrie(attr)
	if err != nil {
		return nil, err
	}

	var ordinals []uint32
	switch mode {
	case SearchExact:
		ordinals = t.Exact(value)
	case SearchPrefixes:
		ordinals = t.Prefixes(value)
	case SearchKeys:
		ordinals = t.Keys(value)
	default:
		return nil, fmt.Errorf("table: unknown search mode %v: %w", mode, ErrInvalidArgument)
	}

	out := make([]*codec.Record2, 0, len(ordinals))
	for _, o := range ordinals {
		rec, err := m.Get(int(o))
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}
