package portabletab

import (
	"errors"
	"fmt"

	"github.com/portabletab/portabletab/internal/codec"
	"github.com/portabletab/portabletab/internal/table"
)

// Table is a handle to one table directory, obtained from Database.Table.
// It is not safe for concurrent use from more than one goroutine, the
// same restriction the table manager it wraps places on itself.
type Table struct {
	mgr *table.Manager
}

// Dir returns the table's directory path.
func (t *Table) Dir() string { return t.mgr.Dir() }

// Create creates the table's directory, schema file, and zero-count
// descriptor. schemaText is the struct body text the table's record
// type and any peer structs are declared in; recordType names the
// struct within it that describes one row.
func (t *Table) Create(schemaText, recordType string) (string, error) {
	dir, err := t.mgr.Create(schemaText, recordType)
	return dir, translateErr(err)
}

// Delete recursively removes the table directory. Idempotent when absent.
func (t *Table) Delete() error {
	return translateErr(t.mgr.Delete())
}

// Count returns the table's record count from its descriptor.
func (t *Table) Count() (int, error) {
	n, err := t.mgr.Count()
	return n, translateErr(err)
}

// Get returns a zero-copy view of the record at pos.
func (t *Table) Get(pos int) (*RecordView, error) {
	rv, err := t.mgr.Get(pos)
	return rv, translateErr(err)
}

// Append appends records in input order and returns how many input
// records it consumed. If a page write fails it returns early without
// advancing the descriptor's count, so none of the consumed records are
// counted as appended.
func (t *Table) Append(records []Record) (int, error) {
	n, err := t.mgr.Append(toCodecRecords(records))
	return n, translateErr(err)
}

// Update applies patches (ordinal -> field name/value pairs) to records
// already on disk.
func (t *Table) Update(patches map[int]map[string]any) error {
	return translateErr(t.mgr.Update(patches))
}

// Iterate returns a Cursor over [offset, offset+limit).
func (t *Table) Iterate(offset, limit int) (*Cursor, error) {
	c, err := t.mgr.Iterate(offset, limit)
	if err != nil {
		return nil, translateErr(err)
	}
	return &Cursor{c: c}, nil
}

// KeyFunc maps an attribute value to zero or more index keys.
type KeyFunc = table.KeyFunc

// FilterFunc decides whether a record should be indexed.
type FilterFunc = table.FilterFunc

// SearchMode selects one of the three index lookup modes.
type SearchMode = table.SearchMode

const (
	SearchExact    = table.SearchExact
	SearchPrefixes = table.SearchPrefixes
	SearchKeys     = table.SearchKeys
)

// CreateTrie builds a string-keyed index over attr.
func (t *Table) CreateTrie(attr string, keyFn KeyFunc, filterFn FilterFunc) error {
	return translateErr(t.mgr.CreateTrie(attr, keyFn, filterFn))
}

// DeleteTrie removes the index file for attr.
func (t *Table) DeleteTrie(attr string) error {
	return translateErr(t.mgr.DeleteTrie(attr))
}

// Search resolves value against the index on attr using mode.
func (t *Table) Search(attr, value string, mode SearchMode) ([]*RecordView, error) {
	recs, err := t.mgr.Search(attr, value, mode)
	return recs, translateErr(err)
}

// Unload releases this table's open trie handles and unbinds its schema
// from the shared registry. The underlying mmap page cache, a
// process-wide resource, is untouched.
func (t *Table) Unload() {
	t.mgr.Unload()
}

// Cursor is the lazy, finite, non-restartable sequence Iterate returns.
type Cursor struct {
	c *table.Cursor
}

// Next advances the cursor, returning false once exhausted or on error.
func (c *Cursor) Next() bool { return c.c.Next() }

// Record returns the record at the cursor's current position.
func (c *Cursor) Record() (*RecordView, error) {
	rv, err := c.c.Record()
	return rv, translateErr(err)
}

// Err returns the error, if any, that stopped iteration early.
func (c *Cursor) Err() error { return translateErr(c.c.Err()) }

// Close releases the cursor's private mapping.
func (c *Cursor) Close() { c.c.Close() }

func toCodecRecords(records []Record) []codec.Record {
	out := make([]codec.Record, len(records))
	for i, r := range records {
		out[i] = codec.Record(r)
	}
	return out
}

// translateErr maps the internal table package's sentinel errors onto
// this package's public taxonomy (errors.go), preserving the original
// message for diagnostics.
func translateErr(err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, table.ErrNotFound):
		return fmt.Errorf("%w: %v", ErrNotFound, err)
	case errors.Is(err, table.ErrNoIndex):
		return fmt.Errorf("%w: %v", ErrNoIndex, err)
	case errors.Is(err, table.ErrInvalidSchema):
		return fmt.Errorf("%w: %v", ErrInvalidSchema, err)
	case errors.Is(err, table.ErrInvalidArgument):
		return fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	case errors.Is(err, table.ErrCorruption):
		return fmt.Errorf("%w: %v", ErrCorruption, err)
	default:
		return err
	}
}
