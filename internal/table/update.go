package table

import (
	"fmt"

	"github.com/portabletab/portabletab/internal/codec"
	"github.com/portabletab/portabletab/internal/pagefile"
)

// Update applies patches (ordinal -> field name/value pairs) to records
// already written to disk, touching each affected page at most once by
// sorting patches by ordinal first. Slow relative to Append; should not
// be used on a hot path.
func (m *Manager) Update(patches map[int]map[string]any) error {
	d, err := m.loadDescriptor()
	if err != nil {
		return err
	}
	if _, err := m.recordStruct(d); err != nil {
		return err
	}

	keys := sortedPatchKeys(patches)
	for _, k := range keys {
		if k < 0 || k >= d.Count {
			return fmt.Errorf("table: position %d out of range [0,%d): %w", k, d.Count, ErrInvalidArgument)
		}
	}

	currentPage := -1
	var records []codec.Record

	flush := func() error {
		if currentPage < 0 {
			return nil
		}
		return m.writePage(currentPage, records)
	}

	for _, pos := range keys {
		page := pos / pagefile.Capacity
		if page != currentPage {
			if err := flush(); err != nil {
				return err
			}
			n := pagefile.Capacity
			if page == d.Count/pagefile.Capacity {
				n = d.Count % pagefile.Capacity
			}
			records, err = m.readPageAsRecords(page, n)
			if err != nil {
				return err
			}
			currentPage = page
		}

		posInPage := pos % pagefile.Capacity
		rec := records[posInPage]
		if rec == nil {
			rec = codec.Record{}
		}
		for field, value := range patches[pos] {
			rec[field] = value
		}
		records[posInPage] = rec
	}

	return flush()
}
