package table

import (
	"fmt"

	"github.com/portabletab/portabletab/internal/codec"
	"github.com/portabletab/portabletab/internal/pagefile"
)

// Append appends records in input order: the current tail page (if any)
// is read into an owned buffer, incoming records are pushed until the
// buffer reaches PAGE_CAPACITY (at which point it is flushed and a new
// page begins), and the descriptor's count is persisted last so a crash
// mid-append never exposes a partial count.
func (m *Manager) Append(records []codec.Record) (int, error) {
	d, err := m.loadDescriptor()
	if err != nil {
		return 0, err
	}
	if _, err := m.recordStruct(d); err != nil {
		return 0, err
	}

	curPos := d.Count
	page := curPos / pagefile.Capacity
	pageStart := page * pagefile.Capacity

	var buffer []codec.Record
	if curPos-pageStart > 0 {
		buffer, err = m.readPageAsRecords(page, curPos-pageStart)
		if err != nil {
			return 0, err
		}
	}

	consumed := 0
	for _, rec := range records {
		buffer = append(buffer, rec)
		curPos++
		consumed++
		if len(buffer) == pagefile.Capacity {
			if err := m.writePage(page, buffer); err != nil {
				return consumed, err
			}
			buffer = buffer[:0]
			page++
		}
	}
	if len(buffer) > 0 {
		if err := m.writePage(page, buffer); err != nil {
			return consumed, err
		}
	}

	d.Count = curPos
	if err := m.writeDescriptor(d); err != nil {
		return consumed, err
	}
	return consumed, nil
}

// readPageAsRecords decodes the first n records of page into owned
// builder-mode records, for re-framing when the append buffer starts
// from a partially-full tail page.
func (m *Manager) readPageAsRecords(page, n int) ([]codec.Record, error) {
	path := pagefile.PathForPage(m.Dir(), page)
	buf, err := pagefile.Read(path)
	if err != nil {
		return nil, fmt.Errorf("table: read tail page: %w", err)
	}
	frame, err := m.frameFor(buf)
	if err != nil {
		return nil, err
	}
	out := make([]codec.Record, 0, n)
	for i := 0; i < n; i++ {
		rv, err := frame.Record(i)
		if err != nil {
			return nil, err
		}
		m2, err := rv.Map()
		if err != nil {
			return nil, err
		}
		out = append(out, codec.Record(m2))
	}
	return out, nil
}

func (m *Manager) writePage(page int, records []codec.Record) error {
	d, err := m.loadDescriptor()
	if err != nil {
		return err
	}
	def, err := m.recordStruct(d)
	if err != nil {
		return err
	}
	data, err := codec.Encode(def, records)
	if err != nil {
		return fmt.Errorf("table: encode page %d: %w", page, err)
	}
	path := pagefile.PathForPage(m.Dir(), page)
	if err := pagefile.Write(path, data); err != nil {
		return fmt.Errorf("table: write page %d: %w", page, err)
	}
	m.cache.Purge(path)
	return nil
}
