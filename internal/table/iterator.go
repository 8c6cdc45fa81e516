package table

import (
	"fmt"
	"os"

	"github.com/edsrzf/mmap-go"

	"github.com/portabletab/portabletab/internal/codec"
	"github.com/portabletab/portabletab/internal/pagefile"
)

// Cursor is the lazy, finite, non-restartable sequence Iterate returns.
// It opens one page at a time through a private mapping (not the shared
// LRU cache) so a large scan cannot evict hot pages other callers rely
// on.
type Cursor struct {
	m           *Manager
	pos, stop   int
	curPage     int
	curMM       mmap.MMap
	curFile     *os.File
	curFrame    *codec.Frame
	haveCurrent bool
	err         error
}

// Iterate returns a Cursor over [offset, offset+limit).
func (m *Manager) Iterate(offset, limit int) (*Cursor, error) {
	d, err := m.loadDescriptor()
	if err != nil {
		return nil, err
	}
	if offset < 0 || offset > d.Count {
		return nil, fmt.Errorf("table: offset %d out of range [0,%d]: %w", offset, d.Count, ErrInvalidArgument)
	}
	stop := offset + limit
	if stop > d.Count {
		stop = d.Count
	}
	return &Cursor{m: m, pos: offset, stop: stop, curPage: -1}, nil
}

// Next advances the cursor. It returns false once the range is
// exhausted or an error occurred; call Err to distinguish the two.
func (c *Cursor) Next() bool {
	if c.haveCurrent {
		c.pos++
		c.haveCurrent = false
	}
	if c.pos >= c.stop {
		c.closeCurrent()
		return false
	}
	page := c.pos / pagefile.Capacity
	if page != c.curPage {
		c.closeCurrent()
		if err := c.openPage(page); err != nil {
			c.err = err
			return false
		}
		c.curPage = page
	}
	c.haveCurrent = true
	return true
}

// Record returns the record at the cursor's current position. Valid
// only after a Next call that returned true.
func (c *Cursor) Record() (*codec.Record2, error) {
	if !c.haveCurrent {
		return nil, fmt.Errorf("table: cursor: Record called without a prior successful Next")
	}
	rec, err := c.curFrame.Record(c.pos % pagefile.Capacity)
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// Err returns the error, if any, that stopped iteration early.
func (c *Cursor) Err() error { return c.err }

// Close releases the cursor's private mapping. Safe to call multiple
// times and after the cursor is exhausted.
func (c *Cursor) Close() {
	c.closeCurrent()
}

func (c *Cursor) openPage(page int) error {
	path := pagefile.PathForPage(c.m.Dir(), page)
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("table: %w: %v", ErrNotFound, err)
	}
	mm, err := mmap.Map(f, mmap.RDONLY, 0)
	if err != nil {
		f.Close()
		return fmt.Errorf("table: mmap %s: %w", path, err)
	}
	frame, err := c.m.frameFor(mm)
	if err != nil {
		mm.Unmap()
		f.Close()
		return err
	}
	c.curMM = mm
	c.curFile = f
	c.curFrame = frame
	return nil
}

func (c *Cursor) closeCurrent() {
	if c.curMM != nil {
		c.curMM.Unmap()
		c.curMM = nil
	}
	if c.curFile != nil {
		c.curFile.Close()
		c.curFile = nil
	}
	c.curFrame = nil
	c.haveCurrent = false
}
