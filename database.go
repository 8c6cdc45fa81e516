// Package portabletab implements a portable, read-optimized, file-backed
// table store: homogeneous records described by a user schema, written
// append-mostly into fixed-capacity pages, and read back by ordinal
// through memory-mapped pages.
package portabletab

import (
	"fmt"
	"os"

	"github.com/portabletab/portabletab/internal/mmapcache"
	"github.com/portabletab/portabletab/internal/schema"
	"github.com/portabletab/portabletab/internal/table"
)

// Database is a database directory: a filesystem directory holding zero
// or more table subdirectories. The mmap cache and schema registry it
// owns are process-wide resources shared by every Table opened from it.
type Database struct {
	dir      string
	registry *schema.Registry
	cache    *mmapcache.Cache
}

// Open returns a Database rooted at dir, creating dir if it does not yet
// exist. It never creates or touches table subdirectories.
func Open(dir string) (*Database, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("portabletab: open database %s: %w", dir, err)
	}
	return &Database{
		dir:      dir,
		registry: schema.NewRegistry(),
		cache:    mmapcache.New(mmapcache.DefaultCapacity),
	}, nil
}

// Dir returns the database's root directory.
func (db *Database) Dir() string { return db.dir }

// Table returns a handle to tablename under this database. It does not
// require the table to already exist — call Create to make one, or
// operate on an existing table created in a prior process.
func (db *Database) Table(tablename string) *Table {
	return &Table{mgr: table.NewManager(db.dir, tablename, db.registry, db.cache)}
}

// Tables lists the subdirectories of the database directory, each one a
// candidate table name. It does not validate that each one has a valid
// descriptor (cmd/portabletab's "list" subcommand does that).
func (db *Database) Tables() ([]string, error) {
	entries, err := os.ReadDir(db.dir)
	if err != nil {
		return nil, fmt.Errorf("portabletab: list tables in %s: %w", db.dir, err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			names = append(names, e.Name())
		}
	}
	return names, nil
}

// Close releases the process-wide mmap cache and schema registry. Any
// Table or Cursor obtained from this Database must not be used again
// afterwards.
func (db *Database) Close() {
	db.cache.Close()
	db.registry.Unload()
}
