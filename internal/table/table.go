// Package table implements the central component of this store: the
// table manager. It owns the metadata descriptor, the mmap page cache,
// and the loaded schema/trie handles for one table directory, and
// implements create/delete/count/get/iterate/append/update plus the
// trie-backed search operations.
package table

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/portabletab/portabletab/internal/codec"
	"github.com/portabletab/portabletab/internal/mmapcache"
	"github.com/portabletab/portabletab/internal/pagefile"
	"github.com/portabletab/portabletab/internal/schema"
	"github.com/portabletab/portabletab/internal/trie"
)

// Sentinel errors. The root package (portabletab) wraps these into its
// public taxonomy; keeping them here lets the table package stay
// independently testable.
var (
	ErrNotFound        = fmt.Errorf("table: not found")
	ErrNoIndex         = fmt.Errorf("table: no index")
	ErrInvalidSchema   = fmt.Errorf("table: invalid schema")
	ErrInvalidArgument = fmt.Errorf("table: invalid argument")
	ErrCorruption      = fmt.Errorf("table: corruption")
)

// Manager is the table manager for one table directory. It is not safe
// for concurrent use from more than one goroutine.
type Manager struct {
	dbDir     string
	tablename string
	registry  *schema.Registry
	cache     *mmapcache.Cache

	desc   *Descriptor
	tries  map[string]*trie.Trie
	record *schema.StructDef
}

// NewManager returns a manager for tablename under dbDir, sharing cache
// and registry with any sibling tables (both are process-wide resources).
func NewManager(dbDir, tablename string, registry *schema.Registry, cache *mmapcache.Cache) *Manager {
	return &Manager{
		dbDir:     dbDir,
		tablename: tablename,
		registry:  registry,
		cache:     cache,
		tries:     make(map[string]*trie.Trie),
	}
}

// Dir returns the table's directory path.
func (m *Manager) Dir() string {
	return filepath.Join(m.dbDir, m.tablename)
}

func (m *Manager) configPath() string {
	return filepath.Join(m.Dir(), "config.json")
}

// Create creates the table directory, schema file, and zero-count
// descriptor. It fails if the table directory already exists and is
// non-empty — see DESIGN.md for the rationale behind rejecting a
// create-over-existing-data call instead of silently replacing it.
func (m *Manager) Create(schemaText, recordType string) (string, error) {
	dir := m.Dir()
	if entries, err := os.ReadDir(dir); err == nil && len(entries) > 0 {
		return "", fmt.Errorf("table: %s already exists and is non-empty: %w", dir, ErrInvalidArgument)
	}
	if recordType == "" {
		return "", fmt.Errorf("table: empty record type: %w", ErrInvalidArgument)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("table: mkdir %s: %w", dir, err)
	}

	listType := recordType + "List"
	fullSchema := schemaText + fmt.Sprintf("struct %s {\n  records @0 :List(%s);\n}\n", listType, recordType)

	schemaFileName := m.tablename + ".capnp"
	schemaPath := filepath.Join(dir, schemaFileName)
	if err := os.WriteFile(schemaPath, []byte(fullSchema), 0o644); err != nil {
		return "", fmt.Errorf("table: write schema: %w", err)
	}

	if _, err := m.registry.Load(schemaPath, m.tablename); err != nil {
		return "", fmt.Errorf("table: load schema: %w", ErrInvalidSchema)
	}

	desc := &Descriptor{
		SchemaFile: schemaFileName,
		ModuleName: m.tablename,
		RecordType: recordType,
		ListType:   listType,
		Count:      0,
	}
	if err := m.writeDescriptor(desc); err != nil {
		return "", err
	}
	m.desc = desc
	return dir, nil
}

// Delete recursively removes the table directory. Idempotent when
// absent.
func (m *Manager) Delete() error {
	if err := os.RemoveAll(m.Dir()); err != nil {
		return fmt.Errorf("table: delete %s: %w", m.Dir(), err)
	}
	for attr, t := range m.tries {
		t.Close()
		delete(m.tries, attr)
	}
	m.registry.Unload(m.tablename)
	m.desc = nil
	m.record = nil
	return nil
}

func (m *Manager) writeDescriptor(d *Descriptor) error {
	data, err := encodeDescriptor(d)
	if err != nil {
		return err
	}
	if err := pagefile.Write(m.configPath(), data); err != nil {
		return fmt.Errorf("table: write descriptor: %w", err)
	}
	return nil
}

func (m *Manager) loadDescriptor() (*Descriptor, error) {
	if m.desc != nil {
		return m.desc, nil
	}
	data, err := os.ReadFile(m.configPath())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("table: %s: %w", m.tablename, ErrNotFound)
		}
		return nil, fmt.Errorf("table: read descriptor: %w", err)
	}
	d, err := decodeDescriptor(data)
	if err != nil {
		return nil, err
	}
	m.desc = d
	return d, nil
}

func (m *Manager) recordStruct(desc *Descriptor) (*schema.StructDef, error) {
	if m.record != nil {
		return m.record, nil
	}
	if _, ok := m.registry.Get(desc.ModuleName); !ok {
		schemaPath := filepath.Join(m.Dir(), desc.SchemaFile)
		if _, err := m.registry.Load(schemaPath, desc.ModuleName); err != nil {
			return nil, fmt.Errorf("table: load schema: %w", ErrInvalidSchema)
		}
	}
	if _, err := m.registry.ResolveStruct(desc.ModuleName, desc.ListType); err != nil {
		return nil, fmt.Errorf("table: resolve list type: %w", err)
	}
	def, err := m.registry.ResolveStruct(desc.ModuleName, desc.RecordType)
	if err != nil {
		return nil, fmt.Errorf("table: resolve record type: %w", err)
	}
	m.record = def
	return def, nil
}

// Count returns the descriptor's authoritative record count without
// scanning any page.
func (m *Manager) Count() (int, error) {
	d, err := m.loadDescriptor()
	if err != nil {
		return 0, err
	}
	return d.Count, nil
}

func (m *Manager) frameFor(buf []byte) (*codec.Frame, error) {
	d, err := m.loadDescriptor()
	if err != nil {
		return nil, err
	}
	def, err := m.recordStruct(d)
	if err != nil {
		return nil, err
	}
	f, err := codec.View(def, buf)
	if err != nil {
		if codec.IsCorrupt(err) {
			return nil, fmt.Errorf("table: %w: %v", ErrCorruption, err)
		}
		return nil, err
	}
	return f, nil
}

// Get returns a zero-copy record view at pos. The view's lifetime is
// scoped to the mmap cache entry backing it.
func (m *Manager) Get(pos int) (*codec.Record2, error) {
	d, err := m.loadDescriptor()
	if err != nil {
		return nil, err
	}
	if pos < 0 || pos >= d.Count {
		return nil, fmt.Errorf("table: position %d out of range [0,%d): %w", pos, d.Count, ErrInvalidArgument)
	}
	path := pagefile.Path(m.Dir(), pos)
	buf, err := m.cache.Get(path)
	if err != nil {
		return nil, fmt.Errorf("table: %w: %v", ErrNotFound, err)
	}
	f, err := m.frameFor(buf)
	if err != nil {
		return nil, err
	}
	return f.Record(pos % pagefile.Capacity)
}

// Unload releases this manager's open trie handles and unbinds its
// schema from the shared registry, mirroring CapnpTable.unload in the
// Python source. It does not touch the mmap page cache, which is a
// process-wide resource shared with sibling tables.
func (m *Manager) Unload() {
	for attr, t := range m.tries {
		t.Close()
		delete(m.tries, attr)
	}
	m.registry.Unload(m.tablename)
	m.record = nil
}

// sortedPatchKeys returns the ordinals of patches in ascending order.
func sortedPatchKeys(patches map[int]map[string]any) []int {
	keys := make([]int, 0, len(patches))
	for k := range patches {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	return keys
}
