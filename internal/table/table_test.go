package table

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/portabletab/portabletab/internal/codec"
	"github.com/portabletab/portabletab/internal/mmapcache"
	"github.com/portabletab/portabletab/internal/schema"
)

const userSchema = "struct User {\n  name @0 :Text;\n  age @1 :UInt32;\n}\n"

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	dir := t.TempDir()
	m := NewManager(dir, "users", schema.NewRegistry(), mmapcache.New(mmapcache.DefaultCapacity))
	if _, err := m.Create(userSchema, "User"); err != nil {
		t.Fatalf("Create: %v", err)
	}
	return m
}

func TestCreateWritesDescriptorAndSchema(t *testing.T) {
	m := newTestManager(t)

	count, err := m.Count()
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if count != 0 {
		t.Fatalf("Count() = %d, want 0", count)
	}

	if !pathExists(filepath.Join(m.Dir(), "config.json")) {
		t.Fatalf("config.json missing after Create")
	}
	if !pathExists(filepath.Join(m.Dir(), "users.capnp")) {
		t.Fatalf("schema file missing after Create")
	}
}

func TestCreateFailsOnNonEmptyDirectory(t *testing.T) {
	dir := t.TempDir()
	m := NewManager(dir, "users", schema.NewRegistry(), mmapcache.New(mmapcache.DefaultCapacity))
	if _, err := m.Create(userSchema, "User"); err != nil {
		t.Fatalf("first Create: %v", err)
	}
	if _, err := m.Create(userSchema, "User"); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("second Create error = %v, want ErrInvalidArgument", err)
	}
}

func TestAppendAndGet(t *testing.T) {
	m := newTestManager(t)

	n, err := m.Append([]codec.Record{
		{"name": "Ada", "age": 36},
		{"name": "Alan", "age": 41},
	})
	if err != nil {
		t.Fatalf("Append: %v", err)
	}
	if n != 2 {
		t.Fatalf("Append consumed %d, want 2", n)
	}

	count, err := m.Count()
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if count != 2 {
		t.Fatalf("Count() = %d, want 2", count)
	}

	rec, err := m.Get(0)
	if err != nil {
		t.Fatalf("Get(0): %v", err)
	}
	if v, _ := rec.Get("name"); v != "Ada" {
		t.Fatalf("Get(0).name = %v, want Ada", v)
	}

	rec, err = m.Get(1)
	if err != nil {
		t.Fatalf("Get(1): %v", err)
	}
	if v, _ := rec.Get("name"); v != "Alan" {
		t.Fatalf("Get(1).name = %v, want Alan", v)
	}

	if _, err := m.Get(2); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("Get(2) error = %v, want ErrInvalidArgument", err)
	}
}

func TestAppendSecondBatchExtendsTailPage(t *testing.T) {
	// Capacity is a package constant, so no test here crosses a page
	// boundary. This one appends two batches that land on the same page:
	// the second Append re-reads the tail page through readPageAsRecords
	// in append.go, and the first batch's record must survive it.
	m := newTestManager(t)
	if _, err := m.Append([]codec.Record{{"name": "Ada", "age": 36}}); err != nil {
		t.Fatalf("first Append: %v", err)
	}
	if _, err := m.Append([]codec.Record{{"name": "Alan", "age": 41}}); err != nil {
		t.Fatalf("second Append: %v", err)
	}
	count, err := m.Count()
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if count != 2 {
		t.Fatalf("Count() = %d, want 2", count)
	}
	rec, err := m.Get(0)
	if err != nil {
		t.Fatalf("Get(0): %v", err)
	}
	if v, _ := rec.Get("name"); v != "Ada" {
		t.Fatalf("Get(0).name = %v, want Ada (first Append's record must survive the second)", v)
	}
}

func TestUpdatePatchesField(t *testing.T) {
	m := newTestManager(t)
	if _, err := m.Append([]codec.Record{
		{"name": "Ada", "age": 36},
		{"name": "Alan", "age": 41},
	}); err != nil {
		t.Fatalf("Append: %v", err)
	}

	if err := m.Update(map[int]map[string]any{
		1: {"age": 99},
	}); err != nil {
		t.Fatalf("Update: %v", err)
	}

	rec, err := m.Get(1)
	if err != nil {
		t.Fatalf("Get(1): %v", err)
	}
	if v, _ := rec.Get("age"); v != uint64(99) {
		t.Fatalf("Get(1).age after Update = %v, want 99", v)
	}
	// The untouched record and field must be unaffected.
	if v, _ := rec.Get("name"); v != "Alan" {
		t.Fatalf("Get(1).name after Update = %v, want Alan", v)
	}
	rec0, err := m.Get(0)
	if err != nil {
		t.Fatalf("Get(0): %v", err)
	}
	if v, _ := rec0.Get("age"); v != uint64(36) {
		t.Fatalf("Get(0).age after unrelated Update = %v, want 36", v)
	}
}

func TestUpdateOutOfRangeRejectsWithoutPartialWrite(t *testing.T) {
	m := newTestManager(t)
	if _, err := m.Append([]codec.Record{{"name": "Ada", "age": 36}}); err != nil {
		t.Fatalf("Append: %v", err)
	}
	err := m.Update(map[int]map[string]any{
		0: {"age": 99},
		5: {"age": 1},
	})
	if !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("Update error = %v, want ErrInvalidArgument", err)
	}
	rec, err := m.Get(0)
	if err != nil {
		t.Fatalf("Get(0): %v", err)
	}
	if v, _ := rec.Get("age"); v != uint64(36) {
		t.Fatalf("Get(0).age after rejected Update = %v, want 36 (no partial writes)", v)
	}
}

func TestIterateYieldsInOrder(t *testing.T) {
	m := newTestManager(t)
	if _, err := m.Append([]codec.Record{
		{"name": "Ada", "age": 36},
		{"name": "Alan", "age": 41},
		{"name": "Grace", "age": 50},
	}); err != nil {
		t.Fatalf("Append: %v", err)
	}

	cur, err := m.Iterate(1, 2)
	if err != nil {
		t.Fatalf("Iterate: %v", err)
	}
	defer cur.Close()

	var names []string
	for cur.Next() {
		rec, err := cur.Record()
		if err != nil {
			t.Fatalf("Record: %v", err)
		}
		v, _ := rec.Get("name")
		names = append(names, v.(string))
	}
	if err := cur.Err(); err != nil {
		t.Fatalf("Err: %v", err)
	}
	if len(names) != 2 || names[0] != "Alan" || names[1] != "Grace" {
		t.Fatalf("iterated names = %v, want [Alan Grace]", names)
	}
}

func TestDeleteIsIdempotent(t *testing.T) {
	m := newTestManager(t)
	if err := m.Delete(); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := m.Delete(); err != nil {
		t.Fatalf("Delete (again): %v", err)
	}
	if pathExists(m.Dir()) {
		t.Fatalf("table directory still present after Delete")
	}
}

func TestTrieCreateSearchDelete(t *testing.T) {
	m := newTestManager(t)
	if _, err := m.Append([]codec.Record{
		{"name": "Ada", "age": 36},
		{"name": "Alan", "age": 41},
		{"name": "Alice", "age": 29},
	}); err != nil {
		t.Fatalf("Append: %v", err)
	}

	if err := m.CreateTrie("name", nil, nil); err != nil {
		t.Fatalf("CreateTrie: %v", err)
	}

	exact, err := m.Search("name", "Ada", SearchExact)
	if err != nil {
		t.Fatalf("Search exact: %v", err)
	}
	if len(exact) != 1 {
		t.Fatalf("Search exact Ada = %d results, want 1", len(exact))
	}

	keys, err := m.Search("name", "Al", SearchKeys)
	if err != nil {
		t.Fatalf("Search keys: %v", err)
	}
	if len(keys) != 2 {
		t.Fatalf("Search keys Al = %d results, want 2 (Alan, Alice)", len(keys))
	}

	if err := m.DeleteTrie("name"); err != nil {
		t.Fatalf("DeleteTrie: %v", err)
	}
	if _, err := m.Search("name", "Ada", SearchExact); !errors.Is(err, ErrNoIndex) {
		t.Fatalf("Search after DeleteTrie error = %v, want ErrNoIndex", err)
	}
}

func TestCreateTrieRejectsUnknownAttribute(t *testing.T) {
	m := newTestManager(t)
	if _, err := m.Append([]codec.Record{{"name": "Ada", "age": 36}}); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := m.CreateTrie("nope", nil, nil); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("CreateTrie on unknown attribute error = %v, want ErrInvalidArgument", err)
	}
}

func pathExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
