// Package trie implements a string-keyed secondary index: a compact,
// mmap-friendly on-disk mapping from UTF-8 keys to ordinal lists,
// supporting exact, prefix-of-query, and completion-of-query lookups.
//
// The on-disk format is a compact sorted-key table: keys stored once,
// sorted lexicographically, each with a posting list of ordinals. Exact
// lookup is a binary search; the two prefix-style modes walk a bounded
// neighborhood of that same sorted order, the classic way to answer
// prefix queries without a pointer-linked trie structure (see DESIGN.md
// for why no off-the-shelf trie/patricia-trie library fits here).
package trie

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"os"
	"sort"
	"unsafe"

	"github.com/edsrzf/mmap-go"
)

const magic = uint32(0x54524931) // "TRI1"

// Entry is one key's worth of ordinals, as produced by a builder walking
// a table (internal/table owns that walk; this package only serializes
// the result).
type Entry struct {
	Key      string
	Ordinals []uint32
}

// Build writes entries (which need not be sorted or de-duplicated by
// key — Build merges ordinal lists for repeated keys) to path as a
// sorted key table.
func Build(path string, entries []Entry) error {
	merged := map[string]map[uint32]struct{}{}
	order := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.Key == "" {
			continue
		}
		set, ok := merged[e.Key]
		if !ok {
			set = make(map[uint32]struct{})
			merged[e.Key] = set
			order = append(order, e.Key)
		}
		for _, o := range e.Ordinals {
			set[o] = struct{}{}
		}
	}
	sort.Strings(order)

	var keyData bytes.Buffer
	rows := make([]dirRow, 0, len(order))
	var postData bytes.Buffer
	for _, k := range order {
		ords := sortedOrdinals(merged[k])
		row := dirRow{
			keyOff: uint32(keyData.Len()),
			keyLen: uint32(len(k)),
			postOff: uint32(postData.Len()),
			postLen: uint32(len(ords)),
		}
		keyData.WriteString(k)
		for _, o := range ords {
			var b [4]byte
			binary.LittleEndian.PutUint32(b[:], o)
			postData.Write(b[:])
		}
		rows = append(rows, row)
	}

	var out bytes.Buffer
	var hdr [8]byte
	binary.LittleEndian.PutUint32(hdr[0:4], magic)
	binary.LittleEndian.PutUint32(hdr[4:8], uint32(len(rows)))
	out.Write(hdr[:])
	for _, r := range rows {
		var b [16]byte
		binary.LittleEndian.PutUint32(b[0:4], r.keyOff)
		binary.LittleEndian.PutUint32(b[4:8], r.keyLen)
		binary.LittleEndian.PutUint32(b[8:12], r.postOff)
		binary.LittleEndian.PutUint32(b[12:16], r.postLen)
		out.Write(b[:])
	}
	var keyDataLen [4]byte
	binary.LittleEndian.PutUint32(keyDataLen[:], uint32(keyData.Len()))
	out.Write(keyDataLen[:])
	out.Write(keyData.Bytes())
	out.Write(postData.Bytes())

	return os.WriteFile(path, out.Bytes(), 0o644)
}

func sortedOrdinals(set map[uint32]struct{}) []uint32 {
	out := make([]uint32, 0, len(set))
	for o := range set {
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

type dirRow struct {
	keyOff, keyLen   uint32
	postOff, postLen uint32
}

// Trie is an opened, mmap-backed index.
type Trie struct {
	mm   mmap.MMap
	f    *os.File
	rows []dirRow
	keys []string // zero-copy views into mm
	post []byte   // posting-list segment, relative-addressed by rows[i].postOff
}

// Open mmaps path read-only. It returns an error if the file does not
// exist, the "no index" condition a table manager's Search surfaces.
func Open(path string) (*Trie, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("trie: open %s: %w", path, err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("trie: stat %s: %w", path, err)
	}
	if info.Size() < 8 {
		f.Close()
		return nil, fmt.Errorf("trie: %s too small", path)
	}
	mm, err := mmap.Map(f, mmap.RDONLY, 0)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("trie: mmap %s: %w", path, err)
	}

	if binary.LittleEndian.Uint32(mm[0:4]) != magic {
		mm.Unmap()
		f.Close()
		return nil, fmt.Errorf("trie: bad magic in %s", path)
	}
	n := int(binary.LittleEndian.Uint32(mm[4:8]))
	rows := make([]dirRow, n)
	off := 8
	for i := 0; i < n; i++ {
		rows[i] = dirRow{
			keyOff:  binary.LittleEndian.Uint32(mm[off : off+4]),
			keyLen:  binary.LittleEndian.Uint32(mm[off+4 : off+8]),
			postOff: binary.LittleEndian.Uint32(mm[off+8 : off+12]),
			postLen: binary.LittleEndian.Uint32(mm[off+12 : off+16]),
		}
		off += 16
	}
	keyDataLen := int(binary.LittleEndian.Uint32(mm[off : off+4]))
	off += 4
	keyData := mm[off : off+keyDataLen]
	off += keyDataLen
	postData := mm[off:]

	keys := make([]string, n)
	for i, r := range rows {
		b := keyData[r.keyOff : r.keyOff+r.keyLen]
		if len(b) == 0 {
			keys[i] = ""
			continue
		}
		keys[i] = unsafe.String(&b[0], len(b))
	}

	return &Trie{mm: mm, f: f, rows: rows, keys: keys, post: postData}, nil
}

// Close releases the mapping.
func (t *Trie) Close() error {
	if err := t.mm.Unmap(); err != nil {
		t.f.Close()
		return err
	}
	return t.f.Close()
}

func (t *Trie) ordinalsAt(i int) []uint32 {
	r := t.rows[i]
	out := make([]uint32, r.postLen)
	for j := range out {
		o := int(r.postOff) + j*4
		out[j] = binary.LittleEndian.Uint32(t.post[o : o+4])
	}
	return out
}

// Exact returns the ordinals stored under key, or nil if key is absent.
func (t *Trie) Exact(key string) []uint32 {
	i := sort.SearchStrings(t.keys, key)
	if i < len(t.keys) && t.keys[i] == key {
		return t.ordinalsAt(i)
	}
	return nil
}

// Prefixes returns the de-duplicated union of ordinals for every stored
// key that is a prefix of value.
func (t *Trie) Prefixes(value string) []uint32 {
	seen := map[uint32]struct{}{}
	for l := 1; l <= len(value); l++ {
		cand := value[:l]
		i := sort.SearchStrings(t.keys, cand)
		if i < len(t.keys) && t.keys[i] == cand {
			for _, o := range t.ordinalsAt(i) {
				seen[o] = struct{}{}
			}
		}
	}
	return dedupSorted(seen)
}

// Keys returns the de-duplicated union of ordinals for every stored key
// that begins with value.
func (t *Trie) Keys(value string) []uint32 {
	seen := map[uint32]struct{}{}
	i := sort.SearchStrings(t.keys, value)
	for ; i < len(t.keys) && hasPrefix(t.keys[i], value); i++ {
		for _, o := range t.ordinalsAt(i) {
			seen[o] = struct{}{}
		}
	}
	return dedupSorted(seen)
}

func hasPrefix(s, prefix string) bool {
	return len(s) >= len(prefix) && s[:len(prefix)] == prefix
}

func dedupSorted(set map[uint32]struct{}) []uint32 {
	if len(set) == 0 {
		return nil
	}
	out := make([]uint32, 0, len(set))
	for o := range set {
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
