// Package codec implements the record codec: it serializes a batch of
// records described by a schema.StructDef into a single self-contained
// frame, and exposes zero-copy random access over a frame bound to a
// byte slice (typically an mmap'd page).
//
// The wire format is deliberately simple — a record-offset directory
// followed by a flat data segment — so that locating record i never
// requires decoding any other record, or the whole page.
package codec

import (
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"unsafe"

	"github.com/portabletab/portabletab/internal/schema"
)

var crcTable = crc32.MakeTable(crc32.Castagnoli)

const (
	magic      = uint32(0x50544231) // "PTB1"
	headerSize = 8                  // magic + record count
	trailerSize = 4                 // CRC32-C
)

// Record is the write-side representation of one row: field name to Go
// value (bool, intNN/uintNN, float32/64, string, or []byte, matching the
// schema.Field's declared type).
type Record map[string]any

// Encode serializes records against def into a single frame. Records
// beyond len(records) are never referenced; callers (the table manager)
// are responsible for pre-slicing to PAGE_CAPACITY.
func Encode(def *schema.StructDef, records []Record) ([]byte, error) {
	offsets := make([]uint32, len(records)+1)
	var data []byte
	for i, rec := range records {
		offsets[i] = uint32(len(data))
		enc, err := encodeRecord(def, rec)
		if err != nil {
			return nil, fmt.Errorf("codec: encode record %d: %w", i, err)
		}
		data = append(data, enc...)
	}
	offsets[len(records)] = uint32(len(data))

	buf := make([]byte, 0, headerSize+4*len(offsets)+len(data)+trailerSize)
	var hdr [headerSize]byte
	binary.LittleEndian.PutUint32(hdr[0:4], magic)
	binary.LittleEndian.PutUint32(hdr[4:8], uint32(len(records)))
	buf = append(buf, hdr[:]...)
	for _, off := range offsets {
		var b [4]byte
		binary.LittleEndian.PutUint32(b[:], off)
		buf = append(buf, b[:]...)
	}
	buf = append(buf, data...)

	crc := crc32.Checksum(buf, crcTable)
	var tail [4]byte
	binary.LittleEndian.PutUint32(tail[:], crc)
	buf = append(buf, tail[:]...)
	return buf, nil
}

func encodeRecord(def *schema.StructDef, rec Record) ([]byte, error) {
	var out []byte
	for _, f := range def.Fields {
		v, ok := rec[f.Name]
		if !ok {
			v = zeroValue(f.Type)
		}
		enc, err := encodeField(f.Type, v)
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", f.Name, err)
		}
		out = append(out, enc...)
	}
	return out, nil
}

func zeroValue(t schema.FieldType) any {
	switch t {
	case schema.Text:
		return ""
	case schema.Data:
		return []byte(nil)
	case schema.Bool:
		return false
	case schema.Float32, schema.Float64:
		return float64(0)
	default:
		return int64(0)
	}
}

func encodeField(t schema.FieldType, v any) ([]byte, error) {
	switch t {
	case schema.Bool:
		b := toBool(v)
		if b {
			return []byte{1}, nil
		}
		return []byte{0}, nil
	case schema.Int8, schema.UInt8:
		return []byte{byte(toInt64(v))}, nil
	case schema.Int16, schema.UInt16:
		var b [2]byte
		binary.LittleEndian.PutUint16(b[:], uint16(toInt64(v)))
		return b[:], nil
	case schema.Int32, schema.UInt32:
		var b [4]byte
		binary.LittleEndian.PutUint32(b[:], uint32(toInt64(v)))
		return b[:], nil
	case schema.Int64, schema.UInt64:
		var b [8]byte
		binary.LittleEndian.PutUint64(b[:], uint64(toInt64(v)))
		return b[:], nil
	case schema.Float32:
		var b [4]byte
		binary.LittleEndian.PutUint32(b[:], float32ToBits(toFloat64(v)))
		return b[:], nil
	case schema.Float64:
		var b [8]byte
		binary.LittleEndian.PutUint64(b[:], float64ToBits(toFloat64(v)))
		return b[:], nil
	case schema.Text:
		s := toString(v)
		return lengthPrefixed([]byte(s)), nil
	case schema.Data:
		bs := toBytes(v)
		return lengthPrefixed(bs), nil
	default:
		return nil, fmt.Errorf("unsupported field type %v", t)
	}
}

func lengthPrefixed(b []byte) []byte {
	out := make([]byte, 4+len(b))
	binary.LittleEndian.PutUint32(out[0:4], uint32(len(b)))
	copy(out[4:], b)
	return out
}

// Frame is a decoded, read-only view over a byte slice containing one
// Encode-produced frame (normally the whole contents of a memory-mapped
// page file). View parses the header and offset directory and verifies
// the checksum over the whole buffer, but decodes no record; a record's
// fields are parsed lazily, by Get or Map on the view Record(i) returns.
type Frame struct {
	def     *schema.StructDef
	buf     []byte
	count   int
	offsets []uint32
	data    []byte
}

// View decodes buf (which must be exactly the bytes Encode produced,
// e.g. an mmap'd page) into a Frame. It returns errors wrapping errCorrupt
// (see IsCorrupt) if the buffer is too small to hold a frame, or if the
// header, offsets, or trailing checksum don't agree with the buffer's
// actual length and contents.
func View(def *schema.StructDef, buf []byte) (*Frame, error) {
	if len(buf) < headerSize+trailerSize {
		return nil, fmt.Errorf("codec: frame too small (%d bytes): %w", len(buf), errCorrupt)
	}
	if binary.LittleEndian.Uint32(buf[0:4]) != magic {
		return nil, fmt.Errorf("codec: bad magic: %w", errCorrupt)
	}
	count := int(binary.LittleEndian.Uint32(buf[4:8]))

	dirEnd := headerSize + 4*(count+1)
	if dirEnd > len(buf)-trailerSize {
		return nil, fmt.Errorf("codec: offset directory overruns frame: %w", errCorrupt)
	}

	body := buf[:len(buf)-trailerSize]
	wantCRC := binary.LittleEndian.Uint32(buf[len(buf)-trailerSize:])
	if crc32.Checksum(body, crcTable) != wantCRC {
		return nil, fmt.Errorf("codec: checksum mismatch: %w", errCorrupt)
	}

	offsets := make([]uint32, count+1)
	for i := range offsets {
		offsets[i] = binary.LittleEndian.Uint32(buf[headerSize+4*i : headerSize+4*i+4])
	}
	data := buf[dirEnd : len(buf)-trailerSize]
	if int(offsets[count]) != len(data) {
		return nil, fmt.Errorf("codec: data length mismatch: %w", errCorrupt)
	}

	return &Frame{def: def, buf: buf, count: count, offsets: offsets, data: data}, nil
}

// errCorrupt is the local sentinel codec.View wraps; callers (the table
// package) translate it to the public ErrCorruption.
var errCorrupt = fmt.Errorf("frame corrupt")

// IsCorrupt reports whether err originated from a corruption check in View.
func IsCorrupt(err error) bool {
	return err != nil && errisCorrupt(err)
}

func errisCorrupt(err error) bool {
	for err != nil {
		if err == errCorrupt {
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}

// Count returns the number of records in the frame.
func (f *Frame) Count() int { return f.count }

// Record returns a zero-copy view over record i. The view's string
// fields point directly into the frame's backing buffer and are valid
// exactly as long as that buffer is.
func (f *Frame) Record(i int) (*Record2, error) {
	if i < 0 || i >= f.count {
		return nil, fmt.Errorf("codec: record index %d out of range [0,%d)", i, f.count)
	}
	start, end := f.offsets[i], f.offsets[i+1]
	if end < start || int(end) > len(f.data) {
		return nil, fmt.Errorf("codec: record %d bounds invalid: %w", i, errCorrupt)
	}
	return &Record2{def: f.def, raw: f.data[start:end]}, nil
}

// Record2 is a decoded-on-demand view of one record's fields.
type Record2 struct {
	def *schema.StructDef
	raw []byte
}

// Get returns the value of field name. Whatever Go type was passed to
// Encode, signed integer fields decode as int64, unsigned ones as uint64,
// Float32 and Float64 as float64, Bool as bool, Text as string and Data
// as []byte.
func (r *Record2) Get(name string) (any, error) {
	off := 0
	for _, f := range r.def.Fields {
		v, width, err := decodeField(f.Type, r.raw[off:])
		if err != nil {
			return nil, fmt.Errorf("codec: decode field %s: %w", f.Name, err)
		}
		if f.Name == name {
			return v, nil
		}
		off += width
	}
	return nil, fmt.Errorf("codec: no such field %q", name)
}

// Map decodes every field into a name-to-value map, so a caller like the
// CLI's dump/search output can emit CSV without any schema awareness of
// its own.
func (r *Record2) Map() (map[string]any, error) {
	out := make(map[string]any, len(r.def.Fields))
	off := 0
	for _, f := range r.def.Fields {
		v, width, err := decodeField(f.Type, r.raw[off:])
		if err != nil {
			return nil, fmt.Errorf("codec: decode field %s: %w", f.Name, err)
		}
		out[f.Name] = v
		off += width
	}
	return out, nil
}

// FieldNames returns the schema's field names in declaration order, used
// by the CLI to emit a stable CSV header.
func (r *Record2) FieldNames() []string {
	names := make([]string, len(r.def.Fields))
	for i, f := range r.def.Fields {
		names[i] = f.Name
	}
	return names
}

func decodeField(t schema.FieldType, b []byte) (any, int, error) {
	switch t {
	case schema.Bool:
		if len(b) < 1 {
			return nil, 0, errCorrupt
		}
		return b[0] != 0, 1, nil
	case schema.Int8:
		if len(b) < 1 {
			return nil, 0, errCorrupt
		}
		return int64(int8(b[0])), 1, nil
	case schema.UInt8:
		if len(b) < 1 {
			return nil, 0, errCorrupt
		}
		return uint64(b[0]), 1, nil
	case schema.Int16:
		if len(b) < 2 {
			return nil, 0, errCorrupt
		}
		return int64(int16(binary.LittleEndian.Uint16(b))), 2, nil
	case schema.UInt16:
		if len(b) < 2 {
			return nil, 0, errCorrupt
		}
		return uint64(binary.LittleEndian.Uint16(b)), 2, nil
	case schema.Int32:
		if len(b) < 4 {
			return nil, 0, errCorrupt
		}
		return int64(int32(binary.LittleEndian.Uint32(b))), 4, nil
	case schema.UInt32:
		if len(b) < 4 {
			return nil, 0, errCorrupt
		}
		return uint64(binary.LittleEndian.Uint32(b)), 4, nil
	case schema.Int64:
		if len(b) < 8 {
			return nil, 0, errCorrupt
		}
		return int64(binary.LittleEndian.Uint64(b)), 8, nil
	case schema.UInt64:
		if len(b) < 8 {
			return nil, 0, errCorrupt
		}
		return binary.LittleEndian.Uint64(b), 8, nil
	case schema.Float32:
		if len(b) < 4 {
			return nil, 0, errCorrupt
		}
		return bitsToFloat32(binary.LittleEndian.Uint32(b)), 4, nil
	case schema.Float64:
		if len(b) < 8 {
			return nil, 0, errCorrupt
		}
		return bitsToFloat64(binary.LittleEndian.Uint64(b)), 8, nil
	case schema.Text:
		if len(b) < 4 {
			return nil, 0, errCorrupt
		}
		n := int(binary.LittleEndian.Uint32(b))
		if n < 0 || 4+n > len(b) {
			return nil, 0, errCorrupt
		}
		raw := b[4 : 4+n]
		if n == 0 {
			return "", 4, nil
		}
		return unsafe.String(&raw[0], n), 4 + n, nil
	case schema.Data:
		if len(b) < 4 {
			return nil, 0, errCorrupt
		}
		n := int(binary.LittleEndian.Uint32(b))
		if n < 0 || 4+n > len(b) {
			return nil, 0, errCorrupt
		}
		return b[4 : 4+n : 4+n], 4 + n, nil
	default:
		return nil, 0, fmt.Errorf("unsupported field type %v", t)
	}
}
