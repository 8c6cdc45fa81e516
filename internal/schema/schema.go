// Package schema compiles the small structural schema language used to
// describe a table's record layout: a leading 64-bit identifier line
// followed by one or more Cap'n-Proto-flavoured struct declarations.
//
// The language is intentionally tiny — it exists to give the codec (see
// internal/codec) a typed field list to serialize against, not to be a
// general purpose IDL.
package schema

import (
	"bufio"
	"fmt"
	"hash/fnv"
	"strconv"
	"strings"
)

// FieldType enumerates the primitive types a record field may hold.
type FieldType int

const (
	Bool FieldType = iota
	Int8
	Int16
	Int32
	Int64
	UInt8
	UInt16
	UInt32
	UInt64
	Float32
	Float64
	Text
	Data
)

var typeNames = map[string]FieldType{
	"Bool": Bool, "Int8": Int8, "Int16": Int16, "Int32": Int32, "Int64": Int64,
	"UInt8": UInt8, "UInt16": UInt16, "UInt32": UInt32, "UInt64": UInt64,
	"Float32": Float32, "Float64": Float64, "Text": Text, "Data": Data,
}

// FixedWidth reports the on-disk width of fixed-size types, or 0 for the
// variable-length types (Text, Data), which are length-prefixed instead.
func (t FieldType) FixedWidth() int {
	switch t {
	case Bool, Int8, UInt8:
		return 1
	case Int16, UInt16:
		return 2
	case Int32, UInt32, Float32:
		return 4
	case Int64, UInt64, Float64:
		return 8
	default:
		return 0
	}
}

func (t FieldType) String() string {
	for name, ft := range typeNames {
		if ft == t {
			return name
		}
	}
	return "Unknown"
}

// Field is a single named, ordered, typed struct member.
type Field struct {
	Name    string
	Ordinal int
	Type    FieldType
}

// StructDef is one `struct Name { ... }` declaration.
type StructDef struct {
	Name   string
	Fields []Field
}

// Schema is a compiled schema file: a stable 64-bit identifier plus every
// struct declared in the source text, keyed by name.
type Schema struct {
	ID      uint64
	Structs map[string]*StructDef
	Source  string // verbatim source text, including the id line
}

// Struct resolves a struct declaration by name.
func (s *Schema) Struct(name string) (*StructDef, bool) {
	d, ok := s.Structs[name]
	return d, ok
}

// MissingIDError is returned by Parse when the source text has no leading
// `@0x{16hex};` identifier line. Suggested carries the digest the caller
// should prepend before retrying, the registry's auto-repair behavior.
type MissingIDError struct {
	Suggested uint64
}

func (e *MissingIDError) Error() string {
	return fmt.Sprintf("schema: missing id line, suggested @0x%016x;", e.Suggested)
}

// Digest computes a deterministic 64-bit identifier for schema text that
// never declared one, the same way every time for the same bytes.
func Digest(text string) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(text))
	return h.Sum64()
}

var idLine = func() func(string) (uint64, bool) {
	return func(line string) (uint64, bool) {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "@0x") || !strings.HasSuffix(line, ";") {
			return 0, false
		}
		hexPart := strings.TrimSuffix(strings.TrimPrefix(line, "@0x"), ";")
		v, err := strconv.ParseUint(hexPart, 16, 64)
		if err != nil {
			return 0, false
		}
		return v, true
	}
}()

// Parse compiles schema text into a Schema. The first non-blank line must
// be the `@0x{16hex};` identifier; if it is absent, Parse returns a
// *MissingIDError carrying a deterministic suggestion instead of
// attempting to guess.
func Parse(text string) (*Schema, error) {
	scanner := bufio.NewScanner(strings.NewReader(text))
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)

	var id uint64
	idSeen := false
	rest := &strings.Builder{}

	first := true
	for scanner.Scan() {
		line := scanner.Text()
		if first && strings.TrimSpace(line) != "" {
			first = false
			if v, ok := idLine(line); ok {
				id = v
				idSeen = true
				continue
			}
			return nil, &MissingIDError{Suggested: Digest(text)}
		}
		if first {
			// still consuming leading blank lines
			continue
		}
		rest.WriteString(line)
		rest.WriteByte('\n')
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("schema: read: %w", err)
	}
	if !idSeen {
		return nil, &MissingIDError{Suggested: Digest(text)}
	}

	structs, err := parseStructs(rest.String())
	if err != nil {
		return nil, err
	}

	return &Schema{ID: id, Structs: structs, Source: text}, nil
}

func parseStructs(body string) (map[string]*StructDef, error) {
	out := map[string]*StructDef{}
	toks := tokenize(body)
	i := 0
	for i < len(toks) {
		if toks[i] != "struct" {
			i++
			continue
		}
		if i+2 >= len(toks) || toks[i+2] != "{" {
			return nil, fmt.Errorf("schema: malformed struct declaration near %q", strings.Join(toks[i:min(i+4, len(toks))], " "))
		}
		name := toks[i+1]
		i += 3
		def := &StructDef{Name: name}
		for i < len(toks) && toks[i] != "}" {
			// fieldName @ord : Type ;
			if i+5 >= len(toks) || toks[i+1] != "@" || toks[i+3] != ":" {
				return nil, fmt.Errorf("schema: malformed field near %q in struct %s", strings.Join(toks[i:min(i+6, len(toks))], " "), name)
			}
			fname := toks[i]
			ordStr := toks[i+2]
			ftypeName := toks[i+4]
			ord, err := strconv.Atoi(ordStr)
			if err != nil {
				return nil, fmt.Errorf("schema: bad ordinal %q for field %s: %w", ordStr, fname, err)
			}
			ftype, ok := resolveType(ftypeName)
			if !ok {
				return nil, fmt.Errorf("schema: unknown type %q for field %s", ftypeName, fname)
			}
			def.Fields = append(def.Fields, Field{Name: fname, Ordinal: ord, Type: ftype})
			i += 6 // consume trailing ';'
		}
		if i >= len(toks) {
			return nil, fmt.Errorf("schema: unterminated struct %s", name)
		}
		i++ // consume '}'
		out[name] = def
	}
	return out, nil
}

// resolveType understands both bare type names (UInt32) and the
// List(RecordType) form used by the synthesized list struct; the latter
// is treated as an opaque reference the codec resolves separately, so it
// parses here as Data (its ordinal/name are all the list struct needs).
func resolveType(tok string) (FieldType, bool) {
	if strings.HasPrefix(tok, "List(") {
		return Data, true
	}
	ft, ok := typeNames[tok]
	return ft, ok
}

// tokenize splits schema body text into words, treating '{', '}', '@',
// ':', and ';' as their own tokens regardless of surrounding whitespace.
func tokenize(body string) []string {
	var toks []string
	var cur strings.Builder
	flush := func() {
		if cur.Len() > 0 {
			toks = append(toks, cur.String())
			cur.Reset()
		}
	}
	for _, r := range body {
		switch r {
		case '{', '}', '@', ':', ';':
			flush()
			toks = append(toks, string(r))
		case ' ', '\t', '\n', '\r':
			flush()
		default:
			cur.WriteRune(r)
		}
	}
	flush()
	return toks
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
