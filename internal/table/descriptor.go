package table

import (
	"encoding/json"
	"fmt"
)

// Descriptor is the per-table metadata document, config.json. Count is
// the single source of truth for the table's record count; the other
// fields are set at creation and immutable.
type Descriptor struct {
	SchemaFile string `json:"schema_file"`
	ModuleName string `json:"module_name"`
	RecordType string `json:"record_type"`
	ListType   string `json:"list_type"`
	Count      int    `json:"count"`
}

// rawDescriptor additionally accepts the historical "length" key so
// decodeDescriptor can fall back to it when "count" is absent.
type rawDescriptor struct {
	SchemaFile string `json:"schema_file"`
	ModuleName string `json:"module_name"`
	RecordType string `json:"record_type"`
	ListType   string `json:"list_type"`
	Count      *int   `json:"count"`
	Length     *int   `json:"length"`
}

func decodeDescriptor(data []byte) (*Descriptor, error) {
	var raw rawDescriptor
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("table: decode descriptor: %w", err)
	}
	d := &Descriptor{
		SchemaFile: raw.SchemaFile,
		ModuleName: raw.ModuleName,
		RecordType: raw.RecordType,
		ListType:   raw.ListType,
	}
	switch {
	case raw.Count != nil:
		d.Count = *raw.Count
	case raw.Length != nil:
		d.Count = *raw.Length
	default:
		return nil, fmt.Errorf("table: descriptor missing both \"count\" and \"length\"")
	}
	return d, nil
}

func encodeDescriptor(d *Descriptor) ([]byte, error) {
	b, err := json.Marshal(d)
	if err != nil {
		return nil, fmt.Errorf("table: encode descriptor: %w", err)
	}
	return b, nil
}
