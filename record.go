package portabletab

import "github.com/portabletab/portabletab/internal/codec"

// Record is the write-side representation of one row passed to Append or
// Update: field name to Go value (bool, intNN/uintNN, float32/64, string,
// or []byte — whatever the field's schema type expects). Missing fields
// encode as the type's zero value.
type Record = codec.Record

// RecordView is a zero-copy, decoded-on-demand read-side record returned
// by Get, Iterate, and Search. Its string fields point directly into the
// mmap'd page backing it and are valid only as long as that page stays
// mapped — do not retain a RecordView, or values read from it, past the
// call that produced it without first copying what you need out via Map.
type RecordView = codec.Record2
