package codec

import (
	"testing"

	"github.com/portabletab/portabletab/internal/schema"
)

func userDef() *schema.StructDef {
	return &schema.StructDef{
		Name: "User",
		Fields: []schema.Field{
			{Name: "name", Ordinal: 0, Type: schema.Text},
			{Name: "age", Ordinal: 1, Type: schema.UInt32},
			{Name: "active", Ordinal: 2, Type: schema.Bool},
			{Name: "balance", Ordinal: 3, Type: schema.Float64},
			{Name: "avatar", Ordinal: 4, Type: schema.Data},
		},
	}
}

func TestEncodeViewRoundTrip(t *testing.T) {
	def := userDef()
	records := []Record{
		{"name": "Ada", "age": 36, "active": true, "balance": 12.5, "avatar": []byte{1, 2, 3}},
		{"name": "Alan", "age": 41, "active": false, "balance": -3.25, "avatar": []byte{}},
	}

	buf, err := Encode(def, records)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	frame, err := View(def, buf)
	if err != nil {
		t.Fatalf("View: %v", err)
	}
	if frame.Count() != 2 {
		t.Fatalf("Count() = %d, want 2", frame.Count())
	}

	r0, err := frame.Record(0)
	if err != nil {
		t.Fatalf("Record(0): %v", err)
	}
	if v, err := r0.Get("name"); err != nil || v != "Ada" {
		t.Fatalf("record 0 name = %v, %v; want Ada", v, err)
	}
	if v, err := r0.Get("age"); err != nil || v != uint64(36) {
		t.Fatalf("record 0 age = %v, %v; want 36", v, err)
	}
	if v, err := r0.Get("active"); err != nil || v != true {
		t.Fatalf("record 0 active = %v, %v; want true", v, err)
	}

	m, err := r0.Map()
	if err != nil {
		t.Fatalf("Map: %v", err)
	}
	if m["name"] != "Ada" || m["active"] != true {
		t.Fatalf("Map() = %+v", m)
	}

	r1, err := frame.Record(1)
	if err != nil {
		t.Fatalf("Record(1): %v", err)
	}
	if v, err := r1.Get("name"); err != nil || v != "Alan" {
		t.Fatalf("record 1 name = %v, %v; want Alan", v, err)
	}
}

func TestEncodeMissingFieldUsesZeroValue(t *testing.T) {
	def := userDef()
	buf, err := Encode(def, []Record{{"name": "Grace"}})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	frame, err := View(def, buf)
	if err != nil {
		t.Fatalf("View: %v", err)
	}
	rec, err := frame.Record(0)
	if err != nil {
		t.Fatalf("Record(0): %v", err)
	}
	if v, _ := rec.Get("age"); v != uint64(0) {
		t.Fatalf("age zero value = %v, want 0", v)
	}
	if v, _ := rec.Get("active"); v != false {
		t.Fatalf("active zero value = %v, want false", v)
	}
}

func TestFieldNamesOrder(t *testing.T) {
	def := userDef()
	buf, err := Encode(def, []Record{{"name": "Ada"}})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	frame, err := View(def, buf)
	if err != nil {
		t.Fatalf("View: %v", err)
	}
	rec, err := frame.Record(0)
	if err != nil {
		t.Fatalf("Record(0): %v", err)
	}
	want := []string{"name", "age", "active", "balance", "avatar"}
	got := rec.FieldNames()
	if len(got) != len(want) {
		t.Fatalf("FieldNames() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("FieldNames()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestViewRejectsCorruptFrames(t *testing.T) {
	def := userDef()
	buf, err := Encode(def, []Record{{"name": "Ada"}})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	t.Run("truncated", func(t *testing.T) {
		if _, err := View(def, buf[:headerSize]); err == nil {
			t.Fatalf("expected error for truncated frame")
		}
	})

	t.Run("bad magic", func(t *testing.T) {
		corrupt := append([]byte(nil), buf...)
		corrupt[0] ^= 0xff
		_, err := View(def, corrupt)
		if err == nil || !IsCorrupt(err) {
			t.Fatalf("expected IsCorrupt error for bad magic, got %v", err)
		}
	})

	t.Run("bad checksum", func(t *testing.T) {
		corrupt := append([]byte(nil), buf...)
		corrupt[len(corrupt)-1] ^= 0xff
		_, err := View(def, corrupt)
		if err == nil || !IsCorrupt(err) {
			t.Fatalf("expected IsCorrupt error for bad checksum, got %v", err)
		}
	})
}

func TestRecordOutOfRange(t *testing.T) {
	def := userDef()
	buf, err := Encode(def, []Record{{"name": "Ada"}})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	frame, err := View(def, buf)
	if err != nil {
		t.Fatalf("View: %v", err)
	}
	if _, err := frame.Record(1); err == nil {
		t.Fatalf("expected out-of-range error")
	}
	if _, err := frame.Record(-1); err == nil {
		t.Fatalf("expected out-of-range error for negative index")
	}
}
