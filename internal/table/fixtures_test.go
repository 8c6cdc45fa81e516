package table

import (
	"errors"
	"testing"

	"gopkg.in/yaml.v3"

	"github.com/portabletab/portabletab/internal/codec"
)

// fixtureYAML declares a small batch of records plus the expected
// results of a few searches against them, keeping multi-row scenario
// data out of Go literals.
const fixtureYAML = `
records:
  - name: Ada
    age: 36
  - name: Alan
    age: 41
  - name: Alice
    age: 29
  - name: Bob
    age: 50
searches:
  - mode: exact
    value: Ada
    want: 1
  - mode: keys
    value: Al
    want: 2
  - mode: prefixes
    value: Alancourt
    want: 1
`

type fixtureRecord struct {
	Name string `yaml:"name"`
	Age  int    `yaml:"age"`
}

type fixtureSearch struct {
	Mode  string `yaml:"mode"`
	Value string `yaml:"value"`
	Want  int    `yaml:"want"`
}

type fixture struct {
	Records []fixtureRecord `yaml:"records"`
	Searches []fixtureSearch `yaml:"searches"`
}

func loadFixture(t *testing.T) fixture {
	t.Helper()
	var f fixture
	if err := yaml.Unmarshal([]byte(fixtureYAML), &f); err != nil {
		t.Fatalf("unmarshal fixture: %v", err)
	}
	return f
}

func searchModeByName(name string) (SearchMode, error) {
	switch name {
	case "exact":
		return SearchExact, nil
	case "prefixes":
		return SearchPrefixes, nil
	case "keys":
		return SearchKeys, nil
	default:
		return 0, errors.New("unknown search mode in fixture: " + name)
	}
}

func TestTrieSearchModesAgainstFixture(t *testing.T) {
	f := loadFixture(t)
	m := newTestManager(t)

	records := make([]codec.Record, len(f.Records))
	for i, r := range f.Records {
		records[i] = codec.Record{"name": r.Name, "age": r.Age}
	}
	if _, err := m.Append(records); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := m.CreateTrie("name", nil, nil); err != nil {
		t.Fatalf("CreateTrie: %v", err)
	}

	for _, s := range f.Searches {
		mode, err := searchModeByName(s.Mode)
		if err != nil {
			t.Fatalf("%v", err)
		}
		got, err := m.Search("name", s.Value, mode)
		if err != nil {
			t.Fatalf("Search(%s, %s): %v", s.Mode, s.Value, err)
		}
		if len(got) != s.Want {
			t.Errorf("Search(%s, %q) = %d results, want %d", s.Mode, s.Value, len(got), s.Want)
		}
	}
}
