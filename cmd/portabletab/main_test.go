package main

import (
	"bytes"
	"encoding/csv"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
)

func TestBuildCLI(t *testing.T) {
	out := filepath.Join(t.TempDir(), "portabletab_bin")
	cmd := exec.Command("go", "build", "-o", out, ".")
	cmd.Env = os.Environ()
	if outp, err := cmd.CombinedOutput(); err != nil {
		t.Fatalf("go build failed: %v\n%s", err, string(outp))
	}
}

func TestDumpAndListAgainstBuiltBinary(t *testing.T) {
	out := filepath.Join(t.TempDir(), "portabletab_bin")
	build := exec.Command("go", "build", "-o", out, ".")
	build.Env = os.Environ()
	if outp, err := build.CombinedOutput(); err != nil {
		t.Fatalf("go build failed: %v\n%s", err, string(outp))
	}

	dbDir := t.TempDir()

	// Populate a table through the library rather than shelling out a
	// second CLI subcommand for it — this module's CLI has no "create",
	// only dump/list/search.
	if err := seedUsersTable(dbDir); err != nil {
		t.Fatalf("seedUsersTable: %v", err)
	}

	listOut, err := exec.Command(out, "list", "--db-dir", dbDir).CombinedOutput()
	if err != nil {
		t.Fatalf("list: %v\n%s", err, listOut)
	}
	if !strings.Contains(string(listOut), "users\t2") {
		t.Fatalf("list output = %q, want it to contain \"users\\t2\"", listOut)
	}

	dumpOut, err := exec.Command(out, "dump", "--db-dir", dbDir, "users").CombinedOutput()
	if err != nil {
		t.Fatalf("dump: %v\n%s", err, dumpOut)
	}
	rows, err := csv.NewReader(bytes.NewReader(dumpOut)).ReadAll()
	if err != nil {
		t.Fatalf("parse dump CSV: %v", err)
	}
	if len(rows) != 3 { // header + 2 records
		t.Fatalf("dump produced %d CSV rows, want 3 (header + 2 records)", len(rows))
	}
	if rows[0][0] != "name" {
		t.Fatalf("dump header = %v, want first column \"name\"", rows[0])
	}
}
