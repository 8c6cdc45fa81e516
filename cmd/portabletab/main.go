// Command portabletab is a CLI front-end offering dump, list, and
// search against a database directory of tables built with this
// module.
package main

import (
	"encoding/csv"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/portabletab/portabletab"
)

func main() {
	log.SetFlags(0)
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	var err error
	switch os.Args[1] {
	case "dump":
		err = runDump(os.Args[2:])
	case "list":
		err = runList(os.Args[2:])
	case "search":
		err = runSearch(os.Args[2:])
	default:
		usage()
		os.Exit(1)
	}
	if err != nil {
		log.Printf("portabletab: %v", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `usage:
  portabletab dump [--db-dir D] [-f F] ([-n N] | [-t T]) <table>
  portabletab list [--db-dir D]
  portabletab search [--db-dir D] (--keys|--prefixes|<exact>) <table> <attr> <value>`)
}

func runDump(args []string) error {
	fs := flag.NewFlagSet("dump", flag.ContinueOnError)
	dbDir := fs.String("db-dir", ".", "database directory")
	from := fs.Int("f", 0, "first ordinal to dump")
	count := fs.Int("n", -1, "number of records to dump")
	to := fs.Int("t", -1, "last ordinal (exclusive) to dump")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("dump: expected exactly one table name")
	}
	tablename := fs.Arg(0)

	db, err := portabletab.Open(*dbDir)
	if err != nil {
		return err
	}
	defer db.Close()
	t := db.Table(tablename)

	total, err := t.Count()
	if err != nil {
		return err
	}
	limit := total - *from
	if *count >= 0 {
		limit = *count
	} else if *to >= 0 {
		limit = *to - *from
	}
	if limit < 0 {
		limit = 0
	}

	cur, err := t.Iterate(*from, limit)
	if err != nil {
		return err
	}
	defer cur.Close()

	w := csv.NewWriter(os.Stdout)
	defer w.Flush()

	header := false
	for cur.Next() {
		rec, err := cur.Record()
		if err != nil {
			return err
		}
		m, err := rec.Map()
		if err != nil {
			return err
		}
		names := rec.FieldNames()
		if !header {
			if err := w.Write(names); err != nil {
				return err
			}
			header = true
		}
		row := make([]string, len(names))
		for i, n := range names {
			row[i] = fmt.Sprint(m[n])
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	return cur.Err()
}

func runList(args []string) error {
	fs := flag.NewFlagSet("list", flag.ContinueOnError)
	dbDir := fs.String("db-dir", ".", "database directory")
	if err := fs.Parse(args); err != nil {
		return err
	}

	db, err := portabletab.Open(*dbDir)
	if err != nil {
		return err
	}
	defer db.Close()

	names, err := db.Tables()
	if err != nil {
		return err
	}
	for _, name := range names {
		t := db.Table(name)
		count, err := t.Count()
		if err != nil {
			fmt.Printf("%s\t(error: %v)\n", name, err)
			continue
		}
		fmt.Printf("%s\t%d\n", name, count)

		entries, err := os.ReadDir(t.Dir())
		if err != nil {
			continue
		}
		for _, e := range entries {
			if filepath.Ext(e.Name()) == ".trie" {
				fmt.Printf("  index: %s\n", e.Name())
			}
		}
	}
	return nil
}

func runSearch(args []string) error {
	fs := flag.NewFlagSet("search", flag.ContinueOnError)
	dbDir := fs.String("db-dir", ".", "database directory")
	keys := fs.Bool("keys", false, "search mode: keys extending value")
	prefixes := fs.Bool("prefixes", false, "search mode: stored keys that are prefixes of value")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 3 {
		return fmt.Errorf("search: expected <table> <attr> <value>")
	}
	if *keys && *prefixes {
		return fmt.Errorf("search: --keys and --prefixes are mutually exclusive")
	}
	mode := portabletab.SearchExact
	switch {
	case *keys:
		mode = portabletab.SearchKeys
	case *prefixes:
		mode = portabletab.SearchPrefixes
	}

	tablename, attr, value := fs.Arg(0), fs.Arg(1), fs.Arg(2)

	db, err := portabletab.Open(*dbDir)
	if err != nil {
		return err
	}
	defer db.Close()
	t := db.Table(tablename)

	recs, err := t.Search(attr, value, mode)
	if err != nil {
		if errors.Is(err, portabletab.ErrNoIndex) {
			return fmt.Errorf("no index on attribute %q", attr)
		}
		return err
	}

	w := csv.NewWriter(os.Stdout)
	defer w.Flush()

	header := false
	for _, rec := range recs {
		m, err := rec.Map()
		if err != nil {
			return err
		}
		names := rec.FieldNames()
		if !header {
			if err := w.Write(names); err != nil {
				return err
			}
			header = true
		}
		row := make([]string, len(names))
		for i, n := range names {
			row[i] = fmt.Sprint(m[n])
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	return nil
}
