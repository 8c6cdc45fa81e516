package main

import "github.com/portabletab/portabletab"

const seedSchema = "struct User {\n  name @0 :Text;\n  age @1 :UInt32;\n}\n"

func seedUsersTable(dbDir string) error {
	db, err := portabletab.Open(dbDir)
	if err != nil {
		return err
	}
	defer db.Close()

	users := db.Table("users")
	if _, err := users.Create(seedSchema, "User"); err != nil {
		return err
	}
	_, err = users.Append([]portabletab.Record{
		{"name": "Ada", "age": 36},
		{"name": "Alan", "age": 41},
	})
	return err
}
