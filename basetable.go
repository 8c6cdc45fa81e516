package portabletab

// BaseTable is a schema-bound façade: a type that binds (tablename,
// schema text, record type) once, at definition time, so its Create
// takes no further arguments. Embed it to declare a table type with a
// fixed shape and a zero-argument create():
//
//	type Users struct{ portabletab.BaseTable }
//
//	func NewUsers(db *portabletab.Database) *Users {
//		return &Users{*portabletab.NewBaseTable(db, "users", userSchema, "User")}
//	}
type BaseTable struct {
	*Table
	schemaText string
	recordType string
}

// NewBaseTable binds tablename to schemaText/recordType against db and
// returns the bound façade. It does not create the table directory;
// call Create on the result to do that.
func NewBaseTable(db *Database, tablename, schemaText, recordType string) *BaseTable {
	return &BaseTable{
		Table:      db.Table(tablename),
		schemaText: schemaText,
		recordType: recordType,
	}
}

// Create creates the bound table using the schema text and record type
// fixed at construction time.
func (b *BaseTable) Create() (string, error) {
	return b.Table.Create(b.schemaText, b.recordType)
}
