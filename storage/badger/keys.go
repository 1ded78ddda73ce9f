package badger

// Key prefixes for different data types
const (
	tablePrefix  = "tbl"
	recordPrefix = "rec"
)

// makeTableKey generates the key holding a table's schema.
// Format: tbl:name
func makeTableKey(name string) []byte {
	return []byte(tablePrefix + ":" + name)
}

// makeTablesPrefix generates the prefix shared by all table schema keys.
func makeTablesPrefix() []byte {
	return []byte(tablePrefix + ":")
}

// makeRecordKey generates a key for a record by table and ID.
// Format: rec:table:id
func makeRecordKey(table, id string) []byte {
	prefix := makeRecordPrefix(table)
	buf := make([]byte, len(prefix)+len(id))
	offset := copy(buf, prefix)
	copy(buf[offset:], id)
	return buf
}

// makeRecordPrefix generates the prefix shared by all records of a table.
// Table names cannot contain ':' so prefixes never overlap.
func makeRecordPrefix(table string) []byte {
	return []byte(recordPrefix + ":" + table + ":")
}
