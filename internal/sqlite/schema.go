package sqlite

// Schema DDL. Every entity lives in one records table keyed by table name and
// ID; payload holds the entity's JSON encoding and seq preserves write order.
const (
	createRecords = `CREATE TABLE IF NOT EXISTS records (
    table_name TEXT NOT NULL,
    id TEXT NOT NULL,
    seq INTEGER NOT NULL,
    payload TEXT NOT NULL,
    PRIMARY KEY (table_name, id)
);`

	idxRecordsSeq = `CREATE INDEX IF NOT EXISTS idx_records_seq ON records(table_name, seq);`
)

// schemaDDL lists every statement run on Attach, in order.
var schemaDDL = []string{
	createRecords,
	idxRecordsSeq,
}
