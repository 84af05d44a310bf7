package novawire

import "github.com/tuannm99/novardb"

type Op string

const (
	OpExecute        Op = "execute"
	OpBatch          Op = "batch"
	OpExplain        Op = "explain"
	OpStats          Op = "stats"
	OpListIndexes    Op = "list_indexes"
	OpCreateIndex    Op = "create_index"
	OpDropIndex      Op = "drop_index"
	OpCreateDatabase Op = "create_database"
	OpDropDatabase   Op = "drop_database"
	OpListDatabases  Op = "list_databases"
	OpListTables     Op = "list_tables"
)

// Request is one client call. DB selects the database; when empty the
// server's default database is used. Only the fields the op needs are read.
type Request struct {
	ID     uint64   `json:"id"`
	Op     Op       `json:"op"`
	DB     string   `json:"db,omitempty"`
	SQL    string   `json:"sql,omitempty"`
	Batch  []string `json:"batch,omitempty"`
	Table  string   `json:"table,omitempty"`
	Column string   `json:"column,omitempty"`
	Kind   string   `json:"kind,omitempty"`
}

// Response answers the Request with the same ID. Statement failures travel
// inside Result; Error is set only when the request itself could not be served.
type Response struct {
	ID      uint64              `json:"id"`
	Result  *novardb.Result     `json:"result,omitempty"`
	Results []*novardb.Result   `json:"results,omitempty"`
	Plan    *novardb.Plan       `json:"plan,omitempty"`
	Stats   *novardb.Stats      `json:"stats,omitempty"`
	Indexes []novardb.IndexInfo `json:"indexes,omitempty"`
	Names   []string            `json:"names,omitempty"`
	Created *bool               `json:"created,omitempty"`
	Error   string              `json:"error,omitempty"`
}
