package storage

import (
	"errors"
	"time"

	"github.com/tuannm99/novardb/internal/record"
)

var ErrIndexNotFound = errors.New("novardb: index not found")

// Engine is the one persistence contract the executor and index manager use.
// Implementations do not lock: callers that mutate a table hold LockTable for
// the whole read-modify-write cycle.
type Engine interface {
	CreateDatabase(name string) (bool, error)
	DropDatabase(name string) (bool, error)
	ListDatabases() ([]string, error)
	DatabaseExists(name string) bool

	ListTables(db string) ([]string, error)
	TableExists(db, table string) bool
	SaveSchema(db, table string, schema record.TableSchema) error
	LoadSchema(db, table string) (*record.TableSchema, error)
	DropTable(db, table string) (bool, error)

	InsertRow(db, table string, row record.Row) error
	GetAllRows(db, table string) ([]record.Row, error)
	ReadRowStore(db, table string) (*RowStore, error)
	ReplaceAllRows(db, table string, rows []record.Row) error

	SaveIndex(db, table string, idx *IndexRecord) error
	LoadIndex(db, table, column string) (*IndexRecord, error)
	DeleteIndex(db, table, column string) (bool, error)
	ListIndexes(db, table string) ([]string, error)

	LockTable(db, table string) (unlock func())
}

// RowStore is a snapshot of a table's rows. Generation changes on every
// whole-store rewrite, i.e. whenever row positions may have moved.
type RowStore struct {
	Generation uint64
	Rows       []record.Row
}

// IndexRecord is the persisted form of an equality index. It is valid only for
// the RowStore generation and row count it was built against.
type IndexRecord struct {
	Table      string           `json:"table"`
	Column     string           `json:"column"`
	Kind       string           `json:"kind"`
	Generation uint64           `json:"generation"`
	RowCount   int              `json:"row_count"`
	Entries    map[string][]int `json:"entries"`
	CreatedAt  time.Time        `json:"created_at"`
	UpdatedAt  time.Time        `json:"updated_at"`
}

// Fresh reports whether the index was built against exactly this snapshot.
func (r *IndexRecord) Fresh(rs *RowStore) bool {
	return r.Generation == rs.Generation && r.RowCount == len(rs.Rows)
}
