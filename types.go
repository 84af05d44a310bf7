package novardb

import (
	"github.com/tuannm99/novardb/internal/dberr"
	"github.com/tuannm99/novardb/internal/index"
	"github.com/tuannm99/novardb/internal/sql/executor"
	"github.com/tuannm99/novardb/internal/sql/planner"
)

type (
	Result         = executor.Result
	ExecutionError = dberr.ExecutionError
	IndexKind      = index.Kind
	IndexInfo      = index.Info
	PlanStep       = planner.Step
)

const (
	IndexKindHash  = index.KindHash
	IndexKindBTree = index.KindBTree
)

var (
	ErrParse            = dberr.ErrParse
	ErrSchema           = dberr.ErrSchema
	ErrConstraint       = dberr.ErrConstraint
	ErrStorage          = dberr.ErrStorage
	ErrTableNotFound    = dberr.ErrTableNotFound
	ErrDatabaseNotFound = dberr.ErrDatabaseNotFound
	ErrTableExists      = dberr.ErrTableExists
	ErrColumnNotFound   = dberr.ErrColumnNotFound

	ErrIndexNotFound  = index.ErrIndexNotFound
	ErrIndexBadKind   = index.ErrIndexBadKind
	ErrIndexBadColumn = index.ErrIndexBadColumn
)

// Plan is the EXPLAIN output: the statement's operation and the steps it
// would run, without cost estimates.
type Plan struct {
	Operation string     `json:"operation" yaml:"operation"`
	Steps     []PlanStep `json:"steps" yaml:"steps"`
}

type TableStats struct {
	RowCount    int `json:"row_count" yaml:"row_count"`
	ColumnCount int `json:"column_count" yaml:"column_count"`
}

type Stats struct {
	Name      string                `json:"name" yaml:"name"`
	Tables    map[string]TableStats `json:"tables" yaml:"tables"`
	TotalRows int                   `json:"total_rows" yaml:"total_rows"`
}
