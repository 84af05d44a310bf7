package planner

import (
	"github.com/tuannm99/novardb/internal/record"
	"github.com/tuannm99/novardb/internal/sql/parser"
)

// Plan is the interface for executable plans.
type Plan interface {
	planNode()
	// Steps lists the operators in pipeline order for EXPLAIN.
	Steps() []Step
}

// Step is one named operator of a plan. There are no cost estimates.
type Step struct {
	Operation string   `json:"operation" yaml:"operation"`
	Table     string   `json:"table,omitempty" yaml:"table,omitempty"`
	Columns   []string `json:"columns,omitempty" yaml:"columns,omitempty"`
	Detail    string   `json:"detail,omitempty" yaml:"detail,omitempty"`
}

// ----- Plan nodes -----

type CreateTablePlan struct {
	TableName   string
	Schema      record.TableSchema
	IfNotExists bool
}

func (*CreateTablePlan) planNode() {}

type InsertPlan struct {
	TableName string
	Columns   []string // empty for positional inserts
	Values    []any
}

func (*InsertPlan) planNode() {}

type AccessKind string

const (
	SeqScan     AccessKind = "SeqScan"
	IndexLookup AccessKind = "IndexLookup"
)

// Access is how the base table rows are fetched.
type Access struct {
	Kind   AccessKind
	Table  string
	Column string // IndexLookup only
	Value  any    // IndexLookup only
}

type SelectPlan struct {
	Access  Access
	Alias   string
	Join    *parser.JoinClause
	Where   *parser.Condition // nil when the index lookup already applies it
	GroupBy string
	Columns []string
	OrderBy *parser.OrderBy
	Limit   *int
}

func (*SelectPlan) planNode() {}

// Aggregates returns the aggregate tokens of the projection.
func (p *SelectPlan) Aggregates() []string {
	var out []string
	for _, c := range p.Columns {
		if _, _, ok := ParseAggregate(c); ok {
			out = append(out, c)
		}
	}
	return out
}

type UpdatePlan struct {
	TableName string
	Set       []parser.Assignment
	Where     *parser.Condition
}

func (*UpdatePlan) planNode() {}

type DeletePlan struct {
	TableName string
	Where     *parser.Condition
}

func (*DeletePlan) planNode() {}

type DropTablePlan struct {
	TableName string
	IfExists  bool
}

func (*DropTablePlan) planNode() {}
