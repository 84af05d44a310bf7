package parser

// Statement is the root interface for all SQL statements.
type Statement interface {
	stmtNode()
}

// ----- CREATE TABLE -----

type Constraint string

const (
	PrimaryKey Constraint = "PRIMARY KEY"
	Unique     Constraint = "UNIQUE"
	NotNull    Constraint = "NOT NULL"
)

type ColumnDef struct {
	Name string
	// Type is the upper-cased type name as written; aliases are resolved later.
	Type        string
	MaxLength   *int
	Constraints []Constraint
}

func (c ColumnDef) Has(k Constraint) bool {
	for _, x := range c.Constraints {
		if x == k {
			return true
		}
	}
	return false
}

type CreateTableStmt struct {
	TableName   string
	Columns     []ColumnDef
	IfNotExists bool
}

func (*CreateTableStmt) stmtNode() {}

// ----- INSERT -----

type InsertStmt struct {
	TableName string
	// Columns is empty for positional inserts.
	Columns []string
	Values  []any
}

func (*InsertStmt) stmtNode() {}

// ----- SELECT -----

// Condition is a single binary comparison `Column Op Value`.
type Condition struct {
	Column string
	Op     string // one of = != > < >= <=
	Value  any
}

type JoinType string

const (
	InnerJoin JoinType = "INNER"
	LeftJoin  JoinType = "LEFT"
	RightJoin JoinType = "RIGHT"
	FullJoin  JoinType = "FULL"
)

// ColumnRef is a possibly qualified column reference (`t.col` or `col`).
type ColumnRef struct {
	Table  string
	Column string
}

func (r ColumnRef) String() string {
	if r.Table == "" {
		return r.Column
	}
	return r.Table + "." + r.Column
}

type JoinOn struct {
	Left  ColumnRef
	Right ColumnRef
}

type JoinClause struct {
	Type  JoinType
	Table string
	Alias string
	// On is nil when the ON clause is absent or not of the form a = b;
	// the join then degrades to a cross product.
	On *JoinOn
}

type OrderBy struct {
	Column    string
	Ascending bool
}

type SelectStmt struct {
	// Columns holds "*", plain or qualified column names, and aggregate
	// tokens such as COUNT(*) or SUM(amount) in canonical upper-case form.
	Columns   []string
	TableName string
	Alias     string
	Where     *Condition
	Join      *JoinClause
	GroupBy   string
	OrderBy   *OrderBy
	Limit     *int
}

func (*SelectStmt) stmtNode() {}

// ----- UPDATE / DELETE / DROP -----

type Assignment struct {
	Column string
	Value  any
}

type UpdateStmt struct {
	TableName string
	Set       []Assignment
	Where     *Condition
}

func (*UpdateStmt) stmtNode() {}

type DeleteStmt struct {
	TableName string
	Where     *Condition
}

func (*DeleteStmt) stmtNode() {}

type DropTableStmt struct {
	TableName string
	IfExists  bool
}

func (*DropTableStmt) stmtNode() {}
