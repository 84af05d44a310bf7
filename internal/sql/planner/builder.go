package planner

import (
	"fmt"
	"strings"

	"github.com/tuannm99/novardb/internal/dberr"
	"github.com/tuannm99/novardb/internal/record"
	"github.com/tuannm99/novardb/internal/sql/parser"
)

// Catalog answers the questions the planner asks about the current database.
// A nil Catalog means "no indexes", so every SELECT scans.
type Catalog interface {
	HasIndex(table, column string) bool
}

// BuildPlan builds a physical plan from an AST Statement.
func BuildPlan(stmt parser.Statement, cat Catalog) (Plan, error) {
	switch s := stmt.(type) {
	case *parser.CreateTableStmt:
		return buildCreateTablePlan(s)
	case *parser.InsertStmt:
		return &InsertPlan{TableName: s.TableName, Columns: s.Columns, Values: s.Values}, nil
	case *parser.SelectStmt:
		return buildSelectPlan(s, cat), nil
	case *parser.UpdateStmt:
		return &UpdatePlan{TableName: s.TableName, Set: s.Set, Where: s.Where}, nil
	case *parser.DeleteStmt:
		return &DeletePlan{TableName: s.TableName, Where: s.Where}, nil
	case *parser.DropTableStmt:
		return &DropTablePlan{TableName: s.TableName, IfExists: s.IfExists}, nil
	default:
		return nil, fmt.Errorf("planner: unsupported statement type %T", stmt)
	}
}

func buildCreateTablePlan(s *parser.CreateTableStmt) (Plan, error) {
	schema := record.TableSchema{Name: s.TableName}
	for _, c := range s.Columns {
		col, err := mapColumn(c)
		if err != nil {
			return nil, err
		}
		schema.Columns = append(schema.Columns, col)
	}
	if err := schema.Validate(); err != nil {
		return nil, dberr.Schemaf("%v", err)
	}
	return &CreateTablePlan{TableName: s.TableName, Schema: schema, IfNotExists: s.IfNotExists}, nil
}

func mapColumn(c parser.ColumnDef) (record.Column, error) {
	typ, ok := record.ParseDataType(c.Type)
	if !ok {
		return record.Column{}, dberr.Schemaf("unsupported column type %s for column %s", c.Type, c.Name)
	}
	col := record.Column{Name: c.Name, Type: typ}
	for _, k := range c.Constraints {
		col.Constraints = append(col.Constraints, record.Constraint(k))
	}
	// A length only constrains VARCHAR; INT(11) style display widths are dropped.
	if c.MaxLength != nil && typ == record.TypeVarchar {
		n := *c.MaxLength
		col.MaxLength = &n
	}
	return col, nil
}

func buildSelectPlan(s *parser.SelectStmt, cat Catalog) *SelectPlan {
	p := &SelectPlan{
		Access:  Access{Kind: SeqScan, Table: s.TableName},
		Alias:   s.Alias,
		Join:    s.Join,
		Where:   s.Where,
		GroupBy: s.GroupBy,
		Columns: s.Columns,
		OrderBy: s.OrderBy,
		Limit:   s.Limit,
	}
	if cat == nil || s.Join != nil || s.Where == nil || s.Where.Op != "=" || s.Where.Value == nil {
		return p
	}
	col, ok := baseColumn(s.Where.Column, s.TableName, s.Alias)
	if !ok || !cat.HasIndex(s.TableName, col) {
		return p
	}
	p.Access = Access{Kind: IndexLookup, Table: s.TableName, Column: col, Value: s.Where.Value}
	p.Where = nil
	return p
}

// baseColumn strips a qualifier naming the base table (or its alias).
func baseColumn(ref, table, alias string) (string, bool) {
	q, col, ok := strings.Cut(ref, ".")
	if !ok {
		return ref, true
	}
	if strings.EqualFold(q, table) || (alias != "" && strings.EqualFold(q, alias)) {
		return col, true
	}
	return "", false
}

// ParseAggregate splits a canonical aggregate token such as "SUM(amount)".
func ParseAggregate(tok string) (fn, arg string, ok bool) {
	open := strings.IndexByte(tok, '(')
	if open <= 0 || !strings.HasSuffix(tok, ")") {
		return "", "", false
	}
	fn = strings.ToUpper(tok[:open])
	switch fn {
	case "COUNT", "SUM", "AVG", "MIN", "MAX":
		return fn, strings.TrimSpace(tok[open+1 : len(tok)-1]), true
	default:
		return "", "", false
	}
}
