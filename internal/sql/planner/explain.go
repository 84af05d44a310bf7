package planner

import (
	"fmt"
	"strings"

	"github.com/tuannm99/novardb/internal/record"
	"github.com/tuannm99/novardb/internal/sql/parser"
)

func literal(v any) string {
	if s, ok := v.(string); ok {
		return "'" + strings.ReplaceAll(s, "'", "''") + "'"
	}
	return record.String(v)
}

func condition(c *parser.Condition) string {
	return fmt.Sprintf("%s %s %s", c.Column, c.Op, literal(c.Value))
}

func (p *CreateTablePlan) Steps() []Step {
	cols := make([]string, len(p.Schema.Columns))
	for i, c := range p.Schema.Columns {
		cols[i] = c.String()
	}
	steps := []Step{{Operation: "CreateTable", Table: p.TableName, Columns: cols}}
	if pk := p.Schema.PrimaryKey(); pk != "" {
		steps = append(steps, Step{Operation: "CreateIndex", Table: p.TableName, Columns: []string{pk}, Detail: "HASH (primary key)"})
	}
	return steps
}

func (p *InsertPlan) Steps() []Step {
	return []Step{
		{Operation: "CheckConstraints", Table: p.TableName},
		{Operation: "Insert", Table: p.TableName, Columns: p.Columns, Detail: fmt.Sprintf("%d values", len(p.Values))},
		{Operation: "MaintainIndexes", Table: p.TableName},
	}
}

func (p *SelectPlan) Steps() []Step {
	var steps []Step
	switch p.Access.Kind {
	case IndexLookup:
		steps = append(steps, Step{
			Operation: string(IndexLookup),
			Table:     p.Access.Table,
			Columns:   []string{p.Access.Column},
			Detail:    fmt.Sprintf("%s = %s", p.Access.Column, literal(p.Access.Value)),
		})
	default:
		steps = append(steps, Step{Operation: string(SeqScan), Table: p.Access.Table})
	}

	if j := p.Join; j != nil {
		op, detail := "HashJoin", string(j.Type)+" JOIN"
		if j.On == nil {
			op, detail = "NestedLoopJoin", "cross product"
		} else {
			detail += fmt.Sprintf(" ON %s = %s", j.On.Left, j.On.Right)
		}
		steps = append(steps, Step{Operation: op, Table: j.Table, Detail: detail})
	}
	if p.Where != nil {
		steps = append(steps, Step{Operation: "Filter", Detail: condition(p.Where)})
	}
	if aggs := p.Aggregates(); len(aggs) > 0 || p.GroupBy != "" {
		detail := "single group"
		if p.GroupBy != "" {
			detail = "GROUP BY " + p.GroupBy
		}
		steps = append(steps, Step{Operation: "Aggregate", Columns: aggs, Detail: detail})
	}
	steps = append(steps, Step{Operation: "Project", Columns: p.Columns})
	if p.OrderBy != nil {
		dir := "ASC"
		if !p.OrderBy.Ascending {
			dir = "DESC"
		}
		steps = append(steps, Step{Operation: "Sort", Columns: []string{p.OrderBy.Column}, Detail: dir})
	}
	if p.Limit != nil {
		steps = append(steps, Step{Operation: "Limit", Detail: fmt.Sprintf("%d", *p.Limit)})
	}
	return steps
}

func (p *UpdatePlan) Steps() []Step {
	cols := make([]string, len(p.Set))
	for i, a := range p.Set {
		cols[i] = fmt.Sprintf("%s = %s", a.Column, literal(a.Value))
	}
	steps := []Step{{Operation: string(SeqScan), Table: p.TableName}}
	if p.Where != nil {
		steps = append(steps, Step{Operation: "Filter", Detail: condition(p.Where)})
	}
	return append(steps,
		Step{Operation: "Update", Table: p.TableName, Columns: cols},
		Step{Operation: "RewriteRows", Table: p.TableName},
		Step{Operation: "RebuildIndexes", Table: p.TableName},
	)
}

func (p *DeletePlan) Steps() []Step {
	steps := []Step{{Operation: string(SeqScan), Table: p.TableName}}
	if p.Where != nil {
		steps = append(steps, Step{Operation: "Filter", Detail: condition(p.Where)})
	}
	return append(steps,
		Step{Operation: "Delete", Table: p.TableName},
		Step{Operation: "RewriteRows", Table: p.TableName},
		Step{Operation: "RebuildIndexes", Table: p.TableName},
	)
}

func (p *DropTablePlan) Steps() []Step {
	return []Step{{Operation: "DropTable", Table: p.TableName}}
}

// Operation names the statement a plan executes.
func Operation(p Plan) string {
	switch p.(type) {
	case *CreateTablePlan:
		return "CREATE TABLE"
	case *InsertPlan:
		return "INSERT"
	case *SelectPlan:
		return "SELECT"
	case *UpdatePlan:
		return "UPDATE"
	case *DeletePlan:
		return "DELETE"
	case *DropTablePlan:
		return "DROP TABLE"
	default:
		return "UNKNOWN"
	}
}
