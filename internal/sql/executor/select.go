package executor

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/tuannm99/novardb/internal/dberr"
	"github.com/tuannm99/novardb/internal/index"
	"github.com/tuannm99/novardb/internal/record"
	"github.com/tuannm99/novardb/internal/sql/parser"
	"github.com/tuannm99/novardb/internal/sql/planner"
)

// columnSet describes the columns flowing through a SELECT pipeline and
// resolves (possibly qualified) references to them.
type columnSet struct {
	cols []string // output order

	left, leftAlias   string
	leftCols          []string
	right, rightAlias string
	rightCols         []string
	rightOut          map[string]string // right column -> output name
}

func tableColumns(schema *record.TableSchema, alias string) *columnSet {
	cols := schema.ColumnNames()
	return &columnSet{cols: append([]string(nil), cols...), left: schema.Name, leftAlias: alias, leftCols: cols}
}

func (c *columnSet) isLeft(q string) bool {
	return strings.EqualFold(q, c.left) || (c.leftAlias != "" && strings.EqualFold(q, c.leftAlias))
}

func (c *columnSet) isRight(q string) bool {
	return c.right != "" && (strings.EqualFold(q, c.right) || (c.rightAlias != "" && strings.EqualFold(q, c.rightAlias)))
}

// resolve maps a column reference to an output column name, trying an exact
// match before a case-insensitive one.
func (c *columnSet) resolve(name string) (string, bool) {
	if out, ok := c.lookup(name, false); ok {
		return out, true
	}
	return c.lookup(name, true)
}

func (c *columnSet) lookup(name string, fold bool) (string, bool) {
	eq := func(a, b string) bool {
		if fold {
			return strings.EqualFold(a, b)
		}
		return a == b
	}
	for _, col := range c.cols {
		if eq(col, name) {
			return col, true
		}
	}
	q, col, qualified := strings.Cut(name, ".")
	if !qualified {
		return "", false
	}
	if c.isLeft(q) {
		for _, lc := range c.leftCols {
			if eq(lc, col) {
				return lc, true
			}
		}
	}
	if c.isRight(q) {
		for _, rc := range c.rightCols {
			if eq(rc, col) {
				return c.rightOut[rc], true
			}
		}
	}
	return "", false
}

// predicate compiles a WHERE condition. A nil condition matches every row; an
// unknown column is an error rather than an empty result.
func predicate(cs *columnSet, cond *parser.Condition) (func(record.Row) bool, error) {
	if cond == nil {
		return func(record.Row) bool { return true }, nil
	}
	col, found := cs.resolve(cond.Column)
	if !found {
		return nil, dberr.ColumnNotFound(cond.Column)
	}
	op := record.Op(cond.Op)
	return func(row record.Row) bool {
		return record.Match(row[col], op, cond.Value)
	}, nil
}

func (e *Executor) execSelect(p *planner.SelectPlan) (*Result, error) {
	table := p.Access.Table
	schema, err := e.Store.LoadSchema(e.DB, table)
	if err != nil {
		return nil, dberr.Wrap("select.scan", err)
	}
	cs := tableColumns(schema, p.Alias)

	rows, err := e.fetch(p, cs)
	if err != nil {
		return nil, err
	}

	if p.Join != nil {
		if rows, err = e.join(rows, cs, p.Join); err != nil {
			return nil, dberr.Wrap("select.join", err)
		}
	}

	if p.Where != nil {
		match, err := predicate(cs, p.Where)
		if err != nil {
			return nil, dberr.Wrap("select.filter", err)
		}
		kept := rows[:0:0]
		for _, row := range rows {
			if match(row) {
				kept = append(kept, row)
			}
		}
		rows = kept
	}

	outCols := cs.cols
	if p.GroupBy != "" || len(p.Aggregates()) > 0 {
		if rows, outCols, err = group(rows, cs, p); err != nil {
			return nil, dberr.Wrap("select.group", err)
		}
	} else {
		outCols = project(cs, p.Columns)
	}

	if p.OrderBy != nil {
		if col, found := orderColumn(cs, outCols, p.OrderBy.Column); found {
			sortRows(rows, col, p.OrderBy.Ascending)
		}
	}

	if p.Limit != nil && *p.Limit < len(rows) {
		rows = rows[:*p.Limit]
	}

	res := &Result{
		Success:  true,
		Columns:  outCols,
		Rows:     make([][]any, len(rows)),
		RowCount: len(rows),
		Message:  fmt.Sprintf("Query returned %d rows", len(rows)),
	}
	for i, row := range rows {
		res.Rows[i] = row.Values(outCols)
	}
	return res, nil
}

// fetch produces the base table rows through the planned access path.
func (e *Executor) fetch(p *planner.SelectPlan, cs *columnSet) ([]record.Row, error) {
	table := p.Access.Table
	if p.Access.Kind == planner.IndexLookup {
		rows, err := e.lookup(table, p.Access.Column, p.Access.Value)
		if err == nil {
			return rows, nil
		}
		slog.Warn("executor: index lookup unavailable, scanning",
			"table", table, "column", p.Access.Column, "err", err)

		rows, err = e.Store.GetAllRows(e.DB, table)
		if err != nil {
			return nil, dberr.Wrap("select.scan", err)
		}
		match, err := predicate(cs, &parser.Condition{Column: p.Access.Column, Op: "=", Value: p.Access.Value})
		if err != nil {
			return nil, dberr.Wrap("select.index", err)
		}
		var out []record.Row
		for _, row := range rows {
			if match(row) {
				out = append(out, row)
			}
		}
		return out, nil
	}

	rows, err := e.Store.GetAllRows(e.DB, table)
	if err != nil {
		return nil, dberr.Wrap("select.scan", err)
	}
	return rows, nil
}

// lookup reads through the index, rebuilding it under the table lock once
// when it turns out to be stale.
func (e *Executor) lookup(table, column string, value any) ([]record.Row, error) {
	rows, err := e.Indexes.Lookup(e.DB, table, column, value)
	if !errors.Is(err, index.ErrIndexStale) {
		return rows, err
	}
	slog.Debug("executor: stale index, rebuilding", "table", table, "column", column)
	unlock := e.Store.LockTable(e.DB, table)
	err = e.Indexes.Rebuild(e.DB, table, column)
	unlock()
	if err != nil {
		return nil, err
	}
	return e.Indexes.Lookup(e.DB, table, column, value)
}

// join merges the right table into rows. Right columns whose names clash with
// a left column are renamed <right_table>.<col>.
func (e *Executor) join(left []record.Row, cs *columnSet, j *parser.JoinClause) ([]record.Row, error) {
	switch j.Type {
	case parser.InnerJoin, parser.LeftJoin, "":
	default:
		return nil, fmt.Errorf("%s JOIN is not supported", j.Type)
	}

	rschema, err := e.Store.LoadSchema(e.DB, j.Table)
	if err != nil {
		return nil, err
	}
	right, err := e.Store.GetAllRows(e.DB, j.Table)
	if err != nil {
		return nil, err
	}

	cs.right, cs.rightAlias = j.Table, j.Alias
	cs.rightCols = rschema.ColumnNames()
	cs.rightOut = make(map[string]string, len(cs.rightCols))
	taken := make(map[string]bool, len(cs.leftCols))
	for _, c := range cs.leftCols {
		taken[c] = true
	}
	for _, rc := range cs.rightCols {
		out := rc
		if taken[rc] {
			out = j.Table + "." + rc
		}
		cs.rightOut[rc] = out
		cs.cols = append(cs.cols, out)
	}

	merge := func(l, r record.Row) record.Row {
		m := l.Clone()
		for _, rc := range cs.rightCols {
			if r == nil {
				m[cs.rightOut[rc]] = nil
			} else {
				m[cs.rightOut[rc]] = r[rc]
			}
		}
		return m
	}

	var out []record.Row
	if j.On == nil {
		for _, l := range left {
			if len(right) == 0 && j.Type == parser.LeftJoin {
				out = append(out, merge(l, nil))
			}
			for _, r := range right {
				out = append(out, merge(l, r))
			}
		}
		return out, nil
	}

	lcol, rcol, err := cs.joinColumns(j.On)
	if err != nil {
		return nil, err
	}

	// Build on the right side, probe with the left. NULL keys never match.
	build := make(map[string][]record.Row, len(right))
	for _, r := range right {
		if key, ok := record.Key(r[rcol]); ok {
			build[key] = append(build[key], r)
		}
	}
	for _, l := range left {
		var matches []record.Row
		if key, ok := record.Key(l[lcol]); ok {
			matches = build[key]
		}
		if len(matches) == 0 && j.Type == parser.LeftJoin {
			out = append(out, merge(l, nil))
			continue
		}
		for _, r := range matches {
			out = append(out, merge(l, r))
		}
	}
	return out, nil
}

// joinColumns resolves the ON operands to a left column and a right column,
// swapping them when written right-to-left.
func (c *columnSet) joinColumns(on *parser.JoinOn) (string, string, error) {
	l, r := on.Left, on.Right
	if (l.Table != "" && c.isRight(l.Table) && !c.isLeft(l.Table)) ||
		(r.Table != "" && c.isLeft(r.Table) && !c.isRight(r.Table)) {
		l, r = r, l
	}
	if l.Table != "" && !c.isLeft(l.Table) {
		return "", "", dberr.ColumnNotFound(l.String())
	}
	if r.Table != "" && !c.isRight(r.Table) {
		return "", "", dberr.ColumnNotFound(r.String())
	}
	lcol, ok := findColumn(c.leftCols, l.Column)
	if !ok {
		return "", "", dberr.ColumnNotFound(l.String())
	}
	rcol, ok := findColumn(c.rightCols, r.Column)
	if !ok {
		return "", "", dberr.ColumnNotFound(r.String())
	}
	return lcol, rcol, nil
}

func findColumn(cols []string, name string) (string, bool) {
	for _, c := range cols {
		if c == name {
			return c, true
		}
	}
	for _, c := range cols {
		if strings.EqualFold(c, name) {
			return c, true
		}
	}
	return "", false
}

// project returns the output column list. "*" expands to every column;
// unknown plain columns are dropped.
func project(cs *columnSet, requested []string) []string {
	var out []string
	for _, c := range requested {
		if c == "*" {
			out = append(out, cs.cols...)
			continue
		}
		if col, found := cs.resolve(c); found {
			out = append(out, col)
		}
	}
	if out == nil {
		out = []string{}
	}
	return out
}

const nullGroup = "\x00null"

// group folds rows into one output row per group (or a single group when no
// GROUP BY is given). Groups keep first-appearance order; plain columns take
// the value from the group's first row.
func group(rows []record.Row, cs *columnSet, p *planner.SelectPlan) ([]record.Row, []string, error) {
	var keyCol string
	if p.GroupBy != "" {
		col, found := cs.resolve(p.GroupBy)
		if !found {
			return nil, nil, dberr.ColumnNotFound(p.GroupBy)
		}
		keyCol = col
	}

	type bucket struct{ rows []record.Row }
	var order []string
	buckets := map[string]*bucket{}
	if keyCol == "" {
		order = []string{""}
		buckets[""] = &bucket{rows: rows}
	} else {
		for _, row := range rows {
			key, ok := record.Key(row[keyCol])
			if !ok {
				key = nullGroup
			}
			b, seen := buckets[key]
			if !seen {
				b = &bucket{}
				buckets[key] = b
				order = append(order, key)
			}
			b.rows = append(b.rows, row)
		}
	}

	var outCols []string
	type aggSpec struct{ token, fn, col string }
	var aggs []aggSpec
	for _, c := range p.Columns {
		if fn, arg, isAgg := planner.ParseAggregate(c); isAgg {
			spec := aggSpec{token: c, fn: fn}
			if arg != "*" {
				col, found := cs.resolve(arg)
				if !found {
					return nil, nil, dberr.ColumnNotFound(arg)
				}
				spec.col = col
			}
			aggs = append(aggs, spec)
			outCols = append(outCols, c)
			continue
		}
		if c == "*" {
			outCols = append(outCols, cs.cols...)
			continue
		}
		if col, found := cs.resolve(c); found {
			outCols = append(outCols, col)
		}
	}
	if outCols == nil {
		outCols = []string{}
	}

	out := make([]record.Row, 0, len(order))
	for _, key := range order {
		b := buckets[key]
		var row record.Row
		if len(b.rows) > 0 {
			row = b.rows[0].Clone()
		} else {
			row = record.Row{}
		}
		for _, a := range aggs {
			row[a.token] = aggregate(a.fn, a.col, b.rows)
		}
		out = append(out, row)
	}
	return out, outCols, nil
}

// aggregate computes one aggregate over a group. col is empty for COUNT(*).
// SUM and AVG skip values that are not numeric.
func aggregate(fn, col string, rows []record.Row) any {
	switch fn {
	case "COUNT":
		if col == "" {
			return int64(len(rows))
		}
		n := int64(0)
		for _, r := range rows {
			if r[col] != nil {
				n++
			}
		}
		return n
	case "SUM", "AVG":
		var isum int64
		var fsum float64
		allInt := true
		n := 0
		for _, r := range rows {
			v := record.Normalize(r[col])
			switch x := v.(type) {
			case int64:
				isum += x
				fsum += float64(x)
				n++
			case bool:
				continue
			default:
				f, ok := record.AsNumber(v)
				if !ok {
					continue
				}
				allInt = false
				fsum += f
				n++
			}
		}
		if fn == "AVG" {
			if n == 0 {
				return 0.0
			}
			return fsum / float64(n)
		}
		if allInt {
			return isum
		}
		return fsum
	case "MIN", "MAX":
		var best any
		for _, r := range rows {
			v := r[col]
			if v == nil {
				continue
			}
			if best == nil {
				best = v
				continue
			}
			c := record.Compare3(v, best)
			if (fn == "MIN" && c < 0) || (fn == "MAX" && c > 0) {
				best = v
			}
		}
		return best
	default:
		return nil
	}
}

// orderColumn finds the sort key among the output columns first, then among
// every column in flight. An unknown sort column leaves the order unchanged.
func orderColumn(cs *columnSet, outCols []string, name string) (string, bool) {
	for _, c := range outCols {
		if c == name {
			return c, true
		}
	}
	return cs.resolve(name)
}

func valueKind(v any) string {
	switch record.Normalize(v).(type) {
	case int64, float64:
		return "number"
	case string:
		return "string"
	case bool:
		return "bool"
	default:
		return "other"
	}
}

// sortRows is a stable sort on col. Values compare by their own kind, so text
// that looks numeric still sorts as text. When non-null values mix kinds the
// rows keep their order. NULLs never block the sort: they go first ascending
// and last descending.
func sortRows(rows []record.Row, col string, asc bool) {
	kind := ""
	for _, r := range rows {
		v := r[col]
		if v == nil {
			continue
		}
		k := valueKind(v)
		if kind == "" {
			kind = k
		} else if k != kind {
			return
		}
	}
	sort.SliceStable(rows, func(i, j int) bool {
		a, b := rows[i][col], rows[j][col]
		if a == nil || b == nil {
			if asc {
				return a == nil && b != nil
			}
			return a != nil && b == nil
		}
		c := compareKind(kind, a, b)
		if asc {
			return c < 0
		}
		return c > 0
	})
}

func compareKind(kind string, a, b any) int {
	switch kind {
	case "string":
		return strings.Compare(record.String(a), record.String(b))
	case "bool":
		ab, bb := record.Normalize(a).(bool), record.Normalize(b).(bool)
		switch {
		case ab == bb:
			return 0
		case !ab:
			return -1
		}
		return 1
	}
	return record.Compare3(a, b)
}
