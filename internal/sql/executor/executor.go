package executor

import (
	"fmt"
	"log/slog"

	"github.com/tuannm99/novardb/internal/dberr"
	"github.com/tuannm99/novardb/internal/index"
	"github.com/tuannm99/novardb/internal/record"
	"github.com/tuannm99/novardb/internal/sql/parser"
	"github.com/tuannm99/novardb/internal/sql/planner"
	"github.com/tuannm99/novardb/internal/storage"
)

// Executor runs plans against one database of a storage engine. It keeps no
// state between calls.
type Executor struct {
	Store   storage.Engine
	Indexes *index.Manager
	DB      string
}

var _ planner.Catalog = (*Executor)(nil)

func NewExecutor(st storage.Engine, idx *index.Manager, db string) *Executor {
	return &Executor{Store: st, Indexes: idx, DB: db}
}

// HasIndex lets the planner choose index lookups.
func (e *Executor) HasIndex(table, column string) bool {
	return e.Indexes.Has(e.DB, table, column)
}

// ExecSQL is the top-level entry: SQL string -> Result.
func (e *Executor) ExecSQL(sql string) (*Result, error) {
	stmt, err := parser.Parse(sql)
	if err != nil {
		return nil, err
	}
	plan, err := planner.BuildPlan(stmt, e)
	if err != nil {
		return nil, err
	}
	return e.Exec(plan)
}

// Exec dispatches on the plan type. Errors are classified: anything outside
// the dberr taxonomy comes back as an *dberr.ExecutionError naming the stage.
func (e *Executor) Exec(p planner.Plan) (*Result, error) {
	switch plan := p.(type) {
	case *planner.CreateTablePlan:
		res, err := e.execCreateTable(plan)
		return res, dberr.Wrap("create_table", err)
	case *planner.InsertPlan:
		res, err := e.execInsert(plan)
		return res, dberr.Wrap("insert", err)
	case *planner.SelectPlan:
		return e.execSelect(plan)
	case *planner.UpdatePlan:
		res, err := e.execUpdate(plan)
		return res, dberr.Wrap("update", err)
	case *planner.DeletePlan:
		res, err := e.execDelete(plan)
		return res, dberr.Wrap("delete", err)
	case *planner.DropTablePlan:
		res, err := e.execDropTable(plan)
		return res, dberr.Wrap("drop_table", err)
	default:
		return nil, fmt.Errorf("executor: unsupported plan type %T", p)
	}
}

func (e *Executor) execCreateTable(p *planner.CreateTablePlan) (*Result, error) {
	unlock := e.Store.LockTable(e.DB, p.TableName)
	defer unlock()

	if !e.Store.DatabaseExists(e.DB) {
		return nil, dberr.DatabaseNotFound(e.DB, false)
	}
	if e.Store.TableExists(e.DB, p.TableName) {
		if p.IfNotExists {
			return success(fmt.Sprintf("Table %s already exists", p.TableName), 0), nil
		}
		return nil, fmt.Errorf("%w: %s", dberr.ErrTableExists, p.TableName)
	}
	if err := e.Store.SaveSchema(e.DB, p.TableName, p.Schema); err != nil {
		return nil, err
	}
	if pk := p.Schema.PrimaryKey(); pk != "" {
		if err := e.Indexes.CreateIndex(e.DB, p.TableName, pk, index.KindHash); err != nil {
			return nil, err
		}
	}
	return success(fmt.Sprintf("Table %s created successfully (%d columns)", p.TableName, len(p.Schema.Columns)), 0), nil
}

func (e *Executor) execInsert(p *planner.InsertPlan) (*Result, error) {
	unlock := e.Store.LockTable(e.DB, p.TableName)
	defer unlock()

	schema, err := e.Store.LoadSchema(e.DB, p.TableName)
	if err != nil {
		return nil, err
	}
	row, err := buildRow(schema, p.Columns, p.Values)
	if err != nil {
		return nil, err
	}
	for _, col := range schema.Columns {
		if err := checkValue(col, row[col.Name]); err != nil {
			return nil, err
		}
	}

	rs, err := e.Store.ReadRowStore(e.DB, p.TableName)
	if err != nil {
		return nil, err
	}
	for _, col := range schema.Columns {
		v := row[col.Name]
		if v == nil || !col.RequiresUnique() {
			continue
		}
		for _, existing := range rs.Rows {
			if record.Equal(existing[col.Name], v) {
				return nil, duplicateErr(col, v)
			}
		}
	}

	if err := e.Store.InsertRow(e.DB, p.TableName, row); err != nil {
		return nil, err
	}
	// The row is durable at this point. An index that misses it is detected
	// as stale on the next lookup and rebuilt there.
	if err := e.Indexes.Append(e.DB, p.TableName, row, len(rs.Rows), rs.Generation); err != nil {
		slog.Warn("executor: index maintenance after insert failed", "table", p.TableName, "err", err)
	}
	return success("1 row inserted", 1), nil
}

// buildRow maps positional or named values onto the schema and coerces them.
func buildRow(schema *record.TableSchema, cols []string, values []any) (record.Row, error) {
	row := make(record.Row, len(schema.Columns))
	if len(cols) == 0 {
		if len(values) != len(schema.Columns) {
			return nil, dberr.Schemaf("table %s expects %d values, got %d", schema.Name, len(schema.Columns), len(values))
		}
		for i, col := range schema.Columns {
			row[col.Name] = coerce(col, values[i])
		}
		return row, nil
	}
	for _, col := range schema.Columns {
		row[col.Name] = nil
	}
	for i, name := range cols {
		col, found := schema.Column(name)
		if !found {
			return nil, dberr.ColumnNotFound(fmt.Sprintf("%s.%s", schema.Name, name))
		}
		row[col.Name] = coerce(col, values[i])
	}
	return row, nil
}

func (e *Executor) execUpdate(p *planner.UpdatePlan) (*Result, error) {
	unlock := e.Store.LockTable(e.DB, p.TableName)
	defer unlock()

	schema, err := e.Store.LoadSchema(e.DB, p.TableName)
	if err != nil {
		return nil, err
	}
	type setter struct {
		col record.Column
		val any
	}
	sets := make([]setter, 0, len(p.Set))
	for _, a := range p.Set {
		col, found := schema.Column(a.Column)
		if !found {
			return nil, dberr.ColumnNotFound(fmt.Sprintf("%s.%s", p.TableName, a.Column))
		}
		v := coerce(col, a.Value)
		if err := checkValue(col, v); err != nil {
			return nil, err
		}
		sets = append(sets, setter{col: col, val: v})
	}

	rows, err := e.Store.GetAllRows(e.DB, p.TableName)
	if err != nil {
		return nil, err
	}
	match, err := predicate(tableColumns(schema, p.TableName), p.Where)
	if err != nil {
		return nil, err
	}

	updated := 0
	next := make([]record.Row, len(rows))
	for i, row := range rows {
		if !match(row) {
			next[i] = row
			continue
		}
		nr := row.Clone()
		for _, s := range sets {
			nr[s.col.Name] = s.val
		}
		next[i] = nr
		updated++
	}
	if updated == 0 {
		return success("0 rows updated", 0), nil
	}
	if err := checkUnique(schema, next); err != nil {
		return nil, err
	}
	if err := e.Store.ReplaceAllRows(e.DB, p.TableName, next); err != nil {
		return nil, err
	}
	e.rebuildIndexes(p.TableName)
	return success(fmt.Sprintf("%d rows updated", updated), updated), nil
}

func (e *Executor) execDelete(p *planner.DeletePlan) (*Result, error) {
	unlock := e.Store.LockTable(e.DB, p.TableName)
	defer unlock()

	schema, err := e.Store.LoadSchema(e.DB, p.TableName)
	if err != nil {
		return nil, err
	}
	rows, err := e.Store.GetAllRows(e.DB, p.TableName)
	if err != nil {
		return nil, err
	}
	match, err := predicate(tableColumns(schema, p.TableName), p.Where)
	if err != nil {
		return nil, err
	}

	survivors := make([]record.Row, 0, len(rows))
	for _, row := range rows {
		if !match(row) {
			survivors = append(survivors, row)
		}
	}
	deleted := len(rows) - len(survivors)
	if deleted == 0 {
		return success("0 rows deleted", 0), nil
	}
	if err := e.Store.ReplaceAllRows(e.DB, p.TableName, survivors); err != nil {
		return nil, err
	}
	e.rebuildIndexes(p.TableName)
	return success(fmt.Sprintf("%d rows deleted", deleted), deleted), nil
}

// rebuildIndexes runs after a whole-store rewrite. A failure leaves the
// indexes at the old generation, where lookups reject them as stale.
func (e *Executor) rebuildIndexes(table string) {
	if err := e.Indexes.RebuildAll(e.DB, table); err != nil {
		slog.Warn("executor: index rebuild failed", "table", table, "err", err)
	}
}

func (e *Executor) execDropTable(p *planner.DropTablePlan) (*Result, error) {
	unlock := e.Store.LockTable(e.DB, p.TableName)
	defer unlock()

	if !e.Store.DatabaseExists(e.DB) {
		return nil, dberr.DatabaseNotFound(e.DB, false)
	}
	if !e.Store.TableExists(e.DB, p.TableName) {
		if p.IfExists {
			return success(fmt.Sprintf("Table %s does not exist", p.TableName), 0), nil
		}
		return nil, dberr.TableNotFound(p.TableName, false)
	}
	if _, err := e.Store.DropTable(e.DB, p.TableName); err != nil {
		return nil, err
	}
	return success(fmt.Sprintf("Table %s dropped", p.TableName), 0), nil
}
