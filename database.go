// Package novardb is the embeddable facade over the engine: one Database per
// named database, every statement answered with a structured Result.
package novardb

import (
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/tuannm99/novardb/internal/dberr"
	"github.com/tuannm99/novardb/internal/index"
	"github.com/tuannm99/novardb/internal/record"
	"github.com/tuannm99/novardb/internal/sql/executor"
	"github.com/tuannm99/novardb/internal/sql/parser"
	"github.com/tuannm99/novardb/internal/sql/planner"
	"github.com/tuannm99/novardb/internal/storage"
)

var ErrDatabaseClosed = errors.New("novardb: database is closed")

type Database struct {
	name    string
	store   storage.Engine
	indexes *index.Manager
	exec    *executor.Executor
	closed  atomic.Bool
}

// Open opens (creating if needed) database name under dataDir.
func Open(dataDir, name string) (*Database, error) {
	st, err := storage.NewFileStore(dataDir)
	if err != nil {
		return nil, err
	}
	if _, err := st.CreateDatabase(name); err != nil {
		return nil, err
	}
	return New(st, name)
}

// New wires a facade over an existing store. The database must exist.
func New(st storage.Engine, name string) (*Database, error) {
	if !st.DatabaseExists(name) {
		return nil, dberr.DatabaseNotFound(name, false)
	}
	idx := index.NewManager(st)
	return &Database{
		name:    name,
		store:   st,
		indexes: idx,
		exec:    executor.NewExecutor(st, idx, name),
	}, nil
}

func (db *Database) Name() string { return db.name }

func (db *Database) ensureOpen() error {
	if db.closed.Load() {
		return ErrDatabaseClosed
	}
	return nil
}

// Close marks the handle closed. Data is durable after every statement, so
// there is nothing to flush.
func (db *Database) Close() error {
	db.closed.Store(true)
	return nil
}

// Execute runs one statement. It never returns a raw error: failures come
// back as a Result with Success false.
func (db *Database) Execute(sql string) (res *Result) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			err := &dberr.ExecutionError{Stage: "execute", Err: fmt.Errorf("panic: %v", r)}
			slog.Error("novardb: statement panicked", "db", db.name, "panic", r)
			res = executor.Failure(err.Error(), err)
		}
		res.ExecutionTime = time.Since(start).Seconds()
	}()

	if err := db.ensureOpen(); err != nil {
		return executor.Failure(err.Error(), err)
	}
	out, err := db.exec.ExecSQL(sql)
	if err != nil {
		if errors.Is(err, dberr.ErrParse) {
			slog.Debug("novardb: parse failed", "db", db.name, "err", err)
		} else {
			slog.Info("novardb: statement failed", "db", db.name, "kind", dberr.Kind(err), "err", err)
		}
		return executor.Failure(err.Error(), err)
	}
	return out
}

// ExecuteBatch runs statements in order. A failing statement does not stop
// the ones after it.
func (db *Database) ExecuteBatch(sqls []string) []*Result {
	out := make([]*Result, 0, len(sqls))
	for _, sql := range sqls {
		out = append(out, db.Execute(sql))
	}
	return out
}

// ExecuteScript splits a ';'-separated script and runs it as a batch.
func (db *Database) ExecuteScript(script string) []*Result {
	return db.ExecuteBatch(parser.SplitStatements(script))
}

// Explain returns the plan a statement would run with, without running it.
func (db *Database) Explain(sql string) (*Plan, error) {
	if err := db.ensureOpen(); err != nil {
		return nil, err
	}
	stmt, err := parser.Parse(sql)
	if err != nil {
		return nil, err
	}
	p, err := planner.BuildPlan(stmt, db.exec)
	if err != nil {
		return nil, err
	}
	return &Plan{Operation: planner.Operation(p), Steps: p.Steps()}, nil
}

// Tables lists table names in creation order.
func (db *Database) Tables() ([]string, error) {
	if err := db.ensureOpen(); err != nil {
		return nil, err
	}
	return db.store.ListTables(db.name)
}

func (db *Database) Schema(table string) (*record.TableSchema, error) {
	if err := db.ensureOpen(); err != nil {
		return nil, err
	}
	return db.store.LoadSchema(db.name, table)
}

// Stats counts rows and columns per table.
func (db *Database) Stats() (*Stats, error) {
	if err := db.ensureOpen(); err != nil {
		return nil, err
	}
	tables, err := db.store.ListTables(db.name)
	if err != nil {
		return nil, err
	}
	st := &Stats{Name: db.name, Tables: make(map[string]TableStats, len(tables))}
	for _, t := range tables {
		schema, err := db.store.LoadSchema(db.name, t)
		if err != nil {
			return nil, err
		}
		rows, err := db.store.GetAllRows(db.name, t)
		if err != nil {
			return nil, err
		}
		st.Tables[t] = TableStats{RowCount: len(rows), ColumnCount: schema.NumCols()}
		st.TotalRows += len(rows)
	}
	return st, nil
}
