package novardb

import (
	"github.com/tuannm99/novardb/internal/dberr"
	"github.com/tuannm99/novardb/internal/index"
	"github.com/tuannm99/novardb/internal/storage"
)

// CreateIndex builds an equality index on table.column from the current rows.
// kind is "HASH" (or empty); "BTREE" is reserved and rejected.
func (db *Database) CreateIndex(table, column, kind string) error {
	if err := db.ensureOpen(); err != nil {
		return err
	}
	if !storage.ValidName(table) {
		return dberr.TableNotFound(table, false)
	}
	k, err := index.ParseKind(kind)
	if err != nil {
		return err
	}
	unlock := db.store.LockTable(db.name, table)
	defer unlock()
	return db.indexes.CreateIndex(db.name, table, column, k)
}

func (db *Database) ListIndexes(table string) ([]IndexInfo, error) {
	if err := db.ensureOpen(); err != nil {
		return nil, err
	}
	if _, err := db.store.LoadSchema(db.name, table); err != nil {
		return nil, err
	}
	return db.indexes.ListIndexes(db.name, table)
}

func (db *Database) DropIndex(table, column string) error {
	if err := db.ensureOpen(); err != nil {
		return err
	}
	unlock := db.store.LockTable(db.name, table)
	defer unlock()
	return db.indexes.DropIndex(db.name, table, column)
}
