package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
	"unicode"

	"github.com/tuannm99/novardb/internal/dberr"
	locking "github.com/tuannm99/novardb/internal/lock"
	"github.com/tuannm99/novardb/internal/record"
)

const (
	registryFileName = "meta.json"
	schemaFileName   = "schema.json"
	rowsFileName     = "rows.json"
	indexFilePrefix  = "index_"
	indexFileSuffix  = ".json"
)

var _ Engine = (*FileStore)(nil)

// FileStore keeps one directory per database under Root:
//
//	<root>/<db>/meta.json                 table registry
//	<root>/<db>/<table>/schema.json       column definitions
//	<root>/<db>/<table>/rows.json         row store
//	<root>/<db>/<table>/index_<col>.json  equality index
type FileStore struct {
	Root    string
	locks   *locking.Registry
	schemas *schemaCache
	now     func() time.Time
}

func NewFileStore(root string) (*FileStore, error) {
	if err := os.MkdirAll(root, FileMode0755); err != nil {
		return nil, dberr.Storagef("create data dir %s: %v", root, err)
	}
	return &FileStore{
		Root:    root,
		locks:   locking.NewRegistry(),
		schemas: newSchemaCache(defaultSchemaCacheSize),
		now:     time.Now,
	}, nil
}

// ValidName reports whether s is usable as a database, table or column name.
// Names become path components, so only letters, digits and '_' are allowed.
func ValidName(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		if i == 0 && !unicode.IsLetter(r) && r != '_' {
			return false
		}
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_' {
			return false
		}
	}
	return true
}

func (s *FileStore) dbDir(db string) string           { return filepath.Join(s.Root, db) }
func (s *FileStore) registryPath(db string) string    { return filepath.Join(s.dbDir(db), registryFileName) }
func (s *FileStore) tableDir(db, table string) string { return filepath.Join(s.dbDir(db), table) }

func (s *FileStore) schemaPath(db, table string) string {
	return filepath.Join(s.tableDir(db, table), schemaFileName)
}

func (s *FileStore) rowsPath(db, table string) string {
	return filepath.Join(s.tableDir(db, table), rowsFileName)
}

func (s *FileStore) indexPath(db, table, column string) string {
	return filepath.Join(s.tableDir(db, table), indexFilePrefix+column+indexFileSuffix)
}

func (s *FileStore) LockTable(db, table string) func() {
	return s.locks.Lock(db + "/" + table)
}

// ---- databases ----

func (s *FileStore) CreateDatabase(name string) (bool, error) {
	if !ValidName(name) {
		return false, dberr.Storagef("invalid database name %q", name)
	}
	if s.DatabaseExists(name) {
		return false, nil
	}
	if err := os.MkdirAll(s.dbDir(name), FileMode0755); err != nil {
		return false, dberr.Storagef("create database %s: %v", name, err)
	}
	now := s.now()
	reg := &registryFile{
		header:    header{Format: formatRegistry, Version: currentVersion},
		Name:      name,
		Tables:    []string{},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.writeJSON(s.registryPath(name), reg); err != nil {
		return false, err
	}
	return true, nil
}

func (s *FileStore) DropDatabase(name string) (bool, error) {
	if !ValidName(name) || !s.DatabaseExists(name) {
		return false, nil
	}
	s.schemas.invalidate(s.dbDir(name) + string(filepath.Separator))
	if err := os.RemoveAll(s.dbDir(name)); err != nil {
		return false, dberr.Storagef("drop database %s: %v", name, err)
	}
	return true, nil
}

func (s *FileStore) ListDatabases() ([]string, error) {
	entries, err := os.ReadDir(s.Root)
	if err != nil {
		return nil, dberr.Storagef("list databases: %v", err)
	}
	var out []string
	for _, e := range entries {
		if !e.IsDir() || !ValidName(e.Name()) {
			continue
		}
		out = append(out, e.Name())
	}
	sort.Strings(out)
	return out, nil
}

func (s *FileStore) DatabaseExists(name string) bool {
	if !ValidName(name) {
		return false
	}
	info, err := os.Stat(s.dbDir(name))
	return err == nil && info.IsDir()
}

// ---- registry ----

func (s *FileStore) readRegistry(db string) (*registryFile, error) {
	if !s.DatabaseExists(db) {
		return nil, dberr.DatabaseNotFound(db, true)
	}
	var reg registryFile
	err := s.readJSON(s.registryPath(db), &reg, formatRegistry)
	if errors.Is(err, fs.ErrNotExist) {
		now := s.now()
		return &registryFile{
			header:    header{Format: formatRegistry, Version: currentVersion},
			Name:      db,
			Tables:    []string{},
			CreatedAt: now,
			UpdatedAt: now,
		}, nil
	}
	if err != nil {
		return nil, err
	}
	return &reg, nil
}

func (s *FileStore) writeRegistry(db string, reg *registryFile) error {
	reg.UpdatedAt = s.now()
	return s.writeJSON(s.registryPath(db), reg)
}

func (s *FileStore) ListTables(db string) ([]string, error) {
	reg, err := s.readRegistry(db)
	if err != nil {
		return nil, err
	}
	return append([]string(nil), reg.Tables...), nil
}

// ---- tables ----

func (s *FileStore) TableExists(db, table string) bool {
	if !ValidName(db) || !ValidName(table) {
		return false
	}
	_, err := os.Stat(s.schemaPath(db, table))
	return err == nil
}

func (s *FileStore) checkTable(db, table string) error {
	if !s.DatabaseExists(db) {
		return dberr.DatabaseNotFound(db, true)
	}
	if !s.TableExists(db, table) {
		return dberr.TableNotFound(table, true)
	}
	return nil
}

// SaveSchema writes the schema file first and only then registers the table,
// so a failed write never leaves a registry entry without a schema.
func (s *FileStore) SaveSchema(db, table string, schema record.TableSchema) error {
	if !s.DatabaseExists(db) {
		return dberr.DatabaseNotFound(db, true)
	}
	if !ValidName(table) {
		return dberr.Storagef("invalid table name %q", table)
	}
	if err := os.MkdirAll(s.tableDir(db, table), FileMode0755); err != nil {
		return dberr.Storagef("create table dir %s: %v", table, err)
	}

	now := s.now()
	created := now
	var prev schemaFile
	if err := s.readJSON(s.schemaPath(db, table), &prev, formatSchema); err == nil {
		created = prev.CreatedAt
	}

	schema.Name = table
	sf := &schemaFile{
		header:    header{Format: formatSchema, Version: currentVersion},
		Schema:    schema,
		CreatedAt: created,
		UpdatedAt: now,
	}
	s.schemas.invalidate(s.schemaPath(db, table))
	if err := s.writeJSON(s.schemaPath(db, table), sf); err != nil {
		return err
	}

	reg, err := s.readRegistry(db)
	if err != nil {
		return err
	}
	for _, t := range reg.Tables {
		if t == table {
			return nil
		}
	}
	reg.Tables = append(reg.Tables, table)
	return s.writeRegistry(db, reg)
}

func (s *FileStore) LoadSchema(db, table string) (*record.TableSchema, error) {
	if err := s.checkTable(db, table); err != nil {
		return nil, err
	}
	path := s.schemaPath(db, table)
	fi, statErr := os.Stat(path)
	if statErr == nil {
		if cached, ok := s.schemas.get(path, fi); ok {
			return cached, nil
		}
	}
	var sf schemaFile
	err := s.readJSON(path, &sf, formatSchema)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, dberr.TableNotFound(table, true)
	}
	if err != nil {
		return nil, err
	}
	if statErr == nil {
		s.schemas.put(path, fi, &sf.Schema)
	}
	return &sf.Schema, nil
}

// DropTable unregisters the table and then removes its directory.
func (s *FileStore) DropTable(db, table string) (bool, error) {
	if !s.DatabaseExists(db) {
		return false, dberr.DatabaseNotFound(db, true)
	}
	if !s.TableExists(db, table) {
		return false, nil
	}

	reg, err := s.readRegistry(db)
	if err != nil {
		return false, err
	}
	kept := reg.Tables[:0]
	for _, t := range reg.Tables {
		if t != table {
			kept = append(kept, t)
		}
	}
	reg.Tables = kept
	if err := s.writeRegistry(db, reg); err != nil {
		return false, err
	}

	s.schemas.invalidate(s.schemaPath(db, table))
	if err := os.RemoveAll(s.tableDir(db, table)); err != nil {
		return false, dberr.Storagef("remove table %s: %v", table, err)
	}
	return true, nil
}

// ---- rows ----

func (s *FileStore) ReadRowStore(db, table string) (*RowStore, error) {
	if err := s.checkTable(db, table); err != nil {
		return nil, err
	}
	path := s.rowsPath(db, table)
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return &RowStore{}, nil
	}
	if err != nil {
		return nil, dberr.Storagef("read %s: %v", path, err)
	}
	rs, err := decodeRows(data)
	if err != nil {
		return nil, dberr.Storagef("corrupt row store %s: %v", path, err)
	}
	return rs, nil
}

func (s *FileStore) GetAllRows(db, table string) ([]record.Row, error) {
	rs, err := s.ReadRowStore(db, table)
	if err != nil {
		return nil, err
	}
	return rs.Rows, nil
}

// InsertRow appends one row. Positions of existing rows do not move, so the
// generation is kept.
func (s *FileStore) InsertRow(db, table string, row record.Row) error {
	schema, err := s.LoadSchema(db, table)
	if err != nil {
		return err
	}
	if err := checkRowColumns(schema, row); err != nil {
		return err
	}
	rs, err := s.ReadRowStore(db, table)
	if err != nil {
		return err
	}
	rows := append(rs.Rows, row)
	return s.writeRows(db, table, rs.Generation, rows)
}

// ReplaceAllRows rewrites the whole store and bumps the generation, which
// invalidates every index built against the previous content.
func (s *FileStore) ReplaceAllRows(db, table string, rows []record.Row) error {
	schema, err := s.LoadSchema(db, table)
	if err != nil {
		return err
	}
	for _, row := range rows {
		if err := checkRowColumns(schema, row); err != nil {
			return err
		}
	}
	rs, err := s.ReadRowStore(db, table)
	if err != nil {
		return err
	}
	return s.writeRows(db, table, rs.Generation+1, rows)
}

func (s *FileStore) writeRows(db, table string, generation uint64, rows []record.Row) error {
	data, err := encodeRows(generation, rows)
	if err != nil {
		return dberr.Schemaf("table %s: %v", table, err)
	}
	path := s.rowsPath(db, table)
	if err := writeFileAtomic(path, data, FileMode0644); err != nil {
		return dberr.Storagef("write %s: %v", path, err)
	}
	return nil
}

func checkRowColumns(schema *record.TableSchema, row record.Row) error {
	for col := range row {
		if _, ok := schema.Column(col); !ok {
			return dberr.Schemaf("column %s does not exist in table %s", col, schema.Name)
		}
	}
	return nil
}

// ---- indexes ----

func (s *FileStore) SaveIndex(db, table string, idx *IndexRecord) error {
	if err := s.checkTable(db, table); err != nil {
		return err
	}
	if !ValidName(idx.Column) {
		return dberr.Storagef("invalid index column %q", idx.Column)
	}
	idx.Table = table
	f := &indexFile{
		header:      header{Format: formatIndex, Version: currentVersion},
		IndexRecord: *idx,
	}
	return s.writeJSON(s.indexPath(db, table, idx.Column), f)
}

func (s *FileStore) LoadIndex(db, table, column string) (*IndexRecord, error) {
	if err := s.checkTable(db, table); err != nil {
		return nil, err
	}
	if !ValidName(column) {
		return nil, ErrIndexNotFound
	}
	var f indexFile
	err := s.readJSON(s.indexPath(db, table, column), &f, formatIndex)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrIndexNotFound
	}
	if err != nil {
		return nil, err
	}
	if f.Entries == nil {
		f.Entries = map[string][]int{}
	}
	return &f.IndexRecord, nil
}

func (s *FileStore) DeleteIndex(db, table, column string) (bool, error) {
	if err := s.checkTable(db, table); err != nil {
		return false, err
	}
	if !ValidName(column) {
		return false, nil
	}
	err := os.Remove(s.indexPath(db, table, column))
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, dberr.Storagef("remove index %s.%s: %v", table, column, err)
	}
	return true, nil
}

func (s *FileStore) ListIndexes(db, table string) ([]string, error) {
	if err := s.checkTable(db, table); err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(s.tableDir(db, table))
	if err != nil {
		return nil, dberr.Storagef("list indexes of %s: %v", table, err)
	}
	var out []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, indexFilePrefix) || !strings.HasSuffix(name, indexFileSuffix) {
			continue
		}
		col := strings.TrimSuffix(strings.TrimPrefix(name, indexFilePrefix), indexFileSuffix)
		if ValidName(col) {
			out = append(out, col)
		}
	}
	sort.Strings(out)
	return out, nil
}

// ---- json helpers ----

func (s *FileStore) writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return dberr.Storagef("encode %s: %v", path, err)
	}
	if err := writeFileAtomic(path, data, FileMode0644); err != nil {
		return dberr.Storagef("write %s: %v", path, err)
	}
	return nil
}

type checkable interface {
	check(want string) error
}

// readJSON passes fs.ErrNotExist through untouched so callers can treat a
// missing file as empty. Anything unreadable or malformed is a storage error.
func (s *FileStore) readJSON(path string, v checkable, format string) error {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return err
	}
	if err != nil {
		return dberr.Storagef("read %s: %v", path, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return dberr.Storagef("corrupt file %s: %v", path, err)
	}
	if err := v.check(format); err != nil {
		return dberr.Storagef("corrupt file %s: %v", path, err)
	}
	return nil
}

func (s *FileStore) String() string {
	return fmt.Sprintf("FileStore(%s)", s.Root)
}
