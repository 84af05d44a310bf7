// Package index maintains persisted equality indexes over a table's RowStore.
//
// An index maps the equality key of a column value (record.Key) to the row
// positions holding it. It records the RowStore generation and row count it was
// built against; any mismatch at read time means the index is stale and must not
// be used until it is rebuilt.
package index

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/tuannm99/novardb/internal/dberr"
	"github.com/tuannm99/novardb/internal/record"
	"github.com/tuannm99/novardb/internal/storage"
)

type Kind string

const (
	KindHash Kind = "HASH"
	// KindBTree is reserved for ordered indexes and rejected for now.
	KindBTree Kind = "BTREE"
)

func ParseKind(s string) (Kind, error) {
	switch Kind(strings.ToUpper(strings.TrimSpace(s))) {
	case "", KindHash:
		return KindHash, nil
	case KindBTree:
		return "", fmt.Errorf("%w: %s (only HASH is supported)", ErrIndexBadKind, KindBTree)
	default:
		return "", fmt.Errorf("%w: %q", ErrIndexBadKind, s)
	}
}

var (
	ErrIndexNotFound  = storage.ErrIndexNotFound
	ErrIndexStale     = errors.New("novardb: index is stale")
	ErrIndexBadKind   = errors.New("novardb: unsupported index kind")
	ErrIndexBadColumn = errors.New("novardb: index key column not found")
)

// Info describes one index for listings.
type Info struct {
	Table      string    `json:"table" yaml:"table"`
	Column     string    `json:"column" yaml:"column"`
	Kind       Kind      `json:"kind" yaml:"kind"`
	Keys       int       `json:"keys" yaml:"keys"`
	RowCount   int       `json:"row_count" yaml:"row_count"`
	Generation uint64    `json:"generation" yaml:"generation"`
	Fresh      bool      `json:"fresh" yaml:"fresh"`
	UpdatedAt  time.Time `json:"updated_at" yaml:"updated_at"`
}

type Manager struct {
	st  storage.Engine
	now func() time.Time
}

func NewManager(st storage.Engine) *Manager {
	return &Manager{st: st, now: time.Now}
}

// CreateIndex builds the index from a full scan and persists it. Creating an
// index that already exists rebuilds it. The caller holds the table lock.
func (m *Manager) CreateIndex(db, table, column string, kind Kind) error {
	if kind == "" {
		kind = KindHash
	}
	if kind != KindHash {
		return fmt.Errorf("%w: %s", ErrIndexBadKind, kind)
	}
	schema, err := m.st.LoadSchema(db, table)
	if err != nil {
		return err
	}
	if _, ok := schema.Column(column); !ok {
		return fmt.Errorf("%w: %s.%s", ErrIndexBadColumn, table, column)
	}
	rs, err := m.st.ReadRowStore(db, table)
	if err != nil {
		return err
	}

	created := m.now()
	if prev, err := m.st.LoadIndex(db, table, column); err == nil {
		created = prev.CreatedAt
	}
	rec := build(table, column, kind, rs)
	rec.CreatedAt = created
	rec.UpdatedAt = m.now()
	return m.st.SaveIndex(db, table, rec)
}

func build(table, column string, kind Kind, rs *storage.RowStore) *storage.IndexRecord {
	entries := make(map[string][]int)
	for pos, row := range rs.Rows {
		if key, ok := record.Key(row[column]); ok {
			entries[key] = append(entries[key], pos)
		}
	}
	return &storage.IndexRecord{
		Table:      table,
		Column:     column,
		Kind:       string(kind),
		Generation: rs.Generation,
		RowCount:   len(rs.Rows),
		Entries:    entries,
	}
}

// Lookup returns the rows whose column equals value. It returns
// ErrIndexNotFound when no index exists and ErrIndexStale when the index does
// not match the current RowStore.
func (m *Manager) Lookup(db, table, column string, value any) ([]record.Row, error) {
	rec, err := m.st.LoadIndex(db, table, column)
	if err != nil {
		return nil, err
	}
	rs, err := m.st.ReadRowStore(db, table)
	if err != nil {
		return nil, err
	}
	if !rec.Fresh(rs) {
		return nil, fmt.Errorf("%w: %s.%s built at generation %d/%d rows, store is %d/%d rows",
			ErrIndexStale, table, column, rec.Generation, rec.RowCount, rs.Generation, len(rs.Rows))
	}

	// NULL keys are not indexed; NULL = NULL is answered from the snapshot.
	key, ok := record.Key(value)
	if !ok {
		var out []record.Row
		for _, row := range rs.Rows {
			if record.Equal(row[column], value) {
				out = append(out, row)
			}
		}
		return out, nil
	}

	positions := rec.Entries[key]
	out := make([]record.Row, 0, len(positions))
	for _, pos := range positions {
		if pos < 0 || pos >= len(rs.Rows) {
			return nil, fmt.Errorf("%w: %s.%s position %d out of range", ErrIndexStale, table, column, pos)
		}
		row := rs.Rows[pos]
		if !record.Equal(row[column], value) {
			return nil, fmt.Errorf("%w: %s.%s position %d no longer holds %v", ErrIndexStale, table, column, pos, value)
		}
		out = append(out, row)
	}
	return out, nil
}

func (m *Manager) Rebuild(db, table, column string) error {
	rec, err := m.st.LoadIndex(db, table, column)
	if err != nil {
		return err
	}
	slog.Debug("index: rebuild", "db", db, "table", table, "column", column)
	return m.CreateIndex(db, table, column, Kind(rec.Kind))
}

// RebuildAll rebuilds every index of the table against one snapshot.
func (m *Manager) RebuildAll(db, table string) error {
	cols, err := m.st.ListIndexes(db, table)
	if err != nil {
		return err
	}
	if len(cols) == 0 {
		return nil
	}
	rs, err := m.st.ReadRowStore(db, table)
	if err != nil {
		return err
	}
	for _, col := range cols {
		prev, err := m.st.LoadIndex(db, table, col)
		if err != nil {
			return err
		}
		rec := build(table, col, Kind(prev.Kind), rs)
		rec.CreatedAt = prev.CreatedAt
		rec.UpdatedAt = m.now()
		if err := m.st.SaveIndex(db, table, rec); err != nil {
			return err
		}
	}
	slog.Debug("index: rebuilt all", "db", db, "table", table, "indexes", len(cols), "rows", len(rs.Rows))
	return nil
}

// Append records a row that was just appended at position in a store of the
// given generation. Indexes that were not in sync before the append are
// rebuilt instead.
func (m *Manager) Append(db, table string, row record.Row, position int, generation uint64) error {
	cols, err := m.st.ListIndexes(db, table)
	if err != nil {
		return err
	}
	for _, col := range cols {
		rec, err := m.st.LoadIndex(db, table, col)
		if err != nil {
			return err
		}
		if rec.Generation != generation || rec.RowCount != position {
			slog.Warn("index: out of sync on append, rebuilding",
				"table", table, "column", col, "index_rows", rec.RowCount, "position", position)
			if err := m.Rebuild(db, table, col); err != nil {
				return err
			}
			continue
		}
		if key, ok := record.Key(row[col]); ok {
			rec.Entries[key] = append(rec.Entries[key], position)
		}
		rec.RowCount = position + 1
		rec.UpdatedAt = m.now()
		if err := m.st.SaveIndex(db, table, rec); err != nil {
			return err
		}
	}
	return nil
}

func (m *Manager) DropIndex(db, table, column string) error {
	ok, err := m.st.DeleteIndex(db, table, column)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %s.%s", ErrIndexNotFound, table, column)
	}
	return nil
}

// Has reports whether a usable HASH index exists on the column.
func (m *Manager) Has(db, table, column string) bool {
	rec, err := m.st.LoadIndex(db, table, column)
	return err == nil && Kind(rec.Kind) == KindHash
}

func (m *Manager) ListIndexes(db, table string) ([]Info, error) {
	cols, err := m.st.ListIndexes(db, table)
	if err != nil {
		return nil, err
	}
	rs, err := m.st.ReadRowStore(db, table)
	if err != nil {
		return nil, err
	}
	out := make([]Info, 0, len(cols))
	for _, col := range cols {
		rec, err := m.st.LoadIndex(db, table, col)
		if err != nil {
			if errors.Is(err, dberr.ErrStorage) {
				return nil, err
			}
			continue
		}
		out = append(out, Info{
			Table:      table,
			Column:     col,
			Kind:       Kind(rec.Kind),
			Keys:       len(rec.Entries),
			RowCount:   rec.RowCount,
			Generation: rec.Generation,
			Fresh:      rec.Fresh(rs),
			UpdatedAt:  rec.UpdatedAt,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Column < out[j].Column })
	return out, nil
}
