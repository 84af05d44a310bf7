package storage

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/tuannm99/novardb/internal/record"
)

// On-disk envelopes. Every file carries a format tag and a version so readers
// can reject files they do not understand instead of misreading them.
const (
	formatRegistry = "novardb.registry"
	formatSchema   = "novardb.schema"
	formatRows     = "novardb.rows"
	formatIndex    = "novardb.index"

	currentVersion = 1
)

type header struct {
	Format  string `json:"format"`
	Version int    `json:"version"`
}

func (h header) check(want string) error {
	if h.Format != want {
		return fmt.Errorf("unexpected format %q (want %q)", h.Format, want)
	}
	if h.Version < 1 || h.Version > currentVersion {
		return fmt.Errorf("unsupported %s version %d", want, h.Version)
	}
	return nil
}

type registryFile struct {
	header
	Name      string    `json:"name"`
	Tables    []string  `json:"tables"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type schemaFile struct {
	header
	Schema    record.TableSchema `json:"schema"`
	CreatedAt time.Time          `json:"created_at"`
	UpdatedAt time.Time          `json:"updated_at"`
}

type rowsFile struct {
	header
	Generation uint64            `json:"generation"`
	Rows       []map[string]cell `json:"rows"`
}

type indexFile struct {
	header
	IndexRecord
}

// cell is a tagged value so int/float/bool/string/null survive a JSON round trip
// without guessing from the number syntax.
type cell struct {
	K string   `json:"k"`
	I *int64   `json:"i,omitempty"`
	F *float64 `json:"f,omitempty"`
	B *bool    `json:"b,omitempty"`
	S *string  `json:"s,omitempty"`
}

const (
	kindNull   = "null"
	kindInt    = "int"
	kindFloat  = "float"
	kindBool   = "bool"
	kindString = "string"
)

func encodeCell(v any) (cell, error) {
	switch x := record.Normalize(v).(type) {
	case nil:
		return cell{K: kindNull}, nil
	case int64:
		return cell{K: kindInt, I: &x}, nil
	case float64:
		return cell{K: kindFloat, F: &x}, nil
	case bool:
		return cell{K: kindBool, B: &x}, nil
	case string:
		return cell{K: kindString, S: &x}, nil
	default:
		return cell{}, fmt.Errorf("unsupported value type %T", v)
	}
}

func (c cell) decode() (any, error) {
	switch c.K {
	case kindNull:
		return nil, nil
	case kindInt:
		if c.I == nil {
			return nil, fmt.Errorf("int cell without value")
		}
		return *c.I, nil
	case kindFloat:
		if c.F == nil {
			return nil, fmt.Errorf("float cell without value")
		}
		return *c.F, nil
	case kindBool:
		if c.B == nil {
			return nil, fmt.Errorf("bool cell without value")
		}
		return *c.B, nil
	case kindString:
		if c.S == nil {
			return nil, fmt.Errorf("string cell without value")
		}
		return *c.S, nil
	default:
		return nil, fmt.Errorf("unknown cell kind %q", c.K)
	}
}

func encodeRows(generation uint64, rows []record.Row) ([]byte, error) {
	out := rowsFile{
		header:     header{Format: formatRows, Version: currentVersion},
		Generation: generation,
		Rows:       make([]map[string]cell, len(rows)),
	}
	for i, row := range rows {
		enc := make(map[string]cell, len(row))
		for col, v := range row {
			c, err := encodeCell(v)
			if err != nil {
				return nil, fmt.Errorf("row %d column %s: %w", i, col, err)
			}
			enc[col] = c
		}
		out.Rows[i] = enc
	}
	return json.Marshal(out)
}

func decodeRows(data []byte) (*RowStore, error) {
	var in rowsFile
	if err := json.Unmarshal(data, &in); err != nil {
		return nil, err
	}
	if err := in.check(formatRows); err != nil {
		return nil, err
	}
	rs := &RowStore{
		Generation: in.Generation,
		Rows:       make([]record.Row, len(in.Rows)),
	}
	for i, enc := range in.Rows {
		row := make(record.Row, len(enc))
		for col, c := range enc {
			v, err := c.decode()
			if err != nil {
				return nil, fmt.Errorf("row %d column %s: %w", i, col, err)
			}
			row[col] = v
		}
		rs.Rows[i] = row
	}
	return rs, nil
}
