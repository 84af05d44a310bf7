package executor

import (
	"math"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/tuannm99/novardb/internal/dberr"
	"github.com/tuannm99/novardb/internal/record"
)

var truthy = map[string]bool{"true": true, "1": true, "yes": true, "t": true}

// coerce converts a literal to the column's declared type. Conversions that
// fail keep the raw value rather than rejecting the row.
func coerce(col record.Column, v any) any {
	v = record.Normalize(v)
	if v == nil {
		return nil
	}
	switch col.Type {
	case record.TypeInt:
		switch x := v.(type) {
		case int64:
			return x
		case float64:
			if math.IsNaN(x) || math.IsInf(x, 0) {
				return x
			}
			return int64(x)
		case bool:
			if x {
				return int64(1)
			}
			return int64(0)
		case string:
			if i, err := strconv.ParseInt(strings.TrimSpace(x), 10, 64); err == nil {
				return i
			}
		}
		return v
	case record.TypeDecimal:
		switch x := v.(type) {
		case float64:
			return x
		case int64:
			return float64(x)
		case bool:
			if x {
				return 1.0
			}
			return 0.0
		case string:
			if f, err := strconv.ParseFloat(strings.TrimSpace(x), 64); err == nil {
				return f
			}
		}
		return v
	case record.TypeBoolean:
		switch x := v.(type) {
		case bool:
			return x
		case string:
			return truthy[strings.ToLower(strings.TrimSpace(x))]
		case int64:
			return x != 0
		case float64:
			return x != 0
		}
		return v
	case record.TypeDate:
		return normalizeTime(record.String(v), dateLayouts, "2006-01-02")
	case record.TypeTimestamp:
		return normalizeTime(record.String(v), timestampLayouts, "2006-01-02 15:04:05")
	default: // TEXT, VARCHAR
		return record.String(v)
	}
}

var dateLayouts = []string{"2006-01-02", "2006/01/02", time.RFC3339}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

// normalizeTime rewrites a parseable date/time into one canonical layout and
// leaves anything else untouched.
func normalizeTime(s string, layouts []string, out string) string {
	s = strings.TrimSpace(s)
	for _, l := range layouts {
		if t, err := time.Parse(l, s); err == nil {
			return t.UTC().Format(out)
		}
	}
	return s
}

// checkValue enforces NOT NULL (and PRIMARY KEY) and VARCHAR length.
func checkValue(col record.Column, v any) error {
	if v == nil {
		if !col.Nullable() {
			return dberr.Constraintf("column %s cannot be NULL", col.Name)
		}
		return nil
	}
	if col.Type == record.TypeVarchar && col.MaxLength != nil {
		if n := utf8.RuneCountInString(record.String(v)); n > *col.MaxLength {
			return dberr.Constraintf("value too long for column %s: %d > max %d", col.Name, n, *col.MaxLength)
		}
	}
	return nil
}

func duplicateErr(col record.Column, v any) error {
	if col.Has(record.PrimaryKey) {
		return dberr.Constraintf("duplicate primary key value %s for column %s", record.String(v), col.Name)
	}
	return dberr.Constraintf("duplicate value %s for unique column %s", record.String(v), col.Name)
}

// checkUnique verifies that no two rows share a non-null value in any
// UNIQUE or PRIMARY KEY column.
func checkUnique(schema *record.TableSchema, rows []record.Row) error {
	for _, col := range schema.Columns {
		if !col.RequiresUnique() {
			continue
		}
		seen := make(map[string]struct{}, len(rows))
		for _, row := range rows {
			key, ok := record.Key(row[col.Name])
			if !ok {
				continue
			}
			if _, dup := seen[key]; dup {
				return duplicateErr(col, row[col.Name])
			}
			seen[key] = struct{}{}
		}
	}
	return nil
}
