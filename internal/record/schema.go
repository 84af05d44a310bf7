package record

import (
	"fmt"
	"strings"
)

type DataType string

const (
	TypeInt       DataType = "INT"
	TypeVarchar   DataType = "VARCHAR"
	TypeText      DataType = "TEXT"
	TypeBoolean   DataType = "BOOLEAN"
	TypeDecimal   DataType = "DECIMAL"
	TypeTimestamp DataType = "TIMESTAMP"
	TypeDate      DataType = "DATE"
)

var typeAliases = map[string]DataType{
	"INT":       TypeInt,
	"INTEGER":   TypeInt,
	"BIGINT":    TypeInt,
	"SMALLINT":  TypeInt,
	"VARCHAR":   TypeVarchar,
	"CHAR":      TypeVarchar,
	"TEXT":      TypeText,
	"BOOLEAN":   TypeBoolean,
	"BOOL":      TypeBoolean,
	"DECIMAL":   TypeDecimal,
	"NUMERIC":   TypeDecimal,
	"FLOAT":     TypeDecimal,
	"DOUBLE":    TypeDecimal,
	"REAL":      TypeDecimal,
	"TIMESTAMP": TypeTimestamp,
	"DATETIME":  TypeTimestamp,
	"DATE":      TypeDate,
}

// ParseDataType maps a SQL type name (case-insensitive, aliases allowed) to a DataType.
func ParseDataType(name string) (DataType, bool) {
	t, ok := typeAliases[strings.ToUpper(strings.TrimSpace(name))]
	return t, ok
}

type Constraint string

const (
	PrimaryKey Constraint = "PRIMARY KEY"
	Unique     Constraint = "UNIQUE"
	NotNull    Constraint = "NOT NULL"
)

type Column struct {
	Name        string       `json:"name"`
	Type        DataType     `json:"data_type"`
	Constraints []Constraint `json:"constraints,omitempty"`
	MaxLength   *int         `json:"max_length,omitempty"`
}

func (c Column) Has(k Constraint) bool {
	for _, x := range c.Constraints {
		if x == k {
			return true
		}
	}
	return false
}

// Nullable is false for NOT NULL and PRIMARY KEY columns.
func (c Column) Nullable() bool {
	return !c.Has(NotNull) && !c.Has(PrimaryKey)
}

// RequiresUnique is true for UNIQUE and PRIMARY KEY columns.
func (c Column) RequiresUnique() bool {
	return c.Has(Unique) || c.Has(PrimaryKey)
}

func (c Column) String() string {
	typ := string(c.Type)
	if c.MaxLength != nil {
		typ = fmt.Sprintf("%s(%d)", c.Type, *c.MaxLength)
	}
	parts := []string{c.Name, typ}
	for _, k := range c.Constraints {
		parts = append(parts, string(k))
	}
	return strings.Join(parts, " ")
}

type TableSchema struct {
	Name    string   `json:"name"`
	Columns []Column `json:"columns"`
}

func (s TableSchema) NumCols() int { return len(s.Columns) }

// PrimaryKey returns the primary key column name, or "" when the table has none.
func (s TableSchema) PrimaryKey() string {
	for _, c := range s.Columns {
		if c.Has(PrimaryKey) {
			return c.Name
		}
	}
	return ""
}

func (s TableSchema) ColumnNames() []string {
	out := make([]string, len(s.Columns))
	for i, c := range s.Columns {
		out[i] = c.Name
	}
	return out
}

func (s TableSchema) Column(name string) (Column, bool) {
	for _, c := range s.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return Column{}, false
}

// Validate checks the structural invariants of a schema: at least one column,
// unique column names, at most one primary key and max length only on VARCHAR.
func (s TableSchema) Validate() error {
	if s.Name == "" {
		return fmt.Errorf("table name is empty")
	}
	if len(s.Columns) == 0 {
		return fmt.Errorf("table %s has no columns", s.Name)
	}
	seen := make(map[string]struct{}, len(s.Columns))
	pk := ""
	for _, c := range s.Columns {
		key := strings.ToLower(c.Name)
		if _, dup := seen[key]; dup {
			return fmt.Errorf("duplicate column %s", c.Name)
		}
		seen[key] = struct{}{}

		if c.Has(PrimaryKey) {
			if pk != "" {
				return fmt.Errorf("multiple primary keys: %s, %s", pk, c.Name)
			}
			pk = c.Name
		}
		if c.MaxLength != nil {
			if c.Type != TypeVarchar {
				return fmt.Errorf("max length is only valid for VARCHAR (column %s)", c.Name)
			}
			if *c.MaxLength <= 0 {
				return fmt.Errorf("invalid max length %d for column %s", *c.MaxLength, c.Name)
			}
		}
	}
	return nil
}
