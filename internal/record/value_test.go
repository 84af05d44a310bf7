package record

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMatch_NumericBeforeLexical(t *testing.T) {
	assert.True(t, Match(int64(10), OpGt, int64(9)))
	assert.True(t, Match("10", OpGt, int64(9)), "numeric strings compare as numbers")
	assert.False(t, Match("10", OpGt, "9x"), "non-numeric side falls back to lexical")
	assert.True(t, Match(2.5, OpLe, int64(3)))
	assert.True(t, Match(int64(1), OpEq, 1.0))
	assert.True(t, Match("abc", OpLt, "abd"))
	assert.True(t, Match(true, OpEq, "true"))
	assert.True(t, Match(3, OpNe, int64(4)))
}

func TestMatch_Null(t *testing.T) {
	assert.True(t, Match(nil, OpEq, nil))
	assert.False(t, Match(nil, OpEq, int64(1)))
	assert.True(t, Match(nil, OpNe, int64(1)))
	assert.False(t, Match(nil, OpNe, nil))
	assert.False(t, Match(nil, OpGt, int64(1)))
	assert.False(t, Match(int64(1), OpLe, nil))
}

func TestKey_AgreesWithEqual(t *testing.T) {
	values := []any{int64(1), 1.0, "1", "1.0", 1.5, "1.5", "abc", true, "true", int64(2), "", "x1"}
	for _, a := range values {
		for _, b := range values {
			ka, _ := Key(a)
			kb, _ := Key(b)
			assert.Equal(t, Equal(a, b), ka == kb, "a=%#v b=%#v", a, b)
		}
	}

	_, ok := Key(nil)
	require.False(t, ok)
}

func TestString(t *testing.T) {
	assert.Equal(t, "NULL", String(nil))
	assert.Equal(t, "12", String(12))
	assert.Equal(t, "2.5", String(2.5))
	assert.Equal(t, "false", String(false))
	assert.Equal(t, "x", String("x"))
}

func TestSchemaValidate(t *testing.T) {
	n := 10
	ok := TableSchema{Name: "users", Columns: []Column{
		{Name: "id", Type: TypeInt, Constraints: []Constraint{PrimaryKey}},
		{Name: "name", Type: TypeVarchar, MaxLength: &n},
	}}
	require.NoError(t, ok.Validate())
	assert.Equal(t, "id", ok.PrimaryKey())
	assert.Equal(t, []string{"id", "name"}, ok.ColumnNames())
	assert.False(t, ok.Columns[0].Nullable())
	assert.True(t, ok.Columns[0].RequiresUnique())
	assert.Equal(t, "name VARCHAR(10)", ok.Columns[1].String())

	twoPK := TableSchema{Name: "t", Columns: []Column{
		{Name: "a", Type: TypeInt, Constraints: []Constraint{PrimaryKey}},
		{Name: "b", Type: TypeInt, Constraints: []Constraint{PrimaryKey}},
	}}
	require.Error(t, twoPK.Validate())

	dup := TableSchema{Name: "t", Columns: []Column{{Name: "a", Type: TypeInt}, {Name: "A", Type: TypeText}}}
	require.Error(t, dup.Validate())

	badLen := TableSchema{Name: "t", Columns: []Column{{Name: "a", Type: TypeInt, MaxLength: &n}}}
	require.Error(t, badLen.Validate())
}

func TestParseDataType(t *testing.T) {
	typ, ok := ParseDataType("integer")
	require.True(t, ok)
	assert.Equal(t, TypeInt, typ)

	typ, ok = ParseDataType("Bool")
	require.True(t, ok)
	assert.Equal(t, TypeBoolean, typ)

	_, ok = ParseDataType("BLOB")
	assert.False(t, ok)
}
