package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tuannm99/novardb/internal/dberr"
)

func intp(n int) *int { return &n }

func TestParse_SemicolonOptional(t *testing.T) {
	for _, sql := range []string{"SELECT * FROM users", "SELECT * FROM users;", "  select *\n from users ;  "} {
		stmt, err := Parse(sql)
		require.NoError(t, err, sql)
		s, ok := stmt.(*SelectStmt)
		require.True(t, ok, "want *SelectStmt, got %T", stmt)
		assert.Equal(t, "users", s.TableName)
		assert.Equal(t, []string{"*"}, s.Columns)
	}
}

func TestParse_Errors(t *testing.T) {
	cases := map[string]string{
		"empty":             "   ;",
		"unsupported":       "TRUNCATE users",
		"unterminated":      "SELECT * FROM users WHERE name = 'x",
		"unbalanced":        "INSERT INTO users VALUES (1, 2",
		"two statements":    "SELECT * FROM a; SELECT * FROM b",
		"bad table":         "DROP TABLE 1abc",
		"no from":           "SELECT id users",
		"bad where":         "SELECT * FROM users WHERE id",
		"and not supported": "SELECT * FROM users WHERE id = 1 AND name = 'x'",
		"bad limit":         "SELECT * FROM users LIMIT -1",
		"clause order":      "SELECT * FROM users LIMIT 1 WHERE id = 1",
		"two group keys":    "SELECT * FROM users GROUP BY a, b",
		"bad order dir":     "SELECT * FROM users ORDER BY id SIDEWAYS",
		"update no set":     "UPDATE users id = 1",
		"update bad assign": "UPDATE users SET id",
		"insert no values":  "INSERT INTO users (1, 2)",
		"insert arity":      "INSERT INTO users (id, name) VALUES (1)",
		"create no cols":    "CREATE TABLE users ()",
		"create no parens":  "CREATE TABLE users id INT",
		"sum star":          "SELECT SUM(*) FROM t",
	}
	for name, sql := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse(sql)
			require.Error(t, err)
			assert.ErrorIs(t, err, dberr.ErrParse)
		})
	}
}

func TestParse_CreateTable(t *testing.T) {
	stmt, err := Parse("CREATE TABLE users (id INT PRIMARY KEY, name VARCHAR(50) NOT NULL UNIQUE, score DECIMAL(10, 2), bio TEXT NULL);")
	require.NoError(t, err)

	s, ok := stmt.(*CreateTableStmt)
	require.True(t, ok, "want *CreateTableStmt, got %T", stmt)
	require.Equal(t, "users", s.TableName)
	require.Len(t, s.Columns, 4)

	assert.Equal(t, ColumnDef{Name: "id", Type: "INT", Constraints: []Constraint{PrimaryKey}}, s.Columns[0])
	assert.Equal(t, ColumnDef{Name: "name", Type: "VARCHAR", MaxLength: intp(50), Constraints: []Constraint{NotNull, Unique}}, s.Columns[1])
	assert.Equal(t, ColumnDef{Name: "score", Type: "DECIMAL"}, s.Columns[2])
	assert.Equal(t, ColumnDef{Name: "bio", Type: "TEXT"}, s.Columns[3])
}

func TestParse_CreateTable_ConstraintsAnyOrderNoDuplicates(t *testing.T) {
	stmt, err := Parse("create table t (a int unique not null unique primary key)")
	require.NoError(t, err)
	s := stmt.(*CreateTableStmt)
	assert.Equal(t, []Constraint{Unique, NotNull, PrimaryKey}, s.Columns[0].Constraints)
}

func TestParse_CreateTable_TableLevelConstraintAndIfNotExists(t *testing.T) {
	stmt, err := Parse("CREATE TABLE IF NOT EXISTS t (a INT, b VARCHAR (10), PRIMARY KEY (a), UNIQUE (b))")
	require.NoError(t, err)
	s := stmt.(*CreateTableStmt)
	assert.True(t, s.IfNotExists)
	require.Len(t, s.Columns, 2)
	assert.True(t, s.Columns[0].Has(PrimaryKey))
	assert.True(t, s.Columns[1].Has(Unique))
	assert.Equal(t, intp(10), s.Columns[1].MaxLength)
}

func TestParse_CreateTable_UnknownConstraint(t *testing.T) {
	_, err := Parse("CREATE TABLE t (a INT DEFAULT 1)")
	require.ErrorIs(t, err, dberr.ErrParse)
	assert.Contains(t, err.Error(), "a INT DEFAULT 1")
}

func TestParse_Insert(t *testing.T) {
	stmt, err := Parse("INSERT INTO users VALUES (1, 'a, (b)', TRUE, false, NULL, 2.5, -7, abc, 'it''s');")
	require.NoError(t, err)

	s, ok := stmt.(*InsertStmt)
	require.True(t, ok, "want *InsertStmt, got %T", stmt)
	assert.Equal(t, "users", s.TableName)
	assert.Empty(t, s.Columns)
	assert.Equal(t, []any{int64(1), "a, (b)", true, false, nil, 2.5, int64(-7), "abc", "it's"}, s.Values)
}

func TestParse_InsertColumnList(t *testing.T) {
	stmt, err := Parse("INSERT INTO users (id, name) VALUES (1, 'x')")
	require.NoError(t, err)
	s := stmt.(*InsertStmt)
	assert.Equal(t, []string{"id", "name"}, s.Columns)
	assert.Equal(t, []any{int64(1), "x"}, s.Values)
}

func TestParse_SelectFull(t *testing.T) {
	stmt, err := Parse("SELECT dept, count(*), AVG(salary) FROM emp WHERE salary >= 1000 GROUP BY dept ORDER BY dept DESC LIMIT 3")
	require.NoError(t, err)

	s := stmt.(*SelectStmt)
	assert.Equal(t, []string{"dept", "COUNT(*)", "AVG(salary)"}, s.Columns)
	assert.Equal(t, "emp", s.TableName)
	assert.Equal(t, &Condition{Column: "salary", Op: ">=", Value: int64(1000)}, s.Where)
	assert.Equal(t, "dept", s.GroupBy)
	assert.Equal(t, &OrderBy{Column: "dept", Ascending: false}, s.OrderBy)
	assert.Equal(t, intp(3), s.Limit)
	assert.Nil(t, s.Join)
}

func TestParse_WhereOperators(t *testing.T) {
	cases := map[string]string{
		"a = 1":  "=",
		"a != 1": "!=",
		"a <> 1": "!=",
		"a > 1":  ">",
		"a < 1":  "<",
		"a >= 1": ">=",
		"a <= 1": "<=",
		"a=1":    "=",
	}
	for where, op := range cases {
		stmt, err := Parse("SELECT * FROM t WHERE " + where)
		require.NoError(t, err, where)
		assert.Equal(t, op, stmt.(*SelectStmt).Where.Op, where)
	}

	stmt, err := Parse("DELETE FROM t WHERE name = 'a >= b'")
	require.NoError(t, err)
	assert.Equal(t, &Condition{Column: "name", Op: "=", Value: "a >= b"}, stmt.(*DeleteStmt).Where)
}

func TestParse_Join(t *testing.T) {
	stmt, err := Parse("SELECT * FROM users u LEFT JOIN orders o ON u.id = o.user_id WHERE o.total > 10")
	require.NoError(t, err)
	s := stmt.(*SelectStmt)
	assert.Equal(t, "users", s.TableName)
	assert.Equal(t, "u", s.Alias)
	require.NotNil(t, s.Join)
	assert.Equal(t, LeftJoin, s.Join.Type)
	assert.Equal(t, "orders", s.Join.Table)
	assert.Equal(t, "o", s.Join.Alias)
	assert.Equal(t, &JoinOn{
		Left:  ColumnRef{Table: "u", Column: "id"},
		Right: ColumnRef{Table: "o", Column: "user_id"},
	}, s.Join.On)
	assert.Equal(t, "o.total", s.Where.Column)
}

func TestParse_JoinTypes(t *testing.T) {
	cases := map[string]JoinType{
		"JOIN":            InnerJoin,
		"INNER JOIN":      InnerJoin,
		"LEFT OUTER JOIN": LeftJoin,
		"RIGHT JOIN":      RightJoin,
		"FULL OUTER JOIN": FullJoin,
		"full join":       FullJoin,
		"CROSS JOIN":      InnerJoin,
		"left   join":     LeftJoin,
	}
	for kw, want := range cases {
		stmt, err := Parse("SELECT * FROM a " + kw + " b ON a.id = b.id")
		require.NoError(t, err, kw)
		assert.Equal(t, want, stmt.(*SelectStmt).Join.Type, kw)
	}
}

func TestParse_JoinWithoutValidOn(t *testing.T) {
	for _, sql := range []string{
		"SELECT * FROM a JOIN b",
		"SELECT * FROM a JOIN b ON a.x > b.y",
		"SELECT * FROM a JOIN b ON nonsense",
	} {
		stmt, err := Parse(sql)
		require.NoError(t, err, sql)
		s := stmt.(*SelectStmt)
		require.NotNil(t, s.Join, sql)
		assert.Equal(t, "b", s.Join.Table)
		assert.Nil(t, s.Join.On, sql)
	}
}

func TestParse_Update(t *testing.T) {
	stmt, err := Parse("UPDATE users SET name = 'a=b, c', active = true WHERE id = 5")
	require.NoError(t, err)
	s := stmt.(*UpdateStmt)
	assert.Equal(t, "users", s.TableName)
	assert.Equal(t, []Assignment{{Column: "name", Value: "a=b, c"}, {Column: "active", Value: true}}, s.Set)
	assert.Equal(t, &Condition{Column: "id", Op: "=", Value: int64(5)}, s.Where)
}

func TestParse_DeleteAndDrop(t *testing.T) {
	stmt, err := Parse("DELETE FROM users")
	require.NoError(t, err)
	assert.Equal(t, &DeleteStmt{TableName: "users"}, stmt)

	stmt, err = Parse("DROP TABLE users")
	require.NoError(t, err)
	assert.Equal(t, &DropTableStmt{TableName: "users"}, stmt)

	stmt, err = Parse("drop table if exists users;")
	require.NoError(t, err)
	assert.Equal(t, &DropTableStmt{TableName: "users", IfExists: true}, stmt)
}

func TestSplitStatements(t *testing.T) {
	script := `
-- schema
CREATE TABLE t (id INT);
INSERT INTO t VALUES (1); INSERT INTO t VALUES ('a;b'); -- trailing
;
SELECT * FROM t`
	got := SplitStatements(script)
	assert.Equal(t, []string{
		"CREATE TABLE t (id INT)",
		"INSERT INTO t VALUES (1)",
		"INSERT INTO t VALUES ('a;b')",
		"SELECT * FROM t",
	}, got)
}
