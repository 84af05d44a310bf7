package executor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tuannm99/novardb/internal/dberr"
	"github.com/tuannm99/novardb/internal/index"
	"github.com/tuannm99/novardb/internal/record"
	"github.com/tuannm99/novardb/internal/sql/parser"
	"github.com/tuannm99/novardb/internal/sql/planner"
	"github.com/tuannm99/novardb/internal/storage"
)

func newExecutor(t *testing.T, dir string) *Executor {
	t.Helper()
	st, err := storage.NewFileStore(dir)
	require.NoError(t, err)
	_, err = st.CreateDatabase("app")
	require.NoError(t, err)
	return NewExecutor(st, index.NewManager(st), "app")
}

func run(t *testing.T, e *Executor, sqls ...string) *Result {
	t.Helper()
	var res *Result
	for _, sql := range sqls {
		var err error
		res, err = e.ExecSQL(sql)
		require.NoError(t, err, sql)
		require.True(t, res.Success, sql)
	}
	return res
}

func mustParse(t *testing.T, sql string) parser.Statement {
	t.Helper()
	stmt, err := parser.Parse(sql)
	require.NoError(t, err)
	return stmt
}

func seedUsers(t *testing.T, e *Executor) {
	t.Helper()
	run(t, e,
		"CREATE TABLE users (id INT PRIMARY KEY, name VARCHAR(10) NOT NULL, email TEXT UNIQUE, age INT)",
		"INSERT INTO users VALUES (1, 'alice', 'a@x.io', 30)",
		"INSERT INTO users VALUES (2, 'bob', 'b@x.io', 25)",
		"INSERT INTO users VALUES (3, 'carol', NULL, 35)",
	)
}

func TestExecutor_InsertSelectRoundTrip(t *testing.T) {
	e := newExecutor(t, t.TempDir())
	seedUsers(t, e)

	res := run(t, e, "SELECT * FROM users")
	assert.Equal(t, []string{"id", "name", "email", "age"}, res.Columns)
	assert.Equal(t, 3, res.RowCount)
	assert.Equal(t, "Query returned 3 rows", res.Message)
	assert.Equal(t, [][]any{
		{int64(1), "alice", "a@x.io", int64(30)},
		{int64(2), "bob", "b@x.io", int64(25)},
		{int64(3), "carol", nil, int64(35)},
	}, res.Rows)

	res = run(t, e, "SELECT name, age FROM users WHERE age >= 30")
	assert.Equal(t, [][]any{{"alice", int64(30)}, {"carol", int64(35)}}, res.Rows)
}

func TestExecutor_InsertCoercion(t *testing.T) {
	e := newExecutor(t, t.TempDir())
	run(t, e,
		"CREATE TABLE t (n INT, d DECIMAL(10,2), b BOOLEAN, day DATE, s TEXT)",
		"INSERT INTO t VALUES ('42', 3, 'yes', '2024/01/05', 7)",
	)
	res := run(t, e, "SELECT * FROM t")
	assert.Equal(t, [][]any{{int64(42), 3.0, true, "2024-01-05", "7"}}, res.Rows)
}

func TestExecutor_Constraints(t *testing.T) {
	e := newExecutor(t, t.TempDir())
	seedUsers(t, e)

	cases := []struct {
		name string
		sql  string
		want error
	}{
		{"duplicate pk", "INSERT INTO users VALUES (1, 'x', 'x@x.io', 1)", dberr.ErrConstraint},
		{"null pk", "INSERT INTO users VALUES (NULL, 'x', 'y@x.io', 1)", dberr.ErrConstraint},
		{"not null", "INSERT INTO users VALUES (9, NULL, 'z@x.io', 1)", dberr.ErrConstraint},
		{"duplicate unique", "INSERT INTO users VALUES (9, 'x', 'a@x.io', 1)", dberr.ErrConstraint},
		{"varchar overflow", "INSERT INTO users VALUES (9, 'abcdefghijk', 'q@x.io', 1)", dberr.ErrConstraint},
		{"arity", "INSERT INTO users VALUES (9, 'x')", dberr.ErrSchema},
		{"unknown column", "INSERT INTO users (id, nope) VALUES (9, 1)", dberr.ErrColumnNotFound},
		{"update to duplicate", "UPDATE users SET email = 'a@x.io' WHERE id = 2", dberr.ErrConstraint},
		{"update null", "UPDATE users SET name = NULL", dberr.ErrConstraint},
		{"missing table", "SELECT * FROM ghosts", dberr.ErrTableNotFound},
		{"unknown where column", "SELECT * FROM users WHERE ghost = 1", dberr.ErrColumnNotFound},
		{"create existing", "CREATE TABLE users (id INT)", dberr.ErrTableExists},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := e.ExecSQL(tc.sql)
			require.ErrorIs(t, err, tc.want)
		})
	}

	// NULL is allowed more than once in a UNIQUE column.
	run(t, e, "INSERT INTO users VALUES (4, 'dave', NULL, 40)")

	res := run(t, e, "SELECT COUNT(*) FROM users")
	assert.Equal(t, [][]any{{int64(4)}}, res.Rows)
}

func TestExecutor_IfExistsVariants(t *testing.T) {
	e := newExecutor(t, t.TempDir())
	seedUsers(t, e)

	res := run(t, e, "CREATE TABLE IF NOT EXISTS users (id INT)")
	assert.Contains(t, res.Message, "already exists")

	res = run(t, e, "DROP TABLE IF EXISTS ghosts")
	assert.Contains(t, res.Message, "does not exist")

	_, err := e.ExecSQL("DROP TABLE ghosts")
	require.ErrorIs(t, err, dberr.ErrTableNotFound)

	run(t, e, "DROP TABLE users")
	assert.False(t, e.Store.TableExists("app", "users"))
}

func TestExecutor_UpdateDeleteDurable(t *testing.T) {
	dir := t.TempDir()
	e := newExecutor(t, dir)
	seedUsers(t, e)

	res := run(t, e, "UPDATE users SET age = 26 WHERE name = 'bob'")
	assert.Equal(t, 1, res.RowCount)
	res = run(t, e, "UPDATE users SET age = 1 WHERE id = 99")
	assert.Equal(t, 0, res.RowCount)
	res = run(t, e, "DELETE FROM users WHERE age > 30")
	assert.Equal(t, 1, res.RowCount)

	// A fresh store over the same directory sees the rewritten rows.
	st, err := storage.NewFileStore(dir)
	require.NoError(t, err)
	e2 := NewExecutor(st, index.NewManager(st), "app")
	res = run(t, e2, "SELECT id, age FROM users")
	assert.Equal(t, [][]any{{int64(1), int64(30)}, {int64(2), int64(26)}}, res.Rows)

	res = run(t, e2, "DELETE FROM users")
	assert.Equal(t, 2, res.RowCount)
	res = run(t, e2, "SELECT * FROM users")
	assert.Empty(t, res.Rows)
}

func TestExecutor_IndexLookupAndStaleness(t *testing.T) {
	e := newExecutor(t, t.TempDir())
	seedUsers(t, e)

	res := run(t, e, "SELECT name FROM users WHERE id = 2")
	assert.Equal(t, [][]any{{"bob"}}, res.Rows)

	// Rewrite rows behind the index's back; positions move and the
	// generation changes.
	rows, err := e.Store.GetAllRows("app", "users")
	require.NoError(t, err)
	require.NoError(t, e.Store.ReplaceAllRows("app", "users", []record.Row{rows[2], rows[1], rows[0]}))

	_, err = e.Indexes.Lookup("app", "users", "id", 2)
	require.ErrorIs(t, err, index.ErrIndexStale)

	res = run(t, e, "SELECT name FROM users WHERE id = 3")
	assert.Equal(t, [][]any{{"carol"}}, res.Rows)

	// The lookup rebuilt the index.
	got, err := e.Indexes.Lookup("app", "users", "id", 1)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "alice", got[0]["name"])

	// Index maintained across inserts.
	run(t, e, "INSERT INTO users VALUES (7, 'eve', 'e@x.io', 22)")
	got, err = e.Indexes.Lookup("app", "users", "id", 7)
	require.NoError(t, err)
	require.Len(t, got, 1)
}

func TestExecutor_IndexMissingFallsBackToScan(t *testing.T) {
	e := newExecutor(t, t.TempDir())
	seedUsers(t, e)

	p, err := planner.BuildPlan(mustParse(t, "SELECT name FROM users WHERE id = 1"), e)
	require.NoError(t, err)
	require.Equal(t, planner.IndexLookup, p.(*planner.SelectPlan).Access.Kind)

	require.NoError(t, e.Indexes.DropIndex("app", "users", "id"))

	res, err := e.Exec(p)
	require.NoError(t, err)
	assert.Equal(t, [][]any{{"alice"}}, res.Rows)
}

func seedOrders(t *testing.T, e *Executor) {
	t.Helper()
	run(t, e,
		"CREATE TABLE orders (id INT PRIMARY KEY, user_id INT, total DECIMAL)",
		"INSERT INTO orders VALUES (10, 1, 9.5)",
		"INSERT INTO orders VALUES (11, 1, 20)",
		"INSERT INTO orders VALUES (12, 2, 5)",
		"INSERT INTO orders VALUES (13, NULL, 1)",
	)
}

func TestExecutor_Join(t *testing.T) {
	e := newExecutor(t, t.TempDir())
	seedUsers(t, e)
	seedOrders(t, e)

	res := run(t, e, "SELECT users.name, orders.id, total FROM users JOIN orders ON users.id = orders.user_id")
	assert.Equal(t, []string{"name", "orders.id", "total"}, res.Columns)
	assert.Equal(t, [][]any{
		{"alice", int64(10), 9.5},
		{"alice", int64(11), 20.0},
		{"bob", int64(12), 5.0},
	}, res.Rows)

	// Operands written right-to-left and through aliases.
	res = run(t, e, "SELECT u.name, o.total FROM users u INNER JOIN orders o ON o.user_id = u.id WHERE o.total > 6")
	assert.Equal(t, [][]any{{"alice", 9.5}, {"alice", 20.0}}, res.Rows)

	res = run(t, e, "SELECT name, orders.id FROM users LEFT JOIN orders ON users.id = orders.user_id")
	assert.Equal(t, [][]any{
		{"alice", int64(10)},
		{"alice", int64(11)},
		{"bob", int64(12)},
		{"carol", nil},
	}, res.Rows)
}

func TestExecutor_JoinCrossProductAndErrors(t *testing.T) {
	e := newExecutor(t, t.TempDir())
	seedUsers(t, e)
	seedOrders(t, e)

	res := run(t, e, "SELECT * FROM users CROSS JOIN orders")
	assert.Equal(t, 12, res.RowCount)
	assert.Len(t, res.Columns, 7)

	_, err := e.ExecSQL("SELECT * FROM users RIGHT JOIN orders ON users.id = orders.user_id")
	var ee *dberr.ExecutionError
	require.ErrorAs(t, err, &ee)
	assert.Equal(t, "select.join", ee.Stage)

	_, err = e.ExecSQL("SELECT * FROM users JOIN orders ON users.id = orders.ghost")
	require.ErrorIs(t, err, dberr.ErrColumnNotFound)
}

func TestExecutor_GroupOrderLimit(t *testing.T) {
	e := newExecutor(t, t.TempDir())
	run(t, e,
		"CREATE TABLE emp (id INT PRIMARY KEY, dept TEXT, salary INT)",
		"INSERT INTO emp VALUES (1, 'eng', 100)",
		"INSERT INTO emp VALUES (2, 'ops', 50)",
		"INSERT INTO emp VALUES (3, 'eng', 300)",
		"INSERT INTO emp VALUES (4, NULL, 10)",
	)

	res := run(t, e, "SELECT dept, COUNT(*), SUM(salary), AVG(salary), MIN(salary), MAX(salary) FROM emp GROUP BY dept")
	assert.Equal(t, []string{"dept", "COUNT(*)", "SUM(salary)", "AVG(salary)", "MIN(salary)", "MAX(salary)"}, res.Columns)
	assert.Equal(t, [][]any{
		{"eng", int64(2), int64(400), 200.0, int64(100), int64(300)},
		{"ops", int64(1), int64(50), 50.0, int64(50), int64(50)},
		{nil, int64(1), int64(10), 10.0, int64(10), int64(10)},
	}, res.Rows)

	res = run(t, e, "SELECT COUNT(*) FROM emp WHERE salary > 1000")
	assert.Equal(t, [][]any{{int64(0)}}, res.Rows)

	res = run(t, e, "SELECT id FROM emp ORDER BY salary DESC LIMIT 2")
	assert.Equal(t, [][]any{{int64(3)}, {int64(1)}}, res.Rows)

	res = run(t, e, "SELECT id, dept FROM emp ORDER BY dept")
	assert.Equal(t, [][]any{{int64(4), nil}, {int64(1), "eng"}, {int64(3), "eng"}, {int64(2), "ops"}}, res.Rows)

	res = run(t, e, "SELECT id FROM emp ORDER BY ghost")
	assert.Equal(t, 4, res.RowCount)

	res = run(t, e, "SELECT id FROM emp LIMIT 0")
	assert.Empty(t, res.Rows)

	res = run(t, e, "SELECT id, ghost FROM emp WHERE id = 1")
	assert.Equal(t, []string{"id"}, res.Columns)
}

func TestExecutor_Scenario(t *testing.T) {
	e := newExecutor(t, t.TempDir())
	run(t, e,
		"CREATE TABLE products (id INT PRIMARY KEY, name VARCHAR(20), price DECIMAL, stock INT)",
		"INSERT INTO products VALUES (1, 'pen', 1.5, 100)",
		"INSERT INTO products VALUES (2, 'book', 12, 20)",
		"INSERT INTO products VALUES (3, 'lamp', 30, 5)",
		"UPDATE products SET stock = 0 WHERE name = 'lamp'",
		"DELETE FROM products WHERE id = 1",
	)
	res := run(t, e, "SELECT name, stock FROM products ORDER BY price DESC")
	assert.Equal(t, [][]any{{"lamp", int64(0)}, {"book", int64(20)}}, res.Rows)

	res = run(t, e, "SELECT * FROM products WHERE id = 1")
	assert.Empty(t, res.Rows)

	recs := run(t, e, "SELECT id, name FROM products WHERE id = 2").Records()
	assert.Equal(t, []map[string]any{{"id": int64(2), "name": "book"}}, recs)
}

func TestFailure(t *testing.T) {
	r := Failure("boom", dberr.Constraintf("dup"))
	assert.False(t, r.Success)
	assert.Equal(t, "constraint_error", r.ErrorKind)
	assert.NotNil(t, r.Rows)
}

func TestExecutor_DuplicateInsertKeepsFirstRow(t *testing.T) {
	e := newExecutor(t, t.TempDir())
	run(t, e,
		"CREATE TABLE users (id INT PRIMARY KEY, name VARCHAR(50))",
		"INSERT INTO users VALUES (1,'John')",
	)
	_, err := e.ExecSQL("INSERT INTO users VALUES (1,'Jane')")
	require.ErrorIs(t, err, dberr.ErrConstraint)

	res := run(t, e, "SELECT * FROM users")
	assert.Equal(t, []map[string]any{{"id": int64(1), "name": "John"}}, res.Records())
}

func TestExecutor_DeleteThenIndexedLookup(t *testing.T) {
	e := newExecutor(t, t.TempDir())
	seedUsers(t, e)
	run(t, e, "INSERT INTO users VALUES (4, 'dan', 'd@x.io', 30)")
	require.NoError(t, e.Indexes.CreateIndex("app", "users", "age", index.KindHash))

	run(t, e, "DELETE FROM users WHERE id = 1")

	res := run(t, e, "SELECT id FROM users WHERE age = 30")
	assert.Equal(t, [][]any{{int64(4)}}, res.Rows)

	got, err := e.Indexes.Lookup("app", "users", "age", 30)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, int64(4), got[0]["id"])
}

func TestExecutor_OrderByTextColumnSortsAsText(t *testing.T) {
	e := newExecutor(t, t.TempDir())
	run(t, e,
		"CREATE TABLE codes (code VARCHAR(10))",
		"INSERT INTO codes VALUES ('9')",
		"INSERT INTO codes VALUES ('10')",
		"INSERT INTO codes VALUES ('100')",
		"INSERT INTO codes VALUES ('02')",
		"INSERT INTO codes VALUES ('2')",
	)

	res := run(t, e, "SELECT code FROM codes ORDER BY code")
	assert.Equal(t, [][]any{{"02"}, {"10"}, {"100"}, {"2"}, {"9"}}, res.Rows)

	res = run(t, e, "SELECT code FROM codes ORDER BY code DESC")
	assert.Equal(t, [][]any{{"9"}, {"2"}, {"100"}, {"10"}, {"02"}}, res.Rows)
}

func TestSortRows_ByKind(t *testing.T) {
	mixed := []record.Row{{"v": "abc"}, {"v": int64(5)}, {"v": nil}, {"v": "aaa"}}
	sortRows(mixed, "v", true)
	assert.Equal(t, []record.Row{{"v": "abc"}, {"v": int64(5)}, {"v": nil}, {"v": "aaa"}}, mixed)

	nums := []record.Row{{"v": int64(10)}, {"v": 2.5}, {"v": nil}, {"v": int64(2)}}
	sortRows(nums, "v", true)
	assert.Equal(t, []record.Row{{"v": nil}, {"v": int64(2)}, {"v": 2.5}, {"v": int64(10)}}, nums)

	flags := []record.Row{{"v": true}, {"v": false}, {"v": nil}}
	sortRows(flags, "v", false)
	assert.Equal(t, []record.Row{{"v": true}, {"v": false}, {"v": nil}}, flags)
}
