package main

import (
	"bytes"
	"context"
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tuannm99/novardb"
	"github.com/tuannm99/novardb/server/novawire"
	"github.com/tuannm99/novardb/sqlclient"
)

func TestStatementComplete(t *testing.T) {
	assert.False(t, statementComplete("SELECT * FROM t"))
	assert.True(t, statementComplete("SELECT * FROM t;"))
	assert.False(t, statementComplete("INSERT INTO t VALUES ('a;"))
	assert.True(t, statementComplete("INSERT INTO t VALUES ('it''s');"))
}

func TestHistory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "hist")
	h := NewHistory(path)
	require.NoError(t, h.Append("SELECT *\n  FROM t;"))
	require.NoError(t, h.Append("   "))
	require.NoError(t, h.Append("DELETE FROM t;"))

	h2 := NewHistory(path)
	require.NoError(t, h2.Load(1))
	assert.Equal(t, []string{"DELETE FROM t;"}, h2.Lines())

	var buf bytes.Buffer
	h.Print(&buf, 0)
	assert.Equal(t, "    1  SELECT * FROM t;\n    2  DELETE FROM t;\n", buf.String())
}

func TestPrintResult(t *testing.T) {
	var buf bytes.Buffer
	printResult(&buf, &novardb.Result{
		Success:  true,
		Columns:  []string{"id", "name"},
		Rows:     [][]any{{int64(1), "alice"}, {int64(22), nil}},
		RowCount: 2,
	})
	assert.Equal(t, "id | name \n---+------\n1  | alice\n22 | NULL \n(2 rows)\n", buf.String())

	buf.Reset()
	printResult(&buf, &novardb.Result{Message: "column not found: x", ErrorKind: "column_not_found"})
	assert.Equal(t, "ERROR (column_not_found): column not found: x\n", buf.String())
}

func newSession(t *testing.T) (*session, *bytes.Buffer) {
	t.Helper()
	srv, err := novawire.NewServer(novawire.ServerConfig{DataDir: t.TempDir(), DefaultDatabase: "main"})
	require.NoError(t, err)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = srv.Serve(ctx, ln)
	}()

	cli, err := sqlclient.Dial(ln.Addr().String(), time.Second)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = cli.Close()
		cancel()
		<-done
	})
	var out bytes.Buffer
	return &session{cli: cli, out: &out, hist: NewHistory(""), timeout: 5 * time.Second}, &out
}

func TestSession_MetaCommands(t *testing.T) {
	s, out := newSession(t)

	ok, err := s.script("CREATE TABLE users (id INT PRIMARY KEY, city TEXT); INSERT INTO users VALUES (1, 'hue');")
	require.NoError(t, err)
	assert.True(t, ok)

	out.Reset()
	_, err = s.meta(`\dt`)
	require.NoError(t, err)
	assert.Equal(t, "users\n", out.String())

	out.Reset()
	_, err = s.meta(`\stats`)
	require.NoError(t, err)
	assert.Contains(t, out.String(), "total_rows: 1")

	out.Reset()
	_, err = s.meta(`\explain SELECT * FROM users WHERE id = 1`)
	require.NoError(t, err)
	assert.Contains(t, out.String(), "operation: IndexLookup")

	_, err = s.meta(`\index users city`)
	require.NoError(t, err)
	out.Reset()
	_, err = s.meta(`\di users`)
	require.NoError(t, err)
	assert.Contains(t, out.String(), "column: city")

	_, err = s.meta(`\c nowhere`)
	require.Error(t, err)
	_, err = s.meta(`\bogus`)
	require.Error(t, err)

	quit, err := s.meta(`\q`)
	require.NoError(t, err)
	assert.True(t, quit)
}
