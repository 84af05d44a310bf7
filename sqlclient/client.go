package sqlclient

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tuannm99/novardb"
	"github.com/tuannm99/novardb/server/novawire"
)

// Client is a synchronous client. Calls are serialized on the connection, so
// it is safe for concurrent use.
type Client struct {
	conn net.Conn
	mu   sync.Mutex
	id   atomic.Uint64

	db atomic.Value // string

	// Optional per-request timeout (0 = no timeout).
	rwTimeout time.Duration
}

func Dial(addr string, timeout time.Duration) (*Client, error) {
	return DialContext(context.Background(), addr, timeout)
}

func DialContext(ctx context.Context, addr string, timeout time.Duration) (*Client, error) {
	d := net.Dialer{Timeout: timeout}
	c, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, err
	}
	cl := &Client{conn: c}
	cl.db.Store("")
	return cl, nil
}

// SetRWTimeout sets a per-request read/write deadline.
func (c *Client) SetRWTimeout(d time.Duration) {
	if c == nil {
		return
	}
	c.rwTimeout = d
}

// Use selects the database sent with every following request. Empty means the
// server's default database.
func (c *Client) Use(db string) { c.db.Store(db) }

func (c *Client) Database() string { return c.db.Load().(string) }

func (c *Client) Close() error {
	if c == nil || c.conn == nil {
		return nil
	}
	return c.conn.Close()
}

func (c *Client) Exec(sql string) (*novardb.Result, error) {
	return c.ExecContext(context.Background(), sql)
}

func (c *Client) ExecContext(ctx context.Context, sql string) (*novardb.Result, error) {
	resp, err := c.call(ctx, novawire.Request{Op: novawire.OpExecute, SQL: sql})
	if err != nil {
		return nil, err
	}
	if resp.Result == nil {
		return nil, errors.New("sqlclient: response without result")
	}
	return resp.Result, nil
}

func (c *Client) Batch(ctx context.Context, sqls []string) ([]*novardb.Result, error) {
	resp, err := c.call(ctx, novawire.Request{Op: novawire.OpBatch, Batch: sqls})
	if err != nil {
		return nil, err
	}
	return resp.Results, nil
}

func (c *Client) Explain(ctx context.Context, sql string) (*novardb.Plan, error) {
	resp, err := c.call(ctx, novawire.Request{Op: novawire.OpExplain, SQL: sql})
	if err != nil {
		return nil, err
	}
	return resp.Plan, nil
}

func (c *Client) Stats(ctx context.Context) (*novardb.Stats, error) {
	resp, err := c.call(ctx, novawire.Request{Op: novawire.OpStats})
	if err != nil {
		return nil, err
	}
	return resp.Stats, nil
}

// CreateDatabase reports whether the database was newly created.
func (c *Client) CreateDatabase(ctx context.Context, name string) (bool, error) {
	resp, err := c.call(ctx, novawire.Request{Op: novawire.OpCreateDatabase, DB: name})
	if err != nil {
		return false, err
	}
	return resp.Created != nil && *resp.Created, nil
}

func (c *Client) DropDatabase(ctx context.Context, name string) error {
	_, err := c.call(ctx, novawire.Request{Op: novawire.OpDropDatabase, DB: name})
	return err
}

func (c *Client) ListDatabases(ctx context.Context) ([]string, error) {
	resp, err := c.call(ctx, novawire.Request{Op: novawire.OpListDatabases})
	if err != nil {
		return nil, err
	}
	return resp.Names, nil
}

func (c *Client) ListTables(ctx context.Context) ([]string, error) {
	resp, err := c.call(ctx, novawire.Request{Op: novawire.OpListTables})
	if err != nil {
		return nil, err
	}
	return resp.Names, nil
}

func (c *Client) ListIndexes(ctx context.Context, table string) ([]novardb.IndexInfo, error) {
	resp, err := c.call(ctx, novawire.Request{Op: novawire.OpListIndexes, Table: table})
	if err != nil {
		return nil, err
	}
	return resp.Indexes, nil
}

func (c *Client) CreateIndex(ctx context.Context, table, column, kind string) error {
	_, err := c.call(ctx, novawire.Request{Op: novawire.OpCreateIndex, Table: table, Column: column, Kind: kind})
	return err
}

func (c *Client) DropIndex(ctx context.Context, table, column string) error {
	_, err := c.call(ctx, novawire.Request{Op: novawire.OpDropIndex, Table: table, Column: column})
	return err
}

// call sends one request and waits for its response. A server-side Error is
// returned as a Go error.
func (c *Client) call(ctx context.Context, req novawire.Request) (*novawire.Response, error) {
	if c == nil || c.conn == nil {
		return nil, fmt.Errorf("sqlclient: nil client")
	}
	req.ID = c.id.Add(1)
	if req.DB == "" {
		req.DB = c.Database()
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.applyDeadline(ctx); err != nil {
		return nil, err
	}
	defer func() {
		// Clear deadline after request so idle connection doesn't expire.
		_ = c.conn.SetDeadline(time.Time{})
	}()

	if err := novawire.WriteFrame(c.conn, req); err != nil {
		return nil, err
	}
	var resp novawire.Response
	if err := novawire.ReadFrame(c.conn, &resp); err != nil {
		return nil, err
	}
	if resp.ID != req.ID {
		return nil, fmt.Errorf("sqlclient: response id mismatch: got=%d want=%d", resp.ID, req.ID)
	}
	if resp.Error != "" {
		return nil, errors.New(resp.Error)
	}
	return &resp, nil
}

func (c *Client) applyDeadline(ctx context.Context) error {
	// Prefer context deadline if present; otherwise use rwTimeout.
	if dl, ok := ctx.Deadline(); ok {
		return c.conn.SetDeadline(dl)
	}
	if c.rwTimeout > 0 {
		return c.conn.SetDeadline(time.Now().Add(c.rwTimeout))
	}
	return nil
}
