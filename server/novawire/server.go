package novawire

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/tuannm99/novardb"
	"github.com/tuannm99/novardb/internal/dberr"
	"github.com/tuannm99/novardb/internal/storage"
)

type ServerConfig struct {
	Addr            string
	Mode            storage.StorageMode // zero means file
	DataDir         string
	DefaultDatabase string
	RateLimit       float64 // requests per second per connection, 0 = unlimited
	RateBurst       int
}

// Server serves the framed protocol. All connections share one storage
// engine, and so its per-table locks, and one facade per database.
type Server struct {
	cfg   ServerConfig
	store storage.Engine

	mu  sync.Mutex
	dbs map[string]*novardb.Database

	conns sync.WaitGroup
}

func NewServer(cfg ServerConfig) (*Server, error) {
	if cfg.Mode == 0 {
		cfg.Mode = storage.File
	}
	st, err := storage.NewEngine(cfg.Mode, cfg.DataDir)
	if err != nil {
		return nil, err
	}
	if cfg.DefaultDatabase != "" {
		if _, err := st.CreateDatabase(cfg.DefaultDatabase); err != nil {
			return nil, err
		}
	}
	return &Server{cfg: cfg, store: st, dbs: map[string]*novardb.Database{}}, nil
}

// Run listens on cfg.Addr and serves until ctx is cancelled.
func Run(ctx context.Context, cfg ServerConfig) error {
	srv, err := NewServer(cfg)
	if err != nil {
		return err
	}
	ln, err := net.Listen("tcp", cfg.Addr)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	return srv.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is cancelled, then closes ln and
// waits for open connections to finish.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	slog.Info("novawire: listening", "addr", ln.Addr().String(), "data_dir", s.cfg.DataDir)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		<-gctx.Done()
		return ln.Close()
	})
	g.Go(func() error {
		defer cancel()
		for {
			conn, err := ln.Accept()
			if err != nil {
				if gctx.Err() != nil || errors.Is(err, net.ErrClosed) {
					return nil
				}
				slog.Warn("novawire: accept failed", "err", err)
				continue
			}
			s.conns.Add(1)
			go func() {
				defer s.conns.Done()
				s.handleConn(gctx, conn)
			}()
		}
	})

	err := g.Wait()
	s.conns.Wait()
	slog.Info("novawire: stopped")
	if errors.Is(err, net.ErrClosed) {
		return nil
	}
	return err
}

func (s *Server) handleConn(ctx context.Context, conn net.Conn) {
	defer func() { _ = conn.Close() }()
	remote := conn.RemoteAddr().String()
	slog.Debug("novawire: connection opened", "remote", remote)

	// Unblock the read below on shutdown.
	stop := context.AfterFunc(ctx, func() { _ = conn.SetDeadline(time.Now()) })
	defer stop()

	limit := rate.Inf
	if s.cfg.RateLimit > 0 {
		limit = rate.Limit(s.cfg.RateLimit)
	}
	limiter := rate.NewLimiter(limit, max(s.cfg.RateBurst, 1))

	for {
		var req Request
		if err := ReadFrame(conn, &req); err != nil {
			if !errors.Is(err, io.EOF) && ctx.Err() == nil {
				slog.Debug("novawire: read failed", "remote", remote, "err", err)
			}
			return
		}
		if err := limiter.Wait(ctx); err != nil {
			return
		}
		resp := s.dispatch(req)
		if err := WriteFrame(conn, resp); err != nil {
			slog.Debug("novawire: write failed", "remote", remote, "err", err)
			return
		}
	}
}

// database returns the shared facade for name, checking existence first.
func (s *Server) database(name string) (*novardb.Database, error) {
	if name == "" {
		name = s.cfg.DefaultDatabase
	}
	if !storage.ValidName(name) || !s.store.DatabaseExists(name) {
		s.forget(name)
		return nil, dberr.DatabaseNotFound(name, false)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if db, ok := s.dbs[name]; ok {
		return db, nil
	}
	db, err := novardb.New(s.store, name)
	if err != nil {
		return nil, err
	}
	s.dbs[name] = db
	return db, nil
}

func (s *Server) forget(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if db, ok := s.dbs[name]; ok {
		_ = db.Close()
		delete(s.dbs, name)
	}
}

func (s *Server) dispatch(req Request) (resp Response) {
	resp.ID = req.ID
	defer func() {
		if r := recover(); r != nil {
			slog.Error("novawire: request panicked", "op", req.Op, "panic", r)
			resp = Response{ID: req.ID, Error: fmt.Sprintf("internal error: %v", r)}
		}
	}()

	fail := func(err error) Response {
		return Response{ID: req.ID, Error: err.Error()}
	}

	switch req.Op {
	case OpCreateDatabase:
		if !storage.ValidName(req.DB) {
			return fail(fmt.Errorf("invalid database name %q", req.DB))
		}
		created, err := s.store.CreateDatabase(req.DB)
		if err != nil {
			return fail(err)
		}
		resp.Created = &created
		return resp
	case OpDropDatabase:
		if !storage.ValidName(req.DB) {
			return fail(fmt.Errorf("invalid database name %q", req.DB))
		}
		s.forget(req.DB)
		dropped, err := s.store.DropDatabase(req.DB)
		if err != nil {
			return fail(err)
		}
		if !dropped {
			return fail(dberr.DatabaseNotFound(req.DB, false))
		}
		return resp
	case OpListDatabases:
		names, err := s.store.ListDatabases()
		if err != nil {
			return fail(err)
		}
		resp.Names = names
		return resp
	}

	db, err := s.database(req.DB)
	if err != nil {
		return fail(err)
	}

	switch req.Op {
	case OpExecute, "":
		resp.Result = db.Execute(req.SQL)
	case OpBatch:
		resp.Results = db.ExecuteBatch(req.Batch)
	case OpExplain:
		if resp.Plan, err = db.Explain(req.SQL); err != nil {
			return fail(err)
		}
	case OpStats:
		if resp.Stats, err = db.Stats(); err != nil {
			return fail(err)
		}
	case OpListTables:
		if resp.Names, err = db.Tables(); err != nil {
			return fail(err)
		}
	case OpListIndexes:
		if resp.Indexes, err = db.ListIndexes(req.Table); err != nil {
			return fail(err)
		}
	case OpCreateIndex:
		if err := db.CreateIndex(req.Table, req.Column, req.Kind); err != nil {
			return fail(err)
		}
	case OpDropIndex:
		if err := db.DropIndex(req.Table, req.Column); err != nil {
			return fail(err)
		}
	default:
		return fail(fmt.Errorf("unknown op %q", req.Op))
	}
	return resp
}
