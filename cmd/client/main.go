package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/chzyer/readline"

	"github.com/tuannm99/novardb/internal/config"
	"github.com/tuannm99/novardb/internal/sql/parser"
	"github.com/tuannm99/novardb/sqlclient"
)

const (
	prompt     = "novardb> "
	contPrompt = "...> "
)

const helpText = `meta commands:
  \q | quit | exit       quit
  \c <db>                switch database
  \l                     list databases
  \dt                    list tables
  \stats                 table statistics
  \explain <sql>         show the plan for a statement
  \di <table>            list indexes of a table
  \index <table> <col>   create a HASH index
  \history               print history
  \help                  show help

sql:
  end statements with ';'
  multiline input is supported (the CLI waits for ';')`

type session struct {
	cli     *sqlclient.Client
	out     io.Writer
	hist    *History
	timeout time.Duration
}

func (s *session) ctx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), s.timeout)
}

func (s *session) exec(stmt string) error {
	ctx, cancel := s.ctx()
	defer cancel()
	res, err := s.cli.ExecContext(ctx, stmt)
	if err != nil {
		return err
	}
	printResult(s.out, res)
	return nil
}

// script runs every statement in text and reports whether all succeeded.
func (s *session) script(text string) (bool, error) {
	ctx, cancel := s.ctx()
	defer cancel()
	results, err := s.cli.Batch(ctx, parser.SplitStatements(text))
	if err != nil {
		return false, err
	}
	ok := true
	for _, res := range results {
		printResult(s.out, res)
		ok = ok && res.Success
	}
	return ok, nil
}

// meta runs a backslash command. It returns true when the REPL should quit.
func (s *session) meta(line string) (quit bool, err error) {
	fields := strings.Fields(line)
	cmd, args := fields[0], fields[1:]
	ctx, cancel := s.ctx()
	defer cancel()

	switch cmd {
	case `\q`, "quit", "exit":
		return true, nil
	case `\help`, `\?`:
		fmt.Fprintln(s.out, helpText)
	case `\history`:
		s.hist.Print(s.out, 50)
	case `\c`:
		if len(args) != 1 {
			return false, fmt.Errorf(`usage: \c <db>`)
		}
		names, err := s.cli.ListDatabases(ctx)
		if err != nil {
			return false, err
		}
		found := false
		for _, n := range names {
			found = found || n == args[0]
		}
		if !found {
			return false, fmt.Errorf("database %s does not exist", args[0])
		}
		s.cli.Use(args[0])
		fmt.Fprintf(s.out, "now using database %s\n", args[0])
	case `\l`:
		names, err := s.cli.ListDatabases(ctx)
		if err != nil {
			return false, err
		}
		for _, n := range names {
			fmt.Fprintln(s.out, n)
		}
	case `\dt`:
		names, err := s.cli.ListTables(ctx)
		if err != nil {
			return false, err
		}
		for _, n := range names {
			fmt.Fprintln(s.out, n)
		}
	case `\stats`:
		st, err := s.cli.Stats(ctx)
		if err != nil {
			return false, err
		}
		return false, printYAML(s.out, st)
	case `\explain`:
		sql := strings.TrimSpace(strings.TrimPrefix(line, cmd))
		if sql == "" {
			return false, fmt.Errorf(`usage: \explain <sql>`)
		}
		plan, err := s.cli.Explain(ctx, sql)
		if err != nil {
			return false, err
		}
		return false, printYAML(s.out, plan)
	case `\di`:
		if len(args) != 1 {
			return false, fmt.Errorf(`usage: \di <table>`)
		}
		idx, err := s.cli.ListIndexes(ctx, args[0])
		if err != nil {
			return false, err
		}
		return false, printYAML(s.out, idx)
	case `\index`:
		if len(args) != 2 {
			return false, fmt.Errorf(`usage: \index <table> <column>`)
		}
		if err := s.cli.CreateIndex(ctx, args[0], args[1], "HASH"); err != nil {
			return false, err
		}
		fmt.Fprintf(s.out, "index on %s.%s created\n", args[0], args[1])
	default:
		return false, fmt.Errorf("unknown command: %s", cmd)
	}
	return false, nil
}

func isMetaCommand(line string) bool {
	line = strings.TrimSpace(line)
	return strings.HasPrefix(line, `\`) || line == "quit" || line == "exit"
}

func (s *session) repl(rl *readline.Instance) {
	var buf strings.Builder
	for {
		line, err := rl.Readline()
		if err == readline.ErrInterrupt {
			// Ctrl+C clears the pending statement.
			if buf.Len() > 0 {
				buf.Reset()
				rl.SetPrompt(prompt)
				continue
			}
			fmt.Fprintln(s.out, "^C")
			continue
		}
		if err != nil {
			fmt.Fprintln(s.out)
			return
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if buf.Len() == 0 && isMetaCommand(line) {
			quit, err := s.meta(line)
			if err != nil {
				fmt.Fprintf(s.out, "error: %v\n", err)
			}
			if quit {
				return
			}
			continue
		}

		if buf.Len() > 0 {
			buf.WriteByte('\n')
		}
		buf.WriteString(line)
		if !statementComplete(buf.String()) {
			rl.SetPrompt(contPrompt)
			continue
		}

		stmt := strings.TrimSpace(buf.String())
		buf.Reset()
		rl.SetPrompt(prompt)

		_ = s.hist.Append(stmt)
		_ = rl.SaveHistory(compactOneLine(stmt))

		if err := s.exec(stmt); err != nil {
			fmt.Fprintf(s.out, "error: %v\n", err)
		}
	}
}

func main() {
	var (
		cfgPath    = flag.String("config", "", "config file (server.addr is used when -addr is empty)")
		addr       = flag.String("addr", "", "server address")
		db         = flag.String("db", "", "database to use (default: the server's default database)")
		timeout    = flag.Duration("timeout", 10*time.Second, "dial and per-request timeout")
		histPath   = flag.String("history", defaultHistoryPath(), "history file path")
		histMax    = flag.Int("history-max", 2000, "max history lines loaded into memory")
		oneShotSQL = flag.String("c", "", "execute one statement and exit")
		scriptPath = flag.String("f", "", "execute a ';'-separated script file and exit")
	)
	flag.Parse()

	if *addr == "" {
		cfg, err := config.LoadConfig(*cfgPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "config: %v\n", err)
			os.Exit(1)
		}
		*addr = cfg.Server.Addr
	}

	cli, err := sqlclient.Dial(*addr, *timeout)
	if err != nil {
		fmt.Fprintf(os.Stderr, "dial: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = cli.Close() }()
	cli.Use(*db)

	s := &session{cli: cli, out: os.Stdout, hist: NewHistory(*histPath), timeout: *timeout}

	switch {
	case strings.TrimSpace(*oneShotSQL) != "":
		if err := s.exec(*oneShotSQL); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		return
	case *scriptPath != "":
		text, err := os.ReadFile(*scriptPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "read script: %v\n", err)
			os.Exit(1)
		}
		ok, err := s.script(string(text))
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		if !ok {
			os.Exit(2)
		}
		return
	}

	_ = s.hist.Load(*histMax)
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          prompt,
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "readline: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = rl.Close() }()

	// preload history so the up arrow works immediately
	for _, line := range s.hist.Lines() {
		_ = rl.SaveHistory(line)
	}

	fmt.Fprintf(s.out, "connected to %s\n", *addr)
	fmt.Fprintln(s.out, `type \help for help`)
	s.repl(rl)
}
