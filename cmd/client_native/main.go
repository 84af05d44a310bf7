package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/tuannm99/novardb/sqlclient"
)

// A non-interactive smoke client: seeds a demo database over the wire and
// prints a join, an aggregate and the plan of an indexed lookup.
func main() {
	addr := flag.String("addr", "127.0.0.1:7070", "server address")
	dbName := flag.String("db", "demo", "database to create and use")
	flag.Parse()

	if err := run(*addr, *dbName); err != nil {
		fmt.Fprintf(os.Stderr, "client_native: %v\n", err)
		os.Exit(1)
	}
}

func run(addr, dbName string) error {
	c, err := sqlclient.Dial(addr, 2*time.Second)
	if err != nil {
		return err
	}
	defer func() { _ = c.Close() }()
	c.SetRWTimeout(5 * time.Second)

	ctx := context.Background()
	if _, err := c.CreateDatabase(ctx, dbName); err != nil {
		return err
	}
	c.Use(dbName)

	results, err := c.Batch(ctx, []string{
		"CREATE TABLE IF NOT EXISTS users (id INT PRIMARY KEY, name TEXT NOT NULL, city TEXT)",
		"CREATE TABLE IF NOT EXISTS orders (id INT PRIMARY KEY, user_id INT, total DECIMAL)",
		"INSERT INTO users VALUES (1, 'an', 'hanoi')",
		"INSERT INTO users VALUES (2, 'binh', 'hue')",
		"INSERT INTO orders VALUES (10, 1, 12.5)",
		"INSERT INTO orders VALUES (11, 1, 3)",
		"INSERT INTO orders VALUES (12, 2, 7.25)",
	})
	if err != nil {
		return err
	}
	for _, r := range results {
		if !r.Success {
			// rerunning the demo hits duplicate keys; that is fine
			fmt.Println("skip:", r.Message)
		}
	}

	for _, sql := range []string{
		"SELECT u.name, o.total FROM users u JOIN orders o ON u.id = o.user_id ORDER BY total DESC",
		"SELECT user_id, COUNT(*), SUM(total) FROM orders GROUP BY user_id",
	} {
		res, err := c.Exec(sql)
		if err != nil {
			return err
		}
		fmt.Println(sql)
		fmt.Println(res.Columns)
		for _, row := range res.Rows {
			fmt.Println(row)
		}
	}

	plan, err := c.Explain(ctx, "SELECT * FROM users WHERE id = 2")
	if err != nil {
		return err
	}
	for _, s := range plan.Steps {
		fmt.Printf("%s %s %s\n", s.Operation, s.Table, s.Detail)
	}
	return nil
}
