package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"dept-desk/internal/dbpool"
	"dept-desk/internal/query"
)

var version = "dev"

func main() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "DeptDesk Purge %s\n\n", version)
		fmt.Fprintf(os.Stderr, "Deletes all employees of the given departments, one batch\n")
		fmt.Fprintf(os.Stderr, "execution per id, and prints the affected-row count of each.\n\n")
		fmt.Fprintf(os.Stderr, "Usage:\n")
		fmt.Fprintf(os.Stderr, "  deptdesk-purge [flags] <department-id> [<department-id> ...]\n\n")
		fmt.Fprintf(os.Stderr, "Flags:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nEnvironment Variables:\n")
		fmt.Fprintf(os.Stderr, "  MYSQL_DSN    Database connection string (user:pass@tcp(host:3306)/db)\n")
		fmt.Fprintf(os.Stderr, "\nExample:\n")
		fmt.Fprintf(os.Stderr, "  export MYSQL_DSN=\"user:pass@tcp(localhost:3306)/db\"\n")
		fmt.Fprintf(os.Stderr, "  deptdesk-purge 20 30 50\n")
	}

	showVersion := flag.Bool("version", false, "Show version")
	timeout := flag.Duration("timeout", 30*time.Second, "Overall execution timeout")
	flag.Parse()

	if *showVersion {
		fmt.Printf("DeptDesk Purge %s\n", version)
		os.Exit(0)
	}

	_ = godotenv.Load()
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	dsn := os.Getenv("MYSQL_DSN")
	if dsn == "" {
		slog.Error("MYSQL_DSN not set")
		os.Exit(1)
	}

	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	bindSets := make([][]any, 0, flag.NArg())
	ids := make([]int64, 0, flag.NArg())
	for _, arg := range flag.Args() {
		id, err := strconv.ParseInt(arg, 10, 64)
		if err != nil {
			slog.Error("Department id must be a base-10 integer", "arg", arg)
			os.Exit(2)
		}
		ids = append(ids, id)
		bindSets = append(bindSets, []any{id})
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	pool, err := dbpool.Open(ctx, dbpool.Config{
		DSN:            dsn,
		MinConns:       1,
		MaxConns:       1,
		AcquireTimeout: 10 * time.Second,
	})
	if err != nil {
		slog.Error("Failed to establish connection pool", "error", err)
		os.Exit(1)
	}

	exec := query.NewExecutor(pool)
	result, err := exec.ExecuteBatch(ctx, "DELETE FROM employees WHERE department_id = ?", bindSets)
	if err != nil {
		slog.Error("Batch delete failed", "error", err)
		os.Exit(1)
	}

	// One count per input id, in input order. An id with no matching rows
	// reports 0.
	for i, count := range result.RowCounts {
		fmt.Printf("department %d: %d row(s) deleted\n", ids[i], count)
	}

	if err := pool.Drain(ctx); err != nil {
		slog.Warn("Pool drain did not finish cleanly", "error", err)
	}
}
