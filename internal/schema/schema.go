// Package schema bootstraps the tables the service reads and purges.
package schema

import (
	"context"
	"log/slog"

	"dept-desk/internal/dbpool"
)

var statements = []string{
	`CREATE TABLE IF NOT EXISTS departments (
		id BIGINT PRIMARY KEY,
		name VARCHAR(255) NOT NULL
	);`,
	`CREATE TABLE IF NOT EXISTS employees (
		id BIGINT AUTO_INCREMENT PRIMARY KEY,
		name VARCHAR(255) NOT NULL,
		role VARCHAR(255),
		department_id BIGINT NOT NULL,
		hired_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		INDEX idx_employees_department (department_id)
	);`,
}

// Init creates the tables if they do not exist. Statements are idempotent so
// repeated startups are safe.
func Init(ctx context.Context, pool *dbpool.Pool) error {
	conn, err := pool.Acquire(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if rerr := conn.Release(); rerr != nil {
			slog.Warn("Connection release failed", "error", rerr)
		}
	}()

	for _, stmt := range statements {
		if _, err := conn.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
