package main

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"time"

	_ "github.com/go-sql-driver/mysql"
)

func main() {
	dsn := os.Getenv("MYSQL_DSN")
	if dsn == "" {
		dsn = "root:root@tcp(localhost:3306)/deptdesk?parseTime=true"
	}

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		panic(err)
	}
	defer db.Close()

	// Wait for DB to be ready
	for i := 0; i < 30; i++ {
		if err := db.Ping(); err == nil {
			break
		}
		slog.Info("Waiting for database...", "attempt", i+1)
		time.Sleep(1 * time.Second)
	}

	slog.Info("Connected to MySQL. Creating tables...")

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS departments (
			id BIGINT PRIMARY KEY,
			name VARCHAR(255) NOT NULL
		)
	`)
	if err != nil {
		panic(err)
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS employees (
			id BIGINT AUTO_INCREMENT PRIMARY KEY,
			name VARCHAR(255) NOT NULL,
			role VARCHAR(255),
			department_id BIGINT NOT NULL,
			hired_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			INDEX idx_employees_department (department_id)
		)
	`)
	if err != nil {
		panic(err)
	}

	departments := map[int64]string{
		10: "Accounting",
		20: "Research",
		30: "Sales",
		40: "Operations",
		50: "Engineering",
		90: "Executive",
	}
	for id, name := range departments {
		if _, err := db.Exec("INSERT IGNORE INTO departments (id, name) VALUES (?, ?)", id, name); err != nil {
			panic(err)
		}
	}

	type employee struct {
		name string
		role string
		dept int64
	}
	employees := []employee{
		{"Clara Oswald", "Clerk", 10},
		{"Marcus Chen", "Analyst", 20},
		{"Priya Nair", "Analyst", 20},
		{"Jonas Weber", "Researcher", 20},
		{"Aisha Bello", "Salesperson", 30},
		{"Tom Hardy", "Salesperson", 30},
		{"Elena Petrova", "Engineer", 50},
		{"Sam Okafor", "President", 90},
		{"Dana Ricci", "Vice President", 90},
	}

	var count int
	if err := db.QueryRow("SELECT COUNT(*) FROM employees").Scan(&count); err != nil {
		panic(err)
	}
	if count > 0 {
		slog.Info("Employees already seeded, skipping inserts", "count", count)
		return
	}

	for _, e := range employees {
		_, err := db.Exec(
			"INSERT INTO employees (name, role, department_id) VALUES (?, ?, ?)",
			e.name, e.role, e.dept,
		)
		if err != nil {
			panic(err)
		}
	}

	slog.Info("Seed complete", "departments", len(departments), "employees", len(employees))
	fmt.Println("Try: curl http://localhost:8080/90")
}
