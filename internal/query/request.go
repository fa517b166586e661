package query

import (
	"fmt"
	"strings"
)

// Request is a single parameterized statement execution.
type Request struct {
	// SQL is the statement text with "?" placeholders.
	SQL string
	// Args are the bind parameters, one per placeholder.
	Args []any
}

// Validate checks that the bind parameter count matches the placeholder count.
func (r Request) Validate() error {
	placeholders := strings.Count(r.SQL, "?")
	if placeholders != len(r.Args) {
		return fmt.Errorf("statement has %d placeholders but %d bind parameters were supplied", placeholders, len(r.Args))
	}
	return nil
}

// Column is one entry of the result's column metadata.
type Column struct {
	Name    string
	Ordinal int
}

// Result is a tabular query result. Every row holds exactly len(Columns)
// values. RowCounts is only populated by batch executions and carries one
// affected-row count per input bind set, in input order.
type Result struct {
	Columns   []Column
	Rows      [][]any
	RowCounts []int64
}

// ColumnNames returns the column names in metadata order.
func (r *Result) ColumnNames() []string {
	names := make([]string, len(r.Columns))
	for i, c := range r.Columns {
		names[i] = c.Name
	}
	return names
}
