package render

import (
	"encoding/json"
	"fmt"
	"io"
)

// JSONEncoder implements RowEncoder for JSON Lines output.
// Each row becomes a JSON object keyed by column name, on its own line.
type JSONEncoder struct {
	w       io.Writer
	columns []string
	err     error
}

// NewJSONEncoder creates a new JSON Lines encoder.
func NewJSONEncoder(w io.Writer) *JSONEncoder {
	return &JSONEncoder{w: w}
}

// WriteHeader captures the column names to be used as JSON keys.
// JSON has no header row, but the names become object properties.
func (e *JSONEncoder) WriteHeader(columns []string) error {
	e.columns = columns
	return nil
}

func (e *JSONEncoder) WriteRow(values []interface{}) error {
	if e.err != nil {
		return e.err
	}

	rowMap := make(map[string]interface{}, len(values))
	for i, v := range values {
		colName := fmt.Sprintf("column_%d", i)
		if i < len(e.columns) {
			colName = e.columns[i]
		}

		// Drivers hand back []byte for text columns; surface them as strings.
		if b, ok := v.([]byte); ok {
			rowMap[colName] = string(b)
		} else {
			rowMap[colName] = v
		}
	}

	data, err := json.Marshal(rowMap)
	if err != nil {
		e.err = err
		return err
	}

	if _, err := e.w.Write(data); err != nil {
		e.err = err
		return err
	}
	if _, err := e.w.Write([]byte("\n")); err != nil {
		e.err = err
		return err
	}
	return nil
}

func (e *JSONEncoder) Flush() error {
	return nil
}

func (e *JSONEncoder) Error() error {
	return e.err
}

func (e *JSONEncoder) Close() error {
	return e.Flush()
}
