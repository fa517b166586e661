package render

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
)

// ExcelEncoder implements RowEncoder for Excel (.xlsx) downloads.
// It uses excelize.StreamWriter so large departments do not balloon memory.
type ExcelEncoder struct {
	f            *excelize.File
	sw           *excelize.StreamWriter
	w            io.Writer
	sheetName    string
	rowIdx       int
	err          error
	headerLength int
}

// NewExcelEncoder creates a new Excel encoder writing a single sheet.
func NewExcelEncoder(w io.Writer) *ExcelEncoder {
	f := excelize.NewFile()
	sheetName := "Sheet1"
	sw, err := f.NewStreamWriter(sheetName)
	if err != nil {
		return &ExcelEncoder{err: err}
	}

	return &ExcelEncoder{
		f:         f,
		sw:        sw,
		w:         w,
		sheetName: sheetName,
		rowIdx:    1,
	}
}

func (e *ExcelEncoder) WriteHeader(columns []string) error {
	if e.err != nil {
		return e.err
	}

	e.headerLength = len(columns)
	row := make([]interface{}, len(columns))
	for i, col := range columns {
		row[i] = col
	}

	cell, err := excelize.CoordinatesToCellName(1, e.rowIdx)
	if err != nil {
		e.err = err
		return err
	}

	if err := e.sw.SetRow(cell, row); err != nil {
		e.err = err
		return err
	}

	e.rowIdx++
	return nil
}

func (e *ExcelEncoder) WriteRow(values []interface{}) error {
	if e.err != nil {
		return e.err
	}

	row := make([]interface{}, len(values))
	for i, v := range values {
		var s string
		switch val := v.(type) {
		case []byte:
			s = string(val)
		case string:
			s = val
		case nil:
			s = ""
		default:
			// Excelize handles numbers and times natively.
			row[i] = v
			continue
		}

		// Formula Injection Mitigation
		if len(s) > 0 {
			first := s[0]
			if first == '=' || first == '+' || first == '-' || first == '@' {
				s = "'" + s
			}
		}
		row[i] = s
	}

	cell, err := excelize.CoordinatesToCellName(1, e.rowIdx)
	if err != nil {
		e.err = err
		return err
	}

	if err := e.sw.SetRow(cell, row); err != nil {
		e.err = err
		return err
	}

	e.rowIdx++

	// Excel hard limit: 1,048,576 rows
	if e.rowIdx > 1048576 {
		e.err = fmt.Errorf("excel row limit exceeded (1,048,576 rows)")
		return e.err
	}

	return nil
}

func (e *ExcelEncoder) Flush() error {
	if e.err != nil {
		return e.err
	}
	if err := e.sw.Flush(); err != nil {
		e.err = err
		return err
	}
	return nil
}

func (e *ExcelEncoder) Error() error {
	return e.err
}

// Close flushes the stream writer and writes the workbook to the output.
func (e *ExcelEncoder) Close() error {
	if err := e.Flush(); err != nil {
		return err
	}
	if err := e.f.Write(e.w); err != nil {
		e.err = err
		return err
	}
	return e.f.Close()
}
