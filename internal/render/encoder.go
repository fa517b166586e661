package render

import "io"

// RowEncoder defines a common interface for the output formats (HTML, JSON,
// CSV, Excel, PDF). Encoders are pure formatters: they never touch anything
// but the writer they were constructed with and never mutate their input.
type RowEncoder interface {
	// WriteHeader writes the column header from the metadata, in metadata
	// order. Called exactly once before any rows.
	WriteHeader(columns []string) error

	// WriteRow writes a single row of data, one cell per value in column
	// order. Missing/null values render as an empty cell.
	WriteRow(values []interface{}) error

	// Flush ensures all buffered data is written to the underlying writer.
	Flush() error

	// Error returns the first error that occurred during encoding, if any.
	Error() error

	// Close flushes the encoder and releases any resources. For table
	// formats this also writes the footer.
	io.Closer
}

// New returns the encoder for the requested format, defaulting to HTML.
func New(format string, w io.Writer) RowEncoder {
	switch format {
	case "json":
		return NewJSONEncoder(w)
	case "csv":
		return NewCSVEncoder(w)
	case "excel", "xlsx":
		return NewExcelEncoder(w)
	case "pdf":
		return NewPDFEncoder(w)
	default:
		return NewHTMLEncoder(w)
	}
}

// ContentType returns the MIME type matching the encoder New would pick.
func ContentType(format string) string {
	switch format {
	case "json":
		return "application/json; charset=utf-8"
	case "csv":
		return "text/csv; charset=utf-8"
	case "excel", "xlsx":
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case "pdf":
		return "application/pdf"
	default:
		return "text/html; charset=utf-8"
	}
}
