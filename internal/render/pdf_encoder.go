package render

import (
	"io"

	"github.com/go-pdf/fpdf"
)

// PDFEncoder implements RowEncoder for PDF downloads of a department table.
// It lays the result out as a simple grid, one cell per value.
// WARNING: PDF generation is memory intensive and slower than CSV/JSON.
type PDFEncoder struct {
	pdf *fpdf.Fpdf
	w   io.Writer
	err error
}

// NewPDFEncoder creates a new PDF encoder (A4 landscape).
func NewPDFEncoder(w io.Writer) *PDFEncoder {
	pdf := fpdf.New("L", "mm", "A4", "")
	pdf.SetFont("Arial", "", 10)
	pdf.AddPage()
	return &PDFEncoder{
		pdf: pdf,
		w:   w,
	}
}

// WriteHeader writes the table headers across the usable page width.
func (e *PDFEncoder) WriteHeader(columns []string) error {
	if e.err != nil {
		return e.err
	}

	e.pdf.SetFont("Arial", "B", 10)
	colWidth := e.columnWidth(len(columns))
	for _, col := range columns {
		e.pdf.CellFormat(colWidth, 7, col, "1", 0, "C", false, 0, "")
	}
	e.pdf.Ln(-1)
	e.pdf.SetFont("Arial", "", 10)
	return nil
}

// WriteRow writes a single row of data. Nil values become empty cells.
func (e *PDFEncoder) WriteRow(values []interface{}) error {
	if e.err != nil {
		return e.err
	}

	colWidth := e.columnWidth(len(values))
	for _, v := range values {
		e.pdf.CellFormat(colWidth, 7, cellString(v), "1", 0, "L", false, 0, "")
	}
	e.pdf.Ln(-1)
	return nil
}

// columnWidth distributes the usable page width equally across the columns.
func (e *PDFEncoder) columnWidth(n int) float64 {
	pageWidth, _ := e.pdf.GetPageSize()
	left, _, right, _ := e.pdf.GetMargins()
	usable := pageWidth - left - right
	if n == 0 {
		return usable
	}
	return usable / float64(n)
}

// Flush writes the PDF to the underlying writer.
func (e *PDFEncoder) Flush() error {
	if e.err != nil {
		return e.err
	}
	return e.pdf.Output(e.w)
}

// Error returns any stored error.
func (e *PDFEncoder) Error() error {
	return e.err
}

// Close flushes and satisfies io.Closer.
func (e *PDFEncoder) Close() error {
	return e.Flush()
}
