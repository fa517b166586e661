package render

import (
	"bufio"
	"fmt"
	"html"
	"io"
	"strconv"
	"time"
)

// HTMLEncoder implements RowEncoder for an HTML table. Cell values are
// escaped; nil values become an empty cell rather than a fault.
type HTMLEncoder struct {
	buf    *bufio.Writer
	err    error
	opened bool
	closed bool
}

// NewHTMLEncoder creates an HTML table encoder writing to w.
func NewHTMLEncoder(w io.Writer) *HTMLEncoder {
	return &HTMLEncoder{buf: bufio.NewWriter(w)}
}

func (e *HTMLEncoder) WriteHeader(columns []string) error {
	if e.err != nil {
		return e.err
	}
	e.opened = true
	e.writeString("<table border=\"1\">\n<tr>")
	for _, col := range columns {
		e.writeString("<th>")
		e.writeString(html.EscapeString(col))
		e.writeString("</th>")
	}
	e.writeString("</tr>\n")
	return e.err
}

func (e *HTMLEncoder) WriteRow(values []interface{}) error {
	if e.err != nil {
		return e.err
	}
	e.writeString("<tr>")
	for _, v := range values {
		e.writeString("<td>")
		if v != nil {
			e.writeString(html.EscapeString(cellString(v)))
		}
		e.writeString("</td>")
	}
	e.writeString("</tr>\n")
	return e.err
}

func (e *HTMLEncoder) Flush() error {
	if e.err != nil {
		return e.err
	}
	return e.buf.Flush()
}

func (e *HTMLEncoder) Error() error {
	return e.err
}

// Close writes the table footer (once) and flushes.
func (e *HTMLEncoder) Close() error {
	if e.opened && !e.closed {
		e.closed = true
		e.writeString("</table>\n")
	}
	return e.Flush()
}

func (e *HTMLEncoder) writeString(s string) {
	if e.err != nil {
		return
	}
	_, e.err = e.buf.WriteString(s)
}

// cellString renders a value for HTML and PDF cells. Unlike the CSV
// conversion it has no NULL marker and no formula-injection guard.
func cellString(val interface{}) string {
	switch v := val.(type) {
	case nil:
		return ""
	case []byte:
		return string(v)
	case string:
		return v
	case time.Time:
		return v.Format("2006-01-02 15:04:05")
	case int64:
		return strconv.FormatInt(v, 10)
	case int:
		return strconv.Itoa(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	default:
		return fmt.Sprint(v)
	}
}
