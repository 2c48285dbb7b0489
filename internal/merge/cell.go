package merge

import (
	"math"
	"strconv"
)

// CellKind identifies which variant of a Cell is populated.
type CellKind uint8

const (
	KindEmpty CellKind = iota
	KindString
	KindNumber
)

// Cell is a single raw spreadsheet value: empty, text, or number.
// Date cells arrive as numbers (their serial form), never pre-formatted.
type Cell struct {
	Kind   CellKind
	Text   string
	Number float64
}

// Row is an ordered sequence of cells. Rows may be ragged.
type Row []Cell

// Table is an ordered sequence of rows with no header interpretation.
type Table []Row

// Empty returns the empty cell.
func Empty() Cell { return Cell{} }

// Text returns a string cell.
func Text(s string) Cell { return Cell{Kind: KindString, Text: s} }

// Number returns a numeric cell.
func Number(f float64) Cell { return Cell{Kind: KindNumber, Number: f} }

// TextRow builds a row of string cells; "" becomes an empty cell.
func TextRow(values ...string) Row {
	row := make(Row, len(values))
	for i, v := range values {
		if v != "" {
			row[i] = Text(v)
		}
	}
	return row
}

// IsEmpty reports whether the cell has no value. An empty string counts as empty.
func (c Cell) IsEmpty() bool {
	switch c.Kind {
	case KindString:
		return c.Text == ""
	case KindNumber:
		return false
	default:
		return true
	}
}

// String coerces the cell to text. Numbers use the shortest decimal form.
func (c Cell) String() string {
	switch c.Kind {
	case KindString:
		return c.Text
	case KindNumber:
		return formatNumber(c.Number)
	default:
		return ""
	}
}

// Value returns the cell as a plain Go value for serializers: nil, string or float64.
func (c Cell) Value() any {
	switch c.Kind {
	case KindString:
		return c.Text
	case KindNumber:
		return c.Number
	default:
		return nil
	}
}

// At returns the cell at index i, or an empty cell when the row is too short.
func (r Row) At(i int) Cell {
	if i < 0 || i >= len(r) {
		return Cell{}
	}
	return r[i]
}

func formatNumber(f float64) string {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "Infinity"
	case math.IsInf(f, -1):
		return "-Infinity"
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}
