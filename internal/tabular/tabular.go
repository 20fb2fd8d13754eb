// Package tabular parses delimited text into a typed row-major grid. The
// first pass is standard quoted/escaped CSV; the second coerces each cell
// through the literal suffix rules plus a currency prefix.
package tabular

import (
	"encoding/csv"
	"fmt"
	"strings"

	"github.com/zclconf/go-cty/cty"

	"github.com/vk/spritegrid/internal/literal"
)

// Options configures a parse.
type Options struct {
	// Transpose converts the row-major grid to column-major to match the
	// consumer's expected orientation.
	Transpose bool
	// Fill pads short rows. Zero value (cty.NilVal) pads with null.
	Fill cty.Value
}

// Table is a dense grid of coerced cells. After parsing, every row has the
// same length.
type Table struct {
	Cells [][]cty.Value
}

// Parse reads CSV text into a typed grid.
func Parse(text string, opts Options) (*Table, error) {
	reader := csv.NewReader(strings.NewReader(text))
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading tabular data: %w", err)
	}

	fill := opts.Fill
	if fill == cty.NilVal {
		fill = literal.Nil
	}

	width := 0
	for _, rec := range records {
		if len(rec) > width {
			width = len(rec)
		}
	}

	cells := make([][]cty.Value, len(records))
	for r, rec := range records {
		row := make([]cty.Value, width)
		for c := 0; c < width; c++ {
			if c < len(rec) {
				row[c] = Coerce(rec[c])
			} else {
				row[c] = fill
			}
		}
		cells[r] = row
	}

	t := &Table{Cells: cells}
	if opts.Transpose {
		t = t.transpose()
	}
	return t, nil
}

// Coerce converts one raw cell to its typed value: numbers (including
// currency-prefixed, percent- and degree-suffixed forms), booleans,
// nil/null to absent, everything else kept as a string.
func Coerce(cell string) cty.Value {
	tok := strings.TrimSpace(cell)
	switch tok {
	case "nil", "null":
		return literal.Nil
	case "true":
		return cty.True
	case "false":
		return cty.False
	}
	if body, ok := strings.CutPrefix(tok, "$"); ok {
		if n, ok := literal.Number(body); ok {
			return cty.NumberFloatVal(n)
		}
	}
	if n, ok := literal.Number(tok); ok {
		return cty.NumberFloatVal(n)
	}
	return cty.StringVal(cell)
}

// Value renders the grid as a tuple of row tuples.
func (t *Table) Value() cty.Value {
	rows := make([]cty.Value, len(t.Cells))
	for i, row := range t.Cells {
		if len(row) == 0 {
			rows[i] = cty.EmptyTupleVal
			continue
		}
		rows[i] = cty.TupleVal(row)
	}
	if len(rows) == 0 {
		return cty.EmptyTupleVal
	}
	return cty.TupleVal(rows)
}

func (t *Table) transpose() *Table {
	if len(t.Cells) == 0 {
		return t
	}
	width := len(t.Cells[0])
	out := make([][]cty.Value, width)
	for c := 0; c < width; c++ {
		col := make([]cty.Value, len(t.Cells))
		for r := range t.Cells {
			col[r] = t.Cells[r][c]
		}
		out[c] = col
	}
	return &Table{Cells: out}
}
