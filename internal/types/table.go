package types

import "math"

// Table is a rectangular labeled matrix: len(Cells) == len(Index) and every
// row has len(Columns) cells. Cells may contain NaN where a sampled point had
// no value for a variable; encoders render NaN as an empty field.
type Table struct {
	Index   []string    `json:"index"`
	Columns []string    `json:"columns"`
	Cells   [][]float64 `json:"cells"`
}

// NewTable allocates a zero-filled table with the given labels.
func NewTable(index, columns []string) Table {
	cells := make([][]float64, len(index))
	for i := range cells {
		cells[i] = make([]float64, len(columns))
	}
	return Table{Index: index, Columns: columns, Cells: cells}
}

// Rows returns the number of rows in the table.
func (t Table) Rows() int { return len(t.Index) }

// Cols returns the number of columns in the table.
func (t Table) Cols() int { return len(t.Columns) }

// At returns the cell at row i, column j.
func (t Table) At(i, j int) float64 { return t.Cells[i][j] }

// Transpose returns a new table with rows and columns swapped. Applying it
// twice yields a table equal to the original; no labels or cells are lost.
func (t Table) Transpose() Table {
	out := NewTable(append([]string(nil), t.Columns...), append([]string(nil), t.Index...))
	for i := range t.Cells {
		for j, v := range t.Cells[i] {
			out.Cells[j][i] = v
		}
	}
	return out
}

// Equal reports whether two tables have identical labels and cells.
// NaN cells compare equal to NaN cells so round-trip checks hold for
// tables with missing values.
func (t Table) Equal(other Table) bool {
	if len(t.Index) != len(other.Index) || len(t.Columns) != len(other.Columns) {
		return false
	}
	for i, label := range t.Index {
		if other.Index[i] != label {
			return false
		}
	}
	for j, label := range t.Columns {
		if other.Columns[j] != label {
			return false
		}
	}
	for i := range t.Cells {
		for j, v := range t.Cells[i] {
			w := other.Cells[i][j]
			if math.IsNaN(v) && math.IsNaN(w) {
				continue
			}
			if v != w {
				return false
			}
		}
	}
	return true
}
