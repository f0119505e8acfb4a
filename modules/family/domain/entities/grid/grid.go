package grid

import "strings"

// Cell is one non-empty spreadsheet value at a 0-based row and column.
type Cell struct {
	Row   int
	Col   int
	Value string
}

// Grid is the text content of one sheet.
type Grid struct {
	Sheet string
	Rows  [][]string
}

func FromRows(sheet string, rows [][]string) Grid {
	return Grid{Sheet: sheet, Rows: rows}
}

// Cells returns the non-blank cells in row-major order with surrounding
// whitespace removed.
func (g Grid) Cells() []Cell {
	out := make([]Cell, 0, len(g.Rows)*2)
	for r, row := range g.Rows {
		for c, raw := range row {
			v := strings.TrimSpace(raw)
			if v == "" {
				continue
			}
			out = append(out, Cell{Row: r, Col: c, Value: v})
		}
	}
	return out
}

// Sample returns at most n non-blank cells from the top of the sheet.
func (g Grid) Sample(n int) []Cell {
	cells := g.Cells()
	if len(cells) > n {
		cells = cells[:n]
	}
	return cells
}

func (g Grid) Dimensions() (rows, cols int) {
	rows = len(g.Rows)
	for _, row := range g.Rows {
		if len(row) > cols {
			cols = len(row)
		}
	}
	return rows, cols
}
