package sheets

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/heshamhussin961-design/family-tree/modules/family/domain/entities/grid"
)

// ReadCSV reads a CSV export. Rows may have different widths and a UTF-8 BOM
// is skipped. Blank lines are kept as empty rows so row numbers match the
// sheet the file was exported from.
func ReadCSV(r io.Reader, name string) (grid.Grid, error) {
	br := stripUTF8BOM(bufio.NewReader(r))
	cr := csv.NewReader(br)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	var rows [][]string
	next := 1
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return grid.Grid{}, fmt.Errorf("read csv: %w", err)
		}
		line, _ := cr.FieldPos(0)
		for ; next < line; next++ {
			rows = append(rows, nil)
		}
		rows = append(rows, rec)
		next = line + 1
		for _, f := range rec {
			next += strings.Count(f, "\n")
		}
	}
	return grid.FromRows(name, rows), nil
}

func stripUTF8BOM(r *bufio.Reader) *bufio.Reader {
	b, err := r.Peek(3)
	if err == nil && len(b) == 3 && b[0] == 0xEF && b[1] == 0xBB && b[2] == 0xBF {
		_, _ = r.Discard(3)
	}
	return r
}
