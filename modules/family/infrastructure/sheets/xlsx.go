package sheets

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/heshamhussin961-design/family-tree/modules/family/domain/entities/grid"
)

// ReadXLSX reads the formatted text of one worksheet. Merged cells keep their
// value in the top-left cell only.
func ReadXLSX(r io.Reader, sheet string) (grid.Grid, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return grid.Grid{}, fmt.Errorf("open workbook: %w", err)
	}
	defer func() { _ = f.Close() }()

	name, err := selectSheet(f.GetSheetList(), sheet)
	if err != nil {
		return grid.Grid{}, err
	}
	rows, err := f.GetRows(name)
	if err != nil {
		return grid.Grid{}, fmt.Errorf("read sheet %q: %w", name, err)
	}
	return grid.FromRows(name, rows), nil
}

// SheetNames lists the worksheets of a workbook in order.
func SheetNames(r io.Reader) ([]string, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer func() { _ = f.Close() }()
	return f.GetSheetList(), nil
}
