// Package sheets turns registry workbooks into grids of cell text.
package sheets

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/heshamhussin961-design/family-tree/modules/family/domain/entities/grid"
)

var (
	ErrLegacyXLS       = errors.New("legacy .xls workbooks are not supported; save the file as .xlsx or .csv")
	ErrUnsupportedType = errors.New("unsupported spreadsheet type")
	ErrSheetNotFound   = errors.New("sheet not found")
)

type Format string

const (
	FormatXLSX Format = "xlsx"
	FormatCSV  Format = "csv"
)

// DetectFormat picks the reader from the file extension.
func DetectFormat(name string) (Format, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".xlsx", ".xlsm":
		return FormatXLSX, nil
	case ".csv":
		return FormatCSV, nil
	case ".xls":
		return "", ErrLegacyXLS
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedType, filepath.Ext(name))
	}
}

// Read loads one sheet of the named workbook. sheet selects by name or by
// 0-based index; empty means the first sheet. CSV files have a single sheet.
func Read(name string, r io.Reader, sheet string) (grid.Grid, error) {
	format, err := DetectFormat(name)
	if err != nil {
		return grid.Grid{}, err
	}
	switch format {
	case FormatCSV:
		return ReadCSV(r, filepath.Base(name))
	default:
		return ReadXLSX(r, sheet)
	}
}

var leadingNoise = regexp.MustCompile(`^[\d\s()]+`)

// InferBranchName derives a branch label from a file name: leading digits,
// spaces and parentheses are dropped ("(3) الفرع الشرقي.xlsx" -> "الفرع الشرقي").
func InferBranchName(path string) string {
	stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	cleaned := strings.TrimSpace(leadingNoise.ReplaceAllString(stem, ""))
	if cleaned == "" {
		return stem
	}
	return cleaned
}

func selectSheet(names []string, sheet string) (string, error) {
	if len(names) == 0 {
		return "", ErrSheetNotFound
	}
	sheet = strings.TrimSpace(sheet)
	if sheet == "" {
		return names[0], nil
	}
	for _, n := range names {
		if n == sheet {
			return n, nil
		}
	}
	if idx, err := strconv.Atoi(sheet); err == nil && idx >= 0 && idx < len(names) {
		return names[idx], nil
	}
	return "", fmt.Errorf("%w: %q (have %s)", ErrSheetNotFound, sheet, strings.Join(names, ", "))
}
