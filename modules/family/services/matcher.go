package services

import (
	"context"
	"errors"
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/heshamhussin961-design/family-tree/modules/family/domain/entities/grid"
	"github.com/heshamhussin961-design/family-tree/modules/family/domain/familycode"
	"github.com/heshamhussin961-design/family-tree/modules/family/domain/namefilter"
)

const DefaultRowWindow = 10

// CandidateRecord is a matched (name, code) pair ready for the linker.
type CandidateRecord struct {
	FullName   string
	Code       familycode.Code
	BranchName string
	// ParentCode is zero for roots.
	ParentCode familycode.Code
	Row        int
	Col        int
}

func (r CandidateRecord) HasParent() bool {
	return !r.ParentCode.IsZero()
}

// MatchStats counts distinct codes except CodeCells and DuplicateCells, which count cells.
type MatchStats struct {
	CodeCells      int `json:"code_cells"`
	CodesFound     int `json:"codes_found"`
	Matched        int `json:"matched"`
	Dropped        int `json:"dropped"`
	DuplicateCells int `json:"duplicate_cells"`
	ParseSkips     int `json:"parse_skips"`
	NameCells      int `json:"name_cells"`
}

type UnmatchedCode struct {
	Code string `json:"code"`
	Row  int    `json:"row"`
	Col  int    `json:"col"`
}

type MatchResult struct {
	Records   []CandidateRecord
	Stats     MatchStats
	Unmatched []UnmatchedCode
}

type position struct {
	row, col int
}

// Matcher pairs every family code on a sheet with the nearest name.
type Matcher struct {
	window      int
	minSegments int
}

func NewMatcher(window, minSegments int) *Matcher {
	if window < 0 {
		window = DefaultRowWindow
	}
	if minSegments < 1 {
		minSegments = familycode.DefaultMinSegments
	}
	return &Matcher{window: window, minSegments: minSegments}
}

func (m *Matcher) Window() int { return m.window }

// Match never fails; malformed cells only shrink the result.
func (m *Matcher) Match(ctx context.Context, g grid.Grid, branch string) MatchResult {
	var (
		stats     MatchStats
		order     []string
		codes     = map[string]familycode.Code{}
		positions = map[string][]position{}
		names     = map[int][]string{}
	)

	for _, cell := range g.Cells() {
		code, err := familycode.Normalize(cell.Value, familycode.WithMinSegments(m.minSegments))
		switch {
		case err == nil:
			stats.CodeCells++
			key := code.String()
			if _, seen := codes[key]; !seen {
				codes[key] = code
				order = append(order, key)
			}
			positions[key] = append(positions[key], position{row: cell.Row, col: cell.Col})
			continue
		case errors.Is(err, familycode.ErrAllZero):
			logWithFields(ctx, logrus.DebugLevel, "family.match.all_zero_code", logrus.Fields{
				"sheet": g.Sheet,
				"row":   cell.Row,
				"col":   cell.Col,
				"value": cell.Value,
			})
		}

		if namefilter.LooksLikeName(cell.Value) {
			stats.NameCells++
			names[cell.Row] = append(names[cell.Row], namefilter.Clean(cell.Value))
			continue
		}
		stats.ParseSkips++
	}
	stats.CodesFound = len(order)

	records := make([]CandidateRecord, 0, len(order))
	var unmatched []UnmatchedCode
	for _, key := range order {
		code := codes[key]
		matched := false
		for _, pos := range positions[key] {
			if matched {
				stats.DuplicateCells++
				continue
			}
			name, ok := m.nearestName(names, pos.row)
			if !ok {
				continue
			}
			matched = true
			rec := CandidateRecord{
				FullName:   name,
				Code:       code,
				BranchName: branch,
				Row:        pos.row,
				Col:        pos.col,
			}
			if parent, ok := code.Parent(); ok {
				rec.ParentCode = parent
			}
			records = append(records, rec)
		}
		if matched {
			stats.Matched++
			continue
		}
		stats.Dropped++
		first := positions[key][0]
		unmatched = append(unmatched, UnmatchedCode{Code: key, Row: first.row, Col: first.col})
		logWithFields(ctx, logrus.WarnLevel, "family.match.no_name", logrus.Fields{
			"sheet":  g.Sheet,
			"code":   key,
			"row":    first.row,
			"col":    first.col,
			"window": m.window,
		})
	}

	sort.SliceStable(records, func(i, j int) bool {
		return records[i].Code.Depth() < records[j].Code.Depth()
	})

	recordCells("code", stats.CodeCells)
	recordCells("name", stats.NameCells)
	recordCells("skipped", stats.ParseSkips)
	recordCodes(stats)

	return MatchResult{Records: records, Stats: stats, Unmatched: unmatched}
}

// nearestName scans outward from row; at equal distance the smaller row wins.
func (m *Matcher) nearestName(names map[int][]string, row int) (string, bool) {
	for d := 0; d <= m.window; d++ {
		if found, ok := names[row-d]; ok && len(found) > 0 {
			return found[0], true
		}
		if d == 0 {
			continue
		}
		if found, ok := names[row+d]; ok && len(found) > 0 {
			return found[0], true
		}
	}
	return "", false
}
