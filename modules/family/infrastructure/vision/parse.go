package vision

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/heshamhussin961-design/family-tree/modules/family/domain/aggregates/member"
)

var ErrNotJSONArray = errors.New("model response is not a JSON array")

type rawRecord struct {
	FullName   *string `json:"full_name"`
	ParentName *string `json:"parent_name"`
	BranchName *string `json:"branch_name"`
}

// ParseRecords decodes a model reply. Markdown code fences around the array
// are tolerated and null fields become empty strings.
func ParseRecords(raw string) ([]member.ExtractedRecord, error) {
	body := stripFences(raw)
	if !strings.HasPrefix(body, "[") {
		return nil, ErrNotJSONArray
	}
	var rows []rawRecord
	if err := json.Unmarshal([]byte(body), &rows); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotJSONArray, err)
	}
	out := make([]member.ExtractedRecord, 0, len(rows))
	for _, r := range rows {
		out = append(out, member.ExtractedRecord{
			FullName:   deref(r.FullName),
			ParentName: deref(r.ParentName),
			BranchName: deref(r.BranchName),
		}.Normalize())
	}
	return out, nil
}

func stripFences(raw string) string {
	s := strings.TrimSpace(raw)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		// drop the language tag line
		s = s[nl+1:]
	}
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
