package member

import (
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

// ExtractedRecord is one row returned by the vision extraction collaborator.
type ExtractedRecord struct {
	FullName   string `json:"full_name" validate:"required,min=2,max=120"`
	ParentName string `json:"parent_name" validate:"omitempty,max=120"`
	BranchName string `json:"branch_name" validate:"omitempty,max=120"`
}

var validate = sync.OnceValue(func() *validator.Validate {
	return validator.New(validator.WithRequiredStructEnabled())
})

// Normalize trims every field.
func (r ExtractedRecord) Normalize() ExtractedRecord {
	return ExtractedRecord{
		FullName:   strings.TrimSpace(r.FullName),
		ParentName: strings.TrimSpace(r.ParentName),
		BranchName: strings.TrimSpace(r.BranchName),
	}
}

func (r ExtractedRecord) Validate() error {
	return validate().Struct(r)
}
