package member

import (
	"context"
	"errors"
)

var (
	ErrNotFound  = errors.New("member not found")
	ErrDuplicate = errors.New("member already exists")
	ErrNoParent  = errors.New("parent member does not exist")
)

type Stats struct {
	Total       int64 `json:"total"`
	Living      int64 `json:"living"`
	Deceased    int64 `json:"deceased"`
	Generations int64 `json:"generations"`
	Branches    int64 `json:"branches"`
}

type Repository interface {
	GetByID(ctx context.Context, id int64) (Member, error)
	// FindByNameBranch is the import dedup lookup. It returns ErrNotFound when absent.
	FindByNameBranch(ctx context.Context, fullName, branchName string) (Member, error)
	FindByName(ctx context.Context, fullName string) ([]Member, error)
	Create(ctx context.Context, m Member) (Member, error)
	// LinkParent sets the parent only while it is still null and reports whether
	// a row changed.
	LinkParent(ctx context.Context, childID, parentID int64) (bool, error)

	Lineage(ctx context.Context, id int64) ([]Member, error)
	Children(ctx context.Context, id int64) ([]Member, error)
	Roots(ctx context.Context, limit int) ([]Member, error)
	Search(ctx context.Context, q string, limit int) ([]Member, error)
	Stats(ctx context.Context) (Stats, error)
}
