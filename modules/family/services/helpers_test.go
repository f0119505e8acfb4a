package services_test

import (
	"context"
	"errors"

	"github.com/heshamhussin961-design/family-tree/modules/family/domain/aggregates/member"
	"github.com/heshamhussin961-design/family-tree/modules/family/domain/entities/grid"
	"github.com/heshamhussin961-design/family-tree/modules/family/infrastructure/persistence"
)

// sheet builds a grid from a row -> cells map.
func sheet(rows map[int][]string) grid.Grid {
	last := 0
	for r := range rows {
		last = max(last, r)
	}
	out := make([][]string, last+1)
	for r, cells := range rows {
		out[r] = cells
	}
	return grid.FromRows("Sheet1", out)
}

var errInjected = errors.New("injected failure")

// faultyStore wraps a MemoryStore and fails chosen operations.
type faultyStore struct {
	*persistence.MemoryStore
	failCreate map[string]bool
	failLink   map[int64]bool
	commitErr  error
}

func newFaultyStore() *faultyStore {
	return &faultyStore{
		MemoryStore: persistence.NewMemoryStore(),
		failCreate:  map[string]bool{},
		failLink:    map[int64]bool{},
	}
}

func (s *faultyStore) Members() member.Repository {
	return faultyRepo{Repository: s.MemoryStore.Members(), s: s}
}

func (s *faultyStore) InTx(ctx context.Context, fn func(context.Context) error) error {
	if err := s.MemoryStore.InTx(ctx, fn); err != nil {
		return err
	}
	return s.commitErr
}

type faultyRepo struct {
	member.Repository
	s *faultyStore
}

func (r faultyRepo) Create(ctx context.Context, m member.Member) (member.Member, error) {
	if r.s.failCreate[m.FullName()] {
		return member.Member{}, errInjected
	}
	return r.Repository.Create(ctx, m)
}

func (r faultyRepo) LinkParent(ctx context.Context, childID, parentID int64) (bool, error) {
	if r.s.failLink[childID] {
		return false, errInjected
	}
	return r.Repository.LinkParent(ctx, childID, parentID)
}

func parentOf(m member.Member) int64 {
	id, _ := m.ParentID()
	return id
}
