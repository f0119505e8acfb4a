package services

import (
	"context"
	"errors"
	"sort"
	"strings"

	"github.com/lithammer/fuzzysearch/fuzzy"

	"github.com/heshamhussin961-design/family-tree/modules/family/domain/aggregates/member"
)

const DefaultSearchLimit = 20

// TreeService is the read path over an imported tree.
type TreeService struct {
	store Store
}

func NewTreeService(store Store) *TreeService {
	return &TreeService{store: store}
}

// Lineage returns the ancestors of id, root first, ending with the member itself.
func (s *TreeService) Lineage(ctx context.Context, id int64) ([]member.Member, error) {
	chain, err := s.store.Members().Lineage(ctx, id)
	if err != nil {
		return nil, mapNotFound(err)
	}
	if len(chain) == 0 {
		return nil, newServiceError(CodeNotFound, "member not found", member.ErrNotFound)
	}
	return chain, nil
}

func (s *TreeService) Children(ctx context.Context, id int64) ([]member.Member, error) {
	if _, err := s.store.Members().GetByID(ctx, id); err != nil {
		return nil, mapNotFound(err)
	}
	return s.store.Members().Children(ctx, id)
}

func (s *TreeService) Roots(ctx context.Context, limit int) ([]member.Member, error) {
	return s.store.Members().Roots(ctx, limit)
}

func (s *TreeService) Stats(ctx context.Context) (member.Stats, error) {
	return s.store.Members().Stats(ctx)
}

// Search ranks members whose names fuzzily contain q, closest first.
func (s *TreeService) Search(ctx context.Context, q string, limit int) ([]member.Member, error) {
	q = strings.TrimSpace(q)
	if q == "" {
		return nil, newServiceError(CodeInvalidInput, "query is required", nil)
	}
	if limit <= 0 {
		limit = DefaultSearchLimit
	}

	candidates, err := s.store.Members().Search(ctx, "", 0)
	if err != nil {
		return nil, err
	}
	names := make([]string, len(candidates))
	for i, m := range candidates {
		names[i] = m.FullName()
	}

	ranks := fuzzy.RankFindNormalizedFold(q, names)
	sort.Stable(ranks)

	out := make([]member.Member, 0, min(limit, len(ranks)))
	for _, r := range ranks {
		if len(out) == limit {
			break
		}
		out = append(out, candidates[r.OriginalIndex])
	}
	return out, nil
}

func mapNotFound(err error) error {
	if errors.Is(err, member.ErrNotFound) {
		return newServiceError(CodeNotFound, "member not found", err)
	}
	return err
}
