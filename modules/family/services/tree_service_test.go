package services_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/heshamhussin961-design/family-tree/modules/family/infrastructure/persistence"
	"github.com/heshamhussin961-design/family-tree/modules/family/services"
)

func seededTree(t *testing.T) *persistence.MemoryStore {
	t.Helper()
	store := persistence.NewMemoryStore()
	g := sheet(map[int][]string{
		0: {"1-0", "عبد الرحمن"},
		1: {"1-1", "عبد الله"},
		2: {"1-1-1", "محمد"},
		3: {"1-2", "عبد العزيز"},
	})
	_, err := services.NewImportService(store).ImportGrid(context.Background(), g, services.ImportOptions{Branch: "ب"})
	require.NoError(t, err)
	return store
}

func TestTreeService_Lineage(t *testing.T) {
	store := seededTree(t)
	svc := services.NewTreeService(store)
	ctx := context.Background()

	m, err := store.Members().FindByNameBranch(ctx, "محمد", "ب")
	require.NoError(t, err)

	chain, err := svc.Lineage(ctx, m.ID())
	require.NoError(t, err)
	names := make([]string, 0, len(chain))
	for _, c := range chain {
		names = append(names, c.FullName())
	}
	require.Equal(t, []string{"عبد الرحمن", "عبد الله", "محمد"}, names)

	_, err = svc.Lineage(ctx, 999)
	require.ErrorIs(t, err, services.ErrNotFound)
}

func TestTreeService_ChildrenRootsStats(t *testing.T) {
	store := seededTree(t)
	svc := services.NewTreeService(store)
	ctx := context.Background()

	roots, err := svc.Roots(ctx, 10)
	require.NoError(t, err)
	require.Len(t, roots, 1)

	kids, err := svc.Children(ctx, roots[0].ID())
	require.NoError(t, err)
	require.Len(t, kids, 2)

	_, err = svc.Children(ctx, 999)
	require.ErrorIs(t, err, services.ErrNotFound)

	st, err := svc.Stats(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(4), st.Total)
	require.Equal(t, int64(3), st.Generations)
}

func TestTreeService_SearchRanksClosestFirst(t *testing.T) {
	store := seededTree(t)
	svc := services.NewTreeService(store)

	hits, err := svc.Search(context.Background(), "عبد الله", 5)
	require.NoError(t, err)
	require.NotEmpty(t, hits)
	require.Equal(t, "عبد الله", hits[0].FullName())

	hits, err = svc.Search(context.Background(), "عبد", 2)
	require.NoError(t, err)
	require.Len(t, hits, 2)

	_, err = svc.Search(context.Background(), " ", 5)
	require.ErrorIs(t, err, services.ErrInvalidInput)
}
