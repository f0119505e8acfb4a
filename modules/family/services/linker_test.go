package services_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/heshamhussin961-design/family-tree/modules/family/domain/aggregates/member"
	"github.com/heshamhussin961-design/family-tree/modules/family/domain/familycode"
	"github.com/heshamhussin961-design/family-tree/modules/family/infrastructure/persistence"
	"github.com/heshamhussin961-design/family-tree/modules/family/services"
)

func record(name, code, branch string) services.CandidateRecord {
	c := familycode.MustParse(code)
	rec := services.CandidateRecord{FullName: name, Code: c, BranchName: branch}
	if p, ok := c.Parent(); ok {
		rec.ParentCode = p
	}
	return rec
}

func linkInTx(t *testing.T, store services.Store, records []services.CandidateRecord) services.Summary {
	t.Helper()
	var summary services.Summary
	linker := services.NewLinker(store)
	require.Equal(t, services.StateInit, linker.State())
	err := store.InTx(context.Background(), func(ctx context.Context) error {
		var err error
		summary, err = linker.LinkCodes(ctx, records)
		return err
	})
	require.NoError(t, err)
	require.Equal(t, services.StateDone, linker.State())
	return summary
}

func TestLinkCodes_TwoPass(t *testing.T) {
	store := persistence.NewMemoryStore()
	records := []services.CandidateRecord{
		record("جد", "1", "ب"),
		record("أب", "1-1", "ب"),
		record("ابن", "1-1-1", "ب"),
	}
	// "ابن" alone is a label, but the linker does not re-classify names.
	summary := linkInTx(t, store, records)
	require.Equal(t, services.Summary{Inserted: 3, Linked: 2}, summary)

	ctx := context.Background()
	gd, err := store.Members().FindByNameBranch(ctx, "جد", "ب")
	require.NoError(t, err)
	father, err := store.Members().FindByNameBranch(ctx, "أب", "ب")
	require.NoError(t, err)
	son, err := store.Members().FindByNameBranch(ctx, "ابن", "ب")
	require.NoError(t, err)

	_, rootHasParent := gd.ParentID()
	require.False(t, rootHasParent)
	require.Equal(t, gd.ID(), parentOf(father))
	require.Equal(t, father.ID(), parentOf(son))
}

func TestLinkCodes_IdempotentReimport(t *testing.T) {
	store := persistence.NewMemoryStore()
	records := []services.CandidateRecord{
		record("جد", "1", "ب"),
		record("أب", "1-1", "ب"),
		record("عم", "1-2", "ب"),
	}
	first := linkInTx(t, store, records)
	require.Equal(t, 3, first.Inserted)
	require.Equal(t, 2, first.Linked)

	second := linkInTx(t, store, records)
	require.Equal(t, services.Summary{Reused: 3, AlreadyLinked: 2}, second)

	all, err := store.Members().Search(context.Background(), "", 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
}

func TestLinkCodes_NeverOverwritesExistingParent(t *testing.T) {
	store := persistence.NewMemoryStore()
	ctx := context.Background()
	repo := store.Members()

	corrected, err := repo.Create(ctx, member.New("مصحح", "ب"))
	require.NoError(t, err)
	child, err := repo.Create(ctx, member.New("أب", "ب"))
	require.NoError(t, err)
	_, err = repo.LinkParent(ctx, child.ID(), corrected.ID())
	require.NoError(t, err)

	summary := linkInTx(t, store, []services.CandidateRecord{
		record("جد", "1", "ب"),
		record("أب", "1-1", "ب"),
	})
	require.Equal(t, services.Summary{Inserted: 1, Reused: 1, AlreadyLinked: 1}, summary)

	got, err := repo.GetByID(ctx, child.ID())
	require.NoError(t, err)
	require.Equal(t, corrected.ID(), parentOf(got))
}

func TestLinkCodes_OrphanAccounting(t *testing.T) {
	store := persistence.NewMemoryStore()
	summary := linkInTx(t, store, []services.CandidateRecord{
		record("حفيد", "1-2-3", "ب"),
	})
	require.Equal(t, services.Summary{Inserted: 1, Orphaned: 1}, summary)

	m, err := store.Members().FindByNameBranch(context.Background(), "حفيد", "ب")
	require.NoError(t, err)
	_, ok := m.ParentID()
	require.False(t, ok)
}

func TestLinkCodes_PersistenceFailureIsIsolated(t *testing.T) {
	store := newFaultyStore()
	store.failCreate["أب"] = true

	summary := linkInTx(t, store, []services.CandidateRecord{
		record("جد", "1", "ب"),
		record("أب", "1-1", "ب"),
		record("عم", "1-2", "ب"),
		record("ابن أب", "1-1-1", "ب"),
	})
	// the failed record's child has no parent id to link to
	require.Equal(t, services.Summary{Inserted: 3, Linked: 1, Orphaned: 1, Failed: 1, Skipped: 1}, summary)
}

func TestLinkCodes_LinkFailureIsIsolated(t *testing.T) {
	store := newFaultyStore()
	store.failLink[2] = true

	summary := linkInTx(t, store, []services.CandidateRecord{
		record("جد", "1", "ب"),
		record("أب", "1-1", "ب"),
		record("عم", "1-2", "ب"),
	})
	require.Equal(t, services.Summary{Inserted: 3, Linked: 1, Failed: 1}, summary)
}

func TestLinkCodes_RejectsSelfLink(t *testing.T) {
	store := persistence.NewMemoryStore()
	summary := linkInTx(t, store, []services.CandidateRecord{
		record("محمد", "1", "ب"),
		record("محمد", "1-1", "ب"),
	})
	require.Equal(t, services.Summary{Inserted: 1, Reused: 1, Rejected: 1}, summary)
}

func TestLinkCodes_RejectsCycle(t *testing.T) {
	store := persistence.NewMemoryStore()
	ctx := context.Background()
	repo := store.Members()

	c, err := repo.Create(ctx, member.New("جد", "ب"))
	require.NoError(t, err)
	p, err := repo.Create(ctx, member.New("أب", "ب"))
	require.NoError(t, err)
	_, err = repo.LinkParent(ctx, p.ID(), c.ID())
	require.NoError(t, err)

	// the sheet claims the existing ancestor is a child of its own descendant
	summary := linkInTx(t, store, []services.CandidateRecord{
		record("أب", "1", "ب"),
		record("جد", "1-1", "ب"),
	})
	require.Equal(t, services.Summary{Reused: 2, Rejected: 1}, summary)

	got, err := repo.GetByID(ctx, c.ID())
	require.NoError(t, err)
	_, ok := got.ParentID()
	require.False(t, ok)
}

func TestLinker_SingleUse(t *testing.T) {
	store := persistence.NewMemoryStore()
	linker := services.NewLinker(store)
	_, err := linker.LinkCodes(context.Background(), nil)
	require.NoError(t, err)
	_, err = linker.LinkCodes(context.Background(), nil)
	require.Error(t, err)
}

func TestLinkNames_BranchPreferredThenGlobal(t *testing.T) {
	store := persistence.NewMemoryStore()
	ctx := context.Background()
	repo := store.Members()

	other, err := repo.Create(ctx, member.New("علي", "الغربي"))
	require.NoError(t, err)
	own, err := repo.Create(ctx, member.New("علي", "الشرقي"))
	require.NoError(t, err)
	elsewhere, err := repo.Create(ctx, member.New("سالم", "الغربي"))
	require.NoError(t, err)

	linker := services.NewLinker(store)
	var summary services.Summary
	err = store.InTx(ctx, func(ctx context.Context) error {
		var err error
		summary, err = linker.LinkNames(ctx, []member.ExtractedRecord{
			{FullName: "حسن", ParentName: "علي", BranchName: "الشرقي"},
			{FullName: "فهد", ParentName: "سالم", BranchName: "الشرقي"},
			{FullName: "ناصر", ParentName: "مجهول", BranchName: "الشرقي"},
			{FullName: "", ParentName: "علي", BranchName: "الشرقي"},
			{FullName: "علي", BranchName: "الشرقي"},
		})
		return err
	})
	require.NoError(t, err)
	require.Equal(t, services.Summary{Inserted: 3, Reused: 1, Linked: 2, Orphaned: 1, Skipped: 1}, summary)

	hasan, err := repo.FindByNameBranch(ctx, "حسن", "الشرقي")
	require.NoError(t, err)
	require.Equal(t, own.ID(), parentOf(hasan))
	require.NotEqual(t, other.ID(), parentOf(hasan))

	fahd, err := repo.FindByNameBranch(ctx, "فهد", "الشرقي")
	require.NoError(t, err)
	require.Equal(t, elsewhere.ID(), parentOf(fahd))
}

func TestLinkNames_ParentExtractedInSameRun(t *testing.T) {
	store := persistence.NewMemoryStore()
	linker := services.NewLinker(store)
	ctx := context.Background()

	var summary services.Summary
	err := store.InTx(ctx, func(ctx context.Context) error {
		var err error
		// child listed before its parent
		summary, err = linker.LinkNames(ctx, []member.ExtractedRecord{
			{FullName: "ابن خالد", ParentName: "خالد", BranchName: "ب"},
			{FullName: "خالد", BranchName: "ب"},
		})
		return err
	})
	require.NoError(t, err)
	require.Equal(t, services.Summary{Inserted: 2, Linked: 1}, summary)
}
