package persistence_test

import (
	"context"
	"fmt"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"

	"github.com/heshamhussin961-design/family-tree/modules/family/domain/aggregates/member"
	"github.com/heshamhussin961-design/family-tree/modules/family/infrastructure/persistence"
	"github.com/heshamhussin961-design/family-tree/pkg/configuration"
)

func canDialPostgres(tb testing.TB, cfg *configuration.Configuration) bool {
	tb.Helper()

	host := strings.TrimSpace(cfg.Database.Host)
	if host == "" {
		host = "localhost"
	}
	port := strings.TrimSpace(cfg.Database.Port)
	if port == "" {
		port = "5432"
	}
	addr := net.JoinHostPort(host, port)

	dialer := &net.Dialer{Timeout: 250 * time.Millisecond}
	ctx, cancel := context.WithTimeout(context.Background(), 250*time.Millisecond)
	defer cancel()

	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return false
	}
	_ = conn.Close()
	return true
}

// newPgStore runs against a throwaway schema so the test never touches real data.
func newPgStore(t *testing.T) *persistence.PgStore {
	t.Helper()
	t.Setenv("LOG_PATH", "")
	cfg, err := configuration.Load([]string{".env", ".env.local"})
	require.NoError(t, err)
	if !canDialPostgres(t, cfg) {
		t.Skip("postgres not reachable")
	}

	ctx := context.Background()
	schema := "family_test_" + strings.ReplaceAll(uuid.NewString()[:8], "-", "")

	admin, err := pgxpool.New(ctx, cfg.Database.Opts)
	require.NoError(t, err)
	if err := admin.Ping(ctx); err != nil {
		admin.Close()
		t.Skipf("postgres not usable: %v", err)
	}
	_, err = admin.Exec(ctx, fmt.Sprintf("CREATE SCHEMA %s", schema))
	require.NoError(t, err)

	poolCfg, err := pgxpool.ParseConfig(cfg.Database.Opts)
	require.NoError(t, err)
	poolCfg.ConnConfig.RuntimeParams["search_path"] = schema
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	require.NoError(t, err)

	t.Cleanup(func() {
		pool.Close()
		_, _ = admin.Exec(context.Background(), fmt.Sprintf("DROP SCHEMA %s CASCADE", schema))
		admin.Close()
	})

	store := persistence.NewPgStore(pool)
	_, err = store.Migrate(ctx)
	require.NoError(t, err)
	return store
}

func TestPgStore_TwoPassInTransaction(t *testing.T) {
	store := newPgStore(t)
	ctx := context.Background()
	repo := store.Members()

	var rootID, childID int64
	err := store.InTx(ctx, func(ctx context.Context) error {
		root, err := repo.Create(ctx, member.New("عبد الله", "الأول"))
		if err != nil {
			return err
		}
		child, err := repo.Create(ctx, member.New("محمد", "الأول"))
		if err != nil {
			return err
		}
		rootID, childID = root.ID(), child.ID()

		spErr := store.Savepoint(ctx, func(ctx context.Context) error {
			_, err := repo.LinkParent(ctx, child.ID(), 987654)
			return err
		})
		require.ErrorIs(t, spErr, member.ErrNoParent)

		changed, err := repo.LinkParent(ctx, child.ID(), root.ID())
		require.True(t, changed)
		return err
	})
	require.NoError(t, err)

	lineage, err := repo.Lineage(ctx, childID)
	require.NoError(t, err)
	require.Equal(t, []int64{rootID, childID}, ids(lineage))

	found, err := repo.FindByNameBranch(ctx, "محمد", "الأول")
	require.NoError(t, err)
	require.Equal(t, childID, found.ID())

	st, err := repo.Stats(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(2), st.Total)
	require.Equal(t, int64(2), st.Generations)
}
