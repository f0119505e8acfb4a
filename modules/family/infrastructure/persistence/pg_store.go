package persistence

import (
	"context"
	"database/sql"
	"errors"

	gerrors "github.com/go-faster/errors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"

	"github.com/heshamhussin961-design/family-tree/modules/family/domain/aggregates/member"
	"github.com/heshamhussin961-design/family-tree/pkg/composables"
)

// PgStore keeps members in PostgreSQL. The run transaction travels in the
// context; repository calls outside a transaction use the pool.
type PgStore struct {
	pool *pgxpool.Pool
}

func NewPgStore(pool *pgxpool.Pool) *PgStore {
	return &PgStore{pool: pool}
}

func OpenPgStore(ctx context.Context, connString string) (*PgStore, error) {
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, gerrors.Wrap(err, "open pool")
	}
	return NewPgStore(pool), nil
}

func (s *PgStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *PgStore) InTx(ctx context.Context, fn func(context.Context) error) error {
	return composables.InTx(composables.WithPool(ctx, s.pool), fn)
}

func (s *PgStore) Savepoint(ctx context.Context, fn func(context.Context) error) error {
	err := composables.InSavepoint(ctx, fn)
	if errors.Is(err, composables.ErrNoTx) {
		return fn(ctx)
	}
	return err
}

func (s *PgStore) Members() member.Repository {
	return &pgMembers{pool: s.pool}
}

// DB exposes the pool through database/sql for migrations.
func (s *PgStore) DB() *sql.DB {
	return stdlib.OpenDBFromPool(s.pool)
}

func (s *PgStore) Migrate(ctx context.Context) ([]int64, error) {
	db := s.DB()
	defer db.Close()
	return Migrate(ctx, db, DialectPostgres)
}

func (s *PgStore) Close() error {
	s.pool.Close()
	return nil
}

type pgMembers struct {
	pool *pgxpool.Pool
}

func (r *pgMembers) conn(ctx context.Context) (composables.Tx, error) {
	return composables.UseTx(composables.WithPool(ctx, r.pool))
}

const (
	pgSelectByID = `SELECT ` + memberColumns + ` FROM family_members WHERE id = $1`

	pgSelectByNameBranch = `SELECT ` + memberColumns + ` FROM family_members
	WHERE full_name = $1 AND branch_name = $2
	ORDER BY id
	LIMIT 1`

	pgSelectByName = `SELECT ` + memberColumns + ` FROM family_members
	WHERE full_name = $1
	ORDER BY id`

	pgInsert = `INSERT INTO family_members
	(full_name, branch_name, parent_id, gender, birth_year, death_year, is_alive, image_url, email, phone)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	RETURNING ` + memberColumns

	pgLinkParent = `UPDATE family_members SET parent_id = $1 WHERE id = $2 AND parent_id IS NULL`

	pgLineage = `WITH RECURSIVE ancestors AS (
		SELECT id, parent_id, 0 AS depth FROM family_members WHERE id = $1
		UNION ALL
		SELECT fm.id, fm.parent_id, a.depth + 1
		FROM family_members fm
		JOIN ancestors a ON fm.id = a.parent_id
		WHERE a.depth < 10000
	)
	SELECT ` + memberColumnsQualified + `
	FROM ancestors a JOIN family_members m ON m.id = a.id
	ORDER BY a.depth DESC`

	pgChildren = `SELECT ` + memberColumns + ` FROM family_members WHERE parent_id = $1 ORDER BY id`

	pgRoots = `SELECT ` + memberColumns + ` FROM family_members
	WHERE parent_id IS NULL
	ORDER BY id
	LIMIT NULLIF($1, 0)`

	pgSearch = `SELECT ` + memberColumns + ` FROM family_members
	WHERE $1 = '' OR full_name ILIKE '%' || $1 || '%'
	ORDER BY id
	LIMIT NULLIF($2, 0)`

	pgStats = `WITH RECURSIVE gen AS (
		SELECT id, 1 AS depth FROM family_members WHERE parent_id IS NULL
		UNION ALL
		SELECT fm.id, g.depth + 1
		FROM family_members fm
		JOIN gen g ON fm.parent_id = g.id
		WHERE g.depth < 10000
	)
	SELECT
		(SELECT COUNT(*) FROM family_members),
		(SELECT COUNT(*) FROM family_members WHERE is_alive),
		(SELECT COUNT(*) FROM family_members WHERE NOT is_alive),
		(SELECT COALESCE(MAX(depth), 0) FROM gen),
		(SELECT COUNT(DISTINCT branch_name) FROM family_members WHERE branch_name <> '')`
)

const memberColumnsQualified = `m.id, m.full_name, m.branch_name, m.parent_id, m.gender, m.birth_year, m.death_year,
	m.is_alive, m.image_url, m.email, m.phone, m.created_at`

func (r *pgMembers) GetByID(ctx context.Context, id int64) (member.Member, error) {
	tx, err := r.conn(ctx)
	if err != nil {
		return member.Member{}, err
	}
	m, err := scanMember(tx.QueryRow(ctx, pgSelectByID, id))
	if err != nil {
		return member.Member{}, mapPgError("get member", err)
	}
	return m, nil
}

func (r *pgMembers) FindByNameBranch(ctx context.Context, fullName, branchName string) (member.Member, error) {
	tx, err := r.conn(ctx)
	if err != nil {
		return member.Member{}, err
	}
	m, err := scanMember(tx.QueryRow(ctx, pgSelectByNameBranch, fullName, branchName))
	if err != nil {
		return member.Member{}, mapPgError("find member", err)
	}
	return m, nil
}

func (r *pgMembers) FindByName(ctx context.Context, fullName string) ([]member.Member, error) {
	return r.list(ctx, "find members", pgSelectByName, fullName)
}

func (r *pgMembers) Create(ctx context.Context, m member.Member) (member.Member, error) {
	tx, err := r.conn(ctx)
	if err != nil {
		return member.Member{}, err
	}
	p := m.Profile()
	var parent sql.NullInt64
	if pid, ok := m.ParentID(); ok {
		parent = sql.NullInt64{Int64: pid, Valid: true}
	}
	created, err := scanMember(tx.QueryRow(ctx, pgInsert,
		m.FullName(), m.BranchName(), parent,
		nullString(string(p.Gender)), nullInt(p.BirthYear), nullInt(p.DeathYear),
		p.IsAlive, nullString(p.ImageURL), nullString(p.Email), nullString(p.Phone),
	))
	if err != nil {
		return member.Member{}, mapPgError("create member", err)
	}
	return created, nil
}

func (r *pgMembers) LinkParent(ctx context.Context, childID, parentID int64) (bool, error) {
	tx, err := r.conn(ctx)
	if err != nil {
		return false, err
	}
	tag, err := tx.Exec(ctx, pgLinkParent, parentID, childID)
	if err != nil {
		return false, mapPgError("link parent", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *pgMembers) Lineage(ctx context.Context, id int64) ([]member.Member, error) {
	return r.list(ctx, "lineage", pgLineage, id)
}

func (r *pgMembers) Children(ctx context.Context, id int64) ([]member.Member, error) {
	return r.list(ctx, "children", pgChildren, id)
}

func (r *pgMembers) Roots(ctx context.Context, limit int) ([]member.Member, error) {
	return r.list(ctx, "roots", pgRoots, max(limit, 0))
}

func (r *pgMembers) Search(ctx context.Context, q string, limit int) ([]member.Member, error) {
	return r.list(ctx, "search", pgSearch, q, max(limit, 0))
}

func (r *pgMembers) Stats(ctx context.Context) (member.Stats, error) {
	tx, err := r.conn(ctx)
	if err != nil {
		return member.Stats{}, err
	}
	var st member.Stats
	if err := tx.QueryRow(ctx, pgStats).Scan(&st.Total, &st.Living, &st.Deceased, &st.Generations, &st.Branches); err != nil {
		return member.Stats{}, mapPgError("stats", err)
	}
	return st, nil
}

func (r *pgMembers) list(ctx context.Context, op, query string, args ...any) ([]member.Member, error) {
	tx, err := r.conn(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := tx.Query(ctx, query, args...)
	if err != nil {
		return nil, mapPgError(op, err)
	}
	defer rows.Close()

	var out []member.Member
	for rows.Next() {
		m, err := scanMember(rows)
		if err != nil {
			return nil, mapPgError(op, err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, mapPgError(op, err)
	}
	return out, nil
}
