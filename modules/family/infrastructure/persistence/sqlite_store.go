package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"

	gerrors "github.com/go-faster/errors"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/heshamhussin961-design/family-tree/modules/family/domain/aggregates/member"
)

type sqliteTxKey struct{}

type sqlExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// SQLiteStore keeps members in a single SQLite file.
type SQLiteStore struct {
	db        *sql.DB
	savepoint atomic.Int64
}

// OpenSQLite opens (creating if needed) the database at path with foreign keys
// and WAL enabled.
func OpenSQLite(path string) (*SQLiteStore, error) {
	if path == "" {
		path = "family_tree.db"
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("create dirs: %w", err)
		}
	}
	dsn := fmt.Sprintf("file:%s?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// one connection keeps the run transaction and its savepoints together
	db.SetMaxOpenConns(1)
	return NewSQLiteStore(db), nil
}

func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

func (s *SQLiteStore) DB() *sql.DB { return s.db }

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLiteStore) Migrate(ctx context.Context) ([]int64, error) {
	return Migrate(ctx, s.db, DialectSQLite)
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) InTx(ctx context.Context, fn func(context.Context) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return gerrors.Wrap(err, "begin tx")
	}
	if err := fn(context.WithValue(ctx, sqliteTxKey{}, tx)); err != nil {
		if rErr := tx.Rollback(); rErr != nil {
			return errors.Join(err, rErr)
		}
		return err
	}
	return tx.Commit()
}

func (s *SQLiteStore) Savepoint(ctx context.Context, fn func(context.Context) error) error {
	tx, ok := ctx.Value(sqliteTxKey{}).(*sql.Tx)
	if !ok {
		return fn(ctx)
	}
	name := fmt.Sprintf("sp_%d", s.savepoint.Add(1))
	if _, err := tx.ExecContext(ctx, "SAVEPOINT "+name); err != nil {
		return gerrors.Wrap(err, "savepoint")
	}
	if err := fn(ctx); err != nil {
		if _, rErr := tx.ExecContext(ctx, "ROLLBACK TO SAVEPOINT "+name); rErr != nil {
			return errors.Join(err, rErr)
		}
		if _, rErr := tx.ExecContext(ctx, "RELEASE SAVEPOINT "+name); rErr != nil {
			return errors.Join(err, rErr)
		}
		return err
	}
	_, err := tx.ExecContext(ctx, "RELEASE SAVEPOINT "+name)
	return err
}

func (s *SQLiteStore) Members() member.Repository {
	return &sqliteMembers{s: s}
}

type sqliteMembers struct {
	s *SQLiteStore
}

func (r *sqliteMembers) conn(ctx context.Context) sqlExecutor {
	if tx, ok := ctx.Value(sqliteTxKey{}).(*sql.Tx); ok {
		return tx
	}
	return r.s.db
}

const (
	sqliteSelectByID = `SELECT ` + memberColumns + ` FROM family_members WHERE id = ?`

	sqliteSelectByNameBranch = `SELECT ` + memberColumns + ` FROM family_members
	WHERE full_name = ? AND branch_name = ?
	ORDER BY id
	LIMIT 1`

	sqliteSelectByName = `SELECT ` + memberColumns + ` FROM family_members
	WHERE full_name = ?
	ORDER BY id`

	sqliteInsert = `INSERT INTO family_members
	(full_name, branch_name, parent_id, gender, birth_year, death_year, is_alive, image_url, email, phone)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	RETURNING id`

	sqliteLinkParent = `UPDATE family_members SET parent_id = ? WHERE id = ? AND parent_id IS NULL`

	sqliteLineage = `WITH RECURSIVE ancestors(id, parent_id, depth) AS (
		SELECT id, parent_id, 0 FROM family_members WHERE id = ?
		UNION ALL
		SELECT fm.id, fm.parent_id, a.depth + 1
		FROM family_members fm
		JOIN ancestors a ON fm.id = a.parent_id
		WHERE a.depth < 10000
	)
	SELECT ` + memberColumnsQualified + `
	FROM ancestors a JOIN family_members m ON m.id = a.id
	ORDER BY a.depth DESC`

	sqliteChildren = `SELECT ` + memberColumns + ` FROM family_members WHERE parent_id = ? ORDER BY id`

	sqliteRoots = `SELECT ` + memberColumns + ` FROM family_members
	WHERE parent_id IS NULL
	ORDER BY id
	LIMIT ?`

	sqliteSearch = `SELECT ` + memberColumns + ` FROM family_members
	WHERE ?1 = '' OR instr(lower(full_name), lower(?1)) > 0
	ORDER BY id
	LIMIT ?2`

	sqliteStats = `WITH RECURSIVE gen(id, depth) AS (
		SELECT id, 1 FROM family_members WHERE parent_id IS NULL
		UNION ALL
		SELECT fm.id, g.depth + 1
		FROM family_members fm
		JOIN gen g ON fm.parent_id = g.id
		WHERE g.depth < 10000
	)
	SELECT
		(SELECT COUNT(*) FROM family_members),
		(SELECT COUNT(*) FROM family_members WHERE is_alive = 1),
		(SELECT COUNT(*) FROM family_members WHERE is_alive = 0),
		(SELECT COALESCE(MAX(depth), 0) FROM gen),
		(SELECT COUNT(DISTINCT branch_name) FROM family_members WHERE branch_name <> '')`
)

func (r *sqliteMembers) GetByID(ctx context.Context, id int64) (member.Member, error) {
	m, err := scanMember(r.conn(ctx).QueryRowContext(ctx, sqliteSelectByID, id))
	if err != nil {
		return member.Member{}, mapSQLiteError("get member", err)
	}
	return m, nil
}

func (r *sqliteMembers) FindByNameBranch(ctx context.Context, fullName, branchName string) (member.Member, error) {
	m, err := scanMember(r.conn(ctx).QueryRowContext(ctx, sqliteSelectByNameBranch, fullName, branchName))
	if err != nil {
		return member.Member{}, mapSQLiteError("find member", err)
	}
	return m, nil
}

func (r *sqliteMembers) FindByName(ctx context.Context, fullName string) ([]member.Member, error) {
	return r.list(ctx, "find members", sqliteSelectByName, fullName)
}

func (r *sqliteMembers) Create(ctx context.Context, m member.Member) (member.Member, error) {
	p := m.Profile()
	var parent sql.NullInt64
	if pid, ok := m.ParentID(); ok {
		parent = sql.NullInt64{Int64: pid, Valid: true}
	}
	var id int64
	err := r.conn(ctx).QueryRowContext(ctx, sqliteInsert,
		m.FullName(), m.BranchName(), parent,
		nullString(string(p.Gender)), nullInt(p.BirthYear), nullInt(p.DeathYear),
		p.IsAlive, nullString(p.ImageURL), nullString(p.Email), nullString(p.Phone),
	).Scan(&id)
	if err != nil {
		return member.Member{}, mapSQLiteError("create member", err)
	}
	return r.GetByID(ctx, id)
}

func (r *sqliteMembers) LinkParent(ctx context.Context, childID, parentID int64) (bool, error) {
	res, err := r.conn(ctx).ExecContext(ctx, sqliteLinkParent, parentID, childID)
	if err != nil {
		return false, mapSQLiteError("link parent", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, gerrors.Wrap(err, "link parent")
	}
	return n == 1, nil
}

func (r *sqliteMembers) Lineage(ctx context.Context, id int64) ([]member.Member, error) {
	return r.list(ctx, "lineage", sqliteLineage, id)
}

func (r *sqliteMembers) Children(ctx context.Context, id int64) ([]member.Member, error) {
	return r.list(ctx, "children", sqliteChildren, id)
}

func (r *sqliteMembers) Roots(ctx context.Context, limit int) ([]member.Member, error) {
	return r.list(ctx, "roots", sqliteRoots, sqliteLimit(limit))
}

func (r *sqliteMembers) Search(ctx context.Context, q string, limit int) ([]member.Member, error) {
	return r.list(ctx, "search", sqliteSearch, q, sqliteLimit(limit))
}

func (r *sqliteMembers) Stats(ctx context.Context) (member.Stats, error) {
	var st member.Stats
	err := r.conn(ctx).QueryRowContext(ctx, sqliteStats).
		Scan(&st.Total, &st.Living, &st.Deceased, &st.Generations, &st.Branches)
	if err != nil {
		return member.Stats{}, mapSQLiteError("stats", err)
	}
	return st, nil
}

func (r *sqliteMembers) list(ctx context.Context, op, query string, args ...any) ([]member.Member, error) {
	rows, err := r.conn(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapSQLiteError(op, err)
	}
	defer func() { _ = rows.Close() }()

	var out []member.Member
	for rows.Next() {
		m, err := scanMember(rows)
		if err != nil {
			return nil, mapSQLiteError(op, err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, mapSQLiteError(op, err)
	}
	return out, nil
}

// sqliteLimit maps "no limit" (0) to SQLite's -1.
func sqliteLimit(limit int) int {
	if limit <= 0 {
		return -1
	}
	return limit
}

func mapSQLiteError(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return member.ErrNotFound
	}
	var sqlErr *sqlite.Error
	if errors.As(err, &sqlErr) {
		switch sqlErr.Code() {
		case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
			return gerrors.Wrap(member.ErrDuplicate, op)
		case sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY:
			return gerrors.Wrap(member.ErrNoParent, op)
		}
	}
	return gerrors.Wrap(err, op)
}
