package persistence

import (
	"context"
	"maps"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/heshamhussin961-design/family-tree/modules/family/domain/aggregates/member"
)

// MemoryStore keeps members in process. Transactions and savepoints are
// snapshots restored on failure. Used for dry runs and tests.
type MemoryStore struct {
	mu      sync.Mutex
	rows    map[int64]member.Member
	nextID  int64
	pingErr error
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{rows: map[int64]member.Member{}, nextID: 1}
}

// SetPingError makes Ping fail with err until cleared with nil.
func (s *MemoryStore) SetPingError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pingErr = err
}

func (s *MemoryStore) Ping(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pingErr
}

func (s *MemoryStore) Close() error { return nil }

func (s *MemoryStore) InTx(ctx context.Context, fn func(context.Context) error) error {
	return s.snapshot(ctx, fn)
}

func (s *MemoryStore) Savepoint(ctx context.Context, fn func(context.Context) error) error {
	return s.snapshot(ctx, fn)
}

func (s *MemoryStore) snapshot(ctx context.Context, fn func(context.Context) error) error {
	s.mu.Lock()
	rows := maps.Clone(s.rows)
	nextID := s.nextID
	s.mu.Unlock()

	if err := fn(ctx); err != nil {
		s.mu.Lock()
		s.rows, s.nextID = rows, nextID
		s.mu.Unlock()
		return err
	}
	return nil
}

func (s *MemoryStore) Members() member.Repository {
	return memoryMembers{s: s}
}

type memoryMembers struct {
	s *MemoryStore
}

func (r memoryMembers) GetByID(_ context.Context, id int64) (member.Member, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	m, ok := r.s.rows[id]
	if !ok {
		return member.Member{}, member.ErrNotFound
	}
	return m, nil
}

func (r memoryMembers) FindByNameBranch(_ context.Context, fullName, branchName string) (member.Member, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, m := range r.s.sorted() {
		if m.FullName() == fullName && m.BranchName() == branchName {
			return m, nil
		}
	}
	return member.Member{}, member.ErrNotFound
}

func (r memoryMembers) FindByName(_ context.Context, fullName string) ([]member.Member, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []member.Member
	for _, m := range r.s.sorted() {
		if m.FullName() == fullName {
			out = append(out, m)
		}
	}
	return out, nil
}

func (r memoryMembers) Create(_ context.Context, m member.Member) (member.Member, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.rows {
		if existing.FullName() == m.FullName() && existing.BranchName() == m.BranchName() {
			return member.Member{}, member.ErrDuplicate
		}
	}
	if pid, ok := m.ParentID(); ok {
		if _, exists := r.s.rows[pid]; !exists {
			return member.Member{}, member.ErrNoParent
		}
	}
	id := r.s.nextID
	r.s.nextID++
	created := member.Hydrate(id, m.FullName(), m.BranchName(), parentPtr(m), m.Profile(), time.Now().UTC())
	r.s.rows[id] = created
	return created, nil
}

func (r memoryMembers) LinkParent(_ context.Context, childID, parentID int64) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	child, ok := r.s.rows[childID]
	if !ok {
		return false, member.ErrNotFound
	}
	if _, ok := r.s.rows[parentID]; !ok {
		return false, member.ErrNoParent
	}
	if _, linked := child.ParentID(); linked {
		return false, nil
	}
	r.s.rows[childID] = child.WithParent(parentID)
	return true, nil
}

func (r memoryMembers) Lineage(_ context.Context, id int64) ([]member.Member, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var chain []member.Member
	seen := map[int64]bool{}
	current, ok := r.s.rows[id]
	for ok && !seen[current.ID()] {
		seen[current.ID()] = true
		chain = append(chain, current)
		pid, has := current.ParentID()
		if !has {
			break
		}
		current, ok = r.s.rows[pid]
	}
	slices.Reverse(chain)
	return chain, nil
}

func (r memoryMembers) Children(_ context.Context, id int64) ([]member.Member, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []member.Member
	for _, m := range r.s.sorted() {
		if pid, ok := m.ParentID(); ok && pid == id {
			out = append(out, m)
		}
	}
	return out, nil
}

func (r memoryMembers) Roots(_ context.Context, limit int) ([]member.Member, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []member.Member
	for _, m := range r.s.sorted() {
		if _, ok := m.ParentID(); ok {
			continue
		}
		out = append(out, m)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (r memoryMembers) Search(_ context.Context, q string, limit int) ([]member.Member, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	q = strings.ToLower(strings.TrimSpace(q))
	var out []member.Member
	for _, m := range r.s.sorted() {
		if q != "" && !strings.Contains(strings.ToLower(m.FullName()), q) {
			continue
		}
		out = append(out, m)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (r memoryMembers) Stats(_ context.Context) (member.Stats, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var st member.Stats
	branches := map[string]struct{}{}
	depth := map[int64]int64{}
	for _, m := range r.s.sorted() {
		st.Total++
		if m.Profile().IsAlive {
			st.Living++
		} else {
			st.Deceased++
		}
		if m.BranchName() != "" {
			branches[m.BranchName()] = struct{}{}
		}
		if d := r.s.depth(m.ID(), depth); d > st.Generations {
			st.Generations = d
		}
	}
	st.Branches = int64(len(branches))
	return st, nil
}

// depth counts generations from the root; callers hold the lock.
func (s *MemoryStore) depth(id int64, memo map[int64]int64) int64 {
	if d, ok := memo[id]; ok {
		return d
	}
	var d int64 = 1
	seen := map[int64]bool{id: true}
	current := s.rows[id]
	for {
		pid, ok := current.ParentID()
		if !ok {
			break
		}
		next, exists := s.rows[pid]
		if !exists || seen[pid] {
			break
		}
		seen[pid] = true
		d++
		current = next
	}
	memo[id] = d
	return d
}

// sorted returns rows by id; callers hold the lock.
func (s *MemoryStore) sorted() []member.Member {
	ids := slices.Sorted(maps.Keys(s.rows))
	out := make([]member.Member, 0, len(ids))
	for _, id := range ids {
		out = append(out, s.rows[id])
	}
	return out
}

func parentPtr(m member.Member) *int64 {
	pid, ok := m.ParentID()
	if !ok {
		return nil
	}
	return &pid
}
