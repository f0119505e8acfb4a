package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/heshamhussin961-design/family-tree/modules/family/domain/aggregates/member"
)

type RunState string

const (
	StateInit      RunState = "INIT"
	StateInserting RunState = "INSERTING"
	StateLinking   RunState = "LINKING"
	StateDone      RunState = "DONE"
	StateFailed    RunState = "FAILED"
)

// maxAncestorWalk bounds the cycle check on corrupted parent chains.
const maxAncestorWalk = 10000

type Summary struct {
	Inserted      int `json:"inserted"`
	Reused        int `json:"reused"`
	Linked        int `json:"linked"`
	AlreadyLinked int `json:"already_linked"`
	Orphaned      int `json:"orphaned"`
	Rejected      int `json:"rejected"`
	Failed        int `json:"failed"`
	Skipped       int `json:"skipped"`
}

func (s *Summary) Add(o Summary) {
	s.Inserted += o.Inserted
	s.Reused += o.Reused
	s.Linked += o.Linked
	s.AlreadyLinked += o.AlreadyLinked
	s.Orphaned += o.Orphaned
	s.Rejected += o.Rejected
	s.Failed += o.Failed
	s.Skipped += o.Skipped
}

// Linker writes one run's records in two passes: every member is materialized
// first, then parent pointers are resolved against the ids from the first pass.
// A Linker is good for a single run.
type Linker struct {
	store Store
	state RunState
}

func NewLinker(store Store) *Linker {
	return &Linker{store: store, state: StateInit}
}

func (l *Linker) State() RunState { return l.state }

func (l *Linker) transition(ctx context.Context, to RunState) {
	logWithFields(ctx, logrus.DebugLevel, "family.import.state", logrus.Fields{
		"from": l.state,
		"to":   to,
	})
	l.state = to
}

// Fail marks the run as failed. Used by callers when the surrounding
// transaction cannot be committed.
func (l *Linker) Fail(ctx context.Context) {
	if l.state != StateFailed {
		l.transition(ctx, StateFailed)
	}
}

func (l *Linker) begin(ctx context.Context) error {
	if l.state != StateInit {
		return fmt.Errorf("linker already used (state %s)", l.state)
	}
	l.transition(ctx, StateInserting)
	return nil
}

// LinkCodes runs both passes for code-keyed records. ctx must carry the run's
// transaction.
func (l *Linker) LinkCodes(ctx context.Context, records []CandidateRecord) (Summary, error) {
	var summary Summary
	if err := l.begin(ctx); err != nil {
		return summary, err
	}
	repo := l.store.Members()

	ids := make(map[string]int64, len(records))
	for _, rec := range records {
		if rec.FullName == "" {
			summary.Skipped++
			continue
		}
		id, created, err := l.materialize(ctx, repo, rec.FullName, rec.BranchName)
		if err != nil {
			summary.Failed++
			logWithFields(ctx, logrus.ErrorLevel, "family.import.pass1.failed", logrus.Fields{
				"code":   rec.Code.String(),
				"name":   rec.FullName,
				"branch": rec.BranchName,
				"row":    rec.Row,
				"err":    err.Error(),
			})
			continue
		}
		if created {
			summary.Inserted++
		} else {
			summary.Reused++
		}
		ids[rec.Code.String()] = id
	}
	if err := ctx.Err(); err != nil {
		l.Fail(ctx)
		return summary, err
	}

	l.transition(ctx, StateLinking)
	for _, rec := range records {
		if !rec.HasParent() {
			continue
		}
		childID, ok := ids[rec.Code.String()]
		if !ok {
			summary.Skipped++
			continue
		}
		parentID, ok := ids[rec.ParentCode.String()]
		if !ok {
			summary.Orphaned++
			logWithFields(ctx, logrus.InfoLevel, "family.import.pass2.orphaned", logrus.Fields{
				"code":        rec.Code.String(),
				"parent_code": rec.ParentCode.String(),
				"name":        rec.FullName,
			})
			continue
		}
		l.applyLink(ctx, repo, childID, parentID, logrus.Fields{
			"code":        rec.Code.String(),
			"parent_code": rec.ParentCode.String(),
			"name":        rec.FullName,
		}, &summary)
	}
	if err := ctx.Err(); err != nil {
		l.Fail(ctx)
		return summary, err
	}

	l.transition(ctx, StateDone)
	return summary, nil
}

// LinkNames runs both passes for records extracted from a tree image, where
// parents are given by name. A parent in the record's own branch is preferred
// over one with the same name elsewhere.
func (l *Linker) LinkNames(ctx context.Context, records []member.ExtractedRecord) (Summary, error) {
	var summary Summary
	if err := l.begin(ctx); err != nil {
		return summary, err
	}
	repo := l.store.Members()

	type pending struct {
		rec     member.ExtractedRecord
		childID int64
	}
	queue := make([]pending, 0, len(records))
	for _, raw := range records {
		rec := raw.Normalize()
		if err := rec.Validate(); err != nil {
			summary.Skipped++
			logWithFields(ctx, logrus.WarnLevel, "family.import.pass1.invalid", logrus.Fields{
				"name":   rec.FullName,
				"branch": rec.BranchName,
				"err":    err.Error(),
			})
			continue
		}
		id, created, err := l.materialize(ctx, repo, rec.FullName, rec.BranchName)
		if err != nil {
			summary.Failed++
			logWithFields(ctx, logrus.ErrorLevel, "family.import.pass1.failed", logrus.Fields{
				"name":   rec.FullName,
				"branch": rec.BranchName,
				"err":    err.Error(),
			})
			continue
		}
		if created {
			summary.Inserted++
		} else {
			summary.Reused++
		}
		queue = append(queue, pending{rec: rec, childID: id})
	}
	if err := ctx.Err(); err != nil {
		l.Fail(ctx)
		return summary, err
	}

	l.transition(ctx, StateLinking)
	for _, p := range queue {
		if p.rec.ParentName == "" {
			continue
		}
		parentID, err := resolveByName(ctx, repo, p.rec.ParentName, p.rec.BranchName)
		if errors.Is(err, member.ErrNotFound) {
			summary.Orphaned++
			logWithFields(ctx, logrus.InfoLevel, "family.import.pass2.orphaned", logrus.Fields{
				"name":        p.rec.FullName,
				"parent_name": p.rec.ParentName,
				"branch":      p.rec.BranchName,
			})
			continue
		}
		if err != nil {
			summary.Failed++
			logWithFields(ctx, logrus.ErrorLevel, "family.import.pass2.failed", logrus.Fields{
				"name":        p.rec.FullName,
				"parent_name": p.rec.ParentName,
				"err":         err.Error(),
			})
			continue
		}
		l.applyLink(ctx, repo, p.childID, parentID, logrus.Fields{
			"name":        p.rec.FullName,
			"parent_name": p.rec.ParentName,
			"branch":      p.rec.BranchName,
		}, &summary)
	}
	if err := ctx.Err(); err != nil {
		l.Fail(ctx)
		return summary, err
	}

	l.transition(ctx, StateDone)
	return summary, nil
}

func (l *Linker) materialize(ctx context.Context, repo member.Repository, name, branch string) (id int64, created bool, err error) {
	err = l.store.Savepoint(ctx, func(ctx context.Context) error {
		existing, err := repo.FindByNameBranch(ctx, name, branch)
		if err == nil {
			id = existing.ID()
			return nil
		}
		if !errors.Is(err, member.ErrNotFound) {
			return err
		}
		m, err := repo.Create(ctx, member.New(name, branch))
		if err != nil {
			return err
		}
		id, created = m.ID(), true
		return nil
	})
	if err != nil {
		return 0, false, err
	}
	return id, created, nil
}

func (l *Linker) applyLink(ctx context.Context, repo member.Repository, childID, parentID int64, fields logrus.Fields, summary *Summary) {
	fields["child_id"] = childID
	fields["parent_id"] = parentID

	var linked bool
	err := l.store.Savepoint(ctx, func(ctx context.Context) error {
		child, err := repo.GetByID(ctx, childID)
		if err != nil {
			return err
		}
		if _, ok := child.ParentID(); ok {
			return nil
		}
		if childID == parentID {
			return errSelfLink
		}
		if err := checkAncestry(ctx, repo, childID, parentID); err != nil {
			return err
		}
		linked, err = repo.LinkParent(ctx, childID, parentID)
		return err
	})
	switch {
	case err == nil && linked:
		summary.Linked++
	case err == nil:
		summary.AlreadyLinked++
	case errors.Is(err, errSelfLink), errors.Is(err, errCycle):
		summary.Rejected++
		fields["err"] = err.Error()
		logWithFields(ctx, logrus.WarnLevel, "family.import.pass2.rejected", fields)
	default:
		summary.Failed++
		fields["err"] = err.Error()
		logWithFields(ctx, logrus.ErrorLevel, "family.import.pass2.failed", fields)
	}
}

var (
	errSelfLink = errors.New("member cannot be its own parent")
	errCycle    = errors.New("link would create a cycle")
)

// checkAncestry walks up from parentID and fails if childID is reached.
func checkAncestry(ctx context.Context, repo member.Repository, childID, parentID int64) error {
	current := parentID
	for i := 0; i < maxAncestorWalk; i++ {
		m, err := repo.GetByID(ctx, current)
		if err != nil {
			return err
		}
		next, ok := m.ParentID()
		if !ok {
			return nil
		}
		if next == childID {
			return errCycle
		}
		current = next
	}
	return errCycle
}

func resolveByName(ctx context.Context, repo member.Repository, name, branch string) (int64, error) {
	m, err := repo.FindByNameBranch(ctx, name, branch)
	if err == nil {
		return m.ID(), nil
	}
	if !errors.Is(err, member.ErrNotFound) {
		return 0, err
	}
	all, err := repo.FindByName(ctx, name)
	if err != nil {
		return 0, err
	}
	if len(all) == 0 {
		return 0, member.ErrNotFound
	}
	return all[0].ID(), nil
}
