package services

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/heshamhussin961-design/family-tree/modules/family/domain/aggregates/member"
	"github.com/heshamhussin961-design/family-tree/modules/family/domain/entities/grid"
	"github.com/heshamhussin961-design/family-tree/modules/family/domain/familycode"
)

// diagnosisCells is how many cells are logged when a sheet has no codes.
const diagnosisCells = 20

type ImportOptions struct {
	Source      string
	Branch      string
	Window      int
	MinSegments int
	DryRun      bool
}

type ImportReport struct {
	RunID      string          `json:"run_id"`
	Source     string          `json:"source,omitempty"`
	Sheet      string          `json:"sheet,omitempty"`
	Branch     string          `json:"branch"`
	State      RunState        `json:"state"`
	DryRun     bool            `json:"dry_run"`
	Match      *MatchStats     `json:"match,omitempty"`
	Unmatched  []UnmatchedCode `json:"unmatched,omitempty"`
	Summary    Summary         `json:"summary"`
	StartedAt  time.Time       `json:"started_at"`
	FinishedAt time.Time       `json:"finished_at"`
}

type ImportService struct {
	store Store
}

func NewImportService(store Store) *ImportService {
	return &ImportService{store: store}
}

// ImportGrid matches the codes of one sheet and writes the resulting tree.
// Record-level problems are counted in the report; an error is returned only
// when the store is unreachable or the run cannot be committed.
func (s *ImportService) ImportGrid(ctx context.Context, g grid.Grid, opts ImportOptions) (*ImportReport, error) {
	branch := strings.TrimSpace(opts.Branch)
	if branch == "" {
		return nil, newServiceError(CodeInvalidInput, "branch is required", nil)
	}
	// zero is the unset value
	window := opts.Window
	if window <= 0 {
		window = DefaultRowWindow
	}

	report := s.newReport(opts.Source, branch, opts.DryRun)
	report.Sheet = g.Sheet
	ctx = s.withRunLogger(ctx, report)

	result := NewMatcher(window, opts.MinSegments).Match(ctx, g, branch)
	report.Match = &result.Stats
	report.Unmatched = result.Unmatched

	if result.Stats.CodesFound == 0 {
		s.diagnoseNoCodes(ctx, g, opts.MinSegments)
	}
	logWithFields(ctx, logrus.InfoLevel, "family.match.done", logrus.Fields{
		"code_cells":      result.Stats.CodeCells,
		"codes_found":     result.Stats.CodesFound,
		"matched":         result.Stats.Matched,
		"dropped":         result.Stats.Dropped,
		"duplicate_cells": result.Stats.DuplicateCells,
		"name_cells":      result.Stats.NameCells,
		"parse_skips":     result.Stats.ParseSkips,
	})

	if opts.DryRun {
		report.FinishedAt = time.Now().UTC()
		return report, nil
	}

	err := s.run(ctx, report, func(ctx context.Context, l *Linker) (Summary, error) {
		return l.LinkCodes(ctx, result.Records)
	})
	return report, err
}

// ImportExtracted writes records returned by the vision collaborator.
// Records without a branch take opts.Branch.
func (s *ImportService) ImportExtracted(ctx context.Context, records []member.ExtractedRecord, opts ImportOptions) (*ImportReport, error) {
	branch := strings.TrimSpace(opts.Branch)
	report := s.newReport(opts.Source, branch, opts.DryRun)
	ctx = s.withRunLogger(ctx, report)

	prepared := make([]member.ExtractedRecord, len(records))
	for i, rec := range records {
		rec = rec.Normalize()
		if rec.BranchName == "" {
			rec.BranchName = branch
		}
		prepared[i] = rec
	}
	logWithFields(ctx, logrus.InfoLevel, "family.vision.records", logrus.Fields{
		"records": len(prepared),
	})

	if opts.DryRun {
		report.FinishedAt = time.Now().UTC()
		return report, nil
	}

	err := s.run(ctx, report, func(ctx context.Context, l *Linker) (Summary, error) {
		return l.LinkNames(ctx, prepared)
	})
	return report, err
}

func (s *ImportService) run(ctx context.Context, report *ImportReport, link func(context.Context, *Linker) (Summary, error)) error {
	linker := NewLinker(s.store)

	if err := s.store.Ping(ctx); err != nil {
		linker.Fail(ctx)
		s.finish(ctx, report, linker.State())
		return newServiceError(CodeStoreUnavailable, "store unreachable", err)
	}

	err := s.store.InTx(ctx, func(txCtx context.Context) error {
		summary, err := link(txCtx, linker)
		report.Summary = summary
		return err
	})
	if err != nil {
		linker.Fail(ctx)
		s.finish(ctx, report, linker.State())
		return newServiceError(CodeRunFailed, "import run failed", err)
	}

	s.finish(ctx, report, linker.State())
	return nil
}

func (s *ImportService) finish(ctx context.Context, report *ImportReport, state RunState) {
	report.State = state
	report.FinishedAt = time.Now().UTC()
	recordRun(state)
	recordSummary(report.Summary)

	level := logrus.InfoLevel
	if state == StateFailed {
		level = logrus.ErrorLevel
	}
	logWithFields(ctx, level, "family.import.done", logrus.Fields{
		"state":          state,
		"inserted":       report.Summary.Inserted,
		"reused":         report.Summary.Reused,
		"linked":         report.Summary.Linked,
		"already_linked": report.Summary.AlreadyLinked,
		"orphaned":       report.Summary.Orphaned,
		"rejected":       report.Summary.Rejected,
		"failed":         report.Summary.Failed,
		"skipped":        report.Summary.Skipped,
		"duration_ms":    report.FinishedAt.Sub(report.StartedAt).Milliseconds(),
	})
}

func (s *ImportService) newReport(source, branch string, dryRun bool) *ImportReport {
	return &ImportReport{
		RunID:     uuid.NewString(),
		Source:    source,
		Branch:    branch,
		State:     StateInit,
		DryRun:    dryRun,
		StartedAt: time.Now().UTC(),
	}
}

func (s *ImportService) withRunLogger(ctx context.Context, report *ImportReport) context.Context {
	return withLogFields(ctx, logrus.Fields{
		"run_id": report.RunID,
		"branch": report.Branch,
		"source": report.Source,
	})
}

// diagnoseNoCodes logs the top of a sheet that yielded no codes, which usually
// means the codes sit in an unexpected format.
func (s *ImportService) diagnoseNoCodes(ctx context.Context, g grid.Grid, minSegments int) {
	if minSegments < 1 {
		minSegments = familycode.DefaultMinSegments
	}
	rows, cols := g.Dimensions()
	logWithFields(ctx, logrus.WarnLevel, "family.match.no_codes", logrus.Fields{
		"sheet":        g.Sheet,
		"rows":         rows,
		"cols":         cols,
		"min_segments": minSegments,
	})
	for _, cell := range g.Sample(diagnosisCells) {
		logWithFields(ctx, logrus.WarnLevel, "family.match.sample_cell", logrus.Fields{
			"row":   cell.Row,
			"col":   cell.Col,
			"value": cell.Value,
		})
	}
}
