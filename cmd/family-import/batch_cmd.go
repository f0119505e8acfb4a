package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/heshamhussin961-design/family-tree/modules/family/infrastructure/sources"
	"github.com/heshamhussin961-design/family-tree/modules/family/services"
	"github.com/heshamhussin961-design/family-tree/pkg/composables"
	"github.com/heshamhussin961-design/family-tree/pkg/configuration"
)

// batchFile is the YAML run description:
//
//	window: 10
//	min_segments: 2
//	sources:
//	  - path: trees/salem.xlsx
//	    branch: فرع سالم
//	    sheet: "0"
type batchFile struct {
	Window      int           `yaml:"window"`
	MinSegments int           `yaml:"min_segments"`
	DryRun      bool          `yaml:"dry_run"`
	Sources     []batchSource `yaml:"sources"`
}

type batchSource struct {
	Path   string `yaml:"path"`
	Branch string `yaml:"branch"`
	Sheet  string `yaml:"sheet"`
}

type batchOptions struct {
	config      string
	dir         string
	dryRun      bool
	manifestDir string
}

var batchExtensions = []string{".xlsx", ".xlsm", ".csv", ".xls"}

func newBatchCmd(app *cliApp) *cobra.Command {
	var opts batchOptions

	cmd := &cobra.Command{
		Use:   "batch",
		Short: "Import several spreadsheets, one run per file",
		RunE: func(cmd *cobra.Command, args []string) error {
			conf := app.conf
			if opts.manifestDir == "" {
				opts.manifestDir = conf.Import.ManifestDir
			}
			plan, err := loadBatch(cmd.Context(), newLoader(conf), conf, opts)
			if err != nil {
				return err
			}
			return runBatch(cmd.Context(), cmd.OutOrStdout(), conf, plan, opts.manifestDir)
		},
	}

	cmd.Flags().StringVar(&opts.config, "config", "", "YAML batch file")
	cmd.Flags().StringVar(&opts.dir, "dir", "", "Directory or s3://bucket/prefix holding .xlsx/.csv files")
	cmd.Flags().BoolVar(&opts.dryRun, "dry-run", false, "Match only, do not write to the store")
	cmd.Flags().StringVar(&opts.manifestDir, "manifest-dir", "", "Directory for run manifests (default: none)")
	cmd.MarkFlagsMutuallyExclusive("config", "dir")
	cmd.MarkFlagsOneRequired("config", "dir")

	return cmd
}

func parseBatchFile(r io.Reader) (batchFile, error) {
	var b batchFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&b); err != nil {
		return batchFile{}, err
	}
	if len(b.Sources) == 0 {
		return batchFile{}, fmt.Errorf("no sources listed")
	}
	for i, s := range b.Sources {
		if strings.TrimSpace(s.Path) == "" {
			return batchFile{}, fmt.Errorf("sources[%d]: path is required", i)
		}
	}
	if b.Window < 0 {
		return batchFile{}, fmt.Errorf("window must be non-negative")
	}
	if b.MinSegments < 0 {
		return batchFile{}, fmt.Errorf("min_segments must be non-negative")
	}
	return b, nil
}

func loadBatch(ctx context.Context, loader *sources.Loader, conf *configuration.Configuration, opts batchOptions) (batchFile, error) {
	var plan batchFile
	if opts.config != "" {
		f, err := os.Open(opts.config)
		if err != nil {
			return batchFile{}, withCode(exitUsage, fmt.Errorf("open %s: %w", opts.config, err))
		}
		defer f.Close()
		plan, err = parseBatchFile(f)
		if err != nil {
			return batchFile{}, withCode(exitValidation, fmt.Errorf("parse %s: %w", opts.config, err))
		}
	} else {
		dir, err := sources.ParseRef(opts.dir)
		if err != nil {
			return batchFile{}, withCode(exitUsage, err)
		}
		refs, err := loader.List(ctx, dir, batchExtensions...)
		if err != nil {
			return batchFile{}, withCode(exitUsage, fmt.Errorf("list %s: %w", dir, err))
		}
		if len(refs) == 0 {
			return batchFile{}, withCode(exitUsage, fmt.Errorf("no spreadsheets found in %s", dir))
		}
		for _, ref := range refs {
			plan.Sources = append(plan.Sources, batchSource{Path: ref.String()})
		}
	}
	if plan.Window == 0 {
		plan.Window = conf.Import.RowWindow
	}
	if plan.MinSegments == 0 {
		plan.MinSegments = conf.Import.MinSegments
	}
	plan.DryRun = plan.DryRun || opts.dryRun
	return plan, nil
}

type batchTotals struct {
	Status    string              `json:"status"`
	Files     int                 `json:"files"`
	Succeeded int                 `json:"succeeded"`
	Failed    int                 `json:"failed"`
	Match     services.MatchStats `json:"match"`
	Summary   services.Summary    `json:"summary"`
}

func runBatch(ctx context.Context, out io.Writer, conf *configuration.Configuration, plan batchFile, manifestDir string) error {
	store, err := openStore(ctx, conf, !plan.DryRun)
	if err != nil {
		return err
	}
	defer store.Close()

	loader := newLoader(conf)
	logger := composables.UseLogger(ctx)
	totals := batchTotals{Files: len(plan.Sources)}
	var firstErr error

	for _, src := range plan.Sources {
		opts := importOptions{
			file:        src.Path,
			branch:      src.Branch,
			sheet:       src.Sheet,
			window:      plan.Window,
			minSegments: plan.MinSegments,
			dryRun:      plan.DryRun,
		}
		summary, err := importOne(ctx, loader, store, conf, opts, manifestDir)
		if werr := writeJSONLine(out, summary); werr != nil {
			return werr
		}
		if err != nil {
			totals.Failed++
			logger.WithField("source", src.Path).WithError(err).Error("family.batch.source_failed")
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		totals.Succeeded++
		if summary.Report.Match != nil {
			addMatch(&totals.Match, *summary.Report.Match)
		}
		totals.Summary.Add(summary.Report.Summary)
	}

	totals.Status = "completed"
	if totals.Failed > 0 {
		totals.Status = "completed_with_errors"
	}
	if err := writeJSONLine(out, totals); err != nil {
		return err
	}
	if err := writeMetrics(conf.Prometheus.TextfilePath); err != nil {
		return err
	}
	if firstErr != nil {
		return withCode(exitCode(firstErr), fmt.Errorf("%d of %d sources failed: %w", totals.Failed, totals.Files, firstErr))
	}
	return nil
}

// importOne runs a single batch source against the shared store.
func importOne(ctx context.Context, loader *sources.Loader, store familyStore, conf *configuration.Configuration, opts importOptions, manifestDir string) (importSummary, error) {
	summary := importSummary{Store: conf.Store, Input: opts.file}
	fail := func(err error) (importSummary, error) {
		summary.Status = "failed"
		summary.Error = err.Error()
		return summary, err
	}

	ref, err := sources.ParseRef(opts.file)
	if err != nil {
		return fail(withCode(exitUsage, err))
	}
	summary.Input = ref.String()
	g, err := loadGrid(ctx, loader, ref, opts.sheet)
	if err != nil {
		return fail(err)
	}
	report, err := importGrid(ctx, store, g, ref, opts)
	summary.Report = report
	if report != nil && manifestDir != "" {
		summary.Manifest = manifestPath(manifestDir, report.RunID, time.Now())
		if werr := writeJSONFile(summary.Manifest, newManifest(conf.Store, ref, opts, report)); werr != nil {
			return fail(werr)
		}
	}
	if err != nil {
		return fail(serviceError(err))
	}
	summary.Status = status(report, nil)
	return summary, nil
}

func addMatch(dst *services.MatchStats, s services.MatchStats) {
	dst.CodeCells += s.CodeCells
	dst.CodesFound += s.CodesFound
	dst.Matched += s.Matched
	dst.Dropped += s.Dropped
	dst.DuplicateCells += s.DuplicateCells
	dst.ParseSkips += s.ParseSkips
	dst.NameCells += s.NameCells
}
