package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/heshamhussin961-design/family-tree/modules/family/domain/entities/grid"
	"github.com/heshamhussin961-design/family-tree/modules/family/infrastructure/sheets"
	"github.com/heshamhussin961-design/family-tree/modules/family/infrastructure/sources"
	"github.com/heshamhussin961-design/family-tree/modules/family/services"
	"github.com/heshamhussin961-design/family-tree/pkg/configuration"
)

type importOptions struct {
	file        string
	branch      string
	sheet       string
	window      int
	minSegments int
	dryRun      bool
	manifestDir string
}

func newImportCmd(app *cliApp) *cobra.Command {
	var opts importOptions

	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import one coded spreadsheet (.xlsx or .csv, local or s3://)",
		RunE: func(cmd *cobra.Command, args []string) error {
			conf := app.conf
			if !cmd.Flags().Changed("window") {
				opts.window = conf.Import.RowWindow
			}
			if !cmd.Flags().Changed("min-segments") {
				opts.minSegments = conf.Import.MinSegments
			}
			if opts.manifestDir == "" {
				opts.manifestDir = conf.Import.ManifestDir
			}
			return runImport(cmd.Context(), cmd.OutOrStdout(), conf, opts)
		},
	}

	cmd.Flags().StringVar(&opts.file, "file", "", "Spreadsheet path or s3://bucket/key (required)")
	cmd.Flags().StringVar(&opts.branch, "branch", "", "Branch label (default: inferred from the file name)")
	cmd.Flags().StringVar(&opts.sheet, "sheet", "", "Sheet name or 0-based index (default: first sheet)")
	cmd.Flags().IntVar(&opts.window, "window", services.DefaultRowWindow, "Rows searched above and below a code for its name")
	cmd.Flags().IntVar(&opts.minSegments, "min-segments", 2, "Minimum code segments; 1 accepts bare codes like \"1\"")
	cmd.Flags().BoolVar(&opts.dryRun, "dry-run", false, "Match only, do not write to the store")
	cmd.Flags().StringVar(&opts.manifestDir, "manifest-dir", "", "Directory for the run manifest (default: none)")
	_ = cmd.MarkFlagRequired("file")

	return cmd
}

type importSummary struct {
	Status   string                 `json:"status"`
	Store    string                 `json:"store"`
	Input    string                 `json:"input"`
	Manifest string                 `json:"manifest,omitempty"`
	Error    string                 `json:"error,omitempty"`
	Report   *services.ImportReport `json:"report,omitempty"`
}

type importManifestV1 struct {
	Version int    `json:"version"`
	Store   string `json:"store"`
	Input   struct {
		Path        string `json:"path"`
		Sheet       string `json:"sheet,omitempty"`
		Window      int    `json:"window,omitempty"`
		MinSegments int    `json:"min_segments,omitempty"`
	} `json:"input"`
	Report *services.ImportReport `json:"report"`
}

func runImport(ctx context.Context, out io.Writer, conf *configuration.Configuration, opts importOptions) error {
	if strings.TrimSpace(opts.file) == "" {
		return withCode(exitUsage, fmt.Errorf("--file is required"))
	}
	if opts.window < 1 {
		return withCode(exitUsage, fmt.Errorf("--window must be at least 1"))
	}
	if opts.minSegments < 1 {
		return withCode(exitUsage, fmt.Errorf("--min-segments must be at least 1"))
	}

	store, err := openStore(ctx, conf, !opts.dryRun)
	if err != nil {
		return err
	}
	defer store.Close()

	summary, runErr := importOne(ctx, newLoader(conf), store, conf, opts, opts.manifestDir)
	if err := writeJSONLine(out, summary); err != nil {
		return err
	}
	if err := writeMetrics(conf.Prometheus.TextfilePath); err != nil {
		return err
	}
	return runErr
}

func importGrid(ctx context.Context, store services.Store, g grid.Grid, ref sources.Ref, opts importOptions) (*services.ImportReport, error) {
	branch := strings.TrimSpace(opts.branch)
	if branch == "" {
		branch = sheets.InferBranchName(ref.Name())
	}
	return services.NewImportService(store).ImportGrid(ctx, g, services.ImportOptions{
		Source:      ref.String(),
		Branch:      branch,
		Window:      opts.window,
		MinSegments: opts.minSegments,
		DryRun:      opts.dryRun,
	})
}

func loadGrid(ctx context.Context, loader *sources.Loader, ref sources.Ref, sheet string) (grid.Grid, error) {
	if _, err := sheets.DetectFormat(ref.Name()); err != nil {
		return grid.Grid{}, withCode(exitUsage, err)
	}
	data, err := loader.Fetch(ctx, ref)
	if err != nil {
		return grid.Grid{}, withCode(exitUsage, fmt.Errorf("read %s: %w", ref, err))
	}
	g, err := sheets.Read(ref.Name(), bytes.NewReader(data), sheet)
	if err != nil {
		if errors.Is(err, sheets.ErrSheetNotFound) {
			return grid.Grid{}, withCode(exitUsage, err)
		}
		return grid.Grid{}, withCode(exitValidation, fmt.Errorf("parse %s: %w", ref, err))
	}
	return g, nil
}

func newManifest(store string, ref sources.Ref, opts importOptions, report *services.ImportReport) *importManifestV1 {
	m := &importManifestV1{Version: 1, Store: store, Report: report}
	m.Input.Path = ref.String()
	m.Input.Sheet = report.Sheet
	m.Input.Window = opts.window
	m.Input.MinSegments = opts.minSegments
	return m
}

func status(report *services.ImportReport, err error) string {
	switch {
	case err != nil:
		return "failed"
	case report != nil && report.DryRun:
		return "dry_run"
	default:
		return "applied"
	}
}
