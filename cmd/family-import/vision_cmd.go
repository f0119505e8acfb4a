package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/heshamhussin961-design/family-tree/modules/family/domain/aggregates/member"
	"github.com/heshamhussin961-design/family-tree/modules/family/infrastructure/sheets"
	"github.com/heshamhussin961-design/family-tree/modules/family/infrastructure/sources"
	"github.com/heshamhussin961-design/family-tree/modules/family/infrastructure/vision"
	"github.com/heshamhussin961-design/family-tree/modules/family/services"
	"github.com/heshamhussin961-design/family-tree/pkg/composables"
	"github.com/heshamhussin961-design/family-tree/pkg/configuration"
)

type visionOptions struct {
	images      []string
	branch      string
	provider    string
	dryRun      bool
	manifestDir string
}

func newVisionCmd(app *cliApp) *cobra.Command {
	var opts visionOptions

	cmd := &cobra.Command{
		Use:   "vision",
		Short: "Extract members from tree images with a vision model and import them",
		RunE: func(cmd *cobra.Command, args []string) error {
			conf := app.conf
			if opts.provider == "" {
				opts.provider = conf.Vision.Provider
			}
			if opts.manifestDir == "" {
				opts.manifestDir = conf.Import.ManifestDir
			}
			extractor, closeFn, err := newExtractor(conf.Vision, conf.RedisURL, opts.provider)
			if err != nil {
				return err
			}
			defer closeFn()
			return runVision(cmd.Context(), cmd.OutOrStdout(), conf, extractor, opts)
		},
	}

	cmd.Flags().StringArrayVar(&opts.images, "image", nil, "Image path or s3://bucket/key; repeat for a branch split over several images (required)")
	cmd.Flags().StringVar(&opts.branch, "branch", "", "Branch label (default: inferred from the first image name)")
	cmd.Flags().StringVar(&opts.provider, "provider", "", "Vision provider: openai or anthropic (default: VISION_PROVIDER)")
	cmd.Flags().BoolVar(&opts.dryRun, "dry-run", false, "Extract only, do not write to the store")
	cmd.Flags().StringVar(&opts.manifestDir, "manifest-dir", "", "Directory for the run manifest (default: none)")
	_ = cmd.MarkFlagRequired("image")

	return cmd
}

func newExtractor(conf configuration.VisionOptions, redisURL, provider string) (vision.Extractor, func(), error) {
	var (
		base vision.Extractor
		err  error
	)
	switch strings.ToLower(strings.TrimSpace(provider)) {
	case "openai":
		base, err = vision.NewOpenAIExtractor(vision.OpenAIConfig{
			APIKey:     conf.OpenAIKey,
			BaseURL:    conf.OpenAIBaseURL,
			Model:      conf.OpenAIModel,
			MaxTokens:  conf.MaxTokens,
			MaxElapsed: conf.RetryMaxTime,
		})
	case "anthropic":
		base, err = vision.NewAnthropicExtractor(vision.AnthropicConfig{
			APIKey:     conf.AnthropicKey,
			BaseURL:    conf.AnthropicURL,
			Model:      conf.AnthropicModel,
			MaxTokens:  conf.MaxTokens,
			MaxElapsed: conf.RetryMaxTime,
		})
	default:
		return nil, nil, withCode(exitUsage, fmt.Errorf("unsupported --provider: %s", provider))
	}
	if err != nil {
		return nil, nil, withCode(exitUsage, err)
	}

	switch conf.Cache {
	case "memory":
		return vision.NewCachedExtractor(base, vision.NewMemoryCache(), conf.CacheTTL), func() {}, nil
	case "redis":
		cache, err := vision.NewRedisCache(redisURL, "")
		if err != nil {
			return nil, nil, withCode(exitUsage, err)
		}
		return vision.NewCachedExtractor(base, cache, conf.CacheTTL), func() { _ = cache.Close() }, nil
	default:
		return base, func() {}, nil
	}
}

func runVision(ctx context.Context, out io.Writer, conf *configuration.Configuration, extractor vision.Extractor, opts visionOptions) error {
	if len(opts.images) == 0 {
		return withCode(exitUsage, fmt.Errorf("--image is required"))
	}
	loader := newLoader(conf)
	refs := make([]sources.Ref, 0, len(opts.images))
	for _, raw := range opts.images {
		ref, err := sources.ParseRef(raw)
		if err != nil {
			return withCode(exitUsage, err)
		}
		if _, err := vision.MediaTypeFor(ref.Name()); err != nil {
			return withCode(exitUsage, err)
		}
		refs = append(refs, ref)
	}

	branch := strings.TrimSpace(opts.branch)
	if branch == "" {
		branch = sheets.InferBranchName(refs[0].Name())
	}

	logger := composables.UseLogger(ctx).WithField("provider", extractor.Provider())
	var records []member.ExtractedRecord
	inputs := make([]string, 0, len(refs))
	for _, ref := range refs {
		data, err := loader.Fetch(ctx, ref)
		if err != nil {
			return withCode(exitUsage, fmt.Errorf("read %s: %w", ref, err))
		}
		img, err := vision.NewImage(ref.Name(), data)
		if err != nil {
			return withCode(exitUsage, err)
		}
		got, err := extractor.Extract(ctx, img, branch)
		if err != nil {
			return withCode(exitValidation, fmt.Errorf("extract %s: %w", ref, err))
		}
		logger.WithField("image", ref.String()).WithField("records", len(got)).Info("family.vision.extracted")
		records = append(records, got...)
		inputs = append(inputs, ref.String())
	}

	store, err := openStore(ctx, conf, !opts.dryRun)
	if err != nil {
		return err
	}
	defer store.Close()

	source := strings.Join(inputs, ",")
	report, runErr := services.NewImportService(store).ImportExtracted(ctx, records, services.ImportOptions{
		Source: source,
		Branch: branch,
		DryRun: opts.dryRun,
	})

	summary := importSummary{Status: status(report, runErr), Store: conf.Store, Input: source, Report: report}
	if runErr != nil {
		summary.Error = runErr.Error()
	}
	if report != nil && opts.manifestDir != "" {
		summary.Manifest = manifestPath(opts.manifestDir, report.RunID, time.Now())
		manifest := visionManifestV1{
			Version:  1,
			Store:    conf.Store,
			Provider: extractor.Provider(),
			Model:    extractor.Model(),
			Images:   inputs,
			Records:  records,
			Report:   report,
		}
		if err := writeJSONFile(summary.Manifest, manifest); err != nil {
			return err
		}
	}
	if err := writeJSONLine(out, summary); err != nil {
		return err
	}
	if err := writeMetrics(conf.Prometheus.TextfilePath); err != nil {
		return err
	}
	return serviceError(runErr)
}

type visionManifestV1 struct {
	Version  int                      `json:"version"`
	Store    string                   `json:"store"`
	Provider string                   `json:"provider"`
	Model    string                   `json:"model"`
	Images   []string                 `json:"images"`
	Records  []member.ExtractedRecord `json:"records"`
	Report   *services.ImportReport   `json:"report"`
}
