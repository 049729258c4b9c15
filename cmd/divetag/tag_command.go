package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/hyperjump/divetag/internal/cli"
	"github.com/hyperjump/divetag/internal/config"
	"github.com/hyperjump/divetag/internal/matcher"
	"github.com/hyperjump/divetag/internal/models"
	"github.com/hyperjump/divetag/internal/pipeline"
	"github.com/hyperjump/divetag/internal/prompt"
	"github.com/hyperjump/divetag/internal/sidecar"
	"github.com/hyperjump/divetag/internal/storage"
	"github.com/hyperjump/divetag/internal/watcher"
)

type tagOptions struct {
	diveLog        string
	mediaDir       string
	recursive      bool
	exclude        []string
	dryRun         bool
	verbose        bool
	nonInteractive bool
	autoSelect     bool
	skipProcessed  bool
	noLedger       bool
	exportPath     string
	format         string
}

func newTagCommand(ctx *commandContext) *cobra.Command {
	var opts tagOptions
	cmd := &cobra.Command{
		Use:   "tag",
		Short: "Apply dive site GPS and keywords to media files",
		Long: `Match every media file under the images directory to a dive by capture time,
write the dive site GPS into the file, and merge the site name into its XMP sidecar.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			return runTag(cmd, cfg, ctx.logger(opts.verbose), opts)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&opts.diveLog, "subsurface-file", "s", "", "Path to the Subsurface dive log (.ssrf)")
	flags.StringVarP(&opts.mediaDir, "images-dir", "i", "", "Directory containing media files")
	flags.BoolVarP(&opts.recursive, "recursive", "r", false, "Search subdirectories")
	flags.StringArrayVarP(&opts.exclude, "exclude-folders", "e", nil, "Folder name to skip (repeatable)")
	flags.BoolVarP(&opts.dryRun, "dry-run", "n", false, "Show what would be done without changing files")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "Describe every match and list items")
	flags.BoolVar(&opts.nonInteractive, "non-interactive", false, "Never prompt; ambiguous files are skipped")
	flags.BoolVar(&opts.autoSelect, "auto-select", false, "Take the best ranked dive instead of prompting")
	flags.BoolVar(&opts.skipProcessed, "skip-processed", false, "Skip files a previous run already tagged")
	flags.BoolVar(&opts.noLedger, "no-ledger", false, "Do not record this run")
	flags.StringVar(&opts.exportPath, "export", "", "Write item results to an XLSX workbook")
	flags.StringVar(&opts.format, "format", "text", "Output format: text or json")
	_ = cmd.MarkFlagRequired("subsurface-file")
	_ = cmd.MarkFlagRequired("images-dir")
	return cmd
}

func runTag(cmd *cobra.Command, cfg *config.Config, logger *zap.Logger, opts tagOptions) error {
	defer logger.Sync()
	out := cmd.OutOrStdout()
	format, err := cli.ParseOutputFormat(opts.format)
	if err != nil {
		return err
	}
	if opts.skipProcessed && opts.noLedger {
		return errors.New("--skip-processed needs the ledger; drop --no-ledger")
	}

	index, err := loadIndex(opts.diveLog, logger)
	if err != nil {
		return err
	}

	filter := watcher.Filter{
		Extensions: cfg.Media.Extensions(),
		Recursive:  opts.recursive || cfg.Media.Recursive,
		Exclude:    append(append([]string(nil), cfg.Media.ExcludeFolders...), opts.exclude...),
	}
	logger.Info("scanning for media",
		zap.String("dir", opts.mediaDir),
		zap.Bool("recursive", filter.Recursive),
		zap.Strings("exclude", filter.Exclude))
	paths, err := watcher.ListMedia(opts.mediaDir, filter)
	if err != nil {
		return err
	}
	if len(paths) == 0 {
		return fmt.Errorf("no supported media files found in %s", opts.mediaDir)
	}
	logger.Info("media found", zap.Int("files", len(paths)))

	lock, err := storage.AcquireRunLock(cfg.Storage.LockPath())
	if err != nil {
		return err
	}
	defer lock.Release()

	var ledger storage.Ledger
	if !opts.noLedger {
		store, err := openLedger(cfg)
		if err != nil {
			return err
		}
		defer store.Close()
		ledger = store
	}

	if opts.dryRun && format == cli.OutputText {
		fmt.Fprintln(out, "DRY RUN MODE - No changes will be made to files")
		fmt.Fprintln(out)
	}

	// Prompts must not corrupt JSON on stdout.
	promptOut := out
	if format == cli.OutputJSON {
		promptOut = cmd.ErrOrStderr()
	}
	m := matcher.New(index, policyFor(cfg))
	var resolver pipeline.Resolver = matcher.NewDisambiguator(
		chooseDecider(opts, os.Stdin, promptOut),
		matcher.WithLogger(logger),
		matcher.WithPolicy(m.Policy()),
	)
	if opts.verbose && format == cli.OutputText {
		resolver = describingResolver{next: resolver, w: out}
	}

	runner := pipeline.NewRunner(
		newChain(cfg, logger),
		m,
		resolver,
		sidecar.NewMerger(sidecar.WithLogger(logger)),
		pipeline.WithLogger(logger),
		pipeline.WithLedger(ledger),
		pipeline.WithMediaRoot(opts.mediaDir),
		pipeline.WithDryRun(opts.dryRun),
		pipeline.WithSkipProcessed(opts.skipProcessed),
		pipeline.WithExtraKeywords(cfg.Sidecar.ExtraKeywords...),
	)

	summary, runErr := runner.Run(cmd.Context(), paths)
	switch {
	case summary == nil:
		return runErr
	case runErr != nil && errors.Is(runErr, cmd.Context().Err()):
		logger.Info("operation cancelled by user")
	case runErr != nil:
		logger.Warn("failed to record run", zap.Error(runErr))
		runErr = nil
	}

	report := &cli.Report{
		RunID:     summary.RunID,
		DryRun:    opts.dryRun,
		CameraTag: cfg.Matching.CameraTag,
		Summary:   summary,
		Warnings:  pipeline.CheckCameraTags(index, summary, cfg.Matching.CameraTag),
	}
	if err := cli.WriteReport(out, report, format, opts.verbose); err != nil {
		return err
	}
	if opts.exportPath != "" {
		if err := cli.ExportXLSX(opts.exportPath, report); err != nil {
			return err
		}
		logger.Info("report exported", zap.String("path", opts.exportPath))
	}

	if runErr != nil {
		return runErr
	}
	if summary.ExitCode() != 0 {
		return errItemsFailed
	}
	return nil
}

// chooseDecider picks how ambiguous matches are settled: the best candidate
// with --auto-select, nothing when no one can answer, otherwise a terminal prompt.
func chooseDecider(opts tagOptions, in *os.File, out io.Writer) matcher.Decider {
	switch {
	case opts.autoSelect:
		return matcher.FirstChoiceDecider
	case opts.nonInteractive || !prompt.IsInteractive(in):
		return matcher.SkipDecider
	default:
		return prompt.NewTerminal(in, out)
	}
}

// describingResolver prints every resolved match for verbose runs.
type describingResolver struct {
	next pipeline.Resolver
	w    io.Writer
}

func (d describingResolver) Resolve(ctx context.Context, path string, ranked []models.Match) (*models.Match, error) {
	m, err := d.next.Resolve(ctx, path, ranked)
	if err == nil && m != nil {
		fmt.Fprintln(d.w, matcher.Describe(path, *m))
		fmt.Fprintln(d.w)
	}
	return m, err
}
