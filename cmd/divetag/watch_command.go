package main

import (
	"context"
	"errors"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/hyperjump/divetag/internal/cli"
	"github.com/hyperjump/divetag/internal/config"
	"github.com/hyperjump/divetag/internal/matcher"
	"github.com/hyperjump/divetag/internal/pipeline"
	"github.com/hyperjump/divetag/internal/sidecar"
	"github.com/hyperjump/divetag/internal/storage"
	"github.com/hyperjump/divetag/internal/watcher"
)

type watchOptions struct {
	diveLog         string
	dirs            []string
	autoSelect      bool
	processExisting bool
	dryRun          bool
}

func newWatchCommand(ctx *commandContext) *cobra.Command {
	var opts watchOptions
	cmd := &cobra.Command{
		Use:   "watch [DIR...]",
		Short: "Tag new media files as they appear",
		Long: `Watch directories and tag every new media file once it stops changing.
Ambiguous matches are skipped unless --auto-select is set. Directories default
to watch.directories from the config.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			opts.dirs = args
			return runWatch(cmd, cfg, ctx.logger(false), opts)
		},
	}
	cmd.Flags().StringVarP(&opts.diveLog, "subsurface-file", "s", "", "Path to the Subsurface dive log (.ssrf)")
	cmd.Flags().BoolVar(&opts.autoSelect, "auto-select", false, "Take the best ranked dive for ambiguous files")
	cmd.Flags().BoolVar(&opts.processExisting, "process-existing", false, "Also tag files already present at startup")
	cmd.Flags().BoolVarP(&opts.dryRun, "dry-run", "n", false, "Match files without changing them")
	_ = cmd.MarkFlagRequired("subsurface-file")
	return cmd
}

func runWatch(cmd *cobra.Command, cfg *config.Config, logger *zap.Logger, opts watchOptions) error {
	defer logger.Sync()
	dirs := opts.dirs
	if len(dirs) == 0 {
		dirs = cfg.Watch.Directories
	}
	if len(dirs) == 0 {
		return errors.New("no directories to watch: pass DIR or set watch.directories")
	}
	for i, d := range dirs {
		abs, err := filepath.Abs(d)
		if err != nil {
			return err
		}
		dirs[i] = abs
	}

	index, err := loadIndex(opts.diveLog, logger)
	if err != nil {
		return err
	}
	lock, err := storage.AcquireRunLock(cfg.Storage.LockPath())
	if err != nil {
		return err
	}
	defer lock.Release()
	store, err := openLedger(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	decider := matcher.SkipDecider
	if opts.autoSelect {
		decider = matcher.FirstChoiceDecider
	}
	m := matcher.New(index, policyFor(cfg))
	runner := pipeline.NewRunner(
		newChain(cfg, logger),
		m,
		matcher.NewDisambiguator(decider, matcher.WithLogger(logger), matcher.WithPolicy(m.Policy())),
		sidecar.NewMerger(sidecar.WithLogger(logger)),
		pipeline.WithLogger(logger),
		pipeline.WithLedger(store),
		pipeline.WithMediaRoot(dirs[0]),
		pipeline.WithDryRun(opts.dryRun),
		pipeline.WithSkipProcessed(true),
		pipeline.WithExtraKeywords(cfg.Sidecar.ExtraKeywords...),
	)

	filter := watcher.Filter{
		Extensions: cfg.Media.Extensions(),
		Recursive:  cfg.Watch.RecursiveOrDefault(),
		Exclude:    cfg.Media.ExcludeFolders,
	}
	var existing []string
	for _, dir := range dirs {
		paths, err := watcher.ListMedia(dir, filter)
		if err != nil {
			return err
		}
		existing = append(existing, paths...)
	}

	ctx := cmd.Context()
	session, err := runner.Start(ctx)
	if err != nil {
		return err
	}

	queue := make(chan string, 64)
	w := watcher.NewWatcher(dirs, filter, func(path string) {
		select {
		case queue <- path:
		case <-ctx.Done():
		}
	}, watcher.WithLogger(logger), watcher.WithDebounce(cfg.Watch.Debounce))
	w.MarkSeen(existing...)
	if err := w.Start(ctx); err != nil {
		return err
	}
	defer w.Stop()
	logger.Info("watching for media",
		zap.Strings("dirs", dirs),
		zap.Int("existing", len(existing)),
		zap.String("run_id", session.RunID()))

	if opts.processExisting {
		for _, path := range existing {
			if ctx.Err() != nil {
				break
			}
			session.Process(ctx, path)
		}
	}

	// A single consumer keeps the session and its summary single-threaded.
	for done := false; !done; {
		select {
		case path := <-queue:
			session.Process(ctx, path)
		case <-ctx.Done():
			done = true
		}
	}

	summary, err := session.Finish(context.WithoutCancel(ctx))
	if err != nil {
		logger.Warn("failed to record run", zap.Error(err))
	}
	return cli.WriteReport(cmd.OutOrStdout(), &cli.Report{
		RunID:     session.RunID(),
		DryRun:    opts.dryRun,
		CameraTag: cfg.Matching.CameraTag,
		Summary:   summary,
		Warnings:  pipeline.CheckCameraTags(index, summary, cfg.Matching.CameraTag),
	}, cli.OutputText, false)
}
