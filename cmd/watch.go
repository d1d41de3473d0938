package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/conneroisu/smol/internal/errors"
	"github.com/conneroisu/smol/internal/logging"
	"github.com/conneroisu/smol/internal/site"
	"github.com/conneroisu/smol/internal/watcher"
)

var watchCmd = &cobra.Command{
	Use:     "watch",
	Aliases: []string{"w"},
	Short:   "Build the site, then rebuild on change",
	Long: `Build the site, then watch the source directory. When a page changes it
is rebuilt together with every page that read it, for example an index
listing a posts directory.

Examples:
  smol watch                      # Watch with the configured debounce
  smol watch --debounce 250ms     # Accept changes to a file at most every 250ms`,
	PreRunE: func(cmd *cobra.Command, args []string) error {
		return bindFlags(cmd.Flags())
	},
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)

	AddWatchFlags(watchCmd.Flags())
}

func runWatch(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}
	builder, err := newBuilder(afero.NewOsFs(), cfg, logger)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	out := cmd.OutOrStdout()
	if err := initialBuild(ctx, builder, out); err != nil {
		return err
	}
	return watchSite(ctx, builder, logger, out, nil)
}

// initialBuild builds the site before watching. Page failures are printed
// and left for the next rebuild to fix; other errors stop the command.
func initialBuild(ctx context.Context, builder *site.Builder, w io.Writer) error {
	if err := buildSite(ctx, builder, w); err != nil && len(builder.Errors()) == 0 {
		return err
	}
	return nil
}

// RebuildFunc is told about every rebuild that did work, with the failures
// still outstanding afterwards.
type RebuildFunc func(paths []string, failures []errors.BuildError)

// watchSite rebuilds changed pages until ctx is done.
func watchSite(ctx context.Context, builder *site.Builder, logger logging.Logger, w io.Writer, onRebuild RebuildFunc) error {
	opts := builder.Options()

	fileWatcher, err := watcher.NewFileWatcher(
		watcher.WithLogger(logger),
		watcher.WithSkipDir(builder.SkipDir))
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer fileWatcher.Stop()

	builder.SetRequeue(fileWatcher.Enqueue)
	defer builder.SetRequeue(nil)
	defer builder.CancelPending()

	fileWatcher.AddFilter(watcher.NoHiddenFilter)
	fileWatcher.AddFilter(watcher.NoBackupFilter)
	fileWatcher.AddFilter(watcher.UnderFilter(opts.Out, opts.StaticDir))
	fileWatcher.AddHandler(rebuildHandler(builder, w, onRebuild))

	if err := fileWatcher.AddRecursive(opts.Source); err != nil {
		return fmt.Errorf("failed to watch %s: %w", opts.Source, err)
	}
	if err := fileWatcher.Start(ctx); err != nil {
		return fmt.Errorf("failed to start file watcher: %w", err)
	}

	fmt.Fprintf(w, "👀 Watching %s for changes (press Ctrl+C to stop)\n", opts.Source)
	<-ctx.Done()
	fmt.Fprintln(w, "Stopping watcher...")
	return nil
}

// rebuildHandler turns change events into cascading rebuilds.
func rebuildHandler(builder *site.Builder, w io.Writer, onRebuild RebuildFunc) watcher.ChangeHandler {
	return func(ctx context.Context, event watcher.ChangeEvent) error {
		paths, err := builder.HandleEvent(ctx, event)
		if len(paths) == 0 {
			return err
		}

		fmt.Fprintf(w, "🔄 %s changed, rebuilt %d file(s)\n", event.Path, len(paths))
		if err != nil {
			fmt.Fprintf(w, "❌ %v\n", err)
		}
		if onRebuild != nil {
			onRebuild(paths, builder.Errors())
		}
		return nil
	}
}
