package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/conneroisu/smol/internal/errors"
	"github.com/conneroisu/smol/internal/site"
)

var buildCmd = &cobra.Command{
	Use:     "build",
	Aliases: []string{"b"},
	Short:   "Build the site once",
	Long: `Render every page under the source directory into the output directory.
The static directory is copied first. A page that fails to build is reported
and the others are still built; the command then exits with an error.

Examples:
  smol build                      # Build . into ./_site
  smol build -s site --out public # Build site/ into public/
  smol build --clean=false        # Keep files already in the output directory`,
	PreRunE: func(cmd *cobra.Command, args []string) error {
		return bindFlags(cmd.Flags())
	},
	RunE: runBuild,
}

func init() {
	rootCmd.AddCommand(buildCmd)

	buildCmd.Flags().Bool("clean", true, "Remove the output directory before building")
}

func runBuild(cmd *cobra.Command, args []string) error {
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

	return buildSite(ctx, builder, cmd.OutOrStdout())
}

// buildSite runs a full build and prints its summary and failures to w.
func buildSite(ctx context.Context, builder *site.Builder, w io.Writer) error {
	opts := builder.Options()
	fmt.Fprintf(w, "🔨 Building %s into %s\n", opts.Source, opts.Out)

	summary, err := builder.Build(ctx)
	printSummary(w, summary)
	if failures := builder.Errors(); len(failures) > 0 {
		printFailures(w, failures)
		return fmt.Errorf("%d page(s) failed to build", len(failures))
	}
	return err
}

func printSummary(w io.Writer, summary site.Summary) {
	fmt.Fprintf(w, "   Rendered: %d\n", summary.Rendered)
	fmt.Fprintf(w, "   Copied:   %d\n", summary.Copied)
	fmt.Fprintf(w, "   Static:   %d\n", summary.Static)
	if summary.Failed > 0 {
		fmt.Fprintf(w, "   Failed:   %d\n", summary.Failed)
	}
	fmt.Fprintf(w, "   Duration: %s\n", summary.Duration.Round(time.Microsecond))
}

func printFailures(w io.Writer, failures []errors.BuildError) {
	fmt.Fprintln(w, "❌ Build errors:")
	for i := range failures {
		fmt.Fprintf(w, "   %s\n", failures[i].Error())
	}
}
