package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/conneroisu/smol/internal/server"
)

var serveCmd = &cobra.Command{
	Use:     "serve",
	Aliases: []string{"s"},
	Short:   "Build, watch and serve the site with live reload",
	Long: `Build the site, serve the output directory and rebuild on change.
Open pages reload after every rebuild; while a rebuild has failed they show
the errors on top of the page.

Examples:
  smol serve                      # Serve on localhost:8000
  smol serve -p 3000              # Serve on port 3000
  smol serve --live-reload=false  # Serve without the reload script`,
	PreRunE: func(cmd *cobra.Command, args []string) error {
		return bindFlags(cmd.Flags())
	},
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	AddServerFlags(serveCmd.Flags())
	AddWatchFlags(serveCmd.Flags())
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}
	fs := afero.NewOsFs()
	builder, err := newBuilder(fs, cfg, logger)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	out := cmd.OutOrStdout()
	if err := initialBuild(ctx, builder, out); err != nil {
		return err
	}

	srv := server.New(fs, server.Options{
		Host:       cfg.Server.Host,
		Port:       cfg.Server.Port,
		Root:       builder.Options().Out,
		LiveReload: cfg.Server.LiveReload,
	}, server.WithLogger(logger))
	srv.NotifyRebuild(nil, builder.Errors())

	fmt.Fprintf(out, "🌐 Serving %s at http://%s\n", builder.Options().Out, srv.Addr())

	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		return srv.Start(ctx)
	})
	group.Go(func() error {
		return watchSite(ctx, builder, logger, out, srv.NotifyRebuild)
	})
	return group.Wait()
}
