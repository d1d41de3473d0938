package cmd

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/conneroisu/smol/internal/version"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Long: `Display version information for smol including the version, git
commit, build time, Go version and target platform.

Examples:
  smol version                    # Show version details
  smol version --short            # Show the version only
  smol version -o json            # Output as JSON`,
	RunE: runVersionCommand,
}

var (
	versionFlags *OutputFlags
	versionShort bool
)

func init() {
	rootCmd.AddCommand(versionCmd)

	versionFlags = AddOutputFlags(versionCmd.Flags(), "text")
	versionCmd.Flags().BoolVar(&versionShort, "short", false, "Show short version only")
}

func runVersionCommand(cmd *cobra.Command, args []string) error {
	if err := versionFlags.Validate("text", "json"); err != nil {
		return err
	}
	return printVersion(cmd.OutOrStdout(), versionFlags.Format, versionShort)
}

func printVersion(w io.Writer, format string, short bool) error {
	info := version.GetBuildInfo()

	if format == "json" {
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")
		return encoder.Encode(info)
	}

	if short {
		_, err := fmt.Fprintln(w, version.GetShortVersion())
		return err
	}

	fmt.Fprintf(w, "smol %s", info.Version)
	if info.GitCommit != "unknown" && len(info.GitCommit) >= 7 {
		fmt.Fprintf(w, " (%s)", info.GitCommit[:7])
	}
	if info.Dirty {
		fmt.Fprint(w, " (dirty)")
	}
	fmt.Fprintln(w)

	if !info.BuildTime.IsZero() {
		fmt.Fprintf(w, "Built: %s\n", info.BuildTime.Format("2006-01-02 15:04:05 UTC"))
	}
	fmt.Fprintf(w, "Go: %s\n", info.GoVersion)
	_, err := fmt.Fprintf(w, "Platform: %s\n", info.Platform)
	return err
}
