package cmd

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/conneroisu/smol/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show the effective configuration",
	Long: `Display the configuration after loading the config file, applying SMOL_
environment variables and flags, and filling in defaults. Top-level keys
the config file carries besides the settings appear under params.

Examples:
  smol config                     # Show as YAML
  smol config -o json             # Show as JSON`,
	RunE: runConfig,
}

var configFlags *OutputFlags

func init() {
	rootCmd.AddCommand(configCmd)

	configFlags = AddOutputFlags(configCmd.Flags(), "yaml")
}

func runConfig(cmd *cobra.Command, args []string) error {
	if err := configFlags.Validate("yaml", "json"); err != nil {
		return fmt.Errorf("invalid flags: %w", err)
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if used := viper.ConfigFileUsed(); used != "" {
		fmt.Fprintf(cmd.ErrOrStderr(), "# from %s\n", used)
	}
	return printConfig(out, cfg, configFlags.Format)
}

func printConfig(w io.Writer, cfg *config.Config, format string) error {
	settings := cfg.Settings()
	if format == "json" {
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")
		return encoder.Encode(settings)
	}

	encoder := yaml.NewEncoder(w)
	encoder.SetIndent(2)
	defer encoder.Close()
	return encoder.Encode(settings)
}
