package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/conneroisu/smol/internal/config"
	"github.com/conneroisu/smol/internal/logging"
	"github.com/conneroisu/smol/internal/site"
)

var cfgFile string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "smol",
	Short: "A small static site builder",
	Long: `smol renders a tree of HTML documents written in a small template
language into a static site.

Documents may start with header comments such as <!-- title: Home -->,
substitute values with {{ title }} and iterate with
{% for post in list_files("posts") %} ... {% endfor %}.

Quick Start:
  smol build                      Build the site into ./_site
  smol watch                      Build, then rebuild on change
  smol serve                      Build, watch and serve with live reload
  smol list                       List pages and their headers`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default is smol.json or smol.yml, can also use SMOL_CONFIG_FILE env var)")
	flags.StringP("log-level", "l", "info", "log level (debug, info, warn, error)")
	flags.StringP("source", "s", ".", "directory holding the site pages")
	flags.String("out", "./_site", "output directory")

	_ = viper.BindPFlag("log.level", flags.Lookup("log-level"))
	_ = viper.BindPFlag("source", flags.Lookup("source"))
	_ = viper.BindPFlag("out", flags.Lookup("out"))
}

// initConfig points viper at the configuration file and the SMOL_
// environment variables.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else if envConfigFile := os.Getenv("SMOL_CONFIG_FILE"); envConfigFile != "" {
		viper.SetConfigFile(envConfigFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName("smol")
	}

	viper.SetEnvPrefix("SMOL")
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	err := viper.ReadInConfig()
	if _, ok := err.(viper.ConfigFileNotFoundError); ok && cfgFile == "" {
		viper.SetConfigName(".smol")
		err = viper.ReadInConfig()
	}
	switch err.(type) {
	case nil:
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	case viper.ConfigFileNotFoundError:
	default:
		fmt.Fprintln(os.Stderr, "Warning: cannot read config file:", err)
	}
}

// loadConfig loads and validates the effective configuration.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(viper.GetViper())
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return cfg, nil
}

// newLogger builds the logger described by cfg.Log.
func newLogger(cfg *config.Config) (logging.Logger, error) {
	level, err := logging.ParseLevel(cfg.Log.Level)
	if err != nil {
		return nil, err
	}
	return logging.NewLogger(&logging.LoggerConfig{
		Level:  level,
		Format: cfg.Log.Format,
		Output: os.Stderr,
	}), nil
}

// newBuilder creates the site builder for cfg over fs.
func newBuilder(fs afero.Fs, cfg *config.Config, logger logging.Logger) (*site.Builder, error) {
	params, err := cfg.Env()
	if err != nil {
		return nil, err
	}
	return site.New(fs, site.Options{
		Source:         cfg.Source,
		Out:            cfg.Out,
		StaticDir:      cfg.StaticDir,
		Clean:          cfg.Clean,
		TextExtensions: cfg.Templates,
		Params:         params,
		Debounce:       cfg.Watch.Debounce,
	}, site.WithLogger(logger)), nil
}
