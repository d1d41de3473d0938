package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

var outputFormats = []string{"table", "json", "yaml"}

// OutputFlags select how a command prints its result.
type OutputFlags struct {
	Format string
}

// AddOutputFlags registers --output on fs. def is the default format.
func AddOutputFlags(fs *pflag.FlagSet, def string) *OutputFlags {
	flags := &OutputFlags{}
	fs.StringVarP(&flags.Format, "output", "o", def,
		fmt.Sprintf("Output format (%s)", strings.Join(outputFormats, "|")))
	return flags
}

// Validate checks the format against the supported ones.
func (f *OutputFlags) Validate(allowed ...string) error {
	if len(allowed) == 0 {
		allowed = outputFormats
	}
	format := strings.ToLower(f.Format)
	for _, a := range allowed {
		if format == a {
			f.Format = format
			return nil
		}
	}
	return fmt.Errorf("invalid output format %s, must be one of: %s",
		f.Format, strings.Join(allowed, ", "))
}

// AddServerFlags registers the dev server flags on fs.
func AddServerFlags(fs *pflag.FlagSet) {
	fs.IntP("port", "p", 8000, "Port to serve on")
	fs.String("host", "localhost", "Host to bind to")
	fs.Bool("live-reload", true, "Reload browsers after each rebuild")
}

// AddWatchFlags registers the watch flags on fs.
func AddWatchFlags(fs *pflag.FlagSet) {
	fs.Duration("debounce", time.Second, "Ignore repeated changes to a file within this window")
}

// flagBindings maps flag names to the configuration keys they override.
var flagBindings = map[string]string{
	"port":        "server.port",
	"host":        "server.host",
	"live-reload": "server.live_reload",
	"debounce":    "watch.debounce",
	"clean":       "clean",
}

// bindFlags binds the flags fs defines to their configuration keys. It runs
// once the command is chosen, since several commands share flag names and
// viper keeps one flag per key.
func bindFlags(fs *pflag.FlagSet) error {
	for name, key := range flagBindings {
		if flag := fs.Lookup(name); flag != nil {
			if err := viper.BindPFlag(key, flag); err != nil {
				return err
			}
		}
	}
	return nil
}
