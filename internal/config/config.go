// Package config provides configuration management for smol sites using
// Viper for loading from smol.json or smol.yml files, SMOL_ environment
// variables, and command-line flags.
//
// Besides the settings below, any top-level key a config file carries is
// treated as a site parameter, so a plain smol.json of parameters keeps
// working.
package config

import (
	"sort"
	"time"

	"github.com/spf13/viper"

	"github.com/conneroisu/smol/internal/errors"
)

type Config struct {
	Source    string                 `mapstructure:"source" yaml:"source"`
	Out       string                 `mapstructure:"out" yaml:"out"`
	StaticDir string                 `mapstructure:"static_dir" yaml:"static_dir"`
	Clean     bool                   `mapstructure:"clean" yaml:"clean"`
	Templates []string               `mapstructure:"templates" yaml:"templates"`
	Params    map[string]interface{} `mapstructure:"params" yaml:"params"`
	Watch     WatchConfig            `mapstructure:"watch" yaml:"watch"`
	Server    ServerConfig           `mapstructure:"server" yaml:"server"`
	Log       LogConfig              `mapstructure:"log" yaml:"log"`
}

type WatchConfig struct {
	Debounce time.Duration `mapstructure:"debounce" yaml:"debounce"`
}

type ServerConfig struct {
	Host       string `mapstructure:"host" yaml:"host"`
	Port       int    `mapstructure:"port" yaml:"port"`
	LiveReload bool   `mapstructure:"live_reload" yaml:"live_reload"`
}

type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// knownKeys are the top-level settings; everything else is a parameter.
var knownKeys = map[string]bool{
	"source":     true,
	"out":        true,
	"static_dir": true,
	"clean":      true,
	"templates":  true,
	"params":     true,
	"watch":      true,
	"server":     true,
	"log":        true,
	"config":     true,
}

// SetDefaults registers the default value of every setting on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("source", ".")
	v.SetDefault("out", "./_site")
	v.SetDefault("static_dir", "./static")
	v.SetDefault("clean", true)
	v.SetDefault("templates", []string{".html"})
	v.SetDefault("params", map[string]interface{}{})
	v.SetDefault("watch.debounce", time.Second)
	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.live_reload", true)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}

// Load reads the configuration from v, folds unknown top-level keys into
// the params and validates the result. A top-level target names the source
// directory when source itself is not set; it stays visible as a parameter.
func Load(v *viper.Viper) (*Config, error) {
	if !v.IsSet("source") && v.IsSet("target") {
		v.Set("source", v.GetString("target"))
	}
	SetDefaults(v)

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, errors.NewConfigError(errors.ErrCodeConfigInvalid, "cannot decode configuration").
			WithContext("cause", err.Error())
	}

	// Handle templates set via viper (workaround for viper slice handling)
	if v.IsSet("templates") && len(config.Templates) == 0 {
		config.Templates = v.GetStringSlice("templates")
	}

	if config.Params == nil {
		config.Params = make(map[string]interface{})
	}
	for _, key := range extraKeys(v) {
		if _, ok := config.Params[key]; !ok {
			config.Params[key] = v.Get(key)
		}
	}

	if err := Validate(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

func extraKeys(v *viper.Viper) []string {
	var keys []string
	for key := range v.AllSettings() {
		if !knownKeys[key] {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return keys
}

// Settings returns the configuration as plain values for display, with
// durations written the way they are configured.
func (c *Config) Settings() map[string]interface{} {
	return map[string]interface{}{
		"source":     c.Source,
		"out":        c.Out,
		"static_dir": c.StaticDir,
		"clean":      c.Clean,
		"templates":  c.Templates,
		"params":     c.Params,
		"watch": map[string]interface{}{
			"debounce": c.Watch.Debounce.String(),
		},
		"server": map[string]interface{}{
			"host":        c.Server.Host,
			"port":        c.Server.Port,
			"live_reload": c.Server.LiveReload,
		},
		"log": map[string]interface{}{
			"level":  c.Log.Level,
			"format": c.Log.Format,
		},
	}
}
