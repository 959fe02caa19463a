// Package config loads fql settings.
//
// Sources are layered, highest priority last:
//
//  1. built-in defaults
//  2. a YAML file: --config, else fql.yaml or fql.yml in the working directory
//  3. FQL_* environment variables (FQL_DB -> db, FQL_HISTORY_FILE -> history_file)
//  4. command-line flags that were explicitly set
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

// Defaults.
const (
	DefaultFormat      = "text"
	DefaultDB          = ".fql/fql.db"
	DefaultHistoryFile = ".fql/history"
)

// EnvPrefix is the prefix of environment variables read by Load.
const EnvPrefix = "FQL_"

// Config holds all fql settings.
type Config struct {
	Format      string            `koanf:"format"`
	Verbose     bool              `koanf:"verbose"`
	DB          string            `koanf:"db"`
	Indent      bool              `koanf:"indent"`
	HistoryFile string            `koanf:"history_file"`
	PrimaryKeys map[string]string `koanf:"primary_keys"`

	// FileUsed is the config file that was loaded, or "".
	FileUsed string `koanf:"-"`
}

// flagKeys maps flag names to config keys. Flags not listed here belong to
// a single command and never reach the config.
var flagKeys = map[string]string{
	"format":       "format",
	"verbose":      "verbose",
	"db":           "db",
	"indent":       "indent",
	"history-file": "history_file",
}

// Load builds a Config from every source. cfgFile may be empty; flags may
// be nil.
func Load(cfgFile string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(map[string]interface{}{
		"format":       DefaultFormat,
		"verbose":      false,
		"db":           DefaultDB,
		"indent":       false,
		"history_file": DefaultHistoryFile,
	}, "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	used := findConfigFile(cfgFile)
	if used != "" {
		if err := k.Load(file.Provider(used), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", used, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	if flags != nil {
		if err := k.Load(posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, interface{}) {
			key, ok := flagKeys[f.Name]
			if !ok || !f.Changed {
				return "", nil
			}
			return key, posflag.FlagVal(flags, f)
		}), nil); err != nil {
			return nil, fmt.Errorf("failed to load flags: %w", err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}
	cfg.FileUsed = used

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate reports settings no command can work with.
func (c *Config) Validate() error {
	switch c.Format {
	case "text", "json":
	default:
		return fmt.Errorf("invalid format %q (must be 'text' or 'json')", c.Format)
	}
	if c.DB == "" {
		return fmt.Errorf("db path must not be empty")
	}
	for entity, pk := range c.PrimaryKeys {
		if entity == "" || pk == "" {
			return fmt.Errorf("primary_keys: entity and key must both be set (got %q: %q)", entity, pk)
		}
	}
	return nil
}

// findConfigFile picks the config file to load.
// Priority: explicit path > fql.yaml > fql.yml
func findConfigFile(explicit string) string {
	if explicit != "" {
		return explicit
	}
	for _, name := range []string{"fql.yaml", "fql.yml"} {
		if _, err := os.Stat(name); err == nil {
			return name
		}
	}
	return ""
}
