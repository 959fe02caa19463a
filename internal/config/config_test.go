package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func newFlags() *pflag.FlagSet {
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("format", "text", "output format")
	flags.BoolP("verbose", "v", false, "verbose")
	flags.String("db", "", "database path")
	flags.Bool("indent", false, "indent output")
	flags.Int("limit", 20, "command-local flag")
	return flags
}

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load("", nil)
	require.NoError(t, err)

	assert.Equal(t, DefaultFormat, cfg.Format)
	assert.False(t, cfg.Verbose)
	assert.Equal(t, DefaultDB, cfg.DB)
	assert.False(t, cfg.Indent)
	assert.Equal(t, DefaultHistoryFile, cfg.HistoryFile)
	assert.Empty(t, cfg.PrimaryKeys)
	assert.Empty(t, cfg.FileUsed)
}

func TestLoad_DiscoversFileInWorkingDirectory(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	writeConfig(t, dir, "fql.yml", `
format: json
indent: true
primary_keys:
  activitypointer: activityid
`)

	cfg, err := Load("", nil)
	require.NoError(t, err)

	assert.Equal(t, "fql.yml", cfg.FileUsed)
	assert.Equal(t, "json", cfg.Format)
	assert.True(t, cfg.Indent)
	assert.Equal(t, map[string]string{"activitypointer": "activityid"}, cfg.PrimaryKeys)
}

func TestLoad_YamlPreferredOverYml(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	writeConfig(t, dir, "fql.yaml", "db: from_yaml.db\n")
	writeConfig(t, dir, "fql.yml", "db: from_yml.db\n")

	cfg, err := Load("", nil)
	require.NoError(t, err)
	assert.Equal(t, "from_yaml.db", cfg.DB)
}

func TestLoad_ExplicitFile(t *testing.T) {
	t.Chdir(t.TempDir())
	path := writeConfig(t, t.TempDir(), "custom.yaml", "history_file: /tmp/fql-history\n")

	cfg, err := Load(path, nil)
	require.NoError(t, err)
	assert.Equal(t, path, cfg.FileUsed)
	assert.Equal(t, "/tmp/fql-history", cfg.HistoryFile)
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "error reading config file")
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeConfig(t, t.TempDir(), "fql.yaml", "db: from_file.db\nverbose: false\n")
	t.Setenv("FQL_DB", "from_env.db")
	t.Setenv("FQL_VERBOSE", "true")

	cfg, err := Load(path, nil)
	require.NoError(t, err)
	assert.Equal(t, "from_env.db", cfg.DB)
	assert.True(t, cfg.Verbose)
}

func TestLoad_FlagPrecedence(t *testing.T) {
	path := writeConfig(t, t.TempDir(), "fql.yaml", "db: from_file.db\n")
	t.Setenv("FQL_DB", "from_env.db")

	flags := newFlags()
	require.NoError(t, flags.Set("db", "from_flag.db"))

	cfg, err := Load(path, flags)
	require.NoError(t, err)
	assert.Equal(t, "from_flag.db", cfg.DB, "flag value should override config file and env var")
}

func TestLoad_UnsetFlagsDoNotOverride(t *testing.T) {
	path := writeConfig(t, t.TempDir(), "fql.yaml", "format: json\n")

	flags := newFlags()
	require.NoError(t, flags.Set("limit", "5"))

	cfg, err := Load(path, flags)
	require.NoError(t, err)
	assert.Equal(t, "json", cfg.Format, "flag default must not override the file")
}

func TestLoad_InvalidFormat(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("FQL_FORMAT", "xml")

	_, err := Load("", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `invalid format "xml"`)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name      string
		cfg       Config
		errSubstr string
	}{
		{name: "valid", cfg: Config{Format: "json", DB: "x.db"}},
		{name: "bad format", cfg: Config{Format: "yaml", DB: "x.db"}, errSubstr: "invalid format"},
		{name: "empty db", cfg: Config{Format: "text"}, errSubstr: "db path"},
		{
			name:      "empty primary key",
			cfg:       Config{Format: "text", DB: "x.db", PrimaryKeys: map[string]string{"account": ""}},
			errSubstr: "primary_keys",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.errSubstr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errSubstr)
		})
	}
}
