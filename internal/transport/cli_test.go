package transport

import (
	"bytes"
	"encoding/json"
	"io"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"compactpdf/internal/application"
	"compactpdf/internal/domain/compression"
	"compactpdf/internal/domain/preferences"
	"compactpdf/internal/pdfdoc/pdftest"
)

func isolate(t *testing.T) {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("HOME", dir)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(dir, ".config"))
	t.Setenv("COMPACTPDF_DATA_DIR", filepath.Join(dir, "data"))
	t.Setenv("COMPACTPDF_WORKING_DIR", filepath.Join(dir, "work"))
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := NewRootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(io.Discard)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestRootCommand_Tree(t *testing.T) {
	root := NewRootCommand()
	for _, name := range []string{"compress", "batch", "analyze", "prefs", "stats", "backups", "restore", "cache", "status"} {
		cmd, _, err := root.Find([]string{name})
		require.NoError(t, err, name)
		assert.Equal(t, name, cmd.Name())
		assert.NotEmpty(t, cmd.Short, name)
	}
	for _, flag := range []string{"config", "log-level", "json"} {
		assert.NotNil(t, root.PersistentFlags().Lookup(flag), flag)
	}
}

func TestCompressCommand_JSON(t *testing.T) {
	isolate(t)
	input := filepath.Join(t.TempDir(), "doc.pdf")
	require.NoError(t, pdftest.Write(input, pdftest.Options{Pages: 2, Lines: 120}))

	out, err := run(t, "compress", input, "--level", "minimal", "--json")
	require.NoError(t, err)

	var outcome compression.CompressionOutcome
	require.NoError(t, json.Unmarshal([]byte(out), &outcome))
	assert.True(t, outcome.Success)
	assert.Equal(t, compression.LevelMinimal, outcome.Level)
	assert.FileExists(t, outcome.OutputPath)

	out, err = run(t, "stats", "--json")
	require.NoError(t, err)
	assert.Contains(t, out, `"total_runs": 1`)
}

func TestCompressCommand_Failure(t *testing.T) {
	isolate(t)

	out, err := run(t, "compress", filepath.Join(t.TempDir(), "missing.pdf"))
	assert.Error(t, err)
	assert.Contains(t, out, "FAILED")

	_, err = run(t, "compress", "a.pdf", "--level", "ultra")
	assert.ErrorIs(t, err, application.ErrInvalidCompressionLevel)
}

func TestPrefsCommands(t *testing.T) {
	isolate(t)

	_, err := run(t, "prefs", "set", "default_compression_level", "aggressive")
	require.NoError(t, err)
	_, err = run(t, "prefs", "set", "use_cache", "false")
	require.NoError(t, err)
	_, err = run(t, "prefs", "set", "technique_override", "stream_compression,metadata_removal")
	require.NoError(t, err)

	out, err := run(t, "prefs", "get", "--json")
	require.NoError(t, err)

	var prefs preferences.UserPreferencesData
	require.NoError(t, json.Unmarshal([]byte(out), &prefs))
	assert.Equal(t, "aggressive", prefs.DefaultCompressionLevel)
	assert.False(t, prefs.UseCache)
	assert.Equal(t, []string{"stream_compression", "metadata_removal"}, prefs.TechniqueOverride)

	_, err = run(t, "prefs", "set", "default_compression_level", "ultra")
	assert.Error(t, err)
}

func TestRestoreCommand_Unknown(t *testing.T) {
	isolate(t)

	_, err := run(t, "restore", "does-not-exist")
	assert.ErrorIs(t, err, application.ErrBackupNotFound)
}

func TestStatusCommand(t *testing.T) {
	isolate(t)

	out, err := run(t, "status", "--json")
	require.NoError(t, err)

	var status application.AppStatus
	require.NoError(t, json.Unmarshal([]byte(out), &status))
	assert.NotEmpty(t, status.DatabasePath)
	assert.Positive(t, status.Workers)
}

func TestParseValue(t *testing.T) {
	assert.Equal(t, true, parseValue("true"))
	assert.Equal(t, "aggressive", parseValue("aggressive"))
	assert.Equal(t, []any{"a", "b"}, parseValue(`["a","b"]`))
	assert.Equal(t, float64(3), parseValue("3"))
}

func TestFormatBytes(t *testing.T) {
	tests := map[int64]string{
		0:           "0 B",
		1023:        "1023 B",
		1024:        "1.0 KiB",
		1536:        "1.5 KiB",
		5 * 1 << 20: "5.0 MiB",
	}
	for in, want := range tests {
		assert.Equal(t, want, formatBytes(in))
	}
}
