package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	t.Chdir(t.TempDir())
	cfg, err := Load(New(), "")
	require.NoError(t, err)
	assert.Equal(t, "", cfg.Schemas)
	assert.Equal(t, 32, cfg.RecursionLimit)
	assert.Equal(t, 4, cfg.Parallelism)
	assert.Equal(t, int64(1024), cfg.ExternalDataThreshold)
	assert.Equal(t, "info", cfg.LogLevel)

	logger, err := cfg.Logger()
	require.NoError(t, err)
	require.NotNil(t, logger)
}

func TestConfigFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "onnxinline.yaml"),
		[]byte("schemas: ops.yaml\nparallelism: 8\nlog_level: debug\n"), 0o644))
	t.Setenv("ONNXINLINE_RECURSION_LIMIT", "5")
	t.Setenv("ONNXINLINE_PARALLELISM", "2")

	cfg, err := Load(New(), "")
	require.NoError(t, err)
	assert.Equal(t, "ops.yaml", cfg.Schemas)
	assert.Equal(t, 5, cfg.RecursionLimit)
	assert.Equal(t, 2, cfg.Parallelism, "environment overrides the file")
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestInvalid(t *testing.T) {
	t.Chdir(t.TempDir())
	tests := []struct {
		name, key, value string
	}{
		{"RecursionLimit", "ONNXINLINE_RECURSION_LIMIT", "0"},
		{"Parallelism", "ONNXINLINE_PARALLELISM", "-1"},
		{"Threshold", "ONNXINLINE_EXTERNAL_DATA_THRESHOLD", "-4"},
		{"LogLevel", "ONNXINLINE_LOG_LEVEL", "loud"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			_, err := Load(New(), "")
			require.Error(t, err)
		})
	}
}

func TestExplicitConfigFileMissing(t *testing.T) {
	_, err := Load(New(), filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}
