package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := load("", nil)
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, 1500*time.Millisecond, cfg.Autosave.Quiet)
	assert.Equal(t, 8, cfg.Traversal.MaxConditionHops)
}

func TestLoad_FileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "inquiry.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  addr: ":9000"
storage:
  driver: sqlite
  path: /tmp/inquiry.db
pacing:
  per_char: 10ms
reasoning:
  headers:
    Authorization: Bearer x
`), 0o644))

	cfg, err := load(path, []string{
		"INQUIRY_STORAGE_DRIVER=redis",
		"INQUIRY_TRAVERSAL_MAX_CONDITION_HOPS=3",
		"INQUIRY_SESSIONS_PREDICTION=true",
		"INQUIRY_MAX_INPUT_SIZE=10",
		"HOME=/root",
	})
	require.NoError(t, err)

	assert.Equal(t, ":9000", cfg.Server.Addr)
	assert.Equal(t, ":2112", cfg.Server.MetricsAddr, "unset keys keep their defaults")
	assert.Equal(t, "redis", cfg.Storage.Driver, "environment wins over the file")
	assert.Equal(t, "/tmp/inquiry.db", cfg.Storage.Path)
	assert.Equal(t, 10*time.Millisecond, cfg.Pacing.PerChar)
	assert.Equal(t, 4*time.Second, cfg.Pacing.Max)
	assert.Equal(t, 3, cfg.Traversal.MaxConditionHops)
	assert.True(t, cfg.Sessions.Prediction)
	assert.Equal(t, "Bearer x", cfg.Reasoning.Headers["Authorization"])
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		env  []string
		want string
	}{
		{"unknown storage", []string{"INQUIRY_STORAGE_DRIVER=mongo"}, "storage.driver"},
		{"http without url", []string{"INQUIRY_REASONING_DRIVER=http"}, "reasoning.url"},
		{"bad duration", []string{"INQUIRY_AUTOSAVE_QUIET=soon"}, "invalid configuration"},
		{"inverted bounds", []string{"INQUIRY_PACING_MIN=5s", "INQUIRY_PACING_MAX=1s"}, "pacing.min"},
		{"short key", []string{"INQUIRY_STORAGE_ENCRYPTION_KEY=c2hvcnQ="}, "storage.encryption_key"},
		{"bad pii pattern", []string{"INQUIRY_STORAGE_PII_PATTERNS=("}, "storage.pii_patterns"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := load("", tt.env)
			assert.ErrorContains(t, err, tt.want)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.ErrorContains(t, err, "failed to read config")
}

func TestLoad_StorageSecurity(t *testing.T) {
	key := "MDEyMzQ1Njc4OWFiY2RlZjAxMjM0NTY3ODlhYmNkZWY=" // 32 bytes
	cfg, err := load("", []string{
		"INQUIRY_STORAGE_ENCRYPTION_KEY=" + key,
		"INQUIRY_STORAGE_MASK_PII=true",
		`INQUIRY_STORAGE_PII_PATTERNS=\d{4},secret`,
	})
	require.NoError(t, err)
	assert.Equal(t, key, cfg.Storage.EncryptionKey)
	assert.True(t, cfg.Storage.MaskPII)
	assert.Equal(t, []string{`\d{4}`, "secret"}, cfg.Storage.PIIPatterns)
}
