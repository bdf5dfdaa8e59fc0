package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFileOverlaysOnlyMentionedFields(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "taskpulse.yaml")
	require.NoError(t, os.WriteFile(path, []byte("retention: 1h\ngrpcAddr: 0.0.0.0:9200\n"), 0o600))

	cfg := Default()
	require.NoError(t, cfg.LoadFile(path))

	assert.Equal(t, time.Hour, cfg.Retention)
	assert.Equal(t, "0.0.0.0:9200", cfg.GRPCAddr)
	// Untouched fields keep their default.
	assert.Equal(t, time.Second, cfg.PublishInterval)
	assert.Equal(t, "127.0.0.1:9101", cfg.MetricsAddr)
}

func TestLoadFileMissingReturnsError(t *testing.T) {
	cfg := Default()
	err := cfg.LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestApplyFlagsOnlyOverridesChangedFlags(t *testing.T) {
	cfg := Config{PublishInterval: 5 * time.Second, GRPCAddr: "file-addr:1"}

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.Duration("publish-interval", time.Second, "")
	flags.Duration("retention", time.Hour, "")
	flags.String("record", "", "")
	flags.String("grpc-addr", "default-addr:1", "")
	flags.String("metrics-addr", "", "")
	flags.String("log-level", "info", "")
	flags.Bool("log-json", false, "")

	require.NoError(t, flags.Set("grpc-addr", "flag-addr:2"))

	cfg.ApplyFlags(flags)

	assert.Equal(t, "flag-addr:2", cfg.GRPCAddr, "flag explicitly set wins over the file")
	assert.Equal(t, 5*time.Second, cfg.PublishInterval, "unset flag leaves the file's value alone")
}

func TestValidateRejectsNonPositiveDurations(t *testing.T) {
	cfg := Default()
	cfg.Retention = 0
	assert.Error(t, cfg.Validate())

	cfg = Default()
	cfg.PublishInterval = -1
	assert.Error(t, cfg.Validate())
}
