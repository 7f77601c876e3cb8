package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var envVars = []string{
	"GRAPHKERNEL_DATA_DIR",
	"GRAPHKERNEL_IN_MEMORY",
	"GRAPHKERNEL_PAYLOAD_CAP",
	"GRAPHKERNEL_ID_GRAB_SIZE",
	"GRAPHKERNEL_REAPER_PERIOD",
	"GRAPHKERNEL_REAPER_IDLE_THRESHOLD",
	"GRAPHKERNEL_LISTEN_ADDRESS",
	"GRAPHKERNEL_CLUSTER_SECRET",
	"GRAPHKERNEL_LOG_LEVEL",
}

func clearEnvVars(t *testing.T) {
	t.Helper()
	for _, v := range envVars {
		old, had := os.LookupEnv(v)
		os.Unsetenv(v)
		if had {
			t.Cleanup(func() { os.Setenv(v, old) })
		}
	}
}

func TestLoadFromEnv_Defaults(t *testing.T) {
	clearEnvVars(t)

	cfg := LoadFromEnv()

	assert.Equal(t, "./data", cfg.Store.DataDir)
	assert.False(t, cfg.Store.InMemory)
	assert.Equal(t, 120, cfg.Store.PayloadCap)
	assert.Equal(t, 1000, cfg.Store.IDGrabSize)
	assert.Equal(t, 5*time.Second, cfg.Reaper.Period)
	assert.Equal(t, 30*time.Second, cfg.Reaper.IdleThreshold)
	assert.Equal(t, "0.0.0.0:7690", cfg.Master.ListenAddress)
	assert.NotEmpty(t, cfg.Master.ClusterSecret)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoadFromEnv_Overrides(t *testing.T) {
	clearEnvVars(t)
	t.Setenv("GRAPHKERNEL_DATA_DIR", "/var/lib/kerndb")
	t.Setenv("GRAPHKERNEL_IN_MEMORY", "true")
	t.Setenv("GRAPHKERNEL_PAYLOAD_CAP", "64")
	t.Setenv("GRAPHKERNEL_ID_GRAB_SIZE", "500")
	t.Setenv("GRAPHKERNEL_REAPER_PERIOD", "1s")
	t.Setenv("GRAPHKERNEL_REAPER_IDLE_THRESHOLD", "10s")
	t.Setenv("GRAPHKERNEL_LISTEN_ADDRESS", "127.0.0.1:9999")
	t.Setenv("GRAPHKERNEL_CLUSTER_SECRET", "s3cr3t")
	t.Setenv("GRAPHKERNEL_LOG_LEVEL", "debug")

	cfg := LoadFromEnv()

	assert.Equal(t, "/var/lib/kerndb", cfg.Store.DataDir)
	assert.True(t, cfg.Store.InMemory)
	assert.Equal(t, 64, cfg.Store.PayloadCap)
	assert.Equal(t, 500, cfg.Store.IDGrabSize)
	assert.Equal(t, time.Second, cfg.Reaper.Period)
	assert.Equal(t, 10*time.Second, cfg.Reaper.IdleThreshold)
	assert.Equal(t, "127.0.0.1:9999", cfg.Master.ListenAddress)
	assert.Equal(t, "s3cr3t", cfg.Master.ClusterSecret)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoadFromEnv_DurationAsBareSeconds(t *testing.T) {
	clearEnvVars(t)
	t.Setenv("GRAPHKERNEL_REAPER_PERIOD", "15")

	cfg := LoadFromEnv()

	assert.Equal(t, 15*time.Second, cfg.Reaper.Period)
}

func TestLoadFromFile_MissingFileFallsBackToDefaults(t *testing.T) {
	clearEnvVars(t)

	cfg, err := LoadFromFile("/nonexistent/path/config.yaml")
	require.NoError(t, err)
	assert.Equal(t, "./data", cfg.Store.DataDir)
}

func TestLoadFromFile_ParsesYAML(t *testing.T) {
	clearEnvVars(t)
	dir := t.TempDir()
	path := dir + "/config.yaml"
	yamlContent := `
store:
  data_dir: /tmp/kerndb-data
  payload_cap: 200
reaper:
  period: 2s
  idle_threshold: 20s
master:
  listen_address: 0.0.0.0:8000
`
	require.NoError(t, os.WriteFile(path, []byte(yamlContent), 0o644))

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/kerndb-data", cfg.Store.DataDir)
	assert.Equal(t, 200, cfg.Store.PayloadCap)
	assert.Equal(t, 2*time.Second, cfg.Reaper.Period)
	assert.Equal(t, 20*time.Second, cfg.Reaper.IdleThreshold)
	assert.Equal(t, "0.0.0.0:8000", cfg.Master.ListenAddress)
}

func TestLoadFromFile_EnvOverridesFile(t *testing.T) {
	clearEnvVars(t)
	dir := t.TempDir()
	path := dir + "/config.yaml"
	require.NoError(t, os.WriteFile(path, []byte("store:\n  data_dir: /from/file\n"), 0o644))
	t.Setenv("GRAPHKERNEL_DATA_DIR", "/from/env")

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, "/from/env", cfg.Store.DataDir)
}

func TestValidate_RejectsNonPositivePayloadCap(t *testing.T) {
	cfg := LoadDefaults()
	cfg.Store.PayloadCap = 0
	assert.Error(t, cfg.Validate())
}

func TestValidate_RejectsNonPositiveGrabSize(t *testing.T) {
	cfg := LoadDefaults()
	cfg.Store.IDGrabSize = -1
	assert.Error(t, cfg.Validate())
}

func TestValidate_RejectsMissingDataDirWhenPersistent(t *testing.T) {
	cfg := LoadDefaults()
	cfg.Store.InMemory = false
	cfg.Store.DataDir = ""
	assert.Error(t, cfg.Validate())
}

func TestValidate_AllowsMissingDataDirWhenInMemory(t *testing.T) {
	cfg := LoadDefaults()
	cfg.Store.InMemory = true
	cfg.Store.DataDir = ""
	assert.NoError(t, cfg.Validate())
}

func TestFindConfigFile_ReturnsEmptyWhenAbsent(t *testing.T) {
	dir := t.TempDir()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	defer os.Chdir(wd)

	assert.Empty(t, FindConfigFile())
}
