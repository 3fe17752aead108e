package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestLoad_Defaults tests that an empty environment yields the stock
// deployment settings.
func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.LogLevel)
	assert.False(t, cfg.DevMode)
	assert.Equal(t, ":8080", cfg.HTTPAddr)

	assert.Equal(t, 3, cfg.FailureThreshold)
	assert.Equal(t, 60*time.Second, cfg.Cooldown)
	assert.Equal(t, 2*time.Minute, cfg.DefaultTaskTimeout)
	assert.Equal(t, 2*time.Second, cfg.GateRecheckInterval)
	assert.Equal(t, uint64(0), cfg.HeadroomMB)
	assert.Equal(t, 50, cfg.RecentTaskLimit)

	assert.Equal(t, 5*time.Minute, cfg.WindowDuration)
	assert.Equal(t, 5*time.Second, cfg.SnapshotInterval)
	assert.Equal(t, 500, cfg.EventBufferCap)
	assert.Equal(t, 60, cfg.SnapshotBufferCap)
	assert.Equal(t, 12, cfg.HistoryLimit)

	assert.Empty(t, cfg.RequirementsFile)
	assert.Equal(t, "system", cfg.MemoryProbe)
	assert.Empty(t, cfg.ExecutorURL)
}

// TestLoad_EnvOverrides tests that environment variables override the
// defaults.
func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("GENQUEUE_LOG_LEVEL", "debug")
	t.Setenv("GENQUEUE_DEV_MODE", "true")
	t.Setenv("GENQUEUE_HTTP_ADDR", ":9090")
	t.Setenv("GENQUEUE_FAILURE_THRESHOLD", "5")
	t.Setenv("GENQUEUE_COOLDOWN", "30s")
	t.Setenv("GENQUEUE_TASK_TIMEOUT", "90s")
	t.Setenv("GENQUEUE_HEADROOM_MB", "256")
	t.Setenv("GENQUEUE_WINDOW_DURATION", "1m")
	t.Setenv("GENQUEUE_SNAPSHOT_INTERVAL", "2s")
	t.Setenv("GENQUEUE_MEMORY_PROBE", "none")
	t.Setenv("GENQUEUE_EXECUTOR_URL", "http://worker:9000/execute")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.True(t, cfg.DevMode)
	assert.Equal(t, ":9090", cfg.HTTPAddr)
	assert.Equal(t, 5, cfg.FailureThreshold)
	assert.Equal(t, 30*time.Second, cfg.Cooldown)
	assert.Equal(t, 90*time.Second, cfg.DefaultTaskTimeout)
	assert.Equal(t, uint64(256), cfg.HeadroomMB)
	assert.Equal(t, time.Minute, cfg.WindowDuration)
	assert.Equal(t, 2*time.Second, cfg.SnapshotInterval)
	assert.Equal(t, "none", cfg.MemoryProbe)
	assert.Equal(t, "http://worker:9000/execute", cfg.ExecutorURL)
}

// TestLoad_Validation tests that out-of-range settings are rejected with
// a descriptive error.
func TestLoad_Validation(t *testing.T) {
	cases := []struct {
		name    string
		envKey  string
		envVal  string
		wantErr string
	}{
		{
			name:    "zero failure threshold",
			envKey:  "GENQUEUE_FAILURE_THRESHOLD",
			envVal:  "0",
			wantErr: "failure threshold",
		},
		{
			name:    "zero cooldown",
			envKey:  "GENQUEUE_COOLDOWN",
			envVal:  "0s",
			wantErr: "cooldown",
		},
		{
			name:    "negative task timeout",
			envKey:  "GENQUEUE_TASK_TIMEOUT",
			envVal:  "-5s",
			wantErr: "task timeout",
		},
		{
			name:    "zero snapshot interval",
			envKey:  "GENQUEUE_SNAPSHOT_INTERVAL",
			envVal:  "0s",
			wantErr: "snapshot interval",
		},
		{
			name:    "window shorter than snapshot interval",
			envKey:  "GENQUEUE_WINDOW_DURATION",
			envVal:  "1s",
			wantErr: "shorter than the snapshot interval",
		},
		{
			name:    "unknown memory probe",
			envKey:  "GENQUEUE_MEMORY_PROBE",
			envVal:  "gpu",
			wantErr: "unknown memory probe",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv(tc.envKey, tc.envVal)

			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}

// TestLoad_ReadsDotEnv tests that a .env file in the working directory
// seeds unset variables.
func TestLoad_ReadsDotEnv(t *testing.T) {
	dir := t.TempDir()
	dotenv := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(dotenv, []byte("GENQUEUE_HTTP_ADDR=:9999\n"), 0o644))
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":9999", cfg.HTTPAddr)
}
