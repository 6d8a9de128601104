package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/screentime/screentime/pkg/usage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
tracker:
  poll_interval: 30s
report:
  mode: bucketed
  bucket_size: 15m
  timezone: UTC
labels:
  desktop_dirs: [/opt/apps]
  cache_size: 64
web:
  port: 8090
logging:
  format: json
`), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 30*time.Second, cfg.Tracker.PollInterval)
	assert.Equal(t, usage.ModeBucketed, cfg.Report.AggregationMode())
	assert.Equal(t, 15*time.Minute, cfg.Report.BucketSize)
	assert.Equal(t, []string{"/opt/apps"}, cfg.Labels.DesktopDirs)
	assert.Equal(t, 64, cfg.Labels.CacheSize)
	assert.Equal(t, 8090, cfg.Web.Port)
	assert.Equal(t, "localhost", cfg.Web.Host)
	assert.Equal(t, "json", cfg.Logging.Format)

	loc, err := cfg.Report.Location()
	require.NoError(t, err)
	assert.Equal(t, time.UTC, loc)
}

func TestLoadEnvOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("[web]\nport = 8090\n"), 0644))

	t.Setenv("SCREENTIME_WEB_PORT", "9191")
	t.Setenv("SCREENTIME_REPORT_MODE", "hourly")
	t.Setenv("SCREENTIME_DATABASE_PATH", "/tmp/st.db")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 9191, cfg.Web.Port)
	assert.Equal(t, usage.ModeBucketed, cfg.Report.AggregationMode())
	assert.Equal(t, "/tmp/st.db", cfg.Database.Path)
}

func TestLoadWithoutFile(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default().Tracker, cfg.Tracker)
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("report:\n  mode: weekly\n"), 0644))
	_, err = Load(path)
	assert.ErrorContains(t, err, "invalid configuration")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "defaults", mutate: func(*Config) {}},
		{name: "poll too fast", mutate: func(c *Config) { c.Tracker.PollInterval = time.Millisecond }, wantErr: "less than minimum"},
		{name: "poll too slow", mutate: func(c *Config) { c.Tracker.PollInterval = time.Hour }, wantErr: "greater than maximum"},
		{name: "negative idle", mutate: func(c *Config) { c.Tracker.IdleThreshold = -time.Second }, wantErr: "idle threshold"},
		{name: "negative retention", mutate: func(c *Config) { c.Tracker.RetentionDays = -1 }, wantErr: "retention"},
		{name: "bad mode", mutate: func(c *Config) { c.Report.Mode = "weekly" }, wantErr: "invalid aggregation mode"},
		{name: "tiny bucket", mutate: func(c *Config) { c.Report.BucketSize = time.Second }, wantErr: "bucket size"},
		{name: "bad zone", mutate: func(c *Config) { c.Report.TimeZone = "Mars/Olympus" }, wantErr: "time zone"},
		{name: "bad port", mutate: func(c *Config) { c.Web.Port = 70000 }, wantErr: "web port"},
		{name: "empty host", mutate: func(c *Config) { c.Web.Host = "" }, wantErr: "web host"},
		{name: "empty pid file", mutate: func(c *Config) { c.Daemon.PIDFile = "" }, wantErr: "PID file"},
		{name: "bad log format", mutate: func(c *Config) { c.Logging.Format = "xml" }, wantErr: "log format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestSetWebPort(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.SetWebPort(8080))
	assert.Equal(t, 8080, cfg.Web.Port)
	assert.Error(t, cfg.SetWebPort(0))
}
