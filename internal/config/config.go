package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/screentime/screentime/pkg/usage"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	Database DatabaseConfig `mapstructure:"database"`
	Tracker  TrackerConfig  `mapstructure:"tracker"`
	Daemon   DaemonConfig   `mapstructure:"daemon"`
	Report   ReportConfig   `mapstructure:"report"`
	Labels   LabelsConfig   `mapstructure:"labels"`
	Web      WebConfig      `mapstructure:"web"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// DatabaseConfig holds database-related configuration
type DatabaseConfig struct {
	Path string `mapstructure:"path"` // Empty means ~/.config/screentime/screentime.db
}

// TrackerConfig holds tracking behavior configuration
type TrackerConfig struct {
	PollInterval    time.Duration `mapstructure:"poll_interval"`     // How often to check focused window
	MinPollInterval time.Duration `mapstructure:"min_poll_interval"` // Minimum allowed poll interval
	MaxPollInterval time.Duration `mapstructure:"max_poll_interval"` // Maximum allowed poll interval
	IdleThreshold   time.Duration `mapstructure:"idle_threshold"`    // Time before considering user idle
	RetentionDays   int           `mapstructure:"retention_days"`    // 0 keeps everything
}

// DaemonConfig holds daemon process configuration
type DaemonConfig struct {
	PIDFile string `mapstructure:"pid_file"`
	LogFile string `mapstructure:"log_file"`
}

// ReportConfig holds report generation configuration
type ReportConfig struct {
	Mode       string        `mapstructure:"mode"` // exact or bucketed
	BucketSize time.Duration `mapstructure:"bucket_size"`
	TimeZone   string        `mapstructure:"timezone"`
}

// LabelsConfig controls application name lookup
type LabelsConfig struct {
	DesktopDirs []string `mapstructure:"desktop_dirs"` // Empty means the XDG defaults
	CacheSize   int      `mapstructure:"cache_size"`
}

// WebConfig holds web server configuration
type WebConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// LoggingConfig defines logging behavior
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // json or text
}

// Default returns a Config with sensible default values
func Default() *Config {
	v := viper.New()
	setDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		panic(fmt.Sprintf("invalid default configuration: %v", err))
	}
	return &cfg
}

// Load reads configPath, or config.{yaml,toml,json} from the user config
// directory when configPath is empty, and applies SCREENTIME_* environment
// overrides on top of the defaults.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetEnvPrefix("SCREENTIME")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(defaultConfigDir())
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
			// Config file not found, use defaults and environment variables
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

func defaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "screentime")
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("database.path", "")

	v.SetDefault("tracker.poll_interval", 10*time.Second)
	v.SetDefault("tracker.min_poll_interval", 1*time.Second)
	v.SetDefault("tracker.max_poll_interval", 300*time.Second)
	v.SetDefault("tracker.idle_threshold", 300*time.Second)
	v.SetDefault("tracker.retention_days", 0)

	v.SetDefault("daemon.pid_file", fmt.Sprintf("/tmp/screentime-%d.pid", os.Getuid()))
	v.SetDefault("daemon.log_file", fmt.Sprintf("/tmp/screentime-%d.log", os.Getuid()))

	v.SetDefault("report.mode", "exact")
	v.SetDefault("report.bucket_size", time.Hour)
	v.SetDefault("report.timezone", "Local")

	v.SetDefault("labels.desktop_dirs", []string{})
	v.SetDefault("labels.cache_size", 512)

	v.SetDefault("web.host", "localhost")
	v.SetDefault("web.port", 10000+os.Getuid()) // per-user port

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Tracker.PollInterval < c.Tracker.MinPollInterval {
		return fmt.Errorf("poll interval (%v) cannot be less than minimum (%v)",
			c.Tracker.PollInterval, c.Tracker.MinPollInterval)
	}

	if c.Tracker.PollInterval > c.Tracker.MaxPollInterval {
		return fmt.Errorf("poll interval (%v) cannot be greater than maximum (%v)",
			c.Tracker.PollInterval, c.Tracker.MaxPollInterval)
	}

	if c.Tracker.IdleThreshold < 0 {
		return fmt.Errorf("idle threshold cannot be negative")
	}

	if c.Tracker.RetentionDays < 0 {
		return fmt.Errorf("retention days cannot be negative")
	}

	if _, err := usage.ParseMode(c.Report.Mode); err != nil {
		return err
	}

	if c.Report.BucketSize < time.Minute {
		return fmt.Errorf("bucket size must be at least 1m, got %v", c.Report.BucketSize)
	}

	if _, err := c.Report.Location(); err != nil {
		return err
	}

	if c.Web.Port < 1 || c.Web.Port > 65535 {
		return fmt.Errorf("web port must be between 1 and 65535, got %d", c.Web.Port)
	}

	if c.Web.Host == "" {
		return fmt.Errorf("web host cannot be empty")
	}

	if c.Daemon.PIDFile == "" {
		return fmt.Errorf("PID file path cannot be empty")
	}

	switch c.Logging.Format {
	case "json", "text":
	default:
		return fmt.Errorf("log format must be json or text, got %q", c.Logging.Format)
	}

	return nil
}

// Location loads the configured time zone.
func (r ReportConfig) Location() (*time.Location, error) {
	if r.TimeZone == "" || r.TimeZone == "Local" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(r.TimeZone)
	if err != nil {
		return nil, fmt.Errorf("invalid time zone %q: %w", r.TimeZone, err)
	}
	return loc, nil
}

// AggregationMode returns the parsed report mode, falling back to exact.
func (r ReportConfig) AggregationMode() usage.Mode {
	mode, err := usage.ParseMode(r.Mode)
	if err != nil {
		return usage.ModeExact
	}
	return mode
}

// SetPollInterval sets the poll interval with validation
func (c *Config) SetPollInterval(interval time.Duration) error {
	if interval < c.Tracker.MinPollInterval {
		return fmt.Errorf("poll interval cannot be less than %v", c.Tracker.MinPollInterval)
	}
	if interval > c.Tracker.MaxPollInterval {
		return fmt.Errorf("poll interval cannot be greater than %v", c.Tracker.MaxPollInterval)
	}
	c.Tracker.PollInterval = interval
	return nil
}

// SetWebPort sets the web server port with validation
func (c *Config) SetWebPort(port int) error {
	if port < 1 || port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", port)
	}
	c.Web.Port = port
	return nil
}

// String returns a string representation of the config
func (c *Config) String() string {
	return fmt.Sprintf(`Configuration:
  Database:
    Path: %s
  Tracker:
    Poll Interval: %v
    Min Interval: %v
    Max Interval: %v
    Idle Threshold: %v
    Retention Days: %d
  Daemon:
    PID File: %s
    Log File: %s
  Report:
    Mode: %s
    Bucket Size: %v
    Time Zone: %s
  Labels:
    Desktop Dirs: %v
    Cache Size: %d
  Web:
    Host: %s
    Port: %d
  Logging:
    Level: %s
    Format: %s`,
		c.Database.Path,
		c.Tracker.PollInterval,
		c.Tracker.MinPollInterval,
		c.Tracker.MaxPollInterval,
		c.Tracker.IdleThreshold,
		c.Tracker.RetentionDays,
		c.Daemon.PIDFile,
		c.Daemon.LogFile,
		c.Report.Mode,
		c.Report.BucketSize,
		c.Report.TimeZone,
		c.Labels.DesktopDirs,
		c.Labels.CacheSize,
		c.Web.Host,
		c.Web.Port,
		c.Logging.Level,
		c.Logging.Format,
	)
}
