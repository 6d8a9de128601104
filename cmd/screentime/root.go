package main

import (
	"fmt"
	"io"
	"os"

	"github.com/screentime/screentime/internal/config"
	"github.com/screentime/screentime/internal/database"
	"github.com/screentime/screentime/internal/labels"
	"github.com/screentime/screentime/internal/reporter"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var configPath string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "screentime",
	Short: "screentime - per-application foreground time tracker",
	Long: `screentime records which application holds input focus on an X11 or
Wayland desktop and reports how long each one was in the foreground.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to configuration file (default ~/.config/screentime/config.yaml)")
	rootCmd.SetVersionTemplate(fmt.Sprintf("screentime version %s\n  commit: %s\n  built:  %s\n", version, commit, date))
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func setupLogger(cfg config.LoggingConfig, out io.Writer) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil || cfg.Level == "" {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if cfg.Format == "text" {
		return zerolog.New(zerolog.ConsoleWriter{Out: out}).With().Timestamp().Logger()
	}
	return zerolog.New(out).With().Timestamp().Logger()
}

// app holds what every data-reading command needs.
type app struct {
	cfg    *config.Config
	logger zerolog.Logger
	db     *database.DB
	repo   *database.Repository
}

func openApp(logOut io.Writer) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	return openAppWithConfig(cfg, logOut)
}

func openAppWithConfig(cfg *config.Config, logOut io.Writer) (*app, error) {
	logger := setupLogger(cfg.Logging, logOut)
	log.Logger = logger

	db, err := database.Connect(cfg.Database.Path)
	if err != nil {
		return nil, err
	}
	if err := db.Initialize(); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &app{
		cfg:    cfg,
		logger: logger,
		db:     db,
		repo:   database.NewRepository(db),
	}, nil
}

func (a *app) Close() {
	if err := a.db.Close(); err != nil {
		a.logger.Error().Err(err).Msg("Failed to close database")
	}
}

func (a *app) newReporter() (*reporter.Reporter, error) {
	dirs := a.cfg.Labels.DesktopDirs
	if len(dirs) == 0 {
		dirs = labels.DefaultDirs()
	}

	resolver, err := labels.NewDesktopResolver(dirs, a.cfg.Labels.CacheSize, a.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create label resolver: %w", err)
	}

	return reporter.New(a.cfg.Report, a.repo, resolver, a.logger)
}
