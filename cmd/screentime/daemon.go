package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/screentime/screentime/internal/config"
	"github.com/screentime/screentime/internal/daemon"
	"github.com/screentime/screentime/internal/models"
	"github.com/screentime/screentime/internal/refresh"
	"github.com/screentime/screentime/internal/tracker"
	"github.com/screentime/screentime/internal/web"
	"github.com/screentime/screentime/pkg/focus"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var servePort int

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the tracking daemon",
	RunE: func(cmd *cobra.Command, args []string) error {
		return startDaemon(false)
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the tracking daemon with the web API",
	RunE: func(cmd *cobra.Command, args []string) error {
		return startDaemon(true)
	},
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the tracking daemon",
	RunE:  runStop,
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show daemon status and the currently focused application",
	RunE:  runStatus,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("screentime version %s\n", version)
		fmt.Printf("  commit: %s\n", commit)
		fmt.Printf("  built:  %s\n", date)
	},
}

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 0, "Web API port (overrides config)")
	rootCmd.AddCommand(startCmd, serveCmd, stopCmd, statusCmd, versionCmd)
}

func startDaemon(withWeb bool) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	if !daemon.IsChild() && !daemon.UnderSystemd() {
		dm := daemon.New(cfg.Daemon.PIDFile)
		running, pid, err := dm.IsRunning()
		if err != nil {
			return fmt.Errorf("failed to check daemon status: %w", err)
		}
		if running {
			return fmt.Errorf("daemon is already running (PID: %d)", pid)
		}

		pid, err = daemon.Daemonize()
		if err != nil {
			return err
		}
		fmt.Printf("Daemon started successfully (PID: %d)\n", pid)
		if withWeb {
			port := cfg.Web.Port
			if servePort > 0 {
				port = servePort
			}
			fmt.Printf("Web API available at: http://%s:%d\n", cfg.Web.Host, port)
		}
		fmt.Printf("Logs: %s\n", cfg.Daemon.LogFile)
		return nil
	}

	return runDaemon(cfg, withWeb)
}

func runDaemon(cfg *config.Config, withWeb bool) error {
	logOut := io.Writer(os.Stderr)
	if logFile, err := os.OpenFile(cfg.Daemon.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644); err == nil {
		defer logFile.Close()
		logOut = logFile
	}

	a, err := openAppWithConfig(cfg, logOut)
	if err != nil {
		return err
	}
	defer a.Close()
	logger := a.logger

	det, err := focus.New(a.cfg.Tracker.IdleThreshold)
	if err != nil {
		return fmt.Errorf("failed to initialize focus detector: %w", err)
	}
	defer det.Close()
	logger.Info().Str("display_server", det.GetDisplayServer()).Msg("Focus detector initialized")

	dm := daemon.New(a.cfg.Daemon.PIDFile)
	if err := dm.WritePID(); err != nil {
		return fmt.Errorf("failed to write PID file: %w", err)
	}
	defer func() { _ = dm.RemovePID() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	trackerSvc := tracker.NewService(a.cfg.Tracker, a.repo, det, logger)
	logger.Info().Str("run_id", trackerSvc.RunID()).Msgf("Configuration:\n%s", a.cfg.String())

	go pruneLoop(ctx, a)

	var webServer *web.Server
	if withWeb {
		rep, err := a.newReporter()
		if err != nil {
			return err
		}
		permission := tracker.NewPermission(det)
		mode := a.cfg.Report.AggregationMode()
		controller := refresh.NewController(permission, func(ctx context.Context) (*models.Report, error) {
			return rep.GenerateReport(ctx, "day", mode)
		}, logger)

		handler := web.NewHandler(a.cfg, a.repo, rep, controller, permission, logger)
		webServer = web.NewServer(a.cfg, handler, servePort, logger)

		ln, err := daemon.WebListener()
		if err != nil {
			return err
		}
		go func() {
			serve := webServer.Start
			if ln != nil {
				serve = func() error { return webServer.Serve(ln) }
			}
			if err := serve(); err != nil {
				logger.Error().Err(err).Msg("Web server error")
				stop()
			}
		}()
	}

	go daemon.Watchdog(ctx, logger)
	if err := daemon.NotifyReady(); err != nil {
		logger.Warn().Err(err).Msg("Failed to send systemd ready notification")
	}

	err = trackerSvc.Start(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Error().Err(err).Msg("Tracker error")
	}

	if err := daemon.NotifyStopping(); err != nil {
		logger.Warn().Err(err).Msg("Failed to send systemd stopping notification")
	}

	if webServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := webServer.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("Error shutting down web server")
		}
	}

	logger.Info().Msg("Daemon stopped successfully")
	return nil
}

// pruneLoop deletes data older than the retention period once a day.
func pruneLoop(ctx context.Context, a *app) {
	if a.cfg.Tracker.RetentionDays <= 0 {
		return
	}

	prune := func() {
		cutoff := time.Now().AddDate(0, 0, -a.cfg.Tracker.RetentionDays).UnixMilli()
		n, err := a.repo.DeleteBefore(ctx, cutoff)
		if err != nil {
			a.logger.Error().Err(err).Msg("Failed to prune old usage data")
			return
		}
		a.logger.Info().Int64("rows", n).Int("retention_days", a.cfg.Tracker.RetentionDays).Msg("Pruned old usage data")
	}

	prune()
	ticker := time.NewTicker(24 * time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			prune()
		}
	}
}

func runStop(cmd *cobra.Command, args []string) error {
	a, err := openApp(io.Discard)
	if err != nil {
		return err
	}
	defer a.Close()

	dm := daemon.New(a.cfg.Daemon.PIDFile)
	running, pid, err := dm.IsRunning()
	if err != nil {
		return fmt.Errorf("failed to check daemon status: %w", err)
	}

	if !running {
		fmt.Println("Daemon is not running")
		return nil
	}

	fmt.Printf("Stopping daemon (PID: %d)...\n", pid)
	if err := dm.Stop(); err != nil {
		return fmt.Errorf("failed to stop daemon: %w", err)
	}

	fmt.Println("Daemon stopped successfully")
	return nil
}

func runStatus(cmd *cobra.Command, args []string) error {
	a, err := openApp(io.Discard)
	if err != nil {
		return err
	}
	defer a.Close()

	green := color.New(color.FgGreen, color.Bold)
	red := color.New(color.FgRed, color.Bold)
	yellow := color.New(color.FgYellow)

	dm := daemon.New(a.cfg.Daemon.PIDFile)
	running, pid, err := dm.IsRunning()
	if err != nil {
		return fmt.Errorf("failed to check daemon status: %w", err)
	}

	if running {
		green.Printf("Status: Running (PID: %d)\n", pid)
		fmt.Printf("Poll Interval: %v\n", a.cfg.Tracker.PollInterval)
		fmt.Printf("Report Mode: %s\n", a.cfg.Report.AggregationMode())
	} else {
		red.Println("Status: Not running")
	}

	if latest, err := a.repo.LatestEvent(cmd.Context()); err == nil && latest != nil {
		fmt.Printf("Last Event: %s %s (%s)\n", latest.Kind, latest.AppID,
			time.UnixMilli(latest.Timestamp).Format("2006-01-02 15:04:05"))
	}

	det, err := focus.New(a.cfg.Tracker.IdleThreshold)
	if err == nil {
		defer det.Close()
	}
	permission := tracker.NewPermission(det)
	if !permission.HasPermission() {
		yellow.Printf("\nCannot observe the desktop: %s\n", permission.RequestPermission())
		return nil
	}

	windowInfo, err := det.GetFocusedWindow()
	if err == nil && windowInfo != nil {
		fmt.Printf("\nCurrent Window:\n")
		fmt.Printf("  App: %s\n", windowInfo.AppID)
		fmt.Printf("  Title: %s\n", windowInfo.WindowTitle)
		fmt.Printf("  Display: %s\n", windowInfo.DisplayServer)
	}

	idleInfo, err := det.GetIdleInfo()
	if err == nil && idleInfo != nil {
		fmt.Printf("\nSystem State:\n")
		fmt.Printf("  Idle: %v\n", idleInfo.IsIdle)
		fmt.Printf("  Locked: %v\n", idleInfo.IsLocked)
		if idleInfo.IdleTime > 0 {
			fmt.Printf("  Idle Time: %s\n", idleInfo.IdleTime.Round(time.Second))
		}
	}
	return nil
}
