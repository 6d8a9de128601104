package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/screentime/screentime/internal/models"
	"github.com/screentime/screentime/internal/refresh"
	"github.com/screentime/screentime/internal/reporter"
	"github.com/screentime/screentime/internal/tracker"
	"github.com/screentime/screentime/pkg/focus"
	"github.com/screentime/screentime/pkg/usage"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var watchInterval time.Duration

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Show today's report and refresh it periodically or on SIGUSR1",
	Long: `watch prints today's report and refreshes it every --interval and whenever
the process receives SIGUSR1 (for example from a compositor keybinding when the
terminal regains focus). A refresh that is already running absorbs further
requests. When the event store is unavailable the last good report stays on
screen.`,
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().DurationVarP(&watchInterval, "interval", "i", time.Minute, "Refresh interval")
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	a, err := openApp(os.Stderr)
	if err != nil {
		return err
	}
	defer a.Close()

	rep, err := a.newReporter()
	if err != nil {
		return err
	}

	det, err := focus.New(a.cfg.Tracker.IdleThreshold)
	if err != nil {
		a.logger.Warn().Err(err).Msg("No focus detector available")
	} else {
		defer det.Close()
	}
	permission := tracker.NewPermission(det)

	mode := a.cfg.Report.AggregationMode()
	controller := refresh.NewController(permission, func(ctx context.Context) (*models.Report, error) {
		return rep.GenerateReport(ctx, "day", mode)
	}, a.logger)
	controller.OnResult(func(report *models.Report, err error) {
		renderWatch(controller, report, err, permission.RequestPermission())
	})

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	notifications := make(chan struct{})
	go feedNotifications(ctx, notifications, watchInterval)

	if err := controller.Run(ctx, notifications); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// feedNotifications sends one notification immediately, then one per tick
// and per SIGUSR1. Sends block until Run receives them.
func feedNotifications(ctx context.Context, out chan<- struct{}, interval time.Duration) {
	usr1 := make(chan os.Signal, 1)
	signal.Notify(usr1, syscall.SIGUSR1)
	defer signal.Stop(usr1)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	send := func() bool {
		select {
		case out <- struct{}{}:
			return true
		case <-ctx.Done():
			return false
		}
	}

	if !send() {
		return
	}
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		case <-usr1:
		}
		if !send() {
			return
		}
	}
}

func renderWatch(controller *refresh.Controller, report *models.Report, err error, hint string) {
	yellow := color.New(color.FgYellow)
	red := color.New(color.FgRed, color.Bold)

	fmt.Print("\033[H\033[2J")

	switch {
	case err == nil:
		fmt.Print(reporter.FormatReportText(report))
		fmt.Printf("\nUpdated %s\n", report.GeneratedAt.Format("15:04:05"))

	case errors.Is(err, refresh.ErrPermissionDenied):
		red.Println("Permission denied: cannot observe the desktop.")
		yellow.Println(hint)

	case errors.Is(err, usage.ErrSourceUnavailable):
		if last, ok := controller.Last(); ok {
			fmt.Print(reporter.FormatReportText(last))
			yellow.Printf("\nShowing report from %s: %v\n", last.GeneratedAt.Format("15:04:05"), err)
			return
		}
		red.Printf("Usage data unavailable: %v\n", err)

	default:
		red.Printf("Refresh failed: %v\n", err)
	}
}
