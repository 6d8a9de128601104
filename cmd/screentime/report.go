package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/screentime/screentime/internal/reporter"
	"github.com/screentime/screentime/pkg/usage"
	"github.com/screentime/screentime/pkg/utils"

	"github.com/spf13/cobra"
)

var (
	reportMode  string
	reportJSON  bool
	eventsLimit int
	clearYes    bool
)

var reportCmd = &cobra.Command{
	Use:       "report [day|week|month]",
	Short:     "Generate a foreground time report",
	Args:      cobra.MaximumNArgs(1),
	ValidArgs: []string{"day", "today", "week", "month"},
	RunE:      runReport,
}

var eventsCmd = &cobra.Command{
	Use:   "events [day|week|month]",
	Short: "List recorded foreground events, newest first",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runEvents,
}

var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Clear all tracking data from the database",
	RunE:  runClear,
}

func init() {
	reportCmd.Flags().StringVarP(&reportMode, "mode", "m", "", "Aggregation mode: exact or bucketed (default from config)")
	reportCmd.Flags().BoolVar(&reportJSON, "json", false, "Output JSON")
	eventsCmd.Flags().IntVarP(&eventsLimit, "limit", "n", 50, "Maximum number of events to show")
	clearCmd.Flags().BoolVarP(&clearYes, "yes", "y", false, "Do not ask for confirmation")
	rootCmd.AddCommand(reportCmd, eventsCmd, clearCmd)
}

func periodArg(args []string) string {
	if len(args) > 0 {
		return args[0]
	}
	return "day"
}

func runReport(cmd *cobra.Command, args []string) error {
	a, err := openApp(os.Stderr)
	if err != nil {
		return err
	}
	defer a.Close()

	mode := a.cfg.Report.AggregationMode()
	if reportMode != "" {
		if mode, err = usage.ParseMode(reportMode); err != nil {
			return err
		}
	}

	rep, err := a.newReporter()
	if err != nil {
		return err
	}

	report, err := rep.GenerateReport(cmd.Context(), periodArg(args), mode)
	if err != nil {
		return fmt.Errorf("failed to generate report: %w", err)
	}

	if reportJSON {
		out, err := reporter.FormatReportJSON(report)
		if err != nil {
			return err
		}
		fmt.Println(out)
		return nil
	}

	fmt.Print(reporter.FormatReportText(report))
	return nil
}

func runEvents(cmd *cobra.Command, args []string) error {
	a, err := openApp(os.Stderr)
	if err != nil {
		return err
	}
	defer a.Close()

	rep, err := a.newReporter()
	if err != nil {
		return err
	}

	period, err := rep.Period(periodArg(args))
	if err != nil {
		return err
	}

	events, err := a.repo.ListEvents(cmd.Context(), rep.Window(period), eventsLimit)
	if err != nil {
		return fmt.Errorf("failed to list events: %w", err)
	}

	if len(events) == 0 {
		fmt.Println("No events recorded for this period.")
		return nil
	}

	now := time.Now().UnixMilli()
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TIME\tAGO\tKIND\tAPP\tTITLE")
	for _, e := range events {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			time.UnixMilli(e.Timestamp).Format("2006-01-02 15:04:05"),
			utils.FormatRoundedUnit(now-e.Timestamp),
			e.Kind,
			e.AppID,
			e.WindowTitle)
	}
	return w.Flush()
}

func runClear(cmd *cobra.Command, args []string) error {
	a, err := openApp(os.Stderr)
	if err != nil {
		return err
	}
	defer a.Close()

	if !clearYes && !confirm(os.Stdin, "This will delete all tracking data. Are you sure? (yes/no): ") {
		fmt.Println("Operation cancelled")
		return nil
	}

	if err := a.repo.Clear(cmd.Context()); err != nil {
		return fmt.Errorf("failed to clear database: %w", err)
	}

	fmt.Println("Database cleared successfully")
	return nil
}

func confirm(in io.Reader, prompt string) bool {
	fmt.Print(prompt)
	response, _ := bufio.NewReader(in).ReadString('\n')
	response = strings.ToLower(strings.TrimSpace(response))
	return response == "yes" || response == "y"
}
