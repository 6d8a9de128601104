package reporter

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/screentime/screentime/internal/config"
	"github.com/screentime/screentime/internal/metrics"
	"github.com/screentime/screentime/internal/models"
	"github.com/screentime/screentime/pkg/usage"
	"github.com/screentime/screentime/pkg/utils"

	"github.com/rs/zerolog"
)

// Reporter turns aggregated rows into period reports
type Reporter struct {
	source     usage.EventSource
	labels     usage.LabelResolver
	bucketSize time.Duration
	location   *time.Location
	logger     zerolog.Logger
	now        func() time.Time
}

// New creates a new reporter
func New(cfg config.ReportConfig, source usage.EventSource, labels usage.LabelResolver, logger zerolog.Logger) (*Reporter, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	return &Reporter{
		source:     source,
		labels:     labels,
		bucketSize: cfg.BucketSize,
		location:   loc,
		logger:     logger.With().Str("component", "reporter").Logger(),
		now:        time.Now,
	}, nil
}

// GenerateReport aggregates usage from the start of the period up to now.
func (r *Reporter) GenerateReport(ctx context.Context, periodType string, mode usage.Mode) (*models.Report, error) {
	period, err := r.Period(periodType)
	if err != nil {
		return nil, err
	}

	agg := &usage.Aggregator{
		Source:     r.source,
		Labels:     r.labels,
		Mode:       mode,
		BucketSize: r.bucketSize.Milliseconds(),
	}

	started := time.Now()
	rows, err := agg.Aggregate(ctx, r.Window(period))
	metrics.AggregationDuration.WithLabelValues(mode.String()).Observe(time.Since(started).Seconds())
	if err != nil {
		metrics.AggregationsTotal.WithLabelValues(mode.String(), "error").Inc()
		return nil, fmt.Errorf("failed to aggregate %s usage: %w", periodType, err)
	}
	metrics.AggregationsTotal.WithLabelValues(mode.String(), "ok").Inc()

	report := Build(*period, mode, rows)
	report.GeneratedAt = r.now()

	r.logger.Debug().
		Str("period", periodType).
		Str("mode", mode.String()).
		Int("apps", len(report.Apps)).
		Dur("took", time.Since(started)).
		Msg("Generated report")

	return report, nil
}

// Build derives totals and percentages from ranked rows.
func Build(period models.ReportPeriod, mode usage.Mode, rows []usage.Row) *models.Report {
	apps := make([]models.AppSummary, 0, len(rows))
	var totalMs int64
	for _, row := range rows {
		apps = append(apps, models.AppSummary{
			AppID:   row.AppID,
			Label:   row.Label,
			TotalMs: row.TotalForegroundMs,
		})
		totalMs += row.TotalForegroundMs
	}

	if totalMs > 0 {
		for i := range apps {
			apps[i].Percentage = float64(apps[i].TotalMs) / float64(totalMs) * 100.0
		}
	}

	return &models.Report{
		Period:  period,
		Mode:    mode.String(),
		Apps:    apps,
		TotalMs: totalMs,
	}
}

// Period calculates the calendar range for a period name
func (r *Reporter) Period(periodType string) (*models.ReportPeriod, error) {
	now := r.now().In(r.location)
	var start, end time.Time

	switch periodType {
	case "day", "today":
		start = time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
		end = start.AddDate(0, 0, 1)

	case "week":
		// Start of week (Monday)
		weekday := int(now.Weekday())
		if weekday == 0 {
			weekday = 7 // Sunday = 7
		}
		start = time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location()).AddDate(0, 0, -(weekday - 1))
		end = start.AddDate(0, 0, 7)

	case "month":
		start = time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
		end = start.AddDate(0, 1, 0)

	default:
		return nil, fmt.Errorf("invalid period type: %s (valid: day, week, month)", periodType)
	}

	return &models.ReportPeriod{
		Start: start,
		End:   end,
		Type:  periodType,
	}, nil
}

// Window is the aggregation range for a period: it ends now, not at the end
// of the period, so sessions still open are counted up to the present.
func (r *Reporter) Window(period *models.ReportPeriod) usage.Window {
	end := period.End
	if now := r.now(); now.Before(end) {
		end = now
	}
	return usage.Window{Start: period.Start.UnixMilli(), End: end.UnixMilli()}
}

// FormatReportText formats the report as human-readable text
func FormatReportText(report *models.Report) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Screen Time Report - %s (%s)\n", report.Period.Type, report.Mode)
	fmt.Fprintf(&b, "Period: %s to %s\n",
		report.Period.Start.Format("2006-01-02 15:04"),
		report.Period.End.Format("2006-01-02 15:04"))
	fmt.Fprintf(&b, "Total Time: %s\n\n", utils.FormatDuration(report.TotalMs))

	if len(report.Apps) == 0 {
		b.WriteString("No activity recorded for this period.\n")
		return b.String()
	}

	fmt.Fprintf(&b, "%-30s %12s %10s\n", "Application", "Time", "Percent")
	b.WriteString(strings.Repeat("-", 54) + "\n")

	for _, app := range report.Apps {
		fmt.Fprintf(&b, "%-30s %12s %9.1f%%\n",
			truncate(app.Label, 30),
			utils.FormatDuration(app.TotalMs),
			app.Percentage)
	}

	return b.String()
}

// FormatReportJSON formats the report as JSON
func FormatReportJSON(report *models.Report) (string, error) {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal JSON: %w", err)
	}
	return string(data), nil
}

// truncate shortens s to maxLen runes, marking the cut with "...".
func truncate(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen-3]) + "..."
}
