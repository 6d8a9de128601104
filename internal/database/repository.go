package database

import (
	"context"
	"strings"

	"github.com/screentime/screentime/internal/models"
	"github.com/screentime/screentime/pkg/usage"

	"github.com/pkg/errors"

	"gorm.io/gorm"
)

// Repository stores tracker output and serves it back as a usage.EventSource.
type Repository struct {
	db *DB
}

var _ usage.EventSource = (*Repository)(nil)

// NewRepository creates a new repository instance
func NewRepository(db *DB) *Repository {
	return &Repository{db: db}
}

// RecordEvent inserts a lifecycle event. App ids are stored lower case.
func (r *Repository) RecordEvent(ctx context.Context, event *models.UsageEvent) error {
	event.AppID = normalizeAppID(event.AppID)
	if _, err := usage.ParseKind(event.Kind); err != nil {
		return errors.Wrap(err, "failed to insert usage event")
	}
	if err := r.db.WithContext(ctx).Create(event).Error; err != nil {
		return errors.Wrap(err, "failed to insert usage event")
	}
	return nil
}

// RecordSample inserts a focus sample.
func (r *Repository) RecordSample(ctx context.Context, sample *models.FocusSample) error {
	sample.AppID = normalizeAppID(sample.AppID)
	if err := r.db.WithContext(ctx).Create(sample).Error; err != nil {
		return errors.Wrap(err, "failed to insert focus sample")
	}
	return nil
}

// QueryEvents returns the events with w.Start <= timestamp <= w.End in
// timestamp order. Rows with an unknown kind are skipped.
func (r *Repository) QueryEvents(ctx context.Context, w usage.Window) ([]usage.Event, error) {
	var rows []models.UsageEvent
	result := r.db.WithContext(ctx).
		Where("timestamp >= ? AND timestamp <= ?", w.Start, w.End).
		Order("timestamp ASC, id ASC").
		Find(&rows)
	if result.Error != nil {
		return nil, errors.Wrap(result.Error, "failed to query usage events")
	}

	events := make([]usage.Event, 0, len(rows))
	for _, row := range rows {
		kind, err := usage.ParseKind(row.Kind)
		if err != nil {
			continue
		}
		events = append(events, usage.Event{AppID: row.AppID, Timestamp: row.Timestamp, Kind: kind})
	}
	return events, nil
}

// QueryBucketAggregate sums focus samples in [bucket.Start, bucket.End)
// per application.
func (r *Repository) QueryBucketAggregate(ctx context.Context, bucket usage.Window) (map[string]int64, error) {
	var sums []struct {
		AppID   string
		TotalMs int64
	}

	result := r.db.WithContext(ctx).Model(&models.FocusSample{}).
		Select("app_id, SUM(duration_ms) as total_ms").
		Where("timestamp >= ? AND timestamp < ?", bucket.Start, bucket.End).
		Group("app_id").
		Scan(&sums)
	if result.Error != nil {
		return nil, errors.Wrap(result.Error, "failed to query bucket aggregate")
	}

	agg := make(map[string]int64, len(sums))
	for _, s := range sums {
		agg[s.AppID] = s.TotalMs
	}
	return agg, nil
}

// ListEvents returns raw stored events inside w, newest first, capped at limit
// when limit > 0.
func (r *Repository) ListEvents(ctx context.Context, w usage.Window, limit int) ([]models.UsageEvent, error) {
	query := r.db.WithContext(ctx).
		Where("timestamp >= ? AND timestamp <= ?", w.Start, w.End).
		Order("timestamp DESC, id DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}

	var events []models.UsageEvent
	if err := query.Find(&events).Error; err != nil {
		return nil, errors.Wrap(err, "failed to list usage events")
	}
	return events, nil
}

// LatestEvent retrieves the most recent event, or nil when there is none.
func (r *Repository) LatestEvent(ctx context.Context) (*models.UsageEvent, error) {
	var event models.UsageEvent
	result := r.db.WithContext(ctx).Order("timestamp DESC, id DESC").First(&event)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, errors.Wrap(result.Error, "failed to get latest event")
	}
	return &event, nil
}

// DeleteBefore soft-deletes events and samples older than ts.
func (r *Repository) DeleteBefore(ctx context.Context, ts int64) (int64, error) {
	var affected int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("timestamp < ?", ts).Delete(&models.UsageEvent{})
		if res.Error != nil {
			return res.Error
		}
		affected += res.RowsAffected

		res = tx.Where("timestamp < ?", ts).Delete(&models.FocusSample{})
		if res.Error != nil {
			return res.Error
		}
		affected += res.RowsAffected
		return nil
	})
	if err != nil {
		return 0, errors.Wrap(err, "failed to delete old usage data")
	}
	return affected, nil
}

// CreateErrorLog inserts a new error log into the database
func (r *Repository) CreateErrorLog(ctx context.Context, errorLog *models.ErrorLog) error {
	if err := r.db.WithContext(ctx).Create(errorLog).Error; err != nil {
		return errors.Wrap(err, "failed to insert error log")
	}
	return nil
}

// Clear removes all events, samples and error logs.
func (r *Repository) Clear(ctx context.Context) error {
	for _, table := range []string{"usage_events", "focus_samples", "error_logs"} {
		if err := r.db.WithContext(ctx).Exec("DELETE FROM " + table).Error; err != nil {
			return errors.Wrapf(err, "failed to clear %s", table)
		}
	}
	return nil
}

func normalizeAppID(appID string) string {
	return strings.ToLower(strings.TrimSpace(appID))
}
