// Package refresh gates report generation on permission and keeps the last
// good report around when the event source fails.
package refresh

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/screentime/screentime/internal/metrics"
	"github.com/screentime/screentime/internal/models"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

// ErrPermissionDenied is returned when the focus detector cannot observe the
// desktop. No aggregation is attempted.
var ErrPermissionDenied = errors.New("usage access permission denied")

// Permission is implemented by tracker.Permission.
type Permission interface {
	HasPermission() bool
}

// GenerateFunc builds a fresh report. Source failures wrap
// usage.ErrSourceUnavailable.
type GenerateFunc func(ctx context.Context) (*models.Report, error)

// Controller runs at most one refresh at a time.
type Controller struct {
	permission Permission
	generate   GenerateFunc
	logger     zerolog.Logger

	group    singleflight.Group
	inFlight atomic.Bool

	mu       sync.RWMutex
	last     *models.Report
	onResult func(*models.Report, error)
}

func NewController(permission Permission, generate GenerateFunc, logger zerolog.Logger) *Controller {
	return &Controller{
		permission: permission,
		generate:   generate,
		logger:     logger.With().Str("component", "refresh").Logger(),
	}
}

// OnResult registers fn to receive the outcome of every refresh started by Run.
func (c *Controller) OnResult(fn func(*models.Report, error)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onResult = fn
}

// Refresh generates a report. Concurrent callers share one generation and
// its result; the shared call runs with the first caller's context. On
// failure the last good report is left untouched.
func (c *Controller) Refresh(ctx context.Context) (*models.Report, error) {
	if !c.permission.HasPermission() {
		c.logger.Warn().Msg("Refresh skipped: permission denied")
		return nil, ErrPermissionDenied
	}

	v, err, shared := c.group.Do("refresh", func() (any, error) {
		report, err := c.generate(ctx)
		if err != nil {
			return nil, err
		}

		c.mu.Lock()
		c.last = report
		c.mu.Unlock()

		metrics.ReportRows.Set(float64(len(report.Apps)))
		return report, nil
	})
	if err != nil {
		c.logger.Error().Err(err).Bool("shared", shared).Msg("Refresh failed")
		return nil, err
	}

	report := v.(*models.Report)
	c.logger.Debug().Int("apps", len(report.Apps)).Bool("shared", shared).Msg("Refreshed report")
	return report, nil
}

// Last returns the most recent successful report.
func (c *Controller) Last() (*models.Report, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.last, c.last != nil
}

// Run refreshes once per notification until ctx is done or notifications is
// closed. Notifications received while a refresh is running are dropped.
func (c *Controller) Run(ctx context.Context, notifications <-chan struct{}) error {
	var wg sync.WaitGroup
	defer wg.Wait()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case _, ok := <-notifications:
			if !ok {
				return nil
			}
			if !c.inFlight.CompareAndSwap(false, true) {
				c.logger.Debug().Msg("Refresh already in flight, dropping notification")
				continue
			}

			wg.Add(1)
			go func() {
				defer wg.Done()
				defer c.inFlight.Store(false)

				report, err := c.Refresh(ctx)

				c.mu.RLock()
				fn := c.onResult
				c.mu.RUnlock()
				if fn != nil {
					fn(report, err)
				}
			}()
		}
	}
}
