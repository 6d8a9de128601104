package refresh

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/screentime/screentime/internal/models"
	"github.com/screentime/screentime/pkg/usage"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticPermission bool

func (p staticPermission) HasPermission() bool { return bool(p) }

func reportWith(apps ...string) *models.Report {
	r := &models.Report{Mode: "exact"}
	for _, app := range apps {
		r.Apps = append(r.Apps, models.AppSummary{AppID: app, Label: app, TotalMs: 1000})
	}
	return r
}

func TestRefreshPermissionDenied(t *testing.T) {
	var calls atomic.Int32
	c := NewController(staticPermission(false), func(context.Context) (*models.Report, error) {
		calls.Add(1)
		return reportWith("a"), nil
	}, zerolog.Nop())

	_, err := c.Refresh(context.Background())
	assert.ErrorIs(t, err, ErrPermissionDenied)
	assert.Zero(t, calls.Load())

	_, ok := c.Last()
	assert.False(t, ok)
}

func TestRefreshKeepsLastGoodReport(t *testing.T) {
	var fail atomic.Bool
	c := NewController(staticPermission(true), func(context.Context) (*models.Report, error) {
		if fail.Load() {
			return nil, fmt.Errorf("%w: query events: %w", usage.ErrSourceUnavailable, errors.New("database is locked"))
		}
		return reportWith("a", "b"), nil
	}, zerolog.Nop())

	good, err := c.Refresh(context.Background())
	require.NoError(t, err)
	require.Len(t, good.Apps, 2)

	fail.Store(true)
	_, err = c.Refresh(context.Background())
	assert.ErrorIs(t, err, usage.ErrSourceUnavailable)

	last, ok := c.Last()
	require.True(t, ok)
	assert.Same(t, good, last)
}

func TestRefreshSharesInFlightCall(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{}, 10)
	var calls atomic.Int32

	c := NewController(staticPermission(true), func(context.Context) (*models.Report, error) {
		calls.Add(1)
		started <- struct{}{}
		<-release
		return reportWith("a"), nil
	}, zerolog.Nop())

	const callers = 5
	results := make([]*models.Report, callers)
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		results[0], _ = c.Refresh(context.Background())
	}()
	<-started

	for i := 1; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], _ = c.Refresh(context.Background())
		}(i)
	}

	// Give the followers time to join the in-flight call.
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
	for _, r := range results {
		assert.Same(t, results[0], r)
	}
}

func TestRunDropsNotificationsWhileInFlight(t *testing.T) {
	release := make(chan struct{})
	var calls atomic.Int32

	c := NewController(staticPermission(true), func(context.Context) (*models.Report, error) {
		calls.Add(1)
		<-release
		return reportWith("a"), nil
	}, zerolog.Nop())

	results := make(chan error, 10)
	c.OnResult(func(_ *models.Report, err error) { results <- err })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	notifications := make(chan struct{})
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx, notifications) }()

	for range 3 {
		notifications <- struct{}{}
	}
	close(release)

	require.NoError(t, <-results)
	assert.Equal(t, int32(1), calls.Load())

	require.Eventually(t, func() bool { return !c.inFlight.Load() }, time.Second, 5*time.Millisecond)
	notifications <- struct{}{}
	require.NoError(t, <-results)
	assert.Equal(t, int32(2), calls.Load())

	close(notifications)
	assert.NoError(t, <-done)
}

func TestRunStopsOnContext(t *testing.T) {
	c := NewController(staticPermission(false), func(context.Context) (*models.Report, error) {
		return nil, nil
	}, zerolog.Nop())

	results := make(chan error, 1)
	c.OnResult(func(_ *models.Report, err error) { results <- err })

	ctx, cancel := context.WithCancel(context.Background())
	notifications := make(chan struct{})
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx, notifications) }()

	notifications <- struct{}{}
	assert.ErrorIs(t, <-results, ErrPermissionDenied)

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}
