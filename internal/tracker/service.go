package tracker

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/screentime/screentime/internal/config"
	"github.com/screentime/screentime/internal/metrics"
	"github.com/screentime/screentime/internal/models"
	"github.com/screentime/screentime/pkg/focus"
	"github.com/screentime/screentime/pkg/usage"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Recorder persists tracker output. database.Repository implements it.
type Recorder interface {
	RecordEvent(ctx context.Context, event *models.UsageEvent) error
	RecordSample(ctx context.Context, sample *models.FocusSample) error
	CreateErrorLog(ctx context.Context, errorLog *models.ErrorLog) error
}

// Service polls the focus detector and turns focus changes into enter and
// exit events. Each poll with a focused application also stores a sample
// one poll interval long.
type Service struct {
	config   config.TrackerConfig
	recorder Recorder
	detector focus.Detector
	logger   zerolog.Logger
	runID    string
	now      func() time.Time

	mu       sync.Mutex
	current  string
	running  bool
	stopChan chan struct{}
}

func NewService(cfg config.TrackerConfig, recorder Recorder, detector focus.Detector, logger zerolog.Logger) *Service {
	runID := uuid.NewString()
	return &Service{
		config:   cfg,
		recorder: recorder,
		detector: detector,
		logger:   logger.With().Str("component", "tracker").Str("run_id", runID).Logger(),
		runID:    runID,
		now:      time.Now,
		stopChan: make(chan struct{}),
	}
}

// RunID identifies this tracker run in stored rows.
func (s *Service) RunID() string {
	return s.runID
}

// Start polls until ctx is cancelled or Stop is called. The application in
// focus at that point receives an exit event. A stopped Service can be
// started again.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("tracker is already running")
	}
	s.running = true
	s.stopChan = make(chan struct{})
	stop := s.stopChan
	s.mu.Unlock()

	s.logger.Info().Dur("poll_interval", s.config.PollInterval).Msg("Starting tracker")

	ticker := time.NewTicker(s.config.PollInterval)
	defer ticker.Stop()

	s.pollAndLog(ctx)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("Tracker stopped by context")
			s.finish(context.WithoutCancel(ctx))
			return ctx.Err()

		case <-stop:
			s.logger.Info().Msg("Tracker stopped")
			s.finish(ctx)
			return nil

		case <-ticker.C:
			s.pollAndLog(ctx)
		}
	}
}

// Stop ends a running Start loop.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		close(s.stopChan)
		s.running = false
	}
}

func (s *Service) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Current returns the application currently holding an open session.
func (s *Service) Current() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

func (s *Service) pollAndLog(ctx context.Context) {
	if err := s.Poll(ctx); err != nil {
		s.storeError(ctx, err)
	}
}

// Poll takes one observation and records the resulting transitions.
func (s *Service) Poll(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()

	idleInfo, err := s.detector.GetIdleInfo()
	if err != nil {
		return fmt.Errorf("failed to get idle info: %w", err)
	}

	if idleInfo.IsIdle || idleInfo.IsLocked {
		s.logger.Debug().Bool("idle", idleInfo.IsIdle).Bool("locked", idleInfo.IsLocked).Msg("Skipping tracking")
		return s.leave(ctx, now)
	}

	windowInfo, err := s.detector.GetFocusedWindow()
	if errors.Is(err, focus.ErrNoWindow) {
		return s.leave(ctx, now)
	}
	if err != nil {
		return fmt.Errorf("failed to get focused window: %w", err)
	}

	appID := normalizeAppID(windowInfo.AppID)
	if appID == "" {
		return s.leave(ctx, now)
	}

	if appID != s.current {
		if err := s.leave(ctx, now); err != nil {
			return err
		}
		if err := s.record(ctx, now, appID, usage.ForegroundEnter, windowInfo); err != nil {
			return err
		}
		s.current = appID
		s.logger.Debug().Str("app_id", appID).Str("title", windowInfo.WindowTitle).Msg("Focus changed")
	}

	sample := &models.FocusSample{
		Timestamp:  now.UnixMilli(),
		AppID:      appID,
		DurationMs: s.config.PollInterval.Milliseconds(),
		RunID:      s.runID,
	}
	if err := s.recorder.RecordSample(ctx, sample); err != nil {
		return fmt.Errorf("failed to save sample: %w", err)
	}
	return nil
}

// leave closes the open session, if any.
func (s *Service) leave(ctx context.Context, now time.Time) error {
	if s.current == "" {
		return nil
	}
	if err := s.record(ctx, now, s.current, usage.ForegroundExit, nil); err != nil {
		return err
	}
	s.current = ""
	return nil
}

func (s *Service) record(ctx context.Context, now time.Time, appID string, kind usage.Kind, info *focus.WindowInfo) error {
	event := &models.UsageEvent{
		Timestamp: now.UnixMilli(),
		AppID:     appID,
		Kind:      kind.String(),
		RunID:     s.runID,
	}
	if info != nil {
		event.WindowTitle = info.WindowTitle
		event.DisplayServer = info.DisplayServer
	}

	if err := s.recorder.RecordEvent(ctx, event); err != nil {
		return fmt.Errorf("failed to save %s event: %w", kind, err)
	}
	metrics.EventsRecorded.WithLabelValues(kind.String()).Inc()
	return nil
}

func (s *Service) finish(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.running = false
	if err := s.leave(ctx, s.now()); err != nil {
		s.logger.Error().Err(err).Msg("Failed to close open session")
	}
}

func (s *Service) storeError(ctx context.Context, err error) {
	metrics.TrackerErrors.WithLabelValues("tracker").Inc()

	errorLog := models.NewErrorLog("tracker", s.runID, s.now(), err)
	errorLog.DisplayServer = s.detector.GetDisplayServer()

	if dbErr := s.recorder.CreateErrorLog(ctx, errorLog); dbErr != nil {
		s.logger.Error().Err(dbErr).AnErr("original", err).Msg("Failed to store error in database")
		return
	}
	s.logger.Warn().Err(err).Msg("Error logged to database")
}

// CurrentWindow queries the detector directly, bypassing the poll loop.
func (s *Service) CurrentWindow() (*focus.WindowInfo, *focus.IdleInfo, error) {
	windowInfo, err := s.detector.GetFocusedWindow()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get focused window: %w", err)
	}

	idleInfo, err := s.detector.GetIdleInfo()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get idle info: %w", err)
	}

	return windowInfo, idleInfo, nil
}

func normalizeAppID(appID string) string {
	return strings.ToLower(strings.TrimSpace(appID))
}
