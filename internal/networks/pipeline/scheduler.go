package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/bikeshare-dashboard/internal/common/logger"
)

// RefreshScheduler reloads the dashboard on a fixed interval.
type RefreshScheduler struct {
	pipeline *Pipeline
	interval time.Duration
	logger   logger.Logger

	mu      sync.Mutex
	cancel  context.CancelFunc
	running bool
}

func NewRefreshScheduler(pipeline *Pipeline, interval time.Duration, logger logger.Logger) *RefreshScheduler {
	return &RefreshScheduler{
		pipeline: pipeline,
		interval: interval,
		logger:   logger,
	}
}

// Start loads once, then on every tick until ctx is done or Stop is called. It blocks.
func (s *RefreshScheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("scheduler already running")
	}
	if s.interval <= 0 {
		s.mu.Unlock()
		return fmt.Errorf("refresh interval must be positive")
	}

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.running = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	s.logger.Info("Starting refresh scheduler", "interval", s.interval)

	s.refresh(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Refresh scheduler stopped")
			return nil
		case <-ticker.C:
			s.refresh(ctx)
		}
	}
}

func (s *RefreshScheduler) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return fmt.Errorf("scheduler not running")
	}
	if s.cancel != nil {
		s.cancel()
	}
	return nil
}

func (s *RefreshScheduler) refresh(ctx context.Context) {
	start := time.Now()
	d := s.pipeline.Load(ctx)
	s.logger.Info("Dashboard refreshed",
		"run_id", d.RunID,
		"networks", len(d.Rows),
		"from_snapshot", d.FromSnapshot,
		"duration", time.Since(start))
}
