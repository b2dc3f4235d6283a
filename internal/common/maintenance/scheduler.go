package maintenance

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/bikeshare-dashboard/internal/common/logger"
)

// CleanupScheduler handles periodic maintenance tasks
type CleanupScheduler struct {
	maintenance *Maintenance
	logger      logger.Logger
	config      SchedulerConfig
	isRunning   bool
	mu          sync.RWMutex
	cancelFn    context.CancelFunc
	done        chan struct{}
}

// SchedulerConfig contains configuration for the cleanup scheduler
type SchedulerConfig struct {
	PruneInterval time.Duration // How often to prune run history
	RunRetention  time.Duration // How long to keep run history
	InitialDelay  time.Duration // Wait before the first prune
}

// DefaultSchedulerConfig returns sensible defaults
func DefaultSchedulerConfig() SchedulerConfig {
	return SchedulerConfig{
		PruneInterval: 24 * time.Hour,
		RunRetention:  30 * 24 * time.Hour,
		InitialDelay:  time.Minute,
	}
}

// NewCleanupScheduler creates a new cleanup scheduler
func NewCleanupScheduler(m *Maintenance, logger logger.Logger, config SchedulerConfig) *CleanupScheduler {
	return &CleanupScheduler{
		maintenance: m,
		logger:      logger,
		config:      config,
	}
}

// Start begins the cleanup scheduling
func (s *CleanupScheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning {
		return fmt.Errorf("cleanup scheduler is already running")
	}
	if s.config.PruneInterval <= 0 {
		return fmt.Errorf("prune interval must be positive")
	}

	ctx, cancel := context.WithCancel(ctx)
	s.cancelFn = cancel
	s.done = make(chan struct{})
	s.isRunning = true

	s.logger.Info("Starting cleanup scheduler",
		"prune_interval", s.config.PruneInterval,
		"run_retention", s.config.RunRetention)

	go s.pruneLoop(ctx, s.done)
	return nil
}

// Stop stops the cleanup scheduler and waits for the loop to exit
func (s *CleanupScheduler) Stop() {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return
	}
	s.logger.Info("Stopping cleanup scheduler")
	s.cancelFn()
	done := s.done
	s.isRunning = false
	s.mu.Unlock()

	<-done
	s.logger.Info("Cleanup scheduler stopped")
}

// IsRunning returns whether the scheduler is active
func (s *CleanupScheduler) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// TriggerPrune runs a prune immediately
func (s *CleanupScheduler) TriggerPrune(ctx context.Context) CleanupResult {
	s.logger.Info("Manual run history prune triggered")
	return s.maintenance.PruneRuns(ctx, s.config.RunRetention)
}

// GetStatus returns the current status of the cleanup scheduler
func (s *CleanupScheduler) GetStatus() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return map[string]interface{}{
		"is_running":     s.isRunning,
		"prune_interval": s.config.PruneInterval.String(),
		"run_retention":  s.config.RunRetention.String(),
	}
}

func (s *CleanupScheduler) pruneLoop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(s.config.PruneInterval)
	defer ticker.Stop()

	initialDelay := time.NewTimer(s.config.InitialDelay)
	defer initialDelay.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Prune loop stopping")
			return
		case <-initialDelay.C:
			s.performPrune(ctx)
		case <-ticker.C:
			s.performPrune(ctx)
		}
	}
}

func (s *CleanupScheduler) performPrune(ctx context.Context) {
	start := time.Now()
	result := s.maintenance.PruneRuns(ctx, s.config.RunRetention)
	if !result.Success {
		s.logger.Warn("Scheduled prune did not complete", "error", result.Error, "duration", time.Since(start))
		return
	}
	s.logger.Info("Scheduled prune completed", "records_deleted", result.RecordsDeleted, "duration", time.Since(start))
}
