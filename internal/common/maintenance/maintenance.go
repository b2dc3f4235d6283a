package maintenance

import (
	"context"
	"fmt"
	"time"

	"github.com/bikeshare-dashboard/internal/common/logger"
)

// Target names what a cleanup operated on
type Target string

const (
	EnrichmentRuns Target = "enrichment_runs"
	DetailCache    Target = "detail_cache"
)

// CleanupResult represents the result of a cleanup operation
type CleanupResult struct {
	Target         Target
	RecordsDeleted int64
	Success        bool
	Error          string
}

// RunPruner deletes run history older than a cutoff.
type RunPruner interface {
	DeleteRunsBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// CacheClearer empties the per-network detail cache.
type CacheClearer interface {
	Clear() (int, error)
}

// Maintenance handles housekeeping of run history and cached details
type Maintenance struct {
	runs   RunPruner
	cache  CacheClearer
	logger logger.Logger
	now    func() time.Time
}

// New creates a new Maintenance instance. Either dependency may be nil.
func New(runs RunPruner, cache CacheClearer, logger logger.Logger) *Maintenance {
	return &Maintenance{
		runs:   runs,
		cache:  cache,
		logger: logger,
		now:    time.Now,
	}
}

// PruneRuns deletes runs that finished more than retention ago.
func (m *Maintenance) PruneRuns(ctx context.Context, retention time.Duration) CleanupResult {
	result := CleanupResult{Target: EnrichmentRuns}
	if m.runs == nil {
		result.Error = "run history not configured"
		return result
	}
	if retention <= 0 {
		result.Error = fmt.Sprintf("retention must be positive, got %s", retention)
		return result
	}

	cutoff := m.now().Add(-retention)
	m.logger.Info("Pruning enrichment runs", "cutoff", cutoff)

	deleted, err := m.runs.DeleteRunsBefore(ctx, cutoff)
	if err != nil {
		m.logger.Error("Failed to prune enrichment runs", "error", err)
		result.Error = err.Error()
		return result
	}

	m.logger.Info("Pruned enrichment runs", "records_deleted", deleted)
	result.RecordsDeleted = deleted
	result.Success = true
	return result
}

// ClearDetailCache drops every cached network detail from memory and disk.
func (m *Maintenance) ClearDetailCache() CleanupResult {
	result := CleanupResult{Target: DetailCache}
	if m.cache == nil {
		result.Error = "detail cache not configured"
		return result
	}

	removed, err := m.cache.Clear()
	result.RecordsDeleted = int64(removed)
	if err != nil {
		m.logger.Error("Failed to clear detail cache", "error", err)
		result.Error = err.Error()
		return result
	}

	result.Success = true
	return result
}
