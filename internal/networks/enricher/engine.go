// Package enricher augments network descriptors with live station totals.
package enricher

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/bikeshare-dashboard/internal/common/logger"
	"github.com/bikeshare-dashboard/internal/common/metrics"
	"github.com/bikeshare-dashboard/internal/networks/scraper"
	"github.com/bikeshare-dashboard/pkg/networks/models"
)

const DefaultWorkers = 8

// RunRecorder persists a summary of every pass.
type RunRecorder interface {
	RecordRun(ctx context.Context, run models.RunRecord) error
}

// Notifier is told about passes that served a snapshot or nothing.
type Notifier interface {
	NotifyDegradedRun(ctx context.Context, run models.RunRecord) error
}

type Config struct {
	Workers     int
	PassTimeout time.Duration
}

// Result is the outcome of one pass. Warning is set when the pass failed
// structurally; Rows then hold the snapshot, or nothing if there was none.
type Result struct {
	RunID        string
	Rows         []models.EnrichedNetworkRow
	FromSnapshot bool
	Warning      error
}

type Engine struct {
	config    Config
	source    scraper.DetailSource
	snapshots *SnapshotStore
	recorder  RunRecorder
	notifier  Notifier
	logger    logger.Logger
}

func NewEngine(config Config, source scraper.DetailSource, snapshots *SnapshotStore, logger logger.Logger) *Engine {
	if config.Workers <= 0 {
		config.Workers = DefaultWorkers
	}
	return &Engine{
		config:    config,
		source:    source,
		snapshots: snapshots,
		logger:    logger,
	}
}

// WithRecorder attaches run history storage.
func (e *Engine) WithRecorder(r RunRecorder) *Engine {
	e.recorder = r
	return e
}

// WithNotifier attaches degraded-run alerts.
func (e *Engine) WithNotifier(n Notifier) *Engine {
	e.notifier = n
	return e
}

// Enrich never fails. Rows come back in descriptor order. Per-network fetch
// failures become zero rows; a structural failure falls back to the last snapshot.
func (e *Engine) Enrich(ctx context.Context, descriptors []models.NetworkDescriptor) Result {
	started := time.Now()
	result := Result{RunID: uuid.NewString()}

	passCtx := ctx
	if e.config.PassTimeout > 0 {
		var cancel context.CancelFunc
		passCtx, cancel = context.WithTimeout(ctx, e.config.PassTimeout)
		defer cancel()
	}

	rows, err := e.enrichAll(passCtx, descriptors)
	if err != nil {
		e.logger.Warn("Enrichment pass failed", "run_id", result.RunID, "error", err)
		result.Warning = err
		result.Rows = e.fallback(result.RunID, &result)
	} else {
		result.Rows = rows
		e.persist(result.RunID, rows)
	}

	elapsed := time.Since(started)
	metrics.EnrichDuration.Observe(elapsed.Seconds())
	metrics.EnrichRows.Set(float64(len(result.Rows)))

	run := models.RunRecord{
		RunID:         result.RunID,
		StartedAt:     started.UTC(),
		FinishedAt:    started.Add(elapsed).UTC(),
		Networks:      len(result.Rows),
		EmptyNetworks: countEmpty(result.Rows),
		FromSnapshot:  result.FromSnapshot,
	}
	if result.Warning != nil {
		run.Warning = result.Warning.Error()
	}

	e.logger.Info("Enrichment pass finished",
		"run_id", run.RunID,
		"networks", run.Networks,
		"empty_networks", run.EmptyNetworks,
		"from_snapshot", run.FromSnapshot,
		"duration", elapsed)

	e.report(ctx, run)
	return result
}

// EnrichRow derives a row from a descriptor and its detail. Negative
// counters are clamped to zero.
func EnrichRow(d models.NetworkDescriptor, detail models.NetworkDetail) models.EnrichedNetworkRow {
	row := models.EnrichedNetworkRow{
		NetworkDescriptor: d,
		StationCount:      len(detail.Stations),
	}
	for _, s := range detail.Stations {
		row.FreeBikes += s.FreeBikes.NonNegative()
		row.EmptySlots += s.EmptySlots.NonNegative()
	}
	return row
}

func (e *Engine) enrichAll(ctx context.Context, descriptors []models.NetworkDescriptor) (rows []models.EnrichedNetworkRow, err error) {
	defer func() {
		if r := recover(); r != nil {
			rows, err = nil, fmt.Errorf("%w: %v", models.ErrStructural, r)
		}
	}()

	rows = make([]models.EnrichedNetworkRow, len(descriptors))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.config.Workers)

	for i, d := range descriptors {
		g.Go(func() (err error) {
			defer func() {
				if r := recover(); r != nil {
					err = fmt.Errorf("%w: network %q: %v", models.ErrStructural, d.ID, r)
				}
			}()

			if d.Synthetic || d.ID == "" {
				rows[i] = EnrichRow(d, models.NetworkDetail{})
				return nil
			}

			detail := e.source.Fetch(gctx, d.ID)
			if detail.NetworkID != "" && detail.NetworkID != d.ID {
				return fmt.Errorf("%w: detail for %q returned for network %q", models.ErrStructural, detail.NetworkID, d.ID)
			}
			rows[i] = EnrichRow(d, detail)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return rows, nil
}

func (e *Engine) fallback(runID string, result *Result) []models.EnrichedNetworkRow {
	if e.snapshots == nil {
		result.Warning = fmt.Errorf("%w; no snapshot configured", result.Warning)
		return []models.EnrichedNetworkRow{}
	}

	rows, err := e.snapshots.Load()
	if err != nil {
		if errors.Is(err, ErrNoSnapshot) {
			e.logger.Warn("No snapshot to fall back to", "run_id", runID)
		} else {
			e.logger.Warn("Snapshot unreadable", "run_id", runID, "error", err)
		}
		result.Warning = fmt.Errorf("%w; fallback failed: %v", result.Warning, err)
		return []models.EnrichedNetworkRow{}
	}

	metrics.SnapshotFallbacks.Inc()
	result.FromSnapshot = true
	e.logger.Warn("Serving enrichment snapshot", "run_id", runID, "path", e.snapshots.Path(), "rows", len(rows))
	return rows
}

func (e *Engine) persist(runID string, rows []models.EnrichedNetworkRow) {
	if e.snapshots == nil {
		return
	}
	// an empty directory would otherwise wipe the only fallback we have
	if len(rows) == 0 {
		e.logger.Debug("Skipping snapshot for empty pass", "run_id", runID)
		return
	}
	if err := e.snapshots.Save(rows); err != nil {
		e.logger.Warn("Failed to write enrichment snapshot", "run_id", runID, "error", err)
	}
}

func (e *Engine) report(ctx context.Context, run models.RunRecord) {
	ctx = context.WithoutCancel(ctx)

	if e.recorder != nil {
		if err := e.recorder.RecordRun(ctx, run); err != nil {
			e.logger.Warn("Failed to record enrichment run", "run_id", run.RunID, "error", err)
		}
	}
	if e.notifier != nil && run.Warning != "" {
		if err := e.notifier.NotifyDegradedRun(ctx, run); err != nil {
			e.logger.Warn("Failed to send degraded run alert", "run_id", run.RunID, "error", err)
		}
	}
}

func countEmpty(rows []models.EnrichedNetworkRow) int {
	n := 0
	for _, r := range rows {
		if r.StationCount == 0 {
			n++
		}
	}
	return n
}
