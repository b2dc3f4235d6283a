// Package pipeline runs a dashboard load: directory fetch, enrichment and the
// aggregations the presentation layer reads.
package pipeline

import (
	"context"
	"sync"
	"time"

	"github.com/bikeshare-dashboard/internal/common/logger"
	"github.com/bikeshare-dashboard/internal/networks/analytics"
	"github.com/bikeshare-dashboard/internal/networks/enricher"
	"github.com/bikeshare-dashboard/internal/networks/scraper"
	"github.com/bikeshare-dashboard/pkg/networks/models"
)

const noDataWarning = "no network data available"

// Enricher is satisfied by *enricher.Engine.
type Enricher interface {
	Enrich(ctx context.Context, descriptors []models.NetworkDescriptor) enricher.Result
}

// Dashboard is the enriched table plus its headline aggregations.
type Dashboard struct {
	RunID        string                      `json:"run_id"`
	LoadedAt     time.Time                   `json:"loaded_at"`
	FromSnapshot bool                        `json:"from_snapshot"`
	Warning      string                      `json:"warning,omitempty"`
	Rows         []models.EnrichedNetworkRow `json:"-"`
	TopNetwork   string                      `json:"top_network"`
	TopCountry   analytics.CountrySummary    `json:"top_country"`
	TopCountries []analytics.CountrySummary  `json:"top_countries"`
	Countries    []analytics.CountrySummary  `json:"countries"`
}

// NewDashboard derives the headline aggregations from rows.
func NewDashboard(result enricher.Result, loadedAt time.Time) *Dashboard {
	d := &Dashboard{
		RunID:        result.RunID,
		LoadedAt:     loadedAt,
		FromSnapshot: result.FromSnapshot,
		Rows:         result.Rows,
		TopNetwork:   analytics.TopNetwork(result.Rows),
		TopCountry:   analytics.TopCountry(result.Rows),
		TopCountries: analytics.TopCountries(result.Rows, models.MetricStationCount, analytics.DefaultTopCountries),
		Countries:    analytics.RollupByCountry(result.Rows),
	}
	if d.Rows == nil {
		d.Rows = []models.EnrichedNetworkRow{}
	}
	if result.Warning != nil {
		d.Warning = result.Warning.Error()
	}
	return d
}

type Pipeline struct {
	directory scraper.DirectoryFetcher
	enricher  Enricher
	logger    logger.Logger

	mu      sync.RWMutex
	loadMu  sync.Mutex
	current *Dashboard
	now     func() time.Time
}

func New(directory scraper.DirectoryFetcher, enricher Enricher, logger logger.Logger) *Pipeline {
	return &Pipeline{
		directory: directory,
		enricher:  enricher,
		logger:    logger,
		now:       time.Now,
	}
}

// Load runs one dashboard load. Concurrent calls are serialised. A load that
// yields no rows does not replace a previously loaded dashboard.
func (p *Pipeline) Load(ctx context.Context) *Dashboard {
	p.loadMu.Lock()
	defer p.loadMu.Unlock()

	descriptors := p.directory.FetchAll(ctx)

	var dashboard *Dashboard
	if len(descriptors) == 0 {
		p.logger.Warn("No network data fetched")
		dashboard = NewDashboard(enricher.Result{Rows: []models.EnrichedNetworkRow{}}, p.now())
		dashboard.Warning = noDataWarning
	} else {
		dashboard = NewDashboard(p.enricher.Enrich(ctx, descriptors), p.now())
	}

	if dashboard.Warning != "" {
		p.logger.Warn("Dashboard load degraded", "run_id", dashboard.RunID, "warning", dashboard.Warning)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if len(dashboard.Rows) > 0 || p.current == nil {
		p.current = dashboard
	}
	return dashboard
}

// Current returns the last stored dashboard, or nil before the first load.
func (p *Pipeline) Current() *Dashboard {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.current
}
