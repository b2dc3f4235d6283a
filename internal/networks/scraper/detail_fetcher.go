package scraper

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/bikeshare-dashboard/internal/common/logger"
	"github.com/bikeshare-dashboard/internal/common/metrics"
	"github.com/bikeshare-dashboard/pkg/networks/models"
)

const (
	DefaultMaxAttempts   = 5
	DefaultBackoffFactor = 1.5
)

type DetailFetcherConfig struct {
	BaseURL       string
	Timeout       time.Duration
	MaxAttempts   int
	BackoffFactor float64
	// RatePerSecond paces outgoing requests across all workers; zero disables it.
	RatePerSecond float64
}

// HTTPDetailFetcher fetches GET {base}/{id} with bounded retry and exponential
// backoff, reading through and populating a DetailCache.
type HTTPDetailFetcher struct {
	config  DetailFetcherConfig
	client  *http.Client
	cache   DetailCache
	limiter *rate.Limiter
	logger  logger.Logger
	sleep   func(ctx context.Context, d time.Duration) error
}

func NewHTTPDetailFetcher(config DetailFetcherConfig, cache DetailCache, logger logger.Logger) *HTTPDetailFetcher {
	if config.Timeout <= 0 {
		config.Timeout = DefaultHTTPTimeout
	}
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = DefaultMaxAttempts
	}
	if config.BackoffFactor <= 0 {
		config.BackoffFactor = DefaultBackoffFactor
	}
	config.BaseURL = strings.TrimRight(config.BaseURL, "/")

	var limiter *rate.Limiter
	if config.RatePerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(config.RatePerSecond), 1)
	}

	return &HTTPDetailFetcher{
		config: config,
		client: &http.Client{
			Timeout: config.Timeout,
			Transport: &http.Transport{
				Proxy:               http.ProxyFromEnvironment,
				MaxIdleConns:        32,
				MaxIdleConnsPerHost: 16,
				IdleConnTimeout:     30 * time.Second,
			},
		},
		cache:   cache,
		limiter: limiter,
		logger:  logger,
		sleep:   sleepContext,
	}
}

// Backoff returns factor^attempt seconds.
func Backoff(factor float64, attempt int) time.Duration {
	return time.Duration(math.Pow(factor, float64(attempt)) * float64(time.Second))
}

// Fetch never fails. After MaxAttempts unsuccessful attempts, or when ctx is
// done, it returns a detail with no stations and caches nothing.
func (f *HTTPDetailFetcher) Fetch(ctx context.Context, networkID string) models.NetworkDetail {
	if detail, ok := f.cache.Get(networkID); ok {
		return detail
	}

	target := f.config.BaseURL + "/" + url.PathEscape(networkID)
	log := f.logger.With("network_id", networkID)

	for attempt := 0; attempt < f.config.MaxAttempts; attempt++ {
		if f.limiter != nil {
			if err := f.limiter.Wait(ctx); err != nil {
				log.Warn("Abandoning detail fetch", "attempt", attempt+1, "error", err)
				return emptyDetail(networkID)
			}
		}

		stations, err := f.fetchOnce(ctx, target)
		if err == nil {
			metrics.FetchAttempts.WithLabelValues("ok").Inc()
			detail := models.NetworkDetail{NetworkID: networkID, Stations: stations}
			f.cache.Put(networkID, detail)
			log.Debug("Fetched network detail", "stations", len(stations), "attempt", attempt+1)
			return detail
		}

		if ctx.Err() != nil {
			metrics.FetchAttempts.WithLabelValues("error").Inc()
			log.Warn("Abandoning detail fetch", "attempt", attempt+1, "error", ctx.Err())
			return emptyDetail(networkID)
		}

		wait := Backoff(f.config.BackoffFactor, attempt)
		if errors.Is(err, models.ErrRateLimited) {
			metrics.FetchAttempts.WithLabelValues("rate_limited").Inc()
			log.Warn("Rate limited, backing off", "attempt", attempt+1, "wait", wait)
		} else {
			metrics.FetchAttempts.WithLabelValues("error").Inc()
			log.Warn("Detail fetch failed", "attempt", attempt+1, "max_attempts", f.config.MaxAttempts, "wait", wait, "error", err)
		}

		if attempt == f.config.MaxAttempts-1 {
			break
		}
		if err := f.sleep(ctx, wait); err != nil {
			log.Warn("Abandoning detail fetch", "attempt", attempt+1, "error", err)
			return emptyDetail(networkID)
		}
	}

	metrics.FetchExhausted.Inc()
	log.Warn("Giving up on network detail", "attempts", f.config.MaxAttempts)
	return emptyDetail(networkID)
}

func (f *HTTPDetailFetcher) fetchOnce(ctx context.Context, target string) ([]models.StationRecord, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", UserAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: executing request: %v", models.ErrTransport, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, maxErrorBody))
		return nil, &models.StatusError{URL: target, StatusCode: resp.StatusCode}
	}

	var payload models.DetailResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("%w: decoding detail: %v", models.ErrTransport, err)
	}
	return payload.StationList(), nil
}

func emptyDetail(networkID string) models.NetworkDetail {
	return models.NetworkDetail{NetworkID: networkID, Stations: []models.StationRecord{}}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
