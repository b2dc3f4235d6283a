package scraper

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/bikeshare-dashboard/internal/common/logger"
	"github.com/bikeshare-dashboard/pkg/networks/models"
)

const (
	DefaultHTTPTimeout = 10 * time.Second
	UserAgent          = "bikeshare-dashboard/1.0"
	maxErrorBody       = 512
)

type HTTPDirectoryFetcher struct {
	url    string
	client *http.Client
	logger logger.Logger
}

func NewHTTPDirectoryFetcher(url string, timeout time.Duration, logger logger.Logger) *HTTPDirectoryFetcher {
	if timeout <= 0 {
		timeout = DefaultHTTPTimeout
	}
	return &HTTPDirectoryFetcher{
		url: url,
		client: &http.Client{
			Timeout: timeout,
		},
		logger: logger,
	}
}

// FetchAll performs a single GET of the directory. Failures are logged and
// reported as an empty slice.
func (f *HTTPDirectoryFetcher) FetchAll(ctx context.Context) []models.NetworkDescriptor {
	raw, err := f.fetch(ctx)
	if err != nil {
		f.logger.Error("Failed to fetch network directory", "url", f.url, "error", err)
		return []models.NetworkDescriptor{}
	}

	descriptors := NormalizeDescriptors(raw)
	f.logger.Info("Network directory fetched", "networks", len(descriptors))
	return descriptors
}

func (f *HTTPDirectoryFetcher) fetch(ctx context.Context) ([]models.RawNetwork, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", UserAgent)
	req.Header.Set("Accept", "application/json")

	f.logger.Debug("Fetching network directory", "url", f.url)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: executing request: %v", models.ErrTransport, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		f.logger.Debug("Directory returned error status", "status_code", resp.StatusCode, "response_body", string(body))
		return nil, &models.StatusError{URL: f.url, StatusCode: resp.StatusCode}
	}

	var result models.DirectoryResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("%w: decoding response: %v", models.ErrTransport, err)
	}
	return result.Networks, nil
}
