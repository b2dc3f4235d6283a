package scraper

import (
	"context"

	"github.com/bikeshare-dashboard/pkg/networks/models"
)

// DirectoryFetcher retrieves the network directory. An empty result means no
// data is available this run.
type DirectoryFetcher interface {
	FetchAll(ctx context.Context) []models.NetworkDescriptor
}

// DetailSource returns a network's station list. It never fails; an unrecoverable
// fetch yields a detail with no stations.
type DetailSource interface {
	Fetch(ctx context.Context, networkID string) models.NetworkDetail
}

// DetailCache is the read-through store consulted before any per-network call.
type DetailCache interface {
	Get(networkID string) (models.NetworkDetail, bool)
	Put(networkID string, detail models.NetworkDetail)
}
