// Package cache implements the two-tier per-network detail cache: an in-process
// memory tier backed by one JSON file per network on disk.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/bikeshare-dashboard/internal/common/logger"
	"github.com/bikeshare-dashboard/internal/common/metrics"
	"github.com/bikeshare-dashboard/pkg/networks/models"
)

const (
	fileExt       = ".json"
	tempPattern   = ".detail-*.tmp"
	dirPermission = 0o755
)

// DetailCache is safe for concurrent use. A zero TTL keeps entries for the
// lifetime of the process (memory) and until externally cleared (disk).
type DetailCache struct {
	dir    string
	ttl    time.Duration
	mem    *gocache.Cache
	logger logger.Logger
	now    func() time.Time
}

// New creates the cache directory if needed.
func New(dir string, ttl time.Duration, log logger.Logger) (*DetailCache, error) {
	if err := os.MkdirAll(dir, dirPermission); err != nil {
		return nil, fmt.Errorf("creating cache directory: %w", err)
	}

	expiration, cleanup := gocache.NoExpiration, time.Duration(0)
	if ttl > 0 {
		expiration, cleanup = ttl, 2*ttl
	}

	return &DetailCache{
		dir:    dir,
		ttl:    ttl,
		mem:    gocache.New(expiration, cleanup),
		logger: log,
		now:    time.Now,
	}, nil
}

// Dir returns the disk tier directory.
func (c *DetailCache) Dir() string {
	return c.dir
}

// Get looks up the memory tier, then the disk tier. A disk hit is promoted to memory.
// Absent, expired and unreadable entries are all reported as a miss.
func (c *DetailCache) Get(networkID string) (models.NetworkDetail, bool) {
	if obj, found := c.mem.Get(networkID); found {
		metrics.CacheLookups.WithLabelValues("memory").Inc()
		return cloneDetail(obj.(models.CacheEntry).Payload), true
	}

	entry, err := c.readDisk(networkID)
	if err != nil {
		if errors.Is(err, models.ErrCacheCorruption) {
			metrics.CacheLookups.WithLabelValues("corrupt").Inc()
			c.logger.Warn("Ignoring unreadable cache entry", "network_id", networkID, "error", err)
		} else if !errors.Is(err, fs.ErrNotExist) {
			c.logger.Warn("Failed to read cache entry", "network_id", networkID, "error", err)
		}
		metrics.CacheLookups.WithLabelValues("miss").Inc()
		return models.NetworkDetail{}, false
	}

	expiration := gocache.DefaultExpiration
	if c.ttl > 0 {
		age := c.now().Sub(entry.FetchedAt)
		if age >= c.ttl {
			metrics.CacheLookups.WithLabelValues("miss").Inc()
			c.logger.Debug("Cache entry expired", "network_id", networkID, "age", age)
			return models.NetworkDetail{}, false
		}
		expiration = c.ttl - age
	}

	c.mem.Set(networkID, entry, expiration)
	metrics.CacheLookups.WithLabelValues("disk").Inc()
	return cloneDetail(entry.Payload), true
}

// Put stores detail in memory synchronously and on disk best-effort.
func (c *DetailCache) Put(networkID string, detail models.NetworkDetail) {
	entry := models.CacheEntry{
		NetworkID: networkID,
		Payload:   cloneDetail(detail),
		FetchedAt: c.now().UTC(),
	}
	entry.Payload.NetworkID = networkID

	c.mem.Set(networkID, entry, gocache.DefaultExpiration)

	if err := c.writeDisk(entry); err != nil {
		metrics.CacheWriteFailures.Inc()
		c.logger.Warn("Failed to persist cache entry", "network_id", networkID, "error", err)
	}
}

// Clear empties the memory tier and removes every persisted entry.
func (c *DetailCache) Clear() (int, error) {
	c.mem.Flush()

	entries, err := os.ReadDir(c.dir)
	if err != nil {
		return 0, fmt.Errorf("listing cache directory: %w", err)
	}

	removed := 0
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), fileExt) {
			continue
		}
		if err := os.Remove(filepath.Join(c.dir, e.Name())); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return removed, fmt.Errorf("removing %s: %w", e.Name(), err)
		}
		removed++
	}

	c.logger.Info("Detail cache cleared", "dir", c.dir, "files_removed", removed)
	return removed, nil
}

// Path returns the file backing networkID. Names are a hash of the id so any
// id, including ones with path separators, maps to a distinct flat file.
func (c *DetailCache) Path(networkID string) string {
	sum := sha256.Sum256([]byte(networkID))
	return filepath.Join(c.dir, hex.EncodeToString(sum[:])+fileExt)
}

func (c *DetailCache) readDisk(networkID string) (models.CacheEntry, error) {
	b, err := os.ReadFile(c.Path(networkID))
	if err != nil {
		return models.CacheEntry{}, err
	}
	return models.DecodeCacheEntry(networkID, b)
}

func (c *DetailCache) writeDisk(entry models.CacheEntry) error {
	b, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encoding entry: %w", err)
	}

	tmp, err := os.CreateTemp(c.dir, tempPattern)
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		return fmt.Errorf("writing temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("syncing temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp file: %w", err)
	}

	if err := os.Rename(tmpPath, c.Path(entry.NetworkID)); err != nil {
		return fmt.Errorf("moving entry into place: %w", err)
	}
	return nil
}

func cloneDetail(d models.NetworkDetail) models.NetworkDetail {
	stations := make([]models.StationRecord, len(d.Stations))
	copy(stations, d.Stations)
	return models.NetworkDetail{NetworkID: d.NetworkID, Stations: stations}
}
