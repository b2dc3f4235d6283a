package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Count is a station counter that tolerates null, empty, float and quoted values
// as reported by the different bike-share feeds.
type Count int

// UnmarshalJSON decodes null and "" as zero.
func (c *Count) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(strings.Trim(string(bytes.TrimSpace(b)), "\""))
	if s == "null" || s == "" {
		*c = 0
		return nil
	}

	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("unable to parse count %q: %w", s, err)
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return fmt.Errorf("unable to parse count %q", s)
	}
	*c = Count(int(f))
	return nil
}

// NonNegative clamps the counter at zero.
func (c Count) NonNegative() int {
	if c < 0 {
		return 0
	}
	return int(c)
}

// StationRecord holds the live counters of one docking station.
type StationRecord struct {
	FreeBikes  Count `json:"free_bikes"`
	EmptySlots Count `json:"empty_slots"`
}

// NetworkDetail is the per-network station list.
type NetworkDetail struct {
	NetworkID string          `json:"network_id"`
	Stations  []StationRecord `json:"stations"`
}

// Empty reports whether the detail carries no stations.
func (d NetworkDetail) Empty() bool {
	return len(d.Stations) == 0
}

// CacheEntry is the persisted form of a NetworkDetail.
type CacheEntry struct {
	NetworkID string        `json:"network_id"`
	Payload   NetworkDetail `json:"payload"`
	FetchedAt time.Time     `json:"fetched_at"`
}

// DecodeCacheEntry parses a persisted entry, rejecting blobs that do not
// belong to networkID.
func DecodeCacheEntry(networkID string, b []byte) (CacheEntry, error) {
	var entry CacheEntry
	if err := json.Unmarshal(b, &entry); err != nil {
		return CacheEntry{}, fmt.Errorf("%w: %v", ErrCacheCorruption, err)
	}
	if entry.NetworkID != networkID {
		return CacheEntry{}, fmt.Errorf("%w: entry belongs to %q", ErrCacheCorruption, entry.NetworkID)
	}
	return entry, nil
}
