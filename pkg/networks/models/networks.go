package models

import "fmt"

// UnknownCountry is the rollup bucket for networks without a country code.
const UnknownCountry = "unknown"

// NetworkDescriptor is one entry of the network directory.
type NetworkDescriptor struct {
	ID               string   `json:"id"`
	Name             string   `json:"name"`
	City             *string  `json:"city,omitempty"`
	Country          *string  `json:"country,omitempty"`
	Latitude         *float64 `json:"latitude,omitempty"`
	Longitude        *float64 `json:"longitude,omitempty"`
	DeclaredCapacity int      `json:"declared_capacity"`

	// Synthetic is set when the directory entry had no id and one was assigned locally.
	Synthetic bool `json:"-"`
}

// CountryKey returns the grouping key used by country rollups.
func (d NetworkDescriptor) CountryKey() string {
	if d.Country == nil || *d.Country == "" {
		return UnknownCountry
	}
	return *d.Country
}

// EnrichedNetworkRow is a descriptor augmented with live station totals.
type EnrichedNetworkRow struct {
	NetworkDescriptor
	StationCount int `json:"station_count"`
	FreeBikes    int `json:"free_bikes"`
	EmptySlots   int `json:"empty_slots"`
}

// Metric names a numeric column of the enriched table.
type Metric string

const (
	MetricStationCount     Metric = "station_count"
	MetricFreeBikes        Metric = "free_bikes"
	MetricEmptySlots       Metric = "empty_slots"
	MetricDeclaredCapacity Metric = "declared_capacity"
)

// ParseMetric validates a metric name.
func ParseMetric(s string) (Metric, error) {
	switch m := Metric(s); m {
	case MetricStationCount, MetricFreeBikes, MetricEmptySlots, MetricDeclaredCapacity:
		return m, nil
	}
	return "", fmt.Errorf("unknown metric %q", s)
}

// Value returns the row's value for the metric. Unknown metrics yield 0.
func (r EnrichedNetworkRow) Value(m Metric) int {
	switch m {
	case MetricStationCount:
		return r.StationCount
	case MetricFreeBikes:
		return r.FreeBikes
	case MetricEmptySlots:
		return r.EmptySlots
	case MetricDeclaredCapacity:
		return r.DeclaredCapacity
	default:
		return 0
	}
}
