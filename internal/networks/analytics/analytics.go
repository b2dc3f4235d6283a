// Package analytics computes derived views over an enriched table. Every
// function is pure and leaves its input untouched.
package analytics

import (
	"fmt"
	"sort"

	"github.com/bikeshare-dashboard/pkg/networks/models"
)

// NotAvailable is returned when a table has nothing to rank.
const NotAvailable = "N/A"

// DefaultTopCountries is how many countries the dashboard ranks.
const DefaultTopCountries = 5

// CountrySummary aggregates the rows of one country code.
type CountrySummary struct {
	Country      string  `json:"country"`
	Networks     int     `json:"networks"`
	StationCount int     `json:"station_count"`
	FreeBikes    int     `json:"free_bikes"`
	EmptySlots   int     `json:"empty_slots"`
	MeanStations float64 `json:"mean_stations"`
	MaxStations  int     `json:"max_stations"`
}

// Value returns the summed metric. Declared capacity is not rolled up.
func (c CountrySummary) Value(m models.Metric) int {
	switch m {
	case models.MetricStationCount:
		return c.StationCount
	case models.MetricFreeBikes:
		return c.FreeBikes
	case models.MetricEmptySlots:
		return c.EmptySlots
	default:
		return 0
	}
}

// TopNBy returns the n rows with the highest metric, ties kept in table order.
func TopNBy(rows []models.EnrichedNetworkRow, metric models.Metric, n int) []models.EnrichedNetworkRow {
	if n <= 0 || len(rows) == 0 {
		return []models.EnrichedNetworkRow{}
	}

	sorted := make([]models.EnrichedNetworkRow, len(rows))
	copy(sorted, rows)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Value(metric) > sorted[j].Value(metric)
	})

	if n > len(sorted) {
		n = len(sorted)
	}
	return sorted[:n]
}

// RollupByCountry groups rows by country code in order of first appearance.
// Rows without a code share the models.UnknownCountry bucket.
func RollupByCountry(rows []models.EnrichedNetworkRow) []CountrySummary {
	index := map[string]int{}
	out := []CountrySummary{}

	for _, r := range rows {
		key := r.CountryKey()
		i, ok := index[key]
		if !ok {
			i = len(out)
			index[key] = i
			out = append(out, CountrySummary{Country: key})
		}

		s := &out[i]
		s.Networks++
		s.StationCount += r.StationCount
		s.FreeBikes += r.FreeBikes
		s.EmptySlots += r.EmptySlots
		if r.StationCount > s.MaxStations {
			s.MaxStations = r.StationCount
		}
	}

	for i := range out {
		out[i].MeanStations = float64(out[i].StationCount) / float64(out[i].Networks)
	}
	return out
}

// TopCountries ranks country rollups by metric and keeps the first n.
func TopCountries(rows []models.EnrichedNetworkRow, metric models.Metric, n int) []CountrySummary {
	rollup := RollupByCountry(rows)
	if n <= 0 {
		return []CountrySummary{}
	}

	sort.SliceStable(rollup, func(i, j int) bool {
		return rollup[i].Value(metric) > rollup[j].Value(metric)
	})
	if n > len(rollup) {
		n = len(rollup)
	}
	return rollup[:n]
}

// TopCountry returns the country with the most stations, or an empty group
// named NotAvailable when rows is empty.
func TopCountry(rows []models.EnrichedNetworkRow) CountrySummary {
	top := TopCountries(rows, models.MetricStationCount, 1)
	if len(top) == 0 {
		return CountrySummary{Country: NotAvailable}
	}
	return top[0]
}

// TopNetwork describes the network with the most stations as
// "<name> (<n> stations)", or NotAvailable when rows is empty.
func TopNetwork(rows []models.EnrichedNetworkRow) string {
	top := TopNBy(rows, models.MetricStationCount, 1)
	if len(top) == 0 {
		return NotAvailable
	}
	return fmt.Sprintf("%s (%d stations)", top[0].Name, top[0].StationCount)
}
